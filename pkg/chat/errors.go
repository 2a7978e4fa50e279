package chat

// ValidationError reports missing required turn inputs. It maps to a 400 at
// the HTTP boundary.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}
