package openrouter

import "fmt"

// ConfigurationError reports a missing or unusable credential. It is fatal
// for the call that needed it, not for the process.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

// UpstreamError reports a failed or malformed response from the completion
// API. Status is zero when the failure happened before a response arrived.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("openrouter %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("openrouter %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
