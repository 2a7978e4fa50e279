package history

import "fmt"

// StoreError wraps a failure to read or write the backing file. Persistence
// failures on mutation always propagate to the caller; silent data loss is
// not an option here.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
