package collector

import "fmt"

// Listener socket could not be bound at startup
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Requested lifecycle change is not allowed from the current state
type StateError struct {
	From State
	To   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal daemon state transition %s -> %s", e.From, e.To)
}
