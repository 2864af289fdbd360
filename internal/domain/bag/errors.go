package bag

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a bag ID is unknown.
var ErrNotFound = errors.New("bag not found")

// ErrDuplicateID is returned when an insert collides with an existing
// bag ID.
var ErrDuplicateID = errors.New("bag id already exists")

// ValidationError reports malformed or inconsistent bag input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid bag: " + e.Reason
}

// IllegalTransitionError reports a state machine edge violation, including
// losing a race to a concurrent transition that already moved the bag out
// of the legal source state.
type IllegalTransitionError struct {
	BagID string
	From  Status
	To    Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("bag %s: illegal transition %s -> %s", e.BagID, e.From, e.To)
}
