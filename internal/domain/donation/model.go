package donation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no donation matches the given id.
var ErrNotFound = errors.New("donation not found")

// ValidationError reports malformed donation input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid donation: " + e.Reason
}

// ReferenceError reports a donation that names an unknown donor or staff
// member.
type ReferenceError struct {
	Kind string // "donor" or "staff"
	ID   uuid.UUID
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %s", e.Kind, e.ID)
}

// DuplicateBagError reports an attempt to record a second donation against
// a bag that is already tied to one.
type DuplicateBagError struct {
	BagID string
}

func (e *DuplicateBagError) Error() string {
	return fmt.Sprintf("bag %s already has a recorded donation", e.BagID)
}

// Transaction is one recorded donation: one donor filling one bag under
// the supervision of one staff member.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	DonorID   uuid.UUID `json:"donor_id"`
	StaffID   uuid.UUID `json:"staff_id"`
	BagID     string    `json:"bag_id"`
	DonatedAt time.Time `json:"donated_at"`
	CreatedAt time.Time `json:"created_at"`
}
