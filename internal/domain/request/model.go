package request

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/pkg/blood"
)

// ErrNotFound is returned when no request matches the given id.
var ErrNotFound = errors.New("blood request not found")

// ErrRecipientNotFound is returned when a request names an unknown
// recipient.
var ErrRecipientNotFound = errors.New("recipient not found")

// ValidationError reports malformed request input, including attempts to
// fulfill a request that has already been decided.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid blood request: " + e.Reason
}

// Status tracks a blood request through intake and fulfillment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusFulfilled Status = "Fulfilled"
	StatusRejected  Status = "Rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusFulfilled, StatusRejected:
		return true
	}
	return false
}

// Decided reports whether the request has left Pending.
func (s Status) Decided() bool {
	return s == StatusFulfilled || s == StatusRejected
}

// Recipient is the patient (or hospital contact) a request is filed for.
type Recipient struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	HospitalName string      `json:"hospital_name,omitempty"`
	BloodGroup   blood.Group `json:"blood_group"`
	CreatedAt    time.Time   `json:"created_at"`
}

// BloodRequest asks for a number of units of one group.
type BloodRequest struct {
	ID          uuid.UUID   `json:"id"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	BloodGroup  blood.Group `json:"blood_group"`
	Units       int         `json:"units"`
	Status      Status      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
