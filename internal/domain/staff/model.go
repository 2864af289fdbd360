package staff

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no staff member matches the given id.
var ErrNotFound = errors.New("staff member not found")

// ValidationError reports a staff record that fails input checks.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid staff member: " + e.Reason
}

// Staff is a blood bank employee authorized to record donations.
type Staff struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Role        string    `json:"role"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
