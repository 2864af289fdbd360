package donor

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/pkg/blood"
)

// ErrNotFound is returned when a donor ID is unknown.
var ErrNotFound = errors.New("donor not found")

// ValidationError reports malformed donor input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid donor: " + e.Reason
}

// Donor maps to the donor table.
type Donor struct {
	ID          uuid.UUID   `db:"donor_id" json:"donor_id"`
	FirstName   string      `db:"first_name" json:"first_name"`
	LastName    string      `db:"last_name" json:"last_name"`
	DateOfBirth time.Time   `db:"date_of_birth" json:"date_of_birth"`
	Gender      string      `db:"gender" json:"gender,omitempty"`
	PhoneNumber string      `db:"phone_number" json:"phone_number,omitempty"`
	BloodGroup  blood.Group `db:"blood_group" json:"blood_group"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// EligibleDonor is a donor cleared to donate again, with the timestamp of
// their most recent donation (nil for donors who never donated).
type EligibleDonor struct {
	Donor
	LastDonationDate *time.Time `json:"last_donation_date,omitempty"`
}
