package bag

import (
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/pkg/blood"
)

// Status is a blood bag's lifecycle state.
type Status string

const (
	StatusQuarantined Status = "Quarantined"
	StatusAvailable   Status = "Available"
	StatusUsed        Status = "Used"
	StatusExpired     Status = "Expired"
)

// legalSource maps each transition target to its only legal source state.
// Quarantined has no entry: no edge re-enters it. Used and Expired are
// terminal because they appear as no target's source.
var legalSource = map[Status]Status{
	StatusAvailable: StatusQuarantined,
	StatusUsed:      StatusAvailable,
	StatusExpired:   StatusAvailable,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusQuarantined, StatusAvailable, StatusUsed, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusUsed || s == StatusExpired
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	src, ok := legalSource[to]
	return ok && src == from
}

// Bag maps to the blood_bag table. Bag IDs are caller-assigned (collection
// stations label the physical bag before it reaches the system).
type Bag struct {
	ID           string      `db:"bag_id" json:"bag_id"`
	BloodGroup   blood.Group `db:"blood_group" json:"blood_group"`
	DonationDate time.Time   `db:"donation_date" json:"donation_date"`
	ExpiryDate   time.Time   `db:"expiry_date" json:"expiry_date"`
	Status       Status      `db:"status" json:"status"`
	DonorID      *uuid.UUID  `db:"donor_id" json:"donor_id,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// MaxIDLength is the widest bag identifier the schema accepts.
const MaxIDLength = 20
