package donor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultCooldownDays is the minimum interval between donations.
const DefaultCooldownDays = 90

type Service struct {
	donors Repository
}

func NewService(donors Repository) *Service {
	return &Service{donors: donors}
}

func validate(d *Donor) error {
	if d.FirstName == "" {
		return &ValidationError{Reason: "first_name is required"}
	}
	if d.LastName == "" {
		return &ValidationError{Reason: "last_name is required"}
	}
	if !d.BloodGroup.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown blood group %q", d.BloodGroup)}
	}
	if d.DateOfBirth.IsZero() || !d.DateOfBirth.Before(time.Now()) {
		return &ValidationError{Reason: "date_of_birth must be in the past"}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, d *Donor) error {
	if err := validate(d); err != nil {
		return err
	}
	return s.donors.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return s.donors.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, d *Donor) error {
	if err := validate(d); err != nil {
		return err
	}
	return s.donors.Update(ctx, d)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Donor, int, error) {
	return s.donors.List(ctx, limit, offset)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.donors.Count(ctx)
}

// ListEligible returns donors cleared to donate as of asOf: either no
// donation on record, or the last one strictly older than the cooldown
// window. Never-donated donors sort first, then oldest last donation.
// The computation is stateless; the same inputs over unchanged data yield
// the same sequence.
func (s *Service) ListEligible(ctx context.Context, asOf time.Time, cooldownDays int) ([]*EligibleDonor, error) {
	if cooldownDays <= 0 {
		cooldownDays = DefaultCooldownDays
	}
	cutoff := asOf.AddDate(0, 0, -cooldownDays)
	return s.donors.ListEligible(ctx, cutoff)
}
