package donor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	Update(ctx context.Context, d *Donor) error
	List(ctx context.Context, limit, offset int) ([]*Donor, int, error)
	Count(ctx context.Context) (int, error)

	// ListEligible returns donors whose most recent donation is absent or
	// strictly before cutoff, ordered ascending by last donation with
	// never-donated donors first.
	ListEligible(ctx context.Context, cutoff time.Time) ([]*EligibleDonor, error)
}
