package bag

import (
	"context"
	"time"

	"github.com/bloodbank/bloodbank/pkg/blood"
)

// Filter narrows List results.
type Filter struct {
	Status     Status
	BloodGroup blood.Group
}

type Repository interface {
	// Create inserts b. Returns ErrDuplicateID when the bag ID is taken.
	Create(ctx context.Context, b *Bag) error
	Get(ctx context.Context, id string) (*Bag, error)
	GetStatus(ctx context.Context, id string) (Status, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Bag, int, error)

	// UpdateStatusFrom moves the bag to `to` only if it is currently in
	// `from`, reporting whether a row changed. The conditional write is
	// what serializes concurrent transitions on the same bag.
	UpdateStatusFrom(ctx context.Context, id string, from, to Status) (bool, error)

	// ListExpired returns IDs of Available bags with expiry_date < asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]string, error)

	// CountAvailable counts Available bags of the group with
	// expiry_date >= asOf.
	CountAvailable(ctx context.Context, group blood.Group, asOf time.Time) (int, error)

	// CountByStatus counts all bags in the given state.
	CountByStatus(ctx context.Context, status Status) (int, error)

	// SelectForDispense returns up to limit Available, non-expired bag IDs
	// of the group, earliest expiry first, locking the rows for the
	// caller's transaction.
	SelectForDispense(ctx context.Context, group blood.Group, limit int, asOf time.Time) ([]string, error)
}
