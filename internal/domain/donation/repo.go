package donation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts t. Returns DuplicateBagError when the bag already has
	// a donation on record.
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Transaction, error)
	List(ctx context.Context, limit, offset int) ([]*Transaction, int, error)
}
