package request

import (
	"context"

	"github.com/google/uuid"
)

type RecipientRepository interface {
	Create(ctx context.Context, r *Recipient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recipient, error)
}

type Repository interface {
	Create(ctx context.Context, br *BloodRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*BloodRequest, int, error)

	// UpdateStatusFrom moves the request to `to` only if it is currently
	// in `from`, reporting whether a row changed. Losing the conditional
	// write means another fulfillment decided the request first.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
}
