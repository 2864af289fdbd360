package staff

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	staff Repository
}

func NewService(staff Repository) *Service {
	return &Service{staff: staff}
}

func (s *Service) Create(ctx context.Context, st *Staff) error {
	if st.FirstName == "" {
		return &ValidationError{Reason: "first_name is required"}
	}
	if st.LastName == "" {
		return &ValidationError{Reason: "last_name is required"}
	}
	if st.Role == "" {
		return &ValidationError{Reason: "role is required"}
	}
	return s.staff.Create(ctx, st)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.staff.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	return s.staff.List(ctx, limit, offset)
}
