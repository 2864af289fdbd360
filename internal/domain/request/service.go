package request

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/bag"
	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/pkg/blood"
)

// Inventory is the slice of the bag registry that fulfillment drives.
type Inventory interface {
	SelectForDispense(ctx context.Context, group blood.Group, limit int, asOf time.Time) ([]string, error)
	Transition(ctx context.Context, id string, target bag.Status) error
}

// CreateInput files a request. When RecipientID is zero a new recipient is
// registered from the embedded fields; otherwise the existing one is used.
type CreateInput struct {
	RecipientID  uuid.UUID
	Name         string
	HospitalName string
	BloodGroup   blood.Group
	Units        int
}

// FulfillResult reports what a fulfillment attempt decided.
type FulfillResult struct {
	Request *BloodRequest `json:"request"`
	BagIDs  []string      `json:"bag_ids,omitempty"`
}

type Service struct {
	requests   Repository
	recipients RecipientRepository
	inventory  Inventory
	runner     db.Runner
	log        zerolog.Logger
}

func NewService(requests Repository, recipients RecipientRepository,
	inventory Inventory, runner db.Runner, logger zerolog.Logger) *Service {
	return &Service{
		requests:   requests,
		recipients: recipients,
		inventory:  inventory,
		runner:     runner,
		log:        logger,
	}
}

// Create files a Pending request, registering the recipient in the same
// transaction when the caller did not name an existing one.
func (s *Service) Create(ctx context.Context, in CreateInput) (*BloodRequest, error) {
	if in.Units < 1 {
		return nil, &ValidationError{Reason: "units must be at least 1"}
	}
	if !in.BloodGroup.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown blood group %q", in.BloodGroup)}
	}
	if in.RecipientID == uuid.Nil && in.Name == "" {
		return nil, &ValidationError{Reason: "recipient name is required"}
	}

	var br *BloodRequest
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		recipientID := in.RecipientID
		if recipientID == uuid.Nil {
			rec := &Recipient{
				Name:         in.Name,
				HospitalName: in.HospitalName,
				BloodGroup:   in.BloodGroup,
			}
			if err := s.recipients.Create(ctx, rec); err != nil {
				return fmt.Errorf("create recipient: %w", err)
			}
			recipientID = rec.ID
		} else if _, err := s.recipients.GetByID(ctx, recipientID); err != nil {
			return err
		}

		br = &BloodRequest{
			RecipientID: recipientID,
			BloodGroup:  in.BloodGroup,
			Units:       in.Units,
		}
		return s.requests.Create(ctx, br)
	})
	if err != nil {
		return nil, err
	}
	return br, nil
}

// Fulfill decides a Pending request. It claims the earliest-expiring
// Available bags of the requested group; with enough stock every claimed
// bag moves to Used and the request becomes Fulfilled, otherwise no bag is
// touched and the request becomes Rejected. The decision and the bag
// transitions commit together. A request that has already been decided
// cannot be fulfilled again.
func (s *Service) Fulfill(ctx context.Context, requestID uuid.UUID, asOf time.Time) (*FulfillResult, error) {
	var result *FulfillResult
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		br, err := s.requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if br.Status.Decided() {
			return &ValidationError{Reason: fmt.Sprintf("request %s is already %s", br.ID, br.Status)}
		}

		ids, err := s.inventory.SelectForDispense(ctx, br.BloodGroup, br.Units, asOf)
		if err != nil {
			return fmt.Errorf("select bags: %w", err)
		}

		if len(ids) < br.Units {
			moved, err := s.requests.UpdateStatusFrom(ctx, br.ID, StatusPending, StatusRejected)
			if err != nil {
				return err
			}
			if !moved {
				return &ValidationError{Reason: fmt.Sprintf("request %s was decided concurrently", br.ID)}
			}
			br.Status = StatusRejected
			result = &FulfillResult{Request: br}
			s.log.Info().
				Str("request_id", br.ID.String()).
				Str("blood_group", string(br.BloodGroup)).
				Int("units_requested", br.Units).
				Int("units_available", len(ids)).
				Msg("request rejected for insufficient stock")
			return nil
		}

		for _, id := range ids {
			if err := s.inventory.Transition(ctx, id, bag.StatusUsed); err != nil {
				return fmt.Errorf("dispense bag %s: %w", id, err)
			}
		}
		moved, err := s.requests.UpdateStatusFrom(ctx, br.ID, StatusPending, StatusFulfilled)
		if err != nil {
			return err
		}
		if !moved {
			return &ValidationError{Reason: fmt.Sprintf("request %s was decided concurrently", br.ID)}
		}
		br.Status = StatusFulfilled
		result = &FulfillResult{Request: br, BagIDs: ids}
		s.log.Info().
			Str("request_id", br.ID.String()).
			Strs("bag_ids", ids).
			Msg("request fulfilled")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) GetRecipient(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	return s.recipients.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*BloodRequest, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, &ValidationError{Reason: fmt.Sprintf("unknown status %q", status)}
	}
	return s.requests.List(ctx, status, limit, offset)
}
