package donation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/bag"
	"github.com/bloodbank/bloodbank/internal/domain/donor"
	"github.com/bloodbank/bloodbank/internal/domain/staff"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

// MaxUnitsPerVisit caps how many bags one donor can fill in a single
// sitting.
const MaxUnitsPerVisit = 3

// DefaultShelfLife is how long a bag stays usable when the caller does not
// supply an explicit expiry date.
const DefaultShelfLife = 365 * 24 * time.Hour

// DonorDirectory resolves donor references.
type DonorDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*donor.Donor, error)
}

// StaffDirectory resolves staff references.
type StaffDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*staff.Staff, error)
}

// BagRegistry is the slice of the bag service the recorder drives: new
// bags enter Quarantined, and a committed donation clears them to
// Available.
type BagRegistry interface {
	Create(ctx context.Context, b *bag.Bag) (*bag.Bag, error)
	Transition(ctx context.Context, id string, target bag.Status) error
}

// RecordInput is one donation visit.
type RecordInput struct {
	DonorID   uuid.UUID
	StaffID   uuid.UUID
	BagID     string // optional; generated when empty
	Units     int    // defaults to 1
	DonatedAt time.Time
	ExpiryAt  time.Time // optional; DonatedAt + shelf life when zero
}

type Service struct {
	txns   Repository
	donors DonorDirectory
	staff  StaffDirectory
	bags   BagRegistry
	runner db.Runner
	log    zerolog.Logger
}

func NewService(txns Repository, donors DonorDirectory, staffDir StaffDirectory,
	bags BagRegistry, runner db.Runner, logger zerolog.Logger) *Service {
	return &Service{
		txns:   txns,
		donors: donors,
		staff:  staffDir,
		bags:   bags,
		runner: runner,
		log:    logger,
	}
}

var groupCode = strings.NewReplacer("+", "P", "-", "N")

// newBagID builds an id like BAG-OP-3F9A1C-2: blood group, a random
// fragment, and the unit number within the visit.
func newBagID(group string, unit int) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("BAG-%s-%s-%d", groupCode.Replace(group), frag, unit)
}

// Record registers a donation visit. For each unit it creates a bag in
// Quarantined, inserts the transaction row, and clears the bag to
// Available — all inside one database transaction, so a failure at any
// step leaves no partial state: either every bag of the visit exists and
// is Available with its transaction row, or nothing was written.
func (s *Service) Record(ctx context.Context, in RecordInput) ([]*Transaction, error) {
	if in.Units == 0 {
		in.Units = 1
	}
	if in.Units < 1 || in.Units > MaxUnitsPerVisit {
		return nil, &ValidationError{Reason: fmt.Sprintf("units must be between 1 and %d", MaxUnitsPerVisit)}
	}
	if in.BagID != "" && in.Units != 1 {
		return nil, &ValidationError{Reason: "an explicit bag_id is only valid for a single unit"}
	}
	if in.DonatedAt.IsZero() {
		in.DonatedAt = time.Now()
	}
	if in.ExpiryAt.IsZero() {
		in.ExpiryAt = in.DonatedAt.Add(DefaultShelfLife)
	}

	d, err := s.donors.Get(ctx, in.DonorID)
	if err != nil {
		if errors.Is(err, donor.ErrNotFound) {
			return nil, &ReferenceError{Kind: "donor", ID: in.DonorID}
		}
		return nil, fmt.Errorf("resolve donor: %w", err)
	}
	if _, err := s.staff.Get(ctx, in.StaffID); err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return nil, &ReferenceError{Kind: "staff", ID: in.StaffID}
		}
		return nil, fmt.Errorf("resolve staff: %w", err)
	}

	var recorded []*Transaction
	err = s.runner.InTx(ctx, func(ctx context.Context) error {
		for unit := 1; unit <= in.Units; unit++ {
			bagID := in.BagID
			if bagID == "" {
				bagID = newBagID(string(d.BloodGroup), unit)
			}

			donorID := in.DonorID
			if _, err := s.bags.Create(ctx, &bag.Bag{
				ID:           bagID,
				BloodGroup:   d.BloodGroup,
				DonationDate: in.DonatedAt,
				ExpiryDate:   in.ExpiryAt,
				DonorID:      &donorID,
			}); err != nil {
				if errors.Is(err, bag.ErrDuplicateID) {
					return &DuplicateBagError{BagID: bagID}
				}
				return err
			}

			t := &Transaction{
				DonorID:   in.DonorID,
				StaffID:   in.StaffID,
				BagID:     bagID,
				DonatedAt: in.DonatedAt,
			}
			if err := s.txns.Create(ctx, t); err != nil {
				return err
			}

			if err := s.bags.Transition(ctx, bagID, bag.StatusAvailable); err != nil {
				return err
			}
			recorded = append(recorded, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("donor_id", in.DonorID.String()).
		Int("units", len(recorded)).
		Msg("donation recorded")
	return recorded, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.txns.GetByID(ctx, id)
}

func (s *Service) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Transaction, error) {
	return s.txns.ListByDonor(ctx, donorID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Transaction, int, error) {
	return s.txns.List(ctx, limit, offset)
}
