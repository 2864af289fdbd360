package bag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/pkg/blood"
)

// Service is the bag registry: it owns bag creation, the status state
// machine, the expiry sweep, and the availability query.
type Service struct {
	bags Repository
	log  zerolog.Logger
}

func NewService(bags Repository, logger zerolog.Logger) *Service {
	return &Service{bags: bags, log: logger}
}

// Create registers a new bag. The bag always enters Quarantined regardless
// of the status the caller supplied; clearing a bag for use is the donation
// recorder's job.
func (s *Service) Create(ctx context.Context, b *Bag) (*Bag, error) {
	if b.ID == "" {
		return nil, &ValidationError{Reason: "bag_id is required"}
	}
	if len(b.ID) > MaxIDLength {
		return nil, &ValidationError{Reason: fmt.Sprintf("bag_id exceeds %d characters", MaxIDLength)}
	}
	if !b.BloodGroup.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown blood group %q", b.BloodGroup)}
	}
	if b.DonationDate.IsZero() || b.ExpiryDate.IsZero() {
		return nil, &ValidationError{Reason: "donation_date and expiry_date are required"}
	}
	if !b.ExpiryDate.After(b.DonationDate) {
		return nil, &ValidationError{Reason: "expiry_date must be after donation_date"}
	}

	b.Status = StatusQuarantined
	if err := s.bags.Create(ctx, b); err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return nil, fmt.Errorf("bag %s: %w", b.ID, ErrDuplicateID)
		}
		return nil, fmt.Errorf("create bag: %w", err)
	}
	return b, nil
}

// Transition moves a bag along a legal state machine edge. Re-requesting a
// state the bag is already in is a no-op success, so retried triggers are
// harmless. The underlying conditional update serializes concurrent calls
// on the same bag: whichever caller loses the race observes the bag outside
// the legal source state and gets an IllegalTransitionError.
func (s *Service) Transition(ctx context.Context, id string, target Status) error {
	if !target.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown status %q", target)}
	}

	if src, ok := legalSource[target]; ok {
		moved, err := s.bags.UpdateStatusFrom(ctx, id, src, target)
		if err != nil {
			return fmt.Errorf("transition bag %s: %w", id, err)
		}
		if moved {
			return nil
		}
	}

	// Nothing moved: distinguish unknown bag, idempotent repeat, and
	// illegal edge.
	current, err := s.bags.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if current == target {
		return nil
	}
	return &IllegalTransitionError{BagID: id, From: current, To: target}
}

// GetStatus returns the bag's current state.
func (s *Service) GetStatus(ctx context.Context, id string) (Status, error) {
	return s.bags.GetStatus(ctx, id)
}

// Get returns the full bag row.
func (s *Service) Get(ctx context.Context, id string) (*Bag, error) {
	return s.bags.Get(ctx, id)
}

// List returns bags matching the filter.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Bag, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, &ValidationError{Reason: fmt.Sprintf("unknown status %q", f.Status)}
	}
	if f.BloodGroup != "" && !f.BloodGroup.Valid() {
		return nil, 0, &ValidationError{Reason: fmt.Sprintf("unknown blood group %q", f.BloodGroup)}
	}
	return s.bags.List(ctx, f, limit, offset)
}

// CountAvailable reports how many usable bags of the group exist as of the
// given date: status Available and not yet expired. Pure read.
func (s *Service) CountAvailable(ctx context.Context, group blood.Group, asOf time.Time) (int, error) {
	if !group.Valid() {
		return 0, &ValidationError{Reason: fmt.Sprintf("unknown blood group %q", group)}
	}
	return s.bags.CountAvailable(ctx, group, asOf)
}

// CountByStatus counts all bags in the given state.
func (s *Service) CountByStatus(ctx context.Context, status Status) (int, error) {
	if !status.Valid() {
		return 0, &ValidationError{Reason: fmt.Sprintf("unknown status %q", status)}
	}
	return s.bags.CountByStatus(ctx, status)
}

// SelectForDispense returns up to limit Available, non-expired bag IDs of
// the group, earliest expiry first. Inside a transaction the rows come back
// locked, so two concurrent fulfillments cannot claim the same bag.
func (s *Service) SelectForDispense(ctx context.Context, group blood.Group, limit int, asOf time.Time) ([]string, error) {
	if !group.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown blood group %q", group)}
	}
	return s.bags.SelectForDispense(ctx, group, limit, asOf)
}

// SweepExpired retires every Available bag whose expiry date is strictly
// before asOf. Each bag's transition commits independently; a failure on
// one bag is logged and the scan continues, so an interrupted sweep is
// safe to re-run. Returns the number of bags transitioned.
func (s *Service) SweepExpired(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.bags.ListExpired(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("list expired bags: %w", err)
	}

	count := 0
	for _, id := range ids {
		if err := s.Transition(ctx, id, StatusExpired); err != nil {
			// A concurrent dispense may have claimed the bag between the
			// scan and the transition; that bag is simply no longer ours
			// to expire.
			s.log.Warn().Err(err).Str("bag_id", id).Msg("sweep: skipping bag")
			continue
		}
		count++
	}

	s.log.Info().
		Time("as_of", asOf).
		Int("scanned", len(ids)).
		Int("expired", count).
		Msg("expiry sweep complete")

	return count, nil
}
