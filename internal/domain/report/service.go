package report

import (
	"context"
	"fmt"
	"time"

	"github.com/bloodbank/bloodbank/internal/domain/bag"
	"github.com/bloodbank/bloodbank/pkg/blood"
)

// Inventory is the slice of the bag registry the reports read from.
type Inventory interface {
	CountAvailable(ctx context.Context, group blood.Group, asOf time.Time) (int, error)
	CountByStatus(ctx context.Context, status bag.Status) (int, error)
}

// DonorDirectory provides the registered donor count.
type DonorDirectory interface {
	Count(ctx context.Context) (int, error)
}

// GroupStock is the available unit count for one blood group.
type GroupStock struct {
	BloodGroup blood.Group `json:"blood_group"`
	Units      int         `json:"units"`
}

// Dashboard summarizes the bank at a glance.
type Dashboard struct {
	Donors        int `json:"donors"`
	AvailableBags int `json:"available_bags"`
}

type Service struct {
	inventory Inventory
	donors    DonorDirectory
}

func NewService(inventory Inventory, donors DonorDirectory) *Service {
	return &Service{inventory: inventory, donors: donors}
}

// Stock reports the usable unit count per blood group as of the given
// date, in the canonical group order.
func (s *Service) Stock(ctx context.Context, asOf time.Time) ([]GroupStock, error) {
	groups := blood.Groups()
	stock := make([]GroupStock, 0, len(groups))
	for _, g := range groups {
		n, err := s.inventory.CountAvailable(ctx, g, asOf)
		if err != nil {
			return nil, fmt.Errorf("count %s stock: %w", g, err)
		}
		stock = append(stock, GroupStock{BloodGroup: g, Units: n})
	}
	return stock, nil
}

// Summary returns the dashboard counters.
func (s *Service) Summary(ctx context.Context) (*Dashboard, error) {
	donors, err := s.donors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count donors: %w", err)
	}
	available, err := s.inventory.CountByStatus(ctx, bag.StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("count available bags: %w", err)
	}
	return &Dashboard{Donors: donors, AvailableBags: available}, nil
}
