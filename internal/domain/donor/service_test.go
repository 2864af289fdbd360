package donor

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/pkg/blood"
)

// -- Mock repository --

type memRepo struct {
	donors map[uuid.UUID]*Donor
	// lastDonation holds the most recent donation timestamp per donor;
	// absent means the donor never donated.
	lastDonation map[uuid.UUID]time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		donors:       make(map[uuid.UUID]*Donor),
		lastDonation: make(map[uuid.UUID]time.Time),
	}
}

func (m *memRepo) Create(_ context.Context, d *Donor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()
	cp := *d
	m.donors[d.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Donor, error) {
	d, ok := m.donors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, d *Donor) error {
	if _, ok := m.donors[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	m.donors[d.ID] = &cp
	return nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]*Donor, int, error) {
	var items []*Donor
	for _, d := range m.donors {
		cp := *d
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *memRepo) Count(_ context.Context) (int, error) {
	return len(m.donors), nil
}

func (m *memRepo) ListEligible(_ context.Context, cutoff time.Time) ([]*EligibleDonor, error) {
	var items []*EligibleDonor
	for id, d := range m.donors {
		e := &EligibleDonor{Donor: *d}
		if last, ok := m.lastDonation[id]; ok {
			if !last.Before(cutoff) {
				continue
			}
			lastCopy := last
			e.LastDonationDate = &lastCopy
		}
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool {
		li, lj := items[i].LastDonationDate, items[j].LastDonationDate
		if li == nil && lj == nil {
			return items[i].ID.String() < items[j].ID.String()
		}
		if li == nil {
			return true
		}
		if lj == nil {
			return false
		}
		return li.Before(*lj)
	})
	return items, nil
}

// -- Helpers --

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func addDonor(t *testing.T, svc *Service, repo *memRepo, first string, last *time.Time) uuid.UUID {
	t.Helper()
	d := &Donor{
		FirstName:   first,
		LastName:    "Donor",
		DateOfBirth: date(1990, 1, 1),
		BloodGroup:  blood.OPositive,
	}
	if err := svc.Create(context.Background(), d); err != nil {
		t.Fatalf("create donor %s: %v", first, err)
	}
	if last != nil {
		repo.lastDonation[d.ID] = *last
	}
	return d.ID
}

// -- Tests --

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	cases := []struct {
		name  string
		donor Donor
	}{
		{"missing first name", Donor{LastName: "X", DateOfBirth: date(1990, 1, 1), BloodGroup: blood.OPositive}},
		{"missing last name", Donor{FirstName: "X", DateOfBirth: date(1990, 1, 1), BloodGroup: blood.OPositive}},
		{"bad group", Donor{FirstName: "X", LastName: "Y", DateOfBirth: date(1990, 1, 1), BloodGroup: "Q+"}},
		{"zero dob", Donor{FirstName: "X", LastName: "Y", BloodGroup: blood.OPositive}},
		{"future dob", Donor{FirstName: "X", LastName: "Y", DateOfBirth: time.Now().AddDate(1, 0, 0), BloodGroup: blood.OPositive}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.donor
			err := svc.Create(ctx, &d)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListEligible_CooldownWindow(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()
	asOf := date(2024, 6, 1)
	cutoff := asOf.AddDate(0, 0, -90) // 2024-03-03

	never := addDonor(t, svc, repo, "Never", nil)
	old := date(2024, 1, 1) // well before cutoff: eligible
	oldID := addDonor(t, svc, repo, "Old", &old)
	recent := date(2024, 5, 1) // within cooldown: excluded
	addDonor(t, svc, repo, "Recent", &recent)
	boundary := cutoff // exactly at cutoff: not strictly older, excluded
	addDonor(t, svc, repo, "Boundary", &boundary)

	items, err := svc.ListEligible(ctx, asOf, 90)
	if err != nil {
		t.Fatalf("ListEligible error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 eligible donors, got %d", len(items))
	}
	// Never-donated donors take priority, then ascending last donation.
	if items[0].ID != never || items[0].LastDonationDate != nil {
		t.Errorf("expected never-donated donor first, got %s", items[0].FirstName)
	}
	if items[1].ID != oldID {
		t.Errorf("expected oldest donor second, got %s", items[1].FirstName)
	}
	if items[1].LastDonationDate == nil || !items[1].LastDonationDate.Equal(old) {
		t.Errorf("expected last donation %s, got %v", old, items[1].LastDonationDate)
	}
}

func TestListEligible_Ordering(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	asOf := date(2024, 6, 1)

	d2 := date(2024, 2, 1)
	d1 := date(2024, 1, 1)
	addDonor(t, svc, repo, "Second", &d2)
	addDonor(t, svc, repo, "First", &d1)
	addDonor(t, svc, repo, "Fresh", nil)

	items, err := svc.ListEligible(context.Background(), asOf, 90)
	if err != nil {
		t.Fatalf("ListEligible error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 eligible donors, got %d", len(items))
	}
	want := []string{"Fresh", "First", "Second"}
	for i, name := range want {
		if items[i].FirstName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, items[i].FirstName)
		}
	}
}

func TestListEligible_Repeatable(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	asOf := date(2024, 6, 1)

	last := date(2024, 1, 1)
	addDonor(t, svc, repo, "A", &last)
	addDonor(t, svc, repo, "B", nil)

	first, err := svc.ListEligible(context.Background(), asOf, 90)
	if err != nil {
		t.Fatalf("ListEligible error: %v", err)
	}
	second, err := svc.ListEligible(context.Background(), asOf, 90)
	if err != nil {
		t.Fatalf("ListEligible error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result size changed between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d changed between runs", i)
		}
	}
}

func TestListEligible_DefaultCooldown(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	asOf := date(2024, 6, 1)

	recent := asOf.AddDate(0, 0, -30)
	addDonor(t, svc, repo, "Recent", &recent)

	// cooldownDays <= 0 falls back to the 90-day default, so a 30-day-old
	// donation still blocks eligibility.
	items, err := svc.ListEligible(context.Background(), asOf, 0)
	if err != nil {
		t.Fatalf("ListEligible error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no eligible donors, got %d", len(items))
	}
}
