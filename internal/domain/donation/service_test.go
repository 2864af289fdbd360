package donation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/bag"
	"github.com/bloodbank/bloodbank/internal/domain/donor"
	"github.com/bloodbank/bloodbank/internal/domain/staff"
	"github.com/bloodbank/bloodbank/pkg/blood"
)

// -- In-memory transaction repository --

type memRepo struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Transaction
	byBag  map[string]uuid.UUID
	failAt int // fail the Nth Create when > 0
	calls  int
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:  make(map[uuid.UUID]*Transaction),
		byBag: make(map[string]uuid.UUID),
	}
}

func (m *memRepo) Create(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAt > 0 && m.calls == m.failAt {
		return fmt.Errorf("insert donation: connection reset")
	}
	if _, taken := m.byBag[t.BagID]; taken {
		return &DuplicateBagError{BagID: t.BagID}
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	cp := *t
	m.byID[t.ID] = &cp
	m.byBag[t.BagID] = t.ID
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Transaction
	for _, t := range m.byID {
		if t.DonorID == donorID {
			cp := *t
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DonatedAt.After(items[j].DonatedAt) })
	return items, nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]*Transaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Transaction
	for _, t := range m.byID {
		cp := *t
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *memRepo) snapshot() map[uuid.UUID]Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[uuid.UUID]Transaction, len(m.byID))
	for id, t := range m.byID {
		snap[id] = *t
	}
	return snap
}

func (m *memRepo) restore(snap map[uuid.UUID]Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[uuid.UUID]*Transaction, len(snap))
	m.byBag = make(map[string]uuid.UUID, len(snap))
	for id, t := range snap {
		cp := t
		m.byID[id] = &cp
		m.byBag[t.BagID] = id
	}
}

// -- In-memory bag repository backing a real bag.Service --

type memBagRepo struct {
	mu   sync.Mutex
	bags map[string]*bag.Bag
}

func newMemBagRepo() *memBagRepo {
	return &memBagRepo{bags: make(map[string]*bag.Bag)}
}

func (m *memBagRepo) Create(_ context.Context, b *bag.Bag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bags[b.ID]; exists {
		return bag.ErrDuplicateID
	}
	cp := *b
	m.bags[b.ID] = &cp
	return nil
}

func (m *memBagRepo) Get(_ context.Context, id string) (*bag.Bag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bags[id]
	if !ok {
		return nil, bag.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBagRepo) GetStatus(_ context.Context, id string) (bag.Status, error) {
	b, err := m.Get(context.Background(), id)
	if err != nil {
		return "", err
	}
	return b.Status, nil
}

func (m *memBagRepo) List(_ context.Context, f bag.Filter, limit, offset int) ([]*bag.Bag, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*bag.Bag
	for _, b := range m.bags {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.BloodGroup != "" && b.BloodGroup != f.BloodGroup {
			continue
		}
		cp := *b
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *memBagRepo) UpdateStatusFrom(_ context.Context, id string, from, to bag.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bags[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (m *memBagRepo) ListExpired(_ context.Context, asOf time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, b := range m.bags {
		if b.Status == bag.StatusAvailable && b.ExpiryDate.Before(asOf) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memBagRepo) CountAvailable(_ context.Context, group blood.Group, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bags {
		if b.Status == bag.StatusAvailable && b.BloodGroup == group && !b.ExpiryDate.Before(asOf) {
			n++
		}
	}
	return n, nil
}

func (m *memBagRepo) CountByStatus(_ context.Context, status bag.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bags {
		if b.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memBagRepo) SelectForDispense(_ context.Context, group blood.Group, limit int, asOf time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var candidates []*bag.Bag
	for _, b := range m.bags {
		if b.Status == bag.StatusAvailable && b.BloodGroup == group && !b.ExpiryDate.Before(asOf) {
			candidates = append(candidates, b)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ExpiryDate.Before(candidates[j].ExpiryDate)
	})
	var ids []string
	for i := 0; i < len(candidates) && i < limit; i++ {
		ids = append(ids, candidates[i].ID)
	}
	return ids, nil
}

func (m *memBagRepo) snapshot() map[string]bag.Bag {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]bag.Bag, len(m.bags))
	for id, b := range m.bags {
		snap[id] = *b
	}
	return snap
}

func (m *memBagRepo) restore(snap map[string]bag.Bag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bags = make(map[string]*bag.Bag, len(snap))
	for id, b := range snap {
		cp := b
		m.bags[id] = &cp
	}
}

// -- Donor and staff directories --

type memDonors struct{ donors map[uuid.UUID]*donor.Donor }

func (m *memDonors) Get(_ context.Context, id uuid.UUID) (*donor.Donor, error) {
	d, ok := m.donors[id]
	if !ok {
		return nil, donor.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

type memStaff struct{ staff map[uuid.UUID]*staff.Staff }

func (m *memStaff) Get(_ context.Context, id uuid.UUID) (*staff.Staff, error) {
	s, ok := m.staff[id]
	if !ok {
		return nil, staff.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// -- Fake transaction runner: snapshots state, restores on error --

type fakeRunner struct {
	txns *memRepo
	bags *memBagRepo

	// beforeCommit, when set, runs after fn succeeds but before the
	// writes count as committed. It receives the pre-transaction
	// snapshots, which is what a concurrent reader would see at that
	// point.
	beforeCommit func(txns map[uuid.UUID]Transaction, bags map[string]bag.Bag)
}

func (r *fakeRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tSnap := r.txns.snapshot()
	bSnap := r.bags.snapshot()
	if err := fn(ctx); err != nil {
		r.txns.restore(tSnap)
		r.bags.restore(bSnap)
		return err
	}
	if r.beforeCommit != nil {
		r.beforeCommit(tSnap, bSnap)
	}
	return nil
}

// -- Fixture --

type fixture struct {
	svc     *Service
	txns    *memRepo
	bagRepo *memBagRepo
	bagSvc  *bag.Service
	runner  *fakeRunner
	donorID uuid.UUID
	staffID uuid.UUID
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newFixture() *fixture {
	txns := newMemRepo()
	bagRepo := newMemBagRepo()
	bagSvc := bag.NewService(bagRepo, zerolog.Nop())

	donorID := uuid.New()
	staffID := uuid.New()
	donors := &memDonors{donors: map[uuid.UUID]*donor.Donor{
		donorID: {ID: donorID, FirstName: "Asha", LastName: "Patel", BloodGroup: blood.APositive},
	}}
	staffDir := &memStaff{staff: map[uuid.UUID]*staff.Staff{
		staffID: {ID: staffID, FirstName: "Priya", LastName: "Rao", Role: "nurse"},
	}}

	runner := &fakeRunner{txns: txns, bags: bagRepo}
	svc := NewService(txns, donors, staffDir, bagSvc, runner, zerolog.Nop())
	return &fixture{svc: svc, txns: txns, bagRepo: bagRepo, bagSvc: bagSvc, runner: runner, donorID: donorID, staffID: staffID}
}

// -- Tests --

func TestRecord_SingleUnit(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	recorded, err := fx.svc.Record(ctx, RecordInput{
		DonorID:   fx.donorID,
		StaffID:   fx.staffID,
		DonatedAt: date(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(recorded) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(recorded))
	}

	txn := recorded[0]
	if !strings.HasPrefix(txn.BagID, "BAG-AP-") {
		t.Errorf("expected generated bag id with group code, got %s", txn.BagID)
	}

	b, err := fx.bagRepo.Get(ctx, txn.BagID)
	if err != nil {
		t.Fatalf("bag missing after record: %v", err)
	}
	if b.Status != bag.StatusAvailable {
		t.Errorf("expected bag Available after commit, got %s", b.Status)
	}
	if b.BloodGroup != blood.APositive {
		t.Errorf("expected bag group from donor record, got %s", b.BloodGroup)
	}
	if b.DonorID == nil || *b.DonorID != fx.donorID {
		t.Errorf("expected bag linked to donor, got %v", b.DonorID)
	}
	wantExpiry := date(2024, 1, 1).Add(DefaultShelfLife)
	if !b.ExpiryDate.Equal(wantExpiry) {
		t.Errorf("expected default expiry %s, got %s", wantExpiry, b.ExpiryDate)
	}
}

func TestRecord_ExplicitBagID(t *testing.T) {
	fx := newFixture()

	recorded, err := fx.svc.Record(context.Background(), RecordInput{
		DonorID:   fx.donorID,
		StaffID:   fx.staffID,
		BagID:     "BAG-MANUAL-01",
		DonatedAt: date(2024, 1, 1),
		ExpiryAt:  date(2024, 2, 1),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if recorded[0].BagID != "BAG-MANUAL-01" {
		t.Errorf("expected explicit bag id, got %s", recorded[0].BagID)
	}
}

func TestRecord_MultiUnit(t *testing.T) {
	fx := newFixture()

	recorded, err := fx.svc.Record(context.Background(), RecordInput{
		DonorID:   fx.donorID,
		StaffID:   fx.staffID,
		Units:     3,
		DonatedAt: date(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(recorded) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(recorded))
	}
	seen := make(map[string]bool)
	for _, txn := range recorded {
		if seen[txn.BagID] {
			t.Errorf("duplicate bag id %s across units", txn.BagID)
		}
		seen[txn.BagID] = true
		status, err := fx.bagRepo.GetStatus(context.Background(), txn.BagID)
		if err != nil || status != bag.StatusAvailable {
			t.Errorf("bag %s: expected Available, got %s (%v)", txn.BagID, status, err)
		}
	}
}

func TestRecord_Validation(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		in   RecordInput
	}{
		{"too many units", RecordInput{DonorID: fx.donorID, StaffID: fx.staffID, Units: MaxUnitsPerVisit + 1}},
		{"negative units", RecordInput{DonorID: fx.donorID, StaffID: fx.staffID, Units: -1}},
		{"explicit bag with multiple units", RecordInput{DonorID: fx.donorID, StaffID: fx.staffID, BagID: "BAG-X", Units: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.Record(ctx, tc.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRecord_UnknownReferences(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Record(ctx, RecordInput{DonorID: uuid.New(), StaffID: fx.staffID})
	var re *ReferenceError
	if !errors.As(err, &re) || re.Kind != "donor" {
		t.Errorf("expected donor ReferenceError, got %v", err)
	}

	_, err = fx.svc.Record(ctx, RecordInput{DonorID: fx.donorID, StaffID: uuid.New()})
	if !errors.As(err, &re) || re.Kind != "staff" {
		t.Errorf("expected staff ReferenceError, got %v", err)
	}
}

func TestRecord_DuplicateBag(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Record(ctx, RecordInput{
		DonorID: fx.donorID, StaffID: fx.staffID,
		BagID: "BAG-DUP", DonatedAt: date(2024, 1, 1), ExpiryAt: date(2024, 2, 1),
	})
	if err != nil {
		t.Fatalf("first record: %v", err)
	}

	_, err = fx.svc.Record(ctx, RecordInput{
		DonorID: fx.donorID, StaffID: fx.staffID,
		BagID: "BAG-DUP", DonatedAt: date(2024, 1, 2), ExpiryAt: date(2024, 2, 2),
	})
	var de *DuplicateBagError
	if !errors.As(err, &de) || de.BagID != "BAG-DUP" {
		t.Fatalf("expected DuplicateBagError for BAG-DUP, got %v", err)
	}

	// The failed attempt must not have produced a second transaction.
	items, total, _ := fx.txns.List(ctx, 100, 0)
	if total != 1 || len(items) != 1 {
		t.Errorf("expected exactly 1 transaction after duplicate rejection, got %d", total)
	}
}

func TestRecord_RollbackOnMidVisitFailure(t *testing.T) {
	fx := newFixture()
	fx.txns.failAt = 2 // second unit's insert fails

	_, err := fx.svc.Record(context.Background(), RecordInput{
		DonorID: fx.donorID, StaffID: fx.staffID,
		Units: 3, DonatedAt: date(2024, 1, 1),
	})
	if err == nil {
		t.Fatal("expected record to fail")
	}

	// Nothing from the visit survives: no transactions, no bags.
	_, total, _ := fx.txns.List(context.Background(), 100, 0)
	if total != 0 {
		t.Errorf("expected 0 transactions after rollback, got %d", total)
	}
	bags, n, _ := fx.bagRepo.List(context.Background(), bag.Filter{}, 100, 0)
	if n != 0 {
		ids := make([]string, 0, len(bags))
		for _, b := range bags {
			ids = append(ids, b.ID)
		}
		t.Errorf("expected 0 bags after rollback, got %d: %v", n, ids)
	}
}

// A reader positioned just before the commit must never see a recorded
// transaction whose bag is still quarantined. The transaction rows and
// the Available bags become visible together, or not at all.
func TestRecord_ReadersSeeBothOrNeither(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	// One committed visit in the books before the observer is parked.
	first, err := fx.svc.Record(ctx, RecordInput{
		DonorID: fx.donorID, StaffID: fx.staffID,
		DonatedAt: date(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("first record: %v", err)
	}

	observed := false
	fx.runner.beforeCommit = func(txns map[uuid.UUID]Transaction, bags map[string]bag.Bag) {
		observed = true
		if len(txns) != 1 {
			t.Errorf("reader should see only the committed transaction, saw %d", len(txns))
		}
		for _, txn := range txns {
			if txn.BagID != first[0].BagID {
				t.Errorf("reader sees uncommitted transaction for bag %s", txn.BagID)
				continue
			}
			b, ok := bags[txn.BagID]
			if !ok {
				t.Errorf("reader sees transaction for %s with no bag", txn.BagID)
				continue
			}
			if b.Status != bag.StatusAvailable {
				t.Errorf("reader sees transaction for %s while bag is %s", txn.BagID, b.Status)
			}
		}
	}

	second, err := fx.svc.Record(ctx, RecordInput{
		DonorID: fx.donorID, StaffID: fx.staffID,
		Units: 2, DonatedAt: date(2024, 1, 2),
	})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if !observed {
		t.Fatal("commit barrier never reached")
	}

	// After the commit both sides of the visit are visible together.
	for _, txn := range second {
		status, err := fx.bagRepo.GetStatus(ctx, txn.BagID)
		if err != nil || status != bag.StatusAvailable {
			t.Errorf("bag %s: expected Available after commit, got %s (%v)", txn.BagID, status, err)
		}
	}
	if _, total, _ := fx.txns.List(ctx, 100, 0); total != 3 {
		t.Errorf("expected 3 transactions after both visits, got %d", total)
	}
}

// Walks a bag through its whole life: recorded and cleared for use, then
// retired by the expiry sweep, and invisible to availability afterwards.
func TestDonationToExpiryLifecycle(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	recorded, err := fx.svc.Record(ctx, RecordInput{
		DonorID: fx.donorID, StaffID: fx.staffID,
		DonatedAt: date(2024, 1, 1), ExpiryAt: date(2024, 2, 1),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	bagID := recorded[0].BagID

	n, err := fx.bagSvc.CountAvailable(ctx, blood.APositive, date(2024, 1, 15))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 available bag mid-life, got %d (%v)", n, err)
	}

	swept, err := fx.bagSvc.SweepExpired(ctx, date(2024, 2, 2))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected sweep to retire 1 bag, got %d", swept)
	}
	status, _ := fx.bagRepo.GetStatus(ctx, bagID)
	if status != bag.StatusExpired {
		t.Errorf("expected bag Expired after sweep, got %s", status)
	}

	n, err = fx.bagSvc.CountAvailable(ctx, blood.APositive, date(2024, 2, 2))
	if err != nil || n != 0 {
		t.Errorf("expected 0 available bags after sweep, got %d (%v)", n, err)
	}
}
