package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/events"
	"branch-ledger/internal/repositories"
	"branch-ledger/pkg/constants"
	apperrors "branch-ledger/pkg/errors"
	"branch-ledger/pkg/eventbus"
	"branch-ledger/pkg/types"
)

// memStore is an in-memory stand-in for every repository. Transactions run one
// at a time under txMu, which is stricter than row locking and enough to
// exercise the services' all-or-nothing behavior.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID    int64
	branches  map[int64]entities.Branch
	locations map[int64]entities.Location
	parts     map[int64]entities.Part
	stocks    map[[2]int64]entities.Stock
	stockLocs map[int64]entities.StockLocation
	movements []entities.StockMovement
	transfers map[int64]entities.TransferRequest

	// movementHook, when set, may veto a movement insert.
	movementHook func(m entities.StockMovement) error
}

func newMemStore() *memStore {
	return &memStore{
		branches:  map[int64]entities.Branch{},
		locations: map[int64]entities.Location{},
		parts:     map[int64]entities.Part{},
		stocks:    map[[2]int64]entities.Stock{},
		stockLocs: map[int64]entities.StockLocation{},
		transfers: map[int64]entities.TransferRequest{},
	}
}

type memSnapshot struct {
	nextID    int64
	branches  map[int64]entities.Branch
	locations map[int64]entities.Location
	parts     map[int64]entities.Part
	stocks    map[[2]int64]entities.Stock
	stockLocs map[int64]entities.StockLocation
	movements []entities.StockMovement
	transfers map[int64]entities.TransferRequest
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		nextID:    s.nextID,
		branches:  cloneMap(s.branches),
		locations: cloneMap(s.locations),
		parts:     cloneMap(s.parts),
		stocks:    cloneMap(s.stocks),
		stockLocs: cloneMap(s.stockLocs),
		movements: append([]entities.StockMovement(nil), s.movements...),
		transfers: cloneMap(s.transfers),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.branches = snap.branches
	s.locations = snap.locations
	s.parts = snap.parts
	s.stocks = snap.stocks
	s.stockLocs = snap.stockLocs
	s.movements = snap.movements
	s.transfers = snap.transfers
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// -----------------------------------------------------------
// TX MANAGER
// -----------------------------------------------------------

type memTxManager struct{ store *memStore }

func (m memTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// -----------------------------------------------------------
// LOCATIONS
// -----------------------------------------------------------

func (s *memStore) FindBranch(_ context.Context, _ pgx.Tx, id int64) (*entities.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("branch", id)
	}
	return &b, nil
}

func (s *memStore) ListBranches(context.Context) ([]entities.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Branch
	for _, b := range s.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateBranch(_ context.Context, _ pgx.Tx, branch entities.Branch) (*entities.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.branches {
		if entities.NormalizeBranchName(b.Name) == entities.NormalizeBranchName(branch.Name) || b.Code == branch.Code {
			return nil, apperrors.NewLedgerError(apperrors.KindInvalidInput, "branch exists")
		}
	}
	branch.ID = s.id()
	s.branches[branch.ID] = branch
	return &branch, nil
}

func (s *memStore) FindLocation(_ context.Context, _ pgx.Tx, id int64) (*entities.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locations[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("location", id)
	}
	return &l, nil
}

func (s *memStore) FindDefaultLocation(_ context.Context, _ pgx.Tx, branchID int64) (*entities.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.BranchID == branchID && l.IsDefault {
			return &l, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memStore) EnsureDefaultLocation(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Location, error) {
	if l, err := s.FindDefaultLocation(ctx, tx, branchID); err == nil {
		return l, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := entities.Location{ID: s.id(), BranchID: branchID, Code: constants.DefaultLocationCode, IsDefault: true, CreatedAt: time.Now()}
	s.locations[l.ID] = l
	return &l, nil
}

func (s *memStore) CreateLocation(_ context.Context, _ pgx.Tx, location entities.Location) (*entities.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.BranchID == location.BranchID && l.Code == location.Code {
			return nil, apperrors.NewLedgerError(apperrors.KindInvalidInput, "location exists")
		}
	}
	location.ID = s.id()
	s.locations[location.ID] = location
	return &location, nil
}

func (s *memStore) ListLocations(_ context.Context, branchID int64) ([]entities.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Location
	for _, l := range s.locations {
		if l.BranchID == branchID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// -----------------------------------------------------------
// STOCK
// -----------------------------------------------------------

func (s *memStore) FindPart(_ context.Context, _ pgx.Tx, id int64) (*entities.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("part", id)
	}
	return &p, nil
}

func (s *memStore) CreatePart(_ context.Context, _ pgx.Tx, part entities.Part) (*entities.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	part.ID = s.id()
	s.parts[part.ID] = part
	return &part, nil
}

func (s *memStore) withCode(sl entities.StockLocation) entities.StockLocation {
	sl.LocationCode = s.locations[sl.LocationID].Code
	return sl
}

func (s *memStore) LockStockLocations(_ context.Context, _ pgx.Tx, partID, branchID int64) ([]entities.StockLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.StockLocation
	for _, sl := range s.stockLocs {
		if sl.PartID == partID && sl.BranchID == branchID {
			out = append(out, s.withCode(sl))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) EnsureStockLocation(_ context.Context, _ pgx.Tx, partID, branchID, locationID int64) (*entities.StockLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.stockLocs {
		if sl.PartID == partID && sl.BranchID == branchID && sl.LocationID == locationID {
			out := s.withCode(sl)
			return &out, nil
		}
	}
	sl := entities.StockLocation{ID: s.id(), PartID: partID, BranchID: branchID, LocationID: locationID}
	s.stockLocs[sl.ID] = sl
	out := s.withCode(sl)
	return &out, nil
}

func (s *memStore) UpdateStockLocationQuantity(_ context.Context, _ pgx.Tx, id int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.stockLocs[id]
	if !ok {
		return apperrors.NewNotFoundError("stock location", id)
	}
	if quantity < 0 {
		return fmt.Errorf("check constraint: stock_locations.quantity %d < 0", quantity)
	}
	sl.Quantity = quantity
	s.stockLocs[id] = sl
	return nil
}

func (s *memStore) SumStockLocations(_ context.Context, _ pgx.Tx, partID, branchID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumLocked(partID, branchID), nil
}

func (s *memStore) sumLocked(partID, branchID int64) int {
	total := 0
	for _, sl := range s.stockLocs {
		if sl.PartID == partID && sl.BranchID == branchID {
			total += sl.Quantity
		}
	}
	return total
}

func (s *memStore) ListStockLocations(ctx context.Context, partID, branchID int64) ([]entities.StockLocation, error) {
	return s.LockStockLocations(ctx, nil, partID, branchID)
}

func (s *memStore) LockStock(_ context.Context, _ pgx.Tx, partID, branchID int64) (*entities.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stocks[[2]int64{partID, branchID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &st, nil
}

func (s *memStore) EnsureStock(ctx context.Context, tx pgx.Tx, partID, branchID int64) (*entities.Stock, error) {
	s.mu.Lock()
	key := [2]int64{partID, branchID}
	if _, ok := s.stocks[key]; !ok {
		s.stocks[key] = entities.Stock{ID: s.id(), PartID: partID, BranchID: branchID}
	}
	s.mu.Unlock()
	return s.LockStock(ctx, tx, partID, branchID)
}

func (s *memStore) UpsertStockQuantity(_ context.Context, _ pgx.Tx, partID, branchID int64, quantity int) (*entities.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{partID, branchID}
	st, ok := s.stocks[key]
	if !ok {
		st = entities.Stock{ID: s.id(), PartID: partID, BranchID: branchID}
	}
	st.Quantity = quantity
	s.stocks[key] = st
	return &st, nil
}

func (s *memStore) SetMinStockLevel(_ context.Context, _ pgx.Tx, partID, branchID int64, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{partID, branchID}
	st, ok := s.stocks[key]
	if !ok {
		st = entities.Stock{ID: s.id(), PartID: partID, BranchID: branchID}
	}
	st.MinStockLevel = level
	s.stocks[key] = st
	return nil
}

func (s *memStore) FindStock(ctx context.Context, partID, branchID int64) (*entities.Stock, error) {
	return s.LockStock(ctx, nil, partID, branchID)
}

func (s *memStore) ListLowStock(_ context.Context, branchID int64) ([]entities.LowStockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.LowStockItem
	for _, st := range s.stocks {
		if st.MinStockLevel <= 0 || (branchID != 0 && st.BranchID != branchID) {
			continue
		}
		reserved := s.reservedLocked(st.PartID, st.BranchID, 0)
		available := clampAvailable(st.Quantity, reserved)
		if available <= st.MinStockLevel {
			out = append(out, entities.LowStockItem{
				PartID: st.PartID, BranchID: st.BranchID, Quantity: st.Quantity,
				Reserved: reserved, Available: available, MinStockLevel: st.MinStockLevel,
				PartNumber: s.parts[st.PartID].PartNumber, BranchCode: s.branches[st.BranchID].Code,
			})
		}
	}
	return out, nil
}

// -----------------------------------------------------------
// MOVEMENTS
// -----------------------------------------------------------

func (s *memStore) InsertMovement(_ context.Context, _ pgx.Tx, m entities.StockMovement) (*entities.StockMovement, error) {
	if s.movementHook != nil {
		if err := s.movementHook(m); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(m.Reason) == "" {
		return nil, fmt.Errorf("check constraint: blank reason")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	m.CreatedAt = time.Now()
	s.movements = append(s.movements, m)
	return &m, nil
}

func (s *memStore) ListMovements(_ context.Context, filter types.Filter) ([]entities.StockMovement, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.StockMovement
	for _, m := range s.movements {
		if v, ok := filter.Filter["branch_id"]; ok && fmt.Sprint(v) != fmt.Sprint(m.BranchID) {
			continue
		}
		if v, ok := filter.Filter["action"]; ok && fmt.Sprint(v) != m.Action.String() {
			continue
		}
		out = append(out, m)
	}
	return out, uint64(len(out)), nil
}

// -----------------------------------------------------------
// TRANSFERS
// -----------------------------------------------------------

func (s *memStore) CreateTransfer(_ context.Context, _ pgx.Tx, t entities.TransferRequest) (*entities.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.Status = constants.TransferRequested
	t.ReservedQuantity = 0
	t.CreatedAt = time.Now()
	s.transfers[t.ID] = t
	return &t, nil
}

func (s *memStore) FindTransfer(_ context.Context, _ pgx.Tx, id int64) (*entities.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("transfer", id)
	}
	return &t, nil
}

func (s *memStore) LockTransfer(ctx context.Context, tx pgx.Tx, id int64) (*entities.TransferRequest, error) {
	return s.FindTransfer(ctx, tx, id)
}

func (s *memStore) UpdateTransfer(_ context.Context, _ pgx.Tx, t entities.TransferRequest) (*entities.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ReservedQuantity < 0 || t.ReservedQuantity > t.Quantity {
		return nil, fmt.Errorf("check constraint: reserved_quantity %d", t.ReservedQuantity)
	}
	t.UpdatedAt = time.Now()
	s.transfers[t.ID] = t
	return &t, nil
}

func (s *memStore) SumReserved(_ context.Context, _ pgx.Tx, partID, branchID, excludingID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservedLocked(partID, branchID, excludingID), nil
}

func (s *memStore) reservedLocked(partID, branchID, excludingID int64) int {
	total := 0
	for _, t := range s.transfers {
		if t.PartID == partID && t.SourceBranchID == branchID && t.ID != excludingID && t.Status.HoldsReservation() {
			total += t.ReservedQuantity
		}
	}
	return total
}

func (s *memStore) ListTransfers(_ context.Context, filter types.Filter) ([]entities.TransferRequest, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.TransferRequest
	for _, t := range s.transfers {
		if v, ok := filter.Filter["status"]; ok && fmt.Sprint(v) != t.Status.String() {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, uint64(len(out)), nil
}

// -----------------------------------------------------------
// CACHE + BUS
// -----------------------------------------------------------

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", repositories.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = fmt.Sprint(value)
	c.sets++
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, e eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// actions lists the audit actions published so far, in order.
func (b *recordingBus) actions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		if ae, ok := e.(events.AuditEvent); ok {
			out = append(out, ae.Action)
		}
	}
	return out
}

func (b *recordingBus) last() events.AuditEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1].(events.AuditEvent)
}

// -----------------------------------------------------------
// HARNESS
// -----------------------------------------------------------

type harness struct {
	store        *memStore
	cache        *memCache
	bus          *recordingBus
	locations    LocationServiceInterface
	availability AvailabilityServiceInterface
	ledger       LedgerServiceInterface
	transfers    TransferServiceInterface
}

var (
	_ repositories.LocationRepositoryInterface = (*memStore)(nil)
	_ repositories.StockRepositoryInterface    = (*memStore)(nil)
	_ repositories.MovementRepositoryInterface = (*memStore)(nil)
	_ repositories.TransferRepositoryInterface = (*memStore)(nil)
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := newMemStore()
	cache := newMemCache()
	bus := &recordingBus{}
	txm := memTxManager{store: store}

	locations := NewLocationService(store, cache, txm, bus, time.Hour, logger)
	availability := NewAvailabilityService(store, store, store, logger)
	ledger := NewLedgerService(txm, store, store, locations, availability, bus, logger)
	transfers := NewTransferService(txm, store, store, ledger, locations, availability, bus, logger)

	return &harness{
		store:        store,
		cache:        cache,
		bus:          bus,
		locations:    locations,
		availability: availability,
		ledger:       ledger,
		transfers:    transfers,
	}
}

func (h *harness) branch(t *testing.T, name, code string) *entities.Branch {
	t.Helper()
	b, err := h.locations.CreateBranch(context.Background(), name, code, nil)
	require.NoError(t, err)
	return b
}

func (h *harness) location(t *testing.T, branchID int64, code string) *entities.Location {
	t.Helper()
	l, err := h.locations.CreateLocation(context.Background(), branchID, code, null.String{}, null.String{})
	require.NoError(t, err)
	return l
}

func (h *harness) part(t *testing.T, number string) *entities.Part {
	t.Helper()
	p, err := h.store.CreatePart(context.Background(), nil, entities.Part{PartNumber: number, Name: number})
	require.NoError(t, err)
	return p
}

func (h *harness) defaultLocation(t *testing.T, branchID int64) *entities.Location {
	t.Helper()
	l, err := h.locations.DefaultLocation(context.Background(), nil, branchID)
	require.NoError(t, err)
	return l
}

func (h *harness) add(t *testing.T, partID, branchID, locationID int64, qty int) {
	t.Helper()
	_, err := h.ledger.AddStock(context.Background(), AddStockParams{
		PartID: partID, BranchID: branchID, LocationID: locationID, Quantity: qty, Reason: "receiving",
	})
	require.NoError(t, err)
}

// qtyAt returns the location row quantity, zero when the row does not exist.
func (h *harness) qtyAt(partID, branchID, locationID int64) int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	for _, sl := range h.store.stockLocs {
		if sl.PartID == partID && sl.BranchID == branchID && sl.LocationID == locationID {
			return sl.Quantity
		}
	}
	return 0
}

func (h *harness) aggregate(partID, branchID int64) int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.stocks[[2]int64{partID, branchID}].Quantity
}

func (h *harness) locationSum(partID, branchID int64) int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.sumLocked(partID, branchID)
}

func (h *harness) movementCount() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.movements)
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	got, ok := apperrors.KindOf(err)
	require.True(t, ok, "error %v carries no ledger kind", err)
	require.Equal(t, kind, got, "unexpected kind for %v", err)
}
