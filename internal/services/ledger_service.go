package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/events"
	"branch-ledger/internal/repositories"
	"branch-ledger/pkg/constants"
	apperrors "branch-ledger/pkg/errors"
	"branch-ledger/pkg/eventbus"
	"branch-ledger/pkg/metrics"
	"branch-ledger/pkg/types"
)

type AddStockParams struct {
	PartID   int64
	BranchID int64
	Quantity int
	Reason   string
	Actor    *entities.Actor
	// LocationID zero means the branch's default location.
	LocationID int64
	// Action defaults to "add".
	Action     constants.MovementAction
	TransferID int64
}

type RemoveStockParams struct {
	PartID   int64
	BranchID int64
	Quantity int
	Reason   string
	Actor    *entities.Actor
	// LocationID zero drains locations greedily, largest first.
	LocationID int64
	// Action defaults to "remove".
	Action     constants.MovementAction
	TransferID int64
	// RespectReservations refuses units held by in-flight transfers. It is
	// implied for sale_out.
	RespectReservations bool
}

type MoveStockParams struct {
	PartID         int64
	BranchID       int64
	Quantity       int
	FromLocationID int64
	ToLocationID   int64
	Reason         string
	Actor          *entities.Actor
	// Action defaults to "move".
	Action constants.MovementAction
}

// StockView is the aggregate of one (part, branch) with its location split.
type StockView struct {
	PartID        int64                    `json:"part_id"`
	BranchID      int64                    `json:"branch_id"`
	Quantity      int                      `json:"quantity"`
	MinStockLevel int                      `json:"min_stock_level"`
	Reserved      int                      `json:"reserved"`
	Available     int                      `json:"available"`
	Locations     []entities.StockLocation `json:"locations"`
}

// stockSnapshot is the audit payload for stock mutations.
type stockSnapshot struct {
	PartID    int64          `json:"part_id"`
	BranchID  int64          `json:"branch_id"`
	Quantity  int            `json:"quantity"`
	Locations map[string]int `json:"locations"`
}

type LedgerServiceInterface interface {
	AddStock(ctx context.Context, p AddStockParams) (*entities.StockMovement, error)
	RemoveStock(ctx context.Context, p RemoveStockParams) ([]entities.StockMovement, error)
	MoveStock(ctx context.Context, p MoveStockParams) (*entities.StockMovement, error)
	SyncAggregate(ctx context.Context, partID, branchID int64) (*entities.Stock, error)
	SeedFromAggregateIfUnlocated(ctx context.Context, partID, branchID int64) (*entities.StockMovement, error)

	// InTx variants join a caller's transaction and publish nothing.
	AddStockInTx(ctx context.Context, tx pgx.Tx, p AddStockParams) (*entities.StockMovement, error)
	RemoveStockInTx(ctx context.Context, tx pgx.Tx, p RemoveStockParams) ([]entities.StockMovement, error)
	LockLocations(ctx context.Context, tx pgx.Tx, partID, branchID int64) ([]entities.StockLocation, error)

	GetStock(ctx context.Context, partID, branchID int64) (*StockView, error)
	SetMinStockLevel(ctx context.Context, partID, branchID int64, level int) error
	ListMovements(ctx context.Context, filter types.Filter) ([]entities.StockMovement, uint64, error)
	ListLowStock(ctx context.Context, branchID int64) ([]entities.LowStockItem, error)
}

type LedgerService struct {
	txManager       repositories.TxManagerInterface
	stockRepo       repositories.StockRepositoryInterface
	movementRepo    repositories.MovementRepositoryInterface
	locationService LocationServiceInterface
	availability    AvailabilityServiceInterface
	bus             eventbus.Publisher
	logger          *zap.Logger
}

func NewLedgerService(
	txManager repositories.TxManagerInterface,
	stockRepo repositories.StockRepositoryInterface,
	movementRepo repositories.MovementRepositoryInterface,
	locationService LocationServiceInterface,
	availability AvailabilityServiceInterface,
	bus eventbus.Publisher,
	logger *zap.Logger,
) LedgerServiceInterface {
	return &LedgerService{
		txManager:       txManager,
		stockRepo:       stockRepo,
		movementRepo:    movementRepo,
		locationService: locationService,
		availability:    availability,
		bus:             bus,
		logger:          logger,
	}
}

// -----------------------------------------------------------
// PUBLIC OPERATIONS
// -----------------------------------------------------------

func (s *LedgerService) AddStock(ctx context.Context, p AddStockParams) (mv *entities.StockMovement, err error) {
	defer metrics.TrackOperation("add_stock")(&err)
	ctx, span := startSpan(ctx, "ledger.AddStock", stockAttrs(p.PartID, p.BranchID, p.Quantity)...)
	defer func() { endSpan(span, err) }()

	var before, after stockSnapshot
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var txErr error
		mv, before, after, txErr = s.addStock(ctx, tx, p)
		return txErr
	})
	if err != nil {
		s.logRefusal("add stock refused", err, zap.Int64("part_id", p.PartID), zap.Int64("branch_id", p.BranchID),
			zap.Int64("location_id", p.LocationID), zap.Int("requested", p.Quantity))
		return nil, err
	}

	s.publishStock(ctx, constants.AuditActionStockAdjustment, p.Actor, mv.Reason, before, after)
	return mv, nil
}

func (s *LedgerService) RemoveStock(ctx context.Context, p RemoveStockParams) (mvs []entities.StockMovement, err error) {
	defer metrics.TrackOperation("remove_stock")(&err)
	ctx, span := startSpan(ctx, "ledger.RemoveStock", stockAttrs(p.PartID, p.BranchID, p.Quantity)...)
	defer func() { endSpan(span, err) }()

	var before, after stockSnapshot
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var txErr error
		mvs, before, after, txErr = s.removeStock(ctx, tx, p)
		return txErr
	})
	if err != nil {
		s.logRefusal("remove stock refused", err, zap.Int64("part_id", p.PartID), zap.Int64("branch_id", p.BranchID),
			zap.Int64("location_id", p.LocationID), zap.Int("requested", p.Quantity))
		return nil, err
	}

	s.publishStock(ctx, constants.AuditActionStockAdjustment, p.Actor, mvs[0].Reason, before, after)
	return mvs, nil
}

func (s *LedgerService) MoveStock(ctx context.Context, p MoveStockParams) (mv *entities.StockMovement, err error) {
	defer metrics.TrackOperation("move_stock")(&err)
	ctx, span := startSpan(ctx, "ledger.MoveStock", stockAttrs(p.PartID, p.BranchID, p.Quantity)...)
	defer func() { endSpan(span, err) }()

	var before, after stockSnapshot
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var txErr error
		mv, before, after, txErr = s.moveStock(ctx, tx, p)
		return txErr
	})
	if err != nil {
		s.logRefusal("move stock refused", err, zap.Int64("part_id", p.PartID), zap.Int64("branch_id", p.BranchID),
			zap.Int64("from_location_id", p.FromLocationID), zap.Int64("to_location_id", p.ToLocationID),
			zap.Int("requested", p.Quantity))
		return nil, err
	}

	s.publishStock(ctx, constants.AuditActionStockMove, p.Actor, mv.Reason, before, after)
	return mv, nil
}

// SyncAggregate recomputes the (part, branch) aggregate from its location rows.
func (s *LedgerService) SyncAggregate(ctx context.Context, partID, branchID int64) (stock *entities.Stock, err error) {
	defer metrics.TrackOperation("sync_aggregate")(&err)
	ctx, span := startSpan(ctx, "ledger.SyncAggregate", stockAttrs(partID, branchID, 0)...)
	defer func() { endSpan(span, err) }()

	var previous int
	var changed bool
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.stockRepo.FindPart(ctx, tx, partID); err != nil {
			return err
		}
		if _, err := s.locationService.FindBranch(ctx, tx, branchID); err != nil {
			return err
		}
		var txErr error
		stock, previous, changed, txErr = s.syncAggregateInTx(ctx, tx, partID, branchID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("stock aggregate corrected",
			zap.Int64("part_id", partID), zap.Int64("branch_id", branchID),
			zap.Int("previous", previous), zap.Int("quantity", stock.Quantity))
		s.publish(ctx, constants.AuditActionStockSync, nil, constants.DefaultMovementReason, branchID,
			stockObjectID(partID, branchID),
			stockSnapshot{PartID: partID, BranchID: branchID, Quantity: previous},
			stockSnapshot{PartID: partID, BranchID: branchID, Quantity: stock.Quantity})
	}
	return stock, nil
}

// SeedFromAggregateIfUnlocated back-fills a default-location row for stock that
// has a positive aggregate but no location rows. It returns nil when there was
// nothing to seed.
func (s *LedgerService) SeedFromAggregateIfUnlocated(ctx context.Context, partID, branchID int64) (mv *entities.StockMovement, err error) {
	defer metrics.TrackOperation("seed_from_aggregate")(&err)

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := s.stockRepo.LockStockLocations(ctx, tx, partID, branchID)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			return nil
		}
		mv, err = s.seedInTx(ctx, tx, partID, branchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if mv != nil {
		s.publish(ctx, constants.AuditActionStockSeed, nil, mv.Reason, branchID, stockObjectID(partID, branchID),
			nil, stockSnapshot{PartID: partID, BranchID: branchID, Quantity: mv.Quantity})
	}
	return mv, nil
}

func (s *LedgerService) AddStockInTx(ctx context.Context, tx pgx.Tx, p AddStockParams) (*entities.StockMovement, error) {
	mv, _, _, err := s.addStock(ctx, tx, p)
	return mv, err
}

func (s *LedgerService) RemoveStockInTx(ctx context.Context, tx pgx.Tx, p RemoveStockParams) ([]entities.StockMovement, error) {
	mvs, _, _, err := s.removeStock(ctx, tx, p)
	return mvs, err
}

// LockLocations locks every location row of (part, branch) in id order,
// self-healing aggregate-only legacy stock first.
func (s *LedgerService) LockLocations(ctx context.Context, tx pgx.Tx, partID, branchID int64) ([]entities.StockLocation, error) {
	rows, err := s.stockRepo.LockStockLocations(ctx, tx, partID, branchID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows, nil
	}

	seeded, err := s.seedInTx(ctx, tx, partID, branchID)
	if err != nil {
		return nil, err
	}
	if seeded == nil {
		return rows, nil
	}
	return s.stockRepo.LockStockLocations(ctx, tx, partID, branchID)
}

// -----------------------------------------------------------
// READS
// -----------------------------------------------------------

func (s *LedgerService) GetStock(ctx context.Context, partID, branchID int64) (*StockView, error) {
	if _, err := s.stockRepo.FindPart(ctx, nil, partID); err != nil {
		return nil, err
	}
	if _, err := s.locationService.FindBranch(ctx, nil, branchID); err != nil {
		return nil, err
	}

	view := &StockView{PartID: partID, BranchID: branchID}
	stock, err := s.stockRepo.FindStock(ctx, partID, branchID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		stock = nil
	case err != nil:
		return nil, err
	default:
		view.Quantity = stock.Quantity
		view.MinStockLevel = stock.MinStockLevel
	}

	if view.Locations, err = s.stockRepo.ListStockLocations(ctx, partID, branchID); err != nil {
		return nil, err
	}
	if view.Reserved, err = s.availability.ReservedQuantity(ctx, nil, partID, branchID, 0); err != nil {
		return nil, err
	}
	view.Available = clampAvailable(view.Quantity, view.Reserved)
	return view, nil
}

func (s *LedgerService) SetMinStockLevel(ctx context.Context, partID, branchID int64, level int) error {
	if level < 0 {
		return apperrors.NewLedgerError(apperrors.KindInvalidInput, "min stock level cannot be negative")
	}
	if _, err := s.stockRepo.FindPart(ctx, nil, partID); err != nil {
		return err
	}
	if _, err := s.locationService.FindBranch(ctx, nil, branchID); err != nil {
		return err
	}
	return s.stockRepo.SetMinStockLevel(ctx, nil, partID, branchID, level)
}

func (s *LedgerService) ListMovements(ctx context.Context, filter types.Filter) ([]entities.StockMovement, uint64, error) {
	return s.movementRepo.ListMovements(ctx, filter)
}

func (s *LedgerService) ListLowStock(ctx context.Context, branchID int64) ([]entities.LowStockItem, error) {
	return s.stockRepo.ListLowStock(ctx, branchID)
}

// -----------------------------------------------------------
// UNITS OF WORK
// -----------------------------------------------------------

func (s *LedgerService) addStock(ctx context.Context, tx pgx.Tx, p AddStockParams) (*entities.StockMovement, stockSnapshot, stockSnapshot, error) {
	var before, after stockSnapshot

	if err := validateQuantity(p.Quantity); err != nil {
		return nil, before, after, err
	}
	action, err := resolveAction(p.Action, constants.MovementAdd)
	if err != nil {
		return nil, before, after, err
	}
	if _, err := s.stockRepo.FindPart(ctx, tx, p.PartID); err != nil {
		return nil, before, after, err
	}

	loc, err := s.resolveLocation(ctx, tx, p.LocationID, p.BranchID)
	if err != nil {
		return nil, before, after, err
	}

	rows, err := s.LockLocations(ctx, tx, p.PartID, p.BranchID)
	if err != nil {
		return nil, before, after, err
	}
	before = snapshotOf(p.PartID, p.BranchID, rows)

	target, err := s.stockRepo.EnsureStockLocation(ctx, tx, p.PartID, p.BranchID, loc.ID)
	if err != nil {
		return nil, before, after, err
	}
	if err := s.stockRepo.UpdateStockLocationQuantity(ctx, tx, target.ID, target.Quantity+p.Quantity); err != nil {
		return nil, before, after, err
	}

	if _, _, _, err := s.syncAggregateInTx(ctx, tx, p.PartID, p.BranchID); err != nil {
		return nil, before, after, err
	}

	mv, err := s.insertMovement(ctx, tx, entities.StockMovement{
		PartID:       p.PartID,
		BranchID:     p.BranchID,
		Quantity:     p.Quantity,
		ToLocationID: null.Int64From(loc.ID),
		Action:       action,
		Reason:       normalizeReason(p.Reason),
		ActorID:      p.Actor.NullID(),
		TransferID:   nullID(p.TransferID),
	})
	if err != nil {
		return nil, before, after, err
	}

	after = before.with(loc.Code, +p.Quantity)
	return mv, before, after, nil
}

func (s *LedgerService) removeStock(ctx context.Context, tx pgx.Tx, p RemoveStockParams) ([]entities.StockMovement, stockSnapshot, stockSnapshot, error) {
	var before, after stockSnapshot

	if err := validateQuantity(p.Quantity); err != nil {
		return nil, before, after, err
	}
	action, err := resolveAction(p.Action, constants.MovementRemove)
	if err != nil {
		return nil, before, after, err
	}
	if _, err := s.stockRepo.FindPart(ctx, tx, p.PartID); err != nil {
		return nil, before, after, err
	}
	if p.LocationID != 0 {
		if _, err := s.locationService.ValidateLocationBranch(ctx, tx, p.LocationID, p.BranchID); err != nil {
			return nil, before, after, err
		}
	} else if _, err := s.locationService.FindBranch(ctx, tx, p.BranchID); err != nil {
		return nil, before, after, err
	}

	rows, err := s.LockLocations(ctx, tx, p.PartID, p.BranchID)
	if err != nil {
		return nil, before, after, err
	}
	before = snapshotOf(p.PartID, p.BranchID, rows)

	// A sale never takes units held by an in-flight transfer.
	if p.RespectReservations || action == constants.MovementSaleOut {
		if err := s.checkAvailable(ctx, tx, p, before.Quantity); err != nil {
			return nil, before, after, err
		}
	}

	plan, err := planRemoval(p, rows)
	if err != nil {
		return nil, before, after, err
	}

	after = before
	reason := normalizeReason(p.Reason)
	movements := make([]entities.StockMovement, 0, len(plan))
	for _, step := range plan {
		if err := s.stockRepo.UpdateStockLocationQuantity(ctx, tx, step.row.ID, step.row.Quantity-step.take); err != nil {
			return nil, before, after, err
		}
		after = after.with(step.row.LocationCode, -step.take)
	}

	if _, _, _, err := s.syncAggregateInTx(ctx, tx, p.PartID, p.BranchID); err != nil {
		return nil, before, after, err
	}

	for _, step := range plan {
		mv, err := s.insertMovement(ctx, tx, entities.StockMovement{
			PartID:         p.PartID,
			BranchID:       p.BranchID,
			Quantity:       step.take,
			FromLocationID: null.Int64From(step.row.LocationID),
			Action:         action,
			Reason:         reason,
			ActorID:        p.Actor.NullID(),
			TransferID:     nullID(p.TransferID),
		})
		if err != nil {
			return nil, before, after, err
		}
		movements = append(movements, *mv)
	}
	return movements, before, after, nil
}

func (s *LedgerService) moveStock(ctx context.Context, tx pgx.Tx, p MoveStockParams) (*entities.StockMovement, stockSnapshot, stockSnapshot, error) {
	var before, after stockSnapshot

	if err := validateQuantity(p.Quantity); err != nil {
		return nil, before, after, err
	}
	action, err := resolveAction(p.Action, constants.MovementMove)
	if err != nil {
		return nil, before, after, err
	}
	if p.FromLocationID == p.ToLocationID {
		return nil, before, after, &apperrors.LedgerError{
			Kind:       apperrors.KindInvalidInput,
			Message:    "source and destination locations are the same",
			PartID:     p.PartID,
			BranchID:   p.BranchID,
			LocationID: p.FromLocationID,
		}
	}
	if _, err := s.stockRepo.FindPart(ctx, tx, p.PartID); err != nil {
		return nil, before, after, err
	}
	from, err := s.locationService.ValidateLocationBranch(ctx, tx, p.FromLocationID, p.BranchID)
	if err != nil {
		return nil, before, after, err
	}
	to, err := s.locationService.ValidateLocationBranch(ctx, tx, p.ToLocationID, p.BranchID)
	if err != nil {
		return nil, before, after, err
	}

	rows, err := s.LockLocations(ctx, tx, p.PartID, p.BranchID)
	if err != nil {
		return nil, before, after, err
	}
	before = snapshotOf(p.PartID, p.BranchID, rows)

	source := findRow(rows, from.ID)
	have := 0
	if source != nil {
		have = source.Quantity
	}
	if have < p.Quantity {
		return nil, before, after, apperrors.NewInsufficientStockError(p.PartID, p.BranchID, from.ID, p.Quantity, have)
	}

	dest, err := s.stockRepo.EnsureStockLocation(ctx, tx, p.PartID, p.BranchID, to.ID)
	if err != nil {
		return nil, before, after, err
	}
	if err := s.stockRepo.UpdateStockLocationQuantity(ctx, tx, source.ID, source.Quantity-p.Quantity); err != nil {
		return nil, before, after, err
	}
	if err := s.stockRepo.UpdateStockLocationQuantity(ctx, tx, dest.ID, dest.Quantity+p.Quantity); err != nil {
		return nil, before, after, err
	}

	stock, _, _, err := s.syncAggregateInTx(ctx, tx, p.PartID, p.BranchID)
	if err != nil {
		return nil, before, after, err
	}
	if stock == nil || stock.Quantity != before.Quantity {
		return nil, before, after, fmt.Errorf("move changed the aggregate of part %d at branch %d", p.PartID, p.BranchID)
	}

	mv, err := s.insertMovement(ctx, tx, entities.StockMovement{
		PartID:         p.PartID,
		BranchID:       p.BranchID,
		Quantity:       p.Quantity,
		FromLocationID: null.Int64From(from.ID),
		ToLocationID:   null.Int64From(to.ID),
		Action:         action,
		Reason:         normalizeReason(p.Reason),
		ActorID:        p.Actor.NullID(),
	})
	if err != nil {
		return nil, before, after, err
	}

	after = before.with(from.Code, -p.Quantity).with(to.Code, +p.Quantity)
	return mv, before, after, nil
}

// syncAggregateInTx makes Stock.quantity equal the sum of the location rows.
// It reports the previous value and whether it changed. With no aggregate row
// and a zero sum it does nothing and returns a nil stock.
func (s *LedgerService) syncAggregateInTx(ctx context.Context, tx pgx.Tx, partID, branchID int64) (*entities.Stock, int, bool, error) {
	stock, err := s.stockRepo.LockStock(ctx, tx, partID, branchID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, 0, false, err
	}

	if stock == nil {
		sum, err := s.stockRepo.SumStockLocations(ctx, tx, partID, branchID)
		if err != nil {
			return nil, 0, false, err
		}
		if sum <= 0 {
			return nil, 0, false, nil
		}
		// Creating the row first serializes concurrent creators on it; the
		// sum is then re-read under the lock.
		if stock, err = s.stockRepo.EnsureStock(ctx, tx, partID, branchID); err != nil {
			return nil, 0, false, err
		}
	}

	sum, err := s.stockRepo.SumStockLocations(ctx, tx, partID, branchID)
	if err != nil {
		return nil, 0, false, err
	}
	previous := stock.Quantity
	if sum == previous {
		return stock, previous, false, nil
	}

	updated, err := s.stockRepo.UpsertStockQuantity(ctx, tx, partID, branchID, sum)
	if err != nil {
		return nil, 0, false, err
	}
	return updated, previous, true, nil
}

// seedInTx must be called with the (part, branch) location rows already
// locked and found empty.
func (s *LedgerService) seedInTx(ctx context.Context, tx pgx.Tx, partID, branchID int64) (*entities.StockMovement, error) {
	stock, err := s.stockRepo.LockStock(ctx, tx, partID, branchID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stock.Quantity <= 0 {
		return nil, nil
	}

	// Another transaction may have seeded while we waited for the stock lock.
	rows, err := s.stockRepo.LockStockLocations(ctx, tx, partID, branchID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return nil, nil
	}

	def, err := s.locationService.DefaultLocation(ctx, tx, branchID)
	if err != nil {
		return nil, err
	}
	sl, err := s.stockRepo.EnsureStockLocation(ctx, tx, partID, branchID, def.ID)
	if err != nil {
		return nil, err
	}
	if err := s.stockRepo.UpdateStockLocationQuantity(ctx, tx, sl.ID, stock.Quantity); err != nil {
		return nil, err
	}

	s.logger.Info("seeded location row from legacy aggregate",
		zap.Int64("part_id", partID), zap.Int64("branch_id", branchID),
		zap.Int64("location_id", def.ID), zap.Int("quantity", stock.Quantity))

	return s.insertMovement(ctx, tx, entities.StockMovement{
		PartID:       partID,
		BranchID:     branchID,
		Quantity:     stock.Quantity,
		ToLocationID: null.Int64From(def.ID),
		Action:       constants.MovementLegacySeed,
		Reason:       constants.LegacySeedReason,
	})
}

func (s *LedgerService) checkAvailable(ctx context.Context, tx pgx.Tx, p RemoveStockParams, onHand int) error {
	// Approvals take the aggregate lock before reserving, so holding it here
	// keeps the reserved total stable until commit.
	if _, err := s.stockRepo.LockStock(ctx, tx, p.PartID, p.BranchID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	reserved, err := s.availability.ReservedQuantity(ctx, tx, p.PartID, p.BranchID, p.TransferID)
	if err != nil {
		return err
	}
	available := clampAvailable(onHand, reserved)
	if available < p.Quantity {
		return apperrors.NewInsufficientAvailableError(p.PartID, p.BranchID, p.TransferID, p.Quantity, available)
	}
	return nil
}

func (s *LedgerService) resolveLocation(ctx context.Context, tx pgx.Tx, locationID, branchID int64) (*entities.Location, error) {
	if locationID != 0 {
		return s.locationService.ValidateLocationBranch(ctx, tx, locationID, branchID)
	}
	return s.locationService.DefaultLocation(ctx, tx, branchID)
}

func (s *LedgerService) insertMovement(ctx context.Context, tx pgx.Tx, m entities.StockMovement) (*entities.StockMovement, error) {
	mv, err := s.movementRepo.InsertMovement(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	metrics.RecordMovement(mv.Action.String(), mv.Quantity)
	return mv, nil
}

// -----------------------------------------------------------
// HELPERS
// -----------------------------------------------------------

type removalStep struct {
	row  entities.StockLocation
	take int
}

// planRemoval decides which rows give up how much. A named location must cover
// the whole quantity itself; otherwise rows drain largest first, then by
// location code, then by row id.
func planRemoval(p RemoveStockParams, rows []entities.StockLocation) ([]removalStep, error) {
	if p.LocationID != 0 {
		row := findRow(rows, p.LocationID)
		if row == nil || row.Quantity < p.Quantity {
			have := 0
			if row != nil {
				have = row.Quantity
			}
			return nil, apperrors.NewInsufficientStockError(p.PartID, p.BranchID, p.LocationID, p.Quantity, have)
		}
		return []removalStep{{row: *row, take: p.Quantity}}, nil
	}

	total := 0
	for _, r := range rows {
		total += r.Quantity
	}
	if total < p.Quantity {
		return nil, apperrors.NewInsufficientStockError(p.PartID, p.BranchID, 0, p.Quantity, total)
	}

	ordered := make([]entities.StockLocation, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if a.LocationCode != b.LocationCode {
			return a.LocationCode < b.LocationCode
		}
		return a.ID < b.ID
	})

	remaining := p.Quantity
	var plan []removalStep
	for _, r := range ordered {
		if remaining == 0 {
			break
		}
		if r.Quantity <= 0 {
			continue
		}
		take := r.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, removalStep{row: r, take: take})
		remaining -= take
	}
	return plan, nil
}

func findRow(rows []entities.StockLocation, locationID int64) *entities.StockLocation {
	for i := range rows {
		if rows[i].LocationID == locationID {
			return &rows[i]
		}
	}
	return nil
}

func validateQuantity(q int) error {
	if q <= 0 {
		return &apperrors.LedgerError{
			Kind:      apperrors.KindInvalidQuantity,
			Message:   fmt.Sprintf("quantity must be greater than zero, got %d", q),
			Requested: q,
		}
	}
	return nil
}

func resolveAction(a, fallback constants.MovementAction) (constants.MovementAction, error) {
	if a == "" {
		return fallback, nil
	}
	if !a.IsValid() {
		return "", apperrors.NewLedgerError(apperrors.KindInvalidInput, "unknown movement action %q", a)
	}
	return a, nil
}

func normalizeReason(reason string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return constants.DefaultMovementReason
}

func nullID(id int64) null.Int64 {
	if id == 0 {
		return null.Int64{}
	}
	return null.Int64From(id)
}

func snapshotOf(partID, branchID int64, rows []entities.StockLocation) stockSnapshot {
	snap := stockSnapshot{PartID: partID, BranchID: branchID, Locations: make(map[string]int, len(rows))}
	for _, r := range rows {
		snap.Locations[r.LocationCode] = r.Quantity
		snap.Quantity += r.Quantity
	}
	return snap
}

func (s stockSnapshot) with(code string, delta int) stockSnapshot {
	out := stockSnapshot{
		PartID:    s.PartID,
		BranchID:  s.BranchID,
		Quantity:  s.Quantity + delta,
		Locations: make(map[string]int, len(s.Locations)+1),
	}
	for k, v := range s.Locations {
		out.Locations[k] = v
	}
	out.Locations[code] += delta
	return out
}

func stockObjectID(partID, branchID int64) string {
	return strconv.FormatInt(partID, 10) + ":" + strconv.FormatInt(branchID, 10)
}

func stockAttrs(partID, branchID int64, quantity int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("ledger.part_id", partID),
		attribute.Int64("ledger.branch_id", branchID),
		attribute.Int("ledger.quantity", quantity),
	}
}

func (s *LedgerService) publishStock(ctx context.Context, action string, actor *entities.Actor, reason string, before, after stockSnapshot) {
	s.publish(ctx, action, actor, reason, after.BranchID, stockObjectID(after.PartID, after.BranchID), before, after)
}

func (s *LedgerService) publish(ctx context.Context, action string, actor *entities.Actor, reason string, branchID int64, objectID string, before, after interface{}) {
	s.bus.Publish(ctx, events.NewAuditEvent(action, actor, reason, constants.AuditObjectStock, objectID, branchID, before, after))
}

func (s *LedgerService) logRefusal(msg string, err error, fields ...zap.Field) {
	logRefusal(s.logger, msg, err, fields...)
}

// logRefusal logs caller-visible refusals at Warn and anything else at Error.
func logRefusal(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	var le *apperrors.LedgerError
	if errors.As(err, &le) {
		fields = append(fields, zap.String("kind", string(le.Kind)))
		if le.Kind == apperrors.KindInsufficientStock || le.Kind == apperrors.KindInsufficientAvailable {
			fields = append(fields, zap.Int("available", le.Available))
		}
		logger.Warn(msg, fields...)
		return
	}
	logger.Error(msg, fields...)
}
