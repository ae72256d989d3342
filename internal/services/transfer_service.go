package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

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

type CreateTransferParams struct {
	PartID              int64
	Quantity            int
	SourceBranchID      int64
	DestinationBranchID int64
	Notes               string
	Reason              string
	Actor               *entities.Actor
}

type TransferServiceInterface interface {
	CreateTransfer(ctx context.Context, p CreateTransferParams) (*entities.TransferRequest, error)
	Approve(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error)
	Reject(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error)
	// MarkPickedUp records driverID as the custodian; zero means the actor.
	MarkPickedUp(ctx context.Context, transferID int64, actor *entities.Actor, reason string, driverID int64) (*entities.TransferRequest, error)
	MarkDelivered(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error)
	ConfirmReceive(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error)

	FindTransfer(ctx context.Context, transferID int64) (*entities.TransferRequest, error)
	ListTransfers(ctx context.Context, filter types.Filter) ([]entities.TransferRequest, uint64, error)
}

type TransferService struct {
	txManager       repositories.TxManagerInterface
	transferRepo    repositories.TransferRepositoryInterface
	stockRepo       repositories.StockRepositoryInterface
	ledger          LedgerServiceInterface
	locationService LocationServiceInterface
	availability    AvailabilityServiceInterface
	bus             eventbus.Publisher
	logger          *zap.Logger
	now             func() time.Time
}

func NewTransferService(
	txManager repositories.TxManagerInterface,
	transferRepo repositories.TransferRepositoryInterface,
	stockRepo repositories.StockRepositoryInterface,
	ledger LedgerServiceInterface,
	locationService LocationServiceInterface,
	availability AvailabilityServiceInterface,
	bus eventbus.Publisher,
	logger *zap.Logger,
) TransferServiceInterface {
	return &TransferService{
		txManager:       txManager,
		transferRepo:    transferRepo,
		stockRepo:       stockRepo,
		ledger:          ledger,
		locationService: locationService,
		availability:    availability,
		bus:             bus,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// -----------------------------------------------------------
// LIFECYCLE
// -----------------------------------------------------------

func (s *TransferService) CreateTransfer(ctx context.Context, p CreateTransferParams) (t *entities.TransferRequest, err error) {
	defer metrics.TrackOperation("transfer_create")(&err)
	ctx, span := startSpan(ctx, "transfer.Create",
		attribute.Int64("transfer.part_id", p.PartID),
		attribute.Int64("transfer.source_branch_id", p.SourceBranchID),
		attribute.Int64("transfer.destination_branch_id", p.DestinationBranchID),
		attribute.Int("transfer.quantity", p.Quantity))
	defer func() { endSpan(span, err) }()

	reason, err := requireReason(p.Reason)
	if err != nil {
		return nil, err
	}
	if err := validateQuantity(p.Quantity); err != nil {
		return nil, err
	}
	if p.SourceBranchID == p.DestinationBranchID {
		return nil, &apperrors.LedgerError{
			Kind:     apperrors.KindInvalidInput,
			Message:  "source and destination branches must differ",
			PartID:   p.PartID,
			BranchID: p.SourceBranchID,
		}
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.stockRepo.FindPart(ctx, tx, p.PartID); err != nil {
			return err
		}
		if _, err := s.locationService.FindBranch(ctx, tx, p.SourceBranchID); err != nil {
			return err
		}
		if _, err := s.locationService.FindBranch(ctx, tx, p.DestinationBranchID); err != nil {
			return err
		}

		created, err := s.transferRepo.CreateTransfer(ctx, tx, entities.TransferRequest{
			PartID:              p.PartID,
			Quantity:            p.Quantity,
			SourceBranchID:      p.SourceBranchID,
			DestinationBranchID: p.DestinationBranchID,
			Status:              constants.TransferRequested,
			RequestedByID:       p.Actor.NullID(),
			Notes:               strings.TrimSpace(p.Notes),
			LastReason:          null.StringFrom(reason),
		})
		if err != nil {
			return err
		}
		t = created
		return nil
	})
	if err != nil {
		logRefusal(s.logger, "transfer request refused", err,
			zap.Int64("part_id", p.PartID), zap.Int64("source_branch_id", p.SourceBranchID),
			zap.Int64("destination_branch_id", p.DestinationBranchID), zap.Int("requested", p.Quantity))
		return nil, err
	}

	s.logger.Info("transfer requested", zap.Int64("transfer_id", t.ID), zap.Int64("part_id", t.PartID), zap.Int("quantity", t.Quantity))
	s.publish(ctx, constants.AuditActionTransferRequest, p.Actor, reason, nil, t)
	return t, nil
}

// Approve places the reservation. The source aggregate is locked before the
// transfer row so concurrent approvals against the same stock serialize and
// the later one sees the earlier reservation.
func (s *TransferService) Approve(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return s.transition(ctx, "transfer_approve", transferID, actor, reason, constants.TransferApproved,
		func(ctx context.Context, tx pgx.Tx, peek *entities.TransferRequest) (*entities.TransferRequest, error) {
			stock, err := s.stockRepo.LockStock(ctx, tx, peek.PartID, peek.SourceBranchID)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, err
			}

			t, err := s.lockForTransition(ctx, tx, transferID, constants.TransferApproved)
			if err != nil {
				return nil, err
			}

			available, err := s.availability.AvailableFor(ctx, tx, stock, t.ID)
			if err != nil {
				return nil, err
			}
			if available < t.Quantity {
				return nil, apperrors.NewInsufficientAvailableError(t.PartID, t.SourceBranchID, t.ID, t.Quantity, available)
			}

			t.Status = constants.TransferApproved
			t.ReservedQuantity = t.Quantity
			t.ApprovedByID = actor.NullID()
			t.ApprovedAt = null.TimeFrom(s.now())
			t.RejectedByID = null.Int64{}
			t.RejectedAt = null.Time{}
			t.RejectionReason = null.String{}
			return t, nil
		})
}

func (s *TransferService) Reject(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return s.transition(ctx, "transfer_reject", transferID, actor, reason, constants.TransferRejected,
		func(ctx context.Context, tx pgx.Tx, _ *entities.TransferRequest) (*entities.TransferRequest, error) {
			t, err := s.lockForTransition(ctx, tx, transferID, constants.TransferRejected)
			if err != nil {
				return nil, err
			}
			t.Status = constants.TransferRejected
			t.ReservedQuantity = 0
			t.RejectedByID = actor.NullID()
			t.RejectedAt = null.TimeFrom(s.now())
			t.RejectionReason = null.StringFrom(strings.TrimSpace(reason))
			return t, nil
		})
}

// MarkPickedUp records physical custody only; no stock moves.
func (s *TransferService) MarkPickedUp(ctx context.Context, transferID int64, actor *entities.Actor, reason string, driverID int64) (*entities.TransferRequest, error) {
	return s.transition(ctx, "transfer_pickup", transferID, actor, reason, constants.TransferPickedUp,
		func(ctx context.Context, tx pgx.Tx, _ *entities.TransferRequest) (*entities.TransferRequest, error) {
			t, err := s.lockForTransition(ctx, tx, transferID, constants.TransferPickedUp)
			if err != nil {
				return nil, err
			}
			t.Status = constants.TransferPickedUp
			if driverID != 0 {
				t.DriverID = null.Int64From(driverID)
			} else {
				t.DriverID = actor.NullID()
			}
			t.PickedUpAt = null.TimeFrom(s.now())
			return t, nil
		})
}

// MarkDelivered is reserved to the recorded driver or an override-capable actor.
func (s *TransferService) MarkDelivered(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return s.transition(ctx, "transfer_deliver", transferID, actor, reason, constants.TransferDelivered,
		func(ctx context.Context, tx pgx.Tx, _ *entities.TransferRequest) (*entities.TransferRequest, error) {
			t, err := s.lockForTransition(ctx, tx, transferID, constants.TransferDelivered)
			if err != nil {
				return nil, err
			}
			if !mayDeliver(t, actor) {
				return nil, &apperrors.LedgerError{
					Kind:       apperrors.KindForbidden,
					Message:    "only the recorded driver may mark this transfer delivered",
					TransferID: t.ID,
				}
			}
			t.Status = constants.TransferDelivered
			t.DeliveredAt = null.TimeFrom(s.now())
			return t, nil
		})
}

// ConfirmReceive performs the physical movement: the source branch is drained
// greedily and the destination's default location credited, then the
// reservation is released. Any ledger failure leaves the transfer delivered
// with its reservation intact.
func (s *TransferService) ConfirmReceive(ctx context.Context, transferID int64, actor *entities.Actor, reason string) (*entities.TransferRequest, error) {
	return s.transition(ctx, "transfer_receive", transferID, actor, reason, constants.TransferReceived,
		func(ctx context.Context, tx pgx.Tx, peek *entities.TransferRequest) (*entities.TransferRequest, error) {
			def, err := s.prelockReceive(ctx, tx, peek)
			if err != nil {
				return nil, err
			}

			t, err := s.lockForTransition(ctx, tx, transferID, constants.TransferReceived)
			if err != nil {
				return nil, err
			}

			onHand, err := s.stockRepo.SumStockLocations(ctx, tx, t.PartID, t.SourceBranchID)
			if err != nil {
				return nil, err
			}
			if onHand < t.Quantity {
				return nil, &apperrors.LedgerError{
					Kind:       apperrors.KindInsufficientStock,
					Message:    "source branch no longer holds the transfer quantity",
					PartID:     t.PartID,
					BranchID:   t.SourceBranchID,
					TransferID: t.ID,
					Requested:  t.Quantity,
					Available:  onHand,
				}
			}

			trimmed := strings.TrimSpace(reason)
			if _, err := s.ledger.RemoveStockInTx(ctx, tx, RemoveStockParams{
				PartID:     t.PartID,
				BranchID:   t.SourceBranchID,
				Quantity:   t.Quantity,
				Reason:     trimmed,
				Actor:      actor,
				Action:     constants.MovementTransferOut,
				TransferID: t.ID,
			}); err != nil {
				return nil, err
			}
			if _, err := s.ledger.AddStockInTx(ctx, tx, AddStockParams{
				PartID:     t.PartID,
				BranchID:   t.DestinationBranchID,
				Quantity:   t.Quantity,
				Reason:     trimmed,
				Actor:      actor,
				LocationID: def.ID,
				Action:     constants.MovementTransferIn,
				TransferID: t.ID,
			}); err != nil {
				return nil, err
			}

			t.Status = constants.TransferReceived
			t.ReservedQuantity = 0
			t.ReceivedByID = actor.NullID()
			t.ReceivedAt = null.TimeFrom(s.now())
			return t, nil
		})
}

// prelockReceive takes the location rows of both branches in ascending branch
// id order, then both aggregates in the same order, so two receipts moving
// stock in opposite directions cannot deadlock. It returns the destination's
// default location with its row already locked.
func (s *TransferService) prelockReceive(ctx context.Context, tx pgx.Tx, t *entities.TransferRequest) (*entities.Location, error) {
	def, err := s.locationService.DefaultLocation(ctx, tx, t.DestinationBranchID)
	if err != nil {
		return nil, err
	}

	branches := []int64{t.SourceBranchID, t.DestinationBranchID}
	if branches[0] > branches[1] {
		branches[0], branches[1] = branches[1], branches[0]
	}

	for _, branchID := range branches {
		if _, err := s.ledger.LockLocations(ctx, tx, t.PartID, branchID); err != nil {
			return nil, err
		}
		if branchID == t.DestinationBranchID {
			if _, err := s.stockRepo.EnsureStockLocation(ctx, tx, t.PartID, branchID, def.ID); err != nil {
				return nil, err
			}
		}
	}
	for _, branchID := range branches {
		if _, err := s.stockRepo.LockStock(ctx, tx, t.PartID, branchID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	return def, nil
}

// -----------------------------------------------------------
// READS
// -----------------------------------------------------------

func (s *TransferService) FindTransfer(ctx context.Context, transferID int64) (*entities.TransferRequest, error) {
	return s.transferRepo.FindTransfer(ctx, nil, transferID)
}

func (s *TransferService) ListTransfers(ctx context.Context, filter types.Filter) ([]entities.TransferRequest, uint64, error) {
	return s.transferRepo.ListTransfers(ctx, filter)
}

// -----------------------------------------------------------
// HELPERS
// -----------------------------------------------------------

type transitionFunc func(ctx context.Context, tx pgx.Tx, peek *entities.TransferRequest) (*entities.TransferRequest, error)

// transition runs one state-machine step in its own transaction. apply must
// lock what it needs in ledger order and return the transfer with the new
// state set; transition persists it and emits the audit event after commit.
func (s *TransferService) transition(
	ctx context.Context,
	operation string,
	transferID int64,
	actor *entities.Actor,
	reason string,
	to constants.TransferStatus,
	apply transitionFunc,
) (updated *entities.TransferRequest, err error) {
	defer metrics.TrackOperation(operation)(&err)
	ctx, span := startSpan(ctx, "transfer."+string(to),
		attribute.Int64("transfer.id", transferID),
		attribute.String("transfer.to_status", to.String()))
	defer func() { endSpan(span, err) }()

	trimmed, err := requireReason(reason)
	if err != nil {
		return nil, err
	}

	var before entities.TransferRequest
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		peek, err := s.transferRepo.FindTransfer(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if !constants.CanTransition(peek.Status, to) {
			return apperrors.NewIllegalTransitionError(peek.ID, peek.Status.String(), to.String())
		}
		before = *peek

		t, err := apply(ctx, tx, peek)
		if err != nil {
			return err
		}
		t.LastReason = null.StringFrom(trimmed)

		updated, err = s.transferRepo.UpdateTransfer(ctx, tx, *t)
		return err
	})
	if err != nil {
		logRefusal(s.logger, "transfer transition refused", err,
			zap.Int64("transfer_id", transferID), zap.String("to_status", to.String()))
		return nil, err
	}

	s.logger.Info("transfer transitioned",
		zap.Int64("transfer_id", updated.ID),
		zap.String("from_status", before.Status.String()),
		zap.String("to_status", updated.Status.String()),
		zap.Int("reserved_quantity", updated.ReservedQuantity))
	s.publish(ctx, auditActionFor(to), actor, trimmed, &before, updated)
	return updated, nil
}

// lockForTransition locks the transfer row and re-checks the edge against the
// locked state, which may differ from what was read before the lock.
func (s *TransferService) lockForTransition(ctx context.Context, tx pgx.Tx, transferID int64, to constants.TransferStatus) (*entities.TransferRequest, error) {
	t, err := s.transferRepo.LockTransfer(ctx, tx, transferID)
	if err != nil {
		return nil, err
	}
	if !constants.CanTransition(t.Status, to) {
		return nil, apperrors.NewIllegalTransitionError(t.ID, t.Status.String(), to.String())
	}
	return t, nil
}

func (s *TransferService) publish(ctx context.Context, action string, actor *entities.Actor, reason string, before, after *entities.TransferRequest) {
	var beforeSnap interface{}
	if before != nil {
		beforeSnap = before
	}
	s.bus.Publish(ctx, events.NewAuditEvent(action, actor, reason, constants.AuditObjectTransfer,
		strconv.FormatInt(after.ID, 10), after.SourceBranchID, beforeSnap, after))
}

func requireReason(reason string) (string, error) {
	r := strings.TrimSpace(reason)
	if r == "" {
		return "", apperrors.NewLedgerError(apperrors.KindMissingReason, "a reason is required")
	}
	return r, nil
}

func mayDeliver(t *entities.TransferRequest, actor *entities.Actor) bool {
	if actor != nil && actor.CanOverride {
		return true
	}
	if !t.DriverID.Valid {
		return actor != nil
	}
	return actor != nil && actor.ID == t.DriverID.Int64
}

func auditActionFor(to constants.TransferStatus) string {
	switch to {
	case constants.TransferApproved:
		return constants.AuditActionTransferApprove
	case constants.TransferRejected:
		return constants.AuditActionTransferReject
	case constants.TransferPickedUp:
		return constants.AuditActionTransferPickup
	case constants.TransferDelivered:
		return constants.AuditActionTransferDeliver
	case constants.TransferReceived:
		return constants.AuditActionTransferReceive
	}
	return constants.AuditActionTransferRequest
}
