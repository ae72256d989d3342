package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/repositories"
	apperrors "branch-ledger/pkg/errors"
)

type AvailabilityServiceInterface interface {
	// ReservedQuantity sums reservations held on (part, source branch).
	// excludingTransferID zero excludes nothing.
	ReservedQuantity(ctx context.Context, tx pgx.Tx, partID, branchID, excludingTransferID int64) (int, error)
	// AvailableFor is max(stock.Quantity - reserved, 0). A nil stock is zero.
	AvailableFor(ctx context.Context, tx pgx.Tx, stock *entities.Stock, excludingTransferID int64) (int, error)
	// Available is NotFound for an unknown part or branch and zero for a pair
	// that never held stock.
	Available(ctx context.Context, partID, branchID, excludingTransferID int64) (int, error)
}

type AvailabilityService struct {
	stockRepo    repositories.StockRepositoryInterface
	transferRepo repositories.TransferRepositoryInterface
	locationRepo repositories.LocationRepositoryInterface
	logger       *zap.Logger
}

func NewAvailabilityService(
	stockRepo repositories.StockRepositoryInterface,
	transferRepo repositories.TransferRepositoryInterface,
	locationRepo repositories.LocationRepositoryInterface,
	logger *zap.Logger,
) AvailabilityServiceInterface {
	return &AvailabilityService{
		stockRepo:    stockRepo,
		transferRepo: transferRepo,
		locationRepo: locationRepo,
		logger:       logger,
	}
}

func (s *AvailabilityService) ReservedQuantity(ctx context.Context, tx pgx.Tx, partID, branchID, excludingTransferID int64) (int, error) {
	return s.transferRepo.SumReserved(ctx, tx, partID, branchID, excludingTransferID)
}

func (s *AvailabilityService) AvailableFor(ctx context.Context, tx pgx.Tx, stock *entities.Stock, excludingTransferID int64) (int, error) {
	if stock == nil {
		return 0, nil
	}
	reserved, err := s.ReservedQuantity(ctx, tx, stock.PartID, stock.BranchID, excludingTransferID)
	if err != nil {
		return 0, err
	}
	return clampAvailable(stock.Quantity, reserved), nil
}

func (s *AvailabilityService) Available(ctx context.Context, partID, branchID, excludingTransferID int64) (int, error) {
	if _, err := s.stockRepo.FindPart(ctx, nil, partID); err != nil {
		return 0, err
	}
	if _, err := s.locationRepo.FindBranch(ctx, nil, branchID); err != nil {
		return 0, err
	}

	stock, err := s.stockRepo.FindStock(ctx, partID, branchID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.AvailableFor(ctx, nil, stock, excludingTransferID)
}

func clampAvailable(onHand, reserved int) int {
	if onHand-reserved < 0 {
		return 0
	}
	return onHand - reserved
}
