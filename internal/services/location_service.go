package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/events"
	"branch-ledger/internal/repositories"
	"branch-ledger/pkg/constants"
	apperrors "branch-ledger/pkg/errors"
	"branch-ledger/pkg/eventbus"
)

const defaultLocationCacheKey = "ledger:default_location:%d"

type LocationServiceInterface interface {
	FindBranch(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Branch, error)
	DefaultLocation(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Location, error)
	ValidateLocationBranch(ctx context.Context, tx pgx.Tx, locationID, branchID int64) (*entities.Location, error)

	CreateBranch(ctx context.Context, name, code string, actor *entities.Actor) (*entities.Branch, error)
	ListBranches(ctx context.Context) ([]entities.Branch, error)
	CreateLocation(ctx context.Context, branchID int64, code string, nameEn, nameAr null.String) (*entities.Location, error)
	ListLocations(ctx context.Context, branchID int64) ([]entities.Location, error)
}

type LocationService struct {
	locationRepo repositories.LocationRepositoryInterface
	cache        repositories.CacheRepositoryInterface
	txManager    repositories.TxManagerInterface
	bus          eventbus.Publisher
	cacheTTL     time.Duration
	logger       *zap.Logger
}

func NewLocationService(
	locationRepo repositories.LocationRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	txManager repositories.TxManagerInterface,
	bus eventbus.Publisher,
	cacheTTL time.Duration,
	logger *zap.Logger,
) LocationServiceInterface {
	return &LocationService{
		locationRepo: locationRepo,
		cache:        cache,
		txManager:    txManager,
		bus:          bus,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

func (s *LocationService) FindBranch(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Branch, error) {
	return s.locationRepo.FindBranch(ctx, tx, branchID)
}

// DefaultLocation returns the branch's UNASSIGNED location, creating it when
// the branch has none. The location id is cached; the row itself is always
// re-read so a stale cache entry can never point at another branch.
func (s *LocationService) DefaultLocation(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Location, error) {
	key := fmt.Sprintf(defaultLocationCacheKey, branchID)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		if id, convErr := strconv.ParseInt(cached, 10, 64); convErr == nil {
			loc, findErr := s.locationRepo.FindLocation(ctx, tx, id)
			if findErr == nil && loc.BranchID == branchID && loc.IsDefault {
				return loc, nil
			}
		}
		s.dropCache(ctx, key)
	} else if !errors.Is(err, repositories.ErrCacheMiss) {
		s.logger.Warn("default location cache read failed", zap.Int64("branch_id", branchID), zap.Error(err))
	}

	if _, err := s.locationRepo.FindBranch(ctx, tx, branchID); err != nil {
		return nil, err
	}

	loc, err := s.locationRepo.EnsureDefaultLocation(ctx, tx, branchID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, strconv.FormatInt(loc.ID, 10), s.cacheTTL); err != nil {
		s.logger.Warn("default location cache write failed", zap.Int64("branch_id", branchID), zap.Error(err))
	}
	return loc, nil
}

func (s *LocationService) dropCache(ctx context.Context, key string) {
	if err := s.cache.Del(ctx, key); err != nil {
		s.logger.Warn("default location cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// ValidateLocationBranch returns the location when it belongs to branchID.
func (s *LocationService) ValidateLocationBranch(ctx context.Context, tx pgx.Tx, locationID, branchID int64) (*entities.Location, error) {
	loc, err := s.locationRepo.FindLocation(ctx, tx, locationID)
	if err != nil {
		return nil, err
	}
	if loc.BranchID != branchID {
		return nil, &apperrors.LedgerError{
			Kind:       apperrors.KindLocationMismatch,
			Message:    fmt.Sprintf("location %d belongs to branch %d, not %d", locationID, loc.BranchID, branchID),
			BranchID:   branchID,
			LocationID: locationID,
		}
	}
	return loc, nil
}

// CreateBranch registers a branch together with its default location.
func (s *LocationService) CreateBranch(ctx context.Context, name, code string, actor *entities.Actor) (*entities.Branch, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if entities.NormalizeBranchName(name) == "" || code == "" {
		return nil, apperrors.NewLedgerError(apperrors.KindInvalidInput, "branch name and code are required")
	}

	var created *entities.Branch
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		b, err := s.locationRepo.CreateBranch(ctx, tx, entities.Branch{Name: name, Code: code})
		if err != nil {
			return err
		}
		if _, err := s.locationRepo.EnsureDefaultLocation(ctx, tx, b.ID); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("branch created", zap.Int64("branch_id", created.ID), zap.String("code", created.Code))
	s.bus.Publish(ctx, events.NewAuditEvent(constants.AuditActionBranchCreate, actor, "branch created",
		constants.AuditObjectBranch, strconv.FormatInt(created.ID, 10), created.ID, nil, created))
	return created, nil
}

func (s *LocationService) ListBranches(ctx context.Context) ([]entities.Branch, error) {
	return s.locationRepo.ListBranches(ctx)
}

func (s *LocationService) CreateLocation(ctx context.Context, branchID int64, code string, nameEn, nameAr null.String) (*entities.Location, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewLedgerError(apperrors.KindInvalidInput, "location code is required")
	}
	if strings.EqualFold(code, constants.DefaultLocationCode) {
		return nil, apperrors.NewLedgerError(apperrors.KindInvalidInput, "location code %s is reserved", constants.DefaultLocationCode)
	}

	var created *entities.Location
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.locationRepo.FindBranch(ctx, tx, branchID); err != nil {
			return err
		}
		loc, err := s.locationRepo.CreateLocation(ctx, tx, entities.Location{
			BranchID: branchID,
			Code:     code,
			NameEn:   nameEn,
			NameAr:   nameAr,
		})
		if err != nil {
			return err
		}
		created = loc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *LocationService) ListLocations(ctx context.Context, branchID int64) ([]entities.Location, error) {
	if _, err := s.locationRepo.FindBranch(ctx, nil, branchID); err != nil {
		return nil, err
	}
	return s.locationRepo.ListLocations(ctx, branchID)
}
