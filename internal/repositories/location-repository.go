package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
	"branch-ledger/pkg/constants"
	apperrors "branch-ledger/pkg/errors"
)

const (
	branchColumns   = "b.id, b.name, b.code, b.created_at, b.updated_at"
	locationColumns = "l.id, l.branch_id, l.code, l.name_en, l.name_ar, l.is_default, l.created_at"
)

type LocationRepositoryInterface interface {
	FindBranch(ctx context.Context, tx pgx.Tx, id int64) (*entities.Branch, error)
	ListBranches(ctx context.Context) ([]entities.Branch, error)
	CreateBranch(ctx context.Context, tx pgx.Tx, branch entities.Branch) (*entities.Branch, error)

	FindLocation(ctx context.Context, tx pgx.Tx, id int64) (*entities.Location, error)
	FindDefaultLocation(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Location, error)
	EnsureDefaultLocation(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Location, error)
	CreateLocation(ctx context.Context, tx pgx.Tx, location entities.Location) (*entities.Location, error)
	ListLocations(ctx context.Context, branchID int64) ([]entities.Location, error)
}

type LocationRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewLocationRepository(storage *pgxpool.Pool, logger *zap.Logger) LocationRepositoryInterface {
	return &LocationRepository{storage: storage, logger: logger}
}

// -----------------------------------------------------------
// SCAN
// -----------------------------------------------------------

func scanBranch(row pgx.Row) (*entities.Branch, error) {
	var b entities.Branch
	err := row.Scan(&b.ID, &b.Name, &b.Code, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan branch: %w", err)
	}
	return &b, nil
}

func scanLocation(row pgx.Row) (*entities.Location, error) {
	var l entities.Location
	err := row.Scan(&l.ID, &l.BranchID, &l.Code, &l.NameEn, &l.NameAr, &l.IsDefault, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan location: %w", err)
	}
	return &l, nil
}

// -----------------------------------------------------------
// BRANCHES
// -----------------------------------------------------------

func (r *LocationRepository) FindBranch(ctx context.Context, tx pgx.Tx, id int64) (*entities.Branch, error) {
	q := "SELECT " + branchColumns + " FROM branches b WHERE b.id = $1"
	b, err := scanBranch(querierFor(r.storage, tx).QueryRow(ctx, q, id))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("branch", id)
	}
	return b, err
}

func (r *LocationRepository) ListBranches(ctx context.Context) ([]entities.Branch, error) {
	rows, err := r.storage.Query(ctx, "SELECT "+branchColumns+" FROM branches b ORDER BY b.id")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var out []entities.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *LocationRepository) CreateBranch(ctx context.Context, tx pgx.Tx, branch entities.Branch) (*entities.Branch, error) {
	q := `INSERT INTO branches AS b (name, code) VALUES ($1, $2)
		RETURNING ` + branchColumns
	b, err := scanBranch(querierFor(r.storage, tx).QueryRow(ctx, q, branch.Name, branch.Code))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewLedgerError(apperrors.KindInvalidInput,
				"a branch named %q or coded %q already exists", branch.Name, branch.Code)
		}
		return nil, err
	}
	return b, nil
}

// -----------------------------------------------------------
// LOCATIONS
// -----------------------------------------------------------

func (r *LocationRepository) FindLocation(ctx context.Context, tx pgx.Tx, id int64) (*entities.Location, error) {
	q := "SELECT " + locationColumns + " FROM locations l WHERE l.id = $1"
	l, err := scanLocation(querierFor(r.storage, tx).QueryRow(ctx, q, id))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("location", id)
	}
	return l, err
}

func (r *LocationRepository) FindDefaultLocation(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Location, error) {
	q := "SELECT " + locationColumns + " FROM locations l WHERE l.branch_id = $1 AND l.is_default"
	return scanLocation(querierFor(r.storage, tx).QueryRow(ctx, q, branchID))
}

// EnsureDefaultLocation creates the branch's UNASSIGNED location if missing and
// returns it. Concurrent callers converge on the same row.
func (r *LocationRepository) EnsureDefaultLocation(ctx context.Context, tx pgx.Tx, branchID int64) (*entities.Location, error) {
	db := querierFor(r.storage, tx)
	_, err := db.Exec(ctx, `
		INSERT INTO locations (branch_id, code, name_en, name_ar, is_default)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT DO NOTHING`,
		branchID, constants.DefaultLocationCode, constants.DefaultLocationNameEn, constants.DefaultLocationNameAr)
	if err != nil {
		return nil, fmt.Errorf("ensure default location for branch %d: %w", branchID, err)
	}

	q := "SELECT " + locationColumns + " FROM locations l WHERE l.branch_id = $1 AND (l.is_default OR l.code = $2) ORDER BY l.is_default DESC LIMIT 1"
	return scanLocation(db.QueryRow(ctx, q, branchID, constants.DefaultLocationCode))
}

func (r *LocationRepository) CreateLocation(ctx context.Context, tx pgx.Tx, location entities.Location) (*entities.Location, error) {
	q := `INSERT INTO locations AS l (branch_id, code, name_en, name_ar, is_default)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING ` + locationColumns
	l, err := scanLocation(querierFor(r.storage, tx).QueryRow(ctx, q,
		location.BranchID, location.Code, location.NameEn, location.NameAr))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewLedgerError(apperrors.KindInvalidInput,
				"location code %q already exists in branch %d", location.Code, location.BranchID)
		}
		return nil, err
	}
	return l, nil
}

func (r *LocationRepository) ListLocations(ctx context.Context, branchID int64) ([]entities.Location, error) {
	q := "SELECT " + locationColumns + " FROM locations l WHERE l.branch_id = $1 ORDER BY l.is_default DESC, l.code"
	rows, err := r.storage.Query(ctx, q, branchID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []entities.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
