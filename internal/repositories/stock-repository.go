package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
	"branch-ledger/pkg/constants"
	apperrors "branch-ledger/pkg/errors"
)

const (
	stockColumns         = "s.id, s.part_id, s.branch_id, s.quantity, s.min_stock_level, s.updated_at"
	stockLocationColumns = "sl.id, sl.part_id, sl.branch_id, sl.location_id, l.code, sl.quantity, sl.updated_at"
	partColumns          = "p.id, p.part_number, p.name, p.created_at"
)

type StockRepositoryInterface interface {
	FindPart(ctx context.Context, tx pgx.Tx, id int64) (*entities.Part, error)
	CreatePart(ctx context.Context, tx pgx.Tx, part entities.Part) (*entities.Part, error)

	LockStockLocations(ctx context.Context, tx pgx.Tx, partID, branchID int64) ([]entities.StockLocation, error)
	EnsureStockLocation(ctx context.Context, tx pgx.Tx, partID, branchID, locationID int64) (*entities.StockLocation, error)
	UpdateStockLocationQuantity(ctx context.Context, tx pgx.Tx, id int64, quantity int) error
	SumStockLocations(ctx context.Context, tx pgx.Tx, partID, branchID int64) (int, error)
	ListStockLocations(ctx context.Context, partID, branchID int64) ([]entities.StockLocation, error)

	LockStock(ctx context.Context, tx pgx.Tx, partID, branchID int64) (*entities.Stock, error)
	EnsureStock(ctx context.Context, tx pgx.Tx, partID, branchID int64) (*entities.Stock, error)
	UpsertStockQuantity(ctx context.Context, tx pgx.Tx, partID, branchID int64, quantity int) (*entities.Stock, error)
	SetMinStockLevel(ctx context.Context, tx pgx.Tx, partID, branchID int64, level int) error
	FindStock(ctx context.Context, partID, branchID int64) (*entities.Stock, error)
	ListLowStock(ctx context.Context, branchID int64) ([]entities.LowStockItem, error)
}

type StockRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewStockRepository(storage *pgxpool.Pool, logger *zap.Logger) StockRepositoryInterface {
	return &StockRepository{storage: storage, logger: logger}
}

// -----------------------------------------------------------
// SCAN
// -----------------------------------------------------------

func scanStock(row pgx.Row) (*entities.Stock, error) {
	var s entities.Stock
	err := row.Scan(&s.ID, &s.PartID, &s.BranchID, &s.Quantity, &s.MinStockLevel, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stock: %w", err)
	}
	return &s, nil
}

func scanStockLocation(row pgx.Row) (*entities.StockLocation, error) {
	var sl entities.StockLocation
	err := row.Scan(&sl.ID, &sl.PartID, &sl.BranchID, &sl.LocationID, &sl.LocationCode, &sl.Quantity, &sl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stock location: %w", err)
	}
	return &sl, nil
}

func collectStockLocations(rows pgx.Rows) ([]entities.StockLocation, error) {
	defer rows.Close()
	var out []entities.StockLocation
	for rows.Next() {
		sl, err := scanStockLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sl)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------
// PARTS
// -----------------------------------------------------------

func (r *StockRepository) FindPart(ctx context.Context, tx pgx.Tx, id int64) (*entities.Part, error) {
	var p entities.Part
	err := querierFor(r.storage, tx).
		QueryRow(ctx, "SELECT "+partColumns+" FROM parts p WHERE p.id = $1", id).
		Scan(&p.ID, &p.PartNumber, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("part", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find part %d: %w", id, err)
	}
	return &p, nil
}

func (r *StockRepository) CreatePart(ctx context.Context, tx pgx.Tx, part entities.Part) (*entities.Part, error) {
	var p entities.Part
	err := querierFor(r.storage, tx).QueryRow(ctx, `
		INSERT INTO parts AS p (part_number, name) VALUES ($1, $2)
		ON CONFLICT (part_number) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+partColumns, part.PartNumber, part.Name).
		Scan(&p.ID, &p.PartNumber, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create part %s: %w", part.PartNumber, err)
	}
	return &p, nil
}

// -----------------------------------------------------------
// STOCK LOCATIONS
// -----------------------------------------------------------

// LockStockLocations takes FOR UPDATE locks on every location row of
// (part, branch), always in row id order.
func (r *StockRepository) LockStockLocations(ctx context.Context, tx pgx.Tx, partID, branchID int64) ([]entities.StockLocation, error) {
	q := `SELECT ` + stockLocationColumns + `
		FROM stock_locations sl
		JOIN locations l ON l.id = sl.location_id
		WHERE sl.part_id = $1 AND sl.branch_id = $2
		ORDER BY sl.id
		FOR UPDATE OF sl`
	rows, err := tx.Query(ctx, q, partID, branchID)
	if err != nil {
		return nil, fmt.Errorf("lock stock locations: %w", err)
	}
	return collectStockLocations(rows)
}

// EnsureStockLocation returns the locked row for the triple, creating it at
// zero when absent.
func (r *StockRepository) EnsureStockLocation(ctx context.Context, tx pgx.Tx, partID, branchID, locationID int64) (*entities.StockLocation, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_locations (part_id, branch_id, location_id, quantity)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (part_id, branch_id, location_id) DO NOTHING`,
		partID, branchID, locationID)
	if err != nil {
		return nil, fmt.Errorf("ensure stock location: %w", err)
	}

	q := `SELECT ` + stockLocationColumns + `
		FROM stock_locations sl
		JOIN locations l ON l.id = sl.location_id
		WHERE sl.part_id = $1 AND sl.branch_id = $2 AND sl.location_id = $3
		FOR UPDATE OF sl`
	return scanStockLocation(tx.QueryRow(ctx, q, partID, branchID, locationID))
}

func (r *StockRepository) UpdateStockLocationQuantity(ctx context.Context, tx pgx.Tx, id int64, quantity int) error {
	tag, err := tx.Exec(ctx,
		"UPDATE stock_locations SET quantity = $2, updated_at = now() WHERE id = $1", id, quantity)
	if err != nil {
		return fmt.Errorf("update stock location %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("stock location", id)
	}
	return nil
}

func (r *StockRepository) SumStockLocations(ctx context.Context, tx pgx.Tx, partID, branchID int64) (int, error) {
	var total int
	err := querierFor(r.storage, tx).QueryRow(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM stock_locations WHERE part_id = $1 AND branch_id = $2",
		partID, branchID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum stock locations: %w", err)
	}
	return total, nil
}

func (r *StockRepository) ListStockLocations(ctx context.Context, partID, branchID int64) ([]entities.StockLocation, error) {
	q := `SELECT ` + stockLocationColumns + `
		FROM stock_locations sl
		JOIN locations l ON l.id = sl.location_id
		WHERE sl.part_id = $1 AND sl.branch_id = $2
		ORDER BY sl.quantity DESC, l.code, sl.id`
	rows, err := r.storage.Query(ctx, q, partID, branchID)
	if err != nil {
		return nil, fmt.Errorf("list stock locations: %w", err)
	}
	return collectStockLocations(rows)
}

// -----------------------------------------------------------
// STOCK AGGREGATE
// -----------------------------------------------------------

// LockStock returns apperrors.ErrNotFound when (part, branch) has no aggregate row.
func (r *StockRepository) LockStock(ctx context.Context, tx pgx.Tx, partID, branchID int64) (*entities.Stock, error) {
	q := "SELECT " + stockColumns + " FROM stocks s WHERE s.part_id = $1 AND s.branch_id = $2 FOR UPDATE"
	return scanStock(tx.QueryRow(ctx, q, partID, branchID))
}

func (r *StockRepository) EnsureStock(ctx context.Context, tx pgx.Tx, partID, branchID int64) (*entities.Stock, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO stocks (part_id, branch_id, quantity) VALUES ($1, $2, 0)
		ON CONFLICT (part_id, branch_id) DO NOTHING`, partID, branchID)
	if err != nil {
		return nil, fmt.Errorf("ensure stock: %w", err)
	}
	return r.LockStock(ctx, tx, partID, branchID)
}

func (r *StockRepository) UpsertStockQuantity(ctx context.Context, tx pgx.Tx, partID, branchID int64, quantity int) (*entities.Stock, error) {
	q := `INSERT INTO stocks AS s (part_id, branch_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (part_id, branch_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
		RETURNING ` + stockColumns
	return scanStock(tx.QueryRow(ctx, q, partID, branchID, quantity))
}

func (r *StockRepository) SetMinStockLevel(ctx context.Context, tx pgx.Tx, partID, branchID int64, level int) error {
	_, err := querierFor(r.storage, tx).Exec(ctx, `
		INSERT INTO stocks (part_id, branch_id, quantity, min_stock_level) VALUES ($1, $2, 0, $3)
		ON CONFLICT (part_id, branch_id) DO UPDATE SET min_stock_level = EXCLUDED.min_stock_level, updated_at = now()`,
		partID, branchID, level)
	if err != nil {
		return fmt.Errorf("set min stock level: %w", err)
	}
	return nil
}

func (r *StockRepository) FindStock(ctx context.Context, partID, branchID int64) (*entities.Stock, error) {
	q := "SELECT " + stockColumns + " FROM stocks s WHERE s.part_id = $1 AND s.branch_id = $2"
	return scanStock(r.storage.QueryRow(ctx, q, partID, branchID))
}

// ListLowStock returns aggregates with a positive minimum level whose available
// quantity is at or below it. branchID zero means every branch.
func (r *StockRepository) ListLowStock(ctx context.Context, branchID int64) ([]entities.LowStockItem, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	// Nested builders keep '?' placeholders; the outer query renumbers them.
	reserved := sq.Select("COALESCE(SUM(t.reserved_quantity), 0)").
		From("transfer_requests t").
		Where("t.part_id = s.part_id AND t.source_branch_id = s.branch_id").
		Where(sq.Eq{"t.status": constants.ReservingStatusStrings()})

	inner := sq.Select(
		"s.part_id", "p.part_number", "p.name AS part_name",
		"s.branch_id", "b.code AS branch_code",
		"s.quantity", "s.min_stock_level",
	).
		Column(sq.Alias(reserved, "reserved")).
		From("stocks s").
		Join("parts p ON p.id = s.part_id").
		Join("branches b ON b.id = s.branch_id").
		Where("s.min_stock_level > 0")
	if branchID != 0 {
		inner = inner.Where(sq.Eq{"s.branch_id": branchID})
	}

	query := psql.Select(
		"x.part_id", "x.part_number", "x.part_name", "x.branch_id", "x.branch_code",
		"x.quantity", "x.reserved", "GREATEST(x.quantity - x.reserved, 0) AS available", "x.min_stock_level",
	).
		FromSelect(inner, "x").
		Where("GREATEST(x.quantity - x.reserved, 0) <= x.min_stock_level").
		OrderBy("x.branch_id", "x.part_number")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build low stock query: %w", err)
	}

	rows, err := r.storage.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()

	var out []entities.LowStockItem
	for rows.Next() {
		var it entities.LowStockItem
		if err := rows.Scan(&it.PartID, &it.PartNumber, &it.PartName, &it.BranchID, &it.BranchCode,
			&it.Quantity, &it.Reserved, &it.Available, &it.MinStockLevel); err != nil {
			return nil, fmt.Errorf("scan low stock: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
