package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
	db "branch-ledger/internal/infrastructure/bd"
	"branch-ledger/pkg/types"
)

const movementColumns = "m.id, m.part_id, m.branch_id, m.quantity, m.from_location_id, m.to_location_id, m.action, m.reason, m.actor_id, m.transfer_id, m.created_at"

var movementMap = map[string]string{
	"id":               "m.id",
	"part_id":          "m.part_id",
	"branch_id":        "m.branch_id",
	"action":           "m.action",
	"transfer_id":      "m.transfer_id",
	"actor_id":         "m.actor_id",
	"from_location_id": "m.from_location_id",
	"to_location_id":   "m.to_location_id",
	"created_at":       "m.created_at",
}

type MovementRepositoryInterface interface {
	InsertMovement(ctx context.Context, tx pgx.Tx, m entities.StockMovement) (*entities.StockMovement, error)
	ListMovements(ctx context.Context, filter types.Filter) ([]entities.StockMovement, uint64, error)
}

type MovementRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewMovementRepository(storage *pgxpool.Pool, logger *zap.Logger) MovementRepositoryInterface {
	return &MovementRepository{storage: storage, logger: logger}
}

// -----------------------------------------------------------
// SCAN
// -----------------------------------------------------------

func scanMovement(row pgx.Row) (*entities.StockMovement, error) {
	var m entities.StockMovement
	err := row.Scan(&m.ID, &m.PartID, &m.BranchID, &m.Quantity, &m.FromLocationID, &m.ToLocationID,
		&m.Action, &m.Reason, &m.ActorID, &m.TransferID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan movement: %w", err)
	}
	return &m, nil
}

func (r *MovementRepository) InsertMovement(ctx context.Context, tx pgx.Tx, m entities.StockMovement) (*entities.StockMovement, error) {
	q := `INSERT INTO stock_movements AS m
			(part_id, branch_id, quantity, from_location_id, to_location_id, action, reason, actor_id, transfer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + movementColumns
	return scanMovement(tx.QueryRow(ctx, q,
		m.PartID, m.BranchID, m.Quantity, m.FromLocationID, m.ToLocationID,
		m.Action.String(), m.Reason, m.ActorID, m.TransferID))
}

func (r *MovementRepository) ListMovements(ctx context.Context, filter types.Filter) ([]entities.StockMovement, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	if len(filter.Sort) == 0 {
		filter.Sort = map[string]string{"id": "desc"}
	}

	query := db.ApplyListParams(psql.Select(movementColumns).From("stock_movements m"), filter, movementMap)
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build movements query: %w", err)
	}

	rows, err := r.storage.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var out []entities.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := db.ApplyFilters(psql.Select("COUNT(*)").From("stock_movements m"), filter, movementMap).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build movements count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}
	return out, total, nil
}
