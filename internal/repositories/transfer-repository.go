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
	db "branch-ledger/internal/infrastructure/bd"
	"branch-ledger/pkg/constants"
	apperrors "branch-ledger/pkg/errors"
	"branch-ledger/pkg/types"
)

const transferColumns = `t.id, t.part_id, t.quantity, t.source_branch_id, t.destination_branch_id, t.status, t.reserved_quantity,
	t.requested_by_id, t.approved_by_id, t.rejected_by_id, t.driver_id, t.received_by_id,
	t.notes, t.rejection_reason, t.last_reason,
	t.created_at, t.approved_at, t.rejected_at, t.picked_up_at, t.delivered_at, t.received_at, t.updated_at`

var transferMap = map[string]string{
	"id":                    "t.id",
	"part_id":               "t.part_id",
	"status":                "t.status",
	"source_branch_id":      "t.source_branch_id",
	"destination_branch_id": "t.destination_branch_id",
	"driver_id":             "t.driver_id",
	"created_at":            "t.created_at",
	"updated_at":            "t.updated_at",
}

type TransferRepositoryInterface interface {
	CreateTransfer(ctx context.Context, tx pgx.Tx, t entities.TransferRequest) (*entities.TransferRequest, error)
	FindTransfer(ctx context.Context, tx pgx.Tx, id int64) (*entities.TransferRequest, error)
	LockTransfer(ctx context.Context, tx pgx.Tx, id int64) (*entities.TransferRequest, error)
	UpdateTransfer(ctx context.Context, tx pgx.Tx, t entities.TransferRequest) (*entities.TransferRequest, error)
	SumReserved(ctx context.Context, tx pgx.Tx, partID, branchID int64, excludingID int64) (int, error)
	ListTransfers(ctx context.Context, filter types.Filter) ([]entities.TransferRequest, uint64, error)
}

type TransferRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTransferRepository(storage *pgxpool.Pool, logger *zap.Logger) TransferRepositoryInterface {
	return &TransferRepository{storage: storage, logger: logger}
}

// -----------------------------------------------------------
// SCAN
// -----------------------------------------------------------

func scanTransfer(row pgx.Row) (*entities.TransferRequest, error) {
	var t entities.TransferRequest
	var status string
	err := row.Scan(
		&t.ID, &t.PartID, &t.Quantity, &t.SourceBranchID, &t.DestinationBranchID, &status, &t.ReservedQuantity,
		&t.RequestedByID, &t.ApprovedByID, &t.RejectedByID, &t.DriverID, &t.ReceivedByID,
		&t.Notes, &t.RejectionReason, &t.LastReason,
		&t.CreatedAt, &t.ApprovedAt, &t.RejectedAt, &t.PickedUpAt, &t.DeliveredAt, &t.ReceivedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	t.Status = constants.TransferStatus(status)
	return &t, nil
}

func (r *TransferRepository) CreateTransfer(ctx context.Context, tx pgx.Tx, t entities.TransferRequest) (*entities.TransferRequest, error) {
	q := `INSERT INTO transfer_requests AS t
			(part_id, quantity, source_branch_id, destination_branch_id, status, reserved_quantity, requested_by_id, notes, last_reason)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)
		RETURNING ` + transferColumns
	return scanTransfer(querierFor(r.storage, tx).QueryRow(ctx, q,
		t.PartID, t.Quantity, t.SourceBranchID, t.DestinationBranchID, constants.TransferRequested.String(),
		t.RequestedByID, t.Notes, t.LastReason))
}

func (r *TransferRepository) FindTransfer(ctx context.Context, tx pgx.Tx, id int64) (*entities.TransferRequest, error) {
	t, err := scanTransfer(querierFor(r.storage, tx).QueryRow(ctx,
		"SELECT "+transferColumns+" FROM transfer_requests t WHERE t.id = $1", id))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("transfer", id)
	}
	return t, err
}

func (r *TransferRepository) LockTransfer(ctx context.Context, tx pgx.Tx, id int64) (*entities.TransferRequest, error) {
	t, err := scanTransfer(tx.QueryRow(ctx,
		"SELECT "+transferColumns+" FROM transfer_requests t WHERE t.id = $1 FOR UPDATE", id))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("transfer", id)
	}
	return t, err
}

// UpdateTransfer writes every mutable column of t. Part, quantity and branches
// never change after creation.
func (r *TransferRepository) UpdateTransfer(ctx context.Context, tx pgx.Tx, t entities.TransferRequest) (*entities.TransferRequest, error) {
	q := `UPDATE transfer_requests AS t SET
			status = $2, reserved_quantity = $3,
			approved_by_id = $4, rejected_by_id = $5, driver_id = $6, received_by_id = $7,
			rejection_reason = $8, last_reason = $9,
			approved_at = $10, rejected_at = $11, picked_up_at = $12, delivered_at = $13, received_at = $14,
			updated_at = now()
		WHERE t.id = $1
		RETURNING ` + transferColumns
	return scanTransfer(tx.QueryRow(ctx, q,
		t.ID, t.Status.String(), t.ReservedQuantity,
		t.ApprovedByID, t.RejectedByID, t.DriverID, t.ReceivedByID,
		t.RejectionReason, t.LastReason,
		t.ApprovedAt, t.RejectedAt, t.PickedUpAt, t.DeliveredAt, t.ReceivedAt))
}

// SumReserved totals reserved_quantity over transfers holding a reservation on
// (part, source branch). excludingID zero excludes nothing.
func (r *TransferRepository) SumReserved(ctx context.Context, tx pgx.Tx, partID, branchID int64, excludingID int64) (int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query := psql.Select("COALESCE(SUM(t.reserved_quantity), 0)").
		From("transfer_requests t").
		Where(sq.Eq{
			"t.part_id":          partID,
			"t.source_branch_id": branchID,
			"t.status":           constants.ReservingStatusStrings(),
		})
	if excludingID != 0 {
		query = query.Where(sq.NotEq{"t.id": excludingID})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reserved query: %w", err)
	}

	var total int
	if err := querierFor(r.storage, tx).QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum reserved: %w", err)
	}
	return total, nil
}

func (r *TransferRepository) ListTransfers(ctx context.Context, filter types.Filter) ([]entities.TransferRequest, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	if len(filter.Sort) == 0 {
		filter.Sort = map[string]string{"id": "desc"}
	}

	query := db.ApplyListParams(psql.Select(transferColumns).From("transfer_requests t"), filter, transferMap)
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build transfers query: %w", err)
	}

	rows, err := r.storage.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []entities.TransferRequest
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := db.ApplyFilters(psql.Select("COUNT(*)").From("transfer_requests t"), filter, transferMap).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build transfers count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}
	return out, total, nil
}
