package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
)

type AuditRepositoryInterface interface {
	InsertAuditLog(ctx context.Context, log entities.AuditLog) error
}

type AuditRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewAuditRepository(storage *pgxpool.Pool, logger *zap.Logger) AuditRepositoryInterface {
	return &AuditRepository{storage: storage, logger: logger}
}

// InsertAuditLog is idempotent on event_id.
func (r *AuditRepository) InsertAuditLog(ctx context.Context, log entities.AuditLog) error {
	_, err := r.storage.Exec(ctx, `
		INSERT INTO audit_logs (event_id, actor_id, action, reason, object_type, object_id, branch_id, before_data, after_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`,
		log.EventID, log.ActorID, log.Action, log.Reason, log.ObjectType, log.ObjectID, log.BranchID,
		nullableJSON(log.BeforeData), nullableJSON(log.AfterData))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
