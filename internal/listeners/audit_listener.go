package listeners

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/events"
	"branch-ledger/internal/repositories"
	"branch-ledger/pkg/eventbus"
)

// AuditRecorder persists audit events to audit_logs. It runs after the ledger
// transaction has committed, so a failure here is only logged.
type AuditRecorder struct {
	auditRepo repositories.AuditRepositoryInterface
	logger    *zap.Logger
}

func NewAuditRecorder(auditRepo repositories.AuditRepositoryInterface, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{auditRepo: auditRepo, logger: logger}
}

func (l *AuditRecorder) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.AuditRecordedEvent, l.handle)
	l.logger.Info("audit recorder subscribed", zap.String("event", events.AuditRecordedEvent))
}

func (l *AuditRecorder) handle(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.AuditEvent)
	if !ok {
		return fmt.Errorf("audit recorder: unexpected event %T", event)
	}

	log, err := toAuditLog(e)
	if err != nil {
		return err
	}
	if err := l.auditRepo.InsertAuditLog(ctx, log); err != nil {
		return err
	}

	l.logger.Debug("audit event recorded",
		zap.String("event_id", e.EventID),
		zap.String("action", e.Action),
		zap.String("object", e.ObjectType+":"+e.ObjectID),
	)
	return nil
}

func toAuditLog(e events.AuditEvent) (entities.AuditLog, error) {
	log := entities.AuditLog{
		EventID:    e.EventID,
		Action:     e.Action,
		Reason:     e.Reason,
		ObjectType: e.ObjectType,
		ObjectID:   e.ObjectID,
		CreatedAt:  e.OccurredAt,
	}
	if e.ActorID != nil {
		log.ActorID = null.Int64From(*e.ActorID)
	}
	if e.BranchID != nil {
		log.BranchID = null.Int64From(*e.BranchID)
	}

	var err error
	if log.BeforeData, err = marshalSnapshot(e.Before); err != nil {
		return log, fmt.Errorf("marshal before snapshot of %s: %w", e.EventID, err)
	}
	if log.AfterData, err = marshalSnapshot(e.After); err != nil {
		return log, fmt.Errorf("marshal after snapshot of %s: %w", e.EventID, err)
	}
	return log, nil
}

func marshalSnapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
