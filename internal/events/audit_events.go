package events

import (
	"time"

	"github.com/google/uuid"

	"branch-ledger/internal/entities"
)

const AuditRecordedEvent = "ledger.audit.recorded"

// AuditEvent is a fact emitted after a ledger or transfer mutation commits.
// Before and After are snapshots of the touched object; either may be nil.
type AuditEvent struct {
	EventID    string      `json:"event_id"`
	Action     string      `json:"action"`
	ActorID    *int64      `json:"actor_id,omitempty"`
	Reason     string      `json:"reason"`
	ObjectType string      `json:"object_type"`
	ObjectID   string      `json:"object_id"`
	BranchID   *int64      `json:"branch_id,omitempty"`
	Before     interface{} `json:"before,omitempty"`
	After      interface{} `json:"after,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (e AuditEvent) Name() string {
	return AuditRecordedEvent
}

func NewAuditEvent(action string, actor *entities.Actor, reason, objectType, objectID string, branchID int64, before, after interface{}) AuditEvent {
	e := AuditEvent{
		EventID:    uuid.NewString(),
		Action:     action,
		Reason:     reason,
		ObjectType: objectType,
		ObjectID:   objectID,
		Before:     before,
		After:      after,
		OccurredAt: time.Now().UTC(),
	}
	if actor != nil && actor.ID != 0 {
		id := actor.ID
		e.ActorID = &id
	}
	if branchID != 0 {
		e.BranchID = &branchID
	}
	return e
}
