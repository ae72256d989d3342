package entities

import (
	"encoding/json"
	"time"

	"github.com/aarondl/null/v8"
)

type AuditLog struct {
	ID         int64           `json:"id" db:"id"`
	EventID    string          `json:"event_id" db:"event_id"`
	ActorID    null.Int64      `json:"actor_id" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	Reason     string          `json:"reason" db:"reason"`
	ObjectType string          `json:"object_type" db:"object_type"`
	ObjectID   string          `json:"object_id" db:"object_id"`
	BranchID   null.Int64      `json:"branch_id" db:"branch_id"`
	BeforeData json.RawMessage `json:"before_data" db:"before_data"`
	AfterData  json.RawMessage `json:"after_data" db:"after_data"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
