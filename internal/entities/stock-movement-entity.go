package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"branch-ledger/pkg/constants"
)

// StockMovement is append-only. Quantity is always positive; direction is
// carried by which of FromLocationID/ToLocationID is set.
type StockMovement struct {
	ID             int64                    `json:"id" db:"id"`
	PartID         int64                    `json:"part_id" db:"part_id"`
	BranchID       int64                    `json:"branch_id" db:"branch_id"`
	Quantity       int                      `json:"quantity" db:"quantity"`
	FromLocationID null.Int64               `json:"from_location_id" db:"from_location_id"`
	ToLocationID   null.Int64               `json:"to_location_id" db:"to_location_id"`
	Action         constants.MovementAction `json:"action" db:"action"`
	Reason         string                   `json:"reason" db:"reason"`
	ActorID        null.Int64               `json:"actor_id" db:"actor_id"`
	TransferID     null.Int64               `json:"transfer_id" db:"transfer_id"`
	CreatedAt      time.Time                `json:"created_at" db:"created_at"`
}
