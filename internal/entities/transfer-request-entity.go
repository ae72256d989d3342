package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"branch-ledger/pkg/constants"
)

type TransferRequest struct {
	ID                  int64                    `json:"id" db:"id"`
	PartID              int64                    `json:"part_id" db:"part_id"`
	Quantity            int                      `json:"quantity" db:"quantity"`
	SourceBranchID      int64                    `json:"source_branch_id" db:"source_branch_id"`
	DestinationBranchID int64                    `json:"destination_branch_id" db:"destination_branch_id"`
	Status              constants.TransferStatus `json:"status" db:"status"`
	ReservedQuantity    int                      `json:"reserved_quantity" db:"reserved_quantity"`

	RequestedByID null.Int64 `json:"requested_by_id" db:"requested_by_id"`
	ApprovedByID  null.Int64 `json:"approved_by_id" db:"approved_by_id"`
	RejectedByID  null.Int64 `json:"rejected_by_id" db:"rejected_by_id"`
	DriverID      null.Int64 `json:"driver_id" db:"driver_id"`
	ReceivedByID  null.Int64 `json:"received_by_id" db:"received_by_id"`

	Notes           string      `json:"notes" db:"notes"`
	RejectionReason null.String `json:"rejection_reason" db:"rejection_reason"`
	LastReason      null.String `json:"last_reason" db:"last_reason"`

	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ApprovedAt  null.Time `json:"approved_at" db:"approved_at"`
	RejectedAt  null.Time `json:"rejected_at" db:"rejected_at"`
	PickedUpAt  null.Time `json:"picked_up_at" db:"picked_up_at"`
	DeliveredAt null.Time `json:"delivered_at" db:"delivered_at"`
	ReceivedAt  null.Time `json:"received_at" db:"received_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
