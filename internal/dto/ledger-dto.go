package dto

// Quantities and reasons are checked by the services so refusals carry ledger
// error kinds; tags here only reject malformed requests.

type AddStockDTO struct {
	PartID     int64  `json:"part_id" validate:"required,gt=0"`
	BranchID   int64  `json:"branch_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"omitempty,gt=0"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason" validate:"max=500"`
	Action     string `json:"action" validate:"movement_action"`
}

type RemoveStockDTO struct {
	PartID              int64  `json:"part_id" validate:"required,gt=0"`
	BranchID            int64  `json:"branch_id" validate:"required,gt=0"`
	LocationID          int64  `json:"location_id" validate:"omitempty,gt=0"`
	Quantity            int    `json:"quantity"`
	Reason              string `json:"reason" validate:"max=500"`
	Action              string `json:"action" validate:"movement_action"`
	RespectReservations bool   `json:"respect_reservations"`
}

type MoveStockDTO struct {
	PartID         int64  `json:"part_id" validate:"required,gt=0"`
	BranchID       int64  `json:"branch_id" validate:"required,gt=0"`
	FromLocationID int64  `json:"from_location_id" validate:"required,gt=0"`
	ToLocationID   int64  `json:"to_location_id" validate:"required,gt=0"`
	Quantity       int    `json:"quantity"`
	Reason         string `json:"reason" validate:"max=500"`
	Action         string `json:"action" validate:"movement_action"`
}

type StockKeyDTO struct {
	PartID   int64 `json:"part_id" validate:"required,gt=0"`
	BranchID int64 `json:"branch_id" validate:"required,gt=0"`
}

type MinStockLevelDTO struct {
	PartID        int64 `json:"part_id" validate:"required,gt=0"`
	BranchID      int64 `json:"branch_id" validate:"required,gt=0"`
	MinStockLevel int   `json:"min_stock_level" validate:"gte=0"`
}

type AvailableResponseDTO struct {
	PartID              int64 `json:"part_id"`
	BranchID            int64 `json:"branch_id"`
	ExcludingTransferID int64 `json:"excluding_transfer_id,omitempty"`
	Available           int   `json:"available"`
}
