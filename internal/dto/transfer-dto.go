package dto

type CreateTransferDTO struct {
	PartID              int64  `json:"part_id" validate:"required,gt=0"`
	Quantity            int    `json:"quantity"`
	SourceBranchID      int64  `json:"source_branch_id" validate:"required,gt=0"`
	DestinationBranchID int64  `json:"destination_branch_id" validate:"required,gt=0"`
	Notes               string `json:"notes" validate:"max=2000"`
	Reason              string `json:"reason" validate:"max=500"`
}

type TransitionDTO struct {
	Reason string `json:"reason" validate:"max=500"`
	// DriverID is read by pickup only; zero records the caller as driver.
	DriverID int64 `json:"driver_id" validate:"omitempty,gt=0"`
}
