package entities

import "time"

// Stock is the per-branch projection of StockLocation rows. Its quantity is
// recomputed from the location rows, never adjusted on its own.
type Stock struct {
	ID            int64     `json:"id" db:"id"`
	PartID        int64     `json:"part_id" db:"part_id"`
	BranchID      int64     `json:"branch_id" db:"branch_id"`
	Quantity      int       `json:"quantity" db:"quantity"`
	MinStockLevel int       `json:"min_stock_level" db:"min_stock_level"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// StockLocation is the ledger's unit of truth.
type StockLocation struct {
	ID           int64     `json:"id" db:"id"`
	PartID       int64     `json:"part_id" db:"part_id"`
	BranchID     int64     `json:"branch_id" db:"branch_id"`
	LocationID   int64     `json:"location_id" db:"location_id"`
	LocationCode string    `json:"location_code" db:"location_code"`
	Quantity     int       `json:"quantity" db:"quantity"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// LowStockItem is a Stock row whose available quantity has fallen to its minimum level.
type LowStockItem struct {
	PartID        int64  `json:"part_id" db:"part_id"`
	PartNumber    string `json:"part_number" db:"part_number"`
	PartName      string `json:"part_name" db:"part_name"`
	BranchID      int64  `json:"branch_id" db:"branch_id"`
	BranchCode    string `json:"branch_code" db:"branch_code"`
	Quantity      int    `json:"quantity" db:"quantity"`
	Reserved      int    `json:"reserved" db:"reserved"`
	Available     int    `json:"available" db:"available"`
	MinStockLevel int    `json:"min_stock_level" db:"min_stock_level"`
}
