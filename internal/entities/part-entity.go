package entities

import "time"

type Part struct {
	ID         int64     `json:"id" db:"id"`
	PartNumber string    `json:"part_number" db:"part_number"`
	Name       string    `json:"name" db:"name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
