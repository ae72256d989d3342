package entities

import (
	"time"

	"github.com/aarondl/null/v8"
)

type Location struct {
	ID        int64       `json:"id" db:"id"`
	BranchID  int64       `json:"branch_id" db:"branch_id"`
	Code      string      `json:"code" db:"code"`
	NameEn    null.String `json:"name_en" db:"name_en"`
	NameAr    null.String `json:"name_ar" db:"name_ar"`
	IsDefault bool        `json:"is_default" db:"is_default"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
