package dto

import "github.com/aarondl/null/v8"

type CreateBranchDTO struct {
	Name string `json:"name" validate:"required,notblank,max=120"`
	Code string `json:"code" validate:"required,location_code"`
}

type CreateLocationDTO struct {
	Code   string      `json:"code" validate:"required,location_code"`
	NameEn null.String `json:"name_en" validate:"omitempty,max=120"`
	NameAr null.String `json:"name_ar" validate:"omitempty,max=120"`
}
