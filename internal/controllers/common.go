package controllers

import (
	"github.com/labstack/echo/v4"

	apperrors "branch-ledger/pkg/errors"
)

var errMissingStockKey = apperrors.NewBadRequestError("part_id and branch_id are required")

// bindAndValidate decodes the JSON body into dst and runs its validate tags.
func bindAndValidate(ctx echo.Context, dst interface{}) error {
	if err := ctx.Bind(dst); err != nil {
		return apperrors.NewBadRequestError("malformed request body")
	}
	if err := ctx.Validate(dst); err != nil {
		return err
	}
	return nil
}
