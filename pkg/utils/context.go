package utils

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"branch-ledger/internal/entities"
	"branch-ledger/pkg/contextkeys"
	apperrors "branch-ledger/pkg/errors"
)

// GetActorFromCtx returns the authenticated actor set by the auth middleware.
func GetActorFromCtx(ctx context.Context) (*entities.Actor, error) {
	actor, ok := ctx.Value(contextkeys.ActorKey).(*entities.Actor)
	if !ok || actor == nil {
		return nil, apperrors.ErrActorNotFoundInContext
	}
	return actor, nil
}

// ParamID parses a positive int64 path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewBadRequestError("invalid " + name)
	}
	return id, nil
}

// QueryID parses an optional int64 query parameter; absent means zero.
func QueryID(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, apperrors.NewBadRequestError("invalid " + name)
	}
	return id, nil
}
