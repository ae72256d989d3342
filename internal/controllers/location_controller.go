package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/internal/dto"
	"branch-ledger/internal/services"
	"branch-ledger/pkg/api"
	"branch-ledger/pkg/utils"
)

type LocationController struct {
	locationService services.LocationServiceInterface
	logger          *zap.Logger
}

func NewLocationController(locationService services.LocationServiceInterface, logger *zap.Logger) *LocationController {
	return &LocationController{locationService: locationService, logger: logger}
}

func (c *LocationController) CreateBranch(ctx echo.Context) error {
	var req dto.CreateBranchDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	b, err := c.locationService.CreateBranch(ctx.Request().Context(), req.Name, req.Code, actor)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "branch created", b)
}

func (c *LocationController) ListBranches(ctx echo.Context) error {
	list, err := c.locationService.ListBranches(ctx.Request().Context())
	if err != nil {
		c.logger.Error("list branches failed", zap.Error(err))
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessList(ctx, "branches", list, uint64(len(list)), 1, len(list))
}

func (c *LocationController) CreateLocation(ctx echo.Context) error {
	branchID, err := utils.ParamID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	var req dto.CreateLocationDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}

	loc, err := c.locationService.CreateLocation(ctx.Request().Context(), branchID, req.Code, req.NameEn, req.NameAr)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "location created", loc)
}

func (c *LocationController) ListLocations(ctx echo.Context) error {
	branchID, err := utils.ParamID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	list, err := c.locationService.ListLocations(ctx.Request().Context(), branchID)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessList(ctx, "locations", list, uint64(len(list)), 1, len(list))
}
