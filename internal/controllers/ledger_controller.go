package controllers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/internal/dto"
	"branch-ledger/internal/entities"
	"branch-ledger/internal/services"
	"branch-ledger/pkg/api"
	"branch-ledger/pkg/constants"
	"branch-ledger/pkg/utils"
)

type LedgerController struct {
	ledgerService       services.LedgerServiceInterface
	availabilityService services.AvailabilityServiceInterface
	logger              *zap.Logger
}

func NewLedgerController(
	ledgerService services.LedgerServiceInterface,
	availabilityService services.AvailabilityServiceInterface,
	logger *zap.Logger,
) *LedgerController {
	return &LedgerController{
		ledgerService:       ledgerService,
		availabilityService: availabilityService,
		logger:              logger,
	}
}

func (c *LedgerController) AddStock(ctx echo.Context) error {
	var req dto.AddStockDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	mv, err := c.ledgerService.AddStock(ctx.Request().Context(), services.AddStockParams{
		PartID:     req.PartID,
		BranchID:   req.BranchID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		Action:     constants.MovementAction(req.Action),
		Actor:      actor,
	})
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "stock added", mv)
}

func (c *LedgerController) RemoveStock(ctx echo.Context) error {
	var req dto.RemoveStockDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	mvs, err := c.ledgerService.RemoveStock(ctx.Request().Context(), services.RemoveStockParams{
		PartID:              req.PartID,
		BranchID:            req.BranchID,
		LocationID:          req.LocationID,
		Quantity:            req.Quantity,
		Reason:              req.Reason,
		Action:              constants.MovementAction(req.Action),
		RespectReservations: req.RespectReservations,
		Actor:               actor,
	})
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "stock removed", mvs)
}

func (c *LedgerController) MoveStock(ctx echo.Context) error {
	var req dto.MoveStockDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	mv, err := c.ledgerService.MoveStock(ctx.Request().Context(), services.MoveStockParams{
		PartID:         req.PartID,
		BranchID:       req.BranchID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		Action:         constants.MovementAction(req.Action),
		Actor:          actor,
	})
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "stock moved", mv)
}

func (c *LedgerController) SyncAggregate(ctx echo.Context) error {
	var req dto.StockKeyDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}

	stock, err := c.ledgerService.SyncAggregate(ctx.Request().Context(), req.PartID, req.BranchID)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	if stock == nil {
		stock = &entities.Stock{PartID: req.PartID, BranchID: req.BranchID}
	}
	return api.SuccessOne(ctx, http.StatusOK, "aggregate synchronized", stock)
}

func (c *LedgerController) SeedFromAggregate(ctx echo.Context) error {
	var req dto.StockKeyDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}

	mv, err := c.ledgerService.SeedFromAggregateIfUnlocated(ctx.Request().Context(), req.PartID, req.BranchID)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	if mv == nil {
		return api.SuccessOne[*entities.StockMovement](ctx, http.StatusOK, "nothing to seed", nil)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "location row seeded", mv)
}

func (c *LedgerController) SetMinStockLevel(ctx echo.Context) error {
	var req dto.MinStockLevelDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}

	if err := c.ledgerService.SetMinStockLevel(ctx.Request().Context(), req.PartID, req.BranchID, req.MinStockLevel); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "min stock level updated", req)
}

func (c *LedgerController) GetStock(ctx echo.Context) error {
	partID, branchID, err := stockKeyFromQuery(ctx)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	view, err := c.ledgerService.GetStock(ctx.Request().Context(), partID, branchID)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "stock", view)
}

func (c *LedgerController) GetAvailable(ctx echo.Context) error {
	partID, branchID, err := stockKeyFromQuery(ctx)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	excluding, err := utils.QueryID(ctx, "excluding_transfer_id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	available, err := c.availabilityService.Available(ctx.Request().Context(), partID, branchID, excluding)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "available", dto.AvailableResponseDTO{
		PartID:              partID,
		BranchID:            branchID,
		ExcludingTransferID: excluding,
		Available:           available,
	})
}

func (c *LedgerController) ListMovements(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.QueryParams())
	format := strings.ToLower(ctx.QueryParam("format"))
	if format == "xlsx" {
		filter.WithPagination = false
	}
	if len(filter.Sort) == 0 {
		filter.Sort["id"] = "desc"
	}

	list, total, err := c.ledgerService.ListMovements(ctx.Request().Context(), filter)
	if err != nil {
		c.logger.Error("list movements failed", zap.Error(err))
		return api.ErrorResponse(ctx, err)
	}

	if format == "xlsx" {
		return respondWithXLSX(ctx, "movements", movementHeaders, movementRows(list))
	}
	return api.SuccessList(ctx, "movements", list, total, filter.Page, filter.Limit)
}

func (c *LedgerController) ListLowStock(ctx echo.Context) error {
	branchID, err := utils.QueryID(ctx, "branch_id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	items, err := c.ledgerService.ListLowStock(ctx.Request().Context(), branchID)
	if err != nil {
		c.logger.Error("low stock report failed", zap.Error(err), zap.Int64("branch_id", branchID))
		return api.ErrorResponse(ctx, err)
	}

	if strings.EqualFold(ctx.QueryParam("format"), "xlsx") {
		return respondWithXLSX(ctx, "low_stock", lowStockHeaders, lowStockRows(items))
	}
	return api.SuccessList(ctx, "low stock", items, uint64(len(items)), 1, len(items))
}

func stockKeyFromQuery(ctx echo.Context) (int64, int64, error) {
	partID, err := utils.QueryID(ctx, "part_id")
	if err != nil {
		return 0, 0, err
	}
	branchID, err := utils.QueryID(ctx, "branch_id")
	if err != nil {
		return 0, 0, err
	}
	if partID == 0 || branchID == 0 {
		return 0, 0, errMissingStockKey
	}
	return partID, branchID, nil
}
