package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/internal/dto"
	"branch-ledger/internal/entities"
	"branch-ledger/internal/services"
	"branch-ledger/pkg/api"
	"branch-ledger/pkg/utils"
)

type TransferController struct {
	transferService services.TransferServiceInterface
	logger          *zap.Logger
}

func NewTransferController(transferService services.TransferServiceInterface, logger *zap.Logger) *TransferController {
	return &TransferController{transferService: transferService, logger: logger}
}

func (c *TransferController) CreateTransfer(ctx echo.Context) error {
	var req dto.CreateTransferDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	t, err := c.transferService.CreateTransfer(ctx.Request().Context(), services.CreateTransferParams{
		PartID:              req.PartID,
		Quantity:            req.Quantity,
		SourceBranchID:      req.SourceBranchID,
		DestinationBranchID: req.DestinationBranchID,
		Notes:               req.Notes,
		Reason:              req.Reason,
		Actor:               actor,
	})
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "transfer requested", t)
}

func (c *TransferController) FindTransfer(ctx echo.Context) error {
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	t, err := c.transferService.FindTransfer(ctx.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "transfer", t)
}

func (c *TransferController) ListTransfers(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.QueryParams())
	if len(filter.Sort) == 0 {
		filter.Sort["id"] = "desc"
	}

	list, total, err := c.transferService.ListTransfers(ctx.Request().Context(), filter)
	if err != nil {
		c.logger.Error("list transfers failed", zap.Error(err))
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessList(ctx, "transfers", list, total, filter.Page, filter.Limit)
}

type transitionCall func(ctx context.Context, id int64, actor *entities.Actor, req dto.TransitionDTO) (*entities.TransferRequest, error)

func (c *TransferController) transition(ctx echo.Context, message string, call transitionCall) error {
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	var req dto.TransitionDTO
	if err := bindAndValidate(ctx, &req); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	t, err := call(ctx.Request().Context(), id, actor, req)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, message, t)
}

func (c *TransferController) Approve(ctx echo.Context) error {
	return c.transition(ctx, "transfer approved", func(rc context.Context, id int64, actor *entities.Actor, req dto.TransitionDTO) (*entities.TransferRequest, error) {
		return c.transferService.Approve(rc, id, actor, req.Reason)
	})
}

func (c *TransferController) Reject(ctx echo.Context) error {
	return c.transition(ctx, "transfer rejected", func(rc context.Context, id int64, actor *entities.Actor, req dto.TransitionDTO) (*entities.TransferRequest, error) {
		return c.transferService.Reject(rc, id, actor, req.Reason)
	})
}

func (c *TransferController) PickUp(ctx echo.Context) error {
	return c.transition(ctx, "transfer picked up", func(rc context.Context, id int64, actor *entities.Actor, req dto.TransitionDTO) (*entities.TransferRequest, error) {
		return c.transferService.MarkPickedUp(rc, id, actor, req.Reason, req.DriverID)
	})
}

func (c *TransferController) Deliver(ctx echo.Context) error {
	return c.transition(ctx, "transfer delivered", func(rc context.Context, id int64, actor *entities.Actor, req dto.TransitionDTO) (*entities.TransferRequest, error) {
		return c.transferService.MarkDelivered(rc, id, actor, req.Reason)
	})
}

func (c *TransferController) Receive(ctx echo.Context) error {
	return c.transition(ctx, "transfer received", func(rc context.Context, id int64, actor *entities.Actor, req dto.TransitionDTO) (*entities.TransferRequest, error) {
		return c.transferService.ConfirmReceive(rc, id, actor, req.Reason)
	})
}
