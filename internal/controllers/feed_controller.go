package controllers

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/pkg/api"
	"branch-ledger/pkg/utils"
	"branch-ledger/pkg/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FeedController streams audit events over a websocket, optionally narrowed
// to one branch with ?branch_id=.
type FeedController struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewFeedController(hub *websocket.Hub, logger *zap.Logger) *FeedController {
	return &FeedController{hub: hub, logger: logger}
}

func (c *FeedController) Subscribe(ctx echo.Context) error {
	actor, err := utils.GetActorFromCtx(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	branchID, err := utils.QueryID(ctx, "branch_id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	client := websocket.NewClient(c.hub, conn, actor.ID, branchID)
	if !c.hub.Join(client) {
		conn.Close()
		return nil
	}
	go client.WritePump()
	go client.ReadPump()
	return nil
}
