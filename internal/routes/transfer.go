package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/internal/controllers"
)

func runTransferRouter(secureGroup *echo.Group, svcs Services, logger *zap.Logger) {
	transferCtrl := controllers.NewTransferController(svcs.Transfer, logger)

	transferGroup := secureGroup.Group("/transfers")

	transferGroup.POST("", transferCtrl.CreateTransfer)
	transferGroup.GET("", transferCtrl.ListTransfers)
	transferGroup.GET("/:id", transferCtrl.FindTransfer)
	transferGroup.POST("/:id/approve", transferCtrl.Approve)
	transferGroup.POST("/:id/reject", transferCtrl.Reject)
	transferGroup.POST("/:id/pickup", transferCtrl.PickUp)
	transferGroup.POST("/:id/deliver", transferCtrl.Deliver)
	transferGroup.POST("/:id/receive", transferCtrl.Receive)
}
