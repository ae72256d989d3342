package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/internal/controllers"
)

func runLedgerRouter(secureGroup *echo.Group, svcs Services, logger *zap.Logger) {
	ledgerCtrl := controllers.NewLedgerController(svcs.Ledger, svcs.Availability, logger)

	ledgerGroup := secureGroup.Group("/ledger")

	ledgerGroup.POST("/stock/add", ledgerCtrl.AddStock)
	ledgerGroup.POST("/stock/remove", ledgerCtrl.RemoveStock)
	ledgerGroup.POST("/stock/move", ledgerCtrl.MoveStock)
	ledgerGroup.POST("/stock/sync", ledgerCtrl.SyncAggregate)
	ledgerGroup.POST("/stock/seed", ledgerCtrl.SeedFromAggregate)
	ledgerGroup.PUT("/stock/min-level", ledgerCtrl.SetMinStockLevel)
	ledgerGroup.GET("/stock", ledgerCtrl.GetStock)
	ledgerGroup.GET("/available", ledgerCtrl.GetAvailable)
	ledgerGroup.GET("/movements", ledgerCtrl.ListMovements)
	ledgerGroup.GET("/low-stock", ledgerCtrl.ListLowStock)
}
