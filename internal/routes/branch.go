package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/internal/controllers"
)

func runBranchRouter(secureGroup *echo.Group, svcs Services, logger *zap.Logger) {
	locationCtrl := controllers.NewLocationController(svcs.Location, logger)

	branchGroup := secureGroup.Group("/branches")

	branchGroup.POST("", locationCtrl.CreateBranch)
	branchGroup.GET("", locationCtrl.ListBranches)
	branchGroup.GET("/:id/locations", locationCtrl.ListLocations)
	branchGroup.POST("/:id/locations", locationCtrl.CreateLocation)
}
