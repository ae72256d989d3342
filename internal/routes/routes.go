package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"branch-ledger/internal/controllers"
	"branch-ledger/internal/repositories"
	"branch-ledger/internal/services"
	"branch-ledger/pkg/api"
	"branch-ledger/pkg/config"
	"branch-ledger/pkg/eventbus"
	"branch-ledger/pkg/middleware"
	"branch-ledger/pkg/service"
	"branch-ledger/pkg/websocket"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Ledger       services.LedgerServiceInterface
	Availability services.AvailabilityServiceInterface
	Transfer     services.TransferServiceInterface
	Location     services.LocationServiceInterface
	// Feed is optional; without it the websocket route is not mounted.
	Feed *websocket.Hub
}

// HealthChecker is satisfied by *pgxpool.Pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// BuildServices wires repositories and services over one pool.
func BuildServices(
	dbConn *pgxpool.Pool,
	cache repositories.CacheRepositoryInterface,
	bus eventbus.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) Services {
	txManager := repositories.NewTxManager(dbConn, cfg.Ledger.LockTimeout.Milliseconds(), logger)

	locationRepo := repositories.NewLocationRepository(dbConn, logger)
	stockRepo := repositories.NewStockRepository(dbConn, logger)
	movementRepo := repositories.NewMovementRepository(dbConn, logger)
	transferRepo := repositories.NewTransferRepository(dbConn, logger)

	locationService := services.NewLocationService(locationRepo, cache, txManager, bus, cfg.Redis.LocationCacheTTL, logger)
	availabilityService := services.NewAvailabilityService(stockRepo, transferRepo, locationRepo, logger)
	ledgerService := services.NewLedgerService(txManager, stockRepo, movementRepo, locationService, availabilityService, bus, logger)
	transferService := services.NewTransferService(txManager, transferRepo, stockRepo, ledgerService, locationService, availabilityService, bus, logger)

	return Services{
		Ledger:       ledgerService,
		Availability: availabilityService,
		Transfer:     transferService,
		Location:     locationService,
	}
}

func InitRouter(e *echo.Echo, svcs Services, jwtSvc service.JWTService, health HealthChecker, logger *zap.Logger) {
	logger.Info("InitRouter: registering routes")

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			return err
		},
	}))
	e.Use(middleware.InjectLogger(logger))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", healthHandler(health))

	authMW := middleware.NewAuthMiddleware(jwtSvc, logger)
	secureGroup := e.Group("/api", authMW.Auth)

	runLedgerRouter(secureGroup, svcs, logger)
	runTransferRouter(secureGroup, svcs, logger)
	runBranchRouter(secureGroup, svcs, logger)
	if svcs.Feed != nil {
		secureGroup.GET("/feed", controllers.NewFeedController(svcs.Feed, logger).Subscribe)
	}

	logger.Info("InitRouter: routes registered")
}

func healthHandler(health HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := health.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, api.Response[any]{Status: false, Message: "database unavailable"})
		}
		return api.SuccessOne(c, http.StatusOK, "ok", map[string]string{"database": "up"})
	}
}
