package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"branch-ledger/pkg/api"
	"branch-ledger/pkg/contextkeys"
	apperrors "branch-ledger/pkg/errors"
	"branch-ledger/pkg/service"
)

type AuthMiddleware struct {
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtSvc,
		logger:     logger,
	}
}

// Auth requires a valid bearer token and puts the actor into the request context.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			m.logger.Warn("auth: empty Authorization header", zap.String("path", c.Path()))
			return api.ErrorResponse(c, apperrors.ErrEmptyAuthHeader)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.logger.Warn("auth: malformed Authorization header", zap.String("path", c.Path()))
			return api.ErrorResponse(c, apperrors.ErrInvalidAuthHeader)
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("auth: token rejected", zap.Error(err))
			return api.ErrorResponse(c, err)
		}

		ctx := context.WithValue(c.Request().Context(), contextkeys.ActorKey, claims.Actor())
		c.SetRequest(c.Request().WithContext(ctx))

		m.logger.Debug("auth: actor authenticated", zap.Int64("actor_id", claims.UserID))
		return next(c)
	}
}
