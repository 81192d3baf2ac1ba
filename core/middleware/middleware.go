package middleware

import (
	"strings"

	"calendar-sync/core/constants"
	"calendar-sync/core/controller"
	"calendar-sync/core/errors"
	"calendar-sync/core/logger"
	"calendar-sync/core/utils"

	"github.com/labstack/echo/v4"
)

type Middleware struct {
	jwtSecret string
	base      controller.BaseController
}

func NewMiddleware(jwtSecret string) *Middleware {
	return &Middleware{jwtSecret: jwtSecret, base: controller.NewBaseController()}
}

// AuthMiddleware validates the bearer token and stores its claims and user id on the context.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return m.base.ErrorResponse(c, errors.NewAppError(errors.ErrMissingAuthorizationHeader, "Missing authorization header", nil))
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return m.base.ErrorResponse(c, errors.NewAppError(errors.ErrInvalidTokenFormat, "Invalid authorization header", nil))
			}

			claims, err := utils.ValidateAndParseToken(token, m.jwtSecret)
			if err != nil {
				logger.Warn("Middleware:AuthMiddleware:ValidateToken:Error", "error", err, "path", c.Path())
				return m.base.ErrorResponse(c, err)
			}

			c.Set(constants.ContextTokenData, claims)
			c.Set(constants.ContextUserID, claims.UserID)
			return next(c)
		}
	}
}
