package server

import (
	"github.com/EvanSchalton/agent-kanban-sub001/internal/logging"
	"github.com/labstack/echo/v4"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := logging.WithID(c.Request().Context(), logging.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
