package router

import (
	"calendar-sync/core/middleware"
	"calendar-sync/modules/audit/controller"

	"github.com/labstack/echo/v4"
)

type AuditRouter struct {
	controller *controller.AuditController
}

func NewAuditRouter(controller *controller.AuditController) *AuditRouter {
	return &AuditRouter{controller: controller}
}

func (r *AuditRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	syncRoutes := v1.Group("/private/sync")
	syncRoutes.Use(mw.AuthMiddleware())
	syncRoutes.GET("/logs", r.controller.ListSyncLogs)
}
