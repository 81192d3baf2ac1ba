package router

import (
	"calendar-sync/core/middleware"
	"calendar-sync/modules/sync/controller"

	"github.com/labstack/echo/v4"
)

type SyncRouter struct {
	controller *controller.SyncController
}

func NewSyncRouter(controller *controller.SyncController) *SyncRouter {
	return &SyncRouter{controller: controller}
}

func (r *SyncRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	syncRoutes := v1.Group("/private/sync")
	syncRoutes.Use(mw.AuthMiddleware())

	syncRoutes.POST("/all", r.controller.SyncAll)
	syncRoutes.GET("/assignments/:id", r.controller.GetAssignmentSync)
	syncRoutes.POST("/assignments/:id", r.controller.SyncAssignment)
	syncRoutes.DELETE("/assignments/:id", r.controller.DeleteAssignmentSync)
}
