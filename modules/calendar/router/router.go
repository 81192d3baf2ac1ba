package router

import (
	"calendar-sync/core/middleware"
	"calendar-sync/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

type CalendarRouter struct {
	controller *controller.CalendarController
}

func NewCalendarRouter(controller *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{
		controller: controller,
	}
}

func (r *CalendarRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// Google redirects here without our bearer token; the OAuth state identifies the user
	v1.GET("/public/calendar/callback", r.controller.Callback)

	calendarRoutes := v1.Group("/private/calendar")
	calendarRoutes.Use(mw.AuthMiddleware())

	calendarRoutes.GET("/connect", r.controller.Connect)
	calendarRoutes.DELETE("/connection", r.controller.Disconnect)
	calendarRoutes.GET("/calendars", r.controller.ListCalendars)
	calendarRoutes.GET("/status", r.controller.Status)
	calendarRoutes.PUT("/preferences", r.controller.UpdatePreferences)
}
