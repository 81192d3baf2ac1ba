package controller

import (
	"calendar-sync/core/controller"
	"calendar-sync/core/errors"
	"calendar-sync/modules/calendar/dto"
	"calendar-sync/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	controller.BaseController
	service service.CalendarService
}

func NewCalendarController(service service.CalendarService) *CalendarController {
	return &CalendarController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// Connect returns the Google consent URL for the current user
// GET /api/v1/private/calendar/connect
func (c *CalendarController) Connect(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	resp, err := c.service.ConnectCalendar(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, resp, "Authorization URL created")
}

// Callback completes the OAuth flow started by Connect
// GET /api/v1/public/calendar/callback?code=...&state=...
func (c *CalendarController) Callback(ctx echo.Context) error {
	if errParam := ctx.QueryParam("error"); errParam != "" {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrAuthExchangeFailed, "Calendar access was not granted: "+errParam, nil))
	}

	resp, err := c.service.HandleOAuthCallback(ctx.Request().Context(), ctx.QueryParam("code"), ctx.QueryParam("state"))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, resp, "Calendar connected successfully")
}

// Disconnect deactivates the current user's calendar connection
// DELETE /api/v1/private/calendar/connection
func (c *CalendarController) Disconnect(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	disconnected, err := c.service.Disconnect(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.DisconnectResponse{Disconnected: disconnected}, "Calendar disconnected")
}

// ListCalendars lists the calendars visible to the connected account
// GET /api/v1/private/calendar/calendars
func (c *CalendarController) ListCalendars(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	calendars, err := c.service.ListCalendars(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.CalendarListResponse{Calendars: calendars}, "Calendars retrieved successfully")
}

// GET /api/v1/private/calendar/status
func (c *CalendarController) Status(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	status, err := c.service.Status(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, status, "Calendar status retrieved successfully")
}

// PUT /api/v1/private/calendar/preferences
func (c *CalendarController) UpdatePreferences(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	var req dto.UpdatePreferencesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "Invalid request body", err))
	}

	status, err := c.service.UpdatePreferences(ctx.Request().Context(), userID, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, status, "Calendar preferences updated")
}
