package controller

import (
	"calendar-sync/core/controller"
	"calendar-sync/core/params"
	"calendar-sync/modules/audit/service"

	"github.com/labstack/echo/v4"
)

type AuditController struct {
	controller.BaseController
	service service.AuditService
}

func NewAuditController(service service.AuditService) *AuditController {
	return &AuditController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// ListSyncLogs returns the current user's sync history, newest first
// GET /api/v1/private/sync/logs?page_number=&page_size=
func (c *AuditController) ListSyncLogs(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	logs, err := c.service.List(ctx.Request().Context(), userID, params.NewQueryParams(ctx))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, logs, "Sync logs retrieved successfully")
}
