package controller

import (
	"strconv"
	"strings"

	"calendar-sync/core/controller"
	"calendar-sync/core/errors"
	"calendar-sync/core/logger"
	coreWorker "calendar-sync/core/worker"
	"calendar-sync/modules/sync/dto"
	"calendar-sync/modules/sync/service"
	"calendar-sync/modules/sync/worker"

	"github.com/labstack/echo/v4"
)

type SyncController struct {
	controller.BaseController
	service  service.SyncService
	enqueuer coreWorker.Enqueuer
}

// NewSyncController accepts a nil enqueuer; async batch requests then run inline.
func NewSyncController(service service.SyncService, enqueuer coreWorker.Enqueuer) *SyncController {
	return &SyncController{
		BaseController: controller.NewBaseController(),
		service:        service,
		enqueuer:       enqueuer,
	}
}

// SyncAssignment creates or updates the calendar event for one assignment
// POST /api/v1/private/sync/assignments/:id
func (c *SyncController) SyncAssignment(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	assignmentID, err := assignmentParam(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	result, err := c.service.SyncOne(ctx.Request().Context(), userID, assignmentID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, result, "Assignment synced successfully")
}

// DeleteAssignmentSync removes the calendar event for one assignment
// DELETE /api/v1/private/sync/assignments/:id
func (c *SyncController) DeleteAssignmentSync(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	assignmentID, err := assignmentParam(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	result, err := c.service.DeleteSync(ctx.Request().Context(), userID, assignmentID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, result, "Assignment sync removed")
}

// GET /api/v1/private/sync/assignments/:id
func (c *SyncController) GetAssignmentSync(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	assignmentID, err := assignmentParam(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	status, err := c.service.GetMappingStatus(ctx.Request().Context(), userID, assignmentID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, status, "Sync status retrieved successfully")
}

// SyncAll mirrors every unsynced assignment, inline or as a queued task with ?async=true
// POST /api/v1/private/sync/all
func (c *SyncController) SyncAll(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	async, _ := strconv.ParseBool(ctx.QueryParam("async"))
	if async && c.enqueuer != nil {
		task, err := worker.NewSyncAllTask(userID)
		if err != nil {
			return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "Failed to build sync task", err))
		}
		info, err := c.enqueuer.Enqueue(ctx.Request().Context(), task)
		if err != nil {
			return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "Failed to queue sync", err))
		}
		return c.CreatedResponse(ctx, dto.QueuedResponse{TaskID: info.ID, Queue: info.Queue}, "Sync queued")
	}
	if async {
		logger.Warn("SyncController:SyncAll:NoQueue", "user_id", userID)
	}

	result, err := c.service.SyncAll(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, result, "Sync completed")
}

func assignmentParam(ctx echo.Context) (string, error) {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		return "", errors.NewAppError(errors.ErrInvalidInput, "Assignment ID is required", nil)
	}
	return id, nil
}
