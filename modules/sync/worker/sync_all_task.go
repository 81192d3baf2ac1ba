package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"calendar-sync/core/logger"
	coreWorker "calendar-sync/core/worker"
	"calendar-sync/modules/sync/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TypeSyncAll = "calendar:sync_all"

type SyncAllPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// NewSyncAllTask builds a queued batch sync. Unique prevents stacking runs for one user.
func NewSyncAllTask(userID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(SyncAllPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncAll, payload,
		asynq.Queue(coreWorker.QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Unique(5*time.Minute),
	), nil
}

type SyncAllHandler struct {
	service service.SyncService
}

func NewSyncAllHandler(service service.SyncService) *SyncAllHandler {
	return &SyncAllHandler{service: service}
}

func (h *SyncAllHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncAllPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.UserID == uuid.Nil {
		logger.Error("SyncAllHandler:ProcessTask:Payload:Error", "error", err)
		return fmt.Errorf("invalid sync_all payload: %w", asynq.SkipRetry)
	}

	result, err := h.service.SyncAll(ctx, payload.UserID)
	if err != nil {
		logger.Error("SyncAllHandler:ProcessTask:SyncAll:Error", "error", err, "user_id", payload.UserID)
		return err
	}

	logger.Info("SyncAllHandler:ProcessTask:Done",
		"user_id", payload.UserID,
		"synced", result.Synced,
		"failed", result.Failed,
	)
	return nil
}
