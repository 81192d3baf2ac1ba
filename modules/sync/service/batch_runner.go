package service

import (
	"context"
	"fmt"

	"calendar-sync/core/constants"
	"calendar-sync/core/errors"
	"calendar-sync/core/logger"
	"calendar-sync/core/utils"
	auditEntity "calendar-sync/modules/audit/entity"
	"calendar-sync/modules/calendar/provider"
	"calendar-sync/modules/sync/dto"

	"github.com/google/uuid"
)

// SyncAll mirrors every assignment without an active mapping. Items run one
// at a time to stay under the provider's per-user rate limits, and a failing
// item never stops the run.
func (s *syncService) SyncAll(ctx context.Context, userID uuid.UUID) (*dto.BatchResult, error) {
	conn, err := s.clients.GetValidClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, provider.NotConnected().AppError()
	}

	candidates, err := s.assignments.ListUnsynced(ctx, userID, constants.ProviderGoogle)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load unsynced assignments", err)
	}

	result := &dto.BatchResult{RunID: utils.NewRunID(), Total: len(candidates), Errors: []string{}}
	for i := range candidates {
		a := &candidates[i]

		res, err := s.reconcile(ctx, conn, userID, a)
		if err == nil {
			result.Synced++
			continue
		}

		result.Failed++
		if len(result.Errors) < s.cfg.MaxBatchErrors {
			msg := err.Error()
			if res != nil && res.Error != "" {
				msg = res.Error
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", a.ID, msg))
		}
	}

	details := auditEntity.JSONB{
		"run_id": result.RunID,
		"total":  result.Total,
		"synced": result.Synced,
		"failed": result.Failed,
		"errors": result.Errors,
	}
	if result.Failed > 0 {
		summary := fmt.Errorf("%d of %d assignments failed to sync", result.Failed, result.Total)
		s.record(ctx, auditEntity.NewFailure(userID, "", auditEntity.ActionFullSync, summary, details))
	} else {
		s.record(ctx, auditEntity.NewSuccess(userID, "", auditEntity.ActionFullSync, details))
	}

	logger.Info("SyncService:SyncAll:Complete",
		"user_id", userID,
		"run_id", result.RunID,
		"total", result.Total,
		"synced", result.Synced,
		"failed", result.Failed,
	)
	return result, nil
}
