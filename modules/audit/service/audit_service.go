package service

import (
	"context"

	coredto "calendar-sync/core/dto"
	"calendar-sync/core/errors"
	"calendar-sync/core/logger"
	"calendar-sync/core/params"
	"calendar-sync/modules/audit/dto"
	"calendar-sync/modules/audit/entity"
	"calendar-sync/modules/audit/repository"

	"github.com/google/uuid"
)

// Recorder appends sync outcomes to the audit log.
type Recorder interface {
	Record(ctx context.Context, entry *entity.SyncLogEntry) error
}

type AuditService interface {
	Recorder
	List(ctx context.Context, userID uuid.UUID, p params.QueryParams) (*coredto.Pagination[dto.SyncLogResponse], error)
}

type auditService struct {
	repo repository.SyncLogRepository
}

func NewAuditService(repo repository.SyncLogRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) Record(ctx context.Context, entry *entity.SyncLogEntry) error {
	if err := s.repo.Append(ctx, entry); err != nil {
		logger.Error("AuditService:Record:Append:Error",
			"error", err,
			"user_id", entry.UserID,
			"action", entry.Action,
			"status", entry.Status,
		)
		return errors.NewAppError(errors.ErrCreateFailed, "Failed to write sync log", err)
	}
	return nil
}

func (s *auditService) List(ctx context.Context, userID uuid.UUID, p params.QueryParams) (*coredto.Pagination[dto.SyncLogResponse], error) {
	entries, total, err := s.repo.ListByUser(ctx, userID, p)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load sync logs", err)
	}

	items := make([]dto.SyncLogResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.ToSyncLogResponse(e))
	}
	return coredto.NewPagination(items, total, p.PageNumber, p.PageSize), nil
}
