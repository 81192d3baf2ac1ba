package service

import (
	"context"

	"calendar-sync/core/constants"
	"calendar-sync/core/errors"
	"calendar-sync/core/logger"
	auditEntity "calendar-sync/modules/audit/entity"
	auditService "calendar-sync/modules/audit/service"
	"calendar-sync/modules/calendar/provider"
	calendarService "calendar-sync/modules/calendar/service"
	"calendar-sync/modules/sync/dto"
	"calendar-sync/modules/sync/entity"
	"calendar-sync/modules/sync/mapper"
	"calendar-sync/modules/sync/repository"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

// ClientProvider supplies authenticated provider clients. It is satisfied by the calendar token manager.
type ClientProvider interface {
	GetValidClient(ctx context.Context, userID uuid.UUID) (*calendarService.Connection, error)
	Invalidate(ctx context.Context, userID uuid.UUID, reason error) error
}

type SyncService interface {
	SyncOne(ctx context.Context, userID uuid.UUID, assignmentID string) (*dto.SyncResult, error)
	SyncAll(ctx context.Context, userID uuid.UUID) (*dto.BatchResult, error)
	DeleteSync(ctx context.Context, userID uuid.UUID, assignmentID string) (*dto.DeleteResult, error)
	GetMappingStatus(ctx context.Context, userID uuid.UUID, assignmentID string) (*dto.MappingStatusResponse, error)
}

type Config struct {
	DefaultTimezone     string
	AdoptOrphanedEvents bool
	MaxBatchErrors      int
}

type syncService struct {
	clients     ClientProvider
	mappings    repository.MappingRepository
	assignments repository.AssignmentRepository
	audit       auditService.Recorder
	cfg         Config
}

func NewSyncService(
	clients ClientProvider,
	mappings repository.MappingRepository,
	assignments repository.AssignmentRepository,
	audit auditService.Recorder,
	cfg Config,
) SyncService {
	if cfg.MaxBatchErrors <= 0 {
		cfg.MaxBatchErrors = 10
	}
	return &syncService{
		clients:     clients,
		mappings:    mappings,
		assignments: assignments,
		audit:       audit,
		cfg:         cfg,
	}
}

// SyncOne reconciles one assignment with its external event. A failed sync
// returns both a result describing the failure and an AppError for the caller.
func (s *syncService) SyncOne(ctx context.Context, userID uuid.UUID, assignmentID string) (*dto.SyncResult, error) {
	assignment, err := s.assignments.GetByID(ctx, userID, assignmentID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load assignment", err)
	}
	if assignment == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Assignment not found", nil)
	}

	// Malformed assignments fail before any network call, token refresh included.
	if err := mapper.Validate(assignment); err != nil {
		return s.validationFailure(ctx, userID, assignment.ID, err)
	}

	conn, err := s.clients.GetValidClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		perr := provider.NotConnected()
		return failedResult(assignment.ID, perr), perr.AppError()
	}

	return s.reconcile(ctx, conn, userID, assignment)
}

// reconcile moves one assignment to Synced: insert when unmapped, update in
// place when mapped, re-create when the mapped event has disappeared.
func (s *syncService) reconcile(ctx context.Context, conn *calendarService.Connection, userID uuid.UUID, a *entity.Assignment) (*dto.SyncResult, error) {
	event, err := mapper.Map(a, mapper.Options{
		DefaultTimezone: s.cfg.DefaultTimezone,
		ReminderMinutes: conn.Credential.SyncPreferences.ReminderMinutes,
	})
	if err != nil {
		return s.validationFailure(ctx, userID, a.ID, err)
	}

	mapping, err := s.mappings.Get(ctx, a.ID, userID, constants.ProviderGoogle)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load sync mapping", err)
	}

	var (
		action     string
		calendarID string
		saved      *calendar.Event
	)

	if mapping.IsActive() {
		action, calendarID = auditEntity.ActionUpdate, mapping.ExternalCalendarID
		saved, err = conn.Client.UpdateEvent(ctx, calendarID, mapping.ExternalEventID, event)
		if provider.IsNotFound(err) {
			logger.Warn("SyncService:Reconcile:Drift",
				"user_id", userID,
				"assignment_id", a.ID,
				"stale_event_id", mapping.ExternalEventID,
			)
			action, calendarID = auditEntity.ActionDriftRecover, conn.CalendarID()
			saved, err = conn.Client.InsertEvent(ctx, calendarID, event)
		}
	} else {
		action, calendarID = auditEntity.ActionCreate, conn.CalendarID()
		saved, err = s.createOrAdopt(ctx, conn, calendarID, a.ID, event, &action)
	}

	if err != nil {
		return s.providerFailure(ctx, userID, a.ID, action, err)
	}

	next := &entity.SyncMapping{
		AssignmentID:       a.ID,
		UserID:             userID,
		Provider:           constants.ProviderGoogle,
		ExternalEventID:    saved.Id,
		ExternalCalendarID: calendarID,
		EventLink:          saved.HtmlLink,
		SyncStatus:         entity.MappingActive,
	}
	if err := s.mappings.Upsert(ctx, next); err != nil {
		logger.Error("SyncService:Reconcile:UpsertMapping:Error",
			"error", err,
			"user_id", userID,
			"assignment_id", a.ID,
			"event_id", saved.Id,
		)
		s.record(ctx, auditEntity.NewFailure(userID, a.ID, action, err, auditEntity.JSONB{
			"event_id": saved.Id,
			"stage":    "mapping",
		}))
		return nil, errors.NewAppError(errors.ErrUpdateFailed, "Failed to save sync mapping", err)
	}

	details := auditEntity.JSONB{"event_id": saved.Id, "calendar_id": calendarID}
	if action == auditEntity.ActionDriftRecover {
		details["stale_event_id"] = mapping.ExternalEventID
	}
	s.record(ctx, auditEntity.NewSuccess(userID, a.ID, action, details))

	return &dto.SyncResult{
		Success:      true,
		AssignmentID: a.ID,
		Action:       action,
		EventID:      saved.Id,
		EventLink:    saved.HtmlLink,
	}, nil
}

// createOrAdopt inserts a new event, or with orphan adoption enabled, updates
// an existing event that already carries this assignment's back-reference.
func (s *syncService) createOrAdopt(ctx context.Context, conn *calendarService.Connection, calendarID, assignmentID string, event *calendar.Event, action *string) (*calendar.Event, error) {
	if s.cfg.AdoptOrphanedEvents {
		orphan, err := conn.Client.FindEventByAssignment(ctx, calendarID, assignmentID)
		if err != nil {
			return nil, err
		}
		if orphan != nil {
			*action = auditEntity.ActionAdopt
			return conn.Client.UpdateEvent(ctx, calendarID, orphan.Id, event)
		}
	}
	return conn.Client.InsertEvent(ctx, calendarID, event)
}

// DeleteSync removes the external event. Unmapped assignments and events that are already gone count as success.
func (s *syncService) DeleteSync(ctx context.Context, userID uuid.UUID, assignmentID string) (*dto.DeleteResult, error) {
	mapping, err := s.mappings.Get(ctx, assignmentID, userID, constants.ProviderGoogle)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load sync mapping", err)
	}
	if !mapping.IsActive() {
		s.record(ctx, auditEntity.NewSuccess(userID, assignmentID, auditEntity.ActionDelete, auditEntity.JSONB{
			"already_absent": true,
		}))
		return &dto.DeleteResult{Success: true, AssignmentID: assignmentID, AlreadyAbsent: true}, nil
	}

	conn, err := s.clients.GetValidClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		perr := provider.NotConnected()
		return &dto.DeleteResult{AssignmentID: assignmentID, Error: perr.UserMessage()}, perr.AppError()
	}

	alreadyAbsent := false
	if err := conn.Client.DeleteEvent(ctx, mapping.ExternalCalendarID, mapping.ExternalEventID); err != nil {
		if !provider.IsNotFound(err) {
			res, appErr := s.providerFailure(ctx, userID, assignmentID, auditEntity.ActionDelete, err)
			return &dto.DeleteResult{AssignmentID: assignmentID, Error: res.Error}, appErr
		}
		alreadyAbsent = true
	}

	if err := s.mappings.MarkDeleted(ctx, mapping.ID); err != nil {
		return nil, errors.NewAppError(errors.ErrUpdateFailed, "Failed to update sync mapping", err)
	}

	s.record(ctx, auditEntity.NewSuccess(userID, assignmentID, auditEntity.ActionDelete, auditEntity.JSONB{
		"event_id":       mapping.ExternalEventID,
		"already_absent": alreadyAbsent,
	}))
	return &dto.DeleteResult{Success: true, AssignmentID: assignmentID, AlreadyAbsent: alreadyAbsent}, nil
}

func (s *syncService) GetMappingStatus(ctx context.Context, userID uuid.UUID, assignmentID string) (*dto.MappingStatusResponse, error) {
	mapping, err := s.mappings.Get(ctx, assignmentID, userID, constants.ProviderGoogle)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load sync mapping", err)
	}
	if mapping == nil {
		return &dto.MappingStatusResponse{AssignmentID: assignmentID, Status: "unsynced"}, nil
	}

	updatedAt := mapping.UpdatedAt
	return &dto.MappingStatusResponse{
		AssignmentID: assignmentID,
		Synced:       mapping.IsActive(),
		Status:       mapping.SyncStatus,
		EventID:      mapping.ExternalEventID,
		CalendarID:   mapping.ExternalCalendarID,
		EventLink:    mapping.EventLink,
		UpdatedAt:    &updatedAt,
	}, nil
}

func (s *syncService) validationFailure(ctx context.Context, userID uuid.UUID, assignmentID string, err error) (*dto.SyncResult, error) {
	logger.Warn("SyncService:Validation:Error", "error", err, "user_id", userID, "assignment_id", assignmentID)
	s.record(ctx, auditEntity.NewFailure(userID, assignmentID, auditEntity.ActionCreate, err, auditEntity.JSONB{
		"kind": provider.KindValidation,
	}))
	return &dto.SyncResult{
			AssignmentID: assignmentID,
			ErrorKind:    provider.KindValidation,
			Error:        err.Error(),
		},
		errors.NewAppError(errors.ErrInvalidInput, err.Error(), err)
}

// providerFailure classifies err, invalidates rejected credentials and logs the raw error.
func (s *syncService) providerFailure(ctx context.Context, userID uuid.UUID, assignmentID, action string, err error) (*dto.SyncResult, error) {
	perr := provider.Classify(err)
	logger.Error("SyncService:Provider:Error",
		"error", err,
		"kind", perr.Kind,
		"status", perr.Status,
		"user_id", userID,
		"assignment_id", assignmentID,
		"action", action,
	)

	if perr.Kind == provider.KindAuthExpired {
		if ierr := s.clients.Invalidate(ctx, userID, err); ierr != nil {
			logger.Error("SyncService:Provider:Invalidate:Error", "error", ierr, "user_id", userID)
		}
	}

	s.record(ctx, auditEntity.NewFailure(userID, assignmentID, action, err, auditEntity.JSONB{
		"kind":   perr.Kind,
		"status": perr.Status,
		"reason": perr.Reason,
	}))
	return failedResult(assignmentID, perr), perr.AppError()
}

func (s *syncService) record(ctx context.Context, entry *auditEntity.SyncLogEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, entry)
}

func failedResult(assignmentID string, perr *provider.Error) *dto.SyncResult {
	return &dto.SyncResult{
		AssignmentID: assignmentID,
		ErrorKind:    perr.Kind,
		Error:        perr.UserMessage(),
	}
}
