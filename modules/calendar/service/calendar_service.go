package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"calendar-sync/core/cache"
	"calendar-sync/core/constants"
	"calendar-sync/core/errors"
	"calendar-sync/core/logger"
	"calendar-sync/core/utils"
	auditEntity "calendar-sync/modules/audit/entity"
	auditService "calendar-sync/modules/audit/service"
	"calendar-sync/modules/calendar/dto"
	"calendar-sync/modules/calendar/entity"
	"calendar-sync/modules/calendar/provider"
	"calendar-sync/modules/calendar/repository"

	"github.com/google/uuid"
)

const (
	stateLength        = 32
	maxReminderMinutes = 40320 // four weeks, the provider maximum
	maxReminders       = 5
)

type CalendarService interface {
	ConnectCalendar(ctx context.Context, userID uuid.UUID) (*dto.ConnectResponse, error)
	HandleOAuthCallback(ctx context.Context, code, state string) (*dto.ConnectionResponse, error)
	Disconnect(ctx context.Context, userID uuid.UUID) (bool, error)
	ListCalendars(ctx context.Context, userID uuid.UUID) ([]provider.Calendar, error)
	Status(ctx context.Context, userID uuid.UUID) (*dto.ConnectionStatusResponse, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, req *dto.UpdatePreferencesRequest) (*dto.ConnectionStatusResponse, error)
}

type calendarService struct {
	tokens   TokenManager
	repo     repository.CredentialRepository
	audit    auditService.Recorder
	cache    cache.Cache
	stateTTL time.Duration
}

func NewCalendarService(
	tokens TokenManager,
	repo repository.CredentialRepository,
	audit auditService.Recorder,
	cache cache.Cache,
	stateTTL time.Duration,
) CalendarService {
	return &calendarService{
		tokens:   tokens,
		repo:     repo,
		audit:    audit,
		cache:    cache,
		stateTTL: stateTTL,
	}
}

// ConnectCalendar issues a one-time OAuth state bound to userID and returns the consent URL.
func (s *calendarService) ConnectCalendar(ctx context.Context, userID uuid.UUID) (*dto.ConnectResponse, error) {
	state, err := utils.NewOAuthState(stateLength)
	if err != nil {
		logger.Error("CalendarService:ConnectCalendar:NewState:Error", "error", err, "user_id", userID)
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to start calendar connection", err)
	}
	if err := s.cache.Set(ctx, stateKey(state), userID.String(), s.stateTTL); err != nil {
		logger.Error("CalendarService:ConnectCalendar:SaveState:Error", "error", err, "user_id", userID)
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to start calendar connection", err)
	}
	return &dto.ConnectResponse{AuthURL: s.tokens.BuildAuthorizationURL(state)}, nil
}

func (s *calendarService) HandleOAuthCallback(ctx context.Context, code, state string) (*dto.ConnectionResponse, error) {
	if code == "" || state == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "code and state are required", nil)
	}

	raw, err := s.cache.GetDel(ctx, stateKey(state))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Error("CalendarService:HandleOAuthCallback:GetState:Error", "error", err)
		}
		return nil, errors.NewAppError(errors.ErrInvalidOAuthState, "OAuth state is invalid or expired", err)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidOAuthState, "OAuth state is invalid or expired", err)
	}

	token, err := s.tokens.ExchangeCode(ctx, code)
	if err != nil {
		s.record(ctx, auditEntity.NewFailure(userID, "", auditEntity.ActionConnect, err, nil))
		return nil, err
	}

	cred, err := s.repo.Upsert(ctx, &entity.Credential{
		UserID:         userID,
		Provider:       constants.ProviderGoogle,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: token.Expiry,
		CalendarID:     constants.DefaultCalendarID,
	})
	if err != nil {
		return nil, errors.NewAppError(errors.ErrCreateFailed, "Failed to save calendar connection", err)
	}
	if cred.RefreshToken == "" {
		logger.Warn("CalendarService:HandleOAuthCallback:NoRefreshToken", "user_id", userID)
	}

	s.tokens.ForgetConnected(ctx, userID)
	s.record(ctx, auditEntity.NewSuccess(userID, "", auditEntity.ActionConnect, auditEntity.JSONB{
		"provider":    cred.Provider,
		"calendar_id": cred.CalendarID,
	}))
	logger.Info("CalendarService:HandleOAuthCallback:Connected", "user_id", userID)

	return &dto.ConnectionResponse{
		Provider:       cred.Provider,
		CalendarID:     cred.CalendarID,
		IsActive:       cred.IsActive,
		TokenExpiresAt: cred.TokenExpiresAt,
		ConnectedAt:    cred.UpdatedAt,
	}, nil
}

// Disconnect deactivates the credential and reports whether one was active.
func (s *calendarService) Disconnect(ctx context.Context, userID uuid.UUID) (bool, error) {
	changed, err := s.repo.Deactivate(ctx, userID, constants.ProviderGoogle)
	if err != nil {
		return false, errors.NewAppError(errors.ErrUpdateFailed, "Failed to disconnect calendar", err)
	}
	s.tokens.ForgetConnected(ctx, userID)

	if changed {
		s.record(ctx, auditEntity.NewSuccess(userID, "", auditEntity.ActionDisconnect, nil))
	}
	return changed, nil
}

func (s *calendarService) ListCalendars(ctx context.Context, userID uuid.UUID) ([]provider.Calendar, error) {
	conn, err := s.tokens.GetValidClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, provider.NotConnected().AppError()
	}

	calendars, err := conn.Client.ListCalendars(ctx)
	if err != nil {
		perr := provider.Classify(err)
		logger.Error("CalendarService:ListCalendars:Error", "error", err, "user_id", userID, "kind", perr.Kind)
		if perr.Kind == provider.KindAuthExpired {
			_ = s.tokens.Invalidate(ctx, userID, err)
		}
		return nil, perr.AppError()
	}
	if calendars == nil {
		calendars = []provider.Calendar{}
	}
	return calendars, nil
}

func (s *calendarService) Status(ctx context.Context, userID uuid.UUID) (*dto.ConnectionStatusResponse, error) {
	connected, err := s.tokens.IsConnected(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ConnectionStatusResponse{Provider: constants.ProviderGoogle, Connected: connected}
	if !connected {
		return resp, nil
	}

	cred, err := s.repo.GetActive(ctx, userID, constants.ProviderGoogle)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load calendar connection", err)
	}
	if cred == nil {
		resp.Connected = false
		s.tokens.ForgetConnected(ctx, userID)
		return resp, nil
	}
	resp.CalendarID = cred.CalendarID
	resp.ReminderMinutes = cred.SyncPreferences.ReminderMinutes
	return resp, nil
}

func (s *calendarService) UpdatePreferences(ctx context.Context, userID uuid.UUID, req *dto.UpdatePreferencesRequest) (*dto.ConnectionStatusResponse, error) {
	calendarID := strings.TrimSpace(req.CalendarID)
	if calendarID == "" {
		calendarID = constants.DefaultCalendarID
	}
	if len(req.ReminderMinutes) > maxReminders {
		return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("at most %d reminders are allowed", maxReminders), nil)
	}
	for _, m := range req.ReminderMinutes {
		if m < 0 || m > maxReminderMinutes {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "reminder_minutes must be between 0 and 40320", nil)
		}
	}

	prefs := entity.SyncPreferences{ReminderMinutes: req.ReminderMinutes}
	if err := s.repo.UpdatePreferences(ctx, userID, constants.ProviderGoogle, calendarID, prefs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, provider.NotConnected().AppError()
		}
		return nil, errors.NewAppError(errors.ErrUpdateFailed, "Failed to update calendar preferences", err)
	}

	return &dto.ConnectionStatusResponse{
		Provider:        constants.ProviderGoogle,
		Connected:       true,
		CalendarID:      calendarID,
		ReminderMinutes: req.ReminderMinutes,
	}, nil
}

func (s *calendarService) record(ctx context.Context, entry *auditEntity.SyncLogEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, entry)
}

func stateKey(state string) string {
	return fmt.Sprintf(constants.RedisKeyOAuthState, state)
}
