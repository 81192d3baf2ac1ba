package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calendar-sync/core/database"
	"calendar-sync/core/logger"
	"calendar-sync/core/utils"
	"calendar-sync/modules/calendar/entity"

	"github.com/google/uuid"
)

type CredentialRepository interface {
	// GetActive returns nil, nil when the user has no active credential.
	GetActive(ctx context.Context, userID uuid.UUID, provider string) (*entity.Credential, error)
	Upsert(ctx context.Context, cred *entity.Credential) (*entity.Credential, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
	Deactivate(ctx context.Context, userID uuid.UUID, provider string) (bool, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, provider, calendarID string, prefs entity.SyncPreferences) error
}

type credentialRepository struct {
	db  database.IDatabase
	box *utils.SecretBox
}

// NewCredentialRepository stores tokens sealed with box; a nil box stores them as-is.
func NewCredentialRepository(db database.IDatabase, box *utils.SecretBox) CredentialRepository {
	return &credentialRepository{db: db, box: box}
}

const credentialColumns = `id, user_id, provider, access_token, refresh_token, token_expires_at,
	calendar_id, is_active, sync_preferences, created_at, updated_at`

func (r *credentialRepository) GetActive(ctx context.Context, userID uuid.UUID, provider string) (*entity.Credential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM calendar_credentials
		WHERE user_id = $1 AND provider = $2 AND is_active = TRUE`

	var cred entity.Credential
	if err := r.db.GetContext(ctx, &cred, query, userID, provider); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("CredentialRepository:GetActive:Error", "error", err, "user_id", userID)
		return nil, err
	}

	if err := r.open(&cred); err != nil {
		logger.Error("CredentialRepository:GetActive:Decrypt:Error", "error", err, "user_id", userID)
		return nil, err
	}
	return &cred, nil
}

// Upsert creates or re-activates the (user, provider) row. An empty refresh token keeps the stored one.
func (r *credentialRepository) Upsert(ctx context.Context, cred *entity.Credential) (*entity.Credential, error) {
	access, err := r.box.Seal(cred.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := r.box.Seal(cred.RefreshToken)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO calendar_credentials (user_id, provider, access_token, refresh_token, token_expires_at, calendar_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token     = EXCLUDED.access_token,
			refresh_token    = CASE WHEN EXCLUDED.refresh_token = '' THEN calendar_credentials.refresh_token ELSE EXCLUDED.refresh_token END,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active        = TRUE,
			updated_at       = NOW()
		RETURNING ` + credentialColumns

	var saved entity.Credential
	err = r.db.GetContext(ctx, &saved, query,
		cred.UserID, cred.Provider, access, refresh, cred.TokenExpiresAt, cred.CalendarID,
	)
	if err != nil {
		logger.Error("CredentialRepository:Upsert:Error", "error", err, "user_id", cred.UserID)
		return nil, err
	}
	if err := r.open(&saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *credentialRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	access, err := r.box.Seal(accessToken)
	if err != nil {
		return err
	}
	refresh, err := r.box.Seal(refreshToken)
	if err != nil {
		return err
	}

	query := `
		UPDATE calendar_credentials
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = NOW()
		WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id, access, refresh, expiresAt); err != nil {
		logger.Error("CredentialRepository:UpdateTokens:Error", "error", err, "credential_id", id)
		return err
	}
	return nil
}

// Deactivate reports whether an active credential was switched off.
func (r *credentialRepository) Deactivate(ctx context.Context, userID uuid.UUID, provider string) (bool, error) {
	query := `
		UPDATE calendar_credentials
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND provider = $2 AND is_active = TRUE`
	res, err := r.db.ExecResultContext(ctx, query, userID, provider)
	if err != nil {
		logger.Error("CredentialRepository:Deactivate:Error", "error", err, "user_id", userID)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *credentialRepository) UpdatePreferences(ctx context.Context, userID uuid.UUID, provider, calendarID string, prefs entity.SyncPreferences) error {
	query := `
		UPDATE calendar_credentials
		SET calendar_id = $3, sync_preferences = $4, updated_at = NOW()
		WHERE user_id = $1 AND provider = $2 AND is_active = TRUE`
	res, err := r.db.ExecResultContext(ctx, query, userID, provider, calendarID, prefs)
	if err != nil {
		logger.Error("CredentialRepository:UpdatePreferences:Error", "error", err, "user_id", userID)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *credentialRepository) open(cred *entity.Credential) error {
	access, err := r.box.Open(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	refresh, err := r.box.Open(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	cred.AccessToken = access
	cred.RefreshToken = refresh
	return nil
}
