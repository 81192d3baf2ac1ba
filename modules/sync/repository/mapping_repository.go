package repository

import (
	"context"
	"database/sql"
	"errors"

	"calendar-sync/core/database"
	"calendar-sync/core/logger"
	"calendar-sync/modules/sync/entity"

	"github.com/google/uuid"
)

type MappingRepository interface {
	// Get returns nil, nil when the assignment was never synced.
	Get(ctx context.Context, assignmentID string, userID uuid.UUID, provider string) (*entity.SyncMapping, error)
	Upsert(ctx context.Context, m *entity.SyncMapping) error
	MarkDeleted(ctx context.Context, id uuid.UUID) error
}

type mappingRepository struct {
	db database.IDatabase
}

func NewMappingRepository(db database.IDatabase) MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) Get(ctx context.Context, assignmentID string, userID uuid.UUID, provider string) (*entity.SyncMapping, error) {
	query := `
		SELECT id, assignment_id, user_id, provider, external_event_id, external_calendar_id,
			event_link, sync_status, created_at, updated_at
		FROM calendar_sync_mappings
		WHERE assignment_id = $1 AND user_id = $2 AND provider = $3`

	var m entity.SyncMapping
	if err := r.db.GetContext(ctx, &m, query, assignmentID, userID, provider); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("MappingRepository:Get:Error", "error", err, "assignment_id", assignmentID)
		return nil, err
	}
	return &m, nil
}

// Upsert writes the current external event for (assignment, user, provider), replacing any stale row.
func (r *mappingRepository) Upsert(ctx context.Context, m *entity.SyncMapping) error {
	query := `
		INSERT INTO calendar_sync_mappings
			(assignment_id, user_id, provider, external_event_id, external_calendar_id, event_link, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (assignment_id, user_id, provider) DO UPDATE SET
			external_event_id    = EXCLUDED.external_event_id,
			external_calendar_id = EXCLUDED.external_calendar_id,
			event_link           = EXCLUDED.event_link,
			sync_status          = EXCLUDED.sync_status,
			updated_at           = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		m.AssignmentID, m.UserID, m.Provider, m.ExternalEventID, m.ExternalCalendarID, m.EventLink, m.SyncStatus,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		logger.Error("MappingRepository:Upsert:Error", "error", err, "assignment_id", m.AssignmentID)
		return err
	}
	return nil
}

func (r *mappingRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE calendar_sync_mappings
		SET sync_status = 'deleted', updated_at = NOW()
		WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id); err != nil {
		logger.Error("MappingRepository:MarkDeleted:Error", "error", err, "mapping_id", id)
		return err
	}
	return nil
}
