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

// AssignmentRepository reads assignments owned by the host application.
type AssignmentRepository interface {
	// GetByID returns nil, nil when the user has no such assignment.
	GetByID(ctx context.Context, userID uuid.UUID, assignmentID string) (*entity.Assignment, error)
	// ListUnsynced returns assignments without an active mapping, ordered by date, time and id.
	ListUnsynced(ctx context.Context, userID uuid.UUID, provider string) ([]entity.Assignment, error)
}

type assignmentRepository struct {
	db database.IDatabase
}

func NewAssignmentRepository(db database.IDatabase) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentColumns = `
	a.id::text AS id,
	a.user_id,
	COALESCE(a.title, '') AS title,
	COALESCE(to_char(a.date, 'YYYY-MM-DD'), '') AS date,
	COALESCE(a.time::text, '') AS time,
	COALESCE(a.timezone, '') AS timezone,
	COALESCE(a.duration_minutes, 0) AS duration_minutes,
	COALESCE(a.type, '') AS type,
	COALESCE(a.setting, '') AS setting,
	COALESCE(a.location_type, '') AS location_type,
	COALESCE(a.location_details, '') AS location_details,
	COALESCE(a.description, '') AS description,
	COALESCE(a.prep_status, '') AS prep_status`

func (r *assignmentRepository) GetByID(ctx context.Context, userID uuid.UUID, assignmentID string) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM assignments a
		WHERE a.id::text = $1 AND a.user_id = $2`

	var a entity.Assignment
	if err := r.db.GetContext(ctx, &a, query, assignmentID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("AssignmentRepository:GetByID:Error", "error", err, "assignment_id", assignmentID)
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepository) ListUnsynced(ctx context.Context, userID uuid.UUID, provider string) ([]entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM assignments a
		LEFT JOIN calendar_sync_mappings m
			ON m.assignment_id = a.id::text
			AND m.user_id = a.user_id
			AND m.provider = $2
			AND m.sync_status = 'active'
		WHERE a.user_id = $1 AND m.id IS NULL
		ORDER BY a.date, a.time NULLS FIRST, a.id`

	var assignments []entity.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID, provider); err != nil {
		logger.Error("AssignmentRepository:ListUnsynced:Error", "error", err, "user_id", userID)
		return nil, err
	}
	return assignments, nil
}
