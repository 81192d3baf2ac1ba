package repository

import (
	"context"

	"calendar-sync/core/database"
	"calendar-sync/core/logger"
	"calendar-sync/core/params"
	"calendar-sync/modules/audit/entity"

	"github.com/google/uuid"
)

// SyncLogRepository is append-only: there is no update or delete.
type SyncLogRepository interface {
	Append(ctx context.Context, entry *entity.SyncLogEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, p params.QueryParams) ([]entity.SyncLogEntry, int, error)
}

type syncLogRepository struct {
	db database.IDatabase
}

func NewSyncLogRepository(db database.IDatabase) SyncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Append(ctx context.Context, entry *entity.SyncLogEntry) error {
	query := `
		INSERT INTO calendar_sync_logs (user_id, assignment_id, action, direction, status, error_message, details)
		VALUES (:user_id, :assignment_id, :action, :direction, :status, :error_message, :details)
		RETURNING id, created_at
	`
	rows, err := r.db.NamedQueryContext(ctx, query, entry)
	if err != nil {
		logger.Error("SyncLogRepository:Append:Error", "error", err, "action", entry.Action)
		return err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&entry.ID, &entry.CreatedAt)
	}
	return rows.Err()
}

func (r *syncLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, p params.QueryParams) ([]entity.SyncLogEntry, int, error) {
	baseQuery := `FROM calendar_sync_logs WHERE user_id = $1`

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, userID); err != nil {
		logger.Error("SyncLogRepository:ListByUser:Count:Error", "error", err)
		return nil, 0, err
	}

	query := `
		SELECT id, user_id, assignment_id, action, direction, status, error_message, details, created_at
		` + baseQuery + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var entries []entity.SyncLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID, p.PageSize, p.Offset()); err != nil {
		logger.Error("SyncLogRepository:ListByUser:Select:Error", "error", err)
		return nil, 0, err
	}
	return entries, total, nil
}
