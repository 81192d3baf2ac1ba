package entity

import (
	"calendar-sync/core/entity"

	"github.com/google/uuid"
)

const (
	MappingActive  = "active"
	MappingDeleted = "deleted"
)

// SyncMapping links an assignment to the external event that mirrors it.
type SyncMapping struct {
	entity.BaseEntity
	AssignmentID       string    `db:"assignment_id" json:"assignment_id"`
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	Provider           string    `db:"provider" json:"provider"`
	ExternalEventID    string    `db:"external_event_id" json:"external_event_id"`
	ExternalCalendarID string    `db:"external_calendar_id" json:"external_calendar_id"`
	EventLink          string    `db:"event_link" json:"event_link"`
	SyncStatus         string    `db:"sync_status" json:"sync_status"`
}

func (m *SyncMapping) IsActive() bool {
	return m != nil && m.SyncStatus == MappingActive
}
