package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	DirectionOutbound = "outbound"
)

// Sync log actions
const (
	ActionConnect      = "connect"
	ActionDisconnect   = "disconnect"
	ActionTokenRefresh = "token_refresh"
	ActionInvalidate   = "invalidate"
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDriftRecover = "drift_recover"
	ActionAdopt        = "adopt"
	ActionDelete       = "delete"
	ActionFullSync     = "full_sync"
)

// SyncLogEntry is immutable once written.
type SyncLogEntry struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	AssignmentID *string   `db:"assignment_id" json:"assignment_id,omitempty"`
	Action       string    `db:"action" json:"action"`
	Direction    string    `db:"direction" json:"direction"`
	Status       string    `db:"status" json:"status"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	Details      JSONB     `db:"details" json:"details"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func NewSuccess(userID uuid.UUID, assignmentID, action string, details JSONB) *SyncLogEntry {
	return newEntry(userID, assignmentID, action, StatusSuccess, nil, details)
}

func NewFailure(userID uuid.UUID, assignmentID, action string, err error, details JSONB) *SyncLogEntry {
	var msg *string
	if err != nil {
		s := err.Error()
		msg = &s
	}
	return newEntry(userID, assignmentID, action, StatusFailure, msg, details)
}

func newEntry(userID uuid.UUID, assignmentID, action, status string, msg *string, details JSONB) *SyncLogEntry {
	e := &SyncLogEntry{
		UserID:       userID,
		Action:       action,
		Direction:    DirectionOutbound,
		Status:       status,
		ErrorMessage: msg,
		Details:      details,
	}
	if assignmentID != "" {
		e.AssignmentID = &assignmentID
	}
	if e.Details == nil {
		e.Details = JSONB{}
	}
	return e
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *JSONB) Scan(value any) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, a)
}
