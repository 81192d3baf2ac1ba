package dto

import (
	"time"

	"calendar-sync/modules/calendar/provider"
)

type SyncResult struct {
	Success      bool          `json:"success"`
	AssignmentID string        `json:"assignment_id"`
	Action       string        `json:"action,omitempty"`
	EventID      string        `json:"event_id,omitempty"`
	EventLink    string        `json:"event_link,omitempty"`
	ErrorKind    provider.Kind `json:"error_kind,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type DeleteResult struct {
	Success       bool   `json:"success"`
	AssignmentID  string `json:"assignment_id"`
	AlreadyAbsent bool   `json:"already_absent,omitempty"`
	Error         string `json:"error,omitempty"`
}

type BatchResult struct {
	RunID  string   `json:"run_id"`
	Synced int      `json:"synced"`
	Failed int      `json:"failed"`
	Total  int      `json:"total"`
	Errors []string `json:"errors"`
}

type QueuedResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}

type MappingStatusResponse struct {
	AssignmentID string     `json:"assignment_id"`
	Synced       bool       `json:"synced"`
	Status       string     `json:"status"`
	EventID      string     `json:"event_id,omitempty"`
	CalendarID   string     `json:"calendar_id,omitempty"`
	EventLink    string     `json:"event_link,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
