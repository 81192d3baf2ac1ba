package dto

import (
	"time"

	"calendar-sync/modules/audit/entity"
)

type SyncLogResponse struct {
	ID           string         `json:"id"`
	AssignmentID string         `json:"assignment_id,omitempty"`
	Action       string         `json:"action"`
	Direction    string         `json:"direction"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func ToSyncLogResponse(e entity.SyncLogEntry) SyncLogResponse {
	resp := SyncLogResponse{
		ID:        e.ID.String(),
		Action:    e.Action,
		Direction: e.Direction,
		Status:    e.Status,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
	if e.AssignmentID != nil {
		resp.AssignmentID = *e.AssignmentID
	}
	if e.ErrorMessage != nil {
		resp.ErrorMessage = *e.ErrorMessage
	}
	return resp
}
