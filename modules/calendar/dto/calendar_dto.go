package dto

import (
	"time"

	"calendar-sync/modules/calendar/provider"
)

type ConnectResponse struct {
	AuthURL string `json:"auth_url"`
}

type ConnectionResponse struct {
	Provider       string    `json:"provider"`
	CalendarID     string    `json:"calendar_id"`
	IsActive       bool      `json:"is_active"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	ConnectedAt    time.Time `json:"connected_at"`
}

type ConnectionStatusResponse struct {
	Provider        string `json:"provider"`
	Connected       bool   `json:"connected"`
	CalendarID      string `json:"calendar_id,omitempty"`
	ReminderMinutes []int  `json:"reminder_minutes,omitempty"`
}

type DisconnectResponse struct {
	Disconnected bool `json:"disconnected"`
}

type CalendarListResponse struct {
	Calendars []provider.Calendar `json:"calendars"`
}

type UpdatePreferencesRequest struct {
	CalendarID      string `json:"calendar_id"`
	ReminderMinutes []int  `json:"reminder_minutes"`
}
