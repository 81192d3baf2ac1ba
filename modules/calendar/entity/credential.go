package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"calendar-sync/core/entity"

	"github.com/google/uuid"
)

// Credential is one user's OAuth grant for a calendar provider.
// Rows are never hard-deleted; IsActive flips false on disconnect or unrecoverable auth failure.
type Credential struct {
	entity.BaseEntity
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	Provider        string          `db:"provider" json:"provider"`
	AccessToken     string          `db:"access_token" json:"-"`
	RefreshToken    string          `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time       `db:"token_expires_at" json:"token_expires_at"`
	CalendarID      string          `db:"calendar_id" json:"calendar_id"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	SyncPreferences SyncPreferences `db:"sync_preferences" json:"sync_preferences"`
}

// ExpiresWithin reports whether the access token expires before now+leeway.
func (c *Credential) ExpiresWithin(now time.Time, leeway time.Duration) bool {
	return !c.TokenExpiresAt.After(now.Add(leeway))
}

type SyncPreferences struct {
	ReminderMinutes []int `json:"reminder_minutes,omitempty"`
}

func (p SyncPreferences) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *SyncPreferences) Scan(value any) error {
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
	return json.Unmarshal(b, p)
}
