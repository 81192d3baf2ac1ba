package entity

import "github.com/google/uuid"

// Assignment is the host application's interpreting job. It is read-only here.
type Assignment struct {
	ID              string    `db:"id" json:"id"`
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	Title           string    `db:"title" json:"title"`
	Date            string    `db:"date" json:"date"`
	Time            string    `db:"time" json:"time"`
	Timezone        string    `db:"timezone" json:"timezone"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Type            string    `db:"type" json:"type"`
	Setting         string    `db:"setting" json:"setting"`
	LocationType    string    `db:"location_type" json:"location_type"`
	LocationDetails string    `db:"location_details" json:"location_details"`
	Description     string    `db:"description" json:"description"`
	PrepStatus      string    `db:"prep_status" json:"prep_status"`
}
