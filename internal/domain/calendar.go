package domain

import "time"

type CalendarEvent struct {
	ID          string    `json:"id" bson:"id"`
	Title       string    `json:"title" bson:"title"`
	Start       time.Time `json:"start" bson:"start"`
	End         time.Time `json:"end" bson:"end"`
	AllDay      bool      `json:"all_day,omitempty" bson:"all_day,omitempty"`
	Category    string    `json:"category,omitempty" bson:"category,omitempty"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
}

type CalendarQuery struct {
	From       time.Time
	To         time.Time
	Category   string
	Keyword    string
	MaxResults int
}

// StoredCalendarEvent mirrors a provider event for one user.
type StoredCalendarEvent struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"uniqueIndex:idx_calendar_user_external;not null"`
	ExternalID  string    `json:"external_id" gorm:"uniqueIndex:idx_calendar_user_external;not null"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Start       time.Time `json:"start" gorm:"index"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	SyncedAt    time.Time `json:"synced_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (StoredCalendarEvent) TableName() string {
	return "calendar_events"
}
