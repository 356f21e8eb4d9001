package models

import "time"

// SessionType classifies a learning session within a module.
type SessionType string

const (
	SessionTypeReading      SessionType = "reading"
	SessionTypeAudio        SessionType = "audio"
	SessionTypePractice     SessionType = "practice"
	SessionTypeAnnouncement SessionType = "announcement"
)

// ValidSessionType reports whether the type is in the closed set.
func ValidSessionType(t SessionType) bool {
	switch t {
	case SessionTypeReading, SessionTypeAudio, SessionTypePractice, SessionTypeAnnouncement:
		return true
	}
	return false
}

// Session is a single content unit inside a module.
type Session struct {
	ID        string      `db:"id" json:"id"`
	ModuleID  string      `db:"module_id" json:"module_id"`
	Title     string      `db:"title" json:"title"`
	Type      SessionType `db:"type" json:"type"`
	Content   string      `db:"content" json:"content"`
	MediaURL  string      `db:"media_url" json:"media_url,omitempty"`
	Position  int         `db:"position" json:"position"`
	Published bool        `db:"published" json:"published"`
	CreatedBy string      `db:"created_by" json:"created_by"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
