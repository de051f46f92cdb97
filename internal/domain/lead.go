package domain

import (
	"strings"
	"time"
)

type Lead struct {
	ID            int        `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	Whatsapp      string     `gorm:"type:varchar(20);index" json:"whatsapp"`
	Email         string     `gorm:"type:varchar(255);index" json:"email"`
	CourseID      *int       `json:"course_id,omitempty"`
	EventID       *int       `json:"event_id,omitempty"`
	StatusID      *int       `json:"status_id,omitempty"`
	ScanSessionID *int       `json:"scan_session_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// NormalizePhone strips every non-digit character. Leads store whatsapp
// numbers in this form so contact matching is format-insensitive.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
