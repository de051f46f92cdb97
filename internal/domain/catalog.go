package domain

import "time"

type Course struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Event struct {
	ID             int       `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	WhatsappNumber string    `gorm:"type:varchar(20)" json:"whatsapp_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type LeadStatus struct {
	ID    int    `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"type:varchar(100);not null" json:"name"`
	Color string `gorm:"type:varchar(20)" json:"color,omitempty"`
}

// ScanSession records one QR-code scan. TrackingID is issued at scan time;
// the session is marked converted once a captured lead is linked to it.
type ScanSession struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	EventID    *int      `json:"event_id,omitempty"`
	TrackingID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"tracking_id"`
	LeadID     *int      `json:"lead_id,omitempty"`
	Converted  bool      `gorm:"not null" json:"converted"`
	ScannedAt  time.Time `json:"scanned_at"`
}
