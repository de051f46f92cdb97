package domain

import (
	"time"
)

type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSending MessageStatus = "sending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Rank orders delivery statuses along the allowed progression
// pending -> sent -> delivered|failed. Both terminal states share a rank,
// so a late confirmation may rewrite one terminal state with the other but
// never fall back to an earlier one.
func (s DeliveryStatus) Rank() int {
	switch s {
	case DeliveryPending:
		return 0
	case DeliverySent:
		return 1
	case DeliveryDelivered, DeliveryFailed:
		return 2
	}
	return -1
}

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailed
}

// MessageHistory is one broadcast: the content that was sent and the
// outcome of the webhook dispatch that carried it.
type MessageHistory struct {
	ID              int           `gorm:"primaryKey" json:"id"`
	Content         string        `gorm:"type:text;not null" json:"content"`
	Type            string        `gorm:"type:varchar(20);not null" json:"type"`
	RecipientsCount int           `gorm:"not null" json:"recipients_count"`
	Status          MessageStatus `gorm:"type:varchar(20);not null" json:"status"`
	FilterInfo      string        `gorm:"type:text" json:"filter_info,omitempty"`
	WebhookResponse string        `gorm:"type:text" json:"webhook_response,omitempty"`
	SentAt          *time.Time    `json:"sent_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// MessageRecipient is one (broadcast, lead) pair. DeliveryCode is the
// opaque token embedded in the outbound message that a later delivery
// confirmation uses to find this row.
type MessageRecipient struct {
	ID               int            `gorm:"primaryKey" json:"id"`
	MessageHistoryID int            `gorm:"index;not null" json:"message_history_id"`
	LeadID           int            `gorm:"index;not null" json:"lead_id"`
	DeliveryCode     string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"delivery_code"`
	DeliveryStatus   DeliveryStatus `gorm:"type:varchar(20);not null" json:"delivery_status"`
	SentAt           *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt      *time.Time     `json:"delivered_at,omitempty"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
}
