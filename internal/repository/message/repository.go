package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pastoriniMatheus/leadcast-service/internal/cache"
	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	"gorm.io/gorm"
)

// ErrStatusRegression is returned when an update would move a recipient
// backwards along the pending -> sent -> delivered|failed progression.
var ErrStatusRegression = errors.New("delivery status regression")

// Delivery-code cache entries expire after 24 hours; late confirmations
// fall back to the database lookup.
const deliveryCodeTTL = 24 * time.Hour

type Repository interface {
	CreateHistory(ctx context.Context, h *domain.MessageHistory) error
	GetHistory(ctx context.Context, id int) (*domain.MessageHistory, error)
	ListHistory(ctx context.Context) ([]domain.MessageHistory, error)
	UpdateHistoryStatus(ctx context.Context, id int, status domain.MessageStatus, webhookResponse string) error
	MarkHistorySent(ctx context.Context, id int, webhookResponse string, sentAt time.Time) error
	HistoryStats(ctx context.Context, historyID int) (map[string]int, error)

	CreateRecipients(ctx context.Context, recipients []domain.MessageRecipient) error
	RecipientsByHistory(ctx context.Context, historyID int) ([]domain.MessageRecipient, error)
	MarkRecipientsSent(ctx context.Context, historyID int, sentAt time.Time) error
	FindRecipientByCode(ctx context.Context, code string) (*domain.MessageRecipient, error)
	AdvanceRecipient(ctx context.Context, rec *domain.MessageRecipient, status domain.DeliveryStatus, errorMessage string) error

	CacheDeliveryCode(ctx context.Context, code string, recipientID int) error
	DropDeliveryCode(ctx context.Context, code string) error
}

type repo struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewMessageRepository(db *gorm.DB, cache cache.Cache) Repository {
	return &repo{db: db, cache: cache}
}

func (r *repo) CreateHistory(ctx context.Context, h *domain.MessageHistory) error {
	if h.Status == "" {
		h.Status = domain.MessagePending
	}
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *repo) GetHistory(ctx context.Context, id int) (*domain.MessageHistory, error) {
	var h domain.MessageHistory
	err := r.db.WithContext(ctx).First(&h, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *repo) ListHistory(ctx context.Context) ([]domain.MessageHistory, error) {
	var hs []domain.MessageHistory
	err := r.db.WithContext(ctx).Order("id DESC").Find(&hs).Error
	return hs, err
}

func (r *repo) UpdateHistoryStatus(ctx context.Context, id int, status domain.MessageStatus, webhookResponse string) error {
	updates := map[string]any{"status": status}
	if webhookResponse != "" {
		updates["webhook_response"] = webhookResponse
	}
	return r.db.WithContext(ctx).
		Model(&domain.MessageHistory{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repo) MarkHistorySent(ctx context.Context, id int, webhookResponse string, sentAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.MessageHistory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           domain.MessageSent,
			"webhook_response": webhookResponse,
			"sent_at":          sentAt,
		}).Error
}

// HistoryStats aggregates recipient rows by delivery status.
func (r *repo) HistoryStats(ctx context.Context, historyID int) (map[string]int, error) {
	type row struct {
		DeliveryStatus string
		Count          int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.MessageRecipient{}).
		Select("delivery_status, COUNT(*) AS count").
		Where("message_history_id = ?", historyID).
		Group("delivery_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := map[string]int{
		"total":     0,
		"pending":   0,
		"sent":      0,
		"delivered": 0,
		"failed":    0,
	}
	for _, rw := range rows {
		if _, ok := stats[rw.DeliveryStatus]; ok {
			stats[rw.DeliveryStatus] = rw.Count
		}
		stats["total"] += rw.Count
	}
	return stats, nil
}

func (r *repo) CreateRecipients(ctx context.Context, recipients []domain.MessageRecipient) error {
	if len(recipients) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&recipients).Error
}

func (r *repo) RecipientsByHistory(ctx context.Context, historyID int) ([]domain.MessageRecipient, error) {
	var recipients []domain.MessageRecipient
	err := r.db.WithContext(ctx).
		Where("message_history_id = ?", historyID).
		Order("id").
		Find(&recipients).Error
	return recipients, err
}

// MarkRecipientsSent advances every still-pending recipient of a broadcast
// to sent. Recipients already confirmed by an early callback are left alone.
func (r *repo) MarkRecipientsSent(ctx context.Context, historyID int, sentAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.MessageRecipient{}).
		Where("message_history_id = ? AND delivery_status = ?", historyID, domain.DeliveryPending).
		Updates(map[string]any{
			"delivery_status": domain.DeliverySent,
			"sent_at":         sentAt,
		}).Error
}

func (r *repo) FindRecipientByCode(ctx context.Context, code string) (*domain.MessageRecipient, error) {
	// cache first, database as the source of truth
	if key := deliveryCodeKey(code); key != "" {
		if val, err := r.cache.Get(ctx, key); err == nil {
			if id, convErr := strconv.Atoi(val); convErr == nil {
				var rec domain.MessageRecipient
				if err := r.db.WithContext(ctx).First(&rec, id).Error; err == nil {
					return &rec, nil
				}
			}
		}
	}

	var rec domain.MessageRecipient
	err := r.db.WithContext(ctx).Where("delivery_code = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AdvanceRecipient moves a recipient to the given status, refusing any
// regression. Equal-rank terminal rewrites are allowed and last-write-wins.
func (r *repo) AdvanceRecipient(ctx context.Context, rec *domain.MessageRecipient, status domain.DeliveryStatus, errorMessage string) error {
	if status.Rank() < rec.DeliveryStatus.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrStatusRegression, rec.DeliveryStatus, status)
	}

	now := time.Now().UTC()
	rec.DeliveryStatus = status
	switch status {
	case domain.DeliverySent:
		rec.SentAt = &now
	case domain.DeliveryDelivered:
		rec.DeliveredAt = &now
		rec.ErrorMessage = ""
	case domain.DeliveryFailed:
		rec.DeliveredAt = nil
		if errorMessage != "" {
			rec.ErrorMessage = errorMessage
		}
	}

	return r.db.WithContext(ctx).Save(rec).Error
}

// CacheDeliveryCode stores the code -> recipient correlation so inbound
// confirmations resolve without a table scan.
func (r *repo) CacheDeliveryCode(ctx context.Context, code string, recipientID int) error {
	return r.cache.Set(ctx, deliveryCodeKey(code), strconv.Itoa(recipientID), deliveryCodeTTL)
}

func (r *repo) DropDeliveryCode(ctx context.Context, code string) error {
	return r.cache.Delete(ctx, deliveryCodeKey(code))
}

func deliveryCodeKey(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("delivery_code:%s", code)
}
