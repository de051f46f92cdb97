package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	messageRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/message"
)

var (
	ErrMissingDeliveryCode   = errors.New("delivery_code is required")
	ErrMissingLeadIdentifier = errors.New("lead_identifier is required")
	ErrUnsupportedStatus     = errors.New("status must be delivered or failed")
	ErrRecipientNotFound     = errors.New("no recipient found for delivery code")
)

// DeliveryConfirmation is one inbound callback reporting what happened to a
// single outbound message.
type DeliveryConfirmation struct {
	DeliveryCode   string
	LeadIdentifier string
	Status         string
	ErrorMessage   string
}

type DeliveryAck struct {
	RecipientID int                   `json:"recipient_id"`
	HistoryID   int                   `json:"history_id"`
	LeadID      int                   `json:"lead_id"`
	Status      domain.DeliveryStatus `json:"status"`
	AlreadyDone bool                  `json:"already_done,omitempty"`
}

// DeliveryRecorder applies delivery confirmations to recipient rows. Its
// only observable effect is the recipient state update; repeats of the same
// confirmation are acknowledged without a second write.
type DeliveryRecorder interface {
	Record(ctx context.Context, conf DeliveryConfirmation) (*DeliveryAck, error)
}

type deliveryRecorder struct {
	messages messageRepo.Repository
	logger   *slog.Logger
}

func NewDeliveryRecorder(messages messageRepo.Repository, logger *slog.Logger) DeliveryRecorder {
	return &deliveryRecorder{messages: messages, logger: logger}
}

func (d *deliveryRecorder) Record(ctx context.Context, conf DeliveryConfirmation) (*DeliveryAck, error) {
	if conf.DeliveryCode == "" {
		return nil, ErrMissingDeliveryCode
	}
	if conf.LeadIdentifier == "" {
		return nil, ErrMissingLeadIdentifier
	}

	status := domain.DeliveryStatus(conf.Status)
	if conf.Status == "" {
		status = domain.DeliveryDelivered
	}
	if !status.Terminal() {
		return nil, ErrUnsupportedStatus
	}

	rec, err := d.messages.FindRecipientByCode(ctx, conf.DeliveryCode)
	if err != nil {
		return nil, fmt.Errorf("recipient lookup failed: %w", err)
	}
	if rec == nil {
		return nil, ErrRecipientNotFound
	}

	ack := &DeliveryAck{
		RecipientID: rec.ID,
		HistoryID:   rec.MessageHistoryID,
		LeadID:      rec.LeadID,
		Status:      status,
	}

	// idempotent repeat: same terminal state, nothing to write
	if rec.DeliveryStatus == status {
		ack.AlreadyDone = true
		return ack, nil
	}

	if err := d.messages.AdvanceRecipient(ctx, rec, status, conf.ErrorMessage); err != nil {
		return nil, fmt.Errorf("recipient update failed: %w", err)
	}

	// the correlation entry is done once a terminal status lands
	if err := d.messages.DropDeliveryCode(ctx, conf.DeliveryCode); err != nil {
		d.logger.Error("failed to drop delivery code from cache",
			"deliveryCode", conf.DeliveryCode,
			"error", err.Error())
	}

	d.logger.Info("delivery confirmation recorded",
		slog.Int("recipientId", rec.ID),
		slog.String("status", string(status)),
		slog.String("leadIdentifier", conf.LeadIdentifier))

	return ack, nil
}
