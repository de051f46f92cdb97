package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aniladanir/retry"
	"github.com/google/uuid"
	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	leadRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/lead"
	messageRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/message"
	"github.com/pastoriniMatheus/leadcast-service/internal/settings"
	"github.com/pastoriniMatheus/leadcast-service/internal/webhook"
)

var (
	ErrNoRecipients   = errors.New("no leads match the broadcast filter")
	ErrEmptyContent   = errors.New("broadcast content is empty")
	ErrNoWebhookURL   = errors.New("no webhook url configured")
	ErrUnknownHistory = errors.New("message history not found")
)

// Dispatcher is the outbound side of a broadcast. Satisfied by
// *webhook.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, target string, p webhook.Payload) (*webhook.Result, error)
}

type BroadcastRequest struct {
	Type     string
	Content  string
	CourseID *int
	EventID  *int
	StatusID *int
}

type BroadcastResult struct {
	HistoryID       int                  `json:"history_id"`
	Status          domain.MessageStatus `json:"status"`
	RecipientsCount int                  `json:"recipients_count"`
	WebhookStatus   int                  `json:"webhook_status,omitempty"`
	Error           string               `json:"error,omitempty"`
}

type HistoryDetails struct {
	domain.MessageHistory
	Stats map[string]int `json:"stats"`
}

type Broadcaster interface {
	Send(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error)
	ListHistory(ctx context.Context) ([]domain.MessageHistory, error)
	HistoryDetails(ctx context.Context, id int) (*HistoryDetails, error)
	Recipients(ctx context.Context, historyID int) ([]domain.MessageRecipient, error)
}

type broadcaster struct {
	leads      leadRepo.Repository
	messages   messageRepo.Repository
	dispatcher Dispatcher
	store      *settings.Store
	retrier    *retry.Retrier
	logger     *slog.Logger
}

func NewBroadcaster(
	leads leadRepo.Repository,
	messages messageRepo.Repository,
	dispatcher Dispatcher,
	store *settings.Store,
	logger *slog.Logger,
	maxRetryOnFail *int,
) (Broadcaster, error) {
	retrierOpts := make([]retry.Option, 0)
	if maxRetryOnFail != nil {
		retrierOpts = append(retrierOpts, retry.WithMaxAttemps(*maxRetryOnFail))
	}
	retrier, err := retry.New(retrierOpts...)
	if err != nil {
		return nil, fmt.Errorf("encountered error when initializing retrier: %w", err)
	}

	return &broadcaster{
		leads:      leads,
		messages:   messages,
		dispatcher: dispatcher,
		store:      store,
		retrier:    retrier,
		logger:     logger,
	}, nil
}

// Send selects the target leads, records the broadcast, dispatches it to
// the configured webhook and records the classified outcome. The dispatcher
// itself makes one attempt per call; transient failures (timeout,
// connection) are retried here per the configured policy, status rejections
// are not.
func (b *broadcaster) Send(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	if req.Content == "" {
		return nil, ErrEmptyContent
	}

	cfg := b.store.Snapshot()
	if cfg.WebhookURL == "" {
		return nil, ErrNoWebhookURL
	}

	targets, err := b.leads.ListByFilter(ctx, req.CourseID, req.EventID, req.StatusID)
	if err != nil {
		return nil, fmt.Errorf("select broadcast targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, ErrNoRecipients
	}

	history := &domain.MessageHistory{
		Content:         req.Content,
		Type:            req.Type,
		RecipientsCount: len(targets),
		Status:          domain.MessagePending,
		FilterInfo:      filterInfo(req),
		CreatedAt:       time.Now().UTC(),
	}
	if err := b.messages.CreateHistory(ctx, history); err != nil {
		return nil, fmt.Errorf("record message history: %w", err)
	}

	recipients := make([]domain.MessageRecipient, 0, len(targets))
	payloadRecipients := make([]webhook.Recipient, 0, len(targets))
	for _, lead := range targets {
		code := uuid.NewString()
		recipients = append(recipients, domain.MessageRecipient{
			MessageHistoryID: history.ID,
			LeadID:           lead.ID,
			DeliveryCode:     code,
			DeliveryStatus:   domain.DeliveryPending,
		})
		payloadRecipients = append(payloadRecipients, webhook.Recipient{
			Name:         lead.Name,
			Whatsapp:     lead.Whatsapp,
			Email:        lead.Email,
			DeliveryCode: code,
		})
	}
	if err := b.messages.CreateRecipients(ctx, recipients); err != nil {
		return nil, fmt.Errorf("record message recipients: %w", err)
	}

	if err := b.messages.UpdateHistoryStatus(ctx, history.ID, domain.MessageSending, ""); err != nil {
		return nil, fmt.Errorf("advance message history: %w", err)
	}

	sendLogger := b.logger.With(slog.Int("historyId", history.ID))

	payload := webhook.Payload{
		Type:       req.Type,
		Message:    req.Content,
		Recipients: payloadRecipients,
		Filter:     filterMap(req),
		MessageID:  fmt.Sprintf("%d", history.ID),
	}

	result, dispatchErr := b.dispatch(ctx, sendLogger, cfg.WebhookURL, payload)
	if dispatchErr != nil {
		response := dispatchErrorJSON(dispatchErr)
		if err := b.messages.UpdateHistoryStatus(ctx, history.ID, domain.MessageFailed, response); err != nil {
			sendLogger.Error("failed to record broadcast failure", "error", err.Error())
		}
		return &BroadcastResult{
			HistoryID:       history.ID,
			Status:          domain.MessageFailed,
			RecipientsCount: len(targets),
			Error:           dispatchErr.Error(),
		}, nil
	}

	sentAt := time.Now().UTC()
	if err := b.messages.MarkHistorySent(ctx, history.ID, result.ResponseBody, sentAt); err != nil {
		sendLogger.Error("failed to mark history sent", "error", err.Error())
	}
	if err := b.messages.MarkRecipientsSent(ctx, history.ID, sentAt); err != nil {
		sendLogger.Error("failed to mark recipients sent", "error", err.Error())
	}
	for _, rec := range recipients {
		if err := b.messages.CacheDeliveryCode(ctx, rec.DeliveryCode, rec.ID); err != nil {
			sendLogger.Error("failed to cache delivery code", "error", err.Error())
		}
	}

	sendLogger.Info("broadcast dispatched",
		slog.Int("recipients", len(targets)),
		slog.Int("statusCode", result.StatusCode))

	return &BroadcastResult{
		HistoryID:       history.ID,
		Status:          domain.MessageSent,
		RecipientsCount: result.RecipientsCount,
		WebhookStatus:   result.StatusCode,
	}, nil
}

// dispatch runs the single-attempt dispatcher under the retry policy.
// Only transient kinds are retried.
func (b *broadcaster) dispatch(ctx context.Context, logger *slog.Logger, target string, payload webhook.Payload) (*webhook.Result, error) {
	var (
		result  *webhook.Result
		lastErr error
	)

	retryFunc := func(attempt int) (terminate bool) {
		attemptLogger := logger.With(slog.Int("attempt", attempt))

		res, err := b.dispatcher.Dispatch(ctx, target, payload)
		if err == nil {
			result = res
			lastErr = nil
			return true
		}
		lastErr = err

		var whErr *webhook.Error
		if errors.As(err, &whErr) {
			attemptLogger.Error("webhook dispatch failed",
				"kind", whErr.Kind.String(),
				"category", whErr.Category,
				"error", err.Error())
			switch whErr.Kind {
			case webhook.KindTimeout, webhook.KindConnection:
				return false
			}
		}
		return true
	}

	retrySuccess := <-b.retrier.Retry(ctx, retryFunc, true)
	if !retrySuccess && lastErr == nil {
		lastErr = fmt.Errorf("webhook dispatch aborted")
	}

	return result, lastErr
}

func (b *broadcaster) ListHistory(ctx context.Context) ([]domain.MessageHistory, error) {
	return b.messages.ListHistory(ctx)
}

func (b *broadcaster) HistoryDetails(ctx context.Context, id int) (*HistoryDetails, error) {
	history, err := b.messages.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		return nil, ErrUnknownHistory
	}

	stats, err := b.messages.HistoryStats(ctx, id)
	if err != nil {
		return nil, err
	}

	return &HistoryDetails{MessageHistory: *history, Stats: stats}, nil
}

func (b *broadcaster) Recipients(ctx context.Context, historyID int) ([]domain.MessageRecipient, error) {
	return b.messages.RecipientsByHistory(ctx, historyID)
}

func filterMap(req BroadcastRequest) map[string]any {
	m := map[string]any{}
	if req.CourseID != nil {
		m["course_id"] = *req.CourseID
	}
	if req.EventID != nil {
		m["event_id"] = *req.EventID
	}
	if req.StatusID != nil {
		m["status_id"] = *req.StatusID
	}
	return m
}

func filterInfo(req BroadcastRequest) string {
	b, _ := json.Marshal(filterMap(req))
	return string(b)
}

func dispatchErrorJSON(err error) string {
	var whErr *webhook.Error
	if errors.As(err, &whErr) {
		b, _ := json.Marshal(map[string]any{
			"kind":        whErr.Kind.String(),
			"category":    whErr.Category,
			"status_code": whErr.StatusCode,
			"body":        whErr.Body,
			"url":         whErr.URL,
		})
		return string(b)
	}
	b, _ := json.Marshal(map[string]any{"error": err.Error()})
	return string(b)
}
