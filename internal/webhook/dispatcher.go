package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single outbound dispatch.
const DefaultTimeout = 30 * time.Second

type ErrorKind int

const (
	KindInvalidURL ErrorKind = iota + 1
	KindTimeout
	KindConnection
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindStatus:
		return "status"
	}
	return "unknown"
}

// Error is a classified dispatch failure. Body carries the raw response
// body when the target answered with a non-2xx status.
type Error struct {
	Kind       ErrorKind
	Category   string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook %s (%s): %v", e.Category, e.URL, e.Err)
	}
	return fmt.Sprintf("webhook %s (%s)", e.Category, e.URL)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Recipient is one target lead as serialized into the outbound payload.
type Recipient struct {
	Name         string `json:"nome"`
	Whatsapp     string `json:"whatsapp,omitempty"`
	Email        string `json:"email,omitempty"`
	DeliveryCode string `json:"codigo_entrega"`
}

// Payload is the broadcast content before reshaping into the wire schema.
type Payload struct {
	Type       string
	Message    string
	Recipients []Recipient
	Filter     map[string]any
	MessageID  string
}

// outboundBody is the fixed schema the receiving automation platform expects.
type outboundBody struct {
	Type            string         `json:"tipo"`
	Message         string         `json:"mensagem"`
	Recipients      []Recipient    `json:"destinatarios"`
	TotalRecipients int            `json:"total_destinatarios"`
	Filter          map[string]any `json:"filtro"`
	MessageID       string         `json:"message_id"`
}

type Result struct {
	StatusCode      int
	ResponseBody    string
	RecipientsCount int
}

type Dispatcher struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewDispatcher creates a dispatcher with the given per-attempt timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Dispatch performs a single POST of the payload to target. It never
// retries; callers own any retry policy. Failures come back as *Error with
// the kind and category filled in.
func (d *Dispatcher) Dispatch(ctx context.Context, target string, p Payload) (*Result, error) {
	parsed, err := url.Parse(target)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, &Error{
			Kind:     KindInvalidURL,
			Category: "invalid URL",
			URL:      target,
			Err:      err,
		}
	}

	body := outboundBody{
		Type:            p.Type,
		Message:         p.Message,
		Recipients:      p.Recipients,
		TotalRecipients: len(p.Recipients),
		Filter:          p.Filter,
		MessageID:       p.MessageID,
	}
	jsonBody, _ := json.Marshal(body)

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, Category: "invalid URL", URL: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: KindTimeout, Category: "timeout", URL: target, Err: err}
		}
		return nil, &Error{Kind: KindConnection, Category: "connection failed", URL: target, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Kind:       KindStatus,
			Category:   categorize(resp.StatusCode),
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return &Result{
		StatusCode:      resp.StatusCode,
		ResponseBody:    string(respBody),
		RecipientsCount: len(p.Recipients),
	}, nil
}

func categorize(status int) string {
	switch status {
	case http.StatusNotFound:
		return "endpoint not found"
	case http.StatusMethodNotAllowed:
		return "method not allowed"
	case http.StatusBadRequest:
		return "rejected payload"
	case http.StatusInternalServerError:
		return "receiver internal error"
	}
	return fmt.Sprintf("webhook returned status %d", status)
}
