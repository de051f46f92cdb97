package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	"github.com/pastoriniMatheus/leadcast-service/internal/service"
	"github.com/pastoriniMatheus/leadcast-service/internal/settings"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- stub services ---

type stubLeads struct {
	result *service.CaptureResult
	err    error
}

func (s *stubLeads) Capture(ctx context.Context, req service.CaptureRequest) (*service.CaptureResult, error) {
	return s.result, s.err
}
func (s *stubLeads) Get(ctx context.Context, id int) (*domain.Lead, error) {
	return nil, service.ErrLeadNotFound
}
func (s *stubLeads) List(ctx context.Context) ([]domain.Lead, error)    { return nil, nil }
func (s *stubLeads) Update(ctx context.Context, lead *domain.Lead) error { return nil }
func (s *stubLeads) Delete(ctx context.Context, id int) error            { return nil }

type stubBroadcaster struct{}

func (s *stubBroadcaster) Send(ctx context.Context, req service.BroadcastRequest) (*service.BroadcastResult, error) {
	return &service.BroadcastResult{HistoryID: 1, Status: domain.MessageSent, RecipientsCount: 1}, nil
}
func (s *stubBroadcaster) ListHistory(ctx context.Context) ([]domain.MessageHistory, error) {
	return nil, nil
}
func (s *stubBroadcaster) HistoryDetails(ctx context.Context, id int) (*service.HistoryDetails, error) {
	return nil, service.ErrUnknownHistory
}
func (s *stubBroadcaster) Recipients(ctx context.Context, historyID int) ([]domain.MessageRecipient, error) {
	return nil, nil
}

type stubCatalog struct{}

func (s *stubCatalog) CreateCourse(ctx context.Context, c *domain.Course) error   { return nil }
func (s *stubCatalog) ListCourses(ctx context.Context) ([]domain.Course, error)   { return nil, nil }
func (s *stubCatalog) DeleteCourse(ctx context.Context, id int) error             { return nil }
func (s *stubCatalog) CreateEvent(ctx context.Context, e *domain.Event) error     { return nil }
func (s *stubCatalog) ListEvents(ctx context.Context) ([]domain.Event, error)     { return nil, nil }
func (s *stubCatalog) DeleteEvent(ctx context.Context, id int) error              { return nil }
func (s *stubCatalog) CreateStatus(ctx context.Context, st *domain.LeadStatus) error {
	return nil
}
func (s *stubCatalog) ListStatuses(ctx context.Context) ([]domain.LeadStatus, error) {
	return nil, nil
}
func (s *stubCatalog) DeleteStatus(ctx context.Context, id int) error { return nil }
func (s *stubCatalog) CreateScanSession(ctx context.Context, sess *domain.ScanSession) error {
	return nil
}
func (s *stubCatalog) GetScanSession(ctx context.Context, id int) (*domain.ScanSession, error) {
	return nil, nil
}
func (s *stubCatalog) ListScanSessions(ctx context.Context) ([]domain.ScanSession, error) {
	return nil, nil
}
func (s *stubCatalog) ConvertScanSession(ctx context.Context, id, leadID int) error { return nil }

// memMessageRepo backs a real DeliveryRecorder so confirmations are tested
// through the full handler path.
type memMessageRepo struct {
	recipients map[string]*domain.MessageRecipient
	writes     int
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{recipients: map[string]*domain.MessageRecipient{}}
}

func (m *memMessageRepo) CreateHistory(ctx context.Context, h *domain.MessageHistory) error {
	return nil
}
func (m *memMessageRepo) GetHistory(ctx context.Context, id int) (*domain.MessageHistory, error) {
	return nil, nil
}
func (m *memMessageRepo) ListHistory(ctx context.Context) ([]domain.MessageHistory, error) {
	return nil, nil
}
func (m *memMessageRepo) UpdateHistoryStatus(ctx context.Context, id int, status domain.MessageStatus, webhookResponse string) error {
	return nil
}
func (m *memMessageRepo) MarkHistorySent(ctx context.Context, id int, webhookResponse string, sentAt time.Time) error {
	return nil
}
func (m *memMessageRepo) HistoryStats(ctx context.Context, historyID int) (map[string]int, error) {
	return nil, nil
}
func (m *memMessageRepo) CreateRecipients(ctx context.Context, recipients []domain.MessageRecipient) error {
	return nil
}
func (m *memMessageRepo) RecipientsByHistory(ctx context.Context, historyID int) ([]domain.MessageRecipient, error) {
	return nil, nil
}
func (m *memMessageRepo) MarkRecipientsSent(ctx context.Context, historyID int, sentAt time.Time) error {
	return nil
}
func (m *memMessageRepo) FindRecipientByCode(ctx context.Context, code string) (*domain.MessageRecipient, error) {
	rec, ok := m.recipients[code]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}
func (m *memMessageRepo) AdvanceRecipient(ctx context.Context, rec *domain.MessageRecipient, status domain.DeliveryStatus, errorMessage string) error {
	m.writes++
	stored := m.recipients[rec.DeliveryCode]
	stored.DeliveryStatus = status
	return nil
}
func (m *memMessageRepo) CacheDeliveryCode(ctx context.Context, code string, recipientID int) error {
	return nil
}
func (m *memMessageRepo) DropDeliveryCode(ctx context.Context, code string) error { return nil }

// --- harness ---

func newTestHandler(t *testing.T, msgRepo *memMessageRepo) *Handler {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"webhook_url":"https://hooks.example.com/send"}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	store, err := settings.NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	delivery := service.NewDeliveryRecorder(msgRepo, slog.Default())

	return NewHttpHandler(
		":0",
		&stubLeads{result: &service.CaptureResult{Lead: &domain.Lead{ID: 1, Name: "Maria Silva"}}},
		&stubBroadcaster{},
		delivery,
		&stubCatalog{},
		store,
	)
}

func doRequest(h *Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDeliveryWebhookCORSPreflight(t *testing.T) {
	h := newTestHandler(t, newMemMessageRepo())

	rec := doRequest(h, http.MethodOptions, "/webhooks/delivery", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected permissive CORS headers")
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("preflight response must be empty, got %q", rec.Body.String())
	}
}

func TestDeliveryWebhookMalformedBody(t *testing.T) {
	h := newTestHandler(t, newMemMessageRepo())

	rec := doRequest(h, http.MethodPost, "/webhooks/delivery", []byte(`{not json`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error responses must be structured JSON: %v", err)
	}
	if resp["success"] != false || resp["error"] != "malformed request body" {
		t.Fatalf("unexpected error envelope: %v", resp)
	}
}

func TestDeliveryWebhookMissingCode(t *testing.T) {
	repo := newMemMessageRepo()
	h := newTestHandler(t, repo)

	rec := doRequest(h, http.MethodPost, "/webhooks/delivery",
		[]byte(`{"lead_identifier":"x@y.com","status":"delivered"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if repo.writes != 0 {
		t.Fatal("missing fields must be rejected before any state mutation")
	}
}

func TestDeliveryWebhookIdempotentConfirmations(t *testing.T) {
	repo := newMemMessageRepo()
	repo.recipients["MSG-1"] = &domain.MessageRecipient{
		ID:               7,
		MessageHistoryID: 3,
		LeadID:           12,
		DeliveryCode:     "MSG-1",
		DeliveryStatus:   domain.DeliverySent,
	}
	h := newTestHandler(t, repo)

	body := []byte(`{"delivery_code":"MSG-1","lead_identifier":"x@y.com","status":"delivered"}`)

	first := doRequest(h, http.MethodPost, "/webhooks/delivery", body)
	if first.Code != http.StatusOK {
		t.Fatalf("first confirmation: expected 200, got %d (%s)", first.Code, first.Body.String())
	}
	second := doRequest(h, http.MethodPost, "/webhooks/delivery", body)
	if second.Code != http.StatusOK {
		t.Fatalf("repeated confirmation: expected 200, got %d (%s)", second.Code, second.Body.String())
	}

	if repo.writes != 1 {
		t.Fatalf("expected exactly one state write, got %d", repo.writes)
	}
	if repo.recipients["MSG-1"].DeliveryStatus != domain.DeliveryDelivered {
		t.Fatalf("expected terminal delivered state, got %s", repo.recipients["MSG-1"].DeliveryStatus)
	}

	var resp map[string]any
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if resp["success"] != true || resp["already_done"] != true {
		t.Fatalf("repeat must be acknowledged as already done: %v", resp)
	}
}

func TestDeliveryWebhookUnknownCode(t *testing.T) {
	h := newTestHandler(t, newMemMessageRepo())

	rec := doRequest(h, http.MethodPost, "/webhooks/delivery",
		[]byte(`{"delivery_code":"NOPE","lead_identifier":"x@y.com"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCaptureLeadMatchedReturnsOK(t *testing.T) {
	h := newTestHandler(t, newMemMessageRepo())
	h.leads = &stubLeads{result: &service.CaptureResult{
		Lead:    &domain.Lead{ID: 9, Name: "Maria Silva"},
		Matched: true,
	}}

	rec := doRequest(h, http.MethodPost, "/leads",
		[]byte(`{"name":"Maria Silva","whatsapp":"+55 11 99999-8888"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("matched capture should return 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["matched"] != true {
		t.Fatalf("expected matched flag, got %v", resp)
	}
}

func TestCaptureLeadNewReturnsCreated(t *testing.T) {
	h := newTestHandler(t, newMemMessageRepo())

	rec := doRequest(h, http.MethodPost, "/leads", []byte(`{"name":"Nova Pessoa"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("new capture should return 201, got %d", rec.Code)
	}
}

func TestReloadSettingsEndpoint(t *testing.T) {
	h := newTestHandler(t, newMemMessageRepo())

	rec := doRequest(h, http.MethodPost, "/settings/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["webhook_url"] != "https://hooks.example.com/send" {
		t.Fatalf("expected webhook url in reload ack, got %v", resp)
	}
}
