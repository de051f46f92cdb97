package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/pastoriniMatheus/leadcast-service/docs"
	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	catalogRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/catalog"
	"github.com/pastoriniMatheus/leadcast-service/internal/service"
	"github.com/pastoriniMatheus/leadcast-service/internal/settings"
)

type Handler struct {
	leads     service.Leads
	broadcast service.Broadcaster
	delivery  service.DeliveryRecorder
	catalog   catalogRepo.Repository
	store     *settings.Store
	server    *http.Server
}

// @title Lead Console API
// @version 1.0
// @description Lead capture, broadcast and delivery tracking backend
// @BasePath /
func NewHttpHandler(
	addr string,
	leads service.Leads,
	broadcast service.Broadcaster,
	delivery service.DeliveryRecorder,
	catalog catalogRepo.Repository,
	store *settings.Store,
) *Handler {
	h := &Handler{
		leads:     leads,
		broadcast: broadcast,
		delivery:  delivery,
		catalog:   catalog,
		store:     store,
	}

	// create router
	router := gin.Default()
	router.Use(corsMiddleware())

	// leads
	router.POST("/leads", h.captureLead)
	router.GET("/leads", h.listLeads)
	router.GET("/leads/:id", h.getLead)
	router.PUT("/leads/:id", h.updateLead)
	router.DELETE("/leads/:id", h.deleteLead)

	// catalog
	router.POST("/courses", h.createCourse)
	router.GET("/courses", h.listCourses)
	router.DELETE("/courses/:id", h.deleteCourse)
	router.POST("/events", h.createEvent)
	router.GET("/events", h.listEvents)
	router.DELETE("/events/:id", h.deleteEvent)
	router.POST("/statuses", h.createStatus)
	router.GET("/statuses", h.listStatuses)
	router.DELETE("/statuses/:id", h.deleteStatus)

	// QR tracking
	router.POST("/scan-sessions", h.createScanSession)
	router.GET("/scan-sessions", h.listScanSessions)
	router.POST("/scan-sessions/:id/convert", h.convertScanSession)

	// broadcasting
	router.POST("/messages/send", h.sendBroadcast)
	router.GET("/messages", h.listMessages)
	router.GET("/messages/:id", h.getMessage)
	router.GET("/messages/:id/recipients", h.listRecipients)

	// inbound callbacks and ops
	router.POST("/webhooks/delivery", h.deliveryConfirmation)
	router.POST("/settings/reload", h.reloadSettings)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// create http server
	h.server = &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	return h
}

func (h *Handler) Run() error {
	return h.server.ListenAndServe()
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func fail(c *gin.Context, status int, reason string) {
	c.JSON(status, gin.H{"success": false, "error": reason})
}

func failWithDetails(c *gin.Context, status int, reason, details string) {
	c.JSON(status, gin.H{"success": false, "error": reason, "details": details})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// ==================== leads ====================

type captureLeadRequest struct {
	Name          string `json:"name" binding:"required"`
	Whatsapp      string `json:"whatsapp"`
	Email         string `json:"email"`
	CourseID      *int   `json:"course_id"`
	EventID       *int   `json:"event_id"`
	StatusID      *int   `json:"status_id"`
	ScanSessionID *int   `json:"scan_session_id"`
}

// CaptureLead godoc
// @Summary Capture a lead submission
// @Description Runs deduplication; attaches to an existing lead on a match, creates one otherwise
// @Tags Leads
// @Accept json
// @Produce json
// @Success 200 {object} service.CaptureResult
// @Success 201 {object} service.CaptureResult
// @Router /leads [post]
func (h *Handler) captureLead(c *gin.Context) {
	var req captureLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.leads.Capture(c.Request.Context(), service.CaptureRequest{
		Name:          req.Name,
		Whatsapp:      req.Whatsapp,
		Email:         req.Email,
		CourseID:      req.CourseID,
		EventID:       req.EventID,
		StatusID:      req.StatusID,
		ScanSessionID: req.ScanSessionID,
	})
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "lead capture failed", err.Error())
		return
	}

	status := http.StatusCreated
	if result.Matched {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"success": true, "matched": result.Matched, "lead": result.Lead})
}

func (h *Handler) listLeads(c *gin.Context) {
	leads, err := h.leads.List(c.Request.Context())
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to list leads", err.Error())
		return
	}
	c.JSON(http.StatusOK, leads)
}

func (h *Handler) getLead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	lead, err := h.leads.Get(c.Request.Context(), id)
	if errors.Is(err, service.ErrLeadNotFound) {
		fail(c, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to fetch lead", err.Error())
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *Handler) updateLead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var lead domain.Lead
	if err := c.ShouldBindJSON(&lead); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	lead.ID = id

	if err := h.leads.Update(c.Request.Context(), &lead); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to update lead", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

func (h *Handler) deleteLead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.leads.Delete(c.Request.Context(), id); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to delete lead", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ==================== catalog ====================

func (h *Handler) createCourse(c *gin.Context) {
	var course domain.Course
	if err := c.ShouldBindJSON(&course); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	course.CreatedAt = time.Now().UTC()
	if err := h.catalog.CreateCourse(c.Request.Context(), &course); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to create course", err.Error())
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to list courses", err.Error())
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *Handler) deleteCourse(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteCourse(c.Request.Context(), id); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to delete course", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) createEvent(c *gin.Context) {
	var event domain.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	event.CreatedAt = time.Now().UTC()
	event.WhatsappNumber = domain.NormalizePhone(event.WhatsappNumber)
	if err := h.catalog.CreateEvent(c.Request.Context(), &event); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to create event", err.Error())
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.catalog.ListEvents(c.Request.Context())
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to list events", err.Error())
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) deleteEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteEvent(c.Request.Context(), id); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to delete event", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) createStatus(c *gin.Context) {
	var status domain.LeadStatus
	if err := c.ShouldBindJSON(&status); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.catalog.CreateStatus(c.Request.Context(), &status); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to create status", err.Error())
		return
	}
	c.JSON(http.StatusCreated, status)
}

func (h *Handler) listStatuses(c *gin.Context) {
	statuses, err := h.catalog.ListStatuses(c.Request.Context())
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to list statuses", err.Error())
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (h *Handler) deleteStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteStatus(c.Request.Context(), id); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to delete status", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ==================== QR tracking ====================

// CreateScanSession godoc
// @Summary Record a QR-code scan
// @Description Issues a tracking id for a scan; later lead captures can reference the session
// @Tags Tracking
// @Produce json
// @Success 201 {object} domain.ScanSession
// @Router /scan-sessions [post]
func (h *Handler) createScanSession(c *gin.Context) {
	var req struct {
		EventID *int `json:"event_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}

	session := &domain.ScanSession{
		EventID:    req.EventID,
		TrackingID: uuid.NewString(),
		ScannedAt:  time.Now().UTC(),
	}
	if err := h.catalog.CreateScanSession(c.Request.Context(), session); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to record scan", err.Error())
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) listScanSessions(c *gin.Context) {
	sessions, err := h.catalog.ListScanSessions(c.Request.Context())
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to list scan sessions", err.Error())
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) convertScanSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		LeadID int `json:"lead_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "lead_id is required")
		return
	}

	session, err := h.catalog.GetScanSession(c.Request.Context(), id)
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to fetch scan session", err.Error())
		return
	}
	if session == nil {
		fail(c, http.StatusNotFound, "scan session not found")
		return
	}

	if err := h.catalog.ConvertScanSession(c.Request.Context(), id, req.LeadID); err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to convert scan session", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ==================== broadcasting ====================

type sendBroadcastRequest struct {
	Type     string `json:"type" binding:"required"`
	Content  string `json:"content" binding:"required"`
	CourseID *int   `json:"course_id"`
	EventID  *int   `json:"event_id"`
	StatusID *int   `json:"status_id"`
}

// SendBroadcast godoc
// @Summary Broadcast a message to filtered leads
// @Description Records the broadcast and dispatches it to the configured outbound webhook
// @Tags Messages
// @Accept json
// @Produce json
// @Success 200 {object} service.BroadcastResult
// @Router /messages/send [post]
func (h *Handler) sendBroadcast(c *gin.Context) {
	var req sendBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.broadcast.Send(c.Request.Context(), service.BroadcastRequest{
		Type:     req.Type,
		Content:  req.Content,
		CourseID: req.CourseID,
		EventID:  req.EventID,
		StatusID: req.StatusID,
	})
	switch {
	case errors.Is(err, service.ErrNoRecipients),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrNoWebhookURL):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		failWithDetails(c, http.StatusInternalServerError, "broadcast failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          result.Status == domain.MessageSent,
		"history_id":       result.HistoryID,
		"status":           result.Status,
		"recipients_count": result.RecipientsCount,
		"webhook_status":   result.WebhookStatus,
		"error":            result.Error,
	})
}

func (h *Handler) listMessages(c *gin.Context) {
	history, err := h.broadcast.ListHistory(c.Request.Context())
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to list messages", err.Error())
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) getMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	details, err := h.broadcast.HistoryDetails(c.Request.Context(), id)
	if errors.Is(err, service.ErrUnknownHistory) {
		fail(c, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to fetch message", err.Error())
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) listRecipients(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	recipients, err := h.broadcast.Recipients(c.Request.Context(), id)
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "failed to list recipients", err.Error())
		return
	}
	c.JSON(http.StatusOK, recipients)
}

// ==================== delivery confirmations ====================

type deliveryConfirmationRequest struct {
	DeliveryCode   string `json:"delivery_code"`
	LeadIdentifier string `json:"lead_identifier"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"error_message"`
}

// DeliveryConfirmation godoc
// @Summary Record a message delivery confirmation
// @Description Inbound callback correlating a delivery code to its recipient; idempotent per confirmation tuple
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} service.DeliveryAck
// @Failure 400 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /webhooks/delivery [post]
func (h *Handler) deliveryConfirmation(c *gin.Context) {
	var req deliveryConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}

	ack, err := h.delivery.Record(c.Request.Context(), service.DeliveryConfirmation{
		DeliveryCode:   req.DeliveryCode,
		LeadIdentifier: req.LeadIdentifier,
		Status:         req.Status,
		ErrorMessage:   req.ErrorMessage,
	})
	switch {
	case errors.Is(err, service.ErrMissingDeliveryCode),
		errors.Is(err, service.ErrMissingLeadIdentifier),
		errors.Is(err, service.ErrUnsupportedStatus):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrRecipientNotFound):
		fail(c, http.StatusNotFound, err.Error())
		return
	case err != nil:
		failWithDetails(c, http.StatusInternalServerError, "failed to record delivery", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"recipient_id": ack.RecipientID,
		"history_id":   ack.HistoryID,
		"lead_id":      ack.LeadID,
		"status":       ack.Status,
		"already_done": ack.AlreadyDone,
	})
}

// ==================== settings ====================

// ReloadSettings godoc
// @Summary Reload runtime settings from disk
// @Tags Settings
// @Produce json
// @Success 200 {object} map[string]any
// @Router /settings/reload [post]
func (h *Handler) reloadSettings(c *gin.Context) {
	cfg, err := h.store.Reload()
	if err != nil {
		failWithDetails(c, http.StatusInternalServerError, "settings reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "webhook_url": cfg.WebhookURL})
}
