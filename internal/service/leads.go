package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	catalogRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/catalog"
	leadRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/lead"
)

var ErrLeadNotFound = errors.New("lead not found")

type CaptureRequest struct {
	Name          string
	Whatsapp      string
	Email         string
	CourseID      *int
	EventID       *int
	StatusID      *int
	ScanSessionID *int
}

type CaptureResult struct {
	Lead    *domain.Lead `json:"lead"`
	Matched bool         `json:"matched"`
}

type Leads interface {
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	Get(ctx context.Context, id int) (*domain.Lead, error)
	List(ctx context.Context) ([]domain.Lead, error)
	Update(ctx context.Context, lead *domain.Lead) error
	Delete(ctx context.Context, id int) error
}

type leadsService struct {
	leads   leadRepo.Repository
	catalog catalogRepo.Repository
	matcher LeadMatcher
	logger  *slog.Logger
}

func NewLeadsService(leads leadRepo.Repository, catalog catalogRepo.Repository, matcher LeadMatcher, logger *slog.Logger) Leads {
	return &leadsService{leads: leads, catalog: catalog, matcher: matcher, logger: logger}
}

// Capture runs the submission through the deduplication matcher. A match
// updates the existing lead's references instead of creating a duplicate;
// either way a linked scan session is marked converted.
func (s *leadsService) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	existing, err := s.matcher.Match(ctx, req.Name, req.Whatsapp, req.Email)
	if err != nil {
		return nil, fmt.Errorf("lead match: %w", err)
	}

	var lead *domain.Lead
	matched := existing != nil

	if matched {
		lead = existing
		if req.CourseID != nil {
			lead.CourseID = req.CourseID
		}
		if req.EventID != nil {
			lead.EventID = req.EventID
		}
		if req.StatusID != nil {
			lead.StatusID = req.StatusID
		}
		if req.ScanSessionID != nil {
			lead.ScanSessionID = req.ScanSessionID
		}
		if err := s.leads.Update(ctx, lead); err != nil {
			return nil, fmt.Errorf("update matched lead: %w", err)
		}
		s.logger.Info("submission matched existing lead", slog.Int("leadId", lead.ID))
	} else {
		lead = &domain.Lead{
			Name:          req.Name,
			Whatsapp:      domain.NormalizePhone(req.Whatsapp),
			Email:         req.Email,
			CourseID:      req.CourseID,
			EventID:       req.EventID,
			StatusID:      req.StatusID,
			ScanSessionID: req.ScanSessionID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.leads.Create(ctx, lead); err != nil {
			return nil, fmt.Errorf("create lead: %w", err)
		}
	}

	if req.ScanSessionID != nil {
		if err := s.catalog.ConvertScanSession(ctx, *req.ScanSessionID, lead.ID); err != nil {
			s.logger.Error("failed to convert scan session",
				"scanSessionId", *req.ScanSessionID,
				"error", err.Error())
		}
	}

	return &CaptureResult{Lead: lead, Matched: matched}, nil
}

func (s *leadsService) Get(ctx context.Context, id int) (*domain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

func (s *leadsService) List(ctx context.Context) ([]domain.Lead, error) {
	return s.leads.List(ctx)
}

func (s *leadsService) Update(ctx context.Context, lead *domain.Lead) error {
	lead.Whatsapp = domain.NormalizePhone(lead.Whatsapp)
	return s.leads.Update(ctx, lead)
}

func (s *leadsService) Delete(ctx context.Context, id int) error {
	return s.leads.Delete(ctx, id)
}
