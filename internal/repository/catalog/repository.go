package repository

import (
	"context"
	"errors"

	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	"gorm.io/gorm"
)

// Repository covers the small lookup tables of the console: courses,
// events, lead statuses and QR scan sessions.
type Repository interface {
	CreateCourse(ctx context.Context, c *domain.Course) error
	ListCourses(ctx context.Context) ([]domain.Course, error)
	DeleteCourse(ctx context.Context, id int) error

	CreateEvent(ctx context.Context, e *domain.Event) error
	ListEvents(ctx context.Context) ([]domain.Event, error)
	DeleteEvent(ctx context.Context, id int) error

	CreateStatus(ctx context.Context, s *domain.LeadStatus) error
	ListStatuses(ctx context.Context) ([]domain.LeadStatus, error)
	DeleteStatus(ctx context.Context, id int) error

	CreateScanSession(ctx context.Context, s *domain.ScanSession) error
	GetScanSession(ctx context.Context, id int) (*domain.ScanSession, error)
	ListScanSessions(ctx context.Context) ([]domain.ScanSession, error)
	ConvertScanSession(ctx context.Context, id, leadID int) error
}

type repo struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) CreateCourse(ctx context.Context, c *domain.Course) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *repo) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).Order("name").Find(&courses).Error
	return courses, err
}

func (r *repo) DeleteCourse(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Delete(&domain.Course{}, id).Error
}

func (r *repo) CreateEvent(ctx context.Context, e *domain.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *repo) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).Order("name").Find(&events).Error
	return events, err
}

func (r *repo) DeleteEvent(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Delete(&domain.Event{}, id).Error
}

func (r *repo) CreateStatus(ctx context.Context, s *domain.LeadStatus) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repo) ListStatuses(ctx context.Context) ([]domain.LeadStatus, error) {
	var statuses []domain.LeadStatus
	err := r.db.WithContext(ctx).Order("id").Find(&statuses).Error
	return statuses, err
}

func (r *repo) DeleteStatus(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Delete(&domain.LeadStatus{}, id).Error
}

func (r *repo) CreateScanSession(ctx context.Context, s *domain.ScanSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repo) GetScanSession(ctx context.Context, id int) (*domain.ScanSession, error) {
	var session domain.ScanSession
	err := r.db.WithContext(ctx).First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) ListScanSessions(ctx context.Context) ([]domain.ScanSession, error) {
	var sessions []domain.ScanSession
	err := r.db.WithContext(ctx).Order("id DESC").Find(&sessions).Error
	return sessions, err
}

func (r *repo) ConvertScanSession(ctx context.Context, id, leadID int) error {
	return r.db.WithContext(ctx).
		Model(&domain.ScanSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"lead_id":   leadID,
			"converted": true,
		}).Error
}
