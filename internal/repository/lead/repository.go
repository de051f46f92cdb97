package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	GetByID(ctx context.Context, id int) (*domain.Lead, error)
	List(ctx context.Context) ([]domain.Lead, error)
	ListByFilter(ctx context.Context, courseID, eventID, statusID *int) ([]domain.Lead, error)
	Update(ctx context.Context, lead *domain.Lead) error
	Delete(ctx context.Context, id int) error

	FindByContact(ctx context.Context, whatsapp, email string) (*domain.Lead, error)
	SearchNameContains(ctx context.Context, name string) ([]domain.Lead, error)
	SearchNamePrefix(ctx context.Context, prefix string) ([]domain.Lead, error)
}

type repo struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, lead *domain.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

func (r *repo) GetByID(ctx context.Context, id int) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).First(&lead, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *repo) List(ctx context.Context) ([]domain.Lead, error) {
	var leads []domain.Lead
	err := r.db.WithContext(ctx).Order("id DESC").Find(&leads).Error
	return leads, err
}

// ListByFilter returns leads matching every provided reference. Nil filters
// are ignored; all nil means every lead.
func (r *repo) ListByFilter(ctx context.Context, courseID, eventID, statusID *int) ([]domain.Lead, error) {
	q := r.db.WithContext(ctx).Model(&domain.Lead{})
	if courseID != nil {
		q = q.Where("course_id = ?", *courseID)
	}
	if eventID != nil {
		q = q.Where("event_id = ?", *eventID)
	}
	if statusID != nil {
		q = q.Where("status_id = ?", *statusID)
	}

	var leads []domain.Lead
	err := q.Order("id").Find(&leads).Error
	return leads, err
}

func (r *repo) Update(ctx context.Context, lead *domain.Lead) error {
	now := time.Now().UTC()
	lead.UpdatedAt = &now
	return r.db.WithContext(ctx).Save(lead).Error
}

func (r *repo) Delete(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Delete(&domain.Lead{}, id).Error
}

// FindByContact looks up a lead by normalized whatsapp digits OR
// case-insensitive email. Empty values are left out of the predicate so an
// empty email never matches leads without one.
func (r *repo) FindByContact(ctx context.Context, whatsapp, email string) (*domain.Lead, error) {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if whatsapp != "" {
		conds = append(conds, "whatsapp = ?")
		args = append(args, whatsapp)
	}
	if email != "" {
		conds = append(conds, "LOWER(email) = LOWER(?)")
		args = append(args, email)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	var lead domain.Lead
	err := r.db.WithContext(ctx).
		Where(strings.Join(conds, " OR "), args...).
		Order("id").
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *repo) SearchNameContains(ctx context.Context, name string) ([]domain.Lead, error) {
	var leads []domain.Lead
	err := r.db.WithContext(ctx).
		Where("name ILIKE ?", "%"+name+"%").
		Order("id").
		Find(&leads).Error
	return leads, err
}

func (r *repo) SearchNamePrefix(ctx context.Context, prefix string) ([]domain.Lead, error) {
	var leads []domain.Lead
	err := r.db.WithContext(ctx).
		Where("name ILIKE ?", prefix+"%").
		Order("id").
		Find(&leads).Error
	return leads, err
}
