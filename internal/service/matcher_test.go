package service_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	"github.com/pastoriniMatheus/leadcast-service/internal/service"
)

// fakeLeadRepo emulates the matcher's query shapes over an in-memory slice.
type fakeLeadRepo struct {
	leads       []domain.Lead
	failQueries bool

	contactCalls int
	searchCalls  int
	prefixCalls  int
}

var errQueryFailed = errors.New("query failed")

func (f *fakeLeadRepo) Create(ctx context.Context, lead *domain.Lead) error { return nil }
func (f *fakeLeadRepo) GetByID(ctx context.Context, id int) (*domain.Lead, error) {
	return nil, nil
}
func (f *fakeLeadRepo) List(ctx context.Context) ([]domain.Lead, error) { return f.leads, nil }
func (f *fakeLeadRepo) ListByFilter(ctx context.Context, courseID, eventID, statusID *int) ([]domain.Lead, error) {
	return f.leads, nil
}
func (f *fakeLeadRepo) Update(ctx context.Context, lead *domain.Lead) error { return nil }
func (f *fakeLeadRepo) Delete(ctx context.Context, id int) error            { return nil }

func (f *fakeLeadRepo) FindByContact(ctx context.Context, whatsapp, email string) (*domain.Lead, error) {
	f.contactCalls++
	if f.failQueries {
		return nil, errQueryFailed
	}
	for i := range f.leads {
		if whatsapp != "" && f.leads[i].Whatsapp == whatsapp {
			return &f.leads[i], nil
		}
		if email != "" && strings.EqualFold(f.leads[i].Email, email) {
			return &f.leads[i], nil
		}
	}
	return nil, nil
}

func (f *fakeLeadRepo) SearchNameContains(ctx context.Context, name string) ([]domain.Lead, error) {
	f.searchCalls++
	if f.failQueries {
		return nil, errQueryFailed
	}
	var out []domain.Lead
	for _, l := range f.leads {
		if strings.Contains(strings.ToLower(l.Name), strings.ToLower(name)) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeadRepo) SearchNamePrefix(ctx context.Context, prefix string) ([]domain.Lead, error) {
	f.prefixCalls++
	if f.failQueries {
		return nil, errQueryFailed
	}
	var out []domain.Lead
	for _, l := range f.leads {
		if strings.HasPrefix(strings.ToLower(l.Name), strings.ToLower(prefix)) {
			out = append(out, l)
		}
	}
	return out, nil
}

func newMatcher(repo *fakeLeadRepo) service.LeadMatcher {
	return service.NewLeadMatcher(repo, slog.Default())
}

func TestMatchByWhatsappIgnoresFormatting(t *testing.T) {
	repo := &fakeLeadRepo{leads: []domain.Lead{
		{ID: 1, Name: "Carlos Souza", Whatsapp: "5511999998888"},
	}}
	m := newMatcher(repo)

	lead, err := m.Match(context.Background(), "Someone Else", "+55 (11) 99999-8888", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead == nil || lead.ID != 1 {
		t.Fatalf("expected lead 1, got %+v", lead)
	}
	if repo.searchCalls != 0 || repo.prefixCalls != 0 {
		t.Fatal("contact match must short-circuit name searches")
	}
}

func TestMatchByEmailIndependentOfWhatsapp(t *testing.T) {
	repo := &fakeLeadRepo{leads: []domain.Lead{
		{ID: 2, Name: "Joana Lima", Email: "a@x.com", Whatsapp: "551100000000"},
	}}
	m := newMatcher(repo)

	lead, err := m.Match(context.Background(), "Joana", "559988887777", "A@X.COM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead == nil || lead.ID != 2 {
		t.Fatalf("expected lead 2, got %+v", lead)
	}
}

func TestMatchExactFullNameBeatsAmbiguity(t *testing.T) {
	repo := &fakeLeadRepo{leads: []domain.Lead{
		{ID: 1, Name: "Maria Silva"},
		{ID: 2, Name: "Maria Santos"},
	}}
	m := newMatcher(repo)

	lead, err := m.Match(context.Background(), "maria silva", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead == nil || lead.ID != 1 {
		t.Fatalf("expected exact match on lead 1, got %+v", lead)
	}
}

func TestMatchAmbiguousFuzzyHitsReturnNoMatch(t *testing.T) {
	repo := &fakeLeadRepo{leads: []domain.Lead{
		{ID: 1, Name: "Ana Paula Costa Lima"},
		{ID: 2, Name: "Ana Paula Costa Souza"},
	}}
	m := newMatcher(repo)

	lead, err := m.Match(context.Background(), "Ana Paula Costa", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead != nil {
		t.Fatalf("ambiguous hits must resolve to no match, got %+v", lead)
	}
}

func TestMatchSingleFuzzyHitAccepted(t *testing.T) {
	repo := &fakeLeadRepo{leads: []domain.Lead{
		{ID: 7, Name: "Roberto Almeida Junior"},
		{ID: 8, Name: "Outra Pessoa"},
	}}
	m := newMatcher(repo)

	lead, err := m.Match(context.Background(), "Roberto Almeida", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead == nil || lead.ID != 7 {
		t.Fatalf("expected single fuzzy hit accepted, got %+v", lead)
	}
}

func TestMatchShortSingleTokenNeverSearches(t *testing.T) {
	repo := &fakeLeadRepo{leads: []domain.Lead{
		{ID: 1, Name: "Jo Pereira"},
	}}
	m := newMatcher(repo)

	lead, err := m.Match(context.Background(), "Jo", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead != nil {
		t.Fatalf("short single token must not match, got %+v", lead)
	}
	if repo.searchCalls != 0 || repo.prefixCalls != 0 {
		t.Fatalf("short single token triggered a name search (contains=%d prefix=%d)",
			repo.searchCalls, repo.prefixCalls)
	}
}

func TestMatchSingleTokenPrefix(t *testing.T) {
	t.Run("unique hit accepted", func(t *testing.T) {
		repo := &fakeLeadRepo{leads: []domain.Lead{
			{ID: 3, Name: "Fernanda Torres"},
			{ID: 4, Name: "Bruno Dias"},
		}}
		lead, err := newMatcher(repo).Match(context.Background(), "Fernanda", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lead == nil || lead.ID != 3 {
			t.Fatalf("expected lead 3, got %+v", lead)
		}
	})

	t.Run("multiple hits rejected", func(t *testing.T) {
		repo := &fakeLeadRepo{leads: []domain.Lead{
			{ID: 3, Name: "Fernanda Torres"},
			{ID: 5, Name: "Fernanda Rocha"},
		}}
		lead, err := newMatcher(repo).Match(context.Background(), "Fernanda", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lead != nil {
			t.Fatalf("multiple prefix hits must not match, got %+v", lead)
		}
	})
}

func TestMatchPropagatesQueryErrors(t *testing.T) {
	repo := &fakeLeadRepo{failQueries: true}
	_, err := newMatcher(repo).Match(context.Background(), "Qualquer Nome", "5511999998888", "")
	if !errors.Is(err, errQueryFailed) {
		t.Fatalf("expected query error to propagate, got %v", err)
	}
}
