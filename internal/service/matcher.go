package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	leadRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/lead"
)

// minPrefixLen keeps single-token matching away from common short first
// names.
const minPrefixLen = 4

// LeadMatcher decides whether a submission corresponds to an existing lead.
type LeadMatcher interface {
	Match(ctx context.Context, name, whatsapp, email string) (*domain.Lead, error)
}

type matcher struct {
	leads  leadRepo.Repository
	logger *slog.Logger
}

func NewLeadMatcher(leads leadRepo.Repository, logger *slog.Logger) LeadMatcher {
	return &matcher{leads: leads, logger: logger}
}

// Match returns at most one existing lead believed to be the same person,
// or nil. Contact data wins outright; name matching favors precision over
// recall, so ambiguity and short names resolve to "no match".
func (m *matcher) Match(ctx context.Context, name, whatsapp, email string) (*domain.Lead, error) {
	digits := domain.NormalizePhone(whatsapp)
	name = strings.TrimSpace(name)

	if digits != "" || email != "" {
		lead, err := m.leads.FindByContact(ctx, digits, email)
		if err != nil {
			return nil, fmt.Errorf("contact lookup failed: %w", err)
		}
		if lead != nil {
			return lead, nil
		}
	}

	tokens := strings.Fields(name)
	switch {
	case len(tokens) >= 2:
		return m.matchFullName(ctx, name)
	case len(tokens) == 1 && len([]rune(tokens[0])) >= minPrefixLen:
		return m.matchSingleToken(ctx, tokens[0])
	}

	return nil, nil
}

func (m *matcher) matchFullName(ctx context.Context, name string) (*domain.Lead, error) {
	candidates, err := m.leads.SearchNameContains(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("name search failed: %w", err)
	}

	for i := range candidates {
		if strings.EqualFold(strings.TrimSpace(candidates[i].Name), name) {
			return &candidates[i], nil
		}
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return &candidates[0], nil
	}

	m.logger.Info("ambiguous name match treated as new lead",
		slog.String("name", name),
		slog.Int("candidates", len(candidates)))
	return nil, nil
}

func (m *matcher) matchSingleToken(ctx context.Context, token string) (*domain.Lead, error) {
	candidates, err := m.leads.SearchNamePrefix(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("name prefix search failed: %w", err)
	}
	if len(candidates) == 1 {
		return &candidates[0], nil
	}
	return nil, nil
}
