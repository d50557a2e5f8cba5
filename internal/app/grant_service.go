package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foerderscout/internal/metrics"
	"foerderscout/internal/model"
	"foerderscout/internal/repository"
)

type GrantService struct {
	grantRepo GrantStore
	index     GrantIndex
	embedder  Embedder
	cache     SearchCache
	logger    *zap.Logger
	now       func() time.Time
}

type ListGrantsInput struct {
	Type     model.GrantType
	Category model.GrantCategory
	Limit    int
	Offset   int
}

type GrantPage struct {
	Items  []model.Grant `json:"items"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type GrantSearchInput struct {
	ProjectDescription string              `json:"project_description"`
	Industry           string              `json:"industry"`
	CompanySize        *int                `json:"company_size"`
	Budget             *float64            `json:"budget"`
	Location           string              `json:"location"`
	Type               model.GrantType     `json:"type"`
	Category           model.GrantCategory `json:"category"`
	Limit              int                 `json:"limit"`
}

func NewGrantService(grantRepo GrantStore, index GrantIndex, embedder Embedder, cache SearchCache, logger *zap.Logger) *GrantService {
	return &GrantService{
		grantRepo: grantRepo,
		index:     index,
		embedder:  embedder,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *GrantService) List(input ListGrantsInput) (*GrantPage, error) {
	if input.Type != "" && !input.Type.Valid() {
		return nil, ErrInvalidInput
	}
	if input.Category != "" && !input.Category.Valid() {
		return nil, ErrInvalidInput
	}
	limit := clampLimit(input.Limit, 20, 100)
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	grants, total, err := s.grantRepo.List(repository.GrantFilter{
		Type:     input.Type,
		Category: input.Category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	return &GrantPage{Items: grants, Total: total, Limit: limit, Offset: offset}, nil
}

// Get resolves a grant by UUID or, failing that, by external id.
func (s *GrantService) Get(idOrExternal string) (*model.Grant, error) {
	idOrExternal = strings.TrimSpace(idOrExternal)
	if idOrExternal == "" {
		return nil, ErrInvalidInput
	}

	var (
		grant *model.Grant
		err   error
	)
	if id, parseErr := uuid.Parse(idOrExternal); parseErr == nil {
		grant, err = s.grantRepo.GetByID(id)
	} else {
		grant, err = s.grantRepo.GetByExternalID(idOrExternal)
	}
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, ErrGrantNotFound
	}
	return grant, nil
}

// Search runs the semantic matching pipeline: embed, vector search, filter, rank.
func (s *GrantService) Search(ctx context.Context, input GrantSearchInput) ([]GrantMatch, error) {
	query := BuildQueryText(input)
	if query == "" {
		return nil, ErrEmptySearchQuery
	}
	if input.Type != "" && !input.Type.Valid() {
		return nil, ErrInvalidInput
	}
	if input.Category != "" && !input.Category.Valid() {
		return nil, ErrInvalidInput
	}
	input.Limit = clampLimit(input.Limit, 10, 20)

	fingerprint := searchFingerprint(query, input)
	if s.cache != nil {
		var cached []GrantMatch
		hit, err := s.cache.Get(ctx, fingerprint, &cached)
		if err != nil {
			s.logger.Warn("grant search cache read failed", zap.Error(err))
		} else if hit {
			metrics.GrantSearchCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.GrantSearchCache.WithLabelValues("miss").Inc()
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	filters := map[string]string{}
	if input.Type != "" {
		filters["type"] = string(input.Type)
	}
	if input.Category != "" {
		filters["category"] = string(input.Category)
	}

	hits, err := s.index.Search(ctx, vector, input.Limit*searchOverfetch, searchScoreThreshold, filters)
	if err != nil {
		return nil, err
	}

	externalIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		externalIDs = append(externalIDs, h.ExternalID)
	}
	grants, err := s.grantRepo.ListByExternalIDs(externalIDs)
	if err != nil {
		return nil, err
	}
	byExternal := make(map[string]model.Grant, len(grants))
	for _, g := range grants {
		byExternal[g.ExternalID] = g
	}

	matches := make([]GrantMatch, 0, len(hits))
	for _, h := range hits {
		g, ok := byExternal[h.ExternalID]
		if !ok {
			continue
		}
		matches = append(matches, GrantMatch{Grant: g, Similarity: h.Score})
	}

	now := s.now()
	matches = filterMatches(matches, input.Budget, now)
	rankMatches(matches, now)
	if len(matches) > input.Limit {
		matches = matches[:input.Limit]
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, fingerprint, matches); err != nil {
			s.logger.Warn("grant search cache write failed", zap.Error(err))
		}
	}
	return matches, nil
}

func searchFingerprint(query string, input GrantSearchInput) string {
	raw, _ := json.Marshal(struct {
		Query    string              `json:"q"`
		Budget   *float64            `json:"b"`
		Type     model.GrantType     `json:"t"`
		Category model.GrantCategory `json:"c"`
		Limit    int                 `json:"l"`
	}{strings.ToLower(query), input.Budget, input.Type, input.Category, input.Limit})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func clampLimit(limit, def, upper int) int {
	if limit <= 0 {
		return def
	}
	if limit > upper {
		return upper
	}
	return limit
}
