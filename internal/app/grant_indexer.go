package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foerderscout/internal/model"
)

const embedBatchSize = 10

type GrantIndexer struct {
	grantRepo GrantStore
	index     GrantIndex
	embedder  Embedder
	cache     SearchCache
	logger    *zap.Logger
	now       func() time.Time
}

type IndexReport struct {
	Total    int `json:"total"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
	Removed  int `json:"removed"`
}

func NewGrantIndexer(grantRepo GrantStore, index GrantIndex, embedder Embedder, cache SearchCache, logger *zap.Logger) *GrantIndexer {
	return &GrantIndexer{
		grantRepo: grantRepo,
		index:     index,
		embedder:  embedder,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildEmbeddingText renders the text a grant is embedded with.
func BuildEmbeddingText(g *model.Grant) string {
	parts := []string{
		"Name: " + g.Name,
		"Type: " + string(g.Type),
		"Category: " + string(g.Category),
		"Description: " + g.Description,
	}
	if g.Guidelines != "" {
		guidelines := []rune(g.Guidelines)
		if len(guidelines) > 500 {
			guidelines = guidelines[:500]
		}
		parts = append(parts, "Guidelines: "+string(guidelines))
	}
	if len(g.Eligibility) > 0 {
		parts = append(parts, "Eligibility: "+strings.Join(g.Eligibility, ", "))
	}
	return strings.Join(parts, " ")
}

// EmbedGrants embeds the given grants in batches and upserts them into the index.
// A failing batch is logged and counted; the rest continue.
func (x *GrantIndexer) EmbedGrants(ctx context.Context, ids []uuid.UUID) (*IndexReport, error) {
	grants, err := x.grantRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	report := &IndexReport{Total: len(grants)}

	for start := 0; start < len(grants); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(grants) {
			end = len(grants)
		}
		batch := grants[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = BuildEmbeddingText(&batch[i])
		}
		vectors, err := x.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			x.logger.Warn("embed grant batch failed", zap.Int("size", len(batch)), zap.Error(err))
			report.Failed += len(batch)
			continue
		}

		done := make([]uuid.UUID, 0, len(batch))
		for i := range batch {
			if err := x.index.Upsert(ctx, &batch[i], vectors[i]); err != nil {
				x.logger.Warn("index grant failed", zap.String("external_id", batch[i].ExternalID), zap.Error(err))
				report.Failed++
				continue
			}
			done = append(done, batch[i].ID)
		}
		if err := x.grantRepo.MarkEmbedded(done, x.embedder.EmbeddingModel(), x.now()); err != nil {
			return report, err
		}
		report.Embedded += len(done)
	}

	x.invalidate(ctx, report.Embedded)
	if report.Failed > 0 && report.Embedded == 0 {
		return report, fmt.Errorf("embedding failed for all %d grants", report.Failed)
	}
	return report, nil
}

// CleanupExpired removes expired, non-continuous grants from the index.
func (x *GrantIndexer) CleanupExpired(ctx context.Context) (*IndexReport, error) {
	expired, err := x.grantRepo.ListExpired(x.now())
	if err != nil {
		return nil, err
	}
	report := &IndexReport{Total: len(expired)}
	if len(expired) == 0 {
		return report, nil
	}

	externalIDs := make([]string, 0, len(expired))
	ids := make([]uuid.UUID, 0, len(expired))
	for _, g := range expired {
		externalIDs = append(externalIDs, g.ExternalID)
		ids = append(ids, g.ID)
	}
	if err := x.index.Delete(ctx, externalIDs...); err != nil {
		return report, err
	}
	if err := x.grantRepo.ClearEmbedded(ids); err != nil {
		return report, err
	}
	report.Removed = len(expired)
	x.invalidate(ctx, report.Removed)
	return report, nil
}

func (x *GrantIndexer) invalidate(ctx context.Context, changed int) {
	if changed == 0 || x.cache == nil {
		return
	}
	if err := x.cache.Invalidate(ctx); err != nil {
		x.logger.Warn("invalidate grant search cache failed", zap.Error(err))
	}
}
