package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"foerderscout/internal/model"
)

const grantsFixture = `[
  {"name": "ZIM", "type": "federal", "category": "innovation", "max_funding": 500000, "deadline": "laufend"},
  {"title": "Digital Jetzt", "url": "https://example.de/digital-jetzt", "funding_amount": "bis zu 50.000 EUR", "who_is_funded": "KMU"},
  {"type": "space"},
  {"name": "EIC Accelerator", "type": "eu", "deadline": "31.12.2026", "historical_success_rate": 0.05}
]`

func newTestImportService(t *testing.T, db *memDB, queue *fakeQueue, cache *fakeCache) *ImportService {
	t.Helper()
	svc, err := NewImportService(fakeGrants{db}, queue, cache, zaptest.NewLogger(t))
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func markAllEmbedded(t *testing.T, db *memDB) {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(db.grants))
	for id := range db.grants {
		ids = append(ids, id)
	}
	require.NoError(t, fakeGrants{db}.MarkEmbedded(ids, "test-model", time.Now()))
}

func TestImportService_ParseAndImport(t *testing.T) {
	db := newMemDB()
	queue := &fakeQueue{}
	cache := newFakeCache()
	svc := newTestImportService(t, db, queue, cache)

	records, report, err := svc.ParseGrantFile([]byte(grantsFixture))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 1, report.Invalid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "record 2")

	report, err = svc.Import(context.Background(), records, report)
	require.NoError(t, err)
	assert.Equal(t, 3, report.New)
	assert.Equal(t, 3, report.Enqueued)
	assert.Equal(t, 1, cache.invalidated)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, model.JobEmbedGrants, queue.jobs[0].Type)
	assert.Len(t, queue.jobs[0].Payload.(model.EmbedGrantsPayload).GrantIDs, 3)

	markAllEmbedded(t, db)
	again, err := svc.Import(context.Background(), records, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Unchanged)
	assert.Zero(t, again.New)
	assert.Zero(t, again.Reindexed)
	assert.Len(t, queue.jobs, 1)

	records[0].Description = "Zentrales Innovationsprogramm Mittelstand"
	changed, err := svc.Import(context.Background(), records, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, changed.Updated)
	assert.Equal(t, 2, changed.Unchanged)
	require.Len(t, changed.Changes, 1)
	assert.Equal(t, "zim", changed.Changes[0].ExternalID)
	assert.Equal(t, []string{ChangedContent}, changed.Changes[0].Fields)
	require.Len(t, queue.jobs, 2)
	assert.Len(t, queue.jobs[1].Payload.(model.EmbedGrantsPayload).GrantIDs, 1)
	assert.Equal(t, 2, cache.invalidated)
	assert.Len(t, db.grants, 3)
}

func TestImportService_ReindexesUnembeddedGrants(t *testing.T) {
	db := newMemDB()
	queue := &fakeQueue{}
	svc := newTestImportService(t, db, queue, newFakeCache())

	records, report, err := svc.ParseGrantFile([]byte(grantsFixture))
	require.NoError(t, err)
	_, err = svc.Import(context.Background(), records, report)
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)

	// the embed job never ran, so the second import has to enqueue again
	again, err := svc.Import(context.Background(), records, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Unchanged)
	assert.Equal(t, 3, again.Reindexed)
	assert.Equal(t, 3, again.Enqueued)
	require.Len(t, queue.jobs, 2)
	assert.Len(t, queue.jobs[1].Payload.(model.EmbedGrantsPayload).GrantIDs, 3)

	// expired grants stay out of the index
	svc.now = func() time.Time { return time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC) }
	later, err := svc.Import(context.Background(), records, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, later.Reindexed)
	assert.Len(t, queue.jobs[2].Payload.(model.EmbedGrantsPayload).GrantIDs, 2)
}

func TestImportService_ReportsChangedFields(t *testing.T) {
	db := newMemDB()
	svc := newTestImportService(t, db, &fakeQueue{}, newFakeCache())

	zimMax, digitalMax, raised := 500000.0, 50000.0, 650000.0
	records := []GrantRecord{
		{Name: "ZIM", MaxFunding: &zimMax, Deadline: "31.12.2026"},
		{Name: "Digital Jetzt", MaxFunding: &digitalMax, WhoIsFunded: "KMU"},
	}
	_, err := svc.Import(context.Background(), records, nil)
	require.NoError(t, err)

	records[0].Deadline = "30.06.2027"
	records[0].MaxFunding = &raised
	records[1].WhoIsFunded = "KMU, Handwerk"
	report, err := svc.Import(context.Background(), records, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, []GrantChange{
		{ExternalID: "zim", Fields: []string{ChangedDeadline, ChangedAmount}},
		{ExternalID: "digital-jetzt", Fields: []string{ChangedConditions}},
	}, report.Changes)
}

func TestChangedGrantFields(t *testing.T) {
	deadline := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	minA, minB := 10.0, 25.0
	base := model.Grant{MaxFunding: 1000, Deadline: &deadline, MinOwnContributionPercent: &minA}

	tests := []struct {
		name   string
		mutate func(g *model.Grant)
		want   []string
	}{
		{"description only", func(g *model.Grant) { g.Description = "neu" }, []string{ChangedContent}},
		{"continuous", func(g *model.Grant) { g.Deadline = nil; g.IsContinuous = true }, []string{ChangedDeadline}},
		{"own contribution", func(g *model.Grant) { g.MinOwnContributionPercent = &minB }, []string{ChangedConditions}},
		{"min funding", func(g *model.Grant) { g.MinFunding = &minA }, []string{ChangedAmount}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := base
			tt.mutate(&after)
			assert.Equal(t, tt.want, ChangedGrantFields(&base, &after))
		})
	}
}

func TestImportService_ParseRejectsMalformedFile(t *testing.T) {
	svc, err := NewImportService(fakeGrants{newMemDB()}, &fakeQueue{}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, _, err = svc.ParseGrantFile([]byte(`{"name": "not an array"}`))
	assert.Error(t, err)
}

func TestNormalizeGrantRecord(t *testing.T) {
	g, err := NormalizeGrantRecord(GrantRecord{
		Title:         "Digital Jetzt",
		URL:           "https://example.de/digital-jetzt",
		FundingAmount: "bis zu 50.000 EUR",
		WhatIsFunded:  "Investitionen in digitale Technologien",
		WhoIsFunded:   "KMU",
		Deadline:      "31.12.2026",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.de/digital-jetzt", g.ExternalID)
	assert.Equal(t, model.GrantTypeFederal, g.Type)
	assert.Equal(t, model.CategoryInnovation, g.Category)
	assert.Equal(t, "Deutschland", g.Region)
	assert.InDelta(t, 50000, g.MaxFunding, 0.001)
	assert.Equal(t, "Investitionen in digitale Technologien", g.Description)
	assert.Equal(t, []string{"KMU"}, []string(g.Eligibility))
	require.NotNil(t, g.Deadline)
	assert.True(t, g.Deadline.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.NotEmpty(t, g.ContentHash)

	slugged, err := NormalizeGrantRecord(GrantRecord{Name: "Förderung für Ökö-Projekte", Deadline: "laufend"})
	require.NoError(t, err)
	assert.Equal(t, "foerderung-fuer-oekoe-projekte", slugged.ExternalID)
	assert.True(t, slugged.IsContinuous)
	assert.Nil(t, slugged.Deadline)

	_, err = NormalizeGrantRecord(GrantRecord{Name: "X", Deadline: "irgendwann"})
	assert.Error(t, err)
}

func TestGrantContentHashIgnoresEmbeddingState(t *testing.T) {
	g, err := NormalizeGrantRecord(GrantRecord{Name: "ZIM", Description: "Innovation"})
	require.NoError(t, err)
	before := GrantContentHash(g)

	now := time.Now()
	g.EmbeddedAt = &now
	g.EmbeddingModel = "m"
	assert.Equal(t, before, GrantContentHash(g))

	g.Description = "Innovation im Mittelstand"
	assert.NotEqual(t, before, GrantContentHash(g))
}
