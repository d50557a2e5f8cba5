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
	"foerderscout/internal/platform/qdrant"
)

func newGrantServiceFixture(t *testing.T) (*GrantService, *memDB, *fakeIndex, *fakeEmbedder, *fakeCache) {
	t.Helper()
	db := newMemDB()
	for _, g := range []model.Grant{
		{ID: uuid.New(), ExternalID: "zim", Name: "ZIM", Type: model.GrantTypeFederal, MaxFunding: 500000, IsContinuous: true},
		{ID: uuid.New(), ExternalID: "go-digital", Name: "go-digital", Type: model.GrantTypeFederal, MaxFunding: 30000},
	} {
		db.grants[g.ID] = g
	}
	index := &fakeIndex{hits: []qdrant.Hit{
		{ExternalID: "go-digital", Score: 0.9},
		{ExternalID: "zim", Score: 0.8},
		{ExternalID: "deleted-meanwhile", Score: 0.7},
	}}
	embedder := &fakeEmbedder{}
	cache := newFakeCache()
	svc := NewGrantService(fakeGrants{db}, index, embedder, cache, zaptest.NewLogger(t))
	svc.now = fixedClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	return svc, db, index, embedder, cache
}

func TestGrantService_Search(t *testing.T) {
	svc, _, index, embedder, cache := newGrantServiceFixture(t)
	budget := 100000.0
	input := GrantSearchInput{
		ProjectDescription: "Digitalisierung der Fertigung",
		Budget:             &budget,
		Type:               model.GrantTypeFederal,
	}

	matches, err := svc.Search(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "zim", matches[0].Grant.ExternalID)
	assert.InDelta(t, 0.8, matches[0].Similarity, 1e-9)

	assert.Equal(t, 50, index.lastLimit)
	assert.Equal(t, map[string]string{"type": "federal"}, index.lastFilters)
	assert.Equal(t, "Digitalisierung der Fertigung Budget: 100000 EUR", embedder.lastText)
	assert.Len(t, cache.entries, 1)

	again, err := svc.Search(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.calls)
	require.Len(t, again, 1)
	assert.Equal(t, "zim", again[0].Grant.ExternalID)
}

func TestGrantService_SearchValidation(t *testing.T) {
	svc, _, _, embedder, _ := newGrantServiceFixture(t)

	_, err := svc.Search(context.Background(), GrantSearchInput{ProjectDescription: "  "})
	assert.ErrorIs(t, err, ErrEmptySearchQuery)

	_, err = svc.Search(context.Background(), GrantSearchInput{ProjectDescription: "KI", Type: "regional"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, embedder.calls)
}

func TestGrantService_SearchLimitIsCapped(t *testing.T) {
	svc, _, index, _, _ := newGrantServiceFixture(t)

	_, err := svc.Search(context.Background(), GrantSearchInput{ProjectDescription: "KI", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, index.lastLimit)
}

func TestGrantService_Get(t *testing.T) {
	svc, db, _, _, _ := newGrantServiceFixture(t)

	byExternal, err := svc.Get("zim")
	require.NoError(t, err)
	assert.Equal(t, "ZIM", byExternal.Name)

	byID, err := svc.Get(byExternal.ID.String())
	require.NoError(t, err)
	assert.Equal(t, db.grants[byExternal.ID].ExternalID, byID.ExternalID)

	_, err = svc.Get(uuid.NewString())
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestGrantService_List(t *testing.T) {
	svc, _, _, _, _ := newGrantServiceFixture(t)

	page, err := svc.List(ListGrantsInput{Type: model.GrantTypeFederal, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 100, page.Limit)

	_, err = svc.List(ListGrantsInput{Category: "space"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
