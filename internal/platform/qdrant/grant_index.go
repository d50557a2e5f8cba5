package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"foerderscout/internal/config"
	"foerderscout/internal/model"
)

// Hit is one vector search result.
type Hit struct {
	ExternalID string
	GrantID    string
	Score      float64
}

// GrantIndex mirrors grants into a Qdrant collection for semantic search.
type GrantIndex struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

func New(ctx context.Context, cfg config.QdrantConfig, vectorSize int) (*GrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client failed: %w", err)
	}

	idx := &GrantIndex{
		client:     client,
		collection: cfg.Collection,
		vectorSize: uint64(vectorSize),
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := idx.EnsureCollection(checkCtx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// PointID maps an external grant id to its stable point id.
func PointID(externalID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(externalID)).String()
}

func (i *GrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection failed: %w", err)
	}
	if exists {
		return nil
	}
	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     i.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection failed: %w", err)
	}
	return nil
}

func (i *GrantIndex) Upsert(ctx context.Context, grant *model.Grant, vector []float32) error {
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(PointID(grant.ExternalID)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(grantPayload(grant)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert grant %s failed: %w", grant.ExternalID, err)
	}
	return nil
}

// Search returns hits above threshold. filters are exact keyword matches on payload fields.
func (i *GrantIndex) Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string]string) ([]Hit, error) {
	req := &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for field, value := range filters {
			conditions = append(conditions, qdrant.NewMatch(field, value))
		}
		req.Filter = &qdrant.Filter{Must: conditions}
	}

	points, err := i.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query qdrant failed: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, Hit{
			ExternalID: payload["external_id"].GetStringValue(),
			GrantID:    payload["grant_id"].GetStringValue(),
			Score:      float64(p.GetScore()),
		})
	}
	return hits, nil
}

func (i *GrantIndex) Delete(ctx context.Context, externalIDs ...string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, 0, len(externalIDs))
	for _, ext := range externalIDs {
		ids = append(ids, qdrant.NewID(PointID(ext)))
	}
	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("delete grants from qdrant failed: %w", err)
	}
	return nil
}

func (i *GrantIndex) Health(ctx context.Context) error {
	if _, err := i.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (i *GrantIndex) Close() error {
	return i.client.Close()
}

func grantPayload(g *model.Grant) map[string]any {
	payload := map[string]any{
		"grant_id":      g.ID.String(),
		"external_id":   g.ExternalID,
		"name":          g.Name,
		"type":          string(g.Type),
		"category":      string(g.Category),
		"max_funding":   g.MaxFunding,
		"is_continuous": g.IsContinuous,
		"region":        g.Region,
	}
	if g.Deadline != nil {
		payload["deadline"] = g.Deadline.UTC().Format(time.RFC3339)
	}
	if g.HistoricalSuccessRate != nil {
		payload["historical_success_rate"] = *g.HistoricalSuccessRate
	}
	eligibility := make([]any, 0, len(g.Eligibility))
	for _, e := range g.Eligibility {
		eligibility = append(eligibility, e)
	}
	payload["eligibility"] = eligibility
	return payload
}
