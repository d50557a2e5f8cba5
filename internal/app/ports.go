package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"foerderscout/internal/ai"
	"foerderscout/internal/model"
	"foerderscout/internal/platform/qdrant"
	"foerderscout/internal/repository"
)

type UserStore interface {
	Create(user *model.User) error
	GetByEmail(email string) (*model.User, error)
	GetByID(id uuid.UUID) (*model.User, error)
	Update(user *model.User) error
}

type GrantStore interface {
	Create(grant *model.Grant) error
	Update(grant *model.Grant) error
	List(filter repository.GrantFilter) ([]model.Grant, int64, error)
	GetByID(id uuid.UUID) (*model.Grant, error)
	GetByExternalID(externalID string) (*model.Grant, error)
	ListByExternalIDs(externalIDs []string) ([]model.Grant, error)
	ListByIDs(ids []uuid.UUID) ([]model.Grant, error)
	ListExpired(now time.Time) ([]model.Grant, error)
	MarkEmbedded(ids []uuid.UUID, embeddingModel string, at time.Time) error
	ClearEmbedded(ids []uuid.UUID) error
}

type ApplicationStore interface {
	Create(app *model.Application) error
	GetByIDAndUserID(id, userID uuid.UUID) (*model.Application, error)
	GetByID(id uuid.UUID) (*model.Application, error)
	ListByUserID(userID uuid.UUID, status model.ApplicationStatus, limit, offset int) ([]model.Application, int64, error)
	Update(app *model.Application) (bool, error)
	UpdateFields(id uuid.UUID, fields map[string]interface{}) error
	TransitionStatus(id uuid.UUID, from, to model.ApplicationStatus, fields map[string]interface{}) (bool, error)
	Delete(id uuid.UUID) error
	StatsByUserID(userID uuid.UUID) (*repository.ApplicationStats, error)
}

type SectionStore interface {
	Upsert(section *model.ApplicationSection) error
	ListByApplicationID(applicationID uuid.UUID) ([]model.ApplicationSection, error)
}

type DocumentStore interface {
	NextVersion(applicationID uuid.UUID, docType model.DocumentType, format model.DocumentFormat) (int, error)
	CreateLatest(doc *model.Document) error
	GetByID(id uuid.UUID) (*model.Document, error)
	ListByApplicationID(applicationID uuid.UUID) ([]model.Document, error)
	Delete(doc *model.Document) error
}

// JobQueue publishes background jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType model.JobType, payload any) error
}

type GrantIndex interface {
	Upsert(ctx context.Context, grant *model.Grant, vector []float32) error
	Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string]string) ([]qdrant.Hit, error)
	Delete(ctx context.Context, externalIDs ...string) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbeddingModel() string
}

type LLM interface {
	Complete(ctx context.Context, messages []ai.ChatMessage, opts ai.CompletionOptions) (string, error)
	Model() string
}

type SearchCache interface {
	Get(ctx context.Context, fingerprint string, out interface{}) (bool, error)
	Set(ctx context.Context, fingerprint string, value interface{}) error
	Invalidate(ctx context.Context) error
}
