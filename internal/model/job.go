package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobGenerateApplication JobType = "generate_application"
	JobEmbedGrants         JobType = "embed_grants"
	JobExportDocument      JobType = "export_document"
	JobCleanupExpired      JobType = "cleanup_expired_grants"
)

// Job is the envelope published on the jobs queue.
type Job struct {
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type GenerateApplicationPayload struct {
	ApplicationID  uuid.UUID         `json:"application_id"`
	SectionKey     string            `json:"section_key,omitempty"`
	PreviousStatus ApplicationStatus `json:"previous_status"`
}

type EmbedGrantsPayload struct {
	GrantIDs []uuid.UUID `json:"grant_ids"`
}

type ExportDocumentPayload struct {
	ApplicationID uuid.UUID      `json:"application_id"`
	Format        DocumentFormat `json:"format"`
}
