package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	StatusDraft      ApplicationStatus = "draft"
	StatusGenerating ApplicationStatus = "generating"
	StatusInProgress ApplicationStatus = "in_progress"
	StatusSubmitted  ApplicationStatus = "submitted"
	StatusApproved   ApplicationStatus = "approved"
	StatusRejected   ApplicationStatus = "rejected"
)

var statusTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:      {StatusGenerating},
	StatusGenerating: {StatusInProgress, StatusDraft},
	StatusInProgress: {StatusGenerating, StatusSubmitted},
	StatusSubmitted:  {StatusApproved, StatusRejected},
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusGenerating, StatusInProgress, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal workflow step.
func (s ApplicationStatus) CanTransition(next ApplicationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EditableStatuses are the states in which the owner may change project data.
var EditableStatuses = []ApplicationStatus{StatusDraft, StatusInProgress}

// Editable is true while the owner may still change project data.
func (s ApplicationStatus) Editable() bool {
	return s == StatusDraft || s == StatusInProgress
}

type Application struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	GrantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"grant_id"`
	Grant    *Grant    `gorm:"foreignKey:GrantID" json:"grant,omitempty"`
	User     *User     `gorm:"foreignKey:UserID" json:"-"`

	ProjectTitle       string                      `gorm:"size:512;not null" json:"project_title"`
	ProjectDescription string                      `gorm:"type:text;not null" json:"project_description"`
	ProjectGoals       datatypes.JSONSlice[string] `json:"project_goals"`
	ProjectInnovation  string                      `gorm:"type:text" json:"project_innovation"`
	ProjectTechnology  string                      `gorm:"type:text" json:"project_technology"`
	TargetAudience     string                      `gorm:"type:text" json:"target_audience"`
	MarketAnalysis     string                      `gorm:"type:text" json:"market_analysis"`
	BusinessModel      string                      `gorm:"type:text" json:"business_model"`
	TimelineMonths     int                         `gorm:"not null" json:"timeline_months"`

	TotalBudget      float64        `gorm:"not null" json:"total_budget"`
	RequestedFunding float64        `gorm:"not null" json:"requested_funding"`
	OwnContribution  float64        `gorm:"not null" json:"own_contribution"`
	BudgetBreakdown  datatypes.JSON `json:"budget_breakdown,omitempty"`

	Status               ApplicationStatus `gorm:"size:16;not null;index" json:"status"`
	CompletionPercentage int               `gorm:"not null" json:"completion_percentage"`
	GenerationError      string            `gorm:"type:text" json:"generation_error,omitempty"`

	SubmittedAt      *time.Time `json:"submitted_at"`
	TrackingNumber   string     `gorm:"size:64" json:"tracking_number,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at"`
	RejectedAt       *time.Time `json:"rejected_at"`
	ApprovedFunding  *float64   `json:"approved_funding"`
	CommissionRate   *float64   `json:"commission_rate"`
	CommissionAmount *float64   `json:"commission_amount"`

	Sections  []ApplicationSection `gorm:"foreignKey:ApplicationID" json:"sections,omitempty"`
	Documents []Document           `gorm:"foreignKey:ApplicationID" json:"documents,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusDraft
	}
	return nil
}
