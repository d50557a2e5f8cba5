package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GrantType string

const (
	GrantTypeFederal   GrantType = "federal"
	GrantTypeState     GrantType = "state"
	GrantTypeEU        GrantType = "eu"
	GrantTypeMunicipal GrantType = "municipal"
)

func (t GrantType) Valid() bool {
	switch t {
	case GrantTypeFederal, GrantTypeState, GrantTypeEU, GrantTypeMunicipal:
		return true
	}
	return false
}

type GrantCategory string

const (
	CategoryInnovation     GrantCategory = "innovation"
	CategoryDigitalization GrantCategory = "digitalization"
	CategoryGreenTech      GrantCategory = "green_tech"
	CategoryExport         GrantCategory = "export"
	CategoryTraining       GrantCategory = "training"
	CategoryRegional       GrantCategory = "regional"
)

func (c GrantCategory) Valid() bool {
	switch c {
	case CategoryInnovation, CategoryDigitalization, CategoryGreenTech, CategoryExport, CategoryTraining, CategoryRegional:
		return true
	}
	return false
}

// Grant is a funding program. The same record is mirrored into the vector
// index, keyed by ExternalID.
type Grant struct {
	ID                        uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID                string                      `gorm:"size:512;not null;uniqueIndex" json:"external_id"`
	Name                      string                      `gorm:"size:512;not null" json:"name"`
	Funder                    string                      `gorm:"size:255" json:"funder"`
	Type                      GrantType                   `gorm:"size:16;not null;index" json:"type"`
	Category                  GrantCategory               `gorm:"size:32;not null;index" json:"category"`
	MaxFunding                float64                     `gorm:"not null" json:"max_funding"`
	MinFunding                *float64                    `json:"min_funding"`
	MinOwnContributionPercent *float64                    `json:"min_own_contribution_percent"`
	Description               string                      `gorm:"type:text;not null" json:"description"`
	Guidelines                string                      `gorm:"type:text" json:"guidelines"`
	Eligibility               datatypes.JSONSlice[string] `json:"eligibility"`
	Requirements              datatypes.JSONSlice[string] `json:"requirements"`
	ApplicationProcess        string                      `gorm:"type:text" json:"application_process"`
	DurationMonths            *int                        `json:"duration_months"`
	Deadline                  *time.Time                  `gorm:"index" json:"deadline"`
	IsContinuous              bool                        `gorm:"not null" json:"is_continuous"`
	HistoricalSuccessRate     *float64                    `json:"historical_success_rate"`
	WebsiteURL                string                      `gorm:"size:1024" json:"website_url"`
	Region                    string                      `gorm:"size:128" json:"region"`
	ContentHash               string                      `gorm:"size:64" json:"-"`
	EmbeddedAt                *time.Time                  `json:"embedded_at"`
	EmbeddingModel            string                      `gorm:"size:128" json:"-"`
	CreatedAt                 time.Time                   `json:"created_at"`
	UpdatedAt                 time.Time                   `json:"updated_at"`
}

func (g *Grant) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the deadline lies before now. Continuous programs never expire.
func (g *Grant) Expired(now time.Time) bool {
	if g.IsContinuous || g.Deadline == nil {
		return false
	}
	return g.Deadline.Before(now)
}
