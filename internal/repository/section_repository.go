package repository

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foerderscout/internal/model"
)

type SectionRepository struct {
	db *gorm.DB
}

func NewSectionRepository(db *gorm.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// Upsert inserts the section or replaces content for an existing (application, key) pair.
func (r *SectionRepository) Upsert(section *model.ApplicationSection) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}, {Name: "section_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "model", "generated_at", "updated_at"}),
	}).Create(section).Error
	if err != nil {
		return fmt.Errorf("upsert application section failed: %w", err)
	}
	return nil
}

func (r *SectionRepository) ListByApplicationID(applicationID uuid.UUID) ([]model.ApplicationSection, error) {
	var sections []model.ApplicationSection
	if err := r.db.Where("application_id = ?", applicationID).Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("list application sections failed: %w", err)
	}
	return sections, nil
}
