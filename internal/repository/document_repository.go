package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"foerderscout/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// NextVersion returns the version number the next document of this kind should carry.
func (r *DocumentRepository) NextVersion(applicationID uuid.UUID, docType model.DocumentType, format model.DocumentFormat) (int, error) {
	var current int
	err := r.db.Model(&model.Document{}).
		Select("COALESCE(MAX(version), 0)").
		Where("application_id = ? AND document_type = ? AND format = ?", applicationID, docType, format).
		Scan(&current).Error
	if err != nil {
		return 0, fmt.Errorf("query document version failed: %w", err)
	}
	return current + 1, nil
}

// CreateLatest stores doc as the latest of its type and format and demotes older rows.
func (r *DocumentRepository) CreateLatest(doc *model.Document) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Document{}).
			Where("application_id = ? AND document_type = ? AND format = ? AND is_latest = ?",
				doc.ApplicationID, doc.DocumentType, doc.Format, true).
			Update("is_latest", false).Error; err != nil {
			return fmt.Errorf("demote previous documents failed: %w", err)
		}
		doc.IsLatest = true
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document failed: %w", err)
		}
		return nil
	})
}

func (r *DocumentRepository) GetByID(id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByApplicationID(applicationID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("application_id = ?", applicationID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// Delete removes doc. When doc was the latest of its type and format, the
// highest remaining version becomes latest.
func (r *DocumentRepository) Delete(doc *model.Document) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", doc.ID).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete document failed: %w", err)
		}
		if !doc.IsLatest {
			return nil
		}

		var previous model.Document
		err := tx.Where("application_id = ? AND document_type = ? AND format = ?",
			doc.ApplicationID, doc.DocumentType, doc.Format).
			Order("version DESC").
			First(&previous).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query previous document failed: %w", err)
		}
		if err := tx.Model(&model.Document{}).Where("id = ?", previous.ID).Update("is_latest", true).Error; err != nil {
			return fmt.Errorf("promote previous document failed: %w", err)
		}
		return nil
	})
}
