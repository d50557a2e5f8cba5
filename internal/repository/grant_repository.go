package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"foerderscout/internal/model"
)

type GrantFilter struct {
	Type     model.GrantType
	Category model.GrantCategory
	Limit    int
	Offset   int
}

type GrantRepository struct {
	db *gorm.DB
}

func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

func (r *GrantRepository) Create(grant *model.Grant) error {
	if err := r.db.Create(grant).Error; err != nil {
		return fmt.Errorf("create grant failed: %w", err)
	}
	return nil
}

func (r *GrantRepository) Update(grant *model.Grant) error {
	if err := r.db.Save(grant).Error; err != nil {
		return fmt.Errorf("update grant failed: %w", err)
	}
	return nil
}

func (r *GrantRepository) List(filter GrantFilter) ([]model.Grant, int64, error) {
	query := r.db.Model(&model.Grant{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count grants failed: %w", err)
	}

	var grants []model.Grant
	if err := query.Order("name ASC").Limit(filter.Limit).Offset(filter.Offset).Find(&grants).Error; err != nil {
		return nil, 0, fmt.Errorf("list grants failed: %w", err)
	}
	return grants, total, nil
}

func (r *GrantRepository) GetByID(id uuid.UUID) (*model.Grant, error) {
	var grant model.Grant
	if err := r.db.Where("id = ?", id).First(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query grant by id failed: %w", err)
	}
	return &grant, nil
}

func (r *GrantRepository) GetByExternalID(externalID string) (*model.Grant, error) {
	var grant model.Grant
	if err := r.db.Where("external_id = ?", externalID).First(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query grant by external id failed: %w", err)
	}
	return &grant, nil
}

func (r *GrantRepository) ListByExternalIDs(externalIDs []string) ([]model.Grant, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var grants []model.Grant
	if err := r.db.Where("external_id IN ?", externalIDs).Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("list grants by external ids failed: %w", err)
	}
	return grants, nil
}

func (r *GrantRepository) ListByIDs(ids []uuid.UUID) ([]model.Grant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var grants []model.Grant
	if err := r.db.Where("id IN ?", ids).Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("list grants by ids failed: %w", err)
	}
	return grants, nil
}

// ListExpired returns non-continuous grants whose deadline is before now.
func (r *GrantRepository) ListExpired(now time.Time) ([]model.Grant, error) {
	var grants []model.Grant
	if err := r.db.
		Where("is_continuous = ? AND deadline IS NOT NULL AND deadline < ?", false, now).
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("list expired grants failed: %w", err)
	}
	return grants, nil
}

func (r *GrantRepository) MarkEmbedded(ids []uuid.UUID, embeddingModel string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.Model(&model.Grant{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"embedded_at": at, "embedding_model": embeddingModel}).Error; err != nil {
		return fmt.Errorf("mark grants embedded failed: %w", err)
	}
	return nil
}

func (r *GrantRepository) ClearEmbedded(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.Model(&model.Grant{}).
		Where("id IN ?", ids).
		Update("embedded_at", nil).Error; err != nil {
		return fmt.Errorf("clear grant embedding failed: %w", err)
	}
	return nil
}
