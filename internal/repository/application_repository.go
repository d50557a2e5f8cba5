package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"foerderscout/internal/model"
)

type ApplicationStats struct {
	Total         int64
	Approved      int64
	Rejected      int64
	FundingSecure float64
}

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(app *model.Application) error {
	if err := r.db.Omit("Grant", "User", "Sections", "Documents").Create(app).Error; err != nil {
		return fmt.Errorf("create application failed: %w", err)
	}
	return nil
}

// GetByIDAndUserID loads the application with its grant, sections and documents.
func (r *ApplicationRepository) GetByIDAndUserID(id, userID uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := r.db.
		Preload("Grant").
		Preload("Sections").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application failed: %w", err)
	}
	return &app, nil
}

// GetByID loads the application with grant, owner and sections. Used by background jobs.
func (r *ApplicationRepository) GetByID(id uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := r.db.
		Preload("Grant").
		Preload("User").
		Preload("Sections").
		Where("id = ?", id).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application by id failed: %w", err)
	}
	return &app, nil
}

func (r *ApplicationRepository) ListByUserID(userID uuid.UUID, status model.ApplicationStatus, limit, offset int) ([]model.Application, int64, error) {
	query := r.db.Model(&model.Application{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count applications failed: %w", err)
	}

	var apps []model.Application
	if err := query.Preload("Grant").Order("updated_at DESC").Limit(limit).Offset(offset).Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("list applications failed: %w", err)
	}
	return apps, total, nil
}

// projectColumns are the owner-editable columns written by Update.
var projectColumns = []string{
	"project_title", "project_description", "project_goals", "project_innovation",
	"project_technology", "target_audience", "market_analysis", "business_model",
	"timeline_months", "total_budget", "requested_funding", "own_contribution",
	"budget_breakdown", "updated_at",
}

// Update writes the project and budget columns while the application is
// still editable. It reports whether a row changed; false means the status
// moved on since app was loaded.
func (r *ApplicationRepository) Update(app *model.Application) (bool, error) {
	res := r.db.Model(app).
		Select(projectColumns).
		Where("status IN ?", model.EditableStatuses).
		Updates(app)
	if res.Error != nil {
		return false, fmt.Errorf("update application failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpdateFields writes the given columns.
func (r *ApplicationRepository) UpdateFields(id uuid.UUID, fields map[string]interface{}) error {
	if err := r.db.Model(&model.Application{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update application fields failed: %w", err)
	}
	return nil
}

// TransitionStatus moves id from one status to another only if it is still in from.
// It reports whether a row changed.
func (r *ApplicationRepository) TransitionStatus(id uuid.UUID, from, to model.ApplicationStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.Model(&model.Application{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition application status failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the application with its sections and document rows.
func (r *ApplicationRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("application_id = ?", id).Delete(&model.ApplicationSection{}).Error; err != nil {
			return fmt.Errorf("delete application sections failed: %w", err)
		}
		if err := tx.Where("application_id = ?", id).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete application documents failed: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Application{}).Error; err != nil {
			return fmt.Errorf("delete application failed: %w", err)
		}
		return nil
	})
}

func (r *ApplicationRepository) StatsByUserID(userID uuid.UUID) (*ApplicationStats, error) {
	var row struct {
		Total         int64
		Approved      int64
		Rejected      int64
		FundingSecure float64
	}
	err := r.db.Model(&model.Application{}).
		Select(
			"COUNT(*) AS total, "+
				"COUNT(*) FILTER (WHERE status = ?) AS approved, "+
				"COUNT(*) FILTER (WHERE status = ?) AS rejected, "+
				"COALESCE(SUM(approved_funding) FILTER (WHERE status = ?), 0) AS funding_secure",
			model.StatusApproved, model.StatusRejected, model.StatusApproved,
		).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("query application stats failed: %w", err)
	}
	return &ApplicationStats{
		Total:         row.Total,
		Approved:      row.Approved,
		Rejected:      row.Rejected,
		FundingSecure: row.FundingSecure,
	}, nil
}
