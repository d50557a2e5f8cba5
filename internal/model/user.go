package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionTier string

const (
	TierBasic      SubscriptionTier = "tier_1"
	TierHybrid     SubscriptionTier = "tier_2"
	TierEnterprise SubscriptionTier = "tier_3"
)

func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierBasic, TierHybrid, TierEnterprise:
		return true
	}
	return false
}

type User struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string           `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash     string           `gorm:"size:255;not null" json:"-"`
	FullName         string           `gorm:"size:255" json:"full_name"`
	CompanyName      string           `gorm:"size:255;not null" json:"company_name"`
	CompanySize      *int             `json:"company_size"`
	Industry         string           `gorm:"size:128" json:"industry"`
	AnnualRevenue    *int64           `json:"annual_revenue"`
	Location         string           `gorm:"size:255" json:"location"`
	TechnologyStack  string           `gorm:"size:512" json:"technology_stack"`
	SubscriptionTier SubscriptionTier `gorm:"size:16;not null" json:"subscription_tier"`
	IsActive         bool             `gorm:"not null" json:"is_active"`
	IsVerified       bool             `gorm:"not null" json:"is_verified"`
	LastLogin        *time.Time       `json:"last_login"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = TierBasic
	}
	return nil
}
