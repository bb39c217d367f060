package models

import (
	"time"

	"github.com/google/uuid"
)

// Affiliate supplies leads. In test mode every lead it submits is routed to the
// synthetic test advertiser.
type Affiliate struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_affiliates_uuid" json:"uuid"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	TestMode    *bool     `gorm:"default:false" json:"test_mode"`
	CallbackURL *string   `gorm:"type:text" json:"callback_url,omitempty"`
	IsActive    *bool     `gorm:"default:true;index:idx_affiliates_is_active" json:"is_active"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Affiliate) TableName() string {
	return "affiliates"
}

// AffiliateFilter represents filter criteria for affiliate queries
type AffiliateFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Name     *string
	TestMode *bool
	IsActive *bool
}
