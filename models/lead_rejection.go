package models

import "time"

// LeadRejection remembers that an advertiser declined (or errored on) a lead with this email.
// Rows never expire.
type LeadRejection struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"size:255;not null;uniqueIndex:uk_lead_rejections_email_advertiser,priority:1" json:"email"`
	AdvertiserID   uint      `gorm:"not null;uniqueIndex:uk_lead_rejections_email_advertiser,priority:2" json:"advertiser_id"`
	Reason         *string   `gorm:"type:text" json:"reason,omitempty"`
	RejectionCount int       `gorm:"not null;default:1" json:"rejection_count"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (LeadRejection) TableName() string {
	return "lead_rejections"
}

// LeadRejectionFilter represents filter criteria for rejection queries
type LeadRejectionFilter struct {
	Email        *string
	AdvertiserID *uint
}
