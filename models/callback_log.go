package models

import (
	"time"

	"github.com/google/uuid"
)

// CallbackLog records every outbound affiliate callback, successful or not
type CallbackLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	LeadUUID     uuid.UUID `gorm:"type:uuid;not null;index:idx_callback_logs_lead_uuid" json:"lead_uuid"`
	AffiliateID  uint      `gorm:"not null;index:idx_callback_logs_affiliate_id" json:"affiliate_id"`
	AdvertiserID *uint     `json:"advertiser_id,omitempty"`
	URL          string    `gorm:"type:text;not null" json:"url"`
	Payload      string    `gorm:"type:text;not null" json:"payload"`
	StatusCode   *int      `json:"status_code,omitempty"`
	Response     *string   `gorm:"type:text" json:"response,omitempty"`
	Success      bool      `gorm:"not null;default:false" json:"success"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_callback_logs_created_at" json:"created_at"`
}

func (CallbackLog) TableName() string {
	return "callback_logs"
}

// CallbackLogFilter represents filter criteria for callback log queries
type CallbackLogFilter struct {
	LeadUUID    *uuid.UUID
	AffiliateID *uint
	Success     *bool
}
