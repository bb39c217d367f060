package models

import "time"

// ConversionCounter is an additive per-advertiser aggregate
type ConversionCounter struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AdvertiserID uint      `gorm:"not null;uniqueIndex:uk_conversion_counters_advertiser_id" json:"advertiser_id"`
	Leads        int64     `gorm:"not null;default:0" json:"leads"`
	FailedLeads  int64     `gorm:"not null;default:0" json:"failed_leads"`
	Conversion   int64     `gorm:"not null;default:0" json:"conversion"`
	UpdatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ConversionCounter) TableName() string {
	return "conversion_counters"
}

// ConversionCounterFilter represents filter criteria for counter queries
type ConversionCounterFilter struct {
	AdvertiserID *uint
}
