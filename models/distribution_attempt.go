package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the outcome of a single adapter call
type AttemptStatus string

const (
	AttemptStatusSent   AttemptStatus = "sent"
	AttemptStatusFailed AttemptStatus = "failed"
)

// String returns the string representation of the status
func (s AttemptStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptStatusSent, AttemptStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AttemptStatus
func (s *AttemptStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AttemptStatus(v)
	case []byte:
		*s = AttemptStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AttemptStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AttemptStatus
func (s AttemptStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AttemptStatus: %s", s)
	}
	return string(s), nil
}

// DistributionAttempt is an append-only record of one adapter call.
// LeadID stays NULL for test-mode leads until they are accepted and persisted;
// LeadUUID is always set. AffiliateID and CountryCode copy the routing scope so
// cap counting can be done without joins.
type DistributionAttempt struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	LeadID         *uint         `gorm:"index:idx_distribution_attempts_lead_id" json:"lead_id,omitempty"`
	LeadUUID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_distribution_attempts_lead_uuid" json:"lead_uuid"`
	AdvertiserID   uint          `gorm:"not null;index:idx_distribution_attempts_cap,priority:1" json:"advertiser_id"`
	AffiliateID    *uint         `gorm:"index:idx_distribution_attempts_affiliate_id" json:"affiliate_id,omitempty"`
	CountryCode    *string       `gorm:"size:2" json:"country_code,omitempty"`
	Tier           PriorityType  `gorm:"size:16" json:"tier,omitempty"`
	Status         AttemptStatus `gorm:"size:16;not null;index:idx_distribution_attempts_cap,priority:2" json:"status"`
	Response       *string       `gorm:"type:text" json:"response,omitempty"`
	ExternalLeadID *string       `gorm:"size:255;index:idx_distribution_attempts_external_lead_id" json:"external_lead_id,omitempty"`
	AutologinURL   *string       `gorm:"type:text" json:"autologin_url,omitempty"`
	ErrorMessage   *string       `gorm:"type:text" json:"error_message,omitempty"`
	DurationMs     int64         `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt      time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_distribution_attempts_cap,priority:3" json:"created_at"`
	LastPolledAt   *time.Time    `json:"last_polled_at,omitempty"`
}

func (DistributionAttempt) TableName() string {
	return "distribution_attempts"
}

// CapScope identifies the attempts that count against a cap. In affiliate mode the
// scope is affiliate+country+advertiser, in global mode advertiser only.
type CapScope struct {
	AdvertiserID uint
	AffiliateID  *uint
	CountryCode  *string
}

// Key renders the scope as a stable string usable as a lock or cache key
func (s CapScope) Key() string {
	key := fmt.Sprintf("adv:%d", s.AdvertiserID)
	if s.AffiliateID != nil {
		key += fmt.Sprintf(":aff:%d", *s.AffiliateID)
	}
	if s.CountryCode != nil {
		key += ":cc:" + *s.CountryCode
	}
	return key
}

// DistributionAttemptFilter represents filter criteria for attempt queries
type DistributionAttemptFilter struct {
	ID            *uint
	LeadID        *uint
	LeadUUID      *uuid.UUID
	AdvertiserID  *uint
	Status        *AttemptStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
