package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PriorityType places an eligible advertiser into the primary or the fallback tier
type PriorityType string

const (
	PriorityTypePrimary  PriorityType = "primary"
	PriorityTypeFallback PriorityType = "fallback"
)

// String returns the string representation of the priority type
func (p PriorityType) String() string {
	return string(p)
}

// Valid checks if the priority type is valid
func (p PriorityType) Valid() bool {
	switch p {
	case PriorityTypePrimary, PriorityTypeFallback:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PriorityType
func (p *PriorityType) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*p = PriorityType(v)
	case []byte:
		*p = PriorityType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PriorityType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PriorityType.
// An empty value is stored as NULL and resolved to primary on read.
func (p PriorityType) Value() (driver.Value, error) {
	if p == "" {
		return nil, nil
	}
	if !p.Valid() {
		return nil, fmt.Errorf("invalid PriorityType: %s", p)
	}
	return string(p), nil
}

// RoutingTerms are the routing parameters shared by affiliate rules and global settings
type RoutingTerms struct {
	Weight         *int           `json:"weight,omitempty"`
	PriorityType   PriorityType   `gorm:"size:16" json:"priority_type,omitempty"`
	IsActive       *bool          `gorm:"default:true" json:"is_active"`
	DailyCap       *int           `json:"daily_cap,omitempty"`
	HourlyCap      *int           `json:"hourly_cap,omitempty"`
	StartTime      *string        `gorm:"size:8" json:"start_time,omitempty"`
	EndTime        *string        `gorm:"size:8" json:"end_time,omitempty"`
	WeeklySchedule WeeklySchedule `gorm:"type:jsonb" json:"weekly_schedule,omitempty"`
	Timezone       *string        `gorm:"size:64" json:"timezone,omitempty"`
}

// DistributionRule routes leads of one affiliate and country to an advertiser
type DistributionRule struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	AffiliateID  uint        `gorm:"not null;index:idx_distribution_rules_scope,priority:1" json:"affiliate_id"`
	CountryCode  string      `gorm:"size:2;not null;index:idx_distribution_rules_scope,priority:2" json:"country_code"`
	AdvertiserID uint        `gorm:"not null;index:idx_distribution_rules_advertiser_id" json:"advertiser_id"`
	Advertiser   *Advertiser `gorm:"foreignKey:AdvertiserID;references:ID" json:"advertiser,omitempty"`

	RoutingTerms `gorm:"embedded"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DistributionRule) TableName() string {
	return "distribution_rules"
}

// DistributionRuleFilter represents filter criteria for distribution rule queries
type DistributionRuleFilter struct {
	ID           *uint
	AffiliateID  *uint
	CountryCode  *string
	AdvertiserID *uint
	IsActive     *bool
}

// DistributionSetting is the global routing setting of an advertiser, used for leads
// that carry no affiliate.
type DistributionSetting struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	AdvertiserID uint        `gorm:"not null;uniqueIndex:uk_distribution_settings_advertiser_id" json:"advertiser_id"`
	Advertiser   *Advertiser `gorm:"foreignKey:AdvertiserID;references:ID" json:"advertiser,omitempty"`

	// Allow-lists; empty means unrestricted
	Countries    pq.StringArray `gorm:"type:text[]" json:"countries,omitempty"`
	AffiliateIDs pq.Int64Array  `gorm:"type:bigint[]" json:"affiliate_ids,omitempty"`

	RoutingTerms `gorm:"embedded"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DistributionSetting) TableName() string {
	return "distribution_settings"
}

// DistributionSettingFilter represents filter criteria for distribution setting queries
type DistributionSettingFilter struct {
	ID           *uint
	AdvertiserID *uint
	IsActive     *bool
}
