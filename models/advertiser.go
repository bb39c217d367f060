package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Advertiser integration type tags. Each tag selects one protocol adapter.
const (
	AdvertiserTypeTrackbox   = "trackbox"
	AdvertiserTypeIrev       = "irev"
	AdvertiserTypeAffilka    = "affilka"
	AdvertiserTypeCellxpert  = "cellxpert"
	AdvertiserTypeSignet     = "signet"
	AdvertiserTypeLeadbridge = "leadbridge"
	AdvertiserTypePushlead   = "pushlead"
	AdvertiserTypeCustom     = "custom"
	AdvertiserTypeTest       = "test"
)

// TestAdvertiserName is the display name of the synthetic always-accepting advertiser
const TestAdvertiserName = "Test Advertiser"

// Advertiser is a third-party lead intake system
type Advertiser struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_advertisers_uuid" json:"uuid"`
	Name      string            `gorm:"size:255;not null" json:"name"`
	Type      string            `gorm:"size:64;not null;index:idx_advertisers_type" json:"type"`
	BaseURL   string            `gorm:"type:text;not null" json:"base_url"`
	APIKey    *string           `gorm:"type:text" json:"-"`
	APISecret *string           `gorm:"type:text" json:"-"`
	Config    datatypes.JSONMap `gorm:"type:jsonb" json:"config,omitempty"`
	IsActive  *bool             `gorm:"default:true;index:idx_advertisers_is_active" json:"is_active"`
	DailyCap  *int              `json:"daily_cap,omitempty"`
	HourlyCap *int              `json:"hourly_cap,omitempty"`
	CreatedAt time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Advertiser) TableName() string {
	return "advertisers"
}

// IsSynthetic reports whether the advertiser is the in-memory test advertiser
func (a *Advertiser) IsSynthetic() bool {
	return a.ID == 0 && a.Type == AdvertiserTypeTest
}

// ConfigString returns a config value as a trimmed string, or "" when absent
func (a *Advertiser) ConfigString(key string) string {
	if a.Config == nil {
		return ""
	}
	v, ok := a.Config[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Key returns the API key or "" when unset
func (a *Advertiser) Key() string {
	if a.APIKey == nil {
		return ""
	}
	return *a.APIKey
}

// Secret returns the API secret or "" when unset
func (a *Advertiser) Secret() string {
	if a.APISecret == nil {
		return ""
	}
	return *a.APISecret
}

// NewTestAdvertiser builds the synthetic advertiser used for test-mode affiliates.
// It is never persisted.
func NewTestAdvertiser() *Advertiser {
	active := true
	return &Advertiser{
		Name:     TestAdvertiserName,
		Type:     AdvertiserTypeTest,
		IsActive: &active,
	}
}

// AdvertiserFilter represents filter criteria for advertiser queries
type AdvertiserFilter struct {
	ID       *uint
	IDs      []uint
	UUID     *uuid.UUID
	Name     *string
	Type     *string
	IsActive *bool
}
