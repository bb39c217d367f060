package models

import (
	"time"

	"gorm.io/datatypes"
)

// Custom integration content types
const (
	ContentTypeJSON = "json"
	ContentTypeForm = "form"
)

// Custom integration auth styles
const (
	AuthStyleNone   = "none"
	AuthStyleHeader = "header"
	AuthStyleBearer = "bearer"
	AuthStyleBasic  = "basic"
	AuthStyleQuery  = "query"
	AuthStyleBody   = "body"
)

// Transport modes
const (
	TransportDirect = "direct"
	TransportRelay  = "relay"
)

// ResponseIndicator matches a literal value at a dot-path of a JSON response body
type ResponseIndicator struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// CustomIntegration describes, as data, how to talk to an advertiser that has no
// dedicated adapter.
type CustomIntegration struct {
	ID                uint                                  `gorm:"primaryKey" json:"id"`
	AdvertiserID      uint                                  `gorm:"not null;uniqueIndex:uk_custom_integrations_advertiser_id" json:"advertiser_id"`
	Path              string                                `gorm:"type:text" json:"path"`
	Method            string                                `gorm:"size:8;not null;default:'POST'" json:"method"`
	ContentType       string                                `gorm:"size:16;not null;default:'json'" json:"content_type"`
	AuthStyle         string                                `gorm:"size:16;not null;default:'none'" json:"auth_style"`
	AuthField         *string                               `gorm:"size:128" json:"auth_field,omitempty"`
	FieldMappings     datatypes.JSONMap                     `gorm:"type:jsonb" json:"field_mappings,omitempty"`
	StaticFields      datatypes.JSONMap                     `gorm:"type:jsonb" json:"static_fields,omitempty"`
	SuccessIndicators datatypes.JSONSlice[ResponseIndicator] `gorm:"type:jsonb" json:"success_indicators,omitempty"`
	ErrorIndicators   datatypes.JSONSlice[ResponseIndicator] `gorm:"type:jsonb" json:"error_indicators,omitempty"`
	ExternalIDPath    *string                               `gorm:"size:255" json:"external_id_path,omitempty"`
	AutologinPath     *string                               `gorm:"size:255" json:"autologin_path,omitempty"`
	Transport         string                                `gorm:"size:16;not null;default:'direct'" json:"transport"`
	CreatedAt         time.Time                             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         time.Time                             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CustomIntegration) TableName() string {
	return "custom_integrations"
}

// CustomIntegrationFilter represents filter criteria for custom integration queries
type CustomIntegrationFilter struct {
	AdvertiserID *uint
}
