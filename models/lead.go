// Package models contains domain entities for the lead distribution engine
package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadStatus represents the distribution status of a lead
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusDistributed LeadStatus = "distributed"
)

// String returns the string representation of the status
func (s LeadStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusDistributed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for LeadStatus
func (s *LeadStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = LeadStatus(v)
	case []byte:
		*s = LeadStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LeadStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for LeadStatus
func (s LeadStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid LeadStatus: %s", s)
	}
	return string(s), nil
}

// Lead is a contact record submitted by an affiliate (or created by an operator test)
// and routed to exactly one advertiser.
type Lead struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_leads_uuid" json:"uuid"`

	FirstName   string  `gorm:"size:255;not null" json:"first_name"`
	LastName    string  `gorm:"size:255;not null" json:"last_name"`
	Email       string  `gorm:"size:255;not null;index:idx_leads_email" json:"email"`
	Phone       *string `gorm:"size:32" json:"phone,omitempty"`
	CountryCode *string `gorm:"size:2;index:idx_leads_country_code" json:"country_code,omitempty"`
	IP          *string `gorm:"size:64" json:"ip,omitempty"`
	Custom1     *string `gorm:"type:text" json:"custom1,omitempty"`
	Custom2     *string `gorm:"type:text" json:"custom2,omitempty"`
	Custom3     *string `gorm:"type:text" json:"custom3,omitempty"`
	OfferName   *string `gorm:"size:255" json:"offer_name,omitempty"`
	Comment     *string `gorm:"type:text" json:"comment,omitempty"`

	AffiliateID *uint      `gorm:"index:idx_leads_affiliate_id" json:"affiliate_id,omitempty"`
	Affiliate   *Affiliate `gorm:"foreignKey:AffiliateID;references:ID" json:"affiliate,omitempty"`

	Status                  LeadStatus `gorm:"size:32;not null;default:'new';index:idx_leads_status" json:"status"`
	DistributedAt           *time.Time `gorm:"index:idx_leads_distributed_at" json:"distributed_at,omitempty"`
	DistributedAdvertiserID *uint      `gorm:"index:idx_leads_distributed_advertiser_id" json:"distributed_advertiser_id,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_leads_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// IsDistributed reports whether a successful distribution has been stamped on the lead
func (l *Lead) IsDistributed() bool {
	return l.DistributedAt != nil
}

// NormalizedEmail is the key used by rejection memory
func (l *Lead) NormalizedEmail() string {
	return NormalizeEmail(l.Email)
}

// Country returns the upper-cased country code or an empty string
func (l *Lead) Country() string {
	if l.CountryCode == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*l.CountryCode))
}

// FullName joins first and last name
func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	AffiliateID   *uint
	CountryCode   *string
	Status        *LeadStatus
	Distributed   *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
