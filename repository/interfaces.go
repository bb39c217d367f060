// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	// MarkDistributed stamps distributed_at only if it is still NULL and reports whether it did.
	// advertiserID 0 records no advertiser.
	MarkDistributed(ctx context.Context, leadID, advertiserID uint, at time.Time) (bool, error)
}

// AdvertiserRepository defines operations for advertisers
type AdvertiserRepository interface {
	Repository[models.Advertiser, models.AdvertiserFilter]
	ListActive(ctx context.Context) ([]*models.Advertiser, error)
}

// AffiliateRepository defines operations for affiliates
type AffiliateRepository interface {
	Repository[models.Affiliate, models.AffiliateFilter]
}

// DistributionRuleRepository defines operations for affiliate scoped routing rules
type DistributionRuleRepository interface {
	Repository[models.DistributionRule, models.DistributionRuleFilter]
	ListByAffiliateAndCountry(ctx context.Context, affiliateID uint, countryCode string) ([]*models.DistributionRule, error)
}

// DistributionSettingRepository defines operations for global routing settings
type DistributionSettingRepository interface {
	Repository[models.DistributionSetting, models.DistributionSettingFilter]
	ListActive(ctx context.Context) ([]*models.DistributionSetting, error)
}

// DistributionAttemptRepository defines operations for the attempt log
type DistributionAttemptRepository interface {
	Repository[models.DistributionAttempt, models.DistributionAttemptFilter]
	CountSent(ctx context.Context, scope models.CapScope, since time.Time) (int64, error)
	AttachLead(ctx context.Context, leadUUID uuid.UUID, leadID uint) error
	ListByLeadUUID(ctx context.Context, leadUUID uuid.UUID) ([]*models.DistributionAttempt, error)
}

// LeadRejectionRepository defines operations for rejection memory
type LeadRejectionRepository interface {
	Repository[models.LeadRejection, models.LeadRejectionFilter]
	AdvertiserIDsByEmail(ctx context.Context, email string) ([]uint, error)
	Upsert(ctx context.Context, email string, advertiserID uint, reason string) error
}

// ConversionCounterRepository defines operations for per-advertiser counters
type ConversionCounterRepository interface {
	Repository[models.ConversionCounter, models.ConversionCounterFilter]
	ByAdvertiserID(ctx context.Context, advertiserID uint) (*models.ConversionCounter, error)
	IncrementLeads(ctx context.Context, advertiserID uint) error
	IncrementFailedLeads(ctx context.Context, advertiserID uint) error
}

// CallbackLogRepository defines operations for affiliate callback logs
type CallbackLogRepository interface {
	Repository[models.CallbackLog, models.CallbackLogFilter]
}

// CustomIntegrationRepository defines operations for data driven integrations
type CustomIntegrationRepository interface {
	Repository[models.CustomIntegration, models.CustomIntegrationFilter]
	ByAdvertiserID(ctx context.Context, advertiserID uint) (*models.CustomIntegration, error)
}
