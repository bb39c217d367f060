// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadRepositoryImpl implements LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

// ByUUID retrieves a lead by UUID
func (r *LeadRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	db := r.getDB(ctx)

	var lead models.Lead
	err := db.Where("uuid = ?", id).Last(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &lead, nil
}

// MarkDistributed sets distributed_at, status and the accepting advertiser once.
// An advertiserID of 0 leaves the advertiser column NULL.
// Concurrent callers race on the IS NULL predicate; only one of them updates the row.
func (r *LeadRepositoryImpl) MarkDistributed(ctx context.Context, leadID, advertiserID uint, at time.Time) (bool, error) {
	var advertiser any
	if advertiserID != 0 {
		advertiser = advertiserID
	}

	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Lead{}).
			Where("id = ? AND distributed_at IS NULL", leadID).
			Updates(map[string]any{
				"distributed_at":            at,
				"distributed_advertiser_id": advertiser,
				"status":                    models.LeadStatusDistributed,
				"updated_at":                at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark lead %d distributed: %w", leadID, res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *LeadRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("LOWER(email) = ?", models.NormalizeEmail(*filter.Email))
	}
	if filter.AffiliateID != nil {
		query = query.Where("affiliate_id = ?", *filter.AffiliateID)
	}
	if filter.CountryCode != nil {
		query = query.Where("country_code = ?", *filter.CountryCode)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Distributed != nil {
		if *filter.Distributed {
			query = query.Where("distributed_at IS NOT NULL")
		} else {
			query = query.Where("distributed_at IS NULL")
		}
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves leads based on filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var leads []*models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

// Count returns the number of leads matching the filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any lead matching the filter exists
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
