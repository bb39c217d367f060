package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DistributionAttemptRepositoryImpl implements DistributionAttemptRepository interface
type DistributionAttemptRepositoryImpl struct {
	*BaseRepository[models.DistributionAttempt, models.DistributionAttemptFilter]
}

// NewDistributionAttemptRepository creates a new distribution attempt repository
func NewDistributionAttemptRepository(db *gorm.DB) DistributionAttemptRepository {
	return &DistributionAttemptRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DistributionAttempt, models.DistributionAttemptFilter](db),
	}
}

// CountSent counts successful attempts inside a cap scope since the given instant
func (r *DistributionAttemptRepositoryImpl) CountSent(ctx context.Context, scope models.CapScope, since time.Time) (int64, error) {
	query := r.getDB(ctx).Model(&models.DistributionAttempt{}).
		Where("advertiser_id = ?", scope.AdvertiserID).
		Where("status = ?", models.AttemptStatusSent).
		Where("created_at >= ?", since)
	if scope.AffiliateID != nil {
		query = query.Where("affiliate_id = ?", *scope.AffiliateID)
	}
	if scope.CountryCode != nil {
		query = query.Where("country_code = ?", *scope.CountryCode)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sent attempts for %s: %w", scope.Key(), err)
	}
	return count, nil
}

// AttachLead fills lead_id on attempts that were recorded before the lead row existed
func (r *DistributionAttemptRepositoryImpl) AttachLead(ctx context.Context, leadUUID uuid.UUID, leadID uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.DistributionAttempt{}).
			Where("lead_uuid = ? AND lead_id IS NULL", leadUUID).
			Update("lead_id", leadID).Error
		if err != nil {
			return fmt.Errorf("failed to attach lead %d to attempts: %w", leadID, err)
		}
		return nil
	})
}

// ListByLeadUUID returns the attempts of a lead in chronological order
func (r *DistributionAttemptRepositoryImpl) ListByLeadUUID(ctx context.Context, leadUUID uuid.UUID) ([]*models.DistributionAttempt, error) {
	return r.ByFilter(ctx, models.DistributionAttemptFilter{LeadUUID: &leadUUID}, "id ASC", 0, 0)
}

func (r *DistributionAttemptRepositoryImpl) applyFilter(query *gorm.DB, filter models.DistributionAttemptFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.LeadUUID != nil {
		query = query.Where("lead_uuid = ?", *filter.LeadUUID)
	}
	if filter.AdvertiserID != nil {
		query = query.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *DistributionAttemptRepositoryImpl) ByFilter(ctx context.Context, filter models.DistributionAttemptFilter, orderBy string, limit, offset int) ([]*models.DistributionAttempt, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.DistributionAttempt{}), filter), orderBy, limit, offset)

	var rows []*models.DistributionAttempt
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DistributionAttemptRepositoryImpl) Count(ctx context.Context, filter models.DistributionAttemptFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.DistributionAttempt{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DistributionAttemptRepositoryImpl) Exists(ctx context.Context, filter models.DistributionAttemptFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
