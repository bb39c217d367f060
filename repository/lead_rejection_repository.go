package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadRejectionRepositoryImpl implements LeadRejectionRepository interface
type LeadRejectionRepositoryImpl struct {
	*BaseRepository[models.LeadRejection, models.LeadRejectionFilter]
}

// NewLeadRejectionRepository creates a new lead rejection repository
func NewLeadRejectionRepository(db *gorm.DB) LeadRejectionRepository {
	return &LeadRejectionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LeadRejection, models.LeadRejectionFilter](db),
	}
}

// AdvertiserIDsByEmail returns every advertiser that has rejected the email
func (r *LeadRejectionRepositoryImpl) AdvertiserIDsByEmail(ctx context.Context, email string) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&models.LeadRejection{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Distinct().
		Pluck("advertiser_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Upsert records a rejection, bumping the counter and replacing the reason on repeat
func (r *LeadRejectionRepositoryImpl) Upsert(ctx context.Context, email string, advertiserID uint, reason string) error {
	now := time.Now().UTC()
	row := &models.LeadRejection{
		Email:          models.NormalizeEmail(email),
		AdvertiserID:   advertiserID,
		RejectionCount: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if reason != "" {
		row.Reason = &reason
	}

	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}, {Name: "advertiser_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"rejection_count": gorm.Expr("lead_rejections.rejection_count + 1"),
				"reason":          row.Reason,
				"updated_at":      now,
			}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert rejection for advertiser %d: %w", advertiserID, err)
		}
		return nil
	})
}

func (r *LeadRejectionRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadRejectionFilter) *gorm.DB {
	if filter.Email != nil {
		query = query.Where("email = ?", models.NormalizeEmail(*filter.Email))
	}
	if filter.AdvertiserID != nil {
		query = query.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	return query
}

func (r *LeadRejectionRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadRejectionFilter, orderBy string, limit, offset int) ([]*models.LeadRejection, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.LeadRejection{}), filter), orderBy, limit, offset)

	var rows []*models.LeadRejection
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LeadRejectionRepositoryImpl) Count(ctx context.Context, filter models.LeadRejectionFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.LeadRejection{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LeadRejectionRepositoryImpl) Exists(ctx context.Context, filter models.LeadRejectionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
