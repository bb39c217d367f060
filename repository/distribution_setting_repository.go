package repository

import (
	"context"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
)

// DistributionSettingRepositoryImpl implements DistributionSettingRepository interface
type DistributionSettingRepositoryImpl struct {
	*BaseRepository[models.DistributionSetting, models.DistributionSettingFilter]
}

// NewDistributionSettingRepository creates a new distribution setting repository
func NewDistributionSettingRepository(db *gorm.DB) DistributionSettingRepository {
	return &DistributionSettingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DistributionSetting, models.DistributionSettingFilter](db),
	}
}

// ListActive returns active settings joined to active advertisers
func (r *DistributionSettingRepositoryImpl) ListActive(ctx context.Context) ([]*models.DistributionSetting, error) {
	var settings []*models.DistributionSetting
	err := r.getDB(ctx).
		Model(&models.DistributionSetting{}).
		Joins("JOIN advertisers ON advertisers.id = distribution_settings.advertiser_id").
		Where("COALESCE(distribution_settings.is_active, TRUE) = TRUE").
		Where("COALESCE(advertisers.is_active, TRUE) = TRUE").
		Preload("Advertiser").
		Order("distribution_settings.id ASC").
		Find(&settings).Error
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *DistributionSettingRepositoryImpl) applyFilter(query *gorm.DB, filter models.DistributionSettingFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AdvertiserID != nil {
		query = query.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	if filter.IsActive != nil {
		query = query.Where("COALESCE(is_active, TRUE) = ?", *filter.IsActive)
	}
	return query
}

func (r *DistributionSettingRepositoryImpl) ByFilter(ctx context.Context, filter models.DistributionSettingFilter, orderBy string, limit, offset int) ([]*models.DistributionSetting, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.DistributionSetting{}), filter), orderBy, limit, offset)

	var rows []*models.DistributionSetting
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DistributionSettingRepositoryImpl) Count(ctx context.Context, filter models.DistributionSettingFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.DistributionSetting{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DistributionSettingRepositoryImpl) Exists(ctx context.Context, filter models.DistributionSettingFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
