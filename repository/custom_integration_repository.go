package repository

import (
	"context"
	"errors"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
)

// CustomIntegrationRepositoryImpl implements CustomIntegrationRepository interface
type CustomIntegrationRepositoryImpl struct {
	*BaseRepository[models.CustomIntegration, models.CustomIntegrationFilter]
}

// NewCustomIntegrationRepository creates a new custom integration repository
func NewCustomIntegrationRepository(db *gorm.DB) CustomIntegrationRepository {
	return &CustomIntegrationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CustomIntegration, models.CustomIntegrationFilter](db),
	}
}

// ByAdvertiserID returns the integration definition of an advertiser or nil
func (r *CustomIntegrationRepositoryImpl) ByAdvertiserID(ctx context.Context, advertiserID uint) (*models.CustomIntegration, error) {
	var row models.CustomIntegration
	err := r.getDB(ctx).Where("advertiser_id = ?", advertiserID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *CustomIntegrationRepositoryImpl) applyFilter(query *gorm.DB, filter models.CustomIntegrationFilter) *gorm.DB {
	if filter.AdvertiserID != nil {
		query = query.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	return query
}

func (r *CustomIntegrationRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomIntegrationFilter, orderBy string, limit, offset int) ([]*models.CustomIntegration, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.CustomIntegration{}), filter), orderBy, limit, offset)

	var rows []*models.CustomIntegration
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CustomIntegrationRepositoryImpl) Count(ctx context.Context, filter models.CustomIntegrationFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.CustomIntegration{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CustomIntegrationRepositoryImpl) Exists(ctx context.Context, filter models.CustomIntegrationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
