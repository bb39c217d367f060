package repository

import (
	"context"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
)

// AdvertiserRepositoryImpl implements AdvertiserRepository interface
type AdvertiserRepositoryImpl struct {
	*BaseRepository[models.Advertiser, models.AdvertiserFilter]
}

// NewAdvertiserRepository creates a new advertiser repository
func NewAdvertiserRepository(db *gorm.DB) AdvertiserRepository {
	return &AdvertiserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Advertiser, models.AdvertiserFilter](db),
	}
}

// ListActive returns every active advertiser ordered by id
func (r *AdvertiserRepositoryImpl) ListActive(ctx context.Context) ([]*models.Advertiser, error) {
	active := true
	return r.ByFilter(ctx, models.AdvertiserFilter{IsActive: &active}, "id ASC", 0, 0)
}

func (r *AdvertiserRepositoryImpl) applyFilter(query *gorm.DB, filter models.AdvertiserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves advertisers based on filter criteria
func (r *AdvertiserRepositoryImpl) ByFilter(ctx context.Context, filter models.AdvertiserFilter, orderBy string, limit, offset int) ([]*models.Advertiser, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.Advertiser{}), filter), orderBy, limit, offset)

	var rows []*models.Advertiser
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of advertisers matching the filter
func (r *AdvertiserRepositoryImpl) Count(ctx context.Context, filter models.AdvertiserFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Advertiser{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any advertiser matching the filter exists
func (r *AdvertiserRepositoryImpl) Exists(ctx context.Context, filter models.AdvertiserFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
