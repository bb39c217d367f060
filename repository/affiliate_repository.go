package repository

import (
	"context"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
)

// AffiliateRepositoryImpl implements AffiliateRepository interface
type AffiliateRepositoryImpl struct {
	*BaseRepository[models.Affiliate, models.AffiliateFilter]
}

// NewAffiliateRepository creates a new affiliate repository
func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &AffiliateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Affiliate, models.AffiliateFilter](db),
	}
}

func (r *AffiliateRepositoryImpl) applyFilter(query *gorm.DB, filter models.AffiliateFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.TestMode != nil {
		query = query.Where("test_mode = ?", *filter.TestMode)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

func (r *AffiliateRepositoryImpl) ByFilter(ctx context.Context, filter models.AffiliateFilter, orderBy string, limit, offset int) ([]*models.Affiliate, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.Affiliate{}), filter), orderBy, limit, offset)

	var rows []*models.Affiliate
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AffiliateRepositoryImpl) Count(ctx context.Context, filter models.AffiliateFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Affiliate{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AffiliateRepositoryImpl) Exists(ctx context.Context, filter models.AffiliateFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
