package repository

import (
	"context"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
)

// CallbackLogRepositoryImpl implements CallbackLogRepository interface
type CallbackLogRepositoryImpl struct {
	*BaseRepository[models.CallbackLog, models.CallbackLogFilter]
}

// NewCallbackLogRepository creates a new callback log repository
func NewCallbackLogRepository(db *gorm.DB) CallbackLogRepository {
	return &CallbackLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CallbackLog, models.CallbackLogFilter](db),
	}
}

func (r *CallbackLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.CallbackLogFilter) *gorm.DB {
	if filter.LeadUUID != nil {
		query = query.Where("lead_uuid = ?", *filter.LeadUUID)
	}
	if filter.AffiliateID != nil {
		query = query.Where("affiliate_id = ?", *filter.AffiliateID)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}
	return query
}

func (r *CallbackLogRepositoryImpl) ByFilter(ctx context.Context, filter models.CallbackLogFilter, orderBy string, limit, offset int) ([]*models.CallbackLog, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.CallbackLog{}), filter), orderBy, limit, offset)

	var rows []*models.CallbackLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CallbackLogRepositoryImpl) Count(ctx context.Context, filter models.CallbackLogFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.CallbackLog{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CallbackLogRepositoryImpl) Exists(ctx context.Context, filter models.CallbackLogFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
