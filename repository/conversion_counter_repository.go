package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversionCounterRepositoryImpl implements ConversionCounterRepository interface
type ConversionCounterRepositoryImpl struct {
	*BaseRepository[models.ConversionCounter, models.ConversionCounterFilter]
}

// NewConversionCounterRepository creates a new conversion counter repository
func NewConversionCounterRepository(db *gorm.DB) ConversionCounterRepository {
	return &ConversionCounterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ConversionCounter, models.ConversionCounterFilter](db),
	}
}

// ByAdvertiserID returns the counter row of an advertiser, or nil when none exists yet
func (r *ConversionCounterRepositoryImpl) ByAdvertiserID(ctx context.Context, advertiserID uint) (*models.ConversionCounter, error) {
	var counter models.ConversionCounter
	err := r.getDB(ctx).Where("advertiser_id = ?", advertiserID).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}

// IncrementLeads adds one accepted lead to the advertiser's counter
func (r *ConversionCounterRepositoryImpl) IncrementLeads(ctx context.Context, advertiserID uint) error {
	return r.increment(ctx, advertiserID, "leads")
}

// IncrementFailedLeads adds one failed lead to the advertiser's counter
func (r *ConversionCounterRepositoryImpl) IncrementFailedLeads(ctx context.Context, advertiserID uint) error {
	return r.increment(ctx, advertiserID, "failed_leads")
}

// increment upserts the row so the first event for an advertiser creates it
func (r *ConversionCounterRepositoryImpl) increment(ctx context.Context, advertiserID uint, column string) error {
	now := time.Now().UTC()
	row := &models.ConversionCounter{AdvertiserID: advertiserID, UpdatedAt: now}
	switch column {
	case "leads":
		row.Leads = 1
	case "failed_leads":
		row.FailedLeads = 1
	default:
		return fmt.Errorf("unknown counter column %q", column)
	}

	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "advertiser_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				column:       gorm.Expr("conversion_counters."+column+" + ?", 1),
				"updated_at": now,
			}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("failed to increment %s for advertiser %d: %w", column, advertiserID, err)
		}
		return nil
	})
}

func (r *ConversionCounterRepositoryImpl) applyFilter(query *gorm.DB, filter models.ConversionCounterFilter) *gorm.DB {
	if filter.AdvertiserID != nil {
		query = query.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	return query
}

func (r *ConversionCounterRepositoryImpl) ByFilter(ctx context.Context, filter models.ConversionCounterFilter, orderBy string, limit, offset int) ([]*models.ConversionCounter, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.ConversionCounter{}), filter), orderBy, limit, offset)

	var rows []*models.ConversionCounter
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ConversionCounterRepositoryImpl) Count(ctx context.Context, filter models.ConversionCounterFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.ConversionCounter{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ConversionCounterRepositoryImpl) Exists(ctx context.Context, filter models.ConversionCounterFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
