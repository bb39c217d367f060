package repository

import (
	"context"
	"strings"

	"github.com/amirphl/lead-exchange/models"
	"gorm.io/gorm"
)

// DistributionRuleRepositoryImpl implements DistributionRuleRepository interface
type DistributionRuleRepositoryImpl struct {
	*BaseRepository[models.DistributionRule, models.DistributionRuleFilter]
}

// NewDistributionRuleRepository creates a new distribution rule repository
func NewDistributionRuleRepository(db *gorm.DB) DistributionRuleRepository {
	return &DistributionRuleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DistributionRule, models.DistributionRuleFilter](db),
	}
}

// ListByAffiliateAndCountry returns the active rules of an affiliate for one country,
// each with its advertiser preloaded. Rules whose advertiser is inactive are skipped.
func (r *DistributionRuleRepositoryImpl) ListByAffiliateAndCountry(ctx context.Context, affiliateID uint, countryCode string) ([]*models.DistributionRule, error) {
	var rules []*models.DistributionRule
	err := r.getDB(ctx).
		Model(&models.DistributionRule{}).
		Joins("JOIN advertisers ON advertisers.id = distribution_rules.advertiser_id").
		Where("distribution_rules.affiliate_id = ?", affiliateID).
		Where("distribution_rules.country_code = ?", strings.ToUpper(strings.TrimSpace(countryCode))).
		Where("COALESCE(distribution_rules.is_active, TRUE) = TRUE").
		Where("COALESCE(advertisers.is_active, TRUE) = TRUE").
		Preload("Advertiser").
		Order("distribution_rules.id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *DistributionRuleRepositoryImpl) applyFilter(query *gorm.DB, filter models.DistributionRuleFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AffiliateID != nil {
		query = query.Where("affiliate_id = ?", *filter.AffiliateID)
	}
	if filter.CountryCode != nil {
		query = query.Where("country_code = ?", *filter.CountryCode)
	}
	if filter.AdvertiserID != nil {
		query = query.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	if filter.IsActive != nil {
		query = query.Where("COALESCE(is_active, TRUE) = ?", *filter.IsActive)
	}
	return query
}

func (r *DistributionRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.DistributionRuleFilter, orderBy string, limit, offset int) ([]*models.DistributionRule, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.DistributionRule{}), filter), orderBy, limit, offset)

	var rows []*models.DistributionRule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DistributionRuleRepositoryImpl) Count(ctx context.Context, filter models.DistributionRuleFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.DistributionRule{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DistributionRuleRepositoryImpl) Exists(ctx context.Context, filter models.DistributionRuleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
