package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAffiliate creates an active affiliate
func (tf *TestFixtures) CreateTestAffiliate(name string, testMode bool) (*models.Affiliate, error) {
	affiliate := &models.Affiliate{
		UUID:     uuid.New(),
		Name:     name,
		TestMode: utils.ToPtr(testMode),
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(affiliate).Error; err != nil {
		return nil, fmt.Errorf("failed to create affiliate %s: %w", name, err)
	}
	return affiliate, nil
}

// CreateTestAdvertiser creates an active advertiser of the given integration type
func (tf *TestFixtures) CreateTestAdvertiser(name, advertiserType string) (*models.Advertiser, error) {
	advertiser := &models.Advertiser{
		UUID:     uuid.New(),
		Name:     name,
		Type:     advertiserType,
		BaseURL:  "https://" + name + ".example.com",
		APIKey:   utils.ToPtr("key-" + name),
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(advertiser).Error; err != nil {
		return nil, fmt.Errorf("failed to create advertiser %s: %w", name, err)
	}
	return advertiser, nil
}

// CreateTestLead creates an undistributed lead
func (tf *TestFixtures) CreateTestLead(email, country string, affiliateID *uint) (*models.Lead, error) {
	lead := &models.Lead{
		UUID:        uuid.New(),
		FirstName:   "Test",
		LastName:    "Lead",
		Email:       email,
		CountryCode: utils.StringPtrOrNil(country),
		AffiliateID: affiliateID,
		Status:      models.LeadStatusNew,
	}
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead %s: %w", email, err)
	}
	return lead, nil
}

// CreateTestRule routes affiliate+country to an advertiser
func (tf *TestFixtures) CreateTestRule(affiliateID uint, country string, advertiserID uint, weight int, priority models.PriorityType) (*models.DistributionRule, error) {
	rule := &models.DistributionRule{
		AffiliateID:  affiliateID,
		CountryCode:  country,
		AdvertiserID: advertiserID,
		RoutingTerms: models.RoutingTerms{
			Weight:       utils.ToPtr(weight),
			PriorityType: priority,
			IsActive:     utils.ToPtr(true),
		},
	}
	if err := tf.DB.DB.Create(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return rule, nil
}

// CreateSentAttempt records a sent attempt at createdAt
func (tf *TestFixtures) CreateSentAttempt(lead *models.Lead, advertiserID uint, createdAt time.Time) (*models.DistributionAttempt, error) {
	attempt := &models.DistributionAttempt{
		LeadID:       utils.ToPtr(lead.ID),
		LeadUUID:     lead.UUID,
		AdvertiserID: advertiserID,
		AffiliateID:  lead.AffiliateID,
		CountryCode:  lead.CountryCode,
		Tier:         models.PriorityTypePrimary,
		Status:       models.AttemptStatusSent,
		CreatedAt:    createdAt,
	}
	if err := tf.DB.DB.Create(attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	return attempt, nil
}
