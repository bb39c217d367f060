package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resolverNow = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

func fixedResolver(fx *flowFixture) *EligibilityResolverImpl {
	fx.resolver.now = func() time.Time { return resolverNow }
	return fx.resolver
}

func sentAttempt(adv uint, affiliateID *uint, country string, createdAt time.Time) *models.DistributionAttempt {
	a := &models.DistributionAttempt{
		AdvertiserID: adv,
		AffiliateID:  affiliateID,
		Status:       models.AttemptStatusSent,
		CreatedAt:    createdAt,
	}
	if country != "" {
		a.CountryCode = utils.ToPtr(country)
	}
	return a
}

func TestResolve_TestModeAffiliate(t *testing.T) {
	fx := newFlowFixture()
	aff := fx.addAffiliate(1, true, "")
	x := newAdvertiser(1, "x")
	fx.rules.rules = []*models.DistributionRule{newRule(1, "US", x, 100, models.PriorityTypePrimary)}
	// even a rejected email is routed to the synthetic advertiser
	require.NoError(t, fx.rejections.Upsert(context.Background(), "a@b.com", 1, "no"))

	tiers, err := fixedResolver(fx).Resolve(context.Background(), newLead(1, "a@b.com", "US", utils.ToPtr(uint(1))), aff)
	require.NoError(t, err)

	assert.Equal(t, EligibilityModeTest, tiers.Mode)
	require.Len(t, tiers.Primary, 1)
	assert.Empty(t, tiers.Fallback)
	assert.True(t, tiers.Primary[0].Advertiser.IsSynthetic())
	assert.Equal(t, models.TestAdvertiserName, tiers.Primary[0].Advertiser.Name)
}

func TestResolve_AffiliateRules(t *testing.T) {
	fx := newFlowFixture()
	aff := fx.addAffiliate(1, false, "")
	x := newAdvertiser(1, "x")
	y := newAdvertiser(2, "y")
	z := newAdvertiser(3, "z")
	noWeight := newRule(1, "US", z, 0, "")
	noWeight.Weight = nil
	fx.rules.rules = []*models.DistributionRule{
		newRule(1, "US", x, 70, models.PriorityTypePrimary),
		newRule(1, "US", y, 30, models.PriorityTypeFallback),
		noWeight,
		newRule(1, "DE", newAdvertiser(4, "de-only"), 100, models.PriorityTypePrimary),
	}

	lead := newLead(1, "a@b.com", "us", utils.ToPtr(uint(1)))
	tiers, err := fixedResolver(fx).Resolve(context.Background(), lead, aff)
	require.NoError(t, err)

	assert.Equal(t, EligibilityModeAffiliate, tiers.Mode)
	assert.Equal(t, []uint{1, 3}, ids(tiers.Primary))
	assert.Equal(t, []uint{2}, ids(tiers.Fallback))
	assert.Equal(t, utils.DefaultWeight, tiers.Primary[1].Weight)
	assert.Equal(t, models.PriorityTypePrimary, tiers.Primary[1].Priority)
	assert.Equal(t, utils.DefaultDailyCap, tiers.Primary[0].DailyCap)
	require.NotNil(t, tiers.Primary[0].Scope.AffiliateID)
	assert.Equal(t, uint(1), *tiers.Primary[0].Scope.AffiliateID)
	assert.Equal(t, "US", *tiers.Primary[0].Scope.CountryCode)
}

func TestResolve_NoAffiliateRuleNoFallback(t *testing.T) {
	fx := newFlowFixture()
	aff := fx.addAffiliate(1, false, "")
	g := newAdvertiser(5, "global")
	fx.settings.settings = []*models.DistributionSetting{{
		AdvertiserID: g.ID,
		Advertiser:   g,
		RoutingTerms: models.RoutingTerms{IsActive: utils.ToPtr(true)},
	}}
	fx.rules.rules = []*models.DistributionRule{newRule(1, "DE", newAdvertiser(1, "x"), 100, models.PriorityTypePrimary)}

	tiers, err := fixedResolver(fx).Resolve(context.Background(), newLead(1, "a@b.com", "US", utils.ToPtr(uint(1))), aff)
	require.NoError(t, err)
	assert.True(t, tiers.Empty())
	assert.Equal(t, EligibilityModeAffiliate, tiers.Mode)
}

func TestResolve_RejectionMemoryExclusion(t *testing.T) {
	fx := newFlowFixture()
	x := newAdvertiser(1, "x")
	y := newAdvertiser(2, "y")
	fx.addAffiliate(1, false, "")
	aff2 := fx.addAffiliate(2, false, "")
	fx.rules.rules = []*models.DistributionRule{
		newRule(2, "FR", x, 100, models.PriorityTypePrimary),
		newRule(2, "FR", y, 100, models.PriorityTypePrimary),
	}
	// rejected earlier under affiliate 1 / US
	require.NoError(t, fx.rejections.Upsert(context.Background(), "user@x.com", x.ID, "duplicate"))

	lead := newLead(9, "  User@X.com ", "FR", utils.ToPtr(uint(2)))
	tiers, err := fixedResolver(fx).Resolve(context.Background(), lead, aff2)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, ids(tiers.Primary))
}

func TestResolve_DailyCapExhaustion(t *testing.T) {
	fx := newFlowFixture()
	aff := fx.addAffiliate(1, false, "")
	x := newAdvertiser(1, "x")
	rule := newRule(1, "US", x, 1000, models.PriorityTypePrimary)
	rule.DailyCap = utils.ToPtr(2)
	fx.rules.rules = []*models.DistributionRule{rule}
	affID := utils.ToPtr(uint(1))

	fx.attempts.attempts = []*models.DistributionAttempt{
		sentAttempt(1, affID, "US", resolverNow.Add(-3*time.Hour)),
		// yesterday and other scopes do not count
		sentAttempt(1, affID, "US", resolverNow.Add(-11*time.Hour)),
		sentAttempt(1, affID, "DE", resolverNow.Add(-time.Hour)),
	}

	resolver := fixedResolver(fx)
	lead := newLead(1, "a@b.com", "US", affID)

	tiers, err := resolver.Resolve(context.Background(), lead, aff)
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids(tiers.Primary), "one sent today, cap of two not reached")

	fx.attempts.attempts = append(fx.attempts.attempts, sentAttempt(1, affID, "US", resolverNow.Add(-2*time.Hour)))
	tiers, err = resolver.Resolve(context.Background(), lead, aff)
	require.NoError(t, err)
	assert.True(t, tiers.Empty())
}

func TestResolve_CapFallsBackToAdvertiserAndDefault(t *testing.T) {
	fx := newFlowFixture()
	x := newAdvertiser(1, "x")
	x.DailyCap = utils.ToPtr(1)
	y := newAdvertiser(2, "y")
	fx.settings.settings = []*models.DistributionSetting{
		{AdvertiserID: 1, Advertiser: x},
		{AdvertiserID: 2, Advertiser: y},
	}
	fx.attempts.attempts = []*models.DistributionAttempt{
		sentAttempt(1, nil, "", resolverNow.Add(-time.Minute)),
		sentAttempt(2, nil, "", resolverNow.Add(-time.Minute)),
	}
	fx.resolver.defaultDailyCap = 2

	tiers, err := fixedResolver(fx).Resolve(context.Background(), newLead(1, "a@b.com", "US", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, EligibilityModeGlobal, tiers.Mode)
	assert.Equal(t, []uint{2}, ids(tiers.Primary))
	assert.Equal(t, 2, tiers.Primary[0].DailyCap)
}

func TestResolve_HourlyCap(t *testing.T) {
	fx := newFlowFixture()
	x := newAdvertiser(1, "x")
	fx.settings.settings = []*models.DistributionSetting{{
		AdvertiserID: 1,
		Advertiser:   x,
		RoutingTerms: models.RoutingTerms{HourlyCap: utils.ToPtr(1)},
	}}
	fx.attempts.attempts = []*models.DistributionAttempt{sentAttempt(1, nil, "", resolverNow.Add(-61*time.Minute))}

	resolver := fixedResolver(fx)
	lead := newLead(1, "a@b.com", "US", nil)

	tiers, err := resolver.Resolve(context.Background(), lead, nil)
	require.NoError(t, err)
	assert.Len(t, tiers.Primary, 1)

	fx.attempts.attempts = append(fx.attempts.attempts, sentAttempt(1, nil, "", resolverNow.Add(-59*time.Minute)))
	tiers, err = resolver.Resolve(context.Background(), lead, nil)
	require.NoError(t, err)
	assert.True(t, tiers.Empty())
}

func TestResolve_GlobalAllowListsAndFlags(t *testing.T) {
	fx := newFlowFixture()
	open := newAdvertiser(1, "open")
	usOnly := newAdvertiser(2, "us-only")
	deOnly := newAdvertiser(3, "de-only")
	affOnly := newAdvertiser(4, "aff-only")
	inactiveSetting := newAdvertiser(5, "inactive-setting")
	inactiveAdv := newAdvertiser(6, "inactive-adv")
	inactiveAdv.IsActive = utils.ToPtr(false)
	closed := newAdvertiser(7, "closed-now")

	fx.settings.settings = []*models.DistributionSetting{
		{AdvertiserID: 1, Advertiser: open},
		{AdvertiserID: 2, Advertiser: usOnly, Countries: pq.StringArray{"us", "CA"}},
		{AdvertiserID: 3, Advertiser: deOnly, Countries: pq.StringArray{"DE"}},
		{AdvertiserID: 4, Advertiser: affOnly, AffiliateIDs: pq.Int64Array{12}},
		{AdvertiserID: 5, Advertiser: inactiveSetting, RoutingTerms: models.RoutingTerms{IsActive: utils.ToPtr(false)}},
		{AdvertiserID: 6, Advertiser: inactiveAdv},
		{AdvertiserID: 7, Advertiser: closed, RoutingTerms: models.RoutingTerms{
			StartTime:    utils.ToPtr("22:00"),
			EndTime:      utils.ToPtr("02:00"),
			PriorityType: models.PriorityTypeFallback,
		}},
	}

	tiers, err := fixedResolver(fx).Resolve(context.Background(), newLead(1, "a@b.com", "US", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids(tiers.Primary))
	assert.Empty(t, tiers.Fallback)
	assert.Nil(t, tiers.Primary[0].Scope.AffiliateID)
}

func TestResolve_AffiliateLeadWithoutCountry(t *testing.T) {
	fx := newFlowFixture()
	aff := fx.addAffiliate(1, false, "")
	fx.rules.rules = []*models.DistributionRule{newRule(1, "US", newAdvertiser(1, "x"), 100, models.PriorityTypePrimary)}

	lead := newLead(1, "a@b.com", "", utils.ToPtr(uint(1)))
	tiers, err := fixedResolver(fx).Resolve(context.Background(), lead, aff)
	require.NoError(t, err)
	assert.True(t, tiers.Empty())
}
