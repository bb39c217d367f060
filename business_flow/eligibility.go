package businessflow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/repository"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/sirupsen/logrus"
)

// EligibilityMode tells which rule source produced the tiers
type EligibilityMode string

const (
	EligibilityModeTest      EligibilityMode = "test"
	EligibilityModeAffiliate EligibilityMode = "affiliate"
	EligibilityModeGlobal    EligibilityMode = "global"
	EligibilityModeForced    EligibilityMode = "forced"
)

// Tiers holds the primary and fallback candidates of one lead
type Tiers struct {
	Mode     EligibilityMode
	Primary  []Candidate
	Fallback []Candidate
}

// Empty reports whether neither tier has a candidate
func (t *Tiers) Empty() bool {
	return t == nil || (len(t.Primary) == 0 && len(t.Fallback) == 0)
}

func (t *Tiers) add(c Candidate) {
	if c.Priority == models.PriorityTypeFallback {
		t.Fallback = append(t.Fallback, c)
		return
	}
	t.Primary = append(t.Primary, c)
}

// EligibilityResolver produces the candidate tiers of a lead
type EligibilityResolver interface {
	Resolve(ctx context.Context, lead *models.Lead, affiliate *models.Affiliate) (*Tiers, error)
	CapReached(ctx context.Context, candidate Candidate) (bool, error)
}

// EligibilityResolverImpl implements EligibilityResolver over the routing repositories
type EligibilityResolverImpl struct {
	ruleRepo        repository.DistributionRuleRepository
	settingRepo     repository.DistributionSettingRepository
	attemptRepo     repository.DistributionAttemptRepository
	rejectionRepo   repository.LeadRejectionRepository
	defaultDailyCap int
	now             func() time.Time
	logger          logrus.FieldLogger
}

// NewEligibilityResolver creates a new eligibility resolver
func NewEligibilityResolver(
	ruleRepo repository.DistributionRuleRepository,
	settingRepo repository.DistributionSettingRepository,
	attemptRepo repository.DistributionAttemptRepository,
	rejectionRepo repository.LeadRejectionRepository,
	defaultDailyCap int,
	logger logrus.FieldLogger,
) *EligibilityResolverImpl {
	if defaultDailyCap <= 0 {
		defaultDailyCap = utils.DefaultDailyCap
	}
	return &EligibilityResolverImpl{
		ruleRepo:        ruleRepo,
		settingRepo:     settingRepo,
		attemptRepo:     attemptRepo,
		rejectionRepo:   rejectionRepo,
		defaultDailyCap: defaultDailyCap,
		now:             utils.UTCNow,
		logger:          logger,
	}
}

// Resolve builds the primary and fallback tiers of a lead.
// A test-mode affiliate always gets the synthetic advertiser. An affiliate lead only
// uses the rules of its affiliate and country; a lead without affiliate uses the
// global settings.
func (r *EligibilityResolverImpl) Resolve(ctx context.Context, lead *models.Lead, affiliate *models.Affiliate) (*Tiers, error) {
	if affiliate != nil && utils.IsTrue(affiliate.TestMode) {
		return &Tiers{
			Mode: EligibilityModeTest,
			Primary: []Candidate{{
				Advertiser: models.NewTestAdvertiser(),
				Weight:     utils.DefaultWeight,
				Priority:   models.PriorityTypePrimary,
			}},
		}, nil
	}

	rejectedIDs, err := r.rejectionRepo.AdvertiserIDsByEmail(ctx, lead.NormalizedEmail())
	if err != nil {
		return nil, fmt.Errorf("load rejections: %w", err)
	}
	rejected := make(map[uint]struct{}, len(rejectedIDs))
	for _, id := range rejectedIDs {
		rejected[id] = struct{}{}
	}

	now := r.now()
	log := r.logger.WithField("lead_uuid", lead.UUID.String())

	if lead.AffiliateID != nil {
		tiers := &Tiers{Mode: EligibilityModeAffiliate}
		country := lead.Country()
		if country == "" {
			return tiers, nil
		}
		rules, err := r.ruleRepo.ListByAffiliateAndCountry(ctx, *lead.AffiliateID, country)
		if err != nil {
			return nil, fmt.Errorf("load distribution rules: %w", err)
		}
		for _, rule := range rules {
			scope := models.CapScope{
				AdvertiserID: rule.AdvertiserID,
				AffiliateID:  utils.ToPtr(*lead.AffiliateID),
				CountryCode:  utils.ToPtr(country),
			}
			c, ok, err := r.evaluate(ctx, log, rule.Advertiser, rule.RoutingTerms, scope, rejected, now)
			if err != nil {
				return nil, err
			}
			if ok {
				tiers.add(c)
			}
		}
		return tiers, nil
	}

	tiers := &Tiers{Mode: EligibilityModeGlobal}
	settings, err := r.settingRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load distribution settings: %w", err)
	}
	for _, setting := range settings {
		if !settingAllows(setting, lead) {
			continue
		}
		scope := models.CapScope{AdvertiserID: setting.AdvertiserID}
		c, ok, err := r.evaluate(ctx, log, setting.Advertiser, setting.RoutingTerms, scope, rejected, now)
		if err != nil {
			return nil, err
		}
		if ok {
			tiers.add(c)
		}
	}
	return tiers, nil
}

func (r *EligibilityResolverImpl) evaluate(
	ctx context.Context,
	log logrus.FieldLogger,
	adv *models.Advertiser,
	terms models.RoutingTerms,
	scope models.CapScope,
	rejected map[uint]struct{},
	now time.Time,
) (Candidate, bool, error) {
	if adv == nil || !utils.IsTrueOrUnset(adv.IsActive) || !utils.IsTrueOrUnset(terms.IsActive) {
		return Candidate{}, false, nil
	}
	if _, ok := rejected[adv.ID]; ok {
		return Candidate{}, false, nil
	}

	advLog := log.WithField("advertiser_id", adv.ID)
	within, err := IsWithinSchedule(terms, now)
	if err != nil {
		advLog.WithError(err).Warn("Skipping advertiser with malformed schedule")
		return Candidate{}, false, nil
	}
	if !within {
		return Candidate{}, false, nil
	}

	c := Candidate{
		Advertiser: adv,
		Weight:     utils.DefaultWeight,
		Priority:   models.PriorityTypePrimary,
		Scope:      scope,
		DailyCap:   r.dailyCap(terms, adv),
		HourlyCap:  hourlyCap(terms, adv),
	}
	if terms.Weight != nil {
		c.Weight = *terms.Weight
	}
	if terms.PriorityType == models.PriorityTypeFallback {
		c.Priority = models.PriorityTypeFallback
	}

	reached, err := r.capReached(ctx, c, now)
	if err != nil {
		return Candidate{}, false, err
	}
	if reached {
		advLog.Debug("Advertiser cap reached")
		return Candidate{}, false, nil
	}
	return c, true, nil
}

// CapReached re-counts the sent attempts of a candidate scope against its caps
func (r *EligibilityResolverImpl) CapReached(ctx context.Context, candidate Candidate) (bool, error) {
	return r.capReached(ctx, candidate, r.now())
}

func (r *EligibilityResolverImpl) capReached(ctx context.Context, c Candidate, now time.Time) (bool, error) {
	if c.Advertiser == nil || c.Advertiser.IsSynthetic() {
		return false, nil
	}
	if c.DailyCap > 0 {
		sent, err := r.attemptRepo.CountSent(ctx, c.Scope, utils.StartOfUTCDay(now))
		if err != nil {
			return false, fmt.Errorf("count daily attempts: %w", err)
		}
		if sent >= int64(c.DailyCap) {
			return true, nil
		}
	}
	if c.HourlyCap != nil {
		sent, err := r.attemptRepo.CountSent(ctx, c.Scope, now.Add(-utils.HourlyWindow))
		if err != nil {
			return false, fmt.Errorf("count hourly attempts: %w", err)
		}
		if sent >= int64(*c.HourlyCap) {
			return true, nil
		}
	}
	return false, nil
}

// dailyCap picks the rule cap, then the advertiser cap, then the configured default.
// Non-positive values count as unset.
func (r *EligibilityResolverImpl) dailyCap(terms models.RoutingTerms, adv *models.Advertiser) int {
	if terms.DailyCap != nil && *terms.DailyCap > 0 {
		return *terms.DailyCap
	}
	if adv.DailyCap != nil && *adv.DailyCap > 0 {
		return *adv.DailyCap
	}
	return r.defaultDailyCap
}

func hourlyCap(terms models.RoutingTerms, adv *models.Advertiser) *int {
	if terms.HourlyCap != nil && *terms.HourlyCap > 0 {
		return terms.HourlyCap
	}
	if adv.HourlyCap != nil && *adv.HourlyCap > 0 {
		return adv.HourlyCap
	}
	return nil
}

// settingAllows applies the country and affiliate allow-lists of a global setting
func settingAllows(setting *models.DistributionSetting, lead *models.Lead) bool {
	if len(setting.Countries) > 0 {
		country := lead.Country()
		if country == "" || !slices.ContainsFunc(setting.Countries, func(c string) bool {
			return strings.EqualFold(strings.TrimSpace(c), country)
		}) {
			return false
		}
	}
	if len(setting.AffiliateIDs) > 0 {
		if lead.AffiliateID == nil || !slices.Contains(setting.AffiliateIDs, int64(*lead.AffiliateID)) {
			return false
		}
	}
	return true
}
