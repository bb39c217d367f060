package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/lead-exchange/app/dto"
	"github.com/amirphl/lead-exchange/app/services"
	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/repository"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunState is a state of the distribution state machine
type RunState string

const (
	RunStateResolving  RunState = "resolving"
	RunStateAttempting RunState = "attempting"
	RunStateSucceeded  RunState = "succeeded"
	RunStateExhausted  RunState = "exhausted"
)

// LeadSender delivers a lead to an advertiser through its protocol adapter
type LeadSender interface {
	Send(ctx context.Context, lead *models.Lead, advertiser *models.Advertiser) (*services.SendOutcome, error)
}

// DistributionFlow handles the lead distribution use cases
type DistributionFlow interface {
	Distribute(ctx context.Context, req *dto.DistributeLeadRequest, metadata *ClientMetadata) (*dto.DistributeLeadResponse, error)
	Eligibility(ctx context.Context, req *dto.EligibilityRequest, metadata *ClientMetadata) (*dto.EligibilityResponse, error)
	ListAttempts(ctx context.Context, leadUUID string) (*dto.ListAttemptsResponse, error)
}

// DistributionFlowImpl implements the distribution orchestrator
type DistributionFlowImpl struct {
	leadRepo       repository.LeadRepository
	advertiserRepo repository.AdvertiserRepository
	affiliateRepo  repository.AffiliateRepository
	attemptRepo    repository.DistributionAttemptRepository
	resolver       EligibilityResolver
	selector       *WeightedSelector
	sender         LeadSender
	recorder       ResultRecorder
	capLocker      services.CapLocker
	countries      services.CountryResolver
	logger         logrus.FieldLogger
}

// DistributionFlowOption customizes optional collaborators of the flow
type DistributionFlowOption func(*DistributionFlowImpl)

// WithCapLocker serializes cap re-check and send per cap scope
func WithCapLocker(locker services.CapLocker) DistributionFlowOption {
	return func(f *DistributionFlowImpl) {
		f.capLocker = locker
	}
}

// WithCountryResolver fills missing lead countries from the lead IP
func WithCountryResolver(resolver services.CountryResolver) DistributionFlowOption {
	return func(f *DistributionFlowImpl) {
		f.countries = resolver
	}
}

// WithSelector replaces the default weighted selector
func WithSelector(selector *WeightedSelector) DistributionFlowOption {
	return func(f *DistributionFlowImpl) {
		f.selector = selector
	}
}

// NewDistributionFlow creates a new distribution flow
func NewDistributionFlow(
	leadRepo repository.LeadRepository,
	advertiserRepo repository.AdvertiserRepository,
	affiliateRepo repository.AffiliateRepository,
	attemptRepo repository.DistributionAttemptRepository,
	resolver EligibilityResolver,
	sender LeadSender,
	recorder ResultRecorder,
	logger logrus.FieldLogger,
	opts ...DistributionFlowOption,
) DistributionFlow {
	f := &DistributionFlowImpl{
		leadRepo:       leadRepo,
		advertiserRepo: advertiserRepo,
		affiliateRepo:  affiliateRepo,
		attemptRepo:    attemptRepo,
		resolver:       resolver,
		selector:       NewWeightedSelector(nil),
		sender:         sender,
		recorder:       recorder,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// run carries the state of one orchestration
type run struct {
	lead      *models.Lead
	affiliate *models.Affiliate
	transient bool
	state     RunState
	attempts  []dto.AttemptSummary
	winner    *AttemptRecord
	log       logrus.FieldLogger
}

// Distribute routes a stored or test-mode lead to exactly one advertiser.
// Business outcomes are returned in the response; errors are reserved for invalid
// triggers, unknown entities, conflicts and storage failures.
func (f *DistributionFlowImpl) Distribute(ctx context.Context, req *dto.DistributeLeadRequest, metadata *ClientMetadata) (*dto.DistributeLeadResponse, error) {
	if err := validateTrigger(req); err != nil {
		return nil, err
	}

	// A started run always completes, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	r := &run{}
	var err error
	if req.TestMode {
		r.lead = leadFromTestData(req.TestLeadData)
		r.transient = true
	} else {
		r.lead, err = f.loadLead(ctx, req.LeadID, req.LeadUUID)
		if err != nil {
			return nil, err
		}
	}

	r.affiliate, err = f.loadAffiliate(ctx, r.lead.AffiliateID)
	if err != nil {
		return nil, err
	}

	f.fillCountry(r.lead)

	r.log = f.logger.WithFields(metadata.Fields()).WithField("lead_uuid", r.lead.UUID.String())

	var tiers *Tiers
	if req.AdvertiserID != nil {
		tiers, err = f.forcedTiers(ctx, *req.AdvertiserID, r.lead)
		if err != nil {
			return nil, err
		}
	} else {
		if r.lead.IsDistributed() {
			return nil, NewBusinessError("LEAD_ALREADY_DISTRIBUTED", "Lead has already been distributed", ErrLeadAlreadyDistributed)
		}
		r.state = RunStateResolving
		tiers, err = f.resolver.Resolve(ctx, r.lead, r.affiliate)
		if err != nil {
			return nil, NewBusinessError("ELIGIBILITY_RESOLUTION_FAILED", "Failed to resolve eligible advertisers", err)
		}
	}

	if tiers.Empty() {
		r.state = RunStateExhausted
		distributionRunsTotal.WithLabelValues(string(r.state)).Inc()
		r.log.WithField("mode", tiers.Mode).Info("No eligible advertisers for lead")
		return f.response(r, ErrNoEligibleAdvertisers.Error()), nil
	}

	if err := f.attemptTiers(ctx, r, tiers); err != nil {
		return nil, err
	}

	distributionRunsTotal.WithLabelValues(string(r.state)).Inc()
	if r.state != RunStateSucceeded {
		r.log.WithField("attempts", len(r.attempts)).Info("Lead distribution exhausted")
		return f.response(r, ErrAllCandidatesFailed.Error()), nil
	}

	r.log.WithFields(logrus.Fields{
		"advertiser_id": r.winner.Candidate.Advertiser.ID,
		"attempts":      len(r.attempts),
	}).Info("Lead distributed")
	return f.response(r, fmt.Sprintf("Lead distributed to %s", r.winner.Candidate.Advertiser.Name)), nil
}

// attemptTiers walks the primary tier, then the fallback tier, stopping at the first success
func (f *DistributionFlowImpl) attemptTiers(ctx context.Context, r *run, tiers *Tiers) error {
	r.state = RunStateAttempting
	for _, tier := range [][]Candidate{tiers.Primary, tiers.Fallback} {
		for _, candidate := range f.selector.Order(tier) {
			rec, sent, err := f.attempt(ctx, r, candidate, tiers.Mode)
			if err != nil {
				return err
			}
			if sent && rec.Succeeded() {
				r.state = RunStateSucceeded
				r.winner = rec
				return nil
			}
		}
	}
	r.state = RunStateExhausted
	return nil
}

// attempt sends the lead to one candidate and records the outcome. sent is false when
// the candidate was skipped before any call was made.
func (f *DistributionFlowImpl) attempt(ctx context.Context, r *run, c Candidate, mode EligibilityMode) (rec *AttemptRecord, sent bool, err error) {
	log := r.log.WithFields(logrus.Fields{
		"advertiser_id":   c.Advertiser.ID,
		"advertiser_type": c.Advertiser.Type,
		"tier":            c.Priority.String(),
		"state":           string(r.state),
	})

	if f.capLocker != nil && mode != EligibilityModeForced && !c.Advertiser.IsSynthetic() {
		unlock, lockErr := f.capLocker.Lock(ctx, c.Scope.Key())
		if lockErr != nil {
			log.WithError(lockErr).Warn("Skipping advertiser, cap lock unavailable")
			return nil, false, nil
		}
		defer unlock()

		reached, capErr := f.resolver.CapReached(ctx, c)
		if capErr != nil {
			log.WithError(capErr).Warn("Skipping advertiser, cap re-check failed")
			return nil, false, nil
		}
		if reached {
			log.Info("Skipping advertiser, cap filled by a concurrent run")
			return nil, false, nil
		}
	}

	start := time.Now()
	outcome, sendErr := f.sender.Send(ctx, r.lead, c.Advertiser)
	rec = &AttemptRecord{
		Lead:      r.lead,
		Affiliate: r.affiliate,
		Candidate: c,
		Outcome:   outcome,
		Err:       sendErr,
		Duration:  time.Since(start),
	}
	if sendErr != nil {
		log.WithError(sendErr).Warn("Advertiser delivery failed")
	}

	f.recorder.Record(ctx, *rec)

	summary := dto.AttemptSummary{
		AdvertiserID:   c.Advertiser.ID,
		AdvertiserName: c.Advertiser.Name,
		AdvertiserType: c.Advertiser.Type,
		Tier:           c.Priority.String(),
		Status:         models.AttemptStatusSent.String(),
		DurationMs:     rec.Duration.Milliseconds(),
	}
	if !rec.Succeeded() {
		summary.Status = models.AttemptStatusFailed.String()
		summary.Reason = utils.ToPtr(rec.Reason())
	}
	r.attempts = append(r.attempts, summary)

	if rec.Succeeded() && r.transient {
		if err := f.persistTransientLead(ctx, r.lead, c.Advertiser); err != nil {
			log.WithError(err).Error("Accepted lead could not be stored")
			return nil, true, err
		}
	}
	return rec, true, nil
}

// persistTransientLead inserts an accepted test-mode lead and links its attempts
func (f *DistributionFlowImpl) persistTransientLead(ctx context.Context, lead *models.Lead, adv *models.Advertiser) error {
	now := utils.UTCNow()
	lead.Status = models.LeadStatusDistributed
	lead.DistributedAt = &now
	if !adv.IsSynthetic() {
		lead.DistributedAdvertiserID = utils.ToPtr(adv.ID)
	}

	if err := f.leadRepo.Save(ctx, lead); err != nil {
		return NewBusinessError("LEAD_PERSIST_FAILED", "Lead accepted but could not be stored", errors.Join(ErrLeadPersistFailed, err))
	}
	if err := f.attemptRepo.AttachLead(ctx, lead.UUID, lead.ID); err != nil {
		f.logger.WithError(err).WithField("lead_uuid", lead.UUID.String()).Error("Failed to link attempts to stored lead")
	}
	return nil
}

func (f *DistributionFlowImpl) forcedTiers(ctx context.Context, advertiserID uint, lead *models.Lead) (*Tiers, error) {
	adv, err := f.advertiserRepo.ByID(ctx, advertiserID)
	if err != nil {
		return nil, NewBusinessError("ADVERTISER_LOOKUP_FAILED", "Failed to load advertiser", err)
	}
	if adv == nil {
		return nil, NewBusinessError("ADVERTISER_NOT_FOUND", "Advertiser not found", ErrAdvertiserNotFound)
	}
	if !utils.IsTrueOrUnset(adv.IsActive) {
		return nil, NewBusinessError("ADVERTISER_INACTIVE", "Advertiser is inactive", ErrAdvertiserInactive)
	}

	scope := models.CapScope{AdvertiserID: adv.ID}
	if lead.AffiliateID != nil && lead.Country() != "" {
		scope.AffiliateID = utils.ToPtr(*lead.AffiliateID)
		scope.CountryCode = utils.ToPtr(lead.Country())
	}
	return &Tiers{
		Mode: EligibilityModeForced,
		Primary: []Candidate{{
			Advertiser: adv,
			Weight:     utils.DefaultWeight,
			Priority:   models.PriorityTypePrimary,
			Scope:      scope,
		}},
	}, nil
}

// Eligibility returns the tiers a stored lead would be routed over, without sending
func (f *DistributionFlowImpl) Eligibility(ctx context.Context, req *dto.EligibilityRequest, metadata *ClientMetadata) (*dto.EligibilityResponse, error) {
	if req.LeadID == nil && req.LeadUUID == nil {
		return nil, NewBusinessError("INVALID_TRIGGER", "lead_id or lead_uuid is required", ErrInvalidTrigger)
	}

	lead, err := f.loadLead(ctx, req.LeadID, req.LeadUUID)
	if err != nil {
		return nil, err
	}
	affiliate, err := f.loadAffiliate(ctx, lead.AffiliateID)
	if err != nil {
		return nil, err
	}
	f.fillCountry(lead)

	tiers, err := f.resolver.Resolve(ctx, lead, affiliate)
	if err != nil {
		return nil, NewBusinessError("ELIGIBILITY_RESOLUTION_FAILED", "Failed to resolve eligible advertisers", err)
	}

	f.logger.WithFields(metadata.Fields()).WithFields(logrus.Fields{
		"lead_uuid": lead.UUID.String(),
		"mode":      tiers.Mode,
		"primary":   len(tiers.Primary),
		"fallback":  len(tiers.Fallback),
	}).Debug("Eligibility previewed")

	return &dto.EligibilityResponse{
		LeadUUID:    lead.UUID.String(),
		Mode:        string(tiers.Mode),
		CountryCode: lead.Country(),
		Primary:     ToEligibleAdvertiserDTOs(tiers.Primary),
		Fallback:    ToEligibleAdvertiserDTOs(tiers.Fallback),
	}, nil
}

// ListAttempts returns the attempt log of a lead. Attempts of test-mode leads that
// were never stored are still listed by uuid.
func (f *DistributionFlowImpl) ListAttempts(ctx context.Context, leadUUID string) (*dto.ListAttemptsResponse, error) {
	id, err := uuid.Parse(strings.TrimSpace(leadUUID))
	if err != nil {
		return nil, NewBusinessError("INVALID_LEAD_UUID", "Invalid lead uuid", ErrInvalidLeadUUID)
	}

	attempts, err := f.attemptRepo.ListByLeadUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("ATTEMPT_LOOKUP_FAILED", "Failed to load distribution attempts", err)
	}
	if len(attempts) == 0 {
		lead, err := f.leadRepo.ByUUID(ctx, id)
		if err != nil {
			return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to load lead", err)
		}
		if lead == nil {
			return nil, NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
		}
	}

	out := make([]dto.DistributionAttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, ToDistributionAttemptDTO(a))
	}
	return &dto.ListAttemptsResponse{LeadUUID: id.String(), Attempts: out}, nil
}

func (f *DistributionFlowImpl) loadLead(ctx context.Context, leadID *uint, leadUUID *string) (*models.Lead, error) {
	var (
		lead *models.Lead
		err  error
	)
	switch {
	case leadID != nil:
		lead, err = f.leadRepo.ByID(ctx, *leadID)
	case leadUUID != nil:
		id, parseErr := uuid.Parse(strings.TrimSpace(*leadUUID))
		if parseErr != nil {
			return nil, NewBusinessError("INVALID_LEAD_UUID", "Invalid lead uuid", ErrInvalidLeadUUID)
		}
		lead, err = f.leadRepo.ByUUID(ctx, id)
	default:
		return nil, NewBusinessError("INVALID_TRIGGER", "lead_id or lead_uuid is required", ErrInvalidTrigger)
	}
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to load lead", err)
	}
	if lead == nil {
		return nil, NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}
	return lead, nil
}

func (f *DistributionFlowImpl) loadAffiliate(ctx context.Context, affiliateID *uint) (*models.Affiliate, error) {
	if affiliateID == nil {
		return nil, nil
	}
	affiliate, err := f.affiliateRepo.ByID(ctx, *affiliateID)
	if err != nil {
		return nil, NewBusinessError("AFFILIATE_LOOKUP_FAILED", "Failed to load affiliate", err)
	}
	if affiliate == nil {
		return nil, NewBusinessError("AFFILIATE_NOT_FOUND", "Affiliate not found", ErrAffiliateNotFound)
	}
	return affiliate, nil
}

// fillCountry resolves a missing country from the lead IP. Only transient leads
// carry the resolved value into storage.
func (f *DistributionFlowImpl) fillCountry(lead *models.Lead) {
	if f.countries == nil || lead.Country() != "" || lead.IP == nil {
		return
	}
	if code, ok := f.countries.CountryCode(*lead.IP); ok {
		lead.CountryCode = utils.ToPtr(strings.ToUpper(code))
	}
}

func (f *DistributionFlowImpl) response(r *run, message string) *dto.DistributeLeadResponse {
	resp := &dto.DistributeLeadResponse{
		Success:  r.state == RunStateSucceeded,
		Message:  message,
		State:    string(r.state),
		LeadUUID: r.lead.UUID.String(),
		Attempts: r.attempts,
	}
	if resp.Attempts == nil {
		resp.Attempts = []dto.AttemptSummary{}
	}
	if r.lead.ID != 0 {
		resp.LeadID = utils.ToPtr(r.lead.ID)
	}
	if r.winner != nil {
		adv := r.winner.Candidate.Advertiser
		if !adv.IsSynthetic() {
			resp.AdvertiserID = utils.ToPtr(adv.ID)
		}
		resp.AdvertiserName = utils.ToPtr(adv.Name)
		if r.winner.Outcome != nil {
			resp.ExternalLeadID = utils.StringPtrOrNil(r.winner.Outcome.ExternalLeadID)
			resp.AutologinURL = utils.StringPtrOrNil(r.winner.Outcome.AutologinURL)
		}
	}
	return resp
}

func validateTrigger(req *dto.DistributeLeadRequest) error {
	if req == nil {
		return NewBusinessError("INVALID_TRIGGER", "Request is required", ErrInvalidTrigger)
	}
	if req.TestMode {
		if req.LeadID != nil || req.LeadUUID != nil {
			return NewBusinessError("INVALID_TRIGGER", "test_mode cannot be combined with lead_id or lead_uuid", ErrInvalidTrigger)
		}
		if req.TestLeadData == nil {
			return NewBusinessError("TEST_LEAD_DATA_REQUIRED", "test_lead_data is required in test mode", ErrTestLeadDataRequired)
		}
		return nil
	}
	if req.LeadID == nil && req.LeadUUID == nil {
		return NewBusinessError("INVALID_TRIGGER", "lead_id, lead_uuid or test_mode is required", ErrInvalidTrigger)
	}
	return nil
}

func leadFromTestData(data *dto.TestLeadData) *models.Lead {
	lead := &models.Lead{
		UUID:        uuid.New(),
		FirstName:   strings.TrimSpace(data.FirstName),
		LastName:    strings.TrimSpace(data.LastName),
		Email:       strings.TrimSpace(data.Email),
		Phone:       trimmedOrNil(data.Phone),
		IP:          trimmedOrNil(data.IP),
		Custom1:     trimmedOrNil(data.Custom1),
		Custom2:     trimmedOrNil(data.Custom2),
		Custom3:     trimmedOrNil(data.Custom3),
		OfferName:   trimmedOrNil(data.OfferName),
		Comment:     trimmedOrNil(data.Comment),
		AffiliateID: data.AffiliateID,
		Status:      models.LeadStatusNew,
	}
	if cc := trimmedOrNil(data.CountryCode); cc != nil {
		lead.CountryCode = utils.ToPtr(strings.ToUpper(*cc))
	}
	return lead
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	return utils.StringPtrOrNil(strings.TrimSpace(*s))
}
