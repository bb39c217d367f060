package businessflow

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/amirphl/lead-exchange/app/services"
	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/repository"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeLeadRepo struct {
	repository.LeadRepository
	mu      sync.Mutex
	leads   map[uint]*models.Lead
	nextID  uint
	saveErr error
}

func newFakeLeadRepo(leads ...*models.Lead) *fakeLeadRepo {
	r := &fakeLeadRepo{leads: map[uint]*models.Lead{}, nextID: 1000}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeLeadRepo) ByID(_ context.Context, id uint) (*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLeadRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.UUID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLeadRepo) Save(_ context.Context, lead *models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if lead.ID == 0 {
		r.nextID++
		lead.ID = r.nextID
	}
	cp := *lead
	r.leads[lead.ID] = &cp
	return nil
}

func (r *fakeLeadRepo) MarkDistributed(_ context.Context, leadID, advertiserID uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[leadID]
	if !ok || l.DistributedAt != nil {
		return false, nil
	}
	l.DistributedAt = &at
	if advertiserID != 0 {
		l.DistributedAdvertiserID = &advertiserID
	}
	l.Status = models.LeadStatusDistributed
	return true, nil
}

func (r *fakeLeadRepo) get(id uint) *models.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[id]
}

type fakeAdvertiserRepo struct {
	repository.AdvertiserRepository
	advertisers map[uint]*models.Advertiser
}

func (r *fakeAdvertiserRepo) ByID(_ context.Context, id uint) (*models.Advertiser, error) {
	return r.advertisers[id], nil
}

type fakeAffiliateRepo struct {
	repository.AffiliateRepository
	affiliates map[uint]*models.Affiliate
}

func (r *fakeAffiliateRepo) ByID(_ context.Context, id uint) (*models.Affiliate, error) {
	return r.affiliates[id], nil
}

type fakeRuleRepo struct {
	repository.DistributionRuleRepository
	rules []*models.DistributionRule
}

func (r *fakeRuleRepo) ListByAffiliateAndCountry(_ context.Context, affiliateID uint, countryCode string) ([]*models.DistributionRule, error) {
	var out []*models.DistributionRule
	for _, rule := range r.rules {
		if rule.AffiliateID == affiliateID && rule.CountryCode == countryCode && utils.IsTrueOrUnset(rule.IsActive) {
			out = append(out, rule)
		}
	}
	return out, nil
}

type fakeSettingRepo struct {
	repository.DistributionSettingRepository
	settings []*models.DistributionSetting
}

func (r *fakeSettingRepo) ListActive(_ context.Context) ([]*models.DistributionSetting, error) {
	return r.settings, nil
}

type fakeAttemptRepo struct {
	repository.DistributionAttemptRepository
	mu       sync.Mutex
	attempts []*models.DistributionAttempt
}

func (r *fakeAttemptRepo) Save(_ context.Context, a *models.DistributionAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uint(len(r.attempts) + 1)
	cp := *a
	r.attempts = append(r.attempts, &cp)
	return nil
}

func (r *fakeAttemptRepo) CountSent(_ context.Context, scope models.CapScope, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.attempts {
		if a.AdvertiserID != scope.AdvertiserID || a.Status != models.AttemptStatusSent || a.CreatedAt.Before(since) {
			continue
		}
		if scope.AffiliateID != nil && (a.AffiliateID == nil || *a.AffiliateID != *scope.AffiliateID) {
			continue
		}
		if scope.CountryCode != nil && (a.CountryCode == nil || *a.CountryCode != *scope.CountryCode) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeAttemptRepo) AttachLead(_ context.Context, leadUUID uuid.UUID, leadID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.LeadUUID == leadUUID && a.LeadID == nil {
			a.LeadID = utils.ToPtr(leadID)
		}
	}
	return nil
}

func (r *fakeAttemptRepo) ListByLeadUUID(_ context.Context, leadUUID uuid.UUID) ([]*models.DistributionAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DistributionAttempt
	for _, a := range r.attempts {
		if a.LeadUUID == leadUUID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) all() []*models.DistributionAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.DistributionAttempt(nil), r.attempts...)
}

type rejectionKey struct {
	email        string
	advertiserID uint
}

type fakeRejectionRepo struct {
	repository.LeadRejectionRepository
	mu         sync.Mutex
	rejections map[rejectionKey]string
}

func newFakeRejectionRepo() *fakeRejectionRepo {
	return &fakeRejectionRepo{rejections: map[rejectionKey]string{}}
}

func (r *fakeRejectionRepo) AdvertiserIDsByEmail(_ context.Context, email string) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint
	for k := range r.rejections {
		if k.email == email {
			out = append(out, k.advertiserID)
		}
	}
	return out, nil
}

func (r *fakeRejectionRepo) Upsert(_ context.Context, email string, advertiserID uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections[rejectionKey{email, advertiserID}] = reason
	return nil
}

func (r *fakeRejectionRepo) has(email string, advertiserID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rejections[rejectionKey{email, advertiserID}]
	return ok
}

type fakeCounterRepo struct {
	repository.ConversionCounterRepository
	mu     sync.Mutex
	leads  map[uint]int64
	failed map[uint]int64
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{leads: map[uint]int64{}, failed: map[uint]int64{}}
}

func (r *fakeCounterRepo) IncrementLeads(_ context.Context, advertiserID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[advertiserID]++
	return nil
}

func (r *fakeCounterRepo) IncrementFailedLeads(_ context.Context, advertiserID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[advertiserID]++
	return nil
}

func (r *fakeCounterRepo) counts(advertiserID uint) (int64, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[advertiserID], r.failed[advertiserID]
}

type fakeCallbackLogRepo struct {
	repository.CallbackLogRepository
	mu   sync.Mutex
	logs []*models.CallbackLog
}

func (r *fakeCallbackLogRepo) Save(_ context.Context, l *models.CallbackLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

func (r *fakeCallbackLogRepo) all() []*models.CallbackLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.CallbackLog(nil), r.logs...)
}

type fakeCallbackClient struct {
	mu       sync.Mutex
	payloads []services.AffiliateCallbackPayload
	status   int
	err      error
}

func (c *fakeCallbackClient) Notify(_ context.Context, _ string, payload services.AffiliateCallbackPayload) (*services.CallbackResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	status := c.status
	if status == 0 {
		status = 200
	}
	return &services.CallbackResult{Payload: `{"event":"lead.distributed"}`, StatusCode: status, Response: "ok"}, c.err
}

// fakeSender answers per advertiser id; unknown advertisers fail with a transport error
type fakeSender struct {
	mu      sync.Mutex
	replies map[uint]func() (*services.SendOutcome, error)
	calls   []uint
}

func (s *fakeSender) Send(_ context.Context, _ *models.Lead, adv *models.Advertiser) (*services.SendOutcome, error) {
	s.mu.Lock()
	s.calls = append(s.calls, adv.ID)
	reply, ok := s.replies[adv.ID]
	s.mu.Unlock()
	if adv.IsSynthetic() {
		return &services.SendOutcome{Success: true, ExternalLeadID: "test-1", StatusCode: 200}, nil
	}
	if !ok {
		return nil, errors.New("connection refused")
	}
	return reply()
}

func (s *fakeSender) called() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.calls...)
}

func accept(externalID, autologin string) func() (*services.SendOutcome, error) {
	return func() (*services.SendOutcome, error) {
		return &services.SendOutcome{Success: true, Response: `{"status":true}`, ExternalLeadID: externalID, AutologinURL: autologin, StatusCode: 200}, nil
	}
}

func reject(reason string) func() (*services.SendOutcome, error) {
	return func() (*services.SendOutcome, error) {
		return &services.SendOutcome{Success: false, Response: `{"status":false}`, StatusCode: 200, Reason: reason}, nil
	}
}

func newAdvertiser(id uint, name string) *models.Advertiser {
	return &models.Advertiser{
		ID:       id,
		UUID:     uuid.New(),
		Name:     name,
		Type:     models.AdvertiserTypeIrev,
		BaseURL:  "https://" + name + ".example.com",
		IsActive: utils.ToPtr(true),
	}
}

func newLead(id uint, email, country string, affiliateID *uint) *models.Lead {
	return &models.Lead{
		ID:          id,
		UUID:        uuid.New(),
		FirstName:   "Grace",
		LastName:    "Hopper",
		Email:       email,
		CountryCode: utils.ToPtr(country),
		IP:          utils.ToPtr("81.2.69.142"),
		AffiliateID: affiliateID,
		Status:      models.LeadStatusNew,
	}
}

func newRule(affiliateID uint, country string, adv *models.Advertiser, weight int, priority models.PriorityType) *models.DistributionRule {
	return &models.DistributionRule{
		ID:           adv.ID*10 + affiliateID,
		AffiliateID:  affiliateID,
		CountryCode:  country,
		AdvertiserID: adv.ID,
		Advertiser:   adv,
		RoutingTerms: models.RoutingTerms{
			Weight:       utils.ToPtr(weight),
			PriorityType: priority,
			IsActive:     utils.ToPtr(true),
		},
	}
}

// flowFixture wires a distribution flow over in-memory fakes
type flowFixture struct {
	leads       *fakeLeadRepo
	advertisers *fakeAdvertiserRepo
	affiliates  *fakeAffiliateRepo
	rules       *fakeRuleRepo
	settings    *fakeSettingRepo
	attempts    *fakeAttemptRepo
	rejections  *fakeRejectionRepo
	counters    *fakeCounterRepo
	callbackLog *fakeCallbackLogRepo
	callbacks   *fakeCallbackClient
	sender      *fakeSender
	resolver    *EligibilityResolverImpl
	recorder    *RecorderImpl
}

func newFlowFixture() *flowFixture {
	fx := &flowFixture{
		leads:       newFakeLeadRepo(),
		advertisers: &fakeAdvertiserRepo{advertisers: map[uint]*models.Advertiser{}},
		affiliates:  &fakeAffiliateRepo{affiliates: map[uint]*models.Affiliate{}},
		rules:       &fakeRuleRepo{},
		settings:    &fakeSettingRepo{},
		attempts:    &fakeAttemptRepo{},
		rejections:  newFakeRejectionRepo(),
		counters:    newFakeCounterRepo(),
		callbackLog: &fakeCallbackLogRepo{},
		callbacks:   &fakeCallbackClient{},
		sender:      &fakeSender{replies: map[uint]func() (*services.SendOutcome, error){}},
	}
	fx.resolver = NewEligibilityResolver(fx.rules, fx.settings, fx.attempts, fx.rejections, 0, testLogger())
	fx.recorder = NewResultRecorder(fx.attempts, fx.leads, fx.counters, fx.rejections, fx.callbackLog, fx.callbacks, RecorderConfig{}, testLogger())
	return fx
}

func (fx *flowFixture) flow(opts ...DistributionFlowOption) DistributionFlow {
	return fx.flowWithResolver(fx.resolver, opts...)
}

func (fx *flowFixture) flowWithResolver(resolver EligibilityResolver, opts ...DistributionFlowOption) DistributionFlow {
	return NewDistributionFlow(fx.leads, fx.advertisers, fx.affiliates, fx.attempts, resolver, fx.sender, fx.recorder, testLogger(), opts...)
}

func (fx *flowFixture) addAdvertiser(adv *models.Advertiser) *models.Advertiser {
	fx.advertisers.advertisers[adv.ID] = adv
	return adv
}

func (fx *flowFixture) addAffiliate(id uint, testMode bool, callbackURL string) *models.Affiliate {
	aff := &models.Affiliate{
		ID:       id,
		UUID:     uuid.New(),
		Name:     "affiliate",
		TestMode: utils.ToPtr(testMode),
		IsActive: utils.ToPtr(true),
	}
	if callbackURL != "" {
		aff.CallbackURL = utils.ToPtr(callbackURL)
	}
	fx.affiliates.affiliates[id] = aff
	return aff
}
