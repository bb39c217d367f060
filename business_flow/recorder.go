package businessflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/lead-exchange/app/services"
	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/repository"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/sirupsen/logrus"
)

// AttemptRecord is everything known about one adapter call
type AttemptRecord struct {
	Lead      *models.Lead
	Affiliate *models.Affiliate
	Candidate Candidate
	Outcome   *services.SendOutcome
	Err       error
	Duration  time.Duration
}

// Succeeded reports whether the advertiser accepted the lead
func (r AttemptRecord) Succeeded() bool {
	return r.Err == nil && r.Outcome != nil && r.Outcome.Success
}

// Reason is the stored explanation of a failed attempt
func (r AttemptRecord) Reason() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.Outcome != nil && r.Outcome.Reason != "" {
		return r.Outcome.Reason
	}
	return "rejected by advertiser"
}

// ResultRecorder persists attempt side effects
type ResultRecorder interface {
	Record(ctx context.Context, rec AttemptRecord) *models.DistributionAttempt
	Wait()
}

// RecorderImpl writes attempts, counters, rejection memory and affiliate callbacks.
// Write failures are logged and never abort the caller.
type RecorderImpl struct {
	attemptRepo     repository.DistributionAttemptRepository
	leadRepo        repository.LeadRepository
	counterRepo     repository.ConversionCounterRepository
	rejectionRepo   repository.LeadRejectionRepository
	callbackLogRepo repository.CallbackLogRepository
	callbackClient  services.AffiliateCallbackClient
	callbackTimeout time.Duration
	responseMax     int
	reasonMax       int
	logger          logrus.FieldLogger
	now             func() time.Time

	callbacks sync.WaitGroup
}

// RecorderConfig holds the tunables of the recorder
type RecorderConfig struct {
	CallbackTimeout   time.Duration
	ResponseMaxLength int
	ReasonMaxLength   int
}

// NewResultRecorder creates a new result recorder
func NewResultRecorder(
	attemptRepo repository.DistributionAttemptRepository,
	leadRepo repository.LeadRepository,
	counterRepo repository.ConversionCounterRepository,
	rejectionRepo repository.LeadRejectionRepository,
	callbackLogRepo repository.CallbackLogRepository,
	callbackClient services.AffiliateCallbackClient,
	cfg RecorderConfig,
	logger logrus.FieldLogger,
) *RecorderImpl {
	if cfg.ResponseMaxLength <= 0 {
		cfg.ResponseMaxLength = utils.DefaultResponseMaxLength
	}
	if cfg.ReasonMaxLength <= 0 {
		cfg.ReasonMaxLength = utils.DefaultReasonMaxLength
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = 10 * time.Second
	}
	return &RecorderImpl{
		attemptRepo:     attemptRepo,
		leadRepo:        leadRepo,
		counterRepo:     counterRepo,
		rejectionRepo:   rejectionRepo,
		callbackLogRepo: callbackLogRepo,
		callbackClient:  callbackClient,
		callbackTimeout: cfg.CallbackTimeout,
		responseMax:     cfg.ResponseMaxLength,
		reasonMax:       cfg.ReasonMaxLength,
		logger:          logger,
		now:             utils.UTCNow,
	}
}

// Record persists one attempt and its side effects. A synthetic test advertiser
// success only stamps a stored lead. The returned attempt is nil when nothing was stored.
func (r *RecorderImpl) Record(ctx context.Context, rec AttemptRecord) *models.DistributionAttempt {
	adv := rec.Candidate.Advertiser
	success := rec.Succeeded()

	status := models.AttemptStatusFailed
	if success {
		status = models.AttemptStatusSent
	}
	distributionAttemptsTotal.WithLabelValues(adv.Type, status.String()).Inc()
	adapterRequestDuration.WithLabelValues(adv.Type).Observe(rec.Duration.Seconds())

	if adv.IsSynthetic() {
		// Only the lead stamp survives; the synthetic advertiser has no counters or memory.
		if success && rec.Lead.ID != 0 {
			if _, err := r.leadRepo.MarkDistributed(ctx, rec.Lead.ID, 0, r.now()); err != nil {
				r.logger.WithError(err).WithField("lead_uuid", rec.Lead.UUID.String()).Error("Failed to mark lead distributed")
			}
		}
		return nil
	}

	log := r.logger.WithFields(logrus.Fields{
		"lead_uuid":       rec.Lead.UUID.String(),
		"advertiser_id":   adv.ID,
		"advertiser_type": adv.Type,
		"tier":            rec.Candidate.Priority.String(),
	})

	attempt := &models.DistributionAttempt{
		LeadUUID:     rec.Lead.UUID,
		AdvertiserID: adv.ID,
		AffiliateID:  rec.Lead.AffiliateID,
		CountryCode:  utils.StringPtrOrNil(rec.Lead.Country()),
		Tier:         rec.Candidate.Priority,
		Status:       status,
		DurationMs:   rec.Duration.Milliseconds(),
		CreatedAt:    r.now(),
	}
	if rec.Lead.ID != 0 {
		attempt.LeadID = utils.ToPtr(rec.Lead.ID)
	}
	if rec.Outcome != nil {
		attempt.Response = utils.StringPtrOrNil(utils.Truncate(rec.Outcome.Response, r.responseMax))
		if success {
			attempt.ExternalLeadID = utils.StringPtrOrNil(rec.Outcome.ExternalLeadID)
			attempt.AutologinURL = utils.StringPtrOrNil(rec.Outcome.AutologinURL)
		}
	}
	if !success {
		attempt.ErrorMessage = utils.StringPtrOrNil(utils.Truncate(rec.Reason(), r.reasonMax))
	}

	if err := r.attemptRepo.Save(ctx, attempt); err != nil {
		log.WithError(err).Error("Failed to store distribution attempt")
	}

	if success {
		r.recordSuccess(ctx, log, rec, attempt)
	} else {
		r.recordFailure(ctx, log, rec)
	}
	return attempt
}

func (r *RecorderImpl) recordSuccess(ctx context.Context, log logrus.FieldLogger, rec AttemptRecord, attempt *models.DistributionAttempt) {
	adv := rec.Candidate.Advertiser

	// A transient test-mode lead has no row yet; the orchestrator stamps it on insert.
	if rec.Lead.ID != 0 {
		stamped, err := r.leadRepo.MarkDistributed(ctx, rec.Lead.ID, adv.ID, attempt.CreatedAt)
		if err != nil {
			log.WithError(err).Error("Failed to mark lead distributed")
		} else if !stamped {
			log.Info("Lead was already distributed, keeping first distribution timestamp")
		}
	}

	if err := r.counterRepo.IncrementLeads(ctx, adv.ID); err != nil {
		log.WithError(err).Error("Failed to increment advertiser lead counter")
	}

	if rec.Outcome == nil || rec.Outcome.AutologinURL == "" {
		return
	}
	if rec.Affiliate == nil || rec.Affiliate.CallbackURL == nil || *rec.Affiliate.CallbackURL == "" {
		return
	}

	payload := services.AffiliateCallbackPayload{
		LeadUUID:       rec.Lead.UUID,
		Email:          rec.Lead.Email,
		FirstName:      rec.Lead.FirstName,
		LastName:       rec.Lead.LastName,
		CountryCode:    rec.Lead.Country(),
		AdvertiserName: adv.Name,
		ExternalLeadID: rec.Outcome.ExternalLeadID,
		AutologinURL:   rec.Outcome.AutologinURL,
		DistributedAt:  attempt.CreatedAt,
	}
	affiliateID := rec.Affiliate.ID
	callbackURL := *rec.Affiliate.CallbackURL
	advertiserID := adv.ID

	r.callbacks.Add(1)
	go func() {
		defer r.callbacks.Done()
		r.dispatchCallback(log, affiliateID, advertiserID, callbackURL, payload)
	}()
}

// dispatchCallback runs detached from the request context
func (r *RecorderImpl) dispatchCallback(log logrus.FieldLogger, affiliateID, advertiserID uint, callbackURL string, payload services.AffiliateCallbackPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), r.callbackTimeout)
	defer cancel()

	result, err := r.callbackClient.Notify(ctx, callbackURL, payload)

	entry := &models.CallbackLog{
		LeadUUID:     payload.LeadUUID,
		AffiliateID:  affiliateID,
		AdvertiserID: utils.ToPtr(advertiserID),
		URL:          callbackURL,
		CreatedAt:    r.now(),
	}
	if result != nil {
		entry.Payload = result.Payload
		if result.StatusCode != 0 {
			entry.StatusCode = utils.ToPtr(result.StatusCode)
		}
		entry.Response = utils.StringPtrOrNil(utils.Truncate(result.Response, r.responseMax))
		entry.Success = err == nil && result.Success()
	}
	if err != nil {
		entry.ErrorMessage = utils.ToPtr(utils.Truncate(err.Error(), r.reasonMax))
	}

	outcome := "failed"
	if entry.Success {
		outcome = "success"
		log.WithField("callback_url", callbackURL).Info("Affiliate callback delivered")
	} else {
		log.WithError(err).WithField("callback_url", callbackURL).Warn("Affiliate callback failed")
	}
	affiliateCallbacksTotal.WithLabelValues(outcome).Inc()

	saveCtx, saveCancel := context.WithTimeout(context.Background(), r.callbackTimeout)
	defer saveCancel()
	if err := r.callbackLogRepo.Save(saveCtx, entry); err != nil {
		log.WithError(err).Error("Failed to store callback log")
	}
}

func (r *RecorderImpl) recordFailure(ctx context.Context, log logrus.FieldLogger, rec AttemptRecord) {
	adv := rec.Candidate.Advertiser

	if err := r.counterRepo.IncrementFailedLeads(ctx, adv.ID); err != nil {
		log.WithError(err).Error("Failed to increment advertiser failed lead counter")
	}

	reason := utils.Truncate(rec.Reason(), r.reasonMax)

	// The advertiser never saw the lead; remembering a rejection would block the email for good.
	if errors.Is(rec.Err, services.ErrRelayNotConfigured) {
		log.WithField("reason", reason).Error("Lead not delivered, relay transport unavailable")
		return
	}

	if err := r.rejectionRepo.Upsert(ctx, rec.Lead.NormalizedEmail(), adv.ID, reason); err != nil {
		log.WithError(err).Error("Failed to store lead rejection")
	}
	log.WithField("reason", reason).Info("Advertiser rejected lead")
}

// Wait blocks until every in-flight affiliate callback has finished
func (r *RecorderImpl) Wait() {
	r.callbacks.Wait()
}
