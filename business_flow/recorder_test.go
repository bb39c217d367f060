package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/lead-exchange/app/services"
	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_TruncatesStoredText(t *testing.T) {
	fx := newFlowFixture()
	recorder := NewResultRecorder(fx.attempts, fx.leads, fx.counters, fx.rejections, fx.callbackLog, fx.callbacks,
		RecorderConfig{ResponseMaxLength: 10, ReasonMaxLength: 5}, testLogger())
	adv := newAdvertiser(1, "x")

	attempt := recorder.Record(context.Background(), AttemptRecord{
		Lead:      newLead(0, "A@B.com", "US", nil),
		Candidate: Candidate{Advertiser: adv, Priority: models.PriorityTypeFallback},
		Outcome:   &services.SendOutcome{Response: strings.Repeat("r", 50), Reason: "duplicate email"},
		Duration:  1500 * time.Millisecond,
	})
	require.NotNil(t, attempt)

	assert.Equal(t, "rrrrrrrrrr", *attempt.Response)
	assert.Equal(t, "dupli", *attempt.ErrorMessage)
	assert.Equal(t, int64(1500), attempt.DurationMs)
	assert.Equal(t, models.PriorityTypeFallback, attempt.Tier)
	assert.Nil(t, attempt.LeadID, "leads without id keep a NULL reference")
	assert.Equal(t, "dupli", fx.rejections.rejections[rejectionKey{"a@b.com", 1}])
}

func TestRecorder_SyntheticAdvertiserOnlyStampsLead(t *testing.T) {
	fx := newFlowFixture()
	lead := newLead(1, "a@b.com", "US", nil)
	require.NoError(t, fx.leads.Save(context.Background(), lead))

	attempt := fx.recorder.Record(context.Background(), AttemptRecord{
		Lead:      lead,
		Candidate: Candidate{Advertiser: models.NewTestAdvertiser()},
		Outcome:   &services.SendOutcome{Success: true},
	})

	assert.Nil(t, attempt)
	assert.Empty(t, fx.attempts.all())
	leads, failed := fx.counters.counts(0)
	assert.Zero(t, leads)
	assert.Zero(t, failed)
	assert.Empty(t, fx.rejections.rejections)

	stored := fx.leads.get(lead.ID)
	require.NotNil(t, stored.DistributedAt)
	assert.Nil(t, stored.DistributedAdvertiserID)
}

func TestRecorder_MissingRelayIsNotRemembered(t *testing.T) {
	fx := newFlowFixture()
	adv := newAdvertiser(2, "y")

	attempt := fx.recorder.Record(context.Background(), AttemptRecord{
		Lead:      newLead(1, "a@b.com", "US", nil),
		Candidate: Candidate{Advertiser: adv},
		Err:       fmt.Errorf("irev: %w", services.ErrRelayNotConfigured),
	})
	require.NotNil(t, attempt)

	assert.Equal(t, models.AttemptStatusFailed, attempt.Status)
	assert.Contains(t, *attempt.ErrorMessage, "relay")
	_, failed := fx.counters.counts(adv.ID)
	assert.Equal(t, int64(1), failed)
	assert.Empty(t, fx.rejections.rejections)
}

func TestRecorder_FailedCallbackIsLogged(t *testing.T) {
	fx := newFlowFixture()
	fx.callbacks.status = 502
	fx.callbacks.err = errors.New("callback returned status 502")
	aff := fx.addAffiliate(4, false, "https://affiliate.example.com/hook")
	lead := newLead(1, "a@b.com", "US", utils.ToPtr(aff.ID))
	require.NoError(t, fx.leads.Save(context.Background(), lead))

	fx.recorder.Record(context.Background(), AttemptRecord{
		Lead:      lead,
		Affiliate: aff,
		Candidate: Candidate{Advertiser: newAdvertiser(2, "y")},
		Outcome:   &services.SendOutcome{Success: true, AutologinURL: "https://y.example.com/auto", ExternalLeadID: "e-1"},
	})
	fx.recorder.Wait()

	logs := fx.callbackLog.all()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Equal(t, 502, *logs[0].StatusCode)
	assert.Equal(t, "callback returned status 502", *logs[0].ErrorMessage)
	assert.Equal(t, uint(4), logs[0].AffiliateID)
	assert.Equal(t, lead.UUID, logs[0].LeadUUID)
}

func TestRecorder_NoCallbackWithoutAutologin(t *testing.T) {
	fx := newFlowFixture()
	aff := fx.addAffiliate(4, false, "https://affiliate.example.com/hook")

	fx.recorder.Record(context.Background(), AttemptRecord{
		Lead:      newLead(1, "a@b.com", "US", utils.ToPtr(aff.ID)),
		Affiliate: aff,
		Candidate: Candidate{Advertiser: newAdvertiser(2, "y")},
		Outcome:   &services.SendOutcome{Success: true, ExternalLeadID: "e-1"},
	})
	fx.recorder.Wait()

	assert.Empty(t, fx.callbackLog.all())
}

func TestNewClientMetadata_DeviceInfo(t *testing.T) {
	cm := NewClientMetadata("10.1.1.1", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")

	assert.Equal(t, "true", cm.DeviceInfo["mobile"])
	assert.Equal(t, "Safari", cm.DeviceInfo["browser"])
	assert.NotEmpty(t, cm.DeviceInfo["os"])

	fields := cm.Fields()
	assert.Equal(t, "10.1.1.1", fields["ip_address"])
	assert.Equal(t, "true", fields["ua_mobile"])

	empty := NewClientMetadata("", "")
	assert.Empty(t, empty.DeviceInfo)
}
