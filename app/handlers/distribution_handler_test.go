package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/lead-exchange/app/dto"
	businessflow "github.com/amirphl/lead-exchange/business_flow"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlow struct {
	distribute   *dto.DistributeLeadResponse
	eligibility  *dto.EligibilityResponse
	attempts     *dto.ListAttemptsResponse
	err          error
	lastRequest  *dto.DistributeLeadRequest
	lastMetadata *businessflow.ClientMetadata
	lastUUID     string
}

func (f *fakeFlow) Distribute(_ context.Context, req *dto.DistributeLeadRequest, md *businessflow.ClientMetadata) (*dto.DistributeLeadResponse, error) {
	f.lastRequest = req
	f.lastMetadata = md
	return f.distribute, f.err
}

func (f *fakeFlow) Eligibility(_ context.Context, _ *dto.EligibilityRequest, md *businessflow.ClientMetadata) (*dto.EligibilityResponse, error) {
	f.lastMetadata = md
	return f.eligibility, f.err
}

func (f *fakeFlow) ListAttempts(_ context.Context, leadUUID string) (*dto.ListAttemptsResponse, error) {
	f.lastUUID = leadUUID
	return f.attempts, f.err
}

func newTestApp(flow businessflow.DistributionFlow) *fiber.App {
	h := NewDistributionHandler(flow, 0, utils.NewDiscardLogger())
	app := fiber.New()
	app.Post("/distribute", h.Distribute)
	app.Post("/eligibility", h.Eligibility)
	app.Get("/leads/:uuid/attempts", h.ListAttempts)
	return app
}

// apiResponse mirrors dto.APIResponse with concrete field types for decoding
type apiResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func post(t *testing.T, app *fiber.App, path, body string) (int, apiResponse) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("User-Agent", "curl/8.0")
	return do(t, app, req)
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, apiResponse) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body apiResponse
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func TestDistribute_BusinessOutcomesUse200(t *testing.T) {
	tests := []struct {
		name    string
		result  *dto.DistributeLeadResponse
		success bool
	}{
		{
			name:    "accepted",
			result:  &dto.DistributeLeadResponse{Success: true, Message: "Lead distributed", State: "succeeded"},
			success: true,
		},
		{
			name:    "exhausted",
			result:  &dto.DistributeLeadResponse{Success: false, Message: "no eligible advertisers", State: "exhausted"},
			success: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &fakeFlow{distribute: tt.result}
			status, body := post(t, newTestApp(flow), "/distribute", `{"lead_id": 7}`)

			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, tt.success, body.Success)
			assert.Equal(t, tt.result.Message, body.Message)

			require.NotNil(t, flow.lastRequest)
			assert.Equal(t, uint(7), *flow.lastRequest.LeadID)
			assert.Equal(t, "req-1", flow.lastMetadata.RequestID)
		})
	}
}

func TestDistribute_RequestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"lead_id":`, "INVALID_REQUEST"},
		{"bad uuid", `{"lead_uuid": "nope"}`, "VALIDATION_ERROR"},
		{"bad test email", `{"test_mode": true, "test_lead_data": {"first_name": "a", "last_name": "b", "email": "x"}}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &fakeFlow{distribute: &dto.DistributeLeadResponse{Success: true}}
			status, body := post(t, newTestApp(flow), "/distribute", tt.body)

			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Nil(t, flow.lastRequest)
		})
	}
}

func TestDistribute_FlowErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid trigger", businessflow.NewBusinessError("INVALID_TRIGGER", "x", businessflow.ErrInvalidTrigger), fiber.StatusBadRequest, "INVALID_TRIGGER"},
		{"missing test data", businessflow.NewBusinessError("TEST_LEAD_DATA_REQUIRED", "x", businessflow.ErrTestLeadDataRequired), fiber.StatusBadRequest, "TEST_LEAD_DATA_REQUIRED"},
		{"inactive advertiser", businessflow.NewBusinessError("ADVERTISER_INACTIVE", "x", businessflow.ErrAdvertiserInactive), fiber.StatusBadRequest, "ADVERTISER_INACTIVE"},
		{"lead not found", businessflow.NewBusinessError("LEAD_NOT_FOUND", "x", businessflow.ErrLeadNotFound), fiber.StatusNotFound, "LEAD_NOT_FOUND"},
		{"advertiser not found", businessflow.NewBusinessError("ADVERTISER_NOT_FOUND", "x", businessflow.ErrAdvertiserNotFound), fiber.StatusNotFound, "ADVERTISER_NOT_FOUND"},
		{"affiliate not found", businessflow.NewBusinessError("AFFILIATE_NOT_FOUND", "x", businessflow.ErrAffiliateNotFound), fiber.StatusNotFound, "AFFILIATE_NOT_FOUND"},
		{"already distributed", businessflow.NewBusinessError("LEAD_ALREADY_DISTRIBUTED", "x", businessflow.ErrLeadAlreadyDistributed), fiber.StatusConflict, "LEAD_ALREADY_DISTRIBUTED"},
		{"persist failure", businessflow.NewBusinessError("LEAD_PERSIST_FAILED", "x", errors.Join(businessflow.ErrLeadPersistFailed, errors.New("db down"))), fiber.StatusInternalServerError, "LEAD_PERSIST_FAILED"},
		{"wrapped persist failure", fmt.Errorf("distribute lead 7: %w", businessflow.NewBusinessError("LEAD_PERSIST_FAILED", "x", businessflow.ErrLeadPersistFailed)), fiber.StatusInternalServerError, "LEAD_PERSIST_FAILED"},
		{"wrapped not found", fmt.Errorf("load: %w", businessflow.NewBusinessError("LEAD_NOT_FOUND", "x", businessflow.ErrLeadNotFound)), fiber.StatusNotFound, "LEAD_NOT_FOUND"},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError, "DISTRIBUTION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, newTestApp(&fakeFlow{err: tt.err}), "/distribute", `{"lead_id": 1}`)
			assert.Equal(t, tt.status, status)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestEligibility(t *testing.T) {
	flow := &fakeFlow{eligibility: &dto.EligibilityResponse{
		LeadUUID: "0b5e8f8a-8c3e-4c39-9d6b-0e8e7c1f2a10",
		Mode:     "affiliate",
		Primary:  []dto.EligibleAdvertiserDTO{{AdvertiserID: 3, Name: "x", Weight: 100}},
	}}
	status, body := post(t, newTestApp(flow), "/eligibility", `{"lead_uuid": "0b5e8f8a-8c3e-4c39-9d6b-0e8e7c1f2a10"}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, "affiliate", body.Data["mode"])
	assert.Equal(t, "curl/8.0", flow.lastMetadata.UserAgent)
}

func TestListAttempts(t *testing.T) {
	leadUUID := "0b5e8f8a-8c3e-4c39-9d6b-0e8e7c1f2a10"

	t.Run("found", func(t *testing.T) {
		flow := &fakeFlow{attempts: &dto.ListAttemptsResponse{LeadUUID: leadUUID}}
		status, body := do(t, newTestApp(flow), httptest.NewRequest("GET", "/leads/"+leadUUID+"/attempts", nil))
		assert.Equal(t, fiber.StatusOK, status)
		assert.True(t, body.Success)
		assert.Equal(t, leadUUID, flow.lastUUID)
	})

	t.Run("invalid uuid", func(t *testing.T) {
		flow := &fakeFlow{err: businessflow.NewBusinessError("INVALID_LEAD_UUID", "x", businessflow.ErrInvalidLeadUUID)}
		status, body := do(t, newTestApp(flow), httptest.NewRequest("GET", "/leads/abc/attempts", nil))
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_LEAD_UUID", body.Error.Code)
	})

	t.Run("unknown lead", func(t *testing.T) {
		flow := &fakeFlow{err: businessflow.NewBusinessError("LEAD_NOT_FOUND", "x", businessflow.ErrLeadNotFound)}
		status, _ := do(t, newTestApp(flow), httptest.NewRequest("GET", "/leads/"+leadUUID+"/attempts", nil))
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestHealth(t *testing.T) {
	healthy := func(context.Context) error { return nil }

	t.Run("ok", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", NewHealthHandler(map[string]HealthCheck{"database": healthy}).Health)

		status, body := do(t, app, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, fiber.StatusOK, status)
		assert.True(t, body.Success)
	})

	t.Run("degraded", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", NewHealthHandler(map[string]HealthCheck{
			"database": healthy,
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}).Health)

		status, body := do(t, app, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
		assert.Equal(t, "UNHEALTHY", body.Error.Code)
		checks, ok := body.Data["checks"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "connection refused", checks["redis"])
		assert.Equal(t, "ok", checks["database"])
	})
}
