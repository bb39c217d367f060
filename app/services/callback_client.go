package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AffiliateCallbackPayload is posted to an affiliate after its lead was accepted
type AffiliateCallbackPayload struct {
	Event          string    `json:"event"`
	LeadUUID       uuid.UUID `json:"lead_uuid"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	CountryCode    string    `json:"country_code,omitempty"`
	AdvertiserName string    `json:"advertiser_name"`
	ExternalLeadID string    `json:"external_lead_id,omitempty"`
	AutologinURL   string    `json:"autologin_url,omitempty"`
	DistributedAt  time.Time `json:"distributed_at"`
}

// CallbackResult describes one callback delivery
type CallbackResult struct {
	Payload    string
	StatusCode int
	Response   string
}

// Success reports a 2xx callback response
func (r *CallbackResult) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// AffiliateCallbackClient notifies affiliates about accepted leads
type AffiliateCallbackClient interface {
	Notify(ctx context.Context, callbackURL string, payload AffiliateCallbackPayload) (*CallbackResult, error)
}

// HTTPCallbackClient posts callbacks as JSON
type HTTPCallbackClient struct {
	HTTPClient *http.Client
}

// NewHTTPCallbackClient creates a callback client with the given timeout
func NewHTTPCallbackClient(timeout time.Duration) *HTTPCallbackClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCallbackClient{HTTPClient: &http.Client{Timeout: timeout}}
}

// Notify posts the payload. The returned result carries the encoded payload even when err is set.
func (c *HTTPCallbackClient) Notify(ctx context.Context, callbackURL string, payload AffiliateCallbackPayload) (*CallbackResult, error) {
	if payload.Event == "" {
		payload.Event = "lead.distributed"
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode callback payload: %w", err)
	}
	result := &CallbackResult{Payload: string(raw)}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(raw))
	if err != nil {
		return result, fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "lead-exchange-callback/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	result.StatusCode = resp.StatusCode
	result.Response = string(body)
	if !result.Success() {
		return result, fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return result, nil
}
