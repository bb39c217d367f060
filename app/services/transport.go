// Package services provides outbound integrations: advertiser adapters, transports, affiliate callbacks and lookups
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/sirupsen/logrus"
)

// maxResponseBytes bounds how much of an upstream body is read
const maxResponseBytes = 1 << 20

// ErrRelayNotConfigured is returned for relay-only advertiser types when no relay endpoint is set
var ErrRelayNotConfigured = errors.New("relay transport required but no relay endpoint configured")

// OutboundRequest is a transport independent HTTP request
type OutboundRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// RawResponse is what came back from the advertiser, possibly through the relay
type RawResponse struct {
	StatusCode int
	Body       string
}

// Is2xx reports whether the status code is in the 2xx range
func (r *RawResponse) Is2xx() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport delivers an outbound request. Errors mean the request could not be
// delivered at all; HTTP failures are reported through RawResponse.StatusCode.
type Transport interface {
	Do(ctx context.Context, req *OutboundRequest) (*RawResponse, error)
}

// DirectTransport sends requests straight to the advertiser
type DirectTransport struct {
	HTTPClient *http.Client
}

// NewDirectTransport creates a direct transport with the given timeout
func NewDirectTransport(timeout time.Duration) *DirectTransport {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &DirectTransport{HTTPClient: &http.Client{Timeout: timeout}}
}

func (t *DirectTransport) Do(ctx context.Context, in *OutboundRequest) (*RawResponse, error) {
	method := in.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if len(in.Body) > 0 {
		body = bytes.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, in.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &RawResponse{StatusCode: resp.StatusCode, Body: string(raw)}, nil
}

// relayEnvelope is the body posted to the relay endpoint
type relayEnvelope struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// RelayTransport forwards requests through an egress relay that replays them from an
// allow-listed address and returns the upstream body verbatim.
type RelayTransport struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewRelayTransport creates a relay transport
func NewRelayTransport(endpoint string, timeout time.Duration) *RelayTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RelayTransport{
		Endpoint:   strings.TrimSpace(endpoint),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (t *RelayTransport) Do(ctx context.Context, in *OutboundRequest) (*RawResponse, error) {
	method := in.Method
	if method == "" {
		method = http.MethodPost
	}
	payload, err := json.Marshal(relayEnvelope{
		URL:     in.URL,
		Method:  method,
		Headers: in.Headers,
		Body:    string(in.Body),
	})
	if err != nil {
		return nil, fmt.Errorf("encode relay envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("relay: read response: %w", err)
	}
	body := string(raw)
	if strings.TrimSpace(body) == "" {
		body = fmt.Sprintf("[relay] empty response (status %d)", resp.StatusCode)
	}
	return &RawResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// TransportSelector picks direct or relay delivery per advertiser type
type TransportSelector struct {
	direct Transport
	relay  Transport
	modes  map[string]string
	logger logrus.FieldLogger
}

// NewTransportSelector creates a selector. relay may be nil when no relay endpoint is configured.
func NewTransportSelector(direct, relay Transport, modes map[string]string, logger logrus.FieldLogger) *TransportSelector {
	normalized := make(map[string]string, len(modes))
	for k, v := range modes {
		normalized[strings.ToLower(k)] = strings.ToLower(v)
	}
	return &TransportSelector{direct: direct, relay: relay, modes: normalized, logger: logger}
}

// ModeFor resolves the mode of an advertiser type: configured override, else the adapter default
func (s *TransportSelector) ModeFor(advertiserType, defaultMode string) string {
	if mode, ok := s.modes[strings.ToLower(advertiserType)]; ok && mode != "" {
		return mode
	}
	if defaultMode == "" {
		return models.TransportDirect
	}
	return defaultMode
}

// For returns the transport of an advertiser type
func (s *TransportSelector) For(advertiserType, defaultMode string) Transport {
	return s.ForMode(advertiserType, s.ModeFor(advertiserType, defaultMode))
}

// ForMode returns the transport of an explicit mode. A relay mode without a configured
// relay yields a transport that fails every request; it never degrades to direct.
func (s *TransportSelector) ForMode(advertiserType, mode string) Transport {
	if mode != models.TransportRelay {
		return s.direct
	}
	if s.relay == nil {
		s.logger.WithField("advertiser_type", advertiserType).
			Error("relay transport required but no relay endpoint configured")
		return missingRelay{advertiserType: advertiserType}
	}
	return s.relay
}

// missingRelay stands in for the relay when none is configured
type missingRelay struct {
	advertiserType string
}

func (t missingRelay) Do(context.Context, *OutboundRequest) (*RawResponse, error) {
	return nil, fmt.Errorf("%s: %w", t.advertiserType, ErrRelayNotConfigured)
}
