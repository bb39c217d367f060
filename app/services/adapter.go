package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/amirphl/lead-exchange/models"
)

// ErrUnsupportedAdvertiserType is returned for advertiser types without an adapter
var ErrUnsupportedAdvertiserType = errors.New("unsupported advertiser type")

// SendOutcome is the normalized result of one delivery to an advertiser
type SendOutcome struct {
	Success        bool
	Response       string
	ExternalLeadID string
	AutologinURL   string
	StatusCode     int
	// Reason explains a failure; empty on success
	Reason string
}

// AdvertiserAdapter delivers a lead to one kind of advertiser API
type AdvertiserAdapter interface {
	Type() string
	Send(ctx context.Context, lead *models.Lead, advertiser *models.Advertiser) (*SendOutcome, error)
}

// AdapterRegistry maps advertiser types to adapters
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]AdvertiserAdapter
}

// NewAdapterRegistry creates a registry holding the given adapters
func NewAdapterRegistry(adapters ...AdvertiserAdapter) *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[string]AdvertiserAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter of a type
func (r *AdapterRegistry) Register(adapter AdvertiserAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(adapter.Type())] = adapter
}

// Get returns the adapter of a type
func (r *AdapterRegistry) Get(advertiserType string) (AdvertiserAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(advertiserType))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAdvertiserType, advertiserType)
	}
	return a, nil
}

// Types lists the registered advertiser types
func (r *AdapterRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	return out
}

// Send dispatches to the adapter registered for the advertiser's type
func (r *AdapterRegistry) Send(ctx context.Context, lead *models.Lead, advertiser *models.Advertiser) (*SendOutcome, error) {
	adapter, err := r.Get(advertiser.Type)
	if err != nil {
		return nil, err
	}
	return adapter.Send(ctx, lead, advertiser)
}

// AdapterDeps are the collaborators shared by the built-in adapters
type AdapterDeps struct {
	Transports   *TransportSelector
	Integrations CustomIntegrationSource
	// Params holds static per-type parameters, e.g. trackbox ai/ci/gi
	Params map[string]map[string]string
}

// NewDefaultAdapterRegistry registers every built-in adapter
func NewDefaultAdapterRegistry(deps AdapterDeps) *AdapterRegistry {
	return NewAdapterRegistry(
		NewTrackboxAdapter(deps.Transports, deps.Params[models.AdvertiserTypeTrackbox]),
		NewIrevAdapter(deps.Transports),
		NewAffilkaAdapter(deps.Transports),
		NewCellxpertAdapter(deps.Transports),
		NewSignetAdapter(deps.Transports),
		NewLeadbridgeAdapter(deps.Transports),
		NewPushleadAdapter(deps.Transports),
		NewCustomAdapter(deps.Transports, deps.Integrations),
		NewTestAdapter(),
	)
}

// leadFields renders the lead as named string fields; blank optional fields are left out
func leadFields(lead *models.Lead) map[string]string {
	out := map[string]string{
		"first_name": lead.FirstName,
		"last_name":  lead.LastName,
		"full_name":  lead.FullName(),
		"email":      lead.Email,
		"lead_uuid":  lead.UUID.String(),
	}
	optional := map[string]*string{
		"phone":        lead.Phone,
		"ip":           lead.IP,
		"custom1":      lead.Custom1,
		"custom2":      lead.Custom2,
		"custom3":      lead.Custom3,
		"offer_name":   lead.OfferName,
		"comment":      lead.Comment,
		"country_code": nil,
	}
	if c := lead.Country(); c != "" {
		optional["country_code"] = &c
	}
	for k, v := range optional {
		if v != nil && strings.TrimSpace(*v) != "" {
			out[k] = strings.TrimSpace(*v)
		}
	}
	for k, v := range out {
		if strings.TrimSpace(v) == "" {
			delete(out, k)
		}
	}
	return out
}

// setIf copies src[from] into dst[to] when present
func setIf(dst map[string]any, to string, src map[string]string, from string) {
	if v, ok := src[from]; ok {
		dst[to] = v
	}
}

// setFormIf copies src[from] into the form when present
func setFormIf(form url.Values, to string, src map[string]string, from string) {
	if v, ok := src[from]; ok {
		form.Set(to, v)
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(path, "/")
}

func jsonHeaders(extra map[string]string) map[string]string {
	h := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func formHeaders(extra map[string]string) map[string]string {
	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded", "Accept": "application/json"}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

// newOutcome builds an outcome from a raw response, filling identifiers from the body
func newOutcome(resp *RawResponse, success bool, reason string) *SendOutcome {
	out := &SendOutcome{
		Success:    success,
		Response:   resp.Body,
		StatusCode: resp.StatusCode,
	}
	out.ExternalLeadID, out.AutologinURL = ExtractIdentifiers(resp.Body)
	if !success {
		if reason == "" {
			reason = fmt.Sprintf("rejected with status %d", resp.StatusCode)
		}
		out.Reason = reason
	}
	return out
}

// httpFailure is the outcome of any non-2xx response
func httpFailure(resp *RawResponse) *SendOutcome {
	return newOutcome(resp, false, fmt.Sprintf("http status %d", resp.StatusCode))
}

// messageFrom returns a human readable message field of a JSON body if any
func messageFrom(doc map[string]any) string {
	for _, k := range []string{"message", "error", "errors", "msg", "reason", "detail"} {
		if v, ok := doc[k]; ok && v != nil {
			if s := valueString(v); s != "" && s != "false" {
				return s
			}
		}
	}
	return ""
}

func marshalBody(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return raw, nil
}
