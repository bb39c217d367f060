package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/amirphl/lead-exchange/models"
)

// PushleadAdapter pushes leads with a GET request
type PushleadAdapter struct {
	transports *TransportSelector
}

func NewPushleadAdapter(transports *TransportSelector) *PushleadAdapter {
	return &PushleadAdapter{transports: transports}
}

func (a *PushleadAdapter) Type() string { return models.AdvertiserTypePushlead }

func (a *PushleadAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	f := leadFields(lead)
	q := url.Values{"token": {adv.Key()}}
	setFormIf(q, "first_name", f, "first_name")
	setFormIf(q, "last_name", f, "last_name")
	setFormIf(q, "email", f, "email")
	setFormIf(q, "phone", f, "phone")
	setFormIf(q, "country", f, "country_code")
	setFormIf(q, "ip", f, "ip")
	setFormIf(q, "sub1", f, "custom1")

	resp, err := a.transports.For(a.Type(), models.TransportRelay).Do(ctx, &OutboundRequest{
		Method: http.MethodGet,
		URL:    joinURL(adv.BaseURL, "/lead/push") + "?" + q.Encode(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.Is2xx() {
		return httpFailure(resp), nil
	}

	body := strings.TrimSpace(resp.Body)
	if doc, ok := decodeJSONObject(body); ok {
		if okFlag, _ := doc["ok"].(bool); !okFlag {
			return newOutcome(resp, false, messageFrom(doc)), nil
		}
		return newOutcome(resp, true, ""), nil
	}

	// Plain text protocol: "OK" or "OK:<id>"
	upper := strings.ToUpper(body)
	if upper != "OK" && !strings.HasPrefix(upper, "OK:") {
		return newOutcome(resp, false, body), nil
	}
	out := newOutcome(resp, true, "")
	if _, id, found := strings.Cut(body, ":"); found && strings.TrimSpace(id) != "" {
		out.ExternalLeadID = strings.TrimSpace(id)
	}
	return out, nil
}
