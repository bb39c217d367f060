package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/amirphl/lead-exchange/models"
)

// IrevAdapter posts JSON leads with a bearer token
type IrevAdapter struct {
	transports *TransportSelector
}

func NewIrevAdapter(transports *TransportSelector) *IrevAdapter {
	return &IrevAdapter{transports: transports}
}

func (a *IrevAdapter) Type() string { return models.AdvertiserTypeIrev }

func (a *IrevAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	f := leadFields(lead)
	body := map[string]any{}
	setIf(body, "first_name", f, "first_name")
	setIf(body, "last_name", f, "last_name")
	setIf(body, "email", f, "email")
	setIf(body, "phone", f, "phone")
	setIf(body, "country", f, "country_code")
	setIf(body, "ip", f, "ip")
	setIf(body, "offer", f, "offer_name")
	setIf(body, "aff_sub", f, "custom1")
	setIf(body, "aff_sub2", f, "custom2")
	setIf(body, "aff_sub3", f, "custom3")
	if v := adv.ConfigString("offer_id"); v != "" {
		body["offer_id"] = v
	}
	if v := adv.ConfigString("funnel"); v != "" {
		body["funnel"] = v
	}

	raw, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	resp, err := a.transports.For(a.Type(), models.TransportRelay).Do(ctx, &OutboundRequest{
		Method:  http.MethodPost,
		URL:     joinURL(adv.BaseURL, "/api/v2/leads"),
		Headers: jsonHeaders(map[string]string{"Authorization": "Bearer " + adv.Key()}),
		Body:    raw,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Is2xx() {
		return httpFailure(resp), nil
	}

	doc, ok := decodeJSONObject(strings.TrimSpace(resp.Body))
	if !ok {
		return newOutcome(resp, false, "unparseable response"), nil
	}
	if success, _ := doc["success"].(bool); !success {
		return newOutcome(resp, false, messageFrom(doc)), nil
	}
	return newOutcome(resp, true, ""), nil
}
