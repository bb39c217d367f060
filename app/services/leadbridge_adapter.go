package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/amirphl/lead-exchange/models"
)

// LeadbridgeAdapter posts JSON leads with the api key inside the body
type LeadbridgeAdapter struct {
	transports *TransportSelector
}

func NewLeadbridgeAdapter(transports *TransportSelector) *LeadbridgeAdapter {
	return &LeadbridgeAdapter{transports: transports}
}

func (a *LeadbridgeAdapter) Type() string { return models.AdvertiserTypeLeadbridge }

func (a *LeadbridgeAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	f := leadFields(lead)
	body := map[string]any{"api_key": adv.Key()}
	setIf(body, "fname", f, "first_name")
	setIf(body, "lname", f, "last_name")
	setIf(body, "email", f, "email")
	setIf(body, "phone", f, "phone")
	setIf(body, "country", f, "country_code")
	setIf(body, "ip", f, "ip")
	setIf(body, "source", f, "offer_name")
	setIf(body, "click_id", f, "custom1")

	raw, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	resp, err := a.transports.For(a.Type(), models.TransportRelay).Do(ctx, &OutboundRequest{
		Method:  http.MethodPost,
		URL:     joinURL(adv.BaseURL, "/api/lead"),
		Headers: jsonHeaders(nil),
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
	result, _ := doc["result"].(string)
	switch strings.ToLower(result) {
	case "success", "accepted":
		return newOutcome(resp, true, ""), nil
	default:
		return newOutcome(resp, false, messageFrom(doc)), nil
	}
}
