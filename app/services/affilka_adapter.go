package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/amirphl/lead-exchange/models"
)

// AffilkaAdapter posts form encoded leads with the token in the query string
type AffilkaAdapter struct {
	transports *TransportSelector
}

func NewAffilkaAdapter(transports *TransportSelector) *AffilkaAdapter {
	return &AffilkaAdapter{transports: transports}
}

func (a *AffilkaAdapter) Type() string { return models.AdvertiserTypeAffilka }

func (a *AffilkaAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	f := leadFields(lead)
	form := url.Values{}
	setFormIf(form, "first_name", f, "first_name")
	setFormIf(form, "last_name", f, "last_name")
	setFormIf(form, "email", f, "email")
	setFormIf(form, "phone", f, "phone")
	setFormIf(form, "country", f, "country_code")
	setFormIf(form, "ip", f, "ip")
	setFormIf(form, "sub_id", f, "custom1")
	if v := adv.ConfigString("stag"); v != "" {
		form.Set("stag", v)
	}

	endpoint := joinURL(adv.BaseURL, "/api/leads") + "?" + url.Values{"token": {adv.Key()}}.Encode()
	resp, err := a.transports.For(a.Type(), models.TransportRelay).Do(ctx, &OutboundRequest{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: formHeaders(nil),
		Body:    []byte(form.Encode()),
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
	code, ok := doc["code"].(json.Number)
	if !ok || code.String() != "0" {
		return newOutcome(resp, false, messageFrom(doc)), nil
	}
	return newOutcome(resp, true, ""), nil
}
