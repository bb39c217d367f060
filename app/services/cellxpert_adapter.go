package services

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/amirphl/lead-exchange/models"
)

// CellxpertAdapter posts form leads with HTTP basic auth
type CellxpertAdapter struct {
	transports *TransportSelector
}

func NewCellxpertAdapter(transports *TransportSelector) *CellxpertAdapter {
	return &CellxpertAdapter{transports: transports}
}

func (a *CellxpertAdapter) Type() string { return models.AdvertiserTypeCellxpert }

func (a *CellxpertAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	f := leadFields(lead)
	form := url.Values{}
	setFormIf(form, "firstname", f, "first_name")
	setFormIf(form, "lastname", f, "last_name")
	setFormIf(form, "email", f, "email")
	setFormIf(form, "phone", f, "phone")
	setFormIf(form, "country", f, "country_code")
	setFormIf(form, "ip", f, "ip")
	setFormIf(form, "comment", f, "comment")
	if v := adv.ConfigString("affiliate_id"); v != "" {
		form.Set("affid", v)
	}

	user := adv.ConfigString("username")
	if user == "" {
		user = adv.Key()
	}
	auth := base64.StdEncoding.EncodeToString([]byte(user + ":" + adv.Secret()))

	resp, err := a.transports.For(a.Type(), models.TransportRelay).Do(ctx, &OutboundRequest{
		Method:  http.MethodPost,
		URL:     joinURL(adv.BaseURL, "/api/") + "?command=addlead",
		Headers: formHeaders(map[string]string{"Authorization": "Basic " + auth}),
		Body:    []byte(form.Encode()),
	})
	if err != nil {
		return nil, err
	}
	if !resp.Is2xx() {
		return httpFailure(resp), nil
	}

	body := strings.TrimSpace(resp.Body)
	if doc, ok := decodeJSONObject(body); ok {
		status, _ := doc["status"].(string)
		if !strings.EqualFold(status, "success") {
			return newOutcome(resp, false, messageFrom(doc)), nil
		}
		return newOutcome(resp, true, ""), nil
	}
	if strings.Contains(strings.ToLower(body), "error") {
		return newOutcome(resp, false, body), nil
	}
	return newOutcome(resp, true, ""), nil
}
