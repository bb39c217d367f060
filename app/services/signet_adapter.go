package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/lead-exchange/models"
)

// SignetAdapter posts JSON leads signed with HMAC-SHA256
type SignetAdapter struct {
	transports *TransportSelector
	now        func() time.Time
}

func NewSignetAdapter(transports *TransportSelector) *SignetAdapter {
	return &SignetAdapter{transports: transports, now: time.Now}
}

func (a *SignetAdapter) Type() string { return models.AdvertiserTypeSignet }

// SignBody returns the hex HMAC-SHA256 of body under secret
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *SignetAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	f := leadFields(lead)
	body := map[string]any{
		"reference": lead.UUID.String(),
	}
	setIf(body, "first_name", f, "first_name")
	setIf(body, "last_name", f, "last_name")
	setIf(body, "email", f, "email")
	setIf(body, "phone", f, "phone")
	setIf(body, "country", f, "country_code")
	setIf(body, "ip", f, "ip")
	setIf(body, "campaign", f, "offer_name")
	if v := adv.ConfigString("campaign_id"); v != "" {
		body["campaign_id"] = v
	}

	raw, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	headers := jsonHeaders(map[string]string{
		"X-Api-Key":   adv.Key(),
		"X-Timestamp": strconv.FormatInt(a.now().Unix(), 10),
		"X-Signature": SignBody(raw, adv.Secret()),
	})

	resp, err := a.transports.For(a.Type(), models.TransportDirect).Do(ctx, &OutboundRequest{
		Method:  http.MethodPost,
		URL:     joinURL(adv.BaseURL, "/v1/leads"),
		Headers: headers,
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
	if e, has := doc["error"]; has && e != nil && valueString(e) != "" && valueString(e) != "false" {
		return newOutcome(resp, false, valueString(e)), nil
	}
	status, _ := doc["status"].(string)
	success, _ := doc["success"].(bool)
	if !strings.EqualFold(status, "ok") && !success {
		return newOutcome(resp, false, messageFrom(doc)), nil
	}
	return newOutcome(resp, true, ""), nil
}
