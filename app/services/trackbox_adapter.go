package services

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/amirphl/lead-exchange/models"
)

// TrackboxAdapter posts leads to a Trackbox signup form endpoint
type TrackboxAdapter struct {
	transports *TransportSelector
	params     map[string]string
}

func NewTrackboxAdapter(transports *TransportSelector, params map[string]string) *TrackboxAdapter {
	return &TrackboxAdapter{transports: transports, params: params}
}

func (a *TrackboxAdapter) Type() string { return models.AdvertiserTypeTrackbox }

// param prefers the advertiser config over the static adapter parameters
func (a *TrackboxAdapter) param(adv *models.Advertiser, key string) string {
	if v := adv.ConfigString(key); v != "" {
		return v
	}
	return strings.TrimSpace(a.params[key])
}

func (a *TrackboxAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	f := leadFields(lead)
	body := map[string]any{
		"password": generatePassword(),
	}
	for _, key := range []string{"ai", "ci", "gi"} {
		if v := a.param(adv, key); v != "" {
			body[key] = v
		}
	}
	setIf(body, "userip", f, "ip")
	setIf(body, "firstname", f, "first_name")
	setIf(body, "lastname", f, "last_name")
	setIf(body, "email", f, "email")
	setIf(body, "phone", f, "phone")
	setIf(body, "so", f, "offer_name")
	setIf(body, "sub", f, "custom1")
	if lang := adv.ConfigString("lg"); lang != "" {
		body["lg"] = lang
	}

	raw, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"x-api-key": adv.Key()}
	if u := a.param(adv, "username"); u != "" {
		headers["x-trackbox-username"] = u
	}
	if p := a.param(adv, "password"); p != "" {
		headers["x-trackbox-password"] = p
	}

	resp, err := a.transports.For(a.Type(), models.TransportDirect).Do(ctx, &OutboundRequest{
		Method:  http.MethodPost,
		URL:     joinURL(adv.BaseURL, "/api/signup/procform"),
		Headers: jsonHeaders(headers),
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
	if status, _ := doc["status"].(bool); !status {
		return newOutcome(resp, false, messageFrom(doc)), nil
	}

	out := newOutcome(resp, true, "")
	if s, ok := doc["data"].(string); ok && strings.HasPrefix(s, "http") {
		out.AutologinURL = s
	}
	return out, nil
}

const (
	pwLower  = "abcdefghijkmnopqrstuvwxyz"
	pwUpper  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	pwDigits = "23456789"
)

// generatePassword returns a 10 character password with at least one lower, upper and digit
func generatePassword() string {
	all := pwLower + pwUpper + pwDigits
	buf := []byte{
		pwLower[rand.IntN(len(pwLower))],
		pwUpper[rand.IntN(len(pwUpper))],
		pwDigits[rand.IntN(len(pwDigits))],
	}
	for len(buf) < 10 {
		buf = append(buf, all[rand.IntN(len(all))])
	}
	rand.Shuffle(len(buf), func(i, j int) { buf[i], buf[j] = buf[j], buf[i] })
	return string(buf)
}
