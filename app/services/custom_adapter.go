package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/amirphl/lead-exchange/models"
)

// CustomIntegrationSource loads data driven integration definitions
type CustomIntegrationSource interface {
	ByAdvertiserID(ctx context.Context, advertiserID uint) (*models.CustomIntegration, error)
}

// CustomAdapter talks to advertisers described by a CustomIntegration record
type CustomAdapter struct {
	transports   *TransportSelector
	integrations CustomIntegrationSource
}

func NewCustomAdapter(transports *TransportSelector, integrations CustomIntegrationSource) *CustomAdapter {
	return &CustomAdapter{transports: transports, integrations: integrations}
}

func (a *CustomAdapter) Type() string { return models.AdvertiserTypeCustom }

func (a *CustomAdapter) Send(ctx context.Context, lead *models.Lead, adv *models.Advertiser) (*SendOutcome, error) {
	if a.integrations == nil {
		return nil, fmt.Errorf("custom integrations are not configured")
	}
	integ, err := a.integrations.ByAdvertiserID(ctx, adv.ID)
	if err != nil {
		return nil, fmt.Errorf("load custom integration: %w", err)
	}
	if integ == nil {
		return nil, fmt.Errorf("no custom integration defined for advertiser %d", adv.ID)
	}

	req, err := BuildCustomRequest(integ, lead, adv)
	if err != nil {
		return nil, err
	}
	resp, err := a.transports.ForMode(a.Type(), integ.Transport).Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return EvaluateCustomResponse(integ, resp), nil
}

// BuildCustomRequest renders the outbound request of a custom integration
func BuildCustomRequest(integ *models.CustomIntegration, lead *models.Lead, adv *models.Advertiser) (*OutboundRequest, error) {
	source := leadFields(lead)
	fields := map[string]string{}
	for target, from := range integ.FieldMappings {
		name, ok := from.(string)
		if !ok {
			continue
		}
		if v, ok := source[name]; ok {
			fields[target] = v
		}
	}
	for k, v := range integ.StaticFields {
		if s := valueString(v); s != "" {
			fields[k] = s
		}
	}

	headers := map[string]string{}
	query := url.Values{}
	authField := ""
	if integ.AuthField != nil {
		authField = strings.TrimSpace(*integ.AuthField)
	}
	switch integ.AuthStyle {
	case models.AuthStyleHeader:
		if authField == "" {
			authField = "X-Api-Key"
		}
		headers[authField] = adv.Key()
	case models.AuthStyleBearer:
		headers["Authorization"] = "Bearer " + adv.Key()
	case models.AuthStyleBasic:
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(adv.Key()+":"+adv.Secret()))
	case models.AuthStyleQuery:
		if authField == "" {
			authField = "api_key"
		}
		query.Set(authField, adv.Key())
	case models.AuthStyleBody:
		if authField == "" {
			authField = "api_key"
		}
		fields[authField] = adv.Key()
	case models.AuthStyleNone, "":
	default:
		return nil, fmt.Errorf("unknown auth style %q", integ.AuthStyle)
	}

	method := strings.ToUpper(strings.TrimSpace(integ.Method))
	if method == "" {
		method = http.MethodPost
	}

	out := &OutboundRequest{Method: method}
	if method == http.MethodGet {
		for k, v := range fields {
			query.Set(k, v)
		}
		out.Headers = headers
		if _, ok := out.Headers["Accept"]; !ok {
			out.Headers["Accept"] = "application/json"
		}
	} else {
		switch integ.ContentType {
		case models.ContentTypeForm:
			form := url.Values{}
			for k, v := range fields {
				form.Set(k, v)
			}
			out.Body = []byte(form.Encode())
			out.Headers = formHeaders(headers)
		case models.ContentTypeJSON, "":
			raw, err := marshalBody(fields)
			if err != nil {
				return nil, err
			}
			out.Body = raw
			out.Headers = jsonHeaders(headers)
		default:
			return nil, fmt.Errorf("unknown content type %q", integ.ContentType)
		}
	}

	out.URL = joinURL(adv.BaseURL, integ.Path)
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(out.URL, "?") {
			sep = "&"
		}
		out.URL += sep + query.Encode()
	}
	return out, nil
}

// EvaluateCustomResponse applies error indicators first, then success indicators, else
// accepts any 2xx response.
func EvaluateCustomResponse(integ *models.CustomIntegration, resp *RawResponse) *SendOutcome {
	if !resp.Is2xx() {
		return httpFailure(resp)
	}

	doc, isJSON := decodeJSONAny(resp.Body)
	for _, ind := range integ.ErrorIndicators {
		if isJSON && indicatorMatches(doc, ind) {
			return newOutcome(resp, false, fmt.Sprintf("error indicator %s matched", ind.Path))
		}
	}

	var out *SendOutcome
	switch {
	case len(integ.SuccessIndicators) == 0:
		out = newOutcome(resp, true, "")
	case !isJSON:
		return newOutcome(resp, false, "success indicators configured but response is not JSON")
	default:
		matched := false
		for _, ind := range integ.SuccessIndicators {
			if indicatorMatches(doc, ind) {
				matched = true
				break
			}
		}
		if !matched {
			return newOutcome(resp, false, "no success indicator matched")
		}
		out = newOutcome(resp, true, "")
	}

	if isJSON && integ.ExternalIDPath != nil {
		if v, ok := lookupPath(doc, *integ.ExternalIDPath); ok {
			if s := valueString(v); s != "" {
				out.ExternalLeadID = s
			}
		}
	}
	if isJSON && integ.AutologinPath != nil {
		if v, ok := lookupPath(doc, *integ.AutologinPath); ok {
			if s := valueString(v); s != "" {
				out.AutologinURL = s
			}
		}
	}
	return out
}

// indicatorMatches compares case-insensitively; an empty value only requires presence
func indicatorMatches(doc any, ind models.ResponseIndicator) bool {
	v, ok := lookupPath(doc, ind.Path)
	if !ok {
		return false
	}
	if ind.Value == "" {
		return v != nil
	}
	return strings.EqualFold(valueString(v), ind.Value)
}
