package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	externalIDKeys = []string{
		"lead_id", "leadId", "leadID", "customer_id", "customerId", "id", "uuid",
		"client_id", "clientId", "user_id", "userId",
	}
	autologinKeys = []string{
		"autologin_url", "autoLoginUrl", "autologinUrl", "auto_login_url", "login_url",
		"loginUrl", "redirect_url", "redirectUrl", "url", "link",
	}
	responseContainers = []string{"data", "result", "lead", "details", "customer"}

	uuidPattern      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	quotedIDPattern  = regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9_])["']?(?:lead_?id|customer_?id|client_?id|user_?id|id)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{1,64})`)
	autologinPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>\\]*(?:auto-?login|login|token=|redirect)[^\s"'<>\\]*`)
)

// ExtractIdentifiers pulls the advertiser's lead id and autologin URL out of a response body.
// JSON bodies are searched at the top level and then inside common containers only.
// Regular expressions are used when the body is not JSON.
func ExtractIdentifiers(body string) (externalID, autologinURL string) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ""
	}

	if doc, ok := decodeJSONObject(trimmed); ok {
		externalID = firstScalar(doc, externalIDKeys)
		autologinURL = firstURL(doc, autologinKeys)
		for _, name := range responseContainers {
			nested, ok := doc[name].(map[string]any)
			if !ok {
				continue
			}
			if externalID == "" {
				externalID = firstScalar(nested, externalIDKeys)
			}
			if autologinURL == "" {
				autologinURL = firstURL(nested, autologinKeys)
			}
		}
		return externalID, autologinURL
	}

	if m := uuidPattern.FindString(trimmed); m != "" {
		externalID = m
	} else if m := quotedIDPattern.FindStringSubmatch(trimmed); len(m) == 2 {
		externalID = m[1]
	}
	return externalID, autologinPattern.FindString(trimmed)
}

// decodeJSONObject decodes an object body, or the first object of an array body
func decodeJSONObject(body string) (map[string]any, bool) {
	if body == "" || (body[0] != '{' && body[0] != '[') {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		if len(t) > 0 {
			if m, ok := t[0].(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func firstScalar(doc map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarString(doc[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstURL(doc map[string]any, keys []string) string {
	for _, k := range keys {
		s, ok := doc[k].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			return s
		}
	}
	return ""
}

// scalarString renders strings and numbers; everything else is ""
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// lookupPath walks a dot separated path ("data.items.0.id") through maps and arrays
func lookupPath(doc any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch t := cur.(type) {
		case map[string]any:
			next, ok := t[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(t) {
				return nil, false
			}
			cur = t[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// valueString renders any JSON value for comparisons
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case string, json.Number, float64, int, int64:
		return scalarString(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	}
}

// decodeJSONAny decodes any JSON body with numbers preserved
func decodeJSONAny(body string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(body)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}
