package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
}

// newCapturingServer replies with status and body and records the last request
func newCapturingServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Query = r.URL.Query()
		captured.Headers = r.Header.Clone()
		captured.Body = raw
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newDirectSelector() *TransportSelector {
	return NewTransportSelector(NewDirectTransport(5*time.Second), nil, nil, utils.NewDiscardLogger())
}

func newTestLead() *models.Lead {
	return &models.Lead{
		UUID:        uuid.MustParse("6f1c2b3a-1111-4222-8333-944445555666"),
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		Phone:       utils.ToPtr("+441234567890"),
		CountryCode: utils.ToPtr("gb"),
		IP:          utils.ToPtr("81.2.69.142"),
		OfferName:   utils.ToPtr("crypto-uk"),
	}
}

func newAdvertiser(advType, baseURL string) *models.Advertiser {
	return &models.Advertiser{
		ID:        7,
		Name:      "Acme " + advType,
		Type:      advType,
		BaseURL:   baseURL,
		APIKey:    utils.ToPtr("key-123"),
		APISecret: utils.ToPtr("secret-456"),
	}
}

func decodeJSONBody(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
