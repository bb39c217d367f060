package services

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/amirphl/lead-exchange/models"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type stubIntegrations map[uint]*models.CustomIntegration

func (s stubIntegrations) ByAdvertiserID(_ context.Context, id uint) (*models.CustomIntegration, error) {
	return s[id], nil
}

func baseIntegration() *models.CustomIntegration {
	return &models.CustomIntegration{
		AdvertiserID: 7,
		Path:         "/intake",
		Method:       http.MethodPost,
		ContentType:  models.ContentTypeJSON,
		AuthStyle:    models.AuthStyleHeader,
		FieldMappings: datatypes.JSONMap{
			"fname":   "first_name",
			"mail":    "email",
			"geo":     "country_code",
			"sub":     "custom1",
			"unknown": 5,
		},
		StaticFields: datatypes.JSONMap{"source": "exchange", "campaign": float64(12)},
		Transport:    models.TransportDirect,
	}
}

func TestBuildCustomRequest(t *testing.T) {
	lead := newTestLead()
	adv := newAdvertiser(models.AdvertiserTypeCustom, "https://adv.test/")

	t.Run("json with header auth", func(t *testing.T) {
		req, err := BuildCustomRequest(baseIntegration(), lead, adv)
		require.NoError(t, err)
		assert.Equal(t, "https://adv.test/intake", req.URL)
		assert.Equal(t, "key-123", req.Headers["X-Api-Key"])
		assert.Equal(t, "application/json", req.Headers["Content-Type"])

		body := decodeJSONBody(t, req.Body)
		assert.Equal(t, map[string]any{
			"fname":    "Ada",
			"mail":     "ada@example.com",
			"geo":      "GB",
			"source":   "exchange",
			"campaign": "12",
		}, body)
	})

	t.Run("form with body auth", func(t *testing.T) {
		integ := baseIntegration()
		integ.ContentType = models.ContentTypeForm
		integ.AuthStyle = models.AuthStyleBody
		integ.AuthField = utils.ToPtr("secret_token")

		req, err := BuildCustomRequest(integ, lead, adv)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(req.Body))
		require.NoError(t, err)
		assert.Equal(t, "key-123", form.Get("secret_token"))
		assert.Equal(t, "Ada", form.Get("fname"))
	})

	t.Run("get with query auth", func(t *testing.T) {
		integ := baseIntegration()
		integ.Method = "get"
		integ.Path = "/intake?v=2"
		integ.AuthStyle = models.AuthStyleQuery

		req, err := BuildCustomRequest(integ, lead, adv)
		require.NoError(t, err)
		assert.Nil(t, req.Body)

		parsed, err := url.Parse(req.URL)
		require.NoError(t, err)
		assert.Equal(t, "2", parsed.Query().Get("v"))
		assert.Equal(t, "key-123", parsed.Query().Get("api_key"))
		assert.Equal(t, "ada@example.com", parsed.Query().Get("mail"))
	})

	t.Run("bearer and basic", func(t *testing.T) {
		integ := baseIntegration()
		integ.AuthStyle = models.AuthStyleBearer
		req, err := BuildCustomRequest(integ, lead, adv)
		require.NoError(t, err)
		assert.Equal(t, "Bearer key-123", req.Headers["Authorization"])

		integ.AuthStyle = models.AuthStyleBasic
		req, err = BuildCustomRequest(integ, lead, adv)
		require.NoError(t, err)
		assert.Equal(t, "Basic a2V5LTEyMzpzZWNyZXQtNDU2", req.Headers["Authorization"])
	})

	t.Run("unknown auth style", func(t *testing.T) {
		integ := baseIntegration()
		integ.AuthStyle = "magic"
		_, err := BuildCustomRequest(integ, lead, adv)
		assert.Error(t, err)
	})
}

func TestEvaluateCustomResponse(t *testing.T) {
	withIndicators := func() *models.CustomIntegration {
		integ := baseIntegration()
		integ.SuccessIndicators = datatypes.JSONSlice[models.ResponseIndicator]{{Path: "result.status", Value: "created"}}
		integ.ErrorIndicators = datatypes.JSONSlice[models.ResponseIndicator]{{Path: "error"}}
		integ.ExternalIDPath = utils.ToPtr("result.ref")
		integ.AutologinPath = utils.ToPtr("result.links.0")
		return integ
	}

	tests := []struct {
		name    string
		integ   *models.CustomIntegration
		resp    RawResponse
		success bool
		extID   string
		login   string
	}{
		{
			name:    "plain 2xx without indicators",
			integ:   baseIntegration(),
			resp:    RawResponse{StatusCode: 201, Body: "thanks"},
			success: true,
		},
		{
			name:  "non 2xx",
			integ: baseIntegration(),
			resp:  RawResponse{StatusCode: 400, Body: `{"ok":true}`},
		},
		{
			name:    "success indicator with paths",
			integ:   withIndicators(),
			resp:    RawResponse{StatusCode: 200, Body: `{"result":{"status":"CREATED","ref":1234,"links":["https://adv.test/login/1"]}}`},
			success: true,
			extID:   "1234",
			login:   "https://adv.test/login/1",
		},
		{
			name:  "error indicator checked first",
			integ: withIndicators(),
			resp:  RawResponse{StatusCode: 200, Body: `{"result":{"status":"created"},"error":"duplicate"}`},
		},
		{
			name:  "success indicator missing",
			integ: withIndicators(),
			resp:  RawResponse{StatusCode: 200, Body: `{"result":{"status":"pending"}}`},
		},
		{
			name:  "indicators need json",
			integ: withIndicators(),
			resp:  RawResponse{StatusCode: 200, Body: `created`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp
			out := EvaluateCustomResponse(tt.integ, &resp)
			assert.Equal(t, tt.success, out.Success)
			if tt.extID != "" {
				assert.Equal(t, tt.extID, out.ExternalLeadID)
			}
			if tt.login != "" {
				assert.Equal(t, tt.login, out.AutologinURL)
			}
			if !tt.success {
				assert.NotEmpty(t, out.Reason)
			}
		})
	}
}

func TestCustomAdapter_Send(t *testing.T) {
	srv, captured := newCapturingServer(t, http.StatusOK, `{"accepted":true,"id":"CU-1"}`)
	integ := baseIntegration()
	integ.SuccessIndicators = datatypes.JSONSlice[models.ResponseIndicator]{{Path: "accepted", Value: "true"}}

	adapter := NewCustomAdapter(newDirectSelector(), stubIntegrations{7: integ})
	out, err := adapter.Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeCustom, srv.URL))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "CU-1", out.ExternalLeadID)
	assert.Equal(t, "/intake", captured.Path)

	missing := NewCustomAdapter(newDirectSelector(), stubIntegrations{})
	_, err = missing.Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeCustom, srv.URL))
	assert.Error(t, err)
}
