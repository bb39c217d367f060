package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/amirphl/lead-exchange/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAdapterRegistry(t *testing.T) {
	registry := NewDefaultAdapterRegistry(AdapterDeps{Transports: newDirectSelector()})

	for _, advType := range []string{
		models.AdvertiserTypeTrackbox, models.AdvertiserTypeIrev, models.AdvertiserTypeAffilka,
		models.AdvertiserTypeCellxpert, models.AdvertiserTypeSignet, models.AdvertiserTypeLeadbridge,
		models.AdvertiserTypePushlead, models.AdvertiserTypeCustom, models.AdvertiserTypeTest,
	} {
		a, err := registry.Get(advType)
		require.NoError(t, err, advType)
		assert.Equal(t, advType, a.Type())
	}

	_, err := registry.Send(context.Background(), newTestLead(), newAdvertiser("carrier-pigeon", "https://x.test"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedAdvertiserType))
	assert.Contains(t, err.Error(), "unsupported advertiser type")
}

func TestTestAdapter(t *testing.T) {
	out, err := NewTestAdapter().Send(context.Background(), newTestLead(), models.NewTestAdvertiser())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "test-6f1c2b3a-1111-4222-8333-944445555666", out.ExternalLeadID)
}

func TestTrackboxAdapter(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		srv, captured := newCapturingServer(t, http.StatusOK, `{"status":true,"data":"https://brand.test/autologin?x=1","addonData":{"data":{"customerId":"C-42"}}}`)
		adv := newAdvertiser(models.AdvertiserTypeTrackbox, srv.URL)
		adv.Config = datatypes.JSONMap{"username": "tb-user", "password": "tb-pass", "ai": float64(2958033)}

		adapter := NewTrackboxAdapter(newDirectSelector(), map[string]string{"ai": "1", "ci": "1", "gi": "17"})
		out, err := adapter.Send(context.Background(), newTestLead(), adv)
		require.NoError(t, err)

		assert.True(t, out.Success)
		assert.Equal(t, "https://brand.test/autologin?x=1", out.AutologinURL)
		assert.Equal(t, "/api/signup/procform", captured.Path)
		assert.Equal(t, "tb-user", captured.Headers.Get("x-trackbox-username"))
		assert.Equal(t, "tb-pass", captured.Headers.Get("x-trackbox-password"))
		assert.Equal(t, "key-123", captured.Headers.Get("x-api-key"))

		body := decodeJSONBody(t, captured.Body)
		assert.Equal(t, "2958033", body["ai"])
		assert.Equal(t, "17", body["gi"])
		assert.Equal(t, "Ada", body["firstname"])
		assert.Equal(t, "81.2.69.142", body["userip"])
		assert.Equal(t, "crypto-uk", body["so"])
		assert.Len(t, body["password"], 10)
		assert.NotContains(t, body, "sub")
	})

	t.Run("declined", func(t *testing.T) {
		srv, _ := newCapturingServer(t, http.StatusOK, `{"status":false,"data":"Duplicate lead"}`)
		out, err := NewTrackboxAdapter(newDirectSelector(), nil).Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeTrackbox, srv.URL))
		require.NoError(t, err)
		assert.False(t, out.Success)
	})

	t.Run("http error", func(t *testing.T) {
		srv, _ := newCapturingServer(t, http.StatusInternalServerError, `{"status":true}`)
		out, err := NewTrackboxAdapter(newDirectSelector(), nil).Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeTrackbox, srv.URL))
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Equal(t, "http status 500", out.Reason)
	})
}

func TestGeneratePassword(t *testing.T) {
	for range 20 {
		pw := generatePassword()
		assert.Len(t, pw, 10)
		assert.Regexp(t, `[a-z]`, pw)
		assert.Regexp(t, `[A-Z]`, pw)
		assert.Regexp(t, `[0-9]`, pw)
	}
}

func TestIrevAdapter(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		success bool
		extID   string
	}{
		{name: "accepted", status: 200, body: `{"success":true,"lead_id":"IR-1"}`, success: true, extID: "IR-1"},
		{name: "declined", status: 200, body: `{"success":false,"message":"country not allowed"}`},
		{name: "not json", status: 200, body: `accepted`},
		{name: "http 422", status: 422, body: `{"success":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, captured := newCapturingServer(t, tt.status, tt.body)
			out, err := NewIrevAdapter(newDirectSelector()).Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeIrev, srv.URL))
			require.NoError(t, err)
			assert.Equal(t, tt.success, out.Success)
			assert.Equal(t, tt.status, out.StatusCode)
			if tt.extID != "" {
				assert.Equal(t, tt.extID, out.ExternalLeadID)
			}
			assert.Equal(t, "/api/v2/leads", captured.Path)
			assert.Equal(t, "Bearer key-123", captured.Headers.Get("Authorization"))
			body := decodeJSONBody(t, captured.Body)
			assert.Equal(t, "GB", body["country"])
			assert.NotContains(t, body, "aff_sub")
		})
	}
}

func TestAffilkaAdapter(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
	}{
		{name: "code zero", body: `{"code":0,"data":{"id":77}}`, success: true},
		{name: "code non zero", body: `{"code":3,"message":"duplicate"}`},
		{name: "code missing", body: `{"message":"?"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, captured := newCapturingServer(t, http.StatusOK, tt.body)
			out, err := NewAffilkaAdapter(newDirectSelector()).Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeAffilka, srv.URL))
			require.NoError(t, err)
			assert.Equal(t, tt.success, out.Success)
			assert.Equal(t, "/api/leads", captured.Path)
			assert.Equal(t, "key-123", captured.Query.Get("token"))

			form, err := url.ParseQuery(string(captured.Body))
			require.NoError(t, err)
			assert.Equal(t, "ada@example.com", form.Get("email"))
			assert.False(t, form.Has("sub_id"))
		})
	}
}

func TestCellxpertAdapter(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
	}{
		{name: "json success", body: `{"status":"success","lead_id":"CX-5"}`, success: true},
		{name: "json failure", body: `{"status":"failed","message":"bad phone"}`},
		{name: "plain ok", body: `Lead added 12345`, success: true},
		{name: "plain error", body: `ERROR: email exists`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, captured := newCapturingServer(t, http.StatusOK, tt.body)
			out, err := NewCellxpertAdapter(newDirectSelector()).Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeCellxpert, srv.URL))
			require.NoError(t, err)
			assert.Equal(t, tt.success, out.Success)
			assert.Equal(t, "addlead", captured.Query.Get("command"))
			user, pass, ok := (&http.Request{Header: captured.Headers}).BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "key-123", user)
			assert.Equal(t, "secret-456", pass)
		})
	}
}

func TestSignetAdapter(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
	}{
		{name: "status ok", body: `{"status":"ok","id":"S-1"}`, success: true},
		{name: "success flag", body: `{"success":true}`, success: true},
		{name: "error field wins", body: `{"status":"ok","error":"blocked"}`},
		{name: "neither", body: `{"status":"queued"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, captured := newCapturingServer(t, http.StatusOK, tt.body)
			adapter := NewSignetAdapter(newDirectSelector())
			adapter.now = func() time.Time { return time.Unix(1700000000, 0) }

			out, err := adapter.Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeSignet, srv.URL))
			require.NoError(t, err)
			assert.Equal(t, tt.success, out.Success)
			assert.Equal(t, "/v1/leads", captured.Path)
			assert.Equal(t, strconv.FormatInt(1700000000, 10), captured.Headers.Get("X-Timestamp"))
			assert.Equal(t, SignBody(captured.Body, "secret-456"), captured.Headers.Get("X-Signature"))
		})
	}
}

func TestLeadbridgeAdapter(t *testing.T) {
	tests := []struct {
		body    string
		success bool
	}{
		{body: `{"result":"success","leadId":"LB-1"}`, success: true},
		{body: `{"result":"ACCEPTED"}`, success: true},
		{body: `{"result":"rejected","reason":"dup"}`},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			srv, captured := newCapturingServer(t, http.StatusOK, tt.body)
			out, err := NewLeadbridgeAdapter(newDirectSelector()).Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypeLeadbridge, srv.URL))
			require.NoError(t, err)
			assert.Equal(t, tt.success, out.Success)
			body := decodeJSONBody(t, captured.Body)
			assert.Equal(t, "key-123", body["api_key"])
		})
	}
}

func TestPushleadAdapter(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
		extID   string
	}{
		{name: "plain ok", body: "OK", success: true},
		{name: "plain ok with id", body: "OK:99881", success: true, extID: "99881"},
		{name: "json ok", body: `{"ok":true,"id":"P-3"}`, success: true, extID: "P-3"},
		{name: "json not ok", body: `{"ok":false,"error":"cap"}`},
		{name: "plain failure", body: "FAIL duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, captured := newCapturingServer(t, http.StatusOK, tt.body)
			out, err := NewPushleadAdapter(newDirectSelector()).Send(context.Background(), newTestLead(), newAdvertiser(models.AdvertiserTypePushlead, srv.URL))
			require.NoError(t, err)
			assert.Equal(t, tt.success, out.Success)
			if tt.extID != "" {
				assert.Equal(t, tt.extID, out.ExternalLeadID)
			}
			assert.Equal(t, http.MethodGet, captured.Method)
			assert.Equal(t, "/lead/push", captured.Path)
			assert.Equal(t, "key-123", captured.Query.Get("token"))
			assert.Equal(t, "Ada", captured.Query.Get("first_name"))
		})
	}
}
