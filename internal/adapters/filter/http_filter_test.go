package filter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/history"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
)

func newTestAPI(t *testing.T, scorer core.ProbabilityScorer, store core.HistoryRepository) *HTTPFilter {
	t.Helper()
	partners := &recordingPartners{trusted: map[string]bool{"ops@acme.com": true}}
	return NewHTTPFilter(newService(t, scorer, partners, store), zap.NewNop(), config.HTTPConfig{
		Mode:         gin.TestMode,
		HistoryLimit: 50,
	})
}

func do(t *testing.T, api *HTTPFilter, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCheck_Verdict(t *testing.T) {
	api := newTestAPI(t, fixedScorer{probability: 0.8}, nil)

	rec := do(t, api, http.MethodPost, "/check/",
		`{"emailbody":"please verify your password","emailsender":"eve@evil.io"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "suspicious", resp["status"])
	assert.Equal(t, []interface{}{"verify", "password"}, resp["suswords"])
	assert.Equal(t, false, resp["is_trusted_partner"])
	assert.InDelta(t, 0.8, resp["probability"], 1e-9)

	partner, ok := resp["partner_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, core.UnknownPartnerID, partner["partner_id"])
	assert.Equal(t, "eve@evil.io", partner["email"])
}

func TestCheck_TrustedPartnerLowersProbability(t *testing.T) {
	api := newTestAPI(t, fixedScorer{probability: 0.8}, nil)

	rec := do(t, api, http.MethodPost, "/check/",
		`{"emailbody":"quarterly invoice attached","emailsender":"ops@acme.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.ThreatLevelMalicious, resp.Status)
	assert.True(t, resp.IsTrustedPartner)
	assert.InDelta(t, 0.55, resp.Probability, 1e-9)
	assert.Empty(t, resp.Suswords)
	require.NotNil(t, resp.PartnerInfo)
	assert.Equal(t, "1000042", resp.PartnerInfo.PartnerID)
}

func TestCheck_EmptySuswordsIsArray(t *testing.T) {
	api := newTestAPI(t, fixedScorer{probability: 0.1}, nil)

	rec := do(t, api, http.MethodPost, "/check/", `{"emailbody":"","emailsender":"a@b.c"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"suswords":[]`)
	assert.Contains(t, rec.Body.String(), `"status":"good"`)
}

func TestCheck_ScoringUnavailable(t *testing.T) {
	api := newTestAPI(t, fixedScorer{err: errModelDown}, nil)

	rec := do(t, api, http.MethodPost, "/check/", `{"emailbody":"hi","emailsender":"a@b.c"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"scoring unavailable"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestCheck_InvalidPayload(t *testing.T) {
	api := newTestAPI(t, fixedScorer{probability: 0.1}, nil)

	for _, body := range []string{`{"emailbody":"hi"}`, `not json`, `{}`} {
		rec := do(t, api, http.MethodPost, "/check/", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
}

func TestVerifyEmail(t *testing.T) {
	api := newTestAPI(t, fixedScorer{}, nil)

	rec := do(t, api, http.MethodPost, "/sap/verify-email/", `{"email":"ops@acme.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var record core.PartnerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.True(t, record.Verified)
	assert.Equal(t, "ops@acme.com", record.Email)

	rec = do(t, api, http.MethodPost, "/sap/verify-email/", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPartnerStatus(t *testing.T) {
	api := newTestAPI(t, fixedScorer{}, nil)

	rec := do(t, api, http.MethodGet, "/sap/status/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"configured":false,"authenticated":false,"mode":"fallback"}`, rec.Body.String())
}

func TestHistory_Disabled(t *testing.T) {
	api := newTestAPI(t, fixedScorer{}, nil)

	rec := do(t, api, http.MethodGet, "/history", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory_ListsScans(t *testing.T) {
	store := history.NewMemoryStore(zap.NewNop(), 0, 0)
	api := newTestAPI(t, fixedScorer{probability: 0.6}, store)

	for _, sender := range []string{"a@x.io", "b@x.io", "a@x.io"} {
		rec := do(t, api, http.MethodPost, "/check/", `{"emailbody":"urgent","emailsender":"`+sender+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, api, http.MethodGet, "/history?sender=a@x.io", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scans []scanRecordResponse `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Scans, 2)
	for _, scan := range resp.Scans {
		assert.Equal(t, "a@x.io", scan.Sender)
		assert.Equal(t, core.ThreatLevelMalicious, scan.Status)
		assert.Equal(t, []string{"urgent"}, scan.Suswords)
	}

	rec = do(t, api, http.MethodGet, "/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Scans, 1)

	rec = do(t, api, http.MethodGet, "/history?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	api := newTestAPI(t, fixedScorer{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/check/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://attacker.example")
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
