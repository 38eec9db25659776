package partner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// directory is a fake partner directory serving both the token endpoint and
// the partner collection
type directory struct {
	authCalls   atomic.Int32
	lookupCalls atomic.Int32

	authStatus   int
	expiresIn    int64
	lookupStatus int
	lookupBody   string

	mu          sync.Mutex
	lastFilter  string
	lastAuthHdr string
	lastForm    map[string]string
	tokenSerial int
}

func newDirectory() *directory {
	return &directory{
		authStatus:   http.StatusOK,
		expiresIn:    3600,
		lookupStatus: http.StatusOK,
		lookupBody:   `{"d":{"results":[]}}`,
	}
}

func (d *directory) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		d.authCalls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}

		d.mu.Lock()
		d.lastForm = map[string]string{
			"grant_type":    r.FormValue("grant_type"),
			"client_id":     r.FormValue("client_id"),
			"client_secret": r.FormValue("client_secret"),
		}
		d.tokenSerial++
		token := "token-" + string(rune('a'+d.tokenSerial-1))
		d.mu.Unlock()

		// widen the window in which concurrent callers could race
		time.Sleep(10 * time.Millisecond)

		d.mu.Lock()
		status, expiresIn := d.authStatus, d.expiresIn
		d.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		})
	})
	mux.HandleFunc(DefaultCollectionPath, func(w http.ResponseWriter, r *http.Request) {
		d.lookupCalls.Add(1)

		d.mu.Lock()
		d.lastFilter = r.URL.Query().Get("$filter")
		d.lastAuthHdr = r.Header.Get("Authorization")
		status, body := d.lookupStatus, d.lookupBody
		d.mu.Unlock()

		if r.URL.Query().Get("$format") != "json" {
			t.Errorf("expected $format=json, got %q", r.URL.Query().Get("$format"))
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func (d *directory) setLookupStatus(status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookupStatus = status
}

func (d *directory) snapshot() (filter, authHdr string, form map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFilter, d.lastAuthHdr, d.lastForm
}

func configFor(server *httptest.Server) Config {
	return Config{
		BaseURL:      server.URL + "/",
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		AuthURL:      server.URL + "/oauth/token",
	}
}

func TestVerifyPartner_DirectoryMatch(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	dir.lookupBody = `{"d":{"results":[
		{"BusinessPartner":"1000123","BusinessPartnerFullName":"Acme Corp","BusinessPartnerType":"2"},
		{"BusinessPartner":"1000999","BusinessPartnerFullName":"Other","BusinessPartnerType":"1"}
	]}}`
	server := dir.server(t)

	client := NewClient(configFor(server), zap.NewNop())

	record, err := client.VerifyPartner(context.Background(), "alice@acme.io")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "1000123", record.PartnerID)
	require.NotNil(t, record.Name)
	assert.Equal(t, "Acme Corp", *record.Name)
	require.NotNil(t, record.Type)
	assert.Equal(t, "2", *record.Type)
	assert.Equal(t, "alice@acme.io", record.Email)
	assert.True(t, record.Verified)

	filter, authHdr, form := dir.snapshot()
	assert.Equal(t, map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "test-client-id",
		"client_secret": "test-client-secret",
	}, form)
	assert.Equal(t, "EmailAddress eq 'alice@acme.io'", filter)
	assert.Equal(t, "Bearer token-a", authHdr)
}

func TestVerifyPartner_ZeroResultsIsUnknown(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	server := dir.server(t)

	client := NewClient(configFor(server), zap.NewNop())

	// a trusted domain must not turn a genuine directory negative into a match
	record, err := client.VerifyPartner(context.Background(), "nobody@sap.com")

	require.NoError(t, err)
	assert.Equal(t, core.UnknownPartnerID, record.PartnerID)
	assert.False(t, record.Verified)
	assert.Equal(t, "nobody@sap.com", record.Email)
	assert.Nil(t, record.Name)
	assert.Equal(t, int32(1), dir.lookupCalls.Load())
}

func TestVerifyPartner_EscapesQuotes(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	_, err := client.VerifyPartner(context.Background(), "o'brien@acme.io")

	require.NoError(t, err)
	filter, _, _ := dir.snapshot()
	assert.Equal(t, "EmailAddress eq 'o''brien@acme.io'", filter)
}

func TestVerifyPartner_ReusesSession(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := client.VerifyPartner(context.Background(), "alice@acme.io")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), dir.authCalls.Load())
	assert.Equal(t, int32(3), dir.lookupCalls.Load())
}

func TestVerifyPartner_ReauthenticatesAfterExpiry(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	dir.expiresIn = 3600
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	_, err := client.VerifyPartner(context.Background(), "alice@acme.io")
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = client.VerifyPartner(context.Background(), "alice@acme.io")
	require.NoError(t, err)
	assert.Equal(t, int32(1), dir.authCalls.Load(), "session still inside its lifetime")

	now = now.Add(2 * time.Minute)
	_, err = client.VerifyPartner(context.Background(), "alice@acme.io")
	require.NoError(t, err)
	assert.Equal(t, int32(2), dir.authCalls.Load(), "expired session must be replaced")
	_, authHdr, _ := dir.snapshot()
	assert.Equal(t, "Bearer token-b", authHdr)
}

func TestVerifyPartner_NoDeclaredExpiry(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	dir.expiresIn = 0
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	_, err := client.VerifyPartner(context.Background(), "alice@acme.io")
	require.NoError(t, err)

	now = now.Add(72 * time.Hour)
	_, err = client.VerifyPartner(context.Background(), "alice@acme.io")
	require.NoError(t, err)

	assert.Equal(t, int32(1), dir.authCalls.Load())
}

func TestVerifyPartner_UnauthorizedInvalidatesSession(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	dir.lookupStatus = http.StatusUnauthorized
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	record, err := client.VerifyPartner(context.Background(), "alice@sap.com")

	require.NoError(t, err)
	assert.True(t, record.Verified, "401 must fall back to the allow-list")
	assert.Regexp(t, `^BP_\d{4}$`, record.PartnerID)
	assert.False(t, client.Status().Authenticated)

	dir.setLookupStatus(http.StatusOK)
	_, err = client.VerifyPartner(context.Background(), "alice@sap.com")
	require.NoError(t, err)
	assert.Equal(t, int32(2), dir.authCalls.Load(), "next request must authenticate again")
}

func TestVerifyPartner_MalformedResponseFallsBack(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"not json":          `<html>oops</html>`,
		"missing d":         `{"value":[]}`,
		"missing results":   `{"d":{}}`,
		"entry without id":  `{"d":{"results":[{"BusinessPartnerFullName":"x"}]}}`,
		"results not array": `{"d":{"results":"nope"}}`,
	}

	for name, body := range bodies {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := newDirectory()
			dir.lookupBody = body
			server := dir.server(t)
			client := NewClient(configFor(server), zap.NewNop())

			trusted, err := client.VerifyPartner(context.Background(), "alice@microsoft.com")
			require.NoError(t, err)
			assert.True(t, trusted.Verified)
			assert.Equal(t, fallbackPartnerID("alice@microsoft.com"), trusted.PartnerID)

			untrusted, err := client.VerifyPartner(context.Background(), "eve@evil.io")
			require.NoError(t, err)
			assert.Equal(t, core.UnknownPartnerID, untrusted.PartnerID)
			assert.False(t, untrusted.Verified)
		})
	}
}

func TestVerifyPartner_ServerErrorFallsBack(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	dir.lookupStatus = http.StatusInternalServerError
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	record, err := client.VerifyPartner(context.Background(), "alice@oracle.com")

	require.NoError(t, err)
	assert.True(t, record.Verified)
	assert.True(t, client.Status().Authenticated, "a non-401 failure keeps the session")
}

func TestVerifyPartner_NoCredentialsUsesFallbackWithoutNetwork(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, AuthURL: server.URL}, zap.NewNop())

	trusted, err := client.VerifyPartner(context.Background(), "alice@sap.com")
	require.NoError(t, err)
	assert.True(t, trusted.Verified)
	assert.Regexp(t, `^BP_\d{4}$`, trusted.PartnerID)
	require.NotNil(t, trusted.Name)
	assert.Equal(t, "Alice", *trusted.Name)
	require.NotNil(t, trusted.Type)
	assert.Equal(t, "ORGANIZATION", *trusted.Type)

	untrusted, err := client.VerifyPartner(context.Background(), "eve@evil.io")
	require.NoError(t, err)
	assert.Equal(t, core.UnknownPartnerID, untrusted.PartnerID)
	assert.False(t, untrusted.Verified)

	assert.Equal(t, int32(0), hits.Load())

	status := client.Status()
	assert.False(t, status.Configured)
	assert.False(t, status.Authenticated)
	assert.Equal(t, "fallback", status.Mode)
}

func TestVerifyPartner_AuthFailureFallsBackAndWaits(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	dir.authStatus = http.StatusForbidden
	server := dir.server(t)

	cfg := configFor(server)
	cfg.AuthRetryInterval = time.Minute
	client := NewClient(cfg, zap.NewNop())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	record, err := client.VerifyPartner(context.Background(), "alice@pwc.com")
	require.NoError(t, err)
	assert.True(t, record.Verified)

	_, err = client.VerifyPartner(context.Background(), "alice@pwc.com")
	require.NoError(t, err)
	assert.Equal(t, int32(1), dir.authCalls.Load(), "no new attempt inside the retry interval")
	assert.Equal(t, int32(0), dir.lookupCalls.Load())

	now = now.Add(2 * time.Minute)
	_, err = client.VerifyPartner(context.Background(), "alice@pwc.com")
	require.NoError(t, err)
	assert.Equal(t, int32(2), dir.authCalls.Load())
}

func TestVerifyPartner_MissingAccessTokenFallsBack(t *testing.T) {
	t.Parallel()

	var lookups atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc(DefaultCollectionPath, func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(configFor(server), zap.NewNop())

	record, err := client.VerifyPartner(context.Background(), "eve@evil.io")

	require.NoError(t, err)
	assert.Equal(t, core.UnknownPartnerID, record.PartnerID)
	assert.Equal(t, int32(0), lookups.Load())
}

func TestVerifyPartner_ConcurrentCallersAuthenticateOnce(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.VerifyPartner(context.Background(), "alice@acme.io")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dir.authCalls.Load())
	assert.Equal(t, int32(20), dir.lookupCalls.Load())
}

func TestStatus_Authenticated(t *testing.T) {
	t.Parallel()

	dir := newDirectory()
	server := dir.server(t)
	client := NewClient(configFor(server), zap.NewNop())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	assert.Equal(t, core.PartnerStatus{Configured: true, Mode: "fallback"}, client.Status())

	_, err := client.VerifyPartner(context.Background(), "alice@acme.io")
	require.NoError(t, err)

	status := client.Status()
	assert.True(t, status.Configured)
	assert.True(t, status.Authenticated)
	assert.Equal(t, "directory", status.Mode)
	require.NotNil(t, status.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour-sessionExpiryBuffer), *status.ExpiresAt)
}

func TestStatus_DoesNotWaitForAuthentication(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := NewClient(configFor(server), zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = client.VerifyPartner(context.Background(), "alice@acme.io")
	}()

	<-entered

	statusCh := make(chan core.PartnerStatus, 1)
	go func() { statusCh <- client.Status() }()

	select {
	case status := <-statusCh:
		assert.True(t, status.Configured)
		assert.False(t, status.Authenticated)
	case <-time.After(time.Second):
		t.Fatal("Status blocked while authentication was in flight")
	}

	close(release)
	<-done
}
