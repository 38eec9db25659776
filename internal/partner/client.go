// Package partner verifies email senders against the partner directory
// service, falling back to a local allow-list whenever the directory cannot
// answer.
package partner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/whitelist"
)

const (
	defaultTimeout    = 10 * time.Second
	maxResponseSize   = 1 << 20
	modeDirectory     = "directory"
	modeFallback      = "fallback"
	odataResultFormat = "json"
)

var (
	// ErrAuthUnavailable means no session could be obtained. It is never
	// returned by VerifyPartner, which falls back instead.
	ErrAuthUnavailable = errors.New("partner directory auth unavailable")

	errUnauthorized = errors.New("partner directory rejected the session")
)

// Client is the partner directory client. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	checker    *whitelist.Checker
	logger     *zap.Logger
	now        func() time.Time

	// authMu is held across authentication so at most one attempt is in
	// flight. mu guards session and lastAuthFailure and is never held
	// during network calls.
	authMu          sync.Mutex
	mu              sync.Mutex
	session         *AuthSession
	lastAuthFailure time.Time
}

// NewClient creates a new partner directory client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CollectionPath == "" {
		cfg.CollectionPath = DefaultCollectionPath
	}
	if cfg.TrustedDomains == nil {
		cfg.TrustedDomains = whitelist.DefaultTrustedDomains
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if !cfg.Configured() {
		logger.Warn("Partner directory credentials not configured, using trusted domain fallback")
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		checker:    whitelist.NewChecker(cfg.TrustedDomains, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// VerifyPartner resolves an email against the directory. Directory and
// auth failures are absorbed by the allow-list fallback, so the returned
// error is always nil.
func (c *Client) VerifyPartner(ctx context.Context, email string) (*core.PartnerRecord, error) {
	token, err := c.token(ctx)
	if err != nil {
		c.logger.Debug("Partner directory unavailable, using fallback",
			zap.String("email", email),
			zap.Error(err))
		return fallbackRecord(email, c.checker), nil
	}

	record, err := c.lookup(ctx, token, email)
	if err != nil {
		if errors.Is(err, errUnauthorized) {
			c.invalidate(token)
		}
		c.logger.Warn("Partner lookup failed, using fallback",
			zap.String("email", email),
			zap.Error(err))
		return fallbackRecord(email, c.checker), nil
	}

	return record, nil
}

// Status reports the integration state without credentials or endpoints
func (c *Client) Status() core.PartnerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := core.PartnerStatus{
		Configured: c.cfg.Configured(),
		Mode:       modeFallback,
	}

	if c.session.Valid(c.now()) {
		status.Authenticated = true
		status.Mode = modeDirectory
		if expiresAt, ok := c.session.ExpiresAt(); ok {
			status.ExpiresAt = &expiresAt
		}
	}

	return status
}

// token returns the current session token, authenticating if needed
func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok := c.currentToken(); ok {
		return token, nil
	}

	c.authMu.Lock()
	defer c.authMu.Unlock()

	// another caller may have authenticated while we waited
	if token, ok := c.currentToken(); ok {
		return token, nil
	}

	if !c.cfg.Configured() {
		return "", ErrAuthUnavailable
	}

	now := c.now()
	c.mu.Lock()
	lastFailure := c.lastAuthFailure
	c.mu.Unlock()

	if c.cfg.AuthRetryInterval > 0 && !lastFailure.IsZero() &&
		now.Sub(lastFailure) < c.cfg.AuthRetryInterval {
		return "", errors.Wrap(ErrAuthUnavailable, "waiting before next auth attempt")
	}

	session, err := c.authenticate(ctx)
	if err != nil {
		// a cancelled caller says nothing about the auth endpoint
		if ctx.Err() == nil {
			c.mu.Lock()
			c.lastAuthFailure = now
			c.mu.Unlock()
		}
		c.logger.Warn("Partner directory authentication failed", zap.Error(err))
		return "", errors.Wrap(ErrAuthUnavailable, err.Error())
	}

	c.mu.Lock()
	c.session = session
	c.lastAuthFailure = time.Time{}
	c.mu.Unlock()

	c.logger.Info("Authenticated with partner directory",
		zap.Duration("expires_in", session.ExpiresIn))

	return session.Token, nil
}

// currentToken returns the session token if the session is still valid,
// dropping an expired session
func (c *Client) currentToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Valid(c.now()) {
		return c.session.Token, true
	}
	c.session = nil
	return "", false
}

// authenticate obtains a new session with the client credentials grant.
// The caller must hold c.authMu.
func (c *Client) authenticate(ctx context.Context) (*AuthSession, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read token response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.Wrap(err, "failed to parse token response")
	}
	if err := tokenResp.validate(); err != nil {
		return nil, err
	}

	return &AuthSession{
		Token:      tokenResp.AccessToken,
		TokenType:  tokenResp.TokenType,
		ObtainedAt: c.now(),
		ExpiresIn:  time.Duration(tokenResp.ExpiresIn) * time.Second,
	}, nil
}

// invalidate drops the session if it still holds token
func (c *Client) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Token == token {
		c.session = nil
		c.logger.Info("Partner directory session invalidated")
	}
}

// lookup queries the directory for a partner with the given email
func (c *Client) lookup(ctx context.Context, token, email string) (*core.PartnerRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(email), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create partner request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "partner request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("partner directory returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read partner response")
	}

	var queryResp partnerQueryResponse
	if err := json.Unmarshal(body, &queryResp); err != nil {
		return nil, errors.Wrap(err, "failed to parse partner response")
	}
	if err := queryResp.validate(); err != nil {
		return nil, err
	}

	if len(queryResp.D.Results) == 0 {
		record := core.UnknownPartner(email)
		return &record, nil
	}

	first := queryResp.D.Results[0]
	return &core.PartnerRecord{
		PartnerID: first.BusinessPartner,
		Name:      first.BusinessPartnerFullName,
		Type:      first.BusinessPartnerType,
		Email:     email,
		Verified:  true,
	}, nil
}

// queryURL builds the OData query for email
func (c *Client) queryURL(email string) string {
	filter := "EmailAddress eq " + odataString(email)
	return c.cfg.BaseURL + c.cfg.CollectionPath +
		"?$filter=" + escapeQuery(filter) +
		"&$format=" + odataResultFormat
}

// odataString quotes s as an OData string literal
func odataString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
