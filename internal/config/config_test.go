package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	require.NoError(t, cfg.Validate())

	scorer := cfg.GetScorer()
	assert.Equal(t, "modelserver", scorer.Provider)
	assert.Equal(t, 30*time.Second, scorer.Timeout)

	partner := cfg.GetPartner()
	assert.Equal(t, 10*time.Second, partner.Timeout)
	assert.Equal(t, 30*time.Second, partner.AuthRetryInterval)
	assert.Empty(t, partner.ClientID)
	assert.Contains(t, partner.TrustedDomains, "sap.com")
	assert.Len(t, partner.TrustedDomains, 8)

	history := cfg.GetHistory()
	assert.True(t, history.Enabled)
	assert.Equal(t, "memory", history.Type)
	assert.Equal(t, 720*time.Hour, history.TTL)

	notifier := cfg.GetNotifier()
	assert.False(t, notifier.Enabled)
	assert.Equal(t, "phishing", notifier.Exchange)

	smtp := cfg.GetSMTP()
	assert.Equal(t, "X-Phish-Level", smtp.Headers.Level)
	assert.Equal(t, 10026, smtp.PostfixPort)

	assert.Equal(t, "http", cfg.GetServer().FilterType)
	assert.Equal(t, "0.0.0.0:8000", cfg.GetHTTP().ListenAddress)
}

func TestLegacyEnvAliases(t *testing.T) {
	t.Setenv("SAP_API_BASE_URL", "https://directory.example")
	t.Setenv("SAP_CLIENT_ID", "legacy-id")
	t.Setenv("SAP_CLIENT_SECRET", "legacy-secret")
	t.Setenv("SAP_AUTH_URL", "https://auth.example/token")

	v := NewEmptyViper()
	require.NoError(t, bindEnv(v))
	partner := NewFromViper(v).GetPartner()

	assert.Equal(t, "https://directory.example", partner.BaseURL)
	assert.Equal(t, "legacy-id", partner.ClientID)
	assert.Equal(t, "legacy-secret", partner.ClientSecret)
	assert.Equal(t, "https://auth.example/token", partner.AuthURL)
}

func TestPrefixedEnvWinsOverAlias(t *testing.T) {
	t.Setenv("SAP_CLIENT_ID", "legacy-id")
	t.Setenv("PHISH_DETECTOR_PARTNER_CLIENT_ID", "new-id")
	t.Setenv("PHISH_DETECTOR_SCORER_PROVIDER", "openai")

	v := NewEmptyViper()
	require.NoError(t, bindEnv(v))
	cfg := NewFromViper(v)

	assert.Equal(t, "new-id", cfg.GetPartner().ClientID)
	assert.Equal(t, "openai", cfg.GetScorer().Provider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"bad duration", "partner.timeout", "soon"},
		{"negative duration", "history.ttl", "-1h"},
		{"zero scorer timeout", "scorer.timeout", "0s"},
		{"unknown provider", "scorer.provider", "crystal-ball"},
		{"empty lexicon path", "lexicon.path", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewEmptyViper()
			v.Set(tt.key, tt.value)

			assert.Error(t, NewFromViper(v).Validate())
		})
	}
}

func TestNewWithOverrides_RejectsZeroScorerTimeout(t *testing.T) {
	_, err := NewWithOverrides(map[string]interface{}{"scorer.timeout": "0s"})

	assert.ErrorContains(t, err, "scorer.timeout")
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scorer:
  provider: bedrock
  timeout: 5s
partner:
  base_url: https://directory.example
  trusted_domains:
    - example.com
history:
  type: sqlite
  sqlite_path: /tmp/history.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "bedrock", cfg.GetScorer().Provider)
	assert.Equal(t, 5*time.Second, cfg.GetScorer().Timeout)
	assert.Equal(t, []string{"example.com"}, cfg.GetPartner().TrustedDomains)
	assert.Equal(t, "sqlite", cfg.GetHistory().Type)
	assert.Equal(t, "/tmp/history.db", cfg.GetHistory().SQLitePath)
	assert.Equal(t, 10*time.Second, cfg.GetPartner().Timeout)
}

func TestNewFromFile_Missing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestNewWithOverrides(t *testing.T) {
	t.Setenv("SAP_CLIENT_ID", "legacy-id")

	cfg, err := NewWithOverrides(map[string]interface{}{
		"scorer.provider":    "gemini",
		"history.enabled":    false,
		"lexicon.path":       "/tmp/words.yaml",
		"server.filter_type": "cli",
	})

	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.GetScorer().Provider)
	assert.False(t, cfg.GetHistory().Enabled)
	assert.Equal(t, "/tmp/words.yaml", cfg.GetLexicon().Path)
	assert.Equal(t, "cli", cfg.GetServer().FilterType)
	assert.Equal(t, "legacy-id", cfg.GetPartner().ClientID)

	_, err = NewWithOverrides(map[string]interface{}{"scorer.provider": "crystal-ball"})
	assert.Error(t, err)
}
