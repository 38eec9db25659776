package config

import (
	"fmt"
	"time"
)

// durationKeys are validated at load time so the typed getters below can
// read them without error handling
var durationKeys = []string{
	"scorer.timeout",
	"http.read_timeout",
	"http.write_timeout",
	"partner.timeout",
	"partner.auth_retry_interval",
	"history.ttl",
	"history.cleanup_frequency",
	"notifier.timeout",
}

// ScorerConfig selects and bounds the probability scorer
type ScorerConfig struct {
	Provider string
	Timeout  time.Duration
}

// ModelServerConfig represents the configuration for the local model server
type ModelServerConfig struct {
	URL         string
	MaxBodySize int
}

// ServerConfig selects the inbound surface
type ServerConfig struct {
	FilterType string
}

// HTTPConfig represents the configuration for the HTTP API
type HTTPConfig struct {
	ListenAddress string
	Mode          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	HistoryLimit  int
}

// SMTPHeaders are the header names added to filtered messages
type SMTPHeaders struct {
	Level          string
	Probability    string
	Matched        string
	TrustedPartner string
}

// SMTPConfig represents the configuration for the SMTP content filter
type SMTPConfig struct {
	ListenAddress   string
	BlockMalicious  bool
	BlockSuspicious bool
	Headers         SMTPHeaders
	PostfixEnabled  bool
	PostfixAddress  string
	PostfixPort     int
	ModifySubject   bool
	SubjectPrefix   string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// PartnerConfig represents the configuration for the partner directory
type PartnerConfig struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	AuthURL           string
	CollectionPath    string
	Timeout           time.Duration
	AuthRetryInterval time.Duration
	TrustedDomains    []string
}

// LexiconConfig locates the suspicious term list
type LexiconConfig struct {
	Path string
}

// HistoryConfig represents the configuration for the scan history store
type HistoryConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
}

// NotifierConfig represents the configuration for verdict event publishing
type NotifierConfig struct {
	Enabled  bool
	URL      string
	Exchange string
	Timeout  time.Duration
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Validate checks values the typed getters cannot report errors for
func (c *Config) Validate() error {
	for _, key := range durationKeys {
		d, err := c.GetDuration(key)
		if err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	if d, _ := c.GetDuration("scorer.timeout"); d == 0 {
		return fmt.Errorf("scorer.timeout must be positive")
	}

	switch provider := c.GetString("scorer.provider"); provider {
	case "modelserver", "bedrock", "openai", "gemini":
	default:
		return fmt.Errorf("unsupported scorer provider: %s", provider)
	}

	if c.GetString("lexicon.path") == "" {
		return fmt.Errorf("lexicon.path must be set")
	}

	return nil
}

func (c *Config) duration(key string) time.Duration {
	d, _ := c.GetDuration(key)
	return d
}

// GetScorer returns the scorer configuration
func (c *Config) GetScorer() ScorerConfig {
	return ScorerConfig{
		Provider: c.GetString("scorer.provider"),
		Timeout:  c.duration("scorer.timeout"),
	}
}

// GetModelServer returns the model server configuration
func (c *Config) GetModelServer() ModelServerConfig {
	return ModelServerConfig{
		URL:         c.GetString("model_server.url"),
		MaxBodySize: c.GetInt("model_server.max_body_size"),
	}
}

// GetServer returns the inbound surface configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType: c.GetString("server.filter_type"),
	}
}

// GetHTTP returns the HTTP API configuration
func (c *Config) GetHTTP() HTTPConfig {
	return HTTPConfig{
		ListenAddress: c.GetString("http.listen_address"),
		Mode:          c.GetString("http.mode"),
		ReadTimeout:   c.duration("http.read_timeout"),
		WriteTimeout:  c.duration("http.write_timeout"),
		HistoryLimit:  c.GetInt("http.history_limit"),
	}
}

// GetSMTP returns the SMTP content filter configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		ListenAddress:   c.GetString("smtp.listen_address"),
		BlockMalicious:  c.GetBool("smtp.block_malicious"),
		BlockSuspicious: c.GetBool("smtp.block_suspicious"),
		Headers: SMTPHeaders{
			Level:          c.GetString("smtp.headers.level"),
			Probability:    c.GetString("smtp.headers.probability"),
			Matched:        c.GetString("smtp.headers.matched"),
			TrustedPartner: c.GetString("smtp.headers.trusted_partner"),
		},
		PostfixEnabled: c.GetBool("smtp.postfix.enabled"),
		PostfixAddress: c.GetString("smtp.postfix.address"),
		PostfixPort:    c.GetInt("smtp.postfix.port"),
		ModifySubject:  c.GetBool("smtp.modify_subject"),
		SubjectPrefix:  c.GetString("smtp.subject_prefix"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetPartner returns the partner directory configuration
func (c *Config) GetPartner() PartnerConfig {
	return PartnerConfig{
		BaseURL:           c.GetString("partner.base_url"),
		ClientID:          c.GetString("partner.client_id"),
		ClientSecret:      c.GetString("partner.client_secret"),
		AuthURL:           c.GetString("partner.auth_url"),
		CollectionPath:    c.GetString("partner.collection_path"),
		Timeout:           c.duration("partner.timeout"),
		AuthRetryInterval: c.duration("partner.auth_retry_interval"),
		TrustedDomains:    c.GetStringSlice("partner.trusted_domains"),
	}
}

// GetLexicon returns the lexicon configuration
func (c *Config) GetLexicon() LexiconConfig {
	return LexiconConfig{
		Path: c.GetString("lexicon.path"),
	}
}

// GetHistory returns the scan history configuration
func (c *Config) GetHistory() HistoryConfig {
	return HistoryConfig{
		Enabled:          c.GetBool("history.enabled"),
		Type:             c.GetString("history.type"),
		TTL:              c.duration("history.ttl"),
		CleanupFrequency: c.duration("history.cleanup_frequency"),
		SQLitePath:       c.GetString("history.sqlite_path"),
		MySQLDSN:         c.GetString("history.mysql_dsn"),
		PostgresDSN:      c.GetString("history.postgres_dsn"),
	}
}

// GetNotifier returns the verdict notifier configuration
func (c *Config) GetNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:  c.GetBool("notifier.enabled"),
		URL:      c.GetString("notifier.url"),
		Exchange: c.GetString("notifier.exchange"),
		Timeout:  c.duration("notifier.timeout"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
