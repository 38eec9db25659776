package di

import (
	"flag"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Scorer flags
	Provider       string
	ModelServerURL string
	MaxBodySize    int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Detection flags
	LexiconPath    string
	TrustedDomains string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}
	RegisterFlags(flag.CommandLine, flags)
	flag.Parse()
	return flags
}

// RegisterFlags binds the CLI flags to fs
func RegisterFlags(fs *flag.FlagSet, flags *CLIFlags) {
	fs.StringVar(&flags.Provider, "provider", "modelserver", "Scorer provider (modelserver, bedrock, gemini, openai)")
	fs.StringVar(&flags.ModelServerURL, "model-server-url", "http://localhost:8501/predict", "Local model server endpoint")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum email body size sent to the scorer")

	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")

	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")

	fs.StringVar(&flags.LexiconPath, "lexicon", "./configs/suswords.json", "Suspicious word list (.json, .yaml)")
	fs.StringVar(&flags.TrustedDomains, "trusted-domains", "", "Comma-separated trusted partner domains used by the fallback")

	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging and a readable summary")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			applyCLIOverrides(cfg, flags)
			return cfg, nil
		}

		return config.NewWithOverrides(configFromFlags(flags))
	}); err != nil {
		return nil, err
	}

	if err := provideService(container); err != nil {
		return nil, err
	}

	return container, nil
}

// applyCLIOverrides forces the one-shot settings of the CLI on a loaded file
func applyCLIOverrides(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("history.enabled", false)
	v.Set("notifier.enabled", false)
}

// configFromFlags maps command line flags onto config keys
func configFromFlags(flags *CLIFlags) map[string]interface{} {
	values := map[string]interface{}{
		"server.filter_type": "cli",
		"cli.verbose":        flags.Verbose,
		"history.enabled":    false,
		"notifier.enabled":   false,
		"scorer.provider":    flags.Provider,
		"lexicon.path":       flags.LexiconPath,
	}

	switch flags.Provider {
	case "modelserver":
		values["model_server.url"] = flags.ModelServerURL
		values["model_server.max_body_size"] = flags.MaxBodySize
	case "bedrock":
		values["bedrock.region"] = flags.BedrockRegion
		values["bedrock.model_id"] = flags.BedrockModelID
		values["bedrock.max_body_size"] = flags.MaxBodySize
	case "gemini":
		setIfNotEmpty(values, "gemini.api_key", flags.GeminiAPIKey)
		values["gemini.model_name"] = flags.GeminiModelName
		values["gemini.max_body_size"] = flags.MaxBodySize
	case "openai":
		setIfNotEmpty(values, "openai.api_key", flags.OpenAIAPIKey)
		values["openai.model_name"] = flags.OpenAIModelName
		values["openai.max_body_size"] = flags.MaxBodySize
	}

	if flags.TrustedDomains != "" {
		var domains []string
		for _, d := range strings.Split(flags.TrustedDomains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				domains = append(domains, d)
			}
		}
		values["partner.trusted_domains"] = domains
	}

	return values
}

// setIfNotEmpty keeps environment provided secrets when the flag is unset
func setIfNotEmpty(values map[string]interface{}, key, value string) {
	if value != "" {
		values[key] = value
	}
}
