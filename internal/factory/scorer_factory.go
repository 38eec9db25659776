package factory

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/bedrock"
	"github.com/mikey/phishing-detector/internal/adapters/gemini"
	"github.com/mikey/phishing-detector/internal/adapters/modelserver"
	"github.com/mikey/phishing-detector/internal/adapters/openai"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/utils"
)

// ScorerFactory creates probability scorers
type ScorerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScorerFactory creates a new scorer factory
func NewScorerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ScorerFactory {
	return &ScorerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateScorer creates the scorer selected by scorer.provider
func (f *ScorerFactory) CreateScorer() (core.ProbabilityScorer, error) {
	provider := f.cfg.GetScorer().Provider
	f.logger.Info("Creating probability scorer", zap.String("provider", provider))

	switch provider {
	case "modelserver":
		msCfg := f.cfg.GetModelServer()
		// The service bounds each call with scorer.timeout
		return modelserver.NewScorer(msCfg.URL, msCfg.MaxBodySize, &http.Client{}, f.textProcessor, f.logger), nil
	case "bedrock":
		scorer, err := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateScorer()
		if err != nil {
			return nil, err
		}
		return scorer, nil
	case "gemini":
		scorer, err := gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateScorer()
		if err != nil {
			return nil, err
		}
		return scorer, nil
	case "openai":
		scorer, err := openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateScorer()
		if err != nil {
			return nil, err
		}
		return scorer, nil
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", provider)
	}
}
