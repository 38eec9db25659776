package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/lexicon"
	"github.com/mikey/phishing-detector/internal/logging"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideService(container); err != nil {
		return nil, err
	}

	return container, nil
}

// provideService registers everything downstream of the config and logger
func provideService(container *dig.Container) error {
	// Register factories
	for _, constructor := range []interface{}{
		factory.NewTextProcessorFactory,
		factory.NewScorerFactory,
		factory.NewHistoryFactory,
		factory.NewPartnerFactory,
		factory.NewNotifierFactory,
		factory.NewFilterFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register lexicon; a bad lexicon stops the process from starting
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.WordMatcher, error) {
		lex, err := lexicon.Load(cfg.GetLexicon().Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded lexicon",
			zap.String("path", cfg.GetLexicon().Path),
			zap.Int("terms", lex.Size()))
		return lex, nil
	}); err != nil {
		return err
	}

	// Register probability scorer
	if err := container.Provide(func(f *factory.ScorerFactory) (core.ProbabilityScorer, error) {
		return f.CreateScorer()
	}); err != nil {
		return err
	}

	// Register partner directory client
	if err := container.Provide(func(f *factory.PartnerFactory) core.PartnerVerifier {
		return f.CreateClient()
	}); err != nil {
		return err
	}

	// Register history store and notifier; both may be nil
	if err := container.Provide(func(f *factory.HistoryFactory) (ports.HistoryStore, error) {
		return f.CreateHistoryStore()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.NotifierFactory) (ports.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return err
	}

	// Register service options
	if err := container.Provide(func(cfg *config.Config) core.ServiceOptions {
		return core.ServiceOptions{
			ScoreTimeout: cfg.GetScorer().Timeout,
			HistoryTTL:   cfg.GetHistory().TTL,
		}
	}); err != nil {
		return err
	}

	// Register threat scoring service
	if err := container.Provide(func(
		lex core.WordMatcher,
		scorer core.ProbabilityScorer,
		partners core.PartnerVerifier,
		store ports.HistoryStore,
		notifier ports.Notifier,
		logger *zap.Logger,
		opts core.ServiceOptions,
	) *core.ThreatScoringService {
		var history core.HistoryRepository
		if store != nil {
			history = store
		}
		var verdicts core.VerdictNotifier
		if notifier != nil {
			verdicts = notifier
		}
		return core.NewThreatScoringService(lex, scorer, partners, history, verdicts, logger, opts)
	}); err != nil {
		return err
	}

	// Register email filter
	return container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	})
}
