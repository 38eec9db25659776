package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/notify"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/ports"
)

// NotifierFactory creates verdict notifiers
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier connects to the broker. It returns nil when publishing is
// disabled.
func (f *NotifierFactory) CreateNotifier() (ports.Notifier, error) {
	notifierCfg := f.cfg.GetNotifier()
	if !notifierCfg.Enabled {
		f.logger.Info("Verdict notifier disabled")
		return nil, nil
	}

	n, err := notify.Connect(notifierCfg.URL, notifierCfg.Exchange, notifierCfg.Timeout, f.logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}
