package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/partner"
)

// PartnerFactory creates the partner directory client
type PartnerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPartnerFactory creates a new partner factory
func NewPartnerFactory(cfg *config.Config, logger *zap.Logger) *PartnerFactory {
	return &PartnerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a partner directory client. Missing credentials
// leave the client in fallback mode.
func (f *PartnerFactory) CreateClient() *partner.Client {
	partnerCfg := f.cfg.GetPartner()

	client := partner.NewClient(partner.Config{
		BaseURL:           partnerCfg.BaseURL,
		ClientID:          partnerCfg.ClientID,
		ClientSecret:      partnerCfg.ClientSecret,
		AuthURL:           partnerCfg.AuthURL,
		CollectionPath:    partnerCfg.CollectionPath,
		Timeout:           partnerCfg.Timeout,
		TrustedDomains:    partnerCfg.TrustedDomains,
		AuthRetryInterval: partnerCfg.AuthRetryInterval,
	}, f.logger)

	status := client.Status()
	f.logger.Info("Partner directory client created",
		zap.Bool("configured", status.Configured),
		zap.String("mode", status.Mode))

	return client
}
