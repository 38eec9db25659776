package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultTrustedDomains are the partner domains trusted when the directory
// cannot be reached
var DefaultTrustedDomains = []string{
	"sap.com",
	"microsoft.com",
	"oracle.com",
	"ibm.com",
	"accenture.com",
	"deloitte.com",
	"pwc.com",
	"ey.com",
}

// Checker matches sender domains against an allow-list of trusted domains.
// A domain matches an entry when it ends with the entry.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = normalize(domain)
		if domain == "" {
			continue
		}
		normalizedDomains = append(normalizedDomains, domain)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	if len(normalizedDomains) > 0 {
		logger.Info("Initialized trusted domain checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// Domains returns the normalized allow-list
func (c *Checker) Domains() []string {
	out := make([]string, len(c.domains))
	copy(out, c.domains)
	return out
}

// Domain returns the part of an email address after the last '@', or ""
// when there is none
func Domain(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 {
		return ""
	}
	return email[idx+1:]
}

// IsWhitelisted checks if the sender's domain is trusted
func (c *Checker) IsWhitelisted(from string) bool {
	domain := Domain(from)
	if domain == "" {
		return false
	}

	if c.Matches(domain) {
		c.logger.Debug("Domain is trusted",
			zap.String("domain", domain),
			zap.String("email", from))
		return true
	}

	return false
}

// Matches reports whether domain ends with an entry in the allow-list, so
// "mail.sap.com" and "notsap.com" both match "sap.com". Comparison is
// case-insensitive.
func (c *Checker) Matches(domain string) bool {
	domain = normalize(domain)
	if domain == "" {
		return false
	}

	for _, trusted := range c.domains {
		if strings.HasSuffix(domain, trusted) {
			return true
		}
	}

	return false
}

func normalize(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
