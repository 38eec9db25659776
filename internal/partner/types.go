package partner

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultCollectionPath is the business partner collection of the directory
// OData service
const DefaultCollectionPath = "/s4hanacloud/sap/opu/odata/sap/API_BUSINESS_PARTNER/A_BusinessPartner"

// Config holds the partner directory client settings. Every credential is
// optional; without them the client runs in fallback mode.
type Config struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	AuthURL           string
	CollectionPath    string
	Timeout           time.Duration
	TrustedDomains    []string
	AuthRetryInterval time.Duration
}

// Configured reports whether every value needed to reach the directory is set
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.ClientID != "" && c.ClientSecret != "" && c.AuthURL != ""
}

// tokenResponse is the token endpoint payload
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (t *tokenResponse) validate() error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return errors.New("token response missing access_token")
	}
	if t.ExpiresIn < 0 {
		return errors.Errorf("token response has negative expires_in %d", t.ExpiresIn)
	}
	return nil
}

// partnerEntry is one business partner returned by the directory
type partnerEntry struct {
	BusinessPartner         string  `json:"BusinessPartner"`
	BusinessPartnerFullName *string `json:"BusinessPartnerFullName"`
	BusinessPartnerType     *string `json:"BusinessPartnerType"`
}

// partnerQueryResponse is the OData v2 envelope of a partner query
type partnerQueryResponse struct {
	D *struct {
		Results []partnerEntry `json:"results"`
	} `json:"d"`
}

func (r *partnerQueryResponse) validate() error {
	if r.D == nil {
		return errors.New("partner response missing d")
	}
	if r.D.Results == nil {
		return errors.New("partner response missing d.results")
	}
	for i, entry := range r.D.Results {
		if strings.TrimSpace(entry.BusinessPartner) == "" {
			return errors.Errorf("partner result %d missing BusinessPartner", i)
		}
	}
	return nil
}
