package core

import (
	"time"

	"github.com/google/uuid"
)

// UnknownPartnerID marks a sender that is not a known partner
const UnknownPartnerID = "UNKNOWN"

// EmailPayload is the inbound email to classify
type EmailPayload struct {
	Sender string `json:"emailsender"`
	Body   string `json:"emailbody"`
}

// PartnerRecord is one partner directory entry, or the UNKNOWN sentinel
type PartnerRecord struct {
	PartnerID string  `json:"partner_id"`
	Name      *string `json:"name,omitempty"`
	Type      *string `json:"type,omitempty"`
	Email     string  `json:"email"`
	Verified  bool    `json:"verified"`
}

// UnknownPartner returns the sentinel record for an unrecognised sender
func UnknownPartner(email string) PartnerRecord {
	return PartnerRecord{
		PartnerID: UnknownPartnerID,
		Email:     email,
		Verified:  false,
	}
}

// IsUnknown reports whether the record is the UNKNOWN sentinel
func (p PartnerRecord) IsUnknown() bool {
	return p.PartnerID == UnknownPartnerID
}

// ThreatLevel is the verdict band
type ThreatLevel string

const (
	ThreatLevelGood       ThreatLevel = "good"
	ThreatLevelSuspicious ThreatLevel = "suspicious"
	ThreatLevelMalicious  ThreatLevel = "malicious"
)

// ThreatVerdict is the result of classifying one email
type ThreatVerdict struct {
	Level            ThreatLevel    `json:"status"`
	MatchedWords     []string       `json:"suswords"`
	IsTrustedPartner bool           `json:"is_trusted_partner"`
	PartnerInfo      *PartnerRecord `json:"partner_info"`
	Probability      float64        `json:"probability"`
	RawProbability   float64        `json:"raw_probability"`
	ScannedAt        time.Time      `json:"scanned_at"`
}

// PartnerStatus describes the partner directory integration without
// exposing credentials, tokens or endpoints
type PartnerStatus struct {
	Configured    bool       `json:"configured"`
	Authenticated bool       `json:"authenticated"`
	Mode          string     `json:"mode"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// ScanRecord is one classification kept in the scan history
type ScanRecord struct {
	ID               uuid.UUID
	Sender           string
	Level            ThreatLevel
	Probability      float64
	RawProbability   float64
	MatchedWords     []string
	IsTrustedPartner bool
	PartnerID        string
	ScannedAt        time.Time
	ExpiresAt        time.Time
}

// VerdictEvent is published for every non-GOOD verdict
type VerdictEvent struct {
	ScanID           uuid.UUID   `json:"scan_id"`
	Sender           string      `json:"sender"`
	Level            ThreatLevel `json:"level"`
	Probability      float64     `json:"probability"`
	MatchedWords     []string    `json:"matched_words"`
	IsTrustedPartner bool        `json:"is_trusted_partner"`
	ScannedAt        time.Time   `json:"scanned_at"`
}
