package core

import (
	"context"
)

// ProbabilityScorer returns the phishing probability of an email body
type ProbabilityScorer interface {
	// Score returns a probability in [0,1] for the exact body given
	Score(ctx context.Context, body string) (float64, error)
}

// WordMatcher finds suspicious terms in an email body
type WordMatcher interface {
	Match(body string) []string
}

// PartnerVerifier resolves whether a sender belongs to a trusted partner
type PartnerVerifier interface {
	VerifyPartner(ctx context.Context, email string) (*PartnerRecord, error)
}

// PartnerStatusReporter is implemented by verifiers that can describe their
// integration state
type PartnerStatusReporter interface {
	Status() PartnerStatus
}

// HistoryRepository stores classification history
type HistoryRepository interface {
	// Save stores a scan record
	Save(ctx context.Context, record *ScanRecord) error

	// ListRecent returns the most recent records, newest first. An empty
	// sender lists records for every sender.
	ListRecent(ctx context.Context, sender string, limit int) ([]ScanRecord, error)

	// Cleanup removes expired records
	Cleanup(ctx context.Context) error
}

// VerdictNotifier publishes verdict events to downstream consumers
type VerdictNotifier interface {
	NotifyVerdict(ctx context.Context, event *VerdictEvent) error
}
