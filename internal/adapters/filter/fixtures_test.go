package filter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/lexicon"
)

type fixedScorer struct {
	probability float64
	err         error
}

func (s fixedScorer) Score(context.Context, string) (float64, error) {
	return s.probability, s.err
}

type recordingPartners struct {
	mu       sync.Mutex
	trusted  map[string]bool
	verified []string
}

func (p *recordingPartners) VerifyPartner(_ context.Context, email string) (*core.PartnerRecord, error) {
	p.mu.Lock()
	p.verified = append(p.verified, email)
	p.mu.Unlock()

	if !p.trusted[email] {
		unknown := core.UnknownPartner(email)
		return &unknown, nil
	}
	name := "Acme Corp"
	return &core.PartnerRecord{PartnerID: "1000042", Name: &name, Email: email, Verified: true}, nil
}

func (p *recordingPartners) Status() core.PartnerStatus {
	return core.PartnerStatus{Configured: false, Mode: "fallback"}
}

func (p *recordingPartners) emails() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.verified...)
}

var errModelDown = errors.New("dial tcp 10.0.0.7:8501: connection refused")

func newService(t *testing.T, scorer core.ProbabilityScorer, partners core.PartnerVerifier, history core.HistoryRepository) *core.ThreatScoringService {
	t.Helper()
	lex, err := lexicon.New([]string{"verify", "urgent", "password"})
	require.NoError(t, err)
	return core.NewThreatScoringService(lex, scorer, partners, history, nil, zap.NewNop(), core.ServiceOptions{HistoryTTL: time.Hour})
}
