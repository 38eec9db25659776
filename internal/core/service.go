package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrHistoryDisabled is returned when the scan history is queried but no
// history repository is configured
var ErrHistoryDisabled = errors.New("scan history is disabled")

// DefaultScoreTimeout bounds scorer calls when no timeout is configured
const DefaultScoreTimeout = 30 * time.Second

// ServiceOptions holds the tunables of the scoring service
type ServiceOptions struct {
	// ScoreTimeout bounds a single call to the probability scorer.
	// Zero or negative means DefaultScoreTimeout.
	ScoreTimeout time.Duration

	// HistoryTTL is how long scan records are retained
	HistoryTTL time.Duration
}

// ThreatScoringService fuses the lexicon, the probability scorer and the
// partner directory into a single verdict
type ThreatScoringService struct {
	lexicon  WordMatcher
	scorer   ProbabilityScorer
	partners PartnerVerifier
	history  HistoryRepository
	notifier VerdictNotifier
	logger   *zap.Logger
	opts     ServiceOptions
	now      func() time.Time
}

// NewThreatScoringService creates a new scoring service. history and
// notifier may be nil.
func NewThreatScoringService(
	lexicon WordMatcher,
	scorer ProbabilityScorer,
	partners PartnerVerifier,
	history HistoryRepository,
	notifier VerdictNotifier,
	logger *zap.Logger,
	opts ServiceOptions,
) *ThreatScoringService {
	if opts.ScoreTimeout <= 0 {
		opts.ScoreTimeout = DefaultScoreTimeout
	}

	return &ThreatScoringService{
		lexicon:  lexicon,
		scorer:   scorer,
		partners: partners,
		history:  history,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Classify produces the verdict for an email. The only error it returns is
// a *ClassificationError raised when the scorer cannot produce a probability.
func (s *ThreatScoringService) Classify(ctx context.Context, payload EmailPayload) (*ThreatVerdict, error) {
	matched := s.lexicon.Match(payload.Body)

	var (
		raw     float64
		partner *PartnerRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.score(gctx, payload.Body)
		if err != nil {
			return err
		}
		raw = p
		return nil
	})
	g.Go(func() error {
		partner = s.verifySender(gctx, payload.Sender)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to classify email",
			zap.String("sender", payload.Sender),
			zap.Error(err),
			zap.NamedError("cause", causeOf(err)))
		return nil, err
	}

	trusted := partner != nil && partner.Verified
	adjusted := AdjustProbability(raw, trusted)

	verdict := &ThreatVerdict{
		Level:            LevelFor(adjusted),
		MatchedWords:     matched,
		IsTrustedPartner: trusted,
		PartnerInfo:      partner,
		Probability:      adjusted,
		RawProbability:   raw,
		ScannedAt:        s.now(),
	}

	s.logger.Info("Classified email",
		zap.String("sender", payload.Sender),
		zap.String("level", string(verdict.Level)),
		zap.Float64("raw_probability", raw),
		zap.Float64("probability", adjusted),
		zap.Bool("trusted_partner", trusted),
		zap.Int("matched_words", len(matched)))

	s.record(ctx, payload, verdict)

	return verdict, nil
}

// VerifyPartner resolves a sender against the partner directory
func (s *ThreatScoringService) VerifyPartner(ctx context.Context, email string) (*PartnerRecord, error) {
	return s.partners.VerifyPartner(ctx, email)
}

// PartnerStatus reports the partner directory integration state
func (s *ThreatScoringService) PartnerStatus() PartnerStatus {
	if reporter, ok := s.partners.(PartnerStatusReporter); ok {
		return reporter.Status()
	}
	return PartnerStatus{Mode: "unknown"}
}

// History returns recent scans, newest first
func (s *ThreatScoringService) History(ctx context.Context, sender string, limit int) ([]ScanRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ListRecent(ctx, sender, limit)
}

// score calls the scorer under the configured timeout and validates its output
func (s *ThreatScoringService) score(ctx context.Context, body string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ScoreTimeout)
	defer cancel()

	p, err := s.scorer.Score(ctx, body)
	if err != nil {
		return 0, newScoringError(err)
	}
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, newScoringError(fmt.Errorf("scorer returned non-finite probability %v", p))
	}

	return ClampProbability(p), nil
}

// verifySender never fails: any error or panic from the verifier leaves the
// sender untrusted with no partner info
func (s *ThreatScoringService) verifySender(ctx context.Context, sender string) (partner *PartnerRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Partner verification panicked",
				zap.String("sender", sender),
				zap.Any("panic", r))
			partner = nil
		}
	}()

	record, err := s.partners.VerifyPartner(ctx, sender)
	if err != nil {
		s.logger.Warn("Partner verification failed, treating sender as untrusted",
			zap.String("sender", sender),
			zap.Error(err))
		return nil
	}
	return record
}

// record stores the scan and publishes non-GOOD verdicts. Failures here are
// logged and never affect the verdict.
func (s *ThreatScoringService) record(ctx context.Context, payload EmailPayload, verdict *ThreatVerdict) {
	if s.history == nil && s.notifier == nil {
		return
	}

	scanID := uuid.New()

	if s.history != nil {
		entry := &ScanRecord{
			ID:               scanID,
			Sender:           payload.Sender,
			Level:            verdict.Level,
			Probability:      verdict.Probability,
			RawProbability:   verdict.RawProbability,
			MatchedWords:     verdict.MatchedWords,
			IsTrustedPartner: verdict.IsTrustedPartner,
			ScannedAt:        verdict.ScannedAt,
			ExpiresAt:        verdict.ScannedAt.Add(s.opts.HistoryTTL),
		}
		if verdict.PartnerInfo != nil {
			entry.PartnerID = verdict.PartnerInfo.PartnerID
		}
		if err := s.history.Save(ctx, entry); err != nil {
			s.logger.Error("Failed to save scan record", zap.Error(err))
		}
	}

	if s.notifier != nil && verdict.Level != ThreatLevelGood {
		event := &VerdictEvent{
			ScanID:           scanID,
			Sender:           payload.Sender,
			Level:            verdict.Level,
			Probability:      verdict.Probability,
			MatchedWords:     verdict.MatchedWords,
			IsTrustedPartner: verdict.IsTrustedPartner,
			ScannedAt:        verdict.ScannedAt,
		}
		if err := s.notifier.NotifyVerdict(ctx, event); err != nil {
			s.logger.Error("Failed to publish verdict event", zap.Error(err))
		}
	}
}

func causeOf(err error) error {
	var cerr *ClassificationError
	if errors.As(err, &cerr) {
		return cerr.Cause
	}
	return err
}
