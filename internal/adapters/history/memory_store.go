package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// MemoryStore is an in-memory implementation of core.HistoryRepository
type MemoryStore struct {
	records     []core.ScanRecord
	maxRecords  int
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory history store. When maxRecords is
// positive the oldest records are dropped beyond that count.
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration, maxRecords int) *MemoryStore {
	store := &MemoryStore{
		maxRecords:  maxRecords,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go runCleanup(store, cleanupFreq, store.stopCh, logger)
	}

	return store
}

// Save stores a scan record
func (s *MemoryStore) Save(_ context.Context, record *core.ScanRecord) error {
	entry := *record
	entry.MatchedWords = make([]string, len(record.MatchedWords))
	copy(entry.MatchedWords, record.MatchedWords)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, entry)
	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		s.records = append([]core.ScanRecord(nil), s.records[len(s.records)-s.maxRecords:]...)
	}

	return nil
}

// ListRecent returns unexpired records, newest first
func (s *MemoryStore) ListRecent(_ context.Context, sender string, limit int) ([]core.ScanRecord, error) {
	limit = normalizeLimit(limit)
	now := s.now()

	s.mu.RLock()
	matched := make([]core.ScanRecord, 0, len(s.records))
	for _, r := range s.records {
		if sender != "" && r.Sender != sender {
			continue
		}
		if !r.ExpiresAt.After(now) {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ScannedAt.After(matched[j].ScannedAt)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Cleanup removes expired records
func (s *MemoryStore) Cleanup(_ context.Context) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.ExpiresAt.After(now) {
			kept = append(kept, r)
		}
	}
	expired := len(s.records) - len(kept)
	s.records = kept

	s.logger.Debug("Cleaned up expired scan records", zap.Int("expired_count", expired))
	return nil
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
