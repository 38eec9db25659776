package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// dialect holds what differs between the SQL backends
type dialect struct {
	name   string
	schema []string

	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

// SQLStore is a database/sql implementation of core.HistoryRepository
// shared by the SQLite, MySQL and PostgreSQL backends
type SQLStore struct {
	db          *sql.DB
	dialect     dialect
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	store := &SQLStore{
		db:          db,
		dialect:     d,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go runCleanup(store, cleanupFreq, store.stopCh, logger)
	}

	return store, nil
}

// Save stores a scan record
func (s *SQLStore) Save(ctx context.Context, record *core.ScanRecord) error {
	words := record.MatchedWords
	if words == nil {
		words = []string{}
	}
	matched, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("failed to encode matched words: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO scan_history
			(id, sender, level, probability, raw_probability, matched_words, is_trusted_partner, partner_id, scanned_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		record.ID.String(),
		record.Sender,
		string(record.Level),
		record.Probability,
		record.RawProbability,
		string(matched),
		record.IsTrustedPartner,
		record.PartnerID,
		record.ScannedAt.UTC(),
		record.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan record: %w", err)
	}

	return nil
}

// ListRecent returns unexpired records, newest first
func (s *SQLStore) ListRecent(ctx context.Context, sender string, limit int) ([]core.ScanRecord, error) {
	query := `
		SELECT id, sender, level, probability, raw_probability, matched_words, is_trusted_partner, partner_id, scanned_at, expires_at
		FROM scan_history
		WHERE expires_at > ?`
	args := []interface{}{s.now().UTC()}

	if sender != "" {
		query += ` AND sender = ?`
		args = append(args, sender)
	}
	query += ` ORDER BY scanned_at DESC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history: %w", err)
	}
	defer rows.Close()

	records := make([]core.ScanRecord, 0)
	for rows.Next() {
		var (
			r       core.ScanRecord
			id      string
			level   string
			matched string
		)
		if err := rows.Scan(&id, &r.Sender, &level, &r.Probability, &r.RawProbability, &matched,
			&r.IsTrustedPartner, &r.PartnerID, &r.ScannedAt, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		r.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid scan id %q: %w", id, err)
		}
		r.Level = core.ThreatLevel(level)
		if err := json.Unmarshal([]byte(matched), &r.MatchedWords); err != nil {
			return nil, fmt.Errorf("invalid matched words for scan %s: %w", id, err)
		}

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scan history: %w", err)
	}

	return records, nil
}

// Cleanup removes expired records
func (s *SQLStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM scan_history
		WHERE expires_at <= ?
	`), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to clean up expired scan records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired scan records", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close history database",
				zap.String("backend", s.dialect.name),
				zap.Error(err))
		}
	})
}

// rebind rewrites ? placeholders for dialects that number them
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
