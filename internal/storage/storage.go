// Package storage provides SQLite-backed persistence for collected news,
// price snapshots, PSI score history, and dispatched alerts.
//
// News rows are deduplicated by URL so repeated scans of the same feeds do
// not inflate attention scores. All timestamps are stored as UTC unix
// seconds.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/sentinel/internal/models"
)

// Storage wraps a SQLite database handle
type Storage struct {
	db *sql.DB
	mu sync.Mutex
}

// PSIRecord is one persisted PSI evaluation
type PSIRecord struct {
	Ticker    string
	Timestamp time.Time
	PSI       float64
	Level     string
	Options   float64
	Attention float64
	Fact      float64
	Boost     float64
}

// AlertRecord is one dispatched alert
type AlertRecord struct {
	AlertID        string
	Ticker         string
	Timestamp      time.Time
	Trigger        string
	Level          string
	Classification string
	PSI            float64
	Headline       string
}

const schema = `
CREATE TABLE IF NOT EXISTS news (
	url TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	ts INTEGER NOT NULL,
	title TEXT NOT NULL,
	summary TEXT,
	source TEXT,
	source_type TEXT,
	sentiment TEXT,
	keywords TEXT
);
CREATE INDEX IF NOT EXISTS idx_news_ticker_ts ON news(ticker, ts);

CREATE TABLE IF NOT EXISTS prices (
	ticker TEXT NOT NULL,
	ts INTEGER NOT NULL,
	change_pct REAL NOT NULL,
	volume_ratio REAL NOT NULL,
	latest_close REAL NOT NULL,
	PRIMARY KEY (ticker, ts)
);

CREATE TABLE IF NOT EXISTS psi_scores (
	ticker TEXT NOT NULL,
	ts INTEGER NOT NULL,
	psi REAL NOT NULL,
	level TEXT NOT NULL,
	options_score REAL NOT NULL,
	attention_score REAL NOT NULL,
	fact_score REAL NOT NULL,
	price_boost REAL NOT NULL,
	PRIMARY KEY (ticker, ts)
);

CREATE TABLE IF NOT EXISTS alerts (
	alert_id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	ts INTEGER NOT NULL,
	trigger_type TEXT NOT NULL DEFAULT '',
	level TEXT NOT NULL,
	classification TEXT NOT NULL,
	psi REAL NOT NULL,
	headline TEXT
);
CREATE INDEX IF NOT EXISTS idx_alerts_ticker_ts ON alerts(ticker, ts);
`

// New opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func New(path string) (*Storage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite driver serializes access per connection; a single
	// connection avoids table-lock errors under concurrent scans.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the database handle
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveNews inserts news items, skipping URLs already present.
// Returns the number of newly inserted rows.
func (s *Storage) SaveNews(items []models.NewsItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO news
		(url, ticker, ts, title, summary, source, source_type, sentiment, keywords)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		if item.URL == "" {
			// No stable identity to deduplicate on; skip rather than
			// collide on the empty key.
			continue
		}
		res, err := stmt.Exec(
			item.URL,
			item.Ticker,
			item.Timestamp.UTC().Unix(),
			item.Title,
			item.Summary,
			item.Source,
			string(item.SourceType),
			string(item.Sentiment),
			strings.Join(item.KeywordsMatched, ","),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert news: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

// RecentNews returns all news for a ticker newer than the cutoff, newest first.
func (s *Storage) RecentNews(ticker string, window time.Duration) ([]models.NewsItem, error) {
	cutoff := time.Now().UTC().Add(-window).Unix()
	rows, err := s.db.Query(`SELECT url, ticker, ts, title, summary, source, source_type, sentiment, keywords
		FROM news WHERE ticker = ? AND ts >= ? ORDER BY ts DESC`, ticker, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	var items []models.NewsItem
	for rows.Next() {
		var item models.NewsItem
		var ts int64
		var sourceType, sentiment, keywords string
		if err := rows.Scan(&item.URL, &item.Ticker, &ts, &item.Title, &item.Summary,
			&item.Source, &sourceType, &sentiment, &keywords); err != nil {
			return nil, fmt.Errorf("failed to scan news row: %w", err)
		}
		item.Timestamp = time.Unix(ts, 0).UTC()
		item.SourceType = models.SourceType(sourceType)
		item.Sentiment = models.Sentiment(sentiment)
		if keywords != "" {
			item.KeywordsMatched = strings.Split(keywords, ",")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SavePrice persists one price snapshot
func (s *Storage) SavePrice(snap *models.PriceSnapshot, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO prices (ticker, ts, change_pct, volume_ratio, latest_close)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Ticker, at.UTC().Unix(), snap.ChangePct, snap.VolumeRatio, snap.LatestClose)
	if err != nil {
		return fmt.Errorf("failed to insert price: %w", err)
	}
	return nil
}

// SavePSI persists one PSI evaluation
func (s *Storage) SavePSI(ticker string, r models.PSIResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO psi_scores
		(ticker, ts, psi, level, options_score, attention_score, fact_score, price_boost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ticker, at.UTC().Unix(), r.PSITotal, string(r.Level),
		r.OptionsScore, r.AttentionScore, r.FactScore, r.PriceBoost)
	if err != nil {
		return fmt.Errorf("failed to insert psi score: %w", err)
	}
	return nil
}

// PSIHistory returns PSI records for a ticker since the given time, oldest first.
func (s *Storage) PSIHistory(ticker string, since time.Time) ([]PSIRecord, error) {
	rows, err := s.db.Query(`SELECT ticker, ts, psi, level, options_score, attention_score, fact_score, price_boost
		FROM psi_scores WHERE ticker = ? AND ts >= ? ORDER BY ts ASC`, ticker, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query psi history: %w", err)
	}
	defer rows.Close()

	var records []PSIRecord
	for rows.Next() {
		var r PSIRecord
		var ts int64
		if err := rows.Scan(&r.Ticker, &ts, &r.PSI, &r.Level,
			&r.Options, &r.Attention, &r.Fact, &r.Boost); err != nil {
			return nil, fmt.Errorf("failed to scan psi row: %w", err)
		}
		r.Timestamp = time.Unix(ts, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// LatestPSI returns the most recent PSI record for a ticker.
// The boolean is false when no record exists.
func (s *Storage) LatestPSI(ticker string) (PSIRecord, bool, error) {
	row := s.db.QueryRow(`SELECT ticker, ts, psi, level, options_score, attention_score, fact_score, price_boost
		FROM psi_scores WHERE ticker = ? ORDER BY ts DESC LIMIT 1`, ticker)

	var r PSIRecord
	var ts int64
	err := row.Scan(&r.Ticker, &ts, &r.PSI, &r.Level, &r.Options, &r.Attention, &r.Fact, &r.Boost)
	if err == sql.ErrNoRows {
		return PSIRecord{}, false, nil
	}
	if err != nil {
		return PSIRecord{}, false, fmt.Errorf("failed to query latest psi: %w", err)
	}
	r.Timestamp = time.Unix(ts, 0).UTC()
	return r, true, nil
}

// RecordAlert persists a dispatched alert
func (s *Storage) RecordAlert(a AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO alerts (alert_id, ticker, ts, trigger_type, level, classification, psi, headline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AlertID, a.Ticker, a.Timestamp.UTC().Unix(), a.Trigger, a.Level, a.Classification, a.PSI, a.Headline)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// LastAlertTime returns when the ticker was last alerted on.
// The boolean is false when the ticker has never been alerted.
func (s *Storage) LastAlertTime(ticker string) (time.Time, bool, error) {
	row := s.db.QueryRow(`SELECT ts FROM alerts WHERE ticker = ? ORDER BY ts DESC LIMIT 1`, ticker)

	var ts int64
	err := row.Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last alert: %w", err)
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

// CountAlertsSince counts alerts for a ticker with the given classification
// at or after the cutoff. An empty classification counts all alerts.
func (s *Storage) CountAlertsSince(ticker, classification string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE ticker = ? AND ts >= ?`
	args := []any{ticker, since.UTC().Unix()}
	if classification != "" {
		query += ` AND classification = ?`
		args = append(args, classification)
	}

	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// AlertsSince returns all alerts dispatched at or after the cutoff, oldest first.
func (s *Storage) AlertsSince(since time.Time) ([]AlertRecord, error) {
	rows, err := s.db.Query(`SELECT alert_id, ticker, ts, trigger_type, level, classification, psi, headline
		FROM alerts WHERE ts >= ? ORDER BY ts ASC`, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertRecord
	for rows.Next() {
		var a AlertRecord
		var ts int64
		if err := rows.Scan(&a.AlertID, &a.Ticker, &ts, &a.Trigger, &a.Level, &a.Classification, &a.PSI, &a.Headline); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		a.Timestamp = time.Unix(ts, 0).UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
