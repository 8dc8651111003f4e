// Package store persists pages, snapshots and diffs in SQLite. Pages are
// the monitored URL pairs; snapshots are time-ordered extracts per page;
// diffs record detected changes between consecutive snapshots.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	"github.com/competitor-monitor/backend/compare"
)

// Site labels for the two halves of a monitored pair.
const (
	SiteMine       = "mine"
	SiteCompetitor = "competitor"
)

// Page is one monitored URL.
type Page struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Site      string `json:"site"`
	Slug      string `json:"page_slug"`
	CreatedAt string `json:"created_at"`
}

// Snapshot is one extracted capture of a page.
type Snapshot struct {
	ID              int64             `json:"id"`
	PageID          int64             `json:"page_id"`
	ScrapedAt       string            `json:"scraped_at"`
	RawHTML         string            `json:"raw_html"`
	CleanText       string            `json:"clean_text"`
	WordCount       int               `json:"word_count"`
	Title           string            `json:"title"`
	H1              string            `json:"h1"`
	MetaDescription string            `json:"meta_description"`
	Headings        []compare.Heading `json:"headings"`
	InternalLinks   []string          `json:"internal_links"`
}

// Signals converts a stored snapshot back into PageSignals for scoring.
func (s *Snapshot) Signals(pageURL string) compare.PageSignals {
	return compare.PageSignals{
		URL:           pageURL,
		Text:          s.CleanText,
		Headings:      s.Headings,
		WordCount:     s.WordCount,
		InternalLinks: s.InternalLinks,
	}
}

// Diff is one persisted change record between two snapshots of a page.
type Diff struct {
	ID            int64   `json:"id"`
	PageID        int64   `json:"page_id"`
	SnapshotOldID int64   `json:"snapshot_old_id"`
	SnapshotNewID int64   `json:"snapshot_new_id"`
	ChangePct     float64 `json:"change_pct"`
	AddedText     string  `json:"added_text"`
	RemovedText   string  `json:"removed_text"`
	AISummary     string  `json:"ai_summary"`
	DetectedAt    string  `json:"detected_at"`
}

// PagePair is one configured topic: my page and the competitor's.
type PagePair struct {
	Slug          string `json:"slug"`
	MyURL         string `json:"my_url"`
	CompetitorURL string `json:"competitor_url"`
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open connects to (or creates) the database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = "./competitor_monitor.db"
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("can't open db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	// SQLite handles one writer; keep the pool at a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("can't create tables: %w", err)
	}
	log.Info("database ready", "path", dbPath)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			url         TEXT    NOT NULL UNIQUE,
			site        TEXT    NOT NULL CHECK(site IN ('mine', 'competitor')),
			page_slug   TEXT    NOT NULL,
			created_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			page_id          INTEGER NOT NULL REFERENCES pages(id),
			scraped_at       TEXT    NOT NULL DEFAULT (datetime('now')),
			raw_html         TEXT,
			clean_text       TEXT,
			word_count       INTEGER NOT NULL DEFAULT 0,
			title            TEXT,
			h1               TEXT,
			meta_description TEXT,
			headings         TEXT,
			internal_links   TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS diffs (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			page_id         INTEGER NOT NULL REFERENCES pages(id),
			snapshot_old_id INTEGER NOT NULL REFERENCES snapshots(id),
			snapshot_new_id INTEGER NOT NULL REFERENCES snapshots(id),
			change_pct      REAL    NOT NULL DEFAULT 0,
			added_text      TEXT,
			removed_text    TEXT,
			ai_summary      TEXT,
			detected_at     TEXT    NOT NULL DEFAULT (datetime('now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_page ON snapshots(page_id, scraped_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_diffs_page ON diffs(page_id, detected_at DESC);`,
	}
	for _, q := range statements {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// withTransaction runs fn inside a transaction, rolling back on error.
func (s *Store) withTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}

	var committed bool
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}
	committed = true
	return nil
}

// SeedPages upserts page records from the monitored pair config.
func (s *Store) SeedPages(ctx context.Context, pairs []PagePair) error {
	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, pair := range pairs {
			for _, half := range []struct {
				site, url string
			}{
				{SiteMine, pair.MyURL},
				{SiteCompetitor, pair.CompetitorURL},
			} {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO pages (url, site, page_slug)
					VALUES (?, ?, ?)
					ON CONFLICT(url) DO UPDATE SET
						site      = excluded.site,
						page_slug = excluded.page_slug`,
					half.url, half.site, pair.Slug)
				if err != nil {
					return fmt.Errorf("can't seed page %s: %w", half.url, err)
				}
			}
		}
		return nil
	})
	if err == nil {
		log.Info("seeded page pairs", "count", len(pairs))
	}
	return err
}

// PageByURL returns the page record for url, or nil when not tracked.
func (s *Store) PageByURL(ctx context.Context, url string) (*Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, site, page_slug, created_at FROM pages WHERE url = ?`, url)
	var p Page
	if err := row.Scan(&p.ID, &p.URL, &p.Site, &p.Slug, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// AllPages returns every tracked page ordered by slug then site.
func (s *Store) AllPages(ctx context.Context) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, site, page_slug, created_at FROM pages ORDER BY page_slug, site`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.URL, &p.Site, &p.Slug, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// SaveSnapshot stores one extracted capture and returns its id.
func (s *Store) SaveSnapshot(ctx context.Context, snap *Snapshot) (int64, error) {
	headingsJSON, err := json.Marshal(snap.Headings)
	if err != nil {
		return 0, fmt.Errorf("can't encode headings: %w", err)
	}
	linksJSON, err := json.Marshal(snap.InternalLinks)
	if err != nil {
		return 0, fmt.Errorf("can't encode internal links: %w", err)
	}

	var id int64
	err = s.withTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots
				(page_id, raw_html, clean_text, word_count, title, h1,
				 meta_description, headings, internal_links)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.PageID, snap.RawHTML, snap.CleanText, snap.WordCount,
			snap.Title, snap.H1, snap.MetaDescription,
			string(headingsJSON), string(linksJSON))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Debug("saved snapshot", "snapshot_id", id, "page_id", snap.PageID, "words", snap.WordCount)
	return id, nil
}

const snapshotColumns = `id, page_id, scraped_at, COALESCE(raw_html, ''),
	COALESCE(clean_text, ''), word_count, COALESCE(title, ''), COALESCE(h1, ''),
	COALESCE(meta_description, ''), COALESCE(headings, '[]'), COALESCE(internal_links, '[]')`

func scanSnapshot(scan func(dest ...any) error) (*Snapshot, error) {
	var snap Snapshot
	var headingsJSON, linksJSON string
	err := scan(&snap.ID, &snap.PageID, &snap.ScrapedAt, &snap.RawHTML,
		&snap.CleanText, &snap.WordCount, &snap.Title, &snap.H1,
		&snap.MetaDescription, &headingsJSON, &linksJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(headingsJSON), &snap.Headings); err != nil {
		return nil, fmt.Errorf("can't decode headings: %w", err)
	}
	if err := json.Unmarshal([]byte(linksJSON), &snap.InternalLinks); err != nil {
		return nil, fmt.Errorf("can't decode internal links: %w", err)
	}
	return &snap, nil
}

// LatestSnapshots returns the n most recent snapshots for a page, newest
// first.
func (s *Store) LatestSnapshots(ctx context.Context, pageID int64, n int) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE page_id = ?
		ORDER BY scraped_at DESC, id DESC
		LIMIT ?`, pageID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// SnapshotByID loads one snapshot, or nil when absent.
func (s *Store) SnapshotByID(ctx context.Context, id int64) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

// SaveDiff stores one change record and returns its id.
func (s *Store) SaveDiff(ctx context.Context, d *Diff) (int64, error) {
	var id int64
	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO diffs
				(page_id, snapshot_old_id, snapshot_new_id, change_pct,
				 added_text, removed_text, ai_summary)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.PageID, d.SnapshotOldID, d.SnapshotNewID, d.ChangePct,
			d.AddedText, d.RemovedText, d.AISummary)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Info("saved diff", "diff_id", id, "page_id", d.PageID,
		"change_pct", fmt.Sprintf("%.1f", d.ChangePct))
	return id, nil
}

// LatestDiff returns the most recent diff for a page, or nil when none.
func (s *Store) LatestDiff(ctx context.Context, pageID int64) (*Diff, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, snapshot_old_id, snapshot_new_id, change_pct,
		       COALESCE(added_text, ''), COALESCE(removed_text, ''),
		       COALESCE(ai_summary, ''), detected_at
		FROM diffs
		WHERE page_id = ?
		ORDER BY detected_at DESC, id DESC
		LIMIT 1`, pageID)
	var d Diff
	err := row.Scan(&d.ID, &d.PageID, &d.SnapshotOldID, &d.SnapshotNewID,
		&d.ChangePct, &d.AddedText, &d.RemovedText, &d.AISummary, &d.DetectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadPairs parses the JSON page pair config used to seed the pages table.
func LoadPairs(data []byte) ([]PagePair, error) {
	var pairs []PagePair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("can't parse pages config: %w", err)
	}
	for _, p := range pairs {
		if p.Slug == "" || p.MyURL == "" || p.CompetitorURL == "" {
			return nil, fmt.Errorf("pages config entry missing slug or urls: %+v", p)
		}
		if strings.ContainsAny(p.Slug, " \t\n") {
			return nil, fmt.Errorf("invalid slug %q", p.Slug)
		}
	}
	return pairs, nil
}
