// Package sqlite provides a SQLite-backed site store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/zdub15/agent-website-generator/internal/site"
	"github.com/zdub15/agent-website-generator/internal/storage/record"
)

const memoryDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id                TEXT PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	status            TEXT NOT NULL,
	source_url        TEXT NOT NULL,
	scraped_data      BLOB NOT NULL,
	generated_content BLOB,
	customization     BLOB NOT NULL,
	headshot_url      TEXT NOT NULL DEFAULT '',
	calendly_url      TEXT NOT NULL DEFAULT '',
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sites_created_at ON sites (created_at DESC);
`

// SiteStore persists sites in SQLite. Timestamps are stored as Unix microseconds.
type SiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string) (*SiteStore, error) {
	if path != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == memoryDSN {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SiteStore{db: db}, nil
}

// Ping verifies the database is reachable.
func (s *SiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Create inserts a new site row.
func (s *SiteStore) Create(ctx context.Context, rec site.Site) error {
	row, err := record.Encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sites (`+record.Columns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		row.ID,
		row.Slug,
		row.Status,
		row.SourceURL,
		row.ScrapedData,
		row.GeneratedContent,
		row.Customization,
		row.HeadshotURL,
		row.CalendlyURL,
		row.CreatedAt.UnixMicro(),
		row.UpdatedAt.UnixMicro(),
	)
	if err != nil {
		return wrapWriteErr("insert site", err)
	}
	return nil
}

// Get fetches a site by ID.
func (s *SiteStore) Get(ctx context.Context, id string) (site.Site, error) {
	return s.queryOne(ctx, `SELECT `+record.Columns+` FROM sites WHERE id = ?`, id)
}

// GetBySlug fetches a site by slug.
func (s *SiteStore) GetBySlug(ctx context.Context, slug string) (site.Site, error) {
	return s.queryOne(ctx, `SELECT `+record.Columns+` FROM sites WHERE slug = ?`, slug)
}

func (s *SiteStore) queryOne(ctx context.Context, query, arg string) (site.Site, error) {
	rec, err := scanSite(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return site.Site{}, site.ErrNotFound
	}
	if err != nil {
		return site.Site{}, fmt.Errorf("get site: %w", err)
	}
	return rec, nil
}

// Update replaces the mutable columns of an existing site.
func (s *SiteStore) Update(ctx context.Context, rec site.Site) error {
	row, err := record.Encode(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE sites SET
	slug = ?,
	status = ?,
	source_url = ?,
	scraped_data = ?,
	generated_content = ?,
	customization = ?,
	headshot_url = ?,
	calendly_url = ?,
	updated_at = ?
WHERE id = ?`,
		row.Slug,
		row.Status,
		row.SourceURL,
		row.ScrapedData,
		row.GeneratedContent,
		row.Customization,
		row.HeadshotURL,
		row.CalendlyURL,
		row.UpdatedAt.UnixMicro(),
		row.ID,
	)
	if err != nil {
		return wrapWriteErr("update site", err)
	}
	return requireAffected(res)
}

// Delete removes a site row.
func (s *SiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	return requireAffected(res)
}

// List returns all sites, newest first.
func (s *SiteStore) List(ctx context.Context) ([]site.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+record.Columns+` FROM sites ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []site.Site
	for rows.Next() {
		rec, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(sc scanner) (site.Site, error) {
	var (
		row              record.Row
		created, updated int64
	)
	err := sc.Scan(
		&row.ID,
		&row.Slug,
		&row.Status,
		&row.SourceURL,
		&row.ScrapedData,
		&row.GeneratedContent,
		&row.Customization,
		&row.HeadshotURL,
		&row.CalendlyURL,
		&created,
		&updated,
	)
	if err != nil {
		return site.Site{}, err
	}
	row.CreatedAt = time.UnixMicro(created).UTC()
	row.UpdatedAt = time.UnixMicro(updated).UTC()
	return row.Decode()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return site.ErrNotFound
	}
	return nil
}

func wrapWriteErr(op string, err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w", op, site.ErrSlugTaken)
	}
	return fmt.Errorf("%s: %w", op, err)
}
