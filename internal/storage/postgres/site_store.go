// Package postgres provides a Postgres-backed site store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zdub15/agent-website-generator/internal/site"
	"github.com/zdub15/agent-website-generator/internal/storage/record"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	defaultTable       = "sites"
	uniqueViolationSQL = "23505"
)

// Config controls the Postgres connection pool used for site rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// SiteStore persists sites in a Postgres table.
type SiteStore struct {
	pool  Pool
	table string
}

// NewSiteStore connects to Postgres using cfg.
func NewSiteStore(ctx context.Context, cfg Config) (*SiteStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &SiteStore{pool: pool, table: table}, nil
}

// NewSiteStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSiteStoreWithPool(pool Pool, table string) (*SiteStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &SiteStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Migrate creates the site table if it does not exist.
func (s *SiteStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id                TEXT PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	status            TEXT NOT NULL,
	source_url        TEXT NOT NULL,
	scraped_data      JSONB NOT NULL,
	generated_content JSONB,
	customization     JSONB NOT NULL,
	headshot_url      TEXT NOT NULL DEFAULT '',
	calendly_url      TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SiteStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *SiteStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new site row.
func (s *SiteStore) Create(ctx context.Context, rec site.Site) error {
	row, err := record.Encode(rec)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table, record.Columns)
	_, err = s.pool.Exec(ctx, query,
		row.ID,
		row.Slug,
		row.Status,
		row.SourceURL,
		row.ScrapedData,
		row.GeneratedContent,
		row.Customization,
		row.HeadshotURL,
		row.CalendlyURL,
		row.CreatedAt,
		row.UpdatedAt,
	)
	if err != nil {
		return wrapWriteErr("insert site", err)
	}
	return nil
}

// Get fetches a site by ID.
func (s *SiteStore) Get(ctx context.Context, id string) (site.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, record.Columns, s.table)
	return s.queryOne(ctx, query, id)
}

// GetBySlug fetches a site by slug.
func (s *SiteStore) GetBySlug(ctx context.Context, slug string) (site.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE slug = $1`, record.Columns, s.table)
	return s.queryOne(ctx, query, slug)
}

func (s *SiteStore) queryOne(ctx context.Context, query string, arg string) (site.Site, error) {
	var row record.Row
	if err := s.pool.QueryRow(ctx, query, arg).Scan(row.Dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return site.Site{}, site.ErrNotFound
		}
		return site.Site{}, fmt.Errorf("get site: %w", err)
	}
	return row.Decode()
}

// Update replaces the mutable columns of an existing site.
func (s *SiteStore) Update(ctx context.Context, rec site.Site) error {
	row, err := record.Encode(rec)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	slug = $2,
	status = $3,
	source_url = $4,
	scraped_data = $5,
	generated_content = $6,
	customization = $7,
	headshot_url = $8,
	calendly_url = $9,
	updated_at = $10
WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		row.ID,
		row.Slug,
		row.Status,
		row.SourceURL,
		row.ScrapedData,
		row.GeneratedContent,
		row.Customization,
		row.HeadshotURL,
		row.CalendlyURL,
		row.UpdatedAt,
	)
	if err != nil {
		return wrapWriteErr("update site", err)
	}
	if tag.RowsAffected() == 0 {
		return site.ErrNotFound
	}
	return nil
}

// Delete removes a site row.
func (s *SiteStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return site.ErrNotFound
	}
	return nil
}

// List returns all sites, newest first.
func (s *SiteStore) List(ctx context.Context) ([]site.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id DESC`, record.Columns, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []site.Site
	for rows.Next() {
		var row record.Row
		if err := rows.Scan(row.Dest()...); err != nil {
			return nil, fmt.Errorf("scan site row: %w", err)
		}
		rec, err := row.Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site rows: %w", err)
	}
	return out, nil
}

func wrapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
		return fmt.Errorf("%s: %w", op, site.ErrSlugTaken)
	}
	return fmt.Errorf("%s: %w", op, err)
}
