package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/utils"
)

// Schema creates every table the scraper writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS gig_category (
	id              BIGSERIAL PRIMARY KEY,
	path            TEXT        UNIQUE NOT NULL,
	name            TEXT        NOT NULL,
	sub_group_name  TEXT        NOT NULL,
	main_group_name TEXT        NOT NULL,
	scrape_gigs     BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS seller (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT   UNIQUE NOT NULL,
	rating        TEXT   NOT NULL DEFAULT '',
	level         TEXT   NOT NULL DEFAULT '',
	reviews_count BIGINT NOT NULL DEFAULT 0,
	description   TEXT   NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS seller_stat (
	id        BIGSERIAL PRIMARY KEY,
	seller_id BIGINT NOT NULL REFERENCES seller(id),
	key       TEXT   NOT NULL,
	value     TEXT   NOT NULL
);

CREATE TABLE IF NOT EXISTS gig (
	id               BIGSERIAL PRIMARY KEY,
	path             TEXT        UNIQUE NOT NULL,
	title            TEXT        NOT NULL,
	rating           TEXT        NOT NULL DEFAULT '',
	reviews_count    BIGINT      NOT NULL DEFAULT 0,
	description      TEXT        NOT NULL DEFAULT '',
	page             INTEGER     NOT NULL,
	seller_id        BIGINT      NOT NULL REFERENCES seller(id),
	category_id      BIGINT      NOT NULL REFERENCES gig_category(id),
	scrape_completed BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS gig_metadata (
	id       BIGSERIAL PRIMARY KEY,
	gig_id   BIGINT NOT NULL REFERENCES gig(id),
	key      TEXT   NOT NULL,
	"values" TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS visual_type_lookup (
	id    BIGSERIAL PRIMARY KEY,
	value TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS gig_visual (
	id          BIGSERIAL PRIMARY KEY,
	gig_id      BIGINT NOT NULL REFERENCES gig(id),
	visual_type BIGINT NOT NULL REFERENCES visual_type_lookup(id),
	url         TEXT   NOT NULL
);

CREATE TABLE IF NOT EXISTS gig_package_type_lookup (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS gig_package (
	id            BIGSERIAL PRIMARY KEY,
	gig_id        BIGINT        NOT NULL REFERENCES gig(id),
	type          BIGINT        NOT NULL REFERENCES gig_package_type_lookup(id),
	price         NUMERIC(12,2) NOT NULL,
	title         TEXT          NOT NULL,
	description   TEXT,
	delivery_time TEXT
);

CREATE TABLE IF NOT EXISTS gig_package_feature (
	id             BIGSERIAL PRIMARY KEY,
	gig_package_id BIGINT NOT NULL REFERENCES gig_package(id),
	key            TEXT   NOT NULL,
	value          TEXT   NOT NULL
);

CREATE TABLE IF NOT EXISTS gig_faq (
	id       BIGSERIAL PRIMARY KEY,
	gig_id   BIGINT NOT NULL REFERENCES gig(id),
	question TEXT   NOT NULL,
	answer   TEXT   NOT NULL
);

CREATE TABLE IF NOT EXISTS gig_review (
	id              BIGSERIAL PRIMARY KEY,
	gig_id          BIGINT           NOT NULL REFERENCES gig(id),
	country         TEXT,
	rating          DOUBLE PRECISION NOT NULL,
	price_range_min BIGINT           NOT NULL,
	price_range_max BIGINT           NOT NULL,
	duration_value  BIGINT           NOT NULL,
	duration_unit   TEXT             NOT NULL,
	description     TEXT             NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_gig_category_id      ON gig(category_id);
CREATE INDEX IF NOT EXISTS idx_gig_scrape_completed ON gig(scrape_completed);
CREATE INDEX IF NOT EXISTS idx_gig_package_gig_id   ON gig_package(gig_id);
`

// PostgresStore is the PostgreSQL storage backend.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*PostgresStore, error) {
	pgLogger := logger.Named("postgres")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperrors.Persistence("open", err)
	}

	err = retry.Do(ctx, "postgres ping", func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, apperrors.Persistence("ping", err)
	}

	ps := &PostgresStore{db: db, logger: pgLogger}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.Persistence("migrate", err)
	}

	pgLogger.Info("[postgres] Connected and schema ready")
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, Schema)
	return err
}

// Repositories returns the repositories backed by this store. Lookup tables
// are fronted by an in-process cache.
func (ps *PostgresStore) Repositories() Repositories {
	return Repositories{
		Categories:      &pgCategories{db: ps.db},
		Gigs:            &pgGigs{db: ps.db, logger: ps.logger},
		Sellers:         newCachedSellers(&pgSellers{db: ps.db}),
		SellerStats:     &pgSellerStats{db: ps.db},
		Metadata:        &pgMetadata{db: ps.db},
		Visuals:         &pgVisuals{db: ps.db},
		Packages:        &pgPackages{db: ps.db},
		PackageFeatures: &pgPackageFeatures{db: ps.db},
		FAQs:            &pgFAQs{db: ps.db},
		Reviews:         &pgReviews{db: ps.db},
		VisualTypes:     NewCachedLookup(&pgLookup{db: ps.db, table: "visual_type_lookup", column: "value"}),
		PackageTypes:    NewCachedLookup(&pgLookup{db: ps.db, table: "gig_package_type_lookup", column: "name"}),
	}
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertReturningID runs an INSERT ... RETURNING id and treats a missing
// row as a violation rather than an absent result.
func insertReturningID(ctx context.Context, q queryRower, op, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.Persistence(op, apperrors.ErrMissingRow)
	}
	if err != nil {
		return 0, apperrors.Persistence(op, err)
	}
	return id, nil
}

type pgLookup struct {
	db     *sql.DB
	table  string
	column string
}

func (l *pgLookup) GetOrCreate(ctx context.Context, name string) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s) VALUES ($1)
		ON CONFLICT (%[2]s) DO UPDATE SET %[2]s = EXCLUDED.%[2]s
		RETURNING id
	`, l.table, l.column)
	return insertReturningID(ctx, l.db, l.table+": get or create", query, name)
}
