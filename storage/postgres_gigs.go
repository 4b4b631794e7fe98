package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/utils"
)

// incompleteGigs selects the ids of gigs whose scrape never completed.
const incompleteGigs = `SELECT id FROM gig WHERE NOT scrape_completed`

// purgeStatements delete the children of incomplete gigs before the gigs
// themselves, deepest first.
var purgeStatements = []string{
	`DELETE FROM gig_package_feature WHERE gig_package_id IN (
		SELECT id FROM gig_package WHERE gig_id IN (` + incompleteGigs + `))`,
	`DELETE FROM gig_package  WHERE gig_id IN (` + incompleteGigs + `)`,
	`DELETE FROM gig_metadata WHERE gig_id IN (` + incompleteGigs + `)`,
	`DELETE FROM gig_visual   WHERE gig_id IN (` + incompleteGigs + `)`,
	`DELETE FROM gig_faq      WHERE gig_id IN (` + incompleteGigs + `)`,
	`DELETE FROM gig_review   WHERE gig_id IN (` + incompleteGigs + `)`,
}

type pgGigs struct {
	db     *sql.DB
	logger *utils.Logger
}

func (r *pgGigs) Create(ctx context.Context, g models.NewGig) (int64, error) {
	return insertReturningID(ctx, r.db, "gig: create", `
		INSERT INTO gig (path, title, rating, reviews_count, description, page, seller_id, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, g.Path, g.Title, g.Rating, g.ReviewCount, g.Description, g.Page, g.SellerID, g.CategoryID)
}

func (r *pgGigs) MarkCompleted(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE gig SET scrape_completed = TRUE WHERE id = $1`, id)
	if err != nil {
		return apperrors.Persistence("gig: mark completed", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.Persistence("gig: mark completed", apperrors.ErrMissingRow)
	}
	return nil
}

func (r *pgGigs) ExistsByPath(ctx context.Context, path string) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM gig WHERE path = $1 LIMIT 1`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Persistence("gig: exists by path", err)
	}
	return true, nil
}

func (r *pgGigs) CountForCategory(ctx context.Context, categoryID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM gig WHERE category_id = $1 AND scrape_completed
	`, categoryID).Scan(&n)
	if err != nil {
		return 0, apperrors.Persistence("gig: count for category", err)
	}
	return n, nil
}

func (r *pgGigs) LastScrapedPage(ctx context.Context, categoryID int64) (int, bool, error) {
	var page int
	err := r.db.QueryRowContext(ctx, `
		SELECT page FROM gig WHERE category_id = $1 ORDER BY id DESC LIMIT 1
	`, categoryID).Scan(&page)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.Persistence("gig: last scraped page", err)
	}
	return page, true, nil
}

func (r *pgGigs) DeleteIncomplete(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.Persistence("gig: delete incomplete: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range purgeStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, apperrors.Persistence("gig: delete incomplete children", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM gig WHERE NOT scrape_completed`)
	if err != nil {
		return 0, apperrors.Persistence("gig: delete incomplete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Persistence("gig: delete incomplete", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Persistence("gig: delete incomplete: commit", err)
	}
	if n > 0 {
		r.logger.Info("[postgres] Purged %d incomplete gigs", n)
	}
	return n, nil
}

type pgMetadata struct {
	db *sql.DB
}

func (r *pgMetadata) Create(ctx context.Context, gigID int64, m models.Metadata) (int64, error) {
	return insertReturningID(ctx, r.db, "gig_metadata: create", `
		INSERT INTO gig_metadata (gig_id, key, "values") VALUES ($1, $2, $3) RETURNING id
	`, gigID, m.Key, pq.Array(m.Values))
}

type pgVisuals struct {
	db *sql.DB
}

func (r *pgVisuals) Create(ctx context.Context, gigID, visualTypeID int64, url string) (int64, error) {
	return insertReturningID(ctx, r.db, "gig_visual: create", `
		INSERT INTO gig_visual (gig_id, visual_type, url) VALUES ($1, $2, $3) RETURNING id
	`, gigID, visualTypeID, url)
}

type pgPackages struct {
	db *sql.DB
}

func (r *pgPackages) Create(ctx context.Context, gigID, packageTypeID int64, p models.Package) (int64, error) {
	return insertReturningID(ctx, r.db, "gig_package: create", `
		INSERT INTO gig_package (gig_id, type, price, title, description, delivery_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, gigID, packageTypeID, p.Price, p.Title, nullable(p.Description), nullable(p.DeliveryTime))
}

type pgPackageFeatures struct {
	db *sql.DB
}

func (r *pgPackageFeatures) Create(ctx context.Context, packageID int64, f models.Feature) (int64, error) {
	return insertReturningID(ctx, r.db, "gig_package_feature: create", `
		INSERT INTO gig_package_feature (gig_package_id, key, value) VALUES ($1, $2, $3) RETURNING id
	`, packageID, f.Key, f.Value)
}

type pgFAQs struct {
	db *sql.DB
}

func (r *pgFAQs) Create(ctx context.Context, gigID int64, f models.FAQ) (int64, error) {
	return insertReturningID(ctx, r.db, "gig_faq: create", `
		INSERT INTO gig_faq (gig_id, question, answer) VALUES ($1, $2, $3) RETURNING id
	`, gigID, f.Question, f.Answer)
}

type pgReviews struct {
	db *sql.DB
}

func (r *pgReviews) Create(ctx context.Context, gigID int64, rv models.Review) (int64, error) {
	return insertReturningID(ctx, r.db, "gig_review: create", `
		INSERT INTO gig_review (gig_id, country, rating, price_range_min, price_range_max,
		                        duration_value, duration_unit, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, gigID, rv.Country, rv.Rating, rv.PriceRangeMin, rv.PriceRangeMax,
		rv.DurationValue, rv.DurationUnit, rv.Description)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
