package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/models"
)

type pgCategories struct {
	db *sql.DB
}

func (r *pgCategories) GetByPath(ctx context.Context, path string) (*models.CategoryRecord, error) {
	c := &models.CategoryRecord{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, path, name, sub_group_name, main_group_name, scrape_gigs
		FROM gig_category
		WHERE path = $1
	`, path).Scan(&c.ID, &c.Path, &c.Name, &c.SubGroupName, &c.MainGroupName, &c.ScrapeEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("gig_category: get by path", err)
	}
	return c, nil
}

func (r *pgCategories) Create(ctx context.Context, c models.NewCategory) (int64, error) {
	return insertReturningID(ctx, r.db, "gig_category: create", `
		INSERT INTO gig_category (path, name, sub_group_name, main_group_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.Path, c.Name, c.SubGroupName, c.MainGroupName)
}

func (r *pgCategories) MinimumGigCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MIN(COALESCE(g.gig_count, 0)), 0)
		FROM gig_category gc
		LEFT JOIN (
			SELECT category_id, COUNT(*) AS gig_count
			FROM gig
			WHERE scrape_completed
			GROUP BY category_id
		) g ON gc.id = g.category_id
		WHERE gc.scrape_gigs
	`).Scan(&n)
	if err != nil {
		return 0, apperrors.Persistence("gig_category: minimum gig count", err)
	}
	return n, nil
}

func (r *pgCategories) Coverage(ctx context.Context) ([]models.CategoryCoverage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT gc.id, gc.path, gc.name, gc.sub_group_name, gc.main_group_name,
		       gc.scrape_gigs, COALESCE(g.gig_count, 0)
		FROM gig_category gc
		LEFT JOIN (
			SELECT category_id, COUNT(*) AS gig_count
			FROM gig
			WHERE scrape_completed
			GROUP BY category_id
		) g ON gc.id = g.category_id
		ORDER BY gc.id
	`)
	if err != nil {
		return nil, apperrors.Persistence("gig_category: coverage", err)
	}
	defer rows.Close()

	var out []models.CategoryCoverage
	for rows.Next() {
		var c models.CategoryCoverage
		if err := rows.Scan(&c.ID, &c.Path, &c.Name, &c.SubGroupName, &c.MainGroupName,
			&c.ScrapeEnabled, &c.GigCount); err != nil {
			return nil, apperrors.Persistence("gig_category: scan coverage", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("gig_category: coverage", err)
	}
	return out, nil
}
