package storage

import (
	"context"

	"github.com/cryarchy/fiverr-tools/models"
)

// CategoryRepository persists category records and answers the scheduling
// queries the engine relies on.
type CategoryRepository interface {
	// GetByPath returns nil when no category has the given path.
	GetByPath(ctx context.Context, path string) (*models.CategoryRecord, error)
	// Create inserts a category with scraping disabled.
	Create(ctx context.Context, c models.NewCategory) (int64, error)
	// MinimumGigCount returns the smallest completed-gig count among the
	// categories enabled for scraping, or 0 when none is enabled.
	MinimumGigCount(ctx context.Context) (int64, error)
	// Coverage returns every category with its completed-gig count.
	Coverage(ctx context.Context) ([]models.CategoryCoverage, error)
}

// GigRepository persists gigs and tracks their completion.
type GigRepository interface {
	Create(ctx context.Context, g models.NewGig) (int64, error)
	MarkCompleted(ctx context.Context, id int64) error
	ExistsByPath(ctx context.Context, path string) (bool, error)
	// CountForCategory counts completed gigs only.
	CountForCategory(ctx context.Context, categoryID int64) (int64, error)
	// LastScrapedPage returns the listing page of the most recently created
	// gig of the category, and false when the category has none.
	LastScrapedPage(ctx context.Context, categoryID int64) (int, bool, error)
	// DeleteIncomplete removes every gig whose scrape never completed,
	// together with all rows it owns. It returns the number of gigs removed.
	DeleteIncomplete(ctx context.Context) (int64, error)
}

// SellerRepository persists sellers. Sellers are created once and never updated.
type SellerRepository interface {
	GetIDByUsername(ctx context.Context, username string) (int64, bool, error)
	Create(ctx context.Context, s models.NewSeller) (int64, error)
}

type SellerStatRepository interface {
	Create(ctx context.Context, sellerID int64, s models.SellerStat) (int64, error)
}

type MetadataRepository interface {
	Create(ctx context.Context, gigID int64, m models.Metadata) (int64, error)
}

type VisualRepository interface {
	Create(ctx context.Context, gigID, visualTypeID int64, url string) (int64, error)
}

type PackageRepository interface {
	Create(ctx context.Context, gigID, packageTypeID int64, p models.Package) (int64, error)
}

type PackageFeatureRepository interface {
	Create(ctx context.Context, packageID int64, f models.Feature) (int64, error)
}

type FAQRepository interface {
	Create(ctx context.Context, gigID int64, f models.FAQ) (int64, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, gigID int64, r models.Review) (int64, error)
}

// LookupRepository normalises a free-text categorical value into an id.
type LookupRepository interface {
	GetOrCreate(ctx context.Context, name string) (int64, error)
}

// Repositories bundles one repository per entity.
type Repositories struct {
	Categories      CategoryRepository
	Gigs            GigRepository
	Sellers         SellerRepository
	SellerStats     SellerStatRepository
	Metadata        MetadataRepository
	Visuals         VisualRepository
	Packages        PackageRepository
	PackageFeatures PackageFeatureRepository
	FAQs            FAQRepository
	Reviews         ReviewRepository
	VisualTypes     LookupRepository
	PackageTypes    LookupRepository
}

// Store is a storage backend.
type Store interface {
	Repositories() Repositories
	Close() error
}

// Journal receives one entry per completed gig.
type Journal interface {
	Append(entry models.JournalEntry) error
	Close() error
}

// MediaStore keeps a local copy of gallery media.
type MediaStore interface {
	Save(ctx context.Context, gigID int64, url string) (string, error)
}
