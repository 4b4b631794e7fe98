package models

// Category is a leaf of the category menu as seen during traversal.
type Category struct {
	MainGroup   string
	SubGroup    string
	Name        string
	RelativeURL string
}

// NewCategory holds the fields of a category row at creation time.
type NewCategory struct {
	Path          string
	Name          string
	SubGroupName  string
	MainGroupName string
}

// CategoryRecord is a persisted category. ScrapeEnabled is set by an
// operator, never by the scraper.
type CategoryRecord struct {
	ID            int64
	Path          string
	Name          string
	SubGroupName  string
	MainGroupName string
	ScrapeEnabled bool
}

// CategoryCoverage pairs a category with its number of completed gigs.
type CategoryCoverage struct {
	CategoryRecord
	GigCount int64
}

// CoverageReport summarises how far the crawl has progressed.
type CoverageReport struct {
	TotalCategories   int
	EnabledCategories int
	TotalGigs         int64
	MinGigs           int64
	MaxGigs           int64
	AverageGigs       float64
	Lagging           []CategoryCoverage
	GigsByMainGroup   map[string]int64
}
