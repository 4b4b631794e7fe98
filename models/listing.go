package models

import "time"

// ListingCandidate is a gig card that passed the popularity filter on a
// category listing page.
type ListingCandidate struct {
	URL  string
	Page int
}

// NewGig holds the fields of a gig row at creation time.
type NewGig struct {
	Path        string
	Title       string
	Rating      string
	ReviewCount int64
	Description string
	Page        int
	SellerID    int64
	CategoryID  int64
}

// GigRecord is a persisted gig.
type GigRecord struct {
	ID int64
	NewGig
	ScrapeCompleted bool
	CreatedAt       time.Time
}

// Metadata is one attribute block of a gig, e.g. "Platform" -> [iOS, Android].
type Metadata struct {
	Key    string
	Values []string
}

type VisualKind string

const (
	VisualImage VisualKind = "image"
	VisualVideo VisualKind = "video"
)

// Visual is one gallery slide.
type Visual struct {
	Kind VisualKind
	URL  string
}

// Feature is one row of the package comparison matrix for a single package.
type Feature struct {
	Key   string
	Value string
}

// RawPackage holds one package column exactly as read from the page.
type RawPackage struct {
	Type         string
	Price        string
	Title        string
	Description  string
	DeliveryTime string
	Features     []Feature
}

// Package is the cleaned package ready for storage.
type Package struct {
	Type         string
	Price        float64
	Title        string
	Description  string
	DeliveryTime string
	Features     []Feature
}

type FAQ struct {
	Question string
	Answer   string
}

// RawReview holds one review card exactly as read from the page.
type RawReview struct {
	Country     *string
	Rating      string
	Price       string
	Duration    string
	Description string
}

// Review is the cleaned review ready for storage.
type Review struct {
	Country       *string
	Rating        float64
	PriceRangeMin int64
	PriceRangeMax int64
	DurationValue int64
	DurationUnit  string
	Description   string
}

// JournalEntry is one line of the crawl journal, written per completed gig.
type JournalEntry struct {
	Path         string
	Title        string
	CategoryPath string
	Page         int
	Reviews      int
	Excerpt      string
	ScrapedAt    time.Time
}
