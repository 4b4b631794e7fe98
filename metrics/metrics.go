package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry             *prometheus.Registry
	GigsScrapedTotal     prometheus.Counter
	CategoriesDiscovered prometheus.Counter
	PagesVisitedTotal    *prometheus.CounterVec
	ChildrenSkippedTotal *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec
	GigDuration          prometheus.Histogram
	PassesTotal          prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	gigs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fiverr_gigs_scraped_total",
		Help: "Total number of gigs scraped to completion.",
	})
	categories := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fiverr_categories_discovered_total",
		Help: "Total number of categories recorded for the first time.",
	})
	pages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fiverr_pages_visited_total",
		Help: "Total page navigations by kind.",
	}, []string{"kind"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fiverr_children_skipped_total",
		Help: "Child records dropped while persisting a gig, by kind.",
	}, []string{"kind"})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fiverr_errors_total",
		Help: "Total number of scraper errors by type.",
	}, []string{"error_type"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fiverr_gig_scrape_duration_seconds",
		Help:    "Time spent scraping a single gig page.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	})
	passes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fiverr_passes_total",
		Help: "Total number of completed traversal passes.",
	})

	registry.MustRegister(gigs, categories, pages, skipped, errorsTotal, duration, passes)

	return &Metrics{
		Registry:             registry,
		GigsScrapedTotal:     gigs,
		CategoriesDiscovered: categories,
		PagesVisitedTotal:    pages,
		ChildrenSkippedTotal: skipped,
		ErrorsTotal:          errorsTotal,
		GigDuration:          duration,
		PassesTotal:          passes,
	}
}

func (m *Metrics) IncGig() {
	if m == nil {
		return
	}
	m.GigsScrapedTotal.Inc()
}

func (m *Metrics) IncCategory() {
	if m == nil {
		return
	}
	m.CategoriesDiscovered.Inc()
}

// IncPage counts a navigation; kind is one of listing, gig or home.
func (m *Metrics) IncPage(kind string) {
	if m == nil {
		return
	}
	m.PagesVisitedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncSkipped(kind string) {
	if m == nil {
		return
	}
	m.ChildrenSkippedTotal.WithLabelValues(kind).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveGig(d time.Duration) {
	if m == nil {
		return
	}
	m.GigDuration.Observe(d.Seconds())
}

func (m *Metrics) IncPass() {
	if m == nil {
		return
	}
	m.PassesTotal.Inc()
}
