package fiverr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/config"
	"github.com/cryarchy/fiverr-tools/metrics"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/services"
	"github.com/cryarchy/fiverr-tools/storage"
	"github.com/cryarchy/fiverr-tools/utils"
)

const failedGigsTracked = 1024

// Reconnector re-attaches the browser tab after the session was lost.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Option configures optional collaborators of a Scraper.
type Option func(*Scraper)

func WithJournal(j storage.Journal) Option {
	return func(s *Scraper) { s.journal = j }
}

func WithMedia(m storage.MediaStore) Option {
	return func(s *Scraper) { s.media = m }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

func WithReconnector(r Reconnector) Option {
	return func(s *Scraper) { s.reconnector = r }
}

// Scraper is the crawl engine. It walks the category menu forever, always
// advancing the enabled category with the fewest completed gigs, and resumes
// from persisted progress after a restart.
type Scraper struct {
	cfg     *config.Config
	tab     *browser.Tab
	repos   storage.Repositories
	logger  *utils.Logger
	baseURL *url.URL

	menu     *CategoryMenu
	listing  *ListingPage
	gig      *GigPage
	nav      *SiteNav
	cleaner  *services.Cleaner
	insights *services.InsightService

	retry   *utils.RetryConfig
	limiter *rate.Limiter
	// gig paths whose scrape failed, with their failure count
	failures *lru.Cache[string, int]

	journal     storage.Journal
	media       storage.MediaStore
	metrics     *metrics.Metrics
	reconnector Reconnector

	// bumped on every category discovered or gig completed
	progress int64
}

// New creates a ready-to-use Scraper driving tab and persisting to store.
func New(cfg *config.Config, tab *browser.Tab, store storage.Store, logger *utils.Logger, opts ...Option) (*Scraper, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("engine: parse base url: %w", err)
	}
	failures, err := lru.New[string, int](failedGigsTracked)
	if err != nil {
		return nil, fmt.Errorf("engine: failure cache: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimitMs > 0 {
		limit = rate.Every(time.Duration(cfg.RateLimitMs) * time.Millisecond)
	}

	s := &Scraper{
		cfg:      cfg,
		tab:      tab,
		repos:    store.Repositories(),
		logger:   logger,
		baseURL:  base,
		menu:     NewCategoryMenu(tab, logger),
		listing:  NewListingPage(tab, cfg.MinRatings, cfg.SkipSponsored, cfg.PaginationTimeout, logger),
		gig:      NewGigPage(tab, cfg.SettleDelay, cfg.ShowMoreRetries, logger),
		nav:      NewSiteNav(tab, cfg.BaseURL),
		cleaner:  services.NewCleaner(logger),
		insights: services.NewInsightService(logger),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable:   func(err error) bool { return !apperrors.IsFatal(err) },
		},
		limiter:  rate.NewLimiter(limit, 1),
		failures: failures,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scrape runs passes until ctx is cancelled. A lost browser session is
// reconnected once; losing it again before any progress was made, or a
// fatal store error, ends the crawl with an error.
func (s *Scraper) Scrape(ctx context.Context) error {
	s.logger.Info("[engine] Starting crawl of %s", s.baseURL)

	lostAt := int64(-1)
	for {
		if ctx.Err() != nil {
			s.logger.Info("[engine] Crawl stopped")
			return nil
		}

		before := s.progress
		err := s.RunPass(ctx)
		switch {
		case err == nil:
			if s.progress == before && pause(ctx, s.cfg.PassBackoff) != nil {
				return nil
			}
		case ctx.Err() != nil:
			s.logger.Info("[engine] Crawl stopped")
			return nil
		case errors.Is(err, apperrors.ErrSessionLost):
			s.metrics.IncError(apperrors.Kind(err))
			if s.reconnector == nil || lostAt == s.progress {
				return fmt.Errorf("engine: %w", err)
			}
			lostAt = s.progress
			s.logger.Warn("[engine] Browser session lost, reconnecting: %v", err)
			if rerr := s.reconnector.Reconnect(ctx); rerr != nil {
				return fmt.Errorf("engine: reconnect: %w", rerr)
			}
		case apperrors.IsFatal(err):
			s.metrics.IncError(apperrors.Kind(err))
			return fmt.Errorf("engine: %w", err)
		default:
			s.metrics.IncError(apperrors.Kind(err))
			s.logger.Error("[engine] Pass failed (%s): %v", apperrors.Kind(err), err)
			if pause(ctx, s.cfg.PassBackoff) != nil {
				return nil
			}
		}
	}
}

// RunPass walks the whole category menu once.
func (s *Scraper) RunPass(ctx context.Context) error {
	s.metrics.IncPass()
	s.logCoverage(ctx)

	if err := s.nav.GoHome(ctx); err != nil {
		return err
	}
	tree, err := s.menu.Categories(ctx)
	if err != nil {
		return err
	}

	for {
		category, err := tree.Next(ctx)
		if err != nil {
			return err
		}
		if category == nil {
			s.logger.Info("[engine] Category menu exhausted, starting over")
			return nil
		}

		navigated, err := s.processCategory(ctx, category)
		if err != nil {
			if ctx.Err() != nil || apperrors.IsFatal(err) {
				return err
			}
			s.metrics.IncError(apperrors.Kind(err))
			s.logger.Error("[engine] Category %s / %s failed: %v", category.SubGroup, category.Name, err)
		}
		if navigated {
			if err := s.nav.GoHome(ctx); err != nil {
				return err
			}
			tree.Invalidate()
		}
	}
}

// processCategory runs one category through discovery, fairness and
// resumption. It reports whether the tab left the menu page.
func (s *Scraper) processCategory(ctx context.Context, c *models.Category) (bool, error) {
	target, err := s.resolve(c.RelativeURL)
	if err != nil {
		return false, err
	}
	path := target.Path

	record, err := s.repos.Categories.GetByPath(ctx, path)
	if err != nil {
		return false, err
	}
	if record == nil {
		if _, err := s.repos.Categories.Create(ctx, models.NewCategory{
			Path:          path,
			Name:          c.Name,
			SubGroupName:  c.SubGroup,
			MainGroupName: c.MainGroup,
		}); err != nil {
			return false, err
		}
		s.progress++
		s.metrics.IncCategory()
		s.logger.Info("[engine] Discovered category %s / %s / %s (%s)", c.MainGroup, c.SubGroup, c.Name, path)
		return false, nil
	}
	if !record.ScrapeEnabled {
		s.logger.Debug("[engine] Category %s is not enabled, skipping", path)
		return false, nil
	}

	purged, err := s.repos.Gigs.DeleteIncomplete(ctx)
	if err != nil {
		return false, err
	}
	if purged > 0 {
		s.logger.Warn("[engine] Removed %d interrupted gigs", purged)
	}
	lowest, err := s.repos.Categories.MinimumGigCount(ctx)
	if err != nil {
		return false, err
	}
	count, err := s.repos.Gigs.CountForCategory(ctx, record.ID)
	if err != nil {
		return false, err
	}
	if count > lowest {
		s.logger.Debug("[engine] Category %s has %d gigs, minimum is %d, skipping", path, count, lowest)
		return false, nil
	}

	page := 1
	if last, ok, err := s.repos.Gigs.LastScrapedPage(ctx, record.ID); err != nil {
		return false, err
	} else if ok {
		page = last
	}

	s.logger.Info("[engine] Scraping category %s (%d gigs) from page %d", path, count, page)
	if err := s.navigate(ctx, "listing", target.String()); err != nil {
		return true, err
	}

	candidate, err := s.findNextUnscraped(ctx, page)
	if err != nil {
		return true, err
	}
	if candidate == nil {
		// the count can no longer grow, so the minimum is pinned here
		s.logger.Warn("[engine] No unscraped gig left in %s at %d gigs: fairness is pinned to this category and every other enabled category will be skipped until it is disabled", path, count)
		return true, nil
	}

	if err := s.scrapeGig(ctx, record, candidate); err != nil {
		s.recordFailure(ctx, candidate.URL, err)
		return true, err
	}
	return true, nil
}

// findNextUnscraped pages forward from page until a candidate not yet in
// the store turns up. It returns nil when pagination runs out.
func (s *Scraper) findNextUnscraped(ctx context.Context, page int) (*models.ListingCandidate, error) {
	for ; ; page++ {
		ok, err := s.listing.GoToPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Debug("[engine] Page %d unreachable", page)
			return nil, nil
		}
		if page > 1 {
			s.metrics.IncPage("listing")
		}

		if _, err := s.tab.WaitForTimeout(ctx, gigCardsLoc, s.cfg.PageLoadTimeout); err != nil {
			var notFound apperrors.ElementNotFoundError
			if errors.As(err, &notFound) {
				s.logger.Debug("[engine] Page %d has no gig cards", page)
				return nil, nil
			}
			return nil, err
		}

		cards, err := s.listing.Cards(ctx)
		if err != nil {
			return nil, err
		}
		for {
			candidate, err := cards.Next(ctx)
			if err != nil {
				return nil, err
			}
			if candidate == nil {
				break
			}

			target, err := s.resolve(candidate.URL)
			if err != nil {
				return nil, err
			}
			if s.quarantined(target.Path) {
				s.logger.Debug("[engine] Skipping %s after repeated failures", target.Path)
				continue
			}
			exists, err := s.repos.Gigs.ExistsByPath(ctx, target.Path)
			if err != nil {
				return nil, err
			}
			if !exists {
				return candidate, nil
			}
		}
	}
}

// scrapeGig extracts and persists one gig. The gig is marked completed only
// after every child collection was stored.
func (s *Scraper) scrapeGig(ctx context.Context, category *models.CategoryRecord, candidate *models.ListingCandidate) error {
	start := time.Now()
	target, err := s.resolve(candidate.URL)
	if err != nil {
		return err
	}
	path := target.Path
	username, err := sellerUsername(path)
	if err != nil {
		return err
	}

	s.logger.Info("[engine] Scraping gig %s (page %d)", path, candidate.Page)
	if err := s.navigate(ctx, "gig", target.String()); err != nil {
		return err
	}
	if err := s.gig.WaitLoaded(ctx); err != nil {
		return err
	}

	sellerID, err := s.resolveSeller(ctx, username)
	if err != nil {
		return err
	}

	gig := models.NewGig{
		Path:       path,
		Page:       candidate.Page,
		SellerID:   sellerID,
		CategoryID: category.ID,
	}
	if gig.Title, err = s.gig.Title(ctx); err != nil {
		return err
	}
	if gig.Rating, err = s.gig.Rating(ctx); err != nil {
		return err
	}
	if gig.ReviewCount, err = s.gig.ReviewCount(ctx); err != nil {
		return err
	}
	if gig.Description, err = s.gig.Description(ctx); err != nil {
		return err
	}
	text := services.HTMLToText(gig.Description)
	s.logger.Debug("[engine] Description of %s has %d characters", path, len(text))

	gigID, err := s.repos.Gigs.Create(ctx, gig)
	if err != nil {
		return err
	}

	if err := s.persistMetadata(ctx, gigID); err != nil {
		return err
	}
	if err := s.persistPackages(ctx, gigID); err != nil {
		return err
	}
	if err := s.persistFAQs(ctx, gigID); err != nil {
		return err
	}
	if err := s.persistVisuals(ctx, gigID); err != nil {
		return err
	}
	reviews, err := s.persistReviews(ctx, gigID)
	if err != nil {
		return err
	}

	s.progress++
	s.metrics.IncGig()
	s.metrics.ObserveGig(time.Since(start))
	s.logger.Info("[engine] Completed gig %s with %d reviews in %s", path, reviews, time.Since(start).Round(time.Millisecond))

	if s.journal != nil {
		if err := s.journal.Append(models.JournalEntry{
			Path:         path,
			Title:        gig.Title,
			CategoryPath: category.Path,
			Page:         gig.Page,
			Reviews:      reviews,
			Excerpt:      services.Excerpt(text, 120),
			ScrapedAt:    time.Now(),
		}); err != nil {
			s.logger.Warn("[engine] Journal append failed for %s: %v", path, err)
		}
	}
	return nil
}

// resolveSeller returns the seller's id, reading the seller card only the
// first time a username is seen.
func (s *Scraper) resolveSeller(ctx context.Context, username string) (int64, error) {
	id, found, err := s.repos.Sellers.GetIDByUsername(ctx, username)
	if err != nil || found {
		return id, err
	}

	seller := models.NewSeller{Username: username}
	if seller.Rating, err = s.gig.SellerRating(ctx); err != nil {
		return 0, err
	}
	if seller.Level, err = s.gig.SellerLevel(ctx); err != nil {
		return 0, err
	}
	if seller.ReviewCount, err = s.gig.SellerReviewCount(ctx); err != nil {
		return 0, err
	}
	if seller.Description, err = s.gig.SellerDescription(ctx); err != nil {
		return 0, err
	}
	stats, err := s.gig.SellerStats(ctx)
	if err != nil {
		return 0, err
	}

	if id, err = s.repos.Sellers.Create(ctx, seller); err != nil {
		return 0, err
	}
	for _, stat := range stats {
		if _, err := s.repos.SellerStats.Create(ctx, id, stat); err != nil {
			return 0, err
		}
	}
	s.logger.Debug("[engine] New seller %s with %d stats", username, len(stats))
	return id, nil
}

// navigate paces and retries a page load.
func (s *Scraper) navigate(ctx context.Context, kind, target string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	s.metrics.IncPage(kind)
	return s.retry.Do(ctx, "navigate to "+kind, func() error {
		return s.tab.NavigateTo(ctx, target)
	})
}

func (s *Scraper) logCoverage(ctx context.Context) {
	coverage, err := s.repos.Categories.Coverage(ctx)
	if err != nil {
		s.logger.Warn("[engine] Coverage report unavailable: %v", err)
		return
	}
	s.insights.Log(s.insights.Generate(coverage))
}

func (s *Scraper) recordFailure(ctx context.Context, rawURL string, err error) {
	if ctx.Err() != nil || apperrors.IsFatal(err) {
		return
	}
	target, perr := s.resolve(rawURL)
	if perr != nil {
		return
	}
	n, _ := s.failures.Get(target.Path)
	s.failures.Add(target.Path, n+1)
}

func (s *Scraper) quarantined(path string) bool {
	n, ok := s.failures.Get(path)
	return ok && n >= max(s.cfg.MaxRetries, 1)
}

func (s *Scraper) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, apperrors.ParseError{Raw: ref, Err: err}
	}
	return s.baseURL.ResolveReference(u), nil
}

// sellerUsername returns the first segment of a gig path, /<username>/<slug>.
func sellerUsername(path string) (string, error) {
	username, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if username == "" {
		return "", apperrors.Unexpected("gig path %q has no seller segment", path)
	}
	return username, nil
}
