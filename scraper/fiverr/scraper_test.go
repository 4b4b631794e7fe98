package fiverr

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser/browsertest"
	"github.com/cryarchy/fiverr-tools/metrics"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/storage"
	"github.com/cryarchy/fiverr-tools/utils"
)

const (
	mobileAppsHref = "/categories/programming-tech/mobile-app-services?source=category_tree"
	mobileAppsPath = "/categories/programming-tech/mobile-app-services"
	mobileAppsURL  = testBaseURL + "categories/programming-tech/mobile-app-services?source=category_tree"
)

var mobileApps = &models.Category{
	MainGroup:   "Programming & Tech",
	SubGroup:    "Application Development",
	Name:        "Mobile Apps",
	RelativeURL: mobileAppsHref,
}

type engineFixture struct {
	page    *browsertest.Page
	store   *storage.MemoryStore
	journal *recordingJournal
	media   *recordingMedia
	metrics *metrics.Metrics
	scraper *Scraper
}

type recordingMedia struct {
	saved []string
}

func (m *recordingMedia) Save(_ context.Context, _ int64, url string) (string, error) {
	m.saved = append(m.saved, url)
	return "/tmp/" + url, nil
}

type countingReconnector struct {
	calls int
}

func (r *countingReconnector) Reconnect(context.Context) error {
	r.calls++
	return nil
}

func newEngine(t *testing.T, opts ...Option) *engineFixture {
	t.Helper()
	page, tab := newTestTab(t)
	setMenu(page, menuTab{name: mobileApps.MainGroup, groups: []menuGroup{
		{title: mobileApps.SubGroup, leaves: []menuLeaf{{mobileApps.Name, mobileAppsHref}}},
	}})

	f := &engineFixture{
		page:    page,
		store:   storage.NewMemoryStore(),
		journal: &recordingJournal{},
		media:   &recordingMedia{},
		metrics: metrics.New(),
	}
	opts = append([]Option{WithJournal(f.journal), WithMedia(f.media), WithMetrics(f.metrics)}, opts...)
	s, err := New(testConfig(), tab, f.store, nopLogger(), opts...)
	require.NoError(t, err)
	f.scraper = s
	return f
}

// enabledCategory records path as an operator-enabled category.
func (f *engineFixture) enabledCategory(t *testing.T, path string) int64 {
	t.Helper()
	id, err := f.store.Repositories().Categories.Create(context.Background(), models.NewCategory{Path: path, Name: path})
	require.NoError(t, err)
	require.NoError(t, f.store.SetScrapeEnabled(path, true))
	return id
}

// seedGigs stores n gigs of the category, completed or not.
func (f *engineFixture) seedGigs(t *testing.T, categoryID int64, prefix string, n, page int, completed bool) {
	t.Helper()
	ctx := context.Background()
	gigs := f.store.Repositories().Gigs
	for i := 0; i < n; i++ {
		id, err := gigs.Create(ctx, models.NewGig{
			Path:       prefix + string(rune('a'+i)),
			Title:      "seeded",
			Page:       page,
			CategoryID: categoryID,
		})
		require.NoError(t, err)
		if completed {
			require.NoError(t, gigs.MarkCompleted(ctx, id))
		}
	}
}

func appsmithGig() gigFixture {
	return gigFixture{
		title:       "I will build your iOS and Android app",
		rating:      "4.9",
		reviewCount: "(1,254)",
		description: "<p>Native <b>iOS</b> and Android apps.</p>",
		reviews: []*browsertest.Node{
			reviewNode("Germany", "5", "$400-$600", "2 weeks", "Delivered early."),
			reviewNode("Kenya", "5", "abc", "1 week", "Great."),
		},
		images: []string{"https://fiverr-res.cloudinary.com/cover.png"},
	}
}

func TestRunPassDiscoversNewCategory(t *testing.T) {
	f := newEngine(t)

	require.NoError(t, f.scraper.RunPass(context.Background()))

	categories := f.store.Categories()
	require.Len(t, categories, 1)
	assert.Equal(t, mobileAppsPath, categories[0].Path)
	assert.Equal(t, "Mobile Apps", categories[0].Name)
	assert.Equal(t, "Application Development", categories[0].SubGroupName)
	assert.Equal(t, "Programming & Tech", categories[0].MainGroupName)
	assert.False(t, categories[0].ScrapeEnabled)

	// discovery never opens the listing
	assert.Equal(t, []string{testBaseURL}, f.page.Navigations())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CategoriesDiscovered))
}

func TestRunPassSkipsDisabledCategory(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	require.NoError(t, f.scraper.RunPass(ctx))
	require.NoError(t, f.scraper.RunPass(ctx))

	assert.Len(t, f.store.Categories(), 1)
	assert.Equal(t, []string{testBaseURL, testBaseURL}, f.page.Navigations())
}

func TestProcessCategoryFairness(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	design := f.enabledCategory(t, "/categories/graphics-design/app-design")
	f.seedGigs(t, design, "/designer/app-", 3, 1, true)
	writing := f.enabledCategory(t, "/categories/writing-translation/ux-writing")
	f.seedGigs(t, writing, "/writer/ux-", 3, 1, true)
	apps := f.enabledCategory(t, mobileAppsPath)
	f.seedGigs(t, apps, "/appsmith/app-", 5, 1, true)

	navigated, err := f.scraper.processCategory(ctx, mobileApps)
	require.NoError(t, err)
	assert.False(t, navigated)
	assert.Empty(t, f.page.Navigations())

	navigated, err = f.scraper.processCategory(ctx, &models.Category{
		Name:        "App Design",
		RelativeURL: "/categories/graphics-design/app-design",
	})
	require.NoError(t, err)
	assert.True(t, navigated)
	assert.Equal(t, []string{testBaseURL + "categories/graphics-design/app-design"}, f.page.Navigations())
}

func TestProcessCategoryWarnsWhenListingIsExhausted(t *testing.T) {
	f := newEngine(t)
	core, logs := observer.New(zapcore.WarnLevel)
	f.scraper.logger = utils.FromZap(zap.New(core))

	apps := f.enabledCategory(t, mobileAppsPath)
	f.seedGigs(t, apps, "/appsmith/app-", 2, 1, true)
	setCards(f.page, cardFixture{href: "/appsmith/app-a", count: "(900)"})

	navigated, err := f.scraper.processCategory(context.Background(), mobileApps)
	require.NoError(t, err)
	assert.True(t, navigated)

	warnings := logs.FilterMessageSnippet("fairness is pinned").All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, mobileAppsPath)
}

func TestProcessCategoryPurgesInterruptedGigs(t *testing.T) {
	f := newEngine(t)
	apps := f.enabledCategory(t, mobileAppsPath)
	f.seedGigs(t, apps, "/appsmith/done-", 1, 1, true)
	f.seedGigs(t, apps, "/appsmith/crashed-", 2, 1, false)

	_, err := f.scraper.processCategory(context.Background(), mobileApps)
	require.NoError(t, err)

	for _, g := range f.store.Gigs() {
		assert.True(t, g.ScrapeCompleted, g.Path)
	}
	assert.Len(t, f.store.Gigs(), 1)
}

func TestScrapeSkipsExistingGig(t *testing.T) {
	f := newEngine(t)
	apps := f.enabledCategory(t, mobileAppsPath)
	f.seedGigs(t, apps, "/appsmith/existing-", 1, 1, true)

	setCards(f.page,
		cardFixture{href: "/appsmith/existing-a?pos=1", count: "(900)"},
		cardFixture{href: "/appsmith/native-app?pos=2", count: "(450)"},
	)
	setGig(f.page, appsmithGig())

	navigated, err := f.scraper.processCategory(context.Background(), mobileApps)
	require.NoError(t, err)
	assert.True(t, navigated)

	assert.Equal(t, []string{
		mobileAppsURL,
		testBaseURL + "appsmith/native-app?pos=2",
	}, f.page.Navigations())
	g, ok := f.store.GigByPath("/appsmith/native-app")
	require.True(t, ok)
	assert.True(t, g.ScrapeCompleted)
}

func TestRunPassScrapesGigToCompletion(t *testing.T) {
	f := newEngine(t)
	f.enabledCategory(t, mobileAppsPath)
	setCards(f.page, cardFixture{href: "/appsmith/native-app", count: "(450)"})
	setGig(f.page, appsmithGig())

	require.NoError(t, f.scraper.RunPass(context.Background()))

	assert.Equal(t, []string{
		testBaseURL,
		mobileAppsURL,
		testBaseURL + "appsmith/native-app",
		testBaseURL,
	}, f.page.Navigations())

	g, ok := f.store.GigByPath("/appsmith/native-app")
	require.True(t, ok)
	assert.True(t, g.ScrapeCompleted)
	assert.Equal(t, "I will build your iOS and Android app", g.Title)
	assert.Equal(t, "4.9", g.Rating)
	assert.Equal(t, int64(1254), g.ReviewCount)
	assert.Equal(t, 1, g.Page)

	sellerID, ok := f.store.SellerID("appsmith")
	require.True(t, ok)
	assert.Equal(t, sellerID, g.SellerID)
	assert.Len(t, f.store.Children(storage.TableSellerStat, sellerID), 2)

	assert.Len(t, f.store.Children(storage.TableMetadata, g.ID), 1)
	assert.Len(t, f.store.Children(storage.TablePackage, g.ID), 2)
	assert.Len(t, f.store.Children(storage.TableFAQ, g.ID), 1)
	assert.Len(t, f.store.Children(storage.TableVisual, g.ID), 1)
	// the review with an unparsable price range is dropped
	reviews := f.store.Children(storage.TableReview, g.ID)
	require.Len(t, reviews, 1)
	assert.Equal(t, int64(400), reviews[0].(models.Review).PriceRangeMin)

	assert.Equal(t, []string{"Basic", "Premium"}, f.store.LookupNames(storage.TablePackageType))
	assert.Equal(t, []string{"image"}, f.store.LookupNames(storage.TableVisualType))
	assert.Equal(t, []string{"https://fiverr-res.cloudinary.com/cover.png"}, f.media.saved)

	require.Len(t, f.journal.entries, 1)
	entry := f.journal.entries[0]
	assert.Equal(t, "/appsmith/native-app", entry.Path)
	assert.Equal(t, mobileAppsPath, entry.CategoryPath)
	assert.Equal(t, 2, entry.Reviews)
	assert.Equal(t, "Native iOS and Android apps.", entry.Excerpt)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GigsScrapedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChildrenSkippedTotal.WithLabelValues("review")))
}

func TestScrapeResumesAtLastPage(t *testing.T) {
	f := newEngine(t)
	apps := f.enabledCategory(t, mobileAppsPath)
	f.seedGigs(t, apps, "/appsmith/page-two-", 1, 2, true)

	p := newPagination(f.page, 3, 5)
	setCards(f.page, cardFixture{href: "/appsmith/native-app", count: "(450)"})
	setGig(f.page, appsmithGig())

	_, err := f.scraper.processCategory(context.Background(), mobileApps)
	require.NoError(t, err)

	assert.Equal(t, 1, p.links[2].Clicks)
	g, ok := f.store.GigByPath("/appsmith/native-app")
	require.True(t, ok)
	assert.Equal(t, 2, g.Page)
}

func TestReviewPrefixCompletesGigEarly(t *testing.T) {
	f := newEngine(t)
	f.scraper.cfg.ReviewPrefix = 1
	f.enabledCategory(t, mobileAppsPath)
	setCards(f.page, cardFixture{href: "/appsmith/native-app", count: "(450)"})
	setGig(f.page, appsmithGig())

	_, err := f.scraper.processCategory(context.Background(), mobileApps)
	require.NoError(t, err)

	g, ok := f.store.GigByPath("/appsmith/native-app")
	require.True(t, ok)
	assert.True(t, g.ScrapeCompleted)
	assert.Len(t, f.store.Children(storage.TableReview, g.ID), 1)
	assert.Equal(t, 1, f.journal.entries[0].Reviews)
}

func TestFailedGigStaysIncomplete(t *testing.T) {
	f := newEngine(t)
	f.enabledCategory(t, mobileAppsPath)
	setCards(f.page, cardFixture{href: "/appsmith/native-app", count: "(450)"})
	setGig(f.page, appsmithGig())
	f.page.Set(faqLoc.NthMatch(1).Render(), (&browsertest.Node{}).
		WithChild(faqQuestionRule, browsertest.Text("Question without answer?")))

	_, err := f.scraper.processCategory(context.Background(), mobileApps)
	var notFound apperrors.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)

	g, ok := f.store.GigByPath("/appsmith/native-app")
	require.True(t, ok)
	assert.False(t, g.ScrapeCompleted)
	assert.Empty(t, f.journal.entries)
}

func TestScrapeReconnectsOnce(t *testing.T) {
	reconnector := &countingReconnector{}
	f := newEngine(t, WithReconnector(reconnector))
	f.page.Lose()

	err := f.scraper.Scrape(context.Background())
	require.ErrorIs(t, err, apperrors.ErrSessionLost)
	assert.Equal(t, 1, reconnector.calls)
}

func TestScrapeStopsOnCancel(t *testing.T) {
	f := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, f.scraper.Scrape(ctx))
	assert.Empty(t, f.page.Navigations())
}

func TestSellerUsername(t *testing.T) {
	got, err := sellerUsername("/appsmith/native-app")
	require.NoError(t, err)
	assert.Equal(t, "appsmith", got)

	_, err = sellerUsername("/")
	var unexpected apperrors.UnexpectedError
	assert.ErrorAs(t, err, &unexpected)
}
