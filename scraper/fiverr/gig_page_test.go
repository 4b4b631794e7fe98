package fiverr

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser/browsertest"
	"github.com/cryarchy/fiverr-tools/models"
)

func TestDecodeCheckCell(t *testing.T) {
	classes := []string{"icon gray", "icon muted", "icon green checked"}
	checked := 0
	for _, c := range classes {
		checked = max(checked, classTokens(c))
	}
	require.Equal(t, 3, checked)

	tests := []struct {
		class string
		want  string
	}{
		{"icon green checked", "true"},
		{"icon gray", "false"},
		{"  icon   muted ", "false"},
	}
	for _, tt := range tests {
		got, err := DecodeCheckCell(tt.class, true, checked)
		if err != nil {
			t.Fatalf("DecodeCheckCell(%q) error: %v", tt.class, err)
		}
		if got != tt.want {
			t.Errorf("DecodeCheckCell(%q) = %q, want %q", tt.class, got, tt.want)
		}
	}

	_, err := DecodeCheckCell("", false, checked)
	var unexpected apperrors.UnexpectedError
	assert.ErrorAs(t, err, &unexpected)
}

func TestGigPagePackages(t *testing.T) {
	page, tab := newTestTab(t)
	setPackages(page)

	got, err := NewGigPage(tab, 0, 0, nopLogger()).Packages(context.Background())
	require.NoError(t, err)

	want := []models.RawPackage{
		{
			Type: "Basic", Price: "$30", Title: "Starter app", Description: "One screen", DeliveryTime: "3 days",
			Features: []models.Feature{{Key: "Revisions", Value: "1"}, {Key: "Source code", Value: "false"}},
		},
		{
			Type: "Premium", Price: "$1,200", Title: "Full app", Description: "Ten screens", DeliveryTime: "14 days",
			Features: []models.Feature{{Key: "Revisions", Value: "Unlimited"}, {Key: "Source code", Value: "true"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("packages mismatch (-want +got):\n%s", diff)
	}
}

func TestGigPagePackagesMalformedIcon(t *testing.T) {
	page, tab := newTestTab(t)
	setPackages(page)
	page.Set(packageFeatureRowsLoc.Render(), (&browsertest.Node{}).WithChild(packageCellRule,
		browsertest.Text("Source code"), checkCell(""), checkCell("icon green checked")))

	_, err := NewGigPage(tab, 0, 0, nopLogger()).Packages(context.Background())
	var unexpected apperrors.UnexpectedError
	require.ErrorAs(t, err, &unexpected)
}

func TestGigPageWithoutPackageTable(t *testing.T) {
	_, tab := newTestTab(t)

	got, err := NewGigPage(tab, 0, 0, nopLogger()).Packages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func drainReviews(t *testing.T, s *ReviewStream) []models.RawReview {
	t.Helper()
	var out []models.RawReview
	for {
		r, err := s.Next(context.Background())
		require.NoError(t, err)
		if r == nil {
			return out
		}
		out = append(out, *r)
	}
}

func TestReviewStreamEndsWhenNextCardIsMissing(t *testing.T) {
	page, tab := newTestTab(t)
	reviews := []*browsertest.Node{
		reviewNode("Germany", "5", "$50-$100", "3 days", "Fast and clean."),
		reviewNode("", "4", "$50", "1 week", "Good work."),
		reviewNode("Kenya", "5", "$200-$400", "2 weeks", "Again!"),
	}
	setReviews(page, reviews...)
	gig := NewGigPage(tab, 0, 2, nopLogger())

	got := drainReviews(t, gig.Reviews())
	require.Len(t, got, 3)
	require.NotNil(t, got[0].Country)
	assert.Equal(t, "Germany", *got[0].Country)
	assert.Nil(t, got[1].Country)
	assert.Equal(t, "$50", got[1].Price)
	assert.Equal(t, "1 week", got[1].Duration)

	setReviews(page, reviews[:2]...)
	assert.Len(t, drainReviews(t, gig.Reviews()), 2)
}

func TestReviewStreamShowsMore(t *testing.T) {
	page, tab := newTestTab(t)
	setReviews(page,
		reviewNode("Germany", "5", "$50", "3 days", "one"),
		reviewNode("France", "5", "$50", "3 days", "two"),
	)
	loaded := false
	button := &browsertest.Node{}
	button.OnClick = func() {
		if !loaded {
			loaded = true
			page.Set(reviewLoc.NthMatch(3).Render(), reviewNode("Spain", "4", "$50", "3 days", "three"))
		}
	}
	page.Set(reviewsShowMoreLoc.Render(), button)

	got := drainReviews(t, NewGigPage(tab, 0, 2, nopLogger()).Reviews())
	require.Len(t, got, 3)
	assert.Equal(t, "three", got[2].Description)
	// one click loaded card 3, two more failed to load card 4
	assert.Equal(t, 3, button.Clicks)
}

func TestReviewStreamExpandsLongReviews(t *testing.T) {
	page, tab := newTestTab(t)
	card := reviewNode("Germany", "5", "$50", "3 days", "Great work and...")
	expand := &browsertest.Node{}
	expand.OnClick = func() {
		card.WithChild(reviewDescriptionRule, browsertest.Text("Great work and fast delivery."))
	}
	card.WithChild(reviewExpandRule, expand)
	setReviews(page, card)

	got := drainReviews(t, NewGigPage(tab, 0, 0, nopLogger()).Reviews())
	require.Len(t, got, 1)
	assert.Equal(t, "Great work and fast delivery.", got[0].Description)
}

func TestReviewStreamMissingFieldIsAnError(t *testing.T) {
	page, tab := newTestTab(t)
	card := reviewNode("Germany", "5", "$50", "3 days", "ok")
	card.WithChild(reviewPriceDurationRule, browsertest.Text("$50"))
	setReviews(page, card)

	_, err := NewGigPage(tab, 0, 0, nopLogger()).Reviews().Next(context.Background())
	var notFound apperrors.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, strings.HasSuffix(notFound.Locator, "> p:first-child [#2]"), notFound.Locator)
}

func TestFAQList(t *testing.T) {
	page, tab := newTestTab(t)
	for i, q := range []string{"Do you publish?", "Is hosting included?"} {
		page.Set(faqLoc.NthMatch(i+1).Render(), (&browsertest.Node{}).
			WithChild(faqQuestionRule, browsertest.Text(q)).
			WithChild(faqAnswerRule, browsertest.Text(" Yes. ")))
	}

	faqs := NewGigPage(tab, 0, 0, nopLogger()).FAQs()
	var got []models.FAQ
	for {
		f, err := faqs.Next(context.Background())
		require.NoError(t, err)
		if f == nil {
			break
		}
		got = append(got, *f)
	}
	assert.Equal(t, []models.FAQ{
		{Question: "Do you publish?", Answer: "Yes."},
		{Question: "Is hosting included?", Answer: "Yes."},
	}, got)
}

func TestGigPageSellerFields(t *testing.T) {
	page, tab := newTestTab(t)
	setGig(page, gigFixture{title: "I will build your iOS app", rating: "4.9", reviewCount: "(1,254)"})
	gig := NewGigPage(tab, 0, 0, nopLogger())
	ctx := context.Background()

	level, err := gig.SellerLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Level 2 seller", level)

	reviews, err := gig.SellerReviewCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), reviews)

	stats, err := gig.SellerStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.SellerStat{
		{Key: "From", Value: "Kenya"},
		{Key: "Member since", Value: "Mar 2019"},
	}, stats)

	count, err := gig.ReviewCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1254), count)

	metadata, err := gig.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Metadata{{Key: "Platform", Values: []string{"iOS", "Android"}}}, metadata)
}

func TestGigPageOptionalSellerLevel(t *testing.T) {
	_, tab := newTestTab(t)

	level, err := NewGigPage(tab, 0, 0, nopLogger()).SellerLevel(context.Background())
	require.NoError(t, err)
	assert.Empty(t, level)
}

// slideshow simulates the gallery modal: prev and next move the current
// slide, wrapping at both ends.
type slideshow struct {
	page    *browsertest.Page
	slides  []*browsertest.Node
	current int
	closed  bool
}

func newSlideshow(page *browsertest.Page, current int, slides ...*browsertest.Node) *slideshow {
	s := &slideshow{page: page, slides: slides, current: current}
	page.Set(modalSlidesLoc.Render(), slides...)
	page.Set(modalPrevLoc.Render(), &browsertest.Node{OnClick: func() { s.move(-1) }})
	page.Set(modalNextLoc.Render(), &browsertest.Node{OnClick: func() { s.move(1) }})
	s.render()
	return s
}

func (s *slideshow) move(delta int) {
	s.current = (s.current-1+delta+len(s.slides))%len(s.slides) + 1
	s.render()
}

func (s *slideshow) render() {
	for i := range s.slides {
		s.page.Remove(currentSlide(i + 1).Render())
		s.page.Remove(currentSlide(i + 1).Descendant(slideRule).Render())
	}
	s.page.Set(currentSlide(s.current).Render(), &browsertest.Node{})
	s.page.Set(currentSlide(s.current).Descendant(slideRule).Render(), s.slides[s.current-1])
}

func TestVisualsRewindsSlideshow(t *testing.T) {
	page, tab := newTestTab(t)
	page.Set(galleryThumbnailsLoc.Render(), &browsertest.Node{}, &browsertest.Node{}, &browsertest.Node{})

	slides := []*browsertest.Node{
		(&browsertest.Node{}).WithAttr("class", "slide slide-image"),
		(&browsertest.Node{}).WithAttr("class", "slide slide-video"),
		(&browsertest.Node{}).WithAttr("class", "slide slide-image"),
	}

	var show *slideshow
	figure := &browsertest.Node{OnClick: func() {
		page.Set(modalSlideshowLoc.Render(), &browsertest.Node{})
		page.Set(modalCloseLoc.Render(), &browsertest.Node{OnClick: func() {
			show.closed = true
			page.Remove(modalSlideshowLoc.Render())
			page.Remove(modalCloseLoc.Render())
		}})
		show = newSlideshow(page, 2, slides...)
	}}
	page.Set(inlineFigureLoc.Render(), figure)

	for i, src := range []string{"one.png", "", "three.png"} {
		slide := currentSlide(i + 1).Descendant(slideRule)
		if src != "" {
			page.Set(slide.Descendant(slideImageRule).Render(), (&browsertest.Node{}).WithAttr("src", src))
			continue
		}
		page.Set(slide.Descendant(slidePlayRule).Render(), &browsertest.Node{OnClick: func() {
			page.Set(slide.Descendant(slideVideoRule).Render(), (&browsertest.Node{}).WithAttr("src", "intro.mp4"))
		}})
	}

	got, err := NewGigPage(tab, 0, 0, nopLogger()).Visuals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Visual{
		{Kind: models.VisualImage, URL: "one.png"},
		{Kind: models.VisualVideo, URL: "intro.mp4"},
		{Kind: models.VisualImage, URL: "three.png"},
	}, got)
	require.NotNil(t, show)
	assert.True(t, show.closed)
}

func TestVisualsInlineFallback(t *testing.T) {
	page, tab := newTestTab(t)
	setInlineGallery(page, "cover.png", "detail.png")

	got, err := NewGigPage(tab, 0, 0, nopLogger()).Visuals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Visual{
		{Kind: models.VisualImage, URL: "cover.png"},
		{Kind: models.VisualImage, URL: "detail.png"},
	}, got)
}
