package fiverr

import (
	"strconv"
	"testing"
	"time"

	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/browser/browsertest"
	"github.com/cryarchy/fiverr-tools/config"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/utils"
)

const testBaseURL = "https://www.fiverr.com/"

func newTestTab(t *testing.T) (*browsertest.Page, *browser.Tab) {
	t.Helper()
	page := browsertest.NewPage()
	return page, browser.NewTab(page, time.Second)
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:         testBaseURL,
		MinRatings:      100,
		SkipSponsored:   true,
		ReviewPrefix:    80,
		ShowMoreRetries: 2,
		MaxRetries:      1,
	}
}

func nopLogger() *utils.Logger {
	return utils.NewNopLogger()
}

type menuLeaf struct {
	name string
	href string
}

type menuGroup struct {
	title  string
	leaves []menuLeaf
}

type menuTab struct {
	name   string
	groups []menuGroup
}

// setMenu lays out the category mega-menu. Panels are always rendered.
func setMenu(page *browsertest.Page, tabs ...menuTab) []*browsertest.Node {
	nodes := make([]*browsertest.Node, 0, len(tabs))
	for i, tab := range tabs {
		ti := i + 1
		node := browsertest.Text(tab.name)
		nodes = append(nodes, node)
		page.Set(topTabLocator(ti).Render(), node)
		page.Set(topTabLocator(ti).Descendant("a").Render(), browsertest.Text(tab.name))
		page.Set(topTabLocator(ti).Descendant(menuPanelRule).Render(), &browsertest.Node{})

		for j, group := range tab.groups {
			gi := j + 1
			page.Set(groupLocator(ti, gi).Render(), &browsertest.Node{})
			page.Set(groupLocator(ti, gi).Descendant(bucketTitleRule).Render(), browsertest.Text(group.title))
			for k, leaf := range group.leaves {
				page.Set(leafLocator(ti, gi, firstLeafPosition+k).Render(),
					browsertest.Text(leaf.name).WithAttr("href", leaf.href))
			}
		}
	}
	return nodes
}

type cardFixture struct {
	href  string
	count string
	text  string
}

// setCards renders the listing's gig cards, clearing stale positions.
func setCards(page *browsertest.Page, cards ...cardFixture) {
	all := make([]*browsertest.Node, 0, len(cards))
	for i := 1; i <= len(cards)+5; i++ {
		card := gigCardsLoc.NthMatch(i)
		page.Remove(card.Render())
		page.Remove(card.Descendant(gigCardAnchorRule).Render())
		page.Remove(card.Descendant(gigCardCountRule).Render())
	}
	for i, c := range cards {
		card := gigCardsLoc.NthMatch(i + 1)
		node := browsertest.Text(c.text)
		all = append(all, node)
		page.Set(card.Render(), node)
		page.Set(card.Descendant(gigCardAnchorRule).Render(), browsertest.Text("").WithAttr("href", c.href))
		if c.count != "" {
			page.Set(card.Descendant(gigCardCountRule).Render(), browsertest.Text(c.count))
		}
	}
	if len(all) > 0 {
		page.Set(gigCardsLoc.Render(), all...)
	} else {
		page.Remove(gigCardsLoc.Render())
	}
}

// pagination simulates the numbered page widget. Clicking a number makes it
// current; clicking the last visible number slides the window forward and
// clicking the first one slides it back by back pages.
type pagination struct {
	page    *browsertest.Page
	total   int
	window  int
	back    int
	first   int
	current int
	links   map[int]*browsertest.Node
}

func newPagination(page *browsertest.Page, total, window int) *pagination {
	p := &pagination{page: page, total: total, window: window, first: 1, current: 1, links: map[int]*browsertest.Node{}}
	p.render()
	return p
}

// show displays the window starting at first with current active.
func (p *pagination) show(first, current int) {
	p.first, p.current = first, current
	p.render()
}

func (p *pagination) render() {
	last := min(p.first+p.window-1, p.total)
	links := make([]*browsertest.Node, 0, p.window)
	for n := p.first; n <= last; n++ {
		link, ok := p.links[n]
		if !ok {
			n := n
			link = browsertest.Text("").WithChild(pageLinkNumberRule, browsertest.Text(strconv.Itoa(n)))
			link.OnClick = func() { p.click(n) }
			p.links[n] = link
		}
		links = append(links, link)
	}
	p.page.Set(pageLinksLoc.Render(), links...)
	p.page.Set(currentPageLoc.Render(), browsertest.Text(strconv.Itoa(p.current)))
}

func (p *pagination) click(n int) {
	p.current = n
	last := min(p.first+p.window-1, p.total)
	switch {
	case n == last && last < p.total:
		p.first = min(n-1, p.total-p.window+1)
	case n == p.first && p.first > 1:
		p.first = max(p.first-p.back, 1)
	}
	p.render()
}

type gigFixture struct {
	title       string
	rating      string
	reviewCount string
	description string
	reviews     []*browsertest.Node
	images      []string
}

func reviewNode(country, rating, price, duration, text string) *browsertest.Node {
	n := &browsertest.Node{}
	if country != "" {
		n.WithChild(reviewCountryRule, browsertest.Text(country))
	}
	return n.
		WithChild(reviewRatingRule, browsertest.Text(rating)).
		WithChild(reviewDescriptionRule, browsertest.Text(text)).
		WithChild(reviewPriceDurationRule, browsertest.Text(price), browsertest.Text(duration))
}

func setReviews(page *browsertest.Page, reviews ...*browsertest.Node) {
	for i := 1; i <= len(reviews)+5; i++ {
		page.Remove(reviewLoc.NthMatch(i).Render())
	}
	for i, r := range reviews {
		page.Set(reviewLoc.NthMatch(i+1).Render(), r)
	}
}

func packageHeader(price, typ, title string) *browsertest.Node {
	return (&browsertest.Node{}).
		WithChild(packagePriceRule, browsertest.Text(price)).
		WithChild(packageTypeRule, browsertest.Text(typ)).
		WithChild(packageTitleRule, browsertest.Text(title))
}

func checkCell(class string) *browsertest.Node {
	icon := &browsertest.Node{}
	if class != "" {
		icon.WithAttr("class", class)
	}
	return (&browsertest.Node{}).WithChild(packageIconRule, icon)
}

// setPackages renders a two-package table with one text and one check row.
func setPackages(page *browsertest.Page) {
	page.Set(packageHeadersLoc.Render(),
		&browsertest.Node{},
		packageHeader("$30", "Basic", "Starter app"),
		packageHeader("$1,200", "Premium", "Full app"),
	)
	page.Set(packageDescLoc.Render(),
		&browsertest.Node{},
		browsertest.Text("One screen"),
		browsertest.Text("Ten screens"),
	)
	page.Set(packageDeliveryLoc.Render(),
		&browsertest.Node{},
		(&browsertest.Node{}).WithChild(packageDeliveryRule, browsertest.Text("3 days")),
		(&browsertest.Node{}).WithChild(packageDeliveryRule, browsertest.Text("14 days")),
	)

	unchecked, checked := "icon gray", "icon green checked"
	page.Set(packageCheckIconsLoc.Render(),
		(&browsertest.Node{}).WithAttr("class", unchecked),
		(&browsertest.Node{}).WithAttr("class", checked),
	)
	page.Set(packageFeatureRowsLoc.Render(),
		(&browsertest.Node{}).WithChild(packageCellRule,
			browsertest.Text("Revisions"), browsertest.Text("1"), browsertest.Text("Unlimited")),
		(&browsertest.Node{}).WithChild(packageCellRule,
			browsertest.Text("Source code"), checkCell(unchecked), checkCell(checked)),
	)
}

// setGig renders a complete gig page.
func setGig(page *browsertest.Page, g gigFixture) {
	page.Set(gigTitleLoc.Render(), browsertest.Text(g.title))
	page.Set(gigRatingLoc.Render(), browsertest.Text(g.rating))
	page.Set(gigReviewCountLoc.Render(), browsertest.Text(g.reviewCount))
	page.Set(gigDescriptionLoc.Render(), &browsertest.Node{HTMLValue: g.description})
	page.Set(gigMetadataLoc.Render(), (&browsertest.Node{}).
		WithChild(metadataNameRule, browsertest.Text("Platform")).
		WithChild(metadataValueRule, browsertest.Text("iOS"), browsertest.Text("Android")))

	page.Set(sellerRatingLoc.Render(), browsertest.Text("4.9"))
	page.Set(sellerReviewCountLoc.Render(), browsertest.Text("(1,024)"))
	page.Set(sellerLevelLoc.Render(), browsertest.Text("4.9"), browsertest.Text("Level 2 seller"))
	page.Set(sellerDescriptionLoc.Render(), browsertest.Text("Mobile developer since 2015."))
	page.Set(sellerStatsLoc.Render(),
		browsertest.Text("From\nKenya").WithChild(sellerStatValueRule, browsertest.Text("Kenya")),
		browsertest.Text("Member since\nMar 2019").WithChild(sellerStatValueRule, browsertest.Text("Mar 2019")),
	)

	setPackages(page)
	page.Set(faqLoc.NthMatch(1).Render(), (&browsertest.Node{}).
		WithChild(faqQuestionRule, browsertest.Text("Do you publish?")).
		WithChild(faqAnswerRule, browsertest.Text("Yes, to both stores.")))
	setReviews(page, g.reviews...)
	setInlineGallery(page, g.images...)
}

// setInlineGallery renders a gallery without a slideshow: each thumbnail
// click swaps the inline slide.
func setInlineGallery(page *browsertest.Page, images ...string) {
	page.Remove(modalSlideshowLoc.Render())
	page.Remove(inlineFigureLoc.Render())
	if len(images) == 0 {
		page.Remove(galleryThumbnailsLoc.Render())
		page.Remove(inlineSlideLoc.Render())
		return
	}

	show := func(src string) {
		page.Set(inlineSlideLoc.Render(), (&browsertest.Node{}).WithAttr("class", "slide slide-image"))
		page.Set(inlineSlideLoc.Descendant(slideImageRule).Render(), (&browsertest.Node{}).WithAttr("src", src))
	}
	thumbs := make([]*browsertest.Node, 0, len(images))
	for i, src := range images {
		src := src
		thumb := &browsertest.Node{OnClick: func() { show(src) }}
		thumbs = append(thumbs, thumb)
		page.Set(galleryThumbnailsLoc.NthMatch(i+1).Render(), thumb)
	}
	page.Set(galleryThumbnailsLoc.Render(), thumbs...)
	show(images[0])
}

type recordingJournal struct {
	entries []models.JournalEntry
}

func (j *recordingJournal) Append(e models.JournalEntry) error {
	j.entries = append(j.entries, e)
	return nil
}

func (j *recordingJournal) Close() error { return nil }
