package fiverr

import (
	"context"
	"strings"
	"time"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/services"
	"github.com/cryarchy/fiverr-tools/utils"
)

// sponsoredMarkers are card lines that flag a paid placement.
var sponsoredMarkers = []string{"ad", "sponsored", "featured"}

// ListingPage is a category's paginated gig listing.
type ListingPage struct {
	tab               *browser.Tab
	minRatings        int64
	skipSponsored     bool
	paginationTimeout time.Duration
	logger            *utils.Logger
}

func NewListingPage(tab *browser.Tab, minRatings int, skipSponsored bool, paginationTimeout time.Duration, logger *utils.Logger) *ListingPage {
	return &ListingPage{
		tab:               tab,
		minRatings:        int64(minRatings),
		skipSponsored:     skipSponsored,
		paginationTimeout: paginationTimeout,
		logger:            logger,
	}
}

// CurrentPageNumber reads the active page from the pagination widget. A
// listing without a widget has a single page.
func (p *ListingPage) CurrentPageNumber(ctx context.Context) (int, error) {
	paginated, err := p.tab.Exists(ctx, pageLinksLoc)
	if err != nil {
		return 0, err
	}
	if !paginated {
		return 1, nil
	}

	el, err := p.tab.Find(ctx, currentPageLoc)
	if err != nil {
		return 0, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return 0, err
	}
	n, err := services.AsNumber(text)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// GoToPage moves the listing to page target. It returns false when the page
// cannot be reached, typically because the listing has fewer pages.
func (p *ListingPage) GoToPage(ctx context.Context, target int) (bool, error) {
	lastWindow := [2]int{-1, -1}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		links, err := p.tab.FindAll(ctx, pageLinksLoc)
		if err != nil {
			return false, err
		}
		if len(links) == 0 {
			return target == 1, nil
		}

		current, err := p.CurrentPageNumber(ctx)
		if err != nil {
			return false, err
		}
		if current == target {
			return true, nil
		}

		first, err := pageLinkNumber(ctx, links[0])
		if err != nil {
			return false, err
		}
		last, err := pageLinkNumber(ctx, links[len(links)-1])
		if err != nil {
			return false, err
		}

		window := [2]int{first, last}
		if window == lastWindow {
			p.logger.Debug("[listing] Pagination stalled at %d-%d, page %d unreachable", first, last, target)
			return false, nil
		}
		lastWindow = window

		switch {
		case target < first:
			if err := p.follow(ctx, links[0]); err != nil {
				return false, err
			}
		case target > last:
			if err := p.follow(ctx, links[len(links)-1]); err != nil {
				return false, err
			}
		default:
			for _, link := range links {
				n, err := pageLinkNumber(ctx, link)
				if err != nil {
					return false, err
				}
				if n != target {
					continue
				}
				if err := link.Click(ctx); err != nil {
					return false, err
				}
				if err := p.tab.WaitUntilNavigated(ctx); err != nil {
					return false, err
				}
				return true, nil
			}
			return false, apperrors.Unexpected("page %d missing from pagination window %d-%d", target, first, last)
		}
	}
}

// follow clicks a page link and waits for the new window to render.
func (p *ListingPage) follow(ctx context.Context, link *browser.Element) error {
	if err := link.Click(ctx); err != nil {
		return err
	}
	if err := p.tab.WaitUntilNavigated(ctx); err != nil {
		return err
	}
	_, err := p.tab.WaitForTimeout(ctx, pageLinksLoc, p.paginationTimeout)
	return err
}

func pageLinkNumber(ctx context.Context, link *browser.Element) (int, error) {
	num, err := link.Find(ctx, pageLinkNumberRule)
	if err != nil {
		return 0, err
	}
	text, err := num.Text(ctx)
	if err != nil {
		return 0, err
	}
	n, err := services.AsNumber(text)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Cards walks the gig cards of the page currently displayed.
func (p *ListingPage) Cards(ctx context.Context) (*ListingCards, error) {
	page, err := p.CurrentPageNumber(ctx)
	if err != nil {
		return nil, err
	}
	return &ListingCards{page: p, index: 1, pageNumber: page}, nil
}

// ListingCards yields the cards that pass the popularity filter.
type ListingCards struct {
	page       *ListingPage
	index      int
	pageNumber int
}

// Next returns the next accepted card, or nil when no card is left.
func (c *ListingCards) Next(ctx context.Context) (*models.ListingCandidate, error) {
	tab := c.page.tab
	for {
		card := gigCardsLoc.NthMatch(c.index)
		anchor, ok, err := tab.Lookup(ctx, card.Descendant(gigCardAnchorRule))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		href, err := anchor.RequiredAttribute(ctx, "href")
		if err != nil {
			return nil, err
		}

		if c.page.skipSponsored {
			sponsored, err := c.isSponsored(ctx, card)
			if err != nil {
				return nil, err
			}
			if sponsored {
				c.page.logger.Debug("[listing] Skipping sponsored card %s", href)
				c.index++
				continue
			}
		}

		accepted, err := c.popular(ctx, card)
		if err != nil {
			return nil, err
		}
		c.index++
		if !accepted {
			continue
		}
		return &models.ListingCandidate{URL: href, Page: c.pageNumber}, nil
	}
}

func (c *ListingCards) isSponsored(ctx context.Context, card browser.Locator) (bool, error) {
	el, err := c.page.tab.Find(ctx, card)
	if err != nil {
		return false, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return false, err
	}
	return IsSponsored(text), nil
}

// popular applies the rating threshold. Abbreviated counts such as "1.2k" are
// always above it; a card without a counter has no ratings.
func (c *ListingCards) popular(ctx context.Context, card browser.Locator) (bool, error) {
	el, ok, err := c.page.tab.Lookup(ctx, card.Descendant(gigCardCountRule))
	if err != nil {
		return false, err
	}
	if !ok {
		return c.page.minRatings <= 0, nil
	}
	raw, err := el.Text(ctx)
	if err != nil {
		return false, err
	}
	if services.IsAbbreviatedCount(raw) {
		return true, nil
	}
	if strings.TrimSpace(raw) == "" {
		return c.page.minRatings <= 0, nil
	}
	n, err := services.AsNumber(raw)
	if err != nil {
		return false, err
	}
	return n >= c.page.minRatings, nil
}

// IsSponsored reports whether any line of a card's text is a paid-placement
// marker.
func IsSponsored(cardText string) bool {
	for _, line := range strings.Split(cardText, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		for _, marker := range sponsoredMarkers {
			if line == marker {
				return true
			}
		}
	}
	return false
}
