package fiverr

import (
	"context"
	"strings"
	"time"

	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/services"
	"github.com/cryarchy/fiverr-tools/utils"
)

// GigPage reads one gig detail page. Every read re-locates its elements.
type GigPage struct {
	tab             *browser.Tab
	settle          time.Duration
	showMoreRetries int
	logger          *utils.Logger
}

func NewGigPage(tab *browser.Tab, settle time.Duration, showMoreRetries int, logger *utils.Logger) *GigPage {
	return &GigPage{
		tab:             tab,
		settle:          settle,
		showMoreRetries: showMoreRetries,
		logger:          logger,
	}
}

// WaitLoaded blocks until the gig title, the page landmark, is rendered.
func (p *GigPage) WaitLoaded(ctx context.Context) error {
	_, err := p.tab.WaitFor(ctx, gigTitleLoc)
	return err
}

func (p *GigPage) Title(ctx context.Context) (string, error) {
	return p.text(ctx, gigTitleLoc)
}

// Rating returns the decimal rating as displayed, or "" for an unrated gig.
func (p *GigPage) Rating(ctx context.Context) (string, error) {
	return p.optionalText(ctx, gigRatingLoc)
}

// ReviewCount returns 0 for a gig without reviews.
func (p *GigPage) ReviewCount(ctx context.Context) (int64, error) {
	return p.optionalNumber(ctx, gigReviewCountLoc)
}

// Description returns the description markup.
func (p *GigPage) Description(ctx context.Context) (string, error) {
	el, err := p.tab.Find(ctx, gigDescriptionLoc)
	if err != nil {
		return "", err
	}
	return el.HTML(ctx)
}

func (p *GigPage) Metadata(ctx context.Context) ([]models.Metadata, error) {
	blocks, err := p.tab.FindAll(ctx, gigMetadataLoc)
	if err != nil {
		return nil, err
	}

	out := make([]models.Metadata, 0, len(blocks))
	for _, block := range blocks {
		name, err := block.Find(ctx, metadataNameRule)
		if err != nil {
			return nil, err
		}
		key, err := name.Text(ctx)
		if err != nil {
			return nil, err
		}

		items, err := block.FindAll(ctx, metadataValueRule)
		if err != nil {
			return nil, err
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			v, err := item.Text(ctx)
			if err != nil {
				return nil, err
			}
			values = append(values, strings.TrimSpace(v))
		}
		out = append(out, models.Metadata{Key: strings.TrimSpace(key), Values: values})
	}
	return out, nil
}

func (p *GigPage) SellerRating(ctx context.Context) (string, error) {
	return p.optionalText(ctx, sellerRatingLoc)
}

func (p *GigPage) SellerReviewCount(ctx context.Context) (int64, error) {
	return p.optionalNumber(ctx, sellerReviewCountLoc)
}

// SellerLevel returns the level badge text, or "" for sellers without one.
// The badge is the last paragraph of the rating block.
func (p *GigPage) SellerLevel(ctx context.Context) (string, error) {
	els, err := p.tab.FindAll(ctx, sellerLevelLoc)
	if err != nil || len(els) == 0 {
		return "", err
	}
	text, err := els[len(els)-1].Text(ctx)
	if err != nil {
		return "", err
	}
	return services.AsSimpleText(text), nil
}

func (p *GigPage) SellerDescription(ctx context.Context) (string, error) {
	return p.optionalText(ctx, sellerDescriptionLoc)
}

// SellerStats reads the "From", "Member since" and similar lines. The label
// is the first line of the item, the value its strong element.
func (p *GigPage) SellerStats(ctx context.Context) ([]models.SellerStat, error) {
	items, err := p.tab.FindAll(ctx, sellerStatsLoc)
	if err != nil {
		return nil, err
	}

	stats := make([]models.SellerStat, 0, len(items))
	for _, item := range items {
		text, err := item.Text(ctx)
		if err != nil {
			return nil, err
		}
		strong, err := item.Find(ctx, sellerStatValueRule)
		if err != nil {
			return nil, err
		}
		value, err := strong.Text(ctx)
		if err != nil {
			return nil, err
		}

		key, _, _ := strings.Cut(text, "\n")
		key = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(key), strings.TrimSpace(value)))
		stats = append(stats, models.SellerStat{Key: key, Value: strings.TrimSpace(value)})
	}
	return stats, nil
}

func (p *GigPage) text(ctx context.Context, loc browser.Locator) (string, error) {
	el, err := p.tab.Find(ctx, loc)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *GigPage) optionalText(ctx context.Context, loc browser.Locator) (string, error) {
	el, ok, err := p.tab.Lookup(ctx, loc)
	if err != nil || !ok {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *GigPage) optionalNumber(ctx context.Context, loc browser.Locator) (int64, error) {
	text, err := p.optionalText(ctx, loc)
	if err != nil || text == "" {
		return 0, err
	}
	return services.AsNumber(text)
}

// pause waits d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
