package fiverr

import (
	"context"
	"errors"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/models"
)

// Reviews returns a stream over the review cards, loading more on demand.
func (p *GigPage) Reviews() *ReviewStream {
	return &ReviewStream{page: p, index: 1}
}

// ReviewStream walks review cards by position.
type ReviewStream struct {
	page  *GigPage
	index int
}

// Next returns the next review, or nil when no more reviews load. A card
// that is not rendered yet triggers the "show more" button a bounded number
// of times before the stream gives up.
func (s *ReviewStream) Next(ctx context.Context) (*models.RawReview, error) {
	card := reviewLoc.NthMatch(s.index)
	el, ok, err := s.page.tab.Lookup(ctx, card)
	if err != nil {
		return nil, err
	}
	if !ok {
		if el, err = s.loadMore(ctx, card); err != nil || el == nil {
			return nil, err
		}
	}

	review, err := s.read(ctx, el)
	if err != nil {
		return nil, err
	}
	s.index++
	return review, nil
}

func (s *ReviewStream) loadMore(ctx context.Context, card browser.Locator) (*browser.Element, error) {
	tab := s.page.tab
	for attempt := 1; attempt <= s.page.showMoreRetries; attempt++ {
		button, ok, err := tab.Lookup(ctx, reviewsShowMoreLoc)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		if err := button.Click(ctx); err != nil {
			return nil, err
		}

		el, err := tab.WaitFor(ctx, card)
		if err == nil {
			return el, nil
		}
		if errors.Is(err, apperrors.ErrSessionLost) || ctx.Err() != nil {
			return nil, err
		}
		s.page.logger.Debug("[reviews] Card %d not shown after show more (attempt %d): %v", s.index, attempt, err)
	}
	return nil, nil
}

func (s *ReviewStream) read(ctx context.Context, card *browser.Element) (*models.RawReview, error) {
	if err := card.ScrollIntoView(ctx); err != nil {
		return nil, err
	}

	var review models.RawReview
	if country, ok, err := card.Lookup(ctx, reviewCountryRule); err != nil {
		return nil, err
	} else if ok {
		text, err := country.Text(ctx)
		if err != nil {
			return nil, err
		}
		review.Country = &text
	}

	rating, err := card.Find(ctx, reviewRatingRule)
	if err != nil {
		return nil, err
	}
	if review.Rating, err = rating.Text(ctx); err != nil {
		return nil, err
	}

	// long reviews are truncated until expanded
	if expand, ok, err := card.Lookup(ctx, reviewExpandRule); err != nil {
		return nil, err
	} else if ok {
		if err := expand.Click(ctx); err != nil {
			return nil, err
		}
		if err := pause(ctx, s.page.settle); err != nil {
			return nil, err
		}
	}

	desc, err := card.Find(ctx, reviewDescriptionRule)
	if err != nil {
		return nil, err
	}
	if review.Description, err = desc.Text(ctx); err != nil {
		return nil, err
	}

	pair, err := card.FindAll(ctx, reviewPriceDurationRule)
	if err != nil {
		return nil, err
	}
	if len(pair) < 2 {
		return nil, apperrors.ElementNotFoundError{
			Locator: card.Locator().Descendant(reviewPriceDurationRule).Result(len(pair) + 1).Render(),
		}
	}
	if review.Price, err = pair[0].Text(ctx); err != nil {
		return nil, err
	}
	if review.Duration, err = pair[1].Text(ctx); err != nil {
		return nil, err
	}
	return &review, nil
}
