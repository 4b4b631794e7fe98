package fiverr

import (
	"context"
	"strings"

	"github.com/cryarchy/fiverr-tools/models"
)

// FAQs returns a walk over the gig's FAQ entries.
func (p *GigPage) FAQs() *FAQList {
	return &FAQList{page: p, index: 1}
}

type FAQList struct {
	page  *GigPage
	index int
}

// Next returns the next entry, or nil after the last one.
func (l *FAQList) Next(ctx context.Context) (*models.FAQ, error) {
	el, ok, err := l.page.tab.Lookup(ctx, faqLoc.NthMatch(l.index))
	if err != nil || !ok {
		return nil, err
	}

	q, err := el.Find(ctx, faqQuestionRule)
	if err != nil {
		return nil, err
	}
	question, err := q.Text(ctx)
	if err != nil {
		return nil, err
	}
	a, err := el.Find(ctx, faqAnswerRule)
	if err != nil {
		return nil, err
	}
	answer, err := a.Text(ctx)
	if err != nil {
		return nil, err
	}

	l.index++
	return &models.FAQ{Question: strings.TrimSpace(question), Answer: strings.TrimSpace(answer)}, nil
}
