package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cryarchy/fiverr-tools/apperrors"
)

// Driver is the raw browser surface a Tab is built on. Selector arguments are
// rendered Locators.
type Driver interface {
	// Query returns every node currently matching selector without waiting.
	Query(ctx context.Context, selector string) ([]Node, error)
	// Wait blocks until selector matches or timeout elapses.
	Wait(ctx context.Context, selector string, timeout time.Duration) (Node, error)
	Navigate(ctx context.Context, url string) error
	// WaitLoaded blocks until the current document has finished loading.
	WaitLoaded(ctx context.Context, timeout time.Duration) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, expr string, out any) error
}

// Tab is the single browser tab the scraper drives. It is safe to share: the
// underlying Driver can be swapped on reconnect while holders keep the Tab.
type Tab struct {
	mu          sync.RWMutex
	driver      Driver
	waitTimeout time.Duration
}

// NewTab wraps driver. waitTimeout applies to WaitFor and WaitUntilNavigated.
func NewTab(driver Driver, waitTimeout time.Duration) *Tab {
	return &Tab{driver: driver, waitTimeout: waitTimeout}
}

func (t *Tab) current() Driver {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.driver
}

func (t *Tab) swap(driver Driver) {
	t.mu.Lock()
	t.driver = driver
	t.mu.Unlock()
}

// Lookup returns the first element matching loc, or false when there is none.
func (t *Tab) Lookup(ctx context.Context, loc Locator) (*Element, bool, error) {
	nodes, err := t.current().Query(ctx, loc.Render())
	if err != nil {
		return nil, false, t.interaction(loc, err)
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return newElement(nodes[0], loc), true, nil
}

// Find returns the first element matching loc or ElementNotFoundError.
func (t *Tab) Find(ctx context.Context, loc Locator) (*Element, error) {
	el, ok, err := t.Lookup(ctx, loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ElementNotFoundError{Locator: loc.Render()}
	}
	return el, nil
}

// Exists reports whether loc currently matches anything.
func (t *Tab) Exists(ctx context.Context, loc Locator) (bool, error) {
	_, ok, err := t.Lookup(ctx, loc)
	return ok, err
}

// FindAll returns every element matching loc. Each element is labelled
// with loc and its position in the result list, not its sibling position.
func (t *Tab) FindAll(ctx context.Context, loc Locator) ([]*Element, error) {
	nodes, err := t.current().Query(ctx, loc.Render())
	if err != nil {
		return nil, t.interaction(loc, err)
	}
	elements := make([]*Element, 0, len(nodes))
	for i, n := range nodes {
		elements = append(elements, newElement(n, loc.Result(i+1)))
	}
	return elements, nil
}

// WaitFor blocks until loc appears, using the tab's default timeout.
func (t *Tab) WaitFor(ctx context.Context, loc Locator) (*Element, error) {
	return t.WaitForTimeout(ctx, loc, t.waitTimeout)
}

// WaitForTimeout blocks until loc appears or timeout elapses, in which case
// it returns ElementNotFoundError.
func (t *Tab) WaitForTimeout(ctx context.Context, loc Locator, timeout time.Duration) (*Element, error) {
	node, err := t.current().Wait(ctx, loc.Render(), timeout)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionLost) {
			return nil, fmt.Errorf("wait for %s: %w", loc.Render(), err)
		}
		return nil, apperrors.ElementNotFoundError{Locator: loc.Render(), Err: err}
	}
	return newElement(node, loc), nil
}

func (t *Tab) NavigateTo(ctx context.Context, url string) error {
	if err := t.current().Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitUntilNavigated blocks until the document triggered by a previous click
// has loaded.
func (t *Tab) WaitUntilNavigated(ctx context.Context) error {
	if err := t.current().WaitLoaded(ctx, t.waitTimeout); err != nil {
		return fmt.Errorf("wait for navigation: %w", err)
	}
	return nil
}

func (t *Tab) Title(ctx context.Context) (string, error) {
	return t.current().Title(ctx)
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	return t.current().URL(ctx)
}

// Evaluate runs expr in the page. out may be nil.
func (t *Tab) Evaluate(ctx context.Context, expr string, out any) error {
	return t.current().Evaluate(ctx, expr, out)
}

func (t *Tab) interaction(loc Locator, err error) error {
	if errors.Is(err, apperrors.ErrSessionLost) {
		return fmt.Errorf("%s: %w", loc.Render(), err)
	}
	return apperrors.MarkupInteractionError{Locator: loc.Render(), Err: err}
}
