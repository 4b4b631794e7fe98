package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/cryarchy/fiverr-tools/apperrors"
)

// Node is a single resolved DOM node as exposed by a Driver.
type Node interface {
	Text(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Click(ctx context.Context) error
	Hover(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	// Query returns the descendants of the node matching rule, without waiting.
	Query(ctx context.Context, rule string) ([]Node, error)
}

// Element is a located node together with the Locator that produced it.
// Every failure is reported against that locator.
type Element struct {
	node    Node
	locator Locator
}

func newElement(node Node, locator Locator) *Element {
	return &Element{node: node, locator: locator}
}

// Locator returns the locator the element was resolved from.
func (e *Element) Locator() Locator {
	return e.locator
}

func (e *Element) Text(ctx context.Context) (string, error) {
	text, err := e.node.Text(ctx)
	if err != nil {
		return "", e.interaction(err)
	}
	return text, nil
}

func (e *Element) HTML(ctx context.Context) (string, error) {
	html, err := e.node.HTML(ctx)
	if err != nil {
		return "", e.interaction(err)
	}
	return html, nil
}

// Attribute returns the attribute value and whether it was present.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	val, ok, err := e.node.Attribute(ctx, name)
	if err != nil {
		return "", false, e.interaction(err)
	}
	return val, ok, nil
}

// RequiredAttribute fails with AttributeNotFoundError when name is absent.
func (e *Element) RequiredAttribute(ctx context.Context, name string) (string, error) {
	val, ok, err := e.Attribute(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.AttributeNotFoundError{Attribute: name, Locator: e.locator.Render()}
	}
	return val, nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.node.Click(ctx); err != nil {
		return e.interaction(err)
	}
	return nil
}

func (e *Element) HoverOver(ctx context.Context) error {
	if err := e.node.Hover(ctx); err != nil {
		return e.interaction(err)
	}
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := e.node.ScrollIntoView(ctx); err != nil {
		return e.interaction(err)
	}
	return nil
}

// FindAll returns the descendants matching rule. An empty result is not an error.
func (e *Element) FindAll(ctx context.Context, rule string) ([]*Element, error) {
	scoped := e.locator.Descendant(rule)
	nodes, err := e.node.Query(ctx, rule)
	if err != nil {
		return nil, apperrors.MarkupInteractionError{Locator: scoped.Render(), Err: err}
	}
	elements := make([]*Element, 0, len(nodes))
	for i, n := range nodes {
		elements = append(elements, newElement(n, scoped.Result(i+1)))
	}
	return elements, nil
}

// Lookup returns the first descendant matching rule, or false when there is none.
func (e *Element) Lookup(ctx context.Context, rule string) (*Element, bool, error) {
	scoped := e.locator.Descendant(rule)
	nodes, err := e.node.Query(ctx, rule)
	if err != nil {
		return nil, false, apperrors.MarkupInteractionError{Locator: scoped.Render(), Err: err}
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return newElement(nodes[0], scoped), true, nil
}

// Find returns the first descendant matching rule or ElementNotFoundError.
func (e *Element) Find(ctx context.Context, rule string) (*Element, error) {
	el, ok, err := e.Lookup(ctx, rule)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ElementNotFoundError{Locator: e.locator.Descendant(rule).Render()}
	}
	return el, nil
}

func (e *Element) interaction(err error) error {
	if errors.Is(err, apperrors.ErrSessionLost) {
		return fmt.Errorf("%s: %w", e.locator.Render(), err)
	}
	return apperrors.MarkupInteractionError{Locator: e.locator.Render(), Err: err}
}
