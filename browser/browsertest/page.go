// Package browsertest provides an in-memory browser.Driver for tests.
//
// Nodes are registered against the exact rendered selector the code under
// test queries, so a test describes the page as "what each locator resolves
// to" rather than as real markup. Click and hover hooks mutate the page to
// simulate panels, pagination and lazily rendered content.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
)

// Page is an in-memory browser.Driver.
type Page struct {
	mu          sync.Mutex
	nodes       map[string][]*Node
	url         string
	title       string
	navigations []string
	evaluations []string
	lost        bool

	// OnNavigate runs after every Navigate call, outside the page lock.
	OnNavigate func(url string)
}

func NewPage() *Page {
	return &Page{nodes: make(map[string][]*Node)}
}

// Set replaces the nodes selector resolves to.
func (p *Page) Set(selector string, nodes ...*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[selector] = nodes
}

// Remove makes selector resolve to nothing.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, selector)
}

// SetTitle sets the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// Lose makes every subsequent call fail with apperrors.ErrSessionLost.
func (p *Page) Lose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lost = true
}

// Navigations returns every URL passed to Navigate, in order.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Evaluations returns every expression passed to Evaluate, in order.
func (p *Page) Evaluations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evaluations...)
}

func (p *Page) check() error {
	if p.lost {
		return apperrors.ErrSessionLost
	}
	return nil
}

func (p *Page) Query(_ context.Context, selector string) ([]browser.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return nil, err
	}
	return asNodes(p.nodes[selector]), nil
}

// Wait never blocks: a missing selector times out immediately.
func (p *Page) Wait(_ context.Context, selector string, _ time.Duration) (browser.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return nil, err
	}
	nodes := p.nodes[selector]
	if len(nodes) == 0 {
		return nil, fmt.Errorf("waiting for %q: %w", selector, context.DeadlineExceeded)
	}
	return nodes[0], nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	if err := p.check(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.url = url
	p.navigations = append(p.navigations, url)
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *Page) WaitLoaded(context.Context, time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check()
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, p.check()
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, p.check()
}

func (p *Page) Evaluate(_ context.Context, expr string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.evaluations = append(p.evaluations, expr)
	return nil
}

// Node is an in-memory DOM node.
type Node struct {
	TextValue string
	HTMLValue string
	Attrs     map[string]string
	Children  map[string][]*Node

	// Err, when set, fails every read and interaction.
	Err     error
	OnClick func()
	OnHover func()

	Clicks int
	Hovers int
}

// Text returns a node whose innerText is text.
func Text(text string) *Node {
	return &Node{TextValue: text}
}

// WithAttr sets an attribute and returns n.
func (n *Node) WithAttr(name, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
	return n
}

// WithChild registers the nodes a scoped query for rule resolves to and returns n.
func (n *Node) WithChild(rule string, children ...*Node) *Node {
	if n.Children == nil {
		n.Children = make(map[string][]*Node)
	}
	n.Children[rule] = children
	return n
}

func (n *Node) Text(context.Context) (string, error) {
	return n.TextValue, n.Err
}

func (n *Node) HTML(context.Context) (string, error) {
	if n.HTMLValue == "" {
		return n.TextValue, n.Err
	}
	return n.HTMLValue, n.Err
}

func (n *Node) Attribute(_ context.Context, name string) (string, bool, error) {
	if n.Err != nil {
		return "", false, n.Err
	}
	val, ok := n.Attrs[name]
	return val, ok, nil
}

func (n *Node) Click(context.Context) error {
	if n.Err != nil {
		return n.Err
	}
	n.Clicks++
	if n.OnClick != nil {
		n.OnClick()
	}
	return nil
}

func (n *Node) Hover(context.Context) error {
	if n.Err != nil {
		return n.Err
	}
	n.Hovers++
	if n.OnHover != nil {
		n.OnHover()
	}
	return nil
}

func (n *Node) ScrollIntoView(context.Context) error {
	return n.Err
}

func (n *Node) Query(_ context.Context, rule string) ([]browser.Node, error) {
	if n.Err != nil {
		return nil, n.Err
	}
	return asNodes(n.Children[rule]), nil
}

func asNodes(nodes []*Node) []browser.Node {
	out := make([]browser.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}
