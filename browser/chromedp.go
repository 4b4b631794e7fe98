package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/cryarchy/fiverr-tools/apperrors"
)

// navigationSettle gives a click-triggered navigation time to start before
// readyState is polled, otherwise the old document reports complete.
const navigationSettle = 300 * time.Millisecond

// chromeDriver implements Driver on top of a chromedp target context.
type chromeDriver struct {
	ctx         context.Context
	callTimeout time.Duration
	navTimeout  time.Duration
}

func (d *chromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := d.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSessionLost, err)
	}

	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if d.ctx.Err() != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrSessionLost, err)
		}
		return err
	}
	return nil
}

func (d *chromeDriver) wrap(nodes []*cdp.Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromeNode{d: d, node: n})
	}
	return out
}

func (d *chromeDriver) Query(ctx context.Context, selector string) ([]Node, error) {
	var nodes []*cdp.Node
	err := d.run(ctx, d.callTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	return d.wrap(nodes), nil
}

func (d *chromeDriver) Wait(ctx context.Context, selector string, timeout time.Duration) (Node, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no node matched %q", selector)
	}
	return &chromeNode{d: d, node: nodes[0]}, nil
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, d.navTimeout, chromedp.Navigate(url))
}

func (d *chromeDriver) WaitLoaded(ctx context.Context, timeout time.Duration) error {
	var complete bool
	return d.run(ctx, timeout,
		chromedp.Sleep(navigationSettle),
		chromedp.Poll(`document.readyState === "complete"`, &complete,
			chromedp.WithPollingInterval(100*time.Millisecond)),
	)
}

func (d *chromeDriver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, d.callTimeout, chromedp.Title(&title))
	return title, err
}

func (d *chromeDriver) URL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, d.callTimeout, chromedp.Location(&url))
	return url, err
}

func (d *chromeDriver) Evaluate(ctx context.Context, expr string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return d.run(ctx, d.callTimeout, chromedp.Evaluate(expr, out))
}

type chromeNode struct {
	d    *chromeDriver
	node *cdp.Node
}

func (n *chromeNode) ids() []cdp.NodeID {
	return []cdp.NodeID{n.node.NodeID}
}

func (n *chromeNode) Text(ctx context.Context) (string, error) {
	var text string
	err := n.d.run(ctx, n.d.callTimeout,
		chromedp.JavascriptAttribute(n.ids(), "innerText", &text, chromedp.ByNodeID))
	return text, err
}

func (n *chromeNode) HTML(ctx context.Context) (string, error) {
	var html string
	err := n.d.run(ctx, n.d.callTimeout, chromedp.OuterHTML(n.ids(), &html, chromedp.ByNodeID))
	return html, err
}

func (n *chromeNode) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		val string
		ok  bool
	)
	err := n.d.run(ctx, n.d.callTimeout, chromedp.AttributeValue(n.ids(), name, &val, &ok, chromedp.ByNodeID))
	return val, ok, err
}

func (n *chromeNode) Click(ctx context.Context) error {
	return n.d.run(ctx, n.d.callTimeout, chromedp.Click(n.ids(), chromedp.ByNodeID))
}

func (n *chromeNode) ScrollIntoView(ctx context.Context) error {
	return n.d.run(ctx, n.d.callTimeout, chromedp.ScrollIntoView(n.ids(), chromedp.ByNodeID))
}

// Hover moves the mouse to the centre of the node's content box.
func (n *chromeNode) Hover(ctx context.Context) error {
	var box *dom.BoxModel
	err := n.d.run(ctx, n.d.callTimeout,
		chromedp.ScrollIntoView(n.ids(), chromedp.ByNodeID),
		chromedp.Dimensions(n.ids(), &box, chromedp.ByNodeID),
	)
	if err != nil {
		return err
	}
	if box == nil || len(box.Content) < 8 {
		return fmt.Errorf("node %d has no content box", n.node.NodeID)
	}

	q := box.Content
	x := (q[0] + q[2] + q[4] + q[6]) / 4
	y := (q[1] + q[3] + q[5] + q[7]) / 4
	return n.d.run(ctx, n.d.callTimeout, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (n *chromeNode) Query(ctx context.Context, rule string) ([]Node, error) {
	var nodes []*cdp.Node
	err := n.d.run(ctx, n.d.callTimeout,
		chromedp.Nodes(rule, &nodes, chromedp.ByQueryAll, chromedp.FromNode(n.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	return n.d.wrap(nodes), nil
}
