package browser

import (
	"strconv"
	"strings"
)

type stepKind int

const (
	stepNth stepKind = iota
	stepDescendant
	stepMatching
	stepResult
)

type step struct {
	kind  stepKind
	rule  string
	index int
}

// Locator describes how to find an element: a base CSS rule plus an ordered
// list of refinements. Locators are immutable; every refinement returns a copy.
type Locator struct {
	base  string
	steps []step
}

// Rule returns a Locator for a base CSS rule.
func Rule(rule string) Locator {
	return Locator{base: rule}
}

// NthMatch refines l to the element at 1-based position index among its
// siblings.
func (l Locator) NthMatch(index int) Locator {
	return l.with(step{kind: stepNth, index: index})
}

// Result labels the element at 1-based position index in the result list of
// a multi-element query. It renders as " [#index]", which is not CSS: such a
// locator names an element for diagnostics and cannot be queried again.
func (l Locator) Result(index int) Locator {
	return l.with(step{kind: stepResult, index: index})
}

// Descendant scopes rule under l.
func (l Locator) Descendant(rule string) Locator {
	return l.with(step{kind: stepDescendant, rule: rule})
}

// Matching adds a compound refinement to the last element of l, for example
// a class or pseudo-class, with no descendant combinator in between.
func (l Locator) Matching(rule string) Locator {
	return l.with(step{kind: stepMatching, rule: rule})
}

// Index returns the last positional refinement of l, if any.
func (l Locator) Index() (int, bool) {
	for i := len(l.steps) - 1; i >= 0; i-- {
		if k := l.steps[i].kind; k == stepNth || k == stepResult {
			return l.steps[i].index, true
		}
	}
	return 0, false
}

// Render returns the compound CSS query, followed by the result position
// when l was produced by a multi-element query.
func (l Locator) Render() string {
	var b strings.Builder
	b.WriteString(l.base)
	for _, s := range l.steps {
		switch s.kind {
		case stepNth:
			b.WriteString(":nth-child(")
			b.WriteString(strconv.Itoa(s.index))
			b.WriteString(")")
		case stepDescendant:
			b.WriteString(" ")
			b.WriteString(s.rule)
		case stepMatching:
			b.WriteString(s.rule)
		case stepResult:
			b.WriteString(" [#")
			b.WriteString(strconv.Itoa(s.index))
			b.WriteString("]")
		}
	}
	return b.String()
}

func (l Locator) String() string {
	return l.Render()
}

func (l Locator) with(s step) Locator {
	steps := make([]step, len(l.steps), len(l.steps)+1)
	copy(steps, l.steps)
	return Locator{base: l.base, steps: append(steps, s)}
}
