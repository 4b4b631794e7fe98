package fiverr

import (
	"context"
	"errors"
	"strings"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/utils"
)

// CategoryMenu is the mega-menu in the site header.
type CategoryMenu struct {
	tab    *browser.Tab
	logger *utils.Logger
}

func NewCategoryMenu(tab *browser.Tab, logger *utils.Logger) *CategoryMenu {
	return &CategoryMenu{tab: tab, logger: logger}
}

// Categories returns a depth-first walk over the leaf categories of the
// menu. It fails when the menu has no top-level tab at all, which means the
// page did not load.
func (m *CategoryMenu) Categories(ctx context.Context) (*CategoryTree, error) {
	ok, err := m.tab.Exists(ctx, topTabLocator(1))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Unexpected("empty category sequence")
	}
	return &CategoryTree{
		tab:        m.tab,
		logger:     m.logger,
		tabIndex:   1,
		groupIndex: 1,
		leafIndex:  firstLeafPosition,
	}, nil
}

// CategoryTree walks tab -> group -> leaf with one cursor per level. Every
// step re-locates its element by position; no handle outlives a call.
type CategoryTree struct {
	tab    *browser.Tab
	logger *utils.Logger

	tabIndex   int
	groupIndex int
	leafIndex  int
	revealed   bool
	done       bool
}

// Invalidate forces the current top-level tab to be hovered again before the
// next leaf is located. Call it after navigating away from the menu's page.
func (t *CategoryTree) Invalidate() {
	t.revealed = false
}

// Next returns the next leaf category, or nil once the menu is exhausted.
func (t *CategoryTree) Next(ctx context.Context) (*models.Category, error) {
	for !t.done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !t.revealed {
			ok, err := t.reveal(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				t.done = true
				break
			}
			t.revealed = true
		}

		group := groupLocator(t.tabIndex, t.groupIndex)
		ok, err := t.tab.Exists(ctx, group)
		if err != nil {
			return nil, err
		}
		if !ok {
			t.tabIndex++
			t.groupIndex = 1
			t.leafIndex = firstLeafPosition
			t.revealed = false
			continue
		}

		leaf, ok, err := t.tab.Lookup(ctx, leafLocator(t.tabIndex, t.groupIndex, t.leafIndex))
		if err != nil {
			return nil, err
		}
		if !ok {
			t.groupIndex++
			t.leafIndex = firstLeafPosition
			continue
		}

		category, err := t.read(ctx, leaf, group)
		if err != nil {
			return nil, err
		}
		t.leafIndex++
		return category, nil
	}
	return nil, nil
}

func (t *CategoryTree) read(ctx context.Context, leaf *browser.Element, group browser.Locator) (*models.Category, error) {
	name, err := leaf.Text(ctx)
	if err != nil {
		return nil, err
	}
	href, err := leaf.RequiredAttribute(ctx, "href")
	if err != nil {
		return nil, err
	}

	mainName, err := t.text(ctx, topTabLocator(t.tabIndex).Descendant("a"))
	if err != nil {
		return nil, err
	}
	groupName, err := t.text(ctx, group.Descendant(bucketTitleRule))
	if err != nil {
		return nil, err
	}

	return &models.Category{
		MainGroup:   strings.TrimSpace(mainName),
		SubGroup:    strings.TrimSpace(groupName),
		Name:        strings.TrimSpace(strings.ReplaceAll(name, "NEW", "")),
		RelativeURL: href,
	}, nil
}

func (t *CategoryTree) text(ctx context.Context, loc browser.Locator) (string, error) {
	el, err := t.tab.Find(ctx, loc)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// reveal hovers the current top-level tab and waits for its panel. A panel
// that never shows usually means the tab is scrolled out of view, so the tab
// bar is scrolled right once before giving up.
func (t *CategoryTree) reveal(ctx context.Context) (bool, error) {
	tabLoc := topTabLocator(t.tabIndex)
	el, ok, err := t.tab.Lookup(ctx, tabLoc)
	if err != nil || !ok {
		return false, err
	}
	if err := el.HoverOver(ctx); err != nil {
		return false, err
	}

	panel := tabLoc.Descendant(menuPanelRule)
	_, err = t.tab.WaitFor(ctx, panel)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrSessionLost) {
		return false, err
	}

	t.logger.Debug("[menu] Panel of tab %d not shown, scrolling the tab bar", t.tabIndex)
	right, err := t.tab.Find(ctx, menuScrollRightLoc)
	if err != nil {
		return false, err
	}
	if err := right.Click(ctx); err != nil {
		return false, err
	}
	if el, err = t.tab.Find(ctx, tabLoc); err != nil {
		return false, err
	}
	if err := el.HoverOver(ctx); err != nil {
		return false, err
	}
	if _, err := t.tab.WaitFor(ctx, panel); err != nil {
		return false, err
	}
	return true, nil
}

func topTabLocator(tab int) browser.Locator {
	return topCategoriesLoc.NthMatch(tab)
}

func groupLocator(tab, group int) browser.Locator {
	return topTabLocator(tab).Descendant(menuBucketRule).NthMatch(group)
}

func leafLocator(tab, group, leaf int) browser.Locator {
	return groupLocator(tab, group).Descendant(bucketLeafRule).NthMatch(leaf).Descendant("a")
}
