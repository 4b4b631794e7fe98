package fiverr

import (
	"context"

	"github.com/cryarchy/fiverr-tools/browser"
)

// SiteNav moves the tab back to the home page, where the category menu is.
type SiteNav struct {
	tab     *browser.Tab
	homeURL string
}

func NewSiteNav(tab *browser.Tab, homeURL string) *SiteNav {
	return &SiteNav{tab: tab, homeURL: homeURL}
}

// GoHome follows the header logo when the page has one and loads the home
// URL otherwise, then waits for the category menu.
func (n *SiteNav) GoHome(ctx context.Context) error {
	logo, ok, err := n.tab.Lookup(ctx, homeLogoLoc)
	if err != nil {
		return err
	}
	if ok {
		if err := logo.Click(ctx); err != nil {
			return err
		}
		if err := n.tab.WaitUntilNavigated(ctx); err != nil {
			return err
		}
	} else if err := n.tab.NavigateTo(ctx, n.homeURL); err != nil {
		return err
	}

	_, err = n.tab.WaitFor(ctx, topTabLocator(1))
	return err
}
