package fiverr

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser/browsertest"
	"github.com/cryarchy/fiverr-tools/models"
)

func drainCategories(t *testing.T, tree *CategoryTree) []models.Category {
	t.Helper()
	var out []models.Category
	for {
		c, err := tree.Next(context.Background())
		require.NoError(t, err)
		if c == nil {
			return out
		}
		out = append(out, *c)
	}
}

func TestCategoryTreeDepthFirst(t *testing.T) {
	page, tab := newTestTab(t)
	setMenu(page,
		menuTab{name: "Graphics & Design", groups: []menuGroup{
			{title: "Logo & Brand Identity", leaves: []menuLeaf{
				{"Logo Design", "/categories/graphics-design/creative-logo-design"},
				{"Brand Style Guides NEW", "/categories/graphics-design/brand-style-guides"},
			}},
			{title: "Web & App Design", leaves: []menuLeaf{
				{"App Design", "/categories/graphics-design/app-design"},
			}},
		}},
		menuTab{name: "Programming & Tech", groups: []menuGroup{
			{title: "Application Development", leaves: []menuLeaf{
				{"Mobile Apps", "/categories/programming-tech/mobile-app-services"},
			}},
		}},
	)

	tree, err := NewCategoryMenu(tab, nopLogger()).Categories(context.Background())
	require.NoError(t, err)

	want := []models.Category{
		{MainGroup: "Graphics & Design", SubGroup: "Logo & Brand Identity", Name: "Logo Design", RelativeURL: "/categories/graphics-design/creative-logo-design"},
		{MainGroup: "Graphics & Design", SubGroup: "Logo & Brand Identity", Name: "Brand Style Guides", RelativeURL: "/categories/graphics-design/brand-style-guides"},
		{MainGroup: "Graphics & Design", SubGroup: "Web & App Design", Name: "App Design", RelativeURL: "/categories/graphics-design/app-design"},
		{MainGroup: "Programming & Tech", SubGroup: "Application Development", Name: "Mobile Apps", RelativeURL: "/categories/programming-tech/mobile-app-services"},
	}
	if diff := cmp.Diff(want, drainCategories(t, tree)); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}

	// exhausted trees stay exhausted
	c, err := tree.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCategoriesEmptyMenu(t *testing.T) {
	_, tab := newTestTab(t)

	_, err := NewCategoryMenu(tab, nopLogger()).Categories(context.Background())
	var unexpected apperrors.UnexpectedError
	require.ErrorAs(t, err, &unexpected)
	assert.Contains(t, unexpected.Message, "empty category sequence")
}

func TestCategoryTreeInvalidateHoversAgain(t *testing.T) {
	page, tab := newTestTab(t)
	tabs := setMenu(page, menuTab{name: "Writing & Translation", groups: []menuGroup{
		{title: "Content Writing", leaves: []menuLeaf{
			{"Articles & Blog Posts", "/categories/writing-translation/articles-blogposts"},
			{"Website Content", "/categories/writing-translation/website-content"},
		}},
	}})

	tree, err := NewCategoryMenu(tab, nopLogger()).Categories(context.Background())
	require.NoError(t, err)

	_, err = tree.Next(context.Background())
	require.NoError(t, err)
	_, err = tree.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tabs[0].Hovers)

	tree.Invalidate()
	c, err := tree.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, 2, tabs[0].Hovers)
}

func TestCategoryTreeScrollsHiddenTab(t *testing.T) {
	page, tab := newTestTab(t)
	setMenu(page, menuTab{name: "Music & Audio", groups: []menuGroup{
		{title: "Production", leaves: []menuLeaf{{"Mixing & Mastering", "/categories/music-audio/mixing-mastering"}}},
	}})
	panel := topTabLocator(1).Descendant(menuPanelRule).Render()
	page.Remove(panel)

	right := &browsertest.Node{OnClick: func() { page.Set(panel, &browsertest.Node{}) }}
	page.Set(menuScrollRightLoc.Render(), right)

	tree, err := NewCategoryMenu(tab, nopLogger()).Categories(context.Background())
	require.NoError(t, err)
	c, err := tree.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Mixing & Mastering", c.Name)
	assert.Equal(t, 1, right.Clicks)
}
