package fiverr

import (
	"context"
	"errors"
	"strings"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/models"
)

// Visuals collects the gallery in display order. It walks the full-screen
// slideshow when one can be opened and the inline gallery otherwise. Any
// modal opened here is closed before returning.
func (p *GigPage) Visuals(ctx context.Context) (visuals []models.Visual, err error) {
	if err := p.closeModal(ctx); err != nil {
		return nil, err
	}

	thumbs, err := p.tab.FindAll(ctx, galleryThumbnailsLoc)
	if err != nil {
		return nil, err
	}
	if len(thumbs) == 0 {
		// single-visual gigs have no thumbnail strip
		ok, err := p.tab.Exists(ctx, inlineSlideLoc)
		if err != nil || !ok {
			return nil, err
		}
		v, err := p.readSlide(ctx, inlineSlideLoc)
		if err != nil {
			return nil, err
		}
		return []models.Visual{*v}, nil
	}

	opened, err := p.openModal(ctx, len(thumbs))
	if err != nil {
		return nil, err
	}
	if !opened {
		p.logger.Debug("[gallery] Slideshow unavailable, walking %d thumbnails inline", len(thumbs))
		return p.inlineVisuals(ctx, len(thumbs))
	}
	defer func() {
		if cerr := p.closeModal(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return p.modalVisuals(ctx)
}

func (p *GigPage) modalVisuals(ctx context.Context) ([]models.Visual, error) {
	slides, err := p.tab.FindAll(ctx, modalSlidesLoc)
	if err != nil {
		return nil, err
	}
	count := len(slides)
	if count == 0 {
		return nil, nil
	}

	if err := p.rewind(ctx, count); err != nil {
		return nil, err
	}

	visuals := make([]models.Visual, 0, count)
	for i := 1; i <= count; i++ {
		slide := currentSlide(i).Descendant(slideRule)
		v, err := p.readSlide(ctx, slide)
		if err != nil {
			return nil, err
		}
		visuals = append(visuals, *v)

		if i == count {
			break
		}
		if err := p.click(ctx, modalNextLoc); err != nil {
			return nil, err
		}
	}
	return visuals, nil
}

// rewind steps back until the first slide is current. The slideshow wraps,
// so more than count steps means the first slide never became current.
func (p *GigPage) rewind(ctx context.Context, count int) error {
	for step := 0; ; step++ {
		ok, err := p.tab.Exists(ctx, currentSlide(1))
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if step >= count {
			return apperrors.Unexpected("slideshow did not rewind to its first slide after %d steps", count)
		}
		if err := p.click(ctx, modalPrevLoc); err != nil {
			return err
		}
	}
}

// openModal opens the slideshow from the current inline slide. Video slides
// have no figure to click, so later thumbnails are tried in turn.
func (p *GigPage) openModal(ctx context.Context, thumbs int) (bool, error) {
	if ok, err := p.tab.Exists(ctx, modalSlideshowLoc); err != nil || ok {
		return ok, err
	}

	for i := 0; i <= thumbs; i++ {
		if i > 0 {
			if err := p.click(ctx, galleryThumbnailsLoc.NthMatch(i)); err != nil {
				return false, err
			}
		}
		figure, ok, err := p.tab.Lookup(ctx, inlineFigureLoc)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if err := figure.Click(ctx); err != nil {
			return false, err
		}
		if _, err := p.tab.WaitFor(ctx, modalSlideshowLoc); err != nil {
			var notFound apperrors.ElementNotFoundError
			if errors.As(err, &notFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (p *GigPage) inlineVisuals(ctx context.Context, thumbs int) ([]models.Visual, error) {
	visuals := make([]models.Visual, 0, thumbs)
	for i := 1; i <= thumbs; i++ {
		if err := p.click(ctx, galleryThumbnailsLoc.NthMatch(i)); err != nil {
			return nil, err
		}
		if err := pause(ctx, p.settle); err != nil {
			return nil, err
		}
		v, err := p.readSlide(ctx, inlineSlideLoc)
		if err != nil {
			return nil, err
		}
		visuals = append(visuals, *v)
	}
	return visuals, nil
}

// readSlide classifies a slide by its class. Videos load only after their
// play button is clicked.
func (p *GigPage) readSlide(ctx context.Context, slide browser.Locator) (*models.Visual, error) {
	el, err := p.tab.Find(ctx, slide)
	if err != nil {
		return nil, err
	}
	class, err := el.RequiredAttribute(ctx, "class")
	if err != nil {
		return nil, err
	}

	if strings.Contains(class, slideVideoClass) {
		if err := p.click(ctx, slide.Descendant(slidePlayRule)); err != nil {
			return nil, err
		}
		video, err := p.tab.WaitFor(ctx, slide.Descendant(slideVideoRule))
		if err != nil {
			return nil, err
		}
		src, err := video.RequiredAttribute(ctx, "src")
		if err != nil {
			return nil, err
		}
		return &models.Visual{Kind: models.VisualVideo, URL: src}, nil
	}

	img, err := p.tab.Find(ctx, slide.Descendant(slideImageRule))
	if err != nil {
		return nil, err
	}
	src, err := img.RequiredAttribute(ctx, "src")
	if err != nil {
		return nil, err
	}
	return &models.Visual{Kind: models.VisualImage, URL: src}, nil
}

func (p *GigPage) closeModal(ctx context.Context) error {
	el, ok, err := p.tab.Lookup(ctx, modalCloseLoc)
	if err != nil || !ok {
		return err
	}
	return el.Click(ctx)
}

func (p *GigPage) click(ctx context.Context, loc browser.Locator) error {
	el, err := p.tab.Find(ctx, loc)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

func currentSlide(i int) browser.Locator {
	return modalSlidesLoc.NthMatch(i).Matching(".current")
}
