package fiverr

import (
	"context"

	"github.com/cryarchy/fiverr-tools/models"
)

func (s *Scraper) persistMetadata(ctx context.Context, gigID int64) error {
	metadata, err := s.gig.Metadata(ctx)
	if err != nil {
		return err
	}
	for _, m := range metadata {
		if _, err := s.repos.Metadata.Create(ctx, gigID, m); err != nil {
			return err
		}
	}
	return nil
}

// persistPackages stores every package with its features. A package whose
// price cannot be parsed is dropped on its own.
func (s *Scraper) persistPackages(ctx context.Context, gigID int64) error {
	raw, err := s.gig.Packages(ctx)
	if err != nil {
		return err
	}
	for _, r := range raw {
		pkg, err := s.cleaner.CleanPackage(r)
		if err != nil {
			s.logger.Warn("[engine] Skipping package %q of gig %d: %v", r.Type, gigID, err)
			s.metrics.IncSkipped("package")
			continue
		}

		typeID, err := s.repos.PackageTypes.GetOrCreate(ctx, pkg.Type)
		if err != nil {
			return err
		}
		packageID, err := s.repos.Packages.Create(ctx, gigID, typeID, *pkg)
		if err != nil {
			return err
		}
		for _, f := range pkg.Features {
			if _, err := s.repos.PackageFeatures.Create(ctx, packageID, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scraper) persistFAQs(ctx context.Context, gigID int64) error {
	faqs := s.gig.FAQs()
	for {
		faq, err := faqs.Next(ctx)
		if err != nil {
			return err
		}
		if faq == nil {
			return nil
		}
		if _, err := s.repos.FAQs.Create(ctx, gigID, *faq); err != nil {
			return err
		}
	}
}

// persistVisuals stores the gallery and, when a media store is configured,
// downloads the images. Download failures never fail the gig.
func (s *Scraper) persistVisuals(ctx context.Context, gigID int64) error {
	visuals, err := s.gig.Visuals(ctx)
	if err != nil {
		return err
	}
	for _, v := range visuals {
		typeID, err := s.repos.VisualTypes.GetOrCreate(ctx, string(v.Kind))
		if err != nil {
			return err
		}
		if _, err := s.repos.Visuals.Create(ctx, gigID, typeID, v.URL); err != nil {
			return err
		}

		if s.media == nil || v.Kind != models.VisualImage {
			continue
		}
		if _, err := s.media.Save(ctx, gigID, v.URL); err != nil {
			s.logger.Warn("[engine] Media download failed for %s: %v", v.URL, err)
		}
	}
	return nil
}

// persistReviews stores reviews until the configured prefix is read or the
// stream ends, then marks the gig completed. It returns the number of
// reviews read.
func (s *Scraper) persistReviews(ctx context.Context, gigID int64) (int, error) {
	stream := s.gig.Reviews()
	read := 0
	for s.cfg.ReviewPrefix <= 0 || read < s.cfg.ReviewPrefix {
		raw, err := stream.Next(ctx)
		if err != nil {
			return read, err
		}
		if raw == nil {
			break
		}
		read++

		review, err := s.cleaner.CleanReview(*raw)
		if err != nil {
			s.logger.Warn("[engine] Skipping review %d of gig %d: %v", read, gigID, err)
			s.metrics.IncSkipped("review")
			continue
		}
		if _, err := s.repos.Reviews.Create(ctx, gigID, *review); err != nil {
			return read, err
		}
	}

	return read, s.repos.Gigs.MarkCompleted(ctx, gigID)
}
