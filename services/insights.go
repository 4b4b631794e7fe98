package services

import (
	"sort"
	"strings"

	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/utils"
)

const laggingCategories = 5

// InsightService summarises crawl coverage across categories.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds a coverage report. Gig statistics only consider
// categories that are enabled for scraping.
func (s *InsightService) Generate(coverage []models.CategoryCoverage) *models.CoverageReport {
	report := &models.CoverageReport{
		GigsByMainGroup: make(map[string]int64),
	}

	if len(coverage) == 0 {
		return report
	}

	report.TotalCategories = len(coverage)

	var enabled []models.CategoryCoverage
	for _, c := range coverage {
		report.TotalGigs += c.GigCount
		if c.GigCount > 0 {
			report.GigsByMainGroup[c.MainGroupName] += c.GigCount
		}
		if c.ScrapeEnabled {
			enabled = append(enabled, c)
		}
	}

	report.EnabledCategories = len(enabled)
	if len(enabled) == 0 {
		return report
	}

	report.MinGigs = enabled[0].GigCount
	report.MaxGigs = enabled[0].GigCount
	var total int64
	for _, c := range enabled {
		total += c.GigCount
		if c.GigCount < report.MinGigs {
			report.MinGigs = c.GigCount
		}
		if c.GigCount > report.MaxGigs {
			report.MaxGigs = c.GigCount
		}
	}
	report.AverageGigs = round2(float64(total) / float64(len(enabled)))

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].GigCount < enabled[j].GigCount
	})
	if len(enabled) > laggingCategories {
		report.Lagging = enabled[:laggingCategories]
	} else {
		report.Lagging = enabled
	}

	return report
}

// Log writes the report through the service logger.
func (s *InsightService) Log(r *models.CoverageReport) {
	s.logger.Info("[insights] Categories: %d known, %d enabled | completed gigs: %d",
		r.TotalCategories, r.EnabledCategories, r.TotalGigs)

	if r.EnabledCategories == 0 {
		s.logger.Warn("[insights] No category is enabled for scraping; only discovery will run")
		return
	}

	s.logger.Info("[insights] Gigs per enabled category: min %d, max %d, avg %.2f",
		r.MinGigs, r.MaxGigs, r.AverageGigs)

	for i, c := range r.Lagging {
		s.logger.Info("[insights]   %d. %-40s %d", i+1, truncate(c.Path, 40), c.GigCount)
	}

	groups := make([]string, 0, len(r.GigsByMainGroup))
	for g := range r.GigsByMainGroup {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return r.GigsByMainGroup[groups[i]] > r.GigsByMainGroup[groups[j]]
	})
	for _, g := range groups {
		bar := strings.Repeat("█", barLength(r.GigsByMainGroup[g], r.TotalGigs))
		s.logger.Info("[insights]   %-30s %s (%d)", truncate(g, 28), bar, r.GigsByMainGroup[g])
	}
}

func barLength(n, total int64) int {
	if total == 0 {
		return 0
	}
	return int(n * 30 / total)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// Excerpt truncates s to at most max bytes, marking the cut with "...".
func Excerpt(s string, max int) string {
	return truncate(s, max)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
