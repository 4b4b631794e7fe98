package services

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/models"
	"github.com/cryarchy/fiverr-tools/utils"
)

var (
	nonDigitRegexp      = regexp.MustCompile(`[^0-9]`)
	nonSimpleTextRegexp = regexp.MustCompile(`[^0-9A-Za-z ]`)
	// priceRangeRegexp keeps only digits and the range separator
	priceRangeRegexp = regexp.MustCompile(`[^0-9-]`)
	// priceRegexp captures numeric price values
	priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	// ratingRegexp captures a numeric rating in the 0.0–5.0 range
	ratingRegexp = regexp.MustCompile(`\b([0-5](?:\.\d{1,2})?)\b`)
	// durationRegexp captures "3 days", "1 week" and similar
	durationRegexp = regexp.MustCompile(`(\d+)\s*([A-Za-z]+)`)

	errNoDigits = errors.New("no digits")
)

// Cleaner turns raw page reads into validated records.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// CleanReview parses the numeric parts of a review card.
func (c *Cleaner) CleanReview(raw models.RawReview) (*models.Review, error) {
	rating, err := ParseRating(raw.Rating)
	if err != nil {
		return nil, err
	}
	minPrice, maxPrice, err := ParsePriceRange(raw.Price)
	if err != nil {
		return nil, err
	}
	value, unit, err := ParseDuration(raw.Duration)
	if err != nil {
		return nil, err
	}

	var country *string
	if raw.Country != nil {
		if cleaned := normaliseText(*raw.Country); cleaned != "" {
			country = &cleaned
		}
	}

	return &models.Review{
		Country:       country,
		Rating:        rating,
		PriceRangeMin: minPrice,
		PriceRangeMax: maxPrice,
		DurationValue: value,
		DurationUnit:  unit,
		Description:   normaliseText(raw.Description),
	}, nil
}

// CleanPackage parses the price of a package column and tidies its texts.
func (c *Cleaner) CleanPackage(raw models.RawPackage) (*models.Package, error) {
	price, err := ParsePrice(raw.Price)
	if err != nil {
		return nil, err
	}

	features := make([]models.Feature, 0, len(raw.Features))
	for _, f := range raw.Features {
		features = append(features, models.Feature{Key: normaliseText(f.Key), Value: normaliseText(f.Value)})
	}

	pkg := &models.Package{
		Type:         normaliseText(raw.Type),
		Price:        price,
		Title:        normaliseText(raw.Title),
		Description:  normaliseText(raw.Description),
		DeliveryTime: normaliseText(raw.DeliveryTime),
		Features:     features,
	}
	c.logger.Debug("[cleaner] Package %s priced %.2f with %d features", pkg.Type, pkg.Price, len(features))
	return pkg, nil
}

// AsNumber strips every non-digit and parses what is left.
func AsNumber(raw string) (int64, error) {
	digits := nonDigitRegexp.ReplaceAllString(raw, "")
	if digits == "" {
		return 0, apperrors.ParseError{Raw: raw, Err: errNoDigits}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, apperrors.ParseError{Raw: raw, Err: err}
	}
	return n, nil
}

// AsSimpleText keeps only ASCII letters, digits and spaces, trimmed.
func AsSimpleText(raw string) string {
	return strings.TrimSpace(nonSimpleTextRegexp.ReplaceAllString(raw, ""))
}

// IsAbbreviatedCount reports whether a popularity counter uses the
// thousands form, e.g. "1.2k".
func IsAbbreviatedCount(raw string) bool {
	return strings.ContainsAny(raw, "kK")
}

// ParsePriceRange parses "$50" as (0, 50) and "$50 - $100" as (50, 100).
func ParsePriceRange(raw string) (int64, int64, error) {
	cleaned := priceRangeRegexp.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, 0, apperrors.ParseError{Raw: raw, Err: errNoDigits}
	}

	lower, upper, isRange := strings.Cut(cleaned, "-")
	if !isRange {
		n, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return 0, 0, apperrors.ParseError{Raw: raw, Err: err}
		}
		return 0, n, nil
	}

	minPrice, err := strconv.ParseInt(lower, 10, 64)
	if err != nil {
		return 0, 0, apperrors.ParseError{Raw: raw, Err: err}
	}
	maxPrice, err := strconv.ParseInt(upper, 10, 64)
	if err != nil {
		return 0, 0, apperrors.ParseError{Raw: raw, Err: err}
	}
	return minPrice, maxPrice, nil
}

// ParseDuration parses "3 days" as (3, "days").
func ParseDuration(raw string) (int64, string, error) {
	m := durationRegexp.FindStringSubmatch(raw)
	if len(m) < 3 {
		return 0, "", apperrors.ParseError{Raw: raw}
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, "", apperrors.ParseError{Raw: raw, Err: err}
	}
	return n, strings.ToLower(m[2]), nil
}

// ParseRating extracts a 0.0–5.0 numeric rating from a raw string.
func ParseRating(raw string) (float64, error) {
	m := ratingRegexp.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0, apperrors.ParseError{Raw: raw}
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, apperrors.ParseError{Raw: raw, Err: err}
	}
	return val, nil
}

// ParsePrice extracts the first decimal amount, ignoring thousands separators.
func ParsePrice(raw string) (float64, error) {
	match := priceRegexp.FindString(raw)
	match = strings.ReplaceAll(match, ",", "")
	if match == "" {
		return 0, apperrors.ParseError{Raw: raw, Err: errNoDigits}
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, apperrors.ParseError{Raw: raw, Err: err}
	}
	return val, nil
}

// HTMLToText returns the visible text of an HTML fragment with whitespace
// collapsed. Unparseable input is returned normalised as is.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normaliseText(html)
	}
	doc.Find("script, style").Remove()
	return normaliseText(doc.Text())
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
