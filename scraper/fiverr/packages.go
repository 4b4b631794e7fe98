package fiverr

import (
	"context"
	"strconv"
	"strings"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/models"
)

// Packages reads the package comparison table. The first column of every
// row is a label, so package i lives in column i+1. Gigs sold as a single
// package have no table and yield nothing.
func (p *GigPage) Packages(ctx context.Context) ([]models.RawPackage, error) {
	headers, err := p.tab.FindAll(ctx, packageHeadersLoc)
	if err != nil {
		return nil, err
	}
	if len(headers) < 2 {
		return nil, nil
	}

	packages := make([]models.RawPackage, 0, len(headers)-1)
	for _, header := range headers[1:] {
		pkg, err := readPackageHeader(ctx, header)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}

	descriptions, err := p.tab.FindAll(ctx, packageDescLoc)
	if err != nil {
		return nil, err
	}
	for i, cell := range skipLabel(descriptions) {
		if i >= len(packages) {
			break
		}
		text, err := cell.Text(ctx)
		if err != nil {
			return nil, err
		}
		packages[i].Description = text
	}

	if err := p.readFeatures(ctx, packages); err != nil {
		return nil, err
	}

	deliveries, err := p.tab.FindAll(ctx, packageDeliveryLoc)
	if err != nil {
		return nil, err
	}
	for i, cell := range skipLabel(deliveries) {
		if i >= len(packages) {
			break
		}
		span, err := cell.Find(ctx, packageDeliveryRule)
		if err != nil {
			return nil, err
		}
		text, err := span.Text(ctx)
		if err != nil {
			return nil, err
		}
		packages[i].DeliveryTime = text
	}

	return packages, nil
}

func readPackageHeader(ctx context.Context, header *browser.Element) (models.RawPackage, error) {
	var pkg models.RawPackage
	fields := []struct {
		rule string
		dst  *string
	}{
		{packagePriceRule, &pkg.Price},
		{packageTypeRule, &pkg.Type},
		{packageTitleRule, &pkg.Title},
	}
	for _, f := range fields {
		el, err := header.Find(ctx, f.rule)
		if err != nil {
			return pkg, err
		}
		if *f.dst, err = el.Text(ctx); err != nil {
			return pkg, err
		}
	}
	return pkg, nil
}

// readFeatures fills the feature matrix. Check-mark cells are decoded
// against the largest class-token count seen across all icons in the table.
func (p *GigPage) readFeatures(ctx context.Context, packages []models.RawPackage) error {
	icons, err := p.tab.FindAll(ctx, packageCheckIconsLoc)
	if err != nil {
		return err
	}
	checked := 0
	for _, icon := range icons {
		class, ok, err := icon.Attribute(ctx, "class")
		if err != nil {
			return err
		}
		if ok {
			checked = max(checked, classTokens(class))
		}
	}

	rows, err := p.tab.FindAll(ctx, packageFeatureRowsLoc)
	if err != nil {
		return err
	}
	for _, row := range rows {
		cells, err := row.FindAll(ctx, packageCellRule)
		if err != nil {
			return err
		}
		if len(cells) == 0 {
			continue
		}
		key, err := cells[0].Text(ctx)
		if err != nil {
			return err
		}

		for i, cell := range cells[1:] {
			if i >= len(packages) {
				break
			}
			value, err := featureValue(ctx, cell, checked)
			if err != nil {
				return err
			}
			packages[i].Features = append(packages[i].Features, models.Feature{Key: key, Value: value})
		}
	}
	return nil
}

func featureValue(ctx context.Context, cell *browser.Element, checked int) (string, error) {
	icon, ok, err := cell.Lookup(ctx, packageIconRule)
	if err != nil {
		return "", err
	}
	if !ok {
		return cell.Text(ctx)
	}
	class, present, err := icon.Attribute(ctx, "class")
	if err != nil {
		return "", err
	}
	return DecodeCheckCell(class, present, checked)
}

// DecodeCheckCell turns a check-mark icon into "true" or "false". The checked
// variant carries the most class tokens, so an icon is checked exactly when
// its token count equals checked. An icon without a class is malformed.
func DecodeCheckCell(class string, present bool, checked int) (string, error) {
	if !present {
		return "", apperrors.Unexpected("check-mark icon without a class attribute")
	}
	return strconv.FormatBool(classTokens(class) == checked), nil
}

func classTokens(class string) int {
	return len(strings.Fields(class))
}

func skipLabel(cells []*browser.Element) []*browser.Element {
	if len(cells) == 0 {
		return nil
	}
	return cells[1:]
}
