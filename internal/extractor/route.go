package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/routeguessr/internal/models"
)

var starsPattern = regexp.MustCompile(`Avg:\s*([\d.]+)`)

const feetPerMeter = 3.28084

// RouteLinks returns every route link of a leaf area's listing table: rows
// in page order, links within a row in DOM order. A page without the table
// yields an empty list.
func (d *Document) RouteLinks() []string {
	var links []string
	d.doc.Find(selRouteTable).First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tr.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if link := d.resolve(href); link != "" {
				links = append(links, link)
			}
		})
	})
	return links
}

// RouteSummary is the subset of a route page used by discovery.
type RouteSummary struct {
	Name  string
	Coord models.Coordinate
}

// RouteSummary extracts the route name and GPS position.
func (d *Document) RouteSummary() (RouteSummary, error) {
	name, ok := d.title()
	if !ok {
		return RouteSummary{}, d.missing("route name", nil)
	}
	coord, err := d.GPS()
	if err != nil {
		return RouteSummary{}, err
	}
	return RouteSummary{Name: name, Coord: coord}, nil
}

// Route extracts the full field set of a route page. Every field is
// required; the first missing one fails the record.
func (d *Document) Route() (models.RouteFields, error) {
	summary, err := d.RouteSummary()
	if err != nil {
		return models.RouteFields{}, err
	}

	grade, err := d.grade()
	if err != nil {
		return models.RouteFields{}, err
	}
	stars, err := d.stars()
	if err != nil {
		return models.RouteFields{}, err
	}
	climbType, length, err := d.typeAndLength()
	if err != nil {
		return models.RouteFields{}, err
	}

	return models.RouteFields{
		Name:   summary.Name,
		Link:   d.url,
		Coord:  summary.Coord,
		Type:   climbType,
		Grade:  grade,
		Stars:  stars,
		Length: length,
	}, nil
}

// grade is the first whitespace-delimited token of the rating.
func (d *Document) grade() (string, error) {
	fields := strings.Fields(d.doc.Find(selGrade).First().Text())
	if len(fields) == 0 {
		return "", d.missing("grade", nil)
	}
	return fields[0], nil
}

func (d *Document) stars() (float64, error) {
	span := d.doc.Find(selStars).First()
	if span.Length() == 0 {
		return 0, d.missing("stars", nil)
	}
	m := starsPattern.FindStringSubmatch(span.Text())
	if m == nil {
		return 0, d.missing("stars", fmt.Errorf("no average in %q", compactText(span.Text())))
	}
	stars, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, d.missing("stars", err)
	}
	return stars, nil
}

// typeAndLength splits the combined "Type:" cell, e.g. "Trad, 60 ft (18 m)".
// The first comma segment is the type. The second segment is split on
// single spaces; token 1 is the length and token 2 its unit. The rule is
// positional and any deviation is reported as a missing field.
func (d *Document) typeAndLength() (models.ClimbType, float64, error) {
	raw, ok := d.labelledValue(labelType)
	if !ok {
		return "", 0, d.missing("type", nil)
	}
	segments := strings.Split(raw, ",")
	typeLabel := strings.TrimSpace(segments[0])
	if typeLabel == "" {
		return "", 0, d.missing("type", nil)
	}
	if len(segments) < 2 {
		return "", 0, d.missing("length", fmt.Errorf("no length in %q", raw))
	}

	tokens := strings.Split(segments[1], " ")
	if len(tokens) < 2 {
		return "", 0, d.missing("length", fmt.Errorf("no length in %q", raw))
	}
	length, err := strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return "", 0, d.missing("length", err)
	}
	if len(tokens) > 2 && strings.EqualFold(tokens[2], "m") {
		length *= feetPerMeter
	}
	return models.ParseClimbType(typeLabel), length, nil
}
