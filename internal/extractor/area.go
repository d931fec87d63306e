package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/routeguessr/internal/models"
)

// areaTitleSuffix trails every area heading ("Joshua Tree National Park Climbing").
const areaTitleSuffix = "Climbing"

// ChildArea is a sub-area listed on an area page. Weight is the route
// count the page advertises for it.
type ChildArea struct {
	Link   string
	Weight int
}

// AreaInfo is the identity of an area page.
type AreaInfo struct {
	Name  string
	Link  string
	Coord models.Coordinate
}

// AreaInfo extracts the area's name and GPS position.
func (d *Document) AreaInfo() (AreaInfo, error) {
	title, ok := d.title()
	if !ok {
		return AreaInfo{}, d.missing("area name", nil)
	}
	name := strings.TrimSpace(strings.TrimSuffix(title, areaTitleSuffix))
	if name == "" {
		return AreaInfo{}, d.missing("area name", nil)
	}

	coord, err := d.GPS()
	if err != nil {
		return AreaInfo{}, err
	}
	return AreaInfo{Name: name, Link: d.url, Coord: coord}, nil
}

// GPS extracts the coordinate from the labelled GPS cell. The cell may carry
// map-link text after the pair, which is cut off.
func (d *Document) GPS() (models.Coordinate, error) {
	raw, ok := d.labelledValue(labelGPS)
	if !ok {
		return models.Coordinate{}, d.missing("gps", nil)
	}
	if i := strings.Index(raw, "Google"); i >= 0 {
		raw = raw[:i]
	}
	coord, err := models.ParseCoordinate(strings.TrimSpace(raw))
	if err != nil {
		return models.Coordinate{}, d.missing("gps", err)
	}
	return coord, nil
}

// ChildAreas lists the sub-areas in page order. An empty result means the
// page is a leaf area whose page lists routes instead.
func (d *Document) ChildAreas() ([]ChildArea, error) {
	var (
		children []ChildArea
		rowErr   error
	)
	d.doc.Find(selChildAreaRow).EachWithBreak(func(i int, row *goquery.Selection) bool {
		href, ok := row.Find("a[href]").First().Attr("href")
		link := d.resolve(href)
		if !ok || link == "" {
			rowErr = d.missing("child area link", fmt.Errorf("row %d", i))
			return false
		}
		weight, err := parseCount(row.Find(selChildAreaCount).First().Text())
		if err != nil {
			rowErr = d.missing("child area route count", fmt.Errorf("row %d: %w", i, err))
			return false
		}
		children = append(children, ChildArea{Link: link, Weight: weight})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return children, nil
}

// TotalRoutes sums the advertised route counts of the children.
func TotalRoutes(children []ChildArea) int {
	total := 0
	for _, c := range children {
		total += c.Weight
	}
	return total
}

// parseCount reads a route count such as "1,234", ignoring grouping characters.
func parseCount(raw string) (int, error) {
	cleaned := strings.NewReplacer(",", "", ".", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, fmt.Errorf("empty count")
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
