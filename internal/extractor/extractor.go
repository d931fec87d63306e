// Package extractor pulls typed fields out of the climbing site's area,
// route listing, route and photo pages.
package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/routeguessr/pkg/plugin"
)

// Selectors for the site's page shapes.
const (
	selTitle          = "h1"
	selLabelCell      = "td"
	selChildAreaRow   = "div.lef-nav-row"
	selChildAreaCount = "span.text-warm"
	selRouteTable     = "table#left-nav-route-table"
	selGrade          = "span.rateYDS"
	selStars          = `span[id^="starsWithAvgText-"]`
	selThumbnail      = "div.col-xs-4"
	selMainPhoto      = "img.main-photo"
	selTextBlock      = "div.fr-view"
	selSidebarHeading = "div.mp-sidebar h3"
	selComment        = "div.comment-body"
	selCommentFull    = `span[id$="-full"]`
	selCommentTime    = "span.comment-time"

	labelGPS  = "GPS:"
	labelType = "Type:"
)

// ErrFieldNotFound matches every FieldNotFoundError.
var ErrFieldNotFound = errors.New("field not found")

// FieldNotFoundError reports a required field that is absent or unparsable.
// The whole record is rejected; partial records are never returned.
type FieldNotFoundError struct {
	Field string
	URL   string
	Err   error
}

func (e *FieldNotFoundError) Error() string {
	msg := fmt.Sprintf("field %q not found", e.Field)
	if e.URL != "" {
		msg += " on " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FieldNotFoundError) Unwrap() error { return e.Err }

func (e *FieldNotFoundError) Is(target error) bool { return target == ErrFieldNotFound }

// Document is a parsed page plus the URL its relative links resolve against.
type Document struct {
	doc  *goquery.Document
	base *url.URL
	url  string
}

// NewDocument parses a fetched page.
func NewDocument(page *plugin.PageData) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page.URL, err)
	}
	base, err := url.Parse(page.BaseURL())
	if err != nil {
		base, _ = url.Parse(page.URL)
	}
	return &Document{doc: doc, base: base, url: page.URL}, nil
}

// URL returns the address the page was requested from.
func (d *Document) URL() string { return d.url }

func (d *Document) missing(field string, err error) error {
	return &FieldNotFoundError{Field: field, URL: d.url, Err: err}
}

// title returns the trimmed text of the page heading.
func (d *Document) title() (string, bool) {
	h := d.doc.Find(selTitle).First()
	if h.Length() == 0 {
		return "", false
	}
	t := strings.TrimSpace(h.Text())
	return t, t != ""
}

// labelledValue finds the table cell whose text is exactly label and
// returns the trimmed text of the cell that follows it.
func (d *Document) labelledValue(label string) (string, bool) {
	cell := d.doc.Find(selLabelCell).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == label
	}).First()
	if cell.Length() == 0 {
		return "", false
	}
	next := cell.Next()
	if next.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(next.Text()), true
}

// resolve turns a possibly relative href into an absolute URL.
func (d *Document) resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return resolveURL(d.base, raw)
}

// resolveURL resolves a potentially relative URL against a base URL.
func resolveURL(base *url.URL, raw string) string {
	if base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// compactText collapses runs of whitespace into single spaces.
func compactText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
