package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/pkg/plugin"
)

const site = "https://site.test"

// fakeSite serves canned pages and records every request.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
	hits    map[string]int
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: map[string]string{}, hits: map[string]int{}}
}

func (s *fakeSite) Name() string { return "fake" }

func (s *fakeSite) Fetch(_ context.Context, url string, depth int) (*plugin.PageData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, url)
	s.hits[url]++
	html, ok := s.pages[url]
	if !ok {
		return nil, &fetcher.NetworkError{URL: url, StatusCode: 404, Err: fmt.Errorf("not found")}
	}
	return &plugin.PageData{URL: url, FinalURL: url, StatusCode: 200, RawHTML: html, Depth: depth}, nil
}

func (s *fakeSite) Close() error { return nil }

func (s *fakeSite) hitsFor(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[url]
}

func (s *fakeSite) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

type child struct {
	path   string
	weight int
}

func gpsRow(lat, lon float64) string {
	return fmt.Sprintf(`<table><tr><td>GPS:</td><td>%v, %v Google Map</td></tr></table>`, lat, lon)
}

// area adds an area page listing children.
func (s *fakeSite) area(path, name string, children ...child) {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body><h1>%s Climbing</h1>%s", name, gpsRow(37.5, -119.5))
	for _, c := range children {
		fmt.Fprintf(&b, `<div class="lef-nav-row"><a href="%s">x</a><span class="text-warm">%d</span></div>`, c.path, c.weight)
	}
	b.WriteString("</body></html>")
	s.pages[site+path] = b.String()
}

// leaf adds a leaf area page listing routes.
func (s *fakeSite) leaf(path, name string, routes ...string) {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body><h1>%s Climbing</h1>%s", name, gpsRow(37.6, -119.6))
	if len(routes) > 0 {
		b.WriteString(`<table id="left-nav-route-table">`)
		for _, r := range routes {
			fmt.Fprintf(&b, `<tr><td><a href="%s">route</a></td></tr>`, r)
		}
		b.WriteString("</table>")
	}
	b.WriteString("</body></html>")
	s.pages[site+path] = b.String()
}

// route adds a complete route page with the given photo page links.
func (s *fakeSite) route(path, name string, photos ...string) {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><h1>%s</h1>
		<span class="rateYDS">5.9 YDS</span>
		<span id="starsWithAvgText-1">Avg: 3.1 from 12 votes</span>
		<table><tr><td>Type:</td><td>Sport, 90 ft (27 m)</td></tr></table>%s`, name, gpsRow(37.7, -119.7))
	for _, p := range photos {
		fmt.Fprintf(&b, `<div class="col-xs-4"><a href="%s"><img src="/thumb.jpg"></a></div>`, p)
	}
	b.WriteString("</body></html>")
	s.pages[site+path] = b.String()
}

// photo adds a photo page showing image.
func (s *fakeSite) photo(path, image string) {
	s.pages[site+path] = fmt.Sprintf(`<html><body><img class="main-photo" src="%s"></body></html>`, image)
}
