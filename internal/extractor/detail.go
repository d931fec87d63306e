package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var objectIDPattern = regexp.MustCompile(`var objectId = '(\d+)'`)

// sidebarLocationPrefix is the length in characters of the "Location: " style
// lead-in of the sidebar heading.
const sidebarLocationPrefix = 10

// commentsPath is where a route's comment thread is served from.
const commentsPath = "/comments/forObject/Climb-Lib-Models-Route/"

// RouteDetail is the long-form text of a route page.
type RouteDetail struct {
	Description string
	Location    string
	Protection  string
}

// RouteDetail extracts description, location and protection. Pages with
// three text blocks carry all of them in order; pages with two move the
// location into the sidebar heading.
func (d *Document) RouteDetail() (RouteDetail, error) {
	blocks := d.doc.Find(selTextBlock)
	if blocks.Length() < 2 {
		return RouteDetail{}, d.missing("description", fmt.Errorf("%d text blocks", blocks.Length()))
	}
	text := func(i int) string { return strings.TrimSpace(blocks.Eq(i).Text()) }

	detail := RouteDetail{Description: text(0)}
	if blocks.Length() > 2 {
		detail.Location = text(1)
		detail.Protection = text(2)
		return detail, nil
	}

	detail.Protection = text(1)
	heading := strings.TrimSpace(d.doc.Find(selSidebarHeading).First().Text())
	if r := []rune(heading); len(r) > sidebarLocationPrefix {
		detail.Location = strings.TrimSpace(string(r[sidebarLocationPrefix:]))
	}
	return detail, nil
}

// ObjectID returns the id the site uses for the route's comment thread.
func (d *Document) ObjectID() (string, error) {
	var id string
	d.doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := objectIDPattern.FindStringSubmatch(s.Text()); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id == "" {
		return "", d.missing("object id", nil)
	}
	return id, nil
}

// CommentsURL builds the comment thread address for a route on the same
// host as routeURL.
func CommentsURL(routeURL, objectID string) (string, error) {
	u, err := url.Parse(routeURL)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: commentsPath + objectID}).String(), nil
}

// Comments returns the text of every comment on a comment thread page. The
// expanded form of a truncated comment wins over its preview; timestamps
// are dropped.
func (d *Document) Comments() []string {
	var comments []string
	d.doc.Find(selComment).Each(func(_ int, s *goquery.Selection) {
		var text string
		if full := s.Find(selCommentFull).First(); full.Length() > 0 {
			text = full.Text()
		} else {
			body := s.Clone()
			body.Find(selCommentTime).Remove()
			text = body.Text()
		}
		if text = compactText(text); text != "" {
			comments = append(comments, text)
		}
	})
	return comments
}
