package extractor

import (
	"github.com/PuerkitoBio/goquery"
)

// ThumbnailLinks returns the photo page link of every thumbnail on a route
// page, in page order. Containers without a link are ignored.
func (d *Document) ThumbnailLinks() []string {
	var links []string
	d.doc.Find(selThumbnail).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		if link := d.resolve(href); link != "" {
			links = append(links, link)
		}
	})
	return links
}

// MainPhoto returns the full-resolution image URL of a photo page.
func (d *Document) MainPhoto() (string, error) {
	src, ok := d.doc.Find(selMainPhoto).First().Attr("src")
	if !ok {
		return "", d.missing("main photo", nil)
	}
	link := d.resolve(src)
	if link == "" {
		return "", d.missing("main photo", nil)
	}
	return link, nil
}
