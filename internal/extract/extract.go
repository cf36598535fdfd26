// Package extract turns raw listing markup into structured postings.
package extract

import (
	"fmt"
	"hash/fnv"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const sourceBase = "https://news.ycombinator.com/"

// RawPosting is one entry as it appears on the listing page, before any
// title heuristics run.
type RawPosting struct {
	ExternalID string
	Title      string
	URL        string
	PostedAt   *time.Time
}

// Listing is one parsed page of the jobs table. NextHref is the site-relative
// href of the "More" link, empty on the last page; the source paginates with
// this cursor, not with a page number parameter.
type Listing struct {
	Postings []RawPosting
	NextHref string
}

// Listings parses the jobs table out of the page markup. A page with no
// recognizable rows yields an empty slice, not an error; the source layout
// changes from time to time and a refresh must degrade, not crash.
func Listings(r io.Reader) ([]RawPosting, error) {
	l, err := ParseListing(r)
	return l.Postings, err
}

// ParseListing is Listings plus the pagination cursor.
func ParseListing(r io.Reader) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Listing{}, fmt.Errorf("parse listing markup: %w", err)
	}

	var out []RawPosting
	doc.Find("tr.athing").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("span.titleline a").First()
		if link.Length() == 0 {
			return
		}
		title := CleanText(link.Text())
		if title == "" {
			return
		}

		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		abs := absoluteURL(href)
		if abs == "" {
			return
		}

		id := externalID(row, href)
		if id == "" {
			id = hashID("url:" + abs)
		}

		out = append(out, RawPosting{
			ExternalID: id,
			Title:      title,
			URL:        abs,
			PostedAt:   postedAt(row),
		})
	})

	l := Listing{Postings: out}
	if href, ok := doc.Find("a.morelink").First().Attr("href"); ok {
		l.NextHref = strings.TrimSpace(href)
	}
	return l, nil
}

func absoluteURL(href string) string {
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	default:
		// item?id=... and other site-relative links
		return sourceBase + strings.TrimPrefix(href, "/")
	}
}

// externalID prefers the id from an item?id= link, falling back to the row's
// own id attribute.
func externalID(row *goquery.Selection, href string) string {
	if strings.Contains(href, "id=") {
		if u, err := url.Parse(href); err == nil {
			if v := u.Query().Get("id"); v != "" {
				return v
			}
		}
	}
	if v, ok := row.Attr("id"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// postedAt reads the absolute timestamp from the metadata row under the
// title row. Newer markup appends an epoch after the ISO time in the title
// attribute; take the first field. Nil when missing or unparseable.
func postedAt(row *goquery.Selection) *time.Time {
	age := row.Next().Find("span.age").First()
	raw, ok := age.Attr("title")
	if !ok {
		return nil
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	raw = fields[0]

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func hashID(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("x%016x", h.Sum64())
}

// CleanText collapses whitespace and strips non-breaking spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
