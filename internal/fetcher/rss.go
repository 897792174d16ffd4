package fetcher

import (
	"encoding/xml"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// RSSChannel is the channel element of an RSS 2.0 feed.
type RSSChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []RSSItem `xml:"item"`
}

// RSSItem is a single feed entry.
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Creator     string `xml:"creator"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// PublishedAt parses the item's pubDate. Returns the zero time when no
// known layout matches.
func (i RSSItem) PublishedAt() time.Time {
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, i.PubDate); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// URL returns the item's canonical link, falling back to a permalink GUID.
func (i RSSItem) URL() string {
	if i.Link != "" {
		return i.Link
	}
	return i.GUID
}

// ParseRSS decodes an RSS 2.0 feed. Non-UTF-8 feeds are transcoded via
// the declared charset.
func ParseRSS(r io.Reader) (*RSSChannel, error) {
	var doc struct {
		Channel RSSChannel `xml:"channel"`
	}

	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "rss: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	if err := decoder.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "rss: decode feed")
	}
	return &doc.Channel, nil
}
