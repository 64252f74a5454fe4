// Package feeds provides RSS/Atom feed fetching and parsing
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "CivicBriefs/1.0"

const maxFeedBytes = 10 << 20

// RSS represents an RSS feed structure
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents an RSS channel
type Channel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []RSSItem `xml:"item"`
}

// RSSItem represents an RSS item
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Content     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// Atom represents an Atom feed structure
type Atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Link    []AtomLink  `xml:"link"`
	Entries []AtomEntry `xml:"entry"`
}

// AtomLink represents an Atom link element
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// AtomEntry represents an Atom entry
type AtomEntry struct {
	Title     string     `xml:"title"`
	Link      []AtomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	ID        string     `xml:"id"`
}

// Item is one feed entry reduced to what ingestion needs.
type Item struct {
	Title       string
	Link        string
	Description string // plain text, HTML stripped
	Published   string // RFC3339 when parseable, otherwise as given by the feed
	GUID        string
}

// Manager fetches and parses feeds
type Manager struct {
	client    *http.Client
	userAgent string
}

// NewManager creates a feed manager. timeout <= 0 uses 30s.
func NewManager(timeout time.Duration, userAgent string) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Manager{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch downloads feedURL and parses it as RSS 2.0 or Atom.
func (m *Manager) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	items, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}
	return items, nil
}

// Parse decodes an RSS or Atom document.
func Parse(data []byte) ([]Item, error) {
	var rss RSS
	if err := xml.Unmarshal(data, &rss); err == nil {
		return parseRSS(rss), nil
	}

	var atom Atom
	if err := xml.Unmarshal(data, &atom); err == nil {
		return parseAtom(atom), nil
	}

	return nil, fmt.Errorf("unable to parse as RSS or Atom feed")
}

func parseRSS(rss RSS) []Item {
	items := make([]Item, 0, len(rss.Channel.Items))
	for _, it := range rss.Channel.Items {
		desc := it.Description
		if len(it.Content) > len(desc) {
			desc = it.Content
		}
		items = append(items, Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: plainText(desc),
			Published:   normalizeDate(it.PubDate),
			GUID:        it.GUID,
		})
	}
	return items
}

func parseAtom(atom Atom) []Item {
	items := make([]Item, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		var link string
		for _, l := range entry.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}

		desc := entry.Summary
		if len(entry.Content) > len(desc) {
			desc = entry.Content
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}

		items = append(items, Item{
			Title:       strings.TrimSpace(entry.Title),
			Link:        strings.TrimSpace(link),
			Description: plainText(desc),
			Published:   normalizeDate(published),
			GUID:        entry.ID,
		})
	}
	return items
}

// plainText strips markup that feeds commonly embed in descriptions.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
}

// normalizeDate converts known feed date formats to RFC3339, keeping unknown ones verbatim.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}
