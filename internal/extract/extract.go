// Package extract pulls readable article text out of web pages.
package extract

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"civicbriefs/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// Acceptance thresholds for each extraction pass, in characters.
const (
	minStructuredLen = 300
	minMetaLen       = 80
	minBodyLen       = 180
)

// DefaultUserAgent identifies the crawler to publishers.
const DefaultUserAgent = "Mozilla/5.0 (CivicBriefs)"

const maxBodyBytes = 5 << 20

var whitespace = regexp.MustCompile(`\s+`)

var mainContentSelectors = []string{
	"article", "main", ".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
	"[role='main']",
	".content", "#content",
}

var metaDescriptionSelectors = []string{
	"meta[name='description']",
	"meta[name='Description']",
	"meta[property='og:description']",
	"meta[name='twitter:description']",
}

const boilerplate = "script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner"

// Extractor fetches pages and extracts their main text.
type Extractor struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// NewExtractor creates an extractor with the given timeout and user agent.
func NewExtractor(timeout time.Duration, userAgent string) *Extractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		log:       logger.Get(),
	}
}

// ExtractArticleText fetches url and returns its main text. Any failure yields ("", false).
func (e *Extractor) ExtractArticleText(ctx context.Context, url string) (string, bool) {
	html, ok := e.fetchHTML(ctx, url)
	if !ok {
		return "", false
	}
	return FromHTML(html)
}

func (e *Extractor) fetchHTML(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		e.log.Debug("extract: bad request", "url", url, "error", err)
		return "", false
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Debug("extract: fetch failed", "url", url, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.log.Debug("extract: non-200 response", "url", url, "status", resp.StatusCode)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		return "", false
	}
	return string(body), true
}

// FromHTML runs the structured, meta description and visible-text passes over an HTML document.
func FromHTML(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	if text := structuredText(doc.Selection.Clone()); len(text) > minStructuredLen {
		return text, true
	}
	if md := metaDescription(doc); len(md) > minMetaLen {
		return md, true
	}

	doc.Find("script, style, noscript, template").Remove()
	var parts []string
	collectText(doc.Find("body"), &parts)
	if body := clean(strings.Join(parts, " ")); len(body) > minBodyLen {
		return body, true
	}
	return "", false
}

// collectText appends every text node under s in document order.
func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				*parts = append(*parts, t)
			}
			return
		}
		collectText(c, parts)
	})
}

// structuredText strips boilerplate from root, which must be a copy.
func structuredText(root *goquery.Selection) string {
	root.Find(boilerplate).Remove()

	for _, selector := range mainContentSelectors {
		var blocks []string
		seen := make(map[string]bool)
		root.Find(selector).Each(func(_ int, s *goquery.Selection) {
			s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
				t := clean(item.Text())
				if t != "" && !seen[t] {
					seen[t] = true
					blocks = append(blocks, t)
				}
			})
		})
		if len(blocks) > 0 {
			return strings.Join(blocks, " ")
		}
	}
	return ""
}

func metaDescription(doc *goquery.Document) string {
	for _, sel := range metaDescriptionSelectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if md := clean(content); md != "" {
				return md
			}
		}
	}
	return ""
}

func clean(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
