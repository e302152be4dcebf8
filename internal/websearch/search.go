// Package websearch implements the web-search fallback against the
// DuckDuckGo HTML endpoint. It never fails a request: every internal fault
// degrades to an empty result set, logged only.
package websearch

import (
	"bytes"
	"io"
	"net/url"
	"strings"
	"time"

	"finrag-backend/internal/config"
	"finrag-backend/internal/logger"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

// Result is one web hit: up to maxResults of these are handed to the prompt
// composer as grounding context.
type Result struct {
	Title   string
	Snippet string
	Link    string
}

// Greeting-like inputs are not worth a network round trip.
var skipWords = map[string]struct{}{
	"hello":  {},
	"hi":     {},
	"hey":    {},
	"thanks": {},
	"ok":     {},
	"bye":    {},
}

type Client struct {
	endpoint   string
	timeout    time.Duration
	maxResults int
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint:   cfg.WebSearchEndpoint,
		timeout:    time.Duration(cfg.WebSearchTimeout) * time.Second,
		maxResults: cfg.WebSearchMaxResults,
	}
}

// Search fetches up to maxResults hits for the query. Trivial inputs
// (greetings, under 3 characters) short-circuit to an empty result.
func (c *Client) Search(query string) []Result {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < 3 {
		return nil
	}
	if _, ok := skipWords[strings.ToLower(trimmed)]; ok {
		return nil
	}

	logger.Info("Searching web", "query", trimmed)

	collector := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	collector.SetRequestTimeout(c.timeout)

	var results []Result
	collector.OnResponse(func(r *colly.Response) {
		parsed, err := parseResults(bytes.NewReader(r.Body), r.Headers.Get("Content-Type"), c.maxResults)
		if err != nil {
			logger.Warn("Web search parse failed", "error", err)
			return
		}
		results = parsed
	})
	collector.OnError(func(r *colly.Response, err error) {
		logger.Warn("Web search request failed", "error", err)
	})

	if err := collector.Visit(c.endpoint + "?q=" + url.QueryEscape(trimmed)); err != nil {
		logger.Warn("Web search failed", "error", err)
		return nil
	}
	collector.Wait()

	return results
}

// parseResults extracts title/snippet/link records from a DuckDuckGo HTML
// results page.
func parseResults(body io.Reader, contentType string, max int) ([]Result, error) {
	reader, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, err
	}

	var results []Result
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find("a.result__a").First()
		title := strings.TrimSpace(anchor.Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())
		link, _ := anchor.Attr("href")
		link = resolveRedirect(link)
		if title == "" {
			return true
		}
		results = append(results, Result{Title: title, Snippet: snippet, Link: link})
		return len(results) < max
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the
// destination URL.
func resolveRedirect(link string) string {
	if link == "" {
		return ""
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}

// FormatResults renders hits as Source/Snippet/Link records joined by blank
// lines, the shape the prompt composer expects for web-grounded answers.
func FormatResults(results []Result) string {
	records := make([]string, 0, len(results))
	for _, r := range results {
		records = append(records, "Source: "+r.Title+"\nSnippet: "+r.Snippet+"\nLink: "+r.Link)
	}
	return strings.Join(records, "\n\n")
}
