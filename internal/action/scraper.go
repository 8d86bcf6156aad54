package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	scrapeTimeout   = 15 * time.Second
	maxRedirects    = 5
	scrapeUserAgent = "AICMO-Scraper/1.0 (+https://github.com/aicmo/aicmo)"
	maxFetchBytes   = 5 << 20 // 5MB
	maxContentChars = 5000
	maxHeadings     = 10
)

// strippedTags is the non-content markup removed before text extraction.
var strippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"iframe":   true,
	"noscript": true,
}

// Scraper is the scrape_url handler: fetch a page and reduce it to a
// readable text block (title, description, headings, content).
type Scraper struct {
	client *http.Client
}

// NewScraper creates a Scraper with a bounded timeout and redirect count.
func NewScraper() *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: scrapeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Execute fetches and extracts the page named by params["url"]. The scheme
// check runs before any network I/O; network failures come back with
// distinct human-readable messages per category.
func (s *Scraper) Execute(ctx context.Context, params map[string]any) (string, error) {
	raw, _ := params["url"].(string)
	if raw == "" {
		return "", fmt.Errorf("url parameter is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q: only http and https are allowed", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %v", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", classifyFetchError(u.Host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("access denied (HTTP %d) fetching %s", resp.StatusCode, raw)
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("page not found: %s", raw)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("fetching %s returned HTTP %d", raw, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", classifyFetchError(u.Host, err)
	}

	page, err := extract(body)
	if err != nil {
		return "", err
	}
	return page.render(), nil
}

// classifyFetchError maps transport failures onto the reportable categories:
// host not found, timeout, generic.
func classifyFetchError(host string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("host not found: %s", host)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("timed out fetching %s", host)
	}

	return fmt.Errorf("failed to fetch %s: %v", host, err)
}

// extractedPage holds the reduced page content.
type extractedPage struct {
	Title       string
	Description string
	Headings    []string
	Content     string
}

func (p extractedPage) render() string {
	var sb strings.Builder
	if p.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", p.Title)
	}
	if p.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", p.Description)
	}
	if len(p.Headings) > 0 {
		sb.WriteString("Headings:\n")
		for _, h := range p.Headings {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
	}
	sb.WriteString("Content:\n")
	sb.WriteString(p.Content)
	return sb.String()
}

func extract(body []byte) (extractedPage, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return extractedPage{}, fmt.Errorf("parsing html: %v", err)
	}

	var page extractedPage

	if n := findFirst(doc, matchTag("title")); n != nil {
		page.Title = collapse(textOf(n))
	}
	page.Description = metaDescription(doc)

	walk(doc, func(n *html.Node) bool {
		if len(page.Headings) >= maxHeadings {
			return false
		}
		if n.Type == html.ElementNode && (n.Data == "h1" || n.Data == "h2" || n.Data == "h3") {
			if text := collapse(textOf(n)); text != "" {
				page.Headings = append(page.Headings, text)
			}
			return false
		}
		return true
	})

	region := contentRegion(doc)
	page.Content = truncate(collapse(textOf(region)), maxContentChars)
	return page, nil
}

// contentRegion returns the first matching candidate content element, in
// preference order, falling back to the document body and finally the whole
// document.
func contentRegion(doc *html.Node) *html.Node {
	candidates := []func(*html.Node) bool{
		matchTag("main"),
		matchTag("article"),
		matchAttr("role", "main"),
		matchAttr("id", "content"),
		matchClass("content"),
		matchTag("body"),
	}
	for _, match := range candidates {
		if n := findFirst(doc, match); n != nil {
			return n
		}
	}
	return doc
}

// walk visits nodes depth-first, skipping stripped markup. fn returning
// false prunes the subtree.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && strippedTags[n.Data] {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func matchTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func matchAttr(key, value string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, key) == value }
}

func matchClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textOf concatenates the text nodes under n, excluding stripped markup.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	walk(n, func(node *html.Node) bool {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		return true
	})
	return sb.String()
}

func metaDescription(doc *html.Node) string {
	meta := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, "name") == "description"
	})
	if meta == nil {
		return ""
	}
	return collapse(attr(meta, "content"))
}

// collapse squeezes all runs of whitespace down to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate caps s at max characters, appending an ellipsis marker when
// anything was cut. Avoids splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
