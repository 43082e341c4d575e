// Package content resolves external reference URLs mentioned in videos into
// a verified title and a short excerpt.
package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"tutorgraph/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// excerptLimit bounds the stored excerpt.
const excerptLimit = 500

// Resolver fetches a referenced page or PDF and extracts what the graph
// stores about it.
type Resolver struct {
	http *httpclient.HTTPClient
}

// NewResolver builds a resolver.
func NewResolver() *Resolver {
	return &Resolver{http: httpclient.NewClient(httpclient.BrowserClient)}
}

// Resolve fetches rawURL and returns its title and excerpt. PDFs go through
// text extraction; everything else through readability with goquery
// fallbacks.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (title, excerpt string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch reference %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("reference %s returned status %d", rawURL, resp.StatusCode)
	}

	if isPDF(rawURL, resp.Header.Get("Content-Type")) {
		text, err := extractTextFromPDF(resp.Body)
		if err != nil {
			return "", "", fmt.Errorf("extract pdf %s: %w", rawURL, err)
		}
		return titleFromURL(rawURL), clip(text), nil
	}

	parsed, _ := url.Parse(rawURL)
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", "", fmt.Errorf("extract reference %s: %w", rawURL, err)
	}

	title = strings.TrimSpace(article.Title)
	excerpt = strings.TrimSpace(article.Excerpt)
	if excerpt == "" {
		excerpt = strings.TrimSpace(article.TextContent)
	}
	return title, clip(excerpt), nil
}

// TitleFromHTML extracts a page title with fallbacks, for pages readability
// cannot handle.
func TitleFromHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title, nil
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title, nil
	}
	if title, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title), nil
	}
	return "", fmt.Errorf("title not found")
}

func isPDF(rawURL, contentType string) bool {
	if strings.Contains(contentType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
}

func titleFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(parsed.Path)
	return strings.TrimSuffix(name, path.Ext(name))
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit] + "..."
}
