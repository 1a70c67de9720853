package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// Config controls the same-host crawl behind GetCleanedText.
type Config struct {
	MaxDepth       int
	MaxPages       int
	RateLimit      float64 // requests per second
	IgnorePatterns []string
	Timeout        time.Duration
	OnProgress     func(url string)
}

// Scraper fetches an organization's website and returns cleaned page text.
// It is the concrete RawTextProvider; everything past this boundary works on
// plain text.
type Scraper struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config Config) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.MaxPages == 0 {
		config.MaxPages = 50
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	return &Scraper{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// GetCleanedText crawls the source URL within its host and returns the
// concatenated cleaned text of every page reached.
func (s *Scraper) GetCleanedText(ctx context.Context, source string) (string, error) {
	base, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid source url %q: %w", source, err)
	}

	crawl := &crawl{
		scraper:  s,
		baseHost: base.Host,
		visited:  make(map[string]bool),
	}
	if err := crawl.visit(ctx, source, 0); err != nil {
		return "", err
	}
	if len(crawl.pages) == 0 {
		return "", fmt.Errorf("no readable pages at %q", source)
	}
	return strings.Join(crawl.pages, "\n\n"), nil
}

type crawl struct {
	scraper  *Scraper
	baseHost string
	visited  map[string]bool
	pages    []string
}

func (c *crawl) visit(ctx context.Context, urlStr string, depth int) error {
	s := c.scraper
	if depth > s.config.MaxDepth || len(c.pages) >= s.config.MaxPages || c.visited[urlStr] {
		return nil
	}
	if !c.shouldProcess(urlStr) {
		return nil
	}
	c.visited[urlStr] = true

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		// a broken link deep in the crawl should not sink the whole site
		if depth > 0 {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if depth > 0 {
			return nil
		}
		return fmt.Errorf("received status code %d for URL %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	if text := extractMainContent(doc); text != "" {
		c.pages = append(c.pages, text)
	}
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		base, err := url.Parse(urlStr)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		links = append(links, abs.String())
	})
	for _, link := range links {
		if err := c.visit(ctx, link, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (c *crawl) shouldProcess(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host != c.baseHost {
		return false
	}
	for _, pattern := range c.scraper.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}
	return true
}

// extractMainContent prefers a page's main content area and falls back to
// the whole body.
func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer").Remove()

	selectors := []string{"main", "article", ".content", "#content"}
	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}
	return cleanContent(content)
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}
