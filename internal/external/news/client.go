package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/httputil"
	"github.com/wonny/limitup/pkg/logger"
)

// Client scrapes market headlines from a configured news page
// ⭐ SSOT: 뉴스 헤드라인 수집은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	pageURL    string
	selector   string
	limit      int
}

// NewClient creates a headline scraper
func NewClient(httpClient *httputil.Client, cfg config.NewsConfig, log *logger.Logger) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 30
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		pageURL:    cfg.URL,
		selector:   cfg.Selector,
		limit:      limit,
	}
}

// Enabled reports whether a news page is configured
func (c *Client) Enabled() bool {
	return c.pageURL != "" && c.selector != ""
}

// Headlines returns at most limit headline texts, de-duplicated, in page order.
// A disabled client returns nil without error.
func (c *Client) Headlines(ctx context.Context, limit int) ([]string, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if limit <= 0 || limit > c.limit {
		limit = c.limit
	}

	resp, err := c.httpClient.Get(ctx, c.pageURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	seen := make(map[string]bool)
	headlines := make([]string, 0, limit)
	doc.Find(c.selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			if title, ok := s.Attr("title"); ok {
				text = strings.TrimSpace(title)
			}
		}
		if text == "" || seen[text] {
			return true
		}
		seen[text] = true
		headlines = append(headlines, text)
		return len(headlines) < limit
	})

	c.logger.WithFields(map[string]interface{}{
		"url":   c.pageURL,
		"count": len(headlines),
	}).Debug("Scraped headlines")

	return headlines, nil
}
