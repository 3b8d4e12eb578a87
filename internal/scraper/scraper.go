// Package scraper fetches the ranked list pages and extracts the hover
// tooltip text of every film poster.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"boxd/internal/config"
	"boxd/internal/logging"
	"boxd/internal/services"
)

const stageName = "scrape"

// tooltipAttrs are consulted in order before falling back to element text.
var tooltipAttrs = []string{"data-original-title", "title"}

// Scraper collects tooltips from the configured list pages.
type Scraper struct {
	pages    []string
	selector string
	client   *http.Client
	logger   *slog.Logger
}

// New builds a scraper for cfg using the default HTTP client policy.
func New(cfg *config.Config, logger *slog.Logger) *Scraper {
	client := NewClient(cfg.ScrapeTimeout(), cfg.Scrape.RetryMax, cfg.Scrape.UserAgent)
	return NewWithClient(cfg, client, logger)
}

// NewWithClient builds a scraper that issues requests through client.
func NewWithClient(cfg *config.Config, client *http.Client, logger *slog.Logger) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scraper{
		pages:    cfg.PageURLs(),
		selector: cfg.Scrape.ItemSelector,
		client:   client,
		logger:   logging.NewComponentLogger(logger, "scraper"),
	}
}

// Scrape fetches every page in order and returns the tooltips in page order.
// A page with no matching items fails the whole scrape.
func (s *Scraper) Scrape(ctx context.Context) ([]string, error) {
	var all []string
	for i, pageURL := range s.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := fetchURL(ctx, s.client, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, classifyFetchError(pageURL, err)
		}
		tooltips, err := ExtractTooltips(body, s.selector)
		if err != nil {
			return nil, services.Wrap(services.ErrFormat, stageName, "parse page", pageURL, err)
		}
		if len(tooltips) == 0 {
			return nil, services.Wrap(
				services.ErrExternalTool,
				stageName,
				"extract tooltips",
				fmt.Sprintf("no items matched %q on %s", s.selector, pageURL),
				nil,
			)
		}
		s.logger.Debug("page scraped",
			logging.String(logging.FieldEventType, "page_scraped"),
			logging.Int("page", i+1),
			logging.String("url", pageURL),
			logging.Int("items", len(tooltips)),
		)
		all = append(all, tooltips...)
	}
	return all, nil
}

// ExtractTooltips returns the tooltip text of every element matching selector.
// Items whose attributes and text are all blank are skipped.
func ExtractTooltips(html []byte, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if text := tooltipText(sel); text != "" {
			out = append(out, text)
		}
	})
	return out, nil
}

func tooltipText(sel *goquery.Selection) string {
	for _, attr := range tooltipAttrs {
		if v, ok := sel.Attr(attr); ok {
			if v = cleanText(v); v != "" {
				return v
			}
		}
	}
	return cleanText(sel.Text())
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}

func classifyFetchError(pageURL string, err error) error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && !statusErr.Temporary() {
		return services.Wrap(services.ErrExternalTool, stageName, "fetch page", pageURL, err)
	}
	return services.Wrap(services.ErrTransient, stageName, "fetch page", pageURL, err)
}
