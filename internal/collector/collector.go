// Package collector gathers raw evidence for the watchlist: news coverage
// from Google News RSS, SEC EDGAR filings, and Finnhub company news, plus
// price snapshots from the Yahoo Finance chart API.
//
// All outbound requests share one rate limiter so a large watchlist does
// not hammer the upstream feeds.
package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const (
	defaultGoogleNewsBaseURL = "https://news.google.com/rss"
	defaultEdgarBaseURL      = "https://www.sec.gov/cgi-bin/browse-edgar"
	defaultFinnhubBaseURL    = "https://finnhub.io/api/v1"
	defaultYahooBaseURL      = "https://query1.finance.yahoo.com"

	userAgent = "sentinel/1.0 (market research; contact admin@localhost)"
)

// Target is one watchlist entry the collector gathers evidence for
type Target struct {
	Ticker   string
	Name     string
	Keywords []string
}

// Config holds collector settings. Base URLs are overridable for tests.
type Config struct {
	FinnhubAPIKey     string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelayBase    time.Duration
	NewsWindow        time.Duration
	RequestsPerSecond float64

	GoogleNewsBaseURL string
	EdgarBaseURL      string
	FinnhubBaseURL    string
	YahooBaseURL      string
}

// Client collects news and price evidence from the upstream feeds
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	parser     *gofeed.Parser
}

// New creates a collector client, filling in defaults for unset fields
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.NewsWindow <= 0 {
		cfg.NewsWindow = 24 * time.Hour
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1.0
	}
	if cfg.GoogleNewsBaseURL == "" {
		cfg.GoogleNewsBaseURL = defaultGoogleNewsBaseURL
	}
	if cfg.EdgarBaseURL == "" {
		cfg.EdgarBaseURL = defaultEdgarBaseURL
	}
	if cfg.FinnhubBaseURL == "" {
		cfg.FinnhubBaseURL = defaultFinnhubBaseURL
	}
	if cfg.YahooBaseURL == "" {
		cfg.YahooBaseURL = defaultYahooBaseURL
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		parser:     gofeed.NewParser(),
	}
}

// doRequest performs a rate-limited HTTP GET with retry on transient failures
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !sleepCtx(ctx, time.Duration(i+1)*c.cfg.RetryDelayBase) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if !sleepCtx(ctx, time.Duration(i+1)*c.cfg.RetryDelayBase) {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
