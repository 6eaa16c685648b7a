package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/rewired-gh/sentinel/internal/logger"
	"github.com/rewired-gh/sentinel/internal/models"
)

var positiveWords = []string{
	"beat", "beats", "exceed", "exceeds", "surge", "rally", "upgrade",
	"raises", "record", "strong", "growth", "approval", "wins", "award",
}

var negativeWords = []string{
	"miss", "misses", "plunge", "drop", "falls", "downgrade", "cuts",
	"lawsuit", "probe", "investigation", "recall", "warning", "layoff",
	"fraud", "halt", "delay",
}

// CollectNews gathers news for one watchlist target from all configured
// sources. Source failures are tolerated as long as at least one source
// responds; an error is returned only when every source fails.
func (c *Client) CollectNews(ctx context.Context, target Target) ([]models.NewsItem, error) {
	var items []models.NewsItem
	var errs []error

	google, err := c.fetchGoogleNews(ctx, target)
	if err != nil {
		logger.Warn("google news fetch failed for %s: %v", target.Ticker, err)
		errs = append(errs, fmt.Errorf("google news: %w", err))
	}
	items = append(items, google...)

	filings, err := c.fetchEdgarFilings(ctx, target)
	if err != nil {
		logger.Warn("edgar fetch failed for %s: %v", target.Ticker, err)
		errs = append(errs, fmt.Errorf("edgar: %w", err))
	}
	items = append(items, filings...)

	if c.cfg.FinnhubAPIKey != "" {
		finnhub, err := c.fetchFinnhubNews(ctx, target)
		if err != nil {
			logger.Warn("finnhub fetch failed for %s: %v", target.Ticker, err)
			errs = append(errs, fmt.Errorf("finnhub: %w", err))
		}
		items = append(items, finnhub...)
	}

	if len(items) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

// fetchGoogleNews queries the Google News RSS search feed for the target
func (c *Client) fetchGoogleNews(ctx context.Context, target Target) ([]models.NewsItem, error) {
	query := fmt.Sprintf("%q OR %s stock", target.Name, target.Ticker)
	feedURL := fmt.Sprintf("%s/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		c.cfg.GoogleNewsBaseURL, url.QueryEscape(query))

	feed, err := c.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-c.cfg.NewsWindow)
	var items []models.NewsItem
	for _, entry := range feed.Items {
		ts := entryTime(entry)
		if ts.IsZero() || ts.Before(cutoff) {
			continue
		}
		text := entry.Title + " " + entry.Description
		items = append(items, models.NewsItem{
			Ticker:          target.Ticker,
			Timestamp:       ts,
			Title:           entry.Title,
			Summary:         entry.Description,
			URL:             entry.Link,
			Source:          "google_news",
			SourceType:      models.SourceTypeNews,
			Sentiment:       classifySentiment(text),
			KeywordsMatched: matchKeywords(text, target),
		})
	}
	return items, nil
}

// fetchEdgarFilings pulls the company's recent filings from the EDGAR
// browse atom feed
func (c *Client) fetchEdgarFilings(ctx context.Context, target Target) ([]models.NewsItem, error) {
	feedURL := fmt.Sprintf("%s?action=getcompany&CIK=%s&type=&dateb=&owner=include&count=20&output=atom",
		c.cfg.EdgarBaseURL, url.QueryEscape(target.Ticker))

	feed, err := c.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-c.cfg.NewsWindow)
	var items []models.NewsItem
	for _, entry := range feed.Items {
		ts := entryTime(entry)
		if ts.IsZero() || ts.Before(cutoff) {
			continue
		}
		items = append(items, models.NewsItem{
			Ticker:          target.Ticker,
			Timestamp:       ts,
			Title:           entry.Title,
			Summary:         entry.Description,
			URL:             entry.Link,
			Source:          "sec_edgar",
			SourceType:      models.SourceTypeFiling,
			Sentiment:       models.SentimentNeutral,
			KeywordsMatched: matchKeywords(entry.Title, target),
		})
	}
	return items, nil
}

// finnhubArticle mirrors the Finnhub company-news response shape
type finnhubArticle struct {
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// fetchFinnhubNews pulls company news from the Finnhub REST API
func (c *Client) fetchFinnhubNews(ctx context.Context, target Target) ([]models.NewsItem, error) {
	now := time.Now().UTC()
	from := now.Add(-c.cfg.NewsWindow)
	reqURL := fmt.Sprintf("%s/company-news?symbol=%s&from=%s&to=%s&token=%s",
		c.cfg.FinnhubBaseURL, url.QueryEscape(target.Ticker),
		from.Format("2006-01-02"), now.Format("2006-01-02"), c.cfg.FinnhubAPIKey)

	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var articles []finnhubArticle
	if err := json.NewDecoder(resp.Body).Decode(&articles); err != nil {
		return nil, fmt.Errorf("failed to decode finnhub response: %w", err)
	}

	cutoff := now.Add(-c.cfg.NewsWindow)
	var items []models.NewsItem
	for _, a := range articles {
		ts := time.Unix(a.Datetime, 0).UTC()
		if a.Datetime == 0 || ts.Before(cutoff) {
			continue
		}
		text := a.Headline + " " + a.Summary
		items = append(items, models.NewsItem{
			Ticker:          target.Ticker,
			Timestamp:       ts,
			Title:           a.Headline,
			Summary:         a.Summary,
			URL:             a.URL,
			Source:          "finnhub",
			SourceType:      models.SourceTypeNews,
			Sentiment:       classifySentiment(text),
			KeywordsMatched: matchKeywords(text, target),
		})
	}
	return items, nil
}

// fetchFeed retrieves and parses one RSS/Atom feed
func (c *Client) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	resp, err := c.doRequest(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Time{}
}

// matchKeywords returns the target keywords found in the text, ticker included
func matchKeywords(text string, target Target) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range target.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	if strings.Contains(lower, strings.ToLower(target.Ticker)) {
		matched = append(matched, target.Ticker)
	}
	return matched
}

// classifySentiment does a coarse word-list pass over headline text.
// It only needs to be good enough to separate clearly positive coverage
// from clearly negative coverage; the classifier downstream weighs it
// against harder evidence.
func classifySentiment(text string) models.Sentiment {
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
