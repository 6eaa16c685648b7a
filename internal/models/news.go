// Package models defines the core domain entities for the sentinel application.
// These models represent collected news items, price snapshots, options and social
// evidence bundles, and the computed scoring results. All models are immutable
// value records: they are created fully populated per evaluation and never
// mutated afterwards. Models that cross the storage boundary include built-in
// validation to ensure data integrity throughout the application.
package models

import (
	"errors"
	"time"
)

// SourceType categorizes where a news item came from.
type SourceType string

const (
	SourceTypeNews     SourceType = "news"
	SourceTypeFiling   SourceType = "filing"
	SourceTypeAnalysis SourceType = "analysis"
	SourceTypeSocial   SourceType = "social"
)

// Sentiment is the coarse tone assigned to a news item at collection time.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NewsItem represents a single collected news article, filing, or social post.
// Collectors populate every field; the scoring engine only reads them.
// Relevance and event type are derived later and live on ReasonCandidate,
// not here.
type NewsItem struct {
	Ticker          string     `json:"ticker"`
	Timestamp       time.Time  `json:"timestamp"` // publication time, UTC
	Title           string     `json:"title"`
	Summary         string     `json:"summary,omitempty"`
	URL             string     `json:"url"`
	Source          string     `json:"source"`      // google_news, sec_edgar, finnhub, ...
	SourceType      SourceType `json:"source_type"` // news, filing, analysis, social
	Sentiment       Sentiment  `json:"sentiment"`
	KeywordsMatched []string   `json:"keywords_matched,omitempty"`
}

// Validate checks that the item carries the minimum fields the engine and
// storage layer rely on. Items failing validation are skipped, not fatal.
func (n *NewsItem) Validate() error {
	if n.Title == "" {
		return errors.New("news title must not be empty")
	}
	if n.Timestamp.IsZero() {
		return errors.New("news timestamp must not be zero")
	}
	switch n.SourceType {
	case SourceTypeNews, SourceTypeFiling, SourceTypeAnalysis, SourceTypeSocial:
	default:
		return errors.New("news source type must be one of: news, filing, analysis, social")
	}
	switch n.Sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return errors.New("news sentiment must be one of: positive, negative, neutral")
	}
	return nil
}
