// Package engine implements the signal scoring and event classification core.
//
// Three independent component scorers map collected evidence to bounded
// [0, 10] scores with an evidence trail:
//
//	options   — out-of-the-money call volume, expiry concentration, OI moves
//	attention — social mention acceleration, breaking keywords, trends spikes
//	fact      — SEC filings, regulatory announcements, earnings coverage
//
// The composite Pre-Signal Index combines them:
//
//	psi = clamp(0, 10, round(W·scores + confluence + price_boost − noise, 1))
//
// where confluence rewards two or more simultaneously elevated components,
// price_boost adds capped points for large price/volume moves, and noise
// subtracts when attention is high but factual backing is absent. The PSI is
// then classified into a severity level from a sorted band table.
//
// Independently, EvaluateCause ranks news items by relevance, tags each with
// an event type, and runs a priority-ordered rule cascade producing a
// Catalyst/Fracture/Noise verdict with a confidence and a playbook. Only the
// first matching cascade rule governs; the rule order is part of the contract.
//
// The engine is pure and synchronous: no I/O, no retained state between
// calls. A single engine is safe for concurrent use across tickers.
package engine

import (
	"time"

	"github.com/rewired-gh/sentinel/internal/models"
)

// Engine evaluates collected evidence into PSI results and causal verdicts.
// All tunables are fixed at construction; reconstruct to pick up new config.
type Engine struct {
	cfg   Config
	rules []causeRule
}

// New creates an Engine, failing fast on invalid configuration.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, rules: buildCauseRules()}, nil
}

// CauseResult is the output of a cause evaluation: ranked candidates, the
// rule-based classification, and the matching action playbook.
type CauseResult struct {
	Ticker         string                      `json:"ticker"`
	Timestamp      time.Time                   `json:"timestamp"`
	Candidates     []models.ReasonCandidate    `json:"reason_candidates"`
	Classification models.ClassificationResult `json:"classification"`
	Playbook       models.Playbook             `json:"playbook"`
}

// EvaluatePSI computes the composite Pre-Signal Index for one ticker from
// already-collected evidence. Nil bundles and an empty news list degrade to
// neutral scores; they never produce an error.
func (e *Engine) EvaluatePSI(
	ticker string,
	opts *models.OptionsActivity,
	social *models.SocialActivity,
	news []models.NewsItem,
	price *models.PriceSnapshot,
) models.PSIResult {
	now := time.Now().UTC()
	news = sanitizeNews(news)

	opt := e.scoreOptions(opts)
	att := e.scoreAttention(social, news)
	fact := e.scoreFact(news)
	boost := e.scorePriceBoost(price)

	return e.compose(ticker, now, opt, att, fact, boost)
}

// EvaluateCause ranks the news list by relevance, extracts the top
// candidates, and classifies the probable driver of the anomaly. Ranking
// happens before classification because the cascade consumes ranked
// candidates.
func (e *Engine) EvaluateCause(
	ticker string,
	news []models.NewsItem,
	price *models.PriceSnapshot,
) CauseResult {
	now := time.Now().UTC()
	news = sanitizeNews(news)

	ranked := e.RankNews(news, now)
	candidates := e.topCandidates(ranked)
	classification := e.classifyCause(candidates, news, price)

	return CauseResult{
		Ticker:         ticker,
		Timestamp:      now,
		Candidates:     candidates,
		Classification: classification,
		Playbook:       PlaybookFor(classification.Type),
	}
}

// sanitizeNews fills defaultable fields and drops items that are malformed
// beyond repair (empty title or zero timestamp). One bad item never aborts
// the batch.
func sanitizeNews(news []models.NewsItem) []models.NewsItem {
	if len(news) == 0 {
		return nil
	}
	valid := make([]models.NewsItem, 0, len(news))
	for _, item := range news {
		if item.SourceType == "" {
			item.SourceType = models.SourceTypeNews
		}
		if item.Sentiment == "" {
			item.Sentiment = models.SentimentNeutral
		}
		if err := item.Validate(); err != nil {
			continue
		}
		valid = append(valid, item)
	}
	return valid
}
