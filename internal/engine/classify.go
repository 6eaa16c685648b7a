package engine

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/sentinel/internal/models"
)

// Price direction thresholds: a move of at least ±2% counts as directional.
const priceDirectionPct = 2.0

// causeFacts are the derived inputs to the classification cascade, computed
// once per evaluation from the candidates, the full news list, and the
// optional price snapshot.
type causeFacts struct {
	candidates    []models.ReasonCandidate
	newsCount     int
	factSources   int // candidates backed by a filing or regulatory source
	positiveCount int // candidate sentiment counts
	negativeCount int
	positiveFound bool // keyword scan over concatenated candidate text
	negativeFound bool
	priceChange   float64
	priceDir      int // -1 down, 0 flat, 1 up
	beatGuideDown bool
}

func (e *Engine) deriveFacts(
	candidates []models.ReasonCandidate,
	news []models.NewsItem,
	price *models.PriceSnapshot,
) causeFacts {
	f := causeFacts{candidates: candidates, newsCount: len(news)}

	var allText strings.Builder
	for _, c := range candidates {
		if c.SourceType == models.SourceTypeFiling || c.SourceType == "regulatory" {
			f.factSources++
		}
		switch c.Sentiment {
		case models.SentimentPositive:
			f.positiveCount++
		case models.SentimentNegative:
			f.negativeCount++
		}
		allText.WriteString(strings.ToLower(c.Title + " " + c.Summary))
		allText.WriteString(" ")
	}

	text := allText.String()
	f.negativeFound = containsAny(text, e.cfg.NegativeKeywords)
	f.positiveFound = containsAny(text, e.cfg.PositiveKeywords)

	if price != nil {
		f.priceChange = price.ChangePct
		if f.priceChange <= -priceDirectionPct {
			f.priceDir = -1
		} else if f.priceChange >= priceDirectionPct {
			f.priceDir = 1
		}
	}

	// Beat-but-guide-down: results beat expectations but guidance or the
	// price reaction is negative. Overrides the naive "beat ⇒ Catalyst" path.
	hasBeat := containsAny(text, e.cfg.BeatTerms)
	hasGuideDown := containsAny(text, e.cfg.GuideDownTerms)
	f.beatGuideDown = hasGuideDown || (hasBeat && f.priceDir == -1)

	return f
}

// causeRule is one step of the classification cascade: a predicate plus the
// verdict it produces when it is the first to match.
type causeRule struct {
	name    string
	when    func(causeFacts) bool
	verdict func(causeFacts) models.ClassificationResult
}

// buildCauseRules returns the cascade in evaluation order. The order is the
// decision policy: price direction outranks keyword sentiment, which
// outranks raw sentiment counts. Only the first matching rule governs.
func buildCauseRules() []causeRule {
	return []causeRule{
		{
			name: "no-candidates",
			when: func(f causeFacts) bool { return len(f.candidates) == 0 },
			verdict: func(f causeFacts) models.ClassificationResult {
				return models.ClassificationResult{
					Type:      models.ClassUnknown,
					Reasoning: "insufficient data: no ranked candidates",
				}
			},
		},
		{
			name: "beat-guide-down",
			when: func(f causeFacts) bool { return f.beatGuideDown },
			verdict: func(f causeFacts) models.ClassificationResult {
				return models.ClassificationResult{
					Type:       models.ClassFracture,
					Confidence: 0.9,
					Reasoning:  fmt.Sprintf("results beat but guidance lowered or price reaction negative (%+.1f%%)", f.priceChange),
				}
			},
		},
		{
			name: "down-move-with-coverage",
			when: func(f causeFacts) bool {
				return f.priceDir == -1 && (f.factSources >= 1 || f.newsCount >= 3)
			},
			verdict: func(f causeFacts) models.ClassificationResult {
				conf := 0.7
				if f.factSources >= 1 {
					conf = 0.85
				}
				return models.ClassificationResult{
					Type:       models.ClassFracture,
					Confidence: conf,
					Reasoning:  fmt.Sprintf("price %+.1f%% down with %d fact sources and %d news items", f.priceChange, f.factSources, f.newsCount),
				}
			},
		},
		{
			name: "up-move-with-facts",
			when: func(f causeFacts) bool {
				return f.priceDir == 1 && (f.factSources >= 1 || f.positiveFound)
			},
			verdict: func(f causeFacts) models.ClassificationResult {
				conf := 0.7
				if f.factSources >= 1 {
					conf = 0.85
				}
				return models.ClassificationResult{
					Type:       models.ClassCatalyst,
					Confidence: conf,
					Reasoning:  fmt.Sprintf("price %+.1f%% up with %d fact sources, positive keywords: %t", f.priceChange, f.factSources, f.positiveFound),
				}
			},
		},
		{
			name: "facts-with-negative-tone",
			when: func(f causeFacts) bool {
				return f.factSources >= 1 && f.negativeFound && !f.positiveFound
			},
			verdict: func(f causeFacts) models.ClassificationResult {
				return models.ClassificationResult{
					Type:       models.ClassFracture,
					Confidence: 0.8,
					Reasoning:  fmt.Sprintf("%d fact sources with negative keywords and no positive ones", f.factSources),
				}
			},
		},
		{
			name: "facts-with-positive-tone",
			when: func(f causeFacts) bool {
				return f.factSources >= 1 && f.positiveFound
			},
			verdict: func(f causeFacts) models.ClassificationResult {
				return models.ClassificationResult{
					Type:       models.ClassCatalyst,
					Confidence: 0.85,
					Reasoning:  fmt.Sprintf("%d fact sources with positive keywords", f.factSources),
				}
			},
		},
		{
			name: "positive-sentiment-volume",
			when: func(f causeFacts) bool {
				return f.positiveCount > f.negativeCount && f.newsCount >= 5
			},
			verdict: func(f causeFacts) models.ClassificationResult {
				return models.ClassificationResult{
					Type:       models.ClassCatalyst,
					Confidence: 0.7,
					Reasoning:  fmt.Sprintf("positive sentiment %d > negative %d across %d news items", f.positiveCount, f.negativeCount, f.newsCount),
				}
			},
		},
		{
			name: "negative-sentiment-majority",
			when: func(f causeFacts) bool { return f.negativeCount > f.positiveCount },
			verdict: func(f causeFacts) models.ClassificationResult {
				return models.ClassificationResult{
					Type:       models.ClassFracture,
					Confidence: 0.65,
					Reasoning:  fmt.Sprintf("negative sentiment %d > positive %d", f.negativeCount, f.positiveCount),
				}
			},
		},
		{
			name: "default-noise",
			when: func(f causeFacts) bool { return true },
			verdict: func(f causeFacts) models.ClassificationResult {
				return models.ClassificationResult{
					Type:       models.ClassNoise,
					Confidence: 0.5,
					Reasoning:  "weak factual basis and no clear direction",
				}
			},
		},
	}
}

// classifyCause runs the cascade over the derived facts; the first matching
// rule returns.
func (e *Engine) classifyCause(
	candidates []models.ReasonCandidate,
	news []models.NewsItem,
	price *models.PriceSnapshot,
) models.ClassificationResult {
	facts := e.deriveFacts(candidates, news, price)
	for _, rule := range e.rules {
		if rule.when(facts) {
			return rule.verdict(facts)
		}
	}
	// Unreachable: the cascade ends with an always-true rule.
	return models.ClassificationResult{Type: models.ClassUnknown, Reasoning: "no rule matched"}
}
