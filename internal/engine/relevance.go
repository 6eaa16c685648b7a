package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/sentinel/internal/models"
)

// Relevance weights. The total is clamped to [0, 1] and rounded to two
// decimals, so relevance doubles as the candidate confidence.
const (
	relevancePerKeyword  = 0.1
	relevanceFiling      = 0.3
	relevanceTrusted     = 0.2
	relevanceBreaking    = 0.2
	relevanceUnderHour   = 0.3
	relevanceUnder6Hours = 0.2
	relevanceUnderDay    = 0.1
)

// RankedItem is a news item annotated with its derived relevance and event
// type. The underlying item is copied, never mutated in place.
type RankedItem struct {
	Item      models.NewsItem
	Relevance float64
	EventType string
}

// RankNews scores each item's relevance and returns the list ordered by
// relevance descending. The sort is stable: items with equal relevance keep
// their original collection order, which is the designed tie-break.
func (e *Engine) RankNews(news []models.NewsItem, now time.Time) []RankedItem {
	ranked := make([]RankedItem, 0, len(news))
	for _, item := range news {
		ranked = append(ranked, RankedItem{
			Item:      item,
			Relevance: e.relevance(item, now),
			EventType: e.eventType(item),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})
	return ranked
}

func (e *Engine) relevance(item models.NewsItem, now time.Time) float64 {
	score := relevancePerKeyword * float64(len(item.KeywordsMatched))

	if item.SourceType == models.SourceTypeFiling {
		score += relevanceFiling
	} else if e.isTrustedSource(item.Source) {
		score += relevanceTrusted
	}

	if containsAny(item.Title+" "+item.Summary, e.cfg.BreakingKeywords) {
		score += relevanceBreaking
	}

	switch age := now.Sub(item.Timestamp); {
	case age < time.Hour:
		score += relevanceUnderHour
	case age < 6*time.Hour:
		score += relevanceUnder6Hours
	case age < 24*time.Hour:
		score += relevanceUnderDay
	}

	return round2(clamp(score, 0, 1))
}

func (e *Engine) isTrustedSource(source string) bool {
	for _, s := range e.cfg.TrustedSources {
		if source == s {
			return true
		}
	}
	return false
}

// eventType tags an item by matching its title against the ordered category
// table. The first matching category wins; an unmatched title is "other".
func (e *Engine) eventType(item models.NewsItem) string {
	title := strings.ToLower(item.Title)
	for _, rule := range e.cfg.EventTypes {
		for _, kw := range rule.Keywords {
			if strings.Contains(title, kw) {
				return rule.Type
			}
		}
	}
	return "other"
}

// candidateSummaryMax bounds the summary carried on a candidate.
const candidateSummaryMax = 200

// topCandidates projects the highest-ranked items into reason candidates
// with dense 1-based ranks.
func (e *Engine) topCandidates(ranked []RankedItem) []models.ReasonCandidate {
	limit := e.cfg.CandidateLimit
	if limit > len(ranked) {
		limit = len(ranked)
	}

	candidates := make([]models.ReasonCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		r := ranked[i]
		candidates = append(candidates, models.ReasonCandidate{
			Rank:       i + 1,
			Title:      r.Item.Title,
			Summary:    truncate(r.Item.Summary, candidateSummaryMax),
			SourceURL:  r.Item.URL,
			Source:     r.Item.Source,
			SourceType: r.Item.SourceType,
			Confidence: r.Relevance,
			EventType:  r.EventType,
			Sentiment:  r.Item.Sentiment,
			Timestamp:  r.Item.Timestamp,
		})
	}
	return candidates
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
