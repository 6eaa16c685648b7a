package engine

import (
	"testing"
	"time"

	"github.com/rewired-gh/sentinel/internal/models"
)

// amatNews returns the reference scenario fixture: one 8-K filing, an
// earnings beat, a regulatory settlement, a guidance-above surge, and an
// analyst upgrade, spread over the past day.
func amatNews() []models.NewsItem {
	now := time.Now().UTC()
	item := func(title, summary, source string, st models.SourceType, sent models.Sentiment, age time.Duration, kw ...string) models.NewsItem {
		return models.NewsItem{
			Ticker:          "AMAT",
			Timestamp:       now.Add(-age),
			Title:           title,
			Summary:         summary,
			URL:             "https://example.com/" + title,
			Source:          source,
			SourceType:      st,
			Sentiment:       sent,
			KeywordsMatched: kw,
		}
	}

	return []models.NewsItem{
		item("Applied Materials Q1 earnings beat estimates", "EPS $2.38 vs $2.25 expected",
			"finnhub", models.SourceTypeNews, models.SentimentPositive, 2*time.Hour, "AMAT", "earnings"),
		item("[SEC 8-K] Applied Materials Q1 2026 Results", "",
			"sec_edgar", models.SourceTypeFiling, models.SentimentNeutral, 30*time.Minute, "AMAT"),
		item("BIS settlement: Applied Materials pays $252M penalty", "Settlement resolves export violations",
			"google_news", models.SourceTypeNews, models.SentimentNegative, 26*time.Hour, "AMAT", "BIS", "export control"),
		item("Applied Materials guidance above consensus, shares rally", "Q2 guidance $7.65B vs $7.02B expected",
			"finnhub", models.SourceTypeNews, models.SentimentPositive, 90*time.Minute, "AMAT", "guidance"),
		item("KeyBanc raises AMAT target to $450, sees 37% upside", "",
			"google_news", models.SourceTypeNews, models.SentimentPositive, 45*time.Minute, "AMAT"),
	}
}

func TestEvaluatePSI_ReferenceScenario(t *testing.T) {
	e := mustEngine(t)

	opts := &models.OptionsActivity{
		OTMCallVolumeRatio: 4.2,
		ShortExpiryPct:     0.65,
		OIChangePct:        55,
		IVSkewSigma:        2.3,
		LargeTradeCount:    3,
		PCRatio:            0.45,
	}
	social := &models.SocialActivity{
		CurrentMentions:      340,
		PreviousMentions:     100,
		BreakingKeywordFound: true,
		GoogleTrendsRatio:    2.5,
		PlatformsActive:      []string{"reddit", "stocktwits"},
	}

	r := e.EvaluatePSI("AMAT", opts, social, amatNews(), nil)

	if r.OptionsScore != 10 {
		t.Errorf("expected options score 10 (capped), got %f", r.OptionsScore)
	}
	if r.AttentionScore != 8 {
		t.Errorf("expected attention score 8, got %f", r.AttentionScore)
	}
	// 8-K (+4) + regulatory (+3) + earnings (+2) + three sources (+1) = 10.
	if r.FactScore != 10 {
		t.Errorf("expected fact score 10, got %f", r.FactScore)
	}
	if r.ConfluenceBonus != 1.0 {
		t.Errorf("expected confluence bonus, got %f", r.ConfluenceBonus)
	}
	if r.NoisePenalty != 0 {
		t.Errorf("expected no noise penalty, got %f", r.NoisePenalty)
	}
	if r.PSITotal < 7 {
		t.Errorf("expected psi in the critical band, got %f", r.PSITotal)
	}
	if r.Level != models.LevelCritical {
		t.Errorf("expected level critical, got %s", r.Level)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("result failed validation: %v", err)
	}
	if r.Evidence.Formula == "" {
		t.Error("expected a rendered formula in the evidence tree")
	}
}

func TestEvaluatePSI_NoEvidenceAtAll(t *testing.T) {
	e := mustEngine(t)

	r := e.EvaluatePSI("AMAT", nil, nil, nil, nil)
	if r.PSITotal != 0 {
		t.Errorf("expected psi 0 with no evidence, got %f", r.PSITotal)
	}
	if r.Level != models.LevelNormal {
		t.Errorf("expected level normal, got %s", r.Level)
	}
}

func TestEvaluatePSI_SkipsMalformedNews(t *testing.T) {
	e := mustEngine(t)

	news := amatNews()
	news = append(news,
		models.NewsItem{Title: "", Timestamp: time.Now().UTC()},          // no title
		models.NewsItem{Title: "No timestamp", Source: "google_news"},    // zero timestamp
		models.NewsItem{Title: "OK", Timestamp: time.Now().UTC(), URL: "https://example.com/ok", Source: "google_news"}, // defaults filled
	)

	r := e.EvaluatePSI("AMAT", nil, nil, news, nil)
	if r.FactScore != 10 {
		t.Errorf("malformed items changed the fact score: got %f", r.FactScore)
	}
}

func TestEvaluateCause_ReferenceScenario(t *testing.T) {
	e := mustEngine(t)

	price := &models.PriceSnapshot{Ticker: "AMAT", ChangePct: 3.2, VolumeRatio: 1.8, LatestClose: 412.50}
	result := e.EvaluateCause("AMAT", amatNews(), price)

	if len(result.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(result.Candidates))
	}
	// The fresh 8-K filing carries the highest relevance.
	if result.Candidates[0].SourceType != models.SourceTypeFiling {
		t.Errorf("expected the filing ranked first, got %s (%q)",
			result.Candidates[0].SourceType, result.Candidates[0].Title)
	}
	for i, c := range result.Candidates {
		if c.Rank != i+1 {
			t.Errorf("expected dense rank %d, got %d", i+1, c.Rank)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			t.Errorf("candidate confidence out of range: %f", c.Confidence)
		}
		if c.EventType == "" {
			t.Errorf("candidate %d missing event type", c.Rank)
		}
	}

	cls := result.Classification
	if cls.Type != models.ClassCatalyst {
		t.Errorf("expected Catalyst, got %s (%s)", cls.Type, cls.Reasoning)
	}
	if cls.Confidence < 0.85 {
		t.Errorf("expected confidence >= 0.85, got %f", cls.Confidence)
	}
	if err := cls.Validate(); err != nil {
		t.Errorf("classification failed validation: %v", err)
	}

	if result.Playbook.ID != "PB-CATALYST-01" {
		t.Errorf("expected catalyst playbook, got %s", result.Playbook.ID)
	}
}

func TestEvaluateCause_EmptyNews(t *testing.T) {
	e := mustEngine(t)

	result := e.EvaluateCause("AMAT", nil, nil)
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
	if result.Classification.Type != models.ClassUnknown {
		t.Errorf("expected Unknown, got %s", result.Classification.Type)
	}
	if result.Playbook.ID != "PB-UNKNOWN-01" {
		t.Errorf("expected the manual-review playbook, got %s", result.Playbook.ID)
	}
}

func TestEvaluatePSI_ConcurrentUse(t *testing.T) {
	e := mustEngine(t)
	news := amatNews()

	done := make(chan models.PSIResult, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- e.EvaluatePSI("AMAT", nil, nil, news, nil)
		}()
	}

	first := <-done
	for i := 1; i < 8; i++ {
		r := <-done
		if r.PSITotal != first.PSITotal || r.FactScore != first.FactScore {
			t.Errorf("concurrent evaluations diverged: %f vs %f", r.PSITotal, first.PSITotal)
		}
	}
}
