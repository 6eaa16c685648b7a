package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/sentinel/internal/models"
)

func candidate(title string, sourceType models.SourceType, sentiment models.Sentiment) models.ReasonCandidate {
	return models.ReasonCandidate{
		Rank:       1,
		Title:      title,
		SourceType: sourceType,
		Sentiment:  sentiment,
		Timestamp:  time.Now().UTC(),
	}
}

func TestClassify_NoCandidates(t *testing.T) {
	e := mustEngine(t)

	cls := e.classifyCause(nil, nil, nil)
	if cls.Type != models.ClassUnknown {
		t.Errorf("expected Unknown, got %s", cls.Type)
	}
	if cls.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", cls.Confidence)
	}
	if !strings.Contains(cls.Reasoning, "insufficient data") {
		t.Errorf("expected reasoning to cite insufficient data, got %q", cls.Reasoning)
	}
}

func TestClassify_BeatGuideDownOutranksDirection(t *testing.T) {
	e := mustEngine(t)

	// "beat estimates" plus a −3% move is the beat-but-guide-down pattern.
	// It must fire before the down-move and up-move rules regardless of
	// sentiment counts.
	candidates := []models.ReasonCandidate{
		candidate("Company beat estimates handily", models.SourceTypeNews, models.SentimentPositive),
		candidate("Analysts stay bullish", models.SourceTypeNews, models.SentimentPositive),
	}
	news := make([]models.NewsItem, 6)
	price := &models.PriceSnapshot{Ticker: "AMAT", ChangePct: -3.0, VolumeRatio: 1}

	cls := e.classifyCause(candidates, news, price)
	if cls.Type != models.ClassFracture {
		t.Errorf("expected Fracture, got %s", cls.Type)
	}
	if cls.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", cls.Confidence)
	}
}

func TestClassify_GuideDownWithoutPriceMove(t *testing.T) {
	e := mustEngine(t)

	candidates := []models.ReasonCandidate{
		candidate("Company lowered guidance for Q3", models.SourceTypeNews, models.SentimentNegative),
	}

	cls := e.classifyCause(candidates, nil, nil)
	if cls.Type != models.ClassFracture || cls.Confidence != 0.9 {
		t.Errorf("expected Fracture 0.9 from guide-down phrasing, got %s %f", cls.Type, cls.Confidence)
	}
}

func TestClassify_DownMoveConfidenceDependsOnFactSources(t *testing.T) {
	e := mustEngine(t)

	price := &models.PriceSnapshot{Ticker: "AMAT", ChangePct: -4.0, VolumeRatio: 1}

	// With a filing among the candidates: 0.85.
	withFiling := []models.ReasonCandidate{
		candidate("[SEC 8-K] Material event", models.SourceTypeFiling, models.SentimentNeutral),
	}
	cls := e.classifyCause(withFiling, nil, price)
	if cls.Type != models.ClassFracture || cls.Confidence != 0.85 {
		t.Errorf("expected Fracture 0.85, got %s %f", cls.Type, cls.Confidence)
	}

	// Without facts but with enough news volume: 0.7.
	noFacts := []models.ReasonCandidate{
		candidate("Shares slide in afternoon trading", models.SourceTypeNews, models.SentimentNeutral),
	}
	news := make([]models.NewsItem, 3)
	cls = e.classifyCause(noFacts, news, price)
	if cls.Type != models.ClassFracture || cls.Confidence != 0.7 {
		t.Errorf("expected Fracture 0.7, got %s %f", cls.Type, cls.Confidence)
	}

	// Without facts and with thin coverage the rule does not fire; the
	// neutral fixture falls through to Noise.
	cls = e.classifyCause(noFacts, nil, price)
	if cls.Type != models.ClassNoise {
		t.Errorf("expected fall-through to Noise, got %s", cls.Type)
	}
}

func TestClassify_UpMoveWithFacts(t *testing.T) {
	e := mustEngine(t)

	price := &models.PriceSnapshot{Ticker: "AMAT", ChangePct: 3.2, VolumeRatio: 1}
	candidates := []models.ReasonCandidate{
		candidate("[SEC 8-K] Results filed", models.SourceTypeFiling, models.SentimentNeutral),
		candidate("Guidance above consensus", models.SourceTypeNews, models.SentimentPositive),
	}

	cls := e.classifyCause(candidates, nil, price)
	if cls.Type != models.ClassCatalyst || cls.Confidence != 0.85 {
		t.Errorf("expected Catalyst 0.85, got %s %f", cls.Type, cls.Confidence)
	}
}

func TestClassify_FactsWithTone(t *testing.T) {
	e := mustEngine(t)

	// No price snapshot: direction rules cannot fire.
	negative := []models.ReasonCandidate{
		candidate("[SEC 8-K] Regulatory penalty disclosed", models.SourceTypeFiling, models.SentimentNegative),
	}
	cls := e.classifyCause(negative, nil, nil)
	if cls.Type != models.ClassFracture || cls.Confidence != 0.8 {
		t.Errorf("expected Fracture 0.8, got %s %f", cls.Type, cls.Confidence)
	}

	positive := []models.ReasonCandidate{
		candidate("[SEC 8-K] Record revenue reported", models.SourceTypeFiling, models.SentimentPositive),
	}
	cls = e.classifyCause(positive, nil, nil)
	if cls.Type != models.ClassCatalyst || cls.Confidence != 0.85 {
		t.Errorf("expected Catalyst 0.85, got %s %f", cls.Type, cls.Confidence)
	}
}

func TestClassify_SentimentMajorityRules(t *testing.T) {
	e := mustEngine(t)

	// Neutral titles keep the keyword flags quiet so the count rules govern.
	positiveLean := []models.ReasonCandidate{
		candidate("Quiet headline one", models.SourceTypeNews, models.SentimentPositive),
		candidate("Quiet headline two", models.SourceTypeNews, models.SentimentPositive),
		candidate("Quiet headline three", models.SourceTypeNews, models.SentimentNegative),
	}
	news := make([]models.NewsItem, 5)
	cls := e.classifyCause(positiveLean, news, nil)
	if cls.Type != models.ClassCatalyst || cls.Confidence != 0.7 {
		t.Errorf("expected Catalyst 0.7, got %s %f", cls.Type, cls.Confidence)
	}

	// Same lean with thin coverage falls through to the negative-majority
	// check, which does not match, then to Noise.
	cls = e.classifyCause(positiveLean, nil, nil)
	if cls.Type != models.ClassNoise || cls.Confidence != 0.5 {
		t.Errorf("expected Noise 0.5, got %s %f", cls.Type, cls.Confidence)
	}

	negativeLean := []models.ReasonCandidate{
		candidate("Quiet headline one", models.SourceTypeNews, models.SentimentNegative),
		candidate("Quiet headline two", models.SourceTypeNews, models.SentimentNeutral),
	}
	cls = e.classifyCause(negativeLean, nil, nil)
	if cls.Type != models.ClassFracture || cls.Confidence != 0.65 {
		t.Errorf("expected Fracture 0.65, got %s %f", cls.Type, cls.Confidence)
	}
}

func TestPlaybookFor(t *testing.T) {
	cases := []struct {
		classType models.ClassificationType
		wantID    string
	}{
		{models.ClassNoise, "PB-NOISE-01"},
		{models.ClassFracture, "PB-FRACTURE-01"},
		{models.ClassCatalyst, "PB-CATALYST-01"},
		{models.ClassUnknown, "PB-UNKNOWN-01"},
		{"bogus", "PB-UNKNOWN-01"},
	}

	for _, tc := range cases {
		pb := PlaybookFor(tc.classType)
		if pb.ID != tc.wantID {
			t.Errorf("%s: expected playbook %s, got %s", tc.classType, tc.wantID, pb.ID)
		}
		if len(pb.Actions) == 0 {
			t.Errorf("%s: playbook has no actions", tc.classType)
		}
		if pb.Reevaluation == "" {
			t.Errorf("%s: playbook has no reevaluation policy", tc.classType)
		}
	}
}
