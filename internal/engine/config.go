package engine

import (
	"fmt"
	"math"

	"github.com/rewired-gh/sentinel/internal/models"
)

// Weights are the component weights of the composite PSI. They must sum to 1.0.
type Weights struct {
	Options   float64 `mapstructure:"options"`
	Attention float64 `mapstructure:"attention"`
	Fact      float64 `mapstructure:"fact"`
}

// Band maps a half-open PSI range [Low, High) to a severity level. The final
// band in a table is closed at High so that 10.0 still classifies.
type Band struct {
	Level models.Level
	Low   float64
	High  float64
}

// EventTypeRule pairs an event-type label with its trigger keywords.
// Rules are evaluated in table order; the first matching rule wins, so the
// table order is part of the classifier's contract.
type EventTypeRule struct {
	Type     string
	Keywords []string
}

// Config carries every weight, threshold, and keyword table the engine uses.
// It is read-only after New; reconstruct the engine to change thresholds.
type Config struct {
	Weights         Weights
	ConfluenceBonus float64
	NoisePenaltyMax float64
	Bands           []Band
	CandidateLimit  int // ranked candidates surfaced by EvaluateCause

	// TrustedSources get a relevance bump in the ranker (e.g. direct API
	// feeds, as opposed to aggregated headlines).
	TrustedSources []string

	BreakingKeywords []string
	PositiveKeywords []string
	NegativeKeywords []string
	RegulatoryTerms  []string
	EarningsTerms    []string
	GuideDownTerms   []string
	BeatTerms        []string

	EventTypes []EventTypeRule
}

// DefaultConfig returns the production scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Options:   0.35,
			Attention: 0.30,
			Fact:      0.35,
		},
		ConfluenceBonus: 1.0,
		NoisePenaltyMax: 2.0,
		Bands: []Band{
			{Level: models.LevelNormal, Low: 0, High: 3},
			{Level: models.LevelWatch, Low: 3, High: 5},
			{Level: models.LevelAlert, Low: 5, High: 7},
			{Level: models.LevelCritical, Low: 7, High: 10},
		},
		CandidateLimit: 3,

		TrustedSources: []string{"finnhub", "sec_edgar"},

		BreakingKeywords: []string{
			"breaking", "just announced", "just reported",
			"urgent", "alert", "soars", "plunges", "surges",
			"crashes", "halted", "fda approved", "settlement",
			"acquisition", "merger", "buyout", "recall",
		},
		PositiveKeywords: []string{
			"beat", "raise", "upgrade", "approved", "deal",
			"contract", "partnership", "record", "strong",
			"guidance above", "upside", "outperform",
		},
		NegativeKeywords: []string{
			"lawsuit", "sued", "recall", "fraud", "investigation",
			"downgrade", "ban", "sanction", "penalty", "fine",
			"layoff", "cut", "miss", "disappointing", "weak",
		},
		RegulatoryTerms: []string{
			"bis", "fda", "ftc", "doj", "sec ", "settlement",
			"export control", "entity list", "approved", "cleared",
		},
		EarningsTerms: []string{
			"earnings", "eps", "revenue", "guidance", "quarter",
			"fiscal", "q1", "q2", "q3", "q4", "beat", "miss",
		},
		GuideDownTerms: []string{
			"guidance below", "guide down", "lowered guidance",
			"cut guidance", "reduced outlook", "below expectations",
			"disappointing guidance", "weak guidance", "outlook miss",
			"declines after", "falls despite", "drops despite",
			"despite beat", "despite strong",
		},
		BeatTerms: []string{
			"beat", "topped", "exceeded", "surpassed", "above estimate",
		},

		EventTypes: []EventTypeRule{
			{Type: "earnings", Keywords: []string{"earnings", "eps", "revenue", "quarter", "fiscal", "guidance"}},
			{Type: "regulatory", Keywords: []string{"bis", "fda", "ftc", "sec", "settlement", "export", "sanction", "penalty"}},
			{Type: "supply_chain", Keywords: []string{"tsmc", "samsung", "foundry", "fab", "capex", "equipment order"}},
			{Type: "analyst", Keywords: []string{"upgrade", "downgrade", "target", "rating", "overweight", "analyst"}},
			{Type: "ma", Keywords: []string{"acquisition", "merger", "buyout", "deal", "partnership"}},
			{Type: "sector", Keywords: []string{"semiconductor", "chip", "sector", "etf", "industry"}},
			{Type: "macro", Keywords: []string{"fed", "fomc", "inflation", "tariff", "trade war"}},
		},
	}
}

// weightTolerance absorbs floating-point drift when checking that the
// component weights sum to 1.0.
const weightTolerance = 1e-6

// Validate checks that the configuration can safely drive an evaluation.
// Any error here is fatal: an engine must not be constructed from it.
func (c *Config) Validate() error {
	sum := c.Weights.Options + c.Weights.Attention + c.Weights.Fact
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("component weights must sum to 1.0, got %.6f", sum)
	}
	if c.Weights.Options < 0 || c.Weights.Attention < 0 || c.Weights.Fact < 0 {
		return fmt.Errorf("component weights must not be negative")
	}
	if c.ConfluenceBonus < 0 {
		return fmt.Errorf("confluence bonus must not be negative")
	}
	if c.NoisePenaltyMax < 0 {
		return fmt.Errorf("noise penalty max must not be negative")
	}
	if c.CandidateLimit < 1 {
		return fmt.Errorf("candidate limit must be at least 1")
	}
	if err := validateBands(c.Bands); err != nil {
		return err
	}
	return nil
}

// validateBands requires a sorted band table that partitions [0, 10] with no
// gaps or overlaps.
func validateBands(bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("band table must not be empty")
	}
	if bands[0].Low != 0 {
		return fmt.Errorf("band table must start at 0, got %.1f", bands[0].Low)
	}
	for i, b := range bands {
		if b.High <= b.Low {
			return fmt.Errorf("band %q has empty range [%.1f, %.1f)", b.Level, b.Low, b.High)
		}
		if i > 0 && b.Low != bands[i-1].High {
			return fmt.Errorf("band table has a gap or overlap at %.1f", b.Low)
		}
		switch b.Level {
		case models.LevelNormal, models.LevelWatch, models.LevelAlert, models.LevelCritical:
		default:
			return fmt.Errorf("band has unknown level %q", b.Level)
		}
	}
	if last := bands[len(bands)-1]; last.High != 10 {
		return fmt.Errorf("band table must end at 10, got %.1f", last.High)
	}
	return nil
}
