package models

import (
	"errors"
	"math"
	"time"
)

// Level is the severity band a PSI total falls into.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelWatch    Level = "watch"
	LevelAlert    Level = "alert"
	LevelCritical Level = "critical"
)

// Evidence records one applied scoring rule: what fired and how many points
// it contributed.
type Evidence struct {
	Description string  `json:"description"`
	Delta       float64 `json:"delta"`
}

// ComponentScore is the output of a single component scorer: a bounded value
// plus the ordered list of rules that produced it. The sum of evidence
// deltas, clamped to [0,10], equals Value.
type ComponentScore struct {
	Value    float64    `json:"value"`
	Evidence []Evidence `json:"evidence,omitempty"`
}

// EvidenceTree collects the per-component evidence behind a PSI result,
// plus a human-readable rendering of the combining formula.
type EvidenceTree struct {
	Options   ComponentScore `json:"options"`
	Attention ComponentScore `json:"attention"`
	Fact      ComponentScore `json:"fact"`
	Price     ComponentScore `json:"price"`
	Formula   string         `json:"formula"`
}

// PSIResult is the composite Pre-Signal Index for one ticker at one instant.
type PSIResult struct {
	Ticker          string       `json:"ticker"`
	Timestamp       time.Time    `json:"timestamp"`
	OptionsScore    float64      `json:"options_score"`
	AttentionScore  float64      `json:"attention_score"`
	FactScore       float64      `json:"fact_score"`
	ConfluenceBonus float64      `json:"confluence_bonus"`
	NoisePenalty    float64      `json:"noise_penalty"`
	PriceBoost      float64      `json:"price_boost"`
	PSITotal        float64      `json:"psi_total"`
	Level           Level        `json:"level"`
	Evidence        EvidenceTree `json:"evidence"`
}

// Validate checks the structural invariants of a computed result.
func (r *PSIResult) Validate() error {
	if r.Ticker == "" {
		return errors.New("psi result ticker must not be empty")
	}
	if r.Timestamp.IsZero() {
		return errors.New("psi result timestamp must not be zero")
	}
	for _, v := range []float64{r.OptionsScore, r.AttentionScore, r.FactScore, r.PSITotal} {
		if v < 0 || v > 10 {
			return errors.New("scores must be within [0, 10]")
		}
	}
	if r.PriceBoost < 0 || r.PriceBoost > 4.5 {
		return errors.New("price boost must be within [0, 4.5]")
	}
	if r.NoisePenalty < 0 {
		return errors.New("noise penalty must not be negative")
	}
	switch r.Level {
	case LevelNormal, LevelWatch, LevelAlert, LevelCritical:
	default:
		return errors.New("level must be one of: normal, watch, alert, critical")
	}
	return nil
}

// ClassificationType labels the probable driver of an anomaly.
type ClassificationType string

const (
	ClassCatalyst ClassificationType = "Catalyst" // positive fundamental event
	ClassFracture ClassificationType = "Fracture" // negative fundamental event
	ClassNoise    ClassificationType = "Noise"    // no identifiable fundamental driver
	ClassUnknown  ClassificationType = "Unknown"
)

// ClassificationResult is the cause classifier's verdict with a confidence
// and a human-readable rationale citing the triggering facts.
type ClassificationResult struct {
	Type       ClassificationType `json:"type"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
}

// Validate checks classification bounds.
func (c *ClassificationResult) Validate() error {
	switch c.Type {
	case ClassCatalyst, ClassFracture, ClassNoise, ClassUnknown:
	default:
		return errors.New("classification type must be one of: Catalyst, Fracture, Noise, Unknown")
	}
	if c.Confidence < 0 || c.Confidence > 1 || math.IsNaN(c.Confidence) {
		return errors.New("classification confidence must be within [0, 1]")
	}
	return nil
}

// ReasonCandidate is a top-ranked news item projected into a causal
// candidate: the item itself plus the derived relevance and event type.
type ReasonCandidate struct {
	Rank       int        `json:"rank"` // 1-based, dense
	Title      string     `json:"title"`
	Summary    string     `json:"summary,omitempty"`
	SourceURL  string     `json:"source_url,omitempty"`
	Source     string     `json:"source"`
	SourceType SourceType `json:"source_type"`
	Confidence float64    `json:"confidence"` // = relevance score, [0, 1]
	EventType  string     `json:"event_type"`
	Sentiment  Sentiment  `json:"sentiment"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Playbook is a fixed, classification-keyed list of recommended actions and
// a reevaluation policy ("15m", "30m", or "close").
type Playbook struct {
	ID           string   `json:"id"`
	Actions      []string `json:"actions"`
	Reevaluation string   `json:"reevaluation"`
}
