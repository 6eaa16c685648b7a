package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/sentinel/internal/models"
)

// Noise penalty: attention without factual backing is discounted. The guard
// (attention >= 5 and fact <= 2) keeps the penalty non-negative.
const (
	noiseAttentionFloor = 5.0
	noiseFactCeiling    = 2.0
	noiseSlope          = 0.3
)

// confluenceMinHigh is how many components must sit at or above
// confluenceScoreFloor before the confluence bonus applies.
const (
	confluenceMinHigh    = 2
	confluenceScoreFloor = 5.0
)

// compose combines the component scores into the final PSI result.
func (e *Engine) compose(
	ticker string,
	now time.Time,
	opt, att, fact, boost models.ComponentScore,
) models.PSIResult {
	w := e.cfg.Weights
	weighted := w.Options*opt.Value + w.Attention*att.Value + w.Fact*fact.Value

	highCount := 0
	for _, v := range []float64{opt.Value, att.Value, fact.Value} {
		if v >= confluenceScoreFloor {
			highCount++
		}
	}
	confluence := 0.0
	if highCount >= confluenceMinHigh {
		confluence = e.cfg.ConfluenceBonus
	}

	noise := noisePenalty(att.Value, fact.Value, e.cfg.NoisePenaltyMax)

	psi := clamp(round1(weighted+confluence+boost.Value-noise), 0, componentMax)

	return models.PSIResult{
		Ticker:          ticker,
		Timestamp:       now,
		OptionsScore:    opt.Value,
		AttentionScore:  att.Value,
		FactScore:       fact.Value,
		ConfluenceBonus: confluence,
		NoisePenalty:    noise,
		PriceBoost:      boost.Value,
		PSITotal:        psi,
		Level:           e.levelFor(psi),
		Evidence: models.EvidenceTree{
			Options:   opt,
			Attention: att,
			Fact:      fact,
			Price:     boost,
			Formula: fmt.Sprintf("%.2f×%.1f + %.2f×%.1f + %.2f×%.1f + confluence:%.1f + price:%.1f − noise:%.1f = %.1f",
				w.Options, opt.Value, w.Attention, att.Value, w.Fact, fact.Value,
				confluence, boost.Value, noise, psi),
		},
	}
}

// noisePenalty discounts attention that lacks factual backing. Returns 0
// unless attention is elevated while fact is depressed.
func noisePenalty(attention, fact, limit float64) float64 {
	if attention >= noiseAttentionFloor && fact <= noiseFactCeiling {
		return math.Min(limit, (attention-fact)*noiseSlope)
	}
	return 0
}

// levelFor classifies a PSI total using the sorted band table. Bands are
// half-open [low, high) except the last, which is closed so 10.0 maps to
// the top band.
func (e *Engine) levelFor(psi float64) models.Level {
	bands := e.cfg.Bands
	for i, b := range bands {
		last := i == len(bands)-1
		if psi >= b.Low && (psi < b.High || (last && psi <= b.High)) {
			return b.Level
		}
	}
	// Unreachable with a validated table and a clamped psi.
	return bands[len(bands)-1].Level
}

// round1 rounds to one decimal place, matching the PSI display precision.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// round2 rounds to two decimal places, matching relevance precision.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
