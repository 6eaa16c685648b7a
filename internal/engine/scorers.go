package engine

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/sentinel/internal/models"
)

// Component rule points. The OTM and mention-acceleration rules are tiered:
// the higher tier replaces the lower one, it is never added on top.
const (
	pointsOTMVolume3x    = 3.0
	pointsOTMVolume5x    = 5.0
	pointsShortExpiry    = 2.0
	pointsOIChange       = 2.0
	pointsIVSkew         = 1.0
	pointsLargeTrade     = 1.0
	pointsPCRatioExtreme = 1.0

	pointsMentionAccel100 = 3.0
	pointsMentionAccel300 = 5.0
	pointsBreakingKeyword = 2.0
	pointsTrendsSpike     = 2.0
	pointsMultiPlatform   = 1.0
	pointsNewsVolume      = 1.0

	pointsFiling8K     = 4.0
	pointsFilingOther  = 2.0
	pointsRegulatory   = 3.0
	pointsEarnings     = 2.0
	pointsMultiSource  = 1.0
	minDistinctSources = 3

	componentMax = 10.0
)

// scoreOptions maps options-flow evidence to a bounded anomaly score.
// Rules are additive except the OTM volume tiers, which are exclusive.
func (e *Engine) scoreOptions(data *models.OptionsActivity) models.ComponentScore {
	if data == nil {
		return models.ComponentScore{
			Value:    0,
			Evidence: []models.Evidence{{Description: "no options data"}},
		}
	}

	o := data.Normalize()
	var score componentAccumulator

	if o.OTMCallVolumeRatio >= 5 {
		score.add(fmt.Sprintf("OTM call volume %.1fx average", o.OTMCallVolumeRatio), pointsOTMVolume5x)
	} else if o.OTMCallVolumeRatio >= 3 {
		score.add(fmt.Sprintf("OTM call volume %.1fx average", o.OTMCallVolumeRatio), pointsOTMVolume3x)
	}

	if o.ShortExpiryPct >= 0.6 {
		score.add(fmt.Sprintf("short-expiry concentration %.0f%%", o.ShortExpiryPct*100), pointsShortExpiry)
	}

	if abs(o.OIChangePct) >= 50 {
		score.add(fmt.Sprintf("open interest change %+.0f%%", o.OIChangePct), pointsOIChange)
	}

	if abs(o.IVSkewSigma) >= 2 {
		score.add(fmt.Sprintf("IV skew %.1fσ", o.IVSkewSigma), pointsIVSkew)
	}

	if o.LargeTradeCount > 0 {
		score.add(fmt.Sprintf("%d large trades", o.LargeTradeCount), pointsLargeTrade)
	}

	if o.PCRatio < 0.5 || o.PCRatio > 2.0 {
		score.add(fmt.Sprintf("abnormal put/call ratio %.2f", o.PCRatio), pointsPCRatioExtreme)
	}

	return score.result()
}

// scoreAttention maps social evidence plus the news list to a bounded
// attention-acceleration score. A nil social bundle still allows the
// news-derived rules (breaking keywords, news volume) to fire.
func (e *Engine) scoreAttention(social *models.SocialActivity, news []models.NewsItem) models.ComponentScore {
	var s models.SocialActivity
	if social != nil {
		s = *social
	}

	var score componentAccumulator

	if s.PreviousMentions > 0 && s.CurrentMentions > 0 {
		accel := float64(s.CurrentMentions-s.PreviousMentions) / float64(s.PreviousMentions) * 100
		if accel >= 300 {
			score.add(fmt.Sprintf("mention acceleration %.0f%%", accel), pointsMentionAccel300)
		} else if accel >= 100 {
			score.add(fmt.Sprintf("mention acceleration %.0f%%", accel), pointsMentionAccel100)
		}
	}

	// Breaking keywords count once, no matter how many items match.
	breaking := s.BreakingKeywordFound
	if !breaking {
		for _, item := range news {
			if containsAny(item.Title+" "+item.Summary, e.cfg.BreakingKeywords) {
				breaking = true
				break
			}
		}
	}
	if breaking {
		score.add("breaking keywords detected", pointsBreakingKeyword)
	}

	if s.GoogleTrendsRatio >= 2 {
		score.add(fmt.Sprintf("search trends %.1fx baseline", s.GoogleTrendsRatio), pointsTrendsSpike)
	}

	if len(s.PlatformsActive) >= 2 {
		score.add(fmt.Sprintf("simultaneous activity on %s", strings.Join(s.PlatformsActive, ", ")), pointsMultiPlatform)
	}

	if len(news) >= 10 {
		score.add(fmt.Sprintf("news volume %d items", len(news)), pointsNewsVolume)
	}

	return score.result()
}

// scoreFact maps the news list to a bounded disclosure/fact score. Flags are
// derived in one pass over the items, then scored; the 8-K and other-filing
// flags are exclusive (an 8-K dominates).
func (e *Engine) scoreFact(news []models.NewsItem) models.ComponentScore {
	var has8K, hasOtherFiling, hasRegulatory, hasEarnings bool
	sources := make(map[string]struct{})

	for _, item := range news {
		title := strings.ToLower(item.Title)
		sources[item.Source] = struct{}{}

		if item.SourceType == models.SourceTypeFiling || strings.Contains(strings.ToLower(item.Source), "sec") {
			if strings.Contains(title, "8-k") || strings.Contains(title, "8k") {
				has8K = true
			} else {
				hasOtherFiling = true
			}
		}

		if containsAny(title, e.cfg.RegulatoryTerms) {
			hasRegulatory = true
		}
		if containsAny(title, e.cfg.EarningsTerms) {
			hasEarnings = true
		}
	}

	var score componentAccumulator

	if has8K {
		score.add("SEC 8-K filing detected", pointsFiling8K)
	} else if hasOtherFiling {
		score.add("SEC filing detected", pointsFilingOther)
	}
	if hasRegulatory {
		score.add("regulatory announcement detected", pointsRegulatory)
	}
	if hasEarnings {
		score.add("earnings-related coverage detected", pointsEarnings)
	}
	if len(sources) >= minDistinctSources {
		score.add(fmt.Sprintf("confirmed by %d distinct sources", len(sources)), pointsMultiSource)
	}

	return score.result()
}

// Price boost tiers: highest applicable tier only, plus an independent
// volume bump. The total is capped below the weighted-score scale so price
// action alone cannot saturate the PSI.
const (
	priceBoostCap   = 4.5
	volumeBoost     = 0.5
	volumeRatioHigh = 3.0
)

// scorePriceBoost maps price-change magnitude and volume ratio to an
// additive PSI boost in [0, 4.5]. A nil snapshot contributes nothing.
func (e *Engine) scorePriceBoost(price *models.PriceSnapshot) models.ComponentScore {
	if price == nil {
		return models.ComponentScore{}
	}

	var score componentAccumulator

	change := abs(price.ChangePct)
	var tier float64
	switch {
	case change >= 10:
		tier = 4.0
	case change >= 8:
		tier = 3.0
	case change >= 5:
		tier = 2.0
	case change >= 2:
		tier = 1.0
	}
	if tier > 0 {
		score.add(fmt.Sprintf("price move %+.1f%%", price.ChangePct), tier)
	}

	if price.VolumeRatio >= volumeRatioHigh {
		score.add(fmt.Sprintf("volume %.1fx average", price.VolumeRatio), volumeBoost)
	}

	return score.cappedResult(priceBoostCap)
}

// componentAccumulator collects applied rules and their deltas.
type componentAccumulator struct {
	sum      float64
	evidence []models.Evidence
}

func (a *componentAccumulator) add(description string, delta float64) {
	a.sum += delta
	a.evidence = append(a.evidence, models.Evidence{Description: description, Delta: delta})
}

func (a *componentAccumulator) result() models.ComponentScore {
	return a.cappedResult(componentMax)
}

func (a *componentAccumulator) cappedResult(limit float64) models.ComponentScore {
	value := a.sum
	if value > limit {
		value = limit
	}
	return models.ComponentScore{Value: value, Evidence: a.evidence}
}

// containsAny reports whether text contains any of the keywords,
// case-insensitively.
func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
