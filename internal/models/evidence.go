package models

import "errors"

// PriceSnapshot summarizes the latest price/volume state of a ticker.
// ChangePct is the percent change versus the previous close (not a fraction:
// +3.5 means +3.5%). VolumeRatio is today's volume relative to the trailing
// average (1.0 = normal). A nil snapshot means price data was unavailable.
type PriceSnapshot struct {
	Ticker      string  `json:"ticker"`
	ChangePct   float64 `json:"change_pct"`
	VolumeRatio float64 `json:"volume_ratio"`
	LatestClose float64 `json:"latest_close"`
}

// Validate checks snapshot bounds.
func (p *PriceSnapshot) Validate() error {
	if p.Ticker == "" {
		return errors.New("price snapshot ticker must not be empty")
	}
	if p.VolumeRatio < 0 {
		return errors.New("volume ratio must not be negative")
	}
	if p.LatestClose < 0 {
		return errors.New("latest close must not be negative")
	}
	return nil
}

// OptionsActivity is the evidence bundle for the options-anomaly scorer.
// A nil bundle means no options data was collected this cycle.
// Zero values are neutral for every field except PCRatio, whose neutral
// value is 1.0; Normalize fills that in once so scoring logic never has to
// special-case missing ratios.
type OptionsActivity struct {
	OTMCallVolumeRatio float64 `json:"otm_call_volume_ratio"` // today vs trailing average
	ShortExpiryPct     float64 `json:"short_expiry_pct"`      // fraction of volume expiring within 7d
	OIChangePct        float64 `json:"oi_change_pct"`
	IVSkewSigma        float64 `json:"iv_skew_sigma"`
	LargeTradeCount    int     `json:"large_trade_count"` // single trades >= $100K
	PCRatio            float64 `json:"pc_ratio"`
}

// Normalize returns a copy with neutral defaults applied to absent fields.
func (o OptionsActivity) Normalize() OptionsActivity {
	if o.PCRatio == 0 {
		o.PCRatio = 1.0
	}
	return o
}

// SocialActivity is the evidence bundle for the attention-acceleration scorer.
// A nil bundle means no social data was collected this cycle.
type SocialActivity struct {
	CurrentMentions      int      `json:"current_mentions"`
	PreviousMentions     int      `json:"previous_mentions"`
	BreakingKeywordFound bool     `json:"breaking_keyword_found"`
	GoogleTrendsRatio    float64  `json:"google_trends_ratio"`
	PlatformsActive      []string `json:"platforms_active,omitempty"`
}
