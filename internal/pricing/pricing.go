// Package pricing computes USD cost for LLM and voice usage.
package pricing

// Tier identifies a model quality/cost tier.
type Tier string

const (
	// TierFast is the cheap tier used for matching and skill ranking.
	TierFast Tier = "fast"
	// TierSmart is the pricier tier used for profile generation and
	// evolution analysis.
	TierSmart Tier = "smart"
)

// Rates holds USD rates per million tokens for one model tier.
type Rates struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Cached float64 `json:"cached"`
}

// Cost returns the USD cost for the given token counts.
func (r Rates) Cost(inputTokens, outputTokens, cachedTokens int) float64 {
	return float64(inputTokens)/1e6*r.Input +
		float64(outputTokens)/1e6*r.Output +
		float64(cachedTokens)/1e6*r.Cached
}

// Table holds the full pricing table: one rate triple per tier plus a flat
// per-character rate for voice synthesis.
type Table struct {
	Fast         Rates   `json:"fast"`
	Smart        Rates   `json:"smart"`
	VoicePerChar float64 `json:"voicePerChar"`
}

// DefaultTable returns the baseline pricing table.
func DefaultTable() Table {
	return Table{
		Fast:         Rates{Input: 1.00, Output: 5.00, Cached: 0.10},
		Smart:        Rates{Input: 3.00, Output: 15.00, Cached: 0.30},
		VoicePerChar: 0.000015,
	}
}

// ForTier returns the rates for a tier. Unknown tiers return false.
func (t Table) ForTier(tier Tier) (Rates, bool) {
	switch tier {
	case TierFast:
		return t.Fast, true
	case TierSmart:
		return t.Smart, true
	}
	return Rates{}, false
}

// TokenCost returns the USD cost of an LLM call on the given tier.
// Unknown tiers cost zero.
func (t Table) TokenCost(tier Tier, inputTokens, outputTokens, cachedTokens int) float64 {
	rates, ok := t.ForTier(tier)
	if !ok {
		return 0
	}
	return rates.Cost(inputTokens, outputTokens, cachedTokens)
}

// VoiceCost returns the USD cost of synthesizing the given number of
// characters.
func (t Table) VoiceCost(characters int) float64 {
	return float64(characters) * t.VoicePerChar
}
