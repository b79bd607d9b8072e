package domain

import "math"

// VarianceThresholds are the score tier boundaries in absolute percent,
// inclusive on the lower tier.
type VarianceThresholds struct {
	Tier1Pct float64
	Tier2Pct float64
	Tier3Pct float64
}

// DefaultVarianceThresholds returns the 15/30/60 benchmark tiers.
func DefaultVarianceThresholds() VarianceThresholds {
	return VarianceThresholds{Tier1Pct: 15, Tier2Pct: 30, Tier3Pct: 60}
}

// Score maps an absolute percent error to a 1-4 variance score.
func (t VarianceThresholds) Score(absPctError float64) int {
	switch {
	case absPctError <= t.Tier1Pct:
		return 1
	case absPctError <= t.Tier2Pct:
		return 2
	case absPctError <= t.Tier3Pct:
		return 3
	default:
		return 4
	}
}

// PercentError returns the signed percent error of adjusted against
// canonical. The second return is false when canonical is zero and the
// error is undefined.
func PercentError(adjustedMW, canonicalMW float64) (float64, bool) {
	if canonicalMW == 0 {
		return 0, false
	}
	return (adjustedMW - canonicalMW) / canonicalMW * 100, true
}

// VarianceRecord scores one candidate capacity field against a canonical
// value. Purely derived; recomputable from its inputs.
type VarianceRecord struct {
	FacilityKey     string  `json:"canonical_id"`
	Source          string  `json:"source"`
	CandidateID     string  `json:"candidate_id"`
	Field           string  `json:"field_used"`
	RawValueMW      float64 `json:"raw_value"`
	AdjustedValueMW float64 `json:"adjusted_value"`
	CanonicalMW     float64 `json:"canonical_value"`

	// PercentError is signed; positive means the vendor over-reports.
	// Undefined (and zero-valued) when ZeroDenominator is set.
	PercentError    float64 `json:"percent_error"`
	AbsPercentError float64 `json:"abs_percent_error"`
	Score           int     `json:"variance_score"`

	ZeroDenominator bool `json:"zero_denominator,omitempty"`
	Outlier         bool `json:"outlier,omitempty"`
}

// NewVarianceRecord derives the error fields and score for one comparison.
// A zero canonical value yields a flagged record with score 0.
func NewVarianceRecord(facilityKey, source, candidateID, field string, rawMW, adjustedMW, canonicalMW float64, t VarianceThresholds) VarianceRecord {
	rec := VarianceRecord{
		FacilityKey:     facilityKey,
		Source:          source,
		CandidateID:     candidateID,
		Field:           field,
		RawValueMW:      rawMW,
		AdjustedValueMW: adjustedMW,
		CanonicalMW:     canonicalMW,
	}

	pct, ok := PercentError(adjustedMW, canonicalMW)
	if !ok {
		rec.ZeroDenominator = true
		return rec
	}
	rec.PercentError = pct
	rec.AbsPercentError = math.Abs(pct)
	rec.Score = t.Score(rec.AbsPercentError)
	return rec
}
