package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Confidence tiers a spatial match by distance.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ConfidenceThresholds holds the tier boundaries in meters.
// High below HighM, Medium from HighM through MediumM inclusive, Low beyond.
type ConfidenceThresholds struct {
	HighM   float64
	MediumM float64
}

// DefaultConfidenceThresholds are 0.5 and 2 miles expressed in meters.
func DefaultConfidenceThresholds() ConfidenceThresholds {
	return ConfidenceThresholds{HighM: 805, MediumM: 3219}
}

// Tier maps a match distance to a confidence tier.
func (t ConfidenceThresholds) Tier(distanceM float64) Confidence {
	switch {
	case distanceM < t.HighM:
		return ConfidenceHigh
	case distanceM <= t.MediumM:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Match pairs one canonical facility with the closest candidate from one
// source inside the search radius. Matches are derived and recomputed
// wholesale on every run.
type Match struct {
	ID          string     `json:"id"`
	FacilityKey string     `json:"facility_key"`
	Source      string     `json:"source"`
	CandidateID string     `json:"candidate_id"`
	DistanceM   float64    `json:"distance_m"`
	Confidence  Confidence `json:"confidence"`
}

// NewMatch builds a Match with a deterministic ID and confidence tier.
func NewMatch(facilityKey, source, candidateID string, distanceM float64, t ConfidenceThresholds) Match {
	return Match{
		ID:          matchID(facilityKey, source, candidateID),
		FacilityKey: facilityKey,
		Source:      source,
		CandidateID: candidateID,
		DistanceM:   distanceM,
		Confidence:  t.Tier(distanceM),
	}
}

// matchID produces a deterministic ID from the pairing's key fields, so
// recomputed runs over identical inputs emit identical match IDs.
func matchID(facilityKey, source, candidateID string) string {
	input := fmt.Sprintf("%s|%s|%s", facilityKey, source, candidateID)
	hash := sha256.Sum256([]byte(input))
	return "match-" + hex.EncodeToString(hash[:8])
}

// MatchSet is the full output of one spatial matching run.
type MatchSet struct {
	// Matches holds at most one entry per (facility, source) pair.
	Matches []Match `json:"matches"`

	// MissesBySource counts canonical facilities with valid coordinates
	// that had no candidate within the radius, per source.
	MissesBySource map[string]int `json:"misses_by_source"`

	// Unmatchable lists canonical facility keys excluded from matching
	// for lack of valid coordinates.
	Unmatchable []string `json:"unmatchable"`
}
