// Package report assembles one accuracy run into a publishable report:
// spatial matching and its breakdown statistics plus capacity comparisons.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gridatlas/facility-accuracy/internal/comparator"
	"github.com/gridatlas/facility-accuracy/internal/domain"
	"github.com/gridatlas/facility-accuracy/internal/matcher"
)

// Report is the full output of one accuracy run. It is recomputed wholesale;
// no state carries over between runs.
type Report struct {
	RunID         string    `json:"run_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	SearchRadiusM float64   `json:"search_radius_m"`

	CanonicalCount  int      `json:"n_canonical"`
	MatchableCount  int      `json:"n_matchable"`
	UnmatchableKeys []string `json:"unmatchable_keys,omitempty"`

	MissesBySource map[string]int `json:"misses_by_source"`

	Spatial  []matcher.SliceStats    `json:"spatial"`
	Capacity []comparator.Comparison `json:"capacity"`
}

// Builder wires the matcher and comparator into one Analyze call.
type Builder struct {
	matcher    *matcher.Matcher
	comparator *comparator.Comparator
	requests   []comparator.FieldRequest
	radiusM    float64
	logger     *slog.Logger
}

// NewBuilder creates a Builder running the given comparison requests after
// every matching pass.
func NewBuilder(m *matcher.Matcher, c *comparator.Comparator, requests []comparator.FieldRequest, radiusM float64, logger *slog.Logger) *Builder {
	return &Builder{
		matcher:    m,
		comparator: c,
		requests:   requests,
		radiusM:    radiusM,
		logger:     logger,
	}
}

// Analyze runs spatial matching, derives breakdown statistics, and scores
// every configured capacity comparison. A comparison configuration error
// fails the run: it indicates a setup mistake, not a data anomaly.
func (b *Builder) Analyze(ctx context.Context, canonical []domain.Facility, bySource map[string][]domain.Candidate) (Report, error) {
	set, err := b.matcher.Run(ctx, canonical, bySource)
	if err != nil {
		return Report{}, fmt.Errorf("spatial matching: %w", err)
	}

	rep := Report{
		RunID:           uuid.NewString(),
		GeneratedAt:     domain.Clock().Now().UTC(),
		SearchRadiusM:   b.radiusM,
		CanonicalCount:  len(canonical),
		MatchableCount:  len(canonical) - len(set.Unmatchable),
		UnmatchableKeys: set.Unmatchable,
		MissesBySource:  set.MissesBySource,
		Spatial:         matcher.ComputeStats(canonical, set),
	}

	pairs := mergePairs(
		comparator.PairsFromMatches(set, canonical, bySource),
		comparator.DirectPairs(canonical, bySource),
	)

	for _, req := range b.requests {
		cmp, err := b.comparator.Compare(pairs, req)
		if err != nil {
			return Report{}, err
		}
		rep.Capacity = append(rep.Capacity, cmp)
	}

	if b.logger != nil {
		b.logger.Info("accuracy run complete",
			"run_id", rep.RunID,
			"matchable", rep.MatchableCount,
			"unmatchable", len(rep.UnmatchableKeys),
			"comparisons", len(rep.Capacity),
		)
	}
	return rep, nil
}

// AnalyzeCampuses runs the same analysis with canonical buildings rolled
// up to one record per campus: vendor records match against campus
// centroids and capacity is compared against the summed campus IT load.
// Buildings without a campus code drop out of the run.
func (b *Builder) AnalyzeCampuses(ctx context.Context, canonical []domain.Facility, bySource map[string][]domain.Candidate) (Report, error) {
	return b.Analyze(ctx, domain.RollupCampuses(canonical), bySource)
}

// mergePairs combines spatial and direct-key pairs; a spatial match takes
// precedence over a direct join for the same (facility, source).
func mergePairs(spatial, direct []comparator.Pair) []comparator.Pair {
	type pairKey struct {
		facility string
		source   string
	}
	seen := make(map[pairKey]bool, len(spatial))
	for _, p := range spatial {
		seen[pairKey{p.Facility.Key, p.Candidate.Source}] = true
	}
	merged := spatial
	for _, p := range direct {
		if !seen[pairKey{p.Facility.Key, p.Candidate.Source}] {
			merged = append(merged, p)
		}
	}
	return merged
}
