// Package matcher finds, for every (canonical facility, vendor source) pair,
// the closest candidate within a bounded search radius and aggregates
// recall and distance statistics per source and breakdown slice.
package matcher

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// DefaultRadiusM is the default search radius: 50 km.
const DefaultRadiusM = 50000.0

// Config bounds the search and tiering behavior of a Matcher.
type Config struct {
	RadiusM    float64
	Confidence domain.ConfidenceThresholds

	// Workers caps the concurrent matching goroutines; 0 means GOMAXPROCS.
	Workers int
}

// Matcher runs spatial matching over immutable input sets. Safe for
// concurrent use; it holds no per-run state.
type Matcher struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Matcher, applying defaults for unset config fields.
func New(cfg Config, logger *slog.Logger) *Matcher {
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = DefaultRadiusM
	}
	if cfg.Confidence == (domain.ConfidenceThresholds{}) {
		cfg.Confidence = domain.DefaultConfidenceThresholds()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Matcher{cfg: cfg, logger: logger}
}

// Run matches every canonical facility with valid coordinates against each
// source's candidates, keeping only the closest candidate per
// (facility, source) pair, ties broken by lowest candidate ID. Facilities
// without valid coordinates are reported as unmatchable; facilities with no
// candidate inside the radius count as misses for that source.
//
// Matching is independent per facility and per source, so the work is
// partitioned into (source, facility-chunk) tasks across a bounded worker
// group and merged by concatenation.
func (m *Matcher) Run(ctx context.Context, canonical []domain.Facility, bySource map[string][]domain.Candidate) (domain.MatchSet, error) {
	matchable := make([]domain.Facility, 0, len(canonical))
	var unmatchable []string
	for _, f := range canonical {
		if f.Geo.Valid() {
			matchable = append(matchable, f)
		} else {
			unmatchable = append(unmatchable, f.Key)
		}
	}
	sort.Strings(unmatchable)

	set := domain.MatchSet{
		MissesBySource: make(map[string]int, len(bySource)),
		Unmatchable:    unmatchable,
	}

	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
		set.MissesBySource[s] = 0
	}
	sort.Strings(sources)

	chunk := len(matchable)/m.cfg.Workers + 1

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	for _, source := range sources {
		index := newGridIndex(bySource[source], m.cfg.RadiusM)
		for lo := 0; lo < len(matchable); lo += chunk {
			hi := min(lo+chunk, len(matchable))
			g.Go(func() error {
				matches, misses, err := m.matchChunk(gctx, source, matchable[lo:hi], index)
				if err != nil {
					return err
				}
				mu.Lock()
				set.Matches = append(set.Matches, matches...)
				set.MissesBySource[source] += misses
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return domain.MatchSet{}, err
	}

	// Deterministic output order regardless of worker interleaving.
	sort.Slice(set.Matches, func(i, j int) bool {
		if set.Matches[i].Source != set.Matches[j].Source {
			return set.Matches[i].Source < set.Matches[j].Source
		}
		return set.Matches[i].FacilityKey < set.Matches[j].FacilityKey
	})

	if m.logger != nil {
		m.logger.Info("spatial matching complete",
			"canonical", len(canonical),
			"unmatchable", len(unmatchable),
			"sources", len(sources),
			"matches", len(set.Matches),
		)
	}
	return set, nil
}

// matchChunk matches a contiguous slice of facilities against one source's
// grid index.
func (m *Matcher) matchChunk(ctx context.Context, source string, facilities []domain.Facility, index *gridIndex) ([]domain.Match, int, error) {
	var (
		matches []domain.Match
		misses  int
	)
	for _, f := range facilities {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		cand, dist, ok := index.closest(f.Geo)
		if !ok {
			misses++
			continue
		}
		matches = append(matches, domain.NewMatch(f.Key, source, cand.ID, dist, m.cfg.Confidence))
	}
	return matches, misses, nil
}
