package matcher

import (
	"math"
	"sort"

	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// Breakdown dimension names used in SliceStats.
const (
	DimensionOverall     = "overall"
	DimensionRegion      = "region"
	DimensionBuildStatus = "build_status"
)

// DistanceSummary describes the distance distribution of a slice's matches.
// Absent entirely (nil pointer in SliceStats) when the slice has no matches;
// zero is a real distance, not a placeholder.
type DistanceSummary struct {
	MedianM float64 `json:"median_m"`
	MeanM   float64 `json:"mean_m"`
	StdM    float64 `json:"std_m"`
	MADM    float64 `json:"mad_m"`
	MinM    float64 `json:"min_m"`
	MaxM    float64 `json:"max_m"`

	P10 float64 `json:"p10_m"`
	P20 float64 `json:"p20_m"`
	P30 float64 `json:"p30_m"`
	P40 float64 `json:"p40_m"`
	P50 float64 `json:"p50_m"`
	P60 float64 `json:"p60_m"`
	P70 float64 `json:"p70_m"`
	P80 float64 `json:"p80_m"`
	P90 float64 `json:"p90_m"`

	PctWithin100M float64 `json:"pct_within_100m"`
	PctWithin500M float64 `json:"pct_within_500m"`
	PctWithin1KM  float64 `json:"pct_within_1km"`
	PctWithin5KM  float64 `json:"pct_within_5km"`

	// Quality band shares: Excellent <1 km, Good 1-3 km, Fair 3-5 km.
	// Matches beyond 5 km fall outside every band.
	ShareExcellent float64 `json:"share_excellent_lt1km"`
	ShareGood      float64 `json:"share_good_1to3km"`
	ShareFair      float64 `json:"share_fair_3to5km"`
}

// SliceStats aggregates recall and distance accuracy for one source within
// one breakdown slice. The overall slice uses dimension "overall" and value
// "all".
type SliceStats struct {
	Source    string `json:"source"`
	Dimension string `json:"slice_dimension"`
	Value     string `json:"slice_value"`

	// NTotal counts canonical facilities with valid coordinates in the
	// slice; unmatchable facilities are excluded from the denominator.
	NTotal    int     `json:"n_total"`
	NMatched  int     `json:"n_matched"`
	RecallPct float64 `json:"recall_pct"`

	Distance *DistanceSummary `json:"distance,omitempty"`
}

// ComputeStats derives per-source statistics from a matching run: one
// overall slice per source plus one slice per canonical region and build
// status value. Sources and slices are emitted in deterministic order.
func ComputeStats(canonical []domain.Facility, set domain.MatchSet) []SliceStats {
	var matchable []domain.Facility
	for _, f := range canonical {
		if f.Geo.Valid() {
			matchable = append(matchable, f)
		}
	}

	distBySource := make(map[string]map[string]float64)
	for _, m := range set.Matches {
		if distBySource[m.Source] == nil {
			distBySource[m.Source] = make(map[string]float64)
		}
		distBySource[m.Source][m.FacilityKey] = m.DistanceM
	}

	sources := make([]string, 0, len(set.MissesBySource))
	for s := range set.MissesBySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	var out []SliceStats
	for _, source := range sources {
		matched := distBySource[source]

		out = append(out, sliceStats(source, DimensionOverall, "all", matchable, matched))

		for _, value := range sliceValues(matchable, func(f domain.Facility) string { return string(f.Region) }) {
			subset := filterFacilities(matchable, func(f domain.Facility) bool { return string(f.Region) == value })
			out = append(out, sliceStats(source, DimensionRegion, value, subset, matched))
		}
		for _, value := range sliceValues(matchable, func(f domain.Facility) string { return string(f.BuildStatus) }) {
			subset := filterFacilities(matchable, func(f domain.Facility) bool { return string(f.BuildStatus) == value })
			out = append(out, sliceStats(source, DimensionBuildStatus, value, subset, matched))
		}
	}
	return out
}

func sliceStats(source, dimension, value string, facilities []domain.Facility, matched map[string]float64) SliceStats {
	s := SliceStats{
		Source:    source,
		Dimension: dimension,
		Value:     value,
		NTotal:    len(facilities),
	}

	var distances []float64
	for _, f := range facilities {
		if d, ok := matched[f.Key]; ok {
			distances = append(distances, d)
		}
	}
	s.NMatched = len(distances)
	if s.NTotal > 0 {
		s.RecallPct = float64(s.NMatched) / float64(s.NTotal) * 100
	}
	s.Distance = summarizeDistances(distances)
	return s
}

// summarizeDistances computes the distribution summary, or nil for an empty
// slice: a slice with no matches has undefined statistics, not zeros.
func summarizeDistances(distances []float64) *DistanceSummary {
	n := len(distances)
	if n == 0 {
		return nil
	}

	sorted := make([]float64, n)
	copy(sorted, distances)
	sort.Float64s(sorted)

	sum := 0.0
	for _, d := range sorted {
		sum += d
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, d := range sorted {
		variance += (d - mean) * (d - mean)
	}

	median := percentile(sorted, 50)
	deviations := make([]float64, n)
	for i, d := range sorted {
		deviations[i] = math.Abs(d - median)
	}
	sort.Float64s(deviations)

	ds := &DistanceSummary{
		MedianM: median,
		MeanM:   mean,
		StdM:    math.Sqrt(variance / float64(n)),
		MADM:    percentile(deviations, 50),
		MinM:    sorted[0],
		MaxM:    sorted[n-1],

		P10: percentile(sorted, 10),
		P20: percentile(sorted, 20),
		P30: percentile(sorted, 30),
		P40: percentile(sorted, 40),
		P50: percentile(sorted, 50),
		P60: percentile(sorted, 60),
		P70: percentile(sorted, 70),
		P80: percentile(sorted, 80),
		P90: percentile(sorted, 90),

		PctWithin100M: shareWithin(sorted, 100) * 100,
		PctWithin500M: shareWithin(sorted, 500) * 100,
		PctWithin1KM:  shareWithin(sorted, 1000) * 100,
		PctWithin5KM:  shareWithin(sorted, 5000) * 100,
	}

	for _, d := range sorted {
		switch {
		case d < 1000:
			ds.ShareExcellent++
		case d <= 3000:
			ds.ShareGood++
		case d <= 5000:
			ds.ShareFair++
		}
	}
	ds.ShareExcellent /= float64(n)
	ds.ShareGood /= float64(n)
	ds.ShareFair /= float64(n)

	return ds
}

// percentile computes the p-th percentile of a sorted slice with linear
// interpolation between ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func shareWithin(sorted []float64, thresholdM float64) float64 {
	count := 0
	for _, d := range sorted {
		if d <= thresholdM {
			count++
		}
	}
	return float64(count) / float64(len(sorted))
}

func sliceValues(facilities []domain.Facility, attr func(domain.Facility) string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, f := range facilities {
		v := attr(f)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func filterFacilities(facilities []domain.Facility, keep func(domain.Facility) bool) []domain.Facility {
	var out []domain.Facility
	for _, f := range facilities {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}
