package comparator

import (
	"sort"

	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// PairsFromMatches resolves a matching run back into comparable pairs.
// Matches whose facility or candidate is no longer present are dropped.
func PairsFromMatches(set domain.MatchSet, canonical []domain.Facility, bySource map[string][]domain.Candidate) []Pair {
	facilities := make(map[string]domain.Facility, len(canonical))
	for _, f := range canonical {
		facilities[f.Key] = f
	}
	candidates := make(map[string]map[string]domain.Candidate, len(bySource))
	for source, list := range bySource {
		candidates[source] = make(map[string]domain.Candidate, len(list))
		for _, c := range list {
			candidates[source][c.ID] = c
		}
	}
	campusLoads := domain.CampusITLoads(canonical)

	pairs := make([]Pair, 0, len(set.Matches))
	for _, m := range set.Matches {
		f, ok := facilities[m.FacilityKey]
		if !ok {
			continue
		}
		c, ok := candidates[m.Source][m.CandidateID]
		if !ok {
			continue
		}
		d := m.DistanceM
		pairs = append(pairs, Pair{
			Facility:       f,
			Candidate:      c,
			DistanceM:      &d,
			CampusITLoadMW: campusLoads[f.Campus],
		})
	}
	return pairs
}

// DirectPairs joins facilities to candidates on a shared location key,
// bypassing spatial matching. This keeps coordinate-less canonical records
// in capacity comparisons. Output is ordered by facility key then
// candidate ID.
func DirectPairs(canonical []domain.Facility, bySource map[string][]domain.Candidate) []Pair {
	byLocationKey := make(map[string]domain.Facility)
	for _, f := range canonical {
		if f.LocationKey != "" {
			byLocationKey[f.LocationKey] = f
		}
	}
	campusLoads := domain.CampusITLoads(canonical)

	var pairs []Pair
	for _, list := range bySource {
		for _, c := range list {
			if c.LocationKey == "" {
				continue
			}
			f, ok := byLocationKey[c.LocationKey]
			if !ok {
				continue
			}
			pairs = append(pairs, Pair{
				Facility:       f,
				Candidate:      c,
				CampusITLoadMW: campusLoads[f.Campus],
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Facility.Key != pairs[j].Facility.Key {
			return pairs[i].Facility.Key < pairs[j].Facility.Key
		}
		return pairs[i].Candidate.ID < pairs[j].Candidate.ID
	})
	return pairs
}
