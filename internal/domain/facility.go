package domain

import (
	"sort"
	"strings"
)

// Region is a coarse geographic bucket used for breakdown statistics.
type Region string

const (
	RegionAMER Region = "AMER"
	RegionEMEA Region = "EMEA"
	RegionAPAC Region = "APAC"
)

// BuildStatus is the canonical build lifecycle bucket.
type BuildStatus string

const (
	StatusActiveBuild   BuildStatus = "Active Build"
	StatusCompleteBuild BuildStatus = "Complete Build"
)

// Facility is a canonical ground-truth building record.
type Facility struct {
	Key         string      `json:"building_key"`
	Campus      string      `json:"campus_code,omitempty"`
	LocationKey string      `json:"location_key,omitempty"`
	Geo         Geo         `json:"geo"`
	ITLoadMW    float64     `json:"it_load_mw"`
	Region      Region      `json:"region,omitempty"`
	BuildStatus BuildStatus `json:"build_status,omitempty"`
}

// regionAliases maps the raw region strings seen in upstream exports onto
// the three canonical buckets.
var regionAliases = map[string]Region{
	"amer":          RegionAMER,
	"northamerica":  RegionAMER,
	"north america": RegionAMER,
	"americas":      RegionAMER,
	"emea":          RegionEMEA,
	"europe":        RegionEMEA,
	"middle east":   RegionEMEA,
	"apac":          RegionAPAC,
	"asia":          RegionAPAC,
	"asia pacific":  RegionAPAC,
	"pacific":       RegionAPAC,
}

// NormalizeRegion maps a raw region string onto AMER/EMEA/APAC.
// Unrecognized values normalize to the empty region.
func NormalizeRegion(raw string) Region {
	if r, ok := regionAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return r
	}
	return ""
}

// RollupCampuses aggregates buildings to one record per campus code: IT loads
// summed, coordinates averaged over buildings with valid coordinates, region
// and build status taken from the first building. Buildings without a campus
// code are skipped. Output is sorted by campus code.
func RollupCampuses(facilities []Facility) []Facility {
	byCampus := make(map[string]*Facility)
	coordCounts := make(map[string]int)
	var order []string

	for _, f := range facilities {
		if f.Campus == "" {
			continue
		}
		agg, ok := byCampus[f.Campus]
		if !ok {
			agg = &Facility{
				Key:         f.Campus,
				Campus:      f.Campus,
				Region:      f.Region,
				BuildStatus: f.BuildStatus,
			}
			byCampus[f.Campus] = agg
			order = append(order, f.Campus)
		}
		agg.ITLoadMW += f.ITLoadMW
		if f.Geo.Valid() {
			agg.Geo.Lat += f.Geo.Lat
			agg.Geo.Lon += f.Geo.Lon
			coordCounts[f.Campus]++
		}
	}

	sort.Strings(order)
	out := make([]Facility, 0, len(order))
	for _, code := range order {
		agg := byCampus[code]
		if n := coordCounts[code]; n > 0 {
			agg.Geo.Lat /= float64(n)
			agg.Geo.Lon /= float64(n)
		}
		out = append(out, *agg)
	}
	return out
}

// CampusITLoads returns total canonical IT load per campus code.
func CampusITLoads(facilities []Facility) map[string]float64 {
	totals := make(map[string]float64)
	for _, f := range facilities {
		if f.Campus != "" {
			totals[f.Campus] += f.ITLoadMW
		}
	}
	return totals
}
