// Command genmock generates deterministic mock fixtures for the accuracy
// analysis: a canonical facility file plus jittered vendor candidate records
// per source, in the schemas the loader and feed parser expect.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -canonical-out data/mock/canonical_buildings.json \
//	  -candidates-out data/mock/vendor_records.json \
//	  -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
)

// metro anchors the generated facilities around real data center markets.
type metro struct {
	name   string
	lat    float64
	lon    float64
	region string
}

var metros = []metro{
	{name: "ashburn", lat: 39.0438, lon: -77.4874, region: "AMER"},
	{name: "dallas", lat: 32.7767, lon: -96.7970, region: "AMER"},
	{name: "frankfurt", lat: 50.1109, lon: 8.6821, region: "EMEA"},
	{name: "dublin", lat: 53.3498, lon: -6.2603, region: "EMEA"},
	{name: "singapore", lat: 1.3521, lon: 103.8198, region: "APAC"},
	{name: "tokyo", lat: 35.6762, lon: 139.6503, region: "APAC"},
}

var buildStatuses = []string{"Active Build", "Complete Build"}

// vendorProfile tunes how each simulated source distorts the truth.
type vendorProfile struct {
	source string
	// jitterM is the typical coordinate error in meters.
	jitterM float64
	// field describes the capacity value the vendor publishes.
	field       string
	granularity string
	definition  string
	// capacityNoise is the relative error on capacity values.
	capacityNoise float64
	// coverage is the fraction of facilities the vendor knows about.
	coverage float64
	// missingField is the fraction of records without the capacity field.
	missingField float64
}

var vendors = []vendorProfile{
	{source: "Semianalysis", jitterM: 300, field: "mw_2023", granularity: "building", definition: "it_load", capacityNoise: 0.15, coverage: 0.9, missingField: 0.05},
	{source: "DataCenterHawk", jitterM: 900, field: "commissioned_power_mw", granularity: "building", definition: "facility_power", capacityNoise: 0.25, coverage: 0.8, missingField: 0.10},
	{source: "DataCenterMap", jitterM: 2500, field: "capacity_mw", granularity: "campus", definition: "it_load", capacityNoise: 0.40, coverage: 0.7, missingField: 0.20},
}

// canonicalRecord mirrors the canonical facility file schema.
type canonicalRecord struct {
	BuildingKey string  `json:"building_key"`
	CampusCode  string  `json:"campus_code"`
	LocationKey string  `json:"location_key"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ITLoadMW    float64 `json:"it_load_mw"`
	Region      string  `json:"region"`
	BuildStatus string  `json:"build_status"`
}

// vendorRecord mirrors the feed message schema.
type vendorRecord struct {
	ID          string           `json:"id"`
	Source      string           `json:"source"`
	Lat         float64          `json:"lat"`
	Lon         float64          `json:"lon"`
	LocationKey string           `json:"location_key"`
	Campus      string           `json:"campus_name"`
	Capacities  []vendorCapacity `json:"capacities,omitempty"`
}

type vendorCapacity struct {
	Name        string  `json:"name"`
	ValueMW     float64 `json:"value_mw"`
	Granularity string  `json:"granularity"`
	Definition  string  `json:"definition"`
	Horizon     string  `json:"horizon"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	canonicalOut := flag.String("canonical-out", "", "output path for canonical facility fixture")
	candidatesOut := flag.String("candidates-out", "", "output path for vendor record fixture")
	perMetro := flag.Int("per-metro", 8, "canonical buildings to generate per metro")
	seed := flag.Int64("seed", 42, "random seed for reproducible fixtures")
	flag.Parse()

	if *canonicalOut == "" || *candidatesOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -canonical-out, -candidates-out")
	}

	rng := rand.New(rand.NewSource(*seed))

	canonical := genCanonical(rng, *perMetro)
	candidates := genCandidates(rng, canonical)

	if err := writeJSON(*canonicalOut, canonical); err != nil {
		return fmt.Errorf("writing canonical fixture: %w", err)
	}
	log.Printf("wrote canonical fixture: %s (%d buildings)", *canonicalOut, len(canonical))

	if err := writeJSON(*candidatesOut, candidates); err != nil {
		return fmt.Errorf("writing candidate fixture: %w", err)
	}
	log.Printf("wrote candidate fixture: %s (%d records)", *candidatesOut, len(candidates))

	printStats(canonical, candidates)
	return nil
}

func genCanonical(rng *rand.Rand, perMetro int) []canonicalRecord {
	var out []canonicalRecord
	for _, m := range metros {
		// Two campuses per metro, buildings split between them.
		for i := 0; i < perMetro; i++ {
			campus := fmt.Sprintf("%s-%02d", m.name, i%2+1)
			key := fmt.Sprintf("%s-b%02d", campus, i+1)
			rec := canonicalRecord{
				BuildingKey: key,
				CampusCode:  campus,
				LocationKey: key,
				Lat:         m.lat + rng.NormFloat64()*0.02,
				Lon:         m.lon + rng.NormFloat64()*0.02,
				ITLoadMW:    round1(4 + rng.Float64()*60),
				Region:      m.region,
				BuildStatus: buildStatuses[rng.Intn(len(buildStatuses))],
			}
			// A few buildings have no published coordinates yet.
			if rng.Float64() < 0.05 {
				rec.Lat, rec.Lon = 0, 0
			}
			out = append(out, rec)
		}
	}
	return out
}

func genCandidates(rng *rand.Rand, canonical []canonicalRecord) []vendorRecord {
	var out []vendorRecord
	for _, v := range vendors {
		n := 0
		for _, c := range canonical {
			if rng.Float64() > v.coverage {
				continue
			}
			n++
			rec := vendorRecord{
				ID:          fmt.Sprintf("%s-%s-%03d", v.source, c.CampusCode, n),
				Source:      v.source,
				Lat:         c.Lat + metersToLatDeg(rng.NormFloat64()*v.jitterM),
				Lon:         c.Lon + metersToLatDeg(rng.NormFloat64()*v.jitterM),
				LocationKey: c.LocationKey,
				Campus:      c.CampusCode,
			}
			if c.Lat == 0 && c.Lon == 0 {
				rec.Lat, rec.Lon = 0, 0
			}
			if rng.Float64() >= v.missingField {
				value := c.ITLoadMW * (1 + rng.NormFloat64()*v.capacityNoise)
				if v.definition == "facility_power" {
					value *= 1.3
				}
				rec.Capacities = []vendorCapacity{{
					Name:        v.field,
					ValueMW:     round1(value),
					Granularity: v.granularity,
					Definition:  v.definition,
					Horizon:     "current",
				}}
			}
			out = append(out, rec)
		}
	}
	return out
}

// metersToLatDeg converts a meter offset to degrees of latitude. Longitude
// jitter reuses it, slightly overstating east-west error away from the
// equator, which is fine for mock data.
func metersToLatDeg(m float64) float64 {
	return m / 111000
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(canonical []canonicalRecord, candidates []vendorRecord) {
	fmt.Println("\n=== Stats for updating test assertions ===")

	regionCounts := map[string]int{}
	noCoords := 0
	for _, c := range canonical {
		regionCounts[c.Region]++
		if c.Lat == 0 && c.Lon == 0 {
			noCoords++
		}
	}
	fmt.Printf("Canonical: %d (AMER=%d, EMEA=%d, APAC=%d, no-coords=%d)\n",
		len(canonical), regionCounts["AMER"], regionCounts["EMEA"], regionCounts["APAC"], noCoords)

	sourceCounts := map[string]int{}
	missingField := map[string]int{}
	for _, r := range candidates {
		sourceCounts[r.Source]++
		if len(r.Capacities) == 0 {
			missingField[r.Source]++
		}
	}
	for _, v := range vendors {
		fmt.Printf("%s: %d records, %d without %s\n",
			v.source, sourceCounts[v.source], missingField[v.source], v.field)
	}
}
