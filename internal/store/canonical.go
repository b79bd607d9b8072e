package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// canonicalRecord is the flat JSON row exported by the canonical import
// pipeline.
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

// LoadCanonical reads the canonical facility set from a JSON array file.
// Region strings are normalized; out-of-range coordinates are dropped so
// the facility participates only in direct-key comparisons. Records without
// a building key are rejected: the key is the identity everything joins on.
func LoadCanonical(path string) ([]domain.Facility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load canonical set: %w", err)
	}

	var records []canonicalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("load canonical set %s: %w", path, err)
	}

	facilities := make([]domain.Facility, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		if rec.BuildingKey == "" {
			return nil, fmt.Errorf("load canonical set %s: record %d: missing building_key", path, i)
		}
		if seen[rec.BuildingKey] {
			return nil, fmt.Errorf("load canonical set %s: duplicate building_key %q", path, rec.BuildingKey)
		}
		seen[rec.BuildingKey] = true

		f := domain.Facility{
			Key:         rec.BuildingKey,
			Campus:      rec.CampusCode,
			LocationKey: rec.LocationKey,
			ITLoadMW:    rec.ITLoadMW,
			Region:      domain.NormalizeRegion(rec.Region),
			BuildStatus: domain.BuildStatus(rec.BuildStatus),
		}
		geo := domain.Geo{Lat: rec.Lat, Lon: rec.Lon}
		if geo.Valid() {
			f.Geo = geo
		}
		facilities = append(facilities, f)
	}
	return facilities, nil
}
