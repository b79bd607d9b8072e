package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawRecord represents an unprocessed message from the vendor feed topic.
type RawRecord struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// rawVendorRecord is the flat JSON structure produced by the per-vendor
// ingestion services.
type rawVendorRecord struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	LocationKey string  `json:"location_key"`
	Campus      string  `json:"campus_name"`
	Capacities  []struct {
		Name        string  `json:"name"`
		ValueMW     float64 `json:"value_mw"`
		Granularity string  `json:"granularity"`
		Definition  string  `json:"definition"`
		Horizon     string  `json:"horizon"`
	} `json:"capacities"`
}

// sourceAliases folds the vendor name variants seen across ingestion
// snapshots onto one canonical spelling per source.
var sourceAliases = map[string]string{
	"datacenterhawk":  "DataCenterHawk",
	"dch":             "DataCenterHawk",
	"semianalysis":    "Semianalysis",
	"semi analysis":   "Semianalysis",
	"datacentermap":   "DataCenterMap",
	"dcm":             "DataCenterMap",
	"synergy":         "Synergy",
	"newprojectmedia": "NewProjectMedia",
	"npm":             "NewProjectMedia",
	"woodmac":         "WoodMac",
	"wood mackenzie":  "WoodMac",
}

// NormalizeSource maps a raw vendor name onto its canonical spelling.
// Unrecognized names are returned trimmed but otherwise unchanged.
func NormalizeSource(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if canonical, ok := sourceAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// ParseVendorRecord deserializes a RawRecord's value into a Candidate.
// Coordinates outside WGS-84 range are dropped (the candidate keeps an
// empty Geo and is skipped by spatial matching). Capacity fields with an
// unrecognized granularity or definition are rejected: the comparator
// depends on those tags, and an untagged value is unusable.
func ParseVendorRecord(raw RawRecord) (Candidate, error) {
	var rec rawVendorRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Candidate{}, fmt.Errorf("parse vendor record: %w", err)
	}
	if rec.ID == "" {
		return Candidate{}, fmt.Errorf("parse vendor record: missing id")
	}
	if strings.TrimSpace(rec.Source) == "" {
		return Candidate{}, fmt.Errorf("parse vendor record %q: missing source", rec.ID)
	}

	c := Candidate{
		ID:          rec.ID,
		Source:      NormalizeSource(rec.Source),
		LocationKey: rec.LocationKey,
		Campus:      rec.Campus,
	}

	geo := Geo{Lat: rec.Lat, Lon: rec.Lon}
	if geo.Valid() {
		c.Geo = geo
	}

	if len(rec.Capacities) > 0 {
		c.Capacities = make(map[string]CapacityField, len(rec.Capacities))
	}
	for _, f := range rec.Capacities {
		granularity := Granularity(strings.ToLower(strings.TrimSpace(f.Granularity)))
		if granularity != GranularityBuilding && granularity != GranularityCampus {
			return Candidate{}, fmt.Errorf("parse vendor record %q: field %q: unknown granularity %q", rec.ID, f.Name, f.Granularity)
		}
		definition := Definition(strings.ToLower(strings.TrimSpace(f.Definition)))
		if definition != DefinitionITLoad && definition != DefinitionFacilityPower {
			return Candidate{}, fmt.Errorf("parse vendor record %q: field %q: unknown definition %q", rec.ID, f.Name, f.Definition)
		}
		horizon := strings.ToLower(strings.TrimSpace(f.Horizon))
		if horizon == "" {
			horizon = HorizonCurrent
		}
		c.Capacities[f.Name] = CapacityField{
			Name:    f.Name,
			ValueMW: f.ValueMW,
			Descriptor: FieldDescriptor{
				Granularity: granularity,
				Definition:  definition,
				Horizon:     horizon,
			},
		}
	}

	return c, nil
}
