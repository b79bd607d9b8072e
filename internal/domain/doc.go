// Package domain models canonical and vendor-reported data center facility
// records and the accuracy primitives computed over them.
//
// # Data Sources
//
// The canonical set is the ground-truth building inventory exported by the
// canonical import pipeline: one record per building with a stable building
// key, WGS-84 coordinates, IT load in megawatts, a region, and a build
// status. Vendor candidate records arrive from the per-vendor ingestion
// services (DataCenterHawk, Semianalysis, DataCenterMap, Synergy,
// NewProjectMedia, WoodMac) as flat JSON, one record per reported facility.
//
// # Capacity Field Conventions
//
// Vendor capacity numbers are not directly comparable to each other or to
// canonical IT load. Each vendor field is therefore tagged at ingestion with
// a descriptor:
//
//	granularity: "building" or "campus"
//	definition:  "it_load" or "facility_power"
//	horizon:     "current" or a forecast year, e.g. "2027"
//
// Only it_load fields compare directly against canonical IT load. A
// facility_power field must be divided by a declared PUE (Power Usage
// Effectiveness) factor first; comparing it without one would overstate the
// vendor's number by the facility overhead, so that case is rejected as a
// configuration error rather than guessed at. Campus-granularity fields
// compare against the campus IT load rollup, not a single building.
//
// # Match Confidence
//
// Spatial matches are tiered by geodesic distance, in meters:
//
//	High   d < 805 m (0.5 mi)
//	Medium 805 m ≤ d ≤ 3,219 m (2 mi)
//	Low    d > 3,219 m
//
// # Variance Scoring
//
// Capacity percent error magnitude maps to a 1-4 score, boundaries inclusive
// on the lower tier:
//
//	1 ≤15%    2 ≤30%    3 ≤60%    4 beyond
//
// # Unknown Values
//
// Coordinates outside [-90,90] x [-180,180], and the (0,0) null island pair,
// are treated as missing. Such facilities are excluded from spatial matching
// and counted as unmatchable; they may still be compared by capacity when a
// shared location key exists.
package domain
