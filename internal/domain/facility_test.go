package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Region
	}{
		{"canonical AMER", "AMER", RegionAMER},
		{"north america", "North America", RegionAMER},
		{"americas", "Americas", RegionAMER},
		{"europe", "Europe", RegionEMEA},
		{"middle east", "Middle East", RegionEMEA},
		{"asia pacific", "Asia Pacific", RegionAPAC},
		{"whitespace trimmed", "  apac  ", RegionAPAC},
		{"unknown is empty", "Antarctica", Region("")},
		{"empty is empty", "", Region("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeRegion(tt.raw))
		})
	}
}

func TestRollupCampuses(t *testing.T) {
	facilities := []Facility{
		{Key: "dal-01-b01", Campus: "dal-01", Geo: Geo{Lat: 32.0, Lon: -96.0}, ITLoadMW: 10, Region: RegionAMER, BuildStatus: StatusCompleteBuild},
		{Key: "dal-01-b02", Campus: "dal-01", Geo: Geo{Lat: 32.2, Lon: -96.2}, ITLoadMW: 30, Region: RegionAMER, BuildStatus: StatusCompleteBuild},
		{Key: "dal-01-b03", Campus: "dal-01", ITLoadMW: 5, Region: RegionAMER, BuildStatus: StatusActiveBuild},
		{Key: "ash-02-b01", Campus: "ash-02", Geo: Geo{Lat: 39.0, Lon: -77.5}, ITLoadMW: 20, Region: RegionAMER, BuildStatus: StatusActiveBuild},
		{Key: "orphan", ITLoadMW: 99},
	}

	rollup := RollupCampuses(facilities)
	require.Len(t, rollup, 2)

	// Sorted by campus code.
	ash, dal := rollup[0], rollup[1]
	assert.Equal(t, "ash-02", ash.Key)
	assert.Equal(t, "dal-01", dal.Key)

	// IT load sums every building, including the one without coordinates.
	assert.Equal(t, 45.0, dal.ITLoadMW)
	assert.Equal(t, 20.0, ash.ITLoadMW)

	// Centroid averages only the buildings with valid coordinates.
	assert.InDelta(t, 32.1, dal.Geo.Lat, 1e-9)
	assert.InDelta(t, -96.1, dal.Geo.Lon, 1e-9)

	// Region and build status come from the first building seen.
	assert.Equal(t, RegionAMER, dal.Region)
	assert.Equal(t, StatusCompleteBuild, dal.BuildStatus)
}

func TestRollupCampusesEmpty(t *testing.T) {
	assert.Empty(t, RollupCampuses(nil))
	assert.Empty(t, RollupCampuses([]Facility{{Key: "no-campus", ITLoadMW: 5}}))
}

func TestCampusITLoads(t *testing.T) {
	facilities := []Facility{
		{Key: "dal-01-b01", Campus: "dal-01", ITLoadMW: 10},
		{Key: "dal-01-b02", Campus: "dal-01", ITLoadMW: 30},
		{Key: "ash-02-b01", Campus: "ash-02", ITLoadMW: 20},
		{Key: "orphan", ITLoadMW: 99},
	}

	totals := CampusITLoads(facilities)

	assert.Equal(t, map[string]float64{"dal-01": 40, "ash-02": 20}, totals)
}
