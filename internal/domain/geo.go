package domain

import "math"

// meanEarthRadiusM is the mean Earth radius used for Haversine distances.
const meanEarthRadiusM = 6371000.0

// Geo represents a WGS-84 latitude/longitude coordinate pair.
// The zero value (0,0) is treated as missing coordinates; no real facility
// sits on null island.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// Valid reports whether the pair is present and inside WGS-84 range.
func (g Geo) Valid() bool {
	if g.Lat == 0 && g.Lon == 0 {
		return false
	}
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// HaversineM returns the geodesic distance between a and b in meters using
// the Haversine formula with the mean Earth radius.
func HaversineM(a, b Geo) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * meanEarthRadiusM * math.Asin(math.Sqrt(h))
}
