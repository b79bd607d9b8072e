package matcher

import (
	"math"

	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// metersPerDegreeLat is close enough for cell sizing; correctness comes from
// the final Haversine check, the grid only prunes.
const metersPerDegreeLat = 111000.0

// gridIndex buckets candidates into lat/lon cells sized to the search radius
// so a nearest-within-radius query only scans the neighboring cells instead
// of every candidate from the source.
type gridIndex struct {
	cellDeg float64
	radiusM float64
	cells   map[cellKey][]domain.Candidate
}

type cellKey struct {
	lat int
	lon int
}

func newGridIndex(candidates []domain.Candidate, radiusM float64) *gridIndex {
	g := &gridIndex{
		cellDeg: radiusM / metersPerDegreeLat,
		radiusM: radiusM,
		cells:   make(map[cellKey][]domain.Candidate),
	}
	for _, c := range candidates {
		if !c.Geo.Valid() {
			continue
		}
		k := g.keyFor(c.Geo)
		g.cells[k] = append(g.cells[k], c)
	}
	return g
}

func (g *gridIndex) keyFor(geo domain.Geo) cellKey {
	return cellKey{
		lat: int(math.Floor(geo.Lat / g.cellDeg)),
		lon: int(math.Floor(geo.Lon / g.cellDeg)),
	}
}

// closest returns the candidate nearest to geo within the search radius,
// ties broken by lowest candidate ID. The second return is false when no
// candidate qualifies.
func (g *gridIndex) closest(geo domain.Geo) (domain.Candidate, float64, bool) {
	center := g.keyFor(geo)

	// Longitude degrees shrink with latitude, so the scan widens toward the
	// poles to keep the radius covered.
	cosLat := math.Cos(geo.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonSpan := int(math.Ceil(1 / cosLat))

	var (
		best     domain.Candidate
		bestDist = math.Inf(1)
		found    bool
	)
	for dLat := -1; dLat <= 1; dLat++ {
		for dLon := -lonSpan; dLon <= lonSpan; dLon++ {
			k := cellKey{lat: center.lat + dLat, lon: center.lon + dLon}
			for _, c := range g.cells[k] {
				d := domain.HaversineM(geo, c.Geo)
				if d > g.radiusM {
					continue
				}
				if d < bestDist || (d == bestDist && c.ID < best.ID) {
					best = c
					bestDist = d
					found = true
				}
			}
		}
	}
	return best, bestDist, found
}
