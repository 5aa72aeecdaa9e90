package geospatial

import (
	"math"

	"github.com/samirrijal/toiletmap/internal/core/domain"
)

const (
	earthRadiusMeters = 6371000.0
	metersPerDegree   = 111320.0
)

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b domain.GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Around returns the bounding box enclosing a circle of radiusMeters around
// center, clipped to valid coordinates.
func Around(center domain.GeoPoint, radiusMeters float64) domain.GeoRegion {
	latDelta := radiusMeters / metersPerDegree
	cos := math.Cos(toRad(center.Lat))
	lonDelta := 180.0
	if cos > 1e-6 {
		lonDelta = math.Min(radiusMeters/(metersPerDegree*cos), 180)
	}

	return domain.GeoRegion{
		West:  math.Max(center.Lon-lonDelta, -180),
		South: math.Max(center.Lat-latDelta, -90),
		East:  math.Min(center.Lon+lonDelta, 180),
		North: math.Min(center.Lat+latDelta, 90),
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
