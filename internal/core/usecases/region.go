package usecases

import (
	"math"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
)

// minSpan pads a collapsed axis so the region stays strictly ordered.
const minSpan = 1e-6

// ResolveRegion converts the current visible viewport into a query region.
// The caller must only invoke it once the map has an established viewport.
func ResolveRegion(view ports.BoundsReader) domain.GeoRegion {
	b := view.Bounds()

	west, east := longitudes(b.West, b.East)
	south, north := ordered(clamp(b.South, -90, 90), clamp(b.North, -90, 90))

	if east-west < minSpan {
		west, east = widen(west, east, -180, 180)
	}
	if north-south < minSpan {
		south, north = widen(south, north, -90, 90)
	}

	return domain.GeoRegion{West: west, South: south, East: east, North: north}
}

// longitudes reads west and east as an eastward span, the way map libraries
// report a viewport that crosses the antimeridian (east past 180, or west
// greater than east once wrapped). A crossing span keeps its larger side,
// since one box cannot cover both. A span of a full turn or more covers the
// whole world.
func longitudes(west, east float64) (float64, float64) {
	west, east = finiteOr0(west), finiteOr0(east)
	if west >= -180 && east <= 180 && west <= east {
		return west, east
	}

	span := east - west
	if span >= 360 || span <= -360 {
		return -180, 180
	}
	if span < 0 {
		span += 360
	}

	w := wrapLon(west)
	e := w + span
	if e <= 180 {
		return w, e
	}
	if 180-w >= e-180 {
		return w, 180
	}
	return -180, e - 360
}

// wrapLon maps lon into [-180, 180).
func wrapLon(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func finiteOr0(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func ordered(a, b float64) (float64, float64) {
	return math.Min(a, b), math.Max(a, b)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

// widen grows [lo, hi] to at least minSpan without leaving [floor, ceil].
func widen(lo, hi, floor, ceil float64) (float64, float64) {
	mid := (lo + hi) / 2
	lo, hi = mid-minSpan, mid+minSpan
	if lo < floor {
		lo, hi = floor, floor+2*minSpan
	}
	if hi > ceil {
		lo, hi = ceil-2*minSpan, ceil
	}
	return lo, hi
}
