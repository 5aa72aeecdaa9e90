package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are finite and inside WGS 84 range.
func (p GeoPoint) Valid() bool {
	return finite(p.Lat) && finite(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lon >= -180 && p.Lon <= 180
}

// GeoRegion is a bounding box in degrees. A valid region has West < East and
// South < North.
type GeoRegion struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Valid reports whether the region satisfies the strict bound ordering.
func (r GeoRegion) Valid() bool {
	return finite(r.West) && finite(r.South) && finite(r.East) && finite(r.North) &&
		r.West < r.East && r.South < r.North
}

// Contains reports whether p lies inside the region (bounds inclusive).
func (r GeoRegion) Contains(p GeoPoint) bool {
	return p.Lon >= r.West && p.Lon <= r.East && p.Lat >= r.South && p.Lat <= r.North
}

// Center returns the midpoint of the region.
func (r GeoRegion) Center() GeoPoint {
	return GeoPoint{Lat: (r.South + r.North) / 2, Lon: (r.West + r.East) / 2}
}

// String renders the region as "west,south,east,north".
func (r GeoRegion) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", coord(r.West), coord(r.South), coord(r.East), coord(r.North))
}

// ParseGeoRegion parses "west,south,east,north".
func ParseGeoRegion(s string) (GeoRegion, error) {
	var r GeoRegion
	n, err := fmt.Sscanf(s, "%g,%g,%g,%g", &r.West, &r.South, &r.East, &r.North)
	if err != nil || n != 4 {
		return GeoRegion{}, fmt.Errorf("bbox %q: expected west,south,east,north", s)
	}
	if !r.Valid() {
		return GeoRegion{}, fmt.Errorf("bbox %q: west must be < east and south < north", s)
	}
	return r, nil
}

func coord(v float64) string {
	return fmt.Sprintf("%g", v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
