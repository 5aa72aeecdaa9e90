package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/pkg/geospatial"
)

func TestDistance(t *testing.T) {
	notreDame := domain.GeoPoint{Lat: 48.8530, Lon: 2.3499}
	eiffel := domain.GeoPoint{Lat: 48.8584, Lon: 2.2945}

	d := geospatial.Distance(notreDame, eiffel)
	if d < 4000 || d > 4200 {
		t.Errorf("expected about 4.1km, got %.0fm", d)
	}
	if geospatial.Distance(eiffel, eiffel) != 0 {
		t.Error("expected zero distance to self")
	}
}

func TestAround(t *testing.T) {
	center := domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	r := geospatial.Around(center, 500)

	if !r.Valid() {
		t.Fatalf("expected a valid region, got %+v", r)
	}
	if !r.Contains(center) {
		t.Error("region must contain its center")
	}
	north := domain.GeoPoint{Lat: r.North, Lon: center.Lon}
	if d := geospatial.Distance(center, north); math.Abs(d-500) > 5 {
		t.Errorf("expected north edge 500m away, got %.1fm", d)
	}
	east := domain.GeoPoint{Lat: center.Lat, Lon: r.East}
	if d := geospatial.Distance(center, east); math.Abs(d-500) > 5 {
		t.Errorf("expected east edge 500m away, got %.1fm", d)
	}
}

func TestAround_ClipsAtPole(t *testing.T) {
	r := geospatial.Around(domain.GeoPoint{Lat: 89.999, Lon: 0}, 5000)
	if r.North != 90 || r.West != -180 || r.East != 180 {
		t.Errorf("expected clipped region, got %+v", r)
	}
}
