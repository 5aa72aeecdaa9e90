package usecases

import (
	"context"
	"fmt"
	"sort"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
	"github.com/samirrijal/toiletmap/internal/pkg/geospatial"
)

const (
	// MaxResultLimit is the largest number of records requested per query.
	MaxResultLimit = 100
	// MinNearbyRadius and MaxNearbyRadius bound the search radius of Nearby,
	// in meters.
	MinNearbyRadius = 1.0
	MaxNearbyRadius = 5000.0
)

// ToiletService answers region queries outside of a map session.
type ToiletService struct {
	fetcher      ports.POIFetcher
	defaultLimit int
}

// NewToiletService creates a new ToiletService.
func NewToiletService(fetcher ports.POIFetcher, defaultLimit int) *ToiletService {
	return &ToiletService{fetcher: fetcher, defaultLimit: ClampLimit(defaultLimit, MaxResultLimit)}
}

// InRegion returns the normalized restrooms inside region. Records without
// usable coordinates are left out.
func (s *ToiletService) InRegion(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.ToiletDetail, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("invalid region %s", region)
	}
	limit = ClampLimit(limit, s.defaultLimit)

	pois, err := s.fetcher.FetchInRegion(ctx, region, limit)
	if err != nil {
		return nil, err
	}
	return NormalizeAll(pois), nil
}

// Nearby returns the restrooms within radiusMeters of center, closest first.
func (s *ToiletService) Nearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.NearbyToilet, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("invalid point %v,%v", center.Lat, center.Lon)
	}
	if radiusMeters < MinNearbyRadius || radiusMeters > MaxNearbyRadius {
		return nil, fmt.Errorf("radius must be between %.0f and %.0f meters", MinNearbyRadius, MaxNearbyRadius)
	}
	limit = ClampLimit(limit, s.defaultLimit)

	var pois []domain.RawPOI
	var err error
	if nf, ok := s.fetcher.(ports.NearestFetcher); ok {
		pois, err = nf.FetchNearest(ctx, center, radiusMeters, limit)
	} else {
		pois, err = s.nearbyCandidates(ctx, center, radiusMeters)
	}
	if err != nil {
		return nil, err
	}

	type key struct {
		id       string
		lat, lng float64
	}
	seen := make(map[key]bool, len(pois))
	out := make([]domain.NearbyToilet, 0, len(pois))
	for _, d := range NormalizeAll(pois) {
		k := key{d.ID, d.Lat, d.Lng}
		if seen[k] {
			continue
		}
		seen[k] = true

		dist := geospatial.Distance(center, domain.GeoPoint{Lat: d.Lat, Lon: d.Lng})
		if dist <= radiusMeters {
			out = append(out, domain.NearbyToilet{ToiletDetail: d, Distance: dist})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// nearbyCandidates collects records around center from a source that only
// answers box queries. A box that comes back full may have lost records to
// the cap, so the radius is halved until a box comes back complete. Every
// record within that last radius is then known; the larger full boxes only
// contribute records beyond it.
func (s *ToiletService) nearbyCandidates(ctx context.Context, center domain.GeoPoint, radiusMeters float64) ([]domain.RawPOI, error) {
	var outer []domain.RawPOI
	for r := radiusMeters; ; r /= 2 {
		pois, err := s.fetcher.FetchInRegion(ctx, geospatial.Around(center, r), MaxResultLimit)
		if err != nil {
			return nil, err
		}
		if len(pois) < MaxResultLimit || r/2 < MinNearbyRadius {
			return append(pois, outer...), nil
		}
		outer = append(outer, pois...)
	}
}

// ClampLimit bounds limit to 1..MaxResultLimit, using fallback when limit is unset.
func ClampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit <= 0 || limit > MaxResultLimit {
		return MaxResultLimit
	}
	return limit
}
