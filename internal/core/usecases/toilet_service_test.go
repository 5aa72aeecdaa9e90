package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/usecases"
)

func TestToiletService_InRegion(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			if region != parisView {
				t.Errorf("expected region %+v, got %+v", parisView, region)
			}
			return []domain.RawPOI{
				poi("Rue A", 2.35, 48.87),
				{Address: "Rue sans point"},
				poi("Rue B", 2.36, 48.88),
			}, nil
		},
	}

	svc := usecases.NewToiletService(fetcher, 50)
	details, err := svc.InRegion(context.Background(), parisView, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 restrooms, got %d", len(details))
	}
	if details[1].Name != "Rue B" {
		t.Errorf("expected Rue B, got %s", details[1].Name)
	}
}

func TestToiletService_InRegion_ClampLimit(t *testing.T) {
	var got []int
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			got = append(got, limit)
			return nil, nil
		},
	}

	svc := usecases.NewToiletService(fetcher, 20)
	for _, limit := range []int{0, -5, 7, 999} {
		_, _ = svc.InRegion(context.Background(), parisView, limit)
	}

	want := []int{20, 20, 7, 100}
	if len(got) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected limit %d, got %d", i, want[i], got[i])
		}
	}
}

func TestToiletService_InRegion_InvalidRegion(t *testing.T) {
	called := false
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			called = true
			return nil, nil
		},
	}

	svc := usecases.NewToiletService(fetcher, 20)
	_, err := svc.InRegion(context.Background(), domain.GeoRegion{West: 3, South: 48, East: 2, North: 49}, 10)
	if err == nil {
		t.Error("expected error for inverted region")
	}
	if called {
		t.Error("fetcher should not be called for an invalid region")
	}
}

func TestToiletService_InRegion_FetchFailure(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			return nil, &domain.FetchError{Op: "status", Status: 500, Err: errors.New("boom")}
		},
	}

	svc := usecases.NewToiletService(fetcher, 20)
	_, err := svc.InRegion(context.Background(), parisView, 10)
	if !errors.Is(err, domain.ErrFetchFailure) {
		t.Errorf("expected ErrFetchFailure, got %v", err)
	}
}

func TestToiletService_Nearby(t *testing.T) {
	center := domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	var gotLimit int
	var gotRegion domain.GeoRegion
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			gotRegion, gotLimit = region, limit
			return []domain.RawPOI{
				poi("Loin", 2.3580, 48.8566),       // ~425m east
				poi("Hors rayon", 2.3522, 48.8700), // ~1.5km north
				poi("Proche", 2.3530, 48.8566),     // ~60m east
				{Address: "Sans point"},
			}, nil
		},
	}

	svc := usecases.NewToiletService(fetcher, 20)
	got, err := svc.Nearby(context.Background(), center, 500, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != usecases.MaxResultLimit {
		t.Errorf("expected the region to be queried at %d, got %d", usecases.MaxResultLimit, gotLimit)
	}
	if !gotRegion.Contains(center) {
		t.Errorf("queried region %+v does not contain the center", gotRegion)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 restrooms within 500m, got %d", len(got))
	}
	if got[0].Name != "Proche" || got[1].Name != "Loin" {
		t.Errorf("expected closest first, got %s then %s", got[0].Name, got[1].Name)
	}
	if got[0].Distance <= 0 || got[0].Distance >= got[1].Distance {
		t.Errorf("unexpected distances %.1f, %.1f", got[0].Distance, got[1].Distance)
	}
}

func TestToiletService_Nearby_TruncatesToLimit(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			return []domain.RawPOI{
				poi("A", 2.3523, 48.8566),
				poi("B", 2.3524, 48.8566),
				poi("C", 2.3525, 48.8566),
			}, nil
		},
	}

	svc := usecases.NewToiletService(fetcher, 20)
	got, err := svc.Nearby(context.Background(), domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}, 1000, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "B" {
		t.Errorf("expected [A B], got %+v", got)
	}
}

func TestToiletService_Nearby_InvalidInput(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			t.Error("fetcher should not be called")
			return nil, nil
		},
	}
	svc := usecases.NewToiletService(fetcher, 20)
	paris := domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}

	tests := []struct {
		name   string
		center domain.GeoPoint
		radius float64
	}{
		{"latitude out of range", domain.GeoPoint{Lat: 95, Lon: 2}, 500},
		{"zero radius", paris, 0},
		{"sub-meter radius", paris, 0.5},
		{"radius too large", paris, 50000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Nearby(context.Background(), tc.center, tc.radius, 10); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// denseBlock lays n records on a line north of center, one every ~2.2m.
func denseBlock(center domain.GeoPoint, n int) []domain.RawPOI {
	pois := make([]domain.RawPOI, 0, n)
	for i := 1; i <= n; i++ {
		pois = append(pois, poi(fmt.Sprintf("R%03d", i), center.Lon, center.Lat+float64(i)*0.00002))
	}
	return pois
}

func TestToiletService_Nearby_SaturatedRegionKeepsClosest(t *testing.T) {
	center := domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	all := denseBlock(center, 150)

	var regions []domain.GeoRegion
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
			regions = append(regions, region)
			// Hand back the farthest records first, cut at the cap.
			var in []domain.RawPOI
			for _, p := range all {
				if pt, _ := p.Point(); region.Contains(pt) {
					in = append(in, p)
				}
			}
			for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
				in[i], in[j] = in[j], in[i]
			}
			if len(in) > limit {
				in = in[:limit]
			}
			return in, nil
		},
	}

	svc := usecases.NewToiletService(fetcher, 20)
	got, err := svc.Nearby(context.Background(), center, 500, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) < 2 {
		t.Errorf("expected the full region to be narrowed, got %d queries", len(regions))
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 restrooms, got %d", len(got))
	}
	for i, n := range got {
		if want := fmt.Sprintf("R%03d", i+1); n.Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, n.Name)
		}
	}
}

type nearestFetcher struct {
	mockFetcher
	nearestFn func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.RawPOI, error)
}

func (f *nearestFetcher) FetchNearest(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.RawPOI, error) {
	return f.nearestFn(ctx, center, radius, limit)
}

func TestToiletService_Nearby_UsesRankedSource(t *testing.T) {
	center := domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	var gotRadius float64
	var gotLimit int
	fetcher := &nearestFetcher{
		mockFetcher: mockFetcher{
			fetchFn: func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
				t.Error("box query should not be used when the source ranks by distance")
				return nil, nil
			},
		},
		nearestFn: func(ctx context.Context, c domain.GeoPoint, radius float64, limit int) ([]domain.RawPOI, error) {
			gotRadius, gotLimit = radius, limit
			return []domain.RawPOI{
				poi("Proche", 2.3530, 48.8566),
				poi("Proche", 2.3530, 48.8566),
				poi("Loin", 2.3580, 48.8566),
			}, nil
		},
	}

	svc := usecases.NewToiletService(fetcher, 20)
	got, err := svc.Nearby(context.Background(), center, 800, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRadius != 800 || gotLimit != 3 {
		t.Errorf("expected radius 800 and limit 3, got %v and %d", gotRadius, gotLimit)
	}
	if len(got) != 2 || got[0].Name != "Proche" || got[1].Name != "Loin" {
		t.Errorf("expected [Proche Loin] without duplicates, got %+v", got)
	}
}
