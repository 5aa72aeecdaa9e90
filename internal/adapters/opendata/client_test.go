package opendata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/toiletmap/internal/adapters/opendata"
	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/pkg/config"
)

var parisView = domain.GeoRegion{West: 2.30, South: 48.85, East: 2.40, North: 48.90}

const scenarioBody = `{"total_count":1,"results":[{"type":"public","adresse":"Rue Exemple","arrondissement":"4","horaire":"24/7","acces_pmr":"Oui","geo_point_2d":{"lon":2.35,"lat":48.87}}]}`

func newClient(t *testing.T, srv *httptest.Server, style string) *opendata.Client {
	t.Helper()
	c, err := opendata.New(config.OpenDataConfig{
		BaseURL:     srv.URL + "/records",
		FilterStyle: style,
		ResultLimit: 100,
		Timeout:     2 * time.Second,
	}, opendata.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchInRegion_BBoxQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("bbox"); got != "2.3,48.85,2.4,48.9" {
			t.Errorf("unexpected bbox %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("unexpected limit %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(scenarioBody))
	}))
	defer srv.Close()

	pois, err := newClient(t, srv, config.FilterBBox).FetchInRegion(context.Background(), parisView, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 1 {
		t.Fatalf("expected 1 record, got %d", len(pois))
	}
	p := pois[0]
	if p.Address != "Rue Exemple" || p.Accessible != "Oui" || p.District != "4" {
		t.Errorf("unexpected record %+v", p)
	}
	pt, ok := p.Point()
	if !ok || pt != (domain.GeoPoint{Lat: 48.87, Lon: 2.35}) {
		t.Errorf("unexpected point %+v (ok=%v)", pt, ok)
	}
}

func TestFetchInRegion_InBBoxQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "in_bbox(geo_point_2d,48.85,2.3,48.9,2.4)"
		if got := r.URL.Query().Get("where"); got != want {
			t.Errorf("expected where %q, got %q", want, got)
		}
		if r.URL.Query().Has("bbox") {
			t.Error("bbox parameter should not be sent with in_bbox filter")
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	pois, err := newClient(t, srv, config.FilterInBBox).FetchInRegion(context.Background(), parisView, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 0 {
		t.Errorf("expected empty result, got %d", len(pois))
	}
}

func TestFetchInRegion_LimitClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("expected limit clamped to 100, got %q", got)
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	if _, err := newClient(t, srv, config.FilterBBox).FetchInRegion(context.Background(), parisView, 5000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchInRegion_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		op     string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, "status"},
		{"not found", http.StatusNotFound, ``, "status"},
		{"malformed json", http.StatusOK, `{"results":[`, "decode"},
		{"missing results", http.StatusOK, `{"total_count":3}`, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv, config.FilterBBox).FetchInRegion(context.Background(), parisView, 10)
			if !errors.Is(err, domain.ErrFetchFailure) {
				t.Fatalf("expected ErrFetchFailure, got %v", err)
			}
			var fe *domain.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %T", err)
			}
			if fe.Op != tt.op {
				t.Errorf("expected op %s, got %s", tt.op, fe.Op)
			}
		})
	}
}

func TestFetchInRegion_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newClient(t, srv, config.FilterBBox)
	srv.Close()

	_, err := c.FetchInRegion(context.Background(), parisView, 10)
	if !errors.Is(err, domain.ErrFetchFailure) {
		t.Errorf("expected ErrFetchFailure, got %v", err)
	}
}

func TestFetchInRegion_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c, err := opendata.New(config.OpenDataConfig{
		BaseURL:     srv.URL,
		FilterStyle: config.FilterBBox,
		ResultLimit: 10,
	}, opendata.WithHTTPClient(srv.Client()), opendata.WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.FetchInRegion(context.Background(), parisView, 10); err != nil {
		t.Fatalf("first call should pass the limiter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.FetchInRegion(ctx, parisView, 10); !errors.Is(err, domain.ErrFetchFailure) {
		t.Errorf("expected throttled call to fail, got %v", err)
	}
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("offset"); got != "200" {
			t.Errorf("expected offset 200, got %q", got)
		}
		_, _ = w.Write([]byte(scenarioBody))
	}))
	defer srv.Close()

	pois, total, err := newClient(t, srv, config.FilterInBBox).FetchPage(context.Background(), 200, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 1 || total != 1 {
		t.Errorf("expected 1 record of 1, got %d of %d", len(pois), total)
	}
}

func TestFetchNearest_DistanceQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if want := "within_distance(geo_point_2d,geom'POINT(2.3522 48.8566)',501m)"; q.Get("where") != want {
			t.Errorf("expected where %q, got %q", want, q.Get("where"))
		}
		if want := "distance(geo_point_2d,geom'POINT(2.3522 48.8566)')"; q.Get("order_by") != want {
			t.Errorf("expected order_by %q, got %q", want, q.Get("order_by"))
		}
		if got := q.Get("limit"); got != "5" {
			t.Errorf("unexpected limit %q", got)
		}
		_, _ = w.Write([]byte(scenarioBody))
	}))
	defer srv.Close()

	center := domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	pois, err := newClient(t, srv, config.FilterBBox).FetchNearest(context.Background(), center, 500.2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 1 || pois[0].Address != "Rue Exemple" {
		t.Errorf("unexpected records %+v", pois)
	}
}

func TestFetchNearest_StatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, config.FilterInBBox).FetchNearest(context.Background(), domain.GeoPoint{Lat: 48.85, Lon: 2.35}, 500, 10)
	if !errors.Is(err, domain.ErrFetchFailure) {
		t.Errorf("expected ErrFetchFailure, got %v", err)
	}
}
