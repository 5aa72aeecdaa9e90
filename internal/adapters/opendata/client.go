// Package opendata queries the records endpoint of the public restroom dataset.
package opendata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/pkg/config"
	"github.com/samirrijal/toiletmap/internal/pkg/metrics"
	"github.com/samirrijal/toiletmap/internal/pkg/telemetry"
)

const (
	maxLimit     = 100
	maxBodyBytes = 8 << 20
)

// Client implements ports.POIFetcher and ports.NearestFetcher against the open-data HTTP API.
type Client struct {
	endpoint *url.URL
	style    string
	limit    int
	http     *http.Client
	limiter  *rate.Limiter
	tracer   trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter replaces the outgoing request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a client for the records endpoint described by cfg.
func New(cfg config.OpenDataConfig, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse opendata base url: %w", err)
	}
	if cfg.FilterStyle != config.FilterBBox && cfg.FilterStyle != config.FilterInBBox {
		return nil, fmt.Errorf("unknown filter style %q", cfg.FilterStyle)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	c := &Client{
		endpoint: u,
		style:    cfg.FilterStyle,
		limit:    clamp(cfg.ResultLimit),
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		tracer:   telemetry.Tracer("toiletmap/opendata"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// recordsPage is the envelope returned by the records endpoint.
type recordsPage struct {
	TotalCount int              `json:"total_count"`
	Results    *[]domain.RawPOI `json:"results"`
}

// FetchInRegion returns up to limit records inside region. A non-positive
// limit falls back to the configured result cap.
func (c *Client) FetchInRegion(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
	if limit <= 0 {
		limit = c.limit
	}
	limit = clamp(limit)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	switch c.style {
	case config.FilterInBBox:
		q.Set("where", fmt.Sprintf("in_bbox(geo_point_2d,%s,%s,%s,%s)",
			num(region.South), num(region.West), num(region.North), num(region.East)))
	default:
		q.Set("bbox", region.String())
	}

	ctx, span := c.tracer.Start(ctx, "opendata.FetchInRegion", trace.WithAttributes(
		telemetry.AttrSource.String("opendata"),
		telemetry.AttrBBox.String(region.String()),
		telemetry.AttrLimit.Int(limit),
	))
	defer span.End()

	page, err := c.get(ctx, "region", q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(telemetry.AttrRecords.Int(len(*page.Results)))
	return *page.Results, nil
}

// FetchNearest returns up to limit records within radiusMeters of center,
// ranked by the service by distance.
func (c *Client) FetchNearest(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.RawPOI, error) {
	if limit <= 0 {
		limit = c.limit
	}
	limit = clamp(limit)

	point := fmt.Sprintf("geom'POINT(%s %s)'", num(center.Lon), num(center.Lat))
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("where", fmt.Sprintf("within_distance(geo_point_2d,%s,%sm)",
		point, strconv.FormatFloat(math.Ceil(radiusMeters), 'f', 0, 64)))
	q.Set("order_by", fmt.Sprintf("distance(geo_point_2d,%s)", point))

	ctx, span := c.tracer.Start(ctx, "opendata.FetchNearest", trace.WithAttributes(
		telemetry.AttrSource.String("opendata"),
		telemetry.AttrLimit.Int(limit),
	))
	defer span.End()

	page, err := c.get(ctx, "nearest", q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(telemetry.AttrRecords.Int(len(*page.Results)))
	return *page.Results, nil
}

// FetchPage returns one page of the whole dataset along with the total
// record count reported by the service (0 when it reports none).
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]domain.RawPOI, int, error) {
	limit = clamp(limit)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	ctx, span := c.tracer.Start(ctx, "opendata.FetchPage", trace.WithAttributes(
		telemetry.AttrSource.String("opendata"),
		telemetry.AttrOffset.Int(offset),
		telemetry.AttrLimit.Int(limit),
	))
	defer span.End()

	page, err := c.get(ctx, "page", q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, 0, err
	}
	span.SetAttributes(telemetry.AttrRecords.Int(len(*page.Results)))
	return *page.Results, page.TotalCount, nil
}

func (c *Client) get(ctx context.Context, op string, q url.Values) (page *recordsPage, err error) {
	start := time.Now()
	defer func() {
		metrics.OpenDataRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.OpenDataErrors.WithLabelValues(op).Inc()
			slog.WarnContext(ctx, "opendata query failed", "op", op, "error", err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.FetchError{Op: "request", Err: fmt.Errorf("rate limit: %w", err)}
	}

	u := *c.endpoint
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &domain.FetchError{Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Op: "request", Err: fmt.Errorf("GET %s: %w", c.endpoint.Host, err)}
	}
	defer resp.Body.Close()
	trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrHTTPStatus.Int(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{Op: "status", Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	page = &recordsPage{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(page); err != nil {
		return nil, &domain.FetchError{Op: "decode", Status: resp.StatusCode, Err: err}
	}
	if page.Results == nil {
		return nil, &domain.FetchError{Op: "payload", Status: resp.StatusCode, Err: errors.New("response has no results list")}
	}
	return page, nil
}

func clamp(limit int) int {
	if limit < 1 || limit > maxLimit {
		return maxLimit
	}
	return limit
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
