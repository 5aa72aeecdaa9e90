package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/pkg/telemetry"
)

// ToiletRepo implements ports.ToiletRepository and ports.NearestFetcher with pgx.
type ToiletRepo struct {
	db *DB
}

// NewToiletRepo creates a new ToiletRepo.
func NewToiletRepo(db *DB) *ToiletRepo {
	return &ToiletRepo{db: db}
}

const upsertToilet = `
	INSERT INTO toilets (adresse, type, arrondissement, horaire, acces_pmr, location, seen_at)
	VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8)
	ON CONFLICT (adresse, type, arrondissement) DO UPDATE
	SET horaire = EXCLUDED.horaire, acces_pmr = EXCLUDED.acces_pmr,
	    location = EXCLUDED.location, seen_at = EXCLUDED.seen_at
`

// UpsertBatch inserts or refreshes many records using pgx.Batch. Records
// without usable coordinates are stored with a NULL location.
func (r *ToiletRepo) UpsertBatch(ctx context.Context, pois []domain.RawPOI, seenAt time.Time) (int, error) {
	if len(pois) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range pois {
		var lon, lat *float64
		if pt, ok := p.Point(); ok {
			lon, lat = &pt.Lon, &pt.Lat
		}
		batch.Queue(upsertToilet, p.Address, p.Type, p.District, p.Hours, p.Accessible, lon, lat, seenAt)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pois {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("batch exec: %w", err)
		}
	}
	return len(pois), nil
}

// FetchInRegion returns mirrored records whose location lies inside region.
func (r *ToiletRepo) FetchInRegion(ctx context.Context, region domain.GeoRegion, limit int) (pois []domain.RawPOI, err error) {
	ctx, span := telemetry.Tracer("toiletmap/postgres").Start(ctx, "postgres.FetchInRegion", trace.WithAttributes(
		telemetry.AttrSource.String("postgres"),
		telemetry.AttrBBox.String(region.String()),
		telemetry.AttrLimit.Int(limit),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "query failed")
		} else {
			span.SetAttributes(telemetry.AttrRecords.Int(len(pois)))
		}
		span.End()
	}()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT type, adresse, arrondissement, horaire, acces_pmr,
		       ST_X(location::geometry) AS lon,
		       ST_Y(location::geometry) AS lat
		FROM toilets
		WHERE location IS NOT NULL
		  AND ST_Intersects(location, ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography)
		ORDER BY adresse
		LIMIT $5
	`, region.West, region.South, region.East, region.North, limit)
	if err != nil {
		return nil, &domain.FetchError{Op: "query", Err: err}
	}
	return scanPOIs(rows)
}

// FetchNearest returns up to limit mirrored records within radiusMeters of
// center, closest first, using the GiST index for the distance ordering.
func (r *ToiletRepo) FetchNearest(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) (pois []domain.RawPOI, err error) {
	ctx, span := telemetry.Tracer("toiletmap/postgres").Start(ctx, "postgres.FetchNearest", trace.WithAttributes(
		telemetry.AttrSource.String("postgres"),
		telemetry.AttrLimit.Int(limit),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "query failed")
		} else {
			span.SetAttributes(telemetry.AttrRecords.Int(len(pois)))
		}
		span.End()
	}()

	rows, err := r.db.Pool.Query(ctx, `
		WITH origin AS (
			SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography AS pt
		)
		SELECT type, adresse, arrondissement, horaire, acces_pmr,
		       ST_X(location::geometry) AS lon,
		       ST_Y(location::geometry) AS lat
		FROM toilets, origin
		WHERE location IS NOT NULL
		  AND ST_DWithin(location, origin.pt, $3)
		ORDER BY location <-> origin.pt
		LIMIT $4
	`, center.Lon, center.Lat, radiusMeters, limit)
	if err != nil {
		return nil, &domain.FetchError{Op: "query", Err: err}
	}
	return scanPOIs(rows)
}

func scanPOIs(rows pgx.Rows) ([]domain.RawPOI, error) {
	defer rows.Close()

	pois := []domain.RawPOI{}
	for rows.Next() {
		var p domain.RawPOI
		var lon, lat float64
		if err := rows.Scan(&p.Type, &p.Address, &p.District, &p.Hours, &p.Accessible, &lon, &lat); err != nil {
			return nil, &domain.FetchError{Op: "query", Err: err}
		}
		p.GeoPoint2D = &domain.LonLat{Lon: &lon, Lat: &lat}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.FetchError{Op: "query", Err: err}
	}
	return pois, nil
}

// PruneBefore deletes records that were not refreshed since before.
func (r *ToiletRepo) PruneBefore(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM toilets WHERE seen_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune toilets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Count returns the number of mirrored records.
func (r *ToiletRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM toilets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count toilets: %w", err)
	}
	return n, nil
}
