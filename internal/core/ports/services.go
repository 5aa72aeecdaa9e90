package ports

import (
	"context"
	"time"

	"github.com/samirrijal/toiletmap/internal/core/domain"
)

// POIFetcher queries restroom records inside a region.
type POIFetcher interface {
	FetchInRegion(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error)
}

// NearestFetcher returns the records within radiusMeters of center, closest
// first. Sources that can rank by distance implement it next to POIFetcher.
type NearestFetcher interface {
	FetchNearest(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.RawPOI, error)
}

// LocationProvider answers one-shot device position requests.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (domain.GeoPoint, error)
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(n domain.Notification)
}

// CredentialPrompt asks the user for a map access token.
type CredentialPrompt interface {
	RequestCredential()
}

// SelectFunc receives the detail of a tapped marker.
type SelectFunc func(detail domain.ToiletDetail)

// EventPublisher publishes map session events to a message broker.
type EventPublisher interface {
	PublishSelection(ctx context.Context, event *domain.SelectionEvent) error
	PublishCycle(ctx context.Context, event *domain.CycleEvent) error
}

// DatasetPager pages through the whole restroom dataset. total is 0 when
// the source does not report it.
type DatasetPager interface {
	FetchPage(ctx context.Context, offset, limit int) (pois []domain.RawPOI, total int, err error)
}

// ToiletRepository persists the mirrored dataset.
type ToiletRepository interface {
	POIFetcher
	// UpsertBatch stores pois and stamps them as seen at seenAt.
	UpsertBatch(ctx context.Context, pois []domain.RawPOI, seenAt time.Time) (int, error)
	// PruneBefore deletes records not seen since before.
	PruneBefore(ctx context.Context, before time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}
