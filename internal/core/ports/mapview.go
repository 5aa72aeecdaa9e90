package ports

import (
	"time"

	"github.com/samirrijal/toiletmap/internal/core/domain"
)

// MapEvent names a map lifecycle signal.
type MapEvent string

const (
	EventReady   MapEvent = "ready"
	EventMoveEnd MapEvent = "moveend"
	EventZoomEnd MapEvent = "zoomend"
)

// MapOptions configures a new map instance.
type MapOptions struct {
	Token  string
	Style  string
	Center domain.GeoPoint
	Zoom   float64
}

// MarkerStyle is the visual hint for a marker.
type MarkerStyle struct {
	Color string
}

// MapFactory constructs map instances.
type MapFactory interface {
	NewMap(opts MapOptions) (MapView, error)
}

// BoundsReader exposes the current visible viewport.
type BoundsReader interface {
	Bounds() domain.GeoRegion
}

// MarkerFactory creates markers on a map.
type MarkerFactory interface {
	NewMarker(at domain.GeoPoint, style MarkerStyle) Marker
}

// MapView is the map-provider capability set consumed by the core.
type MapView interface {
	BoundsReader
	MarkerFactory

	// AddNavigationControl adds zoom/rotate controls at the given corner.
	AddNavigationControl(position string)
	// On registers fn for event and returns a function that detaches it.
	On(event MapEvent, fn func()) (off func())
	// FlyTo animates the camera to center.
	FlyTo(center domain.GeoPoint, zoom float64, duration time.Duration)
	// Remove releases the map instance.
	Remove()
}

// Marker is an opaque handle to one point drawn on the map.
type Marker interface {
	SetPosition(at domain.GeoPoint)
	OnClick(fn func())
	OffClick()
	Remove()
}
