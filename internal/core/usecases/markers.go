package usecases

import (
	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
)

const (
	colorPublic = "#0D9488"
	colorOther  = "#1E40AF"
)

// MarkerManager owns the restroom markers of one map. Markers belong to
// exactly one generation: Reconcile destroys the whole previous generation
// before installing the next one.
//
// MarkerManager is not safe for concurrent use; the coordinator's event loop
// serializes every call.
type MarkerManager struct {
	factory  ports.MarkerFactory
	onSelect ports.SelectFunc
	markers  []ports.Marker
	gen      uint64
}

// NewMarkerManager creates a MarkerManager drawing on factory. onSelect is
// invoked with the normalized detail of a clicked marker.
func NewMarkerManager(factory ports.MarkerFactory, onSelect ports.SelectFunc) *MarkerManager {
	return &MarkerManager{factory: factory, onSelect: onSelect}
}

// Reconcile replaces the current markers with one marker per record that has
// usable coordinates. Records without coordinates are skipped. It returns the
// number of markers installed.
func (m *MarkerManager) Reconcile(pois []domain.RawPOI) int {
	m.Clear()

	for _, poi := range pois {
		pt, ok := poi.Point()
		if !ok {
			continue
		}

		marker := m.factory.NewMarker(pt, markerStyle(poi))
		detail := Normalize(poi)
		gen := m.gen
		marker.OnClick(func() {
			// A click queued before its marker was removed is ignored.
			if gen != m.gen || m.onSelect == nil {
				return
			}
			m.onSelect(detail)
		})
		m.markers = append(m.markers, marker)
	}

	return len(m.markers)
}

// Clear removes every live marker without installing replacements.
func (m *MarkerManager) Clear() {
	for _, marker := range m.markers {
		marker.OffClick()
		marker.Remove()
	}
	m.markers = nil
	m.gen++
}

// Len returns the number of live markers.
func (m *MarkerManager) Len() int {
	return len(m.markers)
}

func markerStyle(poi domain.RawPOI) ports.MarkerStyle {
	if poi.Type == "public" {
		return ports.MarkerStyle{Color: colorPublic}
	}
	return ports.MarkerStyle{Color: colorOther}
}
