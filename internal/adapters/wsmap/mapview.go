package wsmap

import (
	"time"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
)

// mapView is the server-side handle of the browser map.
type mapView struct {
	session   *Session
	bounds    domain.GeoRegion
	listeners map[ports.MapEvent]map[uint64]func()
	removed   bool
}

func (v *mapView) Bounds() domain.GeoRegion {
	v.session.mu.Lock()
	defer v.session.mu.Unlock()
	return v.bounds
}

func (v *mapView) AddNavigationControl(position string) {
	v.session.send(Message{Type: MsgAddControl, Position: position})
}

func (v *mapView) On(event ports.MapEvent, fn func()) func() {
	s := v.session
	s.mu.Lock()
	s.listenSeq++
	id := s.listenSeq
	if v.listeners[event] == nil {
		v.listeners[event] = make(map[uint64]func())
	}
	v.listeners[event][id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(v.listeners[event], id)
	}
}

func (v *mapView) NewMarker(at domain.GeoPoint, style ports.MarkerStyle) ports.Marker {
	s := v.session
	m := &marker{session: s, id: s.newID("m")}

	s.mu.Lock()
	s.markers[m.id] = m
	s.mu.Unlock()

	s.send(Message{Type: MsgAddMarker, Marker: m.id, Center: &at, Color: style.Color})
	return m
}

func (v *mapView) FlyTo(center domain.GeoPoint, zoom float64, duration time.Duration) {
	v.session.send(Message{
		Type:       MsgFlyTo,
		Center:     &center,
		Zoom:       &zoom,
		DurationMS: duration.Milliseconds(),
	})
}

// Remove releases the browser map. Listeners registered on the view are
// dropped with it.
func (v *mapView) Remove() {
	s := v.session
	s.mu.Lock()
	if v.removed {
		s.mu.Unlock()
		return
	}
	v.removed = true
	v.listeners = make(map[ports.MapEvent]map[uint64]func())
	if s.view == v {
		s.view = nil
	}
	s.mu.Unlock()

	s.send(Message{Type: MsgRemoveMap})
}

// marker is the server-side handle of one browser marker.
type marker struct {
	session *Session
	id      string
	click   func()
}

func (m *marker) SetPosition(at domain.GeoPoint) {
	m.session.send(Message{Type: MsgMoveMarker, Marker: m.id, Center: &at})
}

func (m *marker) OnClick(fn func()) {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()
	m.click = fn
}

func (m *marker) OffClick() {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()
	m.click = nil
}

func (m *marker) Remove() {
	s := m.session
	s.mu.Lock()
	_, live := s.markers[m.id]
	delete(s.markers, m.id)
	m.click = nil
	s.mu.Unlock()

	if live {
		s.send(Message{Type: MsgRemoveMarker, Marker: m.id})
	}
}
