package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
)

// --- Fake map provider ---

type fakeMarker struct {
	view    *fakeView
	pos     domain.GeoPoint
	style   ports.MarkerStyle
	click   func()
	removed bool
}

func (m *fakeMarker) SetPosition(at domain.GeoPoint) {
	m.view.mu.Lock()
	defer m.view.mu.Unlock()
	m.pos = at
	m.view.log = append(m.view.log, "marker:move")
}

func (m *fakeMarker) OnClick(fn func()) {
	m.view.mu.Lock()
	defer m.view.mu.Unlock()
	m.click = fn
}

func (m *fakeMarker) OffClick() {
	m.view.mu.Lock()
	defer m.view.mu.Unlock()
	m.click = nil
	m.view.log = append(m.view.log, "marker:offclick")
}

func (m *fakeMarker) Remove() {
	m.view.mu.Lock()
	defer m.view.mu.Unlock()
	m.removed = true
	m.view.log = append(m.view.log, "marker:remove")
}

// Click simulates a tap; it does nothing once the listener is detached.
func (m *fakeMarker) Click() {
	m.view.mu.Lock()
	fn := m.click
	m.view.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *fakeMarker) clickHandler() func() {
	m.view.mu.Lock()
	defer m.view.mu.Unlock()
	return m.click
}

type listener struct {
	fn       func()
	detached bool
}

type fakeView struct {
	mu        sync.Mutex
	opts      ports.MapOptions
	bounds    domain.GeoRegion
	markers   []*fakeMarker
	listeners map[ports.MapEvent][]*listener
	controls  []string
	flights   []domain.GeoPoint
	removed   bool
	log       []string
}

func newFakeView(bounds domain.GeoRegion) *fakeView {
	return &fakeView{bounds: bounds, listeners: make(map[ports.MapEvent][]*listener)}
}

func (v *fakeView) Bounds() domain.GeoRegion {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds
}

func (v *fakeView) SetBounds(b domain.GeoRegion) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bounds = b
}

func (v *fakeView) NewMarker(at domain.GeoPoint, style ports.MarkerStyle) ports.Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	m := &fakeMarker{view: v, pos: at, style: style}
	v.markers = append(v.markers, m)
	v.log = append(v.log, "marker:add")
	return m
}

func (v *fakeView) AddNavigationControl(position string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls = append(v.controls, position)
}

func (v *fakeView) On(event ports.MapEvent, fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	l := &listener{fn: fn}
	v.listeners[event] = append(v.listeners[event], l)
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		l.detached = true
		v.log = append(v.log, "listener:off")
	}
}

func (v *fakeView) FlyTo(center domain.GeoPoint, zoom float64, duration time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flights = append(v.flights, center)
}

func (v *fakeView) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed = true
	v.log = append(v.log, "map:remove")
}

// Fire delivers event to every attached listener.
func (v *fakeView) Fire(event ports.MapEvent) {
	v.mu.Lock()
	var fns []func()
	for _, l := range v.listeners[event] {
		if !l.detached {
			fns = append(fns, l.fn)
		}
	}
	v.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Live returns the markers that have not been removed.
func (v *fakeView) Live() []*fakeMarker {
	v.mu.Lock()
	defer v.mu.Unlock()
	var live []*fakeMarker
	for _, m := range v.markers {
		if !m.removed {
			live = append(live, m)
		}
	}
	return live
}

func (v *fakeView) Created() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.markers)
}

func (v *fakeView) Flights() []domain.GeoPoint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.GeoPoint(nil), v.flights...)
}

func (v *fakeView) Log() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.log...)
}

type fakeMaps struct {
	mu    sync.Mutex
	view  *fakeView
	err   error
	calls int
}

func (f *fakeMaps) NewMap(opts ports.MapOptions) (ports.MapView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.view.opts = opts
	return f.view, nil
}

func (f *fakeMaps) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- Fake collaborators ---

type mockFetcher struct {
	fetchFn func(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error)
}

func (m *mockFetcher) FetchInRegion(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, region, limit)
	}
	return nil, nil
}

type fetchResult struct {
	pois []domain.RawPOI
	err  error
}

type pendingFetch struct {
	region domain.GeoRegion
	limit  int
	reply  chan fetchResult
}

// gatedFetcher blocks every call until the test resolves it.
type gatedFetcher struct {
	calls chan *pendingFetch
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{calls: make(chan *pendingFetch, 16)}
}

func (g *gatedFetcher) FetchInRegion(ctx context.Context, region domain.GeoRegion, limit int) ([]domain.RawPOI, error) {
	p := &pendingFetch{region: region, limit: limit, reply: make(chan fetchResult, 1)}
	g.calls <- p
	r := <-p.reply
	return r.pois, r.err
}

func (g *gatedFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-g.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (g *gatedFetcher) expectNone(t *testing.T) {
	t.Helper()
	select {
	case p := <-g.calls:
		t.Fatalf("unexpected fetch for %s", p.region)
	case <-time.After(50 * time.Millisecond):
	}
}

type mockLocation struct {
	positionFn func(ctx context.Context) (domain.GeoPoint, error)
}

func (m *mockLocation) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	if m.positionFn != nil {
		return m.positionFn(ctx)
	}
	return domain.GeoPoint{}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (n *recordingNotifier) Notify(item domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
}

func (n *recordingNotifier) All() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.items...)
}

type countingPrompt struct {
	mu    sync.Mutex
	count int
}

func (p *countingPrompt) RequestCredential() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
}

func (p *countingPrompt) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type recordingPublisher struct {
	mu         sync.Mutex
	selections []domain.SelectionEvent
	cycles     []domain.CycleEvent
}

func (p *recordingPublisher) PublishSelection(ctx context.Context, e *domain.SelectionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selections = append(p.selections, *e)
	return nil
}

func (p *recordingPublisher) PublishCycle(ctx context.Context, e *domain.CycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles = append(p.cycles, *e)
	return nil
}

func (p *recordingPublisher) Outcomes() []domain.CycleOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.CycleOutcome
	for _, c := range p.cycles {
		out = append(out, c.Outcome)
	}
	return out
}

// --- Helpers ---

func ptr(v float64) *float64 { return &v }

func poi(address string, lon, lat float64) domain.RawPOI {
	return domain.RawPOI{
		Type:       "SANISETTE",
		Address:    address,
		GeoPoint2D: &domain.LonLat{Lon: ptr(lon), Lat: ptr(lat)},
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
