package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
	"github.com/samirrijal/toiletmap/internal/pkg/metrics"
)

// State is the lifecycle stage of a map session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateIdle
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const userMarkerColor = "#2563EB"

// CoordinatorConfig holds the camera and query settings of a map session.
type CoordinatorConfig struct {
	SessionID     string
	Style         string
	Center        domain.GeoPoint
	Zoom          float64
	ResultLimit   int
	LocateZoom    float64
	FlyDuration   time.Duration
	LocateTimeout time.Duration
}

// CoordinatorDeps are the collaborators of a map session. Publisher, OnSelect
// and Logger are optional.
type CoordinatorDeps struct {
	Maps      ports.MapFactory
	Fetcher   ports.POIFetcher
	Location  ports.LocationProvider
	Notifier  ports.Notifier
	Prompt    ports.CredentialPrompt
	Publisher ports.EventPublisher
	OnSelect  ports.SelectFunc
	Logger    *slog.Logger
}

// Snapshot is a consistent view of the coordinator state.
type Snapshot struct {
	State         State
	Generation    uint64
	Markers       int
	Ready         bool
	HasUserMarker bool
}

// Coordinator drives one map session. Every map callback, fetch result and
// location reply is executed on a single event-loop goroutine, which is the
// only writer of the marker set, the user marker and the camera.
//
// Each fetch is tagged with a generation at issue time; a result is applied
// only if no later fetch has been issued since.
type Coordinator struct {
	cfg  CoordinatorConfig
	deps CoordinatorDeps
	log  *slog.Logger

	events chan func()
	stop   chan struct{}
	done   chan struct{}

	// lifecycle guards the hand-off between Run and Close.
	lifecycle sync.Mutex
	running   bool
	closed    bool

	// Owned by the event loop.
	ctx         context.Context
	state       State
	ready       bool
	view        ports.MapView
	markers     *MarkerManager
	userMarker  ports.Marker
	detach      []func()
	generation  uint64
	liveMarkers int
}

// NewCoordinator creates a coordinator. Call Run to start its event loop.
func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps) *Coordinator {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 100
	}
	if cfg.LocateZoom <= 0 {
		cfg.LocateZoom = 15
	}
	if cfg.FlyDuration <= 0 {
		cfg.FlyDuration = 2 * time.Second
	}
	if cfg.LocateTimeout <= 0 {
		cfg.LocateTimeout = 10 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		log:    logger.With("session", cfg.SessionID),
		events: make(chan func(), 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    context.Background(),
	}
}

// Run executes the event loop until Close is called or ctx is cancelled,
// then tears the session down. Run returns at once if Close came first; no
// queued event is executed in that case.
func (c *Coordinator) Run(ctx context.Context) {
	c.lifecycle.Lock()
	if c.closed || c.running {
		c.lifecycle.Unlock()
		return
	}
	c.running = true
	c.lifecycle.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.ctx = ctx

	defer close(c.done)
	defer cancel()
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case fn := <-c.events:
			// stop wins over events that were queued alongside it.
			select {
			case <-c.stop:
				return
			default:
			}
			fn()
		}
	}
}

// Close terminates the session and waits for teardown to finish. Nothing
// runs on the session after Close returns.
func (c *Coordinator) Close() {
	c.lifecycle.Lock()
	if c.closed {
		c.lifecycle.Unlock()
		<-c.done
		return
	}
	c.closed = true
	close(c.stop)
	running := c.running
	if !running {
		// The loop never ran, so nothing was constructed to tear down.
		c.state = StateTerminated
		close(c.done)
	}
	c.lifecycle.Unlock()

	if running {
		<-c.done
	}
}

// Done is closed once the session has been torn down.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Start opens the map with credential, or asks for one when it is empty.
func (c *Coordinator) Start(credential string) {
	c.enqueue(func() { c.openMap(credential) })
}

// SupplyCredential opens the map once a credential has been entered.
func (c *Coordinator) SupplyCredential(credential string) {
	c.enqueue(func() { c.openMap(credential) })
}

// Locate asks the platform for the device position once and recenters on it.
func (c *Coordinator) Locate() {
	c.enqueue(c.locate)
}

// Snapshot returns the current state as seen by the event loop.
func (c *Coordinator) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !c.enqueue(func() { reply <- c.snapshot() }) {
		return Snapshot{State: StateTerminated}
	}
	select {
	case s := <-reply:
		return s
	case <-c.done:
		return Snapshot{State: StateTerminated}
	}
}

// enqueue schedules fn on the event loop. It reports false once the session
// has terminated.
func (c *Coordinator) enqueue(fn func()) bool {
	select {
	case <-c.done:
		return false
	case <-c.stop:
		return false
	default:
	}

	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	case <-c.stop:
		return false
	}
}

// post wraps fn so that calling it from any goroutine runs fn on the loop.
func (c *Coordinator) post(fn func()) func() {
	return func() { c.enqueue(fn) }
}

func (c *Coordinator) snapshot() Snapshot {
	s := Snapshot{
		State:         c.state,
		Generation:    c.generation,
		Ready:         c.ready,
		HasUserMarker: c.userMarker != nil,
	}
	if c.markers != nil {
		s.Markers = c.markers.Len()
	}
	return s
}

func (c *Coordinator) openMap(credential string) {
	if c.state == StateTerminated || c.view != nil {
		return
	}
	if credential == "" {
		c.deps.Prompt.RequestCredential()
		return
	}

	view, err := c.deps.Maps.NewMap(ports.MapOptions{
		Token:  credential,
		Style:  c.cfg.Style,
		Center: c.cfg.Center,
		Zoom:   c.cfg.Zoom,
	})
	if err != nil {
		c.log.Warn("map construction failed", "error", err)
		c.notify(domain.NotifyError, "Map Error", "Unable to load the map, check your access token")
		c.deps.Prompt.RequestCredential()
		return
	}

	c.view = view
	c.markers = NewMarkerManager(serialFactory{factory: view, post: c.post}, c.selected)

	view.AddNavigationControl("top-right")
	c.detach = append(c.detach,
		view.On(ports.EventReady, c.post(c.onReady)),
		view.On(ports.EventMoveEnd, c.post(c.refresh)),
		view.On(ports.EventZoomEnd, c.post(c.refresh)),
	)
	c.log.Debug("map constructed", "center", c.cfg.Center, "zoom", c.cfg.Zoom)
}

func (c *Coordinator) onReady() {
	if c.ready || c.view == nil || c.state == StateTerminated {
		return
	}
	c.ready = true
	c.refresh()
}

// refresh starts a new fetch cycle for the current viewport.
func (c *Coordinator) refresh() {
	if !c.ready || c.view == nil || c.state == StateTerminated {
		return
	}

	region := ResolveRegion(c.view)
	c.generation++
	gen := c.generation
	c.state = StateLoading

	ctx := c.ctx
	limit := c.cfg.ResultLimit
	c.log.Debug("fetch cycle issued", "generation", gen, "bbox", region.String())

	go func() {
		pois, err := c.deps.Fetcher.FetchInRegion(ctx, region, limit)
		c.enqueue(func() { c.apply(gen, region, pois, err) })
	}()
}

func (c *Coordinator) apply(gen uint64, region domain.GeoRegion, pois []domain.RawPOI, err error) {
	if c.state == StateTerminated {
		return
	}

	if gen != c.generation {
		metrics.FetchCycles.WithLabelValues(string(domain.CycleStale)).Inc()
		c.log.Debug("dropping superseded fetch result",
			"generation", gen, "latest", c.generation, "error", domain.ErrStaleResult)
		c.publishCycle(gen, domain.CycleStale, region, c.liveMarkers)
		return
	}

	c.state = StateIdle

	if err != nil {
		metrics.FetchCycles.WithLabelValues(string(domain.CycleFailed)).Inc()
		c.log.Warn("fetch cycle failed", "generation", gen, "bbox", region.String(), "error", err)
		c.notify(domain.NotifyError, "Loading Error", "Unable to load restrooms for this area")
		c.publishCycle(gen, domain.CycleFailed, region, c.liveMarkers)
		return
	}

	n := c.markers.Reconcile(pois)
	metrics.LiveMarkers.Add(float64(n - c.liveMarkers))
	c.liveMarkers = n
	metrics.FetchCycles.WithLabelValues(string(domain.CycleApplied)).Inc()
	if skipped := len(pois) - n; skipped > 0 {
		metrics.InvalidGeometry.Add(float64(skipped))
	}
	c.log.Debug("fetch cycle applied", "generation", gen, "records", len(pois), "markers", n)
	c.publishCycle(gen, domain.CycleApplied, region, n)
}

func (c *Coordinator) selected(detail domain.ToiletDetail) {
	if c.state == StateTerminated {
		return
	}
	if c.deps.OnSelect != nil {
		c.deps.OnSelect(detail)
	}
	if c.deps.Publisher != nil {
		err := c.deps.Publisher.PublishSelection(c.ctx, &domain.SelectionEvent{
			SessionID: c.cfg.SessionID,
			Toilet:    detail,
			Time:      time.Now(),
		})
		if err != nil {
			c.log.Warn("publish selection failed", "error", err)
		}
	}
}

func (c *Coordinator) locate() {
	if c.view == nil || c.state == StateTerminated {
		return
	}

	ctx := c.ctx
	timeout := c.cfg.LocateTimeout

	go func() {
		lctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		pt, err := c.deps.Location.CurrentPosition(lctx)
		switch {
		case err != nil && errors.Is(err, context.DeadlineExceeded):
			err = &domain.LocationError{Reason: "timeout", Err: err}
		case err != nil && !errors.Is(err, domain.ErrLocationFailure):
			err = &domain.LocationError{Reason: "unavailable", Err: err}
		case err == nil && !pt.Valid():
			err = &domain.LocationError{Reason: "unavailable", Err: fmt.Errorf("invalid position %v", pt)}
		}
		c.enqueue(func() { c.applyLocation(pt, err) })
	}()
}

func (c *Coordinator) applyLocation(pt domain.GeoPoint, err error) {
	if c.view == nil || c.state == StateTerminated {
		return
	}

	if err != nil {
		metrics.LocationRequests.WithLabelValues("failed").Inc()
		c.log.Info("location request failed", "error", err)
		c.notify(domain.NotifyError, "Location Error", "Unable to get your current location")
		return
	}

	metrics.LocationRequests.WithLabelValues("ok").Inc()
	if c.userMarker == nil {
		c.userMarker = c.view.NewMarker(pt, ports.MarkerStyle{Color: userMarkerColor})
	} else {
		c.userMarker.SetPosition(pt)
	}
	c.view.FlyTo(pt, c.cfg.LocateZoom, c.cfg.FlyDuration)
}

// teardown releases markers and listeners before the map itself.
func (c *Coordinator) teardown() {
	c.state = StateTerminated

	if c.markers != nil {
		c.markers.Clear()
	}
	metrics.LiveMarkers.Sub(float64(c.liveMarkers))
	c.liveMarkers = 0

	if c.userMarker != nil {
		c.userMarker.Remove()
		c.userMarker = nil
	}
	for _, off := range c.detach {
		off()
	}
	c.detach = nil

	if c.view != nil {
		c.view.Remove()
		c.view = nil
	}
	c.log.Debug("map session terminated", "generation", c.generation)
}

func (c *Coordinator) notify(level domain.NotificationLevel, title, message string) {
	c.deps.Notifier.Notify(domain.Notification{Level: level, Title: title, Message: message})
}

func (c *Coordinator) publishCycle(gen uint64, outcome domain.CycleOutcome, region domain.GeoRegion, markers int) {
	if c.deps.Publisher == nil {
		return
	}
	err := c.deps.Publisher.PublishCycle(c.ctx, &domain.CycleEvent{
		SessionID:  c.cfg.SessionID,
		Generation: gen,
		Outcome:    outcome,
		Region:     region,
		Markers:    markers,
		Time:       time.Now(),
	})
	if err != nil {
		c.log.Warn("publish cycle event failed", "error", err)
	}
}

// serialFactory makes marker click handlers run on the event loop.
type serialFactory struct {
	factory ports.MarkerFactory
	post    func(func()) func()
}

func (f serialFactory) NewMarker(at domain.GeoPoint, style ports.MarkerStyle) ports.Marker {
	return serialMarker{Marker: f.factory.NewMarker(at, style), post: f.post}
}

type serialMarker struct {
	ports.Marker
	post func(func()) func()
}

func (m serialMarker) OnClick(fn func()) {
	m.Marker.OnClick(m.post(fn))
}
