package wsmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
	"github.com/samirrijal/toiletmap/internal/core/usecases"
	"github.com/samirrijal/toiletmap/internal/pkg/metrics"
)

const pingInterval = 30 * time.Second

// Conn is the subset of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// Options configures a session.
type Options struct {
	Coordinator usecases.CoordinatorConfig
	// Credential is the map provider token. When empty the browser is asked
	// for one.
	Credential string
	Fetcher    ports.POIFetcher
	Publisher  ports.EventPublisher
	Logger     *slog.Logger
}

// Session bridges one WebSocket connection and one Coordinator.
type Session struct {
	id    string
	conn  Conn
	log   *slog.Logger
	coord *usecases.Coordinator

	credential string

	writeMu sync.Mutex

	mu        sync.Mutex
	view      *mapView
	markers   map[string]*marker
	pending   map[string]chan Message
	nextID    uint64
	listenSeq uint64
}

// NewSession creates a session for conn. Call Serve to run it.
func NewSession(conn Conn, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:      uuid.NewString(),
		conn:    conn,
		markers: make(map[string]*marker),
		pending: make(map[string]chan Message),
	}
	s.log = logger.With("session", s.id)

	cfg := opts.Coordinator
	cfg.SessionID = s.id
	s.coord = usecases.NewCoordinator(cfg, usecases.CoordinatorDeps{
		Maps:      s,
		Fetcher:   opts.Fetcher,
		Location:  s,
		Notifier:  s,
		Prompt:    s,
		Publisher: opts.Publisher,
		OnSelect:  s.selected,
		Logger:    logger,
	})
	s.credential = opts.Credential
	return s
}

// ID returns the session identifier sent to the browser.
func (s *Session) ID() string { return s.id }

// Serve runs the session until the connection fails or ctx is cancelled.
// The coordinator is torn down before Serve returns.
func (s *Session) Serve(ctx context.Context) {
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.coord.Run(ctx)
	defer s.coord.Close()

	go s.keepAlive(ctx)

	s.log.Info("map session opened")
	s.send(Message{Type: MsgSession, Session: s.id})
	s.coord.Start(s.credential)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Info("map session closed", "reason", err)
			return
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.send(Message{Type: MsgError, Error: "invalid JSON"})
			continue
		}
		s.dispatch(m)
	}
}

func (s *Session) dispatch(m Message) {
	switch m.Type {
	case MsgCredential:
		s.coord.SupplyCredential(m.Token)
	case MsgReady:
		s.fire(ports.EventReady, m.Bounds)
	case MsgMoveEnd:
		s.fire(ports.EventMoveEnd, m.Bounds)
	case MsgZoomEnd:
		s.fire(ports.EventZoomEnd, m.Bounds)
	case MsgClick:
		s.click(m.Marker)
	case MsgLocate:
		s.coord.Locate()
	case MsgLocation:
		s.deliverLocation(m)
	case MsgCloseDetail:
		s.log.Debug("detail dismissed")
	default:
		s.send(Message{Type: MsgError, Error: "unknown message type: " + m.Type})
	}
}

// fire records the reported viewport and notifies the map listeners. Events
// without a usable viewport are rejected so no region is resolved from it.
func (s *Session) fire(event ports.MapEvent, bounds *domain.GeoRegion) {
	if bounds == nil || !bounds.Valid() {
		s.send(Message{Type: MsgError, Error: fmt.Sprintf("%s requires valid bounds", event)})
		return
	}

	s.mu.Lock()
	v := s.view
	if v == nil {
		s.mu.Unlock()
		return
	}
	v.bounds = *bounds
	fns := make([]func(), 0, len(v.listeners[event]))
	for _, fn := range v.listeners[event] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Session) click(id string) {
	s.mu.Lock()
	var fn func()
	if m, ok := s.markers[id]; ok {
		fn = m.click
	}
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *Session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// send writes m to the browser. Write errors end the session through the
// read loop, so they are only logged here.
func (s *Session) send(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		s.log.Error("encode message", "type", m.Type, "error", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug("write message", "type", m.Type, "error", err)
	}
}

func (s *Session) newID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

// --- ports.MapFactory ---

// NewMap asks the browser to construct the map.
func (s *Session) NewMap(opts ports.MapOptions) (ports.MapView, error) {
	if opts.Token == "" {
		return nil, errors.New("map access token is empty")
	}
	if !opts.Center.Valid() {
		return nil, fmt.Errorf("invalid map center %+v", opts.Center)
	}

	v := &mapView{
		session:   s,
		listeners: make(map[ports.MapEvent]map[uint64]func()),
	}
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()

	zoom := opts.Zoom
	center := opts.Center
	s.send(Message{
		Type:   MsgInitMap,
		Token:  opts.Token,
		Style:  opts.Style,
		Center: &center,
		Zoom:   &zoom,
	})
	return v, nil
}

// --- ports.Notifier ---

// Notify shows a transient message in the browser.
func (s *Session) Notify(n domain.Notification) {
	s.send(Message{Type: MsgNotify, Notification: &n})
}

// --- ports.CredentialPrompt ---

// RequestCredential asks the browser to collect a map access token.
func (s *Session) RequestCredential() {
	s.send(Message{Type: MsgPromptCredential})
}

// --- ports.LocationProvider ---

// CurrentPosition asks the browser for the device position once and waits
// for its reply or for ctx to end.
func (s *Session) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	id := uuid.NewString()
	reply := make(chan Message, 1)

	s.mu.Lock()
	s.pending[id] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	s.send(Message{Type: MsgRequestLocation, Request: id})

	select {
	case m := <-reply:
		if m.Error != "" {
			return domain.GeoPoint{}, &domain.LocationError{Reason: locationReason(m.Error)}
		}
		if m.Lat == nil || m.Lon == nil {
			return domain.GeoPoint{}, &domain.LocationError{Reason: "unavailable", Err: errors.New("reply without coordinates")}
		}
		return domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon}, nil
	case <-ctx.Done():
		return domain.GeoPoint{}, ctx.Err()
	}
}

func (s *Session) deliverLocation(m Message) {
	s.mu.Lock()
	reply, ok := s.pending[m.Request]
	s.mu.Unlock()

	if !ok {
		s.log.Debug("location reply for unknown request", "request", m.Request)
		return
	}
	select {
	case reply <- m:
	default:
	}
}

func locationReason(code string) string {
	switch code {
	case "denied", "timeout", "unavailable":
		return code
	default:
		return "unavailable"
	}
}

// selected forwards a tapped restroom to the browser's detail card.
func (s *Session) selected(d domain.ToiletDetail) {
	s.send(Message{Type: MsgSelect, Toilet: &d, Directions: d.DirectionsURL()})
}
