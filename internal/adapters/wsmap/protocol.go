// Package wsmap runs a map session over a WebSocket. The browser renders the
// map and reports its events; the session implements the map, marker,
// location, notification and credential capabilities by exchanging JSON
// messages with it.
package wsmap

import "github.com/samirrijal/toiletmap/internal/core/domain"

// Client → server message types.
const (
	MsgCredential  = "credential"
	MsgReady       = "ready"
	MsgMoveEnd     = "moveend"
	MsgZoomEnd     = "zoomend"
	MsgClick       = "click"
	MsgLocate      = "locate"
	MsgLocation    = "location"
	MsgCloseDetail = "close_detail"
)

// Server → client message types.
const (
	MsgSession          = "session"
	MsgInitMap          = "init_map"
	MsgAddControl       = "add_control"
	MsgAddMarker        = "add_marker"
	MsgMoveMarker       = "move_marker"
	MsgRemoveMarker     = "remove_marker"
	MsgFlyTo            = "fly_to"
	MsgNotify           = "notify"
	MsgPromptCredential = "prompt_credential"
	MsgRequestLocation  = "request_location"
	MsgSelect           = "select"
	MsgRemoveMap        = "remove_map"
	MsgError            = "error"
)

// Message is the envelope of every frame in both directions. Only the fields
// relevant to Type are set.
type Message struct {
	Type string `json:"type"`

	// client → server
	Token   string            `json:"token,omitempty"`
	Bounds  *domain.GeoRegion `json:"bounds,omitempty"`
	Marker  string            `json:"marker,omitempty"`
	Request string            `json:"request,omitempty"`
	Lat     *float64          `json:"lat,omitempty"`
	Lon     *float64          `json:"lon,omitempty"`
	Error   string            `json:"error,omitempty"`

	// server → client
	Session      string               `json:"session,omitempty"`
	Style        string               `json:"style,omitempty"`
	Center       *domain.GeoPoint     `json:"center,omitempty"`
	Zoom         *float64             `json:"zoom,omitempty"`
	Position     string               `json:"position,omitempty"`
	Color        string               `json:"color,omitempty"`
	DurationMS   int64                `json:"duration_ms,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Toilet       *domain.ToiletDetail `json:"toilet,omitempty"`
	Directions   string               `json:"directions,omitempty"`
}
