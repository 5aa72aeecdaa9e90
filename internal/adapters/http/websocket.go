package http

import (
	"context"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/toiletmap/internal/adapters/wsmap"
)

// MapSessionHandler returns a handler that runs one map session per
// WebSocket connection. The browser renders what the session sends and
// reports viewport changes, taps and device positions back.
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		opts := deps.MapSession
		if opts.Logger != nil {
			opts.Logger = opts.Logger.With("remote", c.RemoteAddr().String())
		}

		wsmap.NewSession(c, opts).Serve(context.Background())
	}
}
