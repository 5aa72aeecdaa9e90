package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/toiletmap/internal/adapters/wsmap"
	"github.com/samirrijal/toiletmap/internal/core/usecases"
)

// Pinger is a dependency whose reachability is reported by /v1/ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Toilets *usecases.ToiletService
	// MapSession is the template every /ws/map session is created from.
	MapSession wsmap.Options
	// RateLimit is the number of requests per minute allowed per client IP.
	RateLimit int
	// LimiterStorage keeps rate limiter counters; in-memory when nil.
	LimiterStorage fiber.Storage
	NATS           *nats.Conn
	DB             Pinger
	Valkey         Pinger
}
