package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/usecases"
)

// toiletResponse is a restroom with its directions link.
type toiletResponse struct {
	domain.ToiletDetail
	Directions string `json:"directions"`
}

// ToiletsHandler returns the restrooms inside a bounding box.
// Query: bbox=west,south,east,north (required), limit=1..100 (optional).
func ToiletsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Query("bbox"))
		if raw == "" {
			return errBadRequest(c, "bbox query parameter is required")
		}
		region, err := domain.ParseGeoRegion(raw)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit := c.QueryInt("limit", 0)
		if limit < 0 {
			return errBadRequest(c, "limit must be positive")
		}

		details, err := deps.Toilets.InRegion(c.UserContext(), region, limit)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("toilet query failed", "bbox", region.String(), "error", err)
			if errors.Is(err, domain.ErrFetchFailure) {
				return errBadGateway(c, "restroom data source is unavailable")
			}
			return errInternal(c, err.Error())
		}

		out := make([]toiletResponse, 0, len(details))
		for _, d := range details {
			out = append(out, toiletResponse{ToiletDetail: d, Directions: d.DirectionsURL()})
		}
		return c.JSON(fiber.Map{
			"data":  out,
			"count": len(out),
			"bbox":  region.String(),
		})
	}
}

// nearbyResponse is a restroom with its distance and directions link.
type nearbyResponse struct {
	domain.NearbyToilet
	Directions string `json:"directions"`
}

// NearbyToiletsHandler returns the restrooms closest to a point.
// Query: lat, lon (required), radius in meters (default 500), limit (optional).
func NearbyToiletsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
		if errLat != nil || errLon != nil {
			return errBadRequest(c, "lat and lon are required")
		}
		center := domain.GeoPoint{Lat: lat, Lon: lon}
		if !center.Valid() {
			return errBadRequest(c, "lat must be -90..90 and lon -180..180")
		}
		radius := c.QueryFloat("radius", 500)
		if radius < usecases.MinNearbyRadius || radius > usecases.MaxNearbyRadius {
			return errBadRequest(c, fmt.Sprintf("radius must be between %.0f and %.0f meters",
				usecases.MinNearbyRadius, usecases.MaxNearbyRadius))
		}
		limit := c.QueryInt("limit", 0)
		if limit < 0 {
			return errBadRequest(c, "limit must be positive")
		}

		nearby, err := deps.Toilets.Nearby(c.UserContext(), center, radius, limit)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("nearby query failed", "lat", lat, "lon", lon, "error", err)
			if errors.Is(err, domain.ErrFetchFailure) {
				return errBadGateway(c, "restroom data source is unavailable")
			}
			return errInternal(c, err.Error())
		}

		out := make([]nearbyResponse, 0, len(nearby))
		for _, n := range nearby {
			out = append(out, nearbyResponse{NearbyToilet: n, Directions: n.DirectionsURL()})
		}
		return c.JSON(fiber.Map{
			"data":  out,
			"count": len(out),
		})
	}
}
