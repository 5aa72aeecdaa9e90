package domain

import (
	"fmt"
	"time"
)

// AccessibleToken is the upstream acces_pmr value meaning wheelchair accessible.
const AccessibleToken = "Oui"

// LonLat is the geo_point_2d object of an open-data record. Both fields are
// pointers so that a missing coordinate is not mistaken for 0.
type LonLat struct {
	Lon *float64 `json:"lon"`
	Lat *float64 `json:"lat"`
}

// RawPOI is one public restroom record as returned by the open-data feed.
// Every field is optional upstream.
type RawPOI struct {
	Type       string  `json:"type"`
	Address    string  `json:"adresse"`
	District   string  `json:"arrondissement"`
	Hours      string  `json:"horaire"`
	Accessible string  `json:"acces_pmr"`
	GeoPoint2D *LonLat `json:"geo_point_2d"`
}

// Point returns the record location. ok is false when the location object or
// either coordinate is missing or not finite.
func (p RawPOI) Point() (GeoPoint, bool) {
	if p.GeoPoint2D == nil || p.GeoPoint2D.Lon == nil || p.GeoPoint2D.Lat == nil {
		return GeoPoint{}, false
	}
	pt := GeoPoint{Lat: *p.GeoPoint2D.Lat, Lon: *p.GeoPoint2D.Lon}
	if !finite(pt.Lat) || !finite(pt.Lon) {
		return GeoPoint{}, false
	}
	return pt, true
}

// ToiletDetail is the normalized record handed to the selection callback.
type ToiletDetail struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Hours      string  `json:"horaire"`
	Accessible bool    `json:"accessible"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	District   string  `json:"arrondissement"`
}

// DirectionsURL returns a Google Maps directions link to the restroom.
func (d ToiletDetail) DirectionsURL() string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%g,%g", d.Lat, d.Lng)
}

// NearbyToilet is a restroom with its distance in meters from a query point.
type NearbyToilet struct {
	ToiletDetail
	Distance float64 `json:"distance"`
}

// NotificationLevel classifies a user-facing message.
type NotificationLevel string

const (
	NotifyInfo  NotificationLevel = "info"
	NotifyError NotificationLevel = "error"
)

// Notification is a transient message shown to the user.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
}

// CycleOutcome is how a fetch cycle ended.
type CycleOutcome string

const (
	CycleApplied CycleOutcome = "applied"
	CycleFailed  CycleOutcome = "failed"
	CycleStale   CycleOutcome = "stale"
)

// CycleEvent describes one fetch-and-reconcile cycle of a map session.
type CycleEvent struct {
	SessionID  string       `json:"session_id"`
	Generation uint64       `json:"generation"`
	Outcome    CycleOutcome `json:"outcome"`
	Region     GeoRegion    `json:"region"`
	Markers    int          `json:"markers"`
	Time       time.Time    `json:"time"`
}

// SelectionEvent is published when a user taps a restroom marker.
type SelectionEvent struct {
	SessionID string       `json:"session_id"`
	Toilet    ToiletDetail `json:"toilet"`
	Time      time.Time    `json:"time"`
}
