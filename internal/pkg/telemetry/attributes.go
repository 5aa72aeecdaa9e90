package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used for instrumentation.
const (
	AttrBBox       = attribute.Key("toiletmap.bbox")
	AttrLimit      = attribute.Key("toiletmap.limit")
	AttrOffset     = attribute.Key("toiletmap.offset")
	AttrRecords    = attribute.Key("toiletmap.records")
	AttrHTTPStatus = attribute.Key("http.status_code")
	AttrSource     = attribute.Key("toiletmap.source")
)
