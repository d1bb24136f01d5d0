// Package observe provides application-wide observability primitives for
// Voxbridge: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxbridge metrics.
const meterName = "github.com/voxbridge/voxbridge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ModelConnectDuration tracks how long the model websocket takes from
	// dial to the open signal.
	ModelConnectDuration metric.Float64Histogram

	// SessionDuration tracks the lifetime of one call bridge session, from
	// stream start to teardown.
	SessionDuration metric.Float64Histogram

	// --- Counters ---

	// InboundFrames counts caller audio frames accepted from the telephony
	// leg.
	InboundFrames metric.Int64Counter

	// OutboundChunks counts assistant audio chunks forwarded toward the
	// telephony leg.
	OutboundChunks metric.Int64Counter

	// DroppedChunks counts caller audio chunks discarded under backpressure.
	DroppedChunks metric.Int64Counter

	// ModelEvents counts inbound model events. Use with attribute:
	//   attribute.String("type", ...)
	ModelEvents metric.Int64Counter

	// --- Error counters ---

	// ModelErrors counts model protocol and transport errors. Use with
	// attribute: attribute.String("kind", ...)
	ModelErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live call bridge sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for websocket connect and call lifetimes.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ModelConnectDuration, err = m.Float64Histogram("voxbridge.model.connect.duration",
		metric.WithDescription("Latency from model websocket dial to open."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("voxbridge.session.duration",
		metric.WithDescription("Lifetime of one call bridge session."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.InboundFrames, err = m.Int64Counter("voxbridge.audio.inbound_frames",
		metric.WithDescription("Caller audio frames accepted from the telephony leg."),
	); err != nil {
		return nil, err
	}
	if met.OutboundChunks, err = m.Int64Counter("voxbridge.audio.outbound_chunks",
		metric.WithDescription("Assistant audio chunks forwarded toward the telephony leg."),
	); err != nil {
		return nil, err
	}
	if met.DroppedChunks, err = m.Int64Counter("voxbridge.audio.dropped_chunks",
		metric.WithDescription("Caller audio chunks discarded under backpressure."),
	); err != nil {
		return nil, err
	}
	if met.ModelEvents, err = m.Int64Counter("voxbridge.model.events",
		metric.WithDescription("Inbound model events by type."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ModelErrors, err = m.Int64Counter("voxbridge.model.errors",
		metric.WithDescription("Model protocol and transport errors by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxbridge.active_sessions",
		metric.WithDescription("Number of live call bridge sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxbridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordModelEvent is a convenience method that records one inbound model
// event with its type attribute.
func (m *Metrics) RecordModelEvent(ctx context.Context, eventType string) {
	m.ModelEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordModelError is a convenience method that records a model error counter
// increment.
func (m *Metrics) RecordModelError(ctx context.Context, kind string) {
	m.ModelErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
