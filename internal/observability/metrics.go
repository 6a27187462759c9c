package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles Prometheus metrics used across the meshdb store and capture path.
type Metrics struct {
	namespace string

	packetsHandled    prometheus.Counter
	malformedPackets  prometheus.Counter
	storeErrors       prometheus.Counter
	nodeUpserts       prometheus.Counter
	positionsStored   prometheus.Counter
	telemetryStored   *prometheus.CounterVec
	messagesStored    prometheus.Counter
	resolverLookups   *prometheus.CounterVec
	snapshotsAssembly prometheus.Counter
	queueDepth        prometheus.Gauge
	droppedMessages   prometheus.Counter

	healthy atomic.Bool
}

// MetricsOption customises metrics creation.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	namespace string
	registry  prometheus.Registerer
}

// WithNamespace overrides the metric namespace (default: meshdb).
func WithNamespace(ns string) MetricsOption {
	return func(cfg *metricsConfig) {
		if ns != "" {
			cfg.namespace = ns
		}
	}
}

// WithRegistry overrides the Prometheus registerer (useful for tests).
func WithRegistry(reg prometheus.Registerer) MetricsOption {
	return func(cfg *metricsConfig) {
		if reg != nil {
			cfg.registry = reg
		}
	}
}

// NewMetrics initialises and registers meshdb metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := metricsConfig{
		namespace: "meshdb",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Metrics{
		namespace: cfg.namespace,
		packetsHandled: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "packets_handled_total",
			Help:      "Total number of decoded packets routed through the writer.",
		}),
		malformedPackets: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "malformed_packets_total",
			Help:      "Total number of packets or sub-payloads skipped for missing discriminator fields.",
		}),
		storeErrors: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "store_errors_total",
			Help:      "Total number of storage errors.",
		}),
		nodeUpserts: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "node_upserts_total",
			Help:      "Total number of nodes rows upserted.",
		}),
		positionsStored: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "positions_stored_total",
			Help:      "Total number of position fixes stored.",
		}),
		telemetryStored: promauto.With(cfg.registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "telemetry_stored_total",
			Help:      "Total number of telemetry rows stored, partitioned by subtype.",
		}, []string{"subtype"}),
		messagesStored: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "messages_stored_total",
			Help:      "Total number of text messages appended.",
		}),
		resolverLookups: promauto.With(cfg.registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "resolver_lookups_total",
			Help:      "Total number of identifier resolutions, partitioned by outcome.",
		}, []string{"outcome"}),
		snapshotsAssembly: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "snapshots_assembled_total",
			Help:      "Total number of consolidated node snapshots assembled.",
		}),
		queueDepth: promauto.With(cfg.registry).NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "capture_queue_depth",
			Help:      "Current number of MQTT messages waiting in the capture queue.",
		}),
		droppedMessages: promauto.With(cfg.registry).NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of MQTT messages dropped before decode.",
		}),
	}

	m.healthy.Store(true)
	return m
}

// IncPacketsHandled increments the handled packet counter.
func (m *Metrics) IncPacketsHandled() {
	if m == nil {
		return
	}
	m.packetsHandled.Inc()
}

// IncMalformedPackets notes a skipped sub-write due to malformed input.
func (m *Metrics) IncMalformedPackets() {
	if m == nil {
		return
	}
	m.malformedPackets.Inc()
}

// IncStoreErrors increments the store error counter and marks the service unhealthy.
func (m *Metrics) IncStoreErrors() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
	m.healthy.Store(false)
}

// IncNodeUpsert notes a nodes row upsert.
func (m *Metrics) IncNodeUpsert() {
	if m == nil {
		return
	}
	m.nodeUpserts.Inc()
}

// IncPositionStored notes a persisted position fix.
func (m *Metrics) IncPositionStored() {
	if m == nil {
		return
	}
	m.positionsStored.Inc()
}

// IncTelemetryStored notes a persisted telemetry row for the given subtype.
func (m *Metrics) IncTelemetryStored(subtype string) {
	if m == nil {
		return
	}
	m.telemetryStored.WithLabelValues(subtype).Inc()
}

// IncMessageStored notes an appended text message.
func (m *Metrics) IncMessageStored() {
	if m == nil {
		return
	}
	m.messagesStored.Inc()
}

// ObserveResolverLookup records a resolution outcome: "none", "single" or "multiple".
func (m *Metrics) ObserveResolverLookup(candidates int) {
	if m == nil {
		return
	}
	outcome := "none"
	switch {
	case candidates == 1:
		outcome = "single"
	case candidates > 1:
		outcome = "multiple"
	}
	m.resolverLookups.WithLabelValues(outcome).Inc()
}

// IncSnapshotAssembled notes an assembled snapshot.
func (m *Metrics) IncSnapshotAssembled() {
	if m == nil {
		return
	}
	m.snapshotsAssembly.Inc()
}

// ObserveQueueDepth tracks the capture queue depth.
func (m *Metrics) ObserveQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// IncDroppedMessages notes an MQTT message dropped before decode.
func (m *Metrics) IncDroppedMessages() {
	if m == nil {
		return
	}
	m.droppedMessages.Inc()
}

// Healthy reports whether recent operations have seen errors.
func (m *Metrics) Healthy() bool {
	if m == nil {
		return true
	}
	return m.healthy.Load()
}

// MarkHealthy resets the healthy flag.
func (m *Metrics) MarkHealthy() {
	if m == nil {
		return
	}
	m.healthy.Store(true)
}
