// Package metrics provides Prometheus-based metrics collection for portprobe.
// Collectors live in a private registry that can be written out in the text
// exposition format for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace for all portprobe metrics
	namespace = "portprobe"

	// Subsystems
	subsystemScan  = "scan"
	subsystemProbe = "probe"
)

// Recorder receives scan and probe events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ScanStarted(ports int)
	ScanFinished(status string, duration time.Duration, open int)
	ProbeStarted()
	ProbeFinished(outcome string, duration time.Duration)
}

// Ensure that PrometheusMetrics implements Recorder.
var _ Recorder = (*PrometheusMetrics)(nil)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	portsQueued  prometheus.Counter
	openPorts    prometheus.Gauge

	// Probe metrics
	probesTotal    *prometheus.CounterVec
	probeDuration  *prometheus.HistogramVec
	probesInFlight prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
	}

	pm.initScanMetrics()
	pm.initProbeMetrics()
	pm.registerMetrics()

	return pm
}

// initScanMetrics initializes scan-related metrics
func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans by completion status",
		},
		[]string{"status"},
	)

	pm.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scans in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
	)

	pm.portsQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "ports_queued_total",
			Help:      "Total number of ports queued for probing",
		},
	)

	pm.openPorts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "open_ports",
			Help:      "Number of open ports found by the last scan",
		},
	)
}

// initProbeMetrics initializes per-port probe metrics
func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of probes by outcome",
		},
		[]string{"outcome"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of single probes in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"outcome"},
	)

	pm.probesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "in_flight",
			Help:      "Number of probes currently holding a socket",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.scansTotal)
	pm.registry.MustRegister(pm.scanDuration)
	pm.registry.MustRegister(pm.portsQueued)
	pm.registry.MustRegister(pm.openPorts)

	pm.registry.MustRegister(pm.probesTotal)
	pm.registry.MustRegister(pm.probeDuration)
	pm.registry.MustRegister(pm.probesInFlight)
}

// GetRegistry returns the Prometheus registry backing these collectors
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// ScanStarted records a scan over the given number of ports.
func (pm *PrometheusMetrics) ScanStarted(ports int) {
	pm.portsQueued.Add(float64(ports))
}

// ScanFinished records scan completion.
func (pm *PrometheusMetrics) ScanFinished(status string, duration time.Duration, open int) {
	pm.scansTotal.WithLabelValues(status).Inc()
	pm.scanDuration.Observe(duration.Seconds())
	pm.openPorts.Set(float64(open))
}

// ProbeStarted marks a probe as holding a socket slot.
func (pm *PrometheusMetrics) ProbeStarted() {
	pm.probesInFlight.Inc()
}

// ProbeFinished records a probe outcome and releases its in-flight slot.
func (pm *PrometheusMetrics) ProbeFinished(outcome string, duration time.Duration) {
	pm.probesInFlight.Dec()
	pm.probesTotal.WithLabelValues(outcome).Inc()
	pm.probeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// WriteTextfile writes all collected metrics to path in the Prometheus text
// format. The file is written atomically.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, pm.registry)
}

// Nop discards all events.
type Nop struct{}

func (Nop) ScanStarted(int)                         {}
func (Nop) ScanFinished(string, time.Duration, int) {}
func (Nop) ProbeStarted()                           {}
func (Nop) ProbeFinished(string, time.Duration)     {}
