package scanning

import (
	"context"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portprobe/internal/logging"
	"github.com/anstrom/portprobe/internal/metrics"
	"github.com/anstrom/portprobe/internal/ports"
	"github.com/anstrom/portprobe/internal/probe"
)

// Prober probes a single port. *probe.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr, port uint16, connectTimeout time.Duration) probe.Result
}

// Scanner fans probes out over a port set under a concurrency bound.
type Scanner struct {
	prober  Prober
	metrics metrics.Recorder
	logger  *logging.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMetrics records scan and probe events to r.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Scanner) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithLogger sets the scanner's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner creates a scanner. A nil prober uses probe.New(nil).
func NewScanner(prober Prober, opts ...Option) *Scanner {
	if prober == nil {
		prober = probe.New(nil)
	}
	s := &Scanner{
		prober:  prober,
		metrics: metrics.Nop{},
		logger:  logging.Default().WithComponent("scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan probes every port in set on addr with at most concurrency probes in
// flight. Only open ports are reported. Cancelling ctx stops new probes,
// aborts in-flight ones and returns the partial report marked Interrupted.
func (s *Scanner) Scan(ctx context.Context, addr netip.Addr, set ports.Set, concurrency int, connectTimeout time.Duration) *Report {
	if concurrency < 1 {
		concurrency = 1
	}

	report := &Report{
		ID:        uuid.NewString(),
		Target:    addr.String(),
		Addr:      addr,
		PortCount: len(set),
		StartedAt: time.Now(),
	}
	logger := s.logger.WithScanID(report.ID)
	logger.InfoScan("Starting scan", report.Target, "ports", len(set), "concurrency", concurrency, "timeout", connectTimeout)
	s.metrics.ScanStarted(len(set))

	limiter := NewFixedResourceManager(concurrency)
	defer limiter.Close()

	results := make(chan probe.Result, concurrency)
	collected := make(chan []Finding, 1)
	go func() {
		findings := make([]Finding, 0)
		for res := range results {
			if !res.Open() {
				continue
			}
			findings = append(findings, Finding{
				Host:   res.Addr.String(),
				Port:   res.Port,
				Status: StatusOpen,
				Banner: res.Banner,
			})
		}
		collected <- findings
	}()

	var wg sync.WaitGroup
	for i, port := range set {
		// Slots are keyed by position so a repeated port is scanned twice.
		id := strconv.Itoa(i)
		if err := limiter.Acquire(ctx, id); err != nil {
			logger.Warn("Scan interrupted before all probes started", "next_port", port, "error", err)
			break
		}

		wg.Add(1)
		go func(port uint16, id string) {
			defer wg.Done()
			defer limiter.Release(id)

			s.metrics.ProbeStarted()
			res := s.prober.Probe(ctx, addr, port, connectTimeout)
			s.metrics.ProbeFinished(res.Outcome.String(), res.Duration)
			logger.DebugProbe("Probe finished", report.Target, port, "outcome", res.Outcome, "duration", res.Duration)

			results <- res
		}(port, id)
	}

	wg.Wait()
	close(results)
	report.Findings = <-collected
	report.Interrupted = ctx.Err() != nil
	report.Duration = time.Since(report.StartedAt)

	s.metrics.ScanFinished(report.Status(), report.Duration, len(report.Findings))
	logger.InfoScan("Scan finished", report.Target,
		"status", report.Status(),
		"open", len(report.Findings),
		"peak_in_flight", limiter.Peak(),
		"duration", report.Duration)

	return report
}
