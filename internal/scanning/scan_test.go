package scanning

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portprobe/internal/ports"
	"github.com/anstrom/portprobe/internal/probe"
)

var loopback = netip.MustParseAddr("127.0.0.1")

// countingDialer simulates unreachable hosts: every dial holds a "socket"
// until the connect timeout expires. It records the peak number held at once.
type countingDialer struct {
	open atomic.Int32
	peak atomic.Int32
	hold time.Duration
}

func (d *countingDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	n := d.open.Add(1)
	defer d.open.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d.hold):
		return nil, errors.New("host unreachable")
	}
}

// funcProber adapts a function to the Prober interface.
type funcProber func(ctx context.Context, addr netip.Addr, port uint16) probe.Result

func (f funcProber) Probe(ctx context.Context, addr netip.Addr, port uint16, _ time.Duration) probe.Result {
	return f(ctx, addr, port)
}

// recorder counts metric events.
type recorder struct {
	mu       sync.Mutex
	started  int
	finished map[string]int
	status   string
	open     int
	queued   int
}

func (r *recorder) ScanStarted(n int) { r.mu.Lock(); r.queued += n; r.mu.Unlock() }
func (r *recorder) ScanFinished(status string, _ time.Duration, open int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status, r.open = status, open
}
func (r *recorder) ProbeStarted() { r.mu.Lock(); r.started++; r.mu.Unlock() }
func (r *recorder) ProbeFinished(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		r.finished = make(map[string]int)
	}
	r.finished[outcome]++
}

func listen(t *testing.T, banner string) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if banner != "" {
					_, _ = c.Write([]byte(banner))
				}
				time.Sleep(probe.BannerReadTimeout + 100*time.Millisecond)
			}(conn)
		}
	}()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func closedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())
	return port
}

func portSet(ps ...uint16) ports.Set {
	set, err := ports.Expand(ports.Set(ps).String())
	if err != nil {
		panic(err)
	}
	return set
}

func TestScan_ConcurrencyBound(t *testing.T) {
	dialer := &countingDialer{hold: 20 * time.Millisecond}
	scanner := NewScanner(probe.New(dialer))

	set, err := ports.Expand("1-100")
	require.NoError(t, err)

	report := scanner.Scan(context.Background(), netip.MustParseAddr("192.0.2.1"), set, 5, 10*time.Millisecond)

	assert.Empty(t, report.Findings)
	assert.LessOrEqual(t, dialer.peak.Load(), int32(5))
	assert.Greater(t, dialer.peak.Load(), int32(1), "probes should actually overlap")
	assert.Equal(t, int32(0), dialer.open.Load())
	assert.False(t, report.Interrupted)
}

func TestScan_EndToEnd(t *testing.T) {
	t.Run("service with banner", func(t *testing.T) {
		open := listen(t, "hello from echo\r\n")
		set := portSet(closedPort(t), open, closedPort(t))

		report := NewScanner(nil).Scan(context.Background(), loopback, set, 10, time.Second)

		require.Len(t, report.Findings, 1)
		f := report.Findings[0]
		assert.Equal(t, "127.0.0.1", f.Host)
		assert.Equal(t, open, f.Port)
		assert.Equal(t, StatusOpen, f.Status)
		require.NotNil(t, f.Banner)
		assert.Equal(t, "hello from echo", *f.Banner)
		assert.Equal(t, set.Len(), report.PortCount)
	})

	t.Run("silent service", func(t *testing.T) {
		open := listen(t, "")
		set := portSet(closedPort(t), open)

		report := NewScanner(nil).Scan(context.Background(), loopback, set, 10, time.Second)

		require.Len(t, report.Findings, 1)
		assert.Equal(t, open, report.Findings[0].Port)
		assert.Nil(t, report.Findings[0].Banner)
	})
}

func TestScan_Idempotent(t *testing.T) {
	a := listen(t, "a")
	b := listen(t, "")
	set := portSet(a, b, closedPort(t), closedPort(t))
	scanner := NewScanner(nil)

	first := scanner.Scan(context.Background(), loopback, set, 4, time.Second)
	second := scanner.Scan(context.Background(), loopback, set, 1, time.Second)

	assert.ElementsMatch(t, first.OpenPorts(), second.OpenPorts())
	assert.Equal(t, portSet(a, b), ports.Set(first.OpenPorts()))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestScan_CompletionOrder(t *testing.T) {
	delays := map[uint16]time.Duration{1: 150 * time.Millisecond, 2: 75 * time.Millisecond, 3: 0}
	prober := funcProber(func(_ context.Context, addr netip.Addr, port uint16) probe.Result {
		time.Sleep(delays[port])
		return probe.Result{Addr: addr, Port: port, Outcome: probe.OutcomeOpen}
	})

	report := NewScanner(prober).Scan(context.Background(), loopback, portSet(1, 2, 3), 3, time.Second)

	require.Len(t, report.Findings, 3)
	got := []uint16{report.Findings[0].Port, report.Findings[1].Port, report.Findings[2].Port}
	assert.Equal(t, []uint16{3, 2, 1}, got)
	assert.Equal(t, []uint16{1, 2, 3}, report.OpenPorts())
}

func TestScan_FailuresAreIsolated(t *testing.T) {
	prober := funcProber(func(_ context.Context, addr netip.Addr, port uint16) probe.Result {
		res := probe.Result{Addr: addr, Port: port}
		switch port % 4 {
		case 0:
			res.Outcome = probe.OutcomeOpen
		case 1:
			res.Outcome = probe.OutcomeClosed
		case 2:
			res.Outcome = probe.OutcomeTimedOut
		default:
			res.Outcome = probe.OutcomeError
			res.Err = errors.New("reset by peer")
		}
		return res
	})

	set, err := ports.Expand("1-40")
	require.NoError(t, err)
	rec := &recorder{}
	report := NewScanner(prober, WithMetrics(rec)).Scan(context.Background(), loopback, set, 7, time.Second)

	assert.Len(t, report.Findings, 10)
	for _, f := range report.Findings {
		assert.Zero(t, f.Port%4)
	}

	assert.Equal(t, 40, rec.started)
	assert.Equal(t, 40, rec.queued)
	assert.Equal(t, map[string]int{"open": 10, "closed": 10, "timeout": 10, "error": 10}, rec.finished)
	assert.Equal(t, "completed", rec.status)
	assert.Equal(t, 10, rec.open)
}

func TestScan_Cancellation(t *testing.T) {
	prober := funcProber(func(ctx context.Context, addr netip.Addr, port uint16) probe.Result {
		if port < 10 {
			return probe.Result{Addr: addr, Port: port, Outcome: probe.OutcomeOpen}
		}
		<-ctx.Done()
		return probe.Result{Addr: addr, Port: port, Outcome: probe.OutcomeError, Err: ctx.Err()}
	})

	set, err := ports.Expand("1-1000")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	rec := &recorder{}
	report := NewScanner(prober, WithMetrics(rec)).Scan(ctx, loopback, set, 20, time.Minute)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, report.Interrupted)
	assert.Equal(t, "interrupted", report.Status())
	assert.Equal(t, []uint16{1, 2, 3, 4, 5, 6, 7, 8, 9}, report.OpenPorts())
	assert.Less(t, rec.started, 1000, "no new probes may start after cancellation")
}

func TestScan_RepeatedPortsAreAllScanned(t *testing.T) {
	var calls atomic.Int32
	prober := funcProber(func(_ context.Context, addr netip.Addr, port uint16) probe.Result {
		calls.Add(1)
		return probe.Result{Addr: addr, Port: port, Outcome: probe.OutcomeOpen}
	})

	report := NewScanner(prober).Scan(context.Background(), loopback, ports.Set{1, 1, 2, 3}, 4, time.Second)

	assert.False(t, report.Interrupted)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []uint16{1, 1, 2, 3}, report.OpenPorts())
}

func TestScan_ClampsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	prober := funcProber(func(_ context.Context, addr netip.Addr, port uint16) probe.Result {
		n := inFlight.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return probe.Result{Addr: addr, Port: port, Outcome: probe.OutcomeClosed}
	})

	report := NewScanner(prober).Scan(context.Background(), loopback, portSet(1, 2, 3, 4), 0, time.Second)
	assert.Empty(t, report.Findings)
	assert.NotNil(t, report.Findings)
	assert.Equal(t, int32(1), peak.Load())
}

func TestScan_EmptySet(t *testing.T) {
	report := NewScanner(nil).Scan(context.Background(), loopback, nil, 10, time.Second)
	assert.Empty(t, report.Findings)
	assert.Zero(t, report.PortCount)
	assert.False(t, report.Interrupted)
}
