// Package probe performs single bounded-time TCP connect attempts and
// opportunistic banner capture.
package probe

import (
	"context"
	stderrors "errors"
	"net"
	"net/netip"
	"syscall"
	"time"
)

const (
	// BannerReadTimeout bounds the banner read after a successful connect.
	BannerReadTimeout = 200 * time.Millisecond

	// BannerBufferSize is the maximum number of banner bytes read.
	BannerBufferSize = 128

	// DefaultConnectTimeout applies when a caller passes a non-positive timeout.
	DefaultConnectTimeout = time.Second
)

// Outcome classifies one probe attempt.
type Outcome int

const (
	OutcomeClosed Outcome = iota
	OutcomeOpen
	OutcomeTimedOut
	OutcomeError
)

// String returns the lower-case outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeOpen:
		return "open"
	case OutcomeClosed:
		return "closed"
	case OutcomeTimedOut:
		return "timeout"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of probing one address:port pair.
type Result struct {
	Addr     netip.Addr
	Port     uint16
	Outcome  Outcome
	Banner   *string
	Duration time.Duration
	Err      error
}

// Open reports whether the port accepted the connection.
func (r Result) Open() bool {
	return r.Outcome == OutcomeOpen
}

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober probes ports through a Dialer. It holds no mutable state and is safe
// for concurrent use.
type Prober struct {
	dialer Dialer
}

// New creates a prober. A nil dialer uses a net.Dialer with keep-alives off.
func New(dialer Dialer) *Prober {
	if dialer == nil {
		dialer = &net.Dialer{KeepAlive: -1}
	}
	return &Prober{dialer: dialer}
}

// Probe dials addr:port within connectTimeout and, on success, reads a banner
// within BannerReadTimeout. The connection is always closed before returning.
func (p *Prober) Probe(ctx context.Context, addr netip.Addr, port uint16, connectTimeout time.Duration) Result {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	start := time.Now()
	res := Result{Addr: addr, Port: port}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	conn, err := p.dialer.DialContext(dialCtx, "tcp", netip.AddrPortFrom(addr, port).String())
	cancel()
	if err != nil {
		res.Outcome = classify(err)
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	defer conn.Close()

	res.Outcome = OutcomeOpen
	res.Banner = readBanner(ctx, conn)
	res.Duration = time.Since(start)
	return res
}

func classify(err error) Outcome {
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return OutcomeClosed
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimedOut
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimedOut
	}
	return OutcomeError
}

func readBanner(ctx context.Context, conn net.Conn) *string {
	if err := conn.SetReadDeadline(time.Now().Add(BannerReadTimeout)); err != nil {
		return nil
	}
	// Cancellation cuts the read short.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, BannerBufferSize)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return nil
	}
	return SanitizeBanner(buf[:n])
}
