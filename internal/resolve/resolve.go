// Package resolve turns a scan target into a single concrete IP address.
//
// Literal IPv4/IPv6 addresses are returned as-is without any lookup. Names are
// resolved with exactly one call to a Lookuper and the first address wins.
package resolve

import (
	"context"
	stderrors "errors"
	"net"
	"net/netip"
	"strings"

	"github.com/anstrom/portprobe/internal/errors"
	"github.com/anstrom/portprobe/internal/logging"
)

// Lookuper performs one name-resolution call.
type Lookuper interface {
	LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error)
}

// Resolver resolves targets through a Lookuper.
type Resolver struct {
	lookuper Lookuper
	logger   *logging.Logger
}

// New creates a resolver. A nil lookuper uses the system resolver.
func New(lookuper Lookuper) *Resolver {
	if lookuper == nil {
		lookuper = NewSystemLookuper()
	}
	return &Resolver{
		lookuper: lookuper,
		logger:   logging.Default().WithComponent("resolver"),
	}
}

// ParseLiteral parses target as an IP literal. Brackets around IPv6
// literals ("[::1]") are accepted.
func ParseLiteral(target string) (netip.Addr, bool) {
	s := strings.TrimSpace(target)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// Resolve returns the address to scan for target.
func (r *Resolver) Resolve(ctx context.Context, target string) (netip.Addr, error) {
	if addr, ok := ParseLiteral(target); ok {
		return addr, nil
	}

	host := strings.TrimSpace(target)
	if host == "" {
		return netip.Addr{}, errors.NewResolutionError("Target is empty", target)
	}

	addrs, err := r.lookuper.LookupAddrs(ctx, host)
	if err != nil {
		var resErr *errors.ResolutionError
		if stderrors.As(err, &resErr) {
			return netip.Addr{}, resErr
		}
		return netip.Addr{}, errors.WrapResolutionError("Lookup failed", host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, errors.ErrNoAddresses(host)
	}

	addr := addrs[0].Unmap()
	r.logger.WithTarget(host).Debug("Resolved target", "addr", addr, "candidates", len(addrs))
	return addr, nil
}

// SystemLookuper resolves names with the operating system resolver.
type SystemLookuper struct {
	resolver *net.Resolver
}

// NewSystemLookuper creates a lookuper backed by net.DefaultResolver.
func NewSystemLookuper() *SystemLookuper {
	return &SystemLookuper{resolver: net.DefaultResolver}
}

// LookupAddrs implements Lookuper.
func (s *SystemLookuper) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	return s.resolver.LookupNetIP(ctx, "ip", host)
}
