package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/portprobe/internal/errors"
)

const defaultDNSTimeout = 2 * time.Second

// DNSLookuper queries one explicit DNS server instead of the system resolver.
// It sends a single A query, or AAAA when PreferIPv6 is set.
type DNSLookuper struct {
	Server     string
	PreferIPv6 bool
	client     *dns.Client
}

// NewDNSLookuper creates a lookuper for server ("host" or "host:port").
func NewDNSLookuper(server string, preferIPv6 bool, timeout time.Duration) *DNSLookuper {
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	return &DNSLookuper{
		Server:     withDefaultPort(server),
		PreferIPv6: preferIPv6,
		client:     &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func withDefaultPort(server string) string {
	if addr, ok := ParseLiteral(server); ok {
		return netip.AddrPortFrom(addr, 53).String()
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}

// LookupAddrs implements Lookuper.
func (d *DNSLookuper) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	qtype := dns.TypeA
	if d.PreferIPv6 {
		qtype = dns.TypeAAAA
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := d.client.ExchangeContext(ctx, msg, d.Server)
	if err != nil {
		return nil, errors.WrapResolutionError("DNS exchange failed", host, err).WithServer(d.Server)
	}
	if resp.Rcode != dns.RcodeSuccess {
		cause := fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
		return nil, errors.WrapResolutionError("DNS query failed", host, cause).WithServer(d.Server)
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		var ip []byte
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	return addrs, nil
}
