package scanning

import (
	"net/netip"
	"slices"
	"time"
)

// StatusOpen is the only status a Finding ever carries.
const StatusOpen = "open"

// Finding is one open port.
type Finding struct {
	Host   string  `json:"host"`
	Port   uint16  `json:"port"`
	Status string  `json:"status"`
	Banner *string `json:"banner"`
}

// Report is the outcome of one scan. Findings are in completion order, which
// is not port order; compare them as a set.
type Report struct {
	ID          string        `json:"id"`
	Target      string        `json:"target"`
	Addr        netip.Addr    `json:"addr"`
	PortCount   int           `json:"port_count"`
	Findings    []Finding     `json:"findings"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Interrupted bool          `json:"interrupted"`
}

// OpenPorts returns the ports of all findings in ascending order.
func (r *Report) OpenPorts() []uint16 {
	out := make([]uint16, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Port)
	}
	slices.Sort(out)
	return out
}

// Status returns "interrupted" or "completed".
func (r *Report) Status() string {
	if r.Interrupted {
		return "interrupted"
	}
	return "completed"
}
