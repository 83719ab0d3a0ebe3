// Package scanning provides the concurrent TCP connect scan engine for portprobe.
//
// A Scanner drives one probe per port through a Prober, never letting more
// than the requested number of probes hold a socket at the same time. Only
// ports that accepted a connection are reported.
//
// # Main Components
//
//   - Scanner: fans probes out over a ports.Set and aggregates findings
//   - ResourceManager / FixedResourceManager: counting limiter gating probe
//     goroutines before they are spawned
//   - Report and Finding: the scan outcome handed to output renderers
//
// # Usage
//
//	set, err := ports.Expand("22,80,443,8000-8100")
//	if err != nil {
//		return err
//	}
//	addr, err := resolve.New(nil).Resolve(ctx, "scanme.example")
//	if err != nil {
//		return err
//	}
//	report := scanning.NewScanner(nil).Scan(ctx, addr, set, 200, time.Second)
//	for _, f := range report.Findings {
//		fmt.Printf("%s:%d open\n", f.Host, f.Port)
//	}
//
// # Ordering
//
// Report.Findings is in completion order. Two scans of the same host yield
// the same set of ports but not necessarily the same sequence; use
// Report.OpenPorts for comparisons.
//
// # Cancellation
//
// Cancelling the context passed to Scan stops acquiring new slots, aborts
// in-flight dials and banner reads, and returns whatever was found so far
// with Report.Interrupted set.
package scanning
