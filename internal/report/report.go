// Package report renders scan results for the terminal or for other
// programs. Renderers write the report only; diagnostics go to the logger.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/portprobe/internal/errors"
	"github.com/anstrom/portprobe/internal/scanning"
)

// Format selects a renderer.
type Format string

// Supported formats.
const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// NoOpenPorts is printed by the human-readable renderers for an empty report.
const NoOpenPorts = "No open ports found"

// Renderer writes the phases of one scan run. Start and Resolved are called
// before the scan so that long scans show progress; Finish receives the
// completed (or interrupted) report.
type Renderer interface {
	Start(target string, portCount int) error
	Resolved(addr netip.Addr) error
	Finish(rep *scanning.Report) error
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatTable:
		return f, nil
	default:
		return "", errors.NewConfigFieldError(errors.CodeValidation, "Unknown output format", "output.format", s)
	}
}

// New returns the renderer for format writing to w.
func New(format Format, w io.Writer) (Renderer, error) {
	switch format {
	case FormatText:
		return &Text{w: w}, nil
	case FormatJSON:
		return &JSON{w: w}, nil
	case FormatTable:
		return &Table{w: w}, nil
	default:
		return nil, errors.NewConfigFieldError(errors.CodeValidation, "Unknown output format", "output.format", string(format))
	}
}

// Text prints a header, one line per open port and a summary.
type Text struct {
	w io.Writer
}

// Start prints the scan header.
func (t *Text) Start(target string, portCount int) error {
	_, err := fmt.Fprintf(t.w, "Starting scan of %s (%d ports)...\n", target, portCount)
	return err
}

// Resolved prints the address being scanned.
func (t *Text) Resolved(addr netip.Addr) error {
	_, err := fmt.Fprintf(t.w, "Target IP: %s\n", addr)
	return err
}

// Finish prints the findings in the order they were discovered.
func (t *Text) Finish(rep *scanning.Report) error {
	verb := "completed"
	if rep.Interrupted {
		verb = "interrupted"
	}
	if _, err := fmt.Fprintf(t.w, "Scan %s! Found %d open ports:\n", verb, len(rep.Findings)); err != nil {
		return err
	}

	for _, f := range rep.Findings {
		if _, err := fmt.Fprintln(t.w, FormatLine(f)); err != nil {
			return err
		}
	}

	if len(rep.Findings) == 0 {
		if _, err := fmt.Fprintln(t.w, NoOpenPorts); err != nil {
			return err
		}
	}
	return nil
}

// FormatLine renders a finding as "<host>:<port> open", followed by
// " | <banner>" when a banner was captured.
func FormatLine(f scanning.Finding) string {
	line := fmt.Sprintf("%s:%d %s", f.Host, f.Port, f.Status)
	if f.Banner != nil {
		line += " | " + *f.Banner
	}
	return line
}

// JSON prints the findings as an indented array. Nothing else is written so
// the output can be piped straight into other tools.
type JSON struct {
	w io.Writer
}

// Start is a no-op.
func (j *JSON) Start(string, int) error { return nil }

// Resolved is a no-op.
func (j *JSON) Resolved(netip.Addr) error { return nil }

// Finish writes the findings array; an empty report yields [].
func (j *JSON) Finish(rep *scanning.Report) error {
	findings := rep.Findings
	if findings == nil {
		findings = []scanning.Finding{}
	}

	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}
	data = append(data, '\n')

	_, err = j.w.Write(data)
	return err
}

// Table prints the findings as a table sorted by port.
type Table struct {
	w io.Writer
}

// Start is a no-op.
func (t *Table) Start(string, int) error { return nil }

// Resolved is a no-op.
func (t *Table) Resolved(netip.Addr) error { return nil }

// Finish renders the table, or NoOpenPorts when there is nothing to show.
func (t *Table) Finish(rep *scanning.Report) error {
	if len(rep.Findings) == 0 {
		_, err := fmt.Fprintln(t.w, NoOpenPorts)
		return err
	}

	findings := slices.Clone(rep.Findings)
	slices.SortFunc(findings, func(a, b scanning.Finding) int {
		return int(a.Port) - int(b.Port)
	})

	table := tablewriter.NewWriter(t.w)
	table.Header("Host", "Port", "Status", "Banner")

	for _, f := range findings {
		banner := "-"
		if f.Banner != nil {
			banner = *f.Banner
		}
		if err := table.Append([]string{
			f.Host,
			strconv.Itoa(int(f.Port)),
			f.Status,
			banner,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	return table.Render()
}
