package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/anstrom/portprobe/internal/config"
	"github.com/anstrom/portprobe/internal/logging"
	"github.com/anstrom/portprobe/internal/metrics"
	"github.com/anstrom/portprobe/internal/ports"
	"github.com/anstrom/portprobe/internal/probe"
	"github.com/anstrom/portprobe/internal/report"
	"github.com/anstrom/portprobe/internal/resolve"
	"github.com/anstrom/portprobe/internal/scanning"
)

// runScan loads settings, expands the port spec, resolves target, scans it
// and renders the report to out. Parse, resolution and config failures are
// returned before any probe runs; an interrupted scan still renders.
func runScan(ctx context.Context, out io.Writer, v *viper.Viper, opts *options, target string) error {
	cfg, err := loadConfig(v, opts)
	if err != nil {
		return err
	}

	base := initLogging(cfg)
	logger := base.WithComponent("cli")

	set, err := ports.Expand(cfg.Scan.Ports)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	renderer, err := report.New(format, out)
	if err != nil {
		return err
	}

	if err := renderer.Start(target, set.Len()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	addr, err := newResolver(cfg).Resolve(ctx, target)
	if err != nil {
		logger.ErrorScan("Target resolution failed", target, err)
		return err
	}
	logger.Debug("Target resolved", "target", target, "addr", addr, "ports", set.String())

	if err := renderer.Resolved(addr); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	m := metrics.NewPrometheusMetrics()
	scanner := scanning.NewScanner(probe.New(nil),
		scanning.WithMetrics(m),
		scanning.WithLogger(base.WithComponent("scanner")))

	rep := scanner.Scan(ctx, addr, set, cfg.Scan.Concurrency, cfg.ConnectTimeout())
	if rep.Interrupted {
		logger.Warn("Scan interrupted, reporting partial results", "scan_id", rep.ID, "open", len(rep.Findings))
	}

	if err := renderer.Finish(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.WithError(err).Warn("Failed to write metrics textfile", "path", cfg.Metrics.Textfile)
		}
	}

	return nil
}

// loadConfig reads the config file and layers environment and flags on top.
func loadConfig(v *viper.Viper, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}

	if opts.json {
		v.Set(config.KeyOutputFormat, string(report.FormatJSON))
	}
	if opts.verbose {
		v.Set(config.KeyLogLevel, string(logging.LevelDebug))
	}

	if err := cfg.Merge(v); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newResolver(cfg *config.Config) *resolve.Resolver {
	if cfg.Scan.DNSServer == "" {
		return resolve.New(nil)
	}
	return resolve.New(resolve.NewDNSLookuper(cfg.Scan.DNSServer, cfg.Scan.PreferIPv6, 0))
}
