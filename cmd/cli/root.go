// Package cli provides the command-line interface for portprobe.
// The root command runs a scan; install and uninstall manage the copy of the
// binary in ~/bin.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/portprobe/internal/config"
	"github.com/anstrom/portprobe/internal/logging"
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// options holds flag values that are not merged through viper.
type options struct {
	cfgFile   string
	verbose   bool
	json      bool
	install   bool
	uninstall bool
}

// NewRootCommand builds the portprobe command tree writing reports to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "portprobe <target>",
		Short: "Concurrent TCP port reachability probe",
		Long: `portprobe resolves a single target, attempts a TCP connection to every
requested port with bounded concurrency and reports the ports that accepted,
together with any banner the service sent in the first 200ms.

Settings are read from the config file, then PORTPROBE_* environment
variables, then flags.`,
		Example: `  portprobe scanme.example -p 22,80,443
  portprobe 10.0.0.5 -p 1-65535 -c 1000 --timeout-ms 300
  portprobe example.org --json --dns-server 1.1.1.1:53
  portprobe --install`,
		Version:       getVersion(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.install:
				return runInstall(cmd.OutOrStdout())
			case opts.uninstall:
				return runUninstall(cmd.OutOrStdout())
			case len(args) == 0:
				_ = cmd.Usage()
				return fmt.Errorf("a target host or IP address is required")
			}
			return runScan(cmd.Context(), cmd.OutOrStdout(), v, opts, args[0])
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.Flags()
	flags.StringP("ports", "p", "1-1000", `Ports to scan, e.g. "22,80,443" or "1-1024"`)
	flags.IntP("concurrency", "c", 200, "Maximum number of simultaneous connection attempts")
	flags.Int("timeout-ms", 1000, "Connect timeout per port in milliseconds")
	flags.String("format", "text", "Output format: text, json or table")
	flags.String("dns-server", "", "Resolve the target with this DNS server (host[:port]) instead of the system resolver")
	flags.Bool("prefer-ipv6", false, "Query AAAA records when --dns-server is set")
	flags.String("metrics-file", "", "Write Prometheus metrics in text format to this file after the scan")
	flags.BoolVar(&opts.json, "json", false, "Shorthand for --format json")
	flags.BoolVar(&opts.install, "install", false, "Copy this executable to ~/bin and exit")
	flags.BoolVar(&opts.uninstall, "uninstall", false, "Remove the executable from ~/bin and exit")
	rootCmd.MarkFlagsMutuallyExclusive("install", "uninstall")
	rootCmd.MarkFlagsMutuallyExclusive("json", "format")

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output (debug logging)")

	bindFlags(v, flags.Lookup, map[string]string{
		config.KeyPorts:         "ports",
		config.KeyConcurrency:   "concurrency",
		config.KeyTimeoutMS:     "timeout-ms",
		config.KeyOutputFormat:  "format",
		config.KeyDNSServer:     "dns-server",
		config.KeyPreferIPv6:    "prefer-ipv6",
		config.KeyMetricsOutput: "metrics-file",
	})

	rootCmd.AddCommand(newInstallCommand(), newUninstallCommand())
	return rootCmd
}

// bindFlags binds each viper key to the named flag.
func bindFlags(v *viper.Viper, lookup func(string) *pflag.Flag, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", name, err)
		}
	}
}

// Execute runs the root command and exits non-zero on failure. The first
// interrupt cancels the scan and still prints the partial report.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
}

// initLogging installs the default logger from the logging section.
func initLogging(cfg *config.Config) *logging.Logger {
	logConfig := logging.Config{
		Level:     logging.LogLevel(cfg.Logging.Level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.Level == string(logging.LevelDebug),
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	logging.SetDefault(logger)
	logger.Debug("Structured logging initialized", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	return logger
}
