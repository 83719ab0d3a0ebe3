// Package config loads portprobe settings from a YAML file, layers
// environment variables and command-line flags on top through viper, and
// validates the result.
package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/portprobe/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. PORTPROBE_SCAN_PORTS.
const EnvPrefix = "PORTPROBE"

// Viper keys.
const (
	KeyPorts         = "scan.ports"
	KeyConcurrency   = "scan.concurrency"
	KeyTimeoutMS     = "scan.timeout_ms"
	KeyDNSServer     = "scan.dns_server"
	KeyPreferIPv6    = "scan.prefer_ipv6"
	KeyOutputFormat  = "output.format"
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
	KeyLogOutput     = "logging.output"
	KeyMetricsOutput = "metrics.textfile"
)

// Config represents the complete portprobe configuration
type Config struct {
	Scan    ScanConfig    `yaml:"scan" json:"scan"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ScanConfig holds scanning-related settings
type ScanConfig struct {
	// Port specification, e.g. "22,80,443" or "1-1024"
	Ports string `yaml:"ports" json:"ports"`

	// Maximum probes holding a socket at once
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"min=1"`

	// Connect timeout per probe in milliseconds
	TimeoutMS int `yaml:"timeout_ms" json:"timeout_ms" validate:"min=1"`

	// Explicit DNS server; empty uses the system resolver
	DNSServer string `yaml:"dns_server" json:"dns_server" validate:"omitempty,ip|hostname_port|hostname_rfc1123"`

	// Query AAAA instead of A when DNSServer is set
	PreferIPv6 bool `yaml:"prefer_ipv6" json:"prefer_ipv6"`
}

// OutputConfig holds report rendering settings
type OutputConfig struct {
	Format string `yaml:"format" json:"format" validate:"oneof=text json table"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" validate:"required"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	// Path of a Prometheus textfile written after each scan; empty disables it
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Ports:       "1-1000",
			Concurrency: 200,
			TimeoutMS:   1000,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeFileNotFound, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse YAML config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// NewViper returns a viper instance that reads PORTPROBE_* environment
// variables for every key.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Merge applies overrides from v (bound flags and environment) on top of c
// and validates the result. Values already in c act as defaults.
func (c *Config) Merge(v *viper.Viper) error {
	v.SetDefault(KeyPorts, c.Scan.Ports)
	v.SetDefault(KeyConcurrency, c.Scan.Concurrency)
	v.SetDefault(KeyTimeoutMS, c.Scan.TimeoutMS)
	v.SetDefault(KeyDNSServer, c.Scan.DNSServer)
	v.SetDefault(KeyPreferIPv6, c.Scan.PreferIPv6)
	v.SetDefault(KeyOutputFormat, c.Output.Format)
	v.SetDefault(KeyLogLevel, c.Logging.Level)
	v.SetDefault(KeyLogFormat, c.Logging.Format)
	v.SetDefault(KeyLogOutput, c.Logging.Output)
	v.SetDefault(KeyMetricsOutput, c.Metrics.Textfile)

	c.Scan.Ports = v.GetString(KeyPorts)
	c.Scan.Concurrency = v.GetInt(KeyConcurrency)
	c.Scan.TimeoutMS = v.GetInt(KeyTimeoutMS)
	c.Scan.DNSServer = v.GetString(KeyDNSServer)
	c.Scan.PreferIPv6 = v.GetBool(KeyPreferIPv6)
	c.Output.Format = v.GetString(KeyOutputFormat)
	c.Logging.Level = v.GetString(KeyLogLevel)
	c.Logging.Format = v.GetString(KeyLogFormat)
	c.Logging.Output = v.GetString(KeyLogOutput)
	c.Metrics.Textfile = v.GetString(KeyMetricsOutput)

	return c.Validate()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		return errors.ErrConfigInvalid(field, fe.Value())
	}
	return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
}

// ConnectTimeout returns the per-probe connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Scan.TimeoutMS) * time.Millisecond
}
