// Package config loads command settings from defaults, an optional config
// file, TYPEPROBE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"typeprobe/internal/logging"
	"typeprobe/internal/numeric"
	"typeprobe/internal/parser/csv"
)

// EnvPrefix namespaces environment overrides, e.g. TYPEPROBE_PROBE_SAMPLE_ROWS.
const EnvPrefix = "TYPEPROBE"

type Probe struct {
	SampleRows    int    `mapstructure:"sample_rows"`
	DecimalPlaces int    `mapstructure:"decimal_places"`
	Delimiter     string `mapstructure:"delimiter"`
	// Quotes lists the quote characters, e.g. `"'`. Empty disables quoting.
	Quotes   string `mapstructure:"quotes"`
	Encoding string `mapstructure:"encoding"`
	Workers  int    `mapstructure:"workers"`
}

type Storage struct {
	Kind      string `mapstructure:"kind"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	BatchSize int    `mapstructure:"batch_size"`
	Policy    string `mapstructure:"policy"`
	// RowHash names an extra column holding a per-row SHA-256; empty disables.
	RowHash string `mapstructure:"row_hash"`
}

type Metrics struct {
	// Backend is "none" or "datadog".
	Backend    string        `mapstructure:"backend"`
	Job        string        `mapstructure:"job"`
	Tags       string        `mapstructure:"tags"`
	FlushEvery time.Duration `mapstructure:"flush_every"`
}

// Config is the full command configuration.
type Config struct {
	Probe   Probe          `mapstructure:"probe"`
	Storage Storage        `mapstructure:"storage"`
	Logging logging.Config `mapstructure:"logging"`
	Metrics Metrics        `mapstructure:"metrics"`
}

var defaults = map[string]any{
	"probe.sample_rows":    1000,
	"probe.decimal_places": 2,
	"probe.delimiter":      ",",
	"probe.quotes":         `"'`,
	"probe.encoding":       "utf-8",
	"probe.workers":        0,
	"storage.kind":         "postgres",
	"storage.dsn":          "",
	"storage.table":        "",
	"storage.batch_size":   1000,
	"storage.policy":       "lenient",
	"storage.row_hash":     "",
	"logging.level":        "info",
	"logging.format":       string(logging.FormatText),
	"metrics.backend":      "none",
	"metrics.job":          "typeprobe",
	"metrics.tags":         "",
	"metrics.flush_every":  "60s",
}

// FlagKeys maps command-line flag names to config keys. Flags not present on
// the FlagSet passed to Load are ignored.
var FlagKeys = map[string]string{
	"sample-rows":     "probe.sample_rows",
	"decimal-places":  "probe.decimal_places",
	"delimiter":       "probe.delimiter",
	"quotes":          "probe.quotes",
	"encoding":        "probe.encoding",
	"workers":         "probe.workers",
	"backend":         "storage.kind",
	"dsn":             "storage.dsn",
	"table":           "storage.table",
	"batch-size":      "storage.batch_size",
	"policy":          "storage.policy",
	"row-hash":        "storage.row_hash",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"metrics-backend": "metrics.backend",
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (when non-empty), binds the known flags of fs (when
// non-nil), then decodes and validates the result.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// Dialect builds the tokenizer dialect from the probe section.
func (p Probe) Dialect() (csv.Dialect, error) {
	if utf8.RuneCountInString(p.Delimiter) != 1 {
		return csv.Dialect{}, fmt.Errorf("delimiter must be a single character, got %q", p.Delimiter)
	}
	d, _ := utf8.DecodeRuneInString(p.Delimiter)
	dl := csv.Dialect{Delimiter: d, Quotes: []rune(p.Quotes)}
	if err := dl.Validate(); err != nil {
		return csv.Dialect{}, err
	}
	return dl, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Probe.SampleRows < 0 {
		errs = append(errs, fmt.Errorf("probe.sample_rows (%d) must be >= 0", c.Probe.SampleRows))
	}
	if c.Probe.DecimalPlaces < 0 || c.Probe.DecimalPlaces > numeric.MaxDecimalPlaces {
		errs = append(errs, fmt.Errorf("probe.decimal_places (%d) must be between 0 and %d", c.Probe.DecimalPlaces, numeric.MaxDecimalPlaces))
	}
	if c.Probe.Workers < 0 {
		errs = append(errs, fmt.Errorf("probe.workers (%d) must be >= 0", c.Probe.Workers))
	}
	if _, err := c.Probe.Dialect(); err != nil {
		errs = append(errs, fmt.Errorf("probe: %w", err))
	}

	switch NormalizeBackend(c.Storage.Kind) {
	case "postgres", "mssql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.kind %q must be postgres, mssql or sqlite", c.Storage.Kind))
	}
	if c.Storage.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.batch_size (%d) must be positive", c.Storage.BatchSize))
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Policy)) {
	case "", "lenient", "strict":
	default:
		errs = append(errs, fmt.Errorf("storage.policy %q must be lenient or strict", c.Storage.Policy))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	switch c.Metrics.Backend {
	case "", "none", "datadog":
	default:
		errs = append(errs, fmt.Errorf("metrics.backend %q must be none or datadog", c.Metrics.Backend))
	}
	if c.Metrics.FlushEvery < 0 {
		errs = append(errs, errors.New("metrics.flush_every must be non-negative"))
	}

	return errors.Join(errs...)
}
