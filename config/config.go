// Package config holds host settings that are not ledger options: how the
// writer lays out entries, where new entries go and how dates are read.
//
// Settings come from three places, later ones winning:
//
//   - the defaults;
//   - `custom "fava-option"` directives in the ledger;
//   - a YAML file passed by the host.
//
// Example directives:
//
//	2020-01-01 custom "fava-option" "currency-column" "70"
//	2020-01-01 custom "fava-option" "fiscal-year-end" "03-31"
//	2020-01-01 custom "fava-option" "insert-entry" "Expenses:Food"
package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/writer"
)

// Config holds host settings.
type Config struct {
	CurrencyColumn int
	Indent         int
	FiscalYearEnd  dates.FiscalYearEnd
	// DefaultFile receives new entries no insert rule matches. Empty means
	// the root file.
	DefaultFile string
	InsertEntry []writer.InsertRule
	// Conversion is the default conversion of reports, see conversion.Parse.
	Conversion string
	// Interval is the default interval of interval reports.
	Interval string
	// Unrealized books unrealized gains on balance sheets.
	Unrealized bool
}

// NewConfig creates a Config with the defaults.
func NewConfig() *Config {
	return &Config{
		CurrencyColumn: writer.DefaultCurrencyColumn,
		Indent:         writer.DefaultIndent,
		FiscalYearEnd:  dates.EndOfYear,
		Conversion:     "at_cost",
		Interval:       "month",
	}
}

// ConfigError reports a fava-option directive that could not be applied.
type ConfigError struct {
	Pos       ast.Position
	Message   string
	Directive ast.Directive
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

func (e *ConfigError) GetPosition() ast.Position   { return e.Pos }
func (e *ConfigError) GetDirective() ast.Directive { return e.Directive }

// NewConfigError creates a ConfigError for c.
func NewConfigError(c *ast.Custom, format string, args ...any) *ConfigError {
	return &ConfigError{Pos: c.Pos, Message: fmt.Sprintf(format, args...), Directive: c}
}

// FromEntries reads the fava-option directives among entries. Directives
// with unknown keys or bad values are reported and skipped.
func FromEntries(entries []ast.Directive) (*Config, []error) {
	cfg := NewConfig()
	var errs []error
	for _, d := range entries {
		c, ok := d.(*ast.Custom)
		if !ok || c.Type != "fava-option" {
			continue
		}
		if err := cfg.apply(c); err != nil {
			errs = append(errs, err)
		}
	}
	return cfg, errs
}

func (cfg *Config) apply(c *ast.Custom) error {
	if len(c.Values) == 0 || c.Values[0].Kind != ast.MetaString {
		return NewConfigError(c, "fava-option needs a key")
	}
	key := c.Values[0].Str
	value, hasValue := "", len(c.Values) > 1
	if hasValue {
		value = c.Values[1].Str
	}

	switch key {
	case "currency-column", "indent":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return NewConfigError(c, "invalid %s %q", key, value)
		}
		if key == "indent" {
			cfg.Indent = n
		} else {
			cfg.CurrencyColumn = n
		}
	case "fiscal-year-end":
		fye, err := dates.ParseFiscalYearEnd(value)
		if err != nil {
			return NewConfigError(c, "%s", err)
		}
		cfg.FiscalYearEnd = fye
	case "default-file":
		// Without a value the file holding the directive is meant.
		if hasValue {
			cfg.DefaultFile = value
		} else {
			cfg.DefaultFile = c.Pos.Filename
		}
	case "insert-entry":
		re, err := regexp.Compile(value)
		if !hasValue || err != nil {
			return NewConfigError(c, "invalid insert-entry pattern %q", value)
		}
		cfg.InsertEntry = append(cfg.InsertEntry, writer.InsertRule{
			Date:     c.Date,
			Pattern:  re,
			Filename: c.Pos.Filename,
			Line:     c.Pos.Line,
		})
	case "conversion":
		cfg.Conversion = value
	case "interval":
		if _, ok := dates.ParseInterval(value); !ok {
			return NewConfigError(c, "invalid interval %q", value)
		}
		cfg.Interval = value
	case "unrealized":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return NewConfigError(c, "invalid unrealized %q", value)
		}
		cfg.Unrealized = b
	default:
		return NewConfigError(c, "unknown fava-option %q", key)
	}
	return nil
}

// File is the YAML settings file. Absent keys leave a setting alone.
//
//	currency-column: 70
//	fiscal-year-end: "03-31"
//	insert-entry:
//	  - pattern: "Expenses:Food"
//	    file: food.beancount
//	    line: 3
type File struct {
	CurrencyColumn *int         `yaml:"currency-column"`
	Indent         *int         `yaml:"indent"`
	FiscalYearEnd  *string      `yaml:"fiscal-year-end"`
	DefaultFile    *string      `yaml:"default-file"`
	InsertEntry    []InsertRule `yaml:"insert-entry"`
	Conversion     *string      `yaml:"conversion"`
	Interval       *string      `yaml:"interval"`
	Unrealized     *bool        `yaml:"unrealized"`
}

// InsertRule is an insert rule in the settings file. It applies to entries
// of every date; a zero line appends to the file.
type InsertRule struct {
	Pattern string `yaml:"pattern"`
	File    string `yaml:"file"`
	Line    int    `yaml:"line"`
}

// ReadFile parses the YAML settings file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// Apply overrides cfg with the settings present in f. Its insert rules are
// tried before the ones from the ledger.
func (f *File) Apply(cfg *Config) error {
	if f == nil {
		return nil
	}
	if f.CurrencyColumn != nil {
		cfg.CurrencyColumn = *f.CurrencyColumn
	}
	if f.Indent != nil {
		cfg.Indent = *f.Indent
	}
	if f.FiscalYearEnd != nil {
		fye, err := dates.ParseFiscalYearEnd(*f.FiscalYearEnd)
		if err != nil {
			return err
		}
		cfg.FiscalYearEnd = fye
	}
	if f.DefaultFile != nil {
		cfg.DefaultFile = *f.DefaultFile
	}
	if f.Conversion != nil {
		cfg.Conversion = *f.Conversion
	}
	if f.Interval != nil {
		if _, ok := dates.ParseInterval(*f.Interval); !ok {
			return fmt.Errorf("invalid interval %q", *f.Interval)
		}
		cfg.Interval = *f.Interval
	}
	if f.Unrealized != nil {
		cfg.Unrealized = *f.Unrealized
	}

	rules := make([]writer.InsertRule, 0, len(f.InsertEntry)+len(cfg.InsertEntry))
	for _, r := range f.InsertEntry {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("invalid insert-entry pattern %q: %w", r.Pattern, err)
		}
		// Rules only apply after their date; the settings file has none, so
		// they start at the earliest date there is.
		rules = append(rules, writer.InsertRule{Date: ast.NewDateYMD(1, 1, 1), Pattern: re, Filename: r.File, Line: r.Line})
	}
	cfg.InsertEntry = append(rules, cfg.InsertEntry...)
	return nil
}

// WriterOptions returns the writer settings of cfg.
func (cfg *Config) WriterOptions() []writer.Option {
	return []writer.Option{
		writer.WithCurrencyColumn(cfg.CurrencyColumn),
		writer.WithIndent(cfg.Indent),
	}
}

// LoadEnv reads a .env file into the environment. Without a path the .env
// of the working directory is read if there is one.
func LoadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}

type contextKey struct{}

// WithContext returns a new context carrying cfg.
func (cfg *Config) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the Config carried by ctx, or the defaults.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return NewConfig()
}
