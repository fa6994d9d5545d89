package ast

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Options are the typed values of `option` directives.
type Options struct {
	Title              string
	Filename           string
	OperatingCurrency  []string
	Roots              AccountRoots
	RenderCommas       bool
	Documents          []string
	BookingMethod      BookingMethod
	ConversionCurrency string

	AccountCurrentEarnings     string
	AccountCurrentConversions  string
	AccountPreviousBalances    string
	AccountPreviousEarnings    string
	AccountPreviousConversions string
	AccountUnrealizedGains     string

	// InferredToleranceDefault maps a currency, or "*" for any, to the
	// tolerance used when no precision can be inferred.
	InferredToleranceDefault    map[string]decimal.Decimal
	InferredToleranceMultiplier decimal.Decimal

	// Include lists every file the loader read, root first. It is derived
	// and cannot be set from source.
	Include []string
}

// DefaultTolerance applies when neither postings nor options say otherwise.
var DefaultTolerance = decimal.New(5, -3)

// DefaultOptions returns the options of an empty ledger.
func DefaultOptions() *Options {
	return &Options{
		Roots:                       DefaultAccountRoots,
		BookingMethod:               BookingStrict,
		ConversionCurrency:          "NOTHING",
		AccountCurrentEarnings:      "Equity:Earnings:Current",
		AccountCurrentConversions:   "Equity:Conversions:Current",
		AccountPreviousBalances:     "Equity:Opening-Balances",
		AccountPreviousEarnings:     "Equity:Earnings:Previous",
		AccountPreviousConversions:  "Equity:Conversions:Previous",
		AccountUnrealizedGains:      "Income:Unrealized",
		InferredToleranceDefault:    map[string]decimal.Decimal{},
		InferredToleranceMultiplier: decimal.New(5, -1),
	}
}

// ToleranceDefault returns the fallback tolerance for currency.
func (o *Options) ToleranceDefault(currency string) decimal.Decimal {
	if t, ok := o.InferredToleranceDefault[currency]; ok {
		return t
	}
	if t, ok := o.InferredToleranceDefault["*"]; ok {
		return t
	}
	return DefaultTolerance
}

// OptionError reports an unknown option or an invalid value.
type OptionError struct {
	Pos     Position
	Name    string
	Message string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

// GetPosition returns where the option was written.
func (e *OptionError) GetPosition() Position {
	return e.Pos
}

// GetDirective returns nil: options are not dated directives.
func (e *OptionError) GetDirective() Directive {
	return nil
}

// NewOptionError creates an OptionError for opt.
func NewOptionError(opt *Option, format string, args ...any) *OptionError {
	return &OptionError{Pos: opt.Pos, Name: opt.Name, Message: fmt.Sprintf(format, args...)}
}

// ParseOptions folds option directives over the defaults. Invalid options
// are reported and otherwise ignored.
func ParseOptions(opts []*Option) (*Options, []error) {
	o := DefaultOptions()
	var errs []error
	for _, opt := range opts {
		if err := o.Set(opt); err != nil {
			errs = append(errs, err)
		}
	}
	return o, errs
}

// Set applies a single option.
func (o *Options) Set(opt *Option) error {
	v := opt.Value
	switch opt.Name {
	case "title":
		o.Title = v
	case "filename":
		o.Filename = v
	case "operating_currency":
		o.OperatingCurrency = append(o.OperatingCurrency, v)
	case "name_assets":
		o.Roots.Assets = v
	case "name_liabilities":
		o.Roots.Liabilities = v
	case "name_equity":
		o.Roots.Equity = v
	case "name_income":
		o.Roots.Income = v
	case "name_expenses":
		o.Roots.Expenses = v
	case "account_current_earnings":
		o.AccountCurrentEarnings = v
	case "account_current_conversions":
		o.AccountCurrentConversions = v
	case "account_previous_balances":
		o.AccountPreviousBalances = v
	case "account_previous_earnings":
		o.AccountPreviousEarnings = v
	case "account_previous_conversions":
		o.AccountPreviousConversions = v
	case "account_unrealized_gains":
		o.AccountUnrealizedGains = v
	case "conversion_currency":
		o.ConversionCurrency = v
	case "documents":
		o.Documents = append(o.Documents, v)
	case "render_commas":
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			o.RenderCommas = true
		case "false", "0", "no":
			o.RenderCommas = false
		default:
			return NewOptionError(opt, "invalid boolean %q for option %q", v, opt.Name)
		}
	case "booking_method":
		m, err := ParseBookingMethod(v)
		if err != nil {
			return NewOptionError(opt, "%s", err)
		}
		o.BookingMethod = m
	case "inferred_tolerance_default":
		currency, number, ok := strings.Cut(v, ":")
		if !ok {
			return NewOptionError(opt, "expected CURRENCY:TOLERANCE, got %q", v)
		}
		d, err := decimal.NewFromString(number)
		if err != nil {
			return NewOptionError(opt, "invalid tolerance %q", number)
		}
		o.InferredToleranceDefault[currency] = d
	case "inferred_tolerance_multiplier":
		d, err := decimal.NewFromString(v)
		if err != nil {
			return NewOptionError(opt, "invalid multiplier %q", v)
		}
		o.InferredToleranceMultiplier = d
	case "include":
		return NewOptionError(opt, "option %q is read-only", opt.Name)
	case "plugin_processing_mode", "tolerance", "allow_pipe_separator", "long_string_maxlines", "insert_pythonpath":
		// Accepted for compatibility; no effect.
	default:
		return NewOptionError(opt, "unknown option %q", opt.Name)
	}
	return nil
}
