// Package plugin runs named transformations over the parsed entry stream.
//
// A plugin receives every directive of the ledger and returns the
// directives that replace them together with any errors it found. Plugins
// are resolved by name from a Registry; the loader runs them in the order
// their `plugin` lines appear in the source, before booking.
//
// Two plugins are built in:
//
//   - auto_accounts opens every account that is referenced without an Open,
//     dated at its first use;
//   - implicit_prices adds a Price directive for every posting that carries
//     a price annotation.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

// Func transforms entries. config is the optional string written after the
// plugin name. A plugin must not mutate the directives it is given; it
// returns new ones for anything it changes.
type Func func(ctx context.Context, entries []ast.Directive, opts *ast.Options, config string) ([]ast.Directive, []error)

// Registry maps plugin names to implementations. The zero value is empty and
// ready to use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry holding the built-in plugins.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register("auto_accounts", AutoAccounts)
	r.Register("implicit_prices", ImplicitPrices)
	return r
}

// Register adds or replaces the plugin called name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = make(map[string]Func)
	}
	r.funcs[name] = fn
}

// Lookup resolves name. Dotted module paths such as
// "beancount.plugins.auto_accounts" resolve by their last component when the
// full name is not registered.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.funcs[name]; ok {
		return fn, true
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		fn, ok := r.funcs[name[i+1:]]
		return fn, ok
	}
	return nil, false
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run applies plugins in order. An unknown plugin is reported and skipped;
// a plugin that fails keeps its errors, and the entries it returned are
// used as input to the next one.
func (r *Registry) Run(ctx context.Context, entries []ast.Directive, opts *ast.Options, plugins []*ast.Plugin) ([]ast.Directive, []error) {
	timer := telemetry.FromContext(ctx).Start("plugin.run")
	defer timer.End()

	var errs []error
	for _, p := range plugins {
		fn, ok := r.Lookup(p.Name)
		if !ok {
			errs = append(errs, NewPluginError(p, "Unknown plugin %q", p.Name))
			continue
		}
		t := timer.Child(p.Name)
		out, perrs := fn(ctx, entries, opts, p.Config)
		t.End()
		errs = append(errs, perrs...)
		if out != nil {
			entries = out
		}
	}
	return entries, errs
}

// PluginError is reported by a plugin, or for a plugin that could not be
// resolved.
type PluginError struct {
	Pos       ast.Position
	Plugin    string
	Message   string
	Directive ast.Directive
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

// GetPosition returns the plugin line, or the offending directive's position.
func (e *PluginError) GetPosition() ast.Position { return e.Pos }

// GetDirective returns the directive the error concerns, if any.
func (e *PluginError) GetDirective() ast.Directive { return e.Directive }

// NewPluginError creates an error located at the plugin line p.
func NewPluginError(p *ast.Plugin, format string, args ...any) *PluginError {
	return &PluginError{Pos: p.Pos, Plugin: p.Name, Message: fmt.Sprintf(format, args...)}
}

// NewDirectiveError creates an error raised by plugin name about d.
func NewDirectiveError(name string, d ast.Directive, format string, args ...any) *PluginError {
	return &PluginError{Pos: d.Position(), Plugin: name, Message: fmt.Sprintf(format, args...), Directive: d}
}
