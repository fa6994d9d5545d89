// Package ast declares the in-memory model of a ledger: the twelve dated
// directive kinds, postings with units, cost and price, typed metadata and
// the per-commodity display context.
//
// Directives are produced by the parser package or built programmatically
// with the constructors in builders.go. Once the loader has finished they are
// treated as immutable; derived views (filters, realizations) share them by
// reference.
package ast

import (
	"cmp"
	"slices"
)

// Option is an `option "name" "value"` line.
type Option struct {
	Pos   Position
	Name  string
	Value string
}

// Include is an `include "glob"` line.
type Include struct {
	Pos      Position
	Filename string
}

// Plugin is a `plugin "name" ["config"]` line.
type Plugin struct {
	Pos    Position
	Name   string
	Config string
}

// AST is the result of parsing one source file, or several merged ones.
type AST struct {
	Directives     []Directive
	Options        []*Option
	Includes       []*Include
	Plugins        []*Plugin
	DisplayContext *DisplayContext
}

// Merge appends the contents of other to a, keeping a's display context and
// folding other's observations into it.
func (a *AST) Merge(other *AST) {
	a.Directives = append(a.Directives, other.Directives...)
	a.Options = append(a.Options, other.Options...)
	a.Includes = append(a.Includes, other.Includes...)
	a.Plugins = append(a.Plugins, other.Plugins...)
	if a.DisplayContext == nil {
		a.DisplayContext = NewDisplayContext()
	}
	a.DisplayContext.Merge(other.DisplayContext)
}

// Compare orders directives by (date, kind, line). It is the total order all
// reports consume; ties between files are broken by the caller's stable sort.
func Compare(a, b Directive) int {
	if c := a.GetDate().Compare(b.GetDate()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	return cmp.Compare(a.Position().Line, b.Position().Line)
}

// SortDirectives sorts directives in place into canonical order. The sort is
// stable and skipped when the input is already ordered.
func SortDirectives(directives []Directive) {
	if slices.IsSortedFunc(directives, Compare) {
		return
	}
	slices.SortStableFunc(directives, Compare)
}

// Filter returns the directives of type T in order.
func Filter[T Directive](directives []Directive) []T {
	var out []T
	for _, d := range directives {
		if t, ok := d.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
