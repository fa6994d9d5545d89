// Package filter narrows an entry stream for reporting.
//
// There are three kinds of filter. A TimeFilter clamps the stream to a date
// range and summarises everything before it. An AccountFilter keeps entries
// touching a matching account. An AdvancedFilter evaluates a small boolean
// language over tags, links, metadata and amounts. Filters return a new
// slice and never modify the directives they are given.
package filter

import (
	"fmt"
	"regexp"

	"github.com/robinvdvleuten/beanledger/ast"
)

// Filter selects a subsequence of entries.
type Filter interface {
	Apply(entries []ast.Directive) []ast.Directive
}

// FilterError is returned for a filter value that cannot be parsed. Type is
// one of "time", "account" or "filter".
type FilterError struct {
	Type    string
	Message string
}

func (e *FilterError) Error() string {
	return e.Message
}

// NewFilterError creates a FilterError of the given type.
func NewFilterError(typ, format string, args ...any) *FilterError {
	return &FilterError{Type: typ, Message: fmt.Sprintf(format, args...)}
}

// matcher matches strings against a case-insensitive regular expression, or
// by equality when the pattern does not compile.
type matcher func(string) bool

func newMatcher(pattern string) matcher {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return func(s string) bool { return s == pattern }
	}
	return re.MatchString
}

// AccountFilter keeps entries with an account that has Value as one of its
// components or matches it as a regular expression.
type AccountFilter struct {
	Value string
	match matcher
}

// NewAccountFilter creates an AccountFilter. An empty value keeps
// everything.
func NewAccountFilter(value string) *AccountFilter {
	return &AccountFilter{Value: value, match: newMatcher(value)}
}

func (f *AccountFilter) Apply(entries []ast.Directive) []ast.Directive {
	if f.Value == "" {
		return entries
	}
	out := make([]ast.Directive, 0, len(entries))
	for _, d := range entries {
		for _, account := range ast.Accounts(d) {
			if ast.HasComponent(account, f.Value) || f.match(account) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func (f *AccountFilter) String() string {
	return f.Value
}
