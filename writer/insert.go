package writer

import (
	"regexp"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
)

// InsertRule directs new entries whose account matches Pattern into
// Filename, above the 1-based Line. Rules only apply to entries dated after
// the rule.
type InsertRule struct {
	Date     ast.Date
	Pattern  *regexp.Regexp
	Filename string
	Line     int
}

// entryAccounts lists the accounts considered for placing d, by priority:
// the posting accounts of a transaction in reverse order.
func entryAccounts(d ast.Directive) []string {
	accounts := ast.Accounts(d)
	if _, ok := d.(*ast.Transaction); ok {
		out := make([]string, len(accounts))
		for i, a := range accounts {
			out[len(accounts)-1-i] = a
		}
		return out
	}
	return accounts
}

// FindInsertPosition returns the file and 0-based line index d should be
// inserted at. The index is -1 when d is to be appended to defaultFile.
func FindInsertPosition(d ast.Directive, rules []InsertRule, defaultFile string) (string, int) {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b InsertRule) int {
		return b.Date.Compare(a.Date)
	})
	for _, account := range entryAccounts(d) {
		for _, r := range sorted {
			if !r.Date.Before(d.GetDate()) {
				continue
			}
			if r.Pattern.MatchString(account) {
				return r.Filename, r.Line - 1
			}
		}
	}
	return defaultFile, -1
}

// InsertEntry renders d into the file chosen by FindInsertPosition. It
// returns the file written and the rules with line numbers after the
// insertion point shifted by the inserted lines.
func (w *Writer) InsertEntry(d ast.Directive, rules []InsertRule, defaultFile string) (string, []InsertRule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.insertEntry(d, rules, defaultFile)
}

func (w *Writer) insertEntry(d ast.Directive, rules []InsertRule, defaultFile string) (string, []InsertRule, error) {
	path, index := FindInsertPosition(d, rules, defaultFile)
	content := w.Render(d)

	if index < 0 {
		f, err := readFile(path)
		if err != nil {
			return "", rules, err
		}
		if len(f.lines) > 0 {
			f.lines = append(f.lines, "")
		}
		f.lines = append(f.lines, splitLines(content)...)
		return path, rules, f.write()
	}

	f, err := readFile(path)
	if err != nil {
		return "", rules, err
	}
	if index > len(f.lines) {
		index = len(f.lines)
	}
	inserted := append(splitLines(content), "")
	lines := make([]string, 0, len(f.lines)+len(inserted))
	lines = append(lines, f.lines[:index]...)
	lines = append(lines, inserted...)
	lines = append(lines, f.lines[index:]...)
	f.lines = lines
	if err := f.write(); err != nil {
		return "", rules, err
	}

	added := strings.Count(content, "\n") + 1
	updated := make([]InsertRule, len(rules))
	for i, r := range rules {
		if r.Filename == path && r.Line-1 >= index {
			r.Line += added
		}
		updated[i] = r
	}
	return path, updated, nil
}

// insertOrder places opens and balances before other entries of a date and
// documents and closes after them.
func insertOrder(d ast.Directive) int {
	switch d.(type) {
	case *ast.Open:
		return -2
	case *ast.Balance:
		return -1
	case *ast.Document:
		return 1
	case *ast.Close:
		return 2
	}
	return 0
}

// InsertEntries inserts entries in date order, threading the updated rules
// through each insertion. Failed insertions do not stop the others; their
// errors are combined. It returns the files written and the final rules.
func (w *Writer) InsertEntries(entries []ast.Directive, rules []InsertRule, defaultFile string) ([]string, []InsertRule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b ast.Directive) int {
		if c := a.GetDate().Compare(b.GetDate()); c != 0 {
			return c
		}
		return insertOrder(a) - insertOrder(b)
	})

	var (
		paths []string
		errs  error
	)
	for _, d := range sorted {
		path, updated, err := w.insertEntry(d, rules, defaultFile)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		rules = updated
		if !slices.Contains(paths, path) {
			paths = append(paths, path)
		}
	}
	return paths, rules, errs
}
