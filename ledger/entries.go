package ledger

import (
	"context"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/writer"
)

// GetEntry returns the first entry with the given hash.
func (l *Ledger) GetEntry(hash string) (ast.Directive, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getEntry(hash)
}

func (l *Ledger) getEntry(hash string) (ast.Directive, error) {
	for _, d := range l.all {
		if ast.Hash(d) == hash {
			return d, nil
		}
	}
	return nil, NewNotFoundError(hash)
}

// EntryContext is an entry together with its source and, for balances and
// transactions, the balances of its accounts around it.
type EntryContext struct {
	Entry ast.Directive
	// Before holds the balance of every account of Entry just before it.
	// Nil unless Entry is a Balance or Transaction.
	Before map[string]*inventory.Inventory
	// After holds the balances once Entry is applied. Nil unless Entry is a
	// Transaction.
	After  map[string]*inventory.Inventory
	Slice  string
	Sha256 string
}

// Context returns the context of the entry with the given hash.
func (l *Ledger) Context(hash string) (*EntryContext, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, err := l.getEntry(hash)
	if err != nil {
		return nil, err
	}
	slice, sum, err := l.writer.GetEntrySlice(entry)
	if err != nil {
		return nil, err
	}
	ec := &EntryContext{Entry: entry, Slice: slice, Sha256: sum}

	switch entry.(type) {
	case *ast.Balance, *ast.Transaction:
	default:
		return ec, nil
	}

	balances := map[string]*inventory.Inventory{}
	for _, account := range ast.Accounts(entry) {
		balances[account] = inventory.New()
	}
	for _, d := range l.all {
		if d == entry {
			break
		}
		if txn, ok := d.(*ast.Transaction); ok {
			addPostings(balances, txn)
		}
	}
	ec.Before = cloneBalances(balances)

	if txn, ok := entry.(*ast.Transaction); ok {
		addPostings(balances, txn)
		ec.After = balances
	}
	return ec, nil
}

func addPostings(balances map[string]*inventory.Inventory, txn *ast.Transaction) {
	for _, p := range txn.Postings {
		if inv, ok := balances[p.Account]; ok && p.Units != nil {
			inv.AddPosition(*p.Units, p.Lot)
		}
	}
}

func cloneBalances(balances map[string]*inventory.Inventory) map[string]*inventory.Inventory {
	out := make(map[string]*inventory.Inventory, len(balances))
	for k, v := range balances {
		out[k] = v.Clone()
	}
	return out
}

// reloadAfter runs a write and reloads the ledger, whether or not the write
// succeeded: a failed write may still have touched the files.
func (l *Ledger) reloadAfter(ctx context.Context, write func() error) error {
	err := write()
	return multierr.Append(err, l.load(ctx))
}

// SaveEntrySlice replaces the source of the entry with the given hash.
// sha256sum is the digest of the source as returned by Context. It returns
// the digest of the new source.
func (l *Ledger) SaveEntrySlice(ctx context.Context, hash, slice, sha256sum string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.getEntry(hash)
	if err != nil {
		return "", err
	}
	var sum string
	err = l.reloadAfter(ctx, func() error {
		var err error
		sum, err = l.writer.SaveEntrySlice(entry, slice, sha256sum)
		return err
	})
	return sum, err
}

// DeleteEntrySlice removes the source of the entry with the given hash.
func (l *Ledger) DeleteEntrySlice(ctx context.Context, hash, sha256sum string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.getEntry(hash)
	if err != nil {
		return err
	}
	return l.reloadAfter(ctx, func() error {
		return l.writer.DeleteEntrySlice(entry, sha256sum)
	})
}

// InsertMetadata adds the metadata key: value to the entry with the given
// hash. When key is taken a numbered variant is used; the key written is
// returned.
func (l *Ledger) InsertMetadata(ctx context.Context, hash, key, value string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.getEntry(hash)
	if err != nil {
		return "", err
	}
	var written string
	err = l.reloadAfter(ctx, func() error {
		var err error
		written, err = l.writer.InsertMetadata(entry, key, value)
		return err
	})
	return written, err
}

// InsertEntries writes new entries to the files chosen by the insert rules,
// or to the default file, and returns the files written.
func (l *Ledger) InsertEntries(ctx context.Context, entries []ast.Directive) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return nil, ErrNotLoaded
	}

	var paths []string
	err := l.reloadAfter(ctx, func() error {
		var err error
		paths, _, err = l.writer.InsertEntries(entries, l.insertRules(), l.defaultFile())
		return err
	})
	return paths, err
}

// insertRules returns the insert rules with file names made absolute
// against the root file.
func (l *Ledger) insertRules() []writer.InsertRule {
	rules := make([]writer.InsertRule, len(l.config.InsertEntry))
	for i, r := range l.config.InsertEntry {
		r.Filename = l.resolve(r.Filename)
		rules[i] = r
	}
	return rules
}

func (l *Ledger) defaultFile() string {
	if l.config.DefaultFile != "" {
		return l.resolve(l.config.DefaultFile)
	}
	return l.files[0]
}

func (l *Ledger) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(l.files[0]), path)
}

// GetSource returns the contents of one of the source files and their
// digest.
func (l *Ledger) GetSource(path string) (string, string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.writer.GetSource(path, l.files)
}

// SetSource replaces the contents of one of the source files. sha256sum is
// the digest returned by GetSource. It returns the digest of source.
func (l *Ledger) SetSource(ctx context.Context, path, source, sha256sum string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sum string
	err := l.reloadAfter(ctx, func() error {
		var err error
		sum, err = l.writer.SetSource(path, source, sha256sum, l.files)
		return err
	})
	return sum, err
}
