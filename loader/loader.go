// Package loader turns a ledger file on disk into a canonical, booked and
// validated entry stream.
//
// Loading runs in stages:
//
//  1. parse the root file and every file it includes;
//  2. run the plugins named by `plugin` lines, in source order;
//  3. book transactions (interpolation, lot matching, balancing);
//  4. validate accounts, balance assertions and pads;
//  5. sort into canonical order.
//
// Loading is total. Every stage appends to one error list and hands its
// output to the next; only an unreadable or binary root file aborts.
//
// Example usage:
//
//	l := loader.New()
//	result, err := l.Load(ctx, "main.beancount")
//	if err != nil {
//		return err // root file unreadable
//	}
//	for _, e := range result.Errors {
//		fmt.Println(e)
//	}
package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/booking"
	"github.com/robinvdvleuten/beanledger/parser"
	"github.com/robinvdvleuten/beanledger/plugin"
	"github.com/robinvdvleuten/beanledger/telemetry"
	"github.com/robinvdvleuten/beanledger/validation"
)

// Loader loads ledgers. Configure it with functional options passed to New:
//
//	l := loader.New(loader.WithPluginRegistry(registry))
type Loader struct {
	// FollowIncludes resolves include lines. When false only the root file
	// is read and its includes are left in Result.Includes.
	FollowIncludes bool
	// Registry resolves plugin lines. Nil disables plugins.
	Registry *plugin.Registry
	// Plugins run before the ones named in the source.
	Plugins []*ast.Plugin
}

// Option configures a Loader.
type Option func(*Loader)

// WithoutIncludes reads the root file only.
func WithoutIncludes() Option {
	return func(l *Loader) {
		l.FollowIncludes = false
	}
}

// WithPluginRegistry sets the registry used to resolve plugin lines.
func WithPluginRegistry(r *plugin.Registry) Option {
	return func(l *Loader) {
		l.Registry = r
	}
}

// WithPlugins runs the named plugins on every load, before any named in
// the source. This is how a host enables auto_accounts without editing the
// ledger.
func WithPlugins(names ...string) Option {
	return func(l *Loader) {
		for _, name := range names {
			l.Plugins = append(l.Plugins, &ast.Plugin{Name: name, Pos: ast.Position{Filename: "<loader>"}})
		}
	}
}

// New creates a Loader that follows includes and resolves the built-in
// plugins.
func New(opts ...Option) *Loader {
	l := &Loader{
		FollowIncludes: true,
		Registry:       plugin.NewRegistry(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is a loaded ledger.
type Result struct {
	// Entries are booked, validated and in canonical order.
	Entries []ast.Directive
	// Errors holds every problem found, in pipeline order.
	Errors         []error
	Options        *ast.Options
	DisplayContext *ast.DisplayContext
	// Files lists the absolute paths read, root first.
	Files []string
	// Includes is only set when includes are not followed.
	Includes []*ast.Include
}

// LoadError reports a file that could not be read or included.
type LoadError struct {
	Pos     ast.Position
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

// GetPosition returns the include line that failed, or the file itself.
func (e *LoadError) GetPosition() ast.Position {
	return e.Pos
}

// Load reads filename and everything it includes and runs the pipeline.
// The error is non-nil only when the root file cannot be used at all.
func (l *Loader) Load(ctx context.Context, filename string) (*Result, error) {
	timer := telemetry.FromContext(ctx).Start("loader.load " + filepath.Base(filename))
	defer timer.End()

	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", filename, err)
	}
	data, err := readSource(abs)
	if err != nil {
		return nil, err
	}

	tree, files, errs := l.parseAll(ctx, abs, data)
	return l.process(ctx, tree, files, errs), nil
}

// LoadSource runs the pipeline over source as if read from filename.
// Includes are resolved relative to filename.
func (l *Loader) LoadSource(ctx context.Context, filename string, source []byte) *Result {
	timer := telemetry.FromContext(ctx).Start("loader.load_source")
	defer timer.End()

	tree, files, errs := l.parseAll(ctx, filename, decode(source))
	return l.process(ctx, tree, files, errs)
}

func (l *Loader) process(ctx context.Context, tree *ast.AST, files []string, errs []error) *Result {
	opts, optErrs := ast.ParseOptions(tree.Options)
	errs = append(errs, optErrs...)
	opts.Include = files
	if len(files) > 0 && opts.Filename == "" {
		opts.Filename = files[0]
	}

	entries := tree.Directives
	if l.Registry != nil {
		plugins := append(append([]*ast.Plugin(nil), l.Plugins...), tree.Plugins...)
		var perrs []error
		entries, perrs = l.Registry.Run(ctx, entries, opts, plugins)
		errs = append(errs, perrs...)
	}

	entries, berrs := booking.Book(ctx, entries, opts)
	errs = append(errs, berrs...)

	entries, verrs := validation.Validate(ctx, entries, opts)
	errs = append(errs, verrs...)

	ast.SortDirectives(entries)

	result := &Result{
		Entries:        entries,
		Errors:         errs,
		Options:        opts,
		DisplayContext: tree.DisplayContext,
		Files:          files,
	}
	if !l.FollowIncludes {
		result.Includes = tree.Includes
	}
	return result
}

// pending is a file waiting to be parsed.
type pending struct {
	path string
	data []byte
	from *ast.Include
}

// parseAll parses root and, when following includes, every file reachable
// from it. Files are visited depth first using an explicit stack; a file is
// parsed once no matter how often it is included.
func (l *Loader) parseAll(ctx context.Context, root string, data []byte) (*ast.AST, []string, []error) {
	var errs []error
	merged := &ast.AST{DisplayContext: ast.NewDisplayContext()}
	visited := map[string]bool{root: true}
	files := []string{root}

	stack := []pending{{path: root, data: data}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if next.data == nil {
			b, err := readSource(next.path)
			if err != nil {
				errs = append(errs, &LoadError{Pos: next.from.Pos, Message: err.Error()})
				continue
			}
			next.data = b
		}

		tree, perrs := parser.Parse(ctx, next.path, next.data)
		errs = append(errs, perrs...)
		if next.from == nil {
			merged.Options = append(merged.Options, tree.Options...)
		}
		merged.Directives = append(merged.Directives, tree.Directives...)
		merged.Plugins = append(merged.Plugins, tree.Plugins...)
		merged.DisplayContext.Merge(tree.DisplayContext)

		if !l.FollowIncludes {
			merged.Includes = append(merged.Includes, tree.Includes...)
			continue
		}

		// Push in reverse so includes are visited in source order.
		var children []pending
		for _, inc := range tree.Includes {
			paths, err := resolveInclude(next.path, inc)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, p := range paths {
				if visited[p] {
					errs = append(errs, &LoadError{Pos: inc.Pos, Message: fmt.Sprintf("Duplicate filename parsed: %q", p)})
					continue
				}
				visited[p] = true
				files = append(files, p)
				children = append(children, pending{path: p, from: inc})
			}
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return merged, files, errs
}

// resolveInclude expands the glob of inc relative to the including file.
func resolveInclude(from string, inc *ast.Include) ([]string, error) {
	pattern := inc.Filename
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(filepath.Dir(from), pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &LoadError{Pos: inc.Pos, Message: fmt.Sprintf("Invalid include pattern %q: %s", inc.Filename, err)}
	}
	if len(matches) == 0 {
		return nil, &LoadError{Pos: inc.Pos, Message: fmt.Sprintf("File glob %q does not match any files", inc.Filename)}
	}
	for i, m := range matches {
		if abs, err := filepath.Abs(m); err == nil {
			matches[i] = abs
		}
	}
	return matches, nil
}

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

// readSource reads path as UTF-8 text, dropping a byte order mark.
func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	data = decode(data)
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return nil, fmt.Errorf("%s is a binary file", path)
	}
	return data, nil
}

// decode strips a UTF-8 or UTF-16 byte order mark, converting UTF-16
// input to UTF-8. Input without a BOM is returned unchanged.
func decode(data []byte) []byte {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return data
	}
	return out
}
