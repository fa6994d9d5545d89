package ast

import (
	"regexp"
	"strings"
)

// Sep separates the components of an account name.
const Sep = ":"

// accountSegmentRegex validates account segments after the root.
// Must start with an uppercase letter or digit and contain alphanumerics and hyphens.
var accountSegmentRegex = regexp.MustCompile(`^[\p{Lu}\p{Nd}][\p{L}\p{Nd}-]*$`)

// AccountRoots holds the configurable names of the five account types.
type AccountRoots struct {
	Assets      string
	Liabilities string
	Equity      string
	Income      string
	Expenses    string
}

// DefaultAccountRoots are the standard English root names.
var DefaultAccountRoots = AccountRoots{
	Assets:      "Assets",
	Liabilities: "Liabilities",
	Equity:      "Equity",
	Income:      "Income",
	Expenses:    "Expenses",
}

// All returns the root names in balance-sheet order.
func (r AccountRoots) All() []string {
	return []string{r.Assets, r.Liabilities, r.Equity, r.Income, r.Expenses}
}

// IsRoot reports whether name is one of the configured roots.
func (r AccountRoots) IsRoot(name string) bool {
	switch name {
	case r.Assets, r.Liabilities, r.Equity, r.Income, r.Expenses:
		return true
	}
	return false
}

// IsBalanceSheet reports whether account belongs to Assets, Liabilities or Equity.
func (r AccountRoots) IsBalanceSheet(account string) bool {
	switch Root(account) {
	case r.Assets, r.Liabilities, r.Equity:
		return true
	}
	return false
}

// IsIncomeStatement reports whether account belongs to Income or Expenses.
func (r AccountRoots) IsIncomeStatement(account string) bool {
	switch Root(account) {
	case r.Income, r.Expenses:
		return true
	}
	return false
}

// IsValidAccount checks the shape of an account name: a configured root
// followed by at least one well-formed segment.
func (r AccountRoots) IsValidAccount(name string) bool {
	parts := strings.Split(name, Sep)
	if len(parts) < 2 || !r.IsRoot(parts[0]) {
		return false
	}
	for _, p := range parts[1:] {
		if !accountSegmentRegex.MatchString(p) {
			return false
		}
	}
	return true
}

// Root returns the first component of an account name.
func Root(account string) string {
	root, _, _ := strings.Cut(account, Sep)
	return root
}

// Parent returns the account one level up, or "" for a root.
func Parent(account string) string {
	i := strings.LastIndex(account, Sep)
	if i < 0 {
		return ""
	}
	return account[:i]
}

// Leaf returns the last component of an account name.
func Leaf(account string) string {
	return account[strings.LastIndex(account, Sep)+1:]
}

// Join builds an account name from components.
func Join(components ...string) string {
	return strings.Join(components, Sep)
}

// Ancestors returns account and all its parents, innermost first.
//
// Example:
//
//	ast.Ancestors("Assets:US:Cash") // ["Assets:US:Cash", "Assets:US", "Assets"]
func Ancestors(account string) []string {
	if account == "" {
		return nil
	}
	out := []string{account}
	for p := Parent(account); p != ""; p = Parent(p) {
		out = append(out, p)
	}
	return out
}

// HasComponent reports whether component appears as a run of whole
// segments of account ("Food" and "Expenses:Food" both match
// "Expenses:Food:Lunch").
func HasComponent(account, component string) bool {
	if component == "" {
		return false
	}
	return strings.Contains(Sep+account+Sep, Sep+component+Sep)
}

// IsDescendant reports whether account equals parent or lies below it.
func IsDescendant(account, parent string) bool {
	return account == parent || strings.HasPrefix(account, parent+Sep)
}
