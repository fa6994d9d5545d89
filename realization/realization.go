// Package realization folds an entry stream into a tree of accounts.
//
// Nodes live in one slice and refer to each other by NodeID, so a Tree can
// be cloned and walked without pointer chasing. Every node carries its own
// inventory, the inventory of its whole subtree, its Open and Close, and the
// journal of entries that touch it with the running balance after each one.
package realization

import (
	"sort"

	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// NodeID is the handle of a node within its Tree.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is one account. The root has an empty Name.
type Node struct {
	ID       NodeID
	Name     string
	Parent   NodeID
	Children []NodeID

	// Balance holds the postings made directly to this account.
	Balance *inventory.Inventory
	// BalanceChildren holds Balance plus the subtree below.
	BalanceChildren *inventory.Inventory

	Open  *ast.Open
	Close *ast.Close

	Journal []JournalEntry
}

// JournalEntry is one row of an account journal.
type JournalEntry struct {
	Directive ast.Directive
	// Postings are those of Directive that touch the account; empty for
	// entries that are not transactions.
	Postings []*ast.Posting
	// Change is the sum of Postings.
	Change *inventory.Inventory
	// Balance is the running balance after Directive.
	Balance *inventory.Inventory
}

// Tree is a realized account hierarchy.
type Tree struct {
	nodes []Node
	index map[string]NodeID
}

// New returns a tree holding only the root.
func New() *Tree {
	t := &Tree{index: map[string]NodeID{}}
	t.nodes = append(t.nodes, Node{
		ID:              0,
		Parent:          NoNode,
		Balance:         inventory.New(),
		BalanceChildren: inventory.New(),
	})
	t.index[""] = 0
	return t
}

// Realize builds the tree for entries, which must be in canonical order.
func Realize(entries []ast.Directive) *Tree {
	t := New()
	for _, d := range entries {
		switch e := d.(type) {
		case *ast.Open:
			n := t.node(t.Ensure(e.Account))
			n.Open = e
			t.record(n, d, nil)
		case *ast.Close:
			n := t.node(t.Ensure(e.Account))
			n.Close = e
			t.record(n, d, nil)
		case *ast.Transaction:
			t.transaction(e)
		default:
			seen := map[string]bool{}
			for _, account := range ast.Accounts(d) {
				if seen[account] {
					continue
				}
				seen[account] = true
				t.record(t.node(t.Ensure(account)), d, nil)
			}
		}
	}
	t.Recompute()
	return t
}

func (t *Tree) transaction(txn *ast.Transaction) {
	var order []string
	byAccount := map[string][]*ast.Posting{}
	for _, p := range txn.Postings {
		if _, ok := byAccount[p.Account]; !ok {
			order = append(order, p.Account)
		}
		byAccount[p.Account] = append(byAccount[p.Account], p)
	}
	for _, account := range order {
		n := t.node(t.Ensure(account))
		postings := byAccount[account]
		for _, p := range postings {
			if p.Units != nil {
				n.Balance.AddPosition(*p.Units, p.Lot)
			}
		}
		t.record(n, txn, postings)
	}
}

// record appends a journal row for d to n. n.Balance must already include
// the postings.
func (t *Tree) record(n *Node, d ast.Directive, postings []*ast.Posting) {
	n.Journal = append(n.Journal, JournalEntry{
		Directive: d,
		Postings:  postings,
		Change:    sumPostings(postings),
		Balance:   n.Balance.Clone(),
	})
}

func sumPostings(postings []*ast.Posting) *inventory.Inventory {
	inv := inventory.New()
	for _, p := range postings {
		if p.Units != nil {
			inv.AddPosition(*p.Units, p.Lot)
		}
	}
	return inv
}

func (t *Tree) node(id NodeID) *Node {
	return &t.nodes[id]
}

// Ensure returns the node of account, creating it and any missing parents.
func (t *Tree) Ensure(account string) NodeID {
	if id, ok := t.index[account]; ok {
		return id
	}
	parent := t.Ensure(ast.Parent(account))
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:              id,
		Name:            account,
		Parent:          parent,
		Balance:         inventory.New(),
		BalanceChildren: inventory.New(),
	})
	t.index[account] = id

	p := t.node(parent)
	i := sort.Search(len(p.Children), func(i int) bool {
		return t.nodes[p.Children[i]].Name > account
	})
	p.Children = slices.Insert(p.Children, i, id)
	return id
}

// Recompute rebuilds every BalanceChildren from the own balances.
func (t *Tree) Recompute() {
	var fold func(id NodeID) *inventory.Inventory
	fold = func(id NodeID) *inventory.Inventory {
		n := t.node(id)
		total := n.Balance.Clone()
		for _, c := range n.Children {
			total.AddInventory(fold(c))
		}
		n.BalanceChildren = total
		return total
	}
	fold(0)
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.node(0)
}

// Node returns the node with handle id.
func (t *Tree) Node(id NodeID) *Node {
	return t.node(id)
}

// Get returns the node of account.
func (t *Tree) Get(account string) (*Node, bool) {
	id, ok := t.index[account]
	if !ok {
		return nil, false
	}
	return t.node(id), true
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Accounts returns every account name in the tree, sorted.
func (t *Tree) Accounts() []string {
	out := make([]string, 0, len(t.nodes)-1)
	for _, n := range t.nodes[1:] {
		out = append(out, n.Name)
	}
	slices.Sort(out)
	return out
}

// Walk visits the subtree of id depth first, parents before children and
// children by name. Returning false from fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(*Node) bool) {
	n := t.node(id)
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}

// Leaves returns the nodes without children below id, in walk order.
func (t *Tree) Leaves(id NodeID) []*Node {
	var out []*Node
	t.Walk(id, func(n *Node) bool {
		if len(n.Children) == 0 && n.ID != 0 {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Ancestors returns the node of account and all nodes above it, innermost
// first, excluding the root.
func (t *Tree) Ancestors(account string) []*Node {
	id, ok := t.index[account]
	if !ok {
		return nil
	}
	var out []*Node
	for ; id > 0; id = t.nodes[id].Parent {
		out = append(out, t.node(id))
	}
	return out
}

// Clone returns a copy whose balances can be changed without affecting t.
// Journals are shared.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		nodes: make([]Node, len(t.nodes)),
		index: make(map[string]NodeID, len(t.index)),
	}
	for i, n := range t.nodes {
		n.Children = slices.Clone(n.Children)
		n.Balance = n.Balance.Clone()
		n.BalanceChildren = n.BalanceChildren.Clone()
		c.nodes[i] = n
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

// AccountJournal returns the journal of account. With children, the
// journals of all sub-accounts are merged in canonical order; an entry
// touching several of them appears once, and the running balance covers the
// whole subtree.
func (t *Tree) AccountJournal(account string, withChildren bool) []JournalEntry {
	n, ok := t.Get(account)
	if !ok {
		return nil
	}
	if !withChildren {
		return n.Journal
	}

	type row struct {
		entry    ast.Directive
		postings []*ast.Posting
	}
	var rows []*row
	byEntry := map[ast.Directive]*row{}
	t.Walk(n.ID, func(sub *Node) bool {
		for _, j := range sub.Journal {
			r, ok := byEntry[j.Directive]
			if !ok {
				r = &row{entry: j.Directive}
				byEntry[j.Directive] = r
				rows = append(rows, r)
			}
			r.postings = append(r.postings, j.Postings...)
		}
		return true
	})
	slices.SortStableFunc(rows, func(a, b *row) int {
		return ast.Compare(a.entry, b.entry)
	})

	balance := inventory.New()
	out := make([]JournalEntry, 0, len(rows))
	for _, r := range rows {
		change := sumPostings(r.postings)
		balance.AddInventory(change)
		out = append(out, JournalEntry{
			Directive: r.entry,
			Postings:  r.postings,
			Change:    change,
			Balance:   balance.Clone(),
		})
	}
	return out
}
