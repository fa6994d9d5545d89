package parser

// Interner deduplicates strings that repeat throughout a ledger: account
// names, currencies and metadata keys. All occurrences share one backing
// string, which keeps large ledgers compact after parsing.
type Interner struct {
	pool map[string]string
}

// NewInterner creates an interner with the given initial capacity.
func NewInterner(capacity int) *Interner {
	return &Interner{pool: make(map[string]string, capacity)}
}

// Intern returns the canonical instance of s.
func (i *Interner) Intern(s string) string {
	if interned, ok := i.pool[s]; ok {
		return interned
	}
	i.pool[s] = s
	return s
}

// InternBytes is Intern for a token's bytes. The lookup does not allocate;
// only a first occurrence is copied.
func (i *Interner) InternBytes(b []byte) string {
	if interned, ok := i.pool[string(b)]; ok {
		return interned
	}
	s := string(b)
	i.pool[s] = s
	return s
}

// Size returns the number of unique strings.
func (i *Interner) Size() int {
	return len(i.pool)
}
