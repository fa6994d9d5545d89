package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strings"
)

// Hash returns a stable SHA-256 hex digest of a directive's semantic fields.
// Source position, and with it the reserved filename/lineno metadata, is
// excluded so moving an entry within a file keeps its hash.
func Hash(d Directive) string {
	h := sha256.New()
	w := &hashWriter{w: h}
	w.field(d.Kind().String())
	w.field(d.GetDate().String())

	switch e := d.(type) {
	case *Open:
		w.field(e.Account)
		w.field(strings.Join(e.Currencies, ","))
		w.field(string(e.BookingMethod))
	case *Close:
		w.field(e.Account)
	case *Commodity:
		w.field(e.Currency)
	case *Balance:
		w.field(e.Account)
		w.field(e.Amount.String())
		if e.Tolerance != nil {
			w.field(e.Tolerance.String())
		}
	case *Pad:
		w.field(e.Account)
		w.field(e.Source)
	case *Note:
		w.field(e.Account)
		w.field(e.Comment)
	case *Document:
		w.field(e.Account)
		w.field(e.Filename)
		w.tags(e.Tags, e.Links)
	case *Event:
		w.field(e.Type)
		w.field(e.Description)
	case *Query:
		w.field(e.Name)
		w.field(e.QueryString)
	case *Price:
		w.field(e.Currency)
		w.field(e.Amount.String())
	case *Custom:
		w.field(e.Type)
		for _, v := range e.Values {
			w.field(v.Kind.String() + "=" + v.String())
		}
	case *Transaction:
		w.field(e.Flag)
		w.field(e.Payee)
		w.field(e.Narration)
		w.tags(e.Tags, e.Links)
		for _, p := range e.Postings {
			w.field(p.Flag)
			w.field(p.Account)
			if p.Units != nil {
				w.field(p.Units.String())
			}
			if p.Lot != nil {
				w.field(p.Lot.String())
			} else if p.Cost != nil {
				w.field(p.Cost.String())
			}
			if p.Price != nil {
				w.field("@" + p.Price.String())
			}
		}
	}
	w.meta(d.GetMetadata())
	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter struct {
	w io.Writer
}

func (h *hashWriter) field(s string) {
	_, _ = io.WriteString(h.w, s)
	_, _ = h.w.Write([]byte{0})
}

func (h *hashWriter) tags(tags []Tag, links []Link) {
	ts := make([]string, len(tags))
	for i, t := range tags {
		ts[i] = string(t)
	}
	sort.Strings(ts)
	ls := make([]string, len(links))
	for i, l := range links {
		ls[i] = string(l)
	}
	sort.Strings(ls)
	h.field(strings.Join(ts, ","))
	h.field(strings.Join(ls, ","))
}

func (h *hashWriter) meta(m Metadata) {
	keys := make([]string, 0, len(m))
	for _, e := range m {
		if e.Key == MetaFilename || e.Key == MetaLineno {
			continue
		}
		keys = append(keys, e.Key+"="+e.Value.String())
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.field(k)
	}
}
