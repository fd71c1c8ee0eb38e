// Package symbol implements the interning store described in
// SPEC_FULL.md §4.1: every identifier the pipeline sees — source
// names, "file::symbol" composites, extern library paths — is
// interned once into a small integer handle so that every later
// comparison is pointer/integer equality instead of string equality.
package symbol

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Index is an opaque handle into a Table. The zero Index is never
// produced by a Table, so it doubles as an "unset" sentinel for
// callers that keep an Index in a struct field.
type Index struct {
	id uint64
}

// Valid reports whether idx was produced by some Table.Add/AddCombo.
func (idx Index) Valid() bool { return idx.id != 0 }

// Raw exposes the allocation-order id, for callers (the IR builder's
// file-ordering pass) that need a stable total order over symbols
// without caring what it is.
func (idx Index) Raw() uint64 { return idx.id }

func (idx Index) String() string {
	return fmt.Sprintf("sym(%d)", idx.id)
}

// GenericOpen and GenericClose are the two reserved sentinels used by
// callers (the IR builder) to delimit generic-argument lists in a
// rendered symbol name, e.g. "List<Int>". They are allocated out of
// band so they never collide with an interned string.
var (
	GenericOpen  = Index{id: ^uint64(0)}
	GenericClose = Index{id: ^uint64(0) - 1}
)

type entryKind uint8

const (
	kindLeaf entryKind = iota
	kindCombo
)

type entry struct {
	kind   entryKind
	leaf   string
	parent Index
	child  Index
}

type comboKey struct {
	parent Index
	child  Index
}

// Table is the interning store. Not safe for concurrent use without
// external synchronization — every caller in this module builds a
// Table single-threadedly during compilation and treats it as
// read-only afterward.
type Table struct {
	byString *swiss.Map[string, Index]
	byCombo  *swiss.Map[comboKey, Index]
	entries  []entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		byString: swiss.NewMap[string, Index](64),
		byCombo:  swiss.NewMap[comboKey, Index](16),
		entries:  make([]entry, 1, 64), // index 0 reserved as the invalid sentinel
	}
}

// Add interns s, returning the same Index on every call with an equal
// string.
func (t *Table) Add(s string) Index {
	if idx, ok := t.byString.Get(s); ok {
		return idx
	}

	idx := Index{id: uint64(len(t.entries))}
	t.entries = append(t.entries, entry{kind: kindLeaf, leaf: s})
	t.byString.Put(s, idx)
	return idx
}

// AddCombo returns a handle equivalent to "Get(a) + \"::\" + Get(b)"
// for display purposes, without ever allocating or interning the
// joined string. Idempotent like Add: the same (a, b) pair always
// yields the same Index, so the IR builder can use combo handles as
// map keys for "namespace::function" declarations.
func (t *Table) AddCombo(a, b Index) Index {
	key := comboKey{parent: a, child: b}
	if idx, ok := t.byCombo.Get(key); ok {
		return idx
	}

	idx := Index{id: uint64(len(t.entries))}
	t.entries = append(t.entries, entry{kind: kindCombo, parent: a, child: b})
	t.byCombo.Put(key, idx)
	return idx
}

// String renders idx, recursively expanding combos as "a::b".
func (t *Table) String(idx Index) string {
	if !idx.Valid() || int(idx.id) >= len(t.entries) {
		return "<invalid-symbol>"
	}

	e := t.entries[idx.id]
	switch e.kind {
	case kindLeaf:
		return e.leaf
	case kindCombo:
		return t.String(e.parent) + "::" + t.String(e.child)
	default:
		panic("symbol: unreachable entry kind")
	}
}

// FindRoot peels one left-most component off idx: for a combo
// "a::b" it returns (a, &b); for a leaf it returns (idx, nil).
func (t *Table) FindRoot(idx Index) (Index, *Index) {
	if !idx.Valid() || int(idx.id) >= len(t.entries) {
		panic("symbol: FindRoot of invalid index")
	}

	e := t.entries[idx.id]
	if e.kind == kindCombo {
		child := e.child
		return e.parent, &child
	}
	return idx, nil
}
