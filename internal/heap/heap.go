// Package heap implements the object arena described in SPEC_FULL.md
// §4.7 / spec.md §3-§4.6: a fixed-size slice of object cells with a
// singly-linked free list threaded through the unused slots
// themselves, mirroring azurite_runtime's ObjectMap/object_map.rs.
package heap

import "fmt"

// Ref is an index into a Heap's arena. The zero Ref is an ordinary
// slot: index 0 of a freshly constructed Heap is the first free slot,
// so the first Put returns Ref 0. There is no separate "null ref" —
// the compiler never emits a Struct/Str reference it didn't just
// allocate.
type Ref uint64

// Kind discriminates the tagged ObjectData union stored in a slot.
type Kind uint8

const (
	KindFree Kind = iota
	KindString
	KindStruct
)

// Object is one arena slot: a mark flag plus the payload union. Only
// one of Str/Fields/Next is meaningful, selected by Data.
type Object struct {
	Live bool
	Data Kind

	Str    string
	Fields []ObjectValue
	Next   Ref // valid when Data == KindFree
}

// ObjectValue is the heap's view of a stack cell: enough to tell
// whether a field references another heap object (for GC marking)
// and to restore its original tag on read, without the heap package
// depending on internal/value or internal/vm's cell representation
// directly (Tag is the VM's CellTag, carried here as a raw byte to
// avoid an import cycle).
type ObjectValue struct {
	IsRef bool
	Ref   Ref
	Tag   uint8
	Raw   uint64
}

// Heap is the fixed-capacity object arena plus its free-list head.
type Heap struct {
	objects  []Object
	freeHead Ref
}

// New returns a Heap with space pre-allocated slots, every slot
// initially Free and chained to the next (wrapping at the end),
// exactly mirroring ObjectMap::new's ring construction.
func New(space int) *Heap {
	objects := make([]Object, space)
	for i := range objects {
		objects[i] = Object{Data: KindFree, Next: Ref((i + 1) % space)}
	}
	return &Heap{objects: objects, freeHead: 0}
}

// ErrFull is returned by Put when the arena has no free slots. The VM
// responds by running one GC cycle and retrying once (spec.md §4.7).
var ErrFull = fmt.Errorf("heap: arena full")

// Put inserts obj at the current free-list head and advances the
// head, returning the slot's Ref. Returns ErrFull if the slot at
// freeHead is not itself Free (the pathological wrapped-arena case
// spec.md §4.5 calls out).
func (h *Heap) Put(obj Object) (Ref, error) {
	idx := h.freeHead
	slot := &h.objects[idx]

	if slot.Data != KindFree {
		return 0, ErrFull
	}

	next := slot.Next
	*slot = obj
	h.freeHead = next
	return idx, nil
}

// Get returns a pointer to the object at idx for in-place reads.
func (h *Heap) Get(idx Ref) *Object { return &h.objects[idx] }

// Len reports the arena's total capacity (free and live slots alike).
func (h *Heap) Len() int { return len(h.objects) }

// FreeHead exposes the current free-list head, for tests asserting
// free-list well-formedness.
func (h *Heap) FreeHead() Ref { return h.freeHead }

// Raw exposes the underlying slots for the GC's mark/sweep passes.
func (h *Heap) Raw() []Object { return h.objects }

// SetFreeHead is used by the GC sweep phase to publish the new free
// list head once every slot's fate has been decided.
func (h *Heap) SetFreeHead(r Ref) { h.freeHead = r }

// NewString returns an unmarked String object wrapping s.
func NewString(s string) Object { return Object{Data: KindString, Str: s} }

// NewStruct returns an unmarked Struct object wrapping fields.
func NewStruct(fields []ObjectValue) Object { return Object{Data: KindStruct, Fields: fields} }

// StringValue returns the string payload. Panics if Data != KindString
// — an interpreter-level invariant violation, not a user-facing error.
func (o *Object) StringValue() string {
	if o.Data != KindString {
		panic(fmt.Sprintf("heap: StringValue on object kind %d", o.Data))
	}
	return o.Str
}

// StructFields returns the field slice. Panics if Data != KindStruct.
func (o *Object) StructFields() []ObjectValue {
	if o.Data != KindStruct {
		panic(fmt.Sprintf("heap: StructFields on object kind %d", o.Data))
	}
	return o.Fields
}
