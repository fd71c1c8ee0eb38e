// Package value implements the compile-time value kinds and the
// runtime value cell described in SPEC_FULL.md §4.2 / spec.md §3.
package value

import (
	"fmt"
	"math"

	"github.com/rookieCookies/azurite-sub000/internal/symbol"
)

// Kind enumerates the compile-time value kinds. str and struct are
// "object kinds": their storage lives on the heap and a Value cell
// only ever carries a heap.Ref to them. Every other kind is inline.
type Kind uint8

const (
	I8 Kind = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F64
	KindBool
	Str
	Unit
	Struct
)

// IsObject reports whether values of this kind are heap-allocated.
func (k Kind) IsObject() bool { return k == Str || k == Struct }

func (k Kind) String() string {
	switch k {
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case F64:
		return "f64"
	case KindBool:
		return "bool"
	case Str:
		return "str"
	case Unit:
		return "unit"
	case Struct:
		return "struct"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Type is the compile-time type of a value: a Kind plus, for Struct,
// the struct's name and field kinds.
type Type struct {
	Kind   Kind
	Name   symbol.Index
	Fields []Kind
}

// Tag identifies which field of a runtime Value is meaningful. This
// is the Go stand-in for the source's tagged union: Go has no native
// union type, so Value is a small fixed-size struct carrying one
// uint64 payload plus a one-byte discriminant, large enough to hold
// any of {integer i64, float f64, bool, object ObjectIndex, empty}.
type Tag uint8

const (
	TagEmpty Tag = iota
	TagInt
	TagFloat
	TagBool
	TagObject
)

// Value is one stack cell. Every cell carries a Tag; a zero Value
// (the stack's zero-initialized state at startup and after frame
// extension) is TagEmpty, which is never mistaken for a live integer
// or object because reads always check the tag first.
type Value struct {
	Tag  Tag
	bits uint64
}

// Empty returns the zero-valued "uninitialized register" cell.
func Empty() Value { return Value{Tag: TagEmpty} }

// Int wraps a signed 64-bit integer. Narrower widths (i8..u64) all
// collapse to this representation at the machine-word level; integer
// cast opcodes only re-truncate and keep the int tag, while
// CastToFloat re-tags the result as a float.
func Int(v int64) Value { return Value{Tag: TagInt, bits: uint64(v)} }

// Float wraps a float64.
func Float(v float64) Value { return Value{Tag: TagFloat, bits: math.Float64bits(v)} }

// Bool wraps a boolean.
func Bool(v bool) Value {
	if v {
		return Value{Tag: TagBool, bits: 1}
	}
	return Value{Tag: TagBool, bits: 0}
}

// Object wraps a heap reference, encoded as a raw uint64 handle (the
// value package does not depend on internal/heap to avoid an import
// cycle; callers convert a heap.Ref to and from this handle with a
// plain uint64 conversion).
func Object(handle uint64) Value { return Value{Tag: TagObject, bits: handle} }

// AsInt returns the integer payload. Panics if Tag != TagInt — a
// compiler/VM invariant violation per spec.md §7, never surfaced to
// user code.
func (v Value) AsInt() int64 {
	if v.Tag != TagInt {
		panic(fmt.Sprintf("value: AsInt on tag %d", v.Tag))
	}
	return int64(v.bits)
}

// AsFloat returns the float payload.
func (v Value) AsFloat() float64 {
	if v.Tag != TagFloat {
		panic(fmt.Sprintf("value: AsFloat on tag %d", v.Tag))
	}
	return math.Float64frombits(v.bits)
}

// AsBool returns the bool payload.
func (v Value) AsBool() bool {
	if v.Tag != TagBool {
		panic(fmt.Sprintf("value: AsBool on tag %d", v.Tag))
	}
	return v.bits != 0
}

// AsObject returns the raw object handle payload.
func (v Value) AsObject() uint64 {
	if v.Tag != TagObject {
		panic(fmt.Sprintf("value: AsObject on tag %d", v.Tag))
	}
	return v.bits
}

// Raw exposes the payload bits regardless of tag, for callers (the
// GC root scanner) that only need to check the Tag and otherwise
// treat the cell opaquely.
func (v Value) Raw() uint64 { return v.bits }

func (v Value) String() string {
	switch v.Tag {
	case TagEmpty:
		return "<empty>"
	case TagInt:
		return fmt.Sprintf("%d", v.AsInt())
	case TagFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case TagBool:
		return fmt.Sprintf("%t", v.AsBool())
	case TagObject:
		return fmt.Sprintf("obj(%d)", v.AsObject())
	default:
		return "<corrupt>"
	}
}
