// Package ir implements the control-flow-graph intermediate
// representation described in SPEC_FULL.md §4.3: functions built from
// basic blocks, three-address instructions over virtual registers,
// and the closed terminator sum type.
package ir

import (
	"github.com/rookieCookies/azurite-sub000/internal/symbol"
	"github.com/rookieCookies/azurite-sub000/internal/value"
)

// Var is a per-function virtual register handle. Register 0 is the
// return-slot convention used by the VM's call protocol (§4.6).
type Var uint32

// BlockIndex is a dense per-function block identifier.
type BlockIndex uint32

// FunctionIndex is a dense identifier into the program's function
// list. Extern functions occupy a separate dense index space.
type FunctionIndex uint32

// Invalid is the placeholder block index a loop body's break/continue
// statements target before the enclosing Loop patches them in. Any
// Terminator still carrying Invalid after IR construction is a
// builder bug.
const Invalid BlockIndex = ^BlockIndex(0)

// Opcode discriminates the variant-heavy Inst union. Closed set,
// exhaustively matched by the optimizer, emitter and disassembler —
// no dynamic dispatch.
type Opcode uint8

const (
	OpNoop Opcode = iota
	OpCopy
	OpSwap
	OpLoad
	OpUnit
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpGt
	OpLt
	OpGe
	OpLe
	OpNot
	OpNeg
	OpCall
	OpExtCall
	OpStruct
	OpAccStruct
	OpSetField
	OpCastToI8
	OpCastToI16
	OpCastToI32
	OpCastToI64
	OpCastToU8
	OpCastToU16
	OpCastToU32
	OpCastToU64
	OpCastToFloat
)

func (op Opcode) String() string {
	switch op {
	case OpNoop:
		return "noop"
	case OpCopy:
		return "copy"
	case OpSwap:
		return "swap"
	case OpLoad:
		return "load"
	case OpUnit:
		return "unit"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpMod:
		return "mod"
	case OpEq:
		return "eq"
	case OpNeq:
		return "neq"
	case OpGt:
		return "gt"
	case OpLt:
		return "lt"
	case OpGe:
		return "ge"
	case OpLe:
		return "le"
	case OpNot:
		return "not"
	case OpNeg:
		return "neg"
	case OpCall:
		return "call"
	case OpExtCall:
		return "extcall"
	case OpStruct:
		return "struct"
	case OpAccStruct:
		return "accstruct"
	case OpSetField:
		return "setfield"
	case OpCastToI8:
		return "cast.i8"
	case OpCastToI16:
		return "cast.i16"
	case OpCastToI32:
		return "cast.i32"
	case OpCastToI64:
		return "cast.i64"
	case OpCastToU8:
		return "cast.u8"
	case OpCastToU16:
		return "cast.u16"
	case OpCastToU32:
		return "cast.u32"
	case OpCastToU64:
		return "cast.u64"
	case OpCastToFloat:
		return "cast.float"
	default:
		return "unknown"
	}
}

// Inst is one three-address IR instruction. Kept as a single flat
// struct with an Op discriminant and the union of all fields any form
// needs, mirroring the teacher's own Inst{Op, Arg, Width, Val, Name}
// shape rather than a Go interface per variant — cheap to copy, easy
// for the optimizer to rewrite in place.
type Inst struct {
	Op Opcode

	Dst Var
	Src Var // Copy.src, Not/Neg.val, casts' source
	A   Var // Swap.v1, binop.left
	B   Var // Swap.v2, binop.right

	ConstIdx uint32 // Load

	Fn   FunctionIndex // Call, ExtCall
	Args []Var         // Call, ExtCall

	Fields []Var // Struct
	Index  uint8 // AccStruct.index, SetField.index
	Obj    Var   // AccStruct.val, SetField.data-target object
	Data   Var   // SetField.data
}

// Copy returns dst = src.
func NewCopy(dst, src Var) Inst { return Inst{Op: OpCopy, Dst: dst, Src: src} }

// NewSwap returns an instruction swapping the two absolute stack
// cells v1 and v2.
func NewSwap(v1, v2 Var) Inst { return Inst{Op: OpSwap, A: v1, B: v2} }

// NewLoad returns dst = constants[constIdx].
func NewLoad(dst Var, constIdx uint32) Inst { return Inst{Op: OpLoad, Dst: dst, ConstIdx: constIdx} }

// NewUnit returns dst = empty.
func NewUnit(dst Var) Inst { return Inst{Op: OpUnit, Dst: dst} }

// NewBinOp returns a binary arithmetic or comparison instruction.
func NewBinOp(op Opcode, dst, left, right Var) Inst {
	return Inst{Op: op, Dst: dst, A: left, B: right}
}

// NewUnary returns a Not/Neg instruction.
func NewUnary(op Opcode, dst, val Var) Inst { return Inst{Op: op, Dst: dst, Src: val} }

// NewCall returns a normal or extern function call.
func NewCall(extern bool, dst Var, fn FunctionIndex, args []Var) Inst {
	op := OpCall
	if extern {
		op = OpExtCall
	}
	return Inst{Op: op, Dst: dst, Fn: fn, Args: args}
}

// NewStruct returns dst = Object(alloc(fields...)).
func NewStruct(dst Var, fields []Var) Inst { return Inst{Op: OpStruct, Dst: dst, Fields: fields} }

// NewAccStruct returns dst = fields(val)[index].
func NewAccStruct(dst, val Var, index uint8) Inst {
	return Inst{Op: OpAccStruct, Dst: dst, Obj: val, Index: index}
}

// NewSetField returns fields(obj)[index] = data.
func NewSetField(obj, data Var, index uint8) Inst {
	return Inst{Op: OpSetField, Obj: obj, Data: data, Index: index}
}

// NewCast returns dst = cast<kind>(val).
func NewCast(kind value.Kind, dst, val Var) Inst {
	var op Opcode
	switch kind {
	case value.I8:
		op = OpCastToI8
	case value.I16:
		op = OpCastToI16
	case value.I32:
		op = OpCastToI32
	case value.I64:
		op = OpCastToI64
	case value.U8:
		op = OpCastToU8
	case value.U16:
		op = OpCastToU16
	case value.U32:
		op = OpCastToU32
	case value.U64:
		op = OpCastToU64
	case value.F64:
		op = OpCastToFloat
	default:
		panic("ir: no cast opcode for kind " + kind.String())
	}
	return Inst{Op: op, Dst: dst, Src: val}
}

// TerminatorKind discriminates the closed Terminator sum type.
type TerminatorKind uint8

const (
	TermGoto TerminatorKind = iota
	TermSwitchBool
	TermReturn
)

// Terminator is the single control-flow-ending element of a Block.
type Terminator struct {
	Kind TerminatorKind

	Target BlockIndex // TermGoto

	Cond        Var        // TermSwitchBool
	TrueTarget  BlockIndex // TermSwitchBool
	FalseTarget BlockIndex // TermSwitchBool
}

// Goto builds a TermGoto terminator.
func Goto(target BlockIndex) Terminator { return Terminator{Kind: TermGoto, Target: target} }

// SwitchBool builds a TermSwitchBool terminator.
func SwitchBool(cond Var, trueTarget, falseTarget BlockIndex) Terminator {
	return Terminator{Kind: TermSwitchBool, Cond: cond, TrueTarget: trueTarget, FalseTarget: falseTarget}
}

// Return builds a TermReturn terminator.
func Return() Terminator { return Terminator{Kind: TermReturn} }

// Targets returns every block this terminator can transfer control
// to, in an implementation-defined but stable order. Used by the
// optimizer's reachability walk and by §8's block-target-validity
// check.
func (t Terminator) Targets() []BlockIndex {
	switch t.Kind {
	case TermGoto:
		return []BlockIndex{t.Target}
	case TermSwitchBool:
		return []BlockIndex{t.TrueTarget, t.FalseTarget}
	case TermReturn:
		return nil
	default:
		panic("ir: unreachable terminator kind")
	}
}

// Block is a straight-line instruction sequence ending in exactly one
// Terminator.
type Block struct {
	Index        BlockIndex
	Instructions []Inst
	Terminator   Terminator
}

// Terminal reports whether this block ends the function (its
// terminator is Return).
func (b *Block) Terminal() bool { return b.Terminator.Kind == TermReturn }

// Function is one compiled function: an ordered block list plus the
// metadata the emitter and VM need (argument count, peak register
// usage, entry block).
type Function struct {
	ID        symbol.Index
	Index     FunctionIndex
	ArgCount  uint8
	StackSize uint32 // high-water mark of registers used, incl. arg_count
	Blocks    []Block
	Entry     BlockIndex
}

// Block returns a pointer to the block in f.Blocks whose Index is idx,
// for in-place mutation. It panics if no block has that index.
func (f *Function) Block(idx BlockIndex) *Block {
	if int(idx) < len(f.Blocks) && f.Blocks[idx].Index == idx {
		return &f.Blocks[idx]
	}
	for i := range f.Blocks {
		if f.Blocks[i].Index == idx {
			return &f.Blocks[i]
		}
	}
	panic("ir: no block with the requested index")
}

// ExternFunc is a native function linked through a dynamically loaded
// library (SPEC_FULL.md §4.6/§6).
type ExternFunc struct {
	ID      symbol.Index
	Index   FunctionIndex
	Library symbol.Index
	Symbol  symbol.Index
}

// Program is the whole compiled unit handed from the builder to the
// optimizer to the emitter.
type Program struct {
	Functions []Function
	Externs   []ExternFunc
	Constants *ConstPool
}

// ConstPool is the append-only, shared constant pool threaded through
// a single compilation (spec.md §3 "Lifecycle").
type ConstPool struct {
	Values []value.Value
	// Kinds records the compile-time kind of each pool entry, needed
	// by the emitter to pick the right tagged encoding (§6) since a
	// value.Value alone cannot distinguish e.g. an i32 constant from
	// an i64 one once narrowed into the tagged cell.
	Kinds []value.Kind
	// Strings holds the payload for entries whose Kind is value.Str,
	// indexed in parallel with Values/Kinds (unused slots are ""),
	// since value.Value has no room for a variable-length payload.
	Strings []string
}

// NewConstPool returns an empty pool.
func NewConstPool() *ConstPool { return &ConstPool{} }

// Add appends v (kind k) to the pool and returns its index. Callers
// (the IR builder) that want literal deduplication must check for an
// existing equal entry themselves; the pool itself never dedups.
func (p *ConstPool) Add(v value.Value, k value.Kind) uint32 {
	idx := uint32(len(p.Values))
	p.Values = append(p.Values, v)
	p.Kinds = append(p.Kinds, k)
	p.Strings = append(p.Strings, "")
	return idx
}

// AddString interns a string literal. The returned index's Values
// slot is a placeholder (TagEmpty); the emitter and VM read the
// string payload from Strings instead.
func (p *ConstPool) AddString(s string) uint32 {
	idx := uint32(len(p.Values))
	p.Values = append(p.Values, value.Empty())
	p.Kinds = append(p.Kinds, value.Str)
	p.Strings = append(p.Strings, s)
	return idx
}
