package emitter

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/symbol"
	"github.com/rookieCookies/azurite-sub000/internal/value"
)

// opTable maps the IR's compile-time Opcode onto the wire Op for the
// forms that carry it over one-to-one, casts included. Call/ExtCall
// are not in the table; they pick their wire opcode directly.
var opTable = map[ir.Opcode]Op{
	ir.OpCopy: OpCopy,
	ir.OpAdd:  OpAdd,
	ir.OpSub:  OpSub,
	ir.OpMul:  OpMul,
	ir.OpDiv:  OpDiv,
	ir.OpMod:  OpMod,
	ir.OpEq:   OpEq,
	ir.OpNeq:  OpNeq,
	ir.OpGt:   OpGt,
	ir.OpLt:   OpLt,
	ir.OpGe:   OpGe,
	ir.OpLe:   OpLe,
	ir.OpNot:  OpNot,
	ir.OpNeg:  OpNeg,

	ir.OpCastToI8:    OpCastToI8,
	ir.OpCastToI16:   OpCastToI16,
	ir.OpCastToI32:   OpCastToI32,
	ir.OpCastToI64:   OpCastToI64,
	ir.OpCastToU8:    OpCastToU8,
	ir.OpCastToU16:   OpCastToU16,
	ir.OpCastToU32:   OpCastToU32,
	ir.OpCastToU64:   OpCastToU64,
	ir.OpCastToFloat: OpCastToFloat,
}

// callPatch records a Call instruction's deferred target-offset fixup:
// offset is the position of the u32 placeholder itself (one past the
// Call opcode byte), which is rewritten once every function's start
// offset is known.
type callPatch struct {
	fn     ir.FunctionIndex
	offset int
}

// Emitter accumulates the flat byte stream for one ir.Program.
type Emitter struct {
	symbols *symbol.Table
	code    []byte

	funcStarts map[ir.FunctionIndex]uint32
	calls      []callPatch
}

// New returns an Emitter bound to symbols, used to render extern
// library paths and function symbols into the ExternFile records.
func New(symbols *symbol.Table) *Emitter {
	return &Emitter{symbols: symbols, funcStarts: map[ir.FunctionIndex]uint32{}}
}

// Emit lowers prog to its flat bytecode stream, per spec.md §4.4:
// extern manifest records first, then function bodies in
// function-index order, with Call targets patched once every
// function's start offset is known.
func Emit(symbols *symbol.Table, prog *ir.Program) []byte {
	e := New(symbols)
	e.emitExterns(prog.Externs)

	functions := make([]ir.Function, len(prog.Functions))
	copy(functions, prog.Functions)
	for i := 0; i < len(functions); i++ {
		for j := i + 1; j < len(functions); j++ {
			if functions[j].Index < functions[i].Index {
				functions[i], functions[j] = functions[j], functions[i]
			}
		}
	}

	for i := range functions {
		e.emitFunction(&functions[i])
	}

	for _, p := range e.calls {
		start, ok := e.funcStarts[p.fn]
		if !ok {
			panic("emitter: call target references unknown function index")
		}
		binary.LittleEndian.PutUint32(e.code[p.offset:p.offset+4], start)
	}

	return e.code
}

func (e *Emitter) byte(b byte)  { e.code = append(e.code, b) }
func (e *Emitter) op(o Op)      { e.byte(byte(o)) }
func (e *Emitter) u32(v uint32) { e.code = binary.LittleEndian.AppendUint32(e.code, v) }

func (e *Emitter) cstring(s string) {
	e.code = append(e.code, []byte(s)...)
	e.byte(0)
}

// emitExterns writes one ExternFile record per library, grouping the
// program's ExternFunc entries by their Library symbol. Libraries are
// ordered by their symbol's allocation id, mirroring the source's
// BTreeMap<SymbolIndex, _> iteration order rather than declaration
// order.
func (e *Emitter) emitExterns(externs []ir.ExternFunc) {
	byLibrary := map[symbol.Index][]ir.ExternFunc{}
	var order []symbol.Index
	for _, ext := range externs {
		if _, seen := byLibrary[ext.Library]; !seen {
			order = append(order, ext.Library)
		}
		byLibrary[ext.Library] = append(byLibrary[ext.Library], ext)
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if order[j].Raw() < order[i].Raw() {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	for _, lib := range order {
		funcs := byLibrary[lib]
		e.op(OpExternFile)
		e.cstring(e.symbols.String(lib))
		e.byte(byte(len(funcs)))
		for _, f := range funcs {
			e.u32(uint32(f.Index))
			e.cstring(e.symbols.String(f.Symbol))
		}
	}
}

// emitFunction emits one function's Push prologue, every block's
// instructions, and patches each block's terminator placeholder once
// every block's start offset within the function is known.
func (e *Emitter) emitFunction(fn *ir.Function) {
	e.funcStarts[fn.Index] = uint32(len(e.code))

	e.op(OpPush)
	e.byte(byte(fn.StackSize - uint32(fn.ArgCount)))

	blockStarts := make(map[ir.BlockIndex]int, len(fn.Blocks))
	type pendingTerm struct {
		offset int
		term   ir.Terminator
	}
	var pending []pendingTerm

	for _, blk := range fn.Blocks {
		blockStarts[blk.Index] = len(e.code)

		for _, inst := range blk.Instructions {
			e.emitInst(fn, inst)
		}

		switch blk.Terminator.Kind {
		case ir.TermGoto:
			pending = append(pending, pendingTerm{offset: len(e.code), term: blk.Terminator})
			e.code = append(e.code, make([]byte, 5)...)
		case ir.TermSwitchBool:
			pending = append(pending, pendingTerm{offset: len(e.code), term: blk.Terminator})
			e.code = append(e.code, make([]byte, 10)...)
		case ir.TermReturn:
			e.op(OpPop)
			e.byte(byte(fn.StackSize - 1))
			pending = append(pending, pendingTerm{offset: len(e.code), term: blk.Terminator})
			e.code = append(e.code, 0)
		default:
			panic("emitter: unreachable terminator kind")
		}
	}

	for _, p := range pending {
		switch p.term.Kind {
		case ir.TermGoto:
			target, ok := blockStarts[p.term.Target]
			if !ok {
				panic("emitter: goto target has no recorded block start")
			}
			e.code[p.offset] = byte(OpJump)
			binary.LittleEndian.PutUint32(e.code[p.offset+1:p.offset+5], uint32(target))

		case ir.TermSwitchBool:
			trueOff, ok := blockStarts[p.term.TrueTarget]
			if !ok {
				panic("emitter: switch true-target has no recorded block start")
			}
			falseOff, ok := blockStarts[p.term.FalseTarget]
			if !ok {
				panic("emitter: switch false-target has no recorded block start")
			}
			e.code[p.offset] = byte(OpJumpCond)
			e.code[p.offset+1] = byte(p.term.Cond)
			binary.LittleEndian.PutUint32(e.code[p.offset+2:p.offset+6], uint32(trueOff))
			binary.LittleEndian.PutUint32(e.code[p.offset+6:p.offset+10], uint32(falseOff))

		case ir.TermReturn:
			e.code[p.offset] = byte(OpReturn)

		default:
			panic("emitter: unreachable terminator kind")
		}
	}
}

func (e *Emitter) emitInst(fn *ir.Function, inst ir.Inst) {
	switch inst.Op {
	case ir.OpNoop:
		return

	case ir.OpSwap:
		e.op(OpSwap)
		e.byte(byte(inst.A))
		e.byte(byte(inst.B))

	case ir.OpLoad:
		e.op(OpLoadConst)
		e.byte(byte(inst.Dst))
		e.byte(byte(inst.ConstIdx))

	case ir.OpUnit:
		e.op(OpUnit)
		e.byte(byte(inst.Dst))

	case ir.OpCall, ir.OpExtCall:
		e.emitCall(inst)

	case ir.OpStruct:
		e.emitStruct(inst)

	case ir.OpAccStruct:
		e.op(OpAccStruct)
		e.byte(byte(inst.Dst))
		e.byte(byte(inst.Obj))
		e.byte(inst.Index)

	case ir.OpSetField:
		e.op(OpSetField)
		e.byte(byte(inst.Obj))
		e.byte(byte(inst.Data))
		e.byte(inst.Index)

	default:
		if wire, ok := opTable[inst.Op]; ok {
			e.emitBinaryShaped(wire, inst)
			return
		}
		panic("emitter: unreachable instruction opcode " + inst.Op.String())
	}
}

// emitBinaryShaped covers every form whose operand layout is either
// (dst, src) or (dst, a, b): Copy, binary arithmetic/comparisons,
// Not/Neg, and every cast.
func (e *Emitter) emitBinaryShaped(wire Op, inst ir.Inst) {
	e.op(wire)
	e.byte(byte(inst.Dst))
	switch inst.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpGt, ir.OpLt, ir.OpGe, ir.OpLe:
		e.byte(byte(inst.A))
		e.byte(byte(inst.B))
	default: // Copy, Not, Neg, casts
		e.byte(byte(inst.Src))
	}
}

func (e *Emitter) emitCall(inst ir.Inst) {
	if inst.Op == ir.OpExtCall {
		e.op(OpExtCall)
		e.u32(uint32(inst.Fn))
	} else {
		e.op(OpCall)
		e.calls = append(e.calls, callPatch{fn: inst.Fn, offset: len(e.code)})
		e.u32(^uint32(0)) // placeholder, patched once every function start is known
	}
	e.byte(byte(inst.Dst))
	e.byte(byte(len(inst.Args)))
	for _, a := range inst.Args {
		e.byte(byte(a))
	}
}

// emitStruct writes the Struct opcode's inclusive-register-range form
// (SPEC_FULL.md §9 open-question resolution): the IR builder has
// already gathered the field values into a contiguous register run,
// so only the first and last register need be encoded.
func (e *Emitter) emitStruct(inst ir.Inst) {
	e.op(OpStruct)
	e.byte(byte(inst.Dst))
	if len(inst.Fields) == 0 {
		e.byte(0)
		e.byte(0)
		return
	}
	e.byte(byte(inst.Fields[0]))
	e.byte(byte(inst.Fields[len(inst.Fields)-1]))
}

// EncodeConstants renders a ConstPool to the typed, self-delimiting
// format described in spec.md §6 ("constants.azc").
func EncodeConstants(pool *ir.ConstPool) []byte {
	var buf []byte
	for i, k := range pool.Kinds {
		switch k {
		case value.F64:
			buf = append(buf, 0)
			bits := make([]byte, 8)
			binary.LittleEndian.PutUint64(bits, math.Float64bits(pool.Values[i].AsFloat()))
			buf = append(buf, bits...)

		case value.KindBool:
			buf = append(buf, 1)
			if pool.Values[i].AsBool() {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}

		case value.Str:
			buf = append(buf, 2)
			s := pool.Strings[i]
			ln := make([]byte, 8)
			binary.LittleEndian.PutUint64(ln, uint64(len(s)))
			buf = append(buf, ln...)
			buf = append(buf, []byte(s)...)

		case value.I8, value.I16, value.I32, value.I64,
			value.U8, value.U16, value.U32, value.U64:
			buf = append(buf, intConstTag(k))
			buf = append(buf, intConstBytes(k, pool.Values[i].AsInt())...)

		default:
			panic("emitter: unreachable constant kind " + k.String())
		}
	}
	return buf
}

func intConstTag(k value.Kind) byte {
	switch k {
	case value.I8:
		return 3
	case value.I16:
		return 4
	case value.I32:
		return 5
	case value.I64:
		return 6
	case value.U8:
		return 7
	case value.U16:
		return 8
	case value.U32:
		return 9
	case value.U64:
		return 10
	default:
		panic("emitter: not an integer kind")
	}
}

func intConstBytes(k value.Kind, v int64) []byte {
	switch k {
	case value.I8, value.U8:
		return []byte{byte(v)}
	case value.I16, value.U16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b
	case value.I32, value.U32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b
	case value.I64, value.U64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return b
	default:
		panic("emitter: not an integer kind")
	}
}

// DecodeConstants is EncodeConstants's inverse: it parses the typed,
// self-delimiting "constants.azc" stream back into parallel
// Values/Kinds/Strings slices (an ir.ConstPool), reporting an
// artifact-format error (spec.md §7) with the byte offset on a
// truncated stream or unknown tag rather than panicking.
func DecodeConstants(data []byte) (*ir.ConstPool, error) {
	pool := ir.NewConstPool()
	pc := 0

	for pc < len(data) {
		tag := data[pc]
		pc++

		switch tag {
		case 0: // f64
			if pc+8 > len(data) {
				return nil, truncatedConstErr(pc)
			}
			bits := binary.LittleEndian.Uint64(data[pc : pc+8])
			pc += 8
			pool.Add(value.Float(math.Float64frombits(bits)), value.F64)

		case 1: // bool
			if pc+1 > len(data) {
				return nil, truncatedConstErr(pc)
			}
			pool.Add(value.Bool(data[pc] != 0), value.KindBool)
			pc++

		case 2: // string
			if pc+8 > len(data) {
				return nil, truncatedConstErr(pc)
			}
			n := binary.LittleEndian.Uint64(data[pc : pc+8])
			pc += 8
			if pc+int(n) > len(data) {
				return nil, truncatedConstErr(pc)
			}
			pool.AddString(string(data[pc : pc+int(n)]))
			pc += int(n)

		case 3, 4, 5, 6, 7, 8, 9, 10:
			k, width := intConstKindAndWidth(tag)
			if pc+width > len(data) {
				return nil, truncatedConstErr(pc)
			}
			v := decodeIntConstBytes(k, data[pc:pc+width])
			pc += width
			pool.Add(value.Int(v), k)

		default:
			return nil, fmt.Errorf("artifact-format error: unknown constant tag %d at offset %d", tag, pc-1)
		}
	}

	return pool, nil
}

func truncatedConstErr(offset int) error {
	return fmt.Errorf("artifact-format error: truncated constant stream at offset %d", offset)
}

func intConstKindAndWidth(tag byte) (value.Kind, int) {
	switch tag {
	case 3:
		return value.I8, 1
	case 4:
		return value.I16, 2
	case 5:
		return value.I32, 4
	case 6:
		return value.I64, 8
	case 7:
		return value.U8, 1
	case 8:
		return value.U16, 2
	case 9:
		return value.U32, 4
	case 10:
		return value.U64, 8
	default:
		panic("emitter: not an integer constant tag")
	}
}

func decodeIntConstBytes(k value.Kind, b []byte) int64 {
	switch k {
	case value.I8:
		return int64(int8(b[0]))
	case value.U8:
		return int64(b[0])
	case value.I16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case value.U16:
		return int64(binary.LittleEndian.Uint16(b))
	case value.I32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case value.U32:
		return int64(binary.LittleEndian.Uint32(b))
	case value.I64:
		return int64(binary.LittleEndian.Uint64(b))
	case value.U64:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		panic("emitter: not an integer kind")
	}
}
