package vm

import (
	"encoding/binary"
	"math"

	"github.com/rookieCookies/azurite-sub000/internal/emitter"
	"github.com/rookieCookies/azurite-sub000/internal/heap"
)

// step decodes and executes one instruction starting at pc (the byte
// immediately after the opcode byte already consumed by Run) and
// returns the next pc. Mirrors the teacher's single big switch over
// opcodes in execFunc, one case per instruction form.
func (v *VM) step(op emitter.Op, code []byte, pc int) (int, error) {
	switch op {
	case emitter.OpExternFile:
		return v.skipExternFile(code, pc)

	case emitter.OpCopy:
		dst, src := code[pc], code[pc+1]
		v.setReg(dst, v.reg(src))
		return pc + 2, nil

	case emitter.OpSwap:
		a, b := code[pc], code[pc+1]
		v.stack[v.stackOff+int(a)], v.stack[v.stackOff+int(b)] = v.stack[v.stackOff+int(b)], v.stack[v.stackOff+int(a)]
		return pc + 2, nil

	case emitter.OpLoadConst:
		dst, idx := code[pc], code[pc+1]
		if int(idx) >= len(v.constants) {
			return pc, fault(pc, "constant index %d out of range", idx)
		}
		v.setReg(dst, v.constants[idx])
		return pc + 2, nil

	case emitter.OpAdd, emitter.OpSub, emitter.OpMul, emitter.OpDiv, emitter.OpMod:
		return v.stepArith(op, code, pc)

	case emitter.OpGt, emitter.OpLt, emitter.OpGe, emitter.OpLe:
		return v.stepCompare(op, code, pc)

	case emitter.OpEq, emitter.OpNeq:
		return v.stepEquality(op, code, pc)

	case emitter.OpNot:
		dst, src := code[pc], code[pc+1]
		v.setReg(dst, boolCell(!v.reg(src).Bits2Bool()))
		return pc + 2, nil

	case emitter.OpNeg:
		dst, src := code[pc], code[pc+1]
		c := v.reg(src)
		switch c.Tag {
		case TagInt:
			v.setReg(dst, Cell{Tag: TagInt, Bits: uint64(-int64(c.Bits))})
		case TagFloat:
			v.setReg(dst, Cell{Tag: TagFloat, Bits: math.Float64bits(-math.Float64frombits(c.Bits))})
		default:
			return pc, fault(pc, "negate on non-numeric register")
		}
		return pc + 2, nil

	case emitter.OpCastToI8, emitter.OpCastToI16, emitter.OpCastToI32, emitter.OpCastToI64,
		emitter.OpCastToU8, emitter.OpCastToU16, emitter.OpCastToU32, emitter.OpCastToU64, emitter.OpCastToFloat:
		return v.stepCast(op, code, pc)

	case emitter.OpJump:
		target := binary.LittleEndian.Uint32(code[pc : pc+4])
		return int(target), nil

	case emitter.OpJumpCond:
		cond := code[pc]
		t := binary.LittleEndian.Uint32(code[pc+1 : pc+5])
		f := binary.LittleEndian.Uint32(code[pc+5 : pc+9])
		if v.reg(cond).Bits2Bool() {
			return int(t), nil
		}
		return int(f), nil

	case emitter.OpCall:
		return v.stepCall(code, pc)

	case emitter.OpExtCall:
		return v.stepExtCall(code, pc)

	case emitter.OpReturn:
		return v.stepReturn(pc)

	case emitter.OpPush:
		n := code[pc]
		if v.top+int(n) > StackSize {
			return pc, fault(pc, "stack overflow")
		}
		v.top += int(n)
		return pc + 1, nil

	case emitter.OpPop:
		n := code[pc]
		v.top -= int(n)
		return pc + 1, nil

	case emitter.OpUnit:
		dst := code[pc]
		v.setReg(dst, Cell{Tag: TagEmpty})
		return pc + 1, nil

	case emitter.OpStruct:
		return v.stepStruct(code, pc)

	case emitter.OpAccStruct:
		dst, obj, idx := code[pc], code[pc+1], code[pc+2]
		return v.stepAccStruct(pc, dst, obj, idx)

	case emitter.OpSetField:
		obj, data, idx := code[pc], code[pc+1], code[pc+2]
		return v.stepSetField(pc, obj, data, idx)

	default:
		return pc, fault(pc, "unknown opcode %d", op)
	}
}

// Bits2Bool reinterprets a bool-tagged cell's payload. Named for the
// VM-internal Cell type, not user-facing.
func (c Cell) Bits2Bool() bool { return c.Bits != 0 }

func (v *VM) skipExternFile(code []byte, pc int) (int, error) {
	// ExternFile records are consumed up front by internal/externlib
	// before Run begins on the function-body region; if one is still
	// reached here the caller handed Run the whole artifact stream by
	// mistake.
	return pc, fault(pc, "ExternFile record reached by the interpreter; externs must be stripped before Run")
}

func (v *VM) stepArith(op emitter.Op, code []byte, pc int) (int, error) {
	dst, l, r := code[pc], code[pc+1], code[pc+2]
	left, right := v.reg(l), v.reg(r)

	if left.Tag != right.Tag {
		return pc, fault(pc, "arithmetic on mismatched register tags")
	}

	switch left.Tag {
	case TagInt:
		a, b := int64(left.Bits), int64(right.Bits)
		var res int64
		switch op {
		case emitter.OpAdd:
			res = a + b
		case emitter.OpSub:
			res = a - b
		case emitter.OpMul:
			res = a * b
		case emitter.OpDiv:
			res = a / b
		case emitter.OpMod:
			res = a % b
		}
		v.setReg(dst, Cell{Tag: TagInt, Bits: uint64(res)})

	case TagFloat:
		a, b := math.Float64frombits(left.Bits), math.Float64frombits(right.Bits)
		var res float64
		switch op {
		case emitter.OpAdd:
			res = a + b
		case emitter.OpSub:
			res = a - b
		case emitter.OpMul:
			res = a * b
		case emitter.OpDiv:
			res = a / b
		case emitter.OpMod:
			res = math.Mod(a, b)
		}
		v.setReg(dst, Cell{Tag: TagFloat, Bits: math.Float64bits(res)})

	default:
		return pc, fault(pc, "arithmetic on non-numeric registers")
	}

	return pc + 3, nil
}

func (v *VM) stepCompare(op emitter.Op, code []byte, pc int) (int, error) {
	dst, l, r := code[pc], code[pc+1], code[pc+2]
	left, right := v.reg(l), v.reg(r)
	if left.Tag != right.Tag {
		return pc, fault(pc, "comparison on mismatched register tags")
	}

	var result bool
	switch left.Tag {
	case TagInt:
		a, b := int64(left.Bits), int64(right.Bits)
		result = compareOrdered(op, float64(a), float64(b))
	case TagFloat:
		a, b := math.Float64frombits(left.Bits), math.Float64frombits(right.Bits)
		result = compareOrdered(op, a, b)
	default:
		return pc, fault(pc, "comparison on non-numeric registers")
	}

	v.setReg(dst, boolCell(result))
	return pc + 3, nil
}

func compareOrdered(op emitter.Op, a, b float64) bool {
	switch op {
	case emitter.OpGt:
		return a > b
	case emitter.OpLt:
		return a < b
	case emitter.OpGe:
		return a >= b
	case emitter.OpLe:
		return a <= b
	default:
		panic("vm: unreachable comparison opcode")
	}
}

func (v *VM) stepEquality(op emitter.Op, code []byte, pc int) (int, error) {
	dst, l, r := code[pc], code[pc+1], code[pc+2]
	left, right := v.reg(l), v.reg(r)

	eq := left.Tag == right.Tag && left.Bits == right.Bits
	if left.Tag == TagObject && right.Tag == TagObject {
		eq = v.objectsEqual(heap.Ref(left.Bits), heap.Ref(right.Bits))
	}

	if op == emitter.OpNeq {
		eq = !eq
	}
	v.setReg(dst, boolCell(eq))
	return pc + 3, nil
}

// objectsEqual compares two heap references structurally for strings,
// by identity for structs (spec.md leaves struct equality as a
// tag-aware comparison; structural string equality matches what a
// println/assert style extension would expect from "==" on strings).
func (v *VM) objectsEqual(a, b heap.Ref) bool {
	if a == b {
		return true
	}
	oa, ob := v.heap.Get(a), v.heap.Get(b)
	if oa.Data != ob.Data {
		return false
	}
	if oa.Data == heap.KindString {
		return oa.Str == ob.Str
	}
	return false
}

func (v *VM) stepCast(op emitter.Op, code []byte, pc int) (int, error) {
	dst, src := code[pc], code[pc+1]
	c := v.reg(src)

	var asInt int64
	switch c.Tag {
	case TagInt:
		asInt = int64(c.Bits)
	case TagFloat:
		asInt = int64(math.Float64frombits(c.Bits))
	default:
		return pc, fault(pc, "cast on non-numeric register")
	}

	if op == emitter.OpCastToFloat {
		v.setReg(dst, Cell{Tag: TagFloat, Bits: math.Float64bits(float64(asInt))})
		return pc + 2, nil
	}

	var truncated int64
	switch op {
	case emitter.OpCastToI8:
		truncated = int64(int8(asInt))
	case emitter.OpCastToI16:
		truncated = int64(int16(asInt))
	case emitter.OpCastToI32:
		truncated = int64(int32(asInt))
	case emitter.OpCastToI64:
		truncated = asInt
	case emitter.OpCastToU8:
		truncated = int64(uint8(asInt))
	case emitter.OpCastToU16:
		truncated = int64(uint16(asInt))
	case emitter.OpCastToU32:
		truncated = int64(uint32(asInt))
	case emitter.OpCastToU64:
		truncated = int64(uint64(asInt))
	}
	v.setReg(dst, Cell{Tag: TagInt, Bits: uint64(truncated)})
	return pc + 2, nil
}
