package emitter

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders a bytecode stream produced by Emit as a
// human-readable listing, for the CLI's "disassemble" subcommand
// (spec.md §6). Decoding errors are reported inline with the byte
// offset rather than panicking, since a corrupt or truncated stream is
// an artifact-format error (spec.md §7), not a programming bug.
func Disassemble(code []byte) string {
	var out strings.Builder
	pc := 0

	for pc < len(code) {
		start := pc
		op := Op(code[pc])
		pc++

		switch op {
		case OpExternFile:
			path, n := readCString(code, pc)
			pc = n
			if pc >= len(code) {
				fmt.Fprintf(&out, "%06d  <truncated ExternFile record>\n", pc)
				return out.String()
			}
			count := code[pc]
			pc++
			fmt.Fprintf(&out, "%06d  ExternFile %q (%d funcs)\n", start, path, count)
			for i := byte(0); i < count; i++ {
				if pc+4 > len(code) {
					fmt.Fprintf(&out, "%06d  <truncated ExternFile record>\n", pc)
					return out.String()
				}
				idx := binary.LittleEndian.Uint32(code[pc : pc+4])
				pc += 4
				sym, n := readCString(code, pc)
				pc = n
				fmt.Fprintf(&out, "          [%d] extern_idx=%d symbol=%q\n", i, idx, sym)
			}

		case OpCopy, OpNot, OpNeg,
			OpCastToI8, OpCastToI16, OpCastToI32, OpCastToI64,
			OpCastToU8, OpCastToU16, OpCastToU32, OpCastToU64, OpCastToFloat:
			if pc+2 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  %-10s dst=r%d src=r%d\n", start, op, code[pc], code[pc+1])
			pc += 2

		case OpSwap:
			if pc+2 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  %-10s a=%d b=%d\n", start, op, code[pc], code[pc+1])
			pc += 2

		case OpLoadConst:
			if pc+2 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  %-10s dst=r%d const=%d\n", start, op, code[pc], code[pc+1])
			pc += 2

		case OpAdd, OpSub, OpMul, OpDiv, OpMod,
			OpGt, OpLt, OpGe, OpLe, OpEq, OpNeq:
			if pc+3 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  %-10s dst=r%d l=r%d r=r%d\n", start, op, code[pc], code[pc+1], code[pc+2])
			pc += 3

		case OpJump:
			if pc+4 > len(code) {
				return truncated(&out, pc)
			}
			target := binary.LittleEndian.Uint32(code[pc : pc+4])
			fmt.Fprintf(&out, "%06d  %-10s -> %06d\n", start, op, target)
			pc += 4

		case OpJumpCond:
			if pc+9 > len(code) {
				return truncated(&out, pc)
			}
			cond := code[pc]
			t := binary.LittleEndian.Uint32(code[pc+1 : pc+5])
			f := binary.LittleEndian.Uint32(code[pc+5 : pc+9])
			fmt.Fprintf(&out, "%06d  %-10s cond=r%d true=%06d false=%06d\n", start, op, cond, t, f)
			pc += 9

		case OpCall, OpExtCall:
			if pc+6 > len(code) {
				return truncated(&out, pc)
			}
			target := binary.LittleEndian.Uint32(code[pc : pc+4])
			dst := code[pc+4]
			argc := code[pc+5]
			pc += 6
			if pc+int(argc) > len(code) {
				return truncated(&out, pc)
			}
			args := code[pc : pc+int(argc)]
			pc += int(argc)
			fmt.Fprintf(&out, "%06d  %-10s target=%d dst=r%d args=%v\n", start, op, target, dst, regList(args))

		case OpReturn:
			fmt.Fprintf(&out, "%06d  Return\n", start)

		case OpPush, OpPop:
			if pc+1 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  %-10s n=%d\n", start, op, code[pc])
			pc++

		case OpUnit:
			if pc+1 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  Unit dst=r%d\n", start, code[pc])
			pc++

		case OpStruct:
			if pc+3 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  Struct dst=r%d fields=r%d..=r%d\n", start, code[pc], code[pc+1], code[pc+2])
			pc += 3

		case OpAccStruct:
			if pc+3 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  AccStruct dst=r%d obj=r%d idx=%d\n", start, code[pc], code[pc+1], code[pc+2])
			pc += 3

		case OpSetField:
			if pc+3 > len(code) {
				return truncated(&out, pc)
			}
			fmt.Fprintf(&out, "%06d  SetField obj=r%d data=r%d idx=%d\n", start, code[pc], code[pc+1], code[pc+2])
			pc += 3

		default:
			fmt.Fprintf(&out, "%06d  <unknown opcode %d>\n", start, op)
			return out.String()
		}
	}

	return out.String()
}

func truncated(out *strings.Builder, pc int) string {
	fmt.Fprintf(out, "%06d  <truncated instruction>\n", pc)
	return out.String()
}

func readCString(code []byte, pc int) (string, int) {
	start := pc
	for pc < len(code) && code[pc] != 0 {
		pc++
	}
	if pc >= len(code) {
		return string(code[start:]), pc
	}
	return string(code[start:pc]), pc + 1
}

func regList(args []byte) []int {
	out := make([]int, len(args))
	for i, a := range args {
		out[i] = int(a)
	}
	return out
}
