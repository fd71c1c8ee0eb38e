package optimizer

import "github.com/rookieCookies/azurite-sub000/internal/ir"

// blockInfo is the precomputed per-block "registers read" set used by
// the cross-block half of the liveness query, paired with the
// block's terminator so the search can keep walking without
// re-fetching the block itself.
type blockInfo struct {
	used []ir.Var
	term ir.Terminator
}

// RegisterAlloc runs the liveness-prune pass described in spec.md
// §4.3: for every instruction whose only effect is to write a
// register never read afterwards (in the rest of the block, through
// the block's continuation graph, or by a terminator condition), drop
// it. Variable 0 is conservatively always live (the return-slot
// convention). Unlike the four-pass pipeline in Run, this pass does
// not iterate to a fixed point — spec.md describes it as a single
// separate sweep.
func RegisterAlloc(prog *ir.Program) {
	for i := range prog.Functions {
		registerAllocFunction(&prog.Functions[i])
	}
}

func registerAllocFunction(fn *ir.Function) {
	blockMap := buildBlockMap(fn)

	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		var remove []int

		for idx := range blk.Instructions {
			inst := &blk.Instructions[idx]

			if inst.Op == ir.OpSwap {
				rest := blk.Instructions[idx+1:]
				if !isUsedLater(inst.A, blk.Terminator, rest, blockMap) &&
					!isUsedLater(inst.B, blk.Terminator, rest, blockMap) {
					remove = append(remove, idx)
				}
				continue
			}

			dst, writesOnly := pruneCandidate(inst)
			if !writesOnly {
				continue
			}
			if !isUsedLater(dst, blk.Terminator, blk.Instructions[idx+1:], blockMap) {
				remove = append(remove, idx)
			}
		}

		for i := len(remove) - 1; i >= 0; i-- {
			idx := remove[i]
			blk.Instructions = append(blk.Instructions[:idx], blk.Instructions[idx+1:]...)
		}
	}
}

// pruneCandidate reports the register a "write-only" instruction
// defines (every form whose sole effect is a destination write), or
// ok=false for forms that are never pruned through this path. Swap has
// two operands and no single destination, so it is pruned separately
// in registerAllocFunction's loop, mirroring the source's dedicated
// Swap branch (both operands must be proven dead).
func pruneCandidate(inst *ir.Inst) (ir.Var, bool) {
	switch inst.Op {
	case ir.OpCopy, ir.OpStruct, ir.OpAccStruct,
		ir.OpCastToI8, ir.OpCastToI16, ir.OpCastToI32, ir.OpCastToI64,
		ir.OpCastToU8, ir.OpCastToU16, ir.OpCastToU32, ir.OpCastToU64, ir.OpCastToFloat,
		ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpGt, ir.OpLt, ir.OpGe, ir.OpLe,
		ir.OpNot, ir.OpNeg, ir.OpLoad:
		return inst.Dst, true
	default:
		return 0, false
	}
}

func isUsedLater(reg ir.Var, term ir.Terminator, rest []ir.Inst, blockMap map[ir.BlockIndex]blockInfo) bool {
	if reg == 0 {
		return true
	}

	for _, inst := range rest {
		if instUsesRegister(&inst, reg) {
			return true
		}
	}

	return recursiveBlockSearch(term, reg, blockMap)
}

func recursiveBlockSearch(term ir.Terminator, reg ir.Var, blockMap map[ir.BlockIndex]blockInfo) bool {
	switch term.Kind {
	case ir.TermGoto:
		info := blockMap[term.Target]
		if containsVar(info.used, reg) {
			return true
		}
		return recursiveBlockSearch(info.term, reg, blockMap)

	case ir.TermSwitchBool:
		if term.Cond == reg {
			return true
		}
		trueInfo := blockMap[term.TrueTarget]
		if containsVar(trueInfo.used, reg) {
			return true
		}
		if recursiveBlockSearch(trueInfo.term, reg, blockMap) {
			return true
		}
		falseInfo := blockMap[term.FalseTarget]
		if containsVar(falseInfo.used, reg) {
			return true
		}
		return recursiveBlockSearch(falseInfo.term, reg, blockMap)

	case ir.TermReturn:
		return false

	default:
		panic("optimizer: unreachable terminator kind")
	}
}

func buildBlockMap(fn *ir.Function) map[ir.BlockIndex]blockInfo {
	m := make(map[ir.BlockIndex]blockInfo, len(fn.Blocks))
	for _, blk := range fn.Blocks {
		var used []ir.Var
		for i := range blk.Instructions {
			used = instructionUsedRegisters(&blk.Instructions[i], used)
		}
		m[blk.Index] = blockInfo{used: used, term: blk.Terminator}
	}
	return m
}

func instUsesRegister(inst *ir.Inst, reg ir.Var) bool {
	return containsVar(instructionUsedRegisters(inst, nil), reg)
}

func containsVar(vars []ir.Var, v ir.Var) bool {
	for _, x := range vars {
		if x == v {
			return true
		}
	}
	return false
}

// instructionUsedRegisters appends every register inst reads (never
// its write-only destination) to storage, mirroring the source's
// instruction_used_registers.
func instructionUsedRegisters(inst *ir.Inst, storage []ir.Var) []ir.Var {
	switch inst.Op {
	case ir.OpCopy:
		return append(storage, inst.Src)
	case ir.OpSwap:
		return append(storage, inst.A, inst.B)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpGt, ir.OpLt, ir.OpGe, ir.OpLe:
		return append(storage, inst.A, inst.B)
	case ir.OpAccStruct:
		return append(storage, inst.Obj)
	case ir.OpSetField:
		return append(storage, inst.Data, inst.Obj)
	case ir.OpCastToI8, ir.OpCastToI16, ir.OpCastToI32, ir.OpCastToI64,
		ir.OpCastToU8, ir.OpCastToU16, ir.OpCastToU32, ir.OpCastToU64, ir.OpCastToFloat,
		ir.OpNot, ir.OpNeg:
		return append(storage, inst.Src)
	case ir.OpCall, ir.OpExtCall:
		return append(storage, inst.Args...)
	case ir.OpStruct:
		return append(storage, inst.Fields...)
	default:
		return storage
	}
}
