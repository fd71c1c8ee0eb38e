package irbuilder

import (
	"fmt"

	"github.com/rookieCookies/azurite-sub000/internal/ast"
	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/symbol"
)

type scopeEntry struct {
	sym symbol.Index
	v   ir.Var
}

// funcBuilder lowers one function body into a sequence of blocks. It
// mirrors the teacher-adjacent Rust Function type's bookkeeping: a
// monotonic variable counter, a monotonic block counter, a scoped
// variable-to-register lookup searched in reverse for shadowing, and
// the break/continue/explicit-return patch lists that get resolved as
// their enclosing construct finishes lowering.
type funcBuilder struct {
	b *Builder

	id       symbol.Index
	index    ir.FunctionIndex
	argCount uint8

	varCounter   uint32
	stackSize    uint32
	blockCounter uint32

	scopes []scopeEntry

	breaks      []ir.BlockIndex
	continues   []ir.BlockIndex
	explicitRet []ir.BlockIndex

	blocks []ir.Block
	entry  ir.BlockIndex
}

func newFuncBuilder(b *Builder, id symbol.Index, index ir.FunctionIndex, argCount uint8) *funcBuilder {
	return &funcBuilder{b: b, id: id, index: index, argCount: argCount, stackSize: uint32(argCount)}
}

func (fb *funcBuilder) pushScope(s symbol.Index, v ir.Var) {
	fb.scopes = append(fb.scopes, scopeEntry{sym: s, v: v})
}

func (fb *funcBuilder) newVar() ir.Var {
	v := fb.varCounter
	fb.varCounter++
	if fb.stackSize < fb.varCounter {
		fb.stackSize = fb.varCounter
	}
	return ir.Var(v)
}

func (fb *funcBuilder) newBlock() ir.BlockIndex {
	idx := fb.blockCounter
	fb.blockCounter++
	return ir.BlockIndex(idx)
}

func (fb *funcBuilder) findBlockMut(idx ir.BlockIndex) *ir.Block {
	for i := range fb.blocks {
		if fb.blocks[i].Index == idx {
			return &fb.blocks[i]
		}
	}
	panic(fmt.Sprintf("irbuilder: block %d not found in function %v", idx, fb.id))
}

func (fb *funcBuilder) resolveExplicitReturns() {
	for _, idx := range fb.explicitRet {
		fb.findBlockMut(idx).Terminator = ir.Return()
	}
}

func (fb *funcBuilder) finish() ir.Function {
	return ir.Function{
		ID:        fb.id,
		Index:     fb.index,
		ArgCount:  fb.argCount,
		StackSize: fb.stackSize,
		Blocks:    fb.blocks,
		Entry:     fb.entry,
	}
}

// resolveIdentifier searches the scope stack most-recent-first, so an
// inner let-binding shadows an outer one of the same name.
func (fb *funcBuilder) resolveIdentifier(s symbol.Index) ir.Var {
	for i := len(fb.scopes) - 1; i >= 0; i-- {
		if fb.scopes[i].sym == s {
			return fb.scopes[i].v
		}
	}
	panic(fmt.Sprintf("irbuilder: unresolved identifier %v in function %v", s, fb.id))
}

// spliceAfter pushes cur (with its terminator replaced by curTerm)
// into fb.blocks and repoints *cur at a freshly allocated block that
// inherits cur's previous terminator. This is the Go analogue of the
// source's `replace(&mut block.ending, ...)` / `replace(block, ...)`
// pattern used by Block/If/Loop/Break/Continue lowering.
func (fb *funcBuilder) spliceAfter(cur *ir.Block, curTerm ir.Terminator) *ir.Block {
	oldTerm := cur.Terminator
	cur.Terminator = curTerm
	next := ir.Block{Index: fb.newBlock(), Terminator: oldTerm}
	fb.blocks = append(fb.blocks, *cur)
	*cur = next
	return cur
}

// convertBlock lowers a nested statement list into its own block
// chain (used for sub-scopes: if/else arms, loop bodies, nested
// blocks) and returns the entry block, the final block produced, and
// the register holding the sub-scope's result value.
func (fb *funcBuilder) convertBlock(stmts []ast.Stmt) (start, end ir.BlockIndex, result ir.Var) {
	startIdx := fb.newBlock()
	block := &ir.Block{Index: startIdx, Terminator: ir.Return()}

	returnVal := fb.newVar()
	savedScopeLen := len(fb.scopes)
	savedVarCounter := fb.varCounter

	finalValue := returnVal
	if fb.evaluate(block, stmts, &finalValue) {
		block.Instructions = append(block.Instructions, ir.NewCopy(0, finalValue))
	} else {
		block.Instructions = append(block.Instructions, ir.NewCopy(returnVal, finalValue))
	}

	endIdx := block.Index
	fb.blocks = append(fb.blocks, *block)

	fb.varCounter = savedVarCounter
	fb.scopes = fb.scopes[:savedScopeLen]

	return startIdx, endIdx, returnVal
}

// generateAndWriteTo lowers a whole function's body into the
// function's entry block chain, writing its result into returnVal
// (ordinarily register 0, the function's reserved return slot).
func (fb *funcBuilder) generateAndWriteTo(stmts []ast.Stmt, returnVal ir.Var) {
	startIdx := fb.newBlock()
	fb.entry = startIdx
	block := &ir.Block{Index: startIdx, Terminator: ir.Return()}

	finalValue := returnVal
	if fb.evaluate(block, stmts, &finalValue) {
		block.Instructions = append(block.Instructions, ir.NewCopy(0, finalValue))
	} else {
		block.Instructions = append(block.Instructions, ir.NewCopy(returnVal, finalValue))
	}

	fb.blocks = append(fb.blocks, *block)
}

// evaluate lowers stmts into block, threading the "current block"
// pointer through splices caused by nested Block/If/Loop/Break/
// Continue. It reports whether an explicit return was encountered —
// callers must then retarget the current block's terminator to
// Return once the whole function is built (resolveExplicitReturns).
func (fb *funcBuilder) evaluate(block *ir.Block, stmts []ast.Stmt, finalValue *ir.Var) bool {
	for _, stmt := range stmts {
		if ret, ok := stmt.(*ast.Return); ok {
			var v ir.Var
			if ret.Expr != nil {
				v = fb.convertExpr(block, ret.Expr)
			} else {
				v = fb.newVar()
				block.Instructions = append(block.Instructions, ir.NewUnit(v))
			}
			*finalValue = v
			fb.explicitRet = append(fb.explicitRet, block.Index)
			return true
		}

		switch s := stmt.(type) {
		case *ast.ExprStmt:
			*finalValue = fb.convertExpr(block, s.Expr)
		case *ast.Block:
			*finalValue = fb.convertBlockAsExpr(block, s)
		case *ast.If:
			*finalValue = fb.convertIf(block, s)
		case *ast.Loop:
			fb.convertLoop(block, s)
		case *ast.LetStmt:
			v := fb.convertExpr(block, s.Value)
			fb.pushScope(s.Name, v)
		case *ast.FieldUpdate:
			target := fb.convertExpr(block, s.Target)
			data := fb.convertExpr(block, s.Value)
			block.Instructions = append(block.Instructions, ir.NewSetField(target, data, s.Index))
		case *ast.Break:
			fb.breaks = append(fb.breaks, block.Index)
			fb.spliceAfter(block, ir.Goto(ir.Invalid))
		case *ast.Continue:
			fb.continues = append(fb.continues, block.Index)
			fb.spliceAfter(block, ir.Goto(ir.Invalid))
		default:
			panic(fmt.Sprintf("irbuilder: unreachable statement type %T", s))
		}
	}
	return false
}

// convertBlockAsExpr lowers a nested `{ ... }` appearing where a
// value is expected: its own block chain, then splice the current
// block to Goto into it and continue afterward.
func (fb *funcBuilder) convertBlockAsExpr(block *ir.Block, b *ast.Block) ir.Var {
	bodyStart, bodyEnd, result := fb.convertBlock(b.Stmts)

	contBlock := ir.Block{Index: fb.newBlock(), Terminator: block.Terminator}
	block.Terminator = ir.Goto(bodyStart)
	fb.findBlockMut(bodyEnd).Terminator = ir.Goto(contBlock.Index)

	fb.blocks = append(fb.blocks, *block)
	*block = contBlock

	return result
}

func (fb *funcBuilder) convertIf(block *ir.Block, ifExpr *ast.If) ir.Var {
	cond := fb.convertExpr(block, ifExpr.Cond)

	bodyStart, bodyEnd, bodyVar := fb.convertBlock(ifExpr.Then.Stmts)

	contBlock := ir.Block{Index: fb.newBlock(), Terminator: ir.Return()}

	var falseTarget ir.BlockIndex
	if ifExpr.Else != nil {
		elseStart, elseEnd, elseVar := fb.convertBlock(ifExpr.Else.Stmts)
		elseBlock := fb.findBlockMut(elseEnd)
		elseBlock.Terminator = ir.Goto(contBlock.Index)
		elseBlock.Instructions = append(elseBlock.Instructions, ir.NewCopy(bodyVar, elseVar))
		falseTarget = elseStart
	} else {
		falseTarget = contBlock.Index
	}

	switchTerm := ir.SwitchBool(cond, bodyStart, falseTarget)
	oldTerm := block.Terminator
	block.Terminator = switchTerm
	contBlock.Terminator = oldTerm

	fb.findBlockMut(bodyEnd).Terminator = ir.Goto(contBlock.Index)

	fb.blocks = append(fb.blocks, *block)
	*block = contBlock

	return bodyVar
}

func (fb *funcBuilder) convertLoop(block *ir.Block, loop *ast.Loop) {
	bodyStart, bodyEnd, _ := fb.convertBlock(loop.Body.Stmts)
	fb.findBlockMut(bodyEnd).Terminator = ir.Goto(bodyStart)

	next := fb.spliceAfter(block, ir.Goto(bodyStart))

	breaks := fb.breaks
	fb.breaks = nil
	for _, idx := range breaks {
		fb.findBlockMut(idx).Terminator = ir.Goto(next.Index)
	}

	continues := fb.continues
	fb.continues = nil
	for _, idx := range continues {
		fb.findBlockMut(idx).Terminator = ir.Goto(bodyStart)
	}
}
