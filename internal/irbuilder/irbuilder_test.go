package irbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookieCookies/azurite-sub000/internal/ast"
	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/irbuilder"
	"github.com/rookieCookies/azurite-sub000/internal/symbol"
)

func reachable(fn *ir.Function) map[ir.BlockIndex]bool {
	seen := map[ir.BlockIndex]bool{}
	var walk func(idx ir.BlockIndex)
	walk = func(idx ir.BlockIndex) {
		if seen[idx] {
			return
		}
		seen[idx] = true
		for _, t := range fn.Block(idx).Terminator.Targets() {
			walk(t)
		}
	}
	walk(fn.Entry)
	return seen
}

func findFunc(prog *ir.Program, name symbol.Index) *ir.Function {
	for i := range prog.Functions {
		if prog.Functions[i].ID == name {
			return &prog.Functions[i]
		}
	}
	return nil
}

// TestArithmeticExpression covers §8 scenario 1: (2 + 3) * 4.
func TestArithmeticExpression(t *testing.T) {
	symbols := symbol.New()
	root := symbols.Add("main")

	two := &ast.IntLit{Value: 2}
	three := &ast.IntLit{Value: 3}
	four := &ast.IntLit{Value: 4}
	expr := &ast.BinOp{Op: ast.BinMul, Left: &ast.BinOp{Op: ast.BinAdd, Left: two, Right: three}, Right: four}

	file := &ast.File{Name: root, Body: []ast.Stmt{&ast.ExprStmt{Expr: expr}}}

	b := irbuilder.New(symbols)
	prog := b.Generate(root, []*ast.File{file})

	fn := findFunc(prog, root)
	require.NotNil(t, fn)
	assert.Len(t, fn.Blocks, 1)

	init := findFunc(prog, symbols.Add("::init"))
	require.NotNil(t, init)
	assert.Equal(t, ir.OpCall, init.Blocks[0].Instructions[0].Op)
}

// TestIfExpressionHasThreeBlocksPlusContinuation covers §8 scenario 2.
func TestIfExpressionHasThreeBlocksPlusContinuation(t *testing.T) {
	symbols := symbol.New()
	root := symbols.Add("main")

	ifExpr := &ast.If{
		Cond: &ast.BoolLit{Value: true},
		Then: &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{Expr: &ast.IntLit{Value: 1}}}},
		Else: &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{Expr: &ast.IntLit{Value: 2}}}},
	}
	file := &ast.File{Name: root, Body: []ast.Stmt{&ast.ExprStmt{Expr: ifExpr}}}

	b := irbuilder.New(symbols)
	prog := b.Generate(root, []*ast.File{file})

	fn := findFunc(prog, root)
	require.NotNil(t, fn)
	// entry + then-body + else-body + continuation
	assert.Len(t, fn.Blocks, 4)

	reach := reachable(fn)
	for _, blk := range fn.Blocks {
		assert.True(t, reach[blk.Index], "block %d should be reachable from entry", blk.Index)
	}
}

// TestLoopWithBreakTerminatesBodyAsGoto covers §8 scenario 3.
func TestLoopWithBreakTerminatesBodyAsGoto(t *testing.T) {
	symbols := symbol.New()
	root := symbols.Add("main")

	loop := &ast.Loop{Body: &ast.Block{Stmts: []ast.Stmt{&ast.Break{}}}}
	file := &ast.File{Name: root, Body: []ast.Stmt{loop}}

	b := irbuilder.New(symbols)
	prog := b.Generate(root, []*ast.File{file})

	fn := findFunc(prog, root)
	require.NotNil(t, fn)

	entry := fn.Block(fn.Entry)
	require.Equal(t, ir.TermGoto, entry.Terminator.Kind)
	bodyHead := entry.Terminator.Target

	// every Goto/SwitchBool target is a valid block index (§8).
	for _, blk := range fn.Blocks {
		for _, target := range blk.Terminator.Targets() {
			assert.True(t, int(target) < len(fn.Blocks), "target %d out of range", target)
		}
	}
	assert.True(t, int(bodyHead) < len(fn.Blocks))
}

// TestStructLiteralGathersContiguousFieldRegisters covers the §9 open
// question resolution: Struct's field registers must be contiguous.
func TestStructLiteralGathersContiguousFieldRegisters(t *testing.T) {
	symbols := symbol.New()
	root := symbols.Add("main")
	structName := symbols.Add("P")

	lit := &ast.StructLit{Name: structName, Fields: []ast.Expr{&ast.IntLit{Value: 7}, &ast.IntLit{Value: 9}}}
	file := &ast.File{Name: root, Body: []ast.Stmt{&ast.ExprStmt{Expr: lit}}}

	b := irbuilder.New(symbols)
	prog := b.Generate(root, []*ast.File{file})

	fn := findFunc(prog, root)
	require.NotNil(t, fn)

	var structInst *ir.Inst
	for i := range fn.Blocks[0].Instructions {
		if fn.Blocks[0].Instructions[i].Op == ir.OpStruct {
			structInst = &fn.Blocks[0].Instructions[i]
		}
	}
	require.NotNil(t, structInst)
	require.Len(t, structInst.Fields, 2)
	assert.Equal(t, structInst.Fields[0]+1, structInst.Fields[1])
}

// TestImplBlockMethodsAreReservedAndLowered covers the declaration
// pre-pass's recursion into impl-block bodies (spec.md §4.2 step 1:
// "over every file and every impl-block body").
func TestImplBlockMethodsAreReservedAndLowered(t *testing.T) {
	symbols := symbol.New()
	root := symbols.Add("main")
	method := symbols.Add("P::new")
	nested := symbols.Add("P::helper")

	impl := &ast.ImplDecl{
		Target: symbols.Add("P"),
		Body: []ast.Decl{
			&ast.FuncDecl{Name: method, Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.IntLit{Value: 1}}}},
			&ast.ImplDecl{
				Target: symbols.Add("P"),
				Body: []ast.Decl{
					&ast.FuncDecl{Name: nested, Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.IntLit{Value: 2}}}},
				},
			},
		},
	}
	file := &ast.File{Name: root, Decls: []ast.Decl{impl}, Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.IntLit{Value: 0}}}}

	b := irbuilder.New(symbols)
	prog := b.Generate(root, []*ast.File{file})

	assert.NotNil(t, findFunc(prog, method))
	assert.NotNil(t, findFunc(prog, nested))
}

// TestIdentifierShadowing exercises reverse-scoped lookup.
func TestIdentifierShadowing(t *testing.T) {
	symbols := symbol.New()
	root := symbols.Add("main")
	x := symbols.Add("x")

	body := []ast.Stmt{
		&ast.LetStmt{Name: x, Value: &ast.IntLit{Value: 1}},
		&ast.LetStmt{Name: x, Value: &ast.IntLit{Value: 2}},
		&ast.ExprStmt{Expr: &ast.Identifier{Name: x}},
	}
	file := &ast.File{Name: root, Body: body}

	b := irbuilder.New(symbols)
	assert.NotPanics(t, func() { b.Generate(root, []*ast.File{file}) })
}
