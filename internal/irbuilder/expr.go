package irbuilder

import (
	"fmt"

	"github.com/rookieCookies/azurite-sub000/internal/ast"
	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/value"
)

var binOpcodes = map[ast.BinOpKind]ir.Opcode{
	ast.BinAdd: ir.OpAdd,
	ast.BinSub: ir.OpSub,
	ast.BinMul: ir.OpMul,
	ast.BinDiv: ir.OpDiv,
	ast.BinMod: ir.OpMod,
	ast.BinEq:  ir.OpEq,
	ast.BinNeq: ir.OpNeq,
	ast.BinGt:  ir.OpGt,
	ast.BinLt:  ir.OpLt,
	ast.BinGe:  ir.OpGe,
	ast.BinLe:  ir.OpLe,
}

// convertExpr lowers e into block, returning the register holding its
// result. Mirrors spec.md §4.2's per-form lowering; If and Block are
// also valid Exprs and delegate to the statement-lowering helpers in
// function.go since spec.md treats them as control-flow-bearing
// expressions, not just statements.
func (fb *funcBuilder) convertExpr(block *ir.Block, e ast.Expr) ir.Var {
	switch expr := e.(type) {
	case *ast.IntLit:
		dst := fb.newVar()
		idx := fb.b.addConstant(value.Int(expr.Value), expr.Kind)
		block.Instructions = append(block.Instructions, ir.NewLoad(dst, idx))
		return dst

	case *ast.FloatLit:
		dst := fb.newVar()
		idx := fb.b.addConstant(value.Float(expr.Value), value.F64)
		block.Instructions = append(block.Instructions, ir.NewLoad(dst, idx))
		return dst

	case *ast.BoolLit:
		dst := fb.newVar()
		idx := fb.b.addConstant(value.Bool(expr.Value), value.KindBool)
		block.Instructions = append(block.Instructions, ir.NewLoad(dst, idx))
		return dst

	case *ast.StringLit:
		dst := fb.newVar()
		idx := fb.b.addStringConstant(expr.Value)
		block.Instructions = append(block.Instructions, ir.NewLoad(dst, idx))
		return dst

	case *ast.Cast:
		val := fb.convertExpr(block, expr.Value)
		dst := fb.newVar()
		block.Instructions = append(block.Instructions, ir.NewCast(expr.Kind, dst, val))
		return dst

	case *ast.BinOp:
		left := fb.convertExpr(block, expr.Left)
		right := fb.convertExpr(block, expr.Right)
		dst := fb.newVar()
		op, ok := binOpcodes[expr.Op]
		if !ok {
			panic(fmt.Sprintf("irbuilder: unreachable binary operator %v", expr.Op))
		}
		block.Instructions = append(block.Instructions, ir.NewBinOp(op, dst, left, right))
		return dst

	case *ast.UnaryOp:
		val := fb.convertExpr(block, expr.Val)
		dst := fb.newVar()
		var op ir.Opcode
		switch expr.Op {
		case ast.UnaryNot:
			op = ir.OpNot
		case ast.UnaryNeg:
			op = ir.OpNeg
		default:
			panic(fmt.Sprintf("irbuilder: unreachable unary operator %v", expr.Op))
		}
		block.Instructions = append(block.Instructions, ir.NewUnary(op, dst, val))
		return dst

	case *ast.Identifier:
		return fb.resolveIdentifier(expr.Name)

	case *ast.Call:
		args := make([]ir.Var, len(expr.Args))
		for i, a := range expr.Args {
			args[i] = fb.convertExpr(block, a)
		}
		dst := fb.newVar()
		var fnIdx ir.FunctionIndex
		if expr.Extern {
			fnIdx = fb.b.externIndex[expr.Callee]
		} else {
			fnIdx = fb.b.funcIndex[expr.Callee]
		}
		block.Instructions = append(block.Instructions, ir.NewCall(expr.Extern, dst, fnIdx, args))
		return dst

	case *ast.StructLit:
		if len(expr.Fields) == 0 {
			dst := fb.newVar()
			block.Instructions = append(block.Instructions, ir.NewUnit(dst))
			return dst
		}

		fieldVars := make([]ir.Var, len(expr.Fields))
		for i, fexpr := range expr.Fields {
			fieldVars[i] = fb.convertExpr(block, fexpr)
		}

		// Gather into a contiguous register run immediately before
		// Struct, per SPEC_FULL.md §9: field expressions may land in
		// registers the optimizer later proves non-adjacent, so the
		// builder always emits an explicit copy chain rather than
		// relying on allocation order alone.
		gathered := make([]ir.Var, len(fieldVars))
		for i, v := range fieldVars {
			g := fb.newVar()
			block.Instructions = append(block.Instructions, ir.NewCopy(g, v))
			gathered[i] = g
		}

		dst := fb.newVar()
		block.Instructions = append(block.Instructions, ir.NewStruct(dst, gathered))
		return dst

	case *ast.FieldAccess:
		structVar := fb.convertExpr(block, expr.Target)
		dst := fb.newVar()
		block.Instructions = append(block.Instructions, ir.NewAccStruct(dst, structVar, expr.Index))
		return dst

	case *ast.If:
		return fb.convertIf(block, expr)

	case *ast.Block:
		return fb.convertBlockAsExpr(block, expr)

	default:
		panic(fmt.Sprintf("irbuilder: unreachable expression type %T", expr))
	}
}
