// Package irbuilder implements the single-pass AST→IR lowering
// described in SPEC_FULL.md §4.4 / spec.md §4.2: given typed files
// from the (out-of-scope) front end, produce an ir.Program containing
// every concrete function plus a synthesized "::init" entry point.
package irbuilder

import (
	"fmt"
	"sort"

	"github.com/rookieCookies/azurite-sub000/internal/ast"
	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/symbol"
	"github.com/rookieCookies/azurite-sub000/internal/value"
)

// Builder accumulates declarations and lowered functions across an
// entire compilation unit (every file reserves its FunctionIndex
// before any file's body is lowered, so forward references between
// files resolve).
type Builder struct {
	symbols *symbol.Table
	consts  *ir.ConstPool

	funcIndex   map[symbol.Index]ir.FunctionIndex
	externIndex map[symbol.Index]ir.FunctionIndex

	externs   []ir.ExternFunc
	functions []ir.Function

	funcCounter   uint32
	externCounter uint32
}

// New returns a Builder sharing symbols and an (initially empty)
// constant pool with the rest of the compilation.
func New(symbols *symbol.Table) *Builder {
	return &Builder{
		symbols:     symbols,
		consts:      ir.NewConstPool(),
		funcIndex:   make(map[symbol.Index]ir.FunctionIndex),
		externIndex: make(map[symbol.Index]ir.FunctionIndex),
	}
}

func (b *Builder) nextFuncIndex() ir.FunctionIndex {
	idx := ir.FunctionIndex(b.funcCounter)
	b.funcCounter++
	return idx
}

func (b *Builder) nextExternIndex() ir.FunctionIndex {
	idx := ir.FunctionIndex(b.externCounter)
	b.externCounter++
	return idx
}

// Generate implements spec.md §4.2's three-step contract: a
// declaration pre-pass, per-file lowering in ascending symbol order,
// then ::init synthesis.
func (b *Builder) Generate(root symbol.Index, files []*ast.File) *ir.Program {
	sorted := make([]*ast.File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name.Raw() < sorted[j].Name.Raw() })

	for _, f := range sorted {
		b.funcIndex[f.Name] = b.nextFuncIndex()
		b.declarationPrepass(f.Decls)
	}

	for _, f := range sorted {
		b.lowerFile(f)
		b.lowerDecls(f.Decls)
	}

	b.buildInit(root)

	sort.Slice(b.functions, func(i, j int) bool { return b.functions[i].Index < b.functions[j].Index })

	return &ir.Program{
		Functions: b.functions,
		Externs:   b.externs,
		Constants: b.consts,
	}
}

// declarationPrepass reserves a FunctionIndex for every non-generic
// function and extern declaration in decls, recursing into impl-block
// bodies exactly as the source's declaration_process does (spec.md
// §4.2 step 1: "over every file and every impl-block body").
func (b *Builder) declarationPrepass(decls []ast.Decl) {
	for _, decl := range decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if _, ok := b.funcIndex[d.Name]; ok {
				continue
			}
			b.funcIndex[d.Name] = b.nextFuncIndex()
		case *ast.ExternDecl:
			if _, ok := b.externIndex[d.Name]; ok {
				continue
			}
			idx := b.nextExternIndex()
			b.externIndex[d.Name] = idx
			b.externs = append(b.externs, ir.ExternFunc{
				ID:      d.Name,
				Index:   idx,
				Library: d.Library,
				Symbol:  d.Symbol,
			})
		case *ast.StructDecl:
			// struct declarations carry no function index
		case *ast.ImplDecl:
			b.declarationPrepass(d.Body)
		default:
			panic(fmt.Sprintf("irbuilder: unreachable declaration type %T", d))
		}
	}
}

// lowerDecls lowers every concrete function declaration in decls,
// recursing into impl-block bodies so methods are flattened into
// ordinary functions under their already-reserved FunctionIndex.
func (b *Builder) lowerDecls(decls []ast.Decl) {
	for _, decl := range decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			b.lowerFuncDecl(d)
		case *ast.ImplDecl:
			b.lowerDecls(d.Body)
		}
	}
}

func (b *Builder) lowerFile(f *ast.File) {
	fn := newFuncBuilder(b, f.Name, b.funcIndex[f.Name], 0)
	returnVal := fn.newVar()
	fn.generateAndWriteTo(f.Body, returnVal)
	fn.resolveExplicitReturns()
	b.functions = append(b.functions, fn.finish())
}

func (b *Builder) lowerFuncDecl(d *ast.FuncDecl) {
	fn := newFuncBuilder(b, d.Name, b.funcIndex[d.Name], uint8(len(d.Params)))
	returnVal := fn.newVar()
	for _, p := range d.Params {
		v := fn.newVar()
		fn.pushScope(p.Name, v)
	}
	fn.generateAndWriteTo(d.Body, returnVal)
	fn.resolveExplicitReturns()
	b.functions = append(b.functions, fn.finish())
}

func (b *Builder) buildInit(root symbol.Index) {
	initSym := b.symbols.Add("::init")
	initIdx := b.nextFuncIndex()
	rootIdx, ok := b.funcIndex[root]
	if !ok {
		panic("irbuilder: root file symbol has no reserved function")
	}

	block := ir.Block{
		Index:        0,
		Instructions: []ir.Inst{ir.NewCall(false, 0, rootIdx, nil)},
		Terminator:   ir.Return(),
	}

	b.functions = append(b.functions, ir.Function{
		ID:        initSym,
		Index:     initIdx,
		ArgCount:  0,
		StackSize: 1,
		Blocks:    []ir.Block{block},
		Entry:     0,
	})
}

func (b *Builder) addStringConstant(s string) uint32 { return b.consts.AddString(s) }

func (b *Builder) addConstant(v value.Value, k value.Kind) uint32 { return b.consts.Add(v, k) }
