package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/optimizer"
)

func fn(blocks ...ir.Block) ir.Function {
	return ir.Function{Blocks: blocks, Entry: 0, StackSize: 8}
}

func TestUnreachableBlockRemoval(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{Index: 0, Terminator: ir.Goto(2)},
		ir.Block{Index: 1, Terminator: ir.Return()}, // unreachable
		ir.Block{Index: 2, Terminator: ir.Return()},
	)}}

	optimizer.Run(prog)

	got := prog.Functions[0]
	// block 2 is fused into block 0 once block 1 is swept, converging
	// to a single block.
	assert.Len(t, got.Blocks, 1)
	for _, b := range got.Blocks {
		for _, tgt := range b.Terminator.Targets() {
			assert.True(t, tgt == 0 || int(tgt) < len(got.Blocks))
		}
	}
}

func TestLinearBlockFusion(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{Index: 0, Instructions: []ir.Inst{ir.NewLoad(1, 0)}, Terminator: ir.Goto(1)},
		ir.Block{Index: 1, Instructions: []ir.Inst{ir.NewLoad(2, 1)}, Terminator: ir.Return()},
	)}}

	optimizer.Run(prog)

	got := prog.Functions[0]
	require.Len(t, got.Blocks, 1)
	assert.Len(t, got.Blocks[0].Instructions, 2)
	assert.Equal(t, ir.TermReturn, got.Blocks[0].Terminator.Kind)
}

func TestFusionSkippedWhenTargetHasMultiplePredecessors(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{Index: 0, Terminator: ir.SwitchBool(0, 1, 2)},
		ir.Block{Index: 1, Terminator: ir.Goto(3)},
		ir.Block{Index: 2, Terminator: ir.Goto(3)},
		ir.Block{Index: 3, Terminator: ir.Return()},
	)}}

	optimizer.Run(prog)

	got := prog.Functions[0]
	// block 3 has two predecessors (1 and 2), so it survives as its
	// own block rather than being fused into either.
	assert.Len(t, got.Blocks, 4)
}

func TestBackwardCopyElimination(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{
			Index: 0,
			Instructions: []ir.Inst{
				ir.NewLoad(3, 0),
				ir.NewCopy(1, 3),
			},
			Terminator: ir.Return(),
		},
	)}}

	optimizer.Run(prog)

	insts := prog.Functions[0].Blocks[0].Instructions
	require.Len(t, insts, 1)
	assert.Equal(t, ir.OpLoad, insts[0].Op)
	assert.Equal(t, ir.Var(1), insts[0].Dst)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	build := func() *ir.Program {
		return &ir.Program{Functions: []ir.Function{fn(
			ir.Block{Index: 0, Instructions: []ir.Inst{ir.NewLoad(2, 0), ir.NewCopy(1, 2)}, Terminator: ir.Goto(1)},
			ir.Block{Index: 1, Terminator: ir.Return()},
		)}}
	}

	once := build()
	optimizer.Run(once)

	twice := build()
	optimizer.Run(twice)
	optimizer.Run(twice)

	assert.Equal(t, once.Functions[0].Blocks, twice.Functions[0].Blocks)
}

func TestRegisterAllocDropsDeadWrite(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{
			Index: 0,
			Instructions: []ir.Inst{
				ir.NewLoad(1, 0), // dead: register 1 never read afterward
				ir.NewCopy(0, ir.Var(2)),
			},
			Terminator: ir.Return(),
		},
	)}}

	optimizer.RegisterAlloc(prog)

	insts := prog.Functions[0].Blocks[0].Instructions
	require.Len(t, insts, 1)
	assert.Equal(t, ir.OpCopy, insts[0].Op)
}

func TestRegisterAllocKeepsReturnRegisterWrite(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{
			Index:        0,
			Instructions: []ir.Inst{ir.NewLoad(0, 0)},
			Terminator:   ir.Return(),
		},
	)}}

	optimizer.RegisterAlloc(prog)

	assert.Len(t, prog.Functions[0].Blocks[0].Instructions, 1)
}

func TestRegisterAllocKeepsWriteUsedAcrossBlocks(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{Index: 0, Instructions: []ir.Inst{ir.NewLoad(2, 0)}, Terminator: ir.Goto(1)},
		ir.Block{Index: 1, Instructions: []ir.Inst{ir.NewCopy(0, 2)}, Terminator: ir.Return()},
	)}}

	optimizer.RegisterAlloc(prog)

	assert.Len(t, prog.Functions[0].Blocks[0].Instructions, 1)
}

func TestRegisterAllocDropsSwapWhenBothOperandsAreDead(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{
			Index: 0,
			Instructions: []ir.Inst{
				ir.NewLoad(0, 0),
				ir.NewSwap(ir.Var(2), ir.Var(3)), // 2 and 3 are never read afterward
			},
			Terminator: ir.Return(),
		},
	)}}

	optimizer.RegisterAlloc(prog)

	insts := prog.Functions[0].Blocks[0].Instructions
	require.Len(t, insts, 1)
	assert.Equal(t, ir.OpLoad, insts[0].Op)
}

func TestRegisterAllocKeepsSwapWhenAnOperandIsUsedLater(t *testing.T) {
	prog := &ir.Program{Functions: []ir.Function{fn(
		ir.Block{
			Index: 0,
			Instructions: []ir.Inst{
				ir.NewSwap(ir.Var(2), ir.Var(3)),
				ir.NewCopy(0, ir.Var(2)),
			},
			Terminator: ir.Return(),
		},
	)}}

	optimizer.RegisterAlloc(prog)

	insts := prog.Functions[0].Blocks[0].Instructions
	require.Len(t, insts, 2)
	assert.Equal(t, ir.OpSwap, insts[0].Op)
}
