// Package optimizer implements the fixed-point IR optimization
// pipeline described in SPEC_FULL.md §4.5 / spec.md §4.3: unreachable
// block removal, linear block fusion, backward copy elimination and
// block-index compaction, iterated per function until no pass reports
// a change, plus the separate register-liveness prune pass.
package optimizer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rookieCookies/azurite-sub000/internal/ir"
)

// Run iterates the per-function pipeline to a fixed point. Functions
// are independent after the declaration pre-pass (spec.md §5), so
// each sweep fans the per-function work out across
// golang.org/x/sync/errgroup — the Go analogue of the source's
// rayon::par_iter_mut over functions.
func Run(prog *ir.Program) {
	for {
		changed := make([]bool, len(prog.Functions))

		var g errgroup.Group
		for i := range prog.Functions {
			i := i
			g.Go(func() error {
				changed[i] = optimizeFunction(&prog.Functions[i])
				return nil
			})
		}
		_ = g.Wait() // no per-function pass can fail; errgroup only buys the fan-out

		any := false
		for _, c := range changed {
			if c {
				any = true
				break
			}
		}
		if !any {
			break
		}
	}
}

// RunWithContext is the cancellable variant, for callers that want to
// bound optimization with a deadline.
func RunWithContext(ctx context.Context, prog *ir.Program) error {
	for {
		changed := make([]bool, len(prog.Functions))

		g, gctx := errgroup.WithContext(ctx)
		for i := range prog.Functions {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				changed[i] = optimizeFunction(&prog.Functions[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		any := false
		for _, c := range changed {
			if c {
				any = true
				break
			}
		}
		if !any {
			return nil
		}
	}
}

// optimizeFunction runs one sweep of the four local passes over fn
// and reports whether anything changed (only block fusion ever
// reports a change; the others are normalizing passes run every sweep
// regardless).
func optimizeFunction(fn *ir.Function) bool {
	removeUnreachableBlocks(fn)
	changed := fuseLinearBlocks(fn)
	eliminateBackwardCopies(fn)
	compactBlockIndices(fn)
	return changed
}

// removeUnreachableBlocks keeps only blocks reachable from fn.Entry,
// via a DFS following every terminator target (spec.md §4.3 pass 1).
func removeUnreachableBlocks(fn *ir.Function) {
	visited := map[ir.BlockIndex]bool{}
	stack := []ir.BlockIndex{fn.Entry}

	kept := make([]ir.Block, 0, len(fn.Blocks))
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[idx] {
			continue
		}
		visited[idx] = true

		blk := findBlock(fn, idx)
		kept = append(kept, *blk)
		stack = append(stack, blk.Terminator.Targets()...)
	}

	fn.Blocks = kept
}

func findBlock(fn *ir.Function, idx ir.BlockIndex) *ir.Block {
	for i := range fn.Blocks {
		if fn.Blocks[i].Index == idx {
			return &fn.Blocks[i]
		}
	}
	panic("optimizer: block not found during traversal")
}

// fuseLinearBlocks implements spec.md §4.3 pass 2: for each block B
// whose terminator is Goto(T) and T has exactly one predecessor
// (B itself), append T's instructions to B and adopt T's terminator.
// T becomes unreachable and is swept by the next dead-block pass.
// Detection is the O(blocks^2) scan spec.md calls for.
func fuseLinearBlocks(fn *ir.Function) bool {
	changed := false

	ids := make([]ir.BlockIndex, len(fn.Blocks))
	for i, b := range fn.Blocks {
		ids[i] = b.Index
	}

outer:
	for _, id := range ids {
		blk := findBlock(fn, id)
		if blk.Terminator.Kind != ir.TermGoto {
			continue
		}
		target := blk.Terminator.Target

		for _, other := range ids {
			if other == id {
				continue
			}
			ob := findBlock(fn, other)
			for _, t := range ob.Terminator.Targets() {
				if t == target {
					continue outer
				}
			}
		}

		targetBlock := findBlock(fn, target)
		insts := targetBlock.Instructions
		term := targetBlock.Terminator

		b := findBlock(fn, id)
		b.Terminator = term
		b.Instructions = append(b.Instructions, insts...)
		changed = true
	}

	return changed
}

// eliminateBackwardCopies implements spec.md §4.3 pass 3: scanning in
// reverse, when an instruction's destination equals the source of the
// immediately-following Copy, the copy is folded into that
// instruction's destination directly and deleted.
func eliminateBackwardCopies(fn *ir.Function) {
	for i := range fn.Blocks {
		eliminateBackwardCopiesInBlock(&fn.Blocks[i])
	}
}

func eliminateBackwardCopiesInBlock(blk *ir.Block) {
	for {
		removeAt := -1

		var lastCopy *ir.Inst
		for idx := len(blk.Instructions) - 1; idx >= 0; idx-- {
			inst := &blk.Instructions[idx]

			var thisCopy *ir.Inst
			if inst.Op == ir.OpCopy {
				thisCopy = inst
			}

			copy := lastCopy
			lastCopy = thisCopy

			if copy == nil {
				continue
			}

			if dst, ok := foldableDst(inst); ok && *dst == copy.Src {
				*dst = copy.Dst
				removeAt = idx + 1
				break
			}
		}

		if removeAt < 0 {
			break
		}
		blk.Instructions = append(blk.Instructions[:removeAt], blk.Instructions[removeAt+1:]...)
	}
}

// foldableDst returns a pointer to the register each form's backward
// scan may redirect. For SetField this is the object register (named
// `dst` in the original IR even though the instruction only mutates
// through it rather than writing a fresh value) — matching the
// source's exhaustive match arm verbatim rather than the more
// intuitive "is this a write" grouping.
func foldableDst(inst *ir.Inst) (*ir.Var, bool) {
	switch inst.Op {
	case ir.OpSwap, ir.OpNoop:
		return nil, false
	case ir.OpSetField:
		return &inst.Obj, true
	default:
		return &inst.Dst, true
	}
}

// compactBlockIndices implements spec.md §4.3 pass 4: renumber
// surviving blocks densely from 0 and rewrite every terminator.
func compactBlockIndices(fn *ir.Function) {
	mapping := make(map[ir.BlockIndex]ir.BlockIndex, len(fn.Blocks))
	for i := range fn.Blocks {
		mapping[fn.Blocks[i].Index] = ir.BlockIndex(i)
	}

	newEntry := mapping[fn.Entry]
	for i := range fn.Blocks {
		fn.Blocks[i].Index = ir.BlockIndex(i)
		switch fn.Blocks[i].Terminator.Kind {
		case ir.TermGoto:
			fn.Blocks[i].Terminator.Target = mapping[fn.Blocks[i].Terminator.Target]
		case ir.TermSwitchBool:
			fn.Blocks[i].Terminator.TrueTarget = mapping[fn.Blocks[i].Terminator.TrueTarget]
			fn.Blocks[i].Terminator.FalseTarget = mapping[fn.Blocks[i].Terminator.FalseTarget]
		}
	}
	fn.Entry = newEntry
}
