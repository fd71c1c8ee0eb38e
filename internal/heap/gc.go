package heap

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Root is one GC root: either an in-use stack cell or a constant pool
// entry. Only cells whose IsRef is true contribute to marking.
type Root struct {
	IsRef bool
	Ref   Ref
}

// Collect runs one mark-then-sweep cycle over h, following roots
// (spec.md §4.7). Mark is sequential and cycle-safe via the per-object
// Live flag; sweep fans out across GOMAXPROCS via errgroup, mirroring
// garbage_collector.rs's rayon par_iter_mut over the arena, with a
// single atomic free-head variable coordinating slot reclamation.
func Collect(h *Heap, roots []Root) {
	mark(h, roots)
	sweep(h)
}

func mark(h *Heap, roots []Root) {
	for _, r := range roots {
		if r.IsRef {
			markObject(h, r.Ref)
		}
	}
}

// markObject recursively marks idx and, for a Struct, every field
// that is itself a reference. The pre-set Live check makes this
// cycle-safe: a struct that (transitively) references itself is only
// visited once.
func markObject(h *Heap, idx Ref) {
	obj := h.Get(idx)
	if obj.Live {
		return
	}
	obj.Live = true

	if obj.Data == KindStruct {
		for _, f := range obj.Fields {
			if f.IsRef {
				markObject(h, f.Ref)
			}
		}
	}
}

// sweep converts every non-Free, non-Live slot to Free, threading it
// onto the free list via an atomic swap of a shared head variable so
// concurrent workers never race on the same pointer write. Slots that stay Live have their flag cleared for next cycle.
func sweep(h *Heap) {
	head := int64(h.FreeHead())

	objects := h.Raw()
	n := len(objects)

	var g errgroup.Group
	workers := 1
	if n > 0 {
		workers = n
	}
	const maxWorkers = 8
	if workers > maxWorkers {
		workers = maxWorkers
	}

	chunk := (n + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}

	for start := 0; start < n; start += chunk {
		start := start
		end := start + chunk
		if end > n {
			end = n
		}

		g.Go(func() error {
			for i := start; i < end; i++ {
				obj := &objects[i]
				if obj.Data == KindFree {
					continue
				}
				if obj.Live {
					obj.Live = false
					continue
				}

				prev := atomic.SwapInt64(&head, int64(i))
				*obj = Object{Data: KindFree, Next: Ref(prev)}
			}
			return nil
		})
	}
	_ = g.Wait() // sweep never fails; errgroup only buys the fan-out

	h.SetFreeHead(Ref(head))
}
