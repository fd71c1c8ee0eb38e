package main

import (
	"github.com/pkg/errors"

	"github.com/rookieCookies/azurite-sub000/internal/emitter"
	"github.com/rookieCookies/azurite-sub000/internal/externlib"
	"github.com/rookieCookies/azurite-sub000/internal/heap"
	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/value"
	"github.com/rookieCookies/azurite-sub000/internal/vm"
)

// loadConstants interns every str constant onto the VM's heap and
// converts the rest into tagged vm.Cells, then installs the result.
// String constants become TagObject cells pointing at the interned
// heap.Object, the same representation struct fields use.
func loadConstants(m *vm.VM, pool *ir.ConstPool) error {
	cells := make([]vm.Cell, len(pool.Values))

	for i, k := range pool.Kinds {
		switch k {
		case value.Str:
			ref, err := m.Heap().Put(heap.NewString(pool.Strings[i]))
			if err != nil {
				return errors.Wrap(err, "azuritec: failed to intern a string constant")
			}
			cells[i] = vm.Cell{Tag: vm.TagObject, Bits: uint64(ref)}

		case value.F64:
			cells[i] = vm.Cell{Tag: vm.TagFloat, Bits: pool.Values[i].Raw()}

		case value.KindBool:
			cells[i] = vm.Cell{Tag: vm.TagBool, Bits: pool.Values[i].Raw()}

		case value.Unit:
			cells[i] = vm.Cell{Tag: vm.TagEmpty}

		default: // the integer kinds
			cells[i] = vm.Cell{Tag: vm.TagInt, Bits: pool.Values[i].Raw()}
		}
	}

	m.LoadConstants(cells, pool.Strings)
	return nil
}

// loadLibraries opens every native extension library an artifact's
// bytecode names and registers its entry points through mgr.
func loadLibraries(mgr *externlib.Manager, libs []emitter.LibraryManifest) error {
	for _, lib := range libs {
		entries := make([]externlib.Entry, len(lib.Entries))
		for i, e := range lib.Entries {
			entries[i] = externlib.Entry{Index: e.Index, Symbol: e.Symbol}
		}
		if err := mgr.Load(lib.Path, entries); err != nil {
			return err
		}
	}
	return nil
}
