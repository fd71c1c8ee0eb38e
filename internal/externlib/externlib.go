// Package externlib loads the native extension libraries an
// ExternFile bytecode record names, via github.com/ebitengine/purego
// (no cgo), and bridges their exported `void name(VM*)` entry points
// into internal/vm.ExternFunc closures (SPEC_FULL.md DOMAIN STACK /
// spec.md §6).
package externlib

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"

	"github.com/rookieCookies/azurite-sub000/internal/vm"
)

// handleTable maps the opaque uintptr handles native code receives
// back to the *vm.VM they address. Native code only ever holds the
// handle, never a real Go pointer, so the VM's GC can move/resize the
// heap between calls without endangering anything C-side retains.
var (
	handleTable   = map[uintptr]*vm.VM{}
	handleCounter uintptr
	handleMu      sync.Mutex
)

func registerHandle(v *vm.VM) uintptr {
	handleMu.Lock()
	defer handleMu.Unlock()
	handleCounter++
	h := handleCounter
	handleTable[h] = v
	return h
}

func unregisterHandle(h uintptr) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(handleTable, h)
}

func lookupHandle(h uintptr) *vm.VM {
	handleMu.Lock()
	defer handleMu.Unlock()
	return handleTable[h]
}

// Loaded is one opened native library: its dlopen handle, the
// optional shutdown hook, and the path it was loaded from (for
// unload-order logging).
type Loaded struct {
	path     string
	handle   uintptr
	shutdown func(vmHandle uintptr)
}

// Manager owns every library loaded for one VM's lifetime and unloads
// them in reverse load order (spec.md §5 "Resource acquisition").
type Manager struct {
	vm        *vm.VM
	vmHandle  uintptr
	libraries []*Loaded
}

// NewManager binds a Manager to vm, registering it in the handle
// table so native _init/_shutdown hooks and registered entry points
// can address it opaquely.
func NewManager(v *vm.VM) *Manager {
	return &Manager{vm: v, vmHandle: registerHandle(v)}
}

// Load opens the shared library at path, registers every (externIdx,
// symbol) entry point with vm as an ExternFunc, and invokes an
// optional `_init` hook immediately afterward.
func (m *Manager) Load(path string, entries []Entry) error {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return errors.Wrapf(err, "externlib: failed to load %s", path)
	}

	loaded := &Loaded{path: path, handle: handle}

	for _, e := range entries {
		var fn func(uintptr)
		purego.RegisterLibFunc(&fn, handle, e.Symbol)
		idx := e.Index
		m.vm.RegisterExtern(idx, func(v *vm.VM) error {
			fn(m.vmHandle)
			return nil
		})
	}

	if hasSymbol(handle, "_init") {
		var initFn func(uintptr)
		purego.RegisterLibFunc(&initFn, handle, "_init")
		initFn(m.vmHandle)
	}

	if hasSymbol(handle, "_shutdown") {
		var shutdownFn func(uintptr)
		purego.RegisterLibFunc(&shutdownFn, handle, "_shutdown")
		loaded.shutdown = shutdownFn
	}

	m.libraries = append(m.libraries, loaded)
	return nil
}

// Entry is one ExternFile record's function: the dense extern index
// the bytecode calls through and the exported C symbol name.
type Entry struct {
	Index  uint32
	Symbol string
}

// hasSymbol probes whether handle exports name. RegisterLibFunc panics
// on an unresolved symbol rather than returning an error, so existence
// is checked by registering into a throwaway wrapper and recovering.
func hasSymbol(handle uintptr, name string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	var probe func(uintptr)
	purego.RegisterLibFunc(&probe, handle, name)
	return true
}

// Shutdown calls every loaded library's `_shutdown` hook (if present)
// and closes the libraries in reverse load order, per spec.md §5.
func (m *Manager) Shutdown() error {
	defer unregisterHandle(m.vmHandle)

	for i := len(m.libraries) - 1; i >= 0; i-- {
		lib := m.libraries[i]
		if lib.shutdown != nil {
			lib.shutdown(m.vmHandle)
		}
	}

	for i := len(m.libraries) - 1; i >= 0; i-- {
		lib := m.libraries[i]
		if err := purego.Dlclose(lib.handle); err != nil {
			return errors.Wrapf(err, "externlib: failed to unload %s", lib.path)
		}
	}
	return nil
}

// VMHandle returns the opaque handle native code addresses this
// Manager's VM by.
func (m *Manager) VMHandle() uintptr { return m.vmHandle }

// LookupVM resolves a handle a native callback received back to its
// *vm.VM. Exported for native-facing Go shims that need to read VM
// state from a callback (e.g. a host-side test double).
func LookupVM(handle uintptr) *vm.VM {
	v := lookupHandle(handle)
	if v == nil {
		panic(fmt.Sprintf("externlib: unknown vm handle %d", handle))
	}
	return v
}
