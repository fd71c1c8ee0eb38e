// Package vm implements the bytecode interpreter described in
// SPEC_FULL.md §4.8 / spec.md §4.6-§4.7: a single dispatch loop over
// opcodes, a register-window call stack, an object heap with a
// tracing collector, and a bridge to natively loaded extension
// libraries. Grounded on azurite_runtime/src/vm.rs's Stack/Code shape
// and on the teacher's backend_vm.go dispatch-loop texture.
package vm

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rookieCookies/azurite-sub000/internal/emitter"
	"github.com/rookieCookies/azurite-sub000/internal/heap"
)

// StackSize is the fixed value-stack capacity (spec.md §4.6: "a
// contiguous window on a fixed-size stack of 1024 value cells").
const StackSize = 1024

// Fault is a fatal runtime error: a textual message plus the byte
// offset active when it occurred (spec.md §7). The VM's Run loop
// returns one of these for the failures it checks (stack overflow,
// out of memory, register tag mismatches, unknown opcodes). Operands
// are read without bounds checks and integer division by zero is not
// guarded, so a truncated stream or a zero divisor panics instead.
type Fault struct {
	Offset int
	Msg    string
}

func (f *Fault) Error() string { return fmt.Sprintf("%s (at offset %d)", f.Msg, f.Offset) }

func fault(offset int, format string, args ...interface{}) error {
	return errors.WithStack(&Fault{Offset: offset, Msg: fmt.Sprintf(format, args...)})
}

// Cell is one stack register. Mirrors value.Value's tag/payload split
// without importing internal/value directly, since the VM also needs
// a heap.Ref view of object cells for GC rooting; see reg()/setReg().
type Cell struct {
	Tag  CellTag
	Bits uint64
}

type CellTag uint8

const (
	TagEmpty CellTag = iota
	TagInt
	TagFloat
	TagBool
	TagObject
)

// ExternFunc is a registered native entry point: the C ABI shape
// `void name(VM*)` described in spec.md §6, adapted to Go as a closure
// receiving the VM so it can read/write registers and allocate.
type ExternFunc func(vm *VM) error

// Library is one loaded native extension (SPEC_FULL.md DOMAIN STACK):
// its name plus the optional unload hook. Its entry points are
// registered separately, through RegisterExtern.
type Library struct {
	Name     string
	Shutdown func() error
}

// VM is the whole interpreter state for one artifact execution.
type VM struct {
	stack      [StackSize]Cell
	top        int
	frames     []frame
	stackOff   int
	constants  []Cell
	constStr   []string
	heap       *heap.Heap
	externs    map[uint32]ExternFunc
	libraries  []Library

	code []byte

	Log *logrus.Logger
}

// frame is one call-stack entry: the caller's saved state, restored
// on Return (spec.md §4.6's call convention).
type frame struct {
	returnPC int
	stackOff int
	dstReg   uint8
}

// New returns a VM with a fresh StackSize-cell register file and a
// heap sized to space object slots.
func New(space int) *VM {
	return &VM{
		heap:      heap.New(space),
		externs:   map[uint32]ExternFunc{},
		Log:       logrus.New(),
	}
}

// RegisterExtern binds idx (the extern_idx an ExternFile record
// declared) to fn, for the host embedding this VM (internal/externlib
// loads a shared library and registers each exported symbol this way)
func (v *VM) RegisterExtern(idx uint32, fn ExternFunc) { v.externs[idx] = fn }

// LoadConstants installs the decoded constant pool (values plus their
// parallel string payloads, matching ir.ConstPool's layout) as GC
// roots for the lifetime of this VM.
func (v *VM) LoadConstants(values []Cell, strings []string) {
	v.constants = values
	v.constStr = strings
}

// reg returns register r of the active frame.
func (v *VM) reg(r uint8) Cell { return v.stack[v.stackOff+int(r)] }

func (v *VM) setReg(r uint8, c Cell) { v.stack[v.stackOff+int(r)] = c }

// Heap exposes the object arena to extern functions (via the ExternFunc
// closure) for string/struct allocation.
func (v *VM) Heap() *heap.Heap { return v.heap }

// Reg is the public register accessor extern functions use to read
// their arguments (spec.md §6: "reads arguments from stack.reg(1..=argc)").
func (v *VM) Reg(r uint8) Cell { return v.reg(r) }

// SetReg is the public register accessor extern functions use to
// write their return value (spec.md §6: "writes its return value to
// stack.reg(0)").
func (v *VM) SetReg(r uint8, c Cell) { v.setReg(r, c) }

func boolCell(b bool) Cell {
	if b {
		return Cell{Tag: TagBool, Bits: 1}
	}
	return Cell{Tag: TagBool, Bits: 0}
}

// Run executes code (the bytecode section of a compiled artifact)
// from offset 0 until the outermost frame returns, a fatal condition
// arises, or a native extension terminates the process. Grounded on
// vm.rs's Code{bytecode, index, stack_offset} cursor and the
// teacher's execFunc for-loop-over-opcodes shape.
func (v *VM) Run(code []byte) error {
	v.code = code
	pc := 0
	v.top = 0
	v.stackOff = 0
	v.frames = v.frames[:0]

	for {
		if pc >= len(code) {
			return fault(pc, "the bytecode ended before a return")
		}

		op := emitter.Op(code[pc])
		pc++

		var err error
		pc, err = v.step(op, code, pc)
		if err != nil {
			if err == errHalt {
				return nil
			}
			if f, ok := errors.Cause(err).(*Fault); ok {
				v.Log.WithField("offset", f.Offset).Error(f.Msg)
			}
			return err
		}
	}
}

// errHalt is the sentinel step() returns when the outermost frame's
// Return has just emptied the call stack — Run treats this as a
// normal, successful completion rather than a Fault.
var errHalt = fmt.Errorf("vm: halt")
