package vm

import (
	"encoding/binary"

	"github.com/rookieCookies/azurite-sub000/internal/heap"
)

// stepCall implements spec.md §4.6's call convention: push (argc+1)
// cells, copy the caller's named arg registers into the new window,
// set stack_offset = top − argc − 1, push the caller's pc and
// dst_register, and jump to target.
func (v *VM) stepCall(code []byte, pc int) (int, error) {
	target := binary.LittleEndian.Uint32(code[pc : pc+4])
	dst := code[pc+4]
	argc := int(code[pc+5])
	pc += 6
	args := code[pc : pc+argc]
	pc += argc

	if v.top+argc+1 > StackSize {
		return pc, fault(pc, "stack overflow")
	}

	newOff := v.top
	for i, a := range args {
		v.stack[newOff+1+i] = v.stack[v.stackOff+int(a)]
	}
	v.top = newOff + argc + 1

	v.frames = append(v.frames, frame{returnPC: pc, stackOff: v.stackOff, dstReg: dst})
	v.stackOff = newOff

	return int(target), nil
}

// stepExtCall performs the same windowing as stepCall but invokes a
// registered native function pointer instead of jumping into bytecode
// (spec.md §4.6 "ExtCall").
func (v *VM) stepExtCall(code []byte, pc int) (int, error) {
	idx := binary.LittleEndian.Uint32(code[pc : pc+4])
	dst := code[pc+4]
	argc := int(code[pc+5])
	pc += 6
	args := code[pc : pc+argc]
	pc += argc

	fn, ok := v.externs[idx]
	if !ok {
		return pc, fault(pc, "extern index %d has no registered native function", idx)
	}

	if v.top+argc+1 > StackSize {
		return pc, fault(pc, "stack overflow")
	}

	newOff := v.top
	for i, a := range args {
		v.stack[newOff+1+i] = v.stack[v.stackOff+int(a)]
	}

	savedOff := v.stackOff
	v.stackOff = newOff
	v.top = newOff + argc + 1

	err := fn(v)

	ret := v.stack[newOff]
	v.top = newOff
	v.stackOff = savedOff
	if err != nil {
		return pc, err
	}
	v.setReg(dst, ret)
	return pc, nil
}

// stepReturn implements the Return half of the call convention: take
// register 0 of the callee as the return value, restore the caller's
// window, pop (argc+1) cells, and write the return value into the
// caller's recorded dst register. Returning from the outermost frame
// (no caller on the frame stack) ends the program.
func (v *VM) stepReturn(pc int) (int, error) {
	ret := v.reg(0)

	if len(v.frames) == 0 {
		return pc, errHalt
	}

	top := v.frames[len(v.frames)-1]
	v.frames = v.frames[:len(v.frames)-1]

	v.top = v.stackOff // pop the (argc+1) cells the call pushed
	v.stackOff = top.stackOff
	v.setReg(top.dstReg, ret)

	return top.returnPC, nil
}

// stepStruct allocates a struct object from the inclusive field
// register range r1..=r2 (SPEC_FULL.md §9's resolved encoding),
// retrying once after a GC cycle if the arena is full (spec.md §4.7
// "Trigger").
func (v *VM) stepStruct(code []byte, pc int) (int, error) {
	dst, r1, r2 := code[pc], code[pc+1], code[pc+2]
	pc += 3

	fields := v.gatherFields(r1, r2)

	ref, err := v.heap.Put(heap.NewStruct(fields))
	if err == heap.ErrFull {
		v.collectGarbage()
		ref, err = v.heap.Put(heap.NewStruct(fields))
	}
	if err != nil {
		return pc, fault(pc, "out of memory")
	}

	v.setReg(dst, Cell{Tag: TagObject, Bits: uint64(ref)})
	return pc, nil
}

func (v *VM) gatherFields(r1, r2 uint8) []heap.ObjectValue {
	if r2 < r1 {
		return nil
	}
	fields := make([]heap.ObjectValue, 0, int(r2)-int(r1)+1)
	for r := r1; ; r++ {
		c := v.reg(r)
		fields = append(fields, cellToObjectValue(c))
		if r == r2 {
			break
		}
	}
	return fields
}

func cellToObjectValue(c Cell) heap.ObjectValue {
	if c.Tag == TagObject {
		return heap.ObjectValue{IsRef: true, Ref: heap.Ref(c.Bits)}
	}
	return heap.ObjectValue{Tag: uint8(c.Tag), Raw: c.Bits}
}

func objectValueToCell(ov heap.ObjectValue) Cell {
	if ov.IsRef {
		return Cell{Tag: TagObject, Bits: uint64(ov.Ref)}
	}
	return Cell{Tag: CellTag(ov.Tag), Bits: ov.Raw}
}

func (v *VM) stepAccStruct(pc int, dst, obj, idx uint8) (int, error) {
	c := v.reg(obj)
	if c.Tag != TagObject {
		return pc + 3, fault(pc, "AccStruct on a non-object register")
	}

	o := v.heap.Get(heap.Ref(c.Bits))
	fields := o.StructFields()
	if int(idx) >= len(fields) {
		return pc + 3, fault(pc, "struct field index %d out of range", idx)
	}

	v.setReg(dst, objectValueToCell(fields[idx]))
	return pc + 3, nil
}

func (v *VM) stepSetField(pc int, obj, data, idx uint8) (int, error) {
	c := v.reg(obj)
	if c.Tag != TagObject {
		return pc + 3, fault(pc, "SetField on a non-object register")
	}

	o := v.heap.Get(heap.Ref(c.Bits))
	fields := o.StructFields()
	if int(idx) >= len(fields) {
		return pc + 3, fault(pc, "struct field index %d out of range", idx)
	}

	fields[idx] = cellToObjectValue(v.reg(data))
	return pc + 3, nil
}

// collectGarbage runs one mark/sweep cycle, rooting from every in-use
// stack cell and the constant pool (spec.md §4.7 "Roots").
func (v *VM) collectGarbage() {
	roots := make([]heap.Root, 0, v.top+len(v.constants))
	for i := 0; i < v.top; i++ {
		if v.stack[i].Tag == TagObject {
			roots = append(roots, heap.Root{IsRef: true, Ref: heap.Ref(v.stack[i].Bits)})
		}
	}
	for _, c := range v.constants {
		if c.Tag == TagObject {
			roots = append(roots, heap.Root{IsRef: true, Ref: heap.Ref(c.Bits)})
		}
	}
	heap.Collect(v.heap, roots)
}
