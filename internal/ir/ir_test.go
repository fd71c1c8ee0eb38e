package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/value"
)

func TestGotoTargets(t *testing.T) {
	term := ir.Goto(3)
	assert.Equal(t, []ir.BlockIndex{3}, term.Targets())
}

func TestSwitchBoolTargets(t *testing.T) {
	term := ir.SwitchBool(1, 2, 3)
	assert.Equal(t, []ir.BlockIndex{2, 3}, term.Targets())
}

func TestReturnHasNoTargets(t *testing.T) {
	term := ir.Return()
	assert.Empty(t, term.Targets())
}

func TestBlockTerminal(t *testing.T) {
	b := ir.Block{Terminator: ir.Return()}
	assert.True(t, b.Terminal())

	b2 := ir.Block{Terminator: ir.Goto(0)}
	assert.False(t, b2.Terminal())
}

func TestNewCastPicksOpcodeByKind(t *testing.T) {
	inst := ir.NewCast(value.I32, 1, 0)
	assert.Equal(t, ir.OpCastToI32, inst.Op)
	assert.Equal(t, ir.Var(1), inst.Dst)
	assert.Equal(t, ir.Var(0), inst.Src)
}

func TestNewCastPanicsOnNonCastableKind(t *testing.T) {
	assert.Panics(t, func() { ir.NewCast(value.Struct, 0, 0) })
}

func TestConstPoolAddIsAppendOnly(t *testing.T) {
	pool := ir.NewConstPool()
	a := pool.Add(value.Int(2), value.I64)
	b := pool.Add(value.Int(3), value.I64)

	assert.Equal(t, uint32(0), a)
	assert.Equal(t, uint32(1), b)
	assert.Len(t, pool.Values, 2)
}

func TestNewCallPicksExternOpcode(t *testing.T) {
	call := ir.NewCall(false, 0, 5, []ir.Var{1, 2})
	assert.Equal(t, ir.OpCall, call.Op)

	ext := ir.NewCall(true, 0, 5, []ir.Var{1})
	assert.Equal(t, ir.OpExtCall, ext.Op)
}
