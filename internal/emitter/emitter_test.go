package emitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookieCookies/azurite-sub000/internal/emitter"
	"github.com/rookieCookies/azurite-sub000/internal/ir"
	"github.com/rookieCookies/azurite-sub000/internal/symbol"
	"github.com/rookieCookies/azurite-sub000/internal/value"
)

func TestEmitSimpleFunctionRoundTripsThroughDisassembler(t *testing.T) {
	symbols := symbol.New()
	pool := ir.NewConstPool()
	pool.Add(value.Int(7), value.I64)

	fn := ir.Function{
		Index:     0,
		ArgCount:  0,
		StackSize: 2,
		Entry:     0,
		Blocks: []ir.Block{
			{
				Index:        0,
				Instructions: []ir.Inst{ir.NewLoad(1, 0)},
				Terminator:   ir.Return(),
			},
		},
	}
	prog := &ir.Program{Functions: []ir.Function{fn}, Constants: pool}

	code := emitter.Emit(symbols, prog)
	require.NotEmpty(t, code)

	listing := emitter.Disassemble(code)
	assert.Contains(t, listing, "Push")
	assert.Contains(t, listing, "LoadConst")
	assert.Contains(t, listing, "Pop")
	assert.Contains(t, listing, "Return")
}

func TestEmitPatchesCallTargetToFunctionStart(t *testing.T) {
	symbols := symbol.New()
	pool := ir.NewConstPool()

	callee := ir.Function{
		Index: 1, ArgCount: 0, StackSize: 1, Entry: 0,
		Blocks: []ir.Block{{Index: 0, Terminator: ir.Return()}},
	}
	caller := ir.Function{
		Index: 0, ArgCount: 0, StackSize: 1, Entry: 0,
		Blocks: []ir.Block{{
			Index:        0,
			Instructions: []ir.Inst{ir.NewCall(false, 0, 1, nil)},
			Terminator:   ir.Return(),
		}},
	}
	prog := &ir.Program{Functions: []ir.Function{caller, callee}, Constants: pool}

	code := emitter.Emit(symbols, prog)
	listing := emitter.Disassemble(code)
	assert.NotContains(t, listing, "target=4294967295")
	// caller: Push (2 bytes) + Call (7 bytes) + Pop (2 bytes) + Return
	// (1 byte), so the callee starts at offset 12.
	assert.Contains(t, listing, "target=12 ")
}

func TestEmitExternFileRecord(t *testing.T) {
	symbols := symbol.New()
	lib := symbols.Add("std")
	sym := symbols.Add("println")
	pool := ir.NewConstPool()

	prog := &ir.Program{
		Externs: []ir.ExternFunc{{Index: 0, Library: lib, Symbol: sym}},
		Functions: []ir.Function{{
			Index: 0, StackSize: 1, Entry: 0,
			Blocks: []ir.Block{{Index: 0, Terminator: ir.Return()}},
		}},
		Constants: pool,
	}

	code := emitter.Emit(symbols, prog)
	listing := emitter.Disassemble(code)
	assert.Contains(t, listing, `ExternFile "std"`)
	assert.Contains(t, listing, `symbol="println"`)
}

func TestEncodeConstantsTagsEveryKind(t *testing.T) {
	pool := ir.NewConstPool()
	pool.Add(value.Float(1.5), value.F64)
	pool.Add(value.Bool(true), value.KindBool)
	pool.AddString("hi")
	pool.Add(value.Int(42), value.I64)

	buf := emitter.EncodeConstants(pool)
	require.NotEmpty(t, buf)
	assert.Equal(t, byte(0), buf[0])  // f64 tag
	assert.Equal(t, byte(1), buf[9])  // bool tag
	assert.Equal(t, byte(2), buf[11]) // str tag
	assert.Equal(t, byte(6), buf[22]) // i64 tag
}

func TestDisassembleReportsTruncatedStream(t *testing.T) {
	// LoadConst needs 2 operand bytes; only supply one.
	code := []byte{byte(emitter.OpLoadConst), 1}
	listing := emitter.Disassemble(code)
	assert.Contains(t, listing, "truncated")
}

func TestDecodeConstantsRoundTripsEveryKind(t *testing.T) {
	pool := ir.NewConstPool()
	pool.Add(value.Float(1.5), value.F64)
	pool.Add(value.Bool(true), value.KindBool)
	pool.AddString("hi")
	pool.Add(value.Int(42), value.I64)
	pool.Add(value.Int(-7), value.I8)
	pool.Add(value.Int(200), value.U8)

	decoded, err := emitter.DecodeConstants(emitter.EncodeConstants(pool))
	require.NoError(t, err)

	require.Equal(t, pool.Kinds, decoded.Kinds)
	require.Equal(t, pool.Strings, decoded.Strings)
	assert.Equal(t, 1.5, decoded.Values[0].AsFloat())
	assert.True(t, decoded.Values[1].AsBool())
	assert.Equal(t, int64(42), decoded.Values[3].AsInt())
	assert.Equal(t, int64(-7), decoded.Values[4].AsInt())
	assert.Equal(t, int64(200), decoded.Values[5].AsInt())
}

func TestDecodeConstantsReportsTruncatedStream(t *testing.T) {
	// A string tag promises an 8-byte length prefix; supply none.
	_, err := emitter.DecodeConstants([]byte{2})
	assert.Error(t, err)
}

func TestDecodeConstantsReportsUnknownTag(t *testing.T) {
	_, err := emitter.DecodeConstants([]byte{99})
	assert.Error(t, err)
}

func TestParseExternsSplitsManifestFromFunctionBodies(t *testing.T) {
	symbols := symbol.New()
	lib := symbols.Add("std")
	sym := symbols.Add("println")

	prog := &ir.Program{
		Externs: []ir.ExternFunc{{Index: 0, Library: lib, Symbol: sym}},
		Functions: []ir.Function{{
			Index: 0, StackSize: 1, Entry: 0,
			Blocks: []ir.Block{{Index: 0, Terminator: ir.Return()}},
		}},
		Constants: ir.NewConstPool(),
	}

	code := emitter.Emit(symbols, prog)
	libs, offset, err := emitter.ParseExterns(code)
	require.NoError(t, err)

	require.Len(t, libs, 1)
	assert.Equal(t, "std", libs[0].Path)
	require.Len(t, libs[0].Entries, 1)
	assert.Equal(t, uint32(0), libs[0].Entries[0].Index)
	assert.Equal(t, "println", libs[0].Entries[0].Symbol)

	assert.Equal(t, emitter.OpPush, emitter.Op(code[offset]))
}
