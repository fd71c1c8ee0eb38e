package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rookieCookies/azurite-sub000/internal/value"
)

func TestEmptyIsDistinctFromZeroInt(t *testing.T) {
	e := value.Empty()
	z := value.Int(0)

	assert.Equal(t, value.TagEmpty, e.Tag)
	assert.Equal(t, value.TagInt, z.Tag)
	assert.NotEqual(t, e, z)
}

func TestIntRoundTrip(t *testing.T) {
	v := value.Int(-42)
	assert.Equal(t, int64(-42), v.AsInt())
}

func TestFloatRoundTrip(t *testing.T) {
	v := value.Float(3.5)
	assert.InDelta(t, 3.5, v.AsFloat(), 0.0001)
}

func TestBoolRoundTrip(t *testing.T) {
	assert.True(t, value.Bool(true).AsBool())
	assert.False(t, value.Bool(false).AsBool())
}

func TestObjectRoundTrip(t *testing.T) {
	v := value.Object(7)
	assert.Equal(t, uint64(7), v.AsObject())
}

func TestAccessorPanicsOnTagMismatch(t *testing.T) {
	v := value.Int(1)
	assert.Panics(t, func() { v.AsFloat() })
	assert.Panics(t, func() { v.AsBool() })
	assert.Panics(t, func() { v.AsObject() })
}

func TestKindIsObject(t *testing.T) {
	assert.True(t, value.Str.IsObject())
	assert.True(t, value.Struct.IsObject())
	assert.False(t, value.I64.IsObject())
	assert.False(t, value.KindBool.IsObject())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "i64", value.I64.String())
	assert.Equal(t, "struct", value.Struct.String())
}
