package symbol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookieCookies/azurite-sub000/internal/symbol"
)

func TestAddIsIdempotent(t *testing.T) {
	tbl := symbol.New()

	a := tbl.Add("foo")
	b := tbl.Add("foo")
	c := tbl.Add("bar")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestComboDisplaysAsJoinedPath(t *testing.T) {
	tbl := symbol.New()

	ns := tbl.Add("math")
	fn := tbl.Add("sqrt")
	combo := tbl.AddCombo(ns, fn)

	assert.Equal(t, "math::sqrt", tbl.String(combo))
}

func TestComboIsIdempotent(t *testing.T) {
	tbl := symbol.New()

	ns := tbl.Add("math")
	fn := tbl.Add("sqrt")

	first := tbl.AddCombo(ns, fn)
	second := tbl.AddCombo(ns, fn)

	assert.Equal(t, first, second)
}

func TestFindRootPeelsOneComponent(t *testing.T) {
	tbl := symbol.New()

	ns := tbl.Add("math")
	fn := tbl.Add("sqrt")
	combo := tbl.AddCombo(ns, fn)

	root, tail := tbl.FindRoot(combo)
	require.NotNil(t, tail)
	assert.Equal(t, ns, root)
	assert.Equal(t, fn, *tail)

	leafRoot, leafTail := tbl.FindRoot(ns)
	assert.Nil(t, leafTail)
	assert.Equal(t, ns, leafRoot)
}

func TestNestedCombo(t *testing.T) {
	tbl := symbol.New()

	a := tbl.Add("a")
	b := tbl.Add("b")
	c := tbl.Add("c")

	ab := tbl.AddCombo(a, b)
	abc := tbl.AddCombo(ab, c)

	assert.Equal(t, "a::b::c", tbl.String(abc))
}
