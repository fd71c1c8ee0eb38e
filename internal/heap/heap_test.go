package heap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookieCookies/azurite-sub000/internal/heap"
)

func TestPutReturnsSequentialRefsAndAdvancesFreeHead(t *testing.T) {
	h := heap.New(4)

	r0, err := h.Put(heap.NewString("a"))
	require.NoError(t, err)
	assert.Equal(t, heap.Ref(0), r0)

	r1, err := h.Put(heap.NewString("b"))
	require.NoError(t, err)
	assert.Equal(t, heap.Ref(1), r1)

	assert.Equal(t, "a", h.Get(r0).StringValue())
	assert.Equal(t, "b", h.Get(r1).StringValue())
}

func TestPutFailsWhenArenaExhausted(t *testing.T) {
	h := heap.New(2)

	_, err := h.Put(heap.NewString("a"))
	require.NoError(t, err)
	_, err = h.Put(heap.NewString("b"))
	require.NoError(t, err)

	_, err = h.Put(heap.NewString("c"))
	assert.ErrorIs(t, err, heap.ErrFull)
}

func TestFreeListIsWellFormedAfterPuts(t *testing.T) {
	h := heap.New(3)
	seen := map[heap.Ref]bool{}

	for i := 0; i < 3; i++ {
		r, err := h.Put(heap.NewString("x"))
		require.NoError(t, err)
		assert.False(t, seen[r], "ref %d reused before being freed", r)
		seen[r] = true
	}
	_, err := h.Put(heap.NewString("overflow"))
	assert.ErrorIs(t, err, heap.ErrFull)
}

func TestGCReclaimsUnreachableStrings(t *testing.T) {
	h := heap.New(4)

	kept, err := h.Put(heap.NewString("kept"))
	require.NoError(t, err)
	_, err = h.Put(heap.NewString("garbage"))
	require.NoError(t, err)

	heap.Collect(h, []heap.Root{{IsRef: true, Ref: kept}})

	assert.Equal(t, "kept", h.Get(kept).StringValue())

	// the arena had 4 slots, 2 were allocated, one survived the
	// collection: 3 slots should now be free (2 originally unused + 1
	// reclaimed).
	r, err := h.Put(heap.NewString("new1"))
	require.NoError(t, err)
	_, err = h.Put(heap.NewString("new2"))
	require.NoError(t, err)
	_, err = h.Put(heap.NewString("new3"))
	require.NoError(t, err)
	assert.NotEqual(t, kept, r)
}

func TestGCMarksStructFieldsTransitively(t *testing.T) {
	h := heap.New(4)

	inner, err := h.Put(heap.NewString("inner"))
	require.NoError(t, err)

	outer, err := h.Put(heap.NewStruct([]heap.ObjectValue{{IsRef: true, Ref: inner}}))
	require.NoError(t, err)

	heap.Collect(h, []heap.Root{{IsRef: true, Ref: outer}})

	assert.Equal(t, "inner", h.Get(inner).StringValue())
	assert.Equal(t, outer, h.Get(outer).StructFields()[0].Ref)
}

func TestGCReclaimsCapacityWorthOfStrings(t *testing.T) {
	const n = 16
	h := heap.New(n)

	for i := 0; i < n; i++ {
		_, err := h.Put(heap.NewString("garbage"))
		require.NoError(t, err)
	}
	_, err := h.Put(heap.NewString("overflow"))
	require.ErrorIs(t, err, heap.ErrFull)

	heap.Collect(h, nil)

	for i := 0; i < n; i++ {
		_, err := h.Put(heap.NewString("reused"))
		require.NoError(t, err)
	}
}
