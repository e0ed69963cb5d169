package mmt

import (
	"fmt"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertN(t *testing.T, f *Forest, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.Insert(BytesElement(fmt.Sprintf("e%04d", i))))
	}
}

// TestShapeDeterminism checks that the forest's subtree height multiset
// always equals the set bits of its cardinality, for every n up to 20,
// e.g. 1->[0], 2->[1], 3->[1,0], ..., 12->[3,2].
func TestShapeDeterminism(t *testing.T) {
	f := Empty(SHA256Hasher{})
	for n := 1; n <= 20; n++ {
		require.NoError(t, f.Insert(BytesElement(fmt.Sprintf("e%04d", n))))
		assert.Equal(t, n, f.Len())

		var want []int
		for bit := bits.Len(uint(n)) - 1; bit >= 0; bit-- {
			if n&(1<<uint(bit)) != 0 {
				want = append(want, bit)
			}
		}
		assert.Equal(t, want, f.Heights(), "n=%d", n)
	}
}

func TestInsertedElementsAreContained(t *testing.T) {
	f := Empty(SHA256Hasher{})
	insertN(t, f, 20)
	for i := 0; i < 20; i++ {
		assert.True(t, f.Contains(BytesElement(fmt.Sprintf("e%04d", i))))
	}
	assert.False(t, f.Contains(BytesElement("not-there")))
}

func TestEmptyForestRoot(t *testing.T) {
	f := Empty(SHA256Hasher{})
	assert.Equal(t, emptyForestRoot(SHA256Hasher{}), f.Root())
}

func TestCloneIsIndependent(t *testing.T) {
	f := Empty(SHA256Hasher{})
	insertN(t, f, 3)
	clone := f.Clone()
	require.NoError(t, clone.Insert(BytesElement("extra")))

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 4, clone.Len())
	assert.False(t, f.Contains(BytesElement("extra")))
	assert.True(t, clone.Contains(BytesElement("extra")))
}

func TestDeferredInsertThenCompact(t *testing.T) {
	f := Empty(SHA256Hasher{})
	require.NoError(t, f.InsertDeferred(BytesElement("a")))
	require.NoError(t, f.InsertDeferred(BytesElement("b")))
	// Two height-0 stubs left uncollapsed: non-canonical but valid.
	assert.Equal(t, []int{0, 0}, f.Heights())

	require.NoError(t, f.Compact())
	assert.Equal(t, []int{1}, f.Heights())
}

// TestMergeWithCardinality checks that merging two forests sums their
// cardinalities and the result is canonical.
func TestMergeWithCardinality(t *testing.T) {
	a := Empty(SHA256Hasher{})
	insertN(t, a, 3)
	b := Empty(SHA256Hasher{})
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Insert(BytesElement(fmt.Sprintf("f%04d", i))))
	}

	merged, err := a.MergeWith(b)
	require.NoError(t, err)
	assert.Equal(t, 6, merged.Len())
	for i := 0; i < 3; i++ {
		assert.True(t, merged.Contains(BytesElement(fmt.Sprintf("e%04d", i))))
		assert.True(t, merged.Contains(BytesElement(fmt.Sprintf("f%04d", i))))
	}

	var want []int
	for bit := bits.Len(uint(6)) - 1; bit >= 0; bit-- {
		if 6&(1<<uint(bit)) != 0 {
			want = append(want, bit)
		}
	}
	assert.Equal(t, want, merged.Heights())
}

// TestIdempotentMergeOfEmpties checks that merging two empty forests is a
// no-op on the root.
func TestIdempotentMergeOfEmpties(t *testing.T) {
	a := Empty(SHA256Hasher{})
	b := Empty(SHA256Hasher{})
	merged, err := a.MergeWith(b)
	require.NoError(t, err)
	assert.Equal(t, a.Root(), merged.Root())
}

// TestMergeWithSingletonsIsOrderIndependent checks that two forests built by
// MergeWith-ing the singletons of the same four elements in opposite orders
// reach the same root: four elements collapse into one sorted height-2 tree
// whichever order the merges ran in.
func TestMergeWithSingletonsIsOrderIndependent(t *testing.T) {
	build := func(order []string) *Forest {
		f := Empty(SHA256Hasher{})
		for _, v := range order {
			singleton := Empty(SHA256Hasher{})
			require.NoError(t, singleton.Insert(BytesElement(v)))
			var err error
			f, err = f.MergeWith(singleton)
			require.NoError(t, err)
		}
		return f
	}

	forestA := build([]string{"x1", "x2", "x3", "x4"})
	forestB := build([]string{"x4", "x3", "x2", "x1"})
	assert.Equal(t, forestA.Root(), forestB.Root())
}

// TestPlainInsertOrderIsNotRootDeterministic uses three elements: they end as
// a height-1 tree plus a stub, and which element is the stub depends on
// insertion order.
func TestPlainInsertOrderIsNotRootDeterministic(t *testing.T) {
	order1 := Empty(SHA256Hasher{})
	for _, v := range []string{"x1", "x2", "x3"} {
		require.NoError(t, order1.Insert(BytesElement(v)))
	}
	order2 := Empty(SHA256Hasher{})
	for _, v := range []string{"x3", "x2", "x1"} {
		require.NoError(t, order2.Insert(BytesElement(v)))
	}
	assert.NotEqual(t, order1.Root(), order2.Root())
}

func TestMergeWithReinsert(t *testing.T) {
	a := Empty(SHA256Hasher{})
	insertN(t, a, 3)
	b := Empty(SHA256Hasher{})
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Insert(BytesElement(fmt.Sprintf("g%04d", i))))
	}

	merged, err := a.MergeWithReinsert(b)
	require.NoError(t, err)
	assert.Equal(t, 5, merged.Len())
	assert.True(t, merged.Contains(BytesElement("g0000")))
	assert.True(t, merged.Contains(BytesElement("e0000")))
}
