package mmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherDomainSeparation(t *testing.T) {
	for _, h := range []Hasher{SHA256Hasher{}, Blake2bHasher{}} {
		leaf := h.Leaf([]byte("d0"))
		node := h.Node(leaf, leaf)
		root := h.Root([][]byte{leaf})
		assert.NotEqual(t, leaf, node, "leaf and node hashes of the same bytes must differ")
		assert.NotEqual(t, leaf, root, "leaf and root hashes must differ")
		assert.NotEqual(t, node, root, "node and root hashes must differ")
		assert.Len(t, leaf, h.Size())
	}
}

func TestHasherDeterministic(t *testing.T) {
	h := SHA256Hasher{}
	a := h.Leaf([]byte("x"))
	b := h.Leaf([]byte("x"))
	require.Equal(t, a, b)
}

func TestEmptyForestRootIsSentinel(t *testing.T) {
	h := SHA256Hasher{}
	got := emptyForestRoot(h)
	want := h.Root(nil)
	assert.Equal(t, want, got)
}
