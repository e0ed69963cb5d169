package mmt

import (
	"crypto/sha256"

	"golang.org/x/crypto/blake2b"
)

// Domain separation prefixes. Each must differ in its first byte and is
// applied before any element or child-hash bytes, defeating second-preimage
// confusion between leaves, internal nodes, and the forest root.
var (
	leafPrefix = []byte("LEAF:")
	nodePrefix = []byte("NODE:")
	rootPrefix = []byte("ROOT:")
)

// Hasher is a pure, stateless hash family used throughout the engine: one
// operation for leaves, one for internal nodes. Both must use the same
// underlying primitive. Size reports the fixed digest width in bytes.
type Hasher interface {
	// Leaf returns H("LEAF:" || enc(e)).
	Leaf(encoded []byte) []byte
	// Node returns H("NODE:" || left || right).
	Node(left, right []byte) []byte
	// Root returns H("ROOT:" || concat of subtree roots).
	Root(subtreeRoots [][]byte) []byte
	// Size is the digest width in bytes.
	Size() int
}

// SHA256Hasher is the default Hasher.
type SHA256Hasher struct{}

// Leaf implements Hasher.
func (SHA256Hasher) Leaf(encoded []byte) []byte {
	h := sha256.New()
	h.Write(leafPrefix)
	h.Write(encoded)
	return h.Sum(nil)
}

// Node implements Hasher.
func (SHA256Hasher) Node(left, right []byte) []byte {
	h := sha256.New()
	h.Write(nodePrefix)
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Root implements Hasher.
func (SHA256Hasher) Root(subtreeRoots [][]byte) []byte {
	h := sha256.New()
	h.Write(rootPrefix)
	for _, r := range subtreeRoots {
		h.Write(r)
	}
	return h.Sum(nil)
}

// Size implements Hasher.
func (SHA256Hasher) Size() int { return sha256.Size }

// Blake2bHasher is an alternate Hasher backed by BLAKE2b-256, offered
// alongside SHA256Hasher the way wealdtech/go-merkletree lets callers pick
// the tree's hash primitive instead of hard-coding one.
type Blake2bHasher struct{}

// Leaf implements Hasher.
func (Blake2bHasher) Leaf(encoded []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(leafPrefix)
	h.Write(encoded)
	return h.Sum(nil)
}

// Node implements Hasher.
func (Blake2bHasher) Node(left, right []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(nodePrefix)
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Root implements Hasher.
func (Blake2bHasher) Root(subtreeRoots [][]byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(rootPrefix)
	for _, r := range subtreeRoots {
		h.Write(r)
	}
	return h.Sum(nil)
}

// Size implements Hasher.
func (Blake2bHasher) Size() int { return 32 }

// DefaultHasher is the Hasher used when Empty is given a nil Hasher.
var DefaultHasher Hasher = SHA256Hasher{}

// emptyForestRoot is the fixed sentinel used by an empty forest, H("ROOT:").
func emptyForestRoot(h Hasher) []byte {
	return h.Root(nil)
}
