package mmt

import (
	"sort"

	"github.com/pkg/errors"
)

// PerfectTree is an immutable, complete binary Merkle tree over exactly 2^k
// sorted element hashes, specialized to the power-of-two leaf count the
// forest requires, and backed by a dense, level-indexed array rather than
// recursion over slices.
type PerfectTree struct {
	hasher Hasher
	height int // k; a height-0 tree is a single leaf.

	// elements holds the leaf values in sorted order, kept alongside the
	// hashes because leaves are ordered by element, not by hash.
	elements []Element

	// levels[0] is the leaf hash row (length 2^height); levels[height] is
	// the one-element root row.
	levels [][][]byte
}

// BuildPerfectTree consumes a sorted (weakly, ties permitted) sequence
// of elements and returns the complete tree over their leaf hashes.
// Precondition: len(sorted) is a power of two (including 1 == 2^0).
func BuildPerfectTree(hasher Hasher, sorted []Element) (*PerfectTree, error) {
	n := len(sorted)
	if n == 0 || n&(n-1) != 0 {
		return nil, errors.Wrapf(ErrInvariantViolation, "BuildPerfectTree: %d is not a positive power of two", n)
	}
	height := 0
	for 1<<uint(height) < n {
		height++
	}

	leaves := make([][]byte, n)
	for i, e := range sorted {
		leaves[i] = hasher.Leaf(e.Encode())
	}

	levels := make([][][]byte, height+1)
	levels[0] = leaves
	for lvl := 1; lvl <= height; lvl++ {
		prev := levels[lvl-1]
		cur := make([][]byte, len(prev)/2)
		for i := range cur {
			cur[i] = hasher.Node(prev[2*i], prev[2*i+1])
		}
		levels[lvl] = cur
	}

	elems := make([]Element, n)
	copy(elems, sorted)

	return &PerfectTree{
		hasher:   hasher,
		height:   height,
		elements: elems,
		levels:   levels,
	}, nil
}

// Height returns k, the number of levels above the leaves.
func (t *PerfectTree) Height() int { return t.height }

// Len returns the number of leaves, 2^k.
func (t *PerfectTree) Len() int { return len(t.levels[0]) }

// Root returns the tree's root hash. For a height-0 tree this is the single
// leaf hash.
func (t *PerfectTree) Root() []byte {
	return t.levels[t.height][0]
}

// LeafHash returns the hash of the leaf at idx.
func (t *PerfectTree) LeafHash(idx int) []byte {
	return t.levels[0][idx]
}

// LeafIterator yields a PerfectTree's leaf hashes in order, left to right.
// It is restartable (Reset) and finite (Next returns ok=false after the
// last leaf).
type LeafIterator struct {
	tree *PerfectTree
	pos  int
}

// Leaves returns a restartable iterator over the tree's 2^k leaf hashes.
func (t *PerfectTree) Leaves() *LeafIterator {
	return &LeafIterator{tree: t}
}

// Next returns the next leaf hash, or ok=false when exhausted.
func (it *LeafIterator) Next() (hash []byte, ok bool) {
	if it.pos >= it.tree.Len() {
		return nil, false
	}
	h := it.tree.levels[0][it.pos]
	it.pos++
	return h, true
}

// Reset rewinds the iterator to the first leaf.
func (it *LeafIterator) Reset() { it.pos = 0 }

// Side identifies which side of the accumulated hash a sibling sits on
// while walking from a leaf to the root.
type Side int

const (
	// SideLeft means the sibling is combined as Node(sibling, current).
	SideLeft Side = iota
	// SideRight means the sibling is combined as Node(current, sibling).
	SideRight
)

// Sibling is one step of an inclusion proof's path, ordered deepest-first.
type Sibling struct {
	Hash []byte
	Side Side
}

// SiblingPath is the raw sibling path from a leaf to this tree's root. It
// does not carry the leaf hash or the root itself; a verifier is expected
// to already know the leaf hash and the expected root.
type SiblingPath struct {
	Siblings []Sibling
}

// InclusionProof returns the sibling path from leaf idx to this tree's
// root. A height-0 tree returns an empty path.
func (t *PerfectTree) InclusionProof(idx int) (SiblingPath, error) {
	if idx < 0 || idx >= t.Len() {
		return SiblingPath{}, errors.Wrapf(ErrInvariantViolation, "InclusionProof: index %d out of range [0,%d)", idx, t.Len())
	}
	siblings := make([]Sibling, 0, t.height)
	pos := idx
	for lvl := 0; lvl < t.height; lvl++ {
		row := t.levels[lvl]
		if pos%2 == 0 {
			siblings = append(siblings, Sibling{Hash: row[pos+1], Side: SideRight})
		} else {
			siblings = append(siblings, Sibling{Hash: row[pos-1], Side: SideLeft})
		}
		pos /= 2
	}
	return SiblingPath{Siblings: siblings}, nil
}

// VerifyInclusion recomputes the root from leafHash and proof and compares
// it against expectedRoot. Starting from leafHash, each sibling (deepest
// first) is combined according to its side until a single hash remains.
func VerifyInclusion(hasher Hasher, leafHash []byte, proof SiblingPath, expectedRoot []byte) bool {
	d, _ := verifyInclusionDiagnostic(hasher, leafHash, proof, expectedRoot)
	return d.Reason == ReasonNone
}

func verifyInclusionDiagnostic(hasher Hasher, leafHash []byte, proof SiblingPath, expectedRoot []byte) (Diagnostic, []byte) {
	if len(leafHash) != hasher.Size() || len(expectedRoot) != hasher.Size() {
		return fail(ReasonMalformedProof, -1, "leaf hash or expected root has wrong width"), nil
	}
	current := leafHash
	for _, s := range proof.Siblings {
		if len(s.Hash) != hasher.Size() {
			return fail(ReasonMalformedProof, -1, "sibling hash has wrong width"), nil
		}
		switch s.Side {
		case SideRight:
			current = hasher.Node(current, s.Hash)
		case SideLeft:
			current = hasher.Node(s.Hash, current)
		default:
			return fail(ReasonMalformedProof, -1, "unrecognized sibling side"), nil
		}
	}
	if !bytesEqual(current, expectedRoot) {
		return fail(ReasonHashMismatch, -1, "recomputed root does not match expected root"), current
	}
	return ok(), current
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// LocateKind distinguishes the outcomes of FindElement.
type LocateKind int

const (
	// LocateFound means the element is present at Index.
	LocateFound LocateKind = iota
	// LocateBeforeAll means the target is smaller than every leaf.
	LocateBeforeAll
	// LocateAfterAll means the target is larger than every leaf.
	LocateAfterAll
	// LocateGapBetween means the target falls strictly between the
	// leaves at Left and Right, which are adjacent (Right == Left+1).
	LocateGapBetween
)

// LocateResult is the outcome of searching a PerfectTree for an element by
// value.
type LocateResult struct {
	Kind        LocateKind
	Index       int // valid when Kind == LocateFound
	Left, Right int // valid when Kind == LocateGapBetween
}

// FindElement locates e among the tree's sorted elements by binary search
// on element order (hash order is not usable for this: leaves are sorted
// by element, not by hash).
func (t *PerfectTree) FindElement(e Element) LocateResult {
	if t.elements == nil {
		panic("mmt: FindElement called on a tree decoded without elements (DecodeTree only reconstructs hashes)")
	}
	n := len(t.elements)
	i := sort.Search(n, func(i int) bool {
		return t.elements[i].Compare(e) >= 0
	})
	if i < n && t.elements[i].Compare(e) == 0 {
		return LocateResult{Kind: LocateFound, Index: i}
	}
	switch {
	case i == 0:
		return LocateResult{Kind: LocateBeforeAll}
	case i == n:
		return LocateResult{Kind: LocateAfterAll}
	default:
		return LocateResult{Kind: LocateGapBetween, Left: i - 1, Right: i}
	}
}

// Element returns the element stored at leaf idx.
func (t *PerfectTree) Element(idx int) Element {
	if t.elements == nil {
		panic("mmt: Element called on a tree decoded without elements (DecodeTree only reconstructs hashes)")
	}
	return t.elements[idx]
}
