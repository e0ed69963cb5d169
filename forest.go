package mmt

import (
	"sort"

	"github.com/pkg/errors"
)

// Forest is an ordered sequence of perfect trees with strictly decreasing
// heights, the binary-counter decomposition of the multiset's cardinality.
// T_0 (the tallest) is first; a single-element stub at height 0 comes last
// when the cardinality is odd. Perfect trees are immutable, so a
// Forest's subtree slice is safe to share across snapshots by reference;
// Clone gives a cheap copy-on-write handle for a new insert.
type Forest struct {
	hasher Hasher

	// subtrees is ordered largest-first; heights strictly decrease.
	subtrees    []*PerfectTree
	cardinality uint64
	cachedRoot  []byte
	deferred    bool // InsertDeferred mode: carries are not auto-collapsed.
}

// Empty returns a forest with no elements. Its root is the fixed sentinel
// H("ROOT:"). A nil hasher selects DefaultHasher.
func Empty(hasher Hasher) *Forest {
	if hasher == nil {
		hasher = DefaultHasher
	}
	return &Forest{
		hasher:     hasher,
		cachedRoot: emptyForestRoot(hasher),
	}
}

// Len returns the forest's cardinality.
func (f *Forest) Len() int { return int(f.cardinality) }

// Heights returns the current subtree heights, largest first. In canonical
// form this is exactly the set-bit decomposition of Len().
func (f *Forest) Heights() []int {
	hs := make([]int, len(f.subtrees))
	for i, t := range f.subtrees {
		hs[i] = t.Height()
	}
	return hs
}

// Root returns the cached forest root, H("ROOT:" || concat of subtree
// roots), largest subtree first.
func (f *Forest) Root() []byte { return f.cachedRoot }

func (f *Forest) subtreeRoots() [][]byte {
	roots := make([][]byte, len(f.subtrees))
	for i, t := range f.subtrees {
		roots[i] = t.Root()
	}
	return roots
}

func (f *Forest) recomputeRoot() {
	f.cachedRoot = f.hasher.Root(f.subtreeRoots())
}

// Clone returns a copy-on-write snapshot: a new Forest value sharing the
// current (immutable) subtrees by reference. Mutating the clone never
// affects the receiver.
func (f *Forest) Clone() *Forest {
	subtrees := make([]*PerfectTree, len(f.subtrees))
	copy(subtrees, f.subtrees)
	root := make([]byte, len(f.cachedRoot))
	copy(root, f.cachedRoot)
	return &Forest{
		hasher:      f.hasher,
		subtrees:    subtrees,
		cardinality: f.cardinality,
		cachedRoot:  root,
		deferred:    f.deferred,
	}
}

// Insert wraps e in a height-0 stub, appends it, and carries equal-height
// pairs together until no two adjacent subtrees share a height, the binary
// counter's carry propagation. The forest root is recomputed before
// returning.
func (f *Forest) Insert(e Element) error {
	stub, err := BuildPerfectTree(f.hasher, []Element{e})
	if err != nil {
		return err
	}
	f.subtrees = append(f.subtrees, stub)
	f.cardinality++
	if !f.deferred {
		if err := f.carry(); err != nil {
			return err
		}
	}
	f.recomputeRoot()
	return nil
}

// InsertDeferred appends a stub without collapsing equal-height pairs. The
// forest is left in a non-canonical, valid-but-larger state; call Compact to
// restore canonical form. Proofs against a non-canonical forest still work
// (the prover enumerates whatever subtrees are present) but are a little
// larger.
func (f *Forest) InsertDeferred(e Element) error {
	stub, err := BuildPerfectTree(f.hasher, []Element{e})
	if err != nil {
		return err
	}
	f.subtrees = append(f.subtrees, stub)
	f.cardinality++
	f.recomputeRoot()
	return nil
}

// Compact collapses any adjacent equal-height subtrees left behind by
// InsertDeferred, restoring canonical form.
func (f *Forest) Compact() error {
	pending := f.subtrees
	f.subtrees = nil
	for _, t := range pending {
		f.subtrees = append(f.subtrees, t)
		if err := f.carry(); err != nil {
			return err
		}
	}
	f.recomputeRoot()
	return nil
}

// carry repeatedly merges the last two subtrees while they share a height,
// mirroring binary-counter carry propagation. It uses Merge, which takes
// the O(1) concatenation fast path when the two subtrees are already in
// element order and falls back to a reconciling sorted merge otherwise, so
// Insert keeps each subtree internally sorted regardless of insertion
// order.
func (f *Forest) carry() error {
	for len(f.subtrees) >= 2 {
		n := len(f.subtrees)
		second, last := f.subtrees[n-2], f.subtrees[n-1]
		if second.Height() != last.Height() {
			break
		}
		merged, err := Merge(f.hasher, second, last)
		if err != nil {
			return err
		}
		f.subtrees = f.subtrees[:n-2]
		f.subtrees = append(f.subtrees, merged)
	}
	return nil
}

// Contains reports whether e is present in any subtree.
func (f *Forest) Contains(e Element) bool {
	for _, t := range f.subtrees {
		if t.FindElement(e).Kind == LocateFound {
			return true
		}
	}
	return false
}

// FindLocation returns, for every subtree in order, the result of
// searching it for e: the raw material ProveInclusion and ProveExclusion
// assemble into proofs.
func (f *Forest) FindLocation(e Element) []LocateResult {
	results := make([]LocateResult, len(f.subtrees))
	for i, t := range f.subtrees {
		results[i] = t.FindElement(e)
	}
	return results
}

// MergeWith returns a new forest representing the multiset union of the
// receiver and other, using a structural union strategy: subtrees of equal
// height from both forests are combined with SortedMerge, propagating
// carries exactly like adding two binary numerals. Every subtree of the
// result is sorted, but which elements share a subtree depends on the order
// of the merges: forests built by merging the same singletons in different
// orders reach the same root when the total is a power of two (one subtree),
// and in general not otherwise. Both inputs are compacted (on clones) first,
// so a forest left non-canonical by InsertDeferred loses no subtrees.
func (f *Forest) MergeWith(other *Forest) (*Forest, error) {
	if f.hasher.Size() != other.hasher.Size() {
		return nil, errors.Wrap(ErrInvariantViolation, "MergeWith: hashers are incompatible")
	}
	byHeight := func(trees []*PerfectTree) map[int]*PerfectTree {
		m := make(map[int]*PerfectTree, len(trees))
		for _, t := range trees {
			m[t.Height()] = t
		}
		return m
	}
	fc, oc := f.Clone(), other.Clone()
	if err := fc.Compact(); err != nil {
		return nil, err
	}
	if err := oc.Compact(); err != nil {
		return nil, err
	}
	a, b := byHeight(fc.subtrees), byHeight(oc.subtrees)

	result := make(map[int]*PerfectTree)
	var carry *PerfectTree
	for h := 0; ; h++ {
		at, aok := a[h]
		bt, bok := b[h]
		if !aok && !bok && carry == nil {
			break
		}
		present := make([]*PerfectTree, 0, 3)
		if aok {
			present = append(present, at)
		}
		if bok {
			present = append(present, bt)
		}
		if carry != nil {
			present = append(present, carry)
			carry = nil
		}
		switch len(present) {
		case 1:
			result[h] = present[0]
		case 2:
			merged, err := SortedMerge(f.hasher, present[0], present[1])
			if err != nil {
				return nil, err
			}
			carry = merged
		case 3:
			merged, err := SortedMerge(f.hasher, present[0], present[1])
			if err != nil {
				return nil, err
			}
			carry = merged
			result[h] = present[2]
		}
	}

	heights := make([]int, 0, len(result))
	for h := range result {
		heights = append(heights, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))
	subtrees := make([]*PerfectTree, len(heights))
	for i, h := range heights {
		subtrees[i] = result[h]
	}

	merged := &Forest{
		hasher:      f.hasher,
		subtrees:    subtrees,
		cardinality: f.cardinality + other.cardinality,
	}
	merged.recomputeRoot()
	return merged, nil
}

// MergeWithReinsert is an alternative union strategy: it clones the
// receiver and reinserts every leaf of other in subtree order, O(n log n)
// but simple. Unlike MergeWith, its result depends on the receiver's
// existing shape, so it is not used by default.
func (f *Forest) MergeWithReinsert(other *Forest) (*Forest, error) {
	out := f.Clone()
	for _, t := range other.subtrees {
		for i := 0; i < t.Len(); i++ {
			if err := out.Insert(t.Element(i)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
