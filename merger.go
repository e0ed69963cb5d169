package mmt

import "github.com/pkg/errors"

// ConcatMerge combines two perfect trees of equal height into one of
// height+1 in O(1) root work, by concatenating their leaf rows level by
// level and combining the two roots. Its precondition, that every leaf of
// a precedes every leaf of b in element order, is the caller's
// responsibility; ConcatMerge does not re-check it (that check, and the
// fallback to SortedMerge when it fails, lives in Merge).
func ConcatMerge(hasher Hasher, a, b *PerfectTree) (*PerfectTree, error) {
	if a.height != b.height {
		return nil, errors.Wrapf(ErrInvariantViolation, "ConcatMerge: height mismatch %d != %d", a.height, b.height)
	}
	levels := make([][][]byte, a.height+2)
	for lvl := 0; lvl <= a.height; lvl++ {
		row := make([][]byte, 0, len(a.levels[lvl])+len(b.levels[lvl]))
		row = append(row, a.levels[lvl]...)
		row = append(row, b.levels[lvl]...)
		levels[lvl] = row
	}
	levels[a.height+1] = [][]byte{hasher.Node(a.Root(), b.Root())}

	elements := make([]Element, 0, len(a.elements)+len(b.elements))
	elements = append(elements, a.elements...)
	elements = append(elements, b.elements...)

	return &PerfectTree{
		hasher:   hasher,
		height:   a.height + 1,
		elements: elements,
		levels:   levels,
	}, nil
}

// SortedMerge combines two perfect trees of equal height by two-way merging
// their leaves in element order, used when the concatenation precondition
// does not hold, e.g. Forest.Insert combining two insertion-epoch subtrees,
// or Forest.MergeWith reconciling two independently built forests. The
// merged stream is folded through a StreamBuilder rather than sorted in
// bulk, a sequential-I/O-friendly construction path.
func SortedMerge(hasher Hasher, a, b *PerfectTree) (*PerfectTree, error) {
	if a.height != b.height {
		return nil, errors.Wrapf(ErrInvariantViolation, "SortedMerge: height mismatch %d != %d", a.height, b.height)
	}
	sb := NewStreamBuilder(hasher)
	i, j := 0, 0
	for i < len(a.elements) || j < len(b.elements) {
		switch {
		case j >= len(b.elements) || (i < len(a.elements) && a.elements[i].Compare(b.elements[j]) <= 0):
			if err := sb.Push(a.elements[i]); err != nil {
				return nil, err
			}
			i++
		default:
			if err := sb.Push(b.elements[j]); err != nil {
				return nil, err
			}
			j++
		}
	}
	return sb.Finish()
}

// Merge is the general-purpose equal-height merge used by Forest.Insert: it
// takes the O(1) concatenation fast path when a's leaves all precede b's,
// and falls back to the reconciling sorted merge otherwise.
func Merge(hasher Hasher, a, b *PerfectTree) (*PerfectTree, error) {
	if a.height != b.height {
		return nil, errors.Wrapf(ErrInvariantViolation, "Merge: height mismatch %d != %d", a.height, b.height)
	}
	aLast := a.elements[len(a.elements)-1]
	bFirst := b.elements[0]
	if aLast.Compare(bFirst) <= 0 {
		return ConcatMerge(hasher, a, b)
	}
	return SortedMerge(hasher, a, b)
}

// StreamBuilder folds a non-decreasing stream of elements into a
// PerfectTree using O(log n) pending fragments, the way
// NebulousLabs/merkletree's Tree.Push folds a leaf stream through a
// subTree carry chain. Each pushed element must be >= the previously
// pushed one; Finish requires the total count pushed to be a power of two
// (the shape SortedMerge always produces: two equal 2^k trees merged).
type StreamBuilder struct {
	hasher Hasher
	stack  []*PerfectTree // increasing height from index 0
}

// NewStreamBuilder returns an empty StreamBuilder.
func NewStreamBuilder(hasher Hasher) *StreamBuilder {
	return &StreamBuilder{hasher: hasher}
}

// Push appends one element to the stream being folded.
func (sb *StreamBuilder) Push(e Element) error {
	frag, err := BuildPerfectTree(sb.hasher, []Element{e})
	if err != nil {
		return err
	}
	sb.stack = append(sb.stack, frag)
	for len(sb.stack) >= 2 {
		n := len(sb.stack)
		top, second := sb.stack[n-1], sb.stack[n-2]
		if top.height != second.height {
			break
		}
		merged, err := ConcatMerge(sb.hasher, second, top)
		if err != nil {
			return err
		}
		sb.stack = sb.stack[:n-2]
		sb.stack = append(sb.stack, merged)
	}
	return nil
}

// Finish returns the single perfect tree accumulated from the pushed
// stream. It errors if the stream length was not a power of two, i.e. the
// fragments did not fully collapse to one.
func (sb *StreamBuilder) Finish() (*PerfectTree, error) {
	if len(sb.stack) != 1 {
		return nil, errors.Wrapf(ErrInvariantViolation, "StreamBuilder.Finish: %d pending fragments, stream length was not a power of two", len(sb.stack))
	}
	return sb.stack[0], nil
}
