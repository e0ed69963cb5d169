package mmt

import "github.com/pkg/errors"

// InclusionProof witnesses that value is a leaf of one subtree of a forest,
// plus the peer subtree roots needed to reconstruct the forest root.
type InclusionProof struct {
	Value            Element
	LeafHash         []byte
	SubtreeIndex     int
	SubtreePath      SiblingPath
	PeerSubtreeRoots [][]byte // all subtree roots except SubtreeIndex, in forest order
	ForestRoot       []byte
}

// ProveInclusion returns an inclusion proof for e, or nil if e is not
// present in any subtree. If e occurs in more than one subtree (permitted
// under multiset semantics), the leftmost subtree, leftmost leaf occurrence
// is returned, for determinism.
func (f *Forest) ProveInclusion(e Element) *InclusionProof {
	locations := f.FindLocation(e)
	for i, loc := range locations {
		if loc.Kind != LocateFound {
			continue
		}
		subtree := f.subtrees[i]
		path, err := subtree.InclusionProof(loc.Index)
		if err != nil {
			return nil
		}
		return &InclusionProof{
			Value:            e,
			LeafHash:         subtree.LeafHash(loc.Index),
			SubtreeIndex:     i,
			SubtreePath:      path,
			PeerSubtreeRoots: peerRoots(f, i),
			ForestRoot:       f.Root(),
		}
	}
	return nil
}

func peerRoots(f *Forest, exclude int) [][]byte {
	peers := make([][]byte, 0, len(f.subtrees)-1)
	for i, t := range f.subtrees {
		if i == exclude {
			continue
		}
		peers = append(peers, t.Root())
	}
	return peers
}

// reconstructForestRoot rebuilds the forest root from a computed subtree
// root, its index, and the peer roots recorded alongside it, inserting the
// computed root back at its original position.
func reconstructForestRoot(hasher Hasher, subtreeIndex int, subtreeRoot []byte, peerRoots [][]byte) ([]byte, error) {
	total := len(peerRoots) + 1
	if subtreeIndex < 0 || subtreeIndex >= total {
		return nil, errors.Wrapf(ErrMalformedProof, "subtree index %d out of range [0,%d)", subtreeIndex, total)
	}
	roots := make([][]byte, 0, total)
	roots = append(roots, peerRoots[:subtreeIndex]...)
	roots = append(roots, subtreeRoot)
	roots = append(roots, peerRoots[subtreeIndex:]...)
	return hasher.Root(roots), nil
}

// Verify reports whether p verifies against expectedRoot: the leaf hash
// must match H_leaf(value), and the forest root reconstructed from the
// subtree path and peer roots must equal expectedRoot.
func (p *InclusionProof) Verify(hasher Hasher, expectedRoot []byte) bool {
	d := p.VerifyDiagnostic(hasher, expectedRoot)
	return d.Reason == ReasonNone
}

// VerifyDiagnostic is Verify with a Diagnostic describing any failure.
func (p *InclusionProof) VerifyDiagnostic(hasher Hasher, expectedRoot []byte) Diagnostic {
	if len(p.LeafHash) != hasher.Size() {
		return fail(ReasonMalformedProof, p.SubtreeIndex, "leaf hash has wrong width")
	}
	if !bytesEqual(hasher.Leaf(p.Value.Encode()), p.LeafHash) {
		return fail(ReasonHashMismatch, p.SubtreeIndex, "leaf hash does not match H_leaf(value)")
	}
	subtreeRoot, d := recomputeRootFromPath(hasher, p.LeafHash, p.SubtreePath, p.SubtreeIndex)
	if d.Reason != ReasonNone {
		return d
	}
	forestRoot, err := reconstructForestRoot(hasher, p.SubtreeIndex, subtreeRoot, p.PeerSubtreeRoots)
	if err != nil {
		return fail(ReasonMalformedProof, p.SubtreeIndex, err.Error())
	}
	if !bytesEqual(forestRoot, expectedRoot) {
		return fail(ReasonHashMismatch, p.SubtreeIndex, "reconstructed forest root does not match expected root")
	}
	return ok()
}

// --- Exclusion ---

// ExclusionKind distinguishes the three shapes a per-subtree exclusion
// witness can take. A subtree always has at least one leaf (BuildPerfectTree
// rejects zero leaves), so these three cases are exhaustive; the forest-wide
// empty case is handled separately by ProveExclusion ranging over zero
// subtrees.
type ExclusionKind int

const (
	// ExclusionBeforeAll means target is smaller than the subtree's
	// leftmost leaf.
	ExclusionBeforeAll ExclusionKind = iota
	// ExclusionAfterAll means target is larger than the subtree's
	// rightmost leaf.
	ExclusionAfterAll
	// ExclusionBetween means two consecutive leaves bracket target.
	ExclusionBetween
)

// SubtreeExclusion is one subtree's witness of target's absence.
type SubtreeExclusion struct {
	Kind ExclusionKind

	// Successor fields, valid for ExclusionBeforeAll and ExclusionBetween.
	Successor      Element
	SuccessorHash  []byte
	SuccessorIndex int
	SuccessorPath  SiblingPath

	// Predecessor fields, valid for ExclusionAfterAll and ExclusionBetween.
	Predecessor      Element
	PredecessorHash  []byte
	PredecessorIndex int
	PredecessorPath  SiblingPath
}

// ExclusionProof witnesses target's absence from every subtree of a forest;
// subtrees do not share a global order, so absence must be shown
// independently in each.
type ExclusionProof struct {
	Target            Element
	SubtreeExclusions []SubtreeExclusion
	ForestRoot        []byte
}

// ProveExclusion returns an exclusion proof for target, or nil if target is
// present in some subtree.
func (f *Forest) ProveExclusion(target Element) *ExclusionProof {
	witnesses := make([]SubtreeExclusion, len(f.subtrees))
	for i, t := range f.subtrees {
		w, err := subtreeExclusionWitness(t, target)
		if err != nil {
			return nil // target was Found in this subtree
		}
		witnesses[i] = w
	}
	return &ExclusionProof{
		Target:            target,
		SubtreeExclusions: witnesses,
		ForestRoot:        f.Root(),
	}
}

func subtreeExclusionWitness(t *PerfectTree, target Element) (SubtreeExclusion, error) {
	loc := t.FindElement(target)
	switch loc.Kind {
	case LocateFound:
		return SubtreeExclusion{}, errors.Wrap(ErrInvariantViolation, "target present")
	case LocateBeforeAll:
		path, err := t.InclusionProof(0)
		if err != nil {
			return SubtreeExclusion{}, err
		}
		return SubtreeExclusion{
			Kind:           ExclusionBeforeAll,
			Successor:      t.Element(0),
			SuccessorHash:  t.LeafHash(0),
			SuccessorIndex: 0,
			SuccessorPath:  path,
		}, nil
	case LocateAfterAll:
		last := t.Len() - 1
		path, err := t.InclusionProof(last)
		if err != nil {
			return SubtreeExclusion{}, err
		}
		return SubtreeExclusion{
			Kind:             ExclusionAfterAll,
			Predecessor:      t.Element(last),
			PredecessorHash:  t.LeafHash(last),
			PredecessorIndex: last,
			PredecessorPath:  path,
		}, nil
	case LocateGapBetween:
		predPath, err := t.InclusionProof(loc.Left)
		if err != nil {
			return SubtreeExclusion{}, err
		}
		succPath, err := t.InclusionProof(loc.Right)
		if err != nil {
			return SubtreeExclusion{}, err
		}
		return SubtreeExclusion{
			Kind:             ExclusionBetween,
			Predecessor:      t.Element(loc.Left),
			PredecessorHash:  t.LeafHash(loc.Left),
			PredecessorIndex: loc.Left,
			PredecessorPath:  predPath,
			Successor:        t.Element(loc.Right),
			SuccessorHash:    t.LeafHash(loc.Right),
			SuccessorIndex:   loc.Right,
			SuccessorPath:    succPath,
		}, nil
	default:
		return SubtreeExclusion{}, errors.Wrap(ErrInvariantViolation, "unrecognized locate kind")
	}
}

// Verify reports whether p verifies against expectedRoot.
func (p *ExclusionProof) Verify(hasher Hasher, expectedRoot []byte) bool {
	d := p.VerifyDiagnostic(hasher, expectedRoot)
	return d.Reason == ReasonNone
}

// VerifyDiagnostic verifies an exclusion proof: each subtree's root is
// recomputed from its witness, the forest root is reassembled from all
// subtree roots (largest-first), and every witness's ordering predicate
// (strict < on both sides, consecutive indices for Between) is checked.
func (p *ExclusionProof) VerifyDiagnostic(hasher Hasher, expectedRoot []byte) Diagnostic {
	roots := make([][]byte, len(p.SubtreeExclusions))
	for i, w := range p.SubtreeExclusions {
		root, d := verifySubtreeExclusion(hasher, p.Target, w, i)
		if d.Reason != ReasonNone {
			return d
		}
		roots[i] = root
	}
	forestRoot := hasher.Root(roots)
	if !bytesEqual(forestRoot, expectedRoot) {
		return fail(ReasonHashMismatch, -1, "reassembled forest root does not match expected root")
	}
	return ok()
}

func verifySubtreeExclusion(hasher Hasher, target Element, w SubtreeExclusion, subtreeIndex int) ([]byte, Diagnostic) {
	switch w.Kind {
	case ExclusionBeforeAll:
		if target.Compare(w.Successor) >= 0 {
			return nil, fail(ReasonOrderingViolation, subtreeIndex, "target is not before the subtree's leftmost leaf")
		}
		if !bytesEqual(hasher.Leaf(w.Successor.Encode()), w.SuccessorHash) {
			return nil, fail(ReasonHashMismatch, subtreeIndex, "successor leaf hash mismatch")
		}
		return recomputeRootFromPath(hasher, w.SuccessorHash, w.SuccessorPath, subtreeIndex)
	case ExclusionAfterAll:
		if target.Compare(w.Predecessor) <= 0 {
			return nil, fail(ReasonOrderingViolation, subtreeIndex, "target is not after the subtree's rightmost leaf")
		}
		if !bytesEqual(hasher.Leaf(w.Predecessor.Encode()), w.PredecessorHash) {
			return nil, fail(ReasonHashMismatch, subtreeIndex, "predecessor leaf hash mismatch")
		}
		return recomputeRootFromPath(hasher, w.PredecessorHash, w.PredecessorPath, subtreeIndex)
	case ExclusionBetween:
		if target.Compare(w.Predecessor) <= 0 || target.Compare(w.Successor) >= 0 {
			return nil, fail(ReasonOrderingViolation, subtreeIndex, "target is not strictly between predecessor and successor")
		}
		if w.SuccessorIndex != w.PredecessorIndex+1 {
			return nil, fail(ReasonOrderingViolation, subtreeIndex, "predecessor and successor leaf indices are not consecutive")
		}
		if !bytesEqual(hasher.Leaf(w.Predecessor.Encode()), w.PredecessorHash) {
			return nil, fail(ReasonHashMismatch, subtreeIndex, "predecessor leaf hash mismatch")
		}
		if !bytesEqual(hasher.Leaf(w.Successor.Encode()), w.SuccessorHash) {
			return nil, fail(ReasonHashMismatch, subtreeIndex, "successor leaf hash mismatch")
		}
		predRoot, d := recomputeRootFromPath(hasher, w.PredecessorHash, w.PredecessorPath, subtreeIndex)
		if d.Reason != ReasonNone {
			return nil, d
		}
		succRoot, d := recomputeRootFromPath(hasher, w.SuccessorHash, w.SuccessorPath, subtreeIndex)
		if d.Reason != ReasonNone {
			return nil, d
		}
		if !bytesEqual(predRoot, succRoot) {
			return nil, fail(ReasonHashMismatch, subtreeIndex, "predecessor and successor paths disagree on subtree root")
		}
		return predRoot, ok()
	default:
		return nil, fail(ReasonMalformedProof, subtreeIndex, "unrecognized exclusion witness kind")
	}
}

// recomputeRootFromPath walks a sibling path from a leaf hash up to a
// candidate subtree root, with no expected value to compare against yet
// (the caller compares roots across predecessor/successor paths instead).
func recomputeRootFromPath(hasher Hasher, leafHash []byte, path SiblingPath, subtreeIndex int) ([]byte, Diagnostic) {
	current := leafHash
	for _, s := range path.Siblings {
		if len(s.Hash) != hasher.Size() {
			return nil, fail(ReasonMalformedProof, subtreeIndex, "sibling hash has wrong width")
		}
		switch s.Side {
		case SideRight:
			current = hasher.Node(current, s.Hash)
		case SideLeft:
			current = hasher.Node(s.Hash, current)
		default:
			return nil, fail(ReasonMalformedProof, subtreeIndex, "unrecognized sibling side")
		}
	}
	return current, ok()
}
