package mmt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildForest(t *testing.T, vals ...int) *Forest {
	t.Helper()
	f := Empty(SHA256Hasher{})
	for _, v := range vals {
		require.NoError(t, f.Insert(BytesElement(fmt.Sprintf("%04d", v))))
	}
	return f
}

func TestProveInclusionRoundTrips(t *testing.T) {
	f := buildForest(t, 10, 25, 40, 55, 70, 85)
	for _, v := range []int{10, 25, 40, 55, 70, 85} {
		p := f.ProveInclusion(BytesElement(fmt.Sprintf("%04d", v)))
		require.NotNil(t, p)
		assert.True(t, p.Verify(SHA256Hasher{}, f.Root()))
	}
}

func TestProveInclusionAbsentReturnsNil(t *testing.T) {
	f := buildForest(t, 10, 25, 40)
	assert.Nil(t, f.ProveInclusion(BytesElement("9999")))
}

func TestProveInclusionTamperedLeafFails(t *testing.T) {
	f := buildForest(t, 10, 25, 40, 55)
	p := f.ProveInclusion(BytesElement("0025"))
	require.NotNil(t, p)
	p.LeafHash = SHA256Hasher{}.Leaf([]byte("tampered"))
	d := p.VerifyDiagnostic(SHA256Hasher{}, f.Root())
	assert.Equal(t, ReasonHashMismatch, d.Reason)
}

func TestProveInclusionTamperedSiblingFails(t *testing.T) {
	f := buildForest(t, 10, 25, 40, 55)
	p := f.ProveInclusion(BytesElement("0010"))
	require.NotNil(t, p)
	if len(p.SubtreePath.Siblings) > 0 {
		p.SubtreePath.Siblings[0].Hash = SHA256Hasher{}.Leaf([]byte("tampered"))
	} else {
		p.PeerSubtreeRoots = append(p.PeerSubtreeRoots, SHA256Hasher{}.Leaf([]byte("bogus")))
	}
	assert.False(t, p.Verify(SHA256Hasher{}, f.Root()))
}

// TestProveExclusionBetween checks that, after inserting [10,25,40,55,70,85],
// excluding 50 brackets it between predecessor 40 and successor 55 in
// whichever subtree holds that gap.
func TestProveExclusionBetween(t *testing.T) {
	f := buildForest(t, 10, 25, 40, 55, 70, 85)
	p := f.ProveExclusion(BytesElement("0050"))
	require.NotNil(t, p)
	assert.True(t, p.Verify(SHA256Hasher{}, f.Root()))

	found := false
	for _, w := range p.SubtreeExclusions {
		if w.Kind == ExclusionBetween {
			found = true
			assert.Equal(t, BytesElement("0040"), w.Predecessor)
			assert.Equal(t, BytesElement("0055"), w.Successor)
		}
	}
	assert.True(t, found, "expected at least one Between witness")
}

// TestProveExclusionBeforeAndAfterAll checks that a singleton forest [5]
// witnesses 3 as BeforeAll{successor:5} and 9 as AfterAll{predecessor:5}.
func TestProveExclusionBeforeAndAfterAll(t *testing.T) {
	f := buildForest(t, 5)

	before := f.ProveExclusion(BytesElement("0003"))
	require.NotNil(t, before)
	require.Len(t, before.SubtreeExclusions, 1)
	assert.Equal(t, ExclusionBeforeAll, before.SubtreeExclusions[0].Kind)
	assert.Equal(t, BytesElement("0005"), before.SubtreeExclusions[0].Successor)
	assert.True(t, before.Verify(SHA256Hasher{}, f.Root()))

	after := f.ProveExclusion(BytesElement("0009"))
	require.NotNil(t, after)
	require.Len(t, after.SubtreeExclusions, 1)
	assert.Equal(t, ExclusionAfterAll, after.SubtreeExclusions[0].Kind)
	assert.Equal(t, BytesElement("0005"), after.SubtreeExclusions[0].Predecessor)
	assert.True(t, after.Verify(SHA256Hasher{}, f.Root()))
}

// TestProveExclusionOnEmptyForest checks that excluding anything from an
// empty forest yields a proof with no subtree witnesses at all.
func TestProveExclusionOnEmptyForest(t *testing.T) {
	f := Empty(SHA256Hasher{})
	p := f.ProveExclusion(BytesElement("0042"))
	require.NotNil(t, p)
	assert.Empty(t, p.SubtreeExclusions)
	assert.True(t, p.Verify(SHA256Hasher{}, f.Root()))
}

func TestProveExclusionPresentReturnsNil(t *testing.T) {
	f := buildForest(t, 10, 25, 40)
	assert.Nil(t, f.ProveExclusion(BytesElement("0025")))
}

// TestProveExclusionTamperedByteFails checks that flipping a byte in a
// proof's witness data fails verification.
func TestProveExclusionTamperedByteFails(t *testing.T) {
	f := buildForest(t, 10, 25, 40, 55, 70, 85)
	p := f.ProveExclusion(BytesElement("0050"))
	require.NotNil(t, p)

	for i := range p.SubtreeExclusions {
		w := &p.SubtreeExclusions[i]
		switch w.Kind {
		case ExclusionBetween:
			w.PredecessorHash[0] ^= 0xFF
		case ExclusionBeforeAll:
			w.SuccessorHash[0] ^= 0xFF
		case ExclusionAfterAll:
			w.PredecessorHash[0] ^= 0xFF
		}
	}
	assert.False(t, p.Verify(SHA256Hasher{}, f.Root()))
}

func TestVerifyDiagnosticOrderingViolation(t *testing.T) {
	f := buildForest(t, 10, 25, 40, 55, 70, 85)
	p := f.ProveExclusion(BytesElement("0050"))
	require.NotNil(t, p)

	for i := range p.SubtreeExclusions {
		if p.SubtreeExclusions[i].Kind == ExclusionBetween {
			// Swap predecessor/successor so the ordering predicate breaks.
			p.SubtreeExclusions[i].Predecessor, p.SubtreeExclusions[i].Successor =
				p.SubtreeExclusions[i].Successor, p.SubtreeExclusions[i].Predecessor
		}
	}
	d := p.VerifyDiagnostic(SHA256Hasher{}, f.Root())
	assert.Equal(t, ReasonOrderingViolation, d.Reason)
}

func TestVerifyDiagnosticMalformedProof(t *testing.T) {
	f := buildForest(t, 10, 25, 40)
	p := f.ProveInclusion(BytesElement("0010"))
	require.NotNil(t, p)
	p.LeafHash = []byte{1, 2, 3}
	d := p.VerifyDiagnostic(SHA256Hasher{}, f.Root())
	assert.Equal(t, ReasonMalformedProof, d.Reason)
}
