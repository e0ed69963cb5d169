package mmt

import "github.com/pkg/errors"

// Sentinel errors for construction and I/O failures. Verification functions
// never return these directly: they report a bool, optionally paired with a
// Diagnostic (see below). These are for Forest/PerfectTree/Codec
// construction and persistence calls.
var (
	// ErrInvariantViolation is returned when an internal precondition is
	// violated, e.g. a non-power-of-two leaf count passed to
	// BuildPerfectTree, or mismatched heights passed to ConcatMerge.
	ErrInvariantViolation = errors.New("mmt: invariant violation")

	// ErrMalformedProof is returned when a wire proof does not parse as
	// CBOR or a tree file has a bad magic. The decoders do not check digest
	// widths, side bits or exclusion indices; verification reports those
	// through a Diagnostic.
	ErrMalformedProof = errors.New("mmt: malformed proof")

	// ErrIO wraps a persistence-layer failure. Mutating operations that
	// return this leave the prior forest state authoritative.
	ErrIO = errors.New("mmt: persistence failure")
)

// Reason enumerates the ways a verification call can fail, without making
// verification itself return an error: Verify reports a single boolean, and
// VerifyDiagnostic additionally reports which clause fired.
type Reason int

const (
	// ReasonNone means verification succeeded.
	ReasonNone Reason = iota
	// ReasonHashMismatch means the recomputed root did not match the
	// expected root.
	ReasonHashMismatch
	// ReasonMalformedProof means the proof's shape was invalid (wrong
	// digest width, unrecognized side or witness kind, subtree index out of
	// range). The number of siblings is not checked.
	ReasonMalformedProof
	// ReasonOrderingViolation means an exclusion witness's bracketing
	// predicate (predecessor < target < successor, consecutive indices)
	// did not hold.
	ReasonOrderingViolation
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonHashMismatch:
		return "hash mismatch"
	case ReasonMalformedProof:
		return "malformed proof"
	case ReasonOrderingViolation:
		return "ordering violation"
	default:
		return "unknown"
	}
}

// Diagnostic carries the reason a verification failed (or ReasonNone on
// success) along with the index of the subtree it failed at, if applicable.
// The plain Verify methods wrap VerifyDiagnostic and discard this; callers
// that need to distinguish failure causes use VerifyDiagnostic directly.
type Diagnostic struct {
	Reason       Reason
	SubtreeIndex int // -1 if not applicable to a single subtree
	Message      string
}

func ok() Diagnostic { return Diagnostic{Reason: ReasonNone, SubtreeIndex: -1} }

func fail(reason Reason, subtreeIndex int, msg string) Diagnostic {
	return Diagnostic{Reason: reason, SubtreeIndex: subtreeIndex, Message: msg}
}
