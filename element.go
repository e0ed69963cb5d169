package mmt

import "bytes"

// Element is a value stored in the multiset. Implementations must give a
// canonical byte encoding (two equal elements must encode identically) and a
// total order over that encoding; ties are permitted and mean the elements
// are equal for ordering purposes.
//
// The engine parameterizes over this interface instead of raw []byte
// entries, so no runtime reflection is needed to compare or hash a caller's
// value type.
type Element interface {
	// Encode returns the canonical byte encoding used for hashing. It must
	// be deterministic: the same logical value always encodes identically.
	Encode() []byte
	// Compare returns <0, 0, or >0 if the receiver is less than, equal to,
	// or greater than other, using the same order as a bytewise comparison
	// of their canonical encodings.
	Compare(other Element) int
}

// BytesElement is an Element whose order is the bytewise order of its
// contents, for callers that just want raw []byte entries.
type BytesElement []byte

// Encode implements Element.
func (b BytesElement) Encode() []byte { return b }

// Compare implements Element.
func (b BytesElement) Compare(other Element) int {
	return bytes.Compare(b, other.Encode())
}
