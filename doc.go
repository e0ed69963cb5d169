// Package mmt implements an authenticated insert-only multiset backed by a
// forest of perfectly-balanced, leaf-sorted binary Merkle trees (a "Merkle
// merge tree"). It answers inclusion and exclusion queries against a single
// compact commitment, the forest root, with proofs verifiable by anyone who
// holds only that root.
//
// The forest behaves like a binary counter: inserting an element appends a
// height-0 stub and carries equal-height subtrees together until no two
// adjacent subtrees share a height. This keeps the shape of the forest a
// function of cardinality alone, never of element values.
package mmt
