package mmt

import (
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// ManifestSubtree is one entry of a forest manifest: a subtree's height and
// the identifier of the tree file holding it.
type ManifestSubtree struct {
	Height     int    `cbor:"height"`
	TreeFileID string `cbor:"tree_file_id"`
}

// Manifest enumerates a forest's subtrees, largest first, plus its cached
// root. The manifest plus the referenced tree files constitute the full
// persisted forest state.
type Manifest struct {
	Subtrees []ManifestSubtree `cbor:"subtrees"`
	Root     []byte            `cbor:"root"`
}

// EncodeManifest serializes m with CBOR, following makew0rld/merkdir's use
// of CBOR for its Merkle manifest: compact and self-describing, so none of
// the framing the flat tree-file format needs by hand is required here.
func EncodeManifest(m Manifest) ([]byte, error) {
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "mmt: encode manifest")
	}
	return data, nil
}

// DecodeManifest parses a manifest previously written by EncodeManifest.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "mmt: decode manifest")
	}
	return m, nil
}

// WriteManifestAtomic writes m to path using write-new-then-rename: the new
// manifest is written to a sibling temp file and fsynced before the rename
// replaces path, so a crash mid-write never leaves a torn manifest behind.
func WriteManifestAtomic(path string, m Manifest) error {
	data, err := EncodeManifest(m)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(ErrIO, err.Error())
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(ErrIO, err.Error())
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(ErrIO, err.Error())
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// ReadManifest reads and decodes the manifest at path.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Manifest{}, errors.Wrap(ErrIO, err.Error())
	}
	return DecodeManifest(data)
}

// --- Proof wire format ---

// wireSibling/wireSiblingPath mirror Sibling/SiblingPath for CBOR framing.
type wireSibling struct {
	Hash []byte `cbor:"hash"`
	Side int    `cbor:"side"`
}

type wireSiblingPath struct {
	Siblings []wireSibling `cbor:"siblings"`
}

func toWirePath(p SiblingPath) wireSiblingPath {
	w := wireSiblingPath{Siblings: make([]wireSibling, len(p.Siblings))}
	for i, s := range p.Siblings {
		w.Siblings[i] = wireSibling{Hash: s.Hash, Side: int(s.Side)}
	}
	return w
}

func fromWirePath(w wireSiblingPath) SiblingPath {
	p := SiblingPath{Siblings: make([]Sibling, len(w.Siblings))}
	for i, s := range w.Siblings {
		p.Siblings[i] = Sibling{Hash: s.Hash, Side: Side(s.Side)}
	}
	return p
}

// wireInclusionProof is the on-wire encoding of an InclusionProof: element
// value, a hash-algorithm identifier, the expected forest root, subtree
// index, sibling list with side bits, and peer roots.
type wireInclusionProof struct {
	Value            []byte          `cbor:"value"`
	HashAlg          string          `cbor:"hash_alg"`
	LeafHash         []byte          `cbor:"leaf_hash"`
	SubtreeIndex     int             `cbor:"subtree_index"`
	SubtreePath      wireSiblingPath `cbor:"subtree_path"`
	PeerSubtreeRoots [][]byte        `cbor:"peer_subtree_roots"`
	ForestRoot       []byte          `cbor:"forest_root"`
}

// EncodeInclusionProof serializes p for the wire, tagging it with hashAlg
// (e.g. "sha256", "blake2b-256").
func EncodeInclusionProof(p *InclusionProof, hashAlg string) ([]byte, error) {
	w := wireInclusionProof{
		Value:            p.Value.Encode(),
		HashAlg:          hashAlg,
		LeafHash:         p.LeafHash,
		SubtreeIndex:     p.SubtreeIndex,
		SubtreePath:      toWirePath(p.SubtreePath),
		PeerSubtreeRoots: p.PeerSubtreeRoots,
		ForestRoot:       p.ForestRoot,
	}
	data, err := cbor.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "mmt: encode inclusion proof")
	}
	return data, nil
}

// DecodeInclusionProof parses a wire inclusion proof, reporting the
// hash-algorithm tag alongside the reconstructed proof (the element value
// comes back as a BytesElement over its canonical encoding: the wire format
// does not preserve a caller's original Element type).
func DecodeInclusionProof(data []byte) (*InclusionProof, string, error) {
	var w wireInclusionProof
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, "", errors.Wrap(ErrMalformedProof, err.Error())
	}
	p := &InclusionProof{
		Value:            BytesElement(w.Value),
		LeafHash:         w.LeafHash,
		SubtreeIndex:     w.SubtreeIndex,
		SubtreePath:      fromWirePath(w.SubtreePath),
		PeerSubtreeRoots: w.PeerSubtreeRoots,
		ForestRoot:       w.ForestRoot,
	}
	return p, w.HashAlg, nil
}

// wireSubtreeExclusion/wireExclusionProof mirror SubtreeExclusion/
// ExclusionProof for the wire.
type wireSubtreeExclusion struct {
	Kind             int             `cbor:"kind"`
	Successor        []byte          `cbor:"successor,omitempty"`
	SuccessorHash    []byte          `cbor:"successor_hash,omitempty"`
	SuccessorIndex   int             `cbor:"successor_index,omitempty"`
	SuccessorPath    wireSiblingPath `cbor:"successor_path,omitempty"`
	Predecessor      []byte          `cbor:"predecessor,omitempty"`
	PredecessorHash  []byte          `cbor:"predecessor_hash,omitempty"`
	PredecessorIndex int             `cbor:"predecessor_index,omitempty"`
	PredecessorPath  wireSiblingPath `cbor:"predecessor_path,omitempty"`
}

type wireExclusionProof struct {
	Target     []byte                 `cbor:"target"`
	HashAlg    string                 `cbor:"hash_alg"`
	Subtrees   []wireSubtreeExclusion `cbor:"subtree_exclusions"`
	ForestRoot []byte                 `cbor:"forest_root"`
}

// EncodeExclusionProof serializes p for the wire.
func EncodeExclusionProof(p *ExclusionProof, hashAlg string) ([]byte, error) {
	w := wireExclusionProof{
		Target:     p.Target.Encode(),
		HashAlg:    hashAlg,
		ForestRoot: p.ForestRoot,
		Subtrees:   make([]wireSubtreeExclusion, len(p.SubtreeExclusions)),
	}
	for i, se := range p.SubtreeExclusions {
		w.Subtrees[i] = wireSubtreeExclusion{
			Kind:             int(se.Kind),
			SuccessorIndex:   se.SuccessorIndex,
			SuccessorHash:    se.SuccessorHash,
			SuccessorPath:    toWirePath(se.SuccessorPath),
			PredecessorIndex: se.PredecessorIndex,
			PredecessorHash:  se.PredecessorHash,
			PredecessorPath:  toWirePath(se.PredecessorPath),
		}
		if se.Successor != nil {
			w.Subtrees[i].Successor = se.Successor.Encode()
		}
		if se.Predecessor != nil {
			w.Subtrees[i].Predecessor = se.Predecessor.Encode()
		}
	}
	data, err := cbor.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "mmt: encode exclusion proof")
	}
	return data, nil
}

// DecodeExclusionProof parses a wire exclusion proof.
func DecodeExclusionProof(data []byte) (*ExclusionProof, string, error) {
	var w wireExclusionProof
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, "", errors.Wrap(ErrMalformedProof, err.Error())
	}
	p := &ExclusionProof{
		Target:            BytesElement(w.Target),
		ForestRoot:        w.ForestRoot,
		SubtreeExclusions: make([]SubtreeExclusion, len(w.Subtrees)),
	}
	for i, se := range w.Subtrees {
		out := SubtreeExclusion{
			Kind:             ExclusionKind(se.Kind),
			SuccessorIndex:   se.SuccessorIndex,
			SuccessorHash:    se.SuccessorHash,
			SuccessorPath:    fromWirePath(se.SuccessorPath),
			PredecessorIndex: se.PredecessorIndex,
			PredecessorHash:  se.PredecessorHash,
			PredecessorPath:  fromWirePath(se.PredecessorPath),
		}
		if se.Successor != nil {
			out.Successor = BytesElement(se.Successor)
		}
		if se.Predecessor != nil {
			out.Predecessor = BytesElement(se.Predecessor)
		}
		p.SubtreeExclusions[i] = out
	}
	return p, w.HashAlg, nil
}
