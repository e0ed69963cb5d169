package mmt

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Tree file framing: magic, format version, hash width, height, then
// 2^(k+1)-1 fixed-width digests in post-order traversal, every leaf before
// its parent, every subtree fully emitted before its right sibling. The
// root is the last digest. Fixed width means no per-node length prefixes
// are needed; encoding/binary is sufficient here (the self-describing CBOR
// codec is reserved for the manifest and wire proofs in manifest.go, which
// actually need that flexibility).
var treeFileMagic = [4]byte{'M', 'M', 'T', '1'}

const treeFileVersion uint8 = 1

// EncodeTree writes t's post-order digest layout to w, preceded by the
// framing header described above.
func EncodeTree(w io.Writer, hasher Hasher, t *PerfectTree) error {
	if err := binary.Write(w, binary.BigEndian, treeFileMagic); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	if err := binary.Write(w, binary.BigEndian, treeFileVersion); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	if err := binary.Write(w, binary.BigEndian, uint8(hasher.Size())); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	if err := binary.Write(w, binary.BigEndian, uint32(t.Height())); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	return writePostOrder(w, t, t.Height(), 0)
}

// writePostOrder emits the digest for the subtree rooted at (level,
// leftLeaf), where level counts up from 0 at the leaves, after first
// emitting its left and right children, per the post-order framing
// contract above. A streaming writer can emit each node as soon as both
// children are written, which this recursion does naturally.
func writePostOrder(w io.Writer, t *PerfectTree, level, index int) error {
	if level == 0 {
		_, err := w.Write(t.levels[0][index])
		if err != nil {
			return errors.Wrap(ErrIO, err.Error())
		}
		return nil
	}
	span := 1 << uint(level-1)
	if err := writePostOrder(w, t, level-1, index); err != nil {
		return err
	}
	if err := writePostOrder(w, t, level-1, index+span); err != nil {
		return err
	}
	_, err := w.Write(t.levels[level][index>>uint(level)])
	if err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// DecodeTree reads a tree file written by EncodeTree, validating the
// framing header and reconstructing a PerfectTree's dense level arrays
// from the flat post-order digest sequence. Internal nodes and the root are
// recomputed from the leaf digests, so a tampered leaf changes the root;
// the stored internal digests are read but not compared.
func DecodeTree(r io.Reader, hasher Hasher) (*PerfectTree, error) {
	var magic [4]byte
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	if magic != treeFileMagic {
		return nil, errors.Wrap(ErrMalformedProof, "tree file: bad magic")
	}
	var version uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	if version != treeFileVersion {
		return nil, errors.Errorf("tree file: unsupported version %d", version)
	}
	var width uint8
	if err := binary.Read(r, binary.BigEndian, &width); err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	if int(width) != hasher.Size() {
		return nil, errors.Errorf("tree file: hash width %d does not match hasher width %d", width, hasher.Size())
	}
	var height uint32
	if err := binary.Read(r, binary.BigEndian, &height); err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}

	total := 1<<(height+1) - 1
	digests := make([][]byte, total)
	for i := range digests {
		d := make([]byte, width)
		if _, err := io.ReadFull(r, d); err != nil {
			return nil, errors.Wrap(ErrIO, err.Error())
		}
		digests[i] = d
	}

	levels := make([][][]byte, height+1)
	for lvl := range levels {
		levels[lvl] = make([][]byte, 1<<uint(int(height)-lvl))
	}
	pos := 0
	if err := readPostOrder(digests, &pos, levels, int(height), 0); err != nil {
		return nil, err
	}
	for lvl := 1; lvl <= int(height); lvl++ {
		for i := range levels[lvl] {
			levels[lvl][i] = hasher.Node(levels[lvl-1][2*i], levels[lvl-1][2*i+1])
		}
	}

	return &PerfectTree{
		hasher: hasher,
		height: int(height),
		levels: levels,
		// elements are not recoverable from hashes alone; a decoded tree
		// supports Root/Leaves/InclusionProof, while FindElement and
		// Element panic.
	}, nil
}

func readPostOrder(digests [][]byte, pos *int, levels [][][]byte, level, index int) error {
	if level == 0 {
		levels[0][index] = digests[*pos]
		*pos++
		return nil
	}
	span := 1 << uint(level-1)
	if err := readPostOrder(digests, pos, levels, level-1, index); err != nil {
		return err
	}
	if err := readPostOrder(digests, pos, levels, level-1, index+span); err != nil {
		return err
	}
	levels[level][index>>uint(level)] = digests[*pos]
	*pos++
	return nil
}

// EncodeTreeBytes is a convenience wrapper around EncodeTree for callers
// that want an in-memory byte slice rather than a Writer (e.g. to hand to
// a blob-storage backend).
func EncodeTreeBytes(hasher Hasher, t *PerfectTree) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTree(&buf, hasher, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
