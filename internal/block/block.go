package block

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// Block represents the main block structure
type Block struct {
	Header     Header
	Extrinsics Extrinsics
}

// Extrinsics is the ordered list of opaque, already-encoded extrinsics
type Extrinsics [][]byte

// SignedBlock is a block together with the justifications the source chain
// attached at finalization. Justifications are opaque to the replay flow.
type SignedBlock struct {
	Block          Block
	Justifications [][]byte
}

// StripSeal returns a copy of the block with the last digest item removed.
// The runtime appends exactly one digest entry while processing a block, so a
// finalized block must lose its trailing entry before being replayed,
// otherwise the entry would be counted twice. Stripping an empty digest is a
// no-op. All other header fields and the extrinsics are unchanged.
func (b Block) StripSeal() Block {
	if len(b.Header.Digest) == 0 {
		return b
	}
	stripped := b
	stripped.Header.Digest = make(Digest, len(b.Header.Digest)-1)
	copy(stripped.Header.Digest, b.Header.Digest[:len(b.Header.Digest)-1])
	return stripped
}

// Bytes returns the SCALE encoding of the block
func (b Block) Bytes() ([]byte, error) {
	return scale.Marshal(b)
}

// BlockFromBytes decodes a SCALE-encoded block
func BlockFromBytes(data []byte) (Block, error) {
	var b Block
	if err := scale.Unmarshal(data, &b); err != nil {
		return Block{}, fmt.Errorf("unmarshal block: %w", err)
	}
	return b, nil
}
