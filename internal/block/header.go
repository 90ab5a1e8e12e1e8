package block

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"

	"github.com/eigerco/blackberry/internal/crypto"
)

// Header as carried on the wire by the source chain
type Header struct {
	ParentHash     crypto.Hash
	Number         uint
	StateRoot      crypto.Hash
	ExtrinsicsRoot crypto.Hash
	Digest         Digest
}

// Hash returns the Blake2b-256 hash of the SCALE-encoded header
func (h Header) Hash() (crypto.Hash, error) {
	encoded, err := scale.Marshal(h)
	if err != nil {
		return crypto.Hash{}, fmt.Errorf("marshal header: %w", err)
	}
	return crypto.HashData(encoded), nil
}

// Bytes returns the SCALE encoding of the header
func (h Header) Bytes() ([]byte, error) {
	return scale.Marshal(h)
}

// HeaderFromBytes decodes a SCALE-encoded header
func HeaderFromBytes(data []byte) (Header, error) {
	var h Header
	if err := scale.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("unmarshal header: %w", err)
	}
	return h, nil
}
