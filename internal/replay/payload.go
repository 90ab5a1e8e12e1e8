package replay

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"

	"github.com/eigerco/blackberry/internal/block"
	"github.com/eigerco/blackberry/internal/executor"
)

// CallPayload is the argument tuple of the execute-block entry point. Field
// order and count are part of the wire format; changing either is a breaking
// change and must be versioned.
type CallPayload struct {
	Block          block.Block
	StateRootCheck bool
	SignatureCheck bool
	TryState       TryStateSelect
}

// Encode returns the SCALE encoding of the payload tuple
func (p CallPayload) Encode() ([]byte, error) {
	encoded, err := scale.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal call payload: %v", executor.ErrEncoding, err)
	}
	return encoded, nil
}

// DecodeCallPayload decodes an encoded payload tuple
func DecodeCallPayload(data []byte) (CallPayload, error) {
	var p CallPayload
	if err := scale.Unmarshal(data, &p); err != nil {
		return CallPayload{}, fmt.Errorf("%w: unmarshal call payload: %v", executor.ErrEncoding, err)
	}
	return p, nil
}
