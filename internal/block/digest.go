package block

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// ConsensusEngineID identifies the consensus engine a digest item belongs to
type ConsensusEngineID [4]byte

// PreRuntimeDigest is produced by the block author before runtime execution
type PreRuntimeDigest struct {
	ConsensusEngineID ConsensusEngineID
	Data              []byte
}

// ConsensusDigest carries a message from the runtime to the consensus engine
type ConsensusDigest struct {
	ConsensusEngineID ConsensusEngineID
	Data              []byte
}

// SealDigest is appended by the block author when sealing the block. It is
// the entry stripped during replay normalization.
type SealDigest struct {
	ConsensusEngineID ConsensusEngineID
	Data              []byte
}

// OtherDigest holds opaque digest data
type OtherDigest []byte

// RuntimeEnvironmentUpdatedDigest signals that the code entry changed in the block
type RuntimeEnvironmentUpdatedDigest struct{}

// DigestItem is the varying data type over all digest entry kinds. Variant
// indices follow the wire format of the source chain and must not change.
type DigestItem struct {
	inner any
}

type DigestItemValues interface {
	PreRuntimeDigest | ConsensusDigest | SealDigest | OtherDigest | RuntimeEnvironmentUpdatedDigest
}

func setDigestItem[Value DigestItemValues](mvdt *DigestItem, value Value) {
	mvdt.inner = value
}

// NewDigestItem creates a digest item holding the given variant
func NewDigestItem[Value DigestItemValues](value Value) DigestItem {
	item := DigestItem{}
	setDigestItem(&item, value)
	return item
}

func (mvdt *DigestItem) SetValue(value any) (err error) {
	switch value := value.(type) {
	case PreRuntimeDigest:
		setDigestItem(mvdt, value)
		return nil
	case ConsensusDigest:
		setDigestItem(mvdt, value)
		return nil
	case SealDigest:
		setDigestItem(mvdt, value)
		return nil
	case OtherDigest:
		setDigestItem(mvdt, value)
		return nil
	case RuntimeEnvironmentUpdatedDigest:
		setDigestItem(mvdt, value)
		return nil
	default:
		return fmt.Errorf("unsupported digest item type: %T", value)
	}
}

func (mvdt DigestItem) IndexValue() (index uint, value any, err error) {
	switch mvdt.inner.(type) {
	case OtherDigest:
		return 0, mvdt.inner, nil
	case ConsensusDigest:
		return 4, mvdt.inner, nil
	case SealDigest:
		return 5, mvdt.inner, nil
	case PreRuntimeDigest:
		return 6, mvdt.inner, nil
	case RuntimeEnvironmentUpdatedDigest:
		return 8, mvdt.inner, nil
	}
	return 0, nil, scale.ErrUnsupportedVaryingDataTypeValue
}

func (mvdt DigestItem) Value() (value any, err error) {
	_, value, err = mvdt.IndexValue()
	return
}

func (mvdt DigestItem) ValueAt(index uint) (value any, err error) {
	switch index {
	case 0:
		return OtherDigest{}, nil
	case 4:
		return ConsensusDigest{}, nil
	case 5:
		return SealDigest{}, nil
	case 6:
		return PreRuntimeDigest{}, nil
	case 8:
		return RuntimeEnvironmentUpdatedDigest{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

// Digest is the ordered list of digest items carried by a header
type Digest []DigestItem
