package inherents

import (
	"github.com/eigerco/blackberry/internal/block"
)

// ParachainInherentData mirrors the wire shape of the parachains inherent.
// For a pure replay no live backing or dispute data is synthesized, only the
// structural placeholders plus the real parent header.
type ParachainInherentData struct {
	Bitfields        [][]byte
	BackedCandidates [][]byte
	Disputes         [][]byte
	ParentHeader     block.Header
}

// ParachainProvider supplies parent-header-derived contextual data for
// secondary-chain validation. The collections stay empty.
type ParachainProvider struct {
	parentHeader block.Header
}

func NewParachainProvider(parentHeader block.Header) *ParachainProvider {
	return &ParachainProvider{parentHeader: parentHeader}
}

func (p *ParachainProvider) Identifier() Identifier {
	return ParachainsIdentifier
}

func (p *ParachainProvider) ProvideInherentData(data *InherentData) error {
	return data.Put(ParachainsIdentifier, ParachainInherentData{
		Bitfields:        [][]byte{},
		BackedCandidates: [][]byte{},
		Disputes:         [][]byte{},
		ParentHeader:     p.parentHeader,
	})
}

func (p *ParachainProvider) TryHandleError(Identifier, []byte) (bool, error) {
	return false, nil
}

// TimestampProvider supplies a fixed timestamp, in milliseconds
type TimestampProvider struct {
	timestamp uint64
}

func NewTimestampProvider(timestamp uint64) *TimestampProvider {
	return &TimestampProvider{timestamp: timestamp}
}

func (p *TimestampProvider) Identifier() Identifier {
	return TimestampIdentifier
}

func (p *TimestampProvider) ProvideInherentData(data *InherentData) error {
	return data.Put(TimestampIdentifier, p.timestamp)
}

func (p *TimestampProvider) TryHandleError(Identifier, []byte) (bool, error) {
	return false, nil
}
