package inherents

import (
	"errors"
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// Identifier names one inherent within a block's execution context
type Identifier [8]byte

var (
	// TimestampIdentifier is the inherent carrying the block timestamp
	TimestampIdentifier = Identifier{'t', 'i', 'm', 's', 't', 'a', 'p', '0'}
	// ParachainsIdentifier is the inherent carrying parachain backing data
	ParachainsIdentifier = Identifier{'p', 'a', 'r', 'a', 'c', 'h', 'n', '0'}
)

var (
	ErrDuplicateProvider = errors.New("inherent provider already registered")
	ErrDuplicateInherent = errors.New("inherent data already present")
	ErrInherentNotFound  = errors.New("inherent data not found")
)

func (id Identifier) String() string {
	return string(id[:])
}

// InherentData is the per-block contextual data injected into the execution
// context, keyed by identifier. Entries keep their insertion order.
type InherentData struct {
	data  map[Identifier][]byte
	order []Identifier
}

func NewInherentData() *InherentData {
	return &InherentData{data: make(map[Identifier][]byte)}
}

// Put encodes the value and stores it under the identifier. Identifiers are
// unique within one inherent set; a second insert is an error, not an
// overwrite.
func (d *InherentData) Put(id Identifier, value any) error {
	if _, exists := d.data[id]; exists {
		return fmt.Errorf("%s: %w", id, ErrDuplicateInherent)
	}
	encoded, err := scale.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal inherent %s: %w", id, err)
	}
	d.data[id] = encoded
	d.order = append(d.order, id)
	return nil
}

// Get decodes the entry stored under the identifier into dst
func (d *InherentData) Get(id Identifier, dst any) error {
	encoded, ok := d.data[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrInherentNotFound)
	}
	if err := scale.Unmarshal(encoded, dst); err != nil {
		return fmt.Errorf("unmarshal inherent %s: %w", id, err)
	}
	return nil
}

// Identifiers returns the identifiers in insertion order
func (d *InherentData) Identifiers() []Identifier {
	return d.order
}

// Provider injects one kind of inherent data. TryHandleError lets a provider
// reinterpret an engine-reported error that correlates with data it injected;
// it returns handled=false to decline.
type Provider interface {
	Identifier() Identifier
	ProvideInherentData(data *InherentData) error
	TryHandleError(id Identifier, encoded []byte) (handled bool, err error)
}

// Registry is an explicit ordered set of providers keyed by identifier
type Registry struct {
	providers []Provider
	byID      map[Identifier]struct{}
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[Identifier]struct{})}
}

// Register appends a provider. Registering two providers under the same
// identifier is a configuration error.
func (r *Registry) Register(p Provider) error {
	id := p.Identifier()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%s: %w", id, ErrDuplicateProvider)
	}
	r.byID[id] = struct{}{}
	r.providers = append(r.providers, p)
	return nil
}

// Provide asks every provider, in registration order, to fill the set
func (r *Registry) Provide() (*InherentData, error) {
	data := NewInherentData()
	for _, p := range r.providers {
		if err := p.ProvideInherentData(data); err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Identifier(), err)
		}
	}
	return data, nil
}

// TryHandleError offers the error to each provider in order until one
// handles it.
func (r *Registry) TryHandleError(id Identifier, encoded []byte) (bool, error) {
	for _, p := range r.providers {
		if handled, err := p.TryHandleError(id, encoded); handled {
			return true, err
		}
	}
	return false, nil
}
