package replay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// TryStateAll checks every subsystem invariant after applying the block
type TryStateAll struct{}

// TryStateNone skips the invariant checks
type TryStateNone struct{}

// TryStateRoundRobin checks the given number of pallets in round-robin
// fashion.
type TryStateRoundRobin uint32

// TryStateOnly checks exactly the named pallets
type TryStateOnly [][]byte

// TryStateSelect chooses which internal invariants the execution engine
// verifies after applying a block. It is opaque to the replay flow: only
// constructed and forwarded, never interpreted here. Variant indices are part
// of the wire format.
type TryStateSelect struct {
	inner any
}

type TryStateSelectValues interface {
	TryStateNone | TryStateAll | TryStateRoundRobin | TryStateOnly
}

func setTryStateSelect[Value TryStateSelectValues](mvdt *TryStateSelect, value Value) {
	mvdt.inner = value
}

// NewTryStateSelect creates a selector holding the given variant
func NewTryStateSelect[Value TryStateSelectValues](value Value) TryStateSelect {
	sel := TryStateSelect{}
	setTryStateSelect(&sel, value)
	return sel
}

func (mvdt *TryStateSelect) SetValue(value any) (err error) {
	switch value := value.(type) {
	case TryStateNone:
		setTryStateSelect(mvdt, value)
		return nil
	case TryStateAll:
		setTryStateSelect(mvdt, value)
		return nil
	case TryStateRoundRobin:
		setTryStateSelect(mvdt, value)
		return nil
	case TryStateOnly:
		setTryStateSelect(mvdt, value)
		return nil
	default:
		return fmt.Errorf("unsupported try-state selector type: %T", value)
	}
}

func (mvdt TryStateSelect) IndexValue() (index uint, value any, err error) {
	switch mvdt.inner.(type) {
	case TryStateNone:
		return 0, mvdt.inner, nil
	case TryStateAll:
		return 1, mvdt.inner, nil
	case TryStateRoundRobin:
		return 2, mvdt.inner, nil
	case TryStateOnly:
		return 3, mvdt.inner, nil
	}
	return 0, nil, scale.ErrUnsupportedVaryingDataTypeValue
}

func (mvdt TryStateSelect) Value() (value any, err error) {
	_, value, err = mvdt.IndexValue()
	return
}

func (mvdt TryStateSelect) ValueAt(index uint) (value any, err error) {
	switch index {
	case 0:
		return TryStateNone{}, nil
	case 1:
		return TryStateAll{}, nil
	case 2:
		return TryStateRoundRobin(0), nil
	case 3:
		return TryStateOnly{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

func (mvdt TryStateSelect) String() string {
	switch inner := mvdt.inner.(type) {
	case TryStateNone:
		return "none"
	case TryStateAll:
		return "all"
	case TryStateRoundRobin:
		return fmt.Sprintf("rr-%d", uint32(inner))
	case TryStateOnly:
		names := make([]string, 0, len(inner))
		for _, name := range inner {
			names = append(names, string(name))
		}
		return strings.Join(names, ",")
	}
	return "<unset>"
}

// ParseTryStateSelect parses the command-line form of the selector: "all",
// "none", "rr-<N>" for a round-robin count, or a comma-separated pallet-name
// list.
func ParseTryStateSelect(s string) (TryStateSelect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return TryStateSelect{}, fmt.Errorf("%w: empty try-state selector", ErrConfiguration)
	case "all":
		return NewTryStateSelect(TryStateAll{}), nil
	case "none":
		return NewTryStateSelect(TryStateNone{}), nil
	}

	if rest, ok := strings.CutPrefix(strings.TrimSpace(s), "rr-"); ok {
		count, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return TryStateSelect{}, fmt.Errorf("%w: invalid round-robin count %q", ErrConfiguration, rest)
		}
		return NewTryStateSelect(TryStateRoundRobin(count)), nil
	}

	var pallets TryStateOnly
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return TryStateSelect{}, fmt.Errorf("%w: empty pallet name in try-state selector %q", ErrConfiguration, s)
		}
		pallets = append(pallets, []byte(name))
	}
	return NewTryStateSelect(pallets), nil
}
