package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/eigerco/blackberry/internal/externalities"
)

var (
	// ErrEntryPointMissing means the candidate runtime does not expose the
	// requested entry point, typically because it was built without the
	// diagnostic feature.
	ErrEntryPointMissing = errors.New("entry point missing")
	// ErrEncoding means the payload or the output could not be
	// (de)serialized; a programming or version-skew error.
	ErrEncoding = errors.New("encoding failure")
	// ErrNoEngine means no execution engine implementation was registered.
	ErrNoEngine = errors.New("no execution engine registered")
)

// TrapError means the invoked entry point aborted inside the candidate logic
type TrapError struct {
	EntryPoint string
	Diagnostic []byte
}

func (e *TrapError) Error() string {
	if len(e.Diagnostic) == 0 {
		return fmt.Sprintf("entry point %q trapped", e.EntryPoint)
	}
	return fmt.Sprintf("entry point %q trapped: %s", e.EntryPoint, e.Diagnostic)
}

// HostFunctions names the host capabilities exposed to the runtime during a
// call. The set is forwarded to the engine and is opaque to this package.
type HostFunctions []string

// FullHostFunctions is the capability set used for replay: everything the
// runtime may reach for, including the diagnostic-only host interfaces.
func FullHostFunctions() HostFunctions {
	return HostFunctions{
		"storage",
		"child_storage",
		"trie",
		"hashing",
		"crypto",
		"offchain",
		"logging",
	}
}

// Engine executes a named entry point of the candidate runtime against the
// given externalities. Engines are external collaborators: this package only
// defines the contract and the invocation wrapper around it. Implementations
// report aborted calls as *TrapError and unknown entry points as
// ErrEntryPointMissing.
type Engine interface {
	Version() externalities.RuntimeInfo
	Call(ctx context.Context, ext *externalities.Externalities, hostFns HostFunctions, entryPoint string, payload []byte) ([]byte, error)
}

// Factory builds an engine from the candidate runtime blob at the given path
type Factory func(runtimePath string) (Engine, error)

var engineFactory Factory

// RegisterFactory installs the engine implementation the CLI will use.
// Embedding programs call this once at startup.
func RegisterFactory(f Factory) {
	engineFactory = f
}

// BuildEngine constructs the registered engine for the given runtime blob
func BuildEngine(runtimePath string) (Engine, error) {
	if engineFactory == nil {
		return nil, ErrNoEngine
	}
	return engineFactory(runtimePath)
}
