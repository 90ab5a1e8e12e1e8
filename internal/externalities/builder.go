package externalities

import (
	"fmt"

	"github.com/eigerco/blackberry/internal/state"
	"github.com/eigerco/blackberry/pkg/log"
)

// RuntimeInfo is the identity of the candidate runtime the engine will run
type RuntimeInfo struct {
	SpecName    string
	SpecVersion uint32
}

// CompatibilityError means the chain identity of the state differs from the
// candidate runtime's.
type CompatibilityError struct {
	OnChain   string
	Candidate string
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("spec name mismatch: on-chain %q, candidate %q", e.OnChain, e.Candidate)
}

// VersionError means the candidate runtime version does not exceed the
// on-chain one while a version increase was required.
type VersionError struct {
	OnChain   uint32
	Candidate uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("spec version must increase: on-chain %d, candidate %d", e.OnChain, e.Candidate)
}

// Build turns a resolved state into execution-ready externalities. The
// runtime checks are gates evaluated once, here, before any execution; once
// externalities exist no further compatibility validation happens. Overrides
// are applied on top of the resolved pairs.
func Build(raw *state.RawState, candidate RuntimeInfo, checks state.RuntimeChecks, overrides []state.KeyValue) (*Externalities, error) {
	if checks.NameMatches && raw.Version.SpecName != candidate.SpecName {
		return nil, &CompatibilityError{OnChain: raw.Version.SpecName, Candidate: candidate.SpecName}
	}
	if checks.VersionIncreases && candidate.SpecVersion <= raw.Version.SpecVersion {
		return nil, &VersionError{OnChain: raw.Version.SpecVersion, Candidate: candidate.SpecVersion}
	}

	pairs := make(map[string][]byte, len(raw.Pairs)+len(overrides))
	for _, kv := range raw.Pairs {
		pairs[string(kv.Key)] = kv.Value
	}
	for _, kv := range overrides {
		pairs[string(kv.Key)] = kv.Value
	}

	ext := New(pairs, raw.At)
	for _, child := range raw.Child {
		childPairs := make(map[string][]byte, len(child.Pairs))
		for _, kv := range child.Pairs {
			childPairs[string(kv.Key)] = kv.Value
		}
		ext.child[string(child.ChildKey)] = childPairs
	}

	log.Replay.Debug().
		Str("at", raw.At.String()).
		Int("pairs", len(pairs)).
		Int("overrides", len(overrides)).
		Bool("name_check", checks.NameMatches).
		Bool("version_check", checks.VersionIncreases).
		Msg("externalities built")

	return ext, nil
}
