package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/eigerco/blackberry/internal/executor"
	"github.com/eigerco/blackberry/internal/externalities"
	"github.com/eigerco/blackberry/internal/state"
	"github.com/eigerco/blackberry/pkg/log"
)

// ExecuteBlockEntryPoint is the diagnostic entry point driven by the
// execute-block flow.
const ExecuteBlockEntryPoint = "TryRuntime_execute_block"

// ErrConfiguration means the flags or specs are invalid or contradictory.
// It is reported before any network access happens.
var ErrConfiguration = errors.New("invalid configuration")

// DialFunc opens a chain client for the given ws uri
type DialFunc func(ctx context.Context, uri string) (state.ChainClient, error)

// Config drives one execute-block invocation
type Config struct {
	// State is the state source; execute-block only accepts Live
	State state.Spec
	// BlockWSURI optionally overrides the endpoint the next block is
	// fetched from; defaults to the live spec's own uri
	BlockWSURI string
	// TryState selects the invariants the engine checks after applying
	// the block
	TryState TryStateSelect
	// DisableSpecNameCheck turns off the chain-identity gate
	DisableSpecNameCheck bool
	// ProofMode records a state-access proof during execution
	ProofMode bool
	// Dial opens the remote connection; both fetches of one invocation
	// reuse the connection it returns
	Dial DialFunc
}

// Outcome is the result of a completed replay
type Outcome struct {
	// Output is the raw bytes the entry point returned
	Output []byte
	// Proof is set only when proof mode was requested. It is also set,
	// partially, when the call trapped.
	Proof *externalities.Proof
	// Target pins the state baseline and the executed block
	Target state.ResolvedBlockTarget
}

// resolveURI determines the remote source uri before any network access.
// Execute-block must fetch the next block, which a static snapshot cannot
// provide, so a snapshot spec without an explicit uri is a configuration
// error and a snapshot spec in general is unsupported.
func resolveURI(cfg Config) (string, error) {
	switch spec := cfg.State.(type) {
	case state.Live:
		if cfg.BlockWSURI != "" {
			log.Replay.Warn().
				Str("uri", cfg.BlockWSURI).
				Msg("--block-ws-uri is provided while state is live, are you sure you know what you are doing?")
			return cfg.BlockWSURI, nil
		}
		return spec.URI, nil
	case state.Snap:
		if cfg.BlockWSURI == "" {
			return "", fmt.Errorf("%w: either --block-ws-uri must be provided, or state must be live", ErrConfiguration)
		}
		return cfg.BlockWSURI, nil
	default:
		return "", fmt.Errorf("%w: no state spec given", ErrConfiguration)
	}
}

// Run reconstructs the state immediately before the target block and
// re-executes that block on top of it. On a trapped call the returned outcome
// still carries the partial proof when proof mode was requested.
func Run(ctx context.Context, cfg Config, engine executor.Engine) (*Outcome, error) {
	if cfg.Dial == nil {
		return nil, fmt.Errorf("%w: no dial function given", ErrConfiguration)
	}

	uri, err := resolveURI(cfg)
	if err != nil {
		return nil, err
	}

	// Everything below needs the next block, so only a live source will do.
	liveSpec, ok := cfg.State.(state.Live)
	if !ok {
		return nil, fmt.Errorf("%w: execute-block requires live state", state.ErrUnsupported)
	}
	liveSpec.URI = uri

	// The dial function carries its own sentinel wrapping.
	client, err := cfg.Dial(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", uri, err)
	}
	defer client.Close()

	live, err := liveSpec.ResolveAt(ctx, client)
	if err != nil {
		return nil, err
	}

	// The block to execute is the one the spec is pinned to; its parent
	// state is the baseline.
	prevLive, target, err := live.PrevBlock(ctx, client)
	if err != nil {
		return nil, err
	}

	checks := state.RuntimeChecks{
		NameMatches:              !cfg.DisableSpecNameCheck,
		VersionIncreases:         false,
		TryRuntimeFeatureEnabled: true,
	}

	raw, err := prevLive.Scrape(ctx, client)
	if err != nil {
		return nil, err
	}

	ext, err := externalities.Build(raw, engine.Version(), checks, nil)
	if err != nil {
		return nil, err
	}

	signedBlock, err := client.ChainGetBlock(ctx, target.ExecuteHash)
	if err != nil {
		return nil, fmt.Errorf("fetch block %s: %w", target.ExecuteHash, err)
	}

	if len(signedBlock.Block.Header.Digest) == 0 {
		log.Replay.Warn().
			Str("block", target.ExecuteHash.String()).
			Msg("fetched block carries no digest entries; a finalized block should carry a seal")
	}
	normalized := signedBlock.Block.StripSeal()

	// Both safety checks stay disabled: the whole point is trying
	// unreleased logic that will not match the canonical root.
	payload, err := CallPayload{
		Block:          normalized,
		StateRootCheck: false,
		SignatureCheck: false,
		TryState:       cfg.TryState,
	}.Encode()
	if err != nil {
		return nil, err
	}

	log.Replay.Info().
		Str("execute", target.ExecuteHash.String()).
		Uint64("number", uint64(target.ExecuteNumber)).
		Str("baseline", target.StateHash.String()).
		Str("try_state", cfg.TryState.String()).
		Bool("proof", cfg.ProofMode).
		Msg("executing block")

	invoker := executor.NewInvoker(engine, executor.FullHostFunctions())
	output, proof, err := invoker.Call(ctx, ext, ExecuteBlockEntryPoint, payload, cfg.ProofMode)
	if err != nil {
		return &Outcome{Proof: proof, Target: target}, err
	}

	return &Outcome{Output: output, Proof: proof, Target: target}, nil
}
