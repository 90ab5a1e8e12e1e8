package executor

import (
	"context"
	"time"

	"github.com/eigerco/blackberry/internal/externalities"
	"github.com/eigerco/blackberry/pkg/log"
)

// Invoker drives the execution engine. It is the only component that crosses
// into untrusted candidate logic, so it owns two guarantees: a failed call
// discards every pending write before the externalities are handed back, and
// proof capture survives the failure with everything touched up to the trap
// point.
type Invoker struct {
	engine  Engine
	hostFns HostFunctions
}

// NewInvoker wraps an engine. The engine instance is constructed once per
// command and shared between the state build and the execute call.
func NewInvoker(engine Engine, hostFns HostFunctions) *Invoker {
	return &Invoker{engine: engine, hostFns: hostFns}
}

// Engine returns the wrapped engine
func (inv *Invoker) Engine() Engine {
	return inv.engine
}

// Call invokes the entry point with the encoded payload. With proofMode set,
// a recording layer wraps the externalities for the duration of the call and
// the accumulated proof is extracted afterwards regardless of the call's
// outcome. Without it no proof artifact exists at all.
func (inv *Invoker) Call(ctx context.Context, ext *externalities.Externalities, entryPoint string, payload []byte, proofMode bool) ([]byte, *externalities.Proof, error) {
	var recorder *externalities.Recorder
	if proofMode {
		recorder = externalities.NewRecorder()
		ext.StartRecording(recorder)
		defer ext.StopRecording()
	}

	started := time.Now()
	output, err := inv.engine.Call(ctx, ext, inv.hostFns, entryPoint, payload)

	var proof *externalities.Proof
	if recorder != nil {
		proof = recorder.Proof()
	}

	if err != nil {
		// Attempted-but-not-committed writes must not survive a failed call.
		ext.Revert()
		log.Executor.Error().
			Err(err).
			Str("entry_point", entryPoint).
			Dur("elapsed", time.Since(started)).
			Msg("call failed")
		return nil, proof, err
	}

	ext.Commit()
	log.Executor.Info().
		Str("entry_point", entryPoint).
		Int("payload_bytes", len(payload)).
		Int("output_bytes", len(output)).
		Dur("elapsed", time.Since(started)).
		Msg("call completed")
	return output, proof, nil
}
