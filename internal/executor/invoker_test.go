package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/blackberry/internal/crypto"
	"github.com/eigerco/blackberry/internal/externalities"
	"github.com/eigerco/blackberry/internal/state"
)

func testExternalities() *externalities.Externalities {
	return externalities.New(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, crypto.HashData([]byte("baseline")))
}

// sumEntryPoint reads both keys, writes their concatenation and echoes it
func sumEntryPoint(_ context.Context, ext *externalities.Externalities, _ []byte) ([]byte, error) {
	a, _ := ext.Get([]byte("a"))
	b, _ := ext.Get([]byte("b"))
	out := append(append([]byte{}, a...), b...)
	ext.Set([]byte("sum"), out)
	return out, nil
}

func newTestEngine() *MockEngine {
	engine := NewMockEngine(externalities.RuntimeInfo{SpecName: "westend", SpecVersion: 1001})
	engine.EntryPoints["TryRuntime_execute_block"] = sumEntryPoint
	return engine
}

func TestInvoker_SuccessCommitsWrites(t *testing.T) {
	inv := NewInvoker(newTestEngine(), FullHostFunctions())
	ext := testExternalities()

	output, proof, err := inv.Call(context.Background(), ext, "TryRuntime_execute_block", nil, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("12"), output)
	// Without proof mode there is no proof artifact at all.
	assert.Nil(t, proof)

	v, ok := ext.Get([]byte("sum"))
	assert.True(t, ok)
	assert.Equal(t, []byte("12"), v)
	assert.Zero(t, ext.PendingWrites())
}

func TestInvoker_ProofReplaysToSameOutput(t *testing.T) {
	inv := NewInvoker(newTestEngine(), FullHostFunctions())
	ext := testExternalities()

	output, proof, err := inv.Call(context.Background(), ext, "TryRuntime_execute_block", nil, true)
	require.NoError(t, err)
	require.False(t, proof.Empty())

	// Replay against nothing but the proof reproduces the output.
	replayExt := proof.Externalities(ext.At())
	replayOutput, _, err := inv.Call(context.Background(), replayExt, "TryRuntime_execute_block", nil, false)
	require.NoError(t, err)
	assert.Equal(t, output, replayOutput)
}

func TestInvoker_ProofReplaysChildReadsToSameOutput(t *testing.T) {
	engine := newTestEngine()
	engine.EntryPoints["TryRuntime_execute_block"] = func(_ context.Context, ext *externalities.Externalities, _ []byte) ([]byte, error) {
		a, _ := ext.Get([]byte("a"))
		cv, _ := ext.ChildGet([]byte("ck"), []byte("k"))
		return append(append([]byte{}, a...), cv...), nil
	}
	inv := NewInvoker(engine, FullHostFunctions())

	raw := &state.RawState{
		Pairs: []state.KeyValue{{Key: []byte("a"), Value: []byte("1")}},
		Child: []state.ChildPairs{
			{ChildKey: []byte("ck"), Pairs: []state.KeyValue{{Key: []byte("k"), Value: []byte("child-v")}}},
		},
		At: crypto.HashData([]byte("baseline")),
	}
	ext, err := externalities.Build(raw, externalities.RuntimeInfo{}, state.RuntimeChecks{}, nil)
	require.NoError(t, err)

	output, proof, err := inv.Call(context.Background(), ext, "TryRuntime_execute_block", nil, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("1child-v"), output)
	require.Len(t, proof.ChildEntries, 1)

	// Child reads replay from the proof just like main-trie reads.
	replayExt := proof.Externalities(ext.At())
	replayOutput, _, err := inv.Call(context.Background(), replayExt, "TryRuntime_execute_block", nil, false)
	require.NoError(t, err)
	assert.Equal(t, output, replayOutput)
}

func TestInvoker_TrapDiscardsWritesKeepsPartialProof(t *testing.T) {
	engine := newTestEngine()
	engine.EntryPoints["TryRuntime_execute_block"] = func(_ context.Context, ext *externalities.Externalities, _ []byte) ([]byte, error) {
		_, _ = ext.Get([]byte("a"))
		ext.Set([]byte("poison"), []byte("x"))
		return nil, &TrapError{EntryPoint: "TryRuntime_execute_block", Diagnostic: []byte("panicked at 'boom'")}
	}
	inv := NewInvoker(engine, FullHostFunctions())
	ext := testExternalities()

	output, proof, err := inv.Call(context.Background(), ext, "TryRuntime_execute_block", nil, true)
	assert.Nil(t, output)

	var trap *TrapError
	require.ErrorAs(t, err, &trap)
	assert.Contains(t, trap.Error(), "boom")

	// The trap left no writes behind.
	_, ok := ext.Get([]byte("poison"))
	assert.False(t, ok)
	assert.Zero(t, ext.PendingWrites())

	// The partial proof still covers what was touched before the trap.
	require.NotNil(t, proof)
	require.Len(t, proof.Entries, 1)
	assert.Equal(t, []byte("a"), proof.Entries[0].Key)
}

func TestInvoker_EntryPointMissing(t *testing.T) {
	inv := NewInvoker(newTestEngine(), FullHostFunctions())
	ext := testExternalities()

	_, _, err := inv.Call(context.Background(), ext, "TryRuntime_on_runtime_upgrade", nil, false)
	assert.ErrorIs(t, err, ErrEntryPointMissing)
}

func TestBuildEngine_RequiresRegistration(t *testing.T) {
	t.Cleanup(func() { RegisterFactory(nil) })

	RegisterFactory(nil)
	_, err := BuildEngine("runtime.wasm")
	assert.ErrorIs(t, err, ErrNoEngine)

	RegisterFactory(func(string) (Engine, error) {
		return newTestEngine(), nil
	})
	engine, err := BuildEngine("runtime.wasm")
	require.NoError(t, err)
	assert.Equal(t, "westend", engine.Version().SpecName)
}
