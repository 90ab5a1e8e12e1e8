package executor

import (
	"context"
	"fmt"

	"github.com/eigerco/blackberry/internal/externalities"
)

// EntryPointFunc is one runtime entry point of a MockEngine
type EntryPointFunc func(ctx context.Context, ext *externalities.Externalities, payload []byte) ([]byte, error)

// MockEngine is an in-process engine used by tests and local wiring. Entry
// points are plain Go functions operating on the externalities directly.
type MockEngine struct {
	Info        externalities.RuntimeInfo
	EntryPoints map[string]EntryPointFunc
}

func NewMockEngine(info externalities.RuntimeInfo) *MockEngine {
	return &MockEngine{
		Info:        info,
		EntryPoints: make(map[string]EntryPointFunc),
	}
}

func (m *MockEngine) Version() externalities.RuntimeInfo {
	return m.Info
}

func (m *MockEngine) Call(ctx context.Context, ext *externalities.Externalities, _ HostFunctions, entryPoint string, payload []byte) ([]byte, error) {
	fn, ok := m.EntryPoints[entryPoint]
	if !ok {
		return nil, fmt.Errorf("%q: %w", entryPoint, ErrEntryPointMissing)
	}
	return fn(ctx, ext, payload)
}
