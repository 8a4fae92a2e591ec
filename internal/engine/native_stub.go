//go:build !whispercpp

package engine

import (
	"context"
	"log/slog"

	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// NativeAvailable reports whether the native whisper backend is compiled in.
func NativeAvailable() bool { return false }

// NativeBackend is a placeholder that satisfies stt.Backend when the
// whispercpp build tag is absent.
type NativeBackend struct{}

// NativeContext is the placeholder context type.
type NativeContext struct{}

// NewNativeBackend returns an error when the native backend is not built.
func NewNativeBackend(*slog.Logger, NativeOptions) (*NativeBackend, error) {
	return nil, ErrNativeEngineUnavailable
}

func (b *NativeBackend) Name() string { return BackendNative }

func (b *NativeBackend) Configure(stt.Config) error { return ErrNativeEngineUnavailable }

func (b *NativeBackend) Open(string) (*NativeContext, error) {
	return nil, ErrNativeEngineUnavailable
}

func (b *NativeBackend) Close(*NativeContext) error { return nil }

func (b *NativeBackend) Transcribe(context.Context, *NativeContext, []float32) (stt.Transcript, error) {
	return nil, ErrNativeEngineUnavailable
}
