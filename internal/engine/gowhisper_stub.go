//go:build !whisper_go

package engine

import (
	"context"
	"log/slog"

	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// GoBindingAvailable reports whether the whisper.cpp Go binding backend is
// compiled in.
func GoBindingAvailable() bool { return false }

// GoBindingBackend is a placeholder used without the whisper_go build tag.
type GoBindingBackend struct{}

// GoBindingContext is the placeholder context type.
type GoBindingContext struct{}

func NewGoBindingBackend(*slog.Logger) (*GoBindingBackend, error) {
	return nil, ErrGoBindingUnavailable
}

func (b *GoBindingBackend) Name() string { return BackendGoBinding }

func (b *GoBindingBackend) Configure(stt.Config) error { return ErrGoBindingUnavailable }

func (b *GoBindingBackend) Open(string) (*GoBindingContext, error) {
	return nil, ErrGoBindingUnavailable
}

func (b *GoBindingBackend) Close(*GoBindingContext) error { return nil }

func (b *GoBindingBackend) Transcribe(context.Context, *GoBindingContext, []float32) (stt.Transcript, error) {
	return nil, ErrGoBindingUnavailable
}
