package stt

import (
	"context"
	"strings"

	"github.com/nupi-ai/stt-whisper-bridge/internal/handle"
)

// Handle is the opaque context token handed to callers.
type Handle = handle.Token

// Transcript holds the segment texts of one transcription pass in emission
// order.
type Transcript []string

// Text concatenates the segments in order without inserting separators.
func (t Transcript) Text() string {
	switch len(t) {
	case 0:
		return ""
	case 1:
		return t[0]
	}
	var b strings.Builder
	for _, seg := range t {
		b.WriteString(seg)
	}
	return b.String()
}

// Backend binds the adapter to one inference engine. H is the engine's own
// context type; it never leaves the adapter.
//
// Backends keep their decoding parameters as state set by Configure and read
// by Transcribe. The adapter serialises Configure against Transcribe, and
// serialises Transcribe calls on the same H.
type Backend[H any] interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Configure replaces the decoding parameters. cfg is already validated
	// and normalised.
	Configure(cfg Config) error
	// Open loads a model and returns the engine context for it.
	Open(modelPath string) (H, error)
	// Close releases an engine context. It is called at most once per H.
	Close(h H) error
	// Transcribe runs one full pass over samples. samples is only valid for
	// the duration of the call.
	Transcribe(ctx context.Context, h H, samples []float32) (Transcript, error)
}

// Service is the backend-agnostic operation set exposed to host boundaries.
type Service interface {
	Configure(cfg Config) error
	Config() (Config, bool)
	OpenContext(modelPath string) (Handle, error)
	CloseContext(h Handle) error
	Transcribe(ctx context.Context, h Handle, samples []float32) (string, error)
	Backend() string
	Stats() Stats
	Close() error
}

// Stats summarises adapter state.
type Stats struct {
	Backend    string
	Contexts   int
	Configured bool
	Closed     bool
}
