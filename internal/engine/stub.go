package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nupi-ai/stt-whisper-bridge/internal/adapterinfo"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// StubBackend produces deterministic transcripts without invoking Whisper.
type StubBackend struct {
	log          *slog.Logger
	modelVariant string
	cfg          stt.Config
	nextID       atomic.Uint64
}

// StubContext is the engine context issued by StubBackend.
type StubContext struct {
	ID        uint64
	ModelPath string
	passes    int
}

// NewStubBackend returns a Backend that generates placeholder transcripts.
func NewStubBackend(logger *slog.Logger, modelVariant string) *StubBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubBackend{
		log: logger.With(
			"component", "engine.stub",
			"adapter", adapterinfo.Info.Slug,
			"model_variant", modelVariant,
		),
		modelVariant: modelVariant,
	}
}

// Name implements stt.Backend.
func (b *StubBackend) Name() string { return BackendStub }

// Configure implements stt.Backend.
func (b *StubBackend) Configure(cfg stt.Config) error {
	b.cfg = cfg
	return nil
}

// Open implements stt.Backend.
func (b *StubBackend) Open(modelPath string) (*StubContext, error) {
	c := &StubContext{ID: b.nextID.Add(1), ModelPath: modelPath}
	b.log.Debug("stub context opened", "id", c.ID, "model_path", modelPath)
	return c, nil
}

// Close implements stt.Backend.
func (b *StubBackend) Close(c *StubContext) error {
	b.log.Debug("stub context closed", "id", c.ID, "passes", c.passes)
	return nil
}

// Transcribe implements stt.Backend. The first segment describes the audio,
// the second echoes the active language so configuration changes are
// observable.
func (b *StubBackend) Transcribe(ctx context.Context, c *StubContext, samples []float32) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.passes++
	lang := b.cfg.Language
	if lang == "" {
		lang = "default"
	}
	b.log.Debug("stub transcript", "samples", len(samples), "pass", c.passes)
	out := stt.Transcript{
		fmt.Sprintf("[stub:%s] received %d samples", b.modelVariant, len(samples)),
		fmt.Sprintf(" (lang=%s)", lang),
	}
	if b.cfg.Translate {
		out = append(out, " (translated)")
	}
	return out, nil
}
