//go:build whisper_go

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// GoBindingAvailable reports whether the whisper.cpp Go binding backend is
// compiled in.
func GoBindingAvailable() bool { return true }

// GoBindingBackend runs inference through the official whisper.cpp Go
// bindings. Only the parameters the binding exposes are applied; the rest
// stay at engine defaults.
type GoBindingBackend struct {
	log *slog.Logger

	mu         sync.RWMutex
	cfg        stt.Config
	configured bool
}

// GoBindingContext holds a loaded model. A fresh binding context is created
// for every pass so segment iteration always starts at zero.
type GoBindingContext struct {
	model     whisperpkg.Model
	modelPath string
}

func NewGoBindingBackend(logger *slog.Logger) (*GoBindingBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoBindingBackend{log: logger.With("component", "engine.gowhisper")}, nil
}

func (b *GoBindingBackend) Name() string { return BackendGoBinding }

func (b *GoBindingBackend) Configure(cfg stt.Config) error {
	b.mu.Lock()
	b.cfg = cfg
	b.configured = true
	b.mu.Unlock()
	return nil
}

func (b *GoBindingBackend) Open(modelPath string) (*GoBindingContext, error) {
	model, err := whisperpkg.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load %s: %w", modelPath, err)
	}
	return &GoBindingContext{model: model, modelPath: modelPath}, nil
}

func (b *GoBindingBackend) Close(c *GoBindingContext) error {
	if c == nil || c.model == nil {
		return nil
	}
	err := c.model.Close()
	c.model = nil
	return err
}

func (b *GoBindingBackend) Transcribe(ctx context.Context, c *GoBindingContext, samples []float32) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c == nil || c.model == nil {
		return nil, errors.New("whisper: context released")
	}

	wctx, err := c.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: new context: %w", err)
	}

	b.mu.RLock()
	cfg, configured := b.cfg, b.configured
	b.mu.RUnlock()
	if configured {
		if err := applyBindingParams(wctx, c.model, cfg); err != nil {
			return nil, err
		}
	}

	wctx.ResetTimings()
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("whisper: process: %w", err)
	}
	if configured && cfg.PrintProgress {
		wctx.PrintTimings()
	}

	var out stt.Transcript
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		out = append(out, segment.Text)
	}
	b.log.Debug("go binding inference complete",
		"model_path", c.modelPath,
		"samples", len(samples),
		"segments", len(out),
	)
	return out, nil
}

func applyBindingParams(wctx whisperpkg.Context, model whisperpkg.Model, cfg stt.Config) error {
	if err := wctx.SetLanguage(cfg.Language); err != nil {
		// English-only models reject SetLanguage outright but already
		// decode English.
		if !(errors.Is(err, whisperpkg.ErrModelNotMultilingual) && !model.IsMultilingual() && cfg.Language == stt.DefaultLanguage) {
			return fmt.Errorf("whisper: set language %q: %w", cfg.Language, err)
		}
	}
	wctx.SetTranslate(cfg.Translate)
	if cfg.Threads > 0 {
		wctx.SetThreads(uint(cfg.Threads))
	}
	wctx.SetOffset(time.Duration(cfg.OffsetMs) * time.Millisecond)
	wctx.SetTokenTimestamps(cfg.PrintTimestamps)
	return nil
}
