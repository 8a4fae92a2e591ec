package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nupi-ai/stt-whisper-bridge/internal/adapterinfo"
	"github.com/nupi-ai/stt-whisper-bridge/internal/handle"
	"github.com/nupi-ai/stt-whisper-bridge/internal/telemetry"
)

// Option customises an Adapter.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *telemetry.Recorder
	tracer  trace.Tracer
	strict  bool
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithTracer overrides the tracer used for per-operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithStrictConfig makes Transcribe fail with ErrNotConfigured until
// Configure has succeeded at least once. Without it engine defaults apply.
func WithStrictConfig(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// releaser is implemented by backends holding state beyond their contexts.
type releaser interface {
	Release() error
}

type entry[H any] struct {
	mu        sync.Mutex
	h         H
	modelPath string
	released  bool
}

// Adapter exposes one Backend through opaque handles. It owns every engine
// context it opens; callers only ever see Handle tokens.
type Adapter[H any] struct {
	backend Backend[H]
	name    string
	log     *slog.Logger
	metrics *telemetry.Recorder
	tracer  trace.Tracer
	strict  bool

	// cfgMu is held for writing by Configure and for reading for the
	// whole of each Transcribe, so parameters never change mid-pass.
	cfgMu      sync.RWMutex
	cfg        Config
	configured bool
	warnOnce   sync.Once

	// lifeMu orders handle insertion against Close, so nothing enters the
	// table after it has been drained.
	lifeMu   sync.Mutex
	contexts handle.Table[*entry[H]]
	closed   atomic.Bool
}

var _ Service = (*Adapter[struct{}])(nil)

// New wraps backend in an Adapter.
func New[H any](backend Backend[H], opts ...Option) *Adapter[H] {
	if backend == nil {
		panic("stt: backend must not be nil")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(adapterinfo.Info.Slug)
	}
	name := backend.Name()
	return &Adapter[H]{
		backend: backend,
		name:    name,
		log:     o.logger.With("component", "stt.adapter", "backend", name),
		metrics: o.metrics,
		tracer:  o.tracer,
		strict:  o.strict,
	}
}

// Backend returns the backend name.
func (a *Adapter[H]) Backend() string { return a.name }

// Configure replaces the decoding parameters used by subsequent Transcribe
// calls. Settings are never merged with a previous configuration.
func (a *Adapter[H]) Configure(cfg Config) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.Normalized()

	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	if err := a.backend.Configure(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	a.cfg = cfg
	a.configured = true
	a.metrics.RecordConfigure(a.name, cfg.Language, cfg.Threads)
	return nil
}

// Config returns the active configuration and whether one has been applied.
func (a *Adapter[H]) Config() (Config, bool) {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg, a.configured
}

// OpenContext loads the model at modelPath and returns a handle for it.
func (a *Adapter[H]) OpenContext(modelPath string) (Handle, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	path := strings.TrimSpace(modelPath)
	if err := checkModelPath(path); err != nil {
		a.metrics.RecordLoadFailure(a.name, path, err)
		return 0, err
	}

	start := time.Now()
	h, err := a.backend.Open(path)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
		a.metrics.RecordLoadFailure(a.name, path, err)
		return 0, err
	}
	a.lifeMu.Lock()
	if a.closed.Load() {
		a.lifeMu.Unlock()
		// Close raced the load; the new context must not outlive the adapter.
		_ = a.backend.Close(h)
		return 0, ErrClosed
	}
	tok := a.contexts.Insert(&entry[H]{h: h, modelPath: path})
	a.lifeMu.Unlock()

	a.metrics.RecordContextOpened(a.name, path, time.Since(start))
	a.log.Debug("context handle issued", "handle", tok.String(), "model_path", path)
	return tok, nil
}

// CloseContext releases the engine context behind h. The handle is
// invalidated before the backend is called, so a second CloseContext with the
// same handle reports ErrInvalidHandle instead of reaching the engine.
func (a *Adapter[H]) CloseContext(h Handle) error {
	e, err := a.contexts.Remove(h)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return a.release(e)
}

func (a *Adapter[H]) release(e *entry[H]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil
	}
	e.released = true
	err := a.backend.Close(e.h)
	var zero H
	e.h = zero
	a.metrics.RecordContextClosed(a.name)
	if err != nil {
		return fmt.Errorf("stt: close context %s: %w", e.modelPath, err)
	}
	return nil
}

// Transcribe runs one full pass over samples with the engine context behind
// h and returns the segment texts concatenated in order. samples is not
// retained after the call returns.
func (a *Adapter[H]) Transcribe(ctx context.Context, h Handle, samples []float32) (text string, err error) {
	if a.closed.Load() {
		return "", ErrClosed
	}
	e, err := a.contexts.Get(h)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}

	ctx, span := a.tracer.Start(ctx, "stt.Transcribe", trace.WithAttributes(
		attribute.String("stt.backend", a.name),
		attribute.Int("stt.samples", len(samples)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	if !a.configured {
		if a.strict {
			return "", ErrNotConfigured
		}
		a.warnOnce.Do(func() {
			a.log.Warn("transcribing without configured parameters; engine defaults apply")
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return "", fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	if len(samples) == 0 {
		return "", nil
	}

	pass := a.metrics.StartTranscription(a.name, uint64(h), len(samples))
	transcript, err := a.backend.Transcribe(ctx, e.h, samples)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			pass.Finish(err)
			return "", err
		}
		err = fmt.Errorf("%w: %v", ErrInference, err)
		pass.Finish(err)
		return "", err
	}
	text = transcript.Text()
	pass.RecordTranscript(len(transcript), text)
	pass.Finish(nil)
	span.SetAttributes(attribute.Int("stt.segments", len(transcript)))
	return text, nil
}

// Stats reports the adapter state.
func (a *Adapter[H]) Stats() Stats {
	a.cfgMu.RLock()
	configured := a.configured
	a.cfgMu.RUnlock()
	return Stats{
		Backend:    a.name,
		Contexts:   a.contexts.Len(),
		Configured: configured,
		Closed:     a.closed.Load(),
	}
}

// Close releases every open context and any backend-held state. Further
// operations fail with ErrClosed.
func (a *Adapter[H]) Close() error {
	a.lifeMu.Lock()
	if !a.closed.CompareAndSwap(false, true) {
		a.lifeMu.Unlock()
		return nil
	}
	leaked := a.contexts.Drain()
	a.lifeMu.Unlock()

	var errs []error
	if len(leaked) > 0 {
		a.log.Warn("releasing contexts left open", "count", len(leaked))
	}
	for _, e := range leaked {
		if err := a.release(e); err != nil {
			errs = append(errs, err)
		}
	}
	if r, ok := a.backend.(releaser); ok {
		a.cfgMu.Lock()
		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
		a.cfgMu.Unlock()
	}
	return errors.Join(errs...)
}

func checkModelPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: model path required", ErrLoad)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrLoad, path)
	}
	return nil
}
