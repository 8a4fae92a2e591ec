package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nupi-ai/stt-whisper-bridge/internal/adapterinfo"
)

// Recorder tracks adapter-level telemetry: context lifecycle, configuration
// changes and transcription passes. Totals are kept in memory for shutdown
// summaries and mirrored to OpenTelemetry instruments.
type Recorder struct {
	log         *slog.Logger
	instruments instruments

	totalConfigures       atomic.Uint64
	totalContextsOpened   atomic.Uint64
	totalContextsClosed   atomic.Uint64
	totalLoadFailures     atomic.Uint64
	activeContexts        atomic.Int64
	totalTranscriptions   atomic.Uint64
	totalFailedPasses     atomic.Uint64
	totalSamples          atomic.Uint64
	totalSegments         atomic.Uint64
	totalTranscriptRunes  atomic.Uint64
	totalInferenceMillis  atomic.Uint64
	inflightTranscription atomic.Int64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalConfigures      uint64
	TotalContextsOpened  uint64
	TotalContextsClosed  uint64
	TotalLoadFailures    uint64
	ActiveContexts       int64
	TotalTranscriptions  uint64
	TotalFailedPasses    uint64
	TotalSamples         uint64
	TotalSegments        uint64
	TotalTranscriptRunes uint64
	TotalInferenceMillis uint64
}

// Option customises a Recorder.
type Option func(*recorderOptions)

type recorderOptions struct {
	meter metric.Meter
}

// WithMeter sets the meter used for OpenTelemetry instruments. By default
// the global meter provider is used.
func WithMeter(m metric.Meter) Option {
	return func(o *recorderOptions) {
		o.meter = m
	}
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	var o recorderOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.meter == nil {
		o.meter = otel.Meter(adapterinfo.Info.Slug)
	}
	r := &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
	inst, err := newInstruments(o.meter)
	if err != nil {
		r.log.Warn("metric instruments unavailable", "error", err)
	}
	r.instruments = inst
	return r
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalConfigures:      r.totalConfigures.Load(),
		TotalContextsOpened:  r.totalContextsOpened.Load(),
		TotalContextsClosed:  r.totalContextsClosed.Load(),
		TotalLoadFailures:    r.totalLoadFailures.Load(),
		ActiveContexts:       r.activeContexts.Load(),
		TotalTranscriptions:  r.totalTranscriptions.Load(),
		TotalFailedPasses:    r.totalFailedPasses.Load(),
		TotalSamples:         r.totalSamples.Load(),
		TotalSegments:        r.totalSegments.Load(),
		TotalTranscriptRunes: r.totalTranscriptRunes.Load(),
		TotalInferenceMillis: r.totalInferenceMillis.Load(),
	}
}

// RecordConfigure counts a parameter change.
func (r *Recorder) RecordConfigure(backend, language string, threads int) {
	if r == nil {
		return
	}
	r.totalConfigures.Add(1)
	r.instruments.configures.Add(context.Background(), 1, backendAttr(backend))
	r.log.Debug("parameters configured",
		"backend", backend,
		"language", language,
		"threads", threads,
	)
}

// RecordContextOpened counts a successful model load.
func (r *Recorder) RecordContextOpened(backend, modelPath string, took time.Duration) {
	if r == nil {
		return
	}
	r.totalContextsOpened.Add(1)
	r.activeContexts.Add(1)
	r.instruments.activeContexts.Add(context.Background(), 1, backendAttr(backend))
	r.log.Info("context opened",
		"backend", backend,
		"model_path", modelPath,
		"load_ms", took.Milliseconds(),
	)
}

// RecordLoadFailure counts a failed model load.
func (r *Recorder) RecordLoadFailure(backend, modelPath string, err error) {
	if r == nil {
		return
	}
	r.totalLoadFailures.Add(1)
	r.instruments.loadFailures.Add(context.Background(), 1, backendAttr(backend))
	r.log.Warn("context load failed",
		"backend", backend,
		"model_path", modelPath,
		"error", err,
	)
}

// RecordContextClosed counts a released context.
func (r *Recorder) RecordContextClosed(backend string) {
	if r == nil {
		return
	}
	r.totalContextsClosed.Add(1)
	r.activeContexts.Add(-1)
	r.instruments.activeContexts.Add(context.Background(), -1, backendAttr(backend))
}

// TranscriptionMetrics accumulates statistics for a single transcription pass.
type TranscriptionMetrics struct {
	recorder *Recorder
	log      *slog.Logger
	backend  string

	started  time.Time
	samples  int
	segments int
	runes    int
	closed   atomic.Bool
}

// StartTranscription initialises a TranscriptionMetrics instance bound to
// the recorder.
func (r *Recorder) StartTranscription(backend string, handle uint64, samples int) *TranscriptionMetrics {
	if r == nil {
		return nil
	}
	r.inflightTranscription.Add(1)
	return &TranscriptionMetrics{
		recorder: r,
		log: r.log.With(
			"backend", backend,
			"handle", handle,
		),
		backend: backend,
		started: time.Now(),
		samples: samples,
	}
}

// RecordTranscript stores statistics for the produced transcript.
func (m *TranscriptionMetrics) RecordTranscript(segments int, text string) {
	if m == nil {
		return
	}
	m.segments = segments
	m.runes = utf8.RuneCountInString(text)
}

// Finish logs a summary and folds the pass into the recorder totals. Only
// the first call has an effect.
func (m *TranscriptionMetrics) Finish(err error) {
	if m == nil {
		return
	}
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	r := m.recorder
	defer r.inflightTranscription.Add(-1)

	duration := time.Since(m.started)
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("backend", m.backend), attribute.Bool("error", err != nil))

	r.totalTranscriptions.Add(1)
	r.totalSamples.Add(uint64(m.samples))
	r.totalInferenceMillis.Add(uint64(duration.Milliseconds()))
	r.instruments.transcriptions.Add(ctx, 1, attrs)
	r.instruments.samples.Add(ctx, int64(m.samples), attrs)
	r.instruments.inferenceSeconds.Record(ctx, duration.Seconds(), attrs)

	args := []any{
		"duration_ms", duration.Milliseconds(),
		"samples", m.samples,
		"audio_ms", int64(m.samples) * 1000 / 16000,
		"segments", m.segments,
		"runes", m.runes,
	}

	if err != nil {
		r.totalFailedPasses.Add(1)
		m.log.Error("transcription failed", append(args, "error", err)...)
		return
	}

	r.totalSegments.Add(uint64(m.segments))
	r.totalTranscriptRunes.Add(uint64(m.runes))
	m.log.Info("transcription completed", args...)
}

func backendAttr(backend string) metric.AddOption {
	return metric.WithAttributes(attribute.String("backend", backend))
}
