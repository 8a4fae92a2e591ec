// Package bridge marshals the four host entry points (initParams,
// initContext, freeContext, fullTranscribe) onto an stt.Service. Hosts see
// int64 tokens and numeric status codes; everything behind them stays typed.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nupi-ai/stt-whisper-bridge/internal/audio"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// Bridge adapts an stt.Service to host-facing primitive types.
type Bridge struct {
	svc stt.Service
	log *slog.Logger
}

// New wraps svc.
func New(svc stt.Service, logger *slog.Logger) *Bridge {
	if svc == nil {
		panic("bridge: service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{svc: svc, log: logger.With("component", "bridge")}
}

// Service returns the wrapped service.
func (b *Bridge) Service() stt.Service { return b.svc }

// InitParams applies a full parameter set. Argument order follows the host
// signature.
func (b *Bridge) InitParams(printRealtime, printProgress, timestamps, printSpecial, translate bool, language string, threads, offsetMs int32, noContext, singleSegment bool) error {
	return b.svc.Configure(stt.Config{
		PrintRealtime:   printRealtime,
		PrintProgress:   printProgress,
		PrintTimestamps: timestamps,
		PrintSpecial:    printSpecial,
		Translate:       translate,
		Language:        language,
		Threads:         int(threads),
		OffsetMs:        int(offsetMs),
		NoContext:       noContext,
		SingleSegment:   singleSegment,
	})
}

// InitContext loads a model and returns its token. The token is 0 whenever
// err is non-nil.
func (b *Bridge) InitContext(modelPath string) (int64, error) {
	h, err := b.svc.OpenContext(modelPath)
	if err != nil {
		b.log.Warn("initContext failed", "model_path", modelPath, "error", err)
		return 0, err
	}
	return int64(h), nil
}

// FreeContext releases the context behind token.
func (b *Bridge) FreeContext(token int64) error {
	h, err := toHandle(token)
	if err != nil {
		return err
	}
	return b.svc.CloseContext(h)
}

// FullTranscribe transcribes samples with the context behind token. The
// slice is read during the call only.
func (b *Bridge) FullTranscribe(ctx context.Context, token int64, samples []float32) (string, error) {
	h, err := toHandle(token)
	if err != nil {
		return "", err
	}
	return b.svc.Transcribe(ctx, h, samples)
}

// FullTranscribePCM16 converts little-endian 16-bit PCM before transcribing.
func (b *Bridge) FullTranscribePCM16(ctx context.Context, token int64, pcm []byte) (string, error) {
	return b.FullTranscribe(ctx, token, audio.PCM16ToFloat32(pcm))
}

// Close releases every context still open.
func (b *Bridge) Close() error {
	return b.svc.Close()
}

func toHandle(token int64) (stt.Handle, error) {
	if token <= 0 {
		return 0, fmt.Errorf("%w: token %d", stt.ErrInvalidHandle, token)
	}
	return stt.Handle(token), nil
}

// Code is the numeric status reported to hosts.
type Code int32

const (
	CodeOK Code = iota
	CodeLoadError
	CodeInvalidHandle
	CodeInferenceError
	CodeInvalidArgument
	CodeNotConfigured
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeLoadError:
		return "load_error"
	case CodeInvalidHandle:
		return "invalid_handle"
	case CodeInferenceError:
		return "inference_error"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotConfigured:
		return "not_configured"
	default:
		return "internal"
	}
}

// CodeOf classifies err for hosts. Cancellation counts as an inference
// failure since hosts have no separate code for it.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, stt.ErrLoad):
		return CodeLoadError
	case errors.Is(err, stt.ErrInvalidHandle):
		return CodeInvalidHandle
	case errors.Is(err, stt.ErrInference),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return CodeInferenceError
	case errors.Is(err, stt.ErrInvalidConfig):
		return CodeInvalidArgument
	case errors.Is(err, stt.ErrNotConfigured):
		return CodeNotConfigured
	default:
		return CodeInternal
	}
}
