//go:build whispercpp

package engine

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo CXXFLAGS: -std=c++17 -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include "stdlib.h"
#include "include/whisper.h"
#include "ggml.h"

bool whisperGoAbort(void * user_data);
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/cgo"
	"unsafe"

	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

func NativeAvailable() bool { return true }

// NativeBackend drives whisper.cpp through cgo. It owns the
// whisper_full_params used by every transcription and the C copy of the
// language string those params point at.
type NativeBackend struct {
	log  *slog.Logger
	opts NativeOptions

	params     C.struct_whisper_full_params
	cLang      *C.char
	configured bool
}

// NativeContext wraps a loaded whisper_context.
type NativeContext struct {
	ctx       *C.struct_whisper_context
	modelPath string
}

// NewNativeBackend returns a backend with engine-default parameters.
func NewNativeBackend(logger *slog.Logger, opts NativeOptions) (*NativeBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeBackend{
		log:    logger.With("component", "engine.native"),
		opts:   opts,
		params: C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY),
	}, nil
}

func (b *NativeBackend) Name() string { return BackendNative }

// Configure rebuilds the full params from engine defaults, so nothing from
// a previous configuration survives. The previous language string is freed
// only after the new params are in place.
func (b *NativeBackend) Configure(cfg stt.Config) error {
	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.print_realtime = C.bool(cfg.PrintRealtime)
	params.print_progress = C.bool(cfg.PrintProgress)
	params.print_timestamps = C.bool(cfg.PrintTimestamps)
	params.print_special = C.bool(cfg.PrintSpecial)
	params.translate = C.bool(cfg.Translate)
	if cfg.Threads > 0 {
		params.n_threads = C.int(cfg.Threads)
	}
	params.offset_ms = C.int(cfg.OffsetMs)
	params.no_context = C.bool(cfg.NoContext)
	params.single_segment = C.bool(cfg.SingleSegment)

	cLang := C.CString(cfg.Language)
	params.language = cLang
	params.detect_language = C.bool(false)

	previous := b.cLang
	b.params = params
	b.cLang = cLang
	b.configured = true
	if previous != nil {
		C.free(unsafe.Pointer(previous))
	}
	return nil
}

// Release frees the owned language string. The backend falls back to
// engine defaults afterwards.
func (b *NativeBackend) Release() error {
	b.params = C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	b.configured = false
	if b.cLang != nil {
		C.free(unsafe.Pointer(b.cLang))
		b.cLang = nil
	}
	return nil
}

func (b *NativeBackend) Open(modelPath string) (*NativeContext, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path required")
	}
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	cParams := C.whisper_context_default_params()
	if b.opts.UseGPU != nil {
		cParams.use_gpu = C.bool(*b.opts.UseGPU)
	}
	if b.opts.FlashAttention != nil {
		cParams.flash_attn = C.bool(*b.opts.FlashAttention)
	}

	ctx := C.whisper_init_from_file_with_params(cPath, cParams)
	if ctx == nil {
		return nil, fmt.Errorf("whisper: failed to initialise context for %s", modelPath)
	}
	return &NativeContext{ctx: ctx, modelPath: modelPath}, nil
}

func (b *NativeBackend) Close(c *NativeContext) error {
	if c == nil || c.ctx == nil {
		return nil
	}
	C.whisper_free(c.ctx)
	c.ctx = nil
	return nil
}

// Transcribe resets the context timings, runs whisper_full over the whole
// buffer, and collects every segment text in order.
func (b *NativeBackend) Transcribe(ctx context.Context, c *NativeContext, samples []float32) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c == nil || c.ctx == nil {
		return nil, errors.New("whisper: context released")
	}
	if len(samples) == 0 {
		return nil, nil
	}

	params := b.params
	handle := cgo.NewHandle(ctx)
	defer handle.Delete()
	params.abort_callback = (C.ggml_abort_callback)(C.whisperGoAbort)
	params.abort_callback_user_data = unsafe.Pointer(&handle)

	C.whisper_reset_timings(c.ctx)
	ret := C.whisper_full(c.ctx, params, (*C.float)(unsafe.Pointer(&samples[0])), C.int(len(samples)))
	if ret != 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("whisper: inference failed with code %d", int(ret))
	}
	// Timings go to the engine log only when progress printing is on.
	if bool(params.print_progress) {
		C.whisper_print_timings(c.ctx)
	}

	count := int(C.whisper_full_n_segments(c.ctx))
	if count == 0 {
		return nil, nil
	}
	out := make(stt.Transcript, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, C.GoString(C.whisper_full_get_segment_text(c.ctx, C.int(i))))
	}
	b.log.Debug("native inference complete",
		"model_path", c.modelPath,
		"samples", len(samples),
		"segments", count,
	)
	return out, nil
}

//export whisperGoAbort
func whisperGoAbort(userData unsafe.Pointer) C.bool {
	return C.bool(abortRequested(userData))
}
