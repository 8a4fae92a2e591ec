// Command libstt builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -tags whispercpp -o libstt.so ./cmd/libstt
//
// The exported functions mirror the four host entry points. Status-returning
// functions report bridge.Code values; the message for the most recent
// failure is available from stt_last_error.
package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/nupi-ai/stt-whisper-bridge/internal/bridge"
	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/stt-whisper-bridge/internal/logging"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
	"github.com/nupi-ai/stt-whisper-bridge/internal/telemetry"
)

// A C ABI has no caller-owned place to keep the bridge, so the library holds
// one per process.
var (
	initOnce sync.Once
	instance *bridge.Bridge
	initErr  error

	errMu   sync.Mutex
	lastErr string
)

func main() {}

func current() (*bridge.Bridge, error) {
	initOnce.Do(func() {
		cfg, err := config.Loader{}.Load()
		if err != nil {
			initErr = err
			return
		}
		logger := logging.New(os.Stderr, cfg.LogLevel).With("adapter", "libstt")
		recorder := telemetry.NewRecorder(logger)
		svc, _, err := engine.New(cfg, nil, logger, stt.WithRecorder(recorder))
		if svc == nil {
			initErr = err
			return
		}
		if err != nil {
			logger.Warn("engine initialised with warnings", "error", err)
		}
		instance = bridge.New(svc, logger)
	})
	return instance, initErr
}

func setLastError(err error) C.int32_t {
	errMu.Lock()
	if err == nil {
		lastErr = ""
	} else {
		lastErr = err.Error()
	}
	errMu.Unlock()
	return C.int32_t(bridge.CodeOf(err))
}

// guard converts a panic into an Internal status so it never unwinds into
// the host.
func guard(status *C.int32_t) {
	if r := recover(); r != nil {
		setLastError(fmt.Errorf("libstt: panic: %v", r))
		*status = C.int32_t(bridge.CodeInternal)
	}
}

//export stt_init_params
func stt_init_params(printRealtime, printProgress, timestamps, printSpecial, translate C.bool, language *C.char, threads, offsetMs C.int32_t, noContext, singleSegment C.bool) (status C.int32_t) {
	defer guard(&status)
	b, err := current()
	if err != nil {
		return setLastError(err)
	}
	lang := ""
	if language != nil {
		lang = C.GoString(language)
	}
	err = b.InitParams(bool(printRealtime), bool(printProgress), bool(timestamps), bool(printSpecial), bool(translate),
		lang, int32(threads), int32(offsetMs), bool(noContext), bool(singleSegment))
	return setLastError(err)
}

// stt_init_context returns a context token, or 0 on failure.
//
//export stt_init_context
func stt_init_context(modelPath *C.char) (token C.int64_t) {
	defer func() {
		if r := recover(); r != nil {
			setLastError(fmt.Errorf("libstt: panic: %v", r))
			token = 0
		}
	}()
	b, err := current()
	if err != nil {
		setLastError(err)
		return 0
	}
	if modelPath == nil {
		setLastError(fmt.Errorf("%w: model path is NULL", stt.ErrLoad))
		return 0
	}
	tok, err := b.InitContext(C.GoString(modelPath))
	setLastError(err)
	return C.int64_t(tok)
}

//export stt_free_context
func stt_free_context(token C.int64_t) (status C.int32_t) {
	defer guard(&status)
	b, err := current()
	if err != nil {
		return setLastError(err)
	}
	return setLastError(b.FreeContext(int64(token)))
}

// stt_full_transcribe reads n samples from audio without copying them and
// stores the transcript in *out. The caller owns *out and releases it with
// stt_free_string.
//
//export stt_full_transcribe
func stt_full_transcribe(token C.int64_t, audio *C.float, n C.int32_t, out **C.char) (status C.int32_t) {
	defer guard(&status)
	if out != nil {
		*out = nil
	}
	b, err := current()
	if err != nil {
		return setLastError(err)
	}
	if n < 0 || (n > 0 && audio == nil) {
		return setLastError(fmt.Errorf("%w: %d samples at %p", stt.ErrInvalidConfig, int32(n), audio))
	}
	var samples []float32
	if n > 0 {
		samples = unsafe.Slice((*float32)(unsafe.Pointer(audio)), int(n))
	}
	text, err := b.FullTranscribe(context.Background(), int64(token), samples)
	if err != nil {
		return setLastError(err)
	}
	if out != nil {
		*out = C.CString(text)
	}
	return setLastError(nil)
}

// stt_last_error returns a copy of the last failure message, or NULL.
//
//export stt_last_error
func stt_last_error() *C.char {
	errMu.Lock()
	defer errMu.Unlock()
	if lastErr == "" {
		return nil
	}
	return C.CString(lastErr)
}

//export stt_free_string
func stt_free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

// stt_shutdown releases every open context. Later calls fail.
//
//export stt_shutdown
func stt_shutdown() (status C.int32_t) {
	defer guard(&status)
	b, err := current()
	if err != nil {
		return setLastError(err)
	}
	return setLastError(b.Close())
}
