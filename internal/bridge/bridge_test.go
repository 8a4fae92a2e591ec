package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/stt-whisper-bridge/internal/bridge"
	"github.com/nupi-ai/stt-whisper-bridge/internal/engine"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

func newBridge(t *testing.T) (*bridge.Bridge, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := stt.New[*engine.StubContext](engine.NewStubBackend(logger, "base"), stt.WithLogger(logger))
	b := bridge.New(svc, logger)
	t.Cleanup(func() { _ = b.Close() })

	model := filepath.Join(t.TempDir(), "model.bin")
	if err := os.WriteFile(model, []byte("model"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return b, model
}

func TestBridgeLifecycle(t *testing.T) {
	b, model := newBridge(t)

	if err := b.InitParams(true, false, true, false, false, "EN", 2, 0, true, false); err != nil {
		t.Fatalf("InitParams: %v", err)
	}
	token, err := b.InitContext(model)
	if err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	if token <= 0 {
		t.Fatalf("expected positive token, got %d", token)
	}

	text, err := b.FullTranscribe(context.Background(), token, make([]float32, 3))
	if err != nil {
		t.Fatalf("FullTranscribe: %v", err)
	}
	if text != "[stub:base] received 3 samples (lang=en)" {
		t.Fatalf("unexpected transcript %q", text)
	}

	text, err = b.FullTranscribePCM16(context.Background(), token, []byte{0, 0, 1, 0})
	if err != nil {
		t.Fatalf("FullTranscribePCM16: %v", err)
	}
	if text != "[stub:base] received 2 samples (lang=en)" {
		t.Fatalf("unexpected PCM transcript %q", text)
	}

	if err := b.FreeContext(token); err != nil {
		t.Fatalf("FreeContext: %v", err)
	}
	if err := b.FreeContext(token); bridge.CodeOf(err) != bridge.CodeInvalidHandle {
		t.Fatalf("second FreeContext code = %v (%v), want invalid_handle", bridge.CodeOf(err), err)
	}
	if _, err := b.FullTranscribe(context.Background(), token, []float32{0}); bridge.CodeOf(err) != bridge.CodeInvalidHandle {
		t.Fatalf("FullTranscribe on freed token code = %v", bridge.CodeOf(err))
	}
	if got := b.Service().Stats().Contexts; got != 0 {
		t.Fatalf("expected no open contexts, got %d", got)
	}
}

func TestBridgeInitContextFailureReturnsZero(t *testing.T) {
	b, _ := newBridge(t)

	token, err := b.InitContext(filepath.Join(t.TempDir(), "missing.bin"))
	if token != 0 {
		t.Fatalf("expected 0 token on failure, got %d", token)
	}
	if bridge.CodeOf(err) != bridge.CodeLoadError {
		t.Fatalf("code = %v (%v), want load_error", bridge.CodeOf(err), err)
	}
}

func TestBridgeRejectsNonPositiveTokens(t *testing.T) {
	b, _ := newBridge(t)
	for _, token := range []int64{0, -1, -1 << 40} {
		if err := b.FreeContext(token); !errors.Is(err, stt.ErrInvalidHandle) {
			t.Fatalf("FreeContext(%d) = %v", token, err)
		}
		if _, err := b.FullTranscribe(context.Background(), token, []float32{0}); !errors.Is(err, stt.ErrInvalidHandle) {
			t.Fatalf("FullTranscribe(%d) = %v", token, err)
		}
	}
}

func TestBridgeInvalidParams(t *testing.T) {
	b, _ := newBridge(t)
	err := b.InitParams(false, false, false, false, false, "en", -1, 0, false, false)
	if bridge.CodeOf(err) != bridge.CodeInvalidArgument {
		t.Fatalf("code = %v (%v), want invalid_argument", bridge.CodeOf(err), err)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want bridge.Code
	}{
		{nil, bridge.CodeOK},
		{fmt.Errorf("x: %w", stt.ErrLoad), bridge.CodeLoadError},
		{fmt.Errorf("x: %w", stt.ErrInvalidHandle), bridge.CodeInvalidHandle},
		{fmt.Errorf("x: %w", stt.ErrInference), bridge.CodeInferenceError},
		{context.Canceled, bridge.CodeInferenceError},
		{stt.ErrInvalidConfig, bridge.CodeInvalidArgument},
		{stt.ErrNotConfigured, bridge.CodeNotConfigured},
		{stt.ErrClosed, bridge.CodeInternal},
		{errors.New("boom"), bridge.CodeInternal},
	}
	for _, tc := range tests {
		if got := bridge.CodeOf(tc.err); got != tc.want {
			t.Errorf("CodeOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
