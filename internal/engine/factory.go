package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/stt-whisper-bridge/internal/models"
	"github.com/nupi-ai/stt-whisper-bridge/internal/stt"
)

// Backend names accepted in config.Config.Backend.
const (
	BackendNative    = "native"
	BackendGoBinding = "gowhisper"
	BackendExec      = "exec"
	BackendStub      = "stub"
)

var (
	// ErrNativeEngineUnavailable indicates the binary was built without the
	// whispercpp tag.
	ErrNativeEngineUnavailable = errors.New("engine: native backend unavailable")
	// ErrGoBindingUnavailable indicates the binary was built without the
	// whisper_go tag.
	ErrGoBindingUnavailable = errors.New("engine: go binding backend unavailable")
)

// New builds the transcription service selected by cfg and resolves the
// default model path hosts may open when they do not pass one. When the
// selected backend is not compiled in, New falls back to the stub backend
// and returns the reason alongside a usable service.
func New(cfg config.Config, manager *models.Manager, logger *slog.Logger, opts ...stt.Option) (stt.Service, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]stt.Option{stt.WithLogger(logger), stt.WithStrictConfig(cfg.StrictConfig)}, opts...)

	modelPath, resolveErr := resolveModel(cfg, manager, logger)

	stub := func() stt.Service {
		return stt.New[*StubContext](NewStubBackend(logger, cfg.ModelVariant), opts...)
	}

	switch cfg.Backend {
	case BackendStub:
		logger.Warn("stub engine forced by configuration")
		return stub(), modelPath, resolveErr

	case BackendExec:
		backend, err := NewExecBackend(logger, cfg.ExecCommand, "")
		if err != nil {
			return nil, "", err
		}
		logger.Info("exec engine ready", "command", cfg.ExecCommand, "model_path", modelPath)
		return stt.New[*ExecContext](backend, opts...), modelPath, resolveErr

	case BackendGoBinding:
		if !GoBindingAvailable() {
			logger.Warn("go binding disabled at build time; using stub engine", "model_path", modelPath)
			return stub(), modelPath, ErrGoBindingUnavailable
		}
		backend, err := NewGoBindingBackend(logger)
		if err != nil {
			logger.Error("go binding initialisation failed; using stub", "error", err)
			return stub(), modelPath, err
		}
		logger.Info("go binding engine ready", "model_path", modelPath)
		return stt.New[*GoBindingContext](backend, opts...), modelPath, resolveErr

	default:
		if !NativeAvailable() {
			logger.Warn("native backend disabled at build time; using stub engine", "model_path", modelPath)
			return stub(), modelPath, ErrNativeEngineUnavailable
		}
		backend, err := NewNativeBackend(logger, NativeOptions{
			UseGPU:         cfg.UseGPU,
			FlashAttention: cfg.FlashAttention,
		})
		if err != nil {
			logger.Error("native engine initialisation failed; using stub", "error", err)
			return stub(), modelPath, err
		}
		logger.Info("native engine ready", "model_path", modelPath)
		return stt.New[*NativeContext](backend, opts...), modelPath, resolveErr
	}
}

// resolveModel finds the default model without failing service creation:
// hosts may still open explicit paths when nothing resolves here.
func resolveModel(cfg config.Config, manager *models.Manager, logger *slog.Logger) (string, error) {
	if manager == nil {
		return "", nil
	}
	if !cfg.AutoDownload {
		path, err := manager.Resolve(cfg.ModelVariant, cfg.ModelPath)
		if err != nil {
			logger.Warn("default model unresolved", "variant", cfg.ModelVariant, "error", err)
			return "", err
		}
		return path, nil
	}

	manifest, err := models.DefaultManifest()
	if err != nil {
		return "", err
	}
	path, err := manager.EnsureVariant(context.Background(), cfg.ModelVariant, models.EnsureOptions{
		Manifest: manifest,
		Override: cfg.ModelPath,
	})
	if err != nil {
		logger.Warn("model ensure failed", "variant", cfg.ModelVariant, "error", err)
		return "", err
	}
	return path, nil
}
