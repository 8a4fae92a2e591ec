package config_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/nupi-ai/stt-whisper-bridge/internal/config"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestLoaderDefaults(t *testing.T) {
	loader := config.Loader{Lookup: mapLookup(nil)}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertEqual(t, config.DefaultListenAddr, cfg.ListenAddr, "listen addr")
	assertEqual(t, config.DefaultModel, cfg.ModelVariant, "model variant")
	assertEqual(t, config.DefaultLanguage, cfg.Language, "language")
	assertEqual(t, config.DefaultLogLevel, cfg.LogLevel, "log level")
	assertEqual(t, config.DefaultDataDir, cfg.DataDir, "data dir")
	assertEqual(t, config.DefaultBackend, cfg.Backend, "backend")
	if cfg.ModelPath != "" {
		t.Fatalf("expected empty model path, got %q", cfg.ModelPath)
	}
	if cfg.UseStubEngine || cfg.StrictConfig || cfg.Concurrent || cfg.AutoDownload {
		t.Fatalf("expected boolean switches disabled by default: %+v", cfg)
	}
	if cfg.UseGPU != nil {
		t.Fatalf("expected use_gpu default (nil), got %v", cfg.UseGPU)
	}
	if cfg.FlashAttention != nil {
		t.Fatalf("expected flash_attention default (nil), got %v", cfg.FlashAttention)
	}
	if cfg.Threads != nil {
		t.Fatalf("expected threads default (nil), got %v", *cfg.Threads)
	}
	if cfg.MaxMessageBytes != config.DefaultMaxMessageBytes {
		t.Fatalf("expected max message bytes %d, got %d", config.DefaultMaxMessageBytes, cfg.MaxMessageBytes)
	}
}

func TestLoaderOverrides(t *testing.T) {
	env := map[string]string{
		"WHISPER_BRIDGE_CONFIG":          `{"model_variant":"small","language":"pl","log_level":"debug","data_dir":"/tmp/data","model_path":"/tmp/models/custom.bin","use_gpu":false,"flash_attention":true,"threads":4}`,
		"WHISPER_BRIDGE_LISTEN_ADDR":     "0.0.0.0:6000",
		"WHISPER_BRIDGE_LOG_LEVEL":       "warn",
		"WHISPER_BRIDGE_MODEL_VARIANT":   "medium",
		"WHISPER_BRIDGE_LANGUAGE":        "en",
		"WHISPER_BRIDGE_DATA_DIR":        "/var/lib/whisper",
		"WHISPER_BRIDGE_MODEL_PATH":      "/var/lib/whisper/models/medium.bin",
		"WHISPER_BRIDGE_USE_STUB_ENGINE": "true",
		"WHISPER_BRIDGE_USE_GPU":         "true",
		"WHISPER_BRIDGE_FLASH_ATTENTION": "false",
		"WHISPER_BRIDGE_THREADS":         "6",
		"WHISPER_BRIDGE_STRICT_CONFIG":   "1",
	}

	cfg, err := config.Loader{Lookup: mapLookup(env)}.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	assertEqual(t, "0.0.0.0:6000", cfg.ListenAddr, "listen addr")
	assertEqual(t, "medium", cfg.ModelVariant, "model variant")
	assertEqual(t, "en", cfg.Language, "language")
	assertEqual(t, "warn", cfg.LogLevel, "log level")
	assertEqual(t, "/var/lib/whisper", cfg.DataDir, "data dir")
	assertEqual(t, "/var/lib/whisper/models/medium.bin", cfg.ModelPath, "model path")
	assertEqual(t, "stub", cfg.Backend, "backend forced by use_stub_engine")
	assertBool(t, true, cfg.UseStubEngine, "use stub engine")
	assertBool(t, true, cfg.StrictConfig, "strict config")
	assertBoolPtr(t, true, cfg.UseGPU, "use gpu")
	assertBoolPtr(t, false, cfg.FlashAttention, "flash attention")
	assertIntPtr(t, 6, cfg.Threads, "threads")
}

func TestLoaderYAMLFileIsLowestPrecedence(t *testing.T) {
	files := map[string]string{
		"/etc/whisper-bridge.yaml": `
listen_addr: 127.0.0.1:7000
backend: exec
exec_command: "whisper-cli --no-gpu"
model_variant: tiny
metrics_addr: 127.0.0.1:9464
concurrent: true
`,
	}
	env := map[string]string{
		"WHISPER_BRIDGE_CONFIG_FILE":  "/etc/whisper-bridge.yaml",
		"WHISPER_BRIDGE_CONFIG":       `{"model_variant":"small"}`,
		"WHISPER_BRIDGE_METRICS_ADDR": ":9100",
	}
	loader := config.Loader{
		Lookup: mapLookup(env),
		ReadFile: func(path string) ([]byte, error) {
			data, ok := files[path]
			if !ok {
				return nil, os.ErrNotExist
			}
			return []byte(data), nil
		},
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertEqual(t, "127.0.0.1:7000", cfg.ListenAddr, "listen addr from file")
	assertEqual(t, "exec", cfg.Backend, "backend from file")
	assertEqual(t, "whisper-cli --no-gpu", cfg.ExecCommand, "exec command from file")
	assertEqual(t, "small", cfg.ModelVariant, "model variant from JSON")
	assertEqual(t, ":9100", cfg.MetricsAddr, "metrics addr from env")
	assertBool(t, true, cfg.Concurrent, "concurrent from file")
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad json", map[string]string{"WHISPER_BRIDGE_CONFIG": `{`}, "WHISPER_BRIDGE_CONFIG"},
		{"missing file", map[string]string{"WHISPER_BRIDGE_CONFIG_FILE": "/nope.yaml"}, "/nope.yaml"},
		{"bad bool", map[string]string{"WHISPER_BRIDGE_STRICT_CONFIG": "maybe"}, "WHISPER_BRIDGE_STRICT_CONFIG"},
		{"bad threads", map[string]string{"WHISPER_BRIDGE_THREADS": "many"}, "WHISPER_BRIDGE_THREADS"},
		{"negative threads", map[string]string{"WHISPER_BRIDGE_THREADS": "-1"}, "threads"},
		{"unknown backend", map[string]string{"WHISPER_BRIDGE_BACKEND": "onnx"}, "unknown backend"},
		{"exec without command", map[string]string{"WHISPER_BRIDGE_BACKEND": "exec"}, "exec_command"},
		{"unknown log level", map[string]string{"WHISPER_BRIDGE_LOG_LEVEL": "loud"}, "log level"},
		{"negative message size", map[string]string{"WHISPER_BRIDGE_MAX_MESSAGE_BYTES": "-1"}, "max_message_bytes"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			loader := config.Loader{
				Lookup: mapLookup(tc.env),
				ReadFile: func(string) ([]byte, error) {
					return nil, errors.New("no such file")
				},
			}
			_, err := loader.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoaderThreadsAuto(t *testing.T) {
	env := map[string]string{
		"WHISPER_BRIDGE_CONFIG": `{"threads":0}`,
	}

	cfg, err := config.Loader{Lookup: mapLookup(env)}.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Threads != nil {
		t.Fatalf("expected threads nil when configured as 0, got %v", *cfg.Threads)
	}
	if cfg.ThreadCount() != 0 {
		t.Fatalf("expected ThreadCount 0, got %d", cfg.ThreadCount())
	}
}

func TestLoaderMaxMessageBytes(t *testing.T) {
	env := map[string]string{
		"WHISPER_BRIDGE_CONFIG":            `{"max_message_bytes":1024}`,
		"WHISPER_BRIDGE_MAX_MESSAGE_BYTES": "8388608",
	}
	cfg, err := config.Loader{Lookup: mapLookup(env)}.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.MaxMessageBytes != 8<<20 {
		t.Fatalf("expected env override 8 MiB, got %d", cfg.MaxMessageBytes)
	}
}

func assertEqual(t *testing.T, want, got, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %q, got %q", label, want, got)
	}
}

func assertBool(t *testing.T, want, got bool, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %v, got %v", label, want, got)
	}
}

func assertBoolPtr(t *testing.T, want bool, got *bool, label string) {
	t.Helper()
	if got == nil {
		t.Fatalf("unexpected %s: want %v, got nil", label, want)
	}
	if *got != want {
		t.Fatalf("unexpected %s: want %v, got %v", label, want, *got)
	}
}

func assertIntPtr(t *testing.T, want int, got *int, label string) {
	t.Helper()
	if got == nil {
		t.Fatalf("unexpected %s: want %d, got nil", label, want)
	}
	if *got != want {
		t.Fatalf("unexpected %s: want %d, got %d", label, want, *got)
	}
}
