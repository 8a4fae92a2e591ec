package config

import (
	"fmt"
	"strings"
)

const (
	// DefaultListenAddr is used when no explicit gRPC address is configured.
	DefaultListenAddr = "127.0.0.1:50051"
	DefaultModel      = "base"
	DefaultLanguage   = "en"
	DefaultLogLevel   = "info"
	DefaultDataDir    = "data"
	DefaultBackend    = "native"

	// DefaultMaxMessageBytes bounds a single gRPC message. JSON-encoded
	// float samples take roughly 11 bytes each, so this admits several
	// minutes of 16 kHz audio per Transcribe call.
	DefaultMaxMessageBytes = 64 << 20
)

var (
	validBackends  = []string{"native", "gowhisper", "exec", "stub"}
	validLogLevels = []string{"debug", "info", "warn", "warning", "error"}
)

// Config captures bootstrap configuration extracted from environment
// variables, the JSON payload in WHISPER_BRIDGE_CONFIG, or the YAML file
// named by WHISPER_BRIDGE_CONFIG_FILE.
type Config struct {
	ListenAddr  string `json:"listen_addr" yaml:"listen_addr"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	Backend       string `json:"backend" yaml:"backend"`
	UseStubEngine bool   `json:"use_stub_engine" yaml:"use_stub_engine"`
	ExecCommand   string `json:"exec_command" yaml:"exec_command"`

	ModelVariant string `json:"model_variant" yaml:"model_variant"`
	ModelPath    string `json:"model_path" yaml:"model_path"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	AutoDownload bool   `json:"auto_download" yaml:"auto_download"`

	// Language and Threads seed the transcription parameters used by
	// sttctl when the caller passes none.
	Language string `json:"language" yaml:"language"`
	Threads  *int   `json:"threads" yaml:"threads"`

	UseGPU         *bool `json:"use_gpu" yaml:"use_gpu"`
	FlashAttention *bool `json:"flash_attention" yaml:"flash_attention"`

	StrictConfig bool `json:"strict_config" yaml:"strict_config"`
	Concurrent   bool `json:"concurrent" yaml:"concurrent"`

	// MaxMessageBytes caps gRPC messages in both directions.
	MaxMessageBytes int `json:"max_message_bytes" yaml:"max_message_bytes"`

	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool   `json:"otlp_insecure" yaml:"otlp_insecure"`
}

// Validate applies defaults, checks required fields, and rejects out-of-range
// values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.ModelVariant == "" {
		c.ModelVariant = DefaultModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.UseStubEngine {
		c.Backend = "stub"
	}
	if !contains(validBackends, c.Backend) {
		return fmt.Errorf("config: unknown backend %q (want one of %s)", c.Backend, strings.Join(validBackends, ", "))
	}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if c.Backend == "exec" && strings.TrimSpace(c.ExecCommand) == "" {
		return fmt.Errorf("config: exec backend requires exec_command")
	}
	if c.Threads != nil && *c.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0, got %d", *c.Threads)
	}
	if c.Threads != nil && *c.Threads == 0 {
		c.Threads = nil
	}
	if c.MaxMessageBytes < 0 {
		return fmt.Errorf("config: max_message_bytes must be >= 0, got %d", c.MaxMessageBytes)
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return nil
}

// ThreadCount returns the configured thread count, or zero for the engine
// default.
func (c Config) ThreadCount() int {
	if c.Threads == nil {
		return 0
	}
	return *c.Threads
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
