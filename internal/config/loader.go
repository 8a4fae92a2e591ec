package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognised by Loader.
const (
	EnvConfigFile = "WHISPER_BRIDGE_CONFIG_FILE"
	EnvConfigJSON = "WHISPER_BRIDGE_CONFIG"
	envPrefix     = "WHISPER_BRIDGE_"
)

// Loader loads configuration from a YAML file, a JSON payload and
// individual environment variables, in that order of increasing precedence.
// Tests can override Lookup and ReadFile to inject deterministic inputs.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load retrieves the bridge configuration and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Config{
		ListenAddr: DefaultListenAddr,
	}

	if path, ok := l.Lookup(EnvConfigFile); ok && strings.TrimSpace(path) != "" {
		if err := l.applyYAMLFile(strings.TrimSpace(path), &cfg); err != nil {
			return Config{}, err
		}
	}

	if raw, ok := l.Lookup(EnvConfigJSON); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	lookup := l.Lookup
	overrideString(lookup, envPrefix+"LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(lookup, envPrefix+"METRICS_ADDR", &cfg.MetricsAddr)
	overrideString(lookup, envPrefix+"LOG_LEVEL", &cfg.LogLevel)
	overrideString(lookup, envPrefix+"BACKEND", &cfg.Backend)
	overrideString(lookup, envPrefix+"EXEC_COMMAND", &cfg.ExecCommand)
	overrideString(lookup, envPrefix+"MODEL_VARIANT", &cfg.ModelVariant)
	overrideString(lookup, envPrefix+"MODEL_PATH", &cfg.ModelPath)
	overrideString(lookup, envPrefix+"DATA_DIR", &cfg.DataDir)
	overrideString(lookup, envPrefix+"LANGUAGE", &cfg.Language)
	overrideString(lookup, envPrefix+"OTLP_ENDPOINT", &cfg.OTLPEndpoint)

	for key, target := range map[string]*bool{
		"USE_STUB_ENGINE": &cfg.UseStubEngine,
		"AUTO_DOWNLOAD":   &cfg.AutoDownload,
		"STRICT_CONFIG":   &cfg.StrictConfig,
		"CONCURRENT":      &cfg.Concurrent,
		"OTLP_INSECURE":   &cfg.OTLPInsecure,
	} {
		if err := overrideBool(lookup, envPrefix+key, target); err != nil {
			return Config{}, err
		}
	}
	if err := overrideBoolPtr(lookup, envPrefix+"USE_GPU", &cfg.UseGPU); err != nil {
		return Config{}, err
	}
	if err := overrideBoolPtr(lookup, envPrefix+"FLASH_ATTENTION", &cfg.FlashAttention); err != nil {
		return Config{}, err
	}
	if err := overrideIntPtr(lookup, envPrefix+"THREADS", &cfg.Threads); err != nil {
		return Config{}, err
	}
	var maxMessage *int
	if err := overrideIntPtr(lookup, envPrefix+"MAX_MESSAGE_BYTES", &maxMessage); err != nil {
		return Config{}, err
	}
	if maxMessage != nil {
		cfg.MaxMessageBytes = *maxMessage
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l Loader) applyYAMLFile(path string, cfg *Config) error {
	data, err := l.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// applyJSON decodes over the current values; fields absent from the payload
// keep what earlier layers set.
func applyJSON(raw string, cfg *Config) error {
	if err := json.Unmarshal([]byte(raw), cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", EnvConfigJSON, err)
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func overrideBoolPtr(lookup func(string) (string, bool), key string, target **bool) error {
	var v bool
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	if err := overrideBool(lookup, key, &v); err != nil {
		return err
	}
	*target = &v
	return nil
}

func overrideIntPtr(lookup func(string) (string, bool), key string, target **int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = &parsed
	return nil
}
