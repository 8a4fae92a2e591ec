package stt

import (
	"fmt"
	"strings"
)

const (
	// DefaultLanguage applies when a configuration leaves Language empty.
	DefaultLanguage = "en"
	// AutoLanguage asks the engine to detect the spoken language.
	AutoLanguage = "auto"
)

// Config carries the decoding parameters applied to every subsequent
// Transcribe call. It is copied on Configure; later changes by the caller have
// no effect.
type Config struct {
	// PrintRealtime makes the engine print partial results while decoding.
	PrintRealtime bool `json:"print_realtime" yaml:"print_realtime"`
	// PrintProgress makes the engine print progress and timing information.
	PrintProgress bool `json:"print_progress" yaml:"print_progress"`
	// PrintTimestamps includes segment timestamps in engine output.
	PrintTimestamps bool `json:"print_timestamps" yaml:"print_timestamps"`
	// PrintSpecial keeps special tokens (e.g. [_BEG_]) in segment text.
	PrintSpecial bool `json:"print_special" yaml:"print_special"`
	// Translate translates the transcript to English.
	Translate bool `json:"translate" yaml:"translate"`
	// Language is an ISO 639-1 code, or "auto".
	Language string `json:"language" yaml:"language"`
	// Threads sizes the engine's worker pool; 0 keeps the engine default.
	Threads int `json:"threads" yaml:"threads"`
	// OffsetMs skips the first OffsetMs milliseconds of audio.
	OffsetMs int `json:"offset_ms" yaml:"offset_ms"`
	// NoContext disables reuse of previous text as the decoder prompt.
	NoContext bool `json:"no_context" yaml:"no_context"`
	// SingleSegment forces the engine to emit one segment.
	SingleSegment bool `json:"single_segment" yaml:"single_segment"`
}

// DefaultConfig returns the parameter set used by the reference harness:
// English, timestamps on, two threads, no context reuse.
func DefaultConfig() Config {
	return Config{
		PrintTimestamps: true,
		Language:        DefaultLanguage,
		Threads:         2,
		NoContext:       true,
	}
}

// Validate rejects values no engine can honour.
func (c Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("%w: threads must be >= 0, got %d", ErrInvalidConfig, c.Threads)
	}
	if c.OffsetMs < 0 {
		return fmt.Errorf("%w: offset_ms must be >= 0, got %d", ErrInvalidConfig, c.OffsetMs)
	}
	lang := strings.TrimSpace(c.Language)
	if strings.ContainsRune(lang, 0) {
		return fmt.Errorf("%w: language contains NUL byte", ErrInvalidConfig)
	}
	return nil
}

// Normalized returns a copy with the language trimmed, lower-cased and
// defaulted.
func (c Config) Normalized() Config {
	lang := strings.ToLower(strings.TrimSpace(c.Language))
	if lang == "" {
		lang = DefaultLanguage
	}
	c.Language = lang
	return c
}

// DetectLanguage reports whether the engine should detect the language itself.
func (c Config) DetectLanguage() bool {
	return strings.EqualFold(strings.TrimSpace(c.Language), AutoLanguage)
}
