package stt

import "errors"

var (
	// ErrLoad covers bad model paths, unrecognised model files and engine
	// resource exhaustion while opening a context.
	ErrLoad = errors.New("stt: model load failed")
	// ErrInvalidHandle is returned for handles that were never issued or have
	// already been closed.
	ErrInvalidHandle = errors.New("stt: invalid context handle")
	// ErrInference wraps engine failures during a transcription pass.
	ErrInference = errors.New("stt: inference failed")
	// ErrInvalidConfig is returned by Configure for out-of-range parameters.
	ErrInvalidConfig = errors.New("stt: invalid configuration")
	// ErrNotConfigured is returned by Transcribe in strict mode when Configure
	// was never called.
	ErrNotConfigured = errors.New("stt: transcription parameters not configured")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("stt: adapter closed")
)
