package engine

// NativeOptions configures engine-level context parameters for the native
// backends. Nil fields keep whisper.cpp defaults.
type NativeOptions struct {
	UseGPU         *bool
	FlashAttention *bool
}
