//go:build cgo

package engine

import (
	"context"
	"runtime/cgo"
	"unsafe"
)

// contextFromHandle recovers the context.Context registered for a running
// whisper_full call. userData points at a cgo.Handle owned by the caller.
func contextFromHandle(userData unsafe.Pointer) (context.Context, bool) {
	if userData == nil {
		return nil, false
	}

	handle := *(*cgo.Handle)(userData)
	if handle == 0 {
		return nil, false
	}
	var (
		value     any
		recovered bool
	)

	// Value panics on deleted handles.
	func() {
		defer func() {
			if r := recover(); r != nil {
				recovered = true
				value = nil
			}
		}()
		value = handle.Value()
	}()

	if recovered || value == nil {
		return nil, false
	}

	ctx, ok := value.(context.Context)
	return ctx, ok
}

// abortRequested is polled by the engine between decoding steps.
func abortRequested(userData unsafe.Pointer) bool {
	ctx, ok := contextFromHandle(userData)
	if !ok {
		return false
	}
	return ctx.Err() != nil
}
