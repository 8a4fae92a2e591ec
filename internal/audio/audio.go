// Package audio converts between the sample representations hosts deliver
// (PCM16 bytes, WAV files, CSV float dumps) and the mono float32 buffers the
// engines consume. It does not resample or remix.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// SampleRate is the rate expected by whisper models.
const SampleRate = 16000

// ErrUnsupportedFormat is returned for audio that is not 16 kHz mono PCM.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// PCM16ToFloat32 converts little-endian signed 16-bit PCM into samples in
// [-1, 1). A trailing odd byte is ignored.
func PCM16ToFloat32(buf []byte) []float32 {
	n := len(buf) / 2
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		u := binary.LittleEndian.Uint16(buf[2*i:])
		val := int16(u)
		samples[i] = float32(val) / 32768.0
	}
	return samples
}

// Float32ToPCM16 converts samples into signed 16-bit integers, clamping
// values outside [-1, 1].
func Float32ToPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int(v)
	}
	return out
}

// Duration returns the playback length of n samples at SampleRate in
// milliseconds.
func Duration(n int) int64 {
	return int64(n) * 1000 / SampleRate
}
