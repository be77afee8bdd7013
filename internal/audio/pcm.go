package audio

import (
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	// CaptureSampleRate is the outbound microphone format: 16 kHz mono PCM16.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the default whisper rate when the mime type
	// carries no rate parameter.
	PlaybackSampleRate = 24000
	// FramesPerBuffer is the capture buffer size in samples; one full buffer
	// becomes one binary frame on the wire.
	FramesPerBuffer = 4096
)

// FloatToPCM16 converts normalized float samples to 16-bit little-endian
// PCM with symmetric clipping: values are clamped to [-1, 1], then scaled by
// 32767 for non-negative and 32768 for negative samples, so 1.0 → 32767,
// -1.0 → -32768 and 0 → 0.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s >= 0 {
			v = int16(s * 32767)
		} else {
			v = int16(s * 32768)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat converts 16-bit little-endian PCM to normalized floats
// (divide by 32768). A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// Resample converts samples from one rate to another by linear
// interpolation. Good enough for speech whispers; returns the input when the
// rates already match.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(from) / float64(to)
	n := int(float64(len(samples)) / ratio)
	if n < 1 {
		n = 1
	}

	out := make([]float32, n)
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// RateFromMime extracts the rate parameter from a mime type such as
// "audio/pcm;rate=24000", returning fallback when absent or unparseable.
func RateFromMime(mime string, fallback int) int {
	for _, part := range strings.Split(mime, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "rate=") {
			continue
		}
		rate, err := strconv.Atoi(strings.TrimPrefix(part, "rate="))
		if err != nil || rate <= 0 {
			return fallback
		}
		return rate
	}
	return fallback
}
