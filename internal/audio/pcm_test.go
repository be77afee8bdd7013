package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcm16At(data []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(data[i*2:]))
}

func TestFloatToPCM16_Extremes(t *testing.T) {
	out := FloatToPCM16([]float32{1.0, -1.0, 0.0})

	if got := pcm16At(out, 0); got != 32767 {
		t.Errorf("1.0 → %d, want 32767", got)
	}
	if got := pcm16At(out, 1); got != -32768 {
		t.Errorf("-1.0 → %d, want -32768", got)
	}
	if got := pcm16At(out, 2); got != 0 {
		t.Errorf("0.0 → %d, want 0", got)
	}
}

func TestFloatToPCM16_ClipsOutOfRange(t *testing.T) {
	out := FloatToPCM16([]float32{2.5, -3.0, 1.0001, -1.0001})

	if got := pcm16At(out, 0); got != 32767 {
		t.Errorf("2.5 → %d, want clipped 32767", got)
	}
	if got := pcm16At(out, 1); got != -32768 {
		t.Errorf("-3.0 → %d, want clipped -32768", got)
	}
	if got := pcm16At(out, 2); got != 32767 {
		t.Errorf("1.0001 → %d, want clipped 32767", got)
	}
	if got := pcm16At(out, 3); got != -32768 {
		t.Errorf("-1.0001 → %d, want clipped -32768", got)
	}
}

func TestFloatToPCM16_LittleEndian(t *testing.T) {
	out := FloatToPCM16([]float32{1.0})
	if out[0] != 0xFF || out[1] != 0x7F {
		t.Errorf("expected LE 0xFF 0x7F for 32767, got 0x%02X 0x%02X", out[0], out[1])
	}
}

func TestPCM16ToFloat_Normalization(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(-32768)))
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(data[4:], 0)

	samples := PCM16ToFloat(data)
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[0] != -1.0 {
		t.Errorf("-32768 → %f, want -1.0", samples[0])
	}
	if samples[1] != 0.5 {
		t.Errorf("16384 → %f, want 0.5", samples[1])
	}
	if samples[2] != 0 {
		t.Errorf("0 → %f, want 0", samples[2])
	}
}

func TestResample_LengthArithmetic(t *testing.T) {
	in := make([]float32, 24000) // 1 s at 24 kHz
	out := Resample(in, 24000, 16000)
	if len(out) != 16000 {
		t.Fatalf("24000→16000 Hz of 24000 samples = %d samples, want 16000", len(out))
	}
}

func TestResample_SameRateIsIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("expected same-rate resample to return the input untouched")
	}
}

func TestResample_InterpolatesBetweenSamples(t *testing.T) {
	// Doubling the rate should place midpoints between neighbors.
	in := []float32{0, 1}
	out := Resample(in, 1, 2)
	if len(out) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out))
	}
	if math.Abs(float64(out[1]-0.5)) > 1e-6 {
		t.Errorf("expected interpolated midpoint 0.5, got %f", out[1])
	}
}

func TestRateFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm", 24000},
		{"", 24000},
		{"audio/pcm;rate=abc", 24000},
		{"audio/pcm;rate=-1", 24000},
	}
	for _, tt := range tests {
		if got := RateFromMime(tt.mime, PlaybackSampleRate); got != tt.want {
			t.Errorf("RateFromMime(%q) = %d, want %d", tt.mime, got, tt.want)
		}
	}
}

func TestPlayback_Play_RejectsBadBase64BeforeTouchingDevice(t *testing.T) {
	p := NewPlayback()
	p.newContext = nil // would panic if the device path were reached

	if err := p.Play("!!not-base64!!", "audio/pcm;rate=24000"); err == nil {
		t.Fatal("expected decode error for invalid base64")
	}
}
