package audio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Playback renders synthesized agent whispers. Each Play call is an
// independent fire-and-play unit: overlapping whispers mix in the output
// device rather than queueing behind each other.
type Playback struct {
	mu        sync.Mutex
	ctx       *oto.Context
	suspended bool
	players   map[*oto.Player]struct{}
	logf      func(format string, args ...any)

	// newContext is swappable in tests.
	newContext func(sampleRate int) (*oto.Context, error)
}

func NewPlayback() *Playback {
	p := &Playback{
		players: make(map[*oto.Player]struct{}),
		logf:    log.Printf,
	}
	p.newContext = func(sampleRate int) (*oto.Context, error) {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			// ~100ms at 24 kHz mono PCM16; small enough that whispers start
			// promptly, large enough to avoid underruns.
			BufferSize: 4800,
		})
		if err != nil {
			return nil, err
		}
		<-ready
		return ctx, nil
	}
	return p
}

// Init acquires the output device at the playback rate. Play calls it lazily,
// but callers that can should invoke it up front (output policy on some
// platforms wants device acquisition tied to a user action).
func (p *Playback) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initLocked()
}

func (p *Playback) initLocked() error {
	if p.ctx != nil {
		if p.suspended {
			if err := p.ctx.Resume(); err != nil {
				return fmt.Errorf("resume audio output: %w", err)
			}
			p.suspended = false
		}
		return nil
	}
	ctx, err := p.newContext(PlaybackSampleRate)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	p.ctx = ctx
	return nil
}

// Play decodes a base64 PCM16-LE whisper and schedules immediate playback.
// The sample rate comes from the mime type's rate parameter (default 24 kHz);
// payloads at other rates are resampled to the output context's rate.
func (p *Playback) Play(b64Data, mimeType string) error {
	raw, err := base64.StdEncoding.DecodeString(b64Data)
	if err != nil {
		return fmt.Errorf("decode whisper payload: %w", err)
	}
	if len(raw) < 2 {
		return nil
	}

	pcm := raw
	if rate := RateFromMime(mimeType, PlaybackSampleRate); rate != PlaybackSampleRate {
		samples := Resample(PCM16ToFloat(raw), rate, PlaybackSampleRate)
		pcm = FloatToPCM16(samples)
	}

	p.mu.Lock()
	if err := p.initLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.players[player] = struct{}{}
	p.mu.Unlock()

	player.Play()
	go p.reap(player, time.Duration(len(pcm)/2)*time.Second/PlaybackSampleRate)
	return nil
}

// reap closes a finished player. Polling IsPlaying after the nominal clip
// duration keeps Play itself non-blocking.
func (p *Playback) reap(player *oto.Player, clipLen time.Duration) {
	time.Sleep(clipLen)
	for player.IsPlaying() {
		time.Sleep(50 * time.Millisecond)
	}
	if err := player.Close(); err != nil {
		p.logf("audio: close whisper player: %v", err)
	}

	p.mu.Lock()
	delete(p.players, player)
	p.mu.Unlock()
}

// Destroy stops all in-flight whispers and releases the output device
// association. Called on session reset; idempotent.
func (p *Playback) Destroy() {
	p.mu.Lock()
	players := make([]*oto.Player, 0, len(p.players))
	for player := range p.players {
		players = append(players, player)
	}
	p.players = make(map[*oto.Player]struct{})
	ctx := p.ctx
	if ctx != nil && !p.suspended {
		p.suspended = true
	} else {
		ctx = nil
	}
	p.mu.Unlock()

	for _, player := range players {
		_ = player.Close()
	}
	if ctx != nil {
		// An oto context is process-wide and cannot be torn down; suspending
		// stops the device from pulling samples until the next Init resumes.
		_ = ctx.Suspend()
	}
}
