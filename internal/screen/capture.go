package screen

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"golang.org/x/image/draw"

	"github.com/sjawhar/coachwire/internal/protocol"
)

const (
	// FrameInterval is the fixed screen capture period.
	FrameInterval = 2 * time.Second

	// MaxWidth/MaxHeight cap the emitted frame; captures are scaled down to
	// fit, never up.
	MaxWidth  = 1280
	MaxHeight = 720

	jpegQuality = 70

	// maxConsecutiveFailures is how many grabs may fail in a row before the
	// pipeline concludes the display is gone and ends the share itself.
	maxConsecutiveFailures = 3
)

// MessageSender is the connection surface the pipeline sends JSON frames to.
type MessageSender interface {
	Send(msg any)
}

// Pipeline rasterizes the shared display every FrameInterval, scales it to
// fit 1280×720, JPEG-encodes it, and ships it as a screen_frame message.
type Pipeline struct {
	display  int
	interval time.Duration
	logf     func(format string, args ...any)

	// grab is swappable in tests.
	grab func(display int) (image.Image, error)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	onEnded func()
}

func NewPipeline(display int) *Pipeline {
	return &Pipeline{
		display:  display,
		interval: FrameInterval,
		logf:     log.Printf,
		grab: func(display int) (image.Image, error) {
			if display < 0 || display >= screenshot.NumActiveDisplays() {
				return nil, fmt.Errorf("display %d not available", display)
			}
			return screenshot.CaptureDisplay(display)
		},
	}
}

// OnEnded registers the cross-cutting "share ended" hook, fired when the
// pipeline stops itself because the display became uncapturable. It is not
// fired on explicit Stop.
func (p *Pipeline) OnEnded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnded = fn
}

// Start validates that the display is capturable and begins the periodic
// frame loop. Acquisition failures are returned synchronously so the caller
// can surface them and leave sharing off.
func (p *Pipeline) Start(sender MessageSender) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("screen capture already running")
	}
	p.mu.Unlock()

	if _, err := p.grab(p.display); err != nil {
		return fmt.Errorf("acquire display %d: %w", p.display, err)
	}

	stop := make(chan struct{})
	p.mu.Lock()
	p.running = true
	p.stop = stop
	p.mu.Unlock()

	go p.loop(sender, stop)
	return nil
}

func (p *Pipeline) loop(sender MessageSender, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		img, err := p.grab(p.display)
		if err != nil {
			failures++
			p.logf("screen: capture failed (%d/%d): %v", failures, maxConsecutiveFailures, err)
			if failures >= maxConsecutiveFailures {
				p.endShare()
				return
			}
			continue
		}
		failures = 0

		b64, err := EncodeFrame(img)
		if err != nil {
			p.logf("screen: encode failed: %v", err)
			continue
		}
		sender.Send(protocol.NewScreenFrameMessage(b64))
	}
}

// endShare is the display-revoked path: stop the pipeline and notify the
// orchestrator so UI state updates without polling.
func (p *Pipeline) endShare() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stop = nil
	ended := p.onEnded
	p.mu.Unlock()

	if ended != nil {
		ended()
	}
}

// Stop halts the frame loop and releases capture state. Idempotent; does not
// fire the OnEnded hook.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

// Running reports whether the share is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// FitDimensions scales (w, h) to fit within (maxW, maxH) preserving aspect
// ratio. Frames already inside the cap come back unchanged: scale-down only.
func FitDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}

// EncodeFrame scales img to fit the frame cap, encodes it as JPEG at fixed
// quality, and returns the base64 payload for the screen_frame message.
func EncodeFrame(img image.Image) (string, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	outW, outH := FitDimensions(w, h, MaxWidth, MaxHeight)

	if outW != w || outH != h {
		scaled := image.NewRGBA(image.Rect(0, 0, outW, outH))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
