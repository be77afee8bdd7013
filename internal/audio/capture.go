package audio

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// FrameSender is the connection surface the capture pipeline writes to.
// Sends are fire-and-forget: the connection refuses them while not open, so
// frames produced around a reconnect are dropped rather than queued.
type FrameSender interface {
	SendBinary(frame []byte)
}

// Capture pulls mono float32 samples from the default microphone at 16 kHz
// and ships each full 4096-sample buffer as one PCM16-LE binary frame.
type Capture struct {
	mu      sync.Mutex
	stream  captureStream
	running bool
	logf    func(format string, args ...any)

	// openStream is swappable in tests so the pipeline logic can run without
	// an audio device.
	openStream func(buf []float32) (captureStream, error)
}

type captureStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

func NewCapture() *Capture {
	c := &Capture{logf: log.Printf}
	c.openStream = func(buf []float32) (captureStream, error) {
		return portaudio.OpenDefaultStream(1, 0, float64(CaptureSampleRate), len(buf), buf)
	}
	return c
}

// Start opens the microphone and begins streaming frames to sender. Device
// acquisition failures are returned synchronously; the pipeline simply stays
// off. Calling Start while running is an error.
func (c *Capture) Start(sender FrameSender) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("audio capture already running")
	}
	c.mu.Unlock()

	buf := make([]float32, FramesPerBuffer)
	stream, err := c.openStream(buf)
	if err != nil {
		return fmt.Errorf("open microphone stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start microphone stream: %w", err)
	}

	c.mu.Lock()
	c.running = true
	c.stream = stream
	c.mu.Unlock()

	go c.loop(stream, buf, sender)
	return nil
}

func (c *Capture) loop(stream captureStream, buf []float32, sender FrameSender) {
	for {
		if !c.isRunning() {
			return
		}
		if err := stream.Read(); err != nil {
			if c.isRunning() {
				c.logf("audio: capture read failed: %v", err)
				c.Stop()
			}
			return
		}
		// Re-check after the blocking read so a Stop issued mid-buffer
		// suppresses the send that was already in flight.
		if !c.isRunning() {
			return
		}
		sender.SendBinary(FloatToPCM16(buf))
	}
}

// Stop releases the microphone and sampling stream. Idempotent and safe to
// call when not started; the device is released on every exit path.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
		_ = stream.Close()
	}
}

// Running reports whether the pipeline currently holds the microphone.
func (c *Capture) Running() bool { return c.isRunning() }

func (c *Capture) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
