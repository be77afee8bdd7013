package session

import (
	"context"
	"time"

	"github.com/sjawhar/coachwire/internal/audio"
	"github.com/sjawhar/coachwire/internal/meeting"
	"github.com/sjawhar/coachwire/internal/nudge"
	"github.com/sjawhar/coachwire/internal/protocol"
	"github.com/sjawhar/coachwire/internal/screen"
)

// Connection is the slice of conn.Manager the orchestrator drives. A fresh
// connection is built per meeting through the connection factory. The
// orchestrator never polls connection state; it reacts to the hooks.
type Connection interface {
	Open(ctx context.Context, url string) error
	Send(msg any)
	SendBinary(frame []byte)
	Close()
}

// MicPipeline captures microphone audio and pushes binary frames at the
// given sender while running.
type MicPipeline interface {
	Start(sender audio.FrameSender) error
	Stop()
	Running() bool
}

// ScreenPipeline periodically captures the shared display and pushes
// screen_frame messages at the given sender while running.
type ScreenPipeline interface {
	Start(sender screen.MessageSender) error
	Stop()
	Running() bool
	OnEnded(fn func())
}

// WhisperPlayer plays synthesized agent speech.
type WhisperPlayer interface {
	Init() error
	Play(b64Data, mimeType string) error
	Destroy()
}

// SummaryArchive persists a completed summary. Optional.
type SummaryArchive interface {
	SaveSummary(meetingID string, receivedAt time.Time, markdown string, rec protocol.SummaryRecord) error
}

// SummaryExporter writes the rendered summary to the export directory.
// Optional.
type SummaryExporter interface {
	WriteFile(meetingID, markdown string) (string, error)
}

// SummaryUploader pushes the rendered summary to remote storage. Optional.
type SummaryUploader interface {
	UploadSummary(meetingID, markdown string) error
}

// EventSink receives everything the user-facing view needs to render. All
// methods may be called from connection and timer goroutines.
type EventSink interface {
	PhaseChanged(phase Phase)
	TimerTick(snap meeting.Snapshot)
	NudgeShown(n protocol.Nudge)
	NudgeRemoved(n protocol.Nudge, reason nudge.RemovalReason)
	StateUpdated(currentTopic string, actionItemsCount int, elapsedMinutes float64)
	SummaryPending()
	SummaryReady(meetingID, markdown string)
	Notice(message string)
	Failure(err error)
}
