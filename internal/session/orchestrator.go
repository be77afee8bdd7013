// Package session drives the meeting lifecycle. The orchestrator owns the
// phase machine, wires protocol events to the pipelines and the view, and
// is the only component that starts or stops anything.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/coachwire/internal/config"
	"github.com/sjawhar/coachwire/internal/conn"
	"github.com/sjawhar/coachwire/internal/meeting"
	"github.com/sjawhar/coachwire/internal/nudge"
	"github.com/sjawhar/coachwire/internal/protocol"
	"github.com/sjawhar/coachwire/internal/summary"
)

// endGraceWindow is how long the connection is kept open after end_meeting
// so a trailing summary can still arrive.
const endGraceWindow = 10 * time.Second

// Deps are the orchestrator's collaborators. Archive, Exporter, and
// Uploader are optional; a nil value skips that step on summary receipt.
type Deps struct {
	Config   config.Config
	Mic      MicPipeline
	Screen   ScreenPipeline
	Player   WhisperPlayer
	Sink     EventSink
	Archive  SummaryArchive
	Exporter SummaryExporter
	Uploader SummaryUploader
}

type Orchestrator struct {
	cfg      config.Config
	mic      MicPipeline
	screen   ScreenPipeline
	player   WhisperPlayer
	sink     EventSink
	archive  SummaryArchive
	exporter SummaryExporter
	uploader SummaryUploader
	nudges   *nudge.Queue

	newConn func(hooks conn.Hooks, active func() bool) Connection
	newID   func() string
	grace   time.Duration
	logf    func(format string, args ...any)

	mu          sync.Mutex
	phase       Phase
	meetingID   string
	conn        Connection
	timer       *meeting.Timer
	graceTimer  *time.Timer
	micOn       bool
	shareOn     bool
	topic       string
	actionItems int
	elapsedMin  float64
	summaryMD   string
}

func NewOrchestrator(deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:      deps.Config,
		mic:      deps.Mic,
		screen:   deps.Screen,
		player:   deps.Player,
		sink:     deps.Sink,
		archive:  deps.Archive,
		exporter: deps.Exporter,
		uploader: deps.Uploader,
		nudges:   nudge.NewQueue(deps.Sink),
		newID:    uuid.NewString,
		grace:    endGraceWindow,
		logf:     log.Printf,
	}
	o.newConn = func(hooks conn.Hooks, active func() bool) Connection {
		return conn.NewManager(hooks, active)
	}
	if deps.Screen != nil {
		deps.Screen.OnEnded(o.shareEnded)
	}
	return o
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// MeetingID returns the identifier of the current meeting, empty in Setup.
func (o *Orchestrator) MeetingID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.meetingID
}

// Start begins a meeting: it generates a meeting id, dials the backend, and
// starts the mic pipeline and the session timer. A mic device failure is
// surfaced but does not abort the meeting; the mic simply stays off.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseSetup {
		from := o.phase
		o.mu.Unlock()
		return invalidTransition("start", from)
	}

	o.meetingID = o.newID()
	o.conn = o.newConn(conn.Hooks{
		OnOpen:    o.handleOpen,
		OnMessage: protocol.NewDispatcher(o).Dispatch,
		OnError:   o.handleTransportError,
	}, o.sessionActive)

	url, err := o.cfg.MeetingSocketURL(o.meetingID)
	if err != nil {
		o.meetingID = ""
		o.conn = nil
		o.mu.Unlock()
		return fmt.Errorf("meeting socket url: %w", err)
	}

	o.setPhaseLocked(PhaseConnecting)
	c := o.conn
	o.mu.Unlock()

	if err := c.Open(ctx, url); err != nil {
		o.mu.Lock()
		o.meetingID = ""
		o.conn = nil
		o.setPhaseLocked(PhaseSetup)
		o.mu.Unlock()
		return err
	}

	if err := o.player.Init(); err != nil {
		o.sink.Failure(fmt.Errorf("audio output unavailable: %w", err))
	}

	if err := o.mic.Start(c); err != nil {
		o.sink.Failure(fmt.Errorf("microphone unavailable: %w", err))
	} else {
		o.mu.Lock()
		o.micOn = true
		o.mu.Unlock()
	}

	timer := meeting.NewTimer(time.Duration(o.cfg.MeetingDurationMinutes)*time.Minute, o.sink.TimerTick)
	o.mu.Lock()
	o.timer = timer
	o.mu.Unlock()
	timer.Start()

	return nil
}

// ToggleMic flips the microphone while the meeting is active. It reports
// the new mic state. A device failure leaves the mic off without changing
// the session phase.
func (o *Orchestrator) ToggleMic() (bool, error) {
	o.mu.Lock()
	if o.phase != PhaseActive {
		from := o.phase
		o.mu.Unlock()
		return false, invalidTransition("toggle mic", from)
	}
	on := o.micOn
	c := o.conn
	o.mu.Unlock()

	if on {
		o.mic.Stop()
		o.setMicOn(false)
		return false, nil
	}

	if err := o.mic.Start(c); err != nil {
		return false, fmt.Errorf("microphone unavailable: %w", err)
	}
	o.setMicOn(true)
	return true, nil
}

// ToggleShare flips screen sharing while the meeting is active. It reports
// the new share state.
func (o *Orchestrator) ToggleShare() (bool, error) {
	o.mu.Lock()
	if o.phase != PhaseActive {
		from := o.phase
		o.mu.Unlock()
		return false, invalidTransition("toggle share", from)
	}
	on := o.shareOn
	c := o.conn
	o.mu.Unlock()

	if on {
		o.screen.Stop()
		o.setShareOn(false)
		return false, nil
	}

	if err := o.screen.Start(c); err != nil {
		return false, fmt.Errorf("screen capture unavailable: %w", err)
	}
	o.setShareOn(true)
	return true, nil
}

// SendText forwards a free-form user command to the agent.
func (o *Orchestrator) SendText(text string) error {
	o.mu.Lock()
	if o.phase != PhaseActive {
		from := o.phase
		o.mu.Unlock()
		return invalidTransition("send text", from)
	}
	c := o.conn
	o.mu.Unlock()

	c.Send(protocol.NewTextCommandMessage(text))
	return nil
}

// End finishes the meeting: it stops the timer and both capture pipelines,
// asks the agent for the final summary, and keeps the connection open for a
// grace window so the summary can arrive. The forced closure after the
// window is defensive cleanup, not part of the Summarized transition.
func (o *Orchestrator) End() error {
	o.mu.Lock()
	if o.phase != PhaseActive {
		from := o.phase
		o.mu.Unlock()
		return invalidTransition("end", from)
	}

	timer := o.timer
	c := o.conn
	o.setPhaseLocked(PhaseEnding)
	o.micOn = false
	o.shareOn = false
	o.graceTimer = time.AfterFunc(o.grace, func() {
		c.Close()
	})
	o.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	c.Send(protocol.NewEndMeetingMessage())
	o.mic.Stop()
	o.screen.Stop()
	o.sink.SummaryPending()
	return nil
}

// Reset returns to Setup from any phase, releasing everything the current
// meeting holds.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	c := o.conn
	timer := o.timer
	grace := o.graceTimer
	o.conn = nil
	o.timer = nil
	o.graceTimer = nil
	o.meetingID = ""
	o.micOn = false
	o.shareOn = false
	o.topic = ""
	o.actionItems = 0
	o.elapsedMin = 0
	o.summaryMD = ""
	o.setPhaseLocked(PhaseSetup)
	o.mu.Unlock()

	if grace != nil {
		grace.Stop()
	}
	if timer != nil {
		timer.Stop()
	}
	o.mic.Stop()
	o.screen.Stop()
	if c != nil {
		c.Close()
	}
	o.nudges.Clear()
}

// Nudges exposes the visible nudge set for the view and for dismissal.
func (o *Orchestrator) Nudges() *nudge.Queue { return o.nudges }

// SummaryMarkdown returns the rendered summary once the meeting is
// Summarized, or "" before then.
func (o *Orchestrator) SummaryMarkdown() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summaryMD
}

// TimerSnapshot returns the live timer snapshot, zero before Start.
func (o *Orchestrator) TimerSnapshot() meeting.Snapshot {
	o.mu.Lock()
	timer := o.timer
	o.mu.Unlock()
	if timer == nil {
		return meeting.Snapshot{}
	}
	return timer.Snapshot()
}

// sessionActive gates the connection manager's automatic reconnects.
func (o *Orchestrator) sessionActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase == PhaseActive
}

// handleOpen runs on every successful connection open. The backend builds
// a fresh agent session per socket, so the config handshake is repeated
// after a reconnect too, and the capture pipelines are resumed to match the
// user's last toggle state.
func (o *Orchestrator) handleOpen(reconnected bool) {
	o.mu.Lock()
	c := o.conn
	micOn := o.micOn
	shareOn := o.shareOn
	o.mu.Unlock()
	if c == nil {
		return
	}

	c.Send(protocol.NewConfigMessage(protocol.MeetingConfig{
		UserName:               o.cfg.UserName,
		MeetingDurationMinutes: o.cfg.MeetingDurationMinutes,
		AgendaItems:            o.cfg.AgendaItems,
	}))

	if !reconnected {
		return
	}
	if micOn && !o.mic.Running() {
		if err := o.mic.Start(c); err != nil {
			o.setMicOn(false)
			o.sink.Failure(fmt.Errorf("microphone unavailable after reconnect: %w", err))
		}
	}
	if shareOn && !o.screen.Running() {
		if err := o.screen.Start(c); err != nil {
			o.setShareOn(false)
			o.sink.Failure(fmt.Errorf("screen capture unavailable after reconnect: %w", err))
		}
	}
}

func (o *Orchestrator) handleTransportError(err error) {
	if errors.Is(err, conn.ErrRetriesExhausted) {
		o.sink.Failure(fmt.Errorf("connection lost and could not be restored; end the meeting and start again: %w", err))
		return
	}
	o.sink.Failure(err)
}

// shareEnded fires when the screen pipeline stops itself after repeated
// capture failures, e.g. the user revoked sharing at the platform level.
func (o *Orchestrator) shareEnded() {
	o.setShareOn(false)
	o.sink.Notice("screen sharing ended")
}

// ConnectionReady implements protocol.Handler.
func (o *Orchestrator) ConnectionReady(_ protocol.ConnectionReady) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseConnecting {
		o.setPhaseLocked(PhaseActive)
	}
}

// Nudge implements protocol.Handler.
func (o *Orchestrator) Nudge(n protocol.Nudge) {
	o.nudges.Show(n)
}

// AudioWhisper implements protocol.Handler.
func (o *Orchestrator) AudioWhisper(w protocol.AudioWhisper) {
	if err := o.player.Play(w.Data, w.MimeType); err != nil {
		o.logf("session: whisper playback failed: %v", err)
	}
}

// Summary implements protocol.Handler. The record is rendered once on
// receipt, fanned out to the export, archive, and upload sinks, and never
// mutated afterwards.
func (o *Orchestrator) Summary(rec protocol.SummaryRecord) {
	o.mu.Lock()
	if o.phase != PhaseEnding {
		phase := o.phase
		o.mu.Unlock()
		o.logf("session: ignoring summary while %s", phase)
		return
	}
	meetingID := o.meetingID
	c := o.conn
	grace := o.graceTimer
	o.graceTimer = nil

	markdown := summary.RenderMarkdown(rec)
	o.summaryMD = markdown
	o.setPhaseLocked(PhaseSummarized)
	o.mu.Unlock()

	if grace != nil {
		grace.Stop()
	}
	if c != nil {
		c.Close()
	}

	o.sink.SummaryReady(meetingID, markdown)

	if o.exporter != nil {
		if path, err := o.exporter.WriteFile(meetingID, markdown); err != nil {
			o.sink.Notice(fmt.Sprintf("summary export failed: %v", err))
		} else {
			o.sink.Notice(fmt.Sprintf("summary written to %s", path))
		}
	}
	if o.archive != nil {
		if err := o.archive.SaveSummary(meetingID, time.Now().UTC(), markdown, rec); err != nil {
			o.sink.Notice(fmt.Sprintf("summary archive failed: %v", err))
		}
	}
	if o.uploader != nil {
		if err := o.uploader.UploadSummary(meetingID, markdown); err != nil {
			o.sink.Notice(fmt.Sprintf("summary upload failed: %v", err))
		}
	}
}

// StateUpdate implements protocol.Handler. Absent fields keep their
// current values.
func (o *Orchestrator) StateUpdate(update protocol.StateUpdate) {
	o.mu.Lock()
	if update.CurrentTopic != nil {
		o.topic = *update.CurrentTopic
	}
	if update.ActionItemsCount != nil {
		o.actionItems = *update.ActionItemsCount
	}
	if update.ElapsedMinutes != nil {
		o.elapsedMin = *update.ElapsedMinutes
	}
	topic := o.topic
	count := o.actionItems
	elapsed := o.elapsedMin
	o.mu.Unlock()

	o.sink.StateUpdated(topic, count, elapsed)
}

// AgentError implements protocol.Handler. Agent-reported errors are
// transient notices; they never terminate the session.
func (o *Orchestrator) AgentError(message string) {
	o.sink.Notice(fmt.Sprintf("coach error: %s", message))
}

func (o *Orchestrator) setMicOn(on bool) {
	o.mu.Lock()
	o.micOn = on
	o.mu.Unlock()
}

func (o *Orchestrator) setShareOn(on bool) {
	o.mu.Lock()
	o.shareOn = on
	o.mu.Unlock()
}

func (o *Orchestrator) setPhaseLocked(phase Phase) {
	if o.phase == phase {
		return
	}
	o.phase = phase
	if o.sink != nil {
		go o.sink.PhaseChanged(phase)
	}
}
