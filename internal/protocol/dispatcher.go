package protocol

import (
	"encoding/json"
	"log"
)

// Handler receives decoded inbound messages. One method per wire type keeps
// the routing exhaustive: a new message type does not compile until it has
// an explicit home here.
type Handler interface {
	ConnectionReady(ready ConnectionReady)
	Nudge(nudge Nudge)
	AudioWhisper(whisper AudioWhisper)
	Summary(record SummaryRecord)
	StateUpdate(update StateUpdate)
	AgentError(message string)
}

// Dispatcher classifies inbound text frames by type and routes each to the
// handler. Malformed frames are protocol errors, not fatal: they are logged
// and dropped so one bad message never kills the read loop.
type Dispatcher struct {
	handler Handler
	logf    func(format string, args ...any)
}

func NewDispatcher(handler Handler) *Dispatcher {
	return &Dispatcher{handler: handler, logf: log.Printf}
}

// SetLogf overrides the dispatcher's log sink. Tests use this to capture
// drop decisions without touching the global logger.
func (d *Dispatcher) SetLogf(logf func(format string, args ...any)) {
	if logf != nil {
		d.logf = logf
	}
}

// Dispatch parses one inbound text frame and routes it. It never returns an
// error to the read loop; all failure modes are absorbed here.
func (d *Dispatcher) Dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.logf("protocol: dropping malformed message: %v", err)
		return
	}

	switch env.Type {
	case TypeConnectionReady:
		d.handler.ConnectionReady(ConnectionReady{
			MeetingID: env.MeetingID,
			SessionID: env.SessionID,
		})

	case TypeNudge:
		var nudge Nudge
		if err := json.Unmarshal(env.Nudge, &nudge); err != nil {
			d.logf("protocol: dropping malformed nudge: %v", err)
			return
		}
		d.handler.Nudge(nudge)

	case TypeAudioWhisper:
		d.handler.AudioWhisper(AudioWhisper{Data: env.Data, MimeType: env.MimeType})

	case TypeSummary:
		var record SummaryRecord
		if err := json.Unmarshal(env.Summary, &record); err != nil {
			d.logf("protocol: dropping malformed summary: %v", err)
			return
		}
		d.handler.Summary(record)

	case TypeStateUpdate:
		d.handler.StateUpdate(StateUpdate{
			CurrentTopic:     env.CurrentTopic,
			ActionItemsCount: env.ActionItemsCount,
			ElapsedMinutes:   env.ElapsedMinutes,
		})

	case TypeError:
		msg := env.Message
		if msg == "" {
			msg = "unspecified agent error"
		}
		d.handler.AgentError(msg)

	default:
		d.logf("protocol: ignoring unrecognized message type %q", env.Type)
	}
}
