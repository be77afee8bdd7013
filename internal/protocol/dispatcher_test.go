package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type recordingHandler struct {
	ready    []ConnectionReady
	nudges   []Nudge
	whispers []AudioWhisper
	records  []SummaryRecord
	updates  []StateUpdate
	errors   []string
}

func (h *recordingHandler) ConnectionReady(r ConnectionReady) { h.ready = append(h.ready, r) }
func (h *recordingHandler) Nudge(n Nudge)                     { h.nudges = append(h.nudges, n) }
func (h *recordingHandler) AudioWhisper(w AudioWhisper)       { h.whispers = append(h.whispers, w) }
func (h *recordingHandler) Summary(r SummaryRecord)           { h.records = append(h.records, r) }
func (h *recordingHandler) StateUpdate(u StateUpdate)         { h.updates = append(h.updates, u) }
func (h *recordingHandler) AgentError(msg string)             { h.errors = append(h.errors, msg) }

func newTestDispatcher(h Handler) (*Dispatcher, *[]string) {
	var logged []string
	d := NewDispatcher(h)
	d.SetLogf(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	})
	return d, &logged
}

func TestDispatcher_Dispatch_ConnectionReady(t *testing.T) {
	h := &recordingHandler{}
	d, _ := newTestDispatcher(h)

	d.Dispatch([]byte(`{"type":"connection_ready","meeting_id":"m-1","session_id":"s-1"}`))

	if len(h.ready) != 1 {
		t.Fatalf("expected 1 connection_ready, got %d", len(h.ready))
	}
	if h.ready[0].MeetingID != "m-1" || h.ready[0].SessionID != "s-1" {
		t.Errorf("unexpected ready payload: %+v", h.ready[0])
	}
}

func TestDispatcher_Dispatch_NudgeUnwrapsEnvelope(t *testing.T) {
	h := &recordingHandler{}
	d, _ := newTestDispatcher(h)

	d.Dispatch([]byte(`{"type":"nudge","nudge":{"type":"time","message":"5 minutes left","priority":"high","timestamp":1700000000.5}}`))

	if len(h.nudges) != 1 {
		t.Fatalf("expected 1 nudge, got %d", len(h.nudges))
	}
	n := h.nudges[0]
	if n.Type != "time" || n.Message != "5 minutes left" || !n.IsHighPriority() {
		t.Errorf("unexpected nudge: %+v", n)
	}
}

func TestDispatcher_Dispatch_AudioWhisper(t *testing.T) {
	h := &recordingHandler{}
	d, _ := newTestDispatcher(h)

	d.Dispatch([]byte(`{"type":"audio_whisper","data":"AAAA","mime_type":"audio/pcm;rate=24000"}`))

	if len(h.whispers) != 1 {
		t.Fatalf("expected 1 whisper, got %d", len(h.whispers))
	}
	if h.whispers[0].Data != "AAAA" || h.whispers[0].MimeType != "audio/pcm;rate=24000" {
		t.Errorf("unexpected whisper: %+v", h.whispers[0])
	}
}

func TestDispatcher_Dispatch_Summary(t *testing.T) {
	h := &recordingHandler{}
	d, _ := newTestDispatcher(h)

	d.Dispatch([]byte(`{"type":"summary","summary":{
		"duration_planned_minutes":30,
		"duration_actual_minutes":32.5,
		"on_time":false,
		"topics":[{"topic":"Roadmap","duration_minutes":12.5}],
		"action_items":[{"assignee":"Dana","description":"send notes","deadline":"Friday"}],
		"participation":{"total_speaker_turns":40,"user_turns":10,"other_turns":30,"user_participation_pct":25},
		"coaching_stats":{"total_nudges":3,"breakdown":{"time":2,"participation":1}}}}`))

	if len(h.records) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(h.records))
	}
	rec := h.records[0]
	if rec.OnTime {
		t.Error("expected on_time false")
	}
	if len(rec.Topics) != 1 || rec.Topics[0].Topic != "Roadmap" {
		t.Errorf("unexpected topics: %+v", rec.Topics)
	}
	if rec.CoachingStats.Breakdown["time"] != 2 {
		t.Errorf("unexpected breakdown: %+v", rec.CoachingStats.Breakdown)
	}
}

func TestDispatcher_Dispatch_StateUpdateOptionalFields(t *testing.T) {
	h := &recordingHandler{}
	d, _ := newTestDispatcher(h)

	d.Dispatch([]byte(`{"type":"state_update","current_topic":"Budget"}`))
	d.Dispatch([]byte(`{"type":"state_update","action_items_count":4}`))

	if len(h.updates) != 2 {
		t.Fatalf("expected 2 state updates, got %d", len(h.updates))
	}
	first, second := h.updates[0], h.updates[1]
	if first.CurrentTopic == nil || *first.CurrentTopic != "Budget" {
		t.Errorf("expected current_topic set, got %+v", first)
	}
	if first.ActionItemsCount != nil {
		t.Errorf("expected absent action_items_count to stay nil, got %d", *first.ActionItemsCount)
	}
	if second.ActionItemsCount == nil || *second.ActionItemsCount != 4 {
		t.Errorf("expected action_items_count 4, got %+v", second)
	}
	if second.CurrentTopic != nil {
		t.Errorf("expected absent current_topic to stay nil, got %q", *second.CurrentTopic)
	}
}

func TestDispatcher_Dispatch_AgentError(t *testing.T) {
	h := &recordingHandler{}
	d, _ := newTestDispatcher(h)

	d.Dispatch([]byte(`{"type":"error","message":"agent overloaded"}`))

	if len(h.errors) != 1 || h.errors[0] != "agent overloaded" {
		t.Fatalf("unexpected errors: %v", h.errors)
	}
}

func TestDispatcher_Dispatch_MalformedJSONIsDroppedNotFatal(t *testing.T) {
	h := &recordingHandler{}
	d, logged := newTestDispatcher(h)

	d.Dispatch([]byte(`{not json`))
	d.Dispatch([]byte(`{"type":"nudge","nudge":"not-an-object"}`))
	d.Dispatch([]byte(`{"type":"error","message":"still alive"}`))

	if len(h.nudges) != 0 {
		t.Errorf("expected malformed nudge dropped, got %+v", h.nudges)
	}
	if len(h.errors) != 1 {
		t.Fatalf("expected dispatcher to keep running after malformed input, errors=%v", h.errors)
	}
	if len(*logged) < 2 {
		t.Errorf("expected drops to be logged, got %v", *logged)
	}
}

func TestDispatcher_Dispatch_UnknownTypeIgnored(t *testing.T) {
	h := &recordingHandler{}
	d, logged := newTestDispatcher(h)

	d.Dispatch([]byte(`{"type":"telemetry","payload":42}`))

	if len(h.ready)+len(h.nudges)+len(h.whispers)+len(h.records)+len(h.updates)+len(h.errors) != 0 {
		t.Fatalf("unknown type must route nowhere: %+v", h)
	}
	found := false
	for _, line := range *logged {
		if strings.Contains(line, "telemetry") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unknown type to be logged, got %v", *logged)
	}
}

func TestNewConfigMessage_EmptyAgendaSerializesAsList(t *testing.T) {
	msg := NewConfigMessage(MeetingConfig{UserName: "Sam", MeetingDurationMinutes: 30})
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(payload), `"agenda_items":[]`) {
		t.Errorf("expected empty agenda list, got %s", payload)
	}
	if !strings.Contains(string(payload), `"type":"config"`) {
		t.Errorf("expected config type tag, got %s", payload)
	}
}
