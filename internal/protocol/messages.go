package protocol

import "encoding/json"

// Inbound message types sent by the backend over the meeting socket.
const (
	TypeConnectionReady = "connection_ready"
	TypeNudge           = "nudge"
	TypeAudioWhisper    = "audio_whisper"
	TypeSummary         = "summary"
	TypeStateUpdate     = "state_update"
	TypeError           = "error"
)

// Outbound message types sent by this client.
const (
	TypeConfig      = "config"
	TypeScreenFrame = "screen_frame"
	TypeEndMeeting  = "end_meeting"
	TypeTextCommand = "text_command"
)

// MeetingConfig is the configuration handshake sent immediately after every
// successful connection open. The backend builds a fresh agent session per
// socket, so this must be re-sent after a reconnect as well.
type MeetingConfig struct {
	UserName               string   `json:"user_name"`
	MeetingDurationMinutes int      `json:"meeting_duration_minutes"`
	AgendaItems            []string `json:"agenda_items"`
}

// ConfigMessage wraps MeetingConfig in its wire envelope.
type ConfigMessage struct {
	Type   string        `json:"type"`
	Config MeetingConfig `json:"config"`
}

func NewConfigMessage(cfg MeetingConfig) ConfigMessage {
	if cfg.AgendaItems == nil {
		cfg.AgendaItems = []string{}
	}
	return ConfigMessage{Type: TypeConfig, Config: cfg}
}

// ScreenFrameMessage carries one base64-encoded JPEG of the shared display.
type ScreenFrameMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func NewScreenFrameMessage(b64 string) ScreenFrameMessage {
	return ScreenFrameMessage{Type: TypeScreenFrame, Data: b64}
}

// EndMeetingMessage asks the agent to compile the final summary.
type EndMeetingMessage struct {
	Type string `json:"type"`
}

func NewEndMeetingMessage() EndMeetingMessage {
	return EndMeetingMessage{Type: TypeEndMeeting}
}

// TextCommandMessage sends a free-form user command to the agent.
type TextCommandMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewTextCommandMessage(text string) TextCommandMessage {
	return TextCommandMessage{Type: TypeTextCommand, Text: text}
}

// Nudge is an ephemeral coaching notification. Priority is "high" or
// "normal"; the backend may also emit "low"/"medium", which the client
// treats as normal.
type Nudge struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Priority  string  `json:"priority"`
	Timestamp float64 `json:"timestamp"`
}

// IsHighPriority reports whether the nudge uses the long display lifetime.
func (n Nudge) IsHighPriority() bool { return n.Priority == "high" }

// AudioWhisper is a synthesized spoken response from the agent.
type AudioWhisper struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// StateUpdate carries live counters for the in-meeting view. Fields are
// optional on the wire; nil means "leave the current value alone".
type StateUpdate struct {
	CurrentTopic     *string  `json:"current_topic,omitempty"`
	ActionItemsCount *int     `json:"action_items_count,omitempty"`
	ElapsedMinutes   *float64 `json:"elapsed_minutes,omitempty"`
}

// ConnectionReady acknowledges that the backend session is established.
type ConnectionReady struct {
	MeetingID string `json:"meeting_id"`
	SessionID string `json:"session_id"`
}

// TopicSummary is one agenda topic with the time actually spent on it.
type TopicSummary struct {
	Topic           string  `json:"topic"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// ActionItem is a commitment captured by the agent during the meeting.
type ActionItem struct {
	Assignee    string  `json:"assignee"`
	Description string  `json:"description"`
	Deadline    string  `json:"deadline"`
	Timestamp   float64 `json:"timestamp,omitempty"`
}

// Participation holds speaker-turn statistics for the user.
type Participation struct {
	TotalSpeakerTurns    int     `json:"total_speaker_turns"`
	UserTurns            int     `json:"user_turns"`
	OtherTurns           int     `json:"other_turns"`
	UserParticipationPct float64 `json:"user_participation_pct"`
}

// CoachingStats counts nudges issued over the whole session.
type CoachingStats struct {
	TotalNudges int            `json:"total_nudges"`
	Breakdown   map[string]int `json:"breakdown"`
}

// SummaryRecord is the immutable end-of-meeting aggregate. It is rendered
// once on receipt and never mutated by later messages.
type SummaryRecord struct {
	DurationPlannedMinutes float64        `json:"duration_planned_minutes"`
	DurationActualMinutes  float64        `json:"duration_actual_minutes"`
	OnTime                 bool           `json:"on_time"`
	Topics                 []TopicSummary `json:"topics"`
	ActionItems            []ActionItem   `json:"action_items"`
	Participation          Participation  `json:"participation"`
	CoachingStats          CoachingStats  `json:"coaching_stats"`
}

// envelope is the raw inbound frame before type-directed decoding. The
// nudge and summary payloads are nested one level down on the wire.
type envelope struct {
	Type      string          `json:"type"`
	MeetingID string          `json:"meeting_id"`
	SessionID string          `json:"session_id"`
	Nudge     json.RawMessage `json:"nudge"`
	Summary   json.RawMessage `json:"summary"`
	Data      string          `json:"data"`
	MimeType  string          `json:"mime_type"`
	Message   string          `json:"message"`

	CurrentTopic     *string  `json:"current_topic"`
	ActionItemsCount *int     `json:"action_items_count"`
	ElapsedMinutes   *float64 `json:"elapsed_minutes"`
}
