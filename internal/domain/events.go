package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the fixed vocabulary of envelope types pushed over the relay
// channel. Consumers must treat unknown values as a no-op, never an error.
type EventType string

const (
	EventCollaborationStarted  EventType = "collaboration_started"
	EventPhaseChange           EventType = "phase_change"
	EventAgentThinking         EventType = "agent_thinking"
	EventThinkingComplete      EventType = "thinking_complete"
	EventAgentSpeaking         EventType = "agent_speaking"
	EventAgentMessage          EventType = "agent_message"
	EventCollaborationComplete EventType = "collaboration_complete"
	EventUserFeedbackReceived  EventType = "user_feedback_received"
	EventUserFeedbackProcess   EventType = "user_feedback_processing"
	EventUserMessage           EventType = "user_message"
	EventDeliverablesUpdated   EventType = "deliverables_updated"
	EventVideoStarted          EventType = "video_generation_started"
	EventVideoComplete         EventType = "video_generation_complete"
	EventVideoError            EventType = "video_generation_error"
	EventError                 EventType = "error"
)

// Envelope is the only unit of communication on the relay channel. There is
// no sequence number, ack or retry metadata; delivery order is the transport's
// own in-order delivery while connected.
type Envelope struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEnvelope(eventType EventType, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s data: %w", eventType, err)
	}
	return Envelope{
		Type:      eventType,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return nil
}

type StatusData struct {
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

type PhaseChangeData struct {
	Phase   string `json:"phase"`
	Message string `json:"message,omitempty"`
}

// AgentActivityData accompanies agent_thinking and agent_speaking.
type AgentActivityData struct {
	AgentName string `json:"agent_name"`
	AgentRole string `json:"agent_role"`
	Status    string `json:"status,omitempty"`
}

type UserFeedbackReceivedData struct {
	Feedback         string   `json:"feedback"`
	RequestedChanges []string `json:"requested_changes,omitempty"`
	Message          string   `json:"message,omitempty"`
}

// DeliverablesUpdatedData carries the full replacement deliverable set after
// a feedback iteration. Readers must not merge it into the previous set.
type DeliverablesUpdatedData struct {
	Deliverables DeliverableSet `json:"deliverables"`
	Message      string         `json:"message,omitempty"`
}

type VideoCompleteData struct {
	Message       string `json:"message,omitempty"`
	DownloadURL   string `json:"download_url"`
	VideoPath     string `json:"video_path,omitempty"`
	VideoFilename string `json:"video_filename,omitempty"`
	VideoURL      string `json:"video_url,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}
