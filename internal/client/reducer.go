// Package client consumes the server's HTTP surface and relay channel and
// folds the event stream into a single snapshot for rendering.
package client

import (
	"agent_agency/internal/domain"
)

// VideoStatus is the video feature's own little lifecycle, independent of the
// main collaboration phase.
type VideoStatus string

const (
	VideoIdle       VideoStatus = "idle"
	VideoGenerating VideoStatus = "generating"
	VideoReady      VideoStatus = "ready"
	VideoFailed     VideoStatus = "failed"
)

type VideoState struct {
	Status      VideoStatus
	DownloadURL string
	Message     string
}

// Snapshot is the client's entire view of one project. It is owned by the
// reducer; renderers read it and never write it.
type Snapshot struct {
	ProjectID      string
	Phase          domain.Phase
	Conversation   []domain.ConversationMessage
	Thinking       []domain.ThinkingEntry
	Deliverables   domain.DeliverableSet
	AgentsInvolved []domain.AgentRef
	Video          VideoState

	// Busy is set while a triggered action is outstanding and gates the
	// start and submit controls.
	Busy bool
	// ErrorBanner holds the last surfaced error text, empty when none.
	ErrorBanner string
	// Activity is diagnostic only: the latest informational event, for a
	// status line. Nothing decides behavior on it.
	Activity string
}

func NewSnapshot(projectID string) Snapshot {
	return Snapshot{
		ProjectID: projectID,
		Phase:     domain.PhaseSetup,
		Video:     VideoState{Status: VideoIdle},
	}
}

// Apply folds one envelope into the snapshot. It is pure: the input snapshot
// is not mutated. Unknown event types leave the snapshot unchanged, and no
// event ever removes conversation or thinking entries.
func Apply(s Snapshot, env domain.Envelope) Snapshot {
	switch env.Type {
	case domain.EventThinkingComplete:
		var entry domain.ThinkingEntry
		if err := env.Decode(&entry); err != nil {
			return withError(s, err.Error())
		}
		s.Thinking = append(s.Thinking[:len(s.Thinking):len(s.Thinking)], entry)

	case domain.EventAgentMessage, domain.EventUserMessage:
		var msg domain.ConversationMessage
		if err := env.Decode(&msg); err != nil {
			return withError(s, err.Error())
		}
		s.Conversation = append(s.Conversation[:len(s.Conversation):len(s.Conversation)], msg)

	case domain.EventCollaborationComplete:
		var result domain.CollaborationResult
		if err := env.Decode(&result); err != nil {
			return withError(s, err.Error())
		}
		if s.Phase == domain.PhaseFeedbackIteration {
			return s
		}
		s.Deliverables = result.Deliverables
		s.AgentsInvolved = result.AgentsInvolved
		s.Phase = domain.PhaseCompleted
		s.Busy = false

	case domain.EventDeliverablesUpdated:
		var data domain.DeliverablesUpdatedData
		if err := env.Decode(&data); err != nil {
			return withError(s, err.Error())
		}
		if s.Phase != domain.PhaseFeedbackIteration && s.Phase != domain.PhaseCompleted {
			return s
		}
		s.Deliverables = data.Deliverables
		s.Phase = domain.PhaseCompleted
		s.Busy = false

	case domain.EventUserFeedbackReceived:
		if s.Phase != domain.PhaseCompleted && s.Phase != domain.PhaseFeedbackIteration {
			return s
		}
		s.Phase = domain.PhaseFeedbackIteration
		s.Busy = true

	case domain.EventVideoStarted:
		s.Video = VideoState{Status: VideoGenerating}

	case domain.EventVideoComplete:
		var data domain.VideoCompleteData
		if err := env.Decode(&data); err != nil {
			return withError(s, err.Error())
		}
		s.Video = VideoState{
			Status:      VideoReady,
			DownloadURL: data.DownloadURL,
			Message:     data.Message,
		}

	case domain.EventVideoError:
		var data domain.ErrorData
		if err := env.Decode(&data); err != nil {
			return withError(s, err.Error())
		}
		s.Video = VideoState{Status: VideoFailed, Message: data.Message}

	case domain.EventError:
		var data domain.ErrorData
		if err := env.Decode(&data); err != nil {
			return withError(s, err.Error())
		}
		s.ErrorBanner = data.Message
		s.Busy = false

	case domain.EventCollaborationStarted, domain.EventPhaseChange,
		domain.EventAgentThinking, domain.EventAgentSpeaking,
		domain.EventUserFeedbackProcess:
		s.Activity = string(env.Type)

	default:
		// Unknown future type: keep the snapshot as-is.
	}
	return s
}

// Replay folds a whole event sequence into a fresh snapshot.
func Replay(projectID string, envelopes []domain.Envelope) Snapshot {
	s := NewSnapshot(projectID)
	for _, env := range envelopes {
		s = Apply(s, env)
	}
	return s
}

func withError(s Snapshot, message string) Snapshot {
	s.ErrorBanner = message
	return s
}
