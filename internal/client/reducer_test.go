package client

import (
	"encoding/json"
	"reflect"
	"testing"

	"agent_agency/internal/domain"
)

func envelope(t *testing.T, eventType domain.EventType, data any) domain.Envelope {
	t.Helper()
	env, err := domain.NewEnvelope(eventType, data)
	if err != nil {
		t.Fatalf("build envelope %s: %v", eventType, err)
	}
	return env
}

func rawEnvelope(t *testing.T, eventType string, data string) domain.Envelope {
	t.Helper()
	return domain.Envelope{
		Type: domain.EventType(eventType),
		Data: json.RawMessage(data),
	}
}

func TestScenarioCollaborationComplete(t *testing.T) {
	snap := Replay("p1", []domain.Envelope{
		envelope(t, domain.EventAgentMessage, domain.ConversationMessage{
			AgentName: "A",
			Content:   domain.MessageContent{Message: "hi"},
		}),
		envelope(t, domain.EventCollaborationComplete, domain.CollaborationResult{
			Deliverables: domain.DeliverableSet{
				"A": {Final: &domain.FinalDeliverable{Recommendations: []string{"x"}}},
			},
		}),
	})

	if snap.ProjectID != "p1" {
		t.Fatalf("unexpected project id: %s", snap.ProjectID)
	}
	if len(snap.Conversation) != 1 || snap.Conversation[0].Content.Message != "hi" {
		t.Fatalf("expected one conversation entry, got %+v", snap.Conversation)
	}
	if snap.Phase != domain.PhaseCompleted {
		t.Fatalf("expected completed, got %s", snap.Phase)
	}
	if snap.Busy {
		t.Fatalf("busy should be cleared on completion")
	}
	want := domain.DeliverableSet{
		"A": {Final: &domain.FinalDeliverable{Recommendations: []string{"x"}}},
	}
	if !reflect.DeepEqual(snap.Deliverables, want) {
		t.Fatalf("deliverables mismatch: got %+v want %+v", snap.Deliverables, want)
	}
}

func TestScenarioFeedbackIteration(t *testing.T) {
	snap := NewSnapshot("p1")
	snap.Phase = domain.PhaseCompleted
	snap.Deliverables = domain.DeliverableSet{
		"A": {Final: &domain.FinalDeliverable{Deliverable: "v1"}},
		"B": {Final: &domain.FinalDeliverable{Deliverable: "v1"}},
	}

	snap = Apply(snap, envelope(t, domain.EventUserFeedbackReceived, domain.UserFeedbackReceivedData{
		Feedback:         "reduce budget",
		RequestedChanges: []string{"cut 30%"},
	}))
	if snap.Phase != domain.PhaseFeedbackIteration {
		t.Fatalf("expected feedback_iteration, got %s", snap.Phase)
	}
	if !snap.Busy {
		t.Fatalf("expected busy during feedback iteration")
	}

	snap = Apply(snap, envelope(t, domain.EventDeliverablesUpdated, domain.DeliverablesUpdatedData{
		Deliverables: domain.DeliverableSet{
			"A": {FeedbackIteration: &domain.FinalDeliverable{Deliverable: "v2"}},
		},
	}))
	if snap.Phase != domain.PhaseCompleted {
		t.Fatalf("expected completed after update, got %s", snap.Phase)
	}
	if snap.Busy {
		t.Fatalf("busy should clear after update")
	}
	if _, ok := snap.Deliverables["B"]; ok {
		t.Fatalf("deliverables must be replaced wholesale, old key retained: %+v", snap.Deliverables)
	}
	if snap.Deliverables["A"].FeedbackIteration.Deliverable != "v2" {
		t.Fatalf("unexpected deliverables: %+v", snap.Deliverables)
	}
}

func TestUnknownEventIsNoOp(t *testing.T) {
	snap := NewSnapshot("p1")
	snap.Phase = domain.PhaseCollaborating
	snap = Apply(snap, envelope(t, domain.EventAgentMessage, domain.ConversationMessage{
		AgentName: "A",
		Content:   domain.MessageContent{Message: "hi"},
	}))

	before := snap
	after := Apply(snap, rawEnvelope(t, "unknown_future_type", `{"anything":true}`))
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("unknown event mutated snapshot:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestAppendOnlyLogs(t *testing.T) {
	snap := NewSnapshot("p1")
	snap.Phase = domain.PhaseCollaborating

	events := []domain.Envelope{
		envelope(t, domain.EventThinkingComplete, domain.ThinkingEntry{AgentName: "A", ThinkingProcess: "t1"}),
		envelope(t, domain.EventAgentMessage, domain.ConversationMessage{AgentName: "A", Content: domain.MessageContent{Message: "m1"}}),
		envelope(t, domain.EventUserMessage, domain.ConversationMessage{AgentName: "User", Content: domain.MessageContent{Message: "m2"}}),
		envelope(t, domain.EventCollaborationComplete, domain.CollaborationResult{Deliverables: domain.DeliverableSet{}}),
		envelope(t, domain.EventThinkingComplete, domain.ThinkingEntry{AgentName: "B", ThinkingProcess: "t2"}),
	}

	prevConv, prevThink := 0, 0
	for _, env := range events {
		snap = Apply(snap, env)
		if len(snap.Conversation) < prevConv {
			t.Fatalf("conversation shrank after %s", env.Type)
		}
		if len(snap.Thinking) < prevThink {
			t.Fatalf("thinking shrank after %s", env.Type)
		}
		prevConv, prevThink = len(snap.Conversation), len(snap.Thinking)
	}
	if len(snap.Conversation) != 2 || len(snap.Thinking) != 2 {
		t.Fatalf("unexpected log sizes conv=%d think=%d", len(snap.Conversation), len(snap.Thinking))
	}
}

func TestDeliverablesUpdatedIgnoredDuringSetup(t *testing.T) {
	snap := NewSnapshot("p1")
	after := Apply(snap, envelope(t, domain.EventDeliverablesUpdated, domain.DeliverablesUpdatedData{
		Deliverables: domain.DeliverableSet{"A": {}},
	}))
	if after.Phase != domain.PhaseSetup {
		t.Fatalf("phase must stay setup, got %s", after.Phase)
	}
	if after.Deliverables != nil {
		t.Fatalf("deliverables must not be applied in setup: %+v", after.Deliverables)
	}
}

func TestErrorEventSurfacesBannerAndClearsBusy(t *testing.T) {
	snap := NewSnapshot("p1")
	snap.Phase = domain.PhaseCollaborating
	snap.Busy = true

	snap = Apply(snap, envelope(t, domain.EventError, domain.ErrorData{Message: "boom"}))
	if snap.ErrorBanner != "boom" {
		t.Fatalf("expected error banner, got %q", snap.ErrorBanner)
	}
	if snap.Busy {
		t.Fatalf("busy should clear on error")
	}
	if snap.Phase != domain.PhaseCollaborating {
		t.Fatalf("error must not change phase, got %s", snap.Phase)
	}
}

func TestVideoSubStateIndependentOfPhase(t *testing.T) {
	snap := NewSnapshot("p1")
	snap.Phase = domain.PhaseCompleted

	snap = Apply(snap, envelope(t, domain.EventVideoStarted, domain.StatusData{}))
	if snap.Video.Status != VideoGenerating {
		t.Fatalf("expected generating, got %s", snap.Video.Status)
	}
	snap = Apply(snap, envelope(t, domain.EventVideoComplete, domain.VideoCompleteData{
		DownloadURL: "/video/p1",
	}))
	if snap.Video.Status != VideoReady || snap.Video.DownloadURL != "/video/p1" {
		t.Fatalf("unexpected video state: %+v", snap.Video)
	}
	if snap.Phase != domain.PhaseCompleted {
		t.Fatalf("video events must not change phase, got %s", snap.Phase)
	}

	snap = Apply(snap, envelope(t, domain.EventVideoError, domain.ErrorData{Message: "render failed"}))
	if snap.Video.Status != VideoFailed || snap.Video.Message != "render failed" {
		t.Fatalf("unexpected video error state: %+v", snap.Video)
	}
}

func TestInformationalEventsRecordActivityOnly(t *testing.T) {
	snap := NewSnapshot("p1")
	snap.Phase = domain.PhaseCollaborating

	after := Apply(snap, envelope(t, domain.EventAgentThinking, domain.AgentActivityData{AgentName: "A"}))
	if after.Activity != string(domain.EventAgentThinking) {
		t.Fatalf("expected activity recorded, got %q", after.Activity)
	}
	after.Activity = snap.Activity
	if !reflect.DeepEqual(snap, after) {
		t.Fatalf("informational event mutated snapshot beyond activity")
	}
}
