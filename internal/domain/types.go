package domain

import (
	"time"
)

type Phase string

const (
	PhaseSetup             Phase = "setup"
	PhaseCollaborating     Phase = "collaborating"
	PhaseCompleted         Phase = "completed"
	PhaseFeedbackIteration Phase = "feedback_iteration"
)

type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "pending"
	ProjectStatusRunning   ProjectStatus = "running"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
)

// Project is one user-initiated session. Goal and the selected team are fixed
// at creation; feedback iterations mutate deliverables only.
type Project struct {
	ID             string        `json:"project_id"`
	Goal           string        `json:"goal"`
	SelectedAgents []string      `json:"selected_agents"`
	Status         ProjectStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// AgentProfile is a static persona descriptor from the catalog. The engine
// never creates or destroys profiles.
type AgentProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Expertise   string `json:"expertise"`
	Personality string `json:"personality"`
}

type AgentRef struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// MessageContent is the structured payload of one conversation turn. All
// fields are optional; which ones are present depends on the message type.
type MessageContent struct {
	Message          string            `json:"message,omitempty"`
	ActionTaken      string            `json:"action_taken,omitempty"`
	Stance           string            `json:"stance,omitempty"`
	Reasoning        string            `json:"reasoning,omitempty"`
	Contribution     string            `json:"contribution,omitempty"`
	DataProduced     map[string]string `json:"data_produced,omitempty"`
	Insights         []string          `json:"insights,omitempty"`
	QuestionsForTeam []string          `json:"questions_for_team,omitempty"`
	ChallengesRaised []string          `json:"challenges_raised,omitempty"`
	RequestedChanges []string          `json:"requested_changes,omitempty"`
}

type ConversationMessage struct {
	AgentName    string         `json:"agent_name"`
	AgentRole    string         `json:"agent_role"`
	MessageType  string         `json:"message_type"`
	Content      MessageContent `json:"content"`
	RespondingTo string         `json:"responding_to,omitempty"`
	Round        int            `json:"round"`
	Timestamp    time.Time      `json:"timestamp"`
}

type ThinkingEntry struct {
	AgentName       string    `json:"agent_name"`
	AgentRole       string    `json:"agent_role"`
	ThinkingProcess string    `json:"thinking_process"`
	Insights        []string  `json:"insights,omitempty"`
	Questions       []string  `json:"questions,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// FinalDeliverable is the structured output an agent compiles at the end of a
// collaboration or a feedback iteration.
type FinalDeliverable struct {
	Deliverable     string            `json:"final_deliverable,omitempty"`
	KeyOutputs      map[string]string `json:"key_outputs,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	ChangesMade     []string          `json:"changes_made,omitempty"`
}

// AgentDeliverable collects everything one agent produced for a project:
// free-form working outputs gathered during the discussion plus the compiled
// final (and, after feedback, adapted) deliverable.
type AgentDeliverable struct {
	Outputs           map[string]string `json:"outputs,omitempty"`
	Final             *FinalDeliverable `json:"final,omitempty"`
	FeedbackIteration *FinalDeliverable `json:"feedback_iteration,omitempty"`
}

// DeliverableSet maps agent display name to that agent's deliverable. It is
// always replaced wholesale, never patched.
type DeliverableSet map[string]AgentDeliverable

// Clone deep-copies the set so readers never alias engine-owned state.
func (d DeliverableSet) Clone() DeliverableSet {
	if d == nil {
		return nil
	}
	out := make(DeliverableSet, len(d))
	for name, agent := range d {
		copied := AgentDeliverable{}
		if agent.Outputs != nil {
			copied.Outputs = make(map[string]string, len(agent.Outputs))
			for k, v := range agent.Outputs {
				copied.Outputs[k] = v
			}
		}
		if agent.Final != nil {
			final := agent.Final.clone()
			copied.Final = &final
		}
		if agent.FeedbackIteration != nil {
			final := agent.FeedbackIteration.clone()
			copied.FeedbackIteration = &final
		}
		out[name] = copied
	}
	return out
}

func (f FinalDeliverable) clone() FinalDeliverable {
	out := f
	if f.KeyOutputs != nil {
		out.KeyOutputs = make(map[string]string, len(f.KeyOutputs))
		for k, v := range f.KeyOutputs {
			out.KeyOutputs[k] = v
		}
	}
	out.Recommendations = append([]string(nil), f.Recommendations...)
	out.ChangesMade = append([]string(nil), f.ChangesMade...)
	return out
}

type FeedbackRecord struct {
	UserFeedback     string    `json:"user_feedback"`
	RequestedChanges []string  `json:"requested_changes,omitempty"`
	AgentsResponded  []string  `json:"agents_responded,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// CollaborationResult is the aggregate outcome of a project, persisted by the
// server and carried whole on collaboration_complete.
type CollaborationResult struct {
	ConversationLog []ConversationMessage `json:"conversation_log"`
	ThinkingLog     []ThinkingEntry       `json:"thinking_log"`
	Deliverables    DeliverableSet        `json:"deliverables"`
	FeedbackHistory []FeedbackRecord      `json:"feedback_history,omitempty"`
	AgentsInvolved  []AgentRef            `json:"agents_involved"`
	TotalRounds     int                   `json:"total_rounds"`
	Status          string                `json:"status,omitempty"`
}
