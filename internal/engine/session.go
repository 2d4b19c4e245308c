package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"agent_agency/internal/catalog"
	"agent_agency/internal/domain"
)

// completionSignals mark messages that indicate agents are wrapping up; two
// or more across the last few turns end the conversation early.
var completionSignals = []string{"finalize", "complete", "ready to", "final", "conclude"}

// repetitionIndicators are core topics tracked across the discussion; a turn
// that mostly re-treads already-discussed ones is skipped.
var repetitionIndicators = []string{
	"budget", "timeline", "strategy", "approach", "plan",
	"recommend", "suggest", "important", "key", "focus",
}

var trackedTopics = []string{
	"budget", "timeline", "creative", "data", "media", "content",
	"brand", "market", "customer", "implementation", "roi", "kpi",
}

// session holds the mutable state of one running collaboration. The engine
// appends to the logs; nothing is ever mutated or removed once added.
type session struct {
	svc     *Service
	project domain.Project
	agents  []domain.AgentProfile

	mu              sync.Mutex
	conversationLog []domain.ConversationMessage
	thinkingLog     []domain.ThinkingEntry
	deliverables    domain.DeliverableSet
	feedbackHistory []domain.FeedbackRecord
	rounds          int
	discussedTopics map[string]bool
}

func newSession(svc *Service, project domain.Project) (*session, error) {
	agents := make([]domain.AgentProfile, 0, len(project.SelectedAgents))
	for _, id := range project.SelectedAgents {
		profile, err := catalog.Get(id)
		if err != nil {
			return nil, err
		}
		agents = append(agents, profile)
	}
	return &session{
		svc:             svc,
		project:         project,
		agents:          agents,
		deliverables:    make(domain.DeliverableSet),
		discussedTopics: make(map[string]bool),
	}, nil
}

func (sess *session) run(ctx context.Context) (domain.CollaborationResult, error) {
	if err := sess.thinkingPhase(ctx); err != nil {
		return domain.CollaborationResult{}, err
	}
	if err := sess.introductionPhase(ctx); err != nil {
		return domain.CollaborationResult{}, err
	}
	if err := sess.conversationPhase(ctx); err != nil {
		return domain.CollaborationResult{}, err
	}
	if err := sess.finalizationPhase(ctx); err != nil {
		return domain.CollaborationResult{}, err
	}
	return sess.result(), nil
}

// thinkingPhase has every agent analyze the goal concurrently, streaming a
// thinking_complete entry per agent as it lands.
func (sess *session) thinkingPhase(ctx context.Context) error {
	sess.logSystemMessage("Phase 1: Agents are analyzing the project...")
	sess.svc.publish(sess.project.ID, domain.EventPhaseChange, domain.PhaseChangeData{
		Phase:   "thinking",
		Message: "Agents are analyzing the project...",
	})

	var wg sync.WaitGroup
	errs := make([]error, len(sess.agents))
	for i, agent := range sess.agents {
		wg.Add(1)
		go func(i int, agent domain.AgentProfile) {
			defer wg.Done()
			errs[i] = sess.agentThink(ctx, agent)
		}(i, agent)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (sess *session) agentThink(ctx context.Context, agent domain.AgentProfile) error {
	sess.svc.publish(sess.project.ID, domain.EventAgentThinking, domain.AgentActivityData{
		AgentName: agent.Name,
		AgentRole: agent.Role,
		Status:    "thinking",
	})

	thought, err := sess.svc.responder.Think(ctx, agent, sess.project.Goal)
	if err != nil {
		return err
	}
	entry := domain.ThinkingEntry{
		AgentName:       agent.Name,
		AgentRole:       agent.Role,
		ThinkingProcess: thought.Thinking,
		Insights:        thought.Insights,
		Questions:       thought.Questions,
		Recommendations: thought.Recommendations,
		Timestamp:       time.Now().UTC(),
	}

	sess.mu.Lock()
	sess.thinkingLog = append(sess.thinkingLog, entry)
	sess.mu.Unlock()

	sess.svc.publish(sess.project.ID, domain.EventThinkingComplete, entry)
	return nil
}

// introductionPhase has each agent share its opening analysis in team order.
func (sess *session) introductionPhase(ctx context.Context) error {
	sess.logSystemMessage("Phase 2: Agents introducing themselves and sharing initial insights...")

	for _, agent := range sess.agents {
		sess.svc.publish(sess.project.ID, domain.EventAgentSpeaking, domain.AgentActivityData{
			AgentName: agent.Name,
			AgentRole: agent.Role,
			Status:    "speaking",
		})

		turn, err := sess.svc.responder.Initiate(ctx, agent, sess.project.Goal)
		if err != nil {
			return err
		}
		sess.appendMessage(domain.ConversationMessage{
			AgentName:   agent.Name,
			AgentRole:   agent.Role,
			MessageType: "introduction",
			Content: domain.MessageContent{
				Message:          turn.Message,
				ActionTaken:      turn.ActionTaken,
				Insights:         turn.Insights,
				QuestionsForTeam: turn.QuestionsForTeam,
			},
			Round:     0,
			Timestamp: time.Now().UTC(),
		})
		sess.mergeOutputs(agent.Name, turn.Outputs)
		sess.pause(ctx)
	}
	return nil
}

// conversationPhase runs structured rounds where each agent responds to the
// most recent message from another agent.
func (sess *session) conversationPhase(ctx context.Context) error {
	sess.logSystemMessage("Phase 3: Agents collaborating and discussing...")

	for round := 1; round <= sess.svc.cfg.MaxRounds; round++ {
		sess.mu.Lock()
		sess.rounds = round
		sess.mu.Unlock()

		if err := sess.structuredRound(ctx, round); err != nil {
			return err
		}
		if sess.shouldEndConversation() {
			break
		}
		sess.pause(ctx)
	}
	return nil
}

func (sess *session) structuredRound(ctx context.Context, round int) error {
	for i, agent := range sess.agents {
		if i == 0 && round == 1 {
			continue // first agent opened the discussion already
		}

		last, ok := sess.lastMessageFromOther(agent.Name)
		if !ok {
			continue
		}
		if sess.isRepetitiveTopic(last.Content.Message) {
			continue
		}

		sess.svc.publish(sess.project.ID, domain.EventAgentSpeaking, domain.AgentActivityData{
			AgentName: agent.Name,
			AgentRole: agent.Role,
			Status:    "speaking",
		})

		turn, err := sess.svc.responder.Respond(ctx, agent, RespondRequest{
			From:            last.AgentName,
			MessageContent:  last.Content.Message,
			Goal:            sess.project.Goal,
			Round:           round,
			DiscussedTopics: sess.topicsSnapshot(),
		})
		if err != nil {
			return err
		}
		sess.trackDiscussedTopic(turn.Contribution)

		sess.appendMessage(domain.ConversationMessage{
			AgentName:   agent.Name,
			AgentRole:   agent.Role,
			MessageType: "response",
			Content: domain.MessageContent{
				Message:          turn.Message,
				Stance:           turn.Stance,
				Reasoning:        turn.Reasoning,
				Contribution:     turn.Contribution,
				DataProduced:     turn.Outputs,
				QuestionsForTeam: turn.QuestionsForTeam,
				ChallengesRaised: turn.ChallengesRaised,
			},
			RespondingTo: last.AgentName,
			Round:        round,
			Timestamp:    time.Now().UTC(),
		})
		sess.mergeOutputs(agent.Name, turn.Outputs)
		sess.pause(ctx)
	}
	return nil
}

// finalizationPhase compiles every agent's final deliverable.
func (sess *session) finalizationPhase(ctx context.Context) error {
	sess.logSystemMessage("Phase 4: Finalizing deliverables and summary...")

	for _, agent := range sess.agents {
		final, err := sess.svc.responder.Finalize(ctx, agent, FinalizeRequest{Goal: sess.project.Goal})
		if err != nil {
			return err
		}
		sess.appendMessage(domain.ConversationMessage{
			AgentName:   agent.Name,
			AgentRole:   agent.Role,
			MessageType: "final_deliverable",
			Content: domain.MessageContent{
				Message: final.Summary,
			},
			Round:     sess.currentRound(),
			Timestamp: time.Now().UTC(),
		})
		sess.setFinal(agent.Name, final)
	}
	return nil
}

// processFeedback runs one feedback iteration: the user message is logged,
// the most relevant agents respond, and the Implementation Specialist (when
// present) compiles the adapted deliverable.
func (sess *session) processFeedback(ctx context.Context, feedback string, requestedChanges []string) (domain.DeliverableSet, []domain.FeedbackRecord, error) {
	sess.appendMessage(domain.ConversationMessage{
		AgentName:   "User",
		AgentRole:   "Client",
		MessageType: "feedback",
		Content: domain.MessageContent{
			Message:          feedback,
			RequestedChanges: requestedChanges,
		},
		Round:     sess.currentRound() + 1,
		Timestamp: time.Now().UTC(),
	}, domain.EventUserMessage)

	responders := sess.selectFeedbackResponders(feedback)
	for _, agent := range responders {
		turn, err := sess.svc.responder.Respond(ctx, agent, RespondRequest{
			From:           "User",
			MessageContent: feedback,
			Goal:           sess.project.Goal,
			Round:          sess.currentRound() + 1,
		})
		if err != nil {
			return nil, nil, err
		}
		sess.appendMessage(domain.ConversationMessage{
			AgentName:   agent.Name,
			AgentRole:   agent.Role,
			MessageType: "feedback_response",
			Content: domain.MessageContent{
				Message:      turn.Message,
				Stance:       turn.Stance,
				Reasoning:    turn.Reasoning,
				Contribution: turn.Contribution,
				DataProduced: turn.Outputs,
			},
			RespondingTo: "User",
			Round:        sess.currentRound() + 1,
			Timestamp:    time.Now().UTC(),
		})
		sess.mergeOutputs(agent.Name, turn.Outputs)
	}

	if impl, ok := sess.implementationAgent(); ok {
		final, err := sess.svc.responder.Finalize(ctx, impl, FinalizeRequest{
			Goal:             sess.project.Goal,
			UserFeedback:     feedback,
			RequestedChanges: requestedChanges,
		})
		if err != nil {
			return nil, nil, err
		}
		sess.setFeedbackIteration(impl.Name, final)
	}

	record := domain.FeedbackRecord{
		UserFeedback:     feedback,
		RequestedChanges: requestedChanges,
		AgentsResponded:  agentNames(responders),
		Timestamp:        time.Now().UTC(),
	}

	sess.mu.Lock()
	sess.feedbackHistory = append(sess.feedbackHistory, record)
	deliverables := sess.deliverables.Clone()
	history := append([]domain.FeedbackRecord(nil), sess.feedbackHistory...)
	sess.mu.Unlock()

	return deliverables, history, nil
}

// selectFeedbackResponders picks the Implementation Specialist when present
// plus up to two agents whose expertise matches the feedback wording.
func (sess *session) selectFeedbackResponders(feedback string) []domain.AgentProfile {
	var chosen []domain.AgentProfile
	impl, hasImpl := sess.implementationAgent()
	if hasImpl {
		chosen = append(chosen, impl)
	}

	lower := strings.ToLower(feedback)
	matches := func(keywords []string, rolePart string, agent domain.AgentProfile) bool {
		if !strings.Contains(strings.ToLower(agent.Role), rolePart) {
			return false
		}
		for _, word := range keywords {
			if strings.Contains(lower, word) {
				return true
			}
		}
		return false
	}
	for _, agent := range sess.agents {
		if hasImpl && agent.ID == impl.ID {
			continue
		}
		if len(chosen) >= 3 {
			break
		}
		switch {
		case matches([]string{"budget", "cost", "expensive", "cheap"}, "media", agent),
			matches([]string{"creative", "content", "design", "visual"}, "creative", agent),
			matches([]string{"data", "metrics", "analytics", "performance"}, "data", agent),
			matches([]string{"brand", "message", "positioning"}, "brand", agent):
			chosen = append(chosen, agent)
		}
	}

	// Always respond with at least two agents when the team allows it.
	if len(chosen) < 2 {
		for _, agent := range sess.agents {
			if len(chosen) >= 2 {
				break
			}
			if !containsAgent(chosen, agent) {
				chosen = append(chosen, agent)
			}
		}
	}
	return chosen
}

func (sess *session) result() domain.CollaborationResult {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	refs := make([]domain.AgentRef, 0, len(sess.agents))
	for _, agent := range sess.agents {
		refs = append(refs, domain.AgentRef{Name: agent.Name, Role: agent.Role})
	}
	return domain.CollaborationResult{
		ConversationLog: append([]domain.ConversationMessage(nil), sess.conversationLog...),
		ThinkingLog:     append([]domain.ThinkingEntry(nil), sess.thinkingLog...),
		Deliverables:    sess.deliverables.Clone(),
		FeedbackHistory: append([]domain.FeedbackRecord(nil), sess.feedbackHistory...),
		AgentsInvolved:  refs,
		TotalRounds:     sess.rounds,
		Status:          "completed",
	}
}

func (sess *session) appendMessage(msg domain.ConversationMessage, eventType ...domain.EventType) {
	sess.mu.Lock()
	sess.conversationLog = append(sess.conversationLog, msg)
	sess.mu.Unlock()

	evt := domain.EventAgentMessage
	if len(eventType) > 0 {
		evt = eventType[0]
	}
	sess.svc.publish(sess.project.ID, evt, msg)
}

func (sess *session) logSystemMessage(message string) {
	sess.mu.Lock()
	sess.conversationLog = append(sess.conversationLog, domain.ConversationMessage{
		AgentName:   "System",
		AgentRole:   "Orchestrator",
		MessageType: "system",
		Content:     domain.MessageContent{Message: message},
		Round:       sess.rounds,
		Timestamp:   time.Now().UTC(),
	})
	sess.mu.Unlock()
}

func (sess *session) mergeOutputs(agentName string, outputs map[string]string) {
	if len(outputs) == 0 {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	current := sess.deliverables[agentName]
	if current.Outputs == nil {
		current.Outputs = make(map[string]string)
	}
	for key, value := range outputs {
		current.Outputs[key] = value
	}
	sess.deliverables[agentName] = current
}

func (sess *session) setFinal(agentName string, final domain.FinalDeliverable) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	current := sess.deliverables[agentName]
	current.Final = &final
	sess.deliverables[agentName] = current
}

func (sess *session) setFeedbackIteration(agentName string, final domain.FinalDeliverable) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	current := sess.deliverables[agentName]
	current.FeedbackIteration = &final
	sess.deliverables[agentName] = current
}

func (sess *session) lastMessageFromOther(agentName string) (domain.ConversationMessage, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for i := len(sess.conversationLog) - 1; i >= 0; i-- {
		msg := sess.conversationLog[i]
		if msg.AgentName != agentName && msg.AgentName != "System" {
			return msg, true
		}
	}
	return domain.ConversationMessage{}, false
}

// shouldEndConversation looks for wrap-up signals in the last three turns.
func (sess *session) shouldEndConversation() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := len(sess.conversationLog) - 3
	if start < 0 {
		start = 0
	}
	var recent strings.Builder
	for _, msg := range sess.conversationLog[start:] {
		recent.WriteString(strings.ToLower(msg.Content.Message))
		recent.WriteString(" ")
	}
	text := recent.String()

	count := 0
	for _, signal := range completionSignals {
		if strings.Contains(text, signal) {
			count++
		}
	}
	return count >= 2
}

func (sess *session) isRepetitiveTopic(message string) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	lower := strings.ToLower(message)
	mentions := 0
	for _, indicator := range repetitionIndicators {
		if strings.Contains(lower, indicator) && sess.discussedTopics[indicator] {
			mentions++
		}
	}
	return mentions > 2
}

func (sess *session) trackDiscussedTopic(contribution string) {
	if contribution == "" {
		return
	}
	lower := strings.ToLower(contribution)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, topic := range trackedTopics {
		if strings.Contains(lower, topic) {
			sess.discussedTopics[topic] = true
		}
	}
}

func (sess *session) topicsSnapshot() map[string]bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	snapshot := make(map[string]bool, len(sess.discussedTopics))
	for topic, seen := range sess.discussedTopics {
		snapshot[topic] = seen
	}
	return snapshot
}

func (sess *session) implementationAgent() (domain.AgentProfile, bool) {
	for _, agent := range sess.agents {
		if strings.Contains(agent.Role, "Implementation") {
			return agent, true
		}
	}
	return domain.AgentProfile{}, false
}

func (sess *session) currentRound() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.rounds
}

func (sess *session) pause(ctx context.Context) {
	if sess.svc.cfg.TurnDelay <= 0 {
		return
	}
	timer := time.NewTimer(sess.svc.cfg.TurnDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func agentNames(agents []domain.AgentProfile) []string {
	names := make([]string, 0, len(agents))
	for _, agent := range agents {
		names = append(names, agent.Name)
	}
	return names
}

func containsAgent(agents []domain.AgentProfile, target domain.AgentProfile) bool {
	for _, agent := range agents {
		if agent.ID == target.ID {
			return true
		}
	}
	return false
}
