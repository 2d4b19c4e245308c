// Package engine runs the simulated multi-agent collaboration for a project
// and reports every step exclusively through envelopes on the relay channel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent_agency/internal/catalog"
	"agent_agency/internal/domain"
	"agent_agency/internal/relay"
)

const (
	MinAgents = 2
	MaxAgents = 5
)

var (
	ErrEmptyGoal       = errors.New("project goal is required")
	ErrProjectNotFound = errors.New("project not found")
	ErrSessionNotFound = errors.New("project session not found")
)

type Publisher interface {
	Publish(projectID string, env domain.Envelope) error
}

type Store interface {
	CreateProject(ctx context.Context, project domain.Project) error
	UpdateProjectStatus(ctx context.Context, projectID string, status domain.ProjectStatus) error
	SaveResult(ctx context.Context, projectID string, result domain.CollaborationResult) error
	UpdateDeliverables(ctx context.Context, projectID string, deliverables domain.DeliverableSet, history []domain.FeedbackRecord) error
}

// Responder produces persona content for each kind of turn. It stands in for
// the external language-model collaborator.
type Responder interface {
	Think(ctx context.Context, profile domain.AgentProfile, goal string) (ThinkResult, error)
	Initiate(ctx context.Context, profile domain.AgentProfile, goal string) (TurnResult, error)
	Respond(ctx context.Context, profile domain.AgentProfile, req RespondRequest) (TurnResult, error)
	Finalize(ctx context.Context, profile domain.AgentProfile, req FinalizeRequest) (domain.FinalDeliverable, error)
}

type ThinkResult struct {
	Thinking        string
	Insights        []string
	Questions       []string
	Recommendations []string
}

type TurnResult struct {
	Message          string
	ActionTaken      string
	Stance           string
	Reasoning        string
	Contribution     string
	Outputs          map[string]string
	Insights         []string
	QuestionsForTeam []string
	ChallengesRaised []string
}

type RespondRequest struct {
	From            string
	MessageContent  string
	Goal            string
	Round           int
	DiscussedTopics map[string]bool
}

type FinalizeRequest struct {
	Goal             string
	UserFeedback     string
	RequestedChanges []string
}

type Config struct {
	MaxRounds int
	TurnDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 3
	}
	if c.TurnDelay < 0 {
		c.TurnDelay = 0
	}
	return c
}

type Service struct {
	store     Store
	publisher Publisher
	responder Responder
	cfg       Config
	logger    *log.Logger

	mu       sync.Mutex
	pending  map[string]domain.Project
	sessions map[string]*session
}

func New(store Store, publisher Publisher, responder Responder, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		responder: responder,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		pending:   make(map[string]domain.Project),
		sessions:  make(map[string]*session),
	}
}

// CreateProject validates the setup request and registers a pending project.
// No events are produced until the client has connected its channel and
// triggered the collaboration.
func (s *Service) CreateProject(ctx context.Context, goal string, agentIDs []string) (domain.Project, error) {
	if strings.TrimSpace(goal) == "" {
		return domain.Project{}, ErrEmptyGoal
	}
	if len(agentIDs) < MinAgents {
		return domain.Project{}, fmt.Errorf("please select at least %d agents", MinAgents)
	}
	if len(agentIDs) > MaxAgents {
		return domain.Project{}, fmt.Errorf("maximum %d agents allowed", MaxAgents)
	}
	for _, id := range agentIDs {
		if !catalog.Exists(id) {
			return domain.Project{}, fmt.Errorf("invalid agent id: %s", id)
		}
	}

	project := domain.Project{
		ID:             uuid.NewString(),
		Goal:           goal,
		SelectedAgents: agentIDs,
		Status:         domain.ProjectStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}

	s.mu.Lock()
	s.pending[project.ID] = project
	s.mu.Unlock()

	s.logger.Printf("engine project created id=%s agents=%d", project.ID, len(agentIDs))
	return project, nil
}

// Trigger starts the pending collaboration in the background. The client is
// expected to have opened the relay channel first; events emitted before that
// are lost, not buffered.
func (s *Service) Trigger(ctx context.Context, projectID string) error {
	s.mu.Lock()
	project, ok := s.pending[projectID]
	if ok {
		delete(s.pending, projectID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrProjectNotFound
	}

	go s.runCollaboration(context.WithoutCancel(ctx), project)
	return nil
}

// SubmitFeedback starts a feedback iteration for a completed collaboration in
// the background. The outcome is delivered on the relay channel, not in the
// request response.
func (s *Service) SubmitFeedback(ctx context.Context, projectID, feedback string, requestedChanges []string) error {
	s.mu.Lock()
	sess, ok := s.sessions[projectID]
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	go s.runFeedbackIteration(context.WithoutCancel(ctx), sess, feedback, requestedChanges)
	return nil
}

func (s *Service) runCollaboration(ctx context.Context, project domain.Project) {
	s.logger.Printf("engine collaboration starting project=%s", project.ID)
	s.publish(project.ID, domain.EventCollaborationStarted, domain.StatusData{
		Message: "AI agents are starting collaboration...",
	})

	sess, err := newSession(s, project)
	if err != nil {
		s.fail(ctx, project.ID, err)
		return
	}

	s.mu.Lock()
	s.sessions[project.ID] = sess
	s.mu.Unlock()

	if err := s.store.UpdateProjectStatus(ctx, project.ID, domain.ProjectStatusRunning); err != nil {
		s.logger.Printf("engine mark running failed project=%s err=%v", project.ID, err)
	}

	result, err := sess.run(ctx)
	if err != nil {
		s.fail(ctx, project.ID, err)
		return
	}

	if err := s.store.SaveResult(ctx, project.ID, result); err != nil {
		s.logger.Printf("engine save result failed project=%s err=%v", project.ID, err)
	}
	s.publish(project.ID, domain.EventCollaborationComplete, result)
	s.logger.Printf("engine collaboration completed project=%s rounds=%d", project.ID, result.TotalRounds)
}

func (s *Service) runFeedbackIteration(ctx context.Context, sess *session, feedback string, requestedChanges []string) {
	projectID := sess.project.ID
	s.logger.Printf("engine feedback iteration project=%s", projectID)

	s.publish(projectID, domain.EventUserFeedbackReceived, domain.UserFeedbackReceivedData{
		Feedback:         feedback,
		RequestedChanges: requestedChanges,
		Message:          "User feedback received. Agents are adapting the strategy...",
	})
	s.publish(projectID, domain.EventUserFeedbackProcess, domain.PhaseChangeData{
		Phase:   string(domain.PhaseFeedbackIteration),
		Message: "Agents are reviewing your feedback and adapting the strategy...",
	})

	deliverables, history, err := sess.processFeedback(ctx, feedback, requestedChanges)
	if err != nil {
		s.publish(projectID, domain.EventError, domain.ErrorData{
			Message: fmt.Sprintf("Error processing feedback: %v", err),
		})
		return
	}

	if err := s.store.UpdateDeliverables(ctx, projectID, deliverables, history); err != nil {
		s.logger.Printf("engine update deliverables failed project=%s err=%v", projectID, err)
	}
	s.publish(projectID, domain.EventDeliverablesUpdated, domain.DeliverablesUpdatedData{
		Deliverables: deliverables,
		Message:      "Strategy updated based on your feedback!",
	})
}

// Result returns the current aggregate result for a live session.
func (s *Service) Result(projectID string) (domain.CollaborationResult, error) {
	s.mu.Lock()
	sess, ok := s.sessions[projectID]
	s.mu.Unlock()
	if !ok {
		return domain.CollaborationResult{}, ErrSessionNotFound
	}
	return sess.result(), nil
}

func (s *Service) fail(ctx context.Context, projectID string, cause error) {
	s.logger.Printf("engine collaboration failed project=%s err=%v", projectID, cause)
	if err := s.store.UpdateProjectStatus(ctx, projectID, domain.ProjectStatusFailed); err != nil {
		s.logger.Printf("engine mark failed status project=%s err=%v", projectID, err)
	}
	s.publish(projectID, domain.EventError, domain.ErrorData{Message: cause.Error()})
}

func (s *Service) publish(projectID string, eventType domain.EventType, data any) {
	env, err := domain.NewEnvelope(eventType, data)
	if err != nil {
		s.logger.Printf("engine envelope build failed project=%s type=%s err=%v", projectID, eventType, err)
		return
	}
	if err := s.publisher.Publish(projectID, env); err != nil {
		if errors.Is(err, relay.ErrNotConnected) {
			s.logger.Printf("engine no listener project=%s type=%s", projectID, eventType)
			return
		}
		s.logger.Printf("engine publish failed project=%s type=%s err=%v", projectID, eventType, err)
	}
}
