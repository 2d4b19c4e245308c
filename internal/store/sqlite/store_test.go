package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"agent_agency/internal/domain"
)

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	projectID := uuid.NewString()
	if err := store.CreateProject(ctx, domain.Project{
		ID:             projectID,
		Goal:           "launch eco smartphone",
		SelectedAgents: []string{"market_researcher", "brand_strategist"},
		Status:         domain.ProjectStatusPending,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	got, err := store.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Goal != "launch eco smartphone" {
		t.Fatalf("unexpected goal: %q", got.Goal)
	}
	if len(got.SelectedAgents) != 2 || got.SelectedAgents[0] != "market_researcher" {
		t.Fatalf("unexpected agents: %v", got.SelectedAgents)
	}
	if got.Status != domain.ProjectStatusPending {
		t.Fatalf("unexpected status: %s", got.Status)
	}

	if err := store.UpdateProjectStatus(ctx, projectID, domain.ProjectStatusRunning); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err = store.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("get project after update: %v", err)
	}
	if got.Status != domain.ProjectStatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}

	if _, err := store.GetProject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProjectsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	older := uuid.NewString()
	newer := uuid.NewString()
	if err := store.CreateProject(ctx, domain.Project{
		ID:             older,
		Goal:           "older goal",
		SelectedAgents: []string{"a", "b"},
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("create older project: %v", err)
	}
	if err := store.CreateProject(ctx, domain.Project{
		ID:             newer,
		Goal:           "newer goal",
		SelectedAgents: []string{"c", "d"},
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create newer project: %v", err)
	}

	projects, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].ID != newer || projects[1].ID != older {
		t.Fatalf("expected newest first, got %s then %s", projects[0].ID, projects[1].ID)
	}
	if len(projects[1].SelectedAgents) != 2 || projects[1].SelectedAgents[0] != "a" {
		t.Fatalf("unexpected agents on listed project: %v", projects[1].SelectedAgents)
	}
}

func TestSaveAndGetResult(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	projectID := uuid.NewString()
	if err := store.CreateProject(ctx, domain.Project{
		ID:             projectID,
		Goal:           "goal",
		SelectedAgents: []string{"data_analyst", "media_planner"},
	}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	result := domain.CollaborationResult{
		ConversationLog: []domain.ConversationMessage{
			{
				AgentName:   "Priya Patel",
				AgentRole:   "Data Analyst",
				MessageType: "introduction",
				Content:     domain.MessageContent{Message: "hello"},
				Round:       0,
				Timestamp:   time.Now().UTC(),
			},
		},
		ThinkingLog: []domain.ThinkingEntry{
			{AgentName: "Priya Patel", AgentRole: "Data Analyst", ThinkingProcess: "thinking"},
		},
		Deliverables: domain.DeliverableSet{
			"Priya Patel": {
				Outputs: map[string]string{"kpi_framework": "v1"},
				Final:   &domain.FinalDeliverable{Deliverable: "analytics plan"},
			},
		},
		AgentsInvolved: []domain.AgentRef{{Name: "Priya Patel", Role: "Data Analyst"}},
		TotalRounds:    3,
		Status:         "completed",
	}
	if err := store.SaveResult(ctx, projectID, result); err != nil {
		t.Fatalf("save result: %v", err)
	}

	got, err := store.GetResult(ctx, projectID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if len(got.ConversationLog) != 1 || got.ConversationLog[0].Content.Message != "hello" {
		t.Fatalf("unexpected conversation log: %+v", got.ConversationLog)
	}
	if got.TotalRounds != 3 {
		t.Fatalf("unexpected rounds: %d", got.TotalRounds)
	}
	if got.Deliverables["Priya Patel"].Final.Deliverable != "analytics plan" {
		t.Fatalf("unexpected deliverables: %+v", got.Deliverables)
	}

	project, err := store.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.Status != domain.ProjectStatusCompleted {
		t.Fatalf("expected completed after save, got %s", project.Status)
	}
}

func TestUpdateDeliverablesReplacesSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	projectID := uuid.NewString()
	if err := store.CreateProject(ctx, domain.Project{ID: projectID, Goal: "g", SelectedAgents: []string{"a", "b"}}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := store.SaveResult(ctx, projectID, domain.CollaborationResult{
		Deliverables: domain.DeliverableSet{
			"Old Agent": {Final: &domain.FinalDeliverable{Deliverable: "old"}},
		},
	}); err != nil {
		t.Fatalf("save result: %v", err)
	}

	updated := domain.DeliverableSet{
		"New Agent": {FeedbackIteration: &domain.FinalDeliverable{Deliverable: "new", ChangesMade: []string{"cut 30%"}}},
	}
	history := []domain.FeedbackRecord{
		{UserFeedback: "reduce budget", RequestedChanges: []string{"cut 30%"}, Timestamp: time.Now().UTC()},
	}
	if err := store.UpdateDeliverables(ctx, projectID, updated, history); err != nil {
		t.Fatalf("update deliverables: %v", err)
	}

	got, err := store.GetResult(ctx, projectID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if _, ok := got.Deliverables["Old Agent"]; ok {
		t.Fatalf("old deliverables should be gone: %+v", got.Deliverables)
	}
	if got.Deliverables["New Agent"].FeedbackIteration.Deliverable != "new" {
		t.Fatalf("unexpected updated deliverables: %+v", got.Deliverables)
	}
	if len(got.FeedbackHistory) != 1 || got.FeedbackHistory[0].UserFeedback != "reduce budget" {
		t.Fatalf("unexpected feedback history: %+v", got.FeedbackHistory)
	}

	if err := store.UpdateDeliverables(ctx, "missing", updated, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing project, got %v", err)
	}
}

func TestVideoRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	projectID := uuid.NewString()
	if err := store.CreateProject(ctx, domain.Project{ID: projectID, Goal: "g", SelectedAgents: []string{"a", "b"}}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	if _, _, err := store.LatestVideo(ctx, projectID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before recording, got %v", err)
	}

	if err := store.RecordVideo(ctx, projectID, "outputs/videos/first.mp4", "first.mp4"); err != nil {
		t.Fatalf("record first video: %v", err)
	}
	if err := store.RecordVideo(ctx, projectID, "outputs/videos/second.mp4", "second.mp4"); err != nil {
		t.Fatalf("record second video: %v", err)
	}

	path, filename, err := store.LatestVideo(ctx, projectID)
	if err != nil {
		t.Fatalf("latest video: %v", err)
	}
	if filename != "second.mp4" || path != "outputs/videos/second.mp4" {
		t.Fatalf("expected newest video, got path=%s filename=%s", path, filename)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		t.Fatalf("migrate store: %v", err)
	}
	return store
}
