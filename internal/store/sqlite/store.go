package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agent_agency/internal/domain"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("project not found")

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	goal TEXT NOT NULL,
	selected_agents TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS collaboration_results (
	project_id TEXT PRIMARY KEY,
	conversation_log TEXT NOT NULL,
	thinking_log TEXT NOT NULL,
	deliverables TEXT NOT NULL,
	feedback_history TEXT NOT NULL,
	agents_involved TEXT NOT NULL,
	total_rounds INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS videos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	path TEXT NOT NULL,
	filename TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_videos_project ON videos(project_id, created_at);
`

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) CreateProject(ctx context.Context, project domain.Project) error {
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if project.Status == "" {
		project.Status = domain.ProjectStatusPending
	}
	agents, err := json.Marshal(project.SelectedAgents)
	if err != nil {
		return fmt.Errorf("marshal selected agents: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO projects(id, goal, selected_agents, status, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		project.ID, project.Goal, string(agents), string(project.Status),
		project.CreatedAt.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, goal, selected_agents, status, created_at
		FROM projects WHERE id = ?`,
		projectID,
	)
	var p domain.Project
	var agentsRaw, status string
	var created int64
	if err := row.Scan(&p.ID, &p.Goal, &agentsRaw, &status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, ErrNotFound
		}
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	if err := json.Unmarshal([]byte(agentsRaw), &p.SelectedAgents); err != nil {
		return domain.Project{}, fmt.Errorf("unmarshal selected agents: %w", err)
	}
	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = unixToTime(created)
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, goal, selected_agents, status, created_at
		FROM projects ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		var agentsRaw, status string
		var created int64
		if err := rows.Scan(&p.ID, &p.Goal, &agentsRaw, &status, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if err := json.Unmarshal([]byte(agentsRaw), &p.SelectedAgents); err != nil {
			return nil, fmt.Errorf("unmarshal selected agents: %w", err)
		}
		p.Status = domain.ProjectStatus(status)
		p.CreatedAt = unixToTime(created)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return result, nil
}

func (s *Store) UpdateProjectStatus(ctx context.Context, projectID string, status domain.ProjectStatus) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Unix(), projectID,
	)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	return nil
}

// SaveResult stores the full collaboration outcome and marks the project
// completed in one transaction.
func (s *Store) SaveResult(ctx context.Context, projectID string, result domain.CollaborationResult) error {
	conversation, err := json.Marshal(result.ConversationLog)
	if err != nil {
		return fmt.Errorf("marshal conversation log: %w", err)
	}
	thinking, err := json.Marshal(result.ThinkingLog)
	if err != nil {
		return fmt.Errorf("marshal thinking log: %w", err)
	}
	deliverables, err := json.Marshal(result.Deliverables)
	if err != nil {
		return fmt.Errorf("marshal deliverables: %w", err)
	}
	history, err := json.Marshal(result.FeedbackHistory)
	if err != nil {
		return fmt.Errorf("marshal feedback history: %w", err)
	}
	agents, err := json.Marshal(result.AgentsInvolved)
	if err != nil {
		return fmt.Errorf("marshal agents involved: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save result: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Unix()
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO collaboration_results(
			project_id, conversation_log, thinking_log, deliverables, feedback_history,
			agents_involved, total_rounds, status, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			conversation_log = excluded.conversation_log,
			thinking_log = excluded.thinking_log,
			deliverables = excluded.deliverables,
			feedback_history = excluded.feedback_history,
			agents_involved = excluded.agents_involved,
			total_rounds = excluded.total_rounds,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		projectID, string(conversation), string(thinking), string(deliverables),
		string(history), string(agents), result.TotalRounds, result.Status, now,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(domain.ProjectStatusCompleted), now, projectID,
	); err != nil {
		return fmt.Errorf("mark project completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save result: %w", err)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, projectID string) (domain.CollaborationResult, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT conversation_log, thinking_log, deliverables, feedback_history,
			agents_involved, total_rounds, status
		FROM collaboration_results WHERE project_id = ?`,
		projectID,
	)
	var conversation, thinking, deliverables, history, agents string
	var result domain.CollaborationResult
	if err := row.Scan(
		&conversation, &thinking, &deliverables, &history, &agents,
		&result.TotalRounds, &result.Status,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CollaborationResult{}, ErrNotFound
		}
		return domain.CollaborationResult{}, fmt.Errorf("get result: %w", err)
	}
	if err := json.Unmarshal([]byte(conversation), &result.ConversationLog); err != nil {
		return domain.CollaborationResult{}, fmt.Errorf("unmarshal conversation log: %w", err)
	}
	if err := json.Unmarshal([]byte(thinking), &result.ThinkingLog); err != nil {
		return domain.CollaborationResult{}, fmt.Errorf("unmarshal thinking log: %w", err)
	}
	if err := json.Unmarshal([]byte(deliverables), &result.Deliverables); err != nil {
		return domain.CollaborationResult{}, fmt.Errorf("unmarshal deliverables: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &result.FeedbackHistory); err != nil {
		return domain.CollaborationResult{}, fmt.Errorf("unmarshal feedback history: %w", err)
	}
	if err := json.Unmarshal([]byte(agents), &result.AgentsInvolved); err != nil {
		return domain.CollaborationResult{}, fmt.Errorf("unmarshal agents involved: %w", err)
	}
	return result, nil
}

// UpdateDeliverables replaces the stored deliverable set and feedback history
// after a feedback iteration. The conversation and thinking logs stay as
// saved by the original run.
func (s *Store) UpdateDeliverables(ctx context.Context, projectID string, deliverables domain.DeliverableSet, history []domain.FeedbackRecord) error {
	deliverablesRaw, err := json.Marshal(deliverables)
	if err != nil {
		return fmt.Errorf("marshal deliverables: %w", err)
	}
	historyRaw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal feedback history: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE collaboration_results
		SET deliverables = ?, feedback_history = ?, updated_at = ?
		WHERE project_id = ?`,
		string(deliverablesRaw), string(historyRaw), time.Now().UTC().Unix(), projectID,
	)
	if err != nil {
		return fmt.Errorf("update deliverables: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deliverables affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RecordVideo(ctx context.Context, projectID, videoPath, filename string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO videos(project_id, path, filename, created_at)
		VALUES(?, ?, ?, ?)`,
		projectID, videoPath, filename, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record video: %w", err)
	}
	return nil
}

// LatestVideo returns the newest recorded video for a project.
func (s *Store) LatestVideo(ctx context.Context, projectID string) (path string, filename string, err error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT path, filename FROM videos
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		projectID,
	)
	if err := row.Scan(&path, &filename); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("latest video: %w", err)
	}
	return path, filename, nil
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
