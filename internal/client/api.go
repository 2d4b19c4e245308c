package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agent_agency/internal/config"
	"agent_agency/internal/domain"
)

const maxErrorBodyReadSize = 16 * 1024

// API is the request/response half of the protocol. Everything asynchronous
// arrives on the relay channel instead; these calls only acknowledge.
type API struct {
	baseURL string
	client  *http.Client
}

func NewAPI(baseURL string, client *http.Client) *API {
	if baseURL == "" {
		baseURL = config.APIURL()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (a *API) BaseURL() string {
	return a.baseURL
}

// ChannelURL derives the relay channel address from the API base address by
// swapping the scheme and appending the project path.
func (a *API) ChannelURL(projectID string) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + projectID
	return u.String(), nil
}

func (a *API) AvailableAgents(ctx context.Context) ([]domain.AgentProfile, error) {
	var out struct {
		AvailableAgents []domain.AgentProfile `json:"available_agents"`
	}
	if err := a.do(ctx, http.MethodGet, "/available-agents", nil, &out); err != nil {
		return nil, err
	}
	return out.AvailableAgents, nil
}

func (a *API) StartCollaboration(ctx context.Context, goal string, agentIDs []string) (string, error) {
	body := map[string]any{
		"project_goal":    goal,
		"selected_agents": agentIDs,
	}
	var out struct {
		ProjectID string `json:"project_id"`
		Error     string `json:"error,omitempty"`
	}
	if err := a.do(ctx, http.MethodPost, "/start-collaboration", body, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("start collaboration: %s", out.Error)
	}
	if out.ProjectID == "" {
		return "", fmt.Errorf("start collaboration: missing project id")
	}
	return out.ProjectID, nil
}

func (a *API) TriggerCollaboration(ctx context.Context, projectID string) error {
	return a.do(ctx, http.MethodPost, "/trigger-collaboration/"+projectID, nil, nil)
}

func (a *API) SubmitFeedback(ctx context.Context, projectID, feedback string, requestedChanges []string) error {
	body := map[string]any{
		"feedback":          feedback,
		"requested_changes": requestedChanges,
	}
	return a.do(ctx, http.MethodPost, "/user-feedback/"+projectID, body, nil)
}

func (a *API) RequestVideo(ctx context.Context, projectID string) error {
	return a.do(ctx, http.MethodPost, "/generate-video/"+projectID, nil, nil)
}

// ProjectRecord is the persisted view served by the project endpoint, used by
// the deliverables dashboard.
type ProjectRecord struct {
	ProjectID           string                      `json:"project_id"`
	Goal                string                      `json:"goal"`
	SelectedAgents      []string                    `json:"selected_agents"`
	Status              string                      `json:"status"`
	CreatedAt           time.Time                   `json:"created_at"`
	CollaborationResult *domain.CollaborationResult `json:"collaboration_result,omitempty"`
}

func (a *API) Project(ctx context.Context, projectID string) (ProjectRecord, error) {
	var out ProjectRecord
	if err := a.do(ctx, http.MethodGet, "/projects/"+projectID, nil, &out); err != nil {
		return ProjectRecord{}, err
	}
	return out, nil
}

type VideoStatusRecord struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url,omitempty"`
}

func (a *API) VideoStatus(ctx context.Context, projectID string) (VideoStatusRecord, error) {
	var out VideoStatusRecord
	if err := a.do(ctx, http.MethodGet, "/video-status/"+projectID, nil, &out); err != nil {
		return VideoStatusRecord{}, err
	}
	return out, nil
}

func (a *API) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyReadSize))
		detail := strings.TrimSpace(string(raw))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			detail = apiErr.Error
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status=%d %s", method, path, resp.StatusCode, detail)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
