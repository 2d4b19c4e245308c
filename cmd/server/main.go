package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"agent_agency/internal/catalog"
	"agent_agency/internal/client"
	"agent_agency/internal/config"
	"agent_agency/internal/engine"
	"agent_agency/internal/relay"
	sqlitestore "agent_agency/internal/store/sqlite"
	"agent_agency/internal/video"
)

type app struct {
	cfg    config.Config
	store  *sqlitestore.Store
	hub    *relay.Hub
	engine *engine.Service
	video  *video.Service
}

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: ~/.agency/config.toml)")
	addrFlag := flag.String("addr", "", "http listen address override")
	dbPathFlag := flag.String("db", "", "sqlite database path override")
	outputsFlag := flag.String("outputs", "", "video outputs directory override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	addr := firstNonEmpty(*addrFlag, cfg.Server.Addr, ":8000")
	dbPath := filepath.Clean(firstNonEmpty(*dbPathFlag, cfg.Server.DBPath, "agency.db"))
	outputsDir := filepath.Clean(firstNonEmpty(*outputsFlag, cfg.Server.OutputsDir, filepath.Join("outputs", "videos")))

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create db directory: %v", err)
		}
	}

	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		log.Fatalf("open sqlite store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate sqlite: %v", err)
	}

	hub := relay.NewHub(log.Default())
	defer hub.Close()

	engineCfg := engine.Config{
		MaxRounds: cfg.Engine.MaxRounds,
		TurnDelay: cfg.Engine.TurnDelay(),
	}
	eng := engine.New(store, hub, engine.NewScriptedResponder(), engineCfg, log.Default())

	var generator video.Generator
	if cfg.Video.Endpoint != "" {
		generator, err = video.NewHTTPGenerator(video.HTTPGeneratorConfig{
			Endpoint:  cfg.Video.Endpoint,
			AuthToken: cfg.Video.AuthToken,
			Timeout:   cfg.Video.Timeout(),
			Retries:   cfg.Video.Retries,
			Logger:    log.Default(),
		})
		if err != nil {
			log.Fatalf("create video generator: %v", err)
		}
	}
	videoSvc := video.NewService(generator, store, hub, outputsDir, log.Default())

	a := &app{
		cfg:    cfg,
		store:  store,
		hub:    hub,
		engine: eng,
		video:  videoSvc,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/config", a.handleConfig)
	mux.HandleFunc("/available-agents", a.handleAvailableAgents)
	mux.HandleFunc("/start-collaboration", a.handleStartCollaboration)
	mux.HandleFunc("/trigger-collaboration/", a.handleTriggerCollaboration)
	mux.HandleFunc("/user-feedback/", a.handleUserFeedback)
	mux.HandleFunc("/generate-video/", a.handleGenerateVideo)
	mux.HandleFunc("/projects/", a.handleProject)
	mux.HandleFunc("/video/", a.handleVideoDownload)
	mux.HandleFunc("/video-status/", a.handleVideoStatus)
	mux.HandleFunc("/ws/", a.handleChannel)

	server := &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("agent_agency server started addr=%s db=%s outputs=%s", addr, dbPath, outputsDir)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed: %v", err)
	}
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   a.cfg.Path,
		"server": a.cfg.Server,
		"engine": a.cfg.Engine,
	})
}

func (a *app) handleAvailableAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available_agents": catalog.List(),
	})
}

// handleStartCollaboration validates the setup and registers a pending
// project. Nothing runs until the client has opened its channel and called
// the trigger endpoint.
func (a *app) handleStartCollaboration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ProjectGoal    string   `json:"project_goal"`
		SelectedAgents []string `json:"selected_agents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
		return
	}

	project, err := a.engine.CreateProject(r.Context(), req.ProjectGoal, req.SelectedAgents)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": project.ID,
		"status":     "ready",
	})
}

func (a *app) handleTriggerCollaboration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	projectID := pathID(r, "/trigger-collaboration/")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("project id is required"))
		return
	}
	if err := a.engine.Trigger(r.Context(), projectID); err != nil {
		if errors.Is(err, engine.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "collaboration_started"})
}

func (a *app) handleUserFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	projectID := pathID(r, "/user-feedback/")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("project id is required"))
		return
	}
	var req struct {
		Feedback         string   `json:"feedback"`
		RequestedChanges []string `json:"requested_changes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("feedback is required"))
		return
	}

	if err := a.engine.SubmitFeedback(r.Context(), projectID, req.Feedback, req.RequestedChanges); err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "feedback_received",
		"message": "Agents are adapting based on your feedback...",
	})
}

func (a *app) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	projectID := pathID(r, "/generate-video/")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("project id is required"))
		return
	}

	project, err := a.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, sqlitestore.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	result, err := a.engine.Result(projectID)
	if err != nil {
		result, err = a.store.GetResult(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("no collaboration result for project %s", projectID))
			return
		}
	}

	go a.video.Generate(context.WithoutCancel(r.Context()), project, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "video_generation_started",
		"project_id": projectID,
	})
}

func (a *app) handleProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	projectID := pathID(r, "/projects/")
	if projectID == "" {
		a.handleProjectList(w, r)
		return
	}

	project, err := a.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, sqlitestore.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	record := client.ProjectRecord{
		ProjectID:      project.ID,
		Goal:           project.Goal,
		SelectedAgents: project.SelectedAgents,
		Status:         string(project.Status),
		CreatedAt:      project.CreatedAt,
	}
	if result, err := a.store.GetResult(r.Context(), projectID); err == nil {
		record.CollaborationResult = &result
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *app) handleProjectList(w http.ResponseWriter, r *http.Request) {
	projects, err := a.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	records := make([]client.ProjectRecord, 0, len(projects))
	for _, project := range projects {
		records = append(records, client.ProjectRecord{
			ProjectID:      project.ID,
			Goal:           project.Goal,
			SelectedAgents: project.SelectedAgents,
			Status:         string(project.Status),
			CreatedAt:      project.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": records})
}

// handleVideoDownload serves the newest video file for the project with
// cache-busting headers so a regenerated clip replaces the old one in the
// browser.
func (a *app) handleVideoDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	projectID := pathID(r, "/video/")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("project id is required"))
		return
	}

	videoPath, filename, err := a.store.LatestVideo(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, sqlitestore.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("no video files found for this project"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	downloadName := fmt.Sprintf("marketing_strategy_%s%s", projectID, filepath.Ext(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.ServeFile(w, r, videoPath)
}

func (a *app) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	projectID := pathID(r, "/video-status/")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("project id is required"))
		return
	}
	if _, err := a.store.GetProject(r.Context(), projectID); err != nil {
		if errors.Is(err, sqlitestore.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	ready, downloadURL := a.video.Status(r.Context(), projectID)
	if ready {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "completed",
			"download_url": downloadURL,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "processing",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleChannel(w http.ResponseWriter, r *http.Request) {
	projectID := pathID(r, "/ws/")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("project id is required"))
		return
	}
	if err := a.hub.Handle(w, r, projectID); err != nil {
		log.Printf("channel upgrade failed project=%s err=%v", projectID, err)
	}
}

func pathID(r *http.Request, prefix string) string {
	trimmed := strings.TrimPrefix(r.URL.Path, prefix)
	return strings.Trim(trimmed, "/")
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
