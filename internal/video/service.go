package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"agent_agency/internal/domain"
	"agent_agency/internal/fs"
	"agent_agency/internal/relay"
)

type Publisher interface {
	Publish(projectID string, env domain.Envelope) error
}

type Recorder interface {
	RecordVideo(ctx context.Context, projectID, videoPath, filename string) error
	LatestVideo(ctx context.Context, projectID string) (path string, filename string, err error)
}

type Service struct {
	generator  Generator
	recorder   Recorder
	publisher  Publisher
	outputsDir string
	downloader *http.Client
	logger     *log.Logger
}

// NewService builds the video pipeline. A nil generator is allowed; the
// service then writes a render-request file instead of a clip, so the rest of
// the flow still works without an external rendering account.
func NewService(generator Generator, recorder Recorder, publisher Publisher, outputsDir string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if outputsDir == "" {
		outputsDir = "outputs/videos"
	}
	return &Service{
		generator:  generator,
		recorder:   recorder,
		publisher:  publisher,
		outputsDir: outputsDir,
		downloader: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Generate runs the full pipeline for one project and reports progress on the
// relay channel. It is meant to be called in its own goroutine.
func (s *Service) Generate(ctx context.Context, project domain.Project, result domain.CollaborationResult) {
	s.publish(project.ID, domain.EventVideoStarted, domain.StatusData{
		Message: "Creating your professional marketing video with AI...",
	})

	outputs, err := fs.NewDir(s.outputsDir)
	if err != nil {
		s.fail(project.ID, err)
		return
	}

	script := BuildScript(project.Goal, result.Deliverables, result.AgentsInvolved)

	var filename string
	if s.generator == nil {
		filename, err = s.writeRenderRequest(outputs, project, script)
	} else {
		filename, err = s.render(ctx, outputs, project, script)
	}
	if err != nil {
		s.fail(project.ID, err)
		return
	}

	videoPath, err := outputs.Resolve(filename)
	if err != nil {
		s.fail(project.ID, err)
		return
	}
	if err := s.recorder.RecordVideo(ctx, project.ID, videoPath, filename); err != nil {
		s.logger.Printf("video record failed project=%s err=%v", project.ID, err)
	}

	s.publish(project.ID, domain.EventVideoComplete, domain.VideoCompleteData{
		Message:       "Your marketing video is ready!",
		DownloadURL:   "/video/" + project.ID,
		VideoPath:     videoPath,
		VideoFilename: filename,
	})
	s.logger.Printf("video generation completed project=%s file=%s", project.ID, filename)
}

// Status reports whether a finished file exists for the project.
func (s *Service) Status(ctx context.Context, projectID string) (ready bool, downloadURL string) {
	if _, _, err := s.recorder.LatestVideo(ctx, projectID); err != nil {
		return false, ""
	}
	return true, "/video/" + projectID
}

func (s *Service) render(ctx context.Context, outputs *fs.Dir, project domain.Project, script string) (string, error) {
	videoURL, err := s.generator.Generate(ctx, script, project.Goal)
	if err != nil {
		return "", fmt.Errorf("generate video: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.mp4", project.ID, time.Now().UTC().Format("20060102_150405"))
	if err := s.download(ctx, outputs, videoURL, filename); err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	return filename, nil
}

func (s *Service) download(ctx context.Context, outputs *fs.Dir, videoURL, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	resp, err := s.downloader.Do(req)
	if err != nil {
		return fmt.Errorf("fetch video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch video: status=%d", resp.StatusCode)
	}

	f, err := outputs.Create(filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = outputs.Remove(filename)
		return fmt.Errorf("write video file: %w", err)
	}
	return f.Close()
}

// writeRenderRequest stores the script and render parameters as JSON so an
// operator can submit them to a rendering service by hand.
func (s *Service) writeRenderRequest(outputs *fs.Dir, project domain.Project, script string) (string, error) {
	request := map[string]any{
		"status":     "render_request",
		"project_id": project.ID,
		"topic":      project.Goal,
		"script":     script,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	filename := fmt.Sprintf("%s_render_request.json", project.ID)
	if _, err := outputs.WriteFile(filename, body); err != nil {
		return "", fmt.Errorf("write render request: %w", err)
	}
	return filename, nil
}

func (s *Service) fail(projectID string, cause error) {
	s.logger.Printf("video generation failed project=%s err=%v", projectID, cause)
	s.publish(projectID, domain.EventVideoError, domain.ErrorData{
		Message: fmt.Sprintf("Video generation failed: %v", cause),
	})
}

func (s *Service) publish(projectID string, eventType domain.EventType, data any) {
	env, err := domain.NewEnvelope(eventType, data)
	if err != nil {
		s.logger.Printf("video envelope build failed project=%s type=%s err=%v", projectID, eventType, err)
		return
	}
	if err := s.publisher.Publish(projectID, env); err != nil {
		if errors.Is(err, relay.ErrNotConnected) {
			s.logger.Printf("video no listener project=%s type=%s", projectID, eventType)
			return
		}
		s.logger.Printf("video publish failed project=%s type=%s err=%v", projectID, eventType, err)
	}
}
