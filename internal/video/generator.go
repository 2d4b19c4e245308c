package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGenerateRetries      = 2
	defaultGenerateRetryBackoff = 1500 * time.Millisecond
	defaultGenerateTimeout      = 2 * time.Minute
	maxHTTPErrorBodyReadSize    = 64 * 1024
)

// Generator produces a downloadable video for a narration script. The URL it
// returns must be fetchable with a plain GET.
type Generator interface {
	Generate(ctx context.Context, script, goal string) (string, error)
}

type HTTPGeneratorConfig struct {
	Endpoint     string
	AuthToken    string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Logger       *log.Logger
	Client       *http.Client
}

// HTTPGenerator submits the script to an external rendering service and
// returns the URL of the finished clip.
type HTTPGenerator struct {
	endpoint     string
	authToken    string
	retries      int
	retryBackoff time.Duration
	logger       *log.Logger
	client       *http.Client
}

func NewHTTPGenerator(cfg HTTPGeneratorConfig) (*HTTPGenerator, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("empty video endpoint")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid video endpoint %q: %w", endpoint, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultGenerateRetries
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultGenerateRetryBackoff
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPGenerator{
		endpoint:     endpoint,
		authToken:    strings.TrimSpace(cfg.AuthToken),
		retries:      retries,
		retryBackoff: retryBackoff,
		logger:       cfg.Logger,
		client:       client,
	}, nil
}

func (g *HTTPGenerator) Generate(ctx context.Context, script, goal string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.retries+1; attempt++ {
		videoURL, err := g.generateOnce(ctx, script, goal)
		if err == nil {
			return videoURL, nil
		}
		lastErr = err
		if !isRetryableAPIError(err) || attempt == g.retries+1 {
			break
		}
		wait := time.Duration(attempt) * g.retryBackoff
		g.logger.Printf("video generation retry attempt=%d wait=%s reason=%v", attempt, wait, err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown video generation error")
	}
	return "", lastErr
}

func (g *HTTPGenerator) generateOnce(ctx context.Context, script, goal string) (string, error) {
	payload := generateRequest{
		Script:   script,
		Topic:    goal,
		Vibe:     "professional and inspiring",
		Audience: "business decision makers",
		Platform: "youtube",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.authToken)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxHTTPErrorBodyReadSize))
		if readErr != nil {
			return "", fmt.Errorf("generate api status=%d and read body failed: %w", resp.StatusCode, readErr)
		}
		return "", apiHTTPError{
			statusCode: resp.StatusCode,
			body:       strings.TrimSpace(string(errBody)),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if out.VideoURL == "" {
		return "", errors.New("generate response missing video_url")
	}
	return out.VideoURL, nil
}

type generateRequest struct {
	Script   string `json:"script"`
	Topic    string `json:"topic"`
	Vibe     string `json:"vibe"`
	Audience string `json:"audience"`
	Platform string `json:"platform"`
}

type generateResponse struct {
	VideoURL string `json:"video_url"`
}

type apiHTTPError struct {
	statusCode int
	body       string
}

func (e apiHTTPError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("generate api status=%d", e.statusCode)
	}
	return fmt.Sprintf("generate api status=%d body=%s", e.statusCode, e.body)
}

func isRetryableAPIError(err error) bool {
	var statusErr apiHTTPError
	if errors.As(err, &statusErr) {
		return statusErr.statusCode == http.StatusTooManyRequests || statusErr.statusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
