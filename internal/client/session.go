package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"agent_agency/internal/domain"
)

const (
	minAgents = 2
	maxAgents = 5
)

var (
	ErrBusy          = errors.New("an action is already in flight")
	ErrNotStarted    = errors.New("no collaboration started")
	ErrBadAgentCount = fmt.Errorf("select between %d and %d agents", minAgents, maxAgents)
	ErrEmptyGoal     = errors.New("project goal must not be empty")
	ErrEmptyFeedback = errors.New("feedback narrative must not be empty")
)

// Session drives one project end to end: start the collaboration, keep the
// channel open, fold events into the snapshot, and submit feedback or video
// requests. All methods are safe for concurrent use with the read loop.
type Session struct {
	api    *API
	dialer *websocket.Dialer
	logger *log.Logger

	// OnUpdate, when set, is called after every snapshot change with a copy
	// of the new snapshot. Set it before Start.
	OnUpdate func(Snapshot)

	mu   sync.Mutex
	snap Snapshot
	form FeedbackForm
	ws   *websocket.Conn
	done chan struct{}
}

func NewSession(api *API, logger *log.Logger) *Session {
	if api == nil {
		api = NewAPI("", nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		api:    api,
		dialer: websocket.DefaultDialer,
		logger: logger,
		snap:   NewSnapshot(""),
		form:   NewFeedbackForm(),
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Session) Form() FeedbackForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	form := s.form
	form.Changes = append([]string(nil), s.form.Changes...)
	return form
}

func (s *Session) EditForm(edit func(*FeedbackForm)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edit(&s.form)
}

// Start validates the setup, creates the project, opens the relay channel and
// only then triggers the collaboration. The channel must be listening before
// the trigger or the earliest events are lost.
func (s *Session) Start(ctx context.Context, goal string, agentIDs []string) (string, error) {
	if strings.TrimSpace(goal) == "" {
		return "", ErrEmptyGoal
	}
	if len(agentIDs) < minAgents || len(agentIDs) > maxAgents {
		return "", ErrBadAgentCount
	}

	s.mu.Lock()
	if s.snap.Busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	if !canTransition(s.snap.Phase, domain.PhaseCollaborating) {
		phase := s.snap.Phase
		s.mu.Unlock()
		return "", fmt.Errorf("cannot start collaboration from phase %q", phase)
	}
	s.snap.Busy = true
	s.mu.Unlock()

	projectID, err := s.api.StartCollaboration(ctx, goal, agentIDs)
	if err != nil {
		s.failStart(err)
		return "", err
	}

	ws, err := s.connect(ctx, projectID)
	if err != nil {
		s.failStart(err)
		return "", err
	}

	s.mu.Lock()
	s.snap = NewSnapshot(projectID)
	s.snap.Phase = domain.PhaseCollaborating
	s.snap.Busy = true
	s.form = NewFeedbackForm()
	s.ws = ws
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.readLoop(ws, done)

	if err := s.api.TriggerCollaboration(ctx, projectID); err != nil {
		s.Reset()
		return "", err
	}
	return projectID, nil
}

// SubmitFeedback sends the current form. The phase moves to
// feedback_iteration optimistically; the server confirms on the channel.
func (s *Session) SubmitFeedback(ctx context.Context) error {
	s.mu.Lock()
	if s.ws == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if !s.form.CanSubmit(s.snap.Busy) {
		busy := s.snap.Busy
		s.mu.Unlock()
		if busy {
			return ErrBusy
		}
		return ErrEmptyFeedback
	}
	if !canTransition(s.snap.Phase, domain.PhaseFeedbackIteration) {
		phase := s.snap.Phase
		s.mu.Unlock()
		return fmt.Errorf("cannot submit feedback from phase %q", phase)
	}
	projectID := s.snap.ProjectID
	narrative := s.form.Narrative
	changes := s.form.RequestedChanges()
	s.snap.Phase = domain.PhaseFeedbackIteration
	s.snap.Busy = true
	s.mu.Unlock()

	if err := s.api.SubmitFeedback(ctx, projectID, narrative, changes); err != nil {
		s.mu.Lock()
		s.snap.Phase = domain.PhaseCompleted
		s.snap.Busy = false
		s.snap.ErrorBanner = err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.notify()
	return nil
}

func (s *Session) RequestVideo(ctx context.Context) error {
	s.mu.Lock()
	projectID := s.snap.ProjectID
	s.mu.Unlock()
	if projectID == "" {
		return ErrNotStarted
	}
	return s.api.RequestVideo(ctx, projectID)
}

// Reset abandons the project: closes the channel, discards the snapshot and
// the feedback draft, and returns to setup. In-flight server work is not
// cancelled, only ignored.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.ws != nil {
		_ = s.ws.Close()
		s.ws = nil
	}
	s.snap = NewSnapshot("")
	s.form = NewFeedbackForm()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) connect(ctx context.Context, projectID string) (*websocket.Conn, error) {
	channelURL, err := s.api.ChannelURL(projectID)
	if err != nil {
		return nil, err
	}
	ws, _, err := s.dialer.DialContext(ctx, channelURL, nil)
	if err != nil {
		return nil, fmt.Errorf("open relay channel: %w", err)
	}
	return ws, nil
}

func (s *Session) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var env domain.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			s.mu.Lock()
			current := s.ws == ws
			if current {
				s.ws = nil
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.snap.ErrorBanner = fmt.Sprintf("connection lost: %v", err)
				}
			}
			s.mu.Unlock()
			if current {
				s.notify()
			}
			return
		}

		s.mu.Lock()
		if s.ws != ws {
			s.mu.Unlock()
			return
		}
		s.snap = Apply(s.snap, env)
		if env.Type == domain.EventDeliverablesUpdated {
			s.form.Reset()
		}
		s.mu.Unlock()
		s.notify()
	}
}

func (s *Session) failStart(cause error) {
	s.mu.Lock()
	s.snap.Busy = false
	s.snap.Phase = domain.PhaseSetup
	s.snap.ErrorBanner = cause.Error()
	s.mu.Unlock()
	s.logger.Printf("client start failed err=%v", cause)
	s.notify()
}

func (s *Session) notify() {
	if s.OnUpdate == nil {
		return
	}
	s.OnUpdate(s.Snapshot())
}
