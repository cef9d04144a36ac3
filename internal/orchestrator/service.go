package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kc-vaultik/shapex-studio/internal/agent"
	"github.com/kc-vaultik/shapex-studio/internal/blueprint"
	"github.com/kc-vaultik/shapex-studio/internal/dispatch"
	"github.com/kc-vaultik/shapex-studio/internal/idea"
	"github.com/kc-vaultik/shapex-studio/internal/ids"
	"github.com/kc-vaultik/shapex-studio/internal/protocol"
	"github.com/kc-vaultik/shapex-studio/internal/session"
)

var (
	// ErrIdeaMismatch is returned when a start command names a different
	// idea than the one the session was created for.
	ErrIdeaMismatch = errors.New("idea does not match session")

	// ErrStageFailure wraps any stage error that aborted the pipeline.
	ErrStageFailure = errors.New("stage failure")
)

const defaultStageTimeout = 5 * time.Minute

// progressFloor is the display progress reported on each stage's start.
// Monotonic across the fixed stage order; not load-bearing.
var progressFloor = map[agent.Role]int{
	agent.RoleResearcher: 5,
	agent.RoleValidator:  40,
	agent.RoleStrategist: 75,
}

// Sink receives the ordered event stream for live observers. Delivery is
// best effort; the sink must never block the workflow on a slow client.
type Sink interface {
	Publish(ctx context.Context, event protocol.Event)
}

type Option func(*Service)

// Service owns the session state machine and the fixed three-stage
// pipeline. Exactly one goroutine drives a given session through
// StartWorkflow; readers observe snapshots through the stores.
type Service struct {
	logger       *log.Logger
	ideas        idea.Store
	sessions     session.Store
	blueprints   blueprint.Store
	workers      map[agent.Role]agent.Worker
	sink         Sink
	dispatcher   *dispatch.Dispatcher
	stageTimeout time.Duration
	now          func() time.Time
}

func NewService(
	logger *log.Logger,
	ideas idea.Store,
	sessions session.Store,
	blueprints blueprint.Store,
	workers []agent.Worker,
	sink Sink,
	dispatcher *dispatch.Dispatcher,
	opts ...Option,
) (*Service, error) {
	byRole := make(map[agent.Role]agent.Worker, len(workers))
	for _, w := range workers {
		if w == nil {
			return nil, fmt.Errorf("nil worker")
		}
		if _, dup := byRole[w.Role()]; dup {
			return nil, fmt.Errorf("duplicate worker for role %q", w.Role())
		}
		byRole[w.Role()] = w
	}
	for _, role := range agent.Roles() {
		if _, ok := byRole[role]; !ok {
			return nil, fmt.Errorf("missing worker for role %q", role)
		}
	}

	svc := &Service{
		logger:       logger,
		ideas:        ideas,
		sessions:     sessions,
		blueprints:   blueprints,
		workers:      byRole,
		sink:         sink,
		dispatcher:   dispatcher,
		stageTimeout: defaultStageTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

func WithStageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stageTimeout = d
		}
	}
}

// CreateSession allocates a new session in created status after verifying
// the idea exists. No stage runs yet; the caller opens the stream channel
// and sends the start command separately.
func (s *Service) CreateSession(ctx context.Context, ideaID int64, userID string) (session.SessionRecord, error) {
	if _, err := s.ideas.GetIdea(ctx, ideaID); err != nil {
		return session.SessionRecord{}, fmt.Errorf("resolve idea %d: %w", ideaID, err)
	}

	now := s.now().UTC()
	rec := session.SessionRecord{
		SessionID: ids.NewSession(),
		IdeaID:    ideaID,
		UserID:    userID,
		Status:    session.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, rec); err != nil {
		return session.SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.Printf("session created session_id=%s idea_id=%d", rec.SessionID, ideaID)
	return rec, nil
}

// GetSession returns a consistent snapshot of one session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (session.SessionRecord, error) {
	return s.sessions.GetSession(ctx, sessionID)
}

// ListSessions returns recent sessions, optionally filtered by status.
func (s *Service) ListSessions(ctx context.Context, status session.Status, limit int) ([]session.SessionRecord, error) {
	return s.sessions.ListSessions(ctx, status, limit)
}

// GetBlueprint returns one stored blueprint.
func (s *Service) GetBlueprint(ctx context.Context, blueprintID string) (blueprint.Record, error) {
	return s.blueprints.GetBlueprint(ctx, blueprintID)
}

// GetIdea returns one idea record.
func (s *Service) GetIdea(ctx context.Context, ideaID int64) (idea.Record, error) {
	return s.ideas.GetIdea(ctx, ideaID)
}

// StartWorkflow runs the full pipeline for the session to a terminal
// state. At most one invocation per session succeeds; any attempt against
// a session that is no longer created returns session.ErrInvalidState
// without emitting anything, and the compare-and-set in MarkRunning
// backstops concurrent racers. Once accepted, the run proceeds
// unattended: ctx should outlive the caller's connection.
func (s *Service) StartWorkflow(ctx context.Context, sessionID string, ideaID int64) error {
	rec, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	// Commands are only honored while the session is still created. A
	// stray command on a reconnected channel must not touch a run that
	// another goroutine already owns.
	if rec.Status != session.StatusCreated {
		return fmt.Errorf("session %s is %s: %w", sessionID, rec.Status, session.ErrInvalidState)
	}

	if rec.IdeaID != ideaID {
		reason := fmt.Sprintf("idea %d does not match session idea %d", ideaID, rec.IdeaID)
		s.failSession(ctx, sessionID, reason)
		s.emit(ctx, protocol.Event{Type: protocol.EventTypeSessionError, SessionID: sessionID, Error: reason})
		return fmt.Errorf("%s: %w", reason, ErrIdeaMismatch)
	}

	ideaRec, err := s.ideas.GetIdea(ctx, rec.IdeaID)
	if err != nil {
		reason := fmt.Sprintf("resolve idea %d: %v", rec.IdeaID, err)
		s.failSession(ctx, sessionID, reason)
		s.emit(ctx, protocol.Event{Type: protocol.EventTypeSessionError, SessionID: sessionID, Error: reason})
		return fmt.Errorf("resolve idea %d: %w", rec.IdeaID, err)
	}

	rec, err = s.sessions.MarkRunning(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("mark session running: %w", err)
	}
	started := s.now()
	s.logger.Printf("workflow start session_id=%s idea_id=%d", sessionID, rec.IdeaID)

	s.emit(ctx, protocol.Event{
		Type:         protocol.EventTypeSessionStart,
		SessionID:    sessionID,
		IdeaTitle:    ideaRec.Title,
		IdeaCategory: ideaRec.Category,
	})

	prior := make(map[agent.Role]agent.Output, len(agent.Roles()))
	var totals session.Totals
	for _, role := range agent.Roles() {
		out, duration, err := s.runStage(ctx, sessionID, role, agent.Context{Idea: ideaRec, Prior: prior})
		if err != nil {
			reason := fmt.Sprintf("stage %s: %v", role, err)
			s.failSession(ctx, sessionID, reason)
			s.emit(ctx, protocol.Event{
				Type:      protocol.EventTypeSessionError,
				SessionID: sessionID,
				Error:     reason,
			})
			s.logger.Printf("workflow failed session_id=%s stage=%s err=%v", sessionID, role, err)
			return fmt.Errorf("stage %s: %v: %w", role, err, ErrStageFailure)
		}

		prior[role] = out
		totals.TokensUsed += out.TokensUsed
		totals.CostUSD += out.CostUSD

		s.emit(ctx, protocol.Event{
			Type:       protocol.EventTypeAgentComplete,
			SessionID:  sessionID,
			AgentName:  string(role),
			Duration:   duration.Seconds(),
			TokenCount: out.TokensUsed,
			Cost:       out.CostUSD,
		})
	}
	totals.DurationSeconds = s.now().Sub(started).Seconds()

	bp := blueprint.Record{
		BlueprintID:        ids.NewBlueprint(),
		SessionID:          sessionID,
		IdeaID:             rec.IdeaID,
		MarketResearch:     prior[agent.RoleResearcher].Structured,
		ValidationAnalysis: prior[agent.RoleValidator].Structured,
		StrategicPlan:      prior[agent.RoleStrategist].Structured,
		CreatedAt:          s.now().UTC(),
	}
	bp.ExecutiveSummary = executiveSummary(bp)
	bp.KeyInsights = keyInsights(bp)
	bp.SuccessProbability = successProbability(bp)

	if err := s.blueprints.CreateBlueprint(ctx, bp); err != nil {
		reason := fmt.Sprintf("persist blueprint: %v", err)
		s.failSession(ctx, sessionID, reason)
		s.emit(ctx, protocol.Event{Type: protocol.EventTypeSessionError, SessionID: sessionID, Error: reason})
		return fmt.Errorf("persist blueprint: %w", err)
	}

	if err := s.sessions.CompleteSession(ctx, sessionID, bp.BlueprintID, totals); err != nil {
		reason := fmt.Sprintf("complete session: %v", err)
		s.emit(ctx, protocol.Event{Type: protocol.EventTypeSessionError, SessionID: sessionID, Error: reason})
		return fmt.Errorf("complete session: %w", err)
	}

	s.emit(ctx, protocol.Event{
		Type:        protocol.EventTypeSessionComplete,
		SessionID:   sessionID,
		BlueprintID: bp.BlueprintID,
	})
	s.logger.Printf("workflow complete session_id=%s blueprint_id=%s tokens=%d cost_usd=%.4f duration_s=%.1f",
		sessionID, bp.BlueprintID, totals.TokensUsed, totals.CostUSD, totals.DurationSeconds)
	return nil
}

// runStage executes one worker under the per-stage timeout, relaying its
// chunks in production order.
func (s *Service) runStage(ctx context.Context, sessionID string, role agent.Role, wc agent.Context) (agent.Output, time.Duration, error) {
	s.emit(ctx, protocol.Event{
		Type:      protocol.EventTypeAgentStart,
		SessionID: sessionID,
		AgentName: string(role),
		Progress:  progressFloor[role],
	})

	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	onChunk := func(text string) {
		if text == "" {
			return
		}
		s.emit(ctx, protocol.Event{
			Type:      protocol.EventTypeAgentStream,
			SessionID: sessionID,
			AgentName: string(role),
			Content:   text,
		})
	}

	started := s.now()
	out, err := s.workers[role].Run(stageCtx, wc, onChunk)
	duration := s.now().Sub(started)
	if err != nil {
		if stageCtx.Err() == context.DeadlineExceeded {
			return agent.Output{}, duration, fmt.Errorf("timed out after %s", s.stageTimeout)
		}
		return agent.Output{}, duration, err
	}
	return out, duration, nil
}

func (s *Service) failSession(ctx context.Context, sessionID, reason string) {
	if err := s.sessions.FailSession(ctx, sessionID, reason); err != nil {
		s.logger.Printf("fail session persist failed session_id=%s err=%v", sessionID, err)
	}
}

func (s *Service) emit(ctx context.Context, event protocol.Event) {
	if s.sink != nil {
		s.sink.Publish(ctx, event)
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, event)
	}
}
