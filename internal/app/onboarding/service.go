// Package onboarding implements the server-authoritative step protocol:
// fetch/resume, submit, resync and reset. Every mutation goes through the
// session store's compare-and-swap, so a stale or replayed submission always
// fails closed and exactly one of two concurrent writers wins.
package onboarding

import (
	"context"
	"errors"
	"time"

	"github.com/plancompass/onboarding/internal/domain"
	"github.com/plancompass/onboarding/internal/observability"
	"github.com/plancompass/onboarding/internal/progress"
	"github.com/plancompass/onboarding/internal/registry"
)

// casRetries bounds the re-read loop of resync and reset when a concurrent
// writer keeps winning the swap.
const casRetries = 3

type Service struct {
	reg      *registry.Registry
	sessions domain.SessionStore

	// Both are optional and best-effort: failures are logged and swallowed,
	// never rolled into the protocol outcome.
	answerLog  domain.AnswerLog
	onComplete domain.CompletionListener

	resumeWindow time.Duration
	now          func() time.Time
}

func NewService(
	reg *registry.Registry,
	sessions domain.SessionStore,
	answerLog domain.AnswerLog,
	onComplete domain.CompletionListener,
	resumeWindow time.Duration,
) *Service {
	return &Service{
		reg:          reg,
		sessions:     sessions,
		answerLog:    answerLog,
		onComplete:   onComplete,
		resumeWindow: resumeWindow,
		now:          time.Now,
	}
}

// Snapshot is the authoritative state returned by every operation. The
// client caches it purely for rendering; it fully replaces whatever the
// client held before.
type Snapshot struct {
	Session  *domain.Session
	Step     *registry.StepDefinition // nil once the session is complete
	Progress progress.Report
}

func (s *Service) snapshot(session *domain.Session) (*Snapshot, error) {
	rep, err := progress.Compute(s.reg, session)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Session: session, Progress: rep}
	if session.ActiveInstance != nil {
		def, err := s.reg.Get(session.ActiveInstance.StepID)
		if err != nil {
			return nil, err
		}
		snap.Step = &def
	}
	return snap, nil
}

type StartOrResumeInput struct {
	UserID domain.UserID
}

// StartOrResume returns the user's current session, creating one on first
// visit. Resuming is idempotent: concurrent calls for the same user converge
// on one session because the store enforces a single active session per user.
func (s *Service) StartOrResume(ctx context.Context, in StartOrResumeInput) (*Snapshot, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", in.UserID)

	// Two passes: if our create loses a race, the second lookup returns the
	// winner's session.
	for attempt := 0; attempt < 2; attempt++ {
		latest, err := s.sessions.LatestSessionByUser(in.UserID)
		switch {
		case err == nil:
			fresh := s.now().Sub(latest.UpdatedAt) <= s.resumeWindow
			if fresh && latest.State != domain.SessionAbandoned {
				log.Info("resuming session", "session_id", latest.ID, "state", latest.State)
				return s.snapshot(latest)
			}
			if latest.State == domain.SessionActive {
				// Expired: abandon it so the one-active-per-user rule frees up.
				if err := s.abandon(latest); err != nil && !errors.Is(err, domain.ErrConflict) {
					return nil, err
				}
			}
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, err
		}

		session := s.newSession(in.UserID)
		err = s.sessions.CreateSession(session)
		if err == nil {
			log.Info("session started", "session_id", session.ID, "first_step", session.ActiveInstance.StepID)
			return s.snapshot(session)
		}
		if !errors.Is(err, domain.ErrSessionExists) {
			log.Error("failed to create session", "error", err)
			return nil, err
		}
		// A concurrent createOrResume won; loop and resume theirs.
	}

	return nil, domain.ErrConflict
}

func (s *Service) newSession(userID domain.UserID) *domain.Session {
	now := s.now()
	session := &domain.Session{
		ID:        newSessionID(),
		UserID:    userID,
		DepthMode: domain.DepthStandard,
		State:     domain.SessionActive,
		Answers:   make(map[domain.StepID]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.ActiveInstance = s.mintInstance(s.reg.FirstStep(session))
	return session
}

func (s *Service) abandon(session *domain.Session) error {
	nonce := session.ActiveNonce()
	session.State = domain.SessionAbandoned
	session.ActiveInstance = nil
	session.UpdatedAt = s.now()
	return s.sessions.SaveSession(session, nonce)
}

func (s *Service) mintInstance(step domain.StepID) *domain.StepInstance {
	if step == domain.StepTerminal {
		return nil
	}
	return &domain.StepInstance{
		StepID:     step,
		InstanceID: newInstanceID(),
		Nonce:      newNonce(),
		IssuedAt:   s.now(),
	}
}

// Get returns the current snapshot without reissuing anything.
func (s *Service) Get(ctx context.Context, id domain.SessionID) (*Snapshot, error) {
	session, err := s.sessions.GetSession(id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(session)
}

type SubmitInput struct {
	SessionID  domain.SessionID
	StepID     domain.StepID
	InstanceID string
	Nonce      string
	Payload    any
}

// Submit runs the protocol state machine for one answer. On success the
// returned snapshot carries a brand-new instance for the next step, so the
// client cannot double-apply its own submission by resubmitting. Any token
// mismatch, or losing the store's compare-and-swap, yields ErrConflict with
// the session untouched.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Snapshot, error) {
	log := observability.LoggerFromContext(ctx).With(
		"session_id", in.SessionID,
		"step_id", in.StepID,
	)

	session, err := s.sessions.GetSession(in.SessionID)
	if err != nil {
		return nil, err
	}

	active := session.ActiveInstance
	if active == nil ||
		active.StepID != in.StepID ||
		active.InstanceID != in.InstanceID ||
		active.Nonce != in.Nonce {
		log.Warn("stale submission rejected")
		return nil, domain.ErrConflict
	}

	def, err := s.reg.Get(in.StepID)
	if err != nil {
		// Step table mismatch between client and server builds.
		log.Error("submission for step missing from registry", "error", err)
		return nil, err
	}

	value, err := s.reg.ValidateAnswer(def, in.Payload)
	if err != nil {
		return nil, err
	}

	expectedNonce := active.Nonce

	session.Answers[in.StepID] = value
	session.CompletedSteps = append(session.CompletedSteps, in.StepID)
	applyDepthChoice(session, in.StepID, value)

	next, err := s.reg.NextStep(in.StepID, value, session)
	if err != nil {
		log.Error("branching failed", "error", err)
		return nil, err
	}

	if next == domain.StepTerminal {
		session.State = domain.SessionComplete
		session.ActiveInstance = nil
	} else {
		session.ActiveInstance = s.mintInstance(next)
	}
	session.UpdatedAt = s.now()

	if err := s.sessions.SaveSession(session, expectedNonce); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent writer won the race; nothing was applied.
			log.Warn("lost compare-and-swap, caller must resync")
		}
		return nil, err
	}

	s.logAnswer(ctx, session, def, value)

	if session.IsComplete() {
		log.Info("onboarding complete", "answers", len(session.Answers))
		s.notifyComplete(ctx, session)
	} else {
		log.Info("step accepted", "next_step", next)
	}

	return s.snapshot(session)
}

// applyDepthChoice promotes the depth step's answer to the session's depth
// mode, which drives phase skipping from the next branch computation on.
func applyDepthChoice(session *domain.Session, step domain.StepID, value any) {
	if step != registry.StepDepth {
		return
	}
	if mode, ok := value.(string); ok {
		session.DepthMode = domain.DepthMode(mode)
	}
}

func (s *Service) logAnswer(ctx context.Context, session *domain.Session, def registry.StepDefinition, value any) {
	if s.answerLog == nil {
		return
	}
	rec := &domain.AnswerRecord{
		SessionID:  session.ID,
		UserID:     session.UserID,
		StepID:     def.ID,
		Question:   def.Label,
		Value:      value,
		RecordedAt: s.now(),
	}
	if err := s.answerLog.AppendAnswer(rec); err != nil {
		// Analytics only. The accepted submission stands.
		observability.LoggerFromContext(ctx).Warn("answer log append failed", "error", err)
	}
}

func (s *Service) notifyComplete(ctx context.Context, session *domain.Session) {
	if s.onComplete == nil {
		return
	}
	if err := s.onComplete.SessionCompleted(session); err != nil {
		observability.LoggerFromContext(ctx).Error("completion listener failed",
			"session_id", session.ID, "error", err)
	}
}

// Resync retires the active instance and reissues a fresh one for the same
// step. It never advances the step and never touches answers or completed
// steps; a client that learned it is out of sync always gets a valid token
// back without losing its place.
func (s *Service) Resync(ctx context.Context, id domain.SessionID) (*Snapshot, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	for attempt := 0; attempt < casRetries; attempt++ {
		session, err := s.sessions.GetSession(id)
		if err != nil {
			return nil, err
		}

		if session.ActiveInstance == nil {
			// Complete (or abandoned) sessions have nothing to reissue.
			return s.snapshot(session)
		}

		expectedNonce := session.ActiveInstance.Nonce
		session.ActiveInstance = s.mintInstance(session.ActiveInstance.StepID)
		session.UpdatedAt = s.now()

		err = s.sessions.SaveSession(session, expectedNonce)
		if err == nil {
			log.Info("instance reissued", "step_id", session.ActiveInstance.StepID)
			return s.snapshot(session)
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		// Someone advanced or resynced concurrently; re-read and try again.
	}

	return nil, domain.ErrConflict
}

// Reset wipes answers and completed steps and restarts at the first step.
// This is the one sanctioned way completedSteps shrinks.
func (s *Service) Reset(ctx context.Context, id domain.SessionID) (*Snapshot, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	for attempt := 0; attempt < casRetries; attempt++ {
		session, err := s.sessions.GetSession(id)
		if err != nil {
			return nil, err
		}

		expectedNonce := session.ActiveNonce()

		session.Answers = make(map[domain.StepID]any)
		session.CompletedSteps = nil
		session.DepthMode = domain.DepthStandard
		session.State = domain.SessionActive
		session.ActiveInstance = s.mintInstance(s.reg.FirstStep(session))
		session.UpdatedAt = s.now()

		err = s.sessions.SaveSession(session, expectedNonce)
		if err == nil {
			log.Info("session reset")
			return s.snapshot(session)
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
	}

	return nil, domain.ErrConflict
}
