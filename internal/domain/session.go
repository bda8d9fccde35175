package domain

// StepInstance is the single currently-valid issuance of a step to a client.
// The nonce is single-use: it dies the moment a submission against it is
// accepted, or a resync reissues a new instance for the same step.
type StepInstance struct {
	StepID     StepID
	InstanceID string
	Nonce      string
	IssuedAt   Timestamp
}

// Session represents one user's onboarding run. It is mutated exclusively by
// the onboarding service, and only through SessionStore.SaveSession, which is
// a compare-and-swap on ActiveInstance.Nonce.
type Session struct {
	ID        SessionID
	UserID    UserID
	DepthMode DepthMode
	State     SessionState

	// Answers holds the committed value per step. Values are immutable once
	// committed; steps are never re-opened.
	Answers map[StepID]any

	// CompletedSteps only grows, in submission order, except on a full reset.
	CompletedSteps []StepID

	// ActiveInstance is the single source of truth for "what step, if any,
	// is pending". It is nil once the session is complete or abandoned.
	ActiveInstance *StepInstance

	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// IsComplete reports whether the registry already returned terminal.
func (s *Session) IsComplete() bool {
	return s.State == SessionComplete
}

// HasCompleted reports whether the given step was already submitted.
func (s *Session) HasCompleted(id StepID) bool {
	for _, done := range s.CompletedSteps {
		if done == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores copy on read and write so callers can
// never alias the persisted record.
func (s *Session) Clone() *Session {
	out := *s

	out.Answers = make(map[StepID]any, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}

	out.CompletedSteps = append([]StepID(nil), s.CompletedSteps...)

	if s.ActiveInstance != nil {
		inst := *s.ActiveInstance
		out.ActiveInstance = &inst
	}

	return &out
}

// ActiveNonce returns the nonce of the active instance, or "" when the
// session has none. This is the value SaveSession compares against.
func (s *Session) ActiveNonce() string {
	if s.ActiveInstance == nil {
		return ""
	}
	return s.ActiveInstance.Nonce
}

// AnswerRecord is one accepted answer, mirrored to the analytics log.
type AnswerRecord struct {
	SessionID  SessionID
	UserID     UserID
	StepID     StepID
	Question   string
	Value      any
	RecordedAt Timestamp
}
