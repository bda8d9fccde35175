package domain

// SessionStore defines session persistence. SaveSession is the single
// mechanism that makes the submission protocol race-safe: it is an atomic
// compare-and-swap that succeeds only if the stored active nonce still
// equals expectedNonce at write time.
type SessionStore interface {
	// CreateSession registers a new session. Returns ErrSessionExists if the
	// user already has an active one (idempotent createOrResume relies on it).
	CreateSession(session *Session) error

	// GetSession returns the session or ErrSessionNotFound.
	GetSession(id SessionID) (*Session, error)

	// LatestSessionByUser returns the user's newest session by creation time,
	// or ErrSessionNotFound when the user has none.
	LatestSessionByUser(userID UserID) (*Session, error)

	// SaveSession replaces the stored record iff its active nonce still
	// equals expectedNonce; otherwise it returns ErrConflict and applies
	// nothing. A session with no active instance has nonce "".
	SaveSession(session *Session, expectedNonce string) error
}

// AnswerLog receives every accepted answer for analytics. It is append-only
// and best-effort: failures must never block or roll back the protocol.
type AnswerLog interface {
	AppendAnswer(rec *AnswerRecord) error
}

// CompletionListener is notified exactly once, after the terminal save
// succeeds. Used to trigger downstream profile generation.
type CompletionListener interface {
	SessionCompleted(session *Session) error
}

// ProfileStore persists the generated financial profile.
type ProfileStore interface {
	PutProfile(profile *FinancialProfile) error
	GetProfileByUser(userID UserID) (*FinancialProfile, error)
}
