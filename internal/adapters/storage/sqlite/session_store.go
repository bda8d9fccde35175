package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/plancompass/onboarding/internal/domain"
)

type sessionRow struct {
	id               string
	userID           string
	depthMode        string
	state            string
	answers          string
	completedSteps   string
	activeStep       string
	activeInstanceID string
	activeNonce      string
	activeIssuedAt   sql.NullTime
	createdAt        domain.Timestamp
	updatedAt        domain.Timestamp
}

func toRow(s *domain.Session) (*sessionRow, error) {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	completed, err := json.Marshal(s.CompletedSteps)
	if err != nil {
		return nil, fmt.Errorf("encode completed steps: %w", err)
	}

	row := &sessionRow{
		id:             string(s.ID),
		userID:         string(s.UserID),
		depthMode:      string(s.DepthMode),
		state:          string(s.State),
		answers:        string(answers),
		completedSteps: string(completed),
		createdAt:      s.CreatedAt,
		updatedAt:      s.UpdatedAt,
	}
	if inst := s.ActiveInstance; inst != nil {
		row.activeStep = string(inst.StepID)
		row.activeInstanceID = inst.InstanceID
		row.activeNonce = inst.Nonce
		row.activeIssuedAt = sql.NullTime{Time: inst.IssuedAt, Valid: true}
	}
	return row, nil
}

func (r *sessionRow) toSession() (*domain.Session, error) {
	var rawAnswers map[string]any
	if err := json.Unmarshal([]byte(r.answers), &rawAnswers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	answers := make(map[domain.StepID]any, len(rawAnswers))
	for k, v := range rawAnswers {
		answers[domain.StepID(k)] = v
	}

	var completed []domain.StepID
	if err := json.Unmarshal([]byte(r.completedSteps), &completed); err != nil {
		return nil, fmt.Errorf("decode completed steps: %w", err)
	}

	s := &domain.Session{
		ID:             domain.SessionID(r.id),
		UserID:         domain.UserID(r.userID),
		DepthMode:      domain.DepthMode(r.depthMode),
		State:          domain.SessionState(r.state),
		Answers:        answers,
		CompletedSteps: completed,
		CreatedAt:      r.createdAt,
		UpdatedAt:      r.updatedAt,
	}
	if r.activeNonce != "" {
		s.ActiveInstance = &domain.StepInstance{
			StepID:     domain.StepID(r.activeStep),
			InstanceID: r.activeInstanceID,
			Nonce:      r.activeNonce,
			IssuedAt:   r.activeIssuedAt.Time,
		}
	}
	return s, nil
}

const sessionColumns = `id, user_id, depth_mode, state, answers, completed_steps,
	active_step, active_instance_id, active_nonce, active_issued_at,
	created_at, updated_at`

func scanSession(scan func(dest ...any) error) (*domain.Session, error) {
	var r sessionRow
	err := scan(
		&r.id, &r.userID, &r.depthMode, &r.state, &r.answers, &r.completedSteps,
		&r.activeStep, &r.activeInstanceID, &r.activeNonce, &r.activeIssuedAt,
		&r.createdAt, &r.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.toSession()
}

func (s *Store) CreateSession(session *domain.Session) error {
	row, err := toRow(session)
	if err != nil {
		return persistence("create session", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions
		(`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.id, row.userID, row.depthMode, row.state, row.answers, row.completedSteps,
		row.activeStep, row.activeInstanceID, row.activeNonce, row.activeIssuedAt,
		row.createdAt, row.updatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionExists
		}
		return persistence("create session", err)
	}
	return nil
}

func (s *Store) GetSession(id domain.SessionID) (*domain.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))

	session, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, persistence("get session", err)
	}
	return session, nil
}

func (s *Store) LatestSessionByUser(userID domain.UserID) (*domain.Session, error) {
	row := s.db.QueryRow(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, string(userID))

	session, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, persistence("latest session by user", err)
	}
	return session, nil
}

// SaveSession is the compare-and-swap: the UPDATE only matches when the
// stored active_nonce still equals expectedNonce, and RowsAffected tells us
// whether we won. A completed or abandoned session has nonce ''.
func (s *Store) SaveSession(session *domain.Session, expectedNonce string) error {
	row, err := toRow(session)
	if err != nil {
		return persistence("save session", err)
	}

	res, err := s.db.Exec(`
		UPDATE sessions SET
			depth_mode = ?, state = ?, answers = ?, completed_steps = ?,
			active_step = ?, active_instance_id = ?, active_nonce = ?, active_issued_at = ?,
			updated_at = ?
		WHERE id = ? AND active_nonce = ?
	`,
		row.depthMode, row.state, row.answers, row.completedSteps,
		row.activeStep, row.activeInstanceID, row.activeNonce, row.activeIssuedAt,
		row.updatedAt,
		row.id, expectedNonce,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionExists
		}
		return persistence("save session", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistence("save session", err)
	}
	if affected > 0 {
		return nil
	}

	// No row matched: either the session is unknown or a concurrent writer
	// already rotated the nonce.
	var exists bool
	err = s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, row.id).Scan(&exists)
	if err != nil {
		return persistence("save session", err)
	}
	if !exists {
		return domain.ErrSessionNotFound
	}
	return domain.ErrConflict
}
