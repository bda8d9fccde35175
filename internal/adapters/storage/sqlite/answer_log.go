package sqlite

import (
	"encoding/json"

	"github.com/plancompass/onboarding/internal/domain"
)

// AppendAnswer mirrors one accepted answer into the append-only log table.
func (s *Store) AppendAnswer(rec *domain.AnswerRecord) error {
	value, err := json.Marshal(rec.Value)
	if err != nil {
		return persistence("append answer", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO answer_log (session_id, user_id, step_id, question, value, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(rec.SessionID), string(rec.UserID), string(rec.StepID),
		rec.Question, string(value), rec.RecordedAt,
	)
	if err != nil {
		return persistence("append answer", err)
	}
	return nil
}
