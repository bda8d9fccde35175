package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/plancompass/onboarding/internal/domain"
)

func (s *Store) PutProfile(profile *domain.FinancialProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return persistence("put profile", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO profiles (user_id, session_id, data, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			session_id = excluded.session_id,
			data = excluded.data,
			generated_at = excluded.generated_at
	`,
		string(profile.UserID), string(profile.SessionID), string(data), profile.GeneratedAt,
	)
	if err != nil {
		return persistence("put profile", err)
	}
	return nil
}

func (s *Store) GetProfileByUser(userID domain.UserID) (*domain.FinancialProfile, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM profiles WHERE user_id = ?`, string(userID)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, persistence("get profile", err)
	}

	var p domain.FinancialProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, persistence("get profile", err)
	}
	return &p, nil
}
