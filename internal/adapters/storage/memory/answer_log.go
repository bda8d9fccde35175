package memory

import (
	"sync"

	"github.com/plancompass/onboarding/internal/domain"
)

// AnswerLog is the in-memory analytics sink: strictly append-only.
type AnswerLog struct {
	mu      sync.RWMutex
	records map[domain.SessionID][]*domain.AnswerRecord
}

func NewAnswerLog() *AnswerLog {
	return &AnswerLog{
		records: make(map[domain.SessionID][]*domain.AnswerRecord),
	}
}

func (l *AnswerLog) AppendAnswer(rec *domain.AnswerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[rec.SessionID] = append(l.records[rec.SessionID], rec)
	return nil
}

// RecordsBySession returns the logged answers in append order. Test helper.
func (l *AnswerLog) RecordsBySession(id domain.SessionID) []*domain.AnswerRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]*domain.AnswerRecord(nil), l.records[id]...)
}
