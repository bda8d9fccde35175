package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/plancompass/onboarding/internal/domain"
)

// Store backs the session protocol with Firestore. The compare-and-swap in
// SaveSession is a transaction: read the doc, compare the stored active
// nonce, write or abort.
//
// 1 store, implements 3 interfaces (SessionStore, AnswerLog, ProfileStore).
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (ONBOARD_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("onboarding_sessions")
}

func (s *Store) sessionDocRef(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) answersCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDocRef(sessionID).Collection("answers")
}

func (s *Store) profileDocRef(userID domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("financial_profiles").Doc(string(userID))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	UserID           string         `firestore:"user_id"`
	DepthMode        string         `firestore:"depth_mode"`
	State            string         `firestore:"state"`
	Answers          map[string]any `firestore:"answers"`
	CompletedSteps   []string       `firestore:"completed_steps"`
	ActiveStep       string         `firestore:"active_step"`
	ActiveInstanceID string         `firestore:"active_instance_id"`
	ActiveNonce      string         `firestore:"active_nonce"`
	ActiveIssuedAt   time.Time      `firestore:"active_issued_at"`
	CreatedAt        time.Time      `firestore:"created_at"`
	UpdatedAt        time.Time      `firestore:"updated_at"`
}

type profileDoc struct {
	UserID         string    `firestore:"user_id"`
	SessionID      string    `firestore:"session_id"`
	DepthMode      string    `firestore:"depth_mode"`
	LifeStage      string    `firestore:"life_stage"`
	Employment     string    `firestore:"employment"`
	MonthlyIncome  string    `firestore:"monthly_income"`
	DebtBalance    string    `firestore:"debt_balance"`
	SavingsGoal    string    `firestore:"savings_goal"`
	GoalTimeline   string    `firestore:"goal_timeline"`
	RiskTolerance  string    `firestore:"risk_tolerance"`
	LinkedAccounts bool      `firestore:"linked_accounts"`
	AnswerCount    int       `firestore:"answer_count"`
	GeneratedAt    time.Time `firestore:"generated_at"`
}

func toProfileDoc(p *domain.FinancialProfile) profileDoc {
	return profileDoc{
		UserID:         string(p.UserID),
		SessionID:      string(p.SessionID),
		DepthMode:      string(p.DepthMode),
		LifeStage:      p.LifeStage,
		Employment:     p.Employment,
		MonthlyIncome:  p.MonthlyIncome,
		DebtBalance:    p.DebtBalance,
		SavingsGoal:    p.SavingsGoal,
		GoalTimeline:   p.GoalTimeline,
		RiskTolerance:  p.RiskTolerance,
		LinkedAccounts: p.LinkedAccounts,
		AnswerCount:    p.AnswerCount,
		GeneratedAt:    p.GeneratedAt,
	}
}

func (doc *profileDoc) toProfile() *domain.FinancialProfile {
	return &domain.FinancialProfile{
		UserID:         domain.UserID(doc.UserID),
		SessionID:      domain.SessionID(doc.SessionID),
		DepthMode:      domain.DepthMode(doc.DepthMode),
		LifeStage:      doc.LifeStage,
		Employment:     doc.Employment,
		MonthlyIncome:  doc.MonthlyIncome,
		DebtBalance:    doc.DebtBalance,
		SavingsGoal:    doc.SavingsGoal,
		GoalTimeline:   doc.GoalTimeline,
		RiskTolerance:  doc.RiskTolerance,
		LinkedAccounts: doc.LinkedAccounts,
		AnswerCount:    doc.AnswerCount,
		GeneratedAt:    doc.GeneratedAt,
	}
}

type answerDoc struct {
	SessionID  string    `firestore:"session_id"`
	UserID     string    `firestore:"user_id"`
	StepID     string    `firestore:"step_id"`
	Question   string    `firestore:"question"`
	Value      any       `firestore:"value"`
	RecordedAt time.Time `firestore:"recorded_at"`
}

func toSessionDoc(s *domain.Session) sessionDoc {
	doc := sessionDoc{
		UserID:         string(s.UserID),
		DepthMode:      string(s.DepthMode),
		State:          string(s.State),
		Answers:        make(map[string]any, len(s.Answers)),
		CompletedSteps: make([]string, 0, len(s.CompletedSteps)),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	for k, v := range s.Answers {
		doc.Answers[string(k)] = v
	}
	for _, id := range s.CompletedSteps {
		doc.CompletedSteps = append(doc.CompletedSteps, string(id))
	}
	if inst := s.ActiveInstance; inst != nil {
		doc.ActiveStep = string(inst.StepID)
		doc.ActiveInstanceID = inst.InstanceID
		doc.ActiveNonce = inst.Nonce
		doc.ActiveIssuedAt = inst.IssuedAt
	}
	return doc
}

func (doc *sessionDoc) toSession(id domain.SessionID) *domain.Session {
	s := &domain.Session{
		ID:        id,
		UserID:    domain.UserID(doc.UserID),
		DepthMode: domain.DepthMode(doc.DepthMode),
		State:     domain.SessionState(doc.State),
		Answers:   make(map[domain.StepID]any, len(doc.Answers)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for k, v := range doc.Answers {
		s.Answers[domain.StepID(k)] = v
	}
	for _, raw := range doc.CompletedSteps {
		s.CompletedSteps = append(s.CompletedSteps, domain.StepID(raw))
	}
	if doc.ActiveNonce != "" {
		s.ActiveInstance = &domain.StepInstance{
			StepID:     domain.StepID(doc.ActiveStep),
			InstanceID: doc.ActiveInstanceID,
			Nonce:      doc.ActiveNonce,
			IssuedAt:   doc.ActiveIssuedAt,
		}
	}
	return s
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

// CreateSession registers the session inside a transaction that first checks
// the user has no active one, so concurrent createOrResume calls converge.
func (s *Store) CreateSession(session *domain.Session) error {
	ctx := context.Background()

	doc := toSessionDoc(session)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if session.State == domain.SessionActive {
			q := s.sessionsCol().
				Where("user_id", "==", string(session.UserID)).
				Where("state", "==", string(domain.SessionActive)).
				Limit(1)
			iter := tx.Documents(q)
			defer iter.Stop()

			if _, err := iter.Next(); err != iterator.Done {
				if err != nil {
					return err
				}
				return domain.ErrSessionExists
			}
		}
		return tx.Create(s.sessionDocRef(session.ID), doc)
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionExists) {
			return domain.ErrSessionExists
		}
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrSessionExists
		}
		return &domain.PersistenceError{Op: "firestore CreateSession", Err: err}
	}
	return nil
}

func (s *Store) GetSession(id domain.SessionID) (*domain.Session, error) {
	ctx := context.Background()

	snap, err := s.sessionDocRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "firestore GetSession", Err: err}
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, &domain.PersistenceError{Op: "firestore GetSession decode", Err: err}
	}

	return doc.toSession(id), nil
}

func (s *Store) LatestSessionByUser(userID domain.UserID) (*domain.Session, error) {
	ctx := context.Background()

	q := s.sessionsCol().
		Where("user_id", "==", string(userID)).
		OrderBy("created_at", firestore.Desc).
		Limit(1)

	iter := q.Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "firestore LatestSessionByUser", Err: err}
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, &domain.PersistenceError{Op: "decode sessionDoc", Err: err}
	}

	return doc.toSession(domain.SessionID(snap.Ref.ID)), nil
}

// SaveSession is the compare-and-swap: inside the transaction we re-read the
// stored doc, compare its active nonce against expectedNonce, and either
// replace the whole doc or abort with ErrConflict.
func (s *Store) SaveSession(session *domain.Session, expectedNonce string) error {
	ctx := context.Background()

	ref := s.sessionDocRef(session.ID)
	doc := toSessionDoc(session)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrSessionNotFound
			}
			return err
		}

		var stored sessionDoc
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.ActiveNonce != expectedNonce {
			return domain.ErrConflict
		}

		return tx.Set(ref, doc)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}
		return &domain.PersistenceError{Op: "firestore SaveSession", Err: err}
	}
	return nil
}

// ─────────────────────────────────────────
// AnswerLog implementation
// ─────────────────────────────────────────

func (s *Store) AppendAnswer(rec *domain.AnswerRecord) error {
	ctx := context.Background()

	doc := answerDoc{
		SessionID:  string(rec.SessionID),
		UserID:     string(rec.UserID),
		StepID:     string(rec.StepID),
		Question:   rec.Question,
		Value:      rec.Value,
		RecordedAt: rec.RecordedAt,
	}

	_, _, err := s.answersCol(rec.SessionID).Add(ctx, doc)
	if err != nil {
		return &domain.PersistenceError{Op: "firestore AppendAnswer", Err: err}
	}
	return nil
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) PutProfile(profile *domain.FinancialProfile) error {
	ctx := context.Background()

	_, err := s.profileDocRef(profile.UserID).Set(ctx, toProfileDoc(profile))
	if err != nil {
		return &domain.PersistenceError{Op: "firestore PutProfile", Err: err}
	}
	return nil
}

func (s *Store) GetProfileByUser(userID domain.UserID) (*domain.FinancialProfile, error) {
	ctx := context.Background()

	snap, err := s.profileDocRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrProfileNotFound
		}
		return nil, &domain.PersistenceError{Op: "firestore GetProfileByUser", Err: err}
	}

	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, &domain.PersistenceError{Op: "firestore GetProfileByUser decode", Err: err}
	}
	return doc.toProfile(), nil
}
