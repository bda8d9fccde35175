// Package profile materializes a financial profile from a completed
// session's answers. This is the downstream collaborator triggered when the
// registry reaches the terminal step; dashboards read what it writes.
package profile

import (
	"fmt"
	"time"

	"github.com/plancompass/onboarding/internal/domain"
	"github.com/plancompass/onboarding/internal/observability"
	"github.com/plancompass/onboarding/internal/registry"
)

// Generator implements domain.CompletionListener.
type Generator struct {
	store domain.ProfileStore
	now   func() time.Time
}

func NewGenerator(store domain.ProfileStore) *Generator {
	return &Generator{
		store: store,
		now:   time.Now,
	}
}

// SessionCompleted builds and persists the profile. Called exactly once per
// session, after the terminal save succeeded.
func (g *Generator) SessionCompleted(session *domain.Session) error {
	if g.store == nil {
		return nil
	}
	if !session.IsComplete() {
		return fmt.Errorf("session %s is not complete", session.ID)
	}

	p := buildProfile(session, g.now())

	if err := g.store.PutProfile(p); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}

	observability.WithFields(
		"user_id", session.UserID,
		"session_id", session.ID,
	).Info("financial profile generated")

	return nil
}

func buildProfile(session *domain.Session, at time.Time) *domain.FinancialProfile {
	p := &domain.FinancialProfile{
		UserID:      session.UserID,
		SessionID:   session.ID,
		DepthMode:   session.DepthMode,
		AnswerCount: len(session.Answers),
		GeneratedAt: at,
	}

	p.LifeStage = answerString(session, registry.StepLifeStage)
	p.Employment = answerString(session, registry.StepEmployment)
	p.MonthlyIncome = answerString(session, registry.StepIncome)
	p.DebtBalance = answerString(session, registry.StepDebtBalance)
	p.SavingsGoal = answerString(session, registry.StepSavingsGoal)
	p.GoalTimeline = answerString(session, registry.StepGoalTimeline)
	p.RiskTolerance = answerString(session, registry.StepRiskProfile)

	// Any non-nil linking payload counts, whatever the provider sent back.
	if v, ok := session.Answers[registry.StepLinkAccounts]; ok && v != nil {
		p.LinkedAccounts = true
	}

	return p
}

func answerString(session *domain.Session, step domain.StepID) string {
	if v, ok := session.Answers[step].(string); ok {
		return v
	}
	return ""
}
