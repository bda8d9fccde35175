package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plancompass/onboarding/internal/domain"
)

func newSession(mode domain.DepthMode) *domain.Session {
	return &domain.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		DepthMode: mode,
		State:     domain.SessionActive,
		Answers:   make(map[domain.StepID]any),
	}
}

func TestDefault_TableIsWellFormed(t *testing.T) {
	r := Default()

	require.NotEmpty(t, r.Steps())
	for _, def := range r.Steps() {
		assert.NotEmpty(t, def.Label, "step %s has no label", def.ID)
		assert.NotEmpty(t, def.Component, "step %s has no component", def.ID)
		if def.Kind == KindChoice {
			assert.NotEmpty(t, def.Options, "choice step %s has no options", def.ID)
		}
	}
}

func TestNew_RejectsDuplicateAndReservedIDs(t *testing.T) {
	_, err := New([]StepDefinition{
		{ID: "a", Label: "A"},
		{ID: "a", Label: "A again"},
	})
	require.Error(t, err)

	_, err = New([]StepDefinition{{ID: domain.StepTerminal, Label: "nope"}})
	require.Error(t, err)
}

func TestGet_UnknownStepIsInvalidStepError(t *testing.T) {
	r := Default()

	_, err := r.Get("no_such_step")
	require.Error(t, err)

	var invalid *domain.InvalidStepError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StepID("no_such_step"), invalid.StepID)
}

func TestNextStep_DefaultLinearOrder(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthStandard)

	next, err := r.NextStep(StepWelcome, "start", s)
	require.NoError(t, err)
	assert.Equal(t, StepDepth, next)

	next, err = r.NextStep(StepLifeStage, "family", s)
	require.NoError(t, err)
	assert.Equal(t, StepEmployment, next)
}

func TestNextStep_UnknownStepFails(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthStandard)

	_, err := r.NextStep("bogus", nil, s)

	var invalid *domain.InvalidStepError
	require.ErrorAs(t, err, &invalid)
}

func TestNextStep_DebtBranchSkipsBalance(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthStandard)
	s.Answers[StepHasDebts] = false

	next, err := r.NextStep(StepHasDebts, false, s)
	require.NoError(t, err)
	assert.Equal(t, StepLinkAccounts, next, "answering no debt should jump past the balance step")

	// And the affirmative path keeps the default successor.
	s2 := newSession(domain.DepthStandard)
	s2.Answers[StepHasDebts] = true
	next, err = r.NextStep(StepHasDebts, true, s2)
	require.NoError(t, err)
	assert.Equal(t, StepDebtBalance, next)
}

func TestNextStep_QuickDepthReachesTerminalAfterCore(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthQuick)

	// link_accounts is the last core step in quick mode.
	next, err := r.NextStep(StepLinkAccounts, map[string]any{"provider": "plaid"}, s)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminal, next)
}

func TestNextStep_StandardDepthEndsAfterGoals(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthStandard)

	next, err := r.NextStep(StepLinkAccounts, nil, s)
	require.NoError(t, err)
	assert.Equal(t, StepSavingsGoal, next)

	next, err = r.NextStep(StepGoalTimeline, "5y", s)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminal, next, "personalization is excluded at standard depth")
}

func TestNextStep_IncomeGrowthSkippedForRetired(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthComplete)
	s.Answers[StepEmployment] = "retired"

	next, err := r.NextStep(StepGoalTimeline, "5y", s)
	require.NoError(t, err)
	assert.Equal(t, StepRiskProfile, next)
}

func TestNextStep_IsPure(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthStandard)
	s.Answers[StepHasDebts] = true

	first, err := r.NextStep(StepHasDebts, true, s)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := r.NextStep(StepHasDebts, true, s)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFirstStep(t *testing.T) {
	r := Default()

	assert.Equal(t, StepWelcome, r.FirstStep(newSession(domain.DepthQuick)))
	assert.Equal(t, StepWelcome, r.FirstStep(newSession(domain.DepthComplete)))
}

func TestTotalApplicableSteps_DepthModes(t *testing.T) {
	r := Default()

	quick := r.TotalApplicableSteps(newSession(domain.DepthQuick))
	standard := r.TotalApplicableSteps(newSession(domain.DepthStandard))
	complete := r.TotalApplicableSteps(newSession(domain.DepthComplete))

	assert.Less(t, len(quick), len(standard))
	assert.Less(t, len(standard), len(complete))

	for _, id := range quick {
		def, err := r.Get(id)
		require.NoError(t, err)
		assert.Equal(t, PhaseCore, def.Phase, "quick mode must only count core steps")
	}
}

func TestTotalApplicableSteps_AnswerConditionedSkip(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthStandard)

	before := r.TotalApplicableSteps(s)
	assert.Contains(t, before, StepDebtBalance)

	s.Answers[StepHasDebts] = false
	after := r.TotalApplicableSteps(s)
	assert.NotContains(t, after, StepDebtBalance)
	assert.Len(t, after, len(before)-1)
}

func TestTotalApplicableSteps_KeepsCompletedSteps(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthComplete)
	s.Answers[StepDepth] = "quick"
	s.CompletedSteps = []domain.StepID{StepWelcome, StepDepth}
	s.DepthMode = domain.DepthQuick

	applicable := r.TotalApplicableSteps(s)
	assert.Contains(t, applicable, StepWelcome)
	assert.Contains(t, applicable, StepDepth)
}

func TestPeekNext_UsesCommittedAnswerWhenPresent(t *testing.T) {
	r := Default()
	s := newSession(domain.DepthStandard)
	s.ActiveInstance = &domain.StepInstance{StepID: StepHasDebts, InstanceID: "i", Nonce: "n"}

	// No answer yet: peek falls back to the default successor.
	next, err := r.PeekNext(s)
	require.NoError(t, err)
	assert.Equal(t, StepDebtBalance, next)

	// Nil instance means there is nothing left to peek at.
	s.ActiveInstance = nil
	next, err = r.PeekNext(s)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminal, next)
}
