package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plancompass/onboarding/internal/domain"
	"github.com/plancompass/onboarding/internal/registry"
)

func activeSession(step domain.StepID, mode domain.DepthMode) *domain.Session {
	return &domain.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		DepthMode: mode,
		State:     domain.SessionActive,
		Answers:   make(map[domain.StepID]any),
		ActiveInstance: &domain.StepInstance{
			StepID:     step,
			InstanceID: "inst-1",
			Nonce:      "nonce-1",
		},
	}
}

func TestCompute_FreshSession(t *testing.T) {
	reg := registry.Default()
	s := activeSession(registry.StepWelcome, domain.DepthStandard)

	rep, err := Compute(reg, s)
	require.NoError(t, err)

	assert.Equal(t, 0, rep.PercentComplete)
	assert.Equal(t, 0, rep.ItemsCollected)
	assert.Empty(t, rep.Completed)
	assert.Equal(t, registry.StepWelcome, rep.Current)
	assert.Equal(t, len(rep.OrderedSteps), rep.RemainingCount)
	assert.Equal(t, registry.StepDepth, rep.NextStep)
	assert.NotEmpty(t, rep.NextLabel)
}

func TestCompute_PartWayThrough(t *testing.T) {
	reg := registry.Default()
	s := activeSession(registry.StepLifeStage, domain.DepthStandard)
	s.Answers[registry.StepWelcome] = "start"
	s.Answers[registry.StepDepth] = "standard"
	s.CompletedSteps = []domain.StepID{registry.StepWelcome, registry.StepDepth}

	rep, err := Compute(reg, s)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.ItemsCollected)
	assert.Greater(t, rep.PercentComplete, 0)
	assert.Less(t, rep.PercentComplete, 100)
	assert.Equal(t, len(rep.OrderedSteps)-2, rep.RemainingCount)
}

func TestCompute_CompleteSessionIsExactly100(t *testing.T) {
	reg := registry.Default()
	s := &domain.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		DepthMode: domain.DepthQuick,
		State:     domain.SessionComplete,
		Answers:   make(map[domain.StepID]any),
	}
	for _, id := range reg.TotalApplicableSteps(s) {
		s.Answers[id] = "x"
		s.CompletedSteps = append(s.CompletedSteps, id)
	}

	rep, err := Compute(reg, s)
	require.NoError(t, err)

	assert.Equal(t, 100, rep.PercentComplete)
	assert.Equal(t, 0, rep.RemainingCount)
	assert.Empty(t, rep.Current)
	assert.Empty(t, rep.NextStep)
}

func TestCompute_ShrinkingDenominatorNeverDecreasesPercent(t *testing.T) {
	reg := registry.Default()
	s := activeSession(registry.StepDebtBalance, domain.DepthStandard)
	s.Answers[registry.StepHasDebts] = true
	s.CompletedSteps = []domain.StepID{registry.StepHasDebts}

	before, err := Compute(reg, s)
	require.NoError(t, err)

	// Committing "no debt" retroactively removes debt_balance from the
	// denominator; percent can only go up.
	s.Answers[registry.StepHasDebts] = false
	s.ActiveInstance.StepID = registry.StepLinkAccounts
	after, err := Compute(reg, s)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, after.PercentComplete, before.PercentComplete)
}

func TestCompute_DoesNotMutateSession(t *testing.T) {
	reg := registry.Default()
	s := activeSession(registry.StepWelcome, domain.DepthStandard)
	s.Answers[registry.StepWelcome] = "start"

	_, err := Compute(reg, s)
	require.NoError(t, err)
	_, err = Compute(reg, s)
	require.NoError(t, err)

	assert.Len(t, s.Answers, 1)
	assert.Empty(t, s.CompletedSteps)
	assert.Equal(t, registry.StepWelcome, s.ActiveInstance.StepID)
}
