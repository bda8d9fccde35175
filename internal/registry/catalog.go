package registry

import "github.com/plancompass/onboarding/internal/domain"

// Step ids of the compiled questionnaire. The clients ship the same table;
// an id mismatch at runtime surfaces as InvalidStepError.
const (
	StepWelcome      domain.StepID = "welcome"
	StepDepth        domain.StepID = "depth"
	StepLifeStage    domain.StepID = "life_stage"
	StepEmployment   domain.StepID = "employment"
	StepIncome       domain.StepID = "income"
	StepExpenses     domain.StepID = "expenses"
	StepHasDebts     domain.StepID = "has_debts"
	StepDebtBalance  domain.StepID = "debt_balance"
	StepLinkAccounts domain.StepID = "link_accounts"
	StepSavingsGoal  domain.StepID = "savings_goal"
	StepGoalTimeline domain.StepID = "goal_timeline"
	StepIncomeGrowth domain.StepID = "income_growth"
	StepRiskProfile  domain.StepID = "risk_tolerance"
	StepNotification domain.StepID = "notifications"
)

// Default builds the production step table. Panics on a malformed table,
// which can only happen from a bad edit to this file.
func Default() *Registry {
	r, err := New(defaultSteps())
	if err != nil {
		panic(err)
	}
	return r
}

func defaultSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:        StepWelcome,
			Label:     "Welcome to PlanCompass",
			Component: "intro-card",
			Kind:      KindChoice,
			Phase:     PhaseCore,
			Required:  true,
			Options:   []string{"start"},
		},
		{
			ID:        StepDepth,
			Label:     "How deep should we go?",
			Component: "depth-selector",
			Kind:      KindChoice,
			Phase:     PhaseCore,
			Required:  true,
			Options:   []string{"quick", "standard", "complete"},
		},
		{
			ID:        StepLifeStage,
			Label:     "Which best describes your life stage?",
			Component: "choice-cards",
			Kind:      KindChoice,
			Phase:     PhaseCore,
			Required:  true,
			Options:   []string{"student", "early_career", "family", "established", "retired"},
		},
		{
			ID:        StepEmployment,
			Label:     "What is your employment situation?",
			Component: "choice-cards",
			Kind:      KindChoice,
			Phase:     PhaseCore,
			Required:  true,
			Options:   []string{"employed", "self_employed", "student", "retired", "between_jobs"},
		},
		{
			ID:        StepIncome,
			Label:     "What is your monthly take-home income?",
			Component: "money-input",
			Kind:      KindMoney,
			Phase:     PhaseCore,
			Required:  true,
		},
		{
			ID:        StepExpenses,
			Label:     "How does your spending break down?",
			Component: "pie-builder",
			Kind:      KindAllocation,
			Phase:     PhaseCore,
			Required:  true,
		},
		{
			ID:        StepHasDebts,
			Label:     "Do you currently carry any debt?",
			Component: "yes-no",
			Kind:      KindBoolean,
			Phase:     PhaseCore,
			Required:  true,
			// Override edge: a "no" jumps straight past the balance question.
			Branch: func(answer any, _ *domain.Session) domain.StepID {
				if b, ok := answer.(bool); ok && !b {
					return StepLinkAccounts
				}
				return ""
			},
		},
		{
			ID:        StepDebtBalance,
			Label:     "Roughly how much debt in total?",
			Component: "money-input",
			Kind:      KindMoney,
			Phase:     PhaseCore,
			Required:  true,
			SkipIf: func(s *domain.Session) bool {
				b, ok := s.Answers[StepHasDebts].(bool)
				return ok && !b
			},
		},
		{
			ID:        StepLinkAccounts,
			Label:     "Link your bank accounts",
			Component: "account-link",
			Kind:      KindAccountLink,
			Phase:     PhaseCore,
			Required:  false,
		},
		{
			ID:        StepSavingsGoal,
			Label:     "How much would you like to save each month?",
			Component: "money-input",
			Kind:      KindMoney,
			Phase:     PhaseGoals,
			Required:  true,
		},
		{
			ID:        StepGoalTimeline,
			Label:     "When do you want to reach your main goal?",
			Component: "choice-cards",
			Kind:      KindChoice,
			Phase:     PhaseGoals,
			Required:  true,
			Options:   []string{"1y", "5y", "10y", "20y_plus"},
		},
		{
			ID:        StepIncomeGrowth,
			Label:     "Do you expect your income to grow?",
			Component: "choice-cards",
			Kind:      KindChoice,
			Phase:     PhasePersonalization,
			Required:  true,
			Options:   []string{"a_lot", "somewhat", "flat", "shrinking"},
			SkipIf: func(s *domain.Session) bool {
				switch s.Answers[StepEmployment] {
				case "student", "retired":
					return true
				}
				return false
			},
		},
		{
			ID:        StepRiskProfile,
			Label:     "How do you feel about investment risk?",
			Component: "slider",
			Kind:      KindChoice,
			Phase:     PhasePersonalization,
			Required:  true,
			Options:   []string{"low", "medium", "high"},
		},
		{
			ID:        StepNotification,
			Label:     "Want nudges when your budget drifts?",
			Component: "yes-no",
			Kind:      KindBoolean,
			Phase:     PhasePersonalization,
			Required:  true,
		},
	}
}
