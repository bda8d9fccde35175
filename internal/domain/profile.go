package domain

import "time"

// FinancialProfile is the summary materialized from a completed session's
// answers. The dashboard reads it; this core only writes it once, when the
// registry reaches the terminal step.
type FinancialProfile struct {
	UserID    UserID    `json:"user_id"`
	SessionID SessionID `json:"session_id"`
	DepthMode DepthMode `json:"depth_mode"`

	LifeStage  string `json:"life_stage"`
	Employment string `json:"employment"`

	// Money amounts in canonical decimal form, as normalized by the registry.
	MonthlyIncome string `json:"monthly_income,omitempty"`
	DebtBalance   string `json:"debt_balance,omitempty"`
	SavingsGoal   string `json:"savings_goal,omitempty"`

	GoalTimeline  string `json:"goal_timeline,omitempty"`
	RiskTolerance string `json:"risk_tolerance,omitempty"`

	LinkedAccounts bool `json:"linked_accounts"`
	AnswerCount    int  `json:"answer_count"`

	GeneratedAt time.Time `json:"generated_at"`
}
