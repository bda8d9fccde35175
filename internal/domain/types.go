package domain

import "time"

type SessionID string
type UserID string
type StepID string

// StepTerminal is the registry's signal that no further step exists.
const StepTerminal StepID = "__terminal__"

type DepthMode string

const (
	DepthQuick    DepthMode = "quick"    // Core questions only
	DepthStandard DepthMode = "standard" // Core + goal setting
	DepthComplete DepthMode = "complete" // Everything, including personalization
)

type SessionState string

const (
	SessionActive    SessionState = "active"    // Onboarding in progress
	SessionComplete  SessionState = "complete"  // Registry reached the terminal step
	SessionAbandoned SessionState = "abandoned" // Expired past the resume window
)

type Timestamp = time.Time
