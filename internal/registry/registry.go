// Package registry holds the compiled table of onboarding steps and the
// branching rules between them. Everything in here is pure: identical inputs
// always yield identical outputs, and nothing reads or writes a store.
package registry

import (
	"fmt"

	"github.com/plancompass/onboarding/internal/domain"
)

type InputKind string

const (
	KindChoice      InputKind = "choice"
	KindText        InputKind = "text"
	KindBoolean     InputKind = "boolean"
	KindMoney       InputKind = "money"
	KindAllocation  InputKind = "allocation"   // category -> percent, must sum to 100
	KindAccountLink InputKind = "account_link" // opaque payload from the linking service
)

// Phase tags a step with the depth tier it belongs to.
type Phase string

const (
	PhaseCore            Phase = "core"
	PhaseGoals           Phase = "goals"
	PhasePersonalization Phase = "personalization"
)

// BranchFunc is an override edge: given the just-committed answer it returns
// the next step id, domain.StepTerminal, or "" to fall back to the default
// linear successor. It must be pure and must tolerate a nil answer (progress
// peeks call it before the answer exists).
type BranchFunc func(answer any, session *domain.Session) domain.StepID

// SkipFunc reports whether the step is irrelevant given the answers
// committed so far. Pure.
type SkipFunc func(session *domain.Session) bool

// StepDefinition is one compiled, immutable entry in the table.
type StepDefinition struct {
	ID        domain.StepID
	Label     string
	Component string // UI widget the client renders for this step
	Kind      InputKind
	Phase     Phase
	Required  bool
	Options   []string // valid values for KindChoice
	Branch    BranchFunc
	SkipIf    SkipFunc
}

// Registry is the ordered step table. Steps form a default linear order;
// Branch and SkipIf carve the override edges.
type Registry struct {
	order []domain.StepID
	index map[domain.StepID]int
	steps map[domain.StepID]StepDefinition
}

// New builds a registry from an ordered list of definitions.
func New(defs []StepDefinition) (*Registry, error) {
	r := &Registry{
		index: make(map[domain.StepID]int, len(defs)),
		steps: make(map[domain.StepID]StepDefinition, len(defs)),
	}

	for i, def := range defs {
		if def.ID == "" || def.ID == domain.StepTerminal {
			return nil, fmt.Errorf("step %d has reserved or empty id %q", i, def.ID)
		}
		if _, dup := r.steps[def.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", def.ID)
		}
		r.order = append(r.order, def.ID)
		r.index[def.ID] = i
		r.steps[def.ID] = def
	}

	return r, nil
}

// Get returns the definition for a step id, or InvalidStepError. An unknown
// id here means the client and server step tables disagree.
func (r *Registry) Get(id domain.StepID) (StepDefinition, error) {
	def, ok := r.steps[id]
	if !ok {
		return StepDefinition{}, &domain.InvalidStepError{StepID: id}
	}
	return def, nil
}

// Steps returns the definitions in default order.
func (r *Registry) Steps() []StepDefinition {
	out := make([]StepDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.steps[id])
	}
	return out
}

func phaseIncluded(p Phase, mode domain.DepthMode) bool {
	switch mode {
	case domain.DepthQuick:
		return p == PhaseCore
	case domain.DepthComplete:
		return true
	default:
		// Standard is also the default before the depth step is answered.
		return p == PhaseCore || p == PhaseGoals
	}
}

// applies reports whether the step counts for this session right now, given
// the depth mode and the answers committed so far.
func (r *Registry) applies(def StepDefinition, s *domain.Session) bool {
	if !phaseIncluded(def.Phase, s.DepthMode) {
		return false
	}
	if def.SkipIf != nil && def.SkipIf(s) {
		return false
	}
	return true
}

// FirstStep returns the first applicable step for a fresh session.
func (r *Registry) FirstStep(s *domain.Session) domain.StepID {
	for _, id := range r.order {
		if r.applies(r.steps[id], s) {
			return id
		}
	}
	return domain.StepTerminal
}

// NextStep computes the successor of current once answer has been committed.
// It returns domain.StepTerminal when the session is done, and
// InvalidStepError when current (or a branch target) is not in the table.
func (r *Registry) NextStep(current domain.StepID, answer any, s *domain.Session) (domain.StepID, error) {
	def, err := r.Get(current)
	if err != nil {
		return "", err
	}

	from := r.index[current] + 1

	if def.Branch != nil {
		switch target := def.Branch(answer, s); target {
		case "":
			// fall through to the default successor
		case domain.StepTerminal:
			return domain.StepTerminal, nil
		default:
			idx, ok := r.index[target]
			if !ok {
				return "", &domain.InvalidStepError{StepID: target}
			}
			from = idx
		}
	}

	for i := from; i < len(r.order); i++ {
		id := r.order[i]
		if s.HasCompleted(id) {
			continue
		}
		if r.applies(r.steps[id], s) {
			return id, nil
		}
	}

	return domain.StepTerminal, nil
}

// PeekNext is the read-only preview used by the progress calculator: what
// NextStep would return for the active step, using the committed answer if
// one exists and nil otherwise. Never mutates anything.
func (r *Registry) PeekNext(s *domain.Session) (domain.StepID, error) {
	if s.ActiveInstance == nil {
		return domain.StepTerminal, nil
	}
	current := s.ActiveInstance.StepID
	return r.NextStep(current, s.Answers[current], s)
}

// TotalApplicableSteps enumerates, in default order, the steps that count
// toward completion for this session: every step that either already
// completed or still applies under the current depth mode and answers.
func (r *Registry) TotalApplicableSteps(s *domain.Session) []domain.StepID {
	out := make([]domain.StepID, 0, len(r.order))
	for _, id := range r.order {
		if s.HasCompleted(id) || r.applies(r.steps[id], s) {
			out = append(out, id)
		}
	}
	return out
}
