// Package progress derives completion figures from a session and the step
// registry. It is recomputed from scratch on every request rather than
// incremented, so it stays consistent when branch-affecting answers shrink
// the applicable set.
package progress

import (
	"math"

	"github.com/plancompass/onboarding/internal/domain"
	"github.com/plancompass/onboarding/internal/registry"
)

// Report is the progress block of every snapshot returned to clients.
type Report struct {
	OrderedSteps    []domain.StepID
	Completed       []domain.StepID
	Current         domain.StepID // "" once the session is complete
	RemainingCount  int
	ItemsCollected  int
	PercentComplete int
	NextStep        domain.StepID // "" when the active step is the last one
	NextLabel       string
}

// Compute builds a Report. Read-only: neither the session nor the registry
// is mutated. The only possible error is InvalidStepError from a peek at a
// step the table does not know.
func Compute(reg *registry.Registry, s *domain.Session) (Report, error) {
	applicable := reg.TotalApplicableSteps(s)

	rep := Report{
		OrderedSteps:   applicable,
		Completed:      append([]domain.StepID(nil), s.CompletedSteps...),
		ItemsCollected: len(s.Answers),
		RemainingCount: len(applicable) - len(s.CompletedSteps),
	}
	if rep.RemainingCount < 0 {
		rep.RemainingCount = 0
	}

	if len(applicable) > 0 {
		rep.PercentComplete = int(math.Round(100 * float64(len(s.CompletedSteps)) / float64(len(applicable))))
	}

	if s.ActiveInstance == nil {
		return rep, nil
	}
	rep.Current = s.ActiveInstance.StepID

	next, err := reg.PeekNext(s)
	if err != nil {
		return Report{}, err
	}
	if next != domain.StepTerminal {
		def, err := reg.Get(next)
		if err != nil {
			return Report{}, err
		}
		rep.NextStep = next
		rep.NextLabel = def.Label
	}

	return rep, nil
}
