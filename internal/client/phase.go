package client

import "agent_agency/internal/domain"

// phaseEdges lists the user-driven transitions. Server events move the phase
// through the reducer; these edges gate only the actions a user can initiate.
var phaseEdges = map[domain.Phase][]domain.Phase{
	domain.PhaseSetup:             {domain.PhaseCollaborating},
	domain.PhaseCollaborating:     {domain.PhaseCompleted},
	domain.PhaseCompleted:         {domain.PhaseFeedbackIteration},
	domain.PhaseFeedbackIteration: {domain.PhaseCompleted},
}

func canTransition(from, to domain.Phase) bool {
	for _, next := range phaseEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}
