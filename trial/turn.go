package trial

import "github.com/linesmerrill/jurysane-api/models"

// TurnManager decides who speaks next in each phase. It holds no state.
type TurnManager struct{}

// NextTurn returns the role expected to speak after lastSpeaker, or nil
// when nobody is. A nil lastSpeaker asks for the phase's first turn.
func (TurnManager) NextTurn(phase models.TrialPhase, lastSpeaker *models.CaseRole) *models.CaseRole {
	switch phase {
	case models.PhaseSetup:
		// the judge and the State trade the floor until the phase moves on
		if lastSpeaker != nil && *lastSpeaker == models.CaseRoleJudge {
			return models.RoleRef(models.CaseRoleProsecutor)
		}
		return models.RoleRef(models.CaseRoleJudge)

	case models.PhaseOpeningStatements, models.PhaseClosingArguments:
		if lastSpeaker == nil {
			return models.RoleRef(models.CaseRoleProsecutor)
		}
		if *lastSpeaker == models.CaseRoleProsecutor {
			return models.RoleRef(models.CaseRoleDefense)
		}
		return nil

	case models.PhaseWitnessExamination:
		// prosecution and defense alternate; anyone else hands back to the State
		if lastSpeaker != nil && *lastSpeaker == models.CaseRoleProsecutor {
			return models.RoleRef(models.CaseRoleDefense)
		}
		return models.RoleRef(models.CaseRoleProsecutor)

	case models.PhaseJuryDeliberation:
		return models.RoleRef(models.CaseRoleJury)

	case models.PhaseVerdict:
		return models.RoleRef(models.CaseRoleJudge)
	}
	return nil
}

// UpdateAfterResponse records that speaker just spoke and moves the turn on
func (tm TurnManager) UpdateAfterResponse(s *models.TrialSession, speaker models.CaseRole) {
	s.LastSpeaker = models.RoleRef(speaker)
	s.TurnCount++
	s.CurrentTurn = tm.NextTurn(s.CurrentPhase, s.LastSpeaker)
	s.AwaitingResponse = s.CurrentTurn != nil
}

// InitializeForPhase resets turn tracking for the session's current phase
func (tm TurnManager) InitializeForPhase(s *models.TrialSession) {
	s.LastSpeaker = nil
	s.TurnCount = 0
	s.CurrentTurn = tm.NextTurn(s.CurrentPhase, nil)
	s.AwaitingResponse = s.CurrentTurn != nil
}

// CanUserSpeak reports whether the human holds the turn
func (TurnManager) CanUserSpeak(s *models.TrialSession) bool {
	return s.TurnIs(s.UserCaseRole())
}

// AvailableAgentsForUser lists the AI roles the user may address. Witnesses
// only take questions during witness examination.
func (TurnManager) AvailableAgentsForUser(s *models.TrialSession) []models.CaseRole {
	agents := []models.CaseRole{models.CaseRoleJudge, models.CaseRoleJury, s.UserRole.Opposing()}
	if s.CurrentPhase == models.PhaseWitnessExamination {
		agents = append(agents, models.CaseRoleWitness)
	}
	return agents
}
