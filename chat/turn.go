// Package chat holds the courtroom chat logic: whose turn it is, how the
// transcript is shown, and how a message travels to the server.
package chat

import "github.com/linesmerrill/jurysane-api/models"

// IsUserTurn reports whether the human may speak now. A session without
// a current turn is never the user's turn.
func IsUserTurn(s *models.TrialSession) bool {
	if s == nil || s.CurrentTurn == nil {
		return false
	}
	return *s.CurrentTurn == s.UserCaseRole()
}

// ShouldAutoRespond reports whether an AI role holds the turn
func ShouldAutoRespond(s *models.TrialSession) bool {
	if s == nil || s.CurrentTurn == nil || *s.CurrentTurn == "" {
		return false
	}
	return !IsUserTurn(s)
}

// TurnDisplayName names the turn holder, or "None"
func TurnDisplayName(turn *models.CaseRole) string {
	if turn == nil || *turn == "" {
		return "None"
	}
	return turn.DisplayName()
}

// TurnIndicator is the status line shown under the transcript
func TurnIndicator(s *models.TrialSession) string {
	if IsUserTurn(s) {
		return "Your Turn"
	}
	if s == nil {
		return "Turn: None"
	}
	return "Turn: " + TurnDisplayName(s.CurrentTurn)
}
