package client

import (
	"context"
	"fmt"

	"github.com/linesmerrill/jurysane-api/models"
)

// SessionSource fetches sessions and cases
type SessionSource interface {
	GetSession(ctx context.Context, sessionID string) (*models.TrialSession, error)
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
}

// Loader re-reads a session and its case. Nothing is cached; every call
// goes back to the server.
type Loader struct {
	Source SessionSource
}

// LoadSessionAndCase fetches the session, then the case it references
func (l Loader) LoadSessionAndCase(ctx context.Context, sessionID string) (*models.TrialSession, *models.Case, error) {
	session, err := l.Source.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load trial session: %w", err)
	}
	cs, err := l.Source.GetCase(ctx, session.CaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load case %s: %w", session.CaseID, err)
	}
	return session, cs, nil
}
