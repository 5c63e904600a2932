// Package trial runs trial sessions: creation, turn taking, agent replies,
// evidence, objections and verdicts.
package trial

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/agents"
	"github.com/linesmerrill/jurysane-api/databases"
	"github.com/linesmerrill/jurysane-api/models"
)

var (
	// ErrSessionNotFound is returned when no session has the id
	ErrSessionNotFound = errors.New("trial session not found")
	// ErrCaseNotFound is returned when no case has the id
	ErrCaseNotFound = errors.New("case not found")
	// ErrInvalidRequest is returned for requests that fail validation
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotAgentTurn is returned when an automatic reply is asked for
	// while no AI role holds the turn
	ErrNotAgentTurn = errors.New("no agent turn pending")
	// ErrConflict is returned when a session keeps changing underneath an update
	ErrConflict = errors.New("trial session was modified concurrently")
)

// maxUpdateAttempts bounds optimistic retries on version conflicts
const maxUpdateAttempts = 3

// Publisher receives an event after every session change
type Publisher interface {
	Publish(event models.SessionEvent)
}

// Service coordinates trial sessions
type Service struct {
	sessions databases.TrialSessionDatabase
	cases    databases.CaseDatabase
	roster   *agents.Roster
	events   Publisher
	turns    TurnManager
	now      func() time.Time
}

// NewService builds a Service. events may be nil.
func NewService(sessions databases.TrialSessionDatabase, cases databases.CaseDatabase, roster *agents.Roster, events Publisher) *Service {
	return &Service{
		sessions: sessions,
		cases:    cases,
		roster:   roster,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// CreateSession opens a new trial of caseID with the user in userRole
func (s *Service) CreateSession(ctx context.Context, caseID string, userRole models.UserRole) (*models.TrialSession, error) {
	if !userRole.Valid() {
		return nil, invalid("unknown user role %q", userRole)
	}
	legalCase, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.TrialSession{
		ID:                  uuid.New().String(),
		CaseID:              legalCase.ID,
		UserRole:            userRole,
		CurrentPhase:        models.PhaseSetup,
		Participants:        participantsFor(legalCase, userRole),
		Transcript:          []models.TranscriptEntry{},
		EvidenceAdmitted:    []string{},
		EvidenceSubmissions: []models.EvidenceSubmission{},
		Objections:          []models.Objection{},
		StartedAt:           now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.turns.InitializeForPhase(session)

	if err := s.sessions.InsertOne(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create trial session: %w", err)
	}
	zap.S().Infow("trial session created", "session_id", session.ID, "case_id", legalCase.ID, "user_role", userRole)
	s.publish(session)
	return session, nil
}

func participantsFor(c *models.Case, userRole models.UserRole) []models.Participant {
	participants := []models.Participant{
		{ID: uuid.New().String(), Name: "User", Role: userRole.CaseRole(), IsAI: false},
		{ID: uuid.New().String(), Name: "Judge", Role: models.CaseRoleJudge, IsAI: true, Description: "Presiding judge for the trial"},
		{ID: uuid.New().String(), Name: "Jury", Role: models.CaseRoleJury, IsAI: true, Description: "12-person jury"},
	}
	if userRole == models.UserRoleDefense {
		participants = append(participants, models.Participant{
			ID: uuid.New().String(), Name: "Prosecutor", Role: models.CaseRoleProsecutor, IsAI: true, Description: "State prosecutor",
		})
	} else {
		participants = append(participants, models.Participant{
			ID: uuid.New().String(), Name: "Defense Attorney", Role: models.CaseRoleDefense, IsAI: true, Description: "Defense counsel",
		})
	}
	for _, w := range c.Witnesses {
		participants = append(participants, models.Participant{
			ID:          uuid.New().String(),
			Name:        w.Name,
			Role:        models.CaseRoleWitness,
			IsAI:        true,
			Description: "Witness: " + truncate(w.Background, 100) + "...",
		})
	}
	return participants
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// GetSession loads a session by id
func (s *Service) GetSession(ctx context.Context, id string) (*models.TrialSession, error) {
	session, err := s.sessions.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get trial session: %w", err)
	}
	return session, nil
}

// GetCase loads a case by id
func (s *Service) GetCase(ctx context.Context, id string) (*models.Case, error) {
	legalCase, err := s.cases.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return legalCase, nil
}

// update loads the session, applies fn and writes it back guarded by the
// version it was read at. A lost race reloads and reapplies fn.
func (s *Service) update(ctx context.Context, id string, fn func(*models.TrialSession) error) (*models.TrialSession, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(session); err != nil {
			return nil, err
		}

		read := session.Version
		session.Version++
		session.UpdatedAt = s.now()
		matched, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": id, "__v": read}, session)
		if err != nil {
			return nil, fmt.Errorf("failed to save trial session: %w", err)
		}
		if matched > 0 {
			s.publish(session)
			return session, nil
		}
		zap.S().Debugw("trial session version conflict", "session_id", id, "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: %s", ErrConflict, id)
}

func (s *Service) publish(session *models.TrialSession) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.SessionEvent{
		Type:      models.EventSessionUpdated,
		SessionID: session.ID,
		Phase:     session.CurrentPhase,
		At:        session.UpdatedAt,
	})
}

// AdvancePhase moves the trial forward to next and opens its first turn
func (s *Service) AdvancePhase(ctx context.Context, id string, next models.TrialPhase) (*models.TrialSession, error) {
	if !next.Valid() {
		return nil, invalid("unknown phase %q", next)
	}
	return s.update(ctx, id, func(session *models.TrialSession) error {
		if next.Index() <= session.CurrentPhase.Index() {
			return invalid("cannot move from %s to %s", session.CurrentPhase, next)
		}
		session.CurrentPhase = next
		if next == models.PhaseCompleted {
			now := s.now()
			session.CompletedAt = &now
		}
		s.turns.InitializeForPhase(session)
		return nil
	})
}

// AddTranscriptEntry appends to the record. User input hands the turn on
// when the user held it.
func (s *Service) AddTranscriptEntry(ctx context.Context, id string, req models.AddTranscriptRequest) (*models.TrialSession, error) {
	if strings.TrimSpace(req.Speaker) == "" || strings.TrimSpace(req.Content) == "" {
		return nil, invalid("speaker and content are required")
	}
	return s.update(ctx, id, func(session *models.TrialSession) error {
		entry := models.TranscriptEntry{
			Speaker:   req.Speaker,
			Content:   req.Content,
			Timestamp: s.now(),
			Phase:     session.CurrentPhase,
			Metadata:  req.Metadata,
		}
		session.Transcript = append(session.Transcript, entry)
		if entry.IsUserInput() && s.turns.CanUserSpeak(session) {
			s.turns.UpdateAfterResponse(session, session.UserCaseRole())
		}
		return nil
	})
}

// AgentResponse has an AI role answer prompt and records the reply
func (s *Service) AgentResponse(ctx context.Context, id string, req models.AgentPromptRequest) (*models.AgentResponse, error) {
	if !req.AgentRole.Valid() {
		return nil, invalid("unknown agent role %q", req.AgentRole)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, invalid("prompt is required")
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.AgentRole == session.UserCaseRole() {
		return nil, invalid("%s is played by the user", req.AgentRole)
	}
	if !slices.Contains(s.turns.AvailableAgentsForUser(session), req.AgentRole) {
		return nil, invalid("%s cannot be addressed during %s", req.AgentRole, session.CurrentPhase.DisplayName())
	}
	legalCase, err := s.GetCase(ctx, session.CaseID)
	if err != nil {
		return nil, err
	}

	witnessName, _ := req.Context["witness_name"].(string)
	agent, err := s.roster.Agent(req.AgentRole, legalCase, witnessName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	resp := agent.Respond(ctx, req.Prompt, session, legalCase, "")
	if _, err := s.record(ctx, id, resp); err != nil {
		return nil, err
	}

	meta := map[string]interface{}{}
	for k, v := range req.Context {
		meta[k] = v
	}
	meta["agent_role"] = string(resp.Role)
	meta["confidence"] = resp.Confidence
	return &models.AgentResponse{Content: resp.Content, Speaker: resp.Speaker, Metadata: meta}, nil
}

// record appends an agent reply and advances the turn if the agent held it
func (s *Service) record(ctx context.Context, id string, resp agents.Response, also ...func(*models.TrialSession)) (*models.TrialSession, error) {
	return s.update(ctx, id, func(session *models.TrialSession) error {
		session.Transcript = append(session.Transcript, models.TranscriptEntry{
			Speaker:   resp.Speaker,
			Content:   resp.Content,
			Timestamp: s.now(),
			Phase:     session.CurrentPhase,
			Metadata: map[string]interface{}{
				"agent_role": string(resp.Role),
				"confidence": resp.Confidence,
				"metadata":   resp.Metadata,
			},
		})
		for _, fn := range also {
			fn(session)
		}
		if session.TurnIs(resp.Role) {
			s.turns.UpdateAfterResponse(session, resp.Role)
		}
		return nil
	})
}

// AutomaticAgentResponse lets the AI role holding the turn speak
func (s *Service) AutomaticAgentResponse(ctx context.Context, id string) (*models.AgentResponse, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.CurrentTurn == nil {
		return nil, fmt.Errorf("%w: nobody holds the turn", ErrNotAgentTurn)
	}
	role := *session.CurrentTurn
	if role == session.UserCaseRole() {
		return nil, fmt.Errorf("%w: it is the user's turn", ErrNotAgentTurn)
	}
	legalCase, err := s.GetCase(ctx, session.CaseID)
	if err != nil {
		return nil, err
	}

	var (
		resp agents.Response
		also []func(*models.TrialSession)
	)
	if session.CurrentPhase == models.PhaseJuryDeliberation && role == models.CaseRoleJury {
		verdict, r, err := s.roster.DeliberateVerdict(ctx, session, legalCase, "Follow the law as the court instructed.")
		if err != nil {
			return nil, err
		}
		verdict.ID = uuid.New().String()
		resp = r
		also = append(also, func(ts *models.TrialSession) { ts.Verdict = &verdict })
	} else {
		agent, err := s.roster.Agent(role, legalCase, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
		}
		resp = agent.Respond(ctx, agents.TurnPrompt(role, session, legalCase), session, legalCase, "automatic_turn")
	}

	if _, err := s.record(ctx, id, resp, also...); err != nil {
		return nil, err
	}
	return &models.AgentResponse{
		Content: resp.Content,
		Speaker: resp.Speaker,
		Metadata: map[string]interface{}{
			"agent_role": string(resp.Role),
			"confidence": resp.Confidence,
			"automatic":  true,
		},
	}, nil
}

// CompleteTrial records the verdict and closes the trial
func (s *Service) CompleteTrial(ctx context.Context, id string, verdict models.Verdict) (*models.TrialSession, error) {
	if strings.TrimSpace(verdict.Verdict) == "" {
		return nil, invalid("verdict is required")
	}
	if verdict.ID == "" {
		verdict.ID = uuid.New().String()
	}
	return s.update(ctx, id, func(session *models.TrialSession) error {
		now := s.now()
		session.Verdict = &verdict
		session.CurrentPhase = models.PhaseCompleted
		session.CompletedAt = &now
		s.turns.InitializeForPhase(session)
		return nil
	})
}

// SubmitEvidence offers an exhibit from the case for admission
func (s *Service) SubmitEvidence(ctx context.Context, id string, req models.SubmitEvidenceRequest) (*models.TrialSession, error) {
	if !req.SubmittedBy.Valid() {
		return nil, invalid("unknown role %q", req.SubmittedBy)
	}
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	legalCase, err := s.GetCase(ctx, session.CaseID)
	if err != nil {
		return nil, err
	}
	if _, ok := legalCase.FindEvidence(req.EvidenceID); !ok {
		return nil, invalid("evidence %s is not part of this case", req.EvidenceID)
	}

	return s.update(ctx, id, func(session *models.TrialSession) error {
		session.EvidenceSubmissions = append(session.EvidenceSubmissions, models.EvidenceSubmission{
			EvidenceID:  req.EvidenceID,
			SubmittedBy: req.SubmittedBy,
			Description: req.Description,
			Status:      models.EvidencePending,
			SubmittedAt: s.now(),
		})
		return nil
	})
}

// RuleOnEvidence admits or rejects an exhibit. The latest pending
// submission for it takes the ruling.
func (s *Service) RuleOnEvidence(ctx context.Context, id string, req models.RuleOnEvidenceRequest) (*models.TrialSession, error) {
	ruling := strings.ToLower(strings.TrimSpace(req.Ruling))
	if ruling != models.EvidenceAdmitted && ruling != models.EvidenceRejected {
		return nil, invalid("ruling must be %s or %s", models.EvidenceAdmitted, models.EvidenceRejected)
	}
	if strings.TrimSpace(req.EvidenceID) == "" {
		return nil, invalid("evidence_id is required")
	}

	return s.update(ctx, id, func(session *models.TrialSession) error {
		for i := len(session.EvidenceSubmissions) - 1; i >= 0; i-- {
			sub := &session.EvidenceSubmissions[i]
			if sub.EvidenceID == req.EvidenceID && sub.Status == models.EvidencePending {
				sub.Status = ruling
				sub.Reason = req.Reason
				break
			}
		}
		if ruling == models.EvidenceAdmitted && !session.IsAdmitted(req.EvidenceID) {
			session.EvidenceAdmitted = append(session.EvidenceAdmitted, req.EvidenceID)
		}
		return nil
	})
}

// RaiseObjection records an objection for the judge to rule on
func (s *Service) RaiseObjection(ctx context.Context, id string, req models.RaiseObjectionRequest) (*models.TrialSession, error) {
	if !req.ObjectionType.Valid() {
		return nil, invalid("unknown objection type %q", req.ObjectionType)
	}
	if !req.RaisedBy.Valid() {
		return nil, invalid("unknown role %q", req.RaisedBy)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, invalid("reason is required")
	}

	objection := models.Objection{
		ID:            uuid.New().String(),
		ObjectionType: req.ObjectionType,
		RaisedBy:      req.RaisedBy,
		Reason:        req.Reason,
		Context:       req.Context,
	}
	return s.update(ctx, id, func(session *models.TrialSession) error {
		objection.RaisedAt = s.now()
		session.Objections = append(session.Objections, objection)
		return nil
	})
}

// RuleOnObjection rules on an open objection. With no ruling given the
// judge agent decides and its reasoning goes on the record.
func (s *Service) RuleOnObjection(ctx context.Context, id string, req models.RuleOnObjectionRequest) (*models.TrialSession, error) {
	ruling := strings.ToLower(strings.TrimSpace(req.Ruling))
	if ruling != "" && ruling != models.RulingSustained && ruling != models.RulingOverruled {
		return nil, invalid("ruling must be %s or %s", models.RulingSustained, models.RulingOverruled)
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	objection, err := openObjection(session, req.ObjectionID)
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	apply := func(session *models.TrialSession) {
		for i := range session.Objections {
			if session.Objections[i].ID == req.ObjectionID {
				session.Objections[i].Ruling = ruling
				session.Objections[i].RulingReason = reason
			}
		}
	}

	if ruling != "" {
		return s.update(ctx, id, func(session *models.TrialSession) error {
			if _, err := openObjection(session, req.ObjectionID); err != nil {
				return err
			}
			apply(session)
			return nil
		})
	}

	legalCase, err := s.GetCase(ctx, session.CaseID)
	if err != nil {
		return nil, err
	}
	decided, resp, err := s.roster.RuleOnObjection(ctx, session, legalCase, objection)
	if err != nil {
		return nil, err
	}
	ruling, reason = decided, resp.Content
	return s.record(ctx, id, resp, apply)
}

func openObjection(session *models.TrialSession, objectionID string) (models.Objection, error) {
	for _, o := range session.Objections {
		if o.ID == objectionID {
			if o.Ruling != "" {
				return o, invalid("objection %s was already %s", objectionID, o.Ruling)
			}
			return o, nil
		}
	}
	return models.Objection{}, invalid("objection %s not found", objectionID)
}

// PurgeStale deletes sessions untouched since cutoff
func (s *Service) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	stale, err := s.sessions.Find(ctx, bson.M{"updated_at": bson.M{"$lt": cutoff}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to find stale trial sessions: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, len(stale))
	for i := range stale {
		ids[i] = stale[i].ID
	}
	n, err := s.sessions.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge trial sessions: %w", err)
	}

	if s.events != nil {
		at := s.now()
		for _, id := range ids {
			s.events.Publish(models.SessionEvent{Type: models.EventSessionDeleted, SessionID: id, At: at})
		}
	}
	return n, nil
}

// Provider names the agent backend
func (s *Service) Provider() string {
	return s.roster.Provider()
}
