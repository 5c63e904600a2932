// Package agents plays the AI roles of a trial: judge, opposing counsel,
// jury and witnesses.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/models"
)

var (
	// ErrWitnessRequired is returned when a witness agent is requested without a name
	ErrWitnessRequired = errors.New("witness name required for witness agent")
	// ErrWitnessNotFound is returned when the case has no witness by that name
	ErrWitnessNotFound = errors.New("witness not found")
	// ErrUnknownRole is returned for roles no agent can play
	ErrUnknownRole = errors.New("invalid agent role")
)

// Confidence values attached to agent replies
const (
	DefaultConfidence  = 0.8
	FallbackConfidence = 0.1
)

// role temperatures. Counsel use the configured temperature.
var temperatures = map[models.CaseRole]float64{
	models.CaseRoleJudge:   0.3,
	models.CaseRoleJury:    0.5,
	models.CaseRoleWitness: 0.6,
}

var systemPrompts = map[models.CaseRole]string{
	models.CaseRoleJudge:      judgePrompt,
	models.CaseRoleProsecutor: prosecutorPrompt,
	models.CaseRoleDefense:    defensePrompt,
	models.CaseRoleJury:       juryPrompt,
}

// Response is what an agent said
type Response struct {
	Content    string
	Role       models.CaseRole
	Speaker    string
	Confidence float64
	Metadata   map[string]interface{}
}

// Agent is one AI participant
type Agent struct {
	Role        models.CaseRole
	Name        string
	System      string
	Temperature float64

	llm       LLM
	maxTokens int
}

// Speaker is the transcript label for the agent
func (a *Agent) Speaker() string {
	if a.Role == models.CaseRoleWitness && a.Name != "" {
		return fmt.Sprintf("%s (%s)", a.Role.DisplayName(), a.Name)
	}
	return a.Role.DisplayName()
}

// Respond asks the backend for a reply. Backend failures do not return
// an error; the agent apologizes with a low confidence instead.
func (a *Agent) Respond(ctx context.Context, prompt string, session *models.TrialSession, legalCase *models.Case, action string) Response {
	if action == "" {
		action = "general_response"
	}
	meta := map[string]interface{}{
		"trial_phase": string(session.CurrentPhase),
		"action":      action,
	}
	if a.Role == models.CaseRoleWitness {
		meta["witness_name"] = a.Name
	}

	req := Request{
		System:      a.System + "\n\n" + BuildContext(session, legalCase),
		Prompt:      prompt,
		Temperature: a.Temperature,
		MaxTokens:   a.maxTokens,
		Role:        a.Role,
		Phase:       session.CurrentPhase,
	}
	content, err := a.llm.Complete(ctx, req)
	if err != nil {
		zap.S().Errorw("agent failed to respond", "role", a.Role, "provider", a.llm.Name(), "error", err)
		meta["error"] = err.Error()
		return Response{
			Content:    fmt.Sprintf("I apologize, but I'm having difficulty responding right now. Error: %s", err),
			Role:       a.Role,
			Speaker:    a.Speaker(),
			Confidence: FallbackConfidence,
			Metadata:   meta,
		}
	}

	return Response{
		Content:    content,
		Role:       a.Role,
		Speaker:    a.Speaker(),
		Confidence: DefaultConfidence,
		Metadata:   meta,
	}
}

// Roster builds agents on a shared backend
type Roster struct {
	llm         LLM
	maxTokens   int
	counselTemp float64
}

// NewRoster returns a Roster using llm for every role
func NewRoster(llm LLM, cfg config.LLMConfig) *Roster {
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.7
	}
	return &Roster{llm: llm, maxTokens: cfg.MaxTokens, counselTemp: temp}
}

func (r *Roster) temperature(role models.CaseRole) float64 {
	if t, ok := temperatures[role]; ok {
		return t
	}
	return r.counselTemp
}

// Provider names the backend in use
func (r *Roster) Provider() string {
	return r.llm.Name()
}

// Agent returns the agent for role. Witnesses are looked up by name in
// the case.
func (r *Roster) Agent(role models.CaseRole, legalCase *models.Case, witnessName string) (*Agent, error) {
	if role == models.CaseRoleWitness {
		if strings.TrimSpace(witnessName) == "" {
			return nil, ErrWitnessRequired
		}
		if legalCase == nil {
			return nil, fmt.Errorf("witness %s: %w", witnessName, ErrWitnessNotFound)
		}
		w, ok := legalCase.FindWitness(witnessName)
		if !ok {
			return nil, fmt.Errorf("witness %s: %w", witnessName, ErrWitnessNotFound)
		}
		return &Agent{
			Role:        role,
			Name:        w.Name,
			System:      witnessPrompt(w),
			Temperature: r.temperature(role),
			llm:         r.llm,
			maxTokens:   r.maxTokens,
		}, nil
	}

	system, ok := systemPrompts[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return &Agent{
		Role:        role,
		Name:        role.DisplayName(),
		System:      system,
		Temperature: r.temperature(role),
		llm:         r.llm,
		maxTokens:   r.maxTokens,
	}, nil
}

// RuleOnObjection has the judge rule on o. The ruling is whichever of
// "sustained" or "overruled" appears first in the reply, defaulting to
// overruled.
func (r *Roster) RuleOnObjection(ctx context.Context, session *models.TrialSession, legalCase *models.Case, o models.Objection) (string, Response, error) {
	judge, err := r.Agent(models.CaseRoleJudge, legalCase, "")
	if err != nil {
		return "", Response{}, err
	}
	resp := judge.Respond(ctx, objectionPrompt(o), session, legalCase, "objection_ruling")
	resp.Metadata["objection_type"] = string(o.ObjectionType)
	return ParseRuling(resp.Content), resp, nil
}

// ParseRuling extracts an objection ruling from free text
func ParseRuling(text string) string {
	lower := strings.ToLower(text)
	s := strings.Index(lower, models.RulingSustained)
	o := strings.Index(lower, models.RulingOverruled)
	if s >= 0 && (o < 0 || s < o) {
		return models.RulingSustained
	}
	return models.RulingOverruled
}

// JuryInstructions has the judge instruct the jury on the charges
func (r *Roster) JuryInstructions(ctx context.Context, session *models.TrialSession, legalCase *models.Case) (Response, error) {
	judge, err := r.Agent(models.CaseRoleJudge, legalCase, "")
	if err != nil {
		return Response{}, err
	}
	return judge.Respond(ctx, juryInstructionsPrompt(legalCase.Charges), session, legalCase, "jury_instructions"), nil
}

// DeliberateVerdict has the jury deliberate and returns the verdict it
// reached along with the full reply.
func (r *Roster) DeliberateVerdict(ctx context.Context, session *models.TrialSession, legalCase *models.Case, instructions string) (models.Verdict, Response, error) {
	jury, err := r.Agent(models.CaseRoleJury, legalCase, "")
	if err != nil {
		return models.Verdict{}, Response{}, err
	}
	resp := jury.Respond(ctx, deliberationPrompt(legalCase, instructions), session, legalCase, "verdict_deliberation")
	return models.Verdict{
		Verdict:   ParseVerdict(resp.Content),
		Reasoning: resp.Content,
	}, resp, nil
}

// Verdict outcomes
const (
	VerdictGuilty    = "guilty"
	VerdictNotGuilty = "not_guilty"
)

// ParseVerdict reads a guilty or not guilty finding from free text.
// Any mention of "not guilty" wins, since it also contains "guilty".
func ParseVerdict(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "not guilty") {
		return VerdictNotGuilty
	}
	if strings.Contains(lower, "guilty") {
		return VerdictGuilty
	}
	return VerdictNotGuilty
}
