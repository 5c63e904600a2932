package models

import "time"

// CreateTrialRequest starts a trial for a case with the chosen role
type CreateTrialRequest struct {
	CaseID   string   `json:"case_id"`
	UserRole UserRole `json:"user_role"`
}

// CreateTrialResponse carries the new session id and the seat token
// the caller must present on mutating requests
type CreateTrialResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Token     string `json:"token"`
}

// AddTranscriptRequest appends an entry to the transcript
type AddTranscriptRequest struct {
	Speaker  string                 `json:"speaker"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AgentPromptRequest asks one AI role to respond
type AgentPromptRequest struct {
	Prompt    string                 `json:"prompt"`
	AgentRole CaseRole               `json:"agent_role"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// AgentResponse is what an AI role said
type AgentResponse struct {
	Content  string                 `json:"content"`
	Speaker  string                 `json:"speaker"`
	Metadata map[string]interface{} `json:"metadata"`
}

// AdvancePhaseRequest moves the trial forward
type AdvancePhaseRequest struct {
	NextPhase TrialPhase `json:"next_phase"`
}

// CompleteTrialRequest closes the trial with a verdict
type CompleteTrialRequest struct {
	Verdict Verdict `json:"verdict"`
}

// SubmitEvidenceRequest offers an exhibit for admission
type SubmitEvidenceRequest struct {
	EvidenceID  string   `json:"evidence_id"`
	SubmittedBy CaseRole `json:"submitted_by"`
	Description string   `json:"description"`
}

// RuleOnEvidenceRequest admits or rejects an exhibit
type RuleOnEvidenceRequest struct {
	EvidenceID string `json:"evidence_id"`
	Ruling     string `json:"ruling"`
	Reason     string `json:"reason"`
}

// RaiseObjectionRequest raises an objection
type RaiseObjectionRequest struct {
	ObjectionType ObjectionType `json:"objection_type"`
	Reason        string        `json:"reason"`
	RaisedBy      CaseRole      `json:"raised_by"`
	Context       string        `json:"context,omitempty"`
}

// RuleOnObjectionRequest rules on an objection. An empty ruling lets
// the judge decide.
type RuleOnObjectionRequest struct {
	ObjectionID string `json:"objection_id"`
	Ruling      string `json:"ruling"`
	Reason      string `json:"reason"`
}

// Session event types
const (
	EventSessionUpdated = "session.updated"
	EventSessionDeleted = "session.deleted"
)

// SessionEvent is pushed to subscribers whenever a session changes
type SessionEvent struct {
	Type      string     `json:"type"`
	SessionID string     `json:"session_id"`
	Phase     TrialPhase `json:"phase,omitempty"`
	At        time.Time  `json:"at"`
}
