package models

import "time"

// TrialSession holds the structure for the trialsessions collection in mongo
type TrialSession struct {
	ID                  string               `json:"id" bson:"_id"`
	CaseID              string               `json:"case_id" bson:"case_id"`
	UserRole            UserRole             `json:"user_role" bson:"user_role"`
	CurrentPhase        TrialPhase           `json:"current_phase" bson:"current_phase"`
	Participants        []Participant        `json:"participants" bson:"participants"`
	Transcript          []TranscriptEntry    `json:"transcript" bson:"transcript"`
	EvidenceAdmitted    []string             `json:"evidence_admitted" bson:"evidence_admitted"`
	EvidenceSubmissions []EvidenceSubmission `json:"evidence_submissions" bson:"evidence_submissions"`
	Objections          []Objection          `json:"objections" bson:"objections"`
	Verdict             *Verdict             `json:"verdict" bson:"verdict,omitempty"`

	// CurrentTurn is nil when nobody is expected to speak
	CurrentTurn      *CaseRole `json:"current_turn" bson:"current_turn,omitempty"`
	TurnCount        int       `json:"turn_count" bson:"turn_count"`
	LastSpeaker      *CaseRole `json:"last_speaker" bson:"last_speaker,omitempty"`
	AwaitingResponse bool      `json:"awaiting_response" bson:"awaiting_response"`

	StartedAt   time.Time  `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time `json:"completed_at" bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`

	// Version grows by one on every write
	Version int32 `json:"version" bson:"__v"`
}

// Participant is a human or AI seat in the courtroom
type Participant struct {
	ID          string   `json:"id" bson:"id"`
	Name        string   `json:"name" bson:"name"`
	Role        CaseRole `json:"role" bson:"role"`
	IsAI        bool     `json:"is_ai" bson:"is_ai"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
}

// TranscriptEntry is one spoken turn in the trial record
type TranscriptEntry struct {
	Speaker   string                 `json:"speaker" bson:"speaker"`
	Content   string                 `json:"content" bson:"content"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
	Phase     TrialPhase             `json:"phase" bson:"phase"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// MetadataUserInput marks transcript entries typed by the human player
const MetadataUserInput = "user_input"

// IsUserInput reports whether the entry was authored by the human player
func (e TranscriptEntry) IsUserInput() bool {
	v, ok := e.Metadata[MetadataUserInput].(bool)
	return ok && v
}

// LastN returns the last n entries in order
func LastN(entries []TranscriptEntry, n int) []TranscriptEntry {
	if n <= 0 {
		return nil
	}
	if n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}

// Objection is a challenge raised during the trial
type Objection struct {
	ID            string        `json:"id" bson:"id"`
	ObjectionType ObjectionType `json:"objection_type" bson:"objection_type"`
	RaisedBy      CaseRole      `json:"raised_by" bson:"raised_by"`
	Reason        string        `json:"reason" bson:"reason"`
	Ruling        string        `json:"ruling,omitempty" bson:"ruling,omitempty"`
	RulingReason  string        `json:"ruling_reason,omitempty" bson:"ruling_reason,omitempty"`
	Context       string        `json:"context" bson:"context"`
	RaisedAt      time.Time     `json:"raised_at" bson:"raised_at"`
}

// Objection rulings
const (
	RulingSustained = "sustained"
	RulingOverruled = "overruled"
)

// EvidenceSubmission tracks an exhibit offered for admission
type EvidenceSubmission struct {
	EvidenceID  string    `json:"evidence_id" bson:"evidence_id"`
	SubmittedBy CaseRole  `json:"submitted_by" bson:"submitted_by"`
	Description string    `json:"description" bson:"description"`
	Status      string    `json:"status" bson:"status"`
	Reason      string    `json:"reason,omitempty" bson:"reason,omitempty"`
	SubmittedAt time.Time `json:"submitted_at" bson:"submitted_at"`
}

// Evidence submission statuses
const (
	EvidencePending  = "pending"
	EvidenceAdmitted = "admitted"
	EvidenceRejected = "rejected"
)

// Verdict is the final outcome of a trial
type Verdict struct {
	ID            string         `json:"id" bson:"id"`
	Verdict       string         `json:"verdict" bson:"verdict"`
	Reasoning     string         `json:"reasoning" bson:"reasoning"`
	VoteBreakdown map[string]int `json:"vote_breakdown,omitempty" bson:"vote_breakdown,omitempty"`
}

// UserCaseRole maps the human's role onto the courtroom role it plays
func (s TrialSession) UserCaseRole() CaseRole {
	return s.UserRole.CaseRole()
}

// Witnesses returns the AI witness participants of the session
func (s TrialSession) Witnesses() []Participant {
	var out []Participant
	for _, p := range s.Participants {
		if p.Role == CaseRoleWitness && p.IsAI {
			out = append(out, p)
		}
	}
	return out
}

// IsAdmitted reports whether the evidence id has been admitted
func (s TrialSession) IsAdmitted(evidenceID string) bool {
	for _, id := range s.EvidenceAdmitted {
		if id == evidenceID {
			return true
		}
	}
	return false
}

// TurnIs reports whether the current turn belongs to role
func (s TrialSession) TurnIs(role CaseRole) bool {
	return s.CurrentTurn != nil && *s.CurrentTurn == role
}

// RoleRef returns a pointer to a copy of r, for optional turn fields
func RoleRef(r CaseRole) *CaseRole {
	return &r
}
