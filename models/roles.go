package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserRole is the adversarial role a human plays in a trial
type UserRole string

// UserRole values
const (
	UserRoleDefense    UserRole = "defense"
	UserRoleProsecutor UserRole = "prosecutor"
)

// Valid reports whether r is a known user role
func (r UserRole) Valid() bool {
	return r == UserRoleDefense || r == UserRoleProsecutor
}

// CaseRole returns the courtroom role that mirrors the user role
func (r UserRole) CaseRole() CaseRole {
	if r == UserRoleProsecutor {
		return CaseRoleProsecutor
	}
	return CaseRoleDefense
}

// Opposing returns the courtroom role of the other side
func (r UserRole) Opposing() CaseRole {
	if r == UserRoleProsecutor {
		return CaseRoleDefense
	}
	return CaseRoleProsecutor
}

// CaseRole is any role that can speak in a trial
type CaseRole string

// CaseRole values
const (
	CaseRoleDefense    CaseRole = "defense"
	CaseRoleProsecutor CaseRole = "prosecutor"
	CaseRoleJudge      CaseRole = "judge"
	CaseRoleJury       CaseRole = "jury"
	CaseRoleWitness    CaseRole = "witness"
)

// CaseRoles lists every courtroom role in display order
var CaseRoles = []CaseRole{CaseRoleJudge, CaseRoleProsecutor, CaseRoleDefense, CaseRoleJury, CaseRoleWitness}

// Valid reports whether r is a known case role
func (r CaseRole) Valid() bool {
	switch r {
	case CaseRoleDefense, CaseRoleProsecutor, CaseRoleJudge, CaseRoleJury, CaseRoleWitness:
		return true
	}
	return false
}

// DisplayName capitalizes the role, e.g. "prosecutor" becomes "Prosecutor"
func (r CaseRole) DisplayName() string {
	return titleWords(string(r))
}

// UnmarshalJSON accepts either a bare string or an object carrying a
// "value" field, so {"value":"defense"} and "defense" decode the same way.
func (r *CaseRole) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var raw string
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		raw = wrapped.Value
	} else if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	role := CaseRole(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return fmt.Errorf("unknown case role %q", raw)
	}
	*r = role
	return nil
}

// TrialPhase is a stage of the trial, in order
type TrialPhase string

// TrialPhase values
const (
	PhaseSetup              TrialPhase = "setup"
	PhaseOpeningStatements  TrialPhase = "opening_statements"
	PhaseWitnessExamination TrialPhase = "witness_examination"
	PhaseClosingArguments   TrialPhase = "closing_arguments"
	PhaseJuryDeliberation   TrialPhase = "jury_deliberation"
	PhaseVerdict            TrialPhase = "verdict"
	PhaseCompleted          TrialPhase = "completed"
)

// TrialPhases lists the phases in the order a trial moves through them
var TrialPhases = []TrialPhase{
	PhaseSetup,
	PhaseOpeningStatements,
	PhaseWitnessExamination,
	PhaseClosingArguments,
	PhaseJuryDeliberation,
	PhaseVerdict,
	PhaseCompleted,
}

// Index returns the position of p in TrialPhases, or -1
func (p TrialPhase) Index() int {
	for i, phase := range TrialPhases {
		if phase == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known phase
func (p TrialPhase) Valid() bool {
	return p.Index() >= 0
}

// Next returns the phase after p. The second value is false once the
// trial is completed or p is unknown.
func (p TrialPhase) Next() (TrialPhase, bool) {
	i := p.Index()
	if i < 0 || i == len(TrialPhases)-1 {
		return "", false
	}
	return TrialPhases[i+1], true
}

// DisplayName renders the phase for people, e.g. "Opening Statements"
func (p TrialPhase) DisplayName() string {
	return titleWords(string(p))
}

// ObjectionType is a category of legal objection
type ObjectionType string

// ObjectionType values
const (
	ObjectionHearsay          ObjectionType = "hearsay"
	ObjectionLeading          ObjectionType = "leading"
	ObjectionRelevance        ObjectionType = "relevance"
	ObjectionSpeculation      ObjectionType = "speculation"
	ObjectionArgumentative    ObjectionType = "argumentative"
	ObjectionAskedAndAnswered ObjectionType = "asked_and_answered"
	ObjectionCompound         ObjectionType = "compound"
	ObjectionAssumesFacts     ObjectionType = "assumes_facts"
)

// ObjectionTypes lists every objection type
var ObjectionTypes = []ObjectionType{
	ObjectionHearsay,
	ObjectionLeading,
	ObjectionRelevance,
	ObjectionSpeculation,
	ObjectionArgumentative,
	ObjectionAskedAndAnswered,
	ObjectionCompound,
	ObjectionAssumesFacts,
}

// Valid reports whether t is a known objection type
func (t ObjectionType) Valid() bool {
	for _, known := range ObjectionTypes {
		if known == t {
			return true
		}
	}
	return false
}

// DisplayName renders the objection type for people
func (t ObjectionType) DisplayName() string {
	return titleWords(string(t))
}

func titleWords(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
