package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseRole_UnmarshalJSONAcceptsBothShapes(t *testing.T) {
	var plain, wrapped CaseRole
	require.NoError(t, json.Unmarshal([]byte(`"defense"`), &plain))
	require.NoError(t, json.Unmarshal([]byte(`{"value":"defense"}`), &wrapped))

	assert.Equal(t, CaseRoleDefense, plain)
	assert.Equal(t, plain, wrapped)
}

func TestCaseRole_UnmarshalJSONRejectsUnknown(t *testing.T) {
	var r CaseRole
	assert.Error(t, json.Unmarshal([]byte(`"bailiff"`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"value":"clerk"}`), &r))
}

func TestTrialSession_CurrentTurnShapes(t *testing.T) {
	cases := map[string]*CaseRole{
		`{"current_turn":"prosecutor"}`:          RoleRef(CaseRoleProsecutor),
		`{"current_turn":{"value":"prosecutor"}}`: RoleRef(CaseRoleProsecutor),
		`{"current_turn":null}`:                  nil,
		`{}`:                                     nil,
	}
	for body, want := range cases {
		var s TrialSession
		require.NoError(t, json.Unmarshal([]byte(body), &s), body)
		assert.Equal(t, want, s.CurrentTurn, body)
	}
}

func TestTrialPhase_Next(t *testing.T) {
	next, ok := PhaseSetup.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseOpeningStatements, next)

	_, ok = PhaseCompleted.Next()
	assert.False(t, ok)

	_, ok = TrialPhase("recess").Next()
	assert.False(t, ok)
}

func TestDisplayNames(t *testing.T) {
	assert.Equal(t, "Prosecutor", CaseRoleProsecutor.DisplayName())
	assert.Equal(t, "Opening Statements", PhaseOpeningStatements.DisplayName())
	assert.Equal(t, "Asked And Answered", ObjectionAskedAndAnswered.DisplayName())
}

func TestUserRole_CaseRole(t *testing.T) {
	assert.Equal(t, CaseRoleDefense, UserRoleDefense.CaseRole())
	assert.Equal(t, CaseRoleProsecutor, UserRoleDefense.Opposing())
	assert.Equal(t, CaseRoleProsecutor, UserRoleProsecutor.CaseRole())
	assert.Equal(t, CaseRoleDefense, UserRoleProsecutor.Opposing())
	assert.False(t, UserRole("judge").Valid())
}

func TestTranscriptEntry_IsUserInput(t *testing.T) {
	assert.True(t, TranscriptEntry{Metadata: map[string]interface{}{"user_input": true}}.IsUserInput())
	assert.False(t, TranscriptEntry{Metadata: map[string]interface{}{"user_input": "yes"}}.IsUserInput())
	assert.False(t, TranscriptEntry{}.IsUserInput())
}

func TestObjectionType_Valid(t *testing.T) {
	for _, ot := range ObjectionTypes {
		assert.True(t, ot.Valid())
	}
	assert.False(t, ObjectionType("badgering").Valid())
}

func TestLastN(t *testing.T) {
	entries := []TranscriptEntry{{Content: "1"}, {Content: "2"}, {Content: "3"}}

	assert.Equal(t, []TranscriptEntry{{Content: "2"}, {Content: "3"}}, LastN(entries, 2))
	assert.Equal(t, entries, LastN(entries, 5))
	assert.Empty(t, LastN(entries, 0))
	assert.Empty(t, LastN(nil, 3))
}
