package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/jurysane-api/models"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   []byte
}

type callLog struct {
	mu    sync.Mutex
	items []recorded
}

func (l *callLog) add(r recorded) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, r)
}

func (l *callLog) all() []recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recorded(nil), l.items...)
}

// newServer answers every request with status and payload and records
// what it received
func newServer(t *testing.T, status int, payload interface{}) (*httptest.Server, *callLog) {
	t.Helper()
	calls := &callLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls.add(recorded{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			auth:   r.Header.Get("Authorization"),
			body:   b,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func TestListCases(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, []models.Case{{ID: "c1", Title: "State v. Doe"}})
	c := New(server.URL)

	cases, err := c.ListCases(context.Background())

	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "State v. Doe", cases[0].Title)
	assert.Equal(t, "/api/v1/cases/", calls.all()[0].path)
}

func TestInfo(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, models.InfoResponse{Name: "jurysane-api", LLMProvider: "gemini"})
	c := New(server.URL)

	info, err := c.Info(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "gemini", info.LLMProvider)
	assert.Equal(t, "/api/v1/info", calls.all()[0].path)
}

func TestSearchCasesEscapesQuery(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, []models.Case{})
	c := New(server.URL + "/")

	_, err := c.SearchCases(context.Background(), "armed robbery/2")

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/cases/search/armed%20robbery%2F2", calls.all()[0].path)
}

func TestCasesByCategory(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, []models.Case{})
	c := New(server.URL)

	_, err := c.CasesByCategory(context.Background(), "white-collar")

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/cases/category/white-collar", calls.all()[0].path)
}

func TestGetCaseNotFound(t *testing.T) {
	server, _ := newServer(t, http.StatusNotFound, models.ErrorMessageResponse{
		Response: models.MessageError{Message: "case not found", Error: "mongo: no documents in result"},
	})
	c := New(server.URL)

	cs, err := c.GetCase(context.Background(), "nope")

	assert.Nil(t, cs)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "case not found: mongo: no documents in result", apiErr.Detail)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsBadRequest(err))
}

func TestAPIErrorFallsBackToStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()
	c := New(server.URL)

	_, err := c.GetSession(context.Background(), "s1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Detail)
}

func TestIsBadRequest(t *testing.T) {
	err := &APIError{StatusCode: http.StatusBadRequest, Detail: "no agent turn"}
	assert.True(t, IsBadRequest(err))
	assert.True(t, IsBadRequest(errors.Join(errors.New("wrapped"), err)))
	assert.False(t, IsBadRequest(errors.New("plain")))
	assert.False(t, IsBadRequest(&APIError{StatusCode: http.StatusConflict}))
}

func TestCreateTrialRemembersToken(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, models.CreateTrialResponse{
		SessionID: "s1", Token: "seat-token", Message: "created",
	})
	c := New(server.URL)

	resp, err := c.CreateTrial(context.Background(), "case-1", models.UserRoleDefense)
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)

	token, ok := c.SessionToken("s1")
	require.True(t, ok)
	assert.Equal(t, "seat-token", token)

	var sent models.CreateTrialRequest
	require.NoError(t, json.Unmarshal(calls.all()[0].body, &sent))
	assert.Equal(t, models.CreateTrialRequest{CaseID: "case-1", UserRole: models.UserRoleDefense}, sent)
	assert.Empty(t, calls.all()[0].auth)
}

func TestMutatingCallsSendToken(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, models.TrialSession{ID: "s1"})
	c := New(server.URL)
	c.SetSessionToken("s1", "abc")

	_, err := c.AddTranscriptEntry(context.Background(), "s1", "Defense (You)", "Objection, your Honor.",
		map[string]interface{}{"user_input": true})
	require.NoError(t, err)
	_, err = c.GetSession(context.Background(), "s1")
	require.NoError(t, err)

	require.Len(t, calls.all(), 2)
	assert.Equal(t, "POST", calls.all()[0].method)
	assert.Equal(t, "/api/v1/trial/s1/transcript", calls.all()[0].path)
	assert.Equal(t, "Bearer abc", calls.all()[0].auth)
	assert.JSONEq(t, `{"speaker":"Defense (You)","content":"Objection, your Honor.","metadata":{"user_input":true}}`,
		string(calls.all()[0].body))

	assert.Equal(t, "GET", calls.all()[1].method)
	assert.Empty(t, calls.all()[1].auth)
}

func TestTrialEndpoints(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		path string
	}{
		{"agent response", func(c *Client) error {
			_, err := c.AgentResponse(context.Background(), "s1", models.AgentPromptRequest{Prompt: "hi", AgentRole: models.CaseRoleJudge})
			return err
		}, "/api/v1/trial/s1/agent-response"},
		{"auto response", func(c *Client) error {
			_, err := c.AutomaticAgentResponse(context.Background(), "s1")
			return err
		}, "/api/v1/trial/s1/auto-response"},
		{"advance phase", func(c *Client) error {
			_, err := c.AdvancePhase(context.Background(), "s1", models.PhaseClosingArguments)
			return err
		}, "/api/v1/trial/s1/advance-phase"},
		{"complete", func(c *Client) error {
			_, err := c.CompleteTrial(context.Background(), "s1", models.Verdict{Verdict: "not_guilty"})
			return err
		}, "/api/v1/trial/s1/complete"},
		{"submit evidence", func(c *Client) error {
			_, err := c.SubmitEvidence(context.Background(), "s1", models.SubmitEvidenceRequest{EvidenceID: "ev-1"})
			return err
		}, "/api/v1/trial/s1/evidence/submit"},
		{"rule on evidence", func(c *Client) error {
			_, err := c.RuleOnEvidence(context.Background(), "s1", models.RuleOnEvidenceRequest{EvidenceID: "ev-1", Ruling: models.EvidenceAdmitted})
			return err
		}, "/api/v1/trial/s1/evidence/rule"},
		{"raise objection", func(c *Client) error {
			_, err := c.RaiseObjection(context.Background(), "s1", models.RaiseObjectionRequest{ObjectionType: models.ObjectionHearsay})
			return err
		}, "/api/v1/trial/s1/objection/raise"},
		{"rule on objection", func(c *Client) error {
			_, err := c.RuleOnObjection(context.Background(), "s1", models.RuleOnObjectionRequest{ObjectionID: "o1"})
			return err
		}, "/api/v1/trial/s1/objection/rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := newServer(t, http.StatusOK, map[string]interface{}{"id": "s1"})
			c := New(server.URL)
			c.SetSessionToken("s1", "tok")

			require.NoError(t, tt.call(c))
			require.Len(t, calls.all(), 1)
			assert.Equal(t, "POST", calls.all()[0].method)
			assert.Equal(t, tt.path, calls.all()[0].path)
			assert.Equal(t, "Bearer tok", calls.all()[0].auth)
		})
	}
}

func TestGetTranscript(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, []models.TranscriptEntry{{Speaker: "Judge", Content: "Proceed"}})
	c := New(server.URL)

	entries, err := c.GetTranscript(context.Background(), "s1")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/v1/trial/s1/transcript", calls.all()[0].path)
}

func TestCurrentTurnObjectShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"s1","case_id":"c1","user_role":"defense","current_turn":{"value":"prosecutor"}}`))
	}))
	defer server.Close()
	c := New(server.URL)

	s, err := c.GetSession(context.Background(), "s1")

	require.NoError(t, err)
	require.NotNil(t, s.CurrentTurn)
	assert.Equal(t, models.CaseRoleProsecutor, *s.CurrentTurn)
}

func TestContextCancelled(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, []models.Case{})
	c := New(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListCases(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls.all())
}

func TestCategories(t *testing.T) {
	cats := Categories()
	assert.Equal(t, []string{"white-collar", "violent", "drug", "property", "cybercrime"}, cats)

	cats[0] = "changed"
	assert.Equal(t, "white-collar", Categories()[0])

	assert.Equal(t, "White Collar Crime", CategoryDisplayName("white-collar"))
	assert.Equal(t, "unknown", CategoryDisplayName("unknown"))
}
