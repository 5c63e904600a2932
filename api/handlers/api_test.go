package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/jurysane-api/agents"
	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/databases/mocks"
	"github.com/linesmerrill/jurysane-api/models"
)

type testApp struct {
	*App
	sessions *mocks.TrialSessionDatabase
	cases    *mocks.CaseDatabase
}

func newTestApp(t *testing.T, rateLimit int) *testApp {
	t.Helper()
	ta := &testApp{
		App: &App{Config: config.Config{
			Environment:    "test",
			SecretKey:      "test-secret",
			CORSOrigins:    []string{"*"},
			AgentRateLimit: rateLimit,
			LLM:            config.LLMConfig{Model: "scripted", MaxTokens: 200},
		}},
		sessions: &mocks.TrialSessionDatabase{},
		cases:    &mocks.CaseDatabase{},
	}
	ta.Wire(ta.sessions, ta.cases, agents.NewScripted())
	t.Cleanup(func() { ta.Close(context.Background()) })
	return ta
}

func testCase() *models.Case {
	return &models.Case{
		ID:        "case-1",
		Title:     "State v. Doe",
		Charges:   []string{"Burglary"},
		Evidence:  []models.Evidence{{ID: "ev-1", Title: "Footage"}},
		Witnesses: []models.Witness{{Name: "Jane Roe", Background: "Neighbor", Knowledge: "Saw it"}},
	}
}

func testSession() models.TrialSession {
	return models.TrialSession{
		ID:           "s1",
		CaseID:       "case-1",
		UserRole:     models.UserRoleDefense,
		CurrentPhase: models.PhaseWitnessExamination,
		CurrentTurn:  models.RoleRef(models.CaseRoleDefense),
		Transcript: []models.TranscriptEntry{
			{Speaker: "Judge", Content: "You may proceed.", Phase: models.PhaseWitnessExamination},
		},
		Version: 1,
	}
}

// withSession serves a fresh copy of s on every load
func (ta *testApp) withSession(s models.TrialSession) {
	ta.sessions.On("FindOne", mock.Anything, bson.M{"_id": s.ID}).Return(
		func(context.Context, interface{}, ...*options.FindOneOptions) *models.TrialSession {
			c := s
			c.Transcript = append([]models.TranscriptEntry(nil), s.Transcript...)
			return &c
		}, nil)
	ta.sessions.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	ta.cases.On("FindOne", mock.Anything, bson.M{"_id": "case-1"}).Return(testCase(), nil)
	ta.cases.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
}

func (ta *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.1.1.1:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ta.Handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) token(t *testing.T, sessionID string) string {
	t.Helper()
	token, err := ta.auth.IssueToken(sessionID)
	require.NoError(t, err)
	return token
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) models.MessageError {
	t.Helper()
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Response
}

func TestUnknownRoute(t *testing.T) {
	ta := newTestApp(t, 10)
	rr := ta.do("GET", "/asdf", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	ta := newTestApp(t, 10)
	rr := ta.do("GET", "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "alive")
}

func TestWelcomeRoute(t *testing.T) {
	ta := newTestApp(t, 10)
	rr := ta.do("GET", "/", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Welcome to JurySane API")
}

func TestInfoRoute(t *testing.T) {
	ta := newTestApp(t, 10)
	rr := ta.do("GET", "/api/v1/info", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var info models.InfoResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "scripted", info.LLMProvider)
	assert.Equal(t, "test", info.Environment)
	assert.Equal(t, models.Categories, info.Categories)
}

func TestMetricsRoute(t *testing.T) {
	ta := newTestApp(t, 10)
	rr := ta.do("GET", "/api/v1/metrics", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"totalRequests"`)
}

func TestRequestIDHeader(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.cases.On("Find", mock.Anything, bson.M{}, mock.Anything).Return([]models.Case{}, nil)

	rr := ta.do("GET", "/api/v1/cases/", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	ta := newTestApp(t, 10)
	req := httptest.NewRequest("OPTIONS", "/api/v1/trial/create", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()

	ta.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.withSession(testSession())

	_, err := ta.service.GetSession(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, statusFor(err))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
}
