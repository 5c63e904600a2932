package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/jurysane-api/api"
	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/models"
	"github.com/linesmerrill/jurysane-api/trial"
)

// Trial exported for testing purposes
type Trial struct {
	Service *trial.Service
	Auth    api.SessionAuth
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, trial.ErrSessionNotFound), errors.Is(err, trial.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, trial.ErrInvalidRequest), errors.Is(err, trial.ErrNotAgentTurn):
		return http.StatusBadRequest
	case errors.Is(err, trial.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeSession answers with the updated session or maps err
func writeSession(w http.ResponseWriter, session *models.TrialSession, err error, message string) {
	if err != nil {
		config.ErrorStatus(message, statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// CreateTrialHandler opens a trial session and returns its seat token
func (t Trial) CreateTrialHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTrialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.CreateSession(ctx, req.CaseID, req.UserRole)
	if err != nil {
		config.ErrorStatus("failed to create trial session", statusFor(err), w, err)
		return
	}

	token, err := t.Auth.IssueToken(session.ID)
	if err != nil {
		config.ErrorStatus("failed to issue session token", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.CreateTrialResponse{
		SessionID: session.ID,
		Message:   fmt.Sprintf("Trial session created successfully. You are playing the %s.", req.UserRole),
		Token:     token,
	})
}

// TrialSessionHandler returns a trial session by ID
func (t Trial) TrialSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.GetSession(ctx, mux.Vars(r)["session_id"])
	writeSession(w, session, err, "failed to get trial session")
}

// TranscriptHandler returns the transcript of a trial session
func (t Trial) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.GetSession(ctx, mux.Vars(r)["session_id"])
	if err != nil {
		config.ErrorStatus("failed to get trial transcript", statusFor(err), w, err)
		return
	}
	transcript := session.Transcript
	if transcript == nil {
		transcript = []models.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, transcript)
}

// AddTranscriptHandler appends an entry to the transcript
func (t Trial) AddTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.AddTranscriptEntry(ctx, mux.Vars(r)["session_id"], req)
	writeSession(w, session, err, "failed to add transcript entry")
}

// AgentResponseHandler asks one AI role to answer a prompt. The model call
// is bounded by the request timeout rather than the query timeout.
func (t Trial) AgentResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AgentPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	resp, err := t.Service.AgentResponse(r.Context(), mux.Vars(r)["session_id"], req)
	if err != nil {
		config.ErrorStatus("failed to get agent response", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AutomaticResponseHandler lets the AI role holding the turn speak
func (t Trial) AutomaticResponseHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := t.Service.AutomaticAgentResponse(r.Context(), mux.Vars(r)["session_id"])
	if err != nil {
		config.ErrorStatus("failed to get automatic agent response", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdvancePhaseHandler moves the trial to the requested phase
func (t Trial) AdvancePhaseHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AdvancePhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.AdvancePhase(ctx, mux.Vars(r)["session_id"], req.NextPhase)
	writeSession(w, session, err, "failed to advance trial phase")
}

// CompleteTrialHandler closes the trial with a verdict
func (t Trial) CompleteTrialHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteTrialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.CompleteTrial(ctx, mux.Vars(r)["session_id"], req.Verdict)
	writeSession(w, session, err, "failed to complete trial")
}

// SubmitEvidenceHandler offers an exhibit for admission
func (t Trial) SubmitEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.SubmitEvidence(ctx, mux.Vars(r)["session_id"], req)
	writeSession(w, session, err, "failed to submit evidence")
}

// RuleOnEvidenceHandler admits or rejects an exhibit
func (t Trial) RuleOnEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RuleOnEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.RuleOnEvidence(ctx, mux.Vars(r)["session_id"], req)
	writeSession(w, session, err, "failed to rule on evidence")
}

// RaiseObjectionHandler records an objection
func (t Trial) RaiseObjectionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RaiseObjectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := t.Service.RaiseObjection(ctx, mux.Vars(r)["session_id"], req)
	writeSession(w, session, err, "failed to raise objection")
}

// RuleOnObjectionHandler rules on an objection. Without a ruling the judge
// agent decides, so this runs under the request timeout.
func (t Trial) RuleOnObjectionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RuleOnObjectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	session, err := t.Service.RuleOnObjection(r.Context(), mux.Vars(r)["session_id"], req)
	writeSession(w, session, err, "failed to rule on objection")
}
