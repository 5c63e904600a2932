// Package client talks to the JurySane trial API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linesmerrill/jurysane-api/models"
)

// APIPrefix is prepended to every endpoint path
const APIPrefix = "/api/v1"

// DefaultTimeout bounds a single request. Agent replies can take a while.
const DefaultTimeout = 90 * time.Second

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// IsBadRequest reports whether err is an HTTP 400 from the API
func IsBadRequest(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// IsNotFound reports whether err is an HTTP 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is safe for concurrent use
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer

	mu     sync.RWMutex
	tokens map[string]string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer replaces the websocket dialer used by Subscribe
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New returns a client for the API served at baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		dialer:  websocket.DefaultDialer,
		tokens:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Info describes the server the client talks to
func (c *Client) Info(ctx context.Context) (*models.InfoResponse, error) {
	var info models.InfoResponse
	if err := c.do(ctx, http.MethodGet, "/info", "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetSessionToken remembers the seat token for a session
func (c *Client) SetSessionToken(sessionID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[sessionID] = token
}

// SessionToken returns the seat token held for a session, if any
func (c *Client) SessionToken(sessionID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tokens[sessionID]
	return t, ok
}

// ListCases returns every case
func (c *Client) ListCases(ctx context.Context) ([]models.Case, error) {
	var cases []models.Case
	err := c.do(ctx, http.MethodGet, "/cases/", "", nil, &cases)
	return cases, err
}

// GetCase returns one case by id
func (c *Client) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	var cs models.Case
	if err := c.do(ctx, http.MethodGet, "/cases/"+url.PathEscape(caseID), "", nil, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// SearchCases returns the cases matching query
func (c *Client) SearchCases(ctx context.Context, query string) ([]models.Case, error) {
	var cases []models.Case
	err := c.do(ctx, http.MethodGet, "/cases/search/"+url.PathEscape(query), "", nil, &cases)
	return cases, err
}

// CasesByCategory returns the cases in a category
func (c *Client) CasesByCategory(ctx context.Context, category string) ([]models.Case, error) {
	var cases []models.Case
	err := c.do(ctx, http.MethodGet, "/cases/category/"+url.PathEscape(category), "", nil, &cases)
	return cases, err
}

// Categories lists the case categories the API understands
func Categories() []string {
	return append([]string(nil), models.Categories...)
}

// CategoryDisplayName returns the human label for a category
func CategoryDisplayName(category string) string {
	return models.CategoryDisplayName(category)
}

// CreateTrial starts a session and remembers its seat token
func (c *Client) CreateTrial(ctx context.Context, caseID string, role models.UserRole) (*models.CreateTrialResponse, error) {
	var resp models.CreateTrialResponse
	req := models.CreateTrialRequest{CaseID: caseID, UserRole: role}
	if err := c.do(ctx, http.MethodPost, "/trial/create", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.SetSessionToken(resp.SessionID, resp.Token)
	}
	return &resp, nil
}

// GetSession returns the current state of a session
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodGet, sessionID, "", nil)
}

// GetTranscript returns the transcript of a session
func (c *Client) GetTranscript(ctx context.Context, sessionID string) ([]models.TranscriptEntry, error) {
	var entries []models.TranscriptEntry
	err := c.do(ctx, http.MethodGet, trialPath(sessionID, "/transcript"), "", nil, &entries)
	return entries, err
}

// AddTranscriptEntry appends an entry to the transcript
func (c *Client) AddTranscriptEntry(ctx context.Context, sessionID, speaker, content string, metadata map[string]interface{}) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodPost, sessionID, "/transcript", models.AddTranscriptRequest{
		Speaker:  speaker,
		Content:  content,
		Metadata: metadata,
	})
}

// AgentResponse asks an AI role to respond to prompt
func (c *Client) AgentResponse(ctx context.Context, sessionID string, req models.AgentPromptRequest) (*models.AgentResponse, error) {
	var resp models.AgentResponse
	if err := c.do(ctx, http.MethodPost, trialPath(sessionID, "/agent-response"), sessionID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AutomaticAgentResponse lets whichever AI role holds the turn speak
func (c *Client) AutomaticAgentResponse(ctx context.Context, sessionID string) (*models.AgentResponse, error) {
	var resp models.AgentResponse
	if err := c.do(ctx, http.MethodPost, trialPath(sessionID, "/auto-response"), sessionID, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdvancePhase moves the trial to next
func (c *Client) AdvancePhase(ctx context.Context, sessionID string, next models.TrialPhase) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodPost, sessionID, "/advance-phase", models.AdvancePhaseRequest{NextPhase: next})
}

// CompleteTrial closes the trial with a verdict
func (c *Client) CompleteTrial(ctx context.Context, sessionID string, verdict models.Verdict) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodPost, sessionID, "/complete", models.CompleteTrialRequest{Verdict: verdict})
}

// SubmitEvidence offers an exhibit for admission
func (c *Client) SubmitEvidence(ctx context.Context, sessionID string, req models.SubmitEvidenceRequest) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodPost, sessionID, "/evidence/submit", req)
}

// RuleOnEvidence admits or rejects an exhibit
func (c *Client) RuleOnEvidence(ctx context.Context, sessionID string, req models.RuleOnEvidenceRequest) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodPost, sessionID, "/evidence/rule", req)
}

// RaiseObjection raises an objection
func (c *Client) RaiseObjection(ctx context.Context, sessionID string, req models.RaiseObjectionRequest) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodPost, sessionID, "/objection/raise", req)
}

// RuleOnObjection rules on an objection, or lets the judge decide when
// the ruling is empty
func (c *Client) RuleOnObjection(ctx context.Context, sessionID string, req models.RuleOnObjectionRequest) (*models.TrialSession, error) {
	return c.session(ctx, http.MethodPost, sessionID, "/objection/rule", req)
}

func (c *Client) session(ctx context.Context, method, sessionID, suffix string, body interface{}) (*models.TrialSession, error) {
	auth := ""
	if method != http.MethodGet {
		auth = sessionID
	}
	var s models.TrialSession
	if err := c.do(ctx, method, trialPath(sessionID, suffix), auth, body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func trialPath(sessionID, suffix string) string {
	return "/trial/" + url.PathEscape(sessionID) + suffix
}

// do sends one request. authSession names the session whose seat token,
// when known, goes in the Authorization header.
func (c *Client) do(ctx context.Context, method, path, authSession string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+APIPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authSession != "" {
		if token, ok := c.SessionToken(authSession); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body models.ErrorMessageResponse
	if err := json.Unmarshal(b, &body); err != nil {
		return apiErr
	}
	switch msg, detail := body.Response.Message, body.Response.Error; {
	case msg != "" && detail != "" && msg != detail:
		apiErr.Detail = msg + ": " + detail
	case msg != "":
		apiErr.Detail = msg
	case detail != "":
		apiErr.Detail = detail
	}
	return apiErr
}
