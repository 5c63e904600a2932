package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/client"
	"github.com/linesmerrill/jurysane-api/models"
	"github.com/linesmerrill/jurysane-api/notify"
)

// DefaultAutoResponseDelay is how long the controller waits before letting
// an AI role take its turn
const DefaultAutoResponseDelay = time.Second

// DefaultMaxAutoTurns is how many automatic turns may follow each other
// before the controller waits for the user. The count restarts when the
// user speaks or the phase changes.
const DefaultMaxAutoTurns = 4

// Submission errors. None of them reach the network.
var (
	ErrEmptyMessage      = errors.New("message is empty")
	ErrWitnessRequired   = errors.New("select a witness first")
	ErrSubmissionPending = errors.New("previous message is still being processed")
	ErrNoSession         = errors.New("trial session is not loaded")
	ErrUnknownAddressee  = errors.New("that participant cannot be addressed")
)

// TurnError is returned when the user speaks out of turn
type TurnError struct {
	Current string
}

func (e *TurnError) Error() string {
	return "It's not your turn. Current turn: " + e.Current
}

// API is the part of the trial API the controller drives
type API interface {
	client.SessionSource
	AddTranscriptEntry(ctx context.Context, sessionID, speaker, content string, metadata map[string]interface{}) (*models.TrialSession, error)
	AgentResponse(ctx context.Context, sessionID string, req models.AgentPromptRequest) (*models.AgentResponse, error)
	AutomaticAgentResponse(ctx context.Context, sessionID string) (*models.AgentResponse, error)
	AdvancePhase(ctx context.Context, sessionID string, next models.TrialPhase) (*models.TrialSession, error)
}

// SubmissionState is where a user message is in its round trip
type SubmissionState int

// SubmissionState values
const (
	StateIdle SubmissionState = iota
	StateAppendingTranscript
	StateAgentRequested
)

func (s SubmissionState) String() string {
	switch s {
	case StateAppendingTranscript:
		return "appending_transcript"
	case StateAgentRequested:
		return "agent_requested"
	}
	return "idle"
}

// AgentOption is a participant the user can address
type AgentOption struct {
	Role        models.CaseRole
	Label       string
	Description string
}

var agentOptions = []AgentOption{
	{models.CaseRoleJudge, "Judge", "Ask for rulings or guidance"},
	{models.CaseRoleProsecutor, "Prosecutor", "Opposing counsel"},
	{models.CaseRoleDefense, "Defense", "Opposing counsel"},
	{models.CaseRoleJury, "Jury", "Get jury feedback"},
	{models.CaseRoleWitness, "Witness", "Question witnesses"},
}

// WitnessOption is a witness the user can question
type WitnessOption struct {
	Name        string
	Description string
}

type turnKey struct {
	turn      models.CaseRole
	sessionID string
}

// Controller runs the chat of one trial session. The session snapshot is
// replaced wholesale on every refresh and never edited in place.
type Controller struct {
	api       API
	loader    client.Loader
	bus       *notify.Bus
	sessionID string
	autoDelay time.Duration
	autoMax   int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	changes chan struct{}

	mu           sync.Mutex
	session      *models.TrialSession
	legalCase    *models.Case
	input        string
	addressee    models.CaseRole
	witness      string
	state        SubmissionState
	autoInFlight bool
	autoArmed    bool
	autoKey      turnKey
	autoTimer    *time.Timer
	autoDeferred bool
	autoRuns     int
	autoPaused   bool
	closed       bool
}

// Option configures a Controller
type Option func(*Controller)

// WithNotifier sends notices to bus instead of the process-wide one
func WithNotifier(bus *notify.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithAutoResponseDelay changes the wait before an AI role takes its turn
func WithAutoResponseDelay(d time.Duration) Option {
	return func(c *Controller) { c.autoDelay = d }
}

// WithMaxAutoTurns caps the automatic turns taken in a row. Zero or less
// removes the cap.
func WithMaxAutoTurns(n int) Option {
	return func(c *Controller) { c.autoMax = n }
}

// NewController returns a controller for a session. Call Refresh to load it.
func NewController(api API, sessionID string, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:       api,
		loader:    client.Loader{Source: api},
		bus:       notify.Default(),
		sessionID: sessionID,
		autoDelay: DefaultAutoResponseDelay,
		autoMax:   DefaultMaxAutoTurns,
		ctx:       ctx,
		cancel:    cancel,
		changes:   make(chan struct{}, 1),
		addressee: models.CaseRoleJudge,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Changes signals that something visible changed. Signals are coalesced.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

func (c *Controller) changed() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Session returns the current snapshot. Callers must not modify it.
func (c *Controller) Session() *models.TrialSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Case returns the case of the session
func (c *Controller) Case() *models.Case {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.legalCase
}

// State returns the submission state
func (c *Controller) State() SubmissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AwaitingAgent reports whether an AI reply is on its way
func (c *Controller) AwaitingAgent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAgentRequested || c.autoInFlight
}

// Input returns the pending message text
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetInput replaces the pending message text
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Addressee returns who the next message is for
func (c *Controller) Addressee() models.CaseRole {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addressee
}

// SetAddressee picks who the next message is for
func (c *Controller) SetAddressee(role models.CaseRole) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.availableAgentsLocked() {
		if a.Role == role {
			c.addressee = role
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownAddressee, role)
}

// Witness returns the selected witness name
func (c *Controller) Witness() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.witness
}

// SelectWitness picks the witness to question. An empty name clears it.
func (c *Controller) SelectWitness(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		c.witness = ""
		return nil
	}
	for _, w := range c.availableWitnessesLocked() {
		if w.Name == name {
			c.witness = name
			return nil
		}
	}
	return fmt.Errorf("%w: witness %q", ErrUnknownAddressee, name)
}

// AvailableAgents lists the participants the user can address. The
// user's own role is left out.
func (c *Controller) AvailableAgents() []AgentOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableAgentsLocked()
}

func (c *Controller) availableAgentsLocked() []AgentOption {
	own := models.CaseRoleDefense
	if c.session != nil {
		own = c.session.UserCaseRole()
	}
	out := make([]AgentOption, 0, len(agentOptions)-1)
	for _, a := range agentOptions {
		if a.Role != own {
			out = append(out, a)
		}
	}
	return out
}

// AvailableWitnesses lists the AI witnesses of the session
func (c *Controller) AvailableWitnesses() []WitnessOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableWitnessesLocked()
}

func (c *Controller) availableWitnessesLocked() []WitnessOption {
	if c.session == nil {
		return nil
	}
	var out []WitnessOption
	for _, p := range c.session.Witnesses() {
		desc := p.Description
		if desc == "" {
			desc = "Witness"
		}
		out = append(out, WitnessOption{Name: p.Name, Description: desc})
	}
	return out
}

// InputEnabled reports whether the input box accepts text
func (c *Controller) InputEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputEnabledLocked()
}

func (c *Controller) inputEnabledLocked() bool {
	if c.state != StateIdle {
		return false
	}
	return c.addressee != models.CaseRoleWitness || c.witness != ""
}

// CanSubmit reports whether the send action is enabled
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputEnabledLocked() && strings.TrimSpace(c.input) != ""
}

// Refresh re-fetches the session and its case and replaces both snapshots.
// A snapshot older than the one already shown is dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	session, legalCase, err := c.loader.LoadSessionAndCase(ctx, c.sessionID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if old := c.session; old != nil && old.ID == session.ID && session.Version < old.Version {
		c.mu.Unlock()
		zap.S().Debugw("dropping stale session snapshot", "session", session.ID, "version", session.Version, "shown", old.Version)
		return nil
	}
	if c.session != nil && c.session.CurrentPhase != session.CurrentPhase {
		c.resetAutoRunsLocked()
	}
	c.session, c.legalCase = session, legalCase
	c.scheduleAutoLocked()
	c.mu.Unlock()
	c.changed()
	return nil
}

// Submit sends the pending input. The transcript entry is stored first;
// an agent reply is requested afterwards unless the judge is addressed.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	text := strings.TrimSpace(c.input)
	switch {
	case text == "":
		c.mu.Unlock()
		return ErrEmptyMessage
	case c.addressee == models.CaseRoleWitness && c.witness == "":
		c.mu.Unlock()
		return ErrWitnessRequired
	case c.state != StateIdle:
		c.mu.Unlock()
		return ErrSubmissionPending
	case c.session == nil:
		c.mu.Unlock()
		return ErrNoSession
	}
	session := c.session
	if !IsUserTurn(session) {
		c.mu.Unlock()
		err := &TurnError{Current: TurnDisplayName(session.CurrentTurn)}
		c.bus.Error(err.Error())
		return err
	}
	addressee, witness := c.addressee, c.witness
	c.state = StateAppendingTranscript
	c.mu.Unlock()
	c.changed()
	defer c.finishSubmission()

	speaker := session.UserCaseRole().DisplayName() + " (You)"
	meta := map[string]interface{}{models.MetadataUserInput: true}
	if _, err := c.api.AddTranscriptEntry(ctx, session.ID, speaker, text, meta); err != nil {
		c.bus.Error(errorDetail(err, "Failed to send message"))
		return fmt.Errorf("failed to add transcript entry: %w", err)
	}
	c.mu.Lock()
	c.resetAutoRunsLocked()
	c.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		c.bus.Error(errorDetail(err, "Failed to refresh trial session"))
	}
	c.mu.Lock()
	c.input = ""
	c.mu.Unlock()

	if addressee == models.CaseRoleJudge {
		return nil
	}

	reqContext := map[string]interface{}{
		"trial_phase": session.CurrentPhase,
		"user_role":   session.UserRole,
	}
	if addressee == models.CaseRoleWitness {
		reqContext["witness_name"] = witness
	}
	c.mu.Lock()
	c.state = StateAgentRequested
	c.mu.Unlock()
	c.changed()

	_, err := c.api.AgentResponse(ctx, session.ID, models.AgentPromptRequest{
		Prompt:    text,
		AgentRole: addressee,
		Context:   reqContext,
	})
	if err != nil {
		c.bus.Error(errorDetail(err, "Failed to get agent response"))
		return fmt.Errorf("failed to get agent response: %w", err)
	}
	if err := c.Refresh(ctx); err != nil {
		c.bus.Error(errorDetail(err, "Failed to refresh trial session"))
	}
	c.bus.Success("Response received")
	return nil
}

func (c *Controller) finishSubmission() {
	c.mu.Lock()
	c.state = StateIdle
	if c.autoDeferred {
		c.autoDeferred = false
		c.autoArmed = false
		c.scheduleAutoLocked()
	}
	c.mu.Unlock()
	c.changed()
}

// AdvancePhase moves the trial to the phase after the current one
func (c *Controller) AdvancePhase(ctx context.Context) error {
	session := c.Session()
	if session == nil {
		return ErrNoSession
	}
	next, ok := session.CurrentPhase.Next()
	if !ok {
		err := fmt.Errorf("trial is already %s", session.CurrentPhase.DisplayName())
		c.bus.Warning(capitalize(err.Error()))
		return err
	}
	if _, err := c.api.AdvancePhase(ctx, session.ID, next); err != nil {
		c.bus.Error(errorDetail(err, "Failed to advance phase"))
		return fmt.Errorf("failed to advance phase: %w", err)
	}
	if err := c.Refresh(ctx); err != nil {
		c.bus.Error(errorDetail(err, "Failed to refresh trial session"))
		return fmt.Errorf("failed to refresh after advancing phase: %w", err)
	}
	c.bus.Success("Advanced to " + next.DisplayName())
	return nil
}

// Follow refreshes the controller whenever the server pushes an event
// for its session. It returns at once; the work ends with Close or when
// events is closed.
func (c *Controller) Follow(events <-chan models.SessionEvent) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.SessionID != c.sessionID {
					continue
				}
				if e.Type == models.EventSessionDeleted {
					c.bus.Warning("This trial session has been removed")
					continue
				}
				if err := c.Refresh(c.ctx); err != nil && c.ctx.Err() == nil {
					zap.S().Warnw("failed to refresh after session event", "session", c.sessionID, "error", err)
				}
			}
		}
	}()
}

// scheduleAutoLocked arms the automatic turn timer once per
// (turn, session) pair
func (c *Controller) scheduleAutoLocked() {
	if c.closed {
		return
	}
	if !ShouldAutoRespond(c.session) {
		c.stopAutoLocked()
		c.autoArmed = false
		return
	}
	key := turnKey{turn: *c.session.CurrentTurn, sessionID: c.session.ID}
	if c.autoArmed && c.autoKey == key {
		return
	}
	if c.autoMax > 0 && c.autoRuns >= c.autoMax {
		c.stopAutoLocked()
		c.autoArmed = false
		if !c.autoPaused {
			c.autoPaused = true
			c.bus.Info("Automatic turns paused. Speak or advance the phase to continue.")
		}
		return
	}
	c.stopAutoLocked()
	c.autoKey, c.autoArmed = key, true
	c.wg.Add(1)
	c.autoTimer = time.AfterFunc(c.autoDelay, func() {
		defer c.wg.Done()
		c.fireAuto(key)
	})
}

func (c *Controller) resetAutoRunsLocked() {
	c.autoRuns = 0
	c.autoPaused = false
}

func (c *Controller) stopAutoLocked() {
	if c.autoTimer != nil && c.autoTimer.Stop() {
		c.wg.Done()
	}
	c.autoTimer = nil
}

func (c *Controller) fireAuto(key turnKey) {
	c.mu.Lock()
	if c.closed || !c.autoArmed || c.autoKey != key || !ShouldAutoRespond(c.session) || c.autoInFlight {
		c.mu.Unlock()
		return
	}
	if c.state != StateIdle {
		// retried when the submission finishes
		c.autoDeferred = true
		c.mu.Unlock()
		return
	}
	c.autoInFlight = true
	c.mu.Unlock()
	c.changed()

	_, err := c.api.AutomaticAgentResponse(c.ctx, key.sessionID)

	c.mu.Lock()
	c.autoInFlight = false
	if err == nil {
		c.autoRuns++
	}
	c.mu.Unlock()
	c.changed()

	if err != nil {
		switch {
		case c.ctx.Err() != nil:
		case client.IsBadRequest(err):
			zap.S().Debugw("automatic response declined", "session", key.sessionID, "turn", key.turn, "error", err)
		default:
			c.bus.Error(errorDetail(err, "Failed to get automatic response"))
		}
		return
	}
	if err := c.Refresh(c.ctx); err != nil {
		if c.ctx.Err() == nil {
			c.bus.Error(errorDetail(err, "Failed to refresh trial session"))
		}
		return
	}
	c.bus.Success("Automatic response received")
}

// Close stops the automatic turn timer and waits for background work
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopAutoLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func errorDetail(err error, fallback string) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
