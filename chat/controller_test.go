package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/linesmerrill/jurysane-api/client"
	"github.com/linesmerrill/jurysane-api/models"
	"github.com/linesmerrill/jurysane-api/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type appendCall struct {
	sessionID string
	speaker   string
	content   string
	metadata  map[string]interface{}
}

// fakeAPI serves one session and records calls in order
type fakeAPI struct {
	mu        sync.Mutex
	session   models.TrialSession
	afterAuto []models.TrialSession
	calls     []string
	appended  []appendCall
	agentReqs []models.AgentPromptRequest
	advanced  []models.TrialPhase

	sessionErr error
	appendErr  error
	agentErr   error
	autoErr    error
	agentBlock chan struct{}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) setSession(s models.TrialSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = s
}

func (f *fakeAPI) GetSession(ctx context.Context, sessionID string) (*models.TrialSession, error) {
	f.record("session")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	s := f.session
	return &s, nil
}

func (f *fakeAPI) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	f.record("case")
	return &models.Case{ID: caseID, Title: "State v. Doe"}, nil
}

func (f *fakeAPI) AddTranscriptEntry(ctx context.Context, sessionID, speaker, content string, metadata map[string]interface{}) (*models.TrialSession, error) {
	f.record("append")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, appendCall{sessionID, speaker, content, metadata})
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.session.Transcript = append(f.session.Transcript, models.TranscriptEntry{Speaker: speaker, Content: content, Metadata: metadata})
	s := f.session
	return &s, nil
}

func (f *fakeAPI) AgentResponse(ctx context.Context, sessionID string, req models.AgentPromptRequest) (*models.AgentResponse, error) {
	f.record("agent")
	f.mu.Lock()
	f.agentReqs = append(f.agentReqs, req)
	block, err := f.agentBlock, f.agentErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &models.AgentResponse{Content: "Noted.", Speaker: req.AgentRole.DisplayName()}, nil
}

func (f *fakeAPI) AutomaticAgentResponse(ctx context.Context, sessionID string) (*models.AgentResponse, error) {
	f.record("auto")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.autoErr != nil {
		return nil, f.autoErr
	}
	if len(f.afterAuto) > 0 {
		f.session, f.afterAuto = f.afterAuto[0], f.afterAuto[1:]
	}
	return &models.AgentResponse{Content: "The court will hear the witness."}, nil
}

func (f *fakeAPI) AdvancePhase(ctx context.Context, sessionID string, next models.TrialPhase) (*models.TrialSession, error) {
	f.record("advance")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanced = append(f.advanced, next)
	f.session.CurrentPhase = next
	s := f.session
	return &s, nil
}

func defenseSession(turn models.CaseRole) models.TrialSession {
	return models.TrialSession{
		ID:           "s1",
		CaseID:       "case-1",
		UserRole:     models.UserRoleDefense,
		CurrentPhase: models.PhaseWitnessExamination,
		CurrentTurn:  models.RoleRef(turn),
		Participants: []models.Participant{
			{Name: "You", Role: models.CaseRoleDefense},
			{Name: "Judge", Role: models.CaseRoleJudge, IsAI: true},
			{Name: "Jane Roe", Role: models.CaseRoleWitness, IsAI: true, Description: "Neighbor"},
			{Name: "Sam Poe", Role: models.CaseRoleWitness, IsAI: true},
		},
	}
}

func newTestController(t *testing.T, api *fakeAPI, delay time.Duration) (*Controller, *notify.Bus) {
	t.Helper()
	bus := notify.New()
	c := NewController(api, "s1", WithNotifier(bus), WithAutoResponseDelay(delay))
	t.Cleanup(func() {
		c.Close()
		bus.Close()
	})
	require.NoError(t, c.Refresh(context.Background()))
	return c, bus
}

func noticesOf(bus *notify.Bus, kind notify.Kind) []string {
	var out []string
	for _, n := range bus.Active() {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}

func TestSubmitEmptyMessage(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, _ := newTestController(t, api, time.Hour)
	before := len(api.Calls())

	for _, input := range []string{"", "   ", "\n\t"} {
		c.SetInput(input)
		assert.False(t, c.CanSubmit())
		assert.ErrorIs(t, c.Submit(context.Background()), ErrEmptyMessage)
	}
	assert.Len(t, api.Calls(), before)
}

func TestSubmitOutOfTurn(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleProsecutor)}
	c, bus := newTestController(t, api, time.Hour)
	c.SetInput("May I approach?")

	err := c.Submit(context.Background())

	var turnErr *TurnError
	require.ErrorAs(t, err, &turnErr)
	assert.Contains(t, err.Error(), "Prosecutor")
	assert.Equal(t, 0, api.count("append"))
	assert.Equal(t, []string{"It's not your turn. Current turn: Prosecutor"}, noticesOf(bus, notify.KindError))
	assert.Equal(t, "May I approach?", c.Input())
}

func TestSubmitToJudge(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	api.session.Transcript = nil
	c, _ := newTestController(t, api, time.Hour)
	c.SetInput("Objection, your Honor.")

	require.NoError(t, c.Submit(context.Background()))

	require.Len(t, api.appended, 1)
	assert.Equal(t, appendCall{
		sessionID: "s1",
		speaker:   "Defense (You)",
		content:   "Objection, your Honor.",
		metadata:  map[string]interface{}{"user_input": true},
	}, api.appended[0])
	assert.Equal(t, []string{"session", "case", "append", "session", "case"}, api.Calls())
	assert.Equal(t, 0, api.count("agent"))
	assert.Empty(t, c.Input())
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, c.Session().Transcript, 1)
}

func TestSubmitToWitness(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, bus := newTestController(t, api, time.Hour)
	require.NoError(t, c.SetAddressee(models.CaseRoleWitness))
	c.SetInput("  Where were you that night?  ")

	assert.False(t, c.InputEnabled())
	assert.False(t, c.CanSubmit())
	assert.ErrorIs(t, c.Submit(context.Background()), ErrWitnessRequired)
	assert.Equal(t, 0, api.count("append"))

	require.NoError(t, c.SelectWitness("Jane Roe"))
	assert.True(t, c.InputEnabled())
	assert.True(t, c.CanSubmit())

	require.NoError(t, c.Submit(context.Background()))

	assert.Equal(t, []string{"session", "case", "append", "session", "case", "agent", "session", "case"}, api.Calls())
	require.Len(t, api.agentReqs, 1)
	want := models.AgentPromptRequest{
		Prompt:    "Where were you that night?",
		AgentRole: models.CaseRoleWitness,
		Context: map[string]interface{}{
			"trial_phase":  models.PhaseWitnessExamination,
			"user_role":    models.UserRoleDefense,
			"witness_name": "Jane Roe",
		},
	}
	if diff := cmp.Diff(want, api.agentReqs[0]); diff != "" {
		t.Errorf("agent request mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Response received"}, noticesOf(bus, notify.KindSuccess))
}

func TestSubmitToOpposingCounsel(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, _ := newTestController(t, api, time.Hour)
	require.NoError(t, c.SetAddressee(models.CaseRoleProsecutor))
	c.SetInput("Counsel, will you stipulate?")

	require.NoError(t, c.Submit(context.Background()))

	require.Len(t, api.agentReqs, 1)
	assert.NotContains(t, api.agentReqs[0].Context, "witness_name")
	assert.Equal(t, models.CaseRoleProsecutor, api.agentReqs[0].AgentRole)
}

func TestSubmitAppendFails(t *testing.T) {
	api := &fakeAPI{
		session:   defenseSession(models.CaseRoleDefense),
		appendErr: &client.APIError{StatusCode: http.StatusConflict, Detail: "trial session changed, try again"},
	}
	c, bus := newTestController(t, api, time.Hour)
	require.NoError(t, c.SetAddressee(models.CaseRoleJury))
	c.SetInput("Members of the jury")

	err := c.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, api.count("agent"))
	assert.Equal(t, 1, api.count("session"), "no refresh after a failed append")
	assert.Equal(t, "Members of the jury", c.Input())
	assert.Equal(t, []string{"trial session changed, try again"}, noticesOf(bus, notify.KindError))
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmitAgentFails(t *testing.T) {
	api := &fakeAPI{
		session:  defenseSession(models.CaseRoleDefense),
		agentErr: errors.New("connection reset"),
	}
	c, bus := newTestController(t, api, time.Hour)
	require.NoError(t, c.SetAddressee(models.CaseRoleJury))
	c.SetInput("Members of the jury")

	err := c.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, api.count("append"))
	assert.Len(t, c.Session().Transcript, 1, "user message stays")
	assert.Empty(t, c.Input())
	assert.Equal(t, []string{"connection reset"}, noticesOf(bus, notify.KindError))
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmitIsSerialized(t *testing.T) {
	block := make(chan struct{})
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense), agentBlock: block}
	c, _ := newTestController(t, api, time.Hour)
	require.NoError(t, c.SetAddressee(models.CaseRoleJury))
	c.SetInput("First")

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateAgentRequested }, time.Second, 5*time.Millisecond)
	assert.True(t, c.AwaitingAgent())
	assert.False(t, c.InputEnabled())

	c.SetInput("Second")
	assert.ErrorIs(t, c.Submit(context.Background()), ErrSubmissionPending)
	assert.Equal(t, 1, api.count("append"))

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, c.State())
}

func TestAvailableAgents(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, _ := newTestController(t, api, time.Hour)

	var labels []string
	for _, a := range c.AvailableAgents() {
		labels = append(labels, a.Label)
	}
	if diff := cmp.Diff([]string{"Judge", "Prosecutor", "Jury", "Witness"}, labels); diff != "" {
		t.Errorf("AvailableAgents() mismatch (-want +got):\n%s", diff)
	}
	assert.ErrorIs(t, c.SetAddressee(models.CaseRoleDefense), ErrUnknownAddressee)
	assert.Equal(t, models.CaseRoleJudge, c.Addressee())

	want := []WitnessOption{{Name: "Jane Roe", Description: "Neighbor"}, {Name: "Sam Poe", Description: "Witness"}}
	if diff := cmp.Diff(want, c.AvailableWitnesses()); diff != "" {
		t.Errorf("AvailableWitnesses() mismatch (-want +got):\n%s", diff)
	}
	assert.ErrorIs(t, c.SelectWitness("Nobody"), ErrUnknownAddressee)
}

func TestAutoResponseFiresOncePerPair(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleProsecutor)}
	c, bus := newTestController(t, api, 10*time.Millisecond)

	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))

	require.Eventually(t, func() bool { return api.count("auto") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, api.count("auto"))
	assert.Eventually(t, func() bool {
		return len(noticesOf(bus, notify.KindSuccess)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAutoResponseRearmsWhenTurnChanges(t *testing.T) {
	api := &fakeAPI{
		session: defenseSession(models.CaseRoleJudge),
		afterAuto: []models.TrialSession{
			defenseSession(models.CaseRoleProsecutor),
			defenseSession(models.CaseRoleDefense),
		},
	}
	_, _ = newTestController(t, api, 5*time.Millisecond)

	require.Eventually(t, func() bool { return api.count("auto") == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, api.count("auto"), "stops once the turn is the user's")
}

func TestAutoResponseCancelledWhenTurnMovesToUser(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleProsecutor)}
	c, _ := newTestController(t, api, 40*time.Millisecond)

	api.setSession(defenseSession(models.CaseRoleDefense))
	require.NoError(t, c.Refresh(context.Background()))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, api.count("auto"))
}

func TestAutoResponseBadRequestIsSwallowed(t *testing.T) {
	api := &fakeAPI{
		session: defenseSession(models.CaseRoleProsecutor),
		autoErr: &client.APIError{StatusCode: http.StatusBadRequest, Detail: "it is the user's turn"},
	}
	_, bus := newTestController(t, api, 5*time.Millisecond)

	require.Eventually(t, func() bool { return api.count("auto") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, bus.Active())
}

func TestAutoResponseOtherErrorsSurface(t *testing.T) {
	api := &fakeAPI{
		session: defenseSession(models.CaseRoleProsecutor),
		autoErr: &client.APIError{StatusCode: http.StatusTooManyRequests, Detail: "rate limit exceeded"},
	}
	_, bus := newTestController(t, api, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(noticesOf(bus, notify.KindError)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"rate limit exceeded"}, noticesOf(bus, notify.KindError))
}

func TestAutoResponseWaitsForSubmission(t *testing.T) {
	block := make(chan struct{})
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense), agentBlock: block}
	c, _ := newTestController(t, api, 5*time.Millisecond)
	require.NoError(t, c.SetAddressee(models.CaseRoleJury))
	c.SetInput("Ladies and gentlemen")

	// the append hands the turn to the prosecutor
	api.setSession(defenseSession(models.CaseRoleProsecutor))
	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == StateAgentRequested }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, api.count("auto"), "no automatic call while the agent is answering")

	close(block)
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return api.count("auto") == 1 }, time.Second, 5*time.Millisecond)
}

func TestCloseStopsPendingTimer(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleProsecutor)}
	bus := notify.New()
	defer bus.Close()
	c := NewController(api, "s1", WithNotifier(bus), WithAutoResponseDelay(30*time.Millisecond))
	require.NoError(t, c.Refresh(context.Background()))

	c.Close()
	c.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, api.count("auto"))
}

func TestFollowRefreshesOnEvents(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, bus := newTestController(t, api, time.Hour)
	events := make(chan models.SessionEvent, 3)
	c.Follow(events)

	updated := defenseSession(models.CaseRoleDefense)
	updated.CurrentPhase = models.PhaseClosingArguments
	api.setSession(updated)

	events <- models.SessionEvent{Type: models.EventSessionUpdated, SessionID: "other"}
	events <- models.SessionEvent{Type: models.EventSessionUpdated, SessionID: "s1"}
	events <- models.SessionEvent{Type: models.EventSessionDeleted, SessionID: "s1"}

	require.Eventually(t, func() bool {
		return c.Session().CurrentPhase == models.PhaseClosingArguments
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(noticesOf(bus, notify.KindWarning)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, api.count("session"))
	close(events)
}

func TestAdvancePhase(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, bus := newTestController(t, api, time.Hour)

	require.NoError(t, c.AdvancePhase(context.Background()))

	assert.Equal(t, []models.TrialPhase{models.PhaseClosingArguments}, api.advanced)
	assert.Equal(t, models.PhaseClosingArguments, c.Session().CurrentPhase)
	assert.Equal(t, []string{"Advanced to Closing Arguments"}, noticesOf(bus, notify.KindSuccess))
}

func TestAdvancePhaseCompleted(t *testing.T) {
	s := defenseSession(models.CaseRoleDefense)
	s.CurrentPhase = models.PhaseCompleted
	api := &fakeAPI{session: s}
	c, bus := newTestController(t, api, time.Hour)

	assert.Error(t, c.AdvancePhase(context.Background()))
	assert.Equal(t, 0, api.count("advance"))
	assert.Equal(t, []string{"Trial is already Completed"}, noticesOf(bus, notify.KindWarning))
}

func TestAdvancePhaseRefreshFails(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, bus := newTestController(t, api, time.Hour)
	api.mu.Lock()
	api.sessionErr = &client.APIError{StatusCode: http.StatusServiceUnavailable, Detail: "database unavailable"}
	api.mu.Unlock()

	err := c.AdvancePhase(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, api.count("advance"))
	assert.Equal(t, []string{"database unavailable"}, noticesOf(bus, notify.KindError))
	assert.Empty(t, noticesOf(bus, notify.KindSuccess))
}

func TestRefreshDropsOlderSnapshot(t *testing.T) {
	newer := defenseSession(models.CaseRoleDefense)
	newer.Version = 5
	newer.CurrentPhase = models.PhaseClosingArguments
	api := &fakeAPI{session: newer}
	c, _ := newTestController(t, api, time.Hour)

	older := defenseSession(models.CaseRoleDefense)
	older.Version = 3
	api.setSession(older)
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, int32(5), c.Session().Version)
	assert.Equal(t, models.PhaseClosingArguments, c.Session().CurrentPhase)

	next := newer
	next.Version = 6
	next.CurrentPhase = models.PhaseJuryDeliberation
	next.CurrentTurn = models.RoleRef(models.CaseRoleDefense)
	api.setSession(next)
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, int32(6), c.Session().Version)
}

func TestAutoResponsePausesAfterMaxTurns(t *testing.T) {
	setup := func(turn models.CaseRole) models.TrialSession {
		s := defenseSession(turn)
		s.CurrentPhase = models.PhaseSetup
		return s
	}
	api := &fakeAPI{
		session: setup(models.CaseRoleJudge),
		afterAuto: []models.TrialSession{
			setup(models.CaseRoleProsecutor),
			setup(models.CaseRoleJudge),
			setup(models.CaseRoleProsecutor),
			setup(models.CaseRoleJudge),
		},
	}
	bus := notify.New()
	c := NewController(api, "s1", WithNotifier(bus), WithAutoResponseDelay(5*time.Millisecond), WithMaxAutoTurns(2))
	t.Cleanup(func() {
		c.Close()
		bus.Close()
	})
	require.NoError(t, c.Refresh(context.Background()))

	require.Eventually(t, func() bool {
		return len(noticesOf(bus, notify.KindInfo)) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, api.count("auto"), "the judge and the State stop trading turns")

	// a new phase starts the count again
	api.mu.Lock()
	api.afterAuto = nil
	api.mu.Unlock()
	require.NoError(t, c.AdvancePhase(context.Background()))
	require.Eventually(t, func() bool { return api.count("auto") == 3 }, time.Second, 5*time.Millisecond)
}

func TestChangesSignal(t *testing.T) {
	api := &fakeAPI{session: defenseSession(models.CaseRoleDefense)}
	c, _ := newTestController(t, api, time.Hour)

	select {
	case <-c.Changes():
	case <-time.After(time.Second):
		t.Fatal("refresh did not signal a change")
	}
}

func TestSubmissionStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "appending_transcript", StateAppendingTranscript.String())
	assert.Equal(t, "agent_requested", StateAgentRequested.String())
}
