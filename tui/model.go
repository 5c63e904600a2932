// Package tui is the terminal courtroom: a bubbletea program over a
// chat.Controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linesmerrill/jurysane-api/chat"
	"github.com/linesmerrill/jurysane-api/models"
	"github.com/linesmerrill/jurysane-api/notify"
)

// lines from the end that still count as following the transcript
const scrollThreshold = 2

const maxNotices = 3

// NotesStore keeps the private notes shown in the side panel
type NotesStore interface {
	List(ctx context.Context, sessionID string) ([]models.Note, error)
	Create(ctx context.Context, sessionID string) (models.Note, error)
	Save(ctx context.Context, n models.Note) (models.Note, error)
	Delete(ctx context.Context, sessionID, id string) error
}

type (
	loadedMsg    struct{ err error }
	changedMsg   struct{}
	noticeMsg    notify.Event
	submittedMsg struct{ err error }
	advancedMsg  struct{ err error }
	notesMsg     struct {
		notes []models.Note
		err   error
	}
)

// Model is the bubbletea model of the courtroom screen
type Model struct {
	ctrl      *chat.Controller
	bus       *notify.Bus
	notes     NotesStore
	sessionID string
	noticeCh  <-chan notify.Event

	transcript viewport.Model
	input      textarea.Model
	spinner    spinner.Model
	scroll     *chat.ScrollState
	theme      theme

	width       int
	height      int
	renderedLen int
	notices     []notify.Notice
	loadErr     error
	submitting  bool

	showNotes bool
	noteList  []models.Note
	noteIndex int
}

// New builds the courtroom screen. store may be nil, which turns the
// notes panel off.
func New(ctrl *chat.Controller, bus *notify.Bus, sessionID string, store NotesStore) Model {
	input := textarea.New()
	input.Placeholder = "Address the court... (ctrl+s to send)"
	input.ShowLineNumbers = false
	input.CharLimit = 4000
	input.SetHeight(3)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	noticeCh, _ := bus.Subscribe()

	return Model{
		ctrl:       ctrl,
		bus:        bus,
		notes:      store,
		sessionID:  sessionID,
		noticeCh:   noticeCh,
		transcript: vp,
		input:      input,
		spinner:    sp,
		scroll:     chat.NewScrollState(scrollThreshold),
		theme:      newTheme(),
	}
}

// Init loads the session and starts listening for changes
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.refreshCmd(),
		waitChange(m.ctrl.Changes()),
		waitNotice(m.noticeCh),
	)
}

func waitChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func waitNotice(ch <-chan notify.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(e)
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return loadedMsg{err: ctrl.Refresh(context.Background())}
	}
}

func (m Model) advanceCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return advancedMsg{err: ctrl.AdvancePhase(context.Background())}
	}
}

func (m *Model) submitCmd() tea.Cmd {
	m.ctrl.SetInput(m.input.Value())
	if m.submitting {
		m.bus.Warning(chat.ErrSubmissionPending.Error())
		return nil
	}
	m.submitting = true
	ctrl := m.ctrl
	return func() tea.Msg {
		return submittedMsg{err: ctrl.Submit(context.Background())}
	}
}

// Update handles one message
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.renderTranscript(true)
	case loadedMsg:
		m.loadErr = msg.err
		if msg.err != nil && m.ctrl.Session() != nil {
			m.bus.Error("Failed to refresh: " + msg.err.Error())
		}
	case changedMsg:
		m.syncInput()
		m.renderTranscript(false)
		cmds = append(cmds, waitChange(m.ctrl.Changes()))
	case noticeMsg:
		m.applyNotice(notify.Event(msg))
		cmds = append(cmds, waitNotice(m.noticeCh))
	case submittedMsg:
		m.submitting = false
		m.input.SetValue(m.ctrl.Input())
		if isInputError(msg.err) {
			m.bus.Warning(msg.err.Error())
		}
		m.syncInput()
	case advancedMsg:
		// the controller has already posted a notice for every other failure
		if errors.Is(msg.err, chat.ErrNoSession) {
			m.bus.Warning(msg.err.Error())
		}
		m.renderTranscript(false)
	case notesMsg:
		if msg.err != nil {
			m.bus.Error(msg.err.Error())
			break
		}
		m.noteList = msg.notes
		if m.noteIndex >= len(m.noteList) {
			m.noteIndex = max(len(m.noteList)-1, 0)
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		m.observeScroll()
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.cycleAddressee()
		m.syncInput()
		return m, nil
	case "ctrl+w":
		m.cycleWitness()
		m.syncInput()
		return m, nil
	case "ctrl+s":
		return m, m.submitCmd()
	case "ctrl+r":
		return m, m.refreshCmd()
	case "ctrl+n":
		return m, m.advanceCmd()
	case "ctrl+o":
		m.showNotes = !m.showNotes
		m.resize()
		m.renderTranscript(true)
		if m.showNotes {
			return m, m.loadNotesCmd()
		}
		return m, nil
	case "ctrl+a":
		if m.showNotes {
			return m, m.noteFromInputCmd()
		}
		return m, nil
	case "ctrl+d":
		if m.showNotes {
			return m, m.deleteNoteCmd()
		}
		return m, nil
	case "alt+up":
		if m.noteIndex > 0 {
			m.noteIndex--
		}
		return m, nil
	case "alt+down":
		if m.noteIndex < len(m.noteList)-1 {
			m.noteIndex++
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		m.observeScroll()
		return m, cmd
	case "end":
		m.scroll.JumpToBottom()
		m.transcript.GotoBottom()
		return m, nil
	}

	if !m.ctrl.InputEnabled() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func isInputError(err error) bool {
	return errors.Is(err, chat.ErrEmptyMessage) ||
		errors.Is(err, chat.ErrWitnessRequired) ||
		errors.Is(err, chat.ErrSubmissionPending) ||
		errors.Is(err, chat.ErrNoSession)
}

// cycleAddressee moves to the next participant the user may address
func (m *Model) cycleAddressee() {
	options := m.ctrl.AvailableAgents()
	if len(options) == 0 {
		return
	}
	current := m.ctrl.Addressee()
	next := options[0].Role
	for i, o := range options {
		if o.Role == current {
			next = options[(i+1)%len(options)].Role
			break
		}
	}
	_ = m.ctrl.SetAddressee(next)
}

// cycleWitness selects the next witness, then none, then wraps
func (m *Model) cycleWitness() {
	witnesses := m.ctrl.AvailableWitnesses()
	if len(witnesses) == 0 {
		return
	}
	if m.ctrl.Addressee() != models.CaseRoleWitness {
		_ = m.ctrl.SetAddressee(models.CaseRoleWitness)
	}
	current := m.ctrl.Witness()
	next := witnesses[0].Name
	for i, w := range witnesses {
		if w.Name == current {
			if i+1 < len(witnesses) {
				next = witnesses[i+1].Name
			} else {
				next = ""
			}
			break
		}
	}
	_ = m.ctrl.SelectWitness(next)
}

func (m *Model) syncInput() {
	if m.ctrl.InputEnabled() {
		m.input.Focus()
		return
	}
	m.input.Blur()
}

func (m *Model) applyNotice(e notify.Event) {
	switch e.Type {
	case notify.EventAdded:
		m.notices = append(m.notices, e.Notice)
	case notify.EventRemoved:
		kept := m.notices[:0]
		for _, n := range m.notices {
			if n.ID != e.Notice.ID {
				kept = append(kept, n)
			}
		}
		m.notices = kept
	}
}

func (m *Model) resize() {
	mainWidth := m.mainWidth()
	m.input.SetWidth(max(mainWidth-2, 10))

	// header, hint, status, addressee, input with border, notices, help
	chrome := 3 + 1 + 1 + 1 + (m.input.Height() + 2) + maxNotices + 1
	m.transcript.Width = mainWidth
	m.transcript.Height = max(m.height-chrome, 3)
}

func (m Model) mainWidth() int {
	if !m.showNotes {
		return m.width
	}
	return m.width - m.notesWidth()
}

func (m Model) notesWidth() int {
	return min(40, m.width/3)
}

// renderTranscript redraws the transcript. The view follows new entries
// only while the user is at the bottom.
func (m *Model) renderTranscript(resized bool) {
	session := m.ctrl.Session()
	m.transcript.SetContent(renderMessages(session, m.transcript.Width, m.theme))

	n := 0
	if session != nil {
		n = len(session.Transcript)
	}
	grew := n > m.renderedLen
	m.renderedLen = n
	if (grew || resized) && m.scroll.OnTranscriptGrowth() {
		m.transcript.GotoBottom()
	}
	m.observeScroll()
}

func (m *Model) observeScroll() {
	m.scroll.Observe(m.transcript.YOffset, m.transcript.TotalLineCount(), m.transcript.Height)
}

func renderMessages(session *models.TrialSession, width int, th theme) string {
	if session == nil {
		return th.subtle.Render("Loading trial session...")
	}
	if len(session.Transcript) == 0 {
		return th.speaker.Render("Welcome to the Courtroom") + "\n" +
			th.subtle.Render("Begin by addressing the judge or other participants. "+
				"Select who you want to speak to with tab and type your message below.")
	}

	bodyWidth := max(width-2, 20)
	var b strings.Builder
	for i, msg := range chat.Messages(session.Transcript) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		icon := th.icons[msg.Style].Render(msg.Icon)
		header := icon + " " + th.speaker.Render(msg.Speaker)
		if !msg.Timestamp.IsZero() {
			header += " " + th.subtle.Render(msg.Timestamp.Local().Format("3:04 PM"))
		}
		bubble := th.bubble
		if msg.IsUser {
			bubble = th.userBubble
		}
		b.WriteString(header + "\n" + bubble.Width(bodyWidth).Render(msg.Content))
	}
	return b.String()
}

// View renders the screen
func (m Model) View() string {
	if m.width == 0 {
		return "Opening the courtroom..."
	}
	if m.loadErr != nil && m.ctrl.Session() == nil {
		return fmt.Sprintf("Could not load trial session %s:\n\n  %v\n\n%s",
			m.sessionID, m.loadErr,
			m.theme.help.Render("ctrl+r retry · ctrl+c quit · run `courtroom cases` to pick another case"))
	}

	sections := []string{m.headerView(), m.transcript.View()}
	if m.scroll.ShowJumpToBottom() {
		sections = append(sections, m.theme.hint.Render("↓ New messages below (end)"))
	} else {
		sections = append(sections, "")
	}
	sections = append(sections,
		m.statusView(),
		m.addresseeView(),
		m.theme.inputPanel.Render(m.input.View()),
		m.noticesView(),
		m.theme.help.Render("tab addressee · ctrl+w witness · ctrl+s send · ctrl+r refresh · ctrl+n next phase · ctrl+o notes · ctrl+c quit"),
	)
	main := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if !m.showNotes {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, main, m.notesView())
}

func (m Model) headerView() string {
	session := m.ctrl.Session()
	if session == nil {
		return m.theme.header.Render("JurySane Courtroom")
	}
	title := session.CaseID
	if cs := m.ctrl.Case(); cs != nil && cs.Title != "" {
		title = cs.Title
	}
	line := fmt.Sprintf("%s · %s · You are the %s",
		title, session.CurrentPhase.DisplayName(), session.UserCaseRole().DisplayName())
	if session.Verdict != nil {
		line += " · Verdict: " + verdictLabel(session.Verdict.Verdict)
	}
	return m.theme.header.Width(max(m.mainWidth()-2, 10)).Render(line)
}

// verdictLabel turns "not_guilty" into "Not Guilty"
func verdictLabel(v string) string {
	words := strings.Fields(strings.ReplaceAll(v, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (m Model) statusView() string {
	session := m.ctrl.Session()
	var turn string
	if chat.IsUserTurn(session) {
		turn = m.theme.userTurn.Render(chat.TurnIndicator(session))
	} else {
		turn = m.theme.agentTurn.Render(chat.TurnIndicator(session))
	}
	if !m.ctrl.AwaitingAgent() {
		return turn
	}
	who := m.ctrl.Addressee().DisplayName()
	if m.ctrl.State() != chat.StateAgentRequested && session != nil {
		who = chat.TurnDisplayName(session.CurrentTurn)
	}
	return turn + "  " + m.spinner.View() + " " + who + " is responding..."
}

func (m Model) addresseeView() string {
	var parts []string
	current := m.ctrl.Addressee()
	for _, o := range m.ctrl.AvailableAgents() {
		if o.Role == current {
			parts = append(parts, m.theme.selected.Render("["+o.Label+"]"))
			continue
		}
		parts = append(parts, m.theme.subtle.Render(o.Label))
	}
	line := "To: " + strings.Join(parts, " ")
	if current == models.CaseRoleWitness {
		w := m.ctrl.Witness()
		if w == "" {
			w = "none selected"
		}
		line += "  Witness: " + m.theme.selected.Render(w) + m.theme.subtle.Render(" (ctrl+w)")
	}
	return line
}

func (m Model) noticesView() string {
	notices := m.notices
	if len(notices) > maxNotices {
		notices = notices[len(notices)-maxNotices:]
	}
	lines := make([]string, maxNotices)
	for i, n := range notices {
		text := n.Message
		if n.Title != "" {
			text = n.Title + ": " + text
		}
		lines[i] = m.theme.notices[n.Kind].Render(text)
	}
	return strings.Join(lines, "\n")
}
