package tui

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linesmerrill/jurysane-api/models"
)

const noteTitleLimit = 40

var errNotesDisabled = errors.New("notes are disabled")

func (m Model) loadNotesCmd() tea.Cmd {
	store, sessionID := m.notes, m.sessionID
	return func() tea.Msg {
		if store == nil {
			return notesMsg{err: errNotesDisabled}
		}
		list, err := store.List(context.Background(), sessionID)
		return notesMsg{notes: list, err: err}
	}
}

// noteFromInputCmd saves the text in the input box as a new note
func (m Model) noteFromInputCmd() tea.Cmd {
	store, sessionID := m.notes, m.sessionID
	title, content := noteFromInput(m.input.Value())
	bus := m.bus
	return func() tea.Msg {
		if store == nil {
			return notesMsg{err: errNotesDisabled}
		}
		ctx := context.Background()
		n, err := store.Create(ctx, sessionID)
		if err != nil {
			return notesMsg{err: err}
		}
		if content != "" {
			n.Title, n.Content = title, content
			if _, err := store.Save(ctx, n); err != nil {
				return notesMsg{err: err}
			}
		}
		bus.Success("Note saved")
		list, err := store.List(ctx, sessionID)
		return notesMsg{notes: list, err: err}
	}
}

func (m Model) deleteNoteCmd() tea.Cmd {
	if m.noteIndex < 0 || m.noteIndex >= len(m.noteList) {
		return nil
	}
	store, sessionID := m.notes, m.sessionID
	id := m.noteList[m.noteIndex].ID
	bus := m.bus
	return func() tea.Msg {
		if store == nil {
			return notesMsg{err: errNotesDisabled}
		}
		ctx := context.Background()
		if err := store.Delete(ctx, sessionID, id); err != nil {
			return notesMsg{err: err}
		}
		bus.Success("Note deleted")
		list, err := store.List(ctx, sessionID)
		return notesMsg{notes: list, err: err}
	}
}

// noteFromInput uses the first line of text as the title
func noteFromInput(text string) (title, content string) {
	content = strings.TrimSpace(text)
	if content == "" {
		return "", ""
	}
	title, _, _ = strings.Cut(content, "\n")
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > noteTitleLimit {
		title = string([]rune(title)[:noteTitleLimit-1]) + "…"
	}
	return title, content
}

func (m Model) notesView() string {
	width := m.notesWidth()
	var b strings.Builder
	b.WriteString(m.theme.speaker.Render("My Notes"))
	b.WriteString("\n")
	b.WriteString(m.theme.help.Render("ctrl+a add from input · ctrl+d delete · alt+↑/↓ select"))
	b.WriteString("\n\n")

	if m.notes == nil {
		b.WriteString(m.theme.subtle.Render("Notes are disabled."))
		return m.theme.notesPanel.Width(width - 2).Render(b.String())
	}
	if len(m.noteList) == 0 {
		b.WriteString(m.theme.subtle.Render("No notes yet. Type in the input box and press ctrl+a."))
		return m.theme.notesPanel.Width(width - 2).Render(b.String())
	}

	for i, n := range m.noteList {
		line := n.Title
		if i == m.noteIndex {
			line = m.theme.selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	selected := m.noteList[m.noteIndex]
	b.WriteString("\n")
	b.WriteString(m.theme.subtle.Render("Updated " + selected.UpdatedAt.Local().Format("Jan 2 3:04 PM")))
	b.WriteString("\n")
	b.WriteString(selected.Content)
	return m.theme.notesPanel.Width(width - 2).Render(b.String())
}
