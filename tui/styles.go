package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/linesmerrill/jurysane-api/chat"
	"github.com/linesmerrill/jurysane-api/notify"
)

type theme struct {
	header     lipgloss.Style
	subtle     lipgloss.Style
	speaker    lipgloss.Style
	bubble     lipgloss.Style
	userBubble lipgloss.Style
	userTurn   lipgloss.Style
	agentTurn  lipgloss.Style
	hint       lipgloss.Style
	inputPanel lipgloss.Style
	notesPanel lipgloss.Style
	selected   lipgloss.Style
	help       lipgloss.Style
	icons      map[chat.Style]lipgloss.Style
	notices    map[notify.Kind]lipgloss.Style
}

func newTheme() theme {
	white := lipgloss.Color("#ffffff")
	muted := lipgloss.Color("#9ca3af")
	blue := lipgloss.Color("#2563eb")
	sky := lipgloss.Color("#0284c7")

	icon := func(bg string) lipgloss.Style {
		return lipgloss.NewStyle().
			Background(lipgloss.Color(bg)).
			Foreground(white).
			Bold(true).
			Padding(0, 1)
	}

	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(sky).
			Padding(0, 1),
		subtle:  lipgloss.NewStyle().Foreground(muted),
		speaker: lipgloss.NewStyle().Bold(true),
		bubble: lipgloss.NewStyle().
			PaddingLeft(4),
		userBubble: lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(lipgloss.Color("#93c5fd")),
		userTurn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a")).Bold(true),
		agentTurn: lipgloss.NewStyle().Foreground(lipgloss.Color("#ca8a04")).Bold(true),
		hint: lipgloss.NewStyle().
			Background(sky).
			Foreground(white).
			Padding(0, 1),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(muted),
		notesPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		selected: lipgloss.NewStyle().Foreground(sky).Bold(true),
		help:     lipgloss.NewStyle().Foreground(muted).Italic(true),
		icons: map[chat.Style]lipgloss.Style{
			chat.StyleUser:       icon("#2563eb"),
			chat.StyleJudge:      icon("#a855f7"),
			chat.StyleProsecutor: icon("#ef4444"),
			chat.StyleDefense:    icon("#3b82f6"),
			chat.StyleJury:       icon("#22c55e"),
			chat.StyleWitness:    icon("#eab308"),
			chat.StyleAgent:      icon("#6b7280"),
		},
		notices: map[notify.Kind]lipgloss.Style{
			notify.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a")),
			notify.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")).Bold(true),
			notify.KindWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#ca8a04")),
			notify.KindInfo:    lipgloss.NewStyle().Foreground(blue),
		},
	}
}
