package chat

import (
	"iter"
	"strings"

	"github.com/linesmerrill/jurysane-api/models"
)

// Style picks the colors of a transcript message
type Style string

// Style values
const (
	StyleUser       Style = "user"
	StyleJudge      Style = "judge"
	StyleProsecutor Style = "prosecutor"
	StyleDefense    Style = "defense"
	StyleJury       Style = "jury"
	StyleWitness    Style = "witness"
	StyleAgent      Style = "agent"
)

// checked in order; the first role contained in the speaker name wins
var speakerStyles = []struct {
	key   string
	style Style
	icon  string
}{
	{"judge", StyleJudge, "J"},
	{"prosecutor", StyleProsecutor, "P"},
	{"defense", StyleDefense, "D"},
	{"jury", StyleJury, "J"},
	{"witness", StyleWitness, "W"},
}

// Message is a transcript entry ready to render
type Message struct {
	models.TranscriptEntry
	IsUser bool
	Style  Style
	Icon   string
}

// NewMessage tags an entry with its author kind and style
func NewMessage(e models.TranscriptEntry) Message {
	m := Message{TranscriptEntry: e, IsUser: e.IsUserInput()}
	if m.IsUser {
		m.Style, m.Icon = StyleUser, "U"
		return m
	}
	m.Style, m.Icon = SpeakerStyle(e.Speaker)
	return m
}

// SpeakerStyle maps a speaker label such as "Judge" or "Witness: Jane
// Roe" to a style and icon letter
func SpeakerStyle(speaker string) (Style, string) {
	key := strings.ToLower(speaker)
	for _, s := range speakerStyles {
		if strings.Contains(key, s.key) {
			return s.style, s.icon
		}
	}
	return StyleAgent, "A"
}

// Messages yields the entries in order. Nothing is built until the
// caller ranges over it.
func Messages(entries []models.TranscriptEntry) iter.Seq2[int, Message] {
	return func(yield func(int, Message) bool) {
		for i, e := range entries {
			if !yield(i, NewMessage(e)) {
				return
			}
		}
	}
}
