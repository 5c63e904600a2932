package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/chat"
	"github.com/linesmerrill/jurysane-api/client"
	"github.com/linesmerrill/jurysane-api/logging"
	"github.com/linesmerrill/jurysane-api/notes"
	"github.com/linesmerrill/jurysane-api/notify"
	"github.com/linesmerrill/jurysane-api/tui"
)

const notesOff = "off"

func newPlayCmd(opts *options) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "play SESSION_ID",
		Short: "Open the courtroom for a trial session",
		Long: `Opens the interactive courtroom. The seat token printed by "courtroom new"
lets you speak; without it the session is read only. COURTROOM_TOKEN is used
when --token is not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("COURTROOM_TOKEN")
			}
			return runPlay(cmd.Context(), opts.profile, args[0], token)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "seat token for the session")
	return cmd
}

func runPlay(ctx context.Context, profile Profile, sessionID, token string) error {
	logger, err := logging.NewFile(profile.LogFile, profile.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	c := client.New(profile.APIURL)
	if token != "" {
		c.SetSessionToken(sessionID, token)
	}

	bus := notify.New()
	defer bus.Close()

	ctrl := chat.NewController(c, sessionID, chat.WithNotifier(bus))
	defer ctrl.Close()

	// cancelled before ctrl.Close so the event follower can finish
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := c.Subscribe(ctx, sessionID)
	if err != nil {
		zap.S().Warnw("live updates unavailable", "session_id", sessionID, "error", err)
		bus.Warning("Live updates unavailable, press ctrl+r to refresh")
	} else {
		ctrl.Follow(events)
	}

	var store tui.NotesStore
	if profile.NotesDB != "" && profile.NotesDB != notesOff {
		s, err := notes.Open(profile.NotesDB)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	zap.S().Infow("opening courtroom", "session_id", sessionID, "api", profile.APIURL)
	p := tea.NewProgram(
		tui.New(ctrl, bus, sessionID, store),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		zap.S().Errorw("courtroom stopped", "error", err)
		return err
	}
	return nil
}
