// Command courtroom plays JurySane trials from the terminal.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/linesmerrill/jurysane-api/client"
	"github.com/linesmerrill/jurysane-api/models"
)

// options are the persistent flags merged over the profile
type options struct {
	profilePath string
	apiURL      string
	notesDB     string
	logFile     string

	profile Profile
}

func (o *options) client() *client.Client {
	return client.New(o.profile.APIURL)
}

var titleStyle = lipgloss.NewStyle().Bold(true)

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "courtroom",
		Short: "Play a JurySane trial in the terminal",
		Long: `courtroom talks to a JurySane API server. Pick a case, open a trial as
the defense or the prosecution, then argue it against the AI judge, opposing
counsel, witnesses and jury.

Example:
  courtroom cases --category violent
  courtroom new --case case-001 --role defense
  courtroom play <session-id> --token <token>`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.profilePath, "profile", defaultProfilePath(), "YAML profile with api_url, notes_db, log_file and log_level")
	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "API server URL (default from profile, then "+defaultAPIURL+")")
	root.PersistentFlags().StringVar(&opts.notesDB, "notes-db", "", "SQLite file for private notes, \"off\" disables notes")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "file the terminal UI logs to")

	root.AddCommand(newCasesCmd(opts), newNewCmd(opts), newPlayCmd(opts), newInfoCmd(opts))
	return root
}

// load reads the profile then applies the flags that were set
func (o *options) load(cmd *cobra.Command) error {
	required := cmd.Flags().Changed("profile")
	p, err := LoadProfile(o.profilePath, required)
	if err != nil {
		return err
	}
	if o.apiURL != "" {
		p.APIURL = o.apiURL
	}
	if o.notesDB != "" {
		p.NotesDB = o.notesDB
	}
	if o.logFile != "" {
		p.LogFile = o.logFile
	}
	o.profile = p
	return nil
}

func newCasesCmd(opts *options) *cobra.Command {
	var search, category string
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List the available cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if search != "" && category != "" {
				return fmt.Errorf("use either --search or --category, not both")
			}
			c := opts.client()
			var (
				cases []models.Case
				err   error
			)
			switch {
			case search != "":
				cases, err = c.SearchCases(cmd.Context(), search)
			case category != "":
				cases, err = c.CasesByCategory(cmd.Context(), category)
			default:
				cases, err = c.ListCases(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printCases(cmd, cases)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "only cases whose title, description or charges match")
	cmd.Flags().StringVar(&category, "category", "", "only cases in a category ("+strings.Join(client.Categories(), ", ")+")")
	return cmd
}

func printCases(cmd *cobra.Command, cases []models.Case) error {
	out := cmd.OutOrStdout()
	if len(cases) == 0 {
		_, err := fmt.Fprintln(out, "No cases found.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("TITLE")+"\t"+titleStyle.Render("CATEGORY")+"\t"+titleStyle.Render("CHARGES"))
	for _, cs := range cases {
		category := "-"
		if cs.Category != "" {
			category = client.CategoryDisplayName(cs.Category)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cs.ID, cs.Title, category, strings.Join(cs.Charges, "; "))
	}
	return w.Flush()
}

func newNewCmd(opts *options) *cobra.Command {
	var caseID, role string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Open a new trial session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userRole := models.UserRole(strings.ToLower(role))
			if !userRole.Valid() {
				return fmt.Errorf("invalid role %q, use defense or prosecutor", role)
			}
			c := opts.client()
			resp, err := c.CreateTrial(cmd.Context(), caseID, userRole)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Message)
			fmt.Fprintf(out, "session: %s\n", resp.SessionID)
			fmt.Fprintf(out, "token:   %s\n\n", resp.Token)
			fmt.Fprintf(out, "Start arguing with:\n  courtroom play %s --token %s\n", resp.SessionID, resp.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&caseID, "case", "", "case id (see `courtroom cases`)")
	cmd.Flags().StringVar(&role, "role", string(models.UserRoleDefense), "defense or prosecutor")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show what the API server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.client().Info(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", info.Name, info.Version, info.Environment)
			fmt.Fprintf(out, "server:     %s\n", opts.profile.APIURL)
			fmt.Fprintf(out, "model:      %s %s\n", info.LLMProvider, info.LLMModel)
			names := make([]string, 0, len(info.Categories))
			for _, c := range info.Categories {
				names = append(names, client.CategoryDisplayName(c))
			}
			fmt.Fprintf(out, "categories: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
