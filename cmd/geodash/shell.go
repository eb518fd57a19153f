package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/common/output"
	"github.com/obentoo/geodash/internal/dashboard"
	"github.com/obentoo/geodash/internal/geo"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run the interactive dashboard",
	Long: `Run the dashboard interactively. You are asked to sign in unless a session
is remembered. Type 'help' at the prompt for the list of commands; typing
an address on its own searches for it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runShell(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `Commands:
  search <ip>        look up an address (or just type the address)
  view <ip|#n>       show a recent search again
  reset              show your own location
  select <ip|#n>...  toggle entries for deletion
  all                select every entry, or none if all are selected
  delete             remove the selected entries
  map                print the map link of the shown location
  status             redraw the dashboard
  logout             sign out
  help               show this help
  quit               leave the shell`

// shell is a read-eval loop over the dashboard controller. Actions run one
// at a time.
type shell struct {
	app   *app
	in    *lineReader
	out   io.Writer
	dirty bool
}

func runShell(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	s := &shell{app: a, in: newLineReader(in), out: out, dirty: true}
	return s.run(ctx)
}

func (s *shell) run(ctx context.Context) error {
	ctrl := s.app.ctrl
	if ctrl.User() != nil {
		loadOwn(ctx, s.app)
	}

	for ctx.Err() == nil {
		if ctrl.User() == nil {
			ok, err := s.login(ctx)
			if err != nil || !ok {
				return err
			}
			s.dirty = true
			continue
		}

		if s.dirty {
			dashboard.RenderDashboard(s.out, ctrl.Snapshot())
			s.dirty = false
		}

		line, err := s.in.Prompt(s.out, "geodash> ")
		if err != nil {
			fmt.Fprintln(s.out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if quit := s.exec(ctx, line); quit {
			return nil
		}
	}
	return nil
}

// login shows the sign-in screen and tries one set of credentials.
// It reports false when the user left instead.
func (s *shell) login(ctx context.Context) (bool, error) {
	dashboard.RenderLogin(s.out, s.app.ctrl.Snapshot())

	email, err := s.in.Prompt(s.out, "Email: ")
	if err != nil {
		return false, ignoreEOF(err)
	}
	if isQuit(email) {
		return false, nil
	}
	password, err := s.in.Prompt(s.out, "Password: ")
	if err != nil {
		return false, ignoreEOF(err)
	}

	err = s.app.ctrl.Login(ctx, email, password)
	if err != nil && !errors.Is(err, dashboard.ErrLoginFailed) {
		logger.Warn("could not load your location: %v", err)
	}
	return true, nil
}

// exec runs one command line and reports whether the shell should exit
func (s *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	ctrl := s.app.ctrl
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch {
	case isQuit(cmd):
		return true
	case cmd == "help" || cmd == "?":
		fmt.Fprintln(s.out, shellHelp)
		return false
	case cmd == "search" || cmd == "s":
		if len(args) != 1 {
			s.usage("search <ip>")
			return false
		}
		s.search(ctx, args[0])
	case cmd == "view" || cmd == "v":
		if len(args) != 1 {
			s.usage("view <ip|#n>")
			return false
		}
		ip, err := resolveEntry(s.app.history.List(), args[0])
		if err != nil {
			s.fail(err)
			return false
		}
		if err := ctrl.ViewHistory(ctx, ip); err != nil {
			logger.Debug("view %s: %v", ip, err)
		}
	case cmd == "reset":
		if !ctrl.Reset() {
			fmt.Fprintln(s.out, "Already showing your location.")
			return false
		}
	case cmd == "select":
		if len(args) == 0 {
			s.usage("select <ip|#n>...")
			return false
		}
		entries := s.app.history.List()
		for _, ref := range args {
			ip, err := resolveEntry(entries, ref)
			if err != nil {
				s.fail(err)
				continue
			}
			ctrl.ToggleSelection(ip)
		}
	case cmd == "all":
		ctrl.SelectAll(!ctrl.AllSelected())
	case cmd == "delete":
		if ctrl.Snapshot().SelectedCount() == 0 {
			fmt.Fprintln(s.out, "Nothing selected.")
			return false
		}
		if _, err := ctrl.DeleteSelected(); err != nil {
			s.fail(fmt.Errorf("saving search history: %w", err))
		}
	case cmd == "map":
		if url := ctrl.MapURL(); url != "" {
			fmt.Fprintln(s.out, url)
		} else {
			fmt.Fprintln(s.out, "No map available for this location.")
		}
		return false
	case cmd == "status":
	case cmd == "logout":
		if err := ctrl.Logout(); err != nil {
			s.fail(fmt.Errorf("clearing session: %w", err))
		}
	case len(fields) == 1 && (geo.ValidateIP(cmd) || strings.ContainsAny(cmd, ".:")):
		s.search(ctx, fields[0])
	default:
		fmt.Fprintf(s.out, "Unknown command %q. Type 'help' for the list of commands.\n", fields[0])
		return false
	}

	s.dirty = true
	return false
}

func (s *shell) search(ctx context.Context, input string) {
	if err := s.app.ctrl.Search(ctx, input); err != nil {
		logger.Debug("search %q: %v", input, err)
	}
}

func (s *shell) usage(u string) {
	fmt.Fprintln(s.out, "Usage: "+u)
}

func (s *shell) fail(err error) {
	output.PrintError(s.out, "%v", err)
}

func isQuit(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
