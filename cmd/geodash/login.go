package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/common/output"
	"github.com/obentoo/geodash/internal/dashboard"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the auth API",
	Long: `Sign in with your email and password. Missing values are prompted for.
On success the session is remembered and your own location is shown.`,
	Example: `  geodash login --email admin@test.com
  geodash login --email admin@test.com --password 123456789`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runLogin(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout(), loginEmail, loginPassword)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the signed-in user",
	Long:  `Sign out. The search history is kept.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runLogout(a, cmd.OutOrStdout())
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(ctx context.Context, a *app, in io.Reader, out io.Writer, email, password string) error {
	lr := newLineReader(in)
	var err error
	if email == "" {
		if email, err = lr.Prompt(out, "Email: "); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	if password == "" {
		if password, err = lr.Prompt(out, "Password: "); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}

	err = a.ctrl.Login(ctx, email, password)
	snap := a.ctrl.Snapshot()
	if errors.Is(err, dashboard.ErrLoginFailed) {
		dashboard.RenderLogin(out, snap)
		return err
	}
	if err != nil {
		logger.Warn("could not load your location: %v", err)
	}

	output.PrintSuccess(out, "Logged in as %s", snap.User.DisplayName())
	dashboard.RenderCard(out, snap)
	return nil
}

func runLogout(a *app, out io.Writer) error {
	if a.ctrl.User() == nil {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}
	if err := a.ctrl.Logout(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	output.PrintSuccess(out, "Logged out")
	return nil
}
