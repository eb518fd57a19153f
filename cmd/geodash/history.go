package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/obentoo/geodash/internal/common/output"
	"github.com/obentoo/geodash/internal/dashboard"
	"github.com/spf13/cobra"
)

var historyDeleteAll bool

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"hist"},
	Short:   "List recent searches",
	Long:    `List the recent searches, most recent first. Entries can be referenced by address or by #number.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runHistoryList(a, cmd.OutOrStdout())
	},
}

var historyViewCmd = &cobra.Command{
	Use:   "view <ip|#n>",
	Short: "Show the location of a recent search",
	Long:  `Look up a recent search again. The history order is not changed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runHistoryView(cmd.Context(), a, cmd.OutOrStdout(), args[0])
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <ip|#n>...",
	Short: "Remove entries from the recent searches",
	Example: `  geodash history delete 8.8.8.8 #2
  geodash history delete --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !historyDeleteAll && len(args) == 0 {
			return errors.New("nothing to delete: pass entries or --all")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runHistoryDelete(a, cmd.OutOrStdout(), args, historyDeleteAll)
	},
}

func init() {
	historyDeleteCmd.Flags().BoolVarP(&historyDeleteAll, "all", "a", false, "Remove every entry")

	historyCmd.AddCommand(historyViewCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(a *app, out io.Writer) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	snap := a.ctrl.Snapshot()
	if len(snap.History) == 0 {
		fmt.Fprintln(out, "No recent searches.")
		return nil
	}
	dashboard.RenderHistory(out, snap)
	return nil
}

func runHistoryView(ctx context.Context, a *app, out io.Writer, ref string) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	ip, err := resolveEntry(a.history.List(), ref)
	if err != nil {
		return err
	}

	err = a.ctrl.ViewHistory(ctx, ip)
	snap := a.ctrl.Snapshot()
	if err != nil {
		output.PrintError(out, "%s", snap.Error)
		return err
	}
	dashboard.RenderCard(out, snap)
	return nil
}

func runHistoryDelete(a *app, out io.Writer, refs []string, all bool) error {
	if err := a.requireUser(); err != nil {
		return err
	}

	if all {
		a.ctrl.SelectAll(true)
	} else {
		entries := a.history.List()
		for _, ref := range refs {
			ip, err := resolveEntry(entries, ref)
			if err != nil {
				return err
			}
			if !a.ctrl.Snapshot().Selected[ip] {
				a.ctrl.ToggleSelection(ip)
			}
		}
	}

	n := a.ctrl.Snapshot().SelectedCount()
	remaining, err := a.ctrl.DeleteSelected()
	if err != nil {
		return fmt.Errorf("saving search history: %w", err)
	}
	output.PrintSuccess(out, "Removed %d entries, %d left", n, len(remaining))
	return nil
}
