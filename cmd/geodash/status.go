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

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dashboard",
	Long:  `Show the signed-in user, your own location and the recent searches.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runStatus(cmd.Context(), a, cmd.OutOrStdout())
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <ip>",
	Short: "Look up the location of an IP address",
	Long: `Look up an IPv4 or IPv6 address. Successful searches are added to the
front of the recent searches.`,
	Example: `  geodash search 8.8.8.8
  geodash search 2001:4860:4860::8888`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runSearch(cmd.Context(), a, cmd.OutOrStdout(), args[0])
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Show your own location again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runReset(cmd.Context(), a, cmd.OutOrStdout())
	},
}

var mapCmd = &cobra.Command{
	Use:   "map [ip]",
	Short: "Print the OpenStreetMap link for a location",
	Long: `Print the embeddable OpenStreetMap link centred on your own location,
or on the given address.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ip := ""
		if len(args) == 1 {
			ip = args[0]
		}
		return runMap(cmd.Context(), a, cmd.OutOrStdout(), ip)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(mapCmd)
}

// loadOwn performs the self-lookup. A failure leaves the card loading.
func loadOwn(ctx context.Context, a *app) {
	if err := a.ctrl.Init(ctx); err != nil && !errors.Is(err, dashboard.ErrStale) {
		logger.Warn("could not load your location: %v", err)
	}
}

func runStatus(ctx context.Context, a *app, out io.Writer) error {
	if a.ctrl.User() == nil {
		dashboard.RenderLogin(out, a.ctrl.Snapshot())
		return nil
	}
	loadOwn(ctx, a)
	dashboard.RenderDashboard(out, a.ctrl.Snapshot())
	return nil
}

func runSearch(ctx context.Context, a *app, out io.Writer, input string) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	err := a.ctrl.Search(ctx, input)
	snap := a.ctrl.Snapshot()
	if err != nil {
		output.PrintError(out, "%s", snap.Error)
		return err
	}
	if snap.Current == nil {
		// Blank input
		return nil
	}
	dashboard.RenderCard(out, snap)
	return nil
}

func runReset(ctx context.Context, a *app, out io.Writer) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	loadOwn(ctx, a)
	a.ctrl.Reset()
	dashboard.RenderCard(out, a.ctrl.Snapshot())
	return nil
}

func runMap(ctx context.Context, a *app, out io.Writer, ip string) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	if ip == "" {
		loadOwn(ctx, a)
	} else if err := a.ctrl.Search(ctx, ip); err != nil {
		return err
	}

	url := a.ctrl.MapURL()
	if url == "" {
		return errors.New("no map available for this location")
	}
	fmt.Fprintln(out, url)
	return nil
}
