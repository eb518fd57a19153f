package dashboard

import (
	"fmt"
	"io"

	"github.com/obentoo/geodash/internal/common/output"
)

// RenderLogin writes the sign-in screen
func RenderLogin(w io.Writer, s Snapshot) {
	lines := []string{
		"Sign in to view your location dashboard.",
		output.Sprint(output.Dim, "Demo account: admin@test.com / 123456789"),
	}
	if s.LoginError != "" {
		lines = append(lines, "", output.Sprint(output.Error, "✗ "+s.LoginError))
	}
	output.Box(w, "Welcome Back", lines)
}

// RenderDashboard writes the dashboard screen: header, location card,
// search status and the recent-searches table.
func RenderDashboard(w io.Writer, s Snapshot) {
	if s.User == nil {
		RenderLogin(w, s)
		return
	}

	fmt.Fprintf(w, "%s  Logged in as %s\n\n",
		output.Sprint(output.Header, "Dashboard"), output.Sprint(output.Accent, s.User.Email))

	RenderCard(w, s)

	if s.Searching {
		fmt.Fprintln(w, output.Sprint(output.Dim, "Searching..."))
	}
	if s.Error != "" {
		fmt.Fprintln(w, output.Sprint(output.Error, "✗ "+s.Error))
	}
	if s.CanReset {
		fmt.Fprintln(w, output.Sprint(output.Info, "↺ Reset to my location"))
	}

	RenderHistory(w, s)
}

// RenderCard writes the location card, or the loading placeholder
func RenderCard(w io.Writer, s Snapshot) {
	if s.Current == nil {
		output.Box(w, "Location", []string{output.Sprint(output.Dim, "Loading geolocation data...")})
		return
	}

	g := s.Current
	lines := []string{
		output.Field("IP Address", output.Sprint(output.Mono, g.IP)),
		output.Field("City", g.City),
		output.Field("Region", g.Region),
		output.Field("Country", g.Country),
		output.Field("Coordinates", g.Loc),
		output.Field("Org", g.Org),
		output.Field("Postal", g.Postal),
		output.Field("Timezone", g.Timezone),
	}
	if s.MapURL != "" {
		lines = append(lines, "", output.Field("Map", s.MapURL))
	}
	output.Box(w, s.Title(), lines)
}

// RenderHistory writes the recent-searches table. Nothing is written for an
// empty history.
func RenderHistory(w io.Writer, s Snapshot) {
	if len(s.History) == 0 {
		return
	}

	header := output.Sprint(output.Header, "Recent Searches")
	if n := s.SelectedCount(); n > 0 {
		header += "  " + output.Sprint(output.Error, fmt.Sprintf("Delete Selected (%d)", n))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "  %s  %s\n", output.Checkbox(s.AllSelected()), output.Sprint(output.Label, "IP ADDRESS"))
	for i, ip := range s.History {
		fmt.Fprintf(w, "  %s  %-39s %s\n", output.Checkbox(s.Selected[ip]), ip, output.Sprint(output.Dim, fmt.Sprintf("#%d", i+1)))
	}
}
