package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"

	"github.com/obentoo/geodash/internal/auth"
	"github.com/obentoo/geodash/internal/common/config"
	"github.com/obentoo/geodash/internal/common/output"
	"github.com/obentoo/geodash/internal/dashboard"
	"github.com/obentoo/geodash/internal/geo"
	"github.com/obentoo/geodash/internal/kv"
	"github.com/obentoo/geodash/internal/session"
)

// stubGeo answers from a fixed table and records what it was asked
type stubGeo struct {
	mu      sync.Mutex
	records map[string]geo.GeoData
	calls   []string
}

func newStubGeo() *stubGeo {
	return &stubGeo{records: map[string]geo.GeoData{
		"":        {IP: "203.0.113.7", City: "Lisbon", Country: "PT", Loc: "38.7167,-9.1333"},
		"8.8.8.8": {IP: "8.8.8.8", City: "Mountain View", Country: "US", Loc: "37.4056,-122.0775"},
		"1.1.1.1": {IP: "1.1.1.1", City: "Brisbane", Country: "AU", Loc: "-27.4679,153.0281"},
	}}
}

func (s *stubGeo) Lookup(_ context.Context, ip string) *geo.GeoData {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ip)
	d, ok := s.records[ip]
	if !ok {
		return nil
	}
	return &d
}

func (s *stubGeo) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestApp(t *testing.T, provider geo.Provider) *app {
	t.Helper()
	output.NoColor()
	return newApp(config.Default(), kv.NewMemoryStore(), auth.DemoAuthenticator{}, provider)
}

func loggedInApp(t *testing.T, provider geo.Provider) *app {
	t.Helper()
	a := newTestApp(t, provider)
	if err := runLogin(context.Background(), a, strings.NewReader(""), new(bytes.Buffer),
		auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	return a
}

// =============================================================================
// Command registration
// =============================================================================

func TestCommandsRegistered(t *testing.T) {
	want := []string{"login", "logout", "status", "search", "reset", "map", "history", "shell", "serve", "version", "completion"}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("%s command should be registered", name)
		}
	}
}

func TestHistorySubcommands(t *testing.T) {
	registered := make(map[string]bool)
	for _, cmd := range historyCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range []string{"view", "delete"} {
		if !registered[name] {
			t.Errorf("history %s subcommand should exist", name)
		}
	}
	if historyDeleteCmd.Flags().Lookup("all") == nil {
		t.Error("history delete should have --all flag")
	}
}

func TestGlobalFlags(t *testing.T) {
	for _, name := range []string{"verbose", "quiet", "no-color", "config", "ephemeral"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("root command should have --%s flag", name)
		}
	}
	if f := rootCmd.PersistentFlags().ShorthandLookup("v"); f == nil || f.Name != "verbose" {
		t.Error("-v should be the shorthand for --verbose")
	}
}

func TestCommandFlags(t *testing.T) {
	for _, name := range []string{"email", "password"} {
		if loginCmd.Flags().Lookup(name) == nil {
			t.Errorf("login command should have --%s flag", name)
		}
	}
	for _, name := range []string{"addr", "users"} {
		if serveCmd.Flags().Lookup(name) == nil {
			t.Errorf("serve command should have --%s flag", name)
		}
	}
}

func TestCommandDescriptions(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Short == "" {
			t.Errorf("%s command should have a short description", cmd.Name())
		}
		if cmd.Run == nil && cmd.RunE == nil {
			t.Errorf("%s command should have a Run function", cmd.Name())
		}
	}
}

func TestSearchRequiresOneArgument(t *testing.T) {
	if err := searchCmd.Args(searchCmd, nil); err == nil {
		t.Error("search without an address should be rejected")
	}
	if err := searchCmd.Args(searchCmd, []string{"8.8.8.8", "1.1.1.1"}); err == nil {
		t.Error("search with two addresses should be rejected")
	}
}

func TestCompletionOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	completionCmd.SetOut(buf)
	defer completionCmd.SetOut(nil)

	if err := completionCmd.RunE(completionCmd, []string{"bash"}); err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(buf.String(), "geodash") {
		t.Error("bash completion should mention the program name")
	}
}

// =============================================================================
// Login / logout
// =============================================================================

func TestRunLoginPromptsForMissingValues(t *testing.T) {
	a := newTestApp(t, newStubGeo())
	out := new(bytes.Buffer)

	err := runLogin(context.Background(), a, strings.NewReader(auth.DemoEmail+"\n"+auth.DemoPassword+"\n"), out, "", "")
	if err != nil {
		t.Fatalf("runLogin: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Email: ", "Password: ", "Logged in as Admin User Test", "Your Current Location", "203.0.113.7"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if u := session.New(a.store).Restore(); u == nil || u.Email != auth.DemoEmail {
		t.Errorf("session not persisted: %+v", u)
	}
}

func TestRunLoginRejected(t *testing.T) {
	a := newTestApp(t, newStubGeo())
	out := new(bytes.Buffer)

	err := runLogin(context.Background(), a, strings.NewReader(""), out, auth.DemoEmail, "wrong")
	if !errors.Is(err, dashboard.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if !strings.Contains(out.String(), auth.MsgInvalidCredentials) {
		t.Errorf("login screen should show the rejection:\n%s", out.String())
	}
	if a.ctrl.User() != nil {
		t.Error("rejected login should leave nobody signed in")
	}
}

func TestRunLoginEmptyInput(t *testing.T) {
	stub := newStubGeo()
	a := newTestApp(t, stub)
	out := new(bytes.Buffer)

	err := runLogin(context.Background(), a, strings.NewReader(""), out, "", "")
	if !errors.Is(err, dashboard.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if !strings.Contains(out.String(), dashboard.MsgMissingFields) {
		t.Errorf("expected %q in:\n%s", dashboard.MsgMissingFields, out.String())
	}
	if stub.callCount() != 0 {
		t.Error("no lookup should happen without a login")
	}
}

func TestRunLogoutKeepsHistory(t *testing.T) {
	a := loggedInApp(t, newStubGeo())
	if err := runSearch(context.Background(), a, new(bytes.Buffer), "8.8.8.8"); err != nil {
		t.Fatalf("search: %v", err)
	}

	out := new(bytes.Buffer)
	if err := runLogout(a, out); err != nil {
		t.Fatalf("runLogout: %v", err)
	}
	if !strings.Contains(out.String(), "Logged out") {
		t.Errorf("unexpected output %q", out.String())
	}
	if _, ok := a.store.Get(session.Key); ok {
		t.Error("session key should be removed")
	}
	if got := a.history.List(); len(got) != 1 || got[0] != "8.8.8.8" {
		t.Errorf("history should survive logout, got %v", got)
	}

	out.Reset()
	if err := runLogout(a, out); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if !strings.Contains(out.String(), "Not logged in") {
		t.Errorf("unexpected output %q", out.String())
	}
}

// =============================================================================
// Dashboard commands
// =============================================================================

func TestCommandsRequireLogin(t *testing.T) {
	a := newTestApp(t, newStubGeo())
	ctx := context.Background()
	out := new(bytes.Buffer)

	checks := map[string]error{
		"search":         runSearch(ctx, a, out, "8.8.8.8"),
		"reset":          runReset(ctx, a, out),
		"map":            runMap(ctx, a, out, ""),
		"history":        runHistoryList(a, out),
		"history view":   runHistoryView(ctx, a, out, "#1"),
		"history delete": runHistoryDelete(a, out, nil, true),
	}
	for name, err := range checks {
		if !errors.Is(err, dashboard.ErrNotAuthenticated) {
			t.Errorf("%s: expected ErrNotAuthenticated, got %v", name, err)
		}
	}
}

func TestRunStatusSignedOutShowsLogin(t *testing.T) {
	a := newTestApp(t, newStubGeo())
	out := new(bytes.Buffer)

	if err := runStatus(context.Background(), a, out); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	if !strings.Contains(out.String(), "Welcome Back") {
		t.Errorf("expected login screen:\n%s", out.String())
	}
}

func TestRunStatusRestoredSession(t *testing.T) {
	stub := newStubGeo()
	store := kv.NewMemoryStore()
	if err := session.New(store).Save(&auth.User{ID: "1", Email: auth.DemoEmail, Name: auth.DemoName}); err != nil {
		t.Fatal(err)
	}
	output.NoColor()
	a := newApp(config.Default(), store, auth.DemoAuthenticator{}, stub)

	out := new(bytes.Buffer)
	if err := runStatus(context.Background(), a, out); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Logged in as admin@test.com", "Your Current Location", "Lisbon"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunSearch(t *testing.T) {
	stub := newStubGeo()
	a := loggedInApp(t, stub)
	out := new(bytes.Buffer)

	if err := runSearch(context.Background(), a, out, " 8.8.8.8 "); err != nil {
		t.Fatalf("runSearch: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Location for 8.8.8.8") || !strings.Contains(got, "Mountain View") {
		t.Errorf("unexpected card:\n%s", got)
	}
	if h := a.history.List(); len(h) != 1 || h[0] != "8.8.8.8" {
		t.Errorf("history = %v", h)
	}
}

func TestRunSearchInvalidIP(t *testing.T) {
	stub := newStubGeo()
	a := loggedInApp(t, stub)
	before := stub.callCount()
	out := new(bytes.Buffer)

	err := runSearch(context.Background(), a, out, "999.1.1.1")
	if !errors.Is(err, dashboard.ErrInvalidIP) {
		t.Fatalf("expected ErrInvalidIP, got %v", err)
	}
	if !strings.Contains(out.String(), dashboard.MsgInvalidIP) {
		t.Errorf("expected validation message in %q", out.String())
	}
	if stub.callCount() != before {
		t.Error("invalid input must not reach the provider")
	}
	if a.history.Len() != 0 {
		t.Error("invalid input must not be recorded")
	}
}

func TestRunSearchLookupFailure(t *testing.T) {
	a := loggedInApp(t, newStubGeo())
	out := new(bytes.Buffer)

	err := runSearch(context.Background(), a, out, "9.9.9.9")
	if !errors.Is(err, dashboard.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
	if !strings.Contains(out.String(), dashboard.MsgLookupFailed) {
		t.Errorf("expected lookup message in %q", out.String())
	}
	if a.history.Len() != 0 {
		t.Error("failed lookups must not be recorded")
	}
}

func TestRunReset(t *testing.T) {
	a := loggedInApp(t, newStubGeo())
	ctx := context.Background()
	if err := runSearch(ctx, a, new(bytes.Buffer), "1.1.1.1"); err != nil {
		t.Fatal(err)
	}

	out := new(bytes.Buffer)
	if err := runReset(ctx, a, out); err != nil {
		t.Fatalf("runReset: %v", err)
	}
	if !strings.Contains(out.String(), "Your Current Location") {
		t.Errorf("reset should show the own location:\n%s", out.String())
	}
}

func TestRunMap(t *testing.T) {
	a := loggedInApp(t, newStubGeo())
	ctx := context.Background()
	out := new(bytes.Buffer)

	if err := runMap(ctx, a, out, ""); err != nil {
		t.Fatalf("runMap: %v", err)
	}
	want := geo.MapURL("38.7167,-9.1333")
	if strings.TrimSpace(out.String()) != want {
		t.Errorf("map url = %q, want %q", out.String(), want)
	}

	out.Reset()
	if err := runMap(ctx, a, out, "8.8.8.8"); err != nil {
		t.Fatalf("runMap 8.8.8.8: %v", err)
	}
	if strings.TrimSpace(out.String()) != geo.MapURL("37.4056,-122.0775") {
		t.Errorf("map url for 8.8.8.8 = %q", out.String())
	}

	if err := runMap(ctx, a, out, "not-an-ip"); !errors.Is(err, dashboard.ErrInvalidIP) {
		t.Errorf("expected ErrInvalidIP, got %v", err)
	}
}

// =============================================================================
// History commands
// =============================================================================

func TestRunHistoryViewAndDelete(t *testing.T) {
	a := loggedInApp(t, newStubGeo())
	ctx := context.Background()
	for _, ip := range []string{"8.8.8.8", "1.1.1.1"} {
		if err := runSearch(ctx, a, new(bytes.Buffer), ip); err != nil {
			t.Fatal(err)
		}
	}

	out := new(bytes.Buffer)
	if err := runHistoryList(a, out); err != nil {
		t.Fatalf("runHistoryList: %v", err)
	}
	if !strings.Contains(out.String(), "Recent Searches") {
		t.Errorf("unexpected list output:\n%s", out.String())
	}

	out.Reset()
	if err := runHistoryView(ctx, a, out, "#2"); err != nil {
		t.Fatalf("runHistoryView: %v", err)
	}
	if !strings.Contains(out.String(), "Location for 8.8.8.8") {
		t.Errorf("#2 should be the older search:\n%s", out.String())
	}
	if h := a.history.List(); h[0] != "1.1.1.1" {
		t.Errorf("viewing must not reorder history: %v", h)
	}

	if err := runHistoryView(ctx, a, out, "4.4.4.4"); !errors.Is(err, ErrNotInHistory) {
		t.Errorf("expected ErrNotInHistory, got %v", err)
	}

	out.Reset()
	if err := runHistoryDelete(a, out, []string{"8.8.8.8"}, false); err != nil {
		t.Fatalf("runHistoryDelete: %v", err)
	}
	if h := a.history.List(); len(h) != 1 || h[0] != "1.1.1.1" {
		t.Errorf("history after delete = %v", h)
	}
	if !strings.Contains(out.String(), "Removed 1 entries, 1 left") {
		t.Errorf("unexpected delete output %q", out.String())
	}

	if err := runHistoryDelete(a, out, nil, true); err != nil {
		t.Fatalf("runHistoryDelete --all: %v", err)
	}
	if a.history.Len() != 0 {
		t.Errorf("history should be empty, got %v", a.history.List())
	}

	out.Reset()
	if err := runHistoryList(a, out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No recent searches") {
		t.Errorf("unexpected empty list output %q", out.String())
	}
}

func TestRunHistoryViewLookupFailure(t *testing.T) {
	stub := newStubGeo()
	a := loggedInApp(t, stub)
	ctx := context.Background()
	if err := runSearch(ctx, a, new(bytes.Buffer), "8.8.8.8"); err != nil {
		t.Fatal(err)
	}
	stub.mu.Lock()
	delete(stub.records, "8.8.8.8")
	stub.mu.Unlock()

	out := new(bytes.Buffer)
	if err := runHistoryView(ctx, a, out, "#1"); !errors.Is(err, dashboard.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
	if got := out.String(); got != "✗ "+dashboard.MsgHistoryFailed+"\n" {
		t.Errorf("unexpected failure output %q", got)
	}
}

func TestResolveEntry(t *testing.T) {
	entries := []string{"1.1.1.1", "8.8.8.8", "2001:db8::1"}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"#1", "1.1.1.1", false},
		{"2", "8.8.8.8", false},
		{"2001:db8::1", "2001:db8::1", false},
		{" 8.8.8.8 ", "8.8.8.8", false},
		{"#0", "", true},
		{"#4", "", true},
		{"9.9.9.9", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveEntry(entries, tt.ref)
			if tt.wantErr {
				if !errors.Is(err, ErrNotInHistory) {
					t.Errorf("expected ErrNotInHistory, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("resolveEntry(%q) = %q, %v; want %q", tt.ref, got, err, tt.want)
			}
		})
	}
}

// TestResolveEntryProperty checks that "#n" and the address itself name the
// same entry
func TestResolveEntryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genIPv4 := gopter.CombineGens(
		gen.IntRange(0, 255), gen.IntRange(0, 255), gen.IntRange(0, 255), gen.IntRange(0, 255),
	).Map(func(v []interface{}) string {
		return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
	})

	properties.Property("index and address resolve to the same entry", prop.ForAll(
		func(ips []string, pick int) bool {
			entries := dedupeForTest(ips)
			if len(entries) == 0 {
				return true
			}
			i := pick % len(entries)

			byIndex, err := resolveEntry(entries, fmt.Sprintf("#%d", i+1))
			if err != nil {
				return false
			}
			byAddr, err := resolveEntry(entries, entries[i])
			return err == nil && byIndex == byAddr && byAddr == entries[i]
		},
		gen.SliceOf(genIPv4),
		gen.IntRange(0, 1000),
	))

	properties.Property("out of range indexes are rejected", prop.ForAll(
		func(ips []string, extra int) bool {
			entries := dedupeForTest(ips)
			_, err := resolveEntry(entries, fmt.Sprintf("#%d", len(entries)+1+extra))
			return errors.Is(err, ErrNotInHistory)
		},
		gen.SliceOf(genIPv4),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func dedupeForTest(ips []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ip := range ips {
		if !seen[ip] {
			seen[ip] = true
			out = append(out, ip)
		}
	}
	return out
}

// =============================================================================
// Serve
// =============================================================================

func TestOpenRepositorySeedsDemoAccounts(t *testing.T) {
	cfg := config.Default()

	repo, err := openRepository(context.Background(), cfg, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("openRepository: %v", err)
	}
	defer repo.Close()

	u, err := repo.FindByEmail(context.Background(), "jack@test.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if !u.CheckPassword("123456789") {
		t.Error("seeded password should verify")
	}
}

func TestOpenRepositoryFromUsersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.toml")
	content := "[[users]]\nname = \"Ops\"\nemail = \"ops@example.com\"\npassword = \"s3cret\"\nrole = \"admin\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Server.UsersFile = path

	repo, err := openRepository(context.Background(), cfg, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("openRepository: %v", err)
	}
	defer repo.Close()

	if _, err := repo.FindByEmail(context.Background(), "ops@example.com"); err != nil {
		t.Errorf("user from file not seeded: %v", err)
	}
	if _, err := repo.FindByEmail(context.Background(), "admin@test.com"); err == nil {
		t.Error("demo accounts should not be seeded when a users file is set")
	}
}

func TestRunServeStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.Metrics = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runServe(ctx, cfg, bcrypt.MinCost); err != nil {
		t.Errorf("runServe with cancelled context: %v", err)
	}
}
