package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/obentoo/geodash/internal/auth"
	"github.com/obentoo/geodash/internal/common/config"
	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/dashboard"
	"github.com/obentoo/geodash/internal/geo"
	"github.com/obentoo/geodash/internal/history"
	"github.com/obentoo/geodash/internal/kv"
	"github.com/obentoo/geodash/internal/session"
)

var (
	// ErrNotInHistory is returned when a history reference matches no entry
	ErrNotInHistory = errors.New("not in search history")

	errNotLoggedIn = fmt.Errorf("%w: run 'geodash login' first", dashboard.ErrNotAuthenticated)
)

// app bundles the collaborators one command invocation works with
type app struct {
	cfg     *config.Config
	store   kv.Store
	geo     geo.Provider
	history *history.Store
	ctrl    *dashboard.Controller
}

// loadConfig reads --config or the default config file and applies its
// logging settings. Flags win over the file.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !verbose && !quiet && cfg.Log.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	if cfg.Log.File {
		if err := logger.Default().EnableFileLogging(); err != nil {
			logger.Warn("file logging disabled: %v", err)
		}
	}
	return cfg, nil
}

// openApp loads the configuration and wires the dashboard
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := geo.NewProvider(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("geo provider: %w", err)
	}

	return newApp(cfg, store, newAuthenticator(cfg), provider), nil
}

// newApp wires the controller to already built collaborators
func newApp(cfg *config.Config, store kv.Store, authenticator auth.Authenticator, provider geo.Provider) *app {
	hist := history.New(store)
	return &app{
		cfg:     cfg,
		store:   store,
		geo:     provider,
		history: hist,
		ctrl: dashboard.New(dashboard.Deps{
			Auth:    authenticator,
			Geo:     provider,
			Session: session.New(store),
			History: hist,
		}),
	}
}

// Close releases the provider and the state store
func (a *app) Close() {
	if err := geo.Close(a.geo); err != nil {
		logger.Warn("closing geo provider: %v", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("closing state store: %v", err)
	}
	logger.Default().Close()
}

// requireUser fails unless a session was restored or created
func (a *app) requireUser() error {
	if a.ctrl.User() == nil {
		return errNotLoggedIn
	}
	return nil
}

func openStore(cfg *config.Config) (kv.Store, error) {
	if ephemeral {
		return kv.NewMemoryStore(), nil
	}
	dir, err := cfg.StateDir()
	if err != nil {
		return nil, fmt.Errorf("state directory: %w", err)
	}
	store, err := kv.Open(cfg.State.Backend, dir)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	logger.Debug("state store %s at %s", cfg.State.Backend, dir)
	return store, nil
}

func newAuthenticator(cfg *config.Config) auth.Authenticator {
	var a auth.Authenticator = auth.NewHTTPAuthenticator(cfg.API.BaseURL, cfg.APITimeout())
	if cfg.API.DemoFallback {
		a = &auth.FallbackAuthenticator{Primary: a, Fallback: auth.DemoAuthenticator{}}
	}
	return a
}

// resolveEntry maps "#n", "n" or an address to a history entry
func resolveEntry(entries []string, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		if n < 1 || n > len(entries) {
			return "", fmt.Errorf("%w: #%d", ErrNotInHistory, n)
		}
		return entries[n-1], nil
	}
	for _, ip := range entries {
		if ip == ref {
			return ip, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotInHistory, ref)
}

// lineReader reads terminal input one line at a time
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(in io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(in)}
}

// ReadLine returns the next line without its terminator, or io.EOF once
// the input is exhausted
func (l *lineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Prompt writes label and reads the answer
func (l *lineReader) Prompt(w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	return l.ReadLine()
}
