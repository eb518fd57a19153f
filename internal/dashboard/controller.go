// Package dashboard owns the state of the geolocation dashboard: the signed-in
// user, the original and displayed locations, the search history and the
// history selection.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/obentoo/geodash/internal/auth"
	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/geo"
	"github.com/obentoo/geodash/internal/history"
	"github.com/obentoo/geodash/internal/session"
)

// Messages shown to the user
const (
	MsgInvalidIP     = "Please enter a valid IP address (IPv4 or IPv6)."
	MsgLookupFailed  = "Could not retrieve data for this IP."
	MsgHistoryFailed = "Could not fetch history item."
	MsgLoginFailed   = "Login failed"
	MsgMissingFields = "Please enter all fields"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrLoginFailed wraps the message of a rejected login
	ErrLoginFailed = errors.New("login failed")
	// ErrInvalidIP is returned when a search input is not an IP address
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrLookupFailed is returned when the provider had no data
	ErrLookupFailed = errors.New("geolocation lookup failed")
	// ErrStale is returned when a newer lookup superseded this one
	ErrStale = errors.New("superseded by a newer request")
)

// Deps are the collaborators a Controller drives
type Deps struct {
	Auth    auth.Authenticator
	Geo     geo.Provider
	Session *session.Store
	History *history.Store
}

// Controller is the single writer of dashboard state. Its mutex is never
// held across a call to a collaborator.
type Controller struct {
	auth    auth.Authenticator
	geo     geo.Provider
	session *session.Store
	history *history.Store

	mu         sync.Mutex
	user       *auth.User
	original   *geo.GeoData
	current    *geo.GeoData
	input      string
	errMsg     string
	loginErr   string
	selected   map[string]bool
	searching  bool
	generation uint64
}

// New creates a controller and restores the persisted session and history.
// A restored session leaves the dashboard loading until Init runs.
func New(deps Deps) *Controller {
	c := &Controller{
		auth:     deps.Auth,
		geo:      deps.Geo,
		session:  deps.Session,
		history:  deps.History,
		selected: make(map[string]bool),
	}
	c.user = c.session.Restore()
	c.history.Restore()
	return c
}

// Init performs the self-lookup for a restored session. It does nothing
// when nobody is signed in or the original location is already known.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	if c.original != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.loadOwnLocation(ctx)
}

// Login authenticates and, on success, loads the user's own location.
// A rejected login leaves the dashboard signed out with LoginError set.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)

	c.mu.Lock()
	c.loginErr = ""
	c.mu.Unlock()

	if email == "" || password == "" {
		return c.failLogin(MsgMissingFields)
	}

	res := c.auth.Authenticate(ctx, email, password)
	if !res.Success || res.User == nil {
		msg := res.Message
		if msg == "" {
			msg = MsgLoginFailed
		}
		return c.failLogin(msg)
	}

	c.mu.Lock()
	c.user = res.User
	c.original = nil
	c.current = nil
	c.errMsg = ""
	c.mu.Unlock()

	if err := c.session.Save(res.User); err != nil {
		logger.Warn("session not persisted: %v", err)
	}
	logger.Debug("logged in as %s", res.User.Email)

	return c.loadOwnLocation(ctx)
}

func (c *Controller) failLogin(msg string) error {
	c.mu.Lock()
	c.loginErr = msg
	c.mu.Unlock()
	return fmt.Errorf("%w: %s", ErrLoginFailed, msg)
}

// loadOwnLocation fetches the caller's location and makes it both original
// and current. A nil result leaves the dashboard loading.
func (c *Controller) loadOwnLocation(ctx context.Context) error {
	gen := c.nextGeneration()

	data := c.geo.Lookup(ctx, "")

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		logger.Debug("dropping stale self-lookup response")
		return ErrStale
	}
	if data == nil {
		return ErrLookupFailed
	}
	if c.original == nil {
		c.original = data
	}
	c.current = data
	return nil
}

// nextGeneration issues the number identifying the newest lookup
func (c *Controller) nextGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// Search validates input and shows its location. Empty input is a no-op.
// Invalid input never reaches the provider. A failed lookup keeps the
// displayed location.
func (c *Controller) Search(ctx context.Context, input string) error {
	ip := strings.TrimSpace(input)

	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.input = input
	c.errMsg = ""
	if ip == "" {
		c.mu.Unlock()
		return nil
	}
	if !geo.ValidateIP(ip) {
		c.errMsg = MsgInvalidIP
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	c.searching = true
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	data := c.geo.Lookup(ctx, ip)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		logger.Debug("dropping stale response for %s", ip)
		return ErrStale
	}
	c.searching = false
	if data == nil {
		c.errMsg = MsgLookupFailed
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLookupFailed, ip)
	}
	c.current = data
	c.mu.Unlock()

	if _, err := c.history.Record(ip); err != nil {
		logger.Warn("search history not persisted: %v", err)
	}
	return nil
}

// ViewHistory shows the location of a history entry. The entry is neither
// re-validated nor re-recorded.
func (c *Controller) ViewHistory(ctx context.Context, ip string) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.input = ip
	c.errMsg = ""
	c.searching = true
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	data := c.geo.Lookup(ctx, ip)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		logger.Debug("dropping stale response for history entry %s", ip)
		return ErrStale
	}
	c.searching = false
	if data == nil {
		c.errMsg = MsgHistoryFailed
		return fmt.Errorf("%w: %s", ErrLookupFailed, ip)
	}
	c.current = data
	return nil
}

// CanReset reports whether a searched location is displayed instead of the
// user's own.
func (c *Controller) CanReset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canResetUnsafe()
}

func (c *Controller) canResetUnsafe() bool {
	return c.current != nil && c.original != nil && c.current.IP != c.original.IP
}

// Reset shows the user's own location again and clears the input.
// It reports whether anything changed.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.canResetUnsafe() {
		return false
	}
	c.current = c.original
	c.input = ""
	c.errMsg = ""
	return true
}

// Logout forgets the user and both locations. History and selection stay.
// Lookups still in flight are discarded when they complete.
func (c *Controller) Logout() error {
	c.mu.Lock()
	c.user = nil
	c.current = nil
	c.original = nil
	c.input = ""
	c.errMsg = ""
	c.searching = false
	c.generation++
	c.mu.Unlock()

	return c.session.Clear()
}

// ToggleSelection flips the selection of one history entry
func (c *Controller) ToggleSelection(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected[ip] {
		delete(c.selected, ip)
	} else {
		c.selected[ip] = true
	}
}

// SelectAll selects every history entry, or none
func (c *Controller) SelectAll(checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = make(map[string]bool)
	if !checked {
		return
	}
	for _, ip := range c.history.List() {
		c.selected[ip] = true
	}
}

// AllSelected reports whether the history is non-empty and fully selected
func (c *Controller) AllSelected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.history.Len()
	return n > 0 && len(c.selected) == n
}

// DeleteSelected removes the selected entries from the history and clears
// the selection. It returns the remaining history.
func (c *Controller) DeleteSelected() ([]string, error) {
	c.mu.Lock()
	selected := c.selected
	c.selected = make(map[string]bool)
	c.mu.Unlock()

	return c.history.DeleteMany(selected)
}

// User returns the signed-in user, or nil
func (c *Controller) User() *auth.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// MapURL returns the map link for the displayed location
func (c *Controller) MapURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return geo.MapURL(c.current.Loc)
}

// Snapshot copies the observable state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	selected := make(map[string]bool, len(c.selected))
	for ip := range c.selected {
		selected[ip] = true
	}

	s := Snapshot{
		User:       copyUser(c.user),
		Original:   copyGeo(c.original),
		Current:    copyGeo(c.current),
		Input:      c.input,
		Error:      c.errMsg,
		LoginError: c.loginErr,
		History:    c.history.List(),
		Selected:   selected,
		Searching:  c.searching,
		CanReset:   c.canResetUnsafe(),
	}
	if c.current != nil {
		s.MapURL = geo.MapURL(c.current.Loc)
	}
	return s
}

func copyUser(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func copyGeo(g *geo.GeoData) *geo.GeoData {
	if g == nil {
		return nil
	}
	cp := *g
	return &cp
}
