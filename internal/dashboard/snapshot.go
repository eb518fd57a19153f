package dashboard

import (
	"github.com/obentoo/geodash/internal/auth"
	"github.com/obentoo/geodash/internal/geo"
)

// State is the dashboard state derived from the session and fetch status
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateReady
	StateSearching
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSearching:
		return "searching"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the dashboard state
type Snapshot struct {
	User       *auth.User
	Original   *geo.GeoData
	Current    *geo.GeoData
	Input      string
	Error      string
	LoginError string
	History    []string
	Selected   map[string]bool
	Searching  bool
	CanReset   bool
	MapURL     string
}

// State derives the dashboard state
func (s Snapshot) State() State {
	switch {
	case s.User == nil:
		return StateUnauthenticated
	case s.Searching:
		return StateSearching
	case s.Current == nil:
		return StateLoading
	default:
		return StateReady
	}
}

// Title is the heading of the location card
func (s Snapshot) Title() string {
	if s.Current == nil {
		return ""
	}
	if s.Original != nil && s.Current.IP == s.Original.IP {
		return "Your Current Location"
	}
	return "Location for " + s.Current.IP
}

// AllSelected reports whether the history is non-empty and fully selected
func (s Snapshot) AllSelected() bool {
	return len(s.History) > 0 && len(s.Selected) == len(s.History)
}

// SelectedCount returns the size of the selection set
func (s Snapshot) SelectedCount() int {
	return len(s.Selected)
}
