// Package geo looks up IP geolocation records and derives map links from them.
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/obentoo/geodash/internal/common/config"
)

// ErrUnknownProvider is returned by NewProvider for an unrecognised provider
var ErrUnknownProvider = errors.New("unknown geo provider")

// GeoData is a location record in the ipinfo.io shape.
// Loc holds "lat,lon".
type GeoData struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
}

// Usable reports whether the record carries at least an IP or a city
func (g *GeoData) Usable() bool {
	return g != nil && (g.IP != "" || g.City != "")
}

// Provider resolves an IP to a location. An empty ip means the caller's own
// address. A nil result is the only failure signal.
type Provider interface {
	Lookup(ctx context.Context, ip string) *GeoData
}

// NewProvider builds the provider selected by cfg.Geo.Provider.
// Providers holding resources implement io.Closer.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Geo.Provider {
	case "", "ipinfo":
		return NewIPInfoProvider(cfg.Geo.BaseURL, cfg.Geo.Token, cfg.GeoTimeout()), nil
	case "maxmind":
		cityDB, err := config.ExpandHome(cfg.Geo.CityDB)
		if err != nil {
			return nil, err
		}
		asnDB, err := config.ExpandHome(cfg.Geo.ASNDB)
		if err != nil {
			return nil, err
		}
		return OpenMaxMind(cityDB, asnDB, cfg.Geo.SelfIP)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Geo.Provider)
	}
}

// Close releases p if it holds resources
func Close(p Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
