package geo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/obentoo/geodash/internal/common/httpclient"
	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/common/version"
)

// DefaultIPInfoURL is the public ipinfo.io endpoint
const DefaultIPInfoURL = "https://ipinfo.io"

// maxResponseSize caps how much of a lookup response is read
const maxResponseSize = 1 << 20

// IPInfoProvider looks addresses up through the ipinfo.io HTTP API.
type IPInfoProvider struct {
	baseURL string
	client  *httpclient.Client
}

// NewIPInfoProvider creates a provider for baseURL. token may reference an
// environment variable as ${IPINFO_TOKEN}; an empty token sends no
// Authorization header.
func NewIPInfoProvider(baseURL, token string, timeout time.Duration) *IPInfoProvider {
	if baseURL == "" {
		baseURL = DefaultIPInfoURL
	}

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": version.UserAgent(),
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	client := httpclient.NewWithTimeout(timeout)
	client.SetDefaultHeaders(headers)

	return &IPInfoProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// SetHTTPClient replaces the underlying client (useful for testing).
// Default headers must be set on c by the caller.
func (p *IPInfoProvider) SetHTTPClient(c *httpclient.Client) {
	p.client = c
}

// lookupURL returns <base>/<ip>/geo, or <base>/geo for a self-lookup
func (p *IPInfoProvider) lookupURL(ip string) string {
	if ip == "" {
		return p.baseURL + "/geo"
	}
	return p.baseURL + "/" + url.PathEscape(ip) + "/geo"
}

func (p *IPInfoProvider) Lookup(ctx context.Context, ip string) *GeoData {
	target := p.lookupURL(ip)

	resp, err := p.client.Get(ctx, target, nil)
	if err != nil {
		logger.Debug("geolocation request for %q failed: %v", ip, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("geolocation request for %q returned status %d", ip, resp.StatusCode)
		return nil
	}

	var data GeoData
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&data); err != nil {
		logger.Debug("failed to decode geolocation response: %v", err)
		return nil
	}

	if !data.Usable() {
		logger.Debug("geolocation response for %q has neither ip nor city", ip)
		return nil
	}

	return &data
}
