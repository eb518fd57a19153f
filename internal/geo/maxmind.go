package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/oschwald/geoip2-golang"

	"github.com/obentoo/geodash/internal/common/logger"
)

// ErrCityDBRequired is returned when no City database path is configured
var ErrCityDBRequired = errors.New("maxmind provider requires a City database")

// cityReader is the subset of *geoip2.Reader used for city lookups
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// asnReader is the subset of *geoip2.Reader used for ASN lookups
type asnReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
	Close() error
}

// MaxMindProvider resolves addresses offline from GeoLite2/GeoIP2 databases.
// Without network access it cannot discover the caller's own address, so a
// self-lookup resolves selfIP instead (or fails when none is configured).
type MaxMindProvider struct {
	city   cityReader
	asn    asnReader
	selfIP string
}

// OpenMaxMind opens the City database and, when asnPath is not empty, the ASN
// database used to fill the org field.
func OpenMaxMind(cityPath, asnPath, selfIP string) (*MaxMindProvider, error) {
	if cityPath == "" {
		return nil, ErrCityDBRequired
	}

	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}

	p := &MaxMindProvider{city: city, selfIP: selfIP}

	if asnPath != "" {
		asn, err := geoip2.Open(asnPath)
		if err != nil {
			city.Close()
			return nil, fmt.Errorf("failed to open ASN database: %w", err)
		}
		p.asn = asn
	}

	return p, nil
}

// Close releases the database readers
func (p *MaxMindProvider) Close() error {
	var errs []error
	if p.city != nil {
		errs = append(errs, p.city.Close())
	}
	if p.asn != nil {
		errs = append(errs, p.asn.Close())
	}
	return errors.Join(errs...)
}

func (p *MaxMindProvider) Lookup(ctx context.Context, ipAddress string) *GeoData {
	if ctx.Err() != nil {
		return nil
	}

	if ipAddress == "" {
		if p.selfIP == "" {
			logger.Debug("maxmind provider cannot resolve own address without geo.self_ip")
			return nil
		}
		ipAddress = p.selfIP
	}

	ip := net.ParseIP(stripZone(ipAddress))
	if ip == nil {
		logger.Debug("maxmind: invalid ip address %q", ipAddress)
		return nil
	}

	record, err := p.city.City(ip)
	if err != nil {
		logger.Debug("maxmind city lookup for %s failed: %v", ipAddress, err)
		return nil
	}

	data := &GeoData{
		IP:       ipAddress,
		City:     record.City.Names["en"],
		Country:  record.Country.IsoCode,
		Postal:   record.Postal.Code,
		Timezone: record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		data.Region = record.Subdivisions[0].Names["en"]
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		data.Loc = formatLoc(record.Location.Latitude, record.Location.Longitude)
	}

	if p.asn != nil {
		if asn, err := p.asn.ASN(ip); err == nil && asn.AutonomousSystemNumber != 0 {
			data.Org = fmt.Sprintf("AS%d %s", asn.AutonomousSystemNumber, asn.AutonomousSystemOrganization)
		}
	}

	return data
}

// formatLoc renders coordinates the way ipinfo.io does, four decimals
func formatLoc(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 4, 64) + "," + strconv.FormatFloat(lon, 'f', 4, 64)
}

// stripZone drops an IPv6 zone such as %eth0, which net.ParseIP rejects
func stripZone(ip string) string {
	for i := 0; i < len(ip); i++ {
		if ip[i] == '%' {
			return ip[:i]
		}
	}
	return ip
}
