package services

import (
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// CountryResolver maps an IP address to an ISO 3166-1 alpha-2 country code
type CountryResolver interface {
	CountryCode(ip string) (string, bool)
}

// GeoIPResolver resolves countries from a MaxMind database
type GeoIPResolver struct {
	reader *geoip2.Reader
}

// OpenGeoIPResolver opens the database at path
func OpenGeoIPResolver(path string) (*GeoIPResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIPResolver{reader: reader}, nil
}

// CountryCode accepts a single IP or an X-Forwarded-For style list and uses its first entry
func (g *GeoIPResolver) CountryCode(raw string) (string, bool) {
	if g == nil || g.reader == nil {
		return "", false
	}
	ip := net.ParseIP(firstForwardedIP(raw))
	if ip == nil {
		return "", false
	}
	record, err := g.reader.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return "", false
	}
	return strings.ToUpper(record.Country.IsoCode), true
}

func (g *GeoIPResolver) Close() error {
	if g == nil || g.reader == nil {
		return nil
	}
	return g.reader.Close()
}

func firstForwardedIP(raw string) string {
	first, _, _ := strings.Cut(raw, ",")
	return strings.TrimSpace(first)
}
