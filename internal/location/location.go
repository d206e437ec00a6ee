// Package location resolves a visiting user's position into the region and
// wastewater-site preselection used by the dashboard. The result is an
// explicit value object built once per request and passed down the
// pipeline, never ambient state.
package location

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jmtatsch/virus-radar/internal/geo"
)

// UserLocation describes where a request appears to come from. Fields are
// filled best-effort; Located reports whether a usable German position was
// found at all.
type UserLocation struct {
	City          string  `json:"city,omitempty"`
	CountryCode   string  `json:"country,omitempty"`
	Province      string  `json:"province,omitempty"`
	ProvinceShort string  `json:"provinceShort,omitempty"`
	Region        string  `json:"region,omitempty"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
	Located       bool    `json:"located"`
	Source        string  `json:"source,omitempty"` // "ip" or "client"
}

// Coordinate returns the location's position.
func (u UserLocation) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: u.Latitude, Longitude: u.Longitude}
}

// IPLocation is a raw lookup result from an IP geolocation service.
type IPLocation struct {
	City        string
	CountryCode string
	Province    string
	Latitude    float64
	Longitude   float64
}

// IPLocator abstracts the external IP geolocation service.
type IPLocator interface {
	Locate(ctx context.Context, ip string) (IPLocation, error)
}

// Resolver builds UserLocation values from request data.
type Resolver struct {
	ips   IPLocator
	index *geo.Index
}

// NewResolver creates a Resolver. ips may be nil when no IP geolocation
// service is configured; coordinate-based resolution still works.
func NewResolver(ips IPLocator, index *geo.Index) *Resolver {
	return &Resolver{ips: ips, index: index}
}

// FromCoordinate resolves a browser-supplied coordinate into a full
// UserLocation, deriving province and region via reverse geocoding.
func (r *Resolver) FromCoordinate(lat, lng float64) UserLocation {
	loc := UserLocation{
		Latitude:  lat,
		Longitude: lng,
		Located:   true,
		Source:    "client",
	}
	r.addProvince(&loc)
	r.addRegion(&loc)
	return loc
}

// FromRequestIP resolves the first hop of an X-Forwarded-For header through
// the IP geolocation service. Data only covers Germany, so positions
// outside DE degrade to an unlocated result and the caller falls back to
// default selections.
func (r *Resolver) FromRequestIP(ctx context.Context, forwardedFor string) UserLocation {
	ip, ok := FirstForwardedIP(forwardedFor)
	if !ok || r.ips == nil {
		return UserLocation{}
	}

	ipLoc, err := r.ips.Locate(ctx, ip)
	if err != nil {
		log.Warn().Str("ip", ip).Err(err).Msg("ip geolocation failed")
		return UserLocation{}
	}
	if !strings.EqualFold(ipLoc.CountryCode, "DE") {
		log.Debug().Str("country", ipLoc.CountryCode).Msg("visitor outside Germany, no preselection")
		return UserLocation{}
	}

	loc := UserLocation{
		City:        ipLoc.City,
		CountryCode: "DE",
		Province:    ipLoc.Province,
		Latitude:    ipLoc.Latitude,
		Longitude:   ipLoc.Longitude,
		Located:     true,
		Source:      "ip",
	}
	r.addProvince(&loc)
	r.addRegion(&loc)
	return loc
}

// addProvince fills the province via reverse geocoding when the lookup
// service did not supply one.
func (r *Resolver) addProvince(loc *UserLocation) {
	if loc.Province != "" || r.index == nil {
		return
	}
	place, ok := r.index.ReverseNearest(loc.Coordinate())
	if !ok || !strings.EqualFold(place.CountryCode, "DE") {
		return
	}
	short, ok := geo.ProvinceForAdmin1(place.Admin1Code)
	if !ok {
		return
	}
	loc.ProvinceShort = short
	if name, ok := geo.ProvinceNameForShort(short); ok {
		loc.Province = name
	}
}

// addRegion derives the short province code and survey region.
func (r *Resolver) addRegion(loc *UserLocation) {
	if loc.ProvinceShort == "" && loc.Province != "" {
		if short, ok := geo.ShortForProvince(loc.Province); ok {
			loc.ProvinceShort = short
		}
	}
	if loc.ProvinceShort != "" {
		if region, ok := geo.RegionForProvince(loc.ProvinceShort); ok {
			loc.Region = region
		}
	}
}

// FirstForwardedIP extracts the first (client) hop from an X-Forwarded-For
// header value like "13.51.91.225, 162.158.90.188".
func FirstForwardedIP(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	first := header
	if idx := strings.Index(header, ","); idx >= 0 {
		first = header[:idx]
	}
	first = strings.TrimSpace(first)
	return first, first != ""
}
