package geo

import (
	"sort"
)

// siteCountry restricts site-name resolution; all monitored treatment
// plants are German.
const siteCountry = "DE"

// Site is a monitored location from the surveillance data, identified by a
// free-text place name plus its Bundesland. It has no coordinate of its own
// until resolved through the index.
type Site struct {
	Name       string `json:"name"`
	Bundesland string `json:"bundesland"`
}

// ClosestSite returns the site nearest to the user's coordinate. Each
// distinct site name is resolved through the index with a German country
// filter; sites that do not resolve are skipped rather than failing the
// whole lookup. With zero resolvable sites it returns ok=false and the
// caller falls back to a default selection.
//
// Distance is squared planar lat/lon degrees with no geodesic correction.
// At country scale this is a known, accepted approximation carried over
// from the original system; do not "fix" it without a product decision.
func ClosestSite(sites []Site, user Coordinate, ix *Index) (Site, bool) {
	distinct := make(map[string]Site, len(sites))
	for _, s := range sites {
		if s.Name == "" {
			continue
		}
		if _, ok := distinct[s.Name]; !ok {
			distinct[s.Name] = s
		}
	}
	names := make([]string, 0, len(distinct))
	for name := range distinct {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		best     Site
		bestDist float64
		found    bool
	)
	for _, name := range names {
		coord, ok := ix.Resolve(name, siteCountry)
		if !ok {
			continue
		}
		dLat := coord.Latitude - user.Latitude
		dLng := coord.Longitude - user.Longitude
		dist := dLat*dLat + dLng*dLng
		if !found || dist < bestDist {
			best = distinct[name]
			bestDist = dist
			found = true
		}
	}
	return best, found
}

// DefaultSite returns the fallback selection when no site resolves: the
// first site name alphabetically.
func DefaultSite(sites []Site) (Site, bool) {
	var (
		best  Site
		found bool
	)
	for _, s := range sites {
		if s.Name == "" {
			continue
		}
		if !found || s.Name < best.Name {
			best = s
			found = true
		}
	}
	return best, found
}
