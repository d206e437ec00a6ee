package geo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/golang/geo/s2"
)

// ErrDataUnavailable indicates the reference geocoding table could not be
// loaded. This is fatal to index construction and should propagate to the
// caller as a startup failure.
var ErrDataUnavailable = errors.New("geo: reference dataset unavailable")

// Coordinate is a latitude/longitude pair in float degrees. No range
// validation is performed here; callers own their inputs.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place is one record of the GeoNames cities1000 table. Immutable after load.
type Place struct {
	Name           string
	ASCIIName      string
	AlternateNames string // comma-separated, as stored upstream
	CountryCode    string
	Admin1Code     string
	Latitude       float64
	Longitude      float64
	Population     int64
}

// Coordinate returns the place's position.
func (p Place) Coordinate() Coordinate {
	return Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
}

// geonamesFieldCount is the fixed column count of the cities1000 dump:
// geonameid, name, asciiname, alternatenames, latitude, longitude,
// feature class, feature code, country code, cc2, admin1-4 codes,
// population, elevation, dem, timezone, modification date.
const geonamesFieldCount = 19

// maxFuzzyDistance caps the optional Levenshtein stage so a typo-tolerant
// lookup cannot degenerate into matching everything.
const maxFuzzyDistance = 3

// Index is an in-memory city gazetteer. It is never mutated after Load and
// is safe for concurrent resolution calls.
type Index struct {
	places  []Place
	byName  map[string][]int
	byASCII map[string][]int
	cells   map[s2.CellID][]int
}

// LoadFile loads a cities1000-format table from disk.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDataUnavailable, path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a tab-delimited, headerless cities1000 table into an Index.
// Rows with unparseable coordinates or an empty name are skipped; an input
// yielding zero places is treated as unavailable rather than as an empty
// but valid gazetteer.
func Load(r io.Reader) (*Index, error) {
	ix := &Index{
		byName:  make(map[string][]int),
		byASCII: make(map[string][]int),
	}

	scanner := bufio.NewScanner(r)
	// Alternate-name lists for large cities run to several kilobytes.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), "\t", geonamesFieldCount)
		if len(fields) != geonamesFieldCount {
			continue
		}

		lat, errLat := strconv.ParseFloat(fields[4], 64)
		lng, errLng := strconv.ParseFloat(fields[5], 64)
		if errLat != nil || errLng != nil {
			continue
		}
		pop, _ := strconv.ParseInt(fields[14], 10, 64) // population 0 means unknown

		p := Place{
			Name:           strings.TrimSpace(fields[1]),
			ASCIIName:      strings.TrimSpace(fields[2]),
			AlternateNames: fields[3],
			CountryCode:    fields[8],
			Admin1Code:     fields[10],
			Latitude:       lat,
			Longitude:      lng,
			Population:     pop,
		}
		if p.Name == "" {
			continue
		}

		i := len(ix.places)
		ix.places = append(ix.places, p)
		ix.byName[strings.ToLower(p.Name)] = append(ix.byName[strings.ToLower(p.Name)], i)
		if p.ASCIIName != "" {
			ix.byASCII[strings.ToLower(p.ASCIIName)] = append(ix.byASCII[strings.ToLower(p.ASCIIName)], i)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading table: %v", ErrDataUnavailable, err)
	}
	if len(ix.places) == 0 {
		return nil, fmt.Errorf("%w: no usable rows", ErrDataUnavailable)
	}

	ix.buildCellIndex()
	return ix, nil
}

// Len returns the number of loaded places.
func (ix *Index) Len() int {
	return len(ix.places)
}

// ResolveOptions tunes city resolution.
type ResolveOptions struct {
	// MaxFuzzyDistance enables a Levenshtein stage on name and asciiname
	// after the exact and alternate-name stages miss. 0 disables it.
	MaxFuzzyDistance int
}

// Resolve maps a city name, optionally restricted to a 2-letter country
// code, to its coordinate. Matching stages: exact name, exact asciiname,
// case-insensitive substring over alternate names. When several candidates
// survive a stage the most populous wins, ties going to table order.
// A miss returns ok=false; it is a normal outcome, not an error.
func (ix *Index) Resolve(city, country string) (Coordinate, bool) {
	return ix.ResolveOpts(city, country, ResolveOptions{})
}

// ResolveOpts is Resolve with explicit options.
func (ix *Index) ResolveOpts(city, country string, opts ResolveOptions) (Coordinate, bool) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Coordinate{}, false
	}
	key := strings.ToLower(city)

	if i, ok := ix.best(ix.byName[key], country); ok {
		return ix.places[i].Coordinate(), true
	}
	if i, ok := ix.best(ix.byASCII[key], country); ok {
		return ix.places[i].Coordinate(), true
	}
	if i, ok := ix.best(ix.alternateNameMatches(key, country), country); ok {
		return ix.places[i].Coordinate(), true
	}

	if opts.MaxFuzzyDistance > 0 {
		dist := opts.MaxFuzzyDistance
		if dist > maxFuzzyDistance {
			dist = maxFuzzyDistance
		}
		if i, ok := ix.best(ix.fuzzyMatches(key, country, dist), country); ok {
			return ix.places[i].Coordinate(), true
		}
	}
	return Coordinate{}, false
}

// best picks the surviving candidate: country filter first, then highest
// population, ties broken by lowest table index.
func (ix *Index) best(candidates []int, country string) (int, bool) {
	sorted := make([]int, len(candidates))
	copy(sorted, candidates)
	sort.Ints(sorted)

	best := -1
	for _, i := range sorted {
		if country != "" && !strings.EqualFold(ix.places[i].CountryCode, country) {
			continue
		}
		if best < 0 || ix.places[i].Population > ix.places[best].Population {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// alternateNameMatches scans the table for places whose alternate-name list
// contains the query as a substring, mirroring the upstream lookup order.
func (ix *Index) alternateNameMatches(key, country string) []int {
	var matches []int
	for i, p := range ix.places {
		if country != "" && !strings.EqualFold(p.CountryCode, country) {
			continue
		}
		if p.AlternateNames == "" {
			continue
		}
		if strings.Contains(strings.ToLower(p.AlternateNames), key) {
			matches = append(matches, i)
		}
	}
	return matches
}

// fuzzyMatches collects places whose name or asciiname is within the given
// edit distance of the query.
func (ix *Index) fuzzyMatches(key, country string, dist int) []int {
	var matches []int
	for i, p := range ix.places {
		if country != "" && !strings.EqualFold(p.CountryCode, country) {
			continue
		}
		if levenshtein.ComputeDistance(key, strings.ToLower(p.Name)) <= dist {
			matches = append(matches, i)
			continue
		}
		if p.ASCIIName != "" && levenshtein.ComputeDistance(key, strings.ToLower(p.ASCIIName)) <= dist {
			matches = append(matches, i)
		}
	}
	return matches
}
