package geo

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geonamesLine builds one row of the 19-column cities1000 format.
func geonamesLine(name, ascii, alt, country, admin1 string, lat, lng float64, pop int64) string {
	fields := make([]string, geonamesFieldCount)
	fields[0] = "1"
	fields[1] = name
	fields[2] = ascii
	fields[3] = alt
	fields[4] = strconv.FormatFloat(lat, 'f', -1, 64)
	fields[5] = strconv.FormatFloat(lng, 'f', -1, 64)
	fields[6] = "P"
	fields[7] = "PPL"
	fields[8] = country
	fields[10] = admin1
	fields[14] = strconv.FormatInt(pop, 10)
	fields[17] = "Europe/Berlin"
	fields[18] = "2024-01-01"
	return strings.Join(fields, "\t")
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	lines := []string{
		geonamesLine("Berlin", "Berlin", "Berlin,Berlino", "DE", "16", 52.5244, 13.4105, 3426354),
		geonamesLine("München", "Munchen", "Munich,Muenchen,Monaco di Baviera", "DE", "02", 48.1374, 11.5755, 1260391),
		geonamesLine("Hamburg", "Hamburg", "", "DE", "04", 53.5507, 9.993, 1739117),
		geonamesLine("Neustadt", "Neustadt", "", "DE", "08", 49.35, 8.15, 53892),
		geonamesLine("Neustadt", "Neustadt", "", "DE", "10", 54.1, 10.8, 15000),
		geonamesLine("Paris", "Paris", "Lutetia", "FR", "11", 48.8534, 2.3488, 2138551),
	}
	ix, err := Load(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return ix
}

func TestLoadRejectsEmptyInput(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	badCoords := geonamesLine("Broken", "Broken", "", "DE", "16", 0, 0, 0)
	badCoords = strings.Replace(badCoords, "\t0\t0\t", "\tabc\tdef\t", 1)

	lines := []string{
		"not a geonames row",
		geonamesLine("Berlin", "Berlin", "", "DE", "16", 52.52, 13.41, 3426354),
		badCoords,
	}
	ix, err := Load(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ix.Len(), 1)

	_, ok := ix.Resolve("Berlin", "DE")
	assert.True(t, ok)
}

func TestResolveExactName(t *testing.T) {
	ix := testIndex(t)

	coord, ok := ix.Resolve("Berlin", "DE")
	require.True(t, ok)
	assert.InDelta(t, 52.5244, coord.Latitude, 1e-6)
	assert.InDelta(t, 13.4105, coord.Longitude, 1e-6)
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	ix := testIndex(t)

	_, ok := ix.Resolve("hamburg", "DE")
	assert.True(t, ok)
}

func TestResolveASCIIName(t *testing.T) {
	ix := testIndex(t)

	coord, ok := ix.Resolve("Munchen", "DE")
	require.True(t, ok)
	assert.InDelta(t, 48.1374, coord.Latitude, 1e-6)
}

func TestResolveAlternateNames(t *testing.T) {
	ix := testIndex(t)

	coord, ok := ix.Resolve("Munich", "DE")
	require.True(t, ok)
	assert.InDelta(t, 11.5755, coord.Longitude, 1e-6)
}

func TestResolvePrefersHigherPopulation(t *testing.T) {
	ix := testIndex(t)

	coord, ok := ix.Resolve("Neustadt", "DE")
	require.True(t, ok)
	assert.InDelta(t, 49.35, coord.Latitude, 1e-6, "the more populous Neustadt wins")
}

func TestResolveCountryFilter(t *testing.T) {
	ix := testIndex(t)

	_, ok := ix.Resolve("Paris", "DE")
	assert.False(t, ok)

	coord, ok := ix.Resolve("Paris", "FR")
	require.True(t, ok)
	assert.InDelta(t, 48.8534, coord.Latitude, 1e-6)

	// Empty country matches everywhere.
	_, ok = ix.Resolve("Paris", "")
	assert.True(t, ok)
}

func TestResolveMissIsNotAnError(t *testing.T) {
	ix := testIndex(t)

	_, ok := ix.Resolve("Atlantis", "DE")
	assert.False(t, ok)

	_, ok = ix.Resolve("", "DE")
	assert.False(t, ok)
}

func TestResolveFuzzy(t *testing.T) {
	ix := testIndex(t)

	_, ok := ix.Resolve("Berlni", "DE")
	assert.False(t, ok, "fuzzy matching is off by default")

	coord, ok := ix.ResolveOpts("Berlni", "DE", ResolveOptions{MaxFuzzyDistance: 2})
	require.True(t, ok)
	assert.InDelta(t, 52.5244, coord.Latitude, 1e-6)
}

func TestReverseNearest(t *testing.T) {
	ix := testIndex(t)

	place, ok := ix.ReverseNearest(Coordinate{Latitude: 52.5, Longitude: 13.4})
	require.True(t, ok)
	assert.Equal(t, "Berlin", place.Name)
	assert.Equal(t, "16", place.Admin1Code)
}

func TestReverseNearestOutOfRange(t *testing.T) {
	ix := testIndex(t)

	// Mid-Atlantic, nowhere near any indexed place.
	_, ok := ix.ReverseNearest(Coordinate{Latitude: 0, Longitude: -30})
	assert.False(t, ok)
}

func TestReverseNearestRejectsInvalidCoordinates(t *testing.T) {
	ix := testIndex(t)

	_, ok := ix.ReverseNearest(Coordinate{Latitude: math.NaN(), Longitude: 13.4})
	assert.False(t, ok)

	_, ok = ix.ReverseNearest(Coordinate{Latitude: math.Inf(1), Longitude: 13.4})
	assert.False(t, ok)
}
