package location

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtatsch/virus-radar/internal/geo"
)

// fakeLocator replays a canned answer.
type fakeLocator struct {
	loc IPLocation
	err error
}

func (f *fakeLocator) Locate(_ context.Context, _ string) (IPLocation, error) {
	return f.loc, f.err
}

func geonamesLine(name, country, admin1 string, lat, lng float64, pop int64) string {
	fields := make([]string, 19)
	fields[0] = "1"
	fields[1] = name
	fields[2] = name
	fields[4] = strconv.FormatFloat(lat, 'f', -1, 64)
	fields[5] = strconv.FormatFloat(lng, 'f', -1, 64)
	fields[8] = country
	fields[10] = admin1
	fields[14] = strconv.FormatInt(pop, 10)
	return strings.Join(fields, "\t")
}

func testIndex(t *testing.T) *geo.Index {
	t.Helper()
	lines := []string{
		geonamesLine("Munchen", "DE", "02", 48.1374, 11.5755, 1260391),
		geonamesLine("Berlin", "DE", "16", 52.5244, 13.4105, 3426354),
		geonamesLine("Salzburg", "AT", "05", 47.7994, 13.0439, 153377),
	}
	ix, err := geo.Load(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return ix
}

func TestFirstForwardedIP(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"13.51.91.225, 162.158.90.188", "13.51.91.225", true},
		{"13.51.91.225", "13.51.91.225", true},
		{"  13.51.91.225  ", "13.51.91.225", true},
		{"", "", false},
		{" , ", "", false},
	}
	for _, c := range cases {
		got, ok := FirstForwardedIP(c.header)
		assert.Equal(t, c.ok, ok, c.header)
		assert.Equal(t, c.want, got, c.header)
	}
}

func TestFromCoordinateDerivesProvinceAndRegion(t *testing.T) {
	r := NewResolver(nil, testIndex(t))

	loc := r.FromCoordinate(48.14, 11.58)
	assert.True(t, loc.Located)
	assert.Equal(t, "client", loc.Source)
	assert.Equal(t, "BY", loc.ProvinceShort)
	assert.Equal(t, "Bavaria", loc.Province)
	assert.Equal(t, "Sueden", loc.Region)
}

func TestFromCoordinateOutsideGermany(t *testing.T) {
	r := NewResolver(nil, testIndex(t))

	// Nearest indexed place is Austrian; no German province applies but
	// the coordinate itself is still usable.
	loc := r.FromCoordinate(47.8, 13.04)
	assert.True(t, loc.Located)
	assert.Empty(t, loc.ProvinceShort)
	assert.Empty(t, loc.Region)
}

func TestFromRequestIP(t *testing.T) {
	ips := &fakeLocator{loc: IPLocation{
		City:        "Berlin",
		CountryCode: "DE",
		Province:    "Berlin",
		Latitude:    52.52,
		Longitude:   13.41,
	}}
	r := NewResolver(ips, testIndex(t))

	loc := r.FromRequestIP(context.Background(), "13.51.91.225, 162.158.90.188")
	assert.True(t, loc.Located)
	assert.Equal(t, "ip", loc.Source)
	assert.Equal(t, "Berlin", loc.City)
	assert.Equal(t, "BE", loc.ProvinceShort)
	assert.Equal(t, "Mitte (West)", loc.Region)
}

func TestFromRequestIPOutsideGermany(t *testing.T) {
	ips := &fakeLocator{loc: IPLocation{City: "Vienna", CountryCode: "AT"}}
	r := NewResolver(ips, testIndex(t))

	loc := r.FromRequestIP(context.Background(), "1.2.3.4")
	assert.False(t, loc.Located)
}

func TestFromRequestIPLookupFailure(t *testing.T) {
	ips := &fakeLocator{err: errors.New("service down")}
	r := NewResolver(ips, testIndex(t))

	loc := r.FromRequestIP(context.Background(), "1.2.3.4")
	assert.False(t, loc.Located, "a failed lookup degrades to unlocated")
}

func TestFromRequestIPWithoutHeaderOrService(t *testing.T) {
	r := NewResolver(nil, testIndex(t))
	assert.False(t, r.FromRequestIP(context.Background(), "").Located)
	assert.False(t, r.FromRequestIP(context.Background(), "1.2.3.4").Located)
}

func TestParseLoc(t *testing.T) {
	lat, lng, err := parseLoc("52.52, 13.41")
	require.NoError(t, err)
	assert.Equal(t, 52.52, lat)
	assert.Equal(t, 13.41, lng)

	for _, bad := range []string{"", "52.52", "a,b", "1,2,3"} {
		_, _, err := parseLoc(bad)
		assert.Error(t, err, bad)
	}
}
