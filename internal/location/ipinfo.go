package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/jmtatsch/virus-radar/internal/fetch"
)

// DefaultIPInfoURL is the public ipinfo.io endpoint.
const DefaultIPInfoURL = "https://ipinfo.io"

// IPInfoClient resolves IPs through the ipinfo.io JSON API. Calls go
// through retry/backoff and a circuit breaker so a degraded geolocation
// service cannot stall page loads.
type IPInfoClient struct {
	baseURL string
	token   string
	cfg     fetch.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewIPInfoClient creates a client. token may be empty for the
// unauthenticated rate-limited tier.
func NewIPInfoClient(client *http.Client, baseURL, token string) *IPInfoClient {
	if baseURL == "" {
		baseURL = DefaultIPInfoURL
	}
	return &IPInfoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		cfg:     fetch.DefaultConfig(client),
		circuit: fetch.NewBreaker("ipinfo"),
	}
}

// Locate implements IPLocator.
func (c *IPInfoClient) Locate(ctx context.Context, ip string) (IPLocation, error) {
	resp, err := fetch.Do(ctx, c.cfg, c.circuit, func() (*http.Request, error) {
		u := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(ip))
		if c.token != "" {
			u += "?token=" + url.QueryEscape(c.token)
		}
		return http.NewRequest(http.MethodGet, u, nil)
	})
	if err != nil {
		return IPLocation{}, fmt.Errorf("ipinfo lookup for %s: %w", ip, err)
	}
	defer resp.Body.Close()

	var payload struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Loc     string `json:"loc"` // "lat,lng"
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return IPLocation{}, fmt.Errorf("decoding ipinfo response: %w", err)
	}

	lat, lng, err := parseLoc(payload.Loc)
	if err != nil {
		return IPLocation{}, fmt.Errorf("ipinfo response for %s: %w", ip, err)
	}

	return IPLocation{
		City:        payload.City,
		CountryCode: payload.Country,
		Province:    payload.Region,
		Latitude:    lat,
		Longitude:   lng,
	}, nil
}

func parseLoc(loc string) (float64, float64, error) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed loc field %q", loc)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed latitude in %q", loc)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed longitude in %q", loc)
	}
	return lat, lng, nil
}
