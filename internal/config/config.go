package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/jmtatsch/virus-radar/internal/geo"
	"github.com/jmtatsch/virus-radar/internal/location"
)

// Default dataset sources; both tables are published as tab-delimited
// files on the RKI open-data mirrors.
const (
	DefaultGrippeWebSource = "https://raw.githubusercontent.com/robert-koch-institut/GrippeWeb_Daten_des_Wochenberichts/main/GrippeWeb_Daten_des_Wochenberichts.tsv"
	DefaultAMELAGSource    = "https://raw.githubusercontent.com/robert-koch-institut/Abwassersurveillance_AMELAG/main/amelag_einzelstandorte.tsv"
)

type AppConfig struct {
	Port string

	// DataDir holds the extracted GeoNames extract and any cached files.
	DataDir string

	// Dataset sources; filesystem paths or http(s) URLs.
	GrippeWebSource string
	AMELAGSource    string

	// GeonamesURL is the cities1000 zip download location.
	GeonamesURL string

	// RefreshInterval controls how often the datasets are re-pulled.
	RefreshInterval time.Duration

	// Forecast model settings.
	ForecastHorizon int
	SeasonalPeriod  int
	FitTimeout      time.Duration
	ForecastWorkers int

	// IP geolocation backend.
	IPInfoURL   string
	IPInfoToken string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msgf("no .env file loaded: %v", err)
	}

	cfg := &AppConfig{
		Port:            getenvDefault("PORT", "8080"),
		DataDir:         getenvDefault("DATA_DIR", "data"),
		GrippeWebSource: getenvDefault("GRIPPEWEB_PATH", DefaultGrippeWebSource),
		AMELAGSource:    getenvDefault("AMELAG_PATH", DefaultAMELAGSource),
		GeonamesURL:     getenvDefault("GEONAMES_URL", geo.DefaultGeonamesURL),
		ForecastHorizon: getenvInt("FORECAST_HORIZON", 24),
		SeasonalPeriod:  getenvInt("SEASONAL_PERIOD", 52),
		ForecastWorkers: getenvInt("FORECAST_WORKERS", 4),
		IPInfoURL:       getenvDefault("IPINFO_URL", location.DefaultIPInfoURL),
		IPInfoToken:     os.Getenv("IPINFO_TOKEN"),
	}

	var err error
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.FitTimeout, err = getenvDuration("FIT_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	if cfg.ForecastHorizon <= 0 {
		return nil, fmt.Errorf("FORECAST_HORIZON must be positive")
	}
	if cfg.SeasonalPeriod <= 0 {
		return nil, fmt.Errorf("SEASONAL_PERIOD must be positive")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
