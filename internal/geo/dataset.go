package geo

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jmtatsch/virus-radar/internal/fetch"
)

// DefaultGeonamesURL is the upstream cities1000 dump.
const DefaultGeonamesURL = "https://download.geonames.org/export/dump/cities1000.zip"

const citiesFileName = "cities1000.txt"

// EnsureCities1000 makes sure the extracted cities1000 table exists under
// dataDir and returns its path, downloading and extracting the upstream zip
// when it is missing. This is a one-time, process-lifetime acquisition; a
// present file is never re-downloaded.
func EnsureCities1000(ctx context.Context, dataDir, url string, client *http.Client) (string, error) {
	path := filepath.Join(dataDir, citiesFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if url == "" {
		url = DefaultGeonamesURL
	}
	log.Info().Str("url", url).Msg("geonames table missing, downloading")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating data dir: %v", ErrDataUnavailable, err)
	}

	zipPath := filepath.Join(dataDir, "cities1000.zip")
	if err := downloadFile(ctx, url, zipPath, client); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer os.Remove(zipPath)

	if err := extractFirstFile(zipPath, path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	return path, nil
}

func downloadFile(ctx context.Context, url, path string, client *http.Client) error {
	resp, err := fetch.Do(ctx, fetch.DefaultConfig(client), fetch.NewBreaker("geonames"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(path)
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	success = true
	return nil
}

// extractFirstFile extracts the single table contained in the upstream zip.
func extractFirstFile(zipPath, destPath string) error {
	rz, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer rz.Close()

	if len(rz.File) == 0 {
		return fmt.Errorf("zip %s is empty", zipPath)
	}

	src, err := rz.File[0].Open()
	if err != nil {
		return fmt.Errorf("opening zip entry: %w", err)
	}
	defer src.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("extracting %s: %w", destPath, err)
	}
	return out.Close()
}
