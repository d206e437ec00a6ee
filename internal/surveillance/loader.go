package surveillance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/jmtatsch/virus-radar/internal/fetch"
)

// Store is the dataset cache contract the loader and service depend on.
// Reads return ErrDatasetUnavailable-wrapping errors while a dataset has
// never loaded successfully.
type Store interface {
	Incidence() (*IncidenceDataset, error)
	Wastewater() (*WastewaterDataset, error)
	SetIncidence(*IncidenceDataset)
	SetWastewater(*WastewaterDataset)
}

// Loader reads the surveillance tables from local files or HTTP sources
// into the store. A failed refresh keeps the previously loaded dataset.
type Loader struct {
	grippewebSource  string
	wastewaterSource string
	store            Store
	cfg              fetch.ClientConfig
	breakers         map[string]*gobreaker.CircuitBreaker
}

// NewLoader creates a Loader. Sources may be filesystem paths or http(s)
// URLs.
func NewLoader(grippewebSource, wastewaterSource string, store Store, client *http.Client) *Loader {
	return &Loader{
		grippewebSource:  grippewebSource,
		wastewaterSource: wastewaterSource,
		store:            store,
		cfg:              fetch.DefaultConfig(client),
		breakers: map[string]*gobreaker.CircuitBreaker{
			"grippeweb": fetch.NewBreaker("grippeweb"),
			"amelag":    fetch.NewBreaker("amelag"),
		},
	}
}

// Refresh loads both datasets. Each dataset fails independently; the error
// reports every failure but a partial refresh still stores what succeeded.
func (l *Loader) Refresh(ctx context.Context) error {
	var errs []string

	if err := l.refreshIncidence(ctx); err != nil {
		log.Error().Err(err).Msg("grippeweb refresh failed")
		errs = append(errs, err.Error())
	}
	if err := l.refreshWastewater(ctx); err != nil {
		log.Error().Err(err).Msg("amelag refresh failed")
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrDatasetUnavailable, strings.Join(errs, "; "))
	}
	return nil
}

func (l *Loader) refreshIncidence(ctx context.Context) error {
	body, err := l.open(ctx, l.grippewebSource, "grippeweb")
	if err != nil {
		return err
	}
	defer body.Close()

	ds, err := ParseGrippeWeb(body)
	if err != nil {
		return err
	}
	l.store.SetIncidence(ds)
	log.Info().Int("records", len(ds.Records)).Time("updated", ds.UpdatedAt).Msg("grippeweb dataset loaded")
	return nil
}

func (l *Loader) refreshWastewater(ctx context.Context) error {
	body, err := l.open(ctx, l.wastewaterSource, "amelag")
	if err != nil {
		return err
	}
	defer body.Close()

	ds, err := ParseWastewater(body)
	if err != nil {
		return err
	}
	l.store.SetWastewater(ds)
	log.Info().Int("records", len(ds.Records)).Time("updated", ds.UpdatedAt).Msg("amelag dataset loaded")
	return nil
}

func (l *Loader) open(ctx context.Context, source, name string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := fetch.Do(ctx, l.cfg, l.breakers[name], func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, source, nil)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: fetching %s: %v", ErrDatasetUnavailable, source, err)
		}
		return resp.Body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDatasetUnavailable, source, err)
	}
	return f, nil
}
