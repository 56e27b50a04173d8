// Package metadata proxies the Google Analytics metadata endpoints (columns
// and cubes) and caches their responses.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// DefaultColumnsURL is the public GA columns metadata endpoint.
const DefaultColumnsURL = "https://www.googleapis.com/analytics/v3/metadata/ga/columns"

const (
	keyColumns = "columns"
	keyCubes   = "cubes"
)

// ErrNotConfigured is returned for an endpoint without a URL.
var ErrNotConfigured = errors.New("metadata endpoint not configured")

// ErrInvalidDocument is returned when an endpoint answers 2xx with a body
// that is not the expected JSON.
var ErrInvalidDocument = errors.New("metadata endpoint returned an invalid document")

// FetchError is returned when an endpoint answers with a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("metadata endpoint %s returned %d", e.URL, e.StatusCode)
}

// Config configures the service.
type Config struct {
	ColumnsURL string
	CubesURL   string
	TTL        time.Duration
}

// Service serves cached metadata documents.
type Service struct {
	cfg        Config
	httpClient *http.Client
	cache      *ttlcache.Cache[string, []byte]
	group      singleflight.Group
	logger     *slog.Logger
}

// NewService creates the service. Call Start to run cache expiry in the
// background and Stop to end it.
func NewService(cfg Config, httpClient *http.Client, logger *slog.Logger) *Service {
	if cfg.ColumnsURL == "" {
		cfg.ColumnsURL = DefaultColumnsURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Service{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      ttlcache.New[string, []byte](ttlcache.WithTTL[string, []byte](cfg.TTL)),
		logger:     logger.With(slog.String("component", "metadata_service")),
	}
}

// Start removes expired entries until Stop is called. It blocks.
func (s *Service) Start() {
	s.cache.Start()
}

// Stop ends Start.
func (s *Service) Stop() {
	s.cache.Stop()
}

// Columns returns the parsed columns metadata.
func (s *Service) Columns(ctx context.Context) (*Columns, error) {
	raw, err := s.RawColumns(ctx)
	if err != nil {
		return nil, err
	}

	var cols Columns
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("%w: decoding columns: %w", ErrInvalidDocument, err)
	}
	return &cols, nil
}

// GroupedColumns returns the columns grouped by attributes.group.
func (s *Service) GroupedColumns(ctx context.Context) ([]ColumnGroup, error) {
	cols, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}
	return GroupColumns(cols.Items), nil
}

// RawColumns returns the columns metadata document as received.
func (s *Service) RawColumns(ctx context.Context) ([]byte, error) {
	return s.get(ctx, keyColumns, s.cfg.ColumnsURL)
}

// Cubes returns the cubes document as received.
func (s *Service) Cubes(ctx context.Context) ([]byte, error) {
	return s.get(ctx, keyCubes, s.cfg.CubesURL)
}

func (s *Service) get(ctx context.Context, key, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrNotConfigured
	}
	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		if item := s.cache.Get(key); item != nil {
			return item.Value(), nil
		}
		body, err := s.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, body, ttlcache.DefaultTTL)
		return body, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "metadata fetch failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.DebugContext(ctx, "metadata fetched", slog.String("key", key), slog.Bool("shared", shared))
	return v.([]byte), nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, url)
	}
	return body, nil
}

// Invalidate drops all cached documents.
func (s *Service) Invalidate() {
	s.cache.DeleteAll()
}
