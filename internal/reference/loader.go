package reference

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"baro-tracker-api/internal/cache"
	"baro-tracker-api/internal/logger"

	"github.com/hashicorp/go-retryablehttp"
)

// CacheKey is where downloaded dataset bytes are kept.
const CacheKey = "reference:dataset"

// Loader returns the raw reference dataset JSON.
type Loader interface {
	Load(ctx context.Context) ([]byte, error)
}

// FileLoader reads the dataset from a local file.
type FileLoader struct {
	Path string
}

// Load reads the file.
func (l FileLoader) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference dataset %s: %w", l.Path, err)
	}
	return data, nil
}

// HTTPLoader downloads the dataset, keeping a copy in Cache when one is set.
type HTTPLoader struct {
	URL    string
	Client *retryablehttp.Client
	Cache  cache.Cache
	TTL    time.Duration
}

// Load returns cached bytes when available, otherwise downloads them.
// Only bytes that parse as a dataset are cached.
func (l *HTTPLoader) Load(ctx context.Context) ([]byte, error) {
	if l.Cache == nil {
		return l.download(ctx)
	}
	return l.Cache.GetOrSet(ctx, CacheKey, l.TTL, func() ([]byte, error) {
		data, err := l.download(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := ParseDataset(data); err != nil {
			return nil, err
		}
		return data, nil
	})
}

func (l *HTTPLoader) download(ctx context.Context) ([]byte, error) {
	start := time.Now()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build reference request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download reference dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference dataset download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference dataset: %w", err)
	}

	logger.Log.Infof("[Reference] Downloaded %d bytes in %s", len(data), time.Since(start).Round(time.Millisecond))
	return data, nil
}
