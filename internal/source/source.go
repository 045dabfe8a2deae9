// Package source reads the vendor's live status from the upstream feeds.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"baro-tracker-api/internal/model"

	"github.com/hashicorp/go-retryablehttp"
)

// Fetcher returns the vendor snapshot reported by one upstream feed.
type Fetcher interface {
	Fetch(ctx context.Context) (*model.Snapshot, error)
}

// getJSON issues a GET and returns the body of a 2xx response.
func getJSON(ctx context.Context, client *retryablehttp.Client, url, name string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s API error: %d %s", name, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", name, err)
	}
	return body, nil
}
