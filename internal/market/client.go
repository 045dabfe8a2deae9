// Package market reads item trade statistics from the warframe.market API.
package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"baro-tracker-api/internal/model"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// ErrNotListed is returned when the market has no page for a slug.
var ErrNotListed = errors.New("item not listed on the market")

// Client fetches closed-trade statistics.
type Client struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewClient creates a client for baseURL, e.g. "https://api.warframe.market/v1".
func NewClient(baseURL string, client *retryablehttp.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Statistics returns the last 90 days of closed trades for slug, oldest first.
// An item the market knows but nobody traded yields an empty slice.
func (c *Client) Statistics(ctx context.Context, slug string) ([]model.MarketPoint, error) {
	endpoint := fmt.Sprintf("%s/items/%s/statistics", c.baseURL, url.PathEscape(slug))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build market request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, slug)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("market API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read market response: %w", err)
	}
	return parseStatistics(body)
}

func parseStatistics(body []byte) ([]model.MarketPoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid market response: not JSON")
	}
	days := gjson.GetBytes(body, "payload.statistics_closed.90days")
	if days.Exists() && !days.IsArray() {
		return nil, errors.New("invalid market response: 90days is not a list")
	}

	points := []model.MarketPoint{}
	for _, d := range days.Array() {
		p := model.MarketPoint{
			Datetime: d.Get("datetime").String(),
			Volume:   int(d.Get("volume").Int()),
			AvgPrice: d.Get("avg_price").Float(),
		}
		if rank := d.Get("mod_rank"); rank.Exists() && rank.Type == gjson.Number {
			r := int(rank.Int())
			p.ModRank = &r
		}
		points = append(points, p)
	}
	return points, nil
}
