package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/model"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// nodeToRelay maps world state hub nodes to relay display names.
var nodeToRelay = map[string]string{
	"MercuryHUB": "Larunda Relay (Mercury)",
	"VenusHUB":   "Vesper Relay (Venus)",
	"EarthHUB":   "Strata Relay (Earth)",
	"SaturnHUB":  "Kronia Relay (Saturn)",
	"EuropaHUB":  "Leonov Relay (Europa)",
	"PlutoHUB":   "Orcus Relay (Pluto)",
	"ErisHUB":    "Kuiper Relay (Eris)",
}

// RelayName returns the relay for node, or node itself when unknown.
func RelayName(node string) string {
	if name, ok := nodeToRelay[node]; ok {
		return name
	}
	return node
}

// PathNamer turns a raw manifest path into a display name.
type PathNamer interface {
	NameForPath(ctx context.Context, raw string) string
}

// SecondaryClient extracts the trader record from the raw world state dump.
type SecondaryClient struct {
	url    string
	client *retryablehttp.Client
	names  PathNamer
}

// NewSecondaryClient creates a client for url that names items through names.
func NewSecondaryClient(url string, client *retryablehttp.Client, names PathNamer) *SecondaryClient {
	return &SecondaryClient{url: url, client: client, names: names}
}

// Fetch implements Fetcher.
func (c *SecondaryClient) Fetch(ctx context.Context) (*model.Snapshot, error) {
	body, err := getJSON(ctx, c.client, c.url, "world state")
	if err != nil {
		return nil, err
	}
	return c.parse(ctx, body)
}

func (c *SecondaryClient) parse(ctx context.Context, body []byte) (*model.Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid world state response")
	}
	trader := gjson.GetBytes(body, "VoidTraders.0")
	if !trader.Exists() {
		return nil, errors.New("no vendor data found in world state")
	}

	id := trader.Get("_id.$oid").String()
	if id == "" {
		id = trader.Get("_id").String()
	}

	manifest := trader.Get("Manifest").Array()
	inventory := make([]model.InventoryEntry, 0, len(manifest))
	for _, line := range manifest {
		raw := line.Get("ItemType").String()
		inventory = append(inventory, model.InventoryEntry{
			CanonicalPathRaw: canonical.Normalize(raw).String(),
			DisplayName:      c.names.NameForPath(ctx, raw),
			Ducats:           int(line.Get("PrimePrice").Int()),
			Credits:          int(line.Get("RegularPrice").Int()),
		})
	}

	activation, err := parseWorldStateDate(trader.Get("Activation"))
	if err != nil {
		return nil, fmt.Errorf("invalid world state activation: %w", err)
	}
	expiry, err := parseWorldStateDate(trader.Get("Expiry"))
	if err != nil {
		return nil, fmt.Errorf("invalid world state expiry: %w", err)
	}

	return &model.Snapshot{
		ID:         id,
		Activation: activation,
		Expiry:     expiry,
		Character:  trader.Get("Character").String(),
		Location:   RelayName(trader.Get("Node").String()),
		Inventory:  inventory,
		Source:     model.SourceSecondary,
	}, nil
}

// parseWorldStateDate accepts {"$date":{"$numberLong":"..."}}, {"$date":ms},
// a bare millisecond number or an RFC 3339 string. Missing values map to the epoch.
func parseWorldStateDate(v gjson.Result) (time.Time, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return time.UnixMilli(0).UTC(), nil
	}
	if ms := v.Get("$date.$numberLong"); ms.Exists() {
		return time.UnixMilli(ms.Int()).UTC(), nil
	}
	if d := v.Get("$date"); d.Exists() && d.Type == gjson.Number {
		return time.UnixMilli(d.Int()).UTC(), nil
	}
	switch v.Type {
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC(), nil
	case gjson.String:
		t, err := time.Parse(time.RFC3339, v.String())
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported date value %s", v.Raw)
}

var _ Fetcher = (*SecondaryClient)(nil)
