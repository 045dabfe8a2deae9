package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"baro-tracker-api/internal/model"

	"github.com/hashicorp/go-retryablehttp"
)

// PrimaryClient reads the aggregator API, which returns the trader record
// either bare or wrapped in a one-element array.
type PrimaryClient struct {
	url    string
	client *retryablehttp.Client
}

// NewPrimaryClient creates a client for url.
func NewPrimaryClient(url string, client *retryablehttp.Client) *PrimaryClient {
	return &PrimaryClient{url: url, client: client}
}

type primaryItem struct {
	UniqueName string `json:"uniqueName"`
	Item       string `json:"item"`
	Ducats     int    `json:"ducats"`
	Credits    int    `json:"credits"`
}

type primaryTrader struct {
	ID         string        `json:"id"`
	Activation time.Time     `json:"activation"`
	Expiry     time.Time     `json:"expiry"`
	Character  string        `json:"character"`
	Location   string        `json:"location"`
	Inventory  []primaryItem `json:"inventory"`
}

// Fetch implements Fetcher.
func (c *PrimaryClient) Fetch(ctx context.Context) (*model.Snapshot, error) {
	body, err := getJSON(ctx, c.client, c.url, "primary")
	if err != nil {
		return nil, err
	}
	return parsePrimary(body)
}

func parsePrimary(body []byte) (*model.Snapshot, error) {
	body = bytes.TrimSpace(body)

	var trader primaryTrader
	if len(body) > 0 && body[0] == '[' {
		var list []primaryTrader
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("invalid primary response: %w", err)
		}
		if len(list) == 0 {
			return nil, errors.New("invalid primary response: empty trader list")
		}
		trader = list[0]
	} else if err := json.Unmarshal(body, &trader); err != nil {
		return nil, fmt.Errorf("invalid primary response: %w", err)
	}

	if trader.Activation.IsZero() || trader.Expiry.IsZero() {
		return nil, errors.New("invalid primary response: missing activation or expiry")
	}

	inventory := make([]model.InventoryEntry, 0, len(trader.Inventory))
	for _, it := range trader.Inventory {
		inventory = append(inventory, model.InventoryEntry{
			CanonicalPathRaw: it.UniqueName,
			DisplayName:      it.Item,
			Ducats:           it.Ducats,
			Credits:          it.Credits,
		})
	}

	return &model.Snapshot{
		ID:         trader.ID,
		Activation: trader.Activation.UTC(),
		Expiry:     trader.Expiry.UTC(),
		Character:  trader.Character,
		Location:   trader.Location,
		Inventory:  inventory,
		Source:     model.SourcePrimary,
	}, nil
}

var _ Fetcher = (*PrimaryClient)(nil)
