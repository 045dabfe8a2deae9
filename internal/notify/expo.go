package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"baro-tracker-api/internal/logger"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// expoBatchSize is the most messages the push API accepts per request.
const expoBatchSize = 100

// ExpoConfig holds push API settings.
type ExpoConfig struct {
	URL         string
	AccessToken string
	ChannelID   string
}

// ExpoNotifier sends through the Expo push API.
type ExpoNotifier struct {
	cfg    ExpoConfig
	client *retryablehttp.Client
}

// NewExpoNotifier creates a notifier using client for requests.
func NewExpoNotifier(cfg ExpoConfig, client *retryablehttp.Client) *ExpoNotifier {
	return &ExpoNotifier{cfg: cfg, client: client}
}

// IsExpoPushToken reports whether token has a shape the push API accepts.
func IsExpoPushToken(token string) bool {
	for _, prefix := range []string{"ExponentPushToken[", "ExpoPushToken["} {
		if strings.HasPrefix(token, prefix) && strings.HasSuffix(token, "]") && len(token) > len(prefix)+1 {
			return true
		}
	}
	_, err := uuid.Parse(token)
	return err == nil
}

type expoMessage struct {
	To        string                 `json:"to"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data"`
	Sound     string                 `json:"sound"`
	Priority  string                 `json:"priority"`
	ChannelID string                 `json:"channelId,omitempty"`
}

// Send implements Notifier. A failed batch counts its messages as failed and
// does not stop the remaining batches.
func (n *ExpoNotifier) Send(ctx context.Context, tokens []string, msg Message) (Result, error) {
	var res Result
	data := msg.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	messages := make([]expoMessage, 0, len(tokens))
	for _, t := range tokens {
		if !IsExpoPushToken(t) {
			logger.Log.Warnf("[Expo] Skipping malformed push token %s", t)
			res.Invalid = append(res.Invalid, t)
			continue
		}
		messages = append(messages, expoMessage{
			To:        t,
			Title:     msg.Title,
			Body:      msg.Body,
			Data:      data,
			Sound:     "default",
			Priority:  "high",
			ChannelID: n.cfg.ChannelID,
		})
	}

	for start := 0; start < len(messages); start += expoBatchSize {
		end := start + expoBatchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch, err := n.sendBatch(ctx, messages[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Log.Errorf("[Expo] Batch of %d failed: %v", end-start, err)
			res.Failed += end - start
			continue
		}
		res.Add(batch)
	}

	logger.Log.Infof("[Expo] Push notifications sent: %d successful, %d failed", res.Sent, res.Failed)
	return res, nil
}

func (n *ExpoNotifier) sendBatch(ctx context.Context, batch []expoMessage) (Result, error) {
	var res Result
	payload, err := json.Marshal(batch)
	if err != nil {
		return res, fmt.Errorf("failed to encode push batch: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return res, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if n.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.AccessToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return res, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return res, fmt.Errorf("failed to read push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("push API returned %d: %s", resp.StatusCode, gjson.GetBytes(body, "errors.0.message").String())
	}

	tickets := gjson.GetBytes(body, "data").Array()
	for i, msg := range batch {
		if i >= len(tickets) {
			res.Failed++
			continue
		}
		ticket := tickets[i]
		if ticket.Get("status").String() == "ok" {
			res.Sent++
			continue
		}
		res.Failed++
		code := ticket.Get("details.error").String()
		logger.Log.Warnf("[Expo] Error sending to %s: %s (%s)", msg.To, ticket.Get("message").String(), code)
		if code == "DeviceNotRegistered" || code == "InvalidCredentials" {
			res.Invalid = append(res.Invalid, msg.To)
		}
	}
	return res, nil
}

var _ Notifier = (*ExpoNotifier)(nil)
