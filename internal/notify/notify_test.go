package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

func TestIsExpoPushToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]", true},
		{"ExpoPushToken[abc]", true},
		{"f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"ExponentPushToken[]", false},
		{"ExponentPushToken[abc", false},
		{"not-a-token", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsExpoPushToken(tt.token); got != tt.want {
			t.Errorf("IsExpoPushToken(%q) = %v, expected %v", tt.token, got, tt.want)
		}
	}
}

func testClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.Logger = nil
	return c
}

func TestExpoNotifierBatchesAndTickets(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing access token header")
		}
		var batch []expoMessage
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(batch) > expoBatchSize {
			t.Errorf("batch too large: %d", len(batch))
		}
		tickets := make([]string, 0, len(batch))
		for _, m := range batch {
			if m.ChannelID != "baro-alerts" || m.Title != "Baro Ki'Teer has arrived!" {
				t.Errorf("unexpected message %+v", m)
			}
			if m.To == "ExponentPushToken[gone]" {
				tickets = append(tickets, `{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}}`)
				continue
			}
			tickets = append(tickets, `{"status":"ok","id":"x"}`)
		}
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(tickets, ","))
	}))
	defer srv.Close()

	tokens := []string{"bogus", "ExponentPushToken[gone]"}
	for i := 0; i < 149; i++ {
		tokens = append(tokens, fmt.Sprintf("ExponentPushToken[t%d]", i))
	}

	n := NewExpoNotifier(ExpoConfig{URL: srv.URL, AccessToken: "secret", ChannelID: "baro-alerts"}, testClient())
	res, err := n.Send(context.Background(), tokens, ArrivalMessage("Strata Relay (Earth)"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected 2 batches, got %d", requests)
	}
	if res.Sent != 149 || res.Failed != 1 {
		t.Fatalf("expected 149 sent and 1 failed, got %+v", res)
	}
	if len(res.Invalid) != 2 || res.Invalid[0] != "bogus" || res.Invalid[1] != "ExponentPushToken[gone]" {
		t.Fatalf("unexpected invalid tokens %v", res.Invalid)
	}
}

func TestExpoNotifierBatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"bad"}]}`))
	}))
	defer srv.Close()

	n := NewExpoNotifier(ExpoConfig{URL: srv.URL}, testClient())
	res, err := n.Send(context.Background(), []string{"ExpoPushToken[a]", "ExpoPushToken[b]"}, DepartingSoonMessage(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sent != 0 || res.Failed != 2 {
		t.Fatalf("expected 2 failed, got %+v", res)
	}
}

func TestMessages(t *testing.T) {
	if m := ArrivalMessage("Kronia Relay (Saturn)"); m.Body != "Visit him at Kronia Relay (Saturn)" {
		t.Fatalf("unexpected arrival body %q", m.Body)
	}
	if m := DepartingSoonMessage(5); m.Body != "Only 5 hours remaining to visit Baro Ki'Teer" {
		t.Fatalf("unexpected departing body %q", m.Body)
	}
	next := time.Date(2024, 1, 26, 13, 0, 0, 0, time.UTC)
	if m := DepartureMessage(next); m.Body != "He returns on Friday, January 26" {
		t.Fatalf("unexpected departure body %q", m.Body)
	}
	if m := WishlistMessage([]string{"Primed Flow", "Prisma Grakata"}); !strings.HasPrefix(m.Title, "2 ") {
		t.Fatalf("unexpected wishlist title %q", m.Title)
	}
}

func TestLogNotifier(t *testing.T) {
	res, err := NewLogNotifier().Send(context.Background(), []string{"a", "b"}, ArrivalMessage("x"))
	if err != nil || res.Sent != 2 {
		t.Fatalf("unexpected result %+v (%v)", res, err)
	}
}
