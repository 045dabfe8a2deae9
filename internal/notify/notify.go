// Package notify delivers push notifications to registered devices.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is one notification payload.
type Message struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Result summarizes a send. Invalid lists tokens the provider rejected for
// good; callers should stop sending to them.
type Result struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Invalid []string `json:"invalid,omitempty"`
}

// Add merges other into r.
func (r *Result) Add(other Result) {
	r.Sent += other.Sent
	r.Failed += other.Failed
	r.Invalid = append(r.Invalid, other.Invalid...)
}

// Notifier sends a message to a set of device tokens.
type Notifier interface {
	Send(ctx context.Context, tokens []string, msg Message) (Result, error)
}

// ArrivalMessage announces the vendor at location.
func ArrivalMessage(location string) Message {
	return Message{
		Title: "Baro Ki'Teer has arrived!",
		Body:  "Visit him at " + location,
		Data:  map[string]interface{}{"type": "baro-arrival", "location": location},
	}
}

// DepartingSoonMessage warns that the vendor leaves in hours.
func DepartingSoonMessage(hours int) Message {
	return Message{
		Title: "Baro is leaving soon!",
		Body:  fmt.Sprintf("Only %d hours remaining to visit Baro Ki'Teer", hours),
		Data:  map[string]interface{}{"type": "baro-leaving-soon", "hoursRemaining": hours},
	}
}

// DepartureMessage reports that the vendor left and when he is due back.
func DepartureMessage(next time.Time) Message {
	return Message{
		Title: "Baro Ki'Teer has departed",
		Body:  "He returns on " + next.UTC().Format("Monday, January 2"),
		Data:  map[string]interface{}{"type": "baro-departure", "nextActivation": next.UTC().Format(time.RFC3339)},
	}
}

// WishlistMessage lists wishlisted items in the current inventory.
func WishlistMessage(itemNames []string) Message {
	title := "A wishlisted item is available!"
	if len(itemNames) > 1 {
		title = fmt.Sprintf("%d wishlisted items are available!", len(itemNames))
	}
	return Message{
		Title: title,
		Body:  "Baro Ki'Teer is selling " + strings.Join(itemNames, ", "),
		Data:  map[string]interface{}{"type": "baro-wishlist", "items": itemNames},
	}
}
