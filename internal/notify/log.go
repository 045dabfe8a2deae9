package notify

import (
	"context"

	"baro-tracker-api/internal/logger"
)

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send implements Notifier.
func (LogNotifier) Send(ctx context.Context, tokens []string, msg Message) (Result, error) {
	logger.Log.WithField("recipients", len(tokens)).Infof("[Notify] %s: %s", msg.Title, msg.Body)
	return Result{Sent: len(tokens)}, nil
}

var _ Notifier = (*LogNotifier)(nil)
