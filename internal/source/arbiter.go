package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
)

// ErrBothSourcesFailed is returned when neither feed produced a usable snapshot.
var ErrBothSourcesFailed = errors.New("both vendor sources failed")

// Arbiter reads the primary feed and falls back to the secondary one when the
// primary fails or reports an active vendor with nothing for sale.
type Arbiter struct {
	primary   Fetcher
	secondary Fetcher
	now       func() time.Time
}

// NewArbiter creates an arbiter over the two feeds.
func NewArbiter(primary, secondary Fetcher) *Arbiter {
	return &Arbiter{primary: primary, secondary: secondary, now: time.Now}
}

// WithClock overrides the time source used for the active check.
func (a *Arbiter) WithClock(now func() time.Time) *Arbiter {
	a.now = now
	return a
}

// FetchCurrentInventory returns the best available snapshot, tagged with the
// feed that produced it.
func (a *Arbiter) FetchCurrentInventory(ctx context.Context) (*model.Snapshot, error) {
	snap, primaryErr := a.primary.Fetch(ctx)
	if primaryErr == nil {
		snap.Source = model.SourcePrimary
		if !snap.IsActive(a.now()) || len(snap.Inventory) > 0 {
			return snap, nil
		}

		logger.Log.Warn("[Arbiter] Primary reports an active vendor with empty inventory, verifying against secondary")
		fallback, err := a.secondary.Fetch(ctx)
		switch {
		case err != nil:
			logger.Log.Warnf("[Arbiter] Secondary verification failed, using primary response: %v", err)
		case len(fallback.Inventory) == 0:
			logger.Log.Warn("[Arbiter] Secondary also returned an empty inventory, using primary response")
		default:
			logger.Log.Infof("[Arbiter] Secondary returned %d inventory items", len(fallback.Inventory))
			fallback.Source = model.SourceSecondary
			return fallback, nil
		}
		return snap, nil
	}

	logger.Log.Errorf("[Arbiter] Primary source failed: %v", primaryErr)
	fallback, secondaryErr := a.secondary.Fetch(ctx)
	if secondaryErr != nil {
		logger.Log.Errorf("[Arbiter] Secondary source also failed: %v", secondaryErr)
		return nil, fmt.Errorf("%w: primary: %v | secondary: %v", ErrBothSourcesFailed, primaryErr, secondaryErr)
	}

	logger.Log.Infof("[Arbiter] Secondary source succeeded (%d items)", len(fallback.Inventory))
	fallback.Source = model.SourceSecondary
	return fallback, nil
}
