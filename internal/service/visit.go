package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"baro-tracker-api/internal/cache"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/notify"
)

// Job names double as run-lock names.
const (
	JobArrival       = "arrival"
	JobDeparture     = "departure"
	JobDepartingSoon = "departing-soon"

	jobLockTTL = 10 * time.Minute

	// departedThreshold separates "just left" from "was not here this
	// weekend" on the biweekly cycle.
	departedThreshold = 7 * 24 * time.Hour
)

// InventorySource returns the vendor's current snapshot.
type InventorySource interface {
	FetchCurrentInventory(ctx context.Context) (*model.Snapshot, error)
}

// ArrivalReport summarizes an arrival run.
type ArrivalReport struct {
	Active           bool         `json:"is_active"`
	NotificationSent bool         `json:"notification_sent"`
	InventoryCount   int          `json:"inventory_count"`
	TotalSourceItems int          `json:"total_source_items"`
	Unmatched        []string     `json:"unmatched_items"`
	Ignored          []string     `json:"ignored_items"`
	WishlistSent     int          `json:"wishlist_sent"`
	Source           model.Source `json:"source"`
}

// DepartureReport summarizes a departure run.
type DepartureReport struct {
	Active           bool   `json:"is_active"`
	NotificationSent bool   `json:"notification_sent"`
	Reason           string `json:"reason,omitempty"`
	DaysUntilNext    int    `json:"days_until_next"`
}

// DepartingSoonReport summarizes a departing-soon run.
type DepartingSoonReport struct {
	Active           bool `json:"is_active"`
	NotificationSent bool `json:"notification_sent"`
	HoursLeft        int  `json:"hours_left,omitempty"`
}

// VisitService runs the arrival, departure and departing-soon workflows.
type VisitService struct {
	source     InventorySource
	reconciler *Reconciler
	status     *StatusService
	tokens     *PushTokenService
	wishlist   *WishlistService
	notifier   notify.Notifier
	locker     cache.Locker
	now        func() time.Time
}

// VisitDeps groups VisitService collaborators. Locker may be nil.
type VisitDeps struct {
	Source     InventorySource
	Reconciler *Reconciler
	Status     *StatusService
	Tokens     *PushTokenService
	Wishlist   *WishlistService
	Notifier   notify.Notifier
	Locker     cache.Locker
}

// NewVisitService creates a visit service.
func NewVisitService(deps VisitDeps) *VisitService {
	return &VisitService{
		source:     deps.Source,
		reconciler: deps.Reconciler,
		status:     deps.Status,
		tokens:     deps.Tokens,
		wishlist:   deps.Wishlist,
		notifier:   deps.Notifier,
		locker:     deps.Locker,
		now:        time.Now,
	}
}

// WithClock overrides the clock used for active checks.
func (s *VisitService) WithClock(now func() time.Time) *VisitService {
	s.now = now
	return s
}

func (s *VisitService) withLock(ctx context.Context, job string, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	ok, err := s.locker.TryLock(ctx, "job:"+job, jobLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobRunning
	}
	defer func() {
		if err := s.locker.Unlock(context.Background(), "job:"+job); err != nil {
			logger.Log.Warnf("[Visit] Failed to release %s lock: %v", job, err)
		}
	}()
	return fn()
}

// broadcast sends msg to every active token and deactivates rejected ones.
func (s *VisitService) broadcast(ctx context.Context, msg notify.Message) (notify.Result, error) {
	tokens, err := s.tokens.ActiveTokens(ctx)
	if err != nil {
		return notify.Result{}, err
	}
	if len(tokens) == 0 {
		logger.Log.Info("[Visit] No push tokens to send notifications to")
		return notify.Result{}, nil
	}
	return s.send(ctx, tokens, msg)
}

func (s *VisitService) send(ctx context.Context, tokens []string, msg notify.Message) (notify.Result, error) {
	res, err := s.notifier.Send(ctx, tokens, msg)
	if len(res.Invalid) > 0 {
		if derr := s.tokens.Deactivate(ctx, res.Invalid...); derr != nil {
			logger.Log.Errorf("[Visit] Failed to deactivate invalid tokens: %v", derr)
		}
	}
	return res, err
}

// snapshotStatus builds the stored status for snap, carrying the last
// announced activation over from prior.
func snapshotStatus(snap *model.Snapshot, prior *model.VendorStatus, active bool, ids []string, now time.Time) model.VendorStatus {
	st := model.VendorStatus{
		IsActive:     active,
		Activation:   snap.Activation,
		Expiry:       snap.Expiry,
		Location:     snap.Location,
		InventoryIDs: ids,
		Source:       snap.Source,
		UpdatedAt:    now.UTC(),
	}
	if prior != nil {
		st.NotifiedActivation = prior.NotifiedActivation
	}
	return st
}

// Arrival refreshes the status and inventory. The arrival broadcast and
// wishlist messages go out once per activation; a failed broadcast is retried
// by the next run.
func (s *VisitService) Arrival(ctx context.Context) (*ArrivalReport, error) {
	var report *ArrivalReport
	err := s.withLock(ctx, JobArrival, func() error {
		var err error
		report, err = s.arrival(ctx)
		return err
	})
	return report, err
}

func (s *VisitService) arrival(ctx context.Context) (*ArrivalReport, error) {
	logger.Log.Info("[Arrival] Starting arrival flow")

	snap, err := s.source.FetchCurrentInventory(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	report := &ArrivalReport{
		Source:           snap.Source,
		TotalSourceItems: len(snap.Inventory),
		Unmatched:        []string{},
		Ignored:          []string{},
	}

	prior, err := s.status.Get(ctx)
	if err != nil {
		return nil, err
	}

	if !snap.IsActive(now) {
		if err := s.status.Upsert(ctx, snapshotStatus(snap, prior, false, nil, now)); err != nil {
			return nil, err
		}
		logger.Log.Infof("[Arrival] Vendor is not active. Next arrival: %s", snap.Activation.Format(time.RFC3339))
		return report, nil
	}
	report.Active = true

	announced := prior != nil && prior.NotifiedActivation.Equal(snap.Activation)

	ids := []string{}
	if len(snap.Inventory) > 0 {
		res, err := s.reconciler.Reconcile(ctx, snap.Inventory)
		if err != nil {
			return nil, err
		}
		ids = res.ResolvedIDs
		report.Unmatched = res.UnmatchedNames
		report.Ignored = res.IgnoredNames
	} else {
		logger.Log.Warn("[Arrival] Vendor is active but the source returned no inventory")
	}
	report.InventoryCount = len(ids)

	st := snapshotStatus(snap, prior, true, ids, now)
	if err := s.status.Upsert(ctx, st); err != nil {
		return nil, err
	}
	logger.Log.Infof("[Arrival] Updated status with %d items (source: %s)", len(ids), snap.Source)

	if announced {
		logger.Log.Info("[Arrival] Visit already announced, skipping notifications")
		return report, nil
	}

	if _, err := s.broadcast(ctx, notify.ArrivalMessage(snap.Location)); err != nil {
		return nil, err
	}
	st.NotifiedActivation = snap.Activation
	if err := s.status.Upsert(ctx, st); err != nil {
		return nil, err
	}
	report.NotificationSent = true
	report.WishlistSent = s.notifyWishlists(ctx)
	return report, nil
}

// notifyWishlists sends one message per device. Failures are logged only.
func (s *VisitService) notifyWishlists(ctx context.Context) int {
	matches, err := s.wishlist.MatchesForCurrent(ctx)
	if err != nil {
		logger.Log.Errorf("[Arrival] Error collecting wishlist matches: %v", err)
		return 0
	}

	tokens := make([]string, 0, len(matches))
	for t := range matches {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	sent := 0
	for _, t := range tokens {
		res, err := s.send(ctx, []string{t}, notify.WishlistMessage(matches[t]))
		if err != nil {
			logger.Log.Errorf("[Arrival] Error sending wishlist notification: %v", err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}
		if res.Sent > 0 {
			sent++
		}
	}
	if sent > 0 {
		logger.Log.Infof("[Arrival] Sent %d wishlist notification(s)", sent)
	}
	return sent
}

// Departure records whether the vendor left and announces it when he was here
// this weekend.
func (s *VisitService) Departure(ctx context.Context) (*DepartureReport, error) {
	var report *DepartureReport
	err := s.withLock(ctx, JobDeparture, func() error {
		var err error
		report, err = s.departure(ctx)
		return err
	})
	return report, err
}

func (s *VisitService) departure(ctx context.Context) (*DepartureReport, error) {
	snap, err := s.source.FetchCurrentInventory(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := snap.IsActive(now)

	prior, err := s.status.Get(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	if active && prior != nil && prior.Activation.Equal(snap.Activation) {
		ids = prior.InventoryIDs
	}
	if err := s.status.Upsert(ctx, snapshotStatus(snap, prior, active, ids, now)); err != nil {
		return nil, err
	}

	if active {
		logger.Log.Info("[Departure] Vendor is still active")
		return &DepartureReport{Active: true, Reason: "still-active"}, nil
	}

	untilNext := snap.Activation.Sub(now)
	report := &DepartureReport{DaysUntilNext: int(math.Round(untilNext.Hours() / 24))}
	if untilNext <= departedThreshold {
		logger.Log.Infof("[Departure] Vendor was not here this weekend. Next arrival in %d days", report.DaysUntilNext)
		report.Reason = "not-here-this-weekend"
		return report, nil
	}

	logger.Log.Infof("[Departure] Vendor just left. Next arrival in %d days", report.DaysUntilNext)
	if _, err := s.broadcast(ctx, notify.DepartureMessage(snap.Activation)); err != nil {
		return nil, err
	}
	report.NotificationSent = true
	return report, nil
}

// DepartingSoon warns subscribers while the vendor is still here.
func (s *VisitService) DepartingSoon(ctx context.Context) (*DepartingSoonReport, error) {
	var report *DepartingSoonReport
	err := s.withLock(ctx, JobDepartingSoon, func() error {
		var err error
		report, err = s.departingSoon(ctx)
		return err
	})
	return report, err
}

func (s *VisitService) departingSoon(ctx context.Context) (*DepartingSoonReport, error) {
	snap, err := s.source.FetchCurrentInventory(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !snap.IsActive(now) {
		logger.Log.Info("[DepartingSoon] Vendor is not active, no warning needed")
		return &DepartingSoonReport{}, nil
	}

	hours := int(math.Round(snap.Expiry.Sub(now).Hours()))
	if hours < 1 {
		hours = 1
	}
	logger.Log.Infof("[DepartingSoon] Vendor leaving in ~%dh, sending warning", hours)
	if _, err := s.broadcast(ctx, notify.DepartingSoonMessage(hours)); err != nil {
		return nil, err
	}
	return &DepartingSoonReport{Active: true, NotificationSent: true, HoursLeft: hours}, nil
}

// Run dispatches a job by name.
func (s *VisitService) Run(ctx context.Context, job string) (interface{}, error) {
	switch job {
	case JobArrival:
		return s.Arrival(ctx)
	case JobDeparture:
		return s.Departure(ctx)
	case JobDepartingSoon:
		return s.DepartingSoon(ctx)
	}
	return nil, ErrUnknownJob
}
