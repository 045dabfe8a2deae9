package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"baro-tracker-api/internal/cache"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/repository"
)

type visitFixture struct {
	store    *repository.MemoryStore
	source   *fixedSource
	notifier *recordingNotifier
	tokens   *PushTokenService
	visits   *VisitService
}

func newVisitFixture(t *testing.T, snap *model.Snapshot, locker cache.Locker) *visitFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := &visitFixture{
		store:    store,
		source:   &fixedSource{snap: snap},
		notifier: &recordingNotifier{reject: map[string]bool{}},
		tokens:   NewPushTokenService(store),
	}
	f.visits = NewVisitService(VisitDeps{
		Source:     f.source,
		Reconciler: newTestReconciler(store),
		Status:     NewStatusService(store, store),
		Tokens:     f.tokens,
		Wishlist:   NewWishlistService(store, store),
		Notifier:   f.notifier,
		Locker:     locker,
	}).WithClock(func() time.Time { return testNow })
	return f
}

func activeSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Activation: testNow.Add(-2 * time.Hour),
		Expiry:     testNow.Add(46 * time.Hour),
		Location:   "Kronia Relay (Saturn)",
		Source:     model.SourcePrimary,
		Inventory: []model.InventoryEntry{
			entry("Primed Flow", "/Lotus/StoreItems/Upgrades/Mods/Warframe/PrimedFlow"),
			entry("Prisma Grakata", "/Lotus/StoreItems/Weapons/VoidTrader/PrismaGrakata"),
			entry("Void Surplus", "/Lotus/StoreItems/Types/StoreItems/Packages/VoidSurplus"),
		},
	}
}

func inactiveSnapshot(nextIn time.Duration) *model.Snapshot {
	return &model.Snapshot{
		Activation: testNow.Add(nextIn),
		Expiry:     testNow.Add(nextIn + 48*time.Hour),
		Location:   "Orcus Relay (Pluto)",
		Source:     model.SourceSecondary,
		Inventory:  []model.InventoryEntry{},
	}
}

func TestArrivalAnnouncesOncePerVisit(t *testing.T) {
	ctx := context.Background()
	f := newVisitFixture(t, activeSnapshot(), cache.NewMemoryCache())

	grakata := seed(f.store, "Prisma Grakata", "/Lotus/Weapons/VoidTrader/PrismaGrakata")
	if err := f.store.AddWishlistToken(ctx, grakata, tokenA); err != nil {
		t.Fatalf("wishlist: %v", err)
	}
	for _, tok := range []string{tokenA, tokenB} {
		if _, err := f.tokens.Register(ctx, tok, ""); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	f.notifier.reject[tokenB] = true

	report, err := f.visits.Arrival(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Active || !report.NotificationSent || report.InventoryCount != 2 || report.WishlistSent != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.TotalSourceItems != 3 || len(report.Ignored) != 1 || report.Source != model.SourcePrimary {
		t.Fatalf("unexpected report %+v", report)
	}

	if len(f.notifier.sent) != 2 {
		t.Fatalf("expected arrival and wishlist sends, got %d", len(f.notifier.sent))
	}
	if got := f.notifier.sent[0]; len(got.tokens) != 2 || got.msg.Title != "Baro Ki'Teer has arrived!" || got.msg.Body != "Visit him at Kronia Relay (Saturn)" {
		t.Fatalf("unexpected arrival send %+v", got)
	}
	if got := f.notifier.sent[1]; len(got.tokens) != 1 || got.tokens[0] != tokenA || got.msg.Body != "Baro Ki'Teer is selling Prisma Grakata" {
		t.Fatalf("unexpected wishlist send %+v", got)
	}

	active, _ := f.tokens.ActiveTokens(ctx)
	if len(active) != 1 || active[0] != tokenA {
		t.Fatalf("rejected token must be deactivated, active %v", active)
	}

	st, _ := f.store.GetStatus(ctx)
	if st == nil || !st.IsActive || len(st.InventoryIDs) != 2 || st.Location != "Kronia Relay (Saturn)" {
		t.Fatalf("unexpected status %+v", st)
	}

	report, err = f.visits.Arrival(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.NotificationSent || len(f.notifier.sent) != 2 {
		t.Fatalf("visit must be announced once, report %+v with %d sends", report, len(f.notifier.sent))
	}
	if report.InventoryCount != 2 {
		t.Fatalf("inventory must still refresh, got %+v", report)
	}
}

func TestArrivalRetriesFailedAnnouncement(t *testing.T) {
	ctx := context.Background()
	f := newVisitFixture(t, activeSnapshot(), cache.NewMemoryCache())
	if _, err := f.tokens.Register(ctx, tokenA, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.notifier.failures = 1

	if _, err := f.visits.Arrival(ctx); !errors.Is(err, errPushUnavailable) {
		t.Fatalf("expected push failure, got %v", err)
	}
	st, _ := f.store.GetStatus(ctx)
	if st == nil || !st.IsActive || len(st.InventoryIDs) != 2 {
		t.Fatalf("status must be stored before the broadcast, got %+v", st)
	}
	if !st.NotifiedActivation.IsZero() {
		t.Fatalf("failed broadcast must not mark the visit announced, got %v", st.NotifiedActivation)
	}

	report, err := f.visits.Arrival(ctx)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !report.NotificationSent || len(f.notifier.sent) != 1 {
		t.Fatalf("retry must announce the visit, report %+v with %d sends", report, len(f.notifier.sent))
	}
	st, _ = f.store.GetStatus(ctx)
	if !st.NotifiedActivation.Equal(activeSnapshot().Activation) {
		t.Fatalf("expected notified activation %v, got %v", activeSnapshot().Activation, st.NotifiedActivation)
	}

	report, err = f.visits.Arrival(ctx)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if report.NotificationSent || len(f.notifier.sent) != 1 {
		t.Fatalf("visit must be announced once after the retry, report %+v with %d sends", report, len(f.notifier.sent))
	}
}

func TestArrivalInactive(t *testing.T) {
	ctx := context.Background()
	f := newVisitFixture(t, inactiveSnapshot(24*time.Hour), nil)
	if _, err := f.tokens.Register(ctx, tokenA, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	report, err := f.visits.Arrival(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Active || report.NotificationSent || len(f.notifier.sent) != 0 {
		t.Fatalf("inactive vendor must not notify, got %+v", report)
	}
	st, _ := f.store.GetStatus(ctx)
	if st == nil || st.IsActive || len(st.InventoryIDs) != 0 || !st.Activation.Equal(testNow.Add(24*time.Hour)) {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestArrivalSourceFailure(t *testing.T) {
	f := newVisitFixture(t, activeSnapshot(), nil)
	f.source.err = errors.New("both down")

	if _, err := f.visits.Arrival(context.Background()); err == nil {
		t.Fatal("expected source error")
	}
	if st, _ := f.store.GetStatus(context.Background()); st != nil {
		t.Fatalf("status must be untouched, got %+v", st)
	}
}

func TestDeparture(t *testing.T) {
	tests := []struct {
		name     string
		nextIn   time.Duration
		wantSent bool
		wantDays int
		reason   string
	}{
		{name: "just left", nextIn: 10 * 24 * time.Hour, wantSent: true, wantDays: 10},
		{name: "not here this weekend", nextIn: 3 * 24 * time.Hour, wantDays: 3, reason: "not-here-this-weekend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newVisitFixture(t, inactiveSnapshot(tt.nextIn), nil)
			if _, err := f.tokens.Register(ctx, tokenA, ""); err != nil {
				t.Fatalf("register: %v", err)
			}

			report, err := f.visits.Departure(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if report.NotificationSent != tt.wantSent || report.DaysUntilNext != tt.wantDays || report.Reason != tt.reason {
				t.Fatalf("unexpected report %+v", report)
			}
			if tt.wantSent && (len(f.notifier.sent) != 1 || f.notifier.sent[0].msg.Title != "Baro Ki'Teer has departed") {
				t.Fatalf("unexpected sends %+v", f.notifier.sent)
			}
			if !tt.wantSent && len(f.notifier.sent) != 0 {
				t.Fatalf("expected no sends, got %d", len(f.notifier.sent))
			}
			if st, _ := f.store.GetStatus(ctx); st == nil || st.IsActive {
				t.Fatalf("expected inactive status, got %+v", st)
			}
		})
	}
}

func TestDepartureStillActiveKeepsInventory(t *testing.T) {
	ctx := context.Background()
	snap := activeSnapshot()
	f := newVisitFixture(t, snap, nil)
	if err := f.store.UpsertStatus(ctx, model.VendorStatus{IsActive: true, Activation: snap.Activation, InventoryIDs: []string{"a", "b"}}); err != nil {
		t.Fatalf("status: %v", err)
	}

	report, err := f.visits.Departure(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Active || report.NotificationSent || report.Reason != "still-active" {
		t.Fatalf("unexpected report %+v", report)
	}
	st, _ := f.store.GetStatus(ctx)
	if len(st.InventoryIDs) != 2 {
		t.Fatalf("expected inventory kept, got %v", st.InventoryIDs)
	}
}

func TestDepartingSoonHours(t *testing.T) {
	tests := []struct {
		left time.Duration
		want int
	}{
		{left: 2*time.Hour + 29*time.Minute, want: 2},
		{left: 5*time.Hour + 40*time.Minute, want: 6},
		{left: 10 * time.Minute, want: 1},
	}

	for _, tt := range tests {
		snap := activeSnapshot()
		snap.Expiry = testNow.Add(tt.left)
		f := newVisitFixture(t, snap, nil)
		if _, err := f.tokens.Register(context.Background(), tokenA, ""); err != nil {
			t.Fatalf("register: %v", err)
		}

		report, err := f.visits.DepartingSoon(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.HoursLeft != tt.want || !report.NotificationSent {
			t.Fatalf("left %v: expected %d hours, got %+v", tt.left, tt.want, report)
		}
		if got := f.notifier.sent[0].msg.Title; got != "Baro is leaving soon!" {
			t.Fatalf("unexpected title %q", got)
		}
	}
}

func TestDepartingSoonInactive(t *testing.T) {
	f := newVisitFixture(t, inactiveSnapshot(time.Hour), nil)
	report, err := f.visits.DepartingSoon(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Active || report.NotificationSent || len(f.notifier.sent) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestJobLock(t *testing.T) {
	ctx := context.Background()
	locker := cache.NewMemoryCache()
	f := newVisitFixture(t, inactiveSnapshot(24*time.Hour), locker)

	ok, err := locker.TryLock(ctx, "job:"+JobArrival, time.Minute)
	if err != nil || !ok {
		t.Fatalf("failed to take lock: %v", err)
	}
	if _, err := f.visits.Arrival(ctx); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning, got %v", err)
	}
	if _, err := f.visits.Departure(ctx); err != nil {
		t.Fatalf("other jobs must not be blocked: %v", err)
	}

	if err := locker.Unlock(ctx, "job:"+JobArrival); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := f.visits.Run(ctx, JobArrival); err != nil {
		t.Fatalf("expected lock released, got %v", err)
	}
	if _, err := f.visits.Run(ctx, "rebuild"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}
