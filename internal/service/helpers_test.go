package service

import (
	"context"
	"errors"
	"time"

	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/notify"
	"baro-tracker-api/internal/reference"
	"baro-tracker-api/internal/repository"
)

var testNow = time.Date(2024, 1, 12, 14, 0, 0, 0, time.UTC)

const today = "2024-01-12"

func testResolver() *reference.Resolver {
	ds := reference.NewDataset([]model.ReferenceEntry{
		{Name: "Primed Flow", CanonicalPath: "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", Type: "Mod", ImageRef: "primed-flow.png"},
		{Name: "Prisma Grakata", CanonicalPath: "/Lotus/Weapons/VoidTrader/PrismaGrakata", Type: "Primary"},
		{Name: "Primed Continuity", CanonicalPath: "/Lotus/Upgrades/Mods/Warframe/PrimedContinuity", Type: "Mod"},
		{Name: "Void Surplus", CanonicalPath: "/Lotus/Types/StoreItems/Packages/VoidSurplus", Type: "Misc"},
	})
	return reference.NewResolver(reference.NewStaticProvider(ds), reference.ResolverConfig{
		ImageBaseURL: "https://cdn.example/img/",
		WikiBaseURL:  "https://wiki.example/w/",
	})
}

func newTestReconciler(store repository.Store) *Reconciler {
	return NewReconciler(store, store, testResolver()).WithClock(func() time.Time { return testNow })
}

func entry(name, path string) model.InventoryEntry {
	return model.InventoryEntry{CanonicalPathRaw: path, DisplayName: name, Ducats: 100, Credits: 50000}
}

func seed(store repository.Store, name, path string) string {
	id, err := store.InsertItem(context.Background(), model.NewCatalogItem(name, path, "Mod", 1, 1, "2023-12-29"))
	if err != nil {
		panic(err)
	}
	return id
}

type sentMessage struct {
	tokens []string
	msg    notify.Message
}

var errPushUnavailable = errors.New("push provider unavailable")

// recordingNotifier records every delivered send and reports tokens in reject
// as unregistered. The first failures sends return errPushUnavailable.
type recordingNotifier struct {
	reject   map[string]bool
	failures int
	sent     []sentMessage
}

func (n *recordingNotifier) Send(ctx context.Context, tokens []string, msg notify.Message) (notify.Result, error) {
	if n.failures > 0 {
		n.failures--
		return notify.Result{}, errPushUnavailable
	}
	n.sent = append(n.sent, sentMessage{tokens: tokens, msg: msg})
	var res notify.Result
	for _, t := range tokens {
		if n.reject[t] {
			res.Failed++
			res.Invalid = append(res.Invalid, t)
			continue
		}
		res.Sent++
	}
	return res, nil
}

type fixedSource struct {
	snap *model.Snapshot
	err  error
}

func (f *fixedSource) FetchCurrentInventory(ctx context.Context) (*model.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.snap
	s.Inventory = append([]model.InventoryEntry(nil), f.snap.Inventory...)
	return &s, nil
}
