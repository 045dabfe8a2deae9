package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"baro-tracker-api/internal/model"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "baro.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) { fn(t, s) })
	}
}

func TestInsertAndFindBySegment(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		item := model.NewCatalogItem("Primed Flow", "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", "Mod", 100000, 300, "2024-01-12")
		id, err := s.InsertItem(ctx, item)
		if err != nil || id == "" {
			t.Fatalf("insert: %q %v", id, err)
		}

		got, err := s.FindBySegment(ctx, "PrimedFlow")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got == nil || got.ID != id || got.Name != "Primed Flow" {
			t.Fatalf("expected inserted item, got %+v", got)
		}
		if len(got.OfferingDates) != 1 || got.OfferingDates[0] != "2024-01-12" {
			t.Fatalf("unexpected offering dates %v", got.OfferingDates)
		}

		for _, seg := range []string{"Flow", "", "Warframe/PrimedFlow"} {
			if miss, _ := s.FindBySegment(ctx, seg); miss != nil {
				t.Fatalf("segment %q should not match, got %+v", seg, miss)
			}
		}
	})
}

func TestDuplicateCanonicalPathRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		path := "/Lotus/Types/Items/ShipDecos/BaroBust"
		if _, err := s.InsertItem(ctx, model.NewCatalogItem("Bust", path, "", 1, 1, "2024-01-12")); err != nil {
			t.Fatalf("insert: %v", err)
		}
		_, err := s.InsertItem(ctx, model.NewCatalogItem("Bust copy", path, "", 1, 1, "2024-01-12"))
		if !errors.Is(err, ErrDuplicateCanonicalPath) {
			t.Fatalf("expected ErrDuplicateCanonicalPath, got %v", err)
		}

		// Items without a path never collide.
		for i := 0; i < 2; i++ {
			if _, err := s.InsertItem(ctx, model.NewCatalogItem("Legacy", "", "", 1, 1, "2024-01-12")); err != nil {
				t.Fatalf("insert legacy %d: %v", i, err)
			}
		}
	})
}

func TestAppendOfferingDateIsSet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, _ := s.InsertItem(ctx, model.NewCatalogItem("Item", "/Lotus/A/Item", "", 1, 1, "2024-01-12"))

		for _, d := range []string{"2024-01-12", "2024-01-26", "2024-01-26"} {
			if err := s.AppendOfferingDate(ctx, id, d); err != nil {
				t.Fatalf("append %s: %v", d, err)
			}
		}
		got, err := s.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		dates := got.SortedOfferingDates()
		if len(dates) != 2 || dates[0] != "2024-01-12" || dates[1] != "2024-01-26" {
			t.Fatalf("expected two distinct dates, got %v", dates)
		}

		if err := s.AppendOfferingDate(ctx, "999999", "2024-01-12"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLegacyItemsAndSetCanonicalPath(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		legacyID, _ := s.InsertItem(ctx, model.NewCatalogItem("Old Bust", "", "", 1, 1, "2020-01-01"))
		s.InsertItem(ctx, model.NewCatalogItem("Has Path", "/Lotus/B/HasPath", "", 1, 1, "2020-01-01"))

		got, err := s.FindLegacyByName(ctx, "Old Bust")
		if err != nil || got == nil || got.ID != legacyID {
			t.Fatalf("expected legacy item, got %+v (%v)", got, err)
		}
		if miss, _ := s.FindLegacyByName(ctx, "Has Path"); miss != nil {
			t.Fatalf("items with a path are not legacy, got %+v", miss)
		}

		missing, err := s.FindMissingCanonicalPath(ctx)
		if err != nil || len(missing) != 1 || missing[0].ID != legacyID {
			t.Fatalf("expected one missing item, got %v (%v)", missing, err)
		}

		ok, err := s.SetCanonicalPath(ctx, legacyID, "/Lotus/C/OldBust")
		if err != nil || !ok {
			t.Fatalf("expected path set, got %v (%v)", ok, err)
		}
		ok, err = s.SetCanonicalPath(ctx, legacyID, "/Lotus/C/Other")
		if err != nil || ok {
			t.Fatalf("second set must be a no-op, got %v (%v)", ok, err)
		}
		found, _ := s.FindBySegment(ctx, "OldBust")
		if found == nil || found.ID != legacyID {
			t.Fatalf("expected segment lookup after backfill, got %+v", found)
		}
	})
}

func TestWishlistTokens(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a, _ := s.InsertItem(ctx, model.NewCatalogItem("A", "/Lotus/A", "", 1, 1, "2024-01-12"))
		b, _ := s.InsertItem(ctx, model.NewCatalogItem("B", "/Lotus/B", "", 1, 1, "2024-01-12"))

		for _, id := range []string{a, a, b} {
			if err := s.AddWishlistToken(ctx, id, "ExponentPushToken[old]"); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		item, _ := s.FindByID(ctx, a)
		if item.WishlistCount != 1 {
			t.Fatalf("expected count 1, got %d", item.WishlistCount)
		}

		n, err := s.ReplaceWishlistToken(ctx, "ExponentPushToken[old]", "ExponentPushToken[new]")
		if err != nil || n != 2 {
			t.Fatalf("expected 2 replaced, got %d (%v)", n, err)
		}
		item, _ = s.FindByID(ctx, b)
		if len(item.WishlistTokens) != 1 || item.WishlistTokens[0] != "ExponentPushToken[new]" {
			t.Fatalf("unexpected tokens %v", item.WishlistTokens)
		}

		if err := s.RemoveWishlistToken(ctx, b, "ExponentPushToken[new]"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		item, _ = s.FindByID(ctx, b)
		if item.WishlistCount != 0 {
			t.Fatalf("expected count 0, got %d", item.WishlistCount)
		}
	})
}

func TestUpsertSightingKeepsFirstSeen(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := time.Date(2024, 1, 12, 13, 0, 0, 0, time.UTC)
		second := first.Add(14 * 24 * time.Hour)

		s.UpsertSighting(ctx, model.Sighting{CanonicalPathRaw: "/Lotus/X", DisplayName: "X", Ducats: 100, IsNewCandidate: true, SeenAt: first})
		s.UpsertSighting(ctx, model.Sighting{CanonicalPathRaw: "/Lotus/X", DisplayName: "X renamed", Ducats: 200, SeenAt: second})

		list, err := s.ListUnknown(ctx)
		if err != nil || len(list) != 1 {
			t.Fatalf("expected one unknown item, got %v (%v)", list, err)
		}
		u := list[0]
		if !u.FirstSeenAt.Equal(first) || !u.LastSeenAt.Equal(second) {
			t.Fatalf("unexpected seen times %v / %v", u.FirstSeenAt, u.LastSeenAt)
		}
		if u.DisplayName != "X renamed" || u.Ducats != 200 || !u.IsSuspectedNew {
			t.Fatalf("unexpected unknown item %+v", u)
		}
	})
}

func TestStatusAndTokens(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if st, err := s.GetStatus(ctx); err != nil || st != nil {
			t.Fatalf("expected no status, got %+v (%v)", st, err)
		}
		act := time.Date(2024, 1, 12, 13, 0, 0, 0, time.UTC)
		want := model.VendorStatus{
			IsActive:     true,
			Activation:   act,
			Expiry:       act.Add(48 * time.Hour),
			Location:     "Strata Relay (Earth)",
			InventoryIDs: []string{"1", "2"},
			Source:       model.SourcePrimary,
			UpdatedAt:    act,

			NotifiedActivation: act,
		}
		if err := s.UpsertStatus(ctx, want); err != nil {
			t.Fatalf("upsert status: %v", err)
		}
		got, err := s.GetStatus(ctx)
		if err != nil || got == nil {
			t.Fatalf("get status: %v", err)
		}
		if !got.IsActive || got.Location != want.Location || len(got.InventoryIDs) != 2 || !got.Expiry.Equal(want.Expiry) {
			t.Fatalf("unexpected status %+v", got)
		}
		if !got.NotifiedActivation.Equal(act) {
			t.Fatalf("expected notified activation %v, got %v", act, got.NotifiedActivation)
		}

		s.UpsertToken(ctx, "ExponentPushToken[a]", "dev-a", act)
		s.UpsertToken(ctx, "ExponentPushToken[b]", "dev-b", act)
		if err := s.DeactivateToken(ctx, "ExponentPushToken[a]"); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		active, _ := s.ActiveTokens(ctx)
		if len(active) != 1 || active[0] != "ExponentPushToken[b]" {
			t.Fatalf("unexpected active tokens %v", active)
		}

		pt, err := s.UpsertToken(ctx, "ExponentPushToken[a]", "dev-a", act.Add(time.Hour))
		if err != nil || !pt.IsActive || !pt.CreatedAt.Equal(act) {
			t.Fatalf("expected reactivated token, got %+v (%v)", pt, err)
		}
		s.DeactivateToken(ctx, "ExponentPushToken[b]")
		n, err := s.DeleteInactiveTokens(ctx, act.Add(time.Minute))
		if err != nil || n != 1 {
			t.Fatalf("expected one inactive token deleted, got %d (%v)", n, err)
		}
		s.DeleteToken(ctx, "ExponentPushToken[b]")
		active, _ = s.ActiveTokens(ctx)
		if len(active) != 1 || active[0] != "ExponentPushToken[a]" {
			t.Fatalf("unexpected active tokens %v", active)
		}
	})
}

func TestLikes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Date(2024, 1, 12, 15, 0, 0, 0, time.UTC)
		id, _ := s.InsertItem(ctx, model.NewCatalogItem("Primed Flow", "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", "Mod", 1, 1, "2024-01-12"))

		first, err := s.InsertLike(ctx, id, "user-1", now)
		if err != nil || first.ID == "" || first.UID != "user-1" {
			t.Fatalf("insert like: %+v (%v)", first, err)
		}
		again, err := s.InsertLike(ctx, id, "user-1", now.Add(time.Hour))
		if err != nil || again.ID != first.ID || !again.CreatedAt.Equal(now) {
			t.Fatalf("expected the existing like back, got %+v (%v)", again, err)
		}
		if _, err := s.InsertLike(ctx, id, "user-2", now); err != nil {
			t.Fatalf("insert second like: %v", err)
		}

		likes, err := s.ListLikes(ctx, id)
		if err != nil || len(likes) != 2 || likes[0].UID != "user-1" {
			t.Fatalf("unexpected likes %+v (%v)", likes, err)
		}
		item, _ := s.FindByID(ctx, id)
		if len(item.LikeRefs) != 2 || item.LikeRefs[0] != first.ID {
			t.Fatalf("item must list like ids, got %v", item.LikeRefs)
		}

		removed, err := s.DeleteLike(ctx, id, "user-1")
		if err != nil || !removed {
			t.Fatalf("delete like: %v %v", removed, err)
		}
		if removed, _ := s.DeleteLike(ctx, id, "user-1"); removed {
			t.Fatalf("second delete must report nothing removed")
		}
		item, _ = s.FindByID(ctx, id)
		if len(item.LikeRefs) != 1 {
			t.Fatalf("expected one like id left, got %v", item.LikeRefs)
		}

		if _, err := s.InsertLike(ctx, "999999", "user-1", now); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown item, got %v", err)
		}
		if _, err := s.ListLikes(ctx, "999999"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound listing unknown item, got %v", err)
		}
	})
}

func TestReviews(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, _ := s.InsertItem(ctx, model.NewCatalogItem("Prisma Grakata", "/Lotus/Weapons/VoidTrader/PrismaGrakata", "Primary", 1, 1, "2024-01-12"))

		older, err := s.InsertReview(ctx, model.Review{ItemID: id, User: "Tenno", Content: "solid", Date: "2024-01-12", Time: "10:00:00", UID: "user-1"})
		if err != nil || older.ID == "" || older.ReportCount != 0 {
			t.Fatalf("insert review: %+v (%v)", older, err)
		}
		newer, err := s.InsertReview(ctx, model.Review{ItemID: id, User: "Ordis", Content: "great", Date: "2024-01-13", Time: "09:00:00", UID: "user-2"})
		if err != nil {
			t.Fatalf("insert review: %v", err)
		}
		_, err = s.InsertReview(ctx, model.Review{ItemID: id, User: "Tenno", Content: "again", Date: "2024-01-14", UID: "user-1"})
		if !errors.Is(err, ErrReviewExists) {
			t.Fatalf("expected ErrReviewExists, got %v", err)
		}

		reviews, err := s.ListReviews(ctx, id)
		if err != nil || len(reviews) != 2 || reviews[0].ID != newer.ID || reviews[1].ID != older.ID {
			t.Fatalf("expected newest first, got %+v (%v)", reviews, err)
		}
		item, _ := s.FindByID(ctx, id)
		if len(item.ReviewRefs) != 2 {
			t.Fatalf("item must list review ids, got %v", item.ReviewRefs)
		}

		if got, err := s.UpdateReview(ctx, older.ID, "user-2", model.ReviewEdit{Content: "hijack"}); err != nil || got != nil {
			t.Fatalf("only the author may edit, got %+v (%v)", got, err)
		}
		edited, err := s.UpdateReview(ctx, older.ID, "user-1", model.ReviewEdit{Content: "still solid", Date: "2024-01-15", Time: "08:00:00"})
		if err != nil || edited == nil || edited.Content != "still solid" || edited.User != "Tenno" {
			t.Fatalf("unexpected edit %+v (%v)", edited, err)
		}

		for i := 0; i < 2; i++ {
			if ok, err := s.ReportReview(ctx, newer.ID); err != nil || !ok {
				t.Fatalf("report: %v %v", ok, err)
			}
		}
		if ok, _ := s.ReportReview(ctx, "404"); ok {
			t.Fatalf("unknown review must not be reported")
		}
		reviews, _ = s.ListReviews(ctx, id)
		if reviews[0].ID != older.ID || reviews[1].ReportCount != 2 {
			t.Fatalf("unexpected reviews after edit and reports %+v", reviews)
		}

		if ok, _ := s.DeleteReview(ctx, older.ID, "user-2"); ok {
			t.Fatalf("only the author may delete")
		}
		if ok, err := s.DeleteReview(ctx, older.ID, "user-1"); err != nil || !ok {
			t.Fatalf("delete: %v %v", ok, err)
		}
		item, _ = s.FindByID(ctx, id)
		if len(item.ReviewRefs) != 1 || item.ReviewRefs[0] != newer.ID {
			t.Fatalf("expected only the remaining review id, got %v", item.ReviewRefs)
		}
		if _, err := s.InsertReview(ctx, model.Review{ItemID: id, User: "Tenno", Content: "back", Date: "2024-01-16", UID: "user-1"}); err != nil {
			t.Fatalf("author may review again after deleting: %v", err)
		}
	})
}

func TestMarketData(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, _ := s.InsertItem(ctx, model.NewCatalogItem("Primed Flow", "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", "Mod", 1, 1, "2024-01-12"))

		if m, err := s.GetMarketData(ctx, id); err != nil || m != nil {
			t.Fatalf("expected no market data, got %+v (%v)", m, err)
		}
		rank := 10
		updated := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
		err := s.UpsertMarketData(ctx, model.MarketData{
			ItemID: id,
			Data: []model.MarketPoint{
				{Datetime: "2024-01-10T00:00:00.000+00:00", Volume: 12, AvgPrice: 30.5},
				{Datetime: "2024-01-11T00:00:00.000+00:00", Volume: 4, AvgPrice: 95, ModRank: &rank},
			},
			LastUpdated: updated,
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		err = s.UpsertMarketData(ctx, model.MarketData{
			ItemID:      id,
			Data:        []model.MarketPoint{{Datetime: "2024-01-12T00:00:00.000+00:00", Volume: 7, AvgPrice: 31, ModRank: &rank}},
			LastUpdated: updated.Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		m, err := s.GetMarketData(ctx, id)
		if err != nil || m == nil {
			t.Fatalf("get: %v", err)
		}
		if len(m.Data) != 1 || m.Data[0].Volume != 7 || m.Data[0].ModRank == nil || *m.Data[0].ModRank != 10 {
			t.Fatalf("expected replaced history, got %+v", m.Data)
		}
		if !m.LastUpdated.Equal(updated.Add(24 * time.Hour)) {
			t.Fatalf("unexpected last updated %v", m.LastUpdated)
		}
	})
}

func TestSQLiteAddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE vendor_status (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		is_active INTEGER NOT NULL,
		activation TEXT NOT NULL,
		expiry TEXT NOT NULL,
		location TEXT NOT NULL,
		inventory TEXT NOT NULL DEFAULT '[]',
		source TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`)
	db.Close()
	if err != nil {
		t.Fatalf("create old schema: %v", err)
	}

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open store on old schema: %v", err)
	}
	defer s.Close()

	act := time.Date(2024, 1, 12, 13, 0, 0, 0, time.UTC)
	if err := s.UpsertStatus(context.Background(), model.VendorStatus{IsActive: true, Activation: act, NotifiedActivation: act}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetStatus(context.Background())
	if err != nil || got == nil || !got.NotifiedActivation.Equal(act) {
		t.Fatalf("expected notified activation to persist, got %+v (%v)", got, err)
	}
}
