package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"baro-tracker-api/internal/handler"
	"baro-tracker-api/internal/middleware"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/notify"
	"baro-tracker-api/internal/reference"
	"baro-tracker-api/internal/repository"
	"baro-tracker-api/internal/service"
	"baro-tracker-api/internal/source"
)

const (
	adminKey = "admin-secret"
	tokenA   = "ExponentPushToken[aaaaaaaaaaaaaaaaaaaaaa]"
	tokenB   = "ExponentPushToken[bbbbbbbbbbbbbbbbbbbbbb]"
)

type stubSource struct {
	snap *model.Snapshot
	err  error
}

func (s stubSource) FetchCurrentInventory(ctx context.Context) (*model.Snapshot, error) {
	return s.snap, s.err
}

type stubFetcher struct{}

func (stubFetcher) Statistics(ctx context.Context, slug string) ([]model.MarketPoint, error) {
	return []model.MarketPoint{{Datetime: "2024-01-11T00:00:00.000+00:00", Volume: 3, AvgPrice: 75}}, nil
}

type testServer struct {
	store  *repository.MemoryStore
	tokens *service.PushTokenService
	router http.Handler
}

func newTestServer(t *testing.T, src service.InventorySource) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	resolver := reference.NewResolver(reference.NewStaticProvider(reference.NewDataset([]model.ReferenceEntry{
		{Name: "Primed Flow", CanonicalPath: "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", Type: "Mod"},
	})), reference.ResolverConfig{})

	status := service.NewStatusService(store, store)
	wishlist := service.NewWishlistService(store, store)
	tokens := service.NewPushTokenService(store)
	visits := service.NewVisitService(service.VisitDeps{
		Source:     src,
		Reconciler: service.NewReconciler(store, store, resolver),
		Status:     status,
		Tokens:     tokens,
		Wishlist:   wishlist,
		Notifier:   notify.NewLogNotifier(),
	})

	market := service.NewMarketService(service.MarketDeps{Catalog: store, Market: store, Fetcher: stubFetcher{}})

	r := New(Config{
		Handler: handler.New("baro-tracker-api", "test", handler.ReadyCheck{
			Name:  "store",
			Probe: func(ctx context.Context) error { _, err := store.GetStats(ctx); return err },
		}),
		ItemHandler:      handler.NewItemHandler(store, status, wishlist),
		SocialHandler:    handler.NewSocialHandler(service.NewLikeService(store), service.NewReviewService(store), market),
		PushTokenHandler: handler.NewPushTokenHandler(tokens, wishlist),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Store:     store,
			Visits:    visits,
			Backfill:  service.NewBackfillService(store, resolver),
			Market:    market,
			Source:    src,
			StoreType: "memory",
			CacheType: "memory",
		}),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: []string{adminKey}}),
	})
	return &testServer{store: store, tokens: tokens, router: r}
}

func (s *testServer) do(method, path, body string, admin bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if admin {
		req.Header.Set("X-API-Key", adminKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid body %q: %v", rec.Body.String(), err)
	}
	return env
}

func activeSnapshot() *model.Snapshot {
	now := time.Now()
	return &model.Snapshot{
		Activation: now.Add(-time.Hour),
		Expiry:     now.Add(time.Hour),
		Location:   "Larunda Relay (Mercury)",
		Source:     model.SourcePrimary,
		Inventory: []model.InventoryEntry{
			{CanonicalPathRaw: "/Lotus/StoreItems/Upgrades/Mods/Warframe/PrimedFlow", DisplayName: "Primed Flow", Ducats: 300, Credits: 175000},
		},
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, stubSource{snap: activeSnapshot()})

	for _, path := range []string{"/api/status", "/api/v1/health", "/api/v1/ready"} {
		rec := s.do(http.MethodGet, path, "", false)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing request id", path)
		}
	}
}

func TestAdminRequiresKey(t *testing.T) {
	s := newTestServer(t, stubSource{snap: activeSnapshot()})

	if rec := s.do(http.MethodGet, "/api/v1/admin/stats", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := s.do(http.MethodGet, "/api/v1/admin/stats", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"store_type":"memory"`) {
		t.Fatalf("unexpected stats %s", rec.Body.String())
	}
}

func TestArrivalJobThenCurrentAndItems(t *testing.T) {
	s := newTestServer(t, stubSource{snap: activeSnapshot()})

	rec := s.do(http.MethodPost, "/api/v1/admin/jobs/arrival", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/v1/current", "", false)
	var view model.CurrentView
	if err := json.Unmarshal(decode(t, rec).Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if !view.IsActive || len(view.Items) != 1 || view.Items[0].Name != "Primed Flow" {
		t.Fatalf("unexpected current view %+v", view)
	}
	id := view.Items[0].ID

	rec = s.do(http.MethodGet, "/api/v1/items?type=mod", "", false)
	env := decode(t, rec)
	if rec.Code != http.StatusOK || env.Meta == nil || env.Meta.Total != 1 {
		t.Fatalf("unexpected list %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodGet, "/api/v1/items?type=Primary", "", false)
	if env := decode(t, rec); env.Meta.Total != 0 || string(env.Data) != "[]" {
		t.Fatalf("expected empty page, got %s", rec.Body.String())
	}

	if rec := s.do(http.MethodGet, "/api/v1/items/"+id, "", false); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = s.do(http.MethodGet, "/api/v1/items/missing", "", false)
	if env := decode(t, rec); rec.Code != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(http.MethodGet, "/api/v1/items?page=0", "", false); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid page, got %d", rec.Code)
	}
}

func TestWishlistAndPushTokens(t *testing.T) {
	s := newTestServer(t, stubSource{snap: activeSnapshot()})
	ctx := context.Background()
	id, err := s.store.InsertItem(ctx, model.NewCatalogItem("Primed Flow", "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", "Mod", 1, 1, "2024-01-12"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if rec := s.do(http.MethodPost, "/api/v1/push-tokens", `{"token":"garbage"}`, false); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/v1/push-tokens", `{"token":"`+tokenA+`","device_id":"d1"}`, false); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	path := "/api/v1/items/" + id + "/wishlist"
	if rec := s.do(http.MethodPost, path, `{"token":"`+tokenA+`"}`, false); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, "/api/v1/items/missing/wishlist", `{"token":"`+tokenA+`"}`, false); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, path, `{`, false); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec := s.do(http.MethodPost, "/api/v1/push-tokens", `{"token":"`+tokenB+`","old_token":"`+tokenA+`"}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	item, _ := s.store.FindByID(ctx, id)
	if len(item.WishlistTokens) != 1 || item.WishlistTokens[0] != tokenB {
		t.Fatalf("expected wishlist moved to new token, got %v", item.WishlistTokens)
	}
	active, _ := s.tokens.ActiveTokens(ctx)
	if len(active) != 1 || active[0] != tokenB {
		t.Fatalf("expected only the new token registered, got %v", active)
	}

	if rec := s.do(http.MethodDelete, path, `{"token":"`+tokenB+`"}`, false); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/api/v1/push-tokens", `{"token":"`+tokenB+`"}`, false); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestAdminBackfillAndJobs(t *testing.T) {
	s := newTestServer(t, stubSource{err: errors.New("down")})
	ctx := context.Background()
	if _, err := s.store.InsertItem(ctx, model.NewCatalogItem("Primed Flow", "", "Mod", 1, 1, "2020-01-03")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := s.do(http.MethodPost, "/api/v1/admin/backfill", "", true)
	var summary model.BackfillSummary
	if err := json.Unmarshal(decode(t, rec).Data, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Total != 1 || summary.Matched != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if rec := s.do(http.MethodPost, "/api/v1/admin/jobs/rebuild", "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/v1/admin/jobs/arrival", "", true); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failing source, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/v1/admin/unknown-items", "", true); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminSourceUnavailable(t *testing.T) {
	s := newTestServer(t, stubSource{err: source.ErrBothSourcesFailed})
	rec := s.do(http.MethodGet, "/api/v1/admin/source", "", true)
	if env := decode(t, rec); rec.Code != http.StatusBadGateway || env.Error.Code != "UPSTREAM_ERROR" {
		t.Fatalf("expected 502, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPermanentItemsFlagged(t *testing.T) {
	s := newTestServer(t, stubSource{snap: activeSnapshot()})
	id, err := s.store.InsertItem(context.Background(), model.NewCatalogItem("Void Surplus", "/Lotus/Types/StoreItems/Packages/VoidSurplus", "Misc", 0, 0, "2024-01-12"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := s.do(http.MethodGet, "/api/v1/items/"+id, "", false)
	var item model.CatalogItem
	if err := json.Unmarshal(decode(t, rec).Data, &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !item.Permanent {
		t.Fatalf("expected permanent flag, got %s", rec.Body.String())
	}
}

func TestLikesAndReviews(t *testing.T) {
	s := newTestServer(t, stubSource{snap: activeSnapshot()})
	id, err := s.store.InsertItem(context.Background(), model.NewCatalogItem("Primed Flow", "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", "Mod", 1, 1, "2024-01-12"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	likes := "/api/v1/items/" + id + "/likes"

	if rec := s.do(http.MethodPost, likes, `{"uid":""}`, false); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without uid, got %d", rec.Code)
	}
	for i := 0; i < 2; i++ {
		if rec := s.do(http.MethodPost, likes, `{"uid":"u1"}`, false); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}
	rec := s.do(http.MethodGet, likes, "", false)
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Fatalf("expected one like, got %s", rec.Body.String())
	}
	if rec := s.do(http.MethodDelete, likes, `{"uid":"u1"}`, false); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, likes, `{"uid":"u1"}`, false); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing like, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/v1/items/missing/likes", "", false); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", rec.Code)
	}

	reviews := "/api/v1/items/" + id + "/reviews"
	rec = s.do(http.MethodPost, reviews, `{"uid":"u1","user":"Tenno","content":"<i>great</i>","date":"2024-01-12","time":"10:00:00"}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var review model.Review
	if err := json.Unmarshal(decode(t, rec).Data, &review); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if review.Content != "&lt;i&gt;great&lt;&#x2F;i&gt;" {
		t.Fatalf("expected escaped content, got %q", review.Content)
	}
	rec = s.do(http.MethodPost, reviews, `{"uid":"u1","user":"Tenno","content":"again"}`, false)
	if env := decode(t, rec); rec.Code != http.StatusConflict || env.Error.Code != "CONFLICT" {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodPost, reviews, `{"uid":"u2","user":"Tenno","content":"ok","date":"yesterday"}`, false)
	if env := decode(t, rec); rec.Code != http.StatusBadRequest || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}

	one := "/api/v1/reviews/" + review.ID
	if rec := s.do(http.MethodPut, one, `{"uid":"u2","content":"mine now"}`, false); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's review, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPut, one, `{"uid":"u1","content":"still great"}`, false); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, one+"/report", "", false); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = s.do(http.MethodGet, reviews, "", false)
	if !strings.Contains(rec.Body.String(), `"content":"still great"`) || !strings.Contains(rec.Body.String(), `"report_count":1`) {
		t.Fatalf("unexpected reviews %s", rec.Body.String())
	}
	if rec := s.do(http.MethodDelete, one, `{"uid":"u1"}`, false); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, one+"/report", "", false); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestMarketEndpoints(t *testing.T) {
	s := newTestServer(t, stubSource{snap: activeSnapshot()})
	id, err := s.store.InsertItem(context.Background(), model.NewCatalogItem("Primed Flow", "/Lotus/Upgrades/Mods/Warframe/PrimedFlow", "Mod", 1, 1, "2024-01-12"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	path := "/api/v1/items/" + id + "/market"

	if rec := s.do(http.MethodGet, path, "", false); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before ingest, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/v1/admin/market/ingest", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := s.do(http.MethodPost, "/api/v1/admin/market/ingest", "", true)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"updated":1`) {
		t.Fatalf("unexpected ingest response %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, path, "", false)
	var data model.MarketData
	if err := json.Unmarshal(decode(t, rec).Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.ItemID != id || len(data.Data) != 1 || data.Data[0].Volume != 3 {
		t.Fatalf("unexpected market data %+v", data)
	}
}
