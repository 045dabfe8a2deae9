package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/pkg/uid"
)

// MemoryStore implements Store in process memory. Used for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]*model.CatalogItem
	order   []string
	unknown map[string]*model.UnknownItem
	status  *model.VendorStatus
	tokens  map[string]*model.PushToken
	likes   map[string]*model.Like
	reviews map[string]*model.Review
	market  map[string]model.MarketData
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]*model.CatalogItem),
		unknown: make(map[string]*model.UnknownItem),
		tokens:  make(map[string]*model.PushToken),
		likes:   make(map[string]*model.Like),
		reviews: make(map[string]*model.Review),
		market:  make(map[string]model.MarketData),
	}
}

func cloneItem(in *model.CatalogItem) *model.CatalogItem {
	out := *in
	out.OfferingDates = append([]string{}, in.OfferingDates...)
	out.LikeRefs = append([]string{}, in.LikeRefs...)
	out.ReviewRefs = append([]string{}, in.ReviewRefs...)
	out.WishlistTokens = append([]string{}, in.WishlistTokens...)
	out.WishlistCount = len(out.WishlistTokens)
	return &out
}

func (s *MemoryStore) each(fn func(*model.CatalogItem) bool) {
	for _, id := range s.order {
		if !fn(s.items[id]) {
			return
		}
	}
}

func (s *MemoryStore) FindBySegment(ctx context.Context, segment string) (*model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.CatalogItem
	s.each(func(item *model.CatalogItem) bool {
		if canonical.Path(item.CanonicalPath).EndsWithSegment(segment) {
			found = cloneItem(item)
			return false
		}
		return true
	})
	return found, nil
}

func (s *MemoryStore) FindLegacyByName(ctx context.Context, name string) (*model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.CatalogItem
	s.each(func(item *model.CatalogItem) bool {
		if item.CanonicalPath == "" && item.Name == name {
			found = cloneItem(item)
			return false
		}
		return true
	})
	return found, nil
}

func (s *MemoryStore) FindMissingCanonicalPath(ctx context.Context) ([]*model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.CatalogItem{}
	s.each(func(item *model.CatalogItem) bool {
		if item.CanonicalPath == "" {
			out = append(out, cloneItem(item))
		}
		return true
	})
	return out, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneItem(item), nil
}

func (s *MemoryStore) FindByIDs(ctx context.Context, ids []string) ([]*model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.CatalogItem{}
	for _, id := range uniqueStrings(ids) {
		if item, ok := s.items[id]; ok {
			out = append(out, cloneItem(item))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListItems(ctx context.Context) ([]*model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.CatalogItem, 0, len(s.order))
	s.each(func(item *model.CatalogItem) bool {
		out = append(out, cloneItem(item))
		return true
	})
	return out, nil
}

func (s *MemoryStore) pathTaken(path, exceptID string) bool {
	if path == "" {
		return false
	}
	for id, item := range s.items {
		if id != exceptID && item.CanonicalPath == path {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertItem(ctx context.Context, item *model.CatalogItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pathTaken(item.CanonicalPath, "") {
		return "", fmt.Errorf("%w: %s", ErrDuplicateCanonicalPath, item.CanonicalPath)
	}
	stored := cloneItem(item)
	stored.ID = uid.New()
	stored.OfferingDates = uniqueStrings(stored.OfferingDates)
	stored.WishlistTokens = uniqueStrings(stored.WishlistTokens)
	stored.WishlistCount = len(stored.WishlistTokens)
	if stored.Type == "" {
		stored.Type = model.TypeUnknown
	}
	s.items[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	return stored.ID, nil
}

func (s *MemoryStore) withItem(id string, fn func(*model.CatalogItem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fn(item)
}

func (s *MemoryStore) AppendOfferingDate(ctx context.Context, id, date string) error {
	return s.withItem(id, func(item *model.CatalogItem) error {
		if !item.HasOfferingDate(date) {
			item.OfferingDates = append(item.OfferingDates, date)
		}
		return nil
	})
}

func (s *MemoryStore) SetCanonicalPath(ctx context.Context, id, path string) (bool, error) {
	changed := false
	err := s.withItem(id, func(item *model.CatalogItem) error {
		if item.CanonicalPath != "" {
			return nil
		}
		if s.pathTaken(path, id) {
			return fmt.Errorf("%w: %s", ErrDuplicateCanonicalPath, path)
		}
		item.CanonicalPath = path
		changed = true
		return nil
	})
	return changed, err
}

func removeString(in []string, v string) []string {
	out := in[:0]
	for _, s := range in {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func (s *MemoryStore) AddWishlistToken(ctx context.Context, id, token string) error {
	return s.withItem(id, func(item *model.CatalogItem) error {
		item.WishlistTokens = uniqueStrings(append(item.WishlistTokens, token))
		item.WishlistCount = len(item.WishlistTokens)
		return nil
	})
}

func (s *MemoryStore) RemoveWishlistToken(ctx context.Context, id, token string) error {
	return s.withItem(id, func(item *model.CatalogItem) error {
		item.WishlistTokens = removeString(item.WishlistTokens, token)
		item.WishlistCount = len(item.WishlistTokens)
		return nil
	})
}

func (s *MemoryStore) ReplaceWishlistToken(ctx context.Context, oldToken, newToken string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		before := len(item.WishlistTokens)
		item.WishlistTokens = removeString(item.WishlistTokens, oldToken)
		if len(item.WishlistTokens) == before {
			continue
		}
		item.WishlistTokens = uniqueStrings(append(item.WishlistTokens, newToken))
		item.WishlistCount = len(item.WishlistTokens)
		n++
	}
	return n, nil
}

func (s *MemoryStore) UpsertSighting(ctx context.Context, sg model.Sighting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.unknown[sg.CanonicalPathRaw]
	if !ok {
		u = &model.UnknownItem{CanonicalPathRaw: sg.CanonicalPathRaw, FirstSeenAt: sg.SeenAt}
		s.unknown[sg.CanonicalPathRaw] = u
	}
	u.DisplayName = sg.DisplayName
	u.Ducats = sg.Ducats
	u.Credits = sg.Credits
	u.LastSeenAt = sg.SeenAt
	u.IsSuspectedNew = u.IsSuspectedNew || sg.IsNewCandidate
	return nil
}

func (s *MemoryStore) ListUnknown(ctx context.Context) ([]model.UnknownItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.UnknownItem, 0, len(s.unknown))
	for _, u := range s.unknown {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (s *MemoryStore) GetStatus(ctx context.Context) (*model.VendorStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status == nil {
		return nil, nil
	}
	st := *s.status
	st.InventoryIDs = append([]string{}, s.status.InventoryIDs...)
	return &st, nil
}

func (s *MemoryStore) UpsertStatus(ctx context.Context, st model.VendorStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.InventoryIDs = append([]string{}, st.InventoryIDs...)
	s.status = &st
	return nil
}

func (s *MemoryStore) UpsertToken(ctx context.Context, token, deviceID string, now time.Time) (*model.PushToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt, ok := s.tokens[token]
	if !ok {
		pt = &model.PushToken{Token: token, CreatedAt: now}
		s.tokens[token] = pt
	}
	pt.DeviceID = deviceID
	pt.LastUsed = now
	pt.IsActive = true
	out := *pt
	return &out, nil
}

func (s *MemoryStore) DeleteToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
	return nil
}

func (s *MemoryStore) DeactivateToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pt, ok := s.tokens[token]; ok {
		pt.IsActive = false
	}
	return nil
}

func (s *MemoryStore) ActiveTokens(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}
	for t, pt := range s.tokens {
		if pt.IsActive {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) DeleteInactiveTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for t, pt := range s.tokens {
		if !pt.IsActive && pt.LastUsed.Before(cutoff) {
			delete(s.tokens, t)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) InsertLike(ctx context.Context, itemID, userID string, now time.Time) (*model.Like, error) {
	var out model.Like
	err := s.withItem(itemID, func(item *model.CatalogItem) error {
		for _, l := range s.likes {
			if l.ItemID == itemID && l.UID == userID {
				out = *l
				return nil
			}
		}
		l := &model.Like{ID: uid.New(), ItemID: itemID, UID: userID, CreatedAt: now}
		s.likes[l.ID] = l
		item.LikeRefs = append(item.LikeRefs, l.ID)
		out = *l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) DeleteLike(ctx context.Context, itemID, userID string) (bool, error) {
	removed := false
	err := s.withItem(itemID, func(item *model.CatalogItem) error {
		for id, l := range s.likes {
			if l.ItemID == itemID && l.UID == userID {
				delete(s.likes, id)
				item.LikeRefs = removeString(item.LikeRefs, id)
				removed = true
				return nil
			}
		}
		return nil
	})
	return removed, err
}

func (s *MemoryStore) ListLikes(ctx context.Context, itemID string) ([]model.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	out := make([]model.Like, 0, len(item.LikeRefs))
	for _, id := range item.LikeRefs {
		if l, ok := s.likes[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertReview(ctx context.Context, r model.Review) (*model.Review, error) {
	var out model.Review
	err := s.withItem(r.ItemID, func(item *model.CatalogItem) error {
		for _, existing := range s.reviews {
			if existing.ItemID == r.ItemID && existing.UID == r.UID {
				return ErrReviewExists
			}
		}
		stored := r
		stored.ID = uid.New()
		stored.ReportCount = 0
		s.reviews[stored.ID] = &stored
		item.ReviewRefs = append(item.ReviewRefs, stored.ID)
		out = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) UpdateReview(ctx context.Context, id, userID string, edit model.ReviewEdit) (*model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok || r.UID != userID {
		return nil, nil
	}
	r.Content = edit.Content
	r.Date = edit.Date
	r.Time = edit.Time
	out := *r
	return &out, nil
}

func (s *MemoryStore) DeleteReview(ctx context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok || r.UID != userID {
		return false, nil
	}
	delete(s.reviews, id)
	if item, ok := s.items[r.ItemID]; ok {
		item.ReviewRefs = removeString(item.ReviewRefs, id)
	}
	return true, nil
}

func (s *MemoryStore) ReportReview(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return false, nil
	}
	r.ReportCount++
	return true, nil
}

func (s *MemoryStore) ListReviews(ctx context.Context, itemID string) ([]model.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	out := make([]model.Review, 0, len(item.ReviewRefs))
	for _, id := range item.ReviewRefs {
		if r, ok := s.reviews[id]; ok {
			out = append(out, *r)
		}
	}
	sortReviews(out)
	return out, nil
}

func (s *MemoryStore) UpsertMarketData(ctx context.Context, m model.MarketData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Data = append([]model.MarketPoint{}, m.Data...)
	s.market[m.ItemID] = m
	return nil
}

func (s *MemoryStore) GetMarketData(ctx context.Context, itemID string) (*model.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.market[itemID]
	if !ok {
		return nil, nil
	}
	m.Data = append([]model.MarketPoint{}, m.Data...)
	return &m, nil
}

func (s *MemoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	missing := 0
	for _, item := range s.items {
		if item.CanonicalPath == "" {
			missing++
		}
	}
	return map[string]interface{}{
		"backend":                      "memory",
		"total_items":                  int64(len(s.items)),
		"items_missing_canonical_path": int64(missing),
		"unknown_items":                int64(len(s.unknown)),
		"push_tokens":                  int64(len(s.tokens)),
		"likes":                        int64(len(s.likes)),
		"reviews":                      int64(len(s.reviews)),
		"market_items":                 int64(len(s.market)),
	}, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
