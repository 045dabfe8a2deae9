package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"baro-tracker-api/internal/model"
)

var (
	// ErrNotInitialized means a store handle was never wired. It is a programming
	// error, never retried.
	ErrNotInitialized = errors.New("catalog store not initialized")

	// ErrDuplicateCanonicalPath is returned when a write would give two catalog
	// items the same canonical path.
	ErrDuplicateCanonicalPath = errors.New("canonical path already exists")

	// ErrNotFound is returned when an item id does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrReviewExists is returned when a user reviews the same item twice.
	ErrReviewExists = errors.New("user has already reviewed this item")
)

// CatalogRepository defines catalog item data access methods.
// Finders return (nil, nil) when nothing matches.
type CatalogRepository interface {
	// FindBySegment finds the item whose canonical path ends with /segment.
	FindBySegment(ctx context.Context, segment string) (*model.CatalogItem, error)

	// FindLegacyByName finds an item by exact name among items without a canonical path.
	FindLegacyByName(ctx context.Context, name string) (*model.CatalogItem, error)

	// FindMissingCanonicalPath lists items whose canonical path is absent or empty.
	FindMissingCanonicalPath(ctx context.Context) ([]*model.CatalogItem, error)

	// FindByID returns ErrNotFound when id is unknown.
	FindByID(ctx context.Context, id string) (*model.CatalogItem, error)

	// FindByIDs returns the items that exist, in no particular order.
	FindByIDs(ctx context.Context, ids []string) ([]*model.CatalogItem, error)

	// ListItems returns every catalog item.
	ListItems(ctx context.Context) ([]*model.CatalogItem, error)

	// InsertItem stores a new item and returns its id.
	InsertItem(ctx context.Context, item *model.CatalogItem) (string, error)

	// AppendOfferingDate adds date to the item's offering dates (set semantics).
	AppendOfferingDate(ctx context.Context, id, date string) error

	// SetCanonicalPath sets the path only when the item has none.
	// Returns false when the item already had one.
	SetCanonicalPath(ctx context.Context, id, path string) (bool, error)

	// AddWishlistToken adds token to the item's wishlist and refreshes the count.
	AddWishlistToken(ctx context.Context, id, token string) error

	// RemoveWishlistToken removes token from the item's wishlist and refreshes the count.
	RemoveWishlistToken(ctx context.Context, id, token string) error

	// ReplaceWishlistToken swaps oldToken for newToken on every item holding it.
	ReplaceWishlistToken(ctx context.Context, oldToken, newToken string) (int, error)
}

// UnknownItemRepository is the diagnostic log of unresolved inventory lines.
type UnknownItemRepository interface {
	// UpsertSighting records a sighting keyed by the raw canonical path.
	UpsertSighting(ctx context.Context, s model.Sighting) error

	// ListUnknown returns every logged unknown item.
	ListUnknown(ctx context.Context) ([]model.UnknownItem, error)
}

// StatusRepository holds the single vendor status document.
type StatusRepository interface {
	// GetStatus returns (nil, nil) when no status was stored yet.
	GetStatus(ctx context.Context) (*model.VendorStatus, error)

	// UpsertStatus replaces the stored status.
	UpsertStatus(ctx context.Context, status model.VendorStatus) error
}

// PushTokenRepository stores device push tokens.
type PushTokenRepository interface {
	// UpsertToken registers token or reactivates it.
	UpsertToken(ctx context.Context, token, deviceID string, now time.Time) (*model.PushToken, error)

	// DeleteToken removes token.
	DeleteToken(ctx context.Context, token string) error

	// DeactivateToken keeps the token but stops sending to it.
	DeactivateToken(ctx context.Context, token string) error

	// ActiveTokens lists tokens that should receive broadcasts.
	ActiveTokens(ctx context.Context) ([]string, error)

	// DeleteInactiveTokens removes deactivated tokens last used before cutoff.
	DeleteInactiveTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// LikeRepository stores likes. Each like id is also listed on its item.
type LikeRepository interface {
	// InsertLike records uid's like on itemID. Liking twice returns the
	// existing like. Unknown items return ErrNotFound.
	InsertLike(ctx context.Context, itemID, uid string, now time.Time) (*model.Like, error)

	// DeleteLike removes uid's like on itemID. Returns false when there was none.
	DeleteLike(ctx context.Context, itemID, uid string) (bool, error)

	// ListLikes returns the likes on itemID, oldest first.
	ListLikes(ctx context.Context, itemID string) ([]model.Like, error)
}

// ReviewRepository stores reviews. Each review id is also listed on its item.
type ReviewRepository interface {
	// InsertReview stores r and returns it with its id. Returns ErrReviewExists
	// when r.UID already reviewed the item and ErrNotFound for unknown items.
	InsertReview(ctx context.Context, r model.Review) (*model.Review, error)

	// UpdateReview applies edit to the review when uid wrote it.
	// Returns (nil, nil) when no such review exists for uid.
	UpdateReview(ctx context.Context, id, uid string, edit model.ReviewEdit) (*model.Review, error)

	// DeleteReview removes the review when uid wrote it. Returns false when there was none.
	DeleteReview(ctx context.Context, id, uid string) (bool, error)

	// ReportReview increments the review's report count. Returns false for unknown reviews.
	ReportReview(ctx context.Context, id string) (bool, error)

	// ListReviews returns the reviews on itemID, newest first.
	ListReviews(ctx context.Context, itemID string) ([]model.Review, error)
}

// MarketRepository stores trade statistics per catalog item.
type MarketRepository interface {
	// UpsertMarketData replaces the item's trade history.
	UpsertMarketData(ctx context.Context, m model.MarketData) error

	// GetMarketData returns (nil, nil) when the item has no trade history.
	GetMarketData(ctx context.Context, itemID string) (*model.MarketData, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	CatalogRepository
	UnknownItemRepository
	StatusRepository
	PushTokenRepository
	LikeRepository
	ReviewRepository
	MarketRepository

	// GetStats returns statistics about the backing database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// sortReviews orders reviews newest first by their date and time stamps.
func sortReviews(reviews []model.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		if reviews[i].Date != reviews[j].Date {
			return reviews[i].Date > reviews[j].Date
		}
		return reviews[i].Time > reviews[j].Time
	})
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
