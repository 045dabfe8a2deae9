package service

import (
	"context"
	"fmt"

	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/repository"
)

// WishlistService manages which devices want a push when an item shows up.
type WishlistService struct {
	catalog repository.CatalogRepository
	status  repository.StatusRepository
}

// NewWishlistService creates a wishlist service.
func NewWishlistService(catalog repository.CatalogRepository, status repository.StatusRepository) *WishlistService {
	return &WishlistService{catalog: catalog, status: status}
}

// Add subscribes token to itemID. Unknown items return repository.ErrNotFound.
func (s *WishlistService) Add(ctx context.Context, itemID, token string) error {
	if !validToken(token) {
		return ErrInvalidToken
	}
	if err := s.catalog.AddWishlistToken(ctx, itemID, token); err != nil {
		return err
	}
	logger.Log.Infof("[Wishlist] Added push token to item %s", itemID)
	return nil
}

// Remove unsubscribes token from itemID.
func (s *WishlistService) Remove(ctx context.Context, itemID, token string) error {
	if err := s.catalog.RemoveWishlistToken(ctx, itemID, token); err != nil {
		return err
	}
	logger.Log.Infof("[Wishlist] Removed push token from item %s", itemID)
	return nil
}

// Replace moves a refreshed device token across every item holding the old one.
func (s *WishlistService) Replace(ctx context.Context, oldToken, newToken string) (int, error) {
	if !validToken(newToken) {
		return 0, ErrInvalidToken
	}
	n, err := s.catalog.ReplaceWishlistToken(ctx, oldToken, newToken)
	if err != nil {
		return 0, err
	}
	logger.Log.Infof("[Wishlist] Replaced push token across %d item(s)", n)
	return n, nil
}

// MatchesForCurrent maps each wishlisting token to the names of its items in
// the current inventory.
func (s *WishlistService) MatchesForCurrent(ctx context.Context) (map[string][]string, error) {
	matches := map[string][]string{}

	st, err := s.status.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor status: %w", err)
	}
	if st == nil || len(st.InventoryIDs) == 0 {
		logger.Log.Info("[Wishlist] No current inventory found")
		return matches, nil
	}

	items, err := s.catalog.FindByIDs(ctx, st.InventoryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory items: %w", err)
	}
	wishlisted := 0
	for _, item := range items {
		if len(item.WishlistTokens) == 0 {
			continue
		}
		wishlisted++
		for _, token := range item.WishlistTokens {
			matches[token] = append(matches[token], item.Name)
		}
	}

	logger.Log.Infof("[Wishlist] Found %d wishlisted item(s) in inventory across %d device(s)", wishlisted, len(matches))
	return matches, nil
}
