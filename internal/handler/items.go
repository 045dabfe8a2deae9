package handler

import (
	"net/http"
	"strconv"
	"strings"

	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/reference"
	"baro-tracker-api/internal/repository"
	"baro-tracker-api/internal/service"
	"baro-tracker-api/pkg/apierror"
	"baro-tracker-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// ItemHandler serves the catalog, the current inventory and wishlists.
type ItemHandler struct {
	catalog  repository.CatalogRepository
	status   *service.StatusService
	wishlist *service.WishlistService
}

// NewItemHandler creates a new item handler.
func NewItemHandler(catalog repository.CatalogRepository, status *service.StatusService, wishlist *service.WishlistService) *ItemHandler {
	return &ItemHandler{catalog: catalog, status: status, wishlist: wishlist}
}

// markPermanent flags items offered on every visit so clients can hide their history.
func markPermanent(items ...*model.CatalogItem) {
	for _, item := range items {
		item.Permanent = reference.IsPermanent(item.Name)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apierror.ValidationError("invalid "+key, apierror.FieldError{Field: key, Message: "must be a positive integer"})
	}
	return n, nil
}

// ListItems handles GET /api/v1/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	items, err := h.catalog.ListItems(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if itemType := r.URL.Query().Get("type"); itemType != "" {
		filtered := items[:0]
		for _, item := range items {
			if strings.EqualFold(item.Type, itemType) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	total := len(items)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []*model.CatalogItem{}
	}
	markPermanent(pageItems...)
	response.JSONWithMeta(w, http.StatusOK, pageItems, page, limit, int64(total))
}

// GetItem handles GET /api/v1/items/{item_id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.FindByID(r.Context(), chi.URLParam(r, "item_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	markPermanent(item)
	response.OK(w, item)
}

// Current handles GET /api/v1/current
func (h *ItemHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.status.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	markPermanent(view.Items...)
	response.OK(w, view)
}

// AddWishlist handles POST /api/v1/items/{item_id}/wishlist
func (h *ItemHandler) AddWishlist(w http.ResponseWriter, r *http.Request) {
	req, err := decodeToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID := chi.URLParam(r, "item_id")
	if err := h.wishlist.Add(r.Context(), itemID, req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"item_id": itemID, "wishlisted": true})
}

// RemoveWishlist handles DELETE /api/v1/items/{item_id}/wishlist
func (h *ItemHandler) RemoveWishlist(w http.ResponseWriter, r *http.Request) {
	req, err := decodeToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID := chi.URLParam(r, "item_id")
	if err := h.wishlist.Remove(r.Context(), itemID, req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"item_id": itemID, "wishlisted": false})
}
