package handler

import (
	"net/http"

	"baro-tracker-api/internal/middleware"
	"baro-tracker-api/internal/service"
	"baro-tracker-api/pkg/response"
)

// PushTokenHandler registers and removes notification devices.
type PushTokenHandler struct {
	tokens   *service.PushTokenService
	wishlist *service.WishlistService
}

// NewPushTokenHandler creates a new push token handler.
func NewPushTokenHandler(tokens *service.PushTokenService, wishlist *service.WishlistService) *PushTokenHandler {
	return &PushTokenHandler{tokens: tokens, wishlist: wishlist}
}

// Register handles POST /api/v1/push-tokens. A refreshed device sends its
// previous token as old_token so its wishlists follow it.
func (h *PushTokenHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := decodeToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pt, err := h.tokens.Register(r.Context(), req.Token, req.DeviceID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.OldToken != "" && req.OldToken != req.Token {
		if _, err := h.wishlist.Replace(r.Context(), req.OldToken, req.Token); err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.tokens.Remove(r.Context(), req.OldToken); err != nil {
			middleware.LogEntry(r.Context()).Warnf("[PushToken] Failed to drop replaced token: %v", err)
		}
	}
	response.Created(w, pt)
}

// Unregister handles DELETE /api/v1/push-tokens
func (h *PushTokenHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.tokens.Remove(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w)
}
