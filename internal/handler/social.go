package handler

import (
	"encoding/json"
	"net/http"

	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/service"
	"baro-tracker-api/pkg/apierror"
	"baro-tracker-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SocialHandler serves likes, reviews and market history of catalog items.
type SocialHandler struct {
	likes   *service.LikeService
	reviews *service.ReviewService
	market  *service.MarketService
}

// NewSocialHandler creates a new social handler.
func NewSocialHandler(likes *service.LikeService, reviews *service.ReviewService, market *service.MarketService) *SocialHandler {
	return &SocialHandler{likes: likes, reviews: reviews, market: market}
}

type uidRequest struct {
	UID string `json:"uid"`
}

type reviewRequest struct {
	User    string `json:"user"`
	Content string `json:"content"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	UID     string `json:"uid"`
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierror.BadRequest("invalid JSON")
	}
	return nil
}

// ListLikes handles GET /api/v1/items/{item_id}/likes
func (h *SocialHandler) ListLikes(w http.ResponseWriter, r *http.Request) {
	likes, err := h.likes.List(r.Context(), chi.URLParam(r, "item_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"count": len(likes), "likes": likes})
}

// Like handles POST /api/v1/items/{item_id}/likes
func (h *SocialHandler) Like(w http.ResponseWriter, r *http.Request) {
	var req uidRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	like, err := h.likes.Like(r.Context(), chi.URLParam(r, "item_id"), req.UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, like)
}

// Unlike handles DELETE /api/v1/items/{item_id}/likes
func (h *SocialHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	var req uidRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	itemID := chi.URLParam(r, "item_id")
	if err := h.likes.Unlike(r.Context(), itemID, req.UID); err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"item_id": itemID, "liked": false})
}

// ListReviews handles GET /api/v1/items/{item_id}/reviews
func (h *SocialHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.List(r.Context(), chi.URLParam(r, "item_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, reviews)
}

// PostReview handles POST /api/v1/items/{item_id}/reviews
func (h *SocialHandler) PostReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	review, err := h.reviews.Post(r.Context(), model.Review{
		ItemID:  chi.URLParam(r, "item_id"),
		User:    req.User,
		Content: req.Content,
		Date:    req.Date,
		Time:    req.Time,
		UID:     req.UID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, review)
}

// UpdateReview handles PUT /api/v1/reviews/{review_id}
func (h *SocialHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	review, err := h.reviews.Update(r.Context(), chi.URLParam(r, "review_id"), req.UID, model.ReviewEdit{
		Content: req.Content,
		Date:    req.Date,
		Time:    req.Time,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, review)
}

// DeleteReview handles DELETE /api/v1/reviews/{review_id}
func (h *SocialHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	var req uidRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "review_id")
	if err := h.reviews.Delete(r.Context(), id, req.UID); err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"review_id": id, "deleted": true})
}

// ReportReview handles POST /api/v1/reviews/{review_id}/report
func (h *SocialHandler) ReportReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "review_id")
	if err := h.reviews.Report(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"review_id": id, "reported": true})
}

// GetMarket handles GET /api/v1/items/{item_id}/market
func (h *SocialHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	data, err := h.market.Get(r.Context(), chi.URLParam(r, "item_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, data)
}
