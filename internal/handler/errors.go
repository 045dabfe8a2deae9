package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"baro-tracker-api/internal/middleware"
	"baro-tracker-api/internal/repository"
	"baro-tracker-api/internal/service"
	"baro-tracker-api/internal/source"
	"baro-tracker-api/pkg/apierror"
	"baro-tracker-api/pkg/response"
)

// writeError maps domain errors onto API errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierror.Error
	var fieldErr *service.FieldError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &fieldErr):
		apiErr = apierror.ValidationError("invalid "+fieldErr.Field, apierror.FieldError{Field: fieldErr.Field, Message: fieldErr.Message})
	case errors.Is(err, repository.ErrReviewExists):
		apiErr = apierror.Conflict("User has already reviewed this item")
	case errors.Is(err, service.ErrLikeNotFound):
		apiErr = apierror.NotFound("Like not found")
	case errors.Is(err, service.ErrReviewNotFound):
		apiErr = apierror.NotFound("Review not found")
	case errors.Is(err, service.ErrNoMarketData):
		apiErr = apierror.NotFound("No market data for item")
	case errors.Is(err, repository.ErrNotFound):
		apiErr = apierror.NotFound("Item not found")
	case errors.Is(err, service.ErrInvalidToken):
		apiErr = apierror.ValidationError("Invalid push token", apierror.FieldError{Field: "token", Message: "must be an Expo push token"})
	case errors.Is(err, service.ErrJobRunning):
		apiErr = apierror.Conflict("Job is already running")
	case errors.Is(err, service.ErrUnknownJob):
		apiErr = apierror.NotFound("Unknown job")
	case errors.Is(err, repository.ErrNotInitialized):
		apiErr = apierror.ServiceUnavailable("Catalog store is not initialized")
	case errors.Is(err, source.ErrBothSourcesFailed):
		apiErr = apierror.BadGateway("Vendor sources are unavailable")
	default:
		middleware.LogEntry(r.Context()).Errorf("[HTTP] %s %s failed: %v", r.Method, r.URL.Path, err)
		apiErr = apierror.InternalError("")
	}
	response.Error(w, apiErr)
}

// tokenRequest is the body of the token-carrying endpoints.
type tokenRequest struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id,omitempty"`
	OldToken string `json:"old_token,omitempty"`
}

func decodeToken(r *http.Request) (tokenRequest, error) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, apierror.BadRequest("invalid JSON")
	}
	req.Token = strings.TrimSpace(req.Token)
	req.OldToken = strings.TrimSpace(req.OldToken)
	if req.Token == "" {
		return req, apierror.ValidationError("token is required", apierror.FieldError{Field: "token", Message: "required"})
	}
	return req, nil
}
