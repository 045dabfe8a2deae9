package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/repository"
)

const (
	maxDisplayNameLen   = 24
	maxReviewContentLen = 250

	reviewDateLayout = "2006-01-02"
	reviewTimeLayout = "15:04:05"
)

// htmlEscaper escapes the characters that can open markup or break out of an
// attribute in the clients that render reviews.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

// ReviewService validates and stores item reviews.
type ReviewService struct {
	reviews repository.ReviewRepository
	now     func() time.Time
}

// NewReviewService creates a review service.
func NewReviewService(reviews repository.ReviewRepository) *ReviewService {
	return &ReviewService{reviews: reviews, now: time.Now}
}

// WithClock overrides the clock used when a request carries no date or time.
func (s *ReviewService) WithClock(now func() time.Time) *ReviewService {
	s.now = now
	return s
}

// cleanText trims v, enforces 1..max characters and escapes markup.
func cleanText(field, v string, max int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fieldError(field, "required")
	}
	if utf8.RuneCountInString(v) > max {
		return "", fieldError(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return htmlEscaper.Replace(v), nil
}

// stamp validates the client's date and time, defaulting missing ones to now.
func (s *ReviewService) stamp(date, clock string) (string, string, error) {
	now := s.now().UTC()
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		date = now.Format(reviewDateLayout)
	} else if _, err := time.Parse(reviewDateLayout, date); err != nil {
		return "", "", fieldError("date", "must be YYYY-MM-DD")
	}
	if clock == "" {
		clock = now.Format(reviewTimeLayout)
	} else if _, err := time.Parse(reviewTimeLayout, clock); err != nil {
		return "", "", fieldError("time", "must be HH:MM:SS")
	}
	return date, clock, nil
}

// Post stores a new review. A user reviews an item at most once.
func (s *ReviewService) Post(ctx context.Context, r model.Review) (*model.Review, error) {
	var err error
	if r.UID = strings.TrimSpace(r.UID); r.UID == "" {
		return nil, fieldError("uid", "required")
	}
	if r.User, err = cleanText("user", r.User, maxDisplayNameLen); err != nil {
		return nil, err
	}
	if r.Content, err = cleanText("content", r.Content, maxReviewContentLen); err != nil {
		return nil, err
	}
	if r.Date, r.Time, err = s.stamp(r.Date, r.Time); err != nil {
		return nil, err
	}

	posted, err := s.reviews.InsertReview(ctx, r)
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("[Reviews] Posted review %s for item %s", posted.ID, posted.ItemID)
	return posted, nil
}

// Update replaces the content of uid's review. The display name never changes.
func (s *ReviewService) Update(ctx context.Context, id, uid string, edit model.ReviewEdit) (*model.Review, error) {
	var err error
	if uid = strings.TrimSpace(uid); uid == "" {
		return nil, fieldError("uid", "required")
	}
	if edit.Content, err = cleanText("content", edit.Content, maxReviewContentLen); err != nil {
		return nil, err
	}
	if edit.Date, edit.Time, err = s.stamp(edit.Date, edit.Time); err != nil {
		return nil, err
	}

	updated, err := s.reviews.UpdateReview(ctx, id, uid, edit)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrReviewNotFound
	}
	logger.Log.Infof("[Reviews] Updated review %s", id)
	return updated, nil
}

// Delete removes uid's review.
func (s *ReviewService) Delete(ctx context.Context, id, uid string) error {
	if uid = strings.TrimSpace(uid); uid == "" {
		return fieldError("uid", "required")
	}
	removed, err := s.reviews.DeleteReview(ctx, id, uid)
	if err != nil {
		return err
	}
	if !removed {
		return ErrReviewNotFound
	}
	logger.Log.Infof("[Reviews] Deleted review %s", id)
	return nil
}

// Report flags a review for moderation.
func (s *ReviewService) Report(ctx context.Context, id string) error {
	reported, err := s.reviews.ReportReview(ctx, id)
	if err != nil {
		return err
	}
	if !reported {
		return ErrReviewNotFound
	}
	logger.Log.Warnf("[Reviews] Review %s reported", id)
	return nil
}

// List returns the reviews on itemID, newest first.
func (s *ReviewService) List(ctx context.Context, itemID string) ([]model.Review, error) {
	reviews, err := s.reviews.ListReviews(ctx, itemID)
	if err != nil {
		return nil, err
	}
	logger.Log.Debugf("[Reviews] Fetched %d reviews for item %s", len(reviews), itemID)
	return reviews, nil
}
