package service

import (
	"context"
	"strings"
	"time"

	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/repository"
)

// LikeService records which users like which items.
type LikeService struct {
	likes repository.LikeRepository
	now   func() time.Time
}

// NewLikeService creates a like service.
func NewLikeService(likes repository.LikeRepository) *LikeService {
	return &LikeService{likes: likes, now: time.Now}
}

// WithClock overrides the clock used to stamp likes.
func (s *LikeService) WithClock(now func() time.Time) *LikeService {
	s.now = now
	return s
}

// Like records uid's like on itemID. Liking twice is a no-op.
func (s *LikeService) Like(ctx context.Context, itemID, uid string) (*model.Like, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, fieldError("uid", "required")
	}
	like, err := s.likes.InsertLike(ctx, itemID, uid, s.now().UTC())
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("[Likes] Item %s liked (like %s)", itemID, like.ID)
	return like, nil
}

// Unlike removes uid's like on itemID.
func (s *LikeService) Unlike(ctx context.Context, itemID, uid string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return fieldError("uid", "required")
	}
	removed, err := s.likes.DeleteLike(ctx, itemID, uid)
	if err != nil {
		return err
	}
	if !removed {
		return ErrLikeNotFound
	}
	logger.Log.Infof("[Likes] Like removed from item %s", itemID)
	return nil
}

// List returns the likes on itemID.
func (s *LikeService) List(ctx context.Context, itemID string) ([]model.Like, error) {
	likes, err := s.likes.ListLikes(ctx, itemID)
	if err != nil {
		return nil, err
	}
	logger.Log.Debugf("[Likes] Fetched %d likes for item %s", len(likes), itemID)
	return likes, nil
}
