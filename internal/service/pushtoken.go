package service

import (
	"context"
	"strings"
	"time"

	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/notify"
	"baro-tracker-api/internal/repository"
)

func validToken(token string) bool {
	return notify.IsExpoPushToken(strings.TrimSpace(token))
}

// PushTokenService manages device registrations.
type PushTokenService struct {
	repo repository.PushTokenRepository
	now  func() time.Time
}

// NewPushTokenService creates a push token service.
func NewPushTokenService(repo repository.PushTokenRepository) *PushTokenService {
	return &PushTokenService{repo: repo, now: time.Now}
}

// Register stores token, or reactivates it when already known.
func (s *PushTokenService) Register(ctx context.Context, token, deviceID string) (*model.PushToken, error) {
	token = strings.TrimSpace(token)
	if !validToken(token) {
		return nil, ErrInvalidToken
	}
	pt, err := s.repo.UpsertToken(ctx, token, deviceID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	logger.Log.Debugf("[PushToken] Registered device %s", deviceID)
	return pt, nil
}

// Remove deletes token.
func (s *PushTokenService) Remove(ctx context.Context, token string) error {
	return s.repo.DeleteToken(ctx, strings.TrimSpace(token))
}

// Deactivate stops broadcasts to each token.
func (s *PushTokenService) Deactivate(ctx context.Context, tokens ...string) error {
	for _, t := range tokens {
		if err := s.repo.DeactivateToken(ctx, t); err != nil {
			return err
		}
		logger.Log.Infof("[PushToken] Deactivated invalid token %s", t)
	}
	return nil
}

// ActiveTokens lists the broadcast audience.
func (s *PushTokenService) ActiveTokens(ctx context.Context) ([]string, error) {
	return s.repo.ActiveTokens(ctx)
}

// PurgeInactive deletes deactivated tokens unused for longer than retention.
func (s *PushTokenService) PurgeInactive(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteInactiveTokens(ctx, s.now().Add(-retention))
}
