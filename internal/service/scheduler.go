package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"baro-tracker-api/internal/logger"
)

// SchedulerConfig holds configuration for the background scheduler.
type SchedulerConfig struct {
	// RefreshInterval is how often the arrival flow refreshes the status.
	// Default: 30 minutes
	RefreshInterval time.Duration

	// CleanupInterval is how often inactive push tokens are purged.
	// Default: 24 hours
	CleanupInterval time.Duration

	// TokenRetention is how long a deactivated token is kept.
	// Default: 90 days
	TokenRetention time.Duration

	// MarketInterval is how often market data is ingested. Zero disables it.
	MarketInterval time.Duration

	// InitialDelay postpones the first refresh after Start.
	InitialDelay time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RefreshInterval: 30 * time.Minute,
		CleanupInterval: 24 * time.Hour,
		TokenRetention:  90 * 24 * time.Hour,
		InitialDelay:    10 * time.Second,
	}
}

// Scheduler periodically refreshes the vendor status and purges stale tokens.
type Scheduler struct {
	visits    *VisitService
	tokens    *PushTokenService
	market    *MarketService
	config    SchedulerConfig
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewScheduler creates a new scheduler.
func NewScheduler(visits *VisitService, tokens *PushTokenService, config SchedulerConfig) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.RefreshInterval == 0 {
		config.RefreshInterval = defaults.RefreshInterval
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.TokenRetention == 0 {
		config.TokenRetention = defaults.TokenRetention
	}

	return &Scheduler{
		visits: visits,
		tokens: tokens,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// WithMarket adds the market ingest loop, run every MarketInterval.
func (s *Scheduler) WithMarket(market *MarketService) *Scheduler {
	s.market = market
	return s
}

// Start begins the scheduler loops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true

	logger.Log.Infof("[Scheduler] Started - Refresh: %v, Cleanup: %v, Token retention: %v",
		s.config.RefreshInterval, s.config.CleanupInterval, s.config.TokenRetention)

	s.wg.Add(2)
	go s.loop(s.config.InitialDelay, s.config.RefreshInterval, s.runRefresh)
	go s.loop(s.config.InitialDelay, s.config.CleanupInterval, s.runCleanup)

	if s.market != nil && s.config.MarketInterval > 0 {
		logger.Log.Infof("[Scheduler] Market ingest every %v", s.config.MarketInterval)
		s.wg.Add(1)
		go s.loop(s.config.InitialDelay, s.config.MarketInterval, s.runMarketIngest)
	}
}

// loop runs fn after delay and then on every tick until Stop.
func (s *Scheduler) loop(delay, interval time.Duration, fn func()) {
	defer s.wg.Done()

	select {
	case <-time.After(delay):
		fn()
	case <-s.stopCh:
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := s.visits.Arrival(ctx)
	if errors.Is(err, ErrJobRunning) {
		logger.Log.Info("[Scheduler] Refresh skipped, arrival job already running")
		return
	}
	if err != nil {
		logger.Log.Errorf("[Scheduler] Refresh failed: %v", err)
		return
	}
	logger.Log.Infof("[Scheduler] Refresh complete - active: %v, items: %d, source: %s",
		report.Active, report.InventoryCount, report.Source)
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.tokens.PurgeInactive(ctx, s.config.TokenRetention)
	if err != nil {
		logger.Log.Errorf("[Scheduler] Error during token cleanup: %v", err)
		return
	}
	if deleted > 0 {
		logger.Log.Infof("[Scheduler] Cleaned up %d inactive push tokens", deleted)
	} else {
		logger.Log.Debug("[Scheduler] No inactive push tokens to clean up")
	}
}

func (s *Scheduler) runMarketIngest() {
	ctx, cancel := context.WithTimeout(context.Background(), jobLockTTL)
	defer cancel()

	report, err := s.market.Ingest(ctx)
	if errors.Is(err, ErrJobRunning) {
		logger.Log.Info("[Scheduler] Market ingest skipped, already running")
		return
	}
	if err != nil {
		logger.Log.Errorf("[Scheduler] Market ingest failed: %v", err)
		return
	}
	logger.Log.Infof("[Scheduler] Market ingest complete - updated: %d, failed: %d", report.Updated, len(report.Failed))
}

// Stop stops the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()
		s.wg.Wait()
		logger.Log.Info("[Scheduler] Stopped")
	})
}

// RunNow triggers an immediate refresh.
func (s *Scheduler) RunNow(ctx context.Context) (*ArrivalReport, error) {
	return s.visits.Arrival(ctx)
}
