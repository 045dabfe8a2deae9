package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baro-tracker-api/internal/cache"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/market"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/repository"

	"github.com/sirupsen/logrus"
)

// JobMarketIngest is the run-lock name of the market ingest.
const JobMarketIngest = "market-ingest"

// StatisticsFetcher returns the closed-trade history for a market slug.
type StatisticsFetcher interface {
	Statistics(ctx context.Context, slug string) ([]model.MarketPoint, error)
}

// MarketIngestReport summarizes one ingest run.
type MarketIngestReport struct {
	Candidates int      `json:"candidates"`
	Updated    int      `json:"updated"`
	Skipped    []string `json:"skipped"`
	Failed     []string `json:"failed"`
}

// MarketService serves stored trade history and refreshes it from the market.
type MarketService struct {
	catalog repository.CatalogRepository
	market  repository.MarketRepository
	fetcher StatisticsFetcher
	locker  cache.Locker
	delay   time.Duration
	now     func() time.Time
}

// MarketDeps groups MarketService collaborators. Fetcher and Locker may be nil;
// without a Fetcher the service only serves stored data.
type MarketDeps struct {
	Catalog repository.CatalogRepository
	Market  repository.MarketRepository
	Fetcher StatisticsFetcher
	Locker  cache.Locker

	// Delay is the pause between market requests.
	Delay time.Duration
}

// NewMarketService creates a market service.
func NewMarketService(deps MarketDeps) *MarketService {
	return &MarketService{
		catalog: deps.Catalog,
		market:  deps.Market,
		fetcher: deps.Fetcher,
		locker:  deps.Locker,
		delay:   deps.Delay,
		now:     time.Now,
	}
}

// WithClock overrides the clock used to stamp ingested data.
func (s *MarketService) WithClock(now func() time.Time) *MarketService {
	s.now = now
	return s
}

// Get returns the stored trade history of itemID.
func (s *MarketService) Get(ctx context.Context, itemID string) (*model.MarketData, error) {
	if _, err := s.catalog.FindByID(ctx, itemID); err != nil {
		return nil, err
	}
	m, err := s.market.GetMarketData(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoMarketData
	}
	return m, nil
}

// Ingest refreshes the trade history of every tradable catalog item. One
// item failing does not stop the run.
func (s *MarketService) Ingest(ctx context.Context) (*MarketIngestReport, error) {
	if s.fetcher == nil {
		return nil, repository.ErrNotInitialized
	}
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, "job:"+JobMarketIngest, jobLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrJobRunning
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), "job:"+JobMarketIngest); err != nil {
				logger.Log.Warnf("[Market] Failed to release ingest lock: %v", err)
			}
		}()
	}
	return s.ingest(ctx)
}

func (s *MarketService) ingest(ctx context.Context) (*MarketIngestReport, error) {
	items, err := s.catalog.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}

	report := &MarketIngestReport{Skipped: []string{}, Failed: []string{}}
	first := true
	for _, item := range items {
		if !market.Tradable(item.Type) {
			continue
		}
		report.Candidates++

		slug, ok := market.Slug(item.Name)
		if !ok {
			logger.Log.Infof("[Market] Skipping market data fetch for %s", item.Name)
			report.Skipped = append(report.Skipped, item.Name)
			continue
		}

		if !first && s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		first = false

		points, err := s.fetcher.Statistics(ctx, slug)
		if errors.Is(err, market.ErrNotListed) {
			logger.Log.Warnf("[Market] %s (%s) is not listed", item.Name, slug)
			report.Skipped = append(report.Skipped, item.Name)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Log.Errorf("[Market] Failed to fetch market data for %s (%s): %v", item.Name, slug, err)
			report.Failed = append(report.Failed, item.Name)
			continue
		}
		if len(points) == 0 {
			logger.Log.Warnf("[Market] No 90-day data available for %s", item.Name)
			report.Skipped = append(report.Skipped, item.Name)
			continue
		}

		err = s.market.UpsertMarketData(ctx, model.MarketData{ItemID: item.ID, Data: points, LastUpdated: s.now().UTC()})
		if err != nil {
			logger.Log.Errorf("[Market] Failed to store market data for %s: %v", item.Name, err)
			report.Failed = append(report.Failed, item.Name)
			continue
		}
		report.Updated++
		logger.Log.Debugf("[Market] Updated market data for %s", item.Name)
	}

	logger.Log.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"updated":    report.Updated,
		"skipped":    len(report.Skipped),
		"failed":     len(report.Failed),
	}).Info("[Market] Market data ingestion completed")
	return report, nil
}
