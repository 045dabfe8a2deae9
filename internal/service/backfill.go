package service

import (
	"context"
	"errors"
	"fmt"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/reference"
	"baro-tracker-api/internal/repository"

	"github.com/sirupsen/logrus"
)

// BackfillService assigns canonical paths to catalog items that predate them.
type BackfillService struct {
	catalog  repository.CatalogRepository
	resolver *reference.Resolver
}

// NewBackfillService creates a backfill service.
func NewBackfillService(catalog repository.CatalogRepository, resolver *reference.Resolver) *BackfillService {
	return &BackfillService{catalog: catalog, resolver: resolver}
}

// BackfillCanonicalPaths matches every item without a canonical path by name.
// Items already backfilled are not candidates, so the job is safe to re-run.
func (s *BackfillService) BackfillCanonicalPaths(ctx context.Context) (*model.BackfillSummary, error) {
	if s == nil || s.catalog == nil || s.resolver == nil {
		return nil, repository.ErrNotInitialized
	}

	items, err := s.catalog.FindMissingCanonicalPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items missing canonical path: %w", err)
	}
	logger.Log.Infof("[Backfill] Found %d items without canonical path", len(items))

	summary := &model.BackfillSummary{Total: len(items), UnmatchedNames: []string{}}
	if len(items) == 0 {
		return summary, nil
	}

	dataset, err := s.resolver.Provider().Dataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference dataset: %w", err)
	}

	for _, item := range items {
		match := reference.MatchName(dataset, item.Name)
		if match == nil {
			summary.Unmatched++
			summary.UnmatchedNames = append(summary.UnmatchedNames, item.Name)
			continue
		}

		path := canonical.Normalize(match.Entry.CanonicalPath).String()
		_, err := s.catalog.SetCanonicalPath(ctx, item.ID, path)
		if errors.Is(err, repository.ErrDuplicateCanonicalPath) {
			logger.Log.Warnf("[Backfill] %q matched %s, which another item already owns", item.Name, path)
			summary.Unmatched++
			summary.UnmatchedNames = append(summary.UnmatchedNames, item.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to set canonical path on %q: %w", item.Name, err)
		}

		summary.Matched++
		logger.Log.Debugf("[Backfill] %q -> %s (%s)", item.Name, path, match.Strategy)
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"total":     summary.Total,
		"matched":   summary.Matched,
		"unmatched": summary.Unmatched,
	})
	if summary.Unmatched > 0 {
		entry.Warnf("[Backfill] Unmatched items: %v", summary.UnmatchedNames)
	} else {
		entry.Info("[Backfill] Complete")
	}
	return summary, nil
}
