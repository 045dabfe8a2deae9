package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/reference"
	"baro-tracker-api/internal/repository"

	"github.com/sirupsen/logrus"
)

// Reconciler matches reported inventory batches against the catalog.
// Entries are processed in order because later lookups depend on earlier writes.
type Reconciler struct {
	catalog  repository.CatalogRepository
	unknown  repository.UnknownItemRepository
	resolver *reference.Resolver
	now      func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(catalog repository.CatalogRepository, unknown repository.UnknownItemRepository, resolver *reference.Resolver) *Reconciler {
	return &Reconciler{
		catalog:  catalog,
		unknown:  unknown,
		resolver: resolver,
		now:      time.Now,
	}
}

// WithClock overrides the clock that decides "today".
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// outcome is how one inventory entry was settled.
type outcome struct {
	id       string
	resolved bool
}

// entryKey identifies an entry within a batch. Entries without a path fall
// back to their display name.
func entryKey(e model.InventoryEntry) string {
	if e.CanonicalPathRaw != "" {
		return e.CanonicalPathRaw
	}
	return "name:" + e.DisplayName
}

func (r *Reconciler) ready() error {
	if r == nil || r.catalog == nil || r.unknown == nil || r.resolver == nil {
		return repository.ErrNotInitialized
	}
	return nil
}

// Reconcile settles every entry as resolved, unmatched or ignored.
// Store failures abort the batch.
func (r *Reconciler) Reconcile(ctx context.Context, entries []model.InventoryEntry) (*model.ReconciliationResult, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	now := r.now()
	today := model.DateKey(now)

	result := &model.ReconciliationResult{
		ResolvedIDs:    []string{},
		UnmatchedNames: []string{},
		IgnoredNames:   []string{},
	}

	active := make([]model.InventoryEntry, 0, len(entries))
	for _, e := range entries {
		if reference.IsIgnored(e.DisplayName) {
			result.IgnoredNames = append(result.IgnoredNames, e.DisplayName)
			continue
		}
		active = append(active, e)
	}

	handled := make(map[string]outcome, len(active))
	idx, out, err := r.detect(ctx, active, today, now)
	if err != nil {
		return nil, err
	}
	if idx >= 0 {
		handled[entryKey(active[idx])] = out
	}

	seen := make(map[string]struct{}, len(active))
	for _, e := range active {
		key := entryKey(e)
		o, ok := handled[key]
		if !ok {
			o, err = r.settle(ctx, e, today, now, false)
			if err != nil {
				return nil, err
			}
			handled[key] = o
		}

		if !o.resolved {
			result.UnmatchedNames = append(result.UnmatchedNames, e.DisplayName)
			continue
		}
		if _, dup := seen[o.id]; !dup {
			seen[o.id] = struct{}{}
			result.ResolvedIDs = append(result.ResolvedIDs, o.id)
		}
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"total":     len(entries),
		"resolved":  len(result.ResolvedIDs),
		"unmatched": len(result.UnmatchedNames),
		"ignored":   len(result.IgnoredNames),
	})
	if len(result.UnmatchedNames) > 0 {
		entry.Warnf("[Reconciler] Unmatched items: %v", result.UnmatchedNames)
	} else {
		entry.Info("[Reconciler] Batch reconciled")
	}
	return result, nil
}

// DetectNew finds the period's new item among active entries and settles it.
// The returned map has at most one entry, keyed by the raw canonical path.
func (r *Reconciler) DetectNew(ctx context.Context, active []model.InventoryEntry) (map[string]string, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	now := r.now()
	found := map[string]string{}

	idx, out, err := r.detect(ctx, active, model.DateKey(now), now)
	if err != nil {
		return nil, err
	}
	if idx >= 0 && out.resolved {
		found[active[idx].CanonicalPathRaw] = out.id
	}
	return found, nil
}

// detect picks the first entry when it is not yet catalogued, otherwise the
// first uncatalogued entry in feed order. It returns -1 when every entry is known.
func (r *Reconciler) detect(ctx context.Context, active []model.InventoryEntry, today string, now time.Time) (int, outcome, error) {
	if len(active) == 0 {
		return -1, outcome{}, nil
	}

	idx := -1
	for i, e := range active {
		existing, err := r.catalog.FindBySegment(ctx, canonical.SegmentOf(e.CanonicalPathRaw))
		if err != nil {
			return -1, outcome{}, fmt.Errorf("failed to look up %q: %w", e.DisplayName, err)
		}
		if existing == nil {
			idx = i
			break
		}
	}

	if idx < 0 {
		logger.Log.Info("[NewItemDetector] Every entry is already catalogued, no new item this visit")
		return -1, outcome{}, nil
	}

	candidate := active[idx]
	if idx > 0 {
		logger.Log.WithFields(logrus.Fields{
			"first_entry": active[0].DisplayName,
			"new_item":    candidate.DisplayName,
			"position":    idx,
		}).Warn("[NewItemDetector] First entry already catalogued, new item found by elimination; review manually")
	} else {
		logger.Log.WithField("new_item", candidate.DisplayName).Info("[NewItemDetector] First entry is new")
	}

	out, err := r.settle(ctx, candidate, today, now, true)
	if err != nil {
		return -1, outcome{}, err
	}
	return idx, out, nil
}

// settle runs the per-entry lookup chain: catalog by path segment, legacy
// record by name, reference resolver, then the unknown-item log.
func (r *Reconciler) settle(ctx context.Context, e model.InventoryEntry, today string, now time.Time, newCandidate bool) (outcome, error) {
	path := canonical.Normalize(e.CanonicalPathRaw)
	segment := path.Segment()

	existing, err := r.catalog.FindBySegment(ctx, segment)
	if err != nil {
		return outcome{}, fmt.Errorf("failed to look up %q: %w", e.DisplayName, err)
	}
	if existing != nil {
		return r.markOffered(ctx, existing.ID, today)
	}

	if e.DisplayName != "" {
		legacy, err := r.catalog.FindLegacyByName(ctx, e.DisplayName)
		if err != nil {
			return outcome{}, fmt.Errorf("failed to look up legacy %q: %w", e.DisplayName, err)
		}
		if legacy != nil {
			if !path.IsZero() {
				if _, err := r.catalog.SetCanonicalPath(ctx, legacy.ID, path.String()); err != nil {
					if !errors.Is(err, repository.ErrDuplicateCanonicalPath) {
						return outcome{}, fmt.Errorf("failed to backfill %q: %w", e.DisplayName, err)
					}
					logger.Log.Warnf("[Reconciler] Path %s already belongs to another item, leaving legacy %q unset", path, e.DisplayName)
				}
			}
			return r.markOffered(ctx, legacy.ID, today)
		}
	}

	match, err := r.resolver.Resolve(ctx, reference.Query{PathSuffix: segment, Name: e.DisplayName})
	if err != nil {
		return outcome{}, fmt.Errorf("failed to resolve %q: %w", e.DisplayName, err)
	}
	if match != nil {
		return r.create(ctx, e, path, match, today)
	}

	sighting := model.Sighting{
		CanonicalPathRaw: e.CanonicalPathRaw,
		DisplayName:      e.DisplayName,
		Ducats:           e.Ducats,
		Credits:          e.Credits,
		IsNewCandidate:   newCandidate,
		SeenAt:           now,
	}
	if sighting.CanonicalPathRaw == "" {
		sighting.CanonicalPathRaw = e.DisplayName
	}
	if err := r.unknown.UpsertSighting(ctx, sighting); err != nil {
		return outcome{}, fmt.Errorf("failed to log unknown item %q: %w", e.DisplayName, err)
	}
	return outcome{}, nil
}

func (r *Reconciler) markOffered(ctx context.Context, id, today string) (outcome, error) {
	if err := r.catalog.AppendOfferingDate(ctx, id, today); err != nil {
		return outcome{}, fmt.Errorf("failed to record offering date on %s: %w", id, err)
	}
	return outcome{id: id, resolved: true}, nil
}

// create inserts a catalog item for a resolved entry. A concurrent insert of
// the same path is treated as a hit on the existing item.
func (r *Reconciler) create(ctx context.Context, e model.InventoryEntry, path canonical.Path, match *reference.Match, today string) (outcome, error) {
	canonicalPath := path.String()
	if path.IsZero() {
		canonicalPath = match.Entry.CanonicalPath
	}
	name := e.DisplayName
	if name == "" {
		name = match.Entry.Name
	}

	item := model.NewCatalogItem(name, canonicalPath, match.Entry.Type, e.Credits, e.Ducats, today)
	item.Image = r.resolver.ImageURL(match.Entry)
	item.Link = r.resolver.WikiLink(match.Entry.Name)

	id, err := r.catalog.InsertItem(ctx, item)
	if errors.Is(err, repository.ErrDuplicateCanonicalPath) {
		existing, ferr := r.catalog.FindBySegment(ctx, canonical.SegmentOf(canonicalPath))
		if ferr != nil {
			return outcome{}, fmt.Errorf("failed to re-fetch %q: %w", name, ferr)
		}
		if existing == nil {
			return outcome{}, fmt.Errorf("failed to insert %q: %w", name, err)
		}
		logger.Log.Warnf("[Reconciler] %q was inserted concurrently, using existing item %s", name, existing.ID)
		return r.markOffered(ctx, existing.ID, today)
	}
	if err != nil {
		return outcome{}, fmt.Errorf("failed to insert %q: %w", name, err)
	}

	logger.Log.WithFields(logrus.Fields{
		"id":       id,
		"strategy": match.Strategy,
		"type":     item.Type,
	}).Infof("[Reconciler] Created catalog item %q", name)
	return outcome{id: id, resolved: true}, nil
}
