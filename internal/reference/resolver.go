package reference

import (
	"context"
	"strings"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"
)

// Strategy names the matching step that produced a resolution.
type Strategy string

const (
	StrategyNone        Strategy = ""
	StrategySuffix      Strategy = "suffix"
	StrategyExactName   Strategy = "exact_name"
	StrategyNormalized  Strategy = "normalized_name"
	StrategyContainment Strategy = "containment"
	StrategyManual      Strategy = "manual"
)

// Query is what a vendor feed tells us about an item.
type Query struct {
	// PathSuffix is the last segment of the reported canonical path; may be empty.
	PathSuffix string
	// Name is the reported display name.
	Name string
}

// Match is a resolved reference entry and the step that found it.
type Match struct {
	Entry    model.ReferenceEntry
	Strategy Strategy
}

// ResolverConfig holds the display metadata bases.
type ResolverConfig struct {
	ImageBaseURL string
	WikiBaseURL  string
}

// Resolver maps vendor labels to canonical item metadata.
type Resolver struct {
	provider *Provider
	cfg      ResolverConfig
}

// NewResolver creates a resolver over provider.
func NewResolver(provider *Provider, cfg ResolverConfig) *Resolver {
	return &Resolver{provider: provider, cfg: cfg}
}

// Provider returns the dataset provider the resolver reads from.
func (r *Resolver) Provider() *Provider {
	return r.provider
}

// Resolve tries suffix, exact name, normalized name, containment and the manual
// table in that order. A nil match with a nil error means nothing matched.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Match, error) {
	d, err := r.provider.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	if e, ok := d.BySegment(q.PathSuffix); ok {
		return &Match{Entry: e, Strategy: StrategySuffix}, nil
	}
	return MatchName(d, q.Name), nil
}

// MatchName runs the name-only strategies (exact, normalized, containment, manual).
func MatchName(d *Dataset, name string) *Match {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	if e, ok := d.ByExactName(name); ok {
		return &Match{Entry: e, Strategy: StrategyExactName}
	}
	if e, ok := d.ByNormalizedName(name); ok {
		return &Match{Entry: e, Strategy: StrategyNormalized}
	}
	if e, ok := d.ByContainment(name); ok {
		return &Match{Entry: e, Strategy: StrategyContainment}
	}
	if path, ok := ManualPath(name); ok {
		return &Match{
			Entry:    model.ReferenceEntry{Name: name, CanonicalPath: path},
			Strategy: StrategyManual,
		}
	}
	return nil
}

// NameForPath names a raw manifest path. When the dataset cannot be loaded the
// path's last segment is used.
func (r *Resolver) NameForPath(ctx context.Context, raw string) string {
	d, err := r.provider.Dataset(ctx)
	if err != nil {
		logger.Log.Warnf("[Resolver] Reference dataset unavailable, naming %s by segment: %v", raw, err)
		if seg := canonical.SegmentOf(raw); seg != "" {
			return seg
		}
		return raw
	}
	return d.NameForPath(raw)
}

// ImageURL returns the display image for an entry, or "" when it has none.
func (r *Resolver) ImageURL(e model.ReferenceEntry) string {
	if e.ImageRef == "" {
		return ""
	}
	return r.cfg.ImageBaseURL + e.ImageRef
}

// WikiLink returns the wiki page for a display name.
func (r *Resolver) WikiLink(name string) string {
	if r.cfg.WikiBaseURL == "" || name == "" {
		return ""
	}
	return r.cfg.WikiBaseURL + strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}
