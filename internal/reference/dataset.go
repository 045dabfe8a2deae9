// Package reference resolves vendor inventory labels against the third-party
// item reference dataset.
package reference

import (
	"encoding/json"
	"fmt"
	"strings"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/model"
)

// minContainedNameLen guards the containment strategy against short names
// ("Ash", "Axi") matching half the catalog.
const minContainedNameLen = 3

// Dataset is an immutable, indexed view of the reference entries.
// Indexes keep the first entry seen for a key, so dataset order breaks ties.
type Dataset struct {
	entries      []model.ReferenceEntry
	byName       map[string]int
	byNormalized map[string]int
	byPath       map[string]int
}

// NewDataset indexes entries, dropping those missing a name or canonical path.
func NewDataset(entries []model.ReferenceEntry) *Dataset {
	d := &Dataset{
		entries:      make([]model.ReferenceEntry, 0, len(entries)),
		byName:       make(map[string]int, len(entries)),
		byNormalized: make(map[string]int, len(entries)),
		byPath:       make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if !e.Valid() {
			continue
		}
		i := len(d.entries)
		d.entries = append(d.entries, e)
		putFirst(d.byName, strings.ToLower(e.Name), i)
		putFirst(d.byNormalized, NormalizeName(e.Name), i)
		putFirst(d.byPath, strings.ToLower(e.CanonicalPath), i)
	}
	return d
}

func putFirst(m map[string]int, k string, i int) {
	if _, ok := m[k]; !ok {
		m[k] = i
	}
}

// ParseDataset decodes a JSON array of reference entries.
func ParseDataset(data []byte) (*Dataset, error) {
	var entries []model.ReferenceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse reference dataset: %w", err)
	}
	return NewDataset(entries), nil
}

// Len returns the number of usable entries.
func (d *Dataset) Len() int {
	return len(d.entries)
}

// BySegment returns the first entry whose canonical path ends with /seg.
func (d *Dataset) BySegment(seg string) (model.ReferenceEntry, bool) {
	if seg == "" {
		return model.ReferenceEntry{}, false
	}
	for _, e := range d.entries {
		if canonical.Path(e.CanonicalPath).EndsWithSegment(seg) {
			return e, true
		}
	}
	return model.ReferenceEntry{}, false
}

// ByExactName matches name case-insensitively.
func (d *Dataset) ByExactName(name string) (model.ReferenceEntry, bool) {
	return d.lookup(d.byName, strings.ToLower(strings.TrimSpace(name)))
}

// ByNormalizedName matches after NormalizeName is applied to both sides.
func (d *Dataset) ByNormalizedName(name string) (model.ReferenceEntry, bool) {
	n := NormalizeName(name)
	if n == "" {
		return model.ReferenceEntry{}, false
	}
	return d.lookup(d.byNormalized, n)
}

// ByContainment returns the first entry whose name (longer than three characters)
// appears inside name.
func (d *Dataset) ByContainment(name string) (model.ReferenceEntry, bool) {
	lower := strings.ToLower(name)
	if lower == "" {
		return model.ReferenceEntry{}, false
	}
	for _, e := range d.entries {
		if len(e.Name) > minContainedNameLen && strings.Contains(lower, strings.ToLower(e.Name)) {
			return e, true
		}
	}
	return model.ReferenceEntry{}, false
}

// ByPath matches a raw path after stripping the StoreItems segment.
func (d *Dataset) ByPath(raw string) (model.ReferenceEntry, bool) {
	return d.lookup(d.byPath, strings.ToLower(canonical.Normalize(raw).String()))
}

// NameForPath resolves a raw manifest path to a display name, falling back to
// the path's last segment.
func (d *Dataset) NameForPath(raw string) string {
	if e, ok := d.ByPath(raw); ok {
		return e.Name
	}
	if seg := canonical.SegmentOf(raw); seg != "" {
		return seg
	}
	return raw
}

func (d *Dataset) lookup(idx map[string]int, key string) (model.ReferenceEntry, bool) {
	i, ok := idx[key]
	if !ok {
		return model.ReferenceEntry{}, false
	}
	return d.entries[i], true
}
