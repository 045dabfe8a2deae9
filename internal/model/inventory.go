package model

import "time"

// InventoryEntry is one line of a reported vendor inventory.
type InventoryEntry struct {
	CanonicalPathRaw string `json:"unique_name"`
	DisplayName      string `json:"item"`
	Ducats           int    `json:"ducats"`
	Credits          int    `json:"credits"`
}

// ReconciliationResult is the outcome of matching one inventory batch against the catalog.
type ReconciliationResult struct {
	ResolvedIDs    []string `json:"resolved_ids"`
	UnmatchedNames []string `json:"unmatched_names"`
	IgnoredNames   []string `json:"ignored_names"`
}

// UnknownItem is a diagnostic record of an inventory line nothing could resolve.
type UnknownItem struct {
	CanonicalPathRaw string    `json:"unique_name"`
	DisplayName      string    `json:"item"`
	Ducats           int       `json:"ducats"`
	Credits          int       `json:"credits"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	IsSuspectedNew   bool      `json:"is_suspected_new"`
}

// Sighting is one observation of an unresolved inventory line.
type Sighting struct {
	CanonicalPathRaw string
	DisplayName      string
	Ducats           int
	Credits          int
	IsNewCandidate   bool
	SeenAt           time.Time
}

// BackfillSummary reports a canonical path backfill run.
type BackfillSummary struct {
	Total          int      `json:"total"`
	Matched        int      `json:"matched"`
	Unmatched      int      `json:"unmatched"`
	UnmatchedNames []string `json:"unmatched_names"`
}
