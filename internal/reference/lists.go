package reference

import "strings"

// manualCanonicalPaths maps lowercased display names to hand-curated canonical
// paths for items the reference dataset does not carry.
var manualCanonicalPaths = map[string]string{
	"3 day mod drop chance booster": "/Lotus/Types/StoreItems/Boosters/ModDropChanceBoosterStoreItem",
	"3 day resource booster":        "/Lotus/Types/StoreItems/Boosters/ResourceDropChanceBoosterStoreItem",
	"3 day affinity booster":        "/Lotus/Types/StoreItems/Boosters/AffinityBoosterStoreItem",
	"ki'teer domestik drone":        "/Lotus/Types/Items/ShipDecos/LisetPropCleaningDroneBaro",
	"atrox gene-masking kit":        "/Lotus/Types/StoreItems/Packages/KubrowColorPackDiamond",
}

// ignoredItems are placeholder lines the upstream feed injects; they never
// become catalog entries.
var ignoredItems = map[string]struct{}{
	"void surplus":    {},
	"dragon mod pack": {},
	"falcon mod pack": {},
}

// permanentItems show up every visit, so clients hide their offering history.
var permanentItems = map[string]struct{}{
	"void surplus": {},
}

// ManualPath returns the curated canonical path for name, if any.
func ManualPath(name string) (string, bool) {
	p, ok := manualCanonicalPaths[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// IsIgnored reports whether name is on the ignore list (case-insensitive).
func IsIgnored(name string) bool {
	_, ok := ignoredItems[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// IsPermanent reports whether name is offered on every visit.
func IsPermanent(name string) bool {
	_, ok := permanentItems[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
