// Package canonical models the game's hierarchical item identifiers.
package canonical

import "strings"

const storeItemsSegment = "/StoreItems"

// Path is a slash-delimited canonical item path such as
// "/Lotus/Upgrades/Mods/Fusers/PrimedFlow".
type Path string

// Segment returns the last path segment, or the whole value when it has no slash.
func (p Path) Segment() string {
	s := string(p)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// EndsWithSegment reports whether the path's final segment equals seg.
func (p Path) EndsWithSegment(seg string) bool {
	if seg == "" || strings.Contains(seg, "/") {
		return false
	}
	return strings.HasSuffix(string(p), "/"+seg)
}

// IsZero reports whether the path is empty after trimming.
func (p Path) IsZero() bool {
	return strings.TrimSpace(string(p)) == ""
}

// String implements fmt.Stringer.
func (p Path) String() string {
	return string(p)
}

// Normalize strips the "/StoreItems" segment the raw world state inserts so the
// result lines up with reference dataset paths.
//
//	/Lotus/StoreItems/Upgrades/Mods/Foo -> /Lotus/Upgrades/Mods/Foo
func Normalize(raw string) Path {
	return Path(strings.Replace(strings.TrimSpace(raw), storeItemsSegment, "", 1))
}

// SegmentOf is shorthand for Normalize(raw).Segment().
func SegmentOf(raw string) string {
	return Normalize(raw).Segment()
}
