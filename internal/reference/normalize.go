package reference

import (
	"regexp"
	"strings"
)

var (
	quantityPrefix   = regexp.MustCompile(`(?i)^\d+\s*x\s+`)
	parenSuffix      = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	blueprintSuffix  = regexp.MustCompile(`(?i)\s+Blueprint$`)
	sidePrefix       = regexp.MustCompile(`(?i)^(Left|Right)\s+`)
	relicSuffix      = regexp.MustCompile(`(?i)\s+Relic$`)
	relicReplacement = " Intact"
)

// NormalizeName folds a display name into the form used for fuzzy matching:
//
//	"5 x Corrupted Mod Pack (Operator)" -> "corrupted mod pack"
//	"Axi A5 Relic"                      -> "axi a5 intact"
//	"Left Elixis Shoulder Blueprint"    -> "elixis shoulder"
func NormalizeName(name string) string {
	n := strings.TrimSpace(name)
	n = quantityPrefix.ReplaceAllString(n, "")
	n = parenSuffix.ReplaceAllString(n, "")
	n = blueprintSuffix.ReplaceAllString(n, "")
	n = sidePrefix.ReplaceAllString(n, "")
	n = relicSuffix.ReplaceAllString(n, relicReplacement)
	return strings.TrimSpace(strings.ToLower(n))
}
