package market

import (
	"regexp"
	"strings"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	invalidChar = regexp.MustCompile(`[^\w-]`)
	underscores = regexp.MustCompile(`_+`)
)

// unlisted items share a name with a different market item.
var unlisted = map[string]bool{
	"ignis_wraith": true,
}

// slugOverrides maps names the game and the market spell differently.
var slugOverrides = map[string]string{
	"primed_bane_of_orokin":      "primed_bane_of_corrupted",
	"primed_cleanse_orokin":      "primed_cleanse_corrupted",
	"primed_smite_orokin":        "primed_smite_corrupted",
	"primed_expel_orokin":        "primed_expel_corrupted",
	"primed_rubedo-lined_barrel": "primed_rubedo_lined_barrel",
}

// Slug converts an item name to its market URL name. It returns false for
// items that must not be looked up.
//
//	"Primed Flow" -> "primed_flow"
func Slug(name string) (string, bool) {
	s := strings.ToLower(name)
	s = whitespace.ReplaceAllString(s, "_")
	s = invalidChar.ReplaceAllString(s, "")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if s == "" || unlisted[s] {
		return "", false
	}
	if o, ok := slugOverrides[s]; ok {
		return o, true
	}
	return s, true
}

// tradablePrefixes are the item type prefixes the market lists.
var tradablePrefixes = []string{"mod", "weapon", "void relic", "relic", "primary", "secondary", "melee"}

// Tradable reports whether items of itemType are traded on the market.
func Tradable(itemType string) bool {
	t := strings.ToLower(strings.TrimSpace(itemType))
	for _, p := range tradablePrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
