package model

import (
	"sort"
	"time"
)

// TypeUnknown is the placeholder type for items the reference data could not classify.
const TypeUnknown = "Unknown"

// CatalogItem is a vendor-offerable item known to the system.
type CatalogItem struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	CanonicalPath  string   `json:"canonical_path,omitempty"`
	Type           string   `json:"type"`
	CreditPrice    int      `json:"credit_price"`
	DucatPrice     int      `json:"ducat_price"`
	Image          string   `json:"image,omitempty"`
	Link           string   `json:"link,omitempty"`
	OfferingDates  []string `json:"offering_dates"`
	LikeRefs       []string `json:"likes"`
	ReviewRefs     []string `json:"reviews"`
	WishlistTokens []string `json:"-"`
	WishlistCount  int      `json:"wishlist_count"`

	// Permanent is derived on read, never stored.
	Permanent bool `json:"permanent,omitempty"`
}

// SortedOfferingDates returns a sorted copy of the offering dates.
func (i *CatalogItem) SortedOfferingDates() []string {
	dates := make([]string, len(i.OfferingDates))
	copy(dates, i.OfferingDates)
	sort.Strings(dates)
	return dates
}

// HasOfferingDate reports whether the item was offered on date.
func (i *CatalogItem) HasOfferingDate(date string) bool {
	for _, d := range i.OfferingDates {
		if d == date {
			return true
		}
	}
	return false
}

// NewCatalogItem seeds a catalog record first seen on date.
func NewCatalogItem(name, canonicalPath, itemType string, credits, ducats int, date string) *CatalogItem {
	if itemType == "" {
		itemType = TypeUnknown
	}
	return &CatalogItem{
		Name:           name,
		CanonicalPath:  canonicalPath,
		Type:           itemType,
		CreditPrice:    credits,
		DucatPrice:     ducats,
		OfferingDates:  []string{date},
		LikeRefs:       []string{},
		ReviewRefs:     []string{},
		WishlistTokens: []string{},
		WishlistCount:  0,
	}
}

// DateKey formats t as the ISO calendar date used in offering dates.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
