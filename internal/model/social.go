package model

import "time"

// Like marks that a user likes a catalog item. A user likes an item at most once.
type Like struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"created_at"`
}

// Review is a user's short text review of a catalog item. Date and Time are
// the client's local "2006-01-02" and "15:04:05" stamps.
type Review struct {
	ID          string `json:"id"`
	ItemID      string `json:"item_id"`
	User        string `json:"user"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	UID         string `json:"uid"`
	ReportCount int    `json:"report_count"`
}

// ReviewEdit is the part of a review its author may change.
type ReviewEdit struct {
	Content string
	Date    string
	Time    string
}

// MarketPoint is one day of closed trade statistics.
type MarketPoint struct {
	Datetime string  `json:"datetime"`
	Volume   int     `json:"volume"`
	AvgPrice float64 `json:"avg_price"`
	ModRank  *int    `json:"mod_rank,omitempty"`
}

// MarketData is the trade history of one catalog item.
type MarketData struct {
	ItemID      string        `json:"item_id"`
	Data        []MarketPoint `json:"data"`
	LastUpdated time.Time     `json:"last_updated"`
}
