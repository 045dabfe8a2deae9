package model

import "time"

// Source tags which upstream feed produced a snapshot.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// Snapshot is the vendor's live status and inventory as reported upstream.
type Snapshot struct {
	ID         string           `json:"id,omitempty"`
	Activation time.Time        `json:"activation"`
	Expiry     time.Time        `json:"expiry"`
	Character  string           `json:"character,omitempty"`
	Location   string           `json:"location"`
	Inventory  []InventoryEntry `json:"inventory"`
	Source     Source           `json:"source"`
}

// IsActive reports whether now falls within [Activation, Expiry].
func (s *Snapshot) IsActive(now time.Time) bool {
	return !now.Before(s.Activation) && !now.After(s.Expiry)
}

// VendorStatus is the persisted single "current" document.
type VendorStatus struct {
	IsActive     bool      `json:"is_active"`
	Activation   time.Time `json:"activation"`
	Expiry       time.Time `json:"expiry"`
	Location     string    `json:"location"`
	InventoryIDs []string  `json:"inventory_ids"`
	Source       Source    `json:"source,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`

	// NotifiedActivation is the activation whose arrival broadcast went out.
	NotifiedActivation time.Time `json:"notified_activation"`
}

// CurrentView is the vendor status with the inventory populated.
type CurrentView struct {
	IsActive   bool           `json:"is_active"`
	Activation time.Time      `json:"activation"`
	Expiry     time.Time      `json:"expiry"`
	Location   string         `json:"location"`
	Items      []*CatalogItem `json:"items"`
}

// PushToken is a registered notification target.
type PushToken struct {
	Token     string    `json:"token"`
	DeviceID  string    `json:"device_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	IsActive  bool      `json:"is_active"`
}
