package models

import "time"

// WearEvent records one wearing of an item on a given day.
type WearEvent struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// WashEvent records one washing of an item on a given day.
type WashEvent struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// SyncResult is the canonical state returned by the server after a
// wear or wash batch is recorded. The device applies it to its local
// mirror; it never recomputes counters on its own.
type SyncResult struct {
	Items      []Item      `json:"items"`
	WearEvents []WearEvent `json:"wearEvents,omitempty"`
	WashEvents []WashEvent `json:"washEvents,omitempty"`
}
