package domain

import "time"

// SyncCursor is the persisted position in an item's transaction delta feed.
type SyncCursor struct {
	ItemID    string
	Cursor    string
	UpdatedAt time.Time
}

// ChangeSet is one page of the provider's transaction delta feed.
type ChangeSet struct {
	Added      []Transaction
	Modified   []Transaction
	Removed    []RemovedTransaction
	NextCursor string
	HasMore    bool

	// Rejected counts records the adapter dropped because they could
	// not be decoded
	Rejected int
}

// SyncResult summarizes one completed sync pass over a single item.
type SyncResult struct {
	ItemID   string `json:"item_id"`
	Added    int    `json:"added"`
	Modified int    `json:"modified"`
	Removed  int    `json:"removed"`
	Rejected int    `json:"rejected,omitempty"`
	Pages    int    `json:"pages"`
	Error    string `json:"error,omitempty"`
}

// BackfillResult summarizes a historical transaction backfill.
type BackfillResult struct {
	ItemID    string    `json:"item_id"`
	Fetched   int       `json:"fetched"`
	Rejected  int       `json:"rejected,omitempty"`
	Pages     int       `json:"pages"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}
