package domain

import (
	"encoding/json"
	"time"
)

// Webhook types delivered by the provider.
const (
	WebhookTypeTransactions = "TRANSACTIONS"
	WebhookTypeItem         = "ITEM"
)

// Webhook codes this service reacts to.
const (
	WebhookCodeSyncUpdatesAvailable = "SYNC_UPDATES_AVAILABLE"
	WebhookCodeDefaultUpdate        = "DEFAULT_UPDATE"
	WebhookCodeInitialUpdate        = "INITIAL_UPDATE"
	WebhookCodeHistoricalUpdate     = "HISTORICAL_UPDATE"
	WebhookCodeError                = "ERROR"
	WebhookCodePendingExpiration    = "PENDING_EXPIRATION"
	WebhookCodeUserPermissionRevoked = "USER_PERMISSION_REVOKED"
)

// WebhookEvent is a provider webhook delivery after signature verification.
type WebhookEvent struct {
	WebhookType string          `json:"webhook_type"`
	WebhookCode string          `json:"webhook_code"`
	ItemID      string          `json:"item_id"`
	Error       *ItemError      `json:"error,omitempty"`
	Environment string          `json:"environment,omitempty"`
	Raw         json.RawMessage `json:"-"`
	ReceivedAt  time.Time       `json:"-"`
}

// TriggersSync reports whether this event should enqueue a sync for the item.
func (e *WebhookEvent) TriggersSync() bool {
	if e.WebhookType != WebhookTypeTransactions {
		return false
	}
	switch e.WebhookCode {
	case WebhookCodeSyncUpdatesAvailable, WebhookCodeDefaultUpdate,
		WebhookCodeInitialUpdate, WebhookCodeHistoricalUpdate:
		return true
	}
	return false
}
