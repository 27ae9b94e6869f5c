package domain

import (
	"encoding/json"
	"time"
)

// Reauth error codes. An item carrying one of these errors cannot sync
// until the user completes update-mode link and the error is cleared.
const (
	ErrorCodeItemLoginRequired     = "ITEM_LOGIN_REQUIRED"
	ErrorCodeUserPermissionRevoked = "USER_PERMISSION_REVOKED"
	ErrorCodePendingExpiration     = "PENDING_EXPIRATION"
)

// ItemError is a provider error attached to an item.
type ItemError struct {
	ErrorType    string `json:"error_type,omitempty"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Error implements the error interface so provider adapters can return
// an *ItemError directly and callers can classify it with errors.As.
func (e *ItemError) Error() string {
	if e.ErrorMessage != "" {
		return e.ErrorCode + ": " + e.ErrorMessage
	}
	return e.ErrorCode
}

// RequiresReauth reports whether this error makes the item unhealthy
// until the user re-authorizes it.
func (e *ItemError) RequiresReauth() bool {
	if e == nil {
		return false
	}
	switch e.ErrorCode {
	case ErrorCodeItemLoginRequired, ErrorCodeUserPermissionRevoked, ErrorCodePendingExpiration:
		return true
	}
	return false
}

// Item is a linked connection between one user credential set and one
// financial institution. AccessToken is stored encrypted at rest.
type Item struct {
	ItemID                string
	AccessToken           string
	UserToken             string
	InstitutionID         string
	InstitutionName       string
	Webhook               string
	AvailableProducts     []string
	BilledProducts        []string
	ConsentExpirationTime *time.Time
	UpdateType            string
	Error                 *ItemError
	Raw                   json.RawMessage
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Healthy reports whether the item is eligible for syncing.
func (i *Item) Healthy() bool {
	return !i.Error.RequiresReauth()
}

// ItemStatus is the per-item report returned by the status endpoint.
type ItemStatus struct {
	ItemID          string     `json:"item_id"`
	InstitutionID   string     `json:"institution_id,omitempty"`
	InstitutionName string     `json:"institution_name,omitempty"`
	Healthy         bool       `json:"healthy"`
	Error           *ItemError `json:"error,omitempty"`
	AccountCount    int        `json:"account_count"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	NextCursorSet   bool       `json:"cursor_set"`
}
