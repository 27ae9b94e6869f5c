package domain

import (
	"encoding/json"
	"time"
)

// Balances holds the point-in-time balance figures for an account.
// All amounts are optional because depository, credit and investment
// accounts populate different subsets.
type Balances struct {
	Available              *float64 `json:"available,omitempty"`
	Current                *float64 `json:"current,omitempty"`
	Limit                  *float64 `json:"limit,omitempty"`
	ISOCurrencyCode        *string  `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode *string  `json:"unofficial_currency_code,omitempty"`
}

// Account is a financial account under an item.
type Account struct {
	AccountID    string
	ItemID       string
	Name         string
	OfficialName *string
	Type         string
	Subtype      *string
	Mask         *string
	Balances     Balances
	Raw          json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BalanceSnapshot is one append-only row in the balance history.
type BalanceSnapshot struct {
	ID              int64
	AccountID       string
	ItemID          string
	Available       *float64
	Current         *float64
	Limit           *float64
	ISOCurrencyCode *string
	RecordedAt      time.Time
}
