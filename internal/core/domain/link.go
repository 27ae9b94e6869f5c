package domain

import "time"

// LinkToken is a short-lived token used by the client to open the
// provider's link flow.
type LinkToken struct {
	Token      string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
	RequestID  string    `json:"request_id,omitempty"`
}

// ExchangeResult is the outcome of trading a public token for item
// credentials after the user completes the link flow.
type ExchangeResult struct {
	ItemID      string `json:"item_id"`
	AccessToken string `json:"-"`
}
