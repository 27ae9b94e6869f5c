package domain

import (
	"encoding/json"
	"time"
)

// Location is the merchant location attached to a transaction.
type Location struct {
	Address     *string  `json:"address,omitempty"`
	City        *string  `json:"city,omitempty"`
	Region      *string  `json:"region,omitempty"`
	PostalCode  *string  `json:"postal_code,omitempty"`
	Country     *string  `json:"country,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	StoreNumber *string  `json:"store_number,omitempty"`
}

// PaymentMeta carries payment rails metadata for a transaction.
type PaymentMeta struct {
	ReferenceNumber  *string `json:"reference_number,omitempty"`
	PPDID            *string `json:"ppd_id,omitempty"`
	Payee            *string `json:"payee,omitempty"`
	ByOrderOf        *string `json:"by_order_of,omitempty"`
	Payer            *string `json:"payer,omitempty"`
	PaymentMethod    *string `json:"payment_method,omitempty"`
	PaymentProcessor *string `json:"payment_processor,omitempty"`
	Reason           *string `json:"reason,omitempty"`
}

// PersonalFinanceCategory is the provider's enriched category taxonomy.
type PersonalFinanceCategory struct {
	Primary         string `json:"primary"`
	Detailed        string `json:"detailed"`
	ConfidenceLevel string `json:"confidence_level,omitempty"`
}

// Counterparty is one party on the other side of a transaction.
type Counterparty struct {
	Name            string  `json:"name"`
	Type            string  `json:"type,omitempty"`
	Website         *string `json:"website,omitempty"`
	LogoURL         *string `json:"logo_url,omitempty"`
	EntityID        *string `json:"entity_id,omitempty"`
	ConfidenceLevel string  `json:"confidence_level,omitempty"`
}

// Transaction is one financial transaction as delivered by the provider.
// The full provider payload is retained in Raw so that schema changes
// upstream never lose data.
type Transaction struct {
	TransactionID            string
	AccountID                string
	ItemID                   string
	Amount                   float64
	ISOCurrencyCode          *string
	UnofficialCurrencyCode   *string
	Date                     time.Time
	Datetime                 *time.Time
	AuthorizedDate           *time.Time
	AuthorizedDatetime       *time.Time
	Name                     string
	MerchantName             *string
	MerchantEntityID         *string
	LogoURL                  *string
	Website                  *string
	PaymentChannel           string
	Pending                  bool
	PendingTransactionID     *string
	AccountOwner             *string
	TransactionCode          *string
	CheckNumber              *string
	Category                 []string
	CategoryID               *string
	PersonalFinanceCategory  *PersonalFinanceCategory
	PersonalFinanceIconURL   *string
	Location                 *Location
	PaymentMeta              *PaymentMeta
	Counterparties           []Counterparty
	Raw                      json.RawMessage
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Valid reports whether the transaction carries the identity fields
// required for persistence. Invalid records are rejected and logged,
// the rest of the batch proceeds.
func (t *Transaction) Valid() bool {
	return t.TransactionID != "" && t.AccountID != ""
}

// RemovedTransaction identifies a transaction the provider has deleted.
type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id,omitempty"`
}
