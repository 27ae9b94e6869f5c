package plaid

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Provider = (*Client)(nil)

const (
	dateLayout = "2006-01-02"

	clientName  = "finsync"
	countryCode = "US"
	language    = "en"
)

// CreateLinkToken creates a token for the client-side link flow.
// When req.AccessToken is set the token opens link in update mode and
// products must be omitted.
func (c *Client) CreateLinkToken(ctx context.Context, req driven.LinkTokenRequest) (*domain.LinkToken, error) {
	body := map[string]any{
		"client_name":   clientName,
		"language":      language,
		"country_codes": []string{countryCode},
		"user": map[string]string{
			"client_user_id": req.ClientUserID,
		},
	}
	if req.AccessToken != "" {
		body["access_token"] = req.AccessToken
	} else {
		body["products"] = req.Products
	}
	if req.Webhook != "" {
		body["webhook"] = req.Webhook
	}
	if req.RedirectURI != "" {
		body["redirect_uri"] = req.RedirectURI
	}

	var resp struct {
		LinkToken  string    `json:"link_token"`
		Expiration time.Time `json:"expiration"`
		RequestID  string    `json:"request_id"`
	}
	if err := c.post(ctx, "/link/token/create", body, &resp); err != nil {
		return nil, err
	}

	return &domain.LinkToken{
		Token:      resp.LinkToken,
		Expiration: resp.Expiration,
		RequestID:  resp.RequestID,
	}, nil
}

// ExchangePublicToken trades a public token for item credentials.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*domain.ExchangeResult, error) {
	body := map[string]string{"public_token": publicToken}

	var resp struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	if err := c.post(ctx, "/item/public_token/exchange", body, &resp); err != nil {
		return nil, err
	}

	return &domain.ExchangeResult{
		ItemID:      resp.ItemID,
		AccessToken: resp.AccessToken,
	}, nil
}

// itemWire is the item object as delivered on the wire.
type itemWire struct {
	ItemID                string            `json:"item_id"`
	InstitutionID         string            `json:"institution_id"`
	InstitutionName       string            `json:"institution_name"`
	Webhook               string            `json:"webhook"`
	AvailableProducts     []string          `json:"available_products"`
	BilledProducts        []string          `json:"billed_products"`
	ConsentExpirationTime *time.Time        `json:"consent_expiration_time"`
	UpdateType            string            `json:"update_type"`
	Error                 *domain.ItemError `json:"error"`
}

func (w *itemWire) toDomain(raw json.RawMessage) *domain.Item {
	return &domain.Item{
		ItemID:                w.ItemID,
		InstitutionID:         w.InstitutionID,
		InstitutionName:       w.InstitutionName,
		Webhook:               w.Webhook,
		AvailableProducts:     w.AvailableProducts,
		BilledProducts:        w.BilledProducts,
		ConsentExpirationTime: w.ConsentExpirationTime,
		UpdateType:            w.UpdateType,
		Error:                 w.Error,
		Raw:                   raw,
	}
}

// GetItem retrieves item metadata and error state.
func (c *Client) GetItem(ctx context.Context, accessToken string) (*domain.Item, error) {
	body := map[string]string{"access_token": accessToken}

	var resp struct {
		Item json.RawMessage `json:"item"`
	}
	if err := c.post(ctx, "/item/get", body, &resp); err != nil {
		return nil, err
	}

	var item itemWire
	if err := json.Unmarshal(resp.Item, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return item.toDomain(resp.Item), nil
}

// RemoveItem revokes the access token at the provider.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	body := map[string]string{"access_token": accessToken}
	return c.post(ctx, "/item/remove", body, nil)
}

// accountWire is the account object as delivered on the wire.
type accountWire struct {
	AccountID    string          `json:"account_id"`
	Name         string          `json:"name"`
	OfficialName *string         `json:"official_name"`
	Type         string          `json:"type"`
	Subtype      *string         `json:"subtype"`
	Mask         *string         `json:"mask"`
	Balances     domain.Balances `json:"balances"`
}

func (w *accountWire) toDomain(itemID string, raw json.RawMessage) domain.Account {
	return domain.Account{
		AccountID:    w.AccountID,
		ItemID:       itemID,
		Name:         w.Name,
		OfficialName: w.OfficialName,
		Type:         w.Type,
		Subtype:      w.Subtype,
		Mask:         w.Mask,
		Balances:     w.Balances,
		Raw:          raw,
	}
}

func (c *Client) fetchAccounts(ctx context.Context, path, accessToken string) ([]domain.Account, error) {
	body := map[string]string{"access_token": accessToken}

	var resp struct {
		Accounts []json.RawMessage `json:"accounts"`
		Item     struct {
			ItemID string `json:"item_id"`
		} `json:"item"`
	}
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(resp.Accounts))
	for _, raw := range resp.Accounts {
		var w accountWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		accounts = append(accounts, w.toDomain(resp.Item.ItemID, raw))
	}
	return accounts, nil
}

// GetAccounts retrieves the accounts under an item from cached data.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]domain.Account, error) {
	return c.fetchAccounts(ctx, "/accounts/get", accessToken)
}

// GetBalances retrieves accounts with balances fetched live from the
// institution.
func (c *Client) GetBalances(ctx context.Context, accessToken string) ([]domain.Account, error) {
	return c.fetchAccounts(ctx, "/accounts/balance/get", accessToken)
}

// transactionWire is the transaction object as delivered on the wire.
// Plain dates arrive as "YYYY-MM-DD" strings, timestamps as RFC 3339.
type transactionWire struct {
	TransactionID          string                          `json:"transaction_id"`
	AccountID              string                          `json:"account_id"`
	Amount                 float64                         `json:"amount"`
	ISOCurrencyCode        *string                         `json:"iso_currency_code"`
	UnofficialCurrencyCode *string                         `json:"unofficial_currency_code"`
	Date                   string                          `json:"date"`
	Datetime               *time.Time                      `json:"datetime"`
	AuthorizedDate         *string                         `json:"authorized_date"`
	AuthorizedDatetime     *time.Time                      `json:"authorized_datetime"`
	Name                   string                          `json:"name"`
	MerchantName           *string                         `json:"merchant_name"`
	MerchantEntityID       *string                         `json:"merchant_entity_id"`
	LogoURL                *string                         `json:"logo_url"`
	Website                *string                         `json:"website"`
	PaymentChannel         string                          `json:"payment_channel"`
	Pending                bool                            `json:"pending"`
	PendingTransactionID   *string                         `json:"pending_transaction_id"`
	AccountOwner           *string                         `json:"account_owner"`
	TransactionCode        *string                         `json:"transaction_code"`
	CheckNumber            *string                         `json:"check_number"`
	Category               []string                        `json:"category"`
	CategoryID             *string                         `json:"category_id"`
	PFC                    *domain.PersonalFinanceCategory `json:"personal_finance_category"`
	PFCIconURL             *string                         `json:"personal_finance_category_icon_url"`
	Location               *domain.Location                `json:"location"`
	PaymentMeta            *domain.PaymentMeta             `json:"payment_meta"`
	Counterparties         []domain.Counterparty           `json:"counterparties"`
}

func (w *transactionWire) toDomain(raw json.RawMessage) (domain.Transaction, error) {
	date, err := time.Parse(dateLayout, w.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: parse date %q: %w", w.TransactionID, w.Date, err)
	}

	var authorizedDate *time.Time
	if w.AuthorizedDate != nil && *w.AuthorizedDate != "" {
		d, err := time.Parse(dateLayout, *w.AuthorizedDate)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("transaction %s: parse authorized_date %q: %w", w.TransactionID, *w.AuthorizedDate, err)
		}
		authorizedDate = &d
	}

	return domain.Transaction{
		TransactionID:           w.TransactionID,
		AccountID:               w.AccountID,
		Amount:                  w.Amount,
		ISOCurrencyCode:         w.ISOCurrencyCode,
		UnofficialCurrencyCode:  w.UnofficialCurrencyCode,
		Date:                    date,
		Datetime:                w.Datetime,
		AuthorizedDate:          authorizedDate,
		AuthorizedDatetime:      w.AuthorizedDatetime,
		Name:                    w.Name,
		MerchantName:            w.MerchantName,
		MerchantEntityID:        w.MerchantEntityID,
		LogoURL:                 w.LogoURL,
		Website:                 w.Website,
		PaymentChannel:          w.PaymentChannel,
		Pending:                 w.Pending,
		PendingTransactionID:    w.PendingTransactionID,
		AccountOwner:            w.AccountOwner,
		TransactionCode:         w.TransactionCode,
		CheckNumber:             w.CheckNumber,
		Category:                w.Category,
		CategoryID:              w.CategoryID,
		PersonalFinanceCategory: w.PFC,
		PersonalFinanceIconURL:  w.PFCIconURL,
		Location:                w.Location,
		PaymentMeta:             w.PaymentMeta,
		Counterparties:          w.Counterparties,
		Raw:                     raw,
	}, nil
}

// decodeTransactions decodes a wire batch. Records that fail to decode
// or carry unparseable dates are logged and dropped so one malformed
// record cannot fail the whole page. Returns the survivors and the
// number of dropped records.
func (c *Client) decodeTransactions(raws []json.RawMessage) ([]domain.Transaction, int) {
	txns := make([]domain.Transaction, 0, len(raws))
	rejected := 0
	for _, raw := range raws {
		var w transactionWire
		if err := json.Unmarshal(raw, &w); err != nil {
			c.logger.Warn("dropping undecodable transaction", "error", err)
			rejected++
			continue
		}
		txn, err := w.toDomain(raw)
		if err != nil {
			c.logger.Warn("dropping malformed transaction",
				"transaction_id", w.TransactionID,
				"error", err,
			)
			rejected++
			continue
		}
		txns = append(txns, txn)
	}
	return txns, rejected
}

// SyncTransactions fetches one page of the transaction delta feed.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*domain.ChangeSet, error) {
	body := map[string]any{
		"access_token": accessToken,
		"count":        count,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}

	var resp struct {
		Added      []json.RawMessage           `json:"added"`
		Modified   []json.RawMessage           `json:"modified"`
		Removed    []domain.RemovedTransaction `json:"removed"`
		NextCursor string                      `json:"next_cursor"`
		HasMore    bool                        `json:"has_more"`
	}
	if err := c.post(ctx, "/transactions/sync", body, &resp); err != nil {
		return nil, err
	}

	added, rejAdded := c.decodeTransactions(resp.Added)
	modified, rejModified := c.decodeTransactions(resp.Modified)

	return &domain.ChangeSet{
		Added:      added,
		Modified:   modified,
		Removed:    resp.Removed,
		NextCursor: resp.NextCursor,
		HasMore:    resp.HasMore,
		Rejected:   rejAdded + rejModified,
	}, nil
}

// GetTransactions fetches one offset page of historical transactions.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, start, end time.Time, count, offset int) (*driven.HistoricalPage, error) {
	body := map[string]any{
		"access_token": accessToken,
		"start_date":   start.Format(dateLayout),
		"end_date":     end.Format(dateLayout),
		"options": map[string]int{
			"count":  count,
			"offset": offset,
		},
	}

	var resp struct {
		Transactions []json.RawMessage `json:"transactions"`
		Total        int               `json:"total_transactions"`
	}
	if err := c.post(ctx, "/transactions/get", body, &resp); err != nil {
		return nil, err
	}

	txns, rejected := c.decodeTransactions(resp.Transactions)

	return &driven.HistoricalPage{
		Transactions: txns,
		Total:        resp.Total,
		Rejected:     rejected,
	}, nil
}

// institutionWire is the institution object as delivered on the wire.
type institutionWire struct {
	InstitutionID string   `json:"institution_id"`
	Name          string   `json:"name"`
	Products      []string `json:"products"`
	CountryCodes  []string `json:"country_codes"`
	URL           string   `json:"url"`
	PrimaryColor  string   `json:"primary_color"`
	Logo          string   `json:"logo"`
}

// GetInstitution retrieves institution metadata by ID.
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*domain.Institution, error) {
	body := map[string]any{
		"institution_id": institutionID,
		"country_codes":  []string{countryCode},
		"options": map[string]bool{
			"include_optional_metadata": true,
		},
	}

	var resp struct {
		Institution json.RawMessage `json:"institution"`
	}
	if err := c.post(ctx, "/institutions/get_by_id", body, &resp); err != nil {
		return nil, err
	}

	var w institutionWire
	if err := json.Unmarshal(resp.Institution, &w); err != nil {
		return nil, fmt.Errorf("decode institution: %w", err)
	}

	return &domain.Institution{
		InstitutionID: w.InstitutionID,
		Name:          w.Name,
		Products:      w.Products,
		CountryCodes:  w.CountryCodes,
		URL:           w.URL,
		PrimaryColor:  w.PrimaryColor,
		Logo:          w.Logo,
		Raw:           resp.Institution,
	}, nil
}
