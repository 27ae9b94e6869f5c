package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TransactionStore = (*TransactionStore)(nil)

// TransactionStore implements driven.TransactionStore using PostgreSQL
type TransactionStore struct {
	db *DB
}

// NewTransactionStore creates a new TransactionStore
func NewTransactionStore(db *DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// UpsertBatch creates or updates transactions in a single database
// transaction. Every column except the link fields is replaced with the
// incoming value, so a modified record fully overwrites the stored one.
// Re-applying the same batch is a no-op, which is what makes cursor
// replay after a crash safe.
func (s *TransactionStore) UpsertBatch(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	query := `
		INSERT INTO financial_transactions (
			transaction_id, account_id, item_id, amount,
			iso_currency_code, unofficial_currency_code,
			date, datetime, authorized_date, authorized_datetime,
			name, merchant_name, merchant_entity_id, logo_url, website,
			payment_channel, pending, pending_transaction_id,
			account_owner, transaction_code, check_number,
			category, category_id, personal_finance_category,
			personal_finance_icon_url, location, payment_meta,
			counterparties, raw_data, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, now())
		ON CONFLICT (transaction_id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			item_id = EXCLUDED.item_id,
			amount = EXCLUDED.amount,
			iso_currency_code = EXCLUDED.iso_currency_code,
			unofficial_currency_code = EXCLUDED.unofficial_currency_code,
			date = EXCLUDED.date,
			datetime = EXCLUDED.datetime,
			authorized_date = EXCLUDED.authorized_date,
			authorized_datetime = EXCLUDED.authorized_datetime,
			name = EXCLUDED.name,
			merchant_name = EXCLUDED.merchant_name,
			merchant_entity_id = COALESCE(EXCLUDED.merchant_entity_id, financial_transactions.merchant_entity_id),
			logo_url = EXCLUDED.logo_url,
			website = EXCLUDED.website,
			payment_channel = EXCLUDED.payment_channel,
			pending = EXCLUDED.pending,
			pending_transaction_id = COALESCE(EXCLUDED.pending_transaction_id, financial_transactions.pending_transaction_id),
			account_owner = EXCLUDED.account_owner,
			transaction_code = EXCLUDED.transaction_code,
			check_number = EXCLUDED.check_number,
			category = EXCLUDED.category,
			category_id = EXCLUDED.category_id,
			personal_finance_category = EXCLUDED.personal_finance_category,
			personal_finance_icon_url = EXCLUDED.personal_finance_icon_url,
			location = EXCLUDED.location,
			payment_meta = EXCLUDED.payment_meta,
			counterparties = EXCLUDED.counterparties,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
	`

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range txns {
			t := &txns[i]

			var pfc, location, paymentMeta, counterparties []byte
			var err error
			if t.PersonalFinanceCategory != nil {
				if pfc, err = json.Marshal(t.PersonalFinanceCategory); err != nil {
					return fmt.Errorf("transaction %s: %w", t.TransactionID, err)
				}
			}
			if t.Location != nil {
				if location, err = json.Marshal(t.Location); err != nil {
					return fmt.Errorf("transaction %s: %w", t.TransactionID, err)
				}
			}
			if t.PaymentMeta != nil {
				if paymentMeta, err = json.Marshal(t.PaymentMeta); err != nil {
					return fmt.Errorf("transaction %s: %w", t.TransactionID, err)
				}
			}
			if len(t.Counterparties) > 0 {
				if counterparties, err = json.Marshal(t.Counterparties); err != nil {
					return fmt.Errorf("transaction %s: %w", t.TransactionID, err)
				}
			}

			_, err = stmt.ExecContext(ctx,
				t.TransactionID,
				t.AccountID,
				t.ItemID,
				t.Amount,
				NullString(t.ISOCurrencyCode),
				NullString(t.UnofficialCurrencyCode),
				t.Date,
				NullTime(t.Datetime),
				NullTime(t.AuthorizedDate),
				NullTime(t.AuthorizedDatetime),
				t.Name,
				NullString(t.MerchantName),
				NullString(t.MerchantEntityID),
				NullString(t.LogoURL),
				NullString(t.Website),
				t.PaymentChannel,
				t.Pending,
				NullString(t.PendingTransactionID),
				NullString(t.AccountOwner),
				NullString(t.TransactionCode),
				NullString(t.CheckNumber),
				pq.Array(t.Category),
				NullString(t.CategoryID),
				nullJSON(pfc),
				NullString(t.PersonalFinanceIconURL),
				nullJSON(location),
				nullJSON(paymentMeta),
				nullJSON(counterparties),
				nullJSON(t.Raw),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteBatch removes transactions by ID. IDs that do not exist are
// ignored, so replaying a delete after a crash is harmless.
func (s *TransactionStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM financial_transactions WHERE transaction_id = ANY($1)`,
		pq.Array(ids),
	)
	return err
}

const transactionColumns = `
	transaction_id, account_id, item_id, amount,
	iso_currency_code, unofficial_currency_code,
	date, datetime, authorized_date, authorized_datetime,
	name, merchant_name, merchant_entity_id, logo_url, website,
	COALESCE(payment_channel, ''), pending, pending_transaction_id,
	account_owner, transaction_code, check_number,
	category, category_id, personal_finance_category,
	personal_finance_icon_url, location, payment_meta,
	counterparties, raw_data, created_at, updated_at
`

// Get retrieves a transaction by ID
func (s *TransactionStore) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM financial_transactions WHERE transaction_id = $1`

	t, err := scanTransaction(s.db.QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List retrieves transactions matching the filter, newest first
func (s *TransactionStore) List(ctx context.Context, filter driven.TransactionFilter) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM financial_transactions`
	where, args := buildTransactionWhere(filter)
	query += where
	query += ` ORDER BY date DESC, transaction_id`

	if filter.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(len(args)+1)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Count returns the number of transactions matching the filter
func (s *TransactionStore) Count(ctx context.Context, filter driven.TransactionFilter) (int, error) {
	query := `SELECT COUNT(*) FROM financial_transactions`
	where, args := buildTransactionWhere(filter)
	query += where

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func buildTransactionWhere(filter driven.TransactionFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.ItemID != "" {
		add("item_id = $%d", filter.ItemID)
	}
	if filter.AccountID != "" {
		add("account_id = $%d", filter.AccountID)
	}
	if filter.StartDate != nil {
		add("date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("date <= $%d", *filter.EndDate)
	}
	if filter.Pending != nil {
		add("pending = $%d", *filter.Pending)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                  domain.Transaction
		isoCurrency        sql.NullString
		unofficialCurrency sql.NullString
		datetime           sql.NullTime
		authorizedDate     sql.NullTime
		authorizedDatetime sql.NullTime
		merchantName       sql.NullString
		merchantEntityID   sql.NullString
		logoURL            sql.NullString
		website            sql.NullString
		pendingTxnID       sql.NullString
		accountOwner       sql.NullString
		transactionCode    sql.NullString
		checkNumber        sql.NullString
		categoryID         sql.NullString
		pfcJSON            []byte
		pfcIconURL         sql.NullString
		locationJSON       []byte
		paymentMetaJSON    []byte
		counterpartiesJSON []byte
		raw                []byte
	)
	err := row.Scan(
		&t.TransactionID,
		&t.AccountID,
		&t.ItemID,
		&t.Amount,
		&isoCurrency,
		&unofficialCurrency,
		&t.Date,
		&datetime,
		&authorizedDate,
		&authorizedDatetime,
		&t.Name,
		&merchantName,
		&merchantEntityID,
		&logoURL,
		&website,
		&t.PaymentChannel,
		&t.Pending,
		&pendingTxnID,
		&accountOwner,
		&transactionCode,
		&checkNumber,
		pq.Array(&t.Category),
		&categoryID,
		&pfcJSON,
		&pfcIconURL,
		&locationJSON,
		&paymentMetaJSON,
		&counterpartiesJSON,
		&raw,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ISOCurrencyCode = StringPtr(isoCurrency)
	t.UnofficialCurrencyCode = StringPtr(unofficialCurrency)
	t.Datetime = TimePtr(datetime)
	t.AuthorizedDate = TimePtr(authorizedDate)
	t.AuthorizedDatetime = TimePtr(authorizedDatetime)
	t.MerchantName = StringPtr(merchantName)
	t.MerchantEntityID = StringPtr(merchantEntityID)
	t.LogoURL = StringPtr(logoURL)
	t.Website = StringPtr(website)
	t.PendingTransactionID = StringPtr(pendingTxnID)
	t.AccountOwner = StringPtr(accountOwner)
	t.TransactionCode = StringPtr(transactionCode)
	t.CheckNumber = StringPtr(checkNumber)
	t.CategoryID = StringPtr(categoryID)
	t.PersonalFinanceIconURL = StringPtr(pfcIconURL)
	t.Raw = raw

	if len(pfcJSON) > 0 {
		var pfc domain.PersonalFinanceCategory
		if err := json.Unmarshal(pfcJSON, &pfc); err != nil {
			return nil, err
		}
		t.PersonalFinanceCategory = &pfc
	}
	if len(locationJSON) > 0 {
		var loc domain.Location
		if err := json.Unmarshal(locationJSON, &loc); err != nil {
			return nil, err
		}
		t.Location = &loc
	}
	if len(paymentMetaJSON) > 0 {
		var pm domain.PaymentMeta
		if err := json.Unmarshal(paymentMetaJSON, &pm); err != nil {
			return nil, err
		}
		t.PaymentMeta = &pm
	}
	if len(counterpartiesJSON) > 0 {
		if err := json.Unmarshal(counterpartiesJSON, &t.Counterparties); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
