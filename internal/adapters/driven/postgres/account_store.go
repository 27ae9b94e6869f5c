package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AccountStore = (*AccountStore)(nil)

// AccountStore implements driven.AccountStore using PostgreSQL
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new AccountStore
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// UpsertBatch creates or updates accounts in a single transaction
func (s *AccountStore) UpsertBatch(ctx context.Context, accounts []domain.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	query := `
		INSERT INTO financial_accounts (
			account_id, item_id, name, official_name, type, subtype, mask,
			available_balance, current_balance, credit_limit,
			iso_currency_code, unofficial_currency_code, raw_data, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (account_id) DO UPDATE SET
			item_id = EXCLUDED.item_id,
			name = EXCLUDED.name,
			official_name = EXCLUDED.official_name,
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			mask = COALESCE(EXCLUDED.mask, financial_accounts.mask),
			available_balance = EXCLUDED.available_balance,
			current_balance = EXCLUDED.current_balance,
			credit_limit = EXCLUDED.credit_limit,
			iso_currency_code = EXCLUDED.iso_currency_code,
			unofficial_currency_code = EXCLUDED.unofficial_currency_code,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
	`

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range accounts {
			_, err := stmt.ExecContext(ctx,
				a.AccountID,
				a.ItemID,
				a.Name,
				NullString(a.OfficialName),
				a.Type,
				NullString(a.Subtype),
				NullString(a.Mask),
				NullFloat(a.Balances.Available),
				NullFloat(a.Balances.Current),
				NullFloat(a.Balances.Limit),
				NullString(a.Balances.ISOCurrencyCode),
				NullString(a.Balances.UnofficialCurrencyCode),
				nullJSON(a.Raw),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

const accountColumns = `
	account_id, item_id, name, official_name, type, subtype, mask,
	available_balance, current_balance, credit_limit,
	iso_currency_code, unofficial_currency_code, raw_data, created_at, updated_at
`

// Get retrieves an account by ID
func (s *AccountStore) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM financial_accounts WHERE account_id = $1`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// List retrieves accounts, optionally filtered to one item
func (s *AccountStore) List(ctx context.Context, itemID string) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM financial_accounts`
	var args []any
	if itemID != "" {
		query += ` WHERE item_id = $1`
		args = append(args, itemID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// RecordBalances appends snapshots to the balance history
func (s *AccountStore) RecordBalances(ctx context.Context, snapshots []domain.BalanceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	query := `
		INSERT INTO account_balance_history (
			account_id, item_id, available, current, credit_limit,
			iso_currency_code, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, snap := range snapshots {
			_, err := stmt.ExecContext(ctx,
				snap.AccountID,
				snap.ItemID,
				NullFloat(snap.Available),
				NullFloat(snap.Current),
				NullFloat(snap.Limit),
				NullString(snap.ISOCurrencyCode),
				snap.RecordedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// BalanceHistory retrieves snapshots for an account, newest first
func (s *AccountStore) BalanceHistory(ctx context.Context, accountID string, limit int) ([]*domain.BalanceSnapshot, error) {
	query := `
		SELECT id, account_id, item_id, available, current, credit_limit,
			iso_currency_code, recorded_at
		FROM account_balance_history
		WHERE account_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.BalanceSnapshot
	for rows.Next() {
		var (
			snap      domain.BalanceSnapshot
			available sql.NullFloat64
			current   sql.NullFloat64
			limit     sql.NullFloat64
			currency  sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.AccountID, &snap.ItemID,
			&available, &current, &limit, &currency, &snap.RecordedAt); err != nil {
			return nil, err
		}
		snap.Available = FloatPtr(available)
		snap.Current = FloatPtr(current)
		snap.Limit = FloatPtr(limit)
		snap.ISOCurrencyCode = StringPtr(currency)
		snapshots = append(snapshots, &snap)
	}
	return snapshots, rows.Err()
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a            domain.Account
		officialName sql.NullString
		subtype      sql.NullString
		mask         sql.NullString
		available    sql.NullFloat64
		current      sql.NullFloat64
		limit        sql.NullFloat64
		isoCurrency  sql.NullString
		unofficial   sql.NullString
		raw          []byte
	)
	err := row.Scan(
		&a.AccountID,
		&a.ItemID,
		&a.Name,
		&officialName,
		&a.Type,
		&subtype,
		&mask,
		&available,
		&current,
		&limit,
		&isoCurrency,
		&unofficial,
		&raw,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.OfficialName = StringPtr(officialName)
	a.Subtype = StringPtr(subtype)
	a.Mask = StringPtr(mask)
	a.Balances = domain.Balances{
		Available:              FloatPtr(available),
		Current:                FloatPtr(current),
		Limit:                  FloatPtr(limit),
		ISOCurrencyCode:        StringPtr(isoCurrency),
		UnofficialCurrencyCode: StringPtr(unofficial),
	}
	a.Raw = raw
	return &a, nil
}
