package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ItemStore = (*ItemStore)(nil)

// reauthCodes is the set of error codes that take an item out of the
// sync rotation until the user relinks.
var reauthCodes = []string{
	domain.ErrorCodeItemLoginRequired,
	domain.ErrorCodeUserPermissionRevoked,
	domain.ErrorCodePendingExpiration,
}

// ItemStore implements driven.ItemStore using PostgreSQL
type ItemStore struct {
	db *DB
}

// NewItemStore creates a new ItemStore
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

// Upsert creates or updates an item. Identity fields keep their stored
// value when the incoming value is empty, so partial provider payloads
// never blank out what an earlier sync established.
func (s *ItemStore) Upsert(ctx context.Context, item *domain.Item) error {
	var errJSON []byte
	if item.Error != nil {
		b, err := json.Marshal(item.Error)
		if err != nil {
			return fmt.Errorf("failed to marshal item error: %w", err)
		}
		errJSON = b
	}

	query := `
		INSERT INTO plaid_items (
			item_id, access_token, user_token, institution_id, institution_name,
			webhook, available_products, billed_products,
			consent_expiration_time, update_type, error, raw_data, updated_at
		)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			$6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (item_id) DO UPDATE SET
			access_token = CASE WHEN EXCLUDED.access_token = '' THEN plaid_items.access_token ELSE EXCLUDED.access_token END,
			user_token = COALESCE(EXCLUDED.user_token, plaid_items.user_token),
			institution_id = COALESCE(EXCLUDED.institution_id, plaid_items.institution_id),
			institution_name = COALESCE(EXCLUDED.institution_name, plaid_items.institution_name),
			webhook = EXCLUDED.webhook,
			available_products = EXCLUDED.available_products,
			billed_products = EXCLUDED.billed_products,
			consent_expiration_time = EXCLUDED.consent_expiration_time,
			update_type = EXCLUDED.update_type,
			error = EXCLUDED.error,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
	`

	_, err := s.db.ExecContext(ctx, query,
		item.ItemID,
		item.AccessToken,
		item.UserToken,
		item.InstitutionID,
		item.InstitutionName,
		item.Webhook,
		pq.Array(item.AvailableProducts),
		pq.Array(item.BilledProducts),
		NullTime(item.ConsentExpirationTime),
		item.UpdateType,
		nullJSON(errJSON),
		nullJSON(item.Raw),
	)
	return err
}

const itemColumns = `
	item_id, access_token, COALESCE(user_token, ''), COALESCE(institution_id, ''),
	COALESCE(institution_name, ''), COALESCE(webhook, ''),
	available_products, billed_products, consent_expiration_time,
	COALESCE(update_type, ''), error, raw_data, created_at, updated_at
`

// Get retrieves an item by ID
func (s *ItemStore) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM plaid_items WHERE item_id = $1`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List retrieves all items
func (s *ItemStore) List(ctx context.Context) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM plaid_items ORDER BY created_at`
	return s.queryItems(ctx, query)
}

// ListHealthy retrieves items eligible for syncing. Items whose stored
// error carries a re-auth code are excluded; transient errors do not
// keep an item out of the rotation.
func (s *ItemStore) ListHealthy(ctx context.Context) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM plaid_items
		WHERE error IS NULL OR NOT (error->>'error_code' = ANY($1))
		ORDER BY created_at`
	return s.queryItems(ctx, query, pq.Array(reauthCodes))
}

// SetError records a provider error on the item
func (s *ItemStore) SetError(ctx context.Context, itemID string, itemErr *domain.ItemError) error {
	errJSON, err := json.Marshal(itemErr)
	if err != nil {
		return fmt.Errorf("failed to marshal item error: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE plaid_items SET error = $2, updated_at = now() WHERE item_id = $1`,
		itemID, errJSON,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ClearError removes the stored error, restoring the item to healthy
func (s *ItemStore) ClearError(ctx context.Context, itemID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE plaid_items SET error = NULL, updated_at = now() WHERE item_id = $1`,
		itemID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes an item. Accounts, transactions and the cursor cascade.
func (s *ItemStore) Delete(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plaid_items WHERE item_id = $1`, itemID)
	return err
}

// Status returns the per-item health and sync report
func (s *ItemStore) Status(ctx context.Context) ([]*domain.ItemStatus, error) {
	query := `
		SELECT i.item_id, COALESCE(i.institution_id, ''), COALESCE(i.institution_name, ''),
			i.error,
			(SELECT COUNT(*) FROM financial_accounts a WHERE a.item_id = i.item_id),
			c.updated_at, c.cursor IS NOT NULL
		FROM plaid_items i
		LEFT JOIN sync_cursors c ON c.item_id = i.item_id
		ORDER BY i.created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []*domain.ItemStatus
	for rows.Next() {
		var (
			st        domain.ItemStatus
			errJSON   []byte
			lastSync  sql.NullTime
			cursorSet sql.NullBool
		)
		if err := rows.Scan(&st.ItemID, &st.InstitutionID, &st.InstitutionName,
			&errJSON, &st.AccountCount, &lastSync, &cursorSet); err != nil {
			return nil, err
		}
		if len(errJSON) > 0 {
			var itemErr domain.ItemError
			if err := json.Unmarshal(errJSON, &itemErr); err != nil {
				return nil, err
			}
			st.Error = &itemErr
		}
		st.Healthy = !st.Error.RequiresReauth()
		st.LastSyncedAt = TimePtr(lastSync)
		st.NextCursorSet = cursorSet.Valid && cursorSet.Bool
		statuses = append(statuses, &st)
	}
	return statuses, rows.Err()
}

func (s *ItemStore) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var (
		item    domain.Item
		consent sql.NullTime
		errJSON []byte
		raw     []byte
	)
	err := row.Scan(
		&item.ItemID,
		&item.AccessToken,
		&item.UserToken,
		&item.InstitutionID,
		&item.InstitutionName,
		&item.Webhook,
		pq.Array(&item.AvailableProducts),
		pq.Array(&item.BilledProducts),
		&consent,
		&item.UpdateType,
		&errJSON,
		&raw,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.ConsentExpirationTime = TimePtr(consent)
	item.Raw = raw
	if len(errJSON) > 0 {
		var itemErr domain.ItemError
		if err := json.Unmarshal(errJSON, &itemErr); err != nil {
			return nil, err
		}
		item.Error = &itemErr
	}
	return &item, nil
}

// nullJSON returns nil for empty JSON so the column stores NULL instead
// of an empty string.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
