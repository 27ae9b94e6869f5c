package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CursorStore = (*CursorStore)(nil)

// CursorStore implements driven.CursorStore using PostgreSQL
type CursorStore struct {
	db *DB
}

// NewCursorStore creates a new CursorStore
func NewCursorStore(db *DB) *CursorStore {
	return &CursorStore{db: db}
}

// Get retrieves the cursor for an item
func (s *CursorStore) Get(ctx context.Context, itemID string) (*domain.SyncCursor, error) {
	query := `SELECT item_id, cursor, updated_at FROM sync_cursors WHERE item_id = $1`

	var c domain.SyncCursor
	err := s.db.QueryRowContext(ctx, query, itemID).Scan(&c.ItemID, &c.Cursor, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Save creates or updates the cursor for an item
func (s *CursorStore) Save(ctx context.Context, itemID, cursor string) error {
	query := `
		INSERT INTO sync_cursors (item_id, cursor, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (item_id) DO UPDATE SET
			cursor = EXCLUDED.cursor,
			updated_at = now()
	`
	_, err := s.db.ExecContext(ctx, query, itemID, cursor)
	return err
}

// Delete removes the cursor, forcing the next sync to start from scratch
func (s *CursorStore) Delete(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_cursors WHERE item_id = $1`, itemID)
	return err
}
