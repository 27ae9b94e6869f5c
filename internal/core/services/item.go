package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
	"github.com/Benrishty/finsync/internal/core/ports/driving"
)

var _ driving.ItemService = (*ItemService)(nil)

const dateLayout = "2006-01-02"

// ItemService exposes read access to synced items, accounts,
// transactions and balance history.
type ItemService struct {
	itemStore driven.ItemStore
	accounts  driven.AccountStore
	txns      driven.TransactionStore
	logger    *slog.Logger
}

// NewItemService creates a new item service.
func NewItemService(itemStore driven.ItemStore, accounts driven.AccountStore, txns driven.TransactionStore, logger *slog.Logger) *ItemService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemService{
		itemStore: itemStore,
		accounts:  accounts,
		txns:      txns,
		logger:    logger,
	}
}

// GetItem retrieves one item.
func (s *ItemService) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	return s.itemStore.Get(ctx, itemID)
}

// ListItems retrieves all items.
func (s *ItemService) ListItems(ctx context.Context) ([]*domain.Item, error) {
	return s.itemStore.List(ctx)
}

// Status returns the per-item health and sync report.
func (s *ItemService) Status(ctx context.Context) ([]*domain.ItemStatus, error) {
	return s.itemStore.Status(ctx)
}

// ListAccounts retrieves accounts, optionally filtered to one item.
func (s *ItemService) ListAccounts(ctx context.Context, itemID string) ([]*domain.Account, error) {
	return s.accounts.List(ctx, itemID)
}

// ListTransactions retrieves transactions matching the query along with
// the total count for pagination.
func (s *ItemService) ListTransactions(ctx context.Context, query driving.TransactionQuery) ([]*domain.Transaction, int, error) {
	filter := driven.TransactionFilter{
		ItemID:    query.ItemID,
		AccountID: query.AccountID,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	if query.StartDate != "" {
		start, err := time.Parse(dateLayout, query.StartDate)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid start_date", domain.ErrInvalidInput)
		}
		filter.StartDate = &start
	}
	if query.EndDate != "" {
		end, err := time.Parse(dateLayout, query.EndDate)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid end_date", domain.ErrInvalidInput)
		}
		filter.EndDate = &end
	}

	total, err := s.txns.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	list, err := s.txns.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return list, total, nil
}

// BalanceHistory retrieves balance snapshots for an account, newest first.
func (s *ItemService) BalanceHistory(ctx context.Context, accountID string, limit int) ([]*domain.BalanceSnapshot, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.accounts.BalanceHistory(ctx, accountID, limit)
}
