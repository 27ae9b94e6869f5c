package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
	"github.com/Benrishty/finsync/internal/core/ports/driving"
)

var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// Default pacing for provider pagination.
const (
	defaultPageSize      = 100
	defaultNotReadyDelay = 2 * time.Second
	defaultNotReadyLimit = 30

	defaultBackfillPageSize = 500
	defaultBackfillDelay    = 500 * time.Millisecond

	syncLockTTL = 15 * time.Minute
)

// SyncOrchestrator coordinates the transaction sync pipeline.
// It implements the incremental sync flow:
//  1. Load the item and verify it is healthy
//  2. Load the persisted cursor (empty on first sync)
//  3. Drain the provider's delta feed page by page, accumulating
//     added/modified/removed in memory
//  4. Apply the accumulated changes to the store
//  5. Persist the final cursor, strictly after the changes
//
// The cursor is only advanced once the changes it covers are durable, so
// a crash mid-sync replays the same pages on the next run. Upserts and
// deletes are idempotent, which makes the replay safe.
type SyncOrchestrator struct {
	itemStore  driven.ItemStore
	accounts   driven.AccountStore
	txns       driven.TransactionStore
	cursors    driven.CursorStore
	provider   driven.Provider
	cipher     driven.TokenCipher
	lock       driven.DistributedLock
	notifier   driven.Notifier
	logger     *slog.Logger

	pageSize      int
	notReadyDelay time.Duration
	notReadyLimit int

	backfillPageSize int
	backfillDelay    time.Duration
}

// SyncOrchestratorConfig holds dependencies for SyncOrchestrator.
type SyncOrchestratorConfig struct {
	ItemStore        driven.ItemStore
	AccountStore     driven.AccountStore
	TransactionStore driven.TransactionStore
	CursorStore      driven.CursorStore
	Provider         driven.Provider
	Cipher           driven.TokenCipher
	Lock             driven.DistributedLock
	Notifier         driven.Notifier
	Logger           *slog.Logger

	// PageSize is the number of changes requested per delta page
	PageSize int

	// NotReadyDelay is how long to wait before retrying when the
	// provider signals the feed is not ready yet
	NotReadyDelay time.Duration

	// NotReadyLimit is the maximum number of not-ready retries before
	// the sync is abandoned
	NotReadyLimit int

	// BackfillPageSize is the page size for historical fetches
	BackfillPageSize int

	// BackfillDelay is the pause between historical pages
	BackfillDelay time.Duration
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(cfg SyncOrchestratorConfig) *SyncOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.NotReadyDelay <= 0 {
		cfg.NotReadyDelay = defaultNotReadyDelay
	}
	if cfg.NotReadyLimit <= 0 {
		cfg.NotReadyLimit = defaultNotReadyLimit
	}
	if cfg.BackfillPageSize <= 0 {
		cfg.BackfillPageSize = defaultBackfillPageSize
	}
	if cfg.BackfillDelay <= 0 {
		cfg.BackfillDelay = defaultBackfillDelay
	}

	return &SyncOrchestrator{
		itemStore:        cfg.ItemStore,
		accounts:         cfg.AccountStore,
		txns:             cfg.TransactionStore,
		cursors:          cfg.CursorStore,
		provider:         cfg.Provider,
		cipher:           cfg.Cipher,
		lock:             cfg.Lock,
		notifier:         cfg.Notifier,
		logger:           logger,
		pageSize:         cfg.PageSize,
		notReadyDelay:    cfg.NotReadyDelay,
		notReadyLimit:    cfg.NotReadyLimit,
		backfillPageSize: cfg.BackfillPageSize,
		backfillDelay:    cfg.BackfillDelay,
	}
}

// SyncItem synchronizes transactions for a single item.
// This is the main entry point for the sync pipeline.
func (o *SyncOrchestrator) SyncItem(ctx context.Context, itemID string) (*domain.SyncResult, error) {
	startTime := time.Now()

	o.logger.Info("starting sync", "item_id", itemID)

	// One sync per item at a time, across all instances
	if o.lock != nil {
		acquired, err := o.lock.Acquire(ctx, "sync:item:"+itemID, syncLockTTL)
		if err != nil {
			return o.failSync(itemID, startTime, fmt.Errorf("failed to acquire sync lock: %w", err))
		}
		if !acquired {
			return nil, domain.ErrSyncInProgress
		}
		defer func() {
			_ = o.lock.Release(ctx, "sync:item:"+itemID)
		}()
	}

	item, err := o.itemStore.Get(ctx, itemID)
	if err != nil {
		return o.failSync(itemID, startTime, fmt.Errorf("failed to get item: %w", err))
	}

	if !item.Healthy() {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrItemUnhealthy)
	}

	token, err := o.cipher.Decrypt(item.AccessToken)
	if err != nil {
		return o.failSync(itemID, startTime, fmt.Errorf("failed to decrypt access token: %w", err))
	}

	// Empty cursor means this item has never completed a full sync
	cursor := ""
	if saved, err := o.cursors.Get(ctx, itemID); err == nil {
		cursor = saved.Cursor
	} else if !errors.Is(err, domain.ErrNotFound) {
		return o.failSync(itemID, startTime, fmt.Errorf("failed to load cursor: %w", err))
	}

	// Drain the delta feed. All pages are accumulated before anything is
	// applied, so a provider failure mid-drain leaves the store untouched.
	var (
		added    []domain.Transaction
		modified []domain.Transaction
		removed  []domain.RemovedTransaction
		pages    int
		rejected int
		notReady int
	)

	for {
		select {
		case <-ctx.Done():
			return o.failSync(itemID, startTime, ctx.Err())
		default:
		}

		page, err := o.provider.SyncTransactions(ctx, token, cursor, o.pageSize)
		if err != nil {
			o.recordItemError(ctx, itemID, err)
			return o.failSync(itemID, startTime, fmt.Errorf("failed to fetch changes: %w", err))
		}

		// An empty next cursor means the provider is still preparing the
		// feed for this item. Retry the same request after a pause.
		if page.NextCursor == "" {
			notReady++
			if notReady > o.notReadyLimit {
				return o.failSync(itemID, startTime, domain.ErrFeedNotReady)
			}
			o.logger.Info("transaction feed not ready, retrying",
				"item_id", itemID,
				"attempt", notReady,
			)
			select {
			case <-ctx.Done():
				return o.failSync(itemID, startTime, ctx.Err())
			case <-time.After(o.notReadyDelay):
			}
			continue
		}

		pages++
		added = append(added, page.Added...)
		modified = append(modified, page.Modified...)
		removed = append(removed, page.Removed...)
		rejected += page.Rejected
		cursor = page.NextCursor

		if !page.HasMore {
			break
		}
	}

	result := &domain.SyncResult{ItemID: itemID, Pages: pages}

	// Apply changes, then persist the cursor. Never the other way round.
	result.Added, err = o.applyUpserts(ctx, item, added)
	if err != nil {
		return o.failSync(itemID, startTime, fmt.Errorf("failed to apply added: %w", err))
	}
	result.Modified, err = o.applyUpserts(ctx, item, modified)
	if err != nil {
		return o.failSync(itemID, startTime, fmt.Errorf("failed to apply modified: %w", err))
	}
	result.Removed, err = o.applyDeletes(ctx, removed)
	if err != nil {
		return o.failSync(itemID, startTime, fmt.Errorf("failed to apply removed: %w", err))
	}
	// Records dropped at decode plus records rejected for missing
	// identity fields
	result.Rejected = rejected + (len(added) - result.Added) + (len(modified) - result.Modified)

	if err := o.cursors.Save(ctx, itemID, cursor); err != nil {
		return o.failSync(itemID, startTime, fmt.Errorf("failed to save cursor: %w", err))
	}

	o.logger.Info("sync completed",
		"item_id", itemID,
		"duration_seconds", time.Since(startTime).Seconds(),
		"pages", result.Pages,
		"added", result.Added,
		"modified", result.Modified,
		"removed", result.Removed,
		"rejected", result.Rejected,
	)

	return result, nil
}

// SyncAll synchronizes all healthy items. Items with re-auth errors are
// skipped. A failure on one item does not stop the others.
func (o *SyncOrchestrator) SyncAll(ctx context.Context) ([]*domain.SyncResult, error) {
	items, err := o.itemStore.ListHealthy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	var results []*domain.SyncResult
	for _, item := range items {
		result, err := o.SyncItem(ctx, item.ItemID)
		if err != nil {
			o.logger.Error("sync failed", "item_id", item.ItemID, "error", err)
			results = append(results, &domain.SyncResult{
				ItemID: item.ItemID,
				Error:  err.Error(),
			})
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// SyncAccounts refreshes the account list for one item.
func (o *SyncOrchestrator) SyncAccounts(ctx context.Context, itemID string) (int, error) {
	item, err := o.itemStore.Get(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to get item: %w", err)
	}

	token, err := o.cipher.Decrypt(item.AccessToken)
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	accounts, err := o.provider.GetAccounts(ctx, token)
	if err != nil {
		o.recordItemError(ctx, itemID, err)
		return 0, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	for i := range accounts {
		accounts[i].ItemID = itemID
	}
	if err := o.accounts.UpsertBatch(ctx, accounts); err != nil {
		return 0, fmt.Errorf("failed to save accounts: %w", err)
	}

	o.logger.Info("accounts synced", "item_id", itemID, "count", len(accounts))
	return len(accounts), nil
}

// SyncBalances fetches live balances for every healthy item, updates the
// accounts and appends one snapshot per account to the balance history.
func (o *SyncOrchestrator) SyncBalances(ctx context.Context) (int, error) {
	items, err := o.itemStore.ListHealthy(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list items: %w", err)
	}

	total := 0
	now := time.Now()
	for _, item := range items {
		token, err := o.cipher.Decrypt(item.AccessToken)
		if err != nil {
			o.logger.Error("failed to decrypt access token", "item_id", item.ItemID, "error", err)
			continue
		}

		accounts, err := o.provider.GetBalances(ctx, token)
		if err != nil {
			o.recordItemError(ctx, item.ItemID, err)
			o.logger.Error("failed to fetch balances", "item_id", item.ItemID, "error", err)
			continue
		}

		snapshots := make([]domain.BalanceSnapshot, 0, len(accounts))
		for i := range accounts {
			accounts[i].ItemID = item.ItemID
			snapshots = append(snapshots, domain.BalanceSnapshot{
				AccountID:       accounts[i].AccountID,
				ItemID:          item.ItemID,
				Available:       accounts[i].Balances.Available,
				Current:         accounts[i].Balances.Current,
				Limit:           accounts[i].Balances.Limit,
				ISOCurrencyCode: accounts[i].Balances.ISOCurrencyCode,
				RecordedAt:      now,
			})
		}

		if err := o.accounts.UpsertBatch(ctx, accounts); err != nil {
			o.logger.Error("failed to save accounts", "item_id", item.ItemID, "error", err)
			continue
		}
		if err := o.accounts.RecordBalances(ctx, snapshots); err != nil {
			o.logger.Error("failed to record balances", "item_id", item.ItemID, "error", err)
			continue
		}
		total += len(snapshots)
	}

	o.logger.Info("balances synced", "snapshots", total, "items", len(items))
	return total, nil
}

// Backfill fetches historical transactions for an item using the
// offset-paginated endpoint. Backfill only upserts; it never deletes, so
// it is safe to run alongside incremental sync.
func (o *SyncOrchestrator) Backfill(ctx context.Context, itemID string, yearsBack int) (*domain.BackfillResult, error) {
	if yearsBack <= 0 {
		yearsBack = 2
	}

	item, err := o.itemStore.Get(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	token, err := o.cipher.Decrypt(item.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	end := time.Now()
	start := end.AddDate(-yearsBack, 0, 0)
	result := &domain.BackfillResult{ItemID: itemID, StartDate: start, EndDate: end}

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page, err := o.provider.GetTransactions(ctx, token, start, end, o.backfillPageSize, offset)
		if err != nil {
			o.recordItemError(ctx, itemID, err)
			return nil, fmt.Errorf("failed to fetch historical page at offset %d: %w", offset, err)
		}

		result.Pages++
		applied, err := o.applyUpserts(ctx, item, page.Transactions)
		if err != nil {
			return nil, fmt.Errorf("failed to save historical page: %w", err)
		}
		result.Fetched += applied
		result.Rejected += page.Rejected + (len(page.Transactions) - applied)

		offset += len(page.Transactions)
		if offset >= page.Total || len(page.Transactions) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.backfillDelay):
		}
	}

	o.logger.Info("backfill completed",
		"item_id", itemID,
		"fetched", result.Fetched,
		"rejected", result.Rejected,
		"pages", result.Pages,
		"years_back", yearsBack,
	)

	return result, nil
}

// applyUpserts stamps the item ID on each transaction and upserts the
// batch. Records missing identity fields are logged and skipped; the
// rest of the batch still goes through.
func (o *SyncOrchestrator) applyUpserts(ctx context.Context, item *domain.Item, txns []domain.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	valid := make([]domain.Transaction, 0, len(txns))
	for i := range txns {
		txns[i].ItemID = item.ItemID
		if !txns[i].Valid() {
			o.logger.Warn("rejecting transaction with missing identity fields",
				"item_id", item.ItemID,
				"transaction_id", txns[i].TransactionID,
			)
			continue
		}
		valid = append(valid, txns[i])
	}

	if len(valid) == 0 {
		return 0, nil
	}
	if err := o.txns.UpsertBatch(ctx, valid); err != nil {
		return 0, err
	}
	return len(valid), nil
}

// applyDeletes removes the given transactions. Deletes are unconditional
// and idempotent: IDs that no longer exist are ignored.
func (o *SyncOrchestrator) applyDeletes(ctx context.Context, removed []domain.RemovedTransaction) (int, error) {
	if len(removed) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(removed))
	for _, r := range removed {
		ids = append(ids, r.TransactionID)
	}
	if err := o.txns.DeleteBatch(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// recordItemError classifies a provider error. Re-auth errors are stored
// on the item, making it unhealthy until the user relinks; everything
// else is treated as transient and leaves the item untouched.
func (o *SyncOrchestrator) recordItemError(ctx context.Context, itemID string, err error) {
	var itemErr *domain.ItemError
	if !errors.As(err, &itemErr) || !itemErr.RequiresReauth() {
		return
	}

	if storeErr := o.itemStore.SetError(ctx, itemID, itemErr); storeErr != nil {
		o.logger.Error("failed to record item error", "item_id", itemID, "error", storeErr)
		return
	}

	o.logger.Warn("item requires re-authorization",
		"item_id", itemID,
		"error_code", itemErr.ErrorCode,
	)

	if o.notifier != nil {
		subject := fmt.Sprintf("Item %s needs re-authorization", itemID)
		body := fmt.Sprintf("Item %s returned %s and will not sync until it is relinked.", itemID, itemErr.ErrorCode)
		if notifyErr := o.notifier.Notify(ctx, subject, body); notifyErr != nil {
			o.logger.Error("failed to send notification", "item_id", itemID, "error", notifyErr)
		}
	}
}

// failSync logs the failure and returns the result.
func (o *SyncOrchestrator) failSync(itemID string, startTime time.Time, err error) (*domain.SyncResult, error) {
	o.logger.Error("sync failed",
		"item_id", itemID,
		"duration_seconds", time.Since(startTime).Seconds(),
		"error", err,
	)

	return &domain.SyncResult{
		ItemID: itemID,
		Error:  err.Error(),
	}, err
}
