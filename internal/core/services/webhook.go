package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
	"github.com/Benrishty/finsync/internal/core/ports/driving"
)

var _ driving.WebhookService = (*WebhookService)(nil)

// WebhookService reacts to verified provider webhook deliveries.
// Transaction events enqueue a sync; item error events record the error
// on the item so it leaves the sync rotation.
type WebhookService struct {
	itemStore driven.ItemStore
	queue     driven.TaskQueue
	notifier  driven.Notifier
	logger    *slog.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(itemStore driven.ItemStore, queue driven.TaskQueue, notifier driven.Notifier, logger *slog.Logger) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		itemStore: itemStore,
		queue:     queue,
		notifier:  notifier,
		logger:    logger,
	}
}

// HandleEvent processes one webhook event. Unknown types and codes are
// logged and ignored; the provider retries deliveries that fail, so only
// real processing errors return non-nil.
func (s *WebhookService) HandleEvent(ctx context.Context, event *domain.WebhookEvent) error {
	s.logger.Info("webhook received",
		"webhook_type", event.WebhookType,
		"webhook_code", event.WebhookCode,
		"item_id", event.ItemID,
	)

	if event.TriggersSync() {
		if err := s.queue.Enqueue(ctx, domain.NewSyncItemTask(event.ItemID)); err != nil {
			return fmt.Errorf("failed to enqueue sync: %w", err)
		}
		return nil
	}

	if event.WebhookType == domain.WebhookTypeItem {
		return s.handleItemEvent(ctx, event)
	}

	s.logger.Debug("ignoring webhook",
		"webhook_type", event.WebhookType,
		"webhook_code", event.WebhookCode,
	)
	return nil
}

func (s *WebhookService) handleItemEvent(ctx context.Context, event *domain.WebhookEvent) error {
	switch event.WebhookCode {
	case domain.WebhookCodeError:
		if event.Error == nil || !event.Error.RequiresReauth() {
			// Transient provider errors do not change item health
			return nil
		}
		return s.markUnhealthy(ctx, event.ItemID, event.Error)

	case domain.WebhookCodePendingExpiration:
		return s.markUnhealthy(ctx, event.ItemID, &domain.ItemError{
			ErrorType: "ITEM_ERROR",
			ErrorCode: domain.ErrorCodePendingExpiration,
		})

	case domain.WebhookCodeUserPermissionRevoked:
		return s.markUnhealthy(ctx, event.ItemID, &domain.ItemError{
			ErrorType: "ITEM_ERROR",
			ErrorCode: domain.ErrorCodeUserPermissionRevoked,
		})
	}

	return nil
}

func (s *WebhookService) markUnhealthy(ctx context.Context, itemID string, itemErr *domain.ItemError) error {
	if err := s.itemStore.SetError(ctx, itemID, itemErr); err != nil {
		return fmt.Errorf("failed to record item error: %w", err)
	}

	s.logger.Warn("item marked unhealthy by webhook",
		"item_id", itemID,
		"error_code", itemErr.ErrorCode,
	)

	if s.notifier != nil {
		subject := fmt.Sprintf("Item %s needs re-authorization", itemID)
		body := fmt.Sprintf("Webhook reported %s for item %s.", itemErr.ErrorCode, itemID)
		if err := s.notifier.Notify(ctx, subject, body); err != nil {
			s.logger.Error("failed to send notification", "item_id", itemID, "error", err)
		}
	}
	return nil
}
