package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
	"github.com/Benrishty/finsync/internal/core/ports/driving"
)

var _ driving.LinkService = (*LinkService)(nil)

// LinkService manages the item linking lifecycle: creating link tokens,
// exchanging public tokens for items, and clearing re-auth errors.
type LinkService struct {
	itemStore    driven.ItemStore
	institutions driven.InstitutionStore
	provider     driven.Provider
	cipher       driven.TokenCipher
	queue        driven.TaskQueue
	sync         driving.SyncOrchestrator
	logger       *slog.Logger

	products []string
	webhook  string
}

// LinkServiceConfig holds dependencies for LinkService.
type LinkServiceConfig struct {
	ItemStore        driven.ItemStore
	InstitutionStore driven.InstitutionStore
	Provider         driven.Provider
	Cipher           driven.TokenCipher
	Queue            driven.TaskQueue
	Sync             driving.SyncOrchestrator
	Logger           *slog.Logger

	// Products requested during link
	Products []string

	// Webhook is the URL the provider delivers events to
	Webhook string
}

// NewLinkService creates a new link service.
func NewLinkService(cfg LinkServiceConfig) *LinkService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	products := cfg.Products
	if len(products) == 0 {
		products = []string{"transactions"}
	}

	return &LinkService{
		itemStore:    cfg.ItemStore,
		institutions: cfg.InstitutionStore,
		provider:     cfg.Provider,
		cipher:       cfg.Cipher,
		queue:        cfg.Queue,
		sync:         cfg.Sync,
		logger:       logger,
		products:     products,
		webhook:      cfg.Webhook,
	}
}

// CreateLinkToken creates a token for the client-side link flow.
// When ItemID is set the token opens link in update mode, which is how a
// user repairs an item stuck with a re-auth error.
func (s *LinkService) CreateLinkToken(ctx context.Context, req driving.CreateLinkTokenRequest) (*domain.LinkToken, error) {
	provReq := driven.LinkTokenRequest{
		ClientUserID: req.ClientUserID,
		Products:     s.products,
		Webhook:      s.webhook,
	}
	if provReq.ClientUserID == "" {
		provReq.ClientUserID = domain.GenerateID()
	}

	if req.ItemID != "" {
		item, err := s.itemStore.Get(ctx, req.ItemID)
		if err != nil {
			return nil, fmt.Errorf("failed to get item: %w", err)
		}
		token, err := s.cipher.Decrypt(item.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		provReq.AccessToken = token
		// Update mode must not request products
		provReq.Products = nil
	}

	linkToken, err := s.provider.CreateLinkToken(ctx, provReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}
	return linkToken, nil
}

// ExchangePublicToken trades a public token for item credentials,
// persists the item with its access token encrypted, pulls its accounts
// and enqueues the first transaction sync.
func (s *LinkService) ExchangePublicToken(ctx context.Context, req driving.ExchangeRequest) (*domain.Item, error) {
	if req.PublicToken == "" {
		return nil, fmt.Errorf("%w: public_token is required", domain.ErrInvalidInput)
	}

	exchange, err := s.provider.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	item, err := s.provider.GetItem(ctx, exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item: %w", err)
	}
	item.ItemID = exchange.ItemID

	if item.InstitutionID != "" {
		s.registerInstitution(ctx, item)
	}

	encrypted, err := s.cipher.Encrypt(exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	item.AccessToken = encrypted

	if err := s.itemStore.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}

	if _, err := s.sync.SyncAccounts(ctx, item.ItemID); err != nil {
		s.logger.Error("failed to sync accounts after link", "item_id", item.ItemID, "error", err)
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, domain.NewSyncItemTask(item.ItemID)); err != nil {
			s.logger.Error("failed to enqueue initial sync", "item_id", item.ItemID, "error", err)
		}
	}

	s.logger.Info("item linked",
		"item_id", item.ItemID,
		"institution_id", item.InstitutionID,
	)

	return item, nil
}

// RemoveItem revokes the access token at the provider and deletes the
// item locally along with its accounts and transactions.
func (s *LinkService) RemoveItem(ctx context.Context, itemID string) error {
	item, err := s.itemStore.Get(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}

	token, err := s.cipher.Decrypt(item.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}

	if err := s.provider.RemoveItem(ctx, token); err != nil {
		// Revoking an already-dead item should not block local cleanup
		s.logger.Warn("provider item removal failed", "item_id", itemID, "error", err)
	}

	if err := s.itemStore.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	s.logger.Info("item removed", "item_id", itemID)
	return nil
}

// ClearItemError marks an item healthy again after the user completed
// update-mode link. The stored error is the only thing keeping an item
// out of the sync rotation, so clearing it re-enables syncing.
func (s *LinkService) ClearItemError(ctx context.Context, itemID string) error {
	if err := s.itemStore.ClearError(ctx, itemID); err != nil {
		return fmt.Errorf("failed to clear item error: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, domain.NewSyncItemTask(itemID)); err != nil {
			s.logger.Error("failed to enqueue sync after error clear", "item_id", itemID, "error", err)
		}
	}

	s.logger.Info("item error cleared", "item_id", itemID)
	return nil
}

// registerInstitution stores institution metadata for the item, fetching
// it from the provider when it is not already known.
func (s *LinkService) registerInstitution(ctx context.Context, item *domain.Item) {
	existing, err := s.institutions.Get(ctx, item.InstitutionID)
	if err == nil {
		if item.InstitutionName == "" {
			item.InstitutionName = existing.Name
		}
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("failed to look up institution", "institution_id", item.InstitutionID, "error", err)
		return
	}

	inst, err := s.provider.GetInstitution(ctx, item.InstitutionID)
	if err != nil {
		s.logger.Warn("failed to fetch institution", "institution_id", item.InstitutionID, "error", err)
		return
	}
	if err := s.institutions.Upsert(ctx, inst); err != nil {
		s.logger.Error("failed to save institution", "institution_id", item.InstitutionID, "error", err)
		return
	}
	if item.InstitutionName == "" {
		item.InstitutionName = inst.Name
	}
}
