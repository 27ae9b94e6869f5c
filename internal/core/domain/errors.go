package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrItemUnhealthy indicates the item has an unresolved error and
	// must be re-authorized before it can sync again
	ErrItemUnhealthy = errors.New("item requires re-authorization")

	// ErrSyncInProgress indicates a sync is already running for this item
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrFeedNotReady indicates the provider has not finished preparing
	// the transaction feed after the configured number of retries
	ErrFeedNotReady = errors.New("transaction feed not ready")

	// ErrWebhookSignature indicates webhook verification failed
	ErrWebhookSignature = errors.New("invalid webhook signature")
)
