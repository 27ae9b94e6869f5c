package driving

import (
	"context"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// WebhookService processes verified provider webhook deliveries
type WebhookService interface {
	// HandleEvent reacts to a webhook event: enqueue a sync, record an
	// item error, or ignore, depending on the event type and code.
	HandleEvent(ctx context.Context, event *domain.WebhookEvent) error
}
