package driven

import "context"

// Notifier delivers operational alerts, e.g. when an item needs
// re-authorization.
type Notifier interface {
	// Notify sends a message with the given subject and body.
	Notify(ctx context.Context, subject, body string) error
}
