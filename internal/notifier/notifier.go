// Package notifier delivers trade and status reports to the operator.
package notifier

import "context"

// Notifier delivers one formatted message. Implementations must tolerate
// being called from multiple scheduler goroutines.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NoopNotifier discards all messages. Used when Telegram is not configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) error { return nil }
