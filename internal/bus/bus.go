// Package bus abstracts the publish/subscribe channel carrying JSON
// command and data messages between the engine and its collaborators.
package bus

import "context"

// Handler receives the raw payload of a message on a subscribed
// subject. Handlers run on the transport's delivery goroutine and must
// not block.
type Handler func(payload []byte)

// Subscription is an active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// Channel is a JSON-oriented pub/sub channel. Publish failures are
// non-fatal by contract: the caller logs and drops.
type Channel interface {
	// Publish marshals v as JSON and sends it on subject.
	Publish(ctx context.Context, subject string, v any) error

	// Subscribe registers fn for messages on subject.
	Subscribe(subject string, fn Handler) (Subscription, error)

	// Close tears the transport down.
	Close() error
}
