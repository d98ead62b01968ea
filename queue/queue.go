// Package queue resolves the increment-event queue, publishes events to it
// and adapts SQS and Azure Storage queues to one message model.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueNotFound is returned by Locator.Lookup when the named queue does not exist.
var ErrQueueNotFound = errors.New("queue not found")

// Message is one received queue message.
type Message struct {
	ID string
	// Receipt is the opaque handle that acknowledges this delivery.
	Receipt    string
	Body       string
	Attributes map[string]string
}

// Locator finds or creates a queue by name.
type Locator interface {
	Lookup(ctx context.Context, name string) (string, error)
	Create(ctx context.Context, name string) error
}

// Sender hands a message body to the queue at address.
type Sender interface {
	Send(ctx context.Context, address, body string, attrs map[string]string) (string, error)
}

// Receiver pulls and acknowledges messages.
type Receiver interface {
	// Receive blocks for up to wait for at most max messages.
	Receive(ctx context.Context, address string, max int, wait time.Duration) ([]Message, error)
	Delete(ctx context.Context, address, receipt string) error
}

// Backend is implemented by every queue service adapter.
type Backend interface {
	Locator
	Sender
	Receiver
}
