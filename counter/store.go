// Package counter holds the shared counter and the increment path that
// announces every mutation on the event queue.
package counter

import "context"

// Store is the durable counter. Increment must not lose updates under
// concurrent callers.
type Store interface {
	Increment(ctx context.Context) (int64, error)
	// Current returns the value, creating the counter at 0 when absent.
	Current(ctx context.Context) (int64, error)
}
