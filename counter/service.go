package counter

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"counter-pipeline/domain"
	"counter-pipeline/queue"
)

// Publisher announces an increment. It reports failures in the Outcome
// instead of returning them.
type Publisher interface {
	Publish(ctx context.Context, ev domain.IncrementEvent) queue.Outcome
}

// Service increments the counter and announces every successful increment.
type Service struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

func NewService(store Store, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher, now: time.Now}
}

func eventMetadata() map[string]any {
	return map[string]any{"source": "counter-api", "version": "1.0"}
}

// Increment adds one to the counter and then publishes an increment event.
// A failed publish is logged and never affects the result.
func (s *Service) Increment(ctx context.Context) (int64, error) {
	v, err := s.store.Increment(ctx)
	if err != nil {
		return 0, err
	}
	out := s.publisher.Publish(ctx, domain.NewIncrementEvent(s.now(), eventMetadata()))
	log.WithFields(log.Fields{
		"value":      v,
		"published":  out.Published,
		"message_id": out.MessageID,
	}).Info("counter incremented")
	return v, nil
}

func (s *Service) Current(ctx context.Context) (int64, error) {
	return s.store.Current(ctx)
}
